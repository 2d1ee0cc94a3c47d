package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/projecthub/projecthub-backend/internal/logger"
)

// AuditLogger records administrative actions. Delivery is
// fire-and-forget: a failing sink must never fail the operation that
// triggered it.
type AuditLogger interface {
	Record(ctx context.Context, action, entity string, entityID, actorID uuid.UUID, details map[string]interface{})
}

type logAuditor struct {
	log *logger.Logger
}

func NewLogAuditor(baseLog *logger.Logger) AuditLogger {
	return &logAuditor{log: baseLog.With("service", "AuditLogger")}
}

func (a *logAuditor) Record(ctx context.Context, action, entity string, entityID, actorID uuid.UUID, details map[string]interface{}) {
	go a.log.Info("audit",
		"action", action,
		"entity", entity,
		"entity_id", entityID.String(),
		"actor_id", actorID.String(),
		"details", details,
	)
}
