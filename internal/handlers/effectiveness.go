package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/projecthub/projecthub-backend/internal/requestdata"
	"github.com/projecthub/projecthub-backend/internal/services"
	"github.com/projecthub/projecthub-backend/internal/types"
)

type EffectivenessHandler struct {
	svc services.EffectivenessService
}

func NewEffectivenessHandler(svc services.EffectivenessService) *EffectivenessHandler {
	return &EffectivenessHandler{svc: svc}
}

// POST /api/effectiveness/track
func (h *EffectivenessHandler) Track(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var body struct {
		TemplateID uuid.UUID `json:"template_id"`
		ProjectID  uuid.UUID `json:"project_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	rec, err := h.svc.TrackUsage(c.Request.Context(), body.TemplateID, body.ProjectID, rd.UserID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"record": rec})
}

// POST /api/effectiveness/progress
func (h *EffectivenessHandler) Progress(c *gin.Context) {
	var body struct {
		ProjectID  uuid.UUID `json:"project_id"`
		Title      string    `json:"title"`
		Status     string    `json:"status"`
		ActualDays *int      `json:"actual_days"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	rec, err := h.svc.UpdateMilestoneProgress(c.Request.Context(), body.ProjectID, body.Title, body.Status, body.ActualDays)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"record": rec})
}

// POST /api/effectiveness/feedback
func (h *EffectivenessHandler) Feedback(c *gin.Context) {
	var body struct {
		ProjectID      uuid.UUID                `json:"project_id"`
		Rating         int                      `json:"rating"`
		Feedback       string                   `json:"feedback"`
		WouldRecommend *bool                    `json:"would_recommend"`
		Difficulty     *types.DifficultyRatings `json:"difficulty"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	rec, err := h.svc.RecordStudentFeedback(c.Request.Context(), body.ProjectID, body.Rating, body.Feedback, body.WouldRecommend, body.Difficulty)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"record": rec})
}

// GET /api/effectiveness/projects/:id
func (h *EffectivenessHandler) GetByProject(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
		return
	}
	rec, err := h.svc.GetByProject(c.Request.Context(), projectID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"record": rec})
}

// GET /api/effectiveness/templates/:id
func (h *EffectivenessHandler) ListByTemplate(c *gin.Context) {
	templateID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template id"})
		return
	}
	records, err := h.svc.ListByTemplate(c.Request.Context(), templateID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"records": records})
}
