package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/projecthub/projecthub-backend/internal/services"
)

type CalendarHandler struct {
	svc services.CalendarService
}

func NewCalendarHandler(svc services.CalendarService) *CalendarHandler {
	return &CalendarHandler{svc: svc}
}

// GET /api/calendar/conflicts?date=2024-03-15&year=2023-2024&semester=spring
func (h *CalendarHandler) Conflicts(c *gin.Context) {
	date, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected YYYY-MM-DD"})
		return
	}
	events, err := h.svc.ConflictingEvents(c.Request.Context(), date, c.Query("year"), c.Query("semester"))
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"conflicts": events})
}

// GET /api/calendar/adjust?date=2024-03-15&year=2023-2024&semester=spring
func (h *CalendarHandler) Adjust(c *gin.Context) {
	date, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected YYYY-MM-DD"})
		return
	}
	adjustment, err := h.svc.DeadlineAdjustments(c.Request.Context(), date, c.Query("year"), c.Query("semester"))
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, adjustment)
}
