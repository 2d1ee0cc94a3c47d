package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/projecthub/projecthub-backend/internal/requestdata"
	"github.com/projecthub/projecthub-backend/internal/services"
)

type OptimizerHandler struct {
	svc services.OptimizerService
}

func NewOptimizerHandler(svc services.OptimizerService) *OptimizerHandler {
	return &OptimizerHandler{svc: svc}
}

// POST /api/templates/:id/optimize/customize
func (h *OptimizerHandler) Customize(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	templateID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template id"})
		return
	}
	var body struct {
		ProjectType    string `json:"project_type"`
		Specialization string `json:"specialization"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	preview, err := h.svc.CustomizeForProjectType(c.Request.Context(), templateID, body.ProjectType, body.Specialization, rd.UserID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, preview)
}

// GET /api/templates/:id/optimize/recommendations
func (h *OptimizerHandler) Recommendations(c *gin.Context) {
	templateID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template id"})
		return
	}
	recs, err := h.svc.GenerateRecommendations(c.Request.Context(), templateID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, recs)
}

// POST /api/templates/:id/optimize/automate
func (h *OptimizerHandler) Automate(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	templateID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template id"})
		return
	}
	var opts services.AutomationOptions
	if err := c.ShouldBindJSON(&opts); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	result, err := h.svc.AutomateOptimization(c.Request.Context(), templateID, rd.UserID, opts)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, result)
}

// POST /api/templates/:id/optimize/calendar
func (h *OptimizerHandler) AdjustCalendar(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	templateID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template id"})
		return
	}
	var body struct {
		AcademicYear string `json:"academic_year"`
		StartDate    string `json:"start_date"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	startDate, err := time.Parse("2006-01-02", body.StartDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_date, expected YYYY-MM-DD"})
		return
	}
	result, err := h.svc.AdjustToAcademicCalendar(c.Request.Context(), templateID, body.AcademicYear, startDate, rd.UserID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, result)
}
