package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/projecthub/projecthub-backend/internal/repos"
	"github.com/projecthub/projecthub-backend/internal/requestdata"
	"github.com/projecthub/projecthub-backend/internal/services"
)

type TemplateHandler struct {
	svc services.TemplateService
}

func NewTemplateHandler(svc services.TemplateService) *TemplateHandler {
	return &TemplateHandler{svc: svc}
}

// POST /api/templates
func (h *TemplateHandler) Create(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var input services.CreateTemplateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	t, err := h.svc.Create(c.Request.Context(), input, rd.UserID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"template": t})
}

// GET /api/templates/:id
func (h *TemplateHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template id"})
		return
	}
	t, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"template": t})
}

// GET /api/templates
func (h *TemplateHandler) List(c *gin.Context) {
	filter := filterFromQuery(c)
	templates, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"templates": templates})
}

// PUT /api/templates/:id
func (h *TemplateHandler) Update(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template id"})
		return
	}

	var body struct {
		services.UpdateTemplateInput
		ChangeDescription string `json:"change_description"`
		CreateNewVersion  *bool  `json:"create_new_version"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	createVersion := true
	if body.CreateNewVersion != nil {
		createVersion = *body.CreateNewVersion
	}

	t, err := h.svc.Update(c.Request.Context(), id, body.UpdateTemplateInput, rd.UserID, body.ChangeDescription, createVersion)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"template": t})
}

// DELETE /api/templates/:id
func (h *TemplateHandler) Delete(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template id"})
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id, rd.UserID); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}

// POST /api/templates/bulk
func (h *TemplateHandler) Bulk(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var body struct {
		Action      string      `json:"action"`
		TemplateIDs []uuid.UUID `json:"template_ids"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	result, err := h.svc.Bulk(c.Request.Context(), body.Action, body.TemplateIDs, rd.UserID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, result)
}

// GET /api/templates/export?format=json|csv
func (h *TemplateHandler) Export(c *gin.Context) {
	filter := filterFromQuery(c)
	format := strings.ToLower(c.DefaultQuery("format", "json"))
	switch format {
	case "json":
		doc, err := h.svc.ExportJSON(c.Request.Context(), filter)
		if err != nil {
			RespondAppError(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="templates.json"`)
		RespondOK(c, doc)
	case "csv":
		csvBody, err := h.svc.ExportCSV(c.Request.Context(), filter)
		if err != nil {
			RespondAppError(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="templates.csv"`)
		c.Data(http.StatusOK, "text/csv", []byte(csvBody))
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported export format"})
	}
}

// POST /api/templates/import
func (h *TemplateHandler) Import(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var doc services.ExportDocument
	if err := c.ShouldBindJSON(&doc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	result, err := h.svc.ImportJSON(c.Request.Context(), doc, rd.UserID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, result)
}

func filterFromQuery(c *gin.Context) repos.TemplateFilter {
	filter := repos.TemplateFilter{
		Specialization: c.Query("specialization"),
		ProjectType:    c.Query("project_type"),
		Search:         c.Query("search"),
	}
	if raw := c.Query("is_active"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			filter.IsActive = &v
		}
	}
	if raw := c.Query("include_archived"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			filter.IncludeArchived = v
		}
	}
	return filter
}
