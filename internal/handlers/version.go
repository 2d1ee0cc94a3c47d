package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/projecthub/projecthub-backend/internal/requestdata"
	"github.com/projecthub/projecthub-backend/internal/services"
)

type VersionHandler struct {
	svc services.VersionService
}

func NewVersionHandler(svc services.VersionService) *VersionHandler {
	return &VersionHandler{svc: svc}
}

// GET /api/templates/:id/versions
func (h *VersionHandler) List(c *gin.Context) {
	templateID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template id"})
		return
	}
	versions, err := h.svc.GetVersions(c.Request.Context(), templateID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"versions": versions})
}

// GET /api/templates/:id/versions/:version
func (h *VersionHandler) Get(c *gin.Context) {
	templateID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template id"})
		return
	}
	version, err := strconv.Atoi(c.Param("version"))
	if err != nil || version < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid version number"})
		return
	}
	row, err := h.svc.GetVersion(c.Request.Context(), templateID, version)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"version": row})
}

// POST /api/templates/:id/versions/:version/revert
func (h *VersionHandler) Revert(c *gin.Context) {
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
	version, err := strconv.Atoi(c.Param("version"))
	if err != nil || version < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid version number"})
		return
	}
	row, err := h.svc.RevertToVersion(c.Request.Context(), templateID, version, rd.UserID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"version": row})
}

// GET /api/templates/:id/versions/compare?v1=1&v2=3
func (h *VersionHandler) Compare(c *gin.Context) {
	templateID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template id"})
		return
	}
	v1, err1 := strconv.Atoi(c.Query("v1"))
	v2, err2 := strconv.Atoi(c.Query("v2"))
	if err1 != nil || err2 != nil || v1 < 1 || v2 < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid version numbers"})
		return
	}
	comparison, err := h.svc.CompareVersions(c.Request.Context(), templateID, v1, v2)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, comparison)
}
