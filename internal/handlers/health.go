package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"riskquery-backend/internal/reports"
)

// GetLiveness always reports ok while the process is up.
func (h *Handler) GetLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetReadiness resolves every category; a missing report file means the
// service cannot answer queries yet and is reported as unavailable.
func (h *Handler) GetReadiness(c *gin.Context) {
	for _, category := range reports.Categories {
		if _, err := h.index.Resolve(c.Request.Context(), category); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unavailable",
				"detail": err.Error(),
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
