package handlers

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"riskquery-backend/internal/dataset"
)

// schemaCache memoizes the inferred schema per (actions, permissions)
// fingerprint pair, so rotation invalidates it naturally.
type schemaCache struct {
	mu      sync.Mutex
	entries map[[2]string]map[string]string
}

func (s *schemaCache) get(key [2]string) (map[string]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	schema, ok := s.entries[key]
	return schema, ok
}

func (s *schemaCache) set(key [2]string, schema map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries == nil {
		s.entries = make(map[[2]string]map[string]string)
	}
	s.entries[key] = schema
}

// GetSchema reports canonical column names and their semantic types over
// both families combined.
func (h *Handler) GetSchema(c *gin.Context) {
	ctx := c.Request.Context()

	actions, err := h.loader.LoadFamily(ctx, dataset.FamilyActions)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	permissions, err := h.loader.LoadFamily(ctx, dataset.FamilyPermissions)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	key := [2]string{actions.Fingerprint, permissions.Fingerprint}
	if schema, ok := h.schema.get(key); ok {
		c.JSON(http.StatusOK, schema)
		return
	}

	schema, err := h.loader.Schema(ctx, actions, permissions)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	h.schema.set(key, schema)
	c.JSON(http.StatusOK, schema)
}

// GetFacets reports the top-N most frequent values of one column across
// both families combined.
func (h *Handler) GetFacets(c *gin.Context) {
	column, err := dataset.ResolveColumn(c.Query("column"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	n, ok := intParam(c, "n", 20, 1, 100)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	actions, err := h.loader.LoadFamily(ctx, dataset.FamilyActions)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	permissions, err := h.loader.LoadFamily(ctx, dataset.FamilyPermissions)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	facets, err := h.loader.Facets(ctx, actions, permissions, column, n)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, facets)
}
