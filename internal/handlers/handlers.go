package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"riskquery-backend/internal/dataset"
	"riskquery-backend/internal/pagination"
	"riskquery-backend/internal/remote"
	"riskquery-backend/internal/reports"
)

const (
	defaultLimit = 50
	maxLimit     = 200

	defaultSummaryTop = 20
	maxSummaryTop     = 100

	// Pages slower than this are flagged partial. Advisory only; the fetch
	// is never aborted.
	partialThreshold = 3 * time.Second
)

// summaryGroups are the columns the summary endpoints may group by.
var summaryGroups = map[string]bool{
	"Role ID":    true,
	"User Name":  true,
	"Risk Level": true,
	"Action":     true,
	"System":     true,
}

type Handler struct {
	loader *dataset.Loader
	index  *reports.Index
	logger zerolog.Logger

	schema schemaCache
}

func NewHandler(loader *dataset.Loader, index *reports.Index, logger zerolog.Logger) *Handler {
	return &Handler{
		loader: loader,
		index:  index,
		logger: logger,
	}
}

// QueryResponse is the shape of both family query endpoints.
type QueryResponse struct {
	Data       []map[string]any `json:"data"`
	Cursor     *string          `json:"cursor"`
	HasMore    bool             `json:"has_more"`
	Partial    bool             `json:"partial"`
	FileHash   string           `json:"file_hash"`
	ReportType string           `json:"report_type"`
}

// SummaryResponse is the shape of both family summary endpoints.
type SummaryResponse struct {
	Data       []dataset.SummaryRow `json:"data"`
	ReportType string               `json:"report_type"`
}

func (h *Handler) QueryActions(c *gin.Context) {
	h.query(c, dataset.FamilyActions, "/risk/actions/query")
}

func (h *Handler) QueryPermissions(c *gin.Context) {
	h.query(c, dataset.FamilyPermissions, "/risk/permissions/query")
}

func (h *Handler) SummarizeActions(c *gin.Context) {
	h.summarize(c, dataset.FamilyActions, "/risk/actions/summary")
}

func (h *Handler) SummarizePermissions(c *gin.Context) {
	h.summarize(c, dataset.FamilyPermissions, "/risk/permissions/summary")
}

func (h *Handler) query(c *gin.Context, family dataset.Family, endpoint string) {
	limit, ok := intParam(c, "limit", defaultLimit, 1, maxLimit)
	if !ok {
		return
	}
	offset, ok := intParam(c, "offset", 0, 0, 1<<30)
	if !ok {
		return
	}

	filters, ok := parseFilters(c)
	if !ok {
		return
	}

	columns, err := dataset.ResolveColumns(splitColumns(c.Query("columns")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bundle, err := h.loader.LoadFamily(c.Request.Context(), family)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	// A cursor carrying the current fingerprint resumes at its offset. A
	// stale fingerprint means the backing files rotated; restart at zero
	// rather than remapping the old offset.
	if token := c.Query("cursor"); token != "" {
		cur, err := pagination.Decode(token)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if cur.Fingerprint == bundle.Fingerprint {
			offset = cur.Offset
		} else {
			offset = 0
		}
	}

	start := time.Now()
	rows, hasMore, err := h.loader.FetchPage(c.Request.Context(), bundle, filters, columns, limit, offset)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	latency := time.Since(start)
	partial := latency > partialThreshold

	var nextToken *string
	if hasMore {
		current := pagination.Cursor{
			Offset:      offset,
			Fingerprint: bundle.Fingerprint,
			Family:      string(bundle.Family),
		}
		next := pagination.Encode(current.Advance(len(rows)))
		nextToken = &next
	}

	h.logRequest(endpoint, filters, len(rows), hasMore, partial, latency)

	c.JSON(http.StatusOK, QueryResponse{
		Data:       rows,
		Cursor:     nextToken,
		HasMore:    hasMore,
		Partial:    partial,
		FileHash:   bundle.Fingerprint,
		ReportType: string(bundle.Family),
	})
}

func (h *Handler) summarize(c *gin.Context, family dataset.Family, endpoint string) {
	groupBy := strings.TrimSpace(c.Query("groupby"))
	if !summaryGroups[groupBy] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported groupby column"})
		return
	}

	top, ok := intParam(c, "top", defaultSummaryTop, 1, maxSummaryTop)
	if !ok {
		return
	}

	filters, ok := parseFilters(c)
	if !ok {
		return
	}

	bundle, err := h.loader.LoadFamily(c.Request.Context(), family)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	start := time.Now()
	summaries, err := h.loader.Summarize(c.Request.Context(), bundle, filters, groupBy, top)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	h.logRequest(endpoint, filters, len(summaries), false, false, time.Since(start))

	c.JSON(http.StatusOK, SummaryResponse{
		Data:       summaries,
		ReportType: string(bundle.Family),
	})
}

func (h *Handler) logRequest(endpoint string, filters dataset.Filters, rows int, hasMore, partial bool, latency time.Duration) {
	event := h.logger.Info().
		Str("endpoint", endpoint).
		Int("rows_returned", rows).
		Bool("has_more", hasMore).
		Bool("partial", partial).
		Int64("latency_ms", latency.Milliseconds())
	for key, value := range filters.Fields() {
		event = event.Str("filter_"+key, value)
	}
	event.Msg("request summary")
}

// abortWithError maps core errors onto HTTP statuses.
func (h *Handler) abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, dataset.ErrUnknownColumn) || errors.Is(err, pagination.ErrInvalidCursor):
		status = http.StatusBadRequest
	case errors.Is(err, reports.ErrNoFileFound):
		status = http.StatusServiceUnavailable
	case errors.Is(err, remote.ErrUpstream):
		status = http.StatusBadGateway
	case errors.Is(err, remote.ErrAuthNotConfigured) || errors.Is(err, remote.ErrFolderNotConfigured):
		status = http.StatusInternalServerError
	}

	if status == http.StatusInternalServerError {
		h.logger.Error().Err(err).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func parseFilters(c *gin.Context) (dataset.Filters, bool) {
	dateFrom, err := parseDate(c.Query("date_from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date value '" + c.Query("date_from") + "'"})
		return dataset.Filters{}, false
	}
	dateTo, err := parseDate(c.Query("date_to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date value '" + c.Query("date_to") + "'"})
		return dataset.Filters{}, false
	}

	return dataset.Filters{
		User:      c.Query("user"),
		Role:      c.Query("role"),
		RiskLevel: c.Query("risk_level"),
		System:    c.Query("system"),
		Action:    c.Query("action"),
		DateFrom:  dateFrom,
		DateTo:    dateTo,
	}, true
}

func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func splitColumns(raw string) []string {
	if raw == "" {
		return nil
	}
	var columns []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			columns = append(columns, item)
		}
	}
	return columns
}

// intParam parses an integer query parameter, writing a 400 on violation.
func intParam(c *gin.Context, name string, defaultValue, min, max int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return defaultValue, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < min || value > max {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid value for parameter '" + name + "'"})
		return 0, false
	}
	return value, true
}
