package ingest

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"digest-backend/internal/records"
	"digest-backend/internal/shared/server/middleware"
	"digest-backend/internal/shared/server/respond"
	"digest-backend/internal/tenants"
)

const maxUploadSize = 10 << 20 // 10MB

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches tenant-scoped routes. The group must run the
// tenant middleware.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/scan", h.scan)
	rg.POST("/upload", h.upload)
	rg.GET("/summaries", h.summaries)
	rg.DELETE("/summaries/:id", h.deleteSummary)
}

// tenant resolves the context tenant id; it writes the error response and
// returns false when the tenant is unknown.
func (h *Handler) tenant(c *gin.Context) (tenants.Tenant, bool) {
	id := middleware.TenantIDFromContext(c)
	t, err := h.Svc.Tenant(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, tenants.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "tenant not found", nil)
			return tenants.Tenant{}, false
		}
		respond.Fault(c, err)
		return tenants.Tenant{}, false
	}
	return t, true
}

func (h *Handler) scan(c *gin.Context) {
	t, ok := h.tenant(c)
	if !ok {
		return
	}
	report := h.Svc.Scan(c.Request.Context(), t)
	respond.OK(c, report)
}

func (h *Handler) upload(c *gin.Context) {
	t, ok := h.tenant(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_input", "file is required", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_input", "unable to read file", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_input", "unable to read file", nil)
		return
	}

	rec, err := h.Svc.UploadAndProcess(c.Request.Context(), t, data, fileHeader.Filename)
	if err != nil {
		respond.Fault(c, err)
		return
	}
	c.Set("recordId", rec.ID)
	respond.Created(c, rec)
}

func (h *Handler) summaries(c *gin.Context) {
	t, ok := h.tenant(c)
	if !ok {
		return
	}

	since := time.Now().UTC().Add(-h.Svc.Window())
	if v := strings.TrimSpace(c.Query("since")); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "invalid_input", "since must be RFC3339", nil)
			return
		}
		since = parsed
	} else if v := strings.TrimSpace(c.Query("days")); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days <= 0 {
			respond.Error(c, http.StatusBadRequest, "invalid_input", "days must be a positive integer", nil)
			return
		}
		since = time.Now().UTC().AddDate(0, 0, -days)
	}

	recs, err := h.Svc.SummariesSince(c.Request.Context(), t.ID, since)
	if err != nil {
		respond.Fault(c, err)
		return
	}
	if recs == nil {
		recs = []records.Record{}
	}
	respond.OK(c, gin.H{
		"tenantId":  t.ID,
		"since":     since,
		"count":     len(recs),
		"summaries": recs,
	})
}

func (h *Handler) deleteSummary(c *gin.Context) {
	t, ok := h.tenant(c)
	if !ok {
		return
	}
	id := c.Param("id")
	c.Set("recordId", id)
	if err := h.Svc.DeleteSummary(c.Request.Context(), t.ID, id); err != nil {
		if errors.Is(err, records.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "summary not found", nil)
			return
		}
		respond.Fault(c, err)
		return
	}
	respond.NoContent(c)
}
