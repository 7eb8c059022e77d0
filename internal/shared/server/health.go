package server

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"digest-backend/internal/shared/server/respond"
)

// HealthHandler reports liveness plus the state of optional dependencies.
type HealthHandler struct {
	DB          *sql.DB
	RecordStore string
	SourceType  string
	Jobs        func() int
}

func (h *HealthHandler) status(c *gin.Context) {
	payload := gin.H{"ok": true}
	if h.RecordStore != "" {
		payload["recordStore"] = h.RecordStore
	}
	if h.SourceType != "" {
		payload["source"] = h.SourceType
	}
	if h.Jobs != nil {
		payload["jobs"] = h.Jobs()
	}

	if h.DB != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.DB.PingContext(ctx); err != nil {
			payload["ok"] = false
			payload["database"] = "unreachable"
			respond.JSON(c, http.StatusServiceUnavailable, payload)
			return
		}
		payload["database"] = "ok"
	}

	respond.OK(c, payload)
}
