package scheduler

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"digest-backend/internal/shared/server/respond"
)

// Handler exposes job management over HTTP.
type Handler struct {
	Sched    *Scheduler
	Jobs     Jobs
	Location *time.Location
	// ScanNow and SendNow back the immediate endpoints and return the
	// payload written to the caller.
	ScanNow func(ctx context.Context) any
	SendNow func(ctx context.Context) any
}

// RegisterRoutes attaches job routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/jobs", h.list)
	rg.POST("/jobs/schedule-weekly", h.scheduleWeekly)
	rg.POST("/jobs/schedule-test", h.scheduleTest)
	rg.POST("/jobs/scan-now", h.scanNow)
	rg.POST("/jobs/send-summaries-now", h.sendNow)
	rg.POST("/jobs/:id/run", h.run)
	rg.DELETE("/jobs/:id", h.remove)
}

func (h *Handler) list(c *gin.Context) {
	respond.OK(c, gin.H{"jobs": h.Sched.List()})
}

func (h *Handler) scheduleWeekly(c *gin.Context) {
	if err := RegisterWeekly(h.Sched, h.Jobs, h.Location); err != nil {
		respond.Fault(c, err)
		return
	}
	respond.OK(c, gin.H{"status": "scheduled", "jobs": h.Sched.List()})
}

func (h *Handler) scheduleTest(c *gin.Context) {
	if err := RegisterTest(h.Sched, h.Jobs); err != nil {
		respond.Fault(c, err)
		return
	}
	respond.OK(c, gin.H{"status": "scheduled", "jobs": h.Sched.List()})
}

func (h *Handler) scanNow(c *gin.Context) {
	if h.ScanNow == nil {
		respond.Error(c, http.StatusServiceUnavailable, "configuration", "scan is not configured", nil)
		return
	}
	respond.OK(c, h.ScanNow(c.Request.Context()))
}

func (h *Handler) sendNow(c *gin.Context) {
	if h.SendNow == nil {
		respond.Error(c, http.StatusServiceUnavailable, "configuration", "notifications are not configured", nil)
		return
	}
	respond.OK(c, h.SendNow(c.Request.Context()))
}

func (h *Handler) run(c *gin.Context) {
	id := c.Param("id")
	c.Set("jobId", id)
	if err := h.Sched.RunNow(c.Request.Context(), id); err != nil {
		if errors.Is(err, ErrJobNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "job not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "job_failed", err.Error(), nil)
		return
	}
	respond.OK(c, gin.H{"status": "completed", "jobId": id})
}

func (h *Handler) remove(c *gin.Context) {
	id := c.Param("id")
	c.Set("jobId", id)
	if err := h.Sched.Remove(id); err != nil {
		if errors.Is(err, ErrJobNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "job not found", nil)
			return
		}
		respond.Fault(c, err)
		return
	}
	respond.OK(c, gin.H{"status": "removed", "jobId": id})
}
