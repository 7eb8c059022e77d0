// Package notify hands each tenant's recent summaries to an external
// delivery channel. It never formats message bodies.
package notify

import (
	"context"
	"fmt"
	"time"

	"digest-backend/internal/records"
	"digest-backend/internal/shared/faults"
	"digest-backend/internal/shared/telemetry"
	"digest-backend/internal/tenants"
)

// DefaultWindow is how far back a digest reaches.
const DefaultWindow = 7 * 24 * time.Hour

// Digest is one tenant's batch of summaries for a period.
type Digest struct {
	TenantID    string           `json:"tenantId"`
	TenantName  string           `json:"tenantName,omitempty"`
	Email       string           `json:"email"`
	Subject     string           `json:"subject"`
	PeriodStart time.Time        `json:"periodStart"`
	PeriodEnd   time.Time        `json:"periodEnd"`
	Records     []records.Record `json:"records"`
}

// Publisher delivers a digest to whatever sends the mail.
type Publisher interface {
	Publish(ctx context.Context, d Digest) error
}

// Summaries is the record query digests are built from.
type Summaries interface {
	SummariesSince(ctx context.Context, tenantID string, since time.Time) ([]records.Record, error)
}

// Result is the per-tenant outcome of SendDigests.
type Result struct {
	TenantID string `json:"tenantId"`
	Success  bool   `json:"success"`
	Skipped  bool   `json:"skipped,omitempty"`
	Message  string `json:"message"`
}

// Service builds and publishes digests.
type Service struct {
	tenants   tenants.Repo
	summaries Summaries
	publisher Publisher
	window    time.Duration
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithWindow overrides DefaultWindow.
func WithWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.window = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs a Service.
func NewService(dir tenants.Repo, src Summaries, pub Publisher, opts ...Option) *Service {
	s := &Service{
		tenants:   dir,
		summaries: src,
		publisher: pub,
		window:    DefaultWindow,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendDigests publishes a digest for every tenant with a notify address and
// at least one record in the window. One tenant's failure is reported in its
// Result and does not stop the others.
func (s *Service) SendDigests(ctx context.Context) []Result {
	all, err := s.tenants.List(ctx)
	if err != nil {
		telemetry.Error("notify.tenants_failed", map[string]any{"error": err})
		return []Result{{TenantID: "<tenants>", Success: false, Message: err.Error()}}
	}

	results := make([]Result, 0, len(all))
	sent := 0
	for _, t := range all {
		r := s.sendOne(ctx, t)
		if r.Success && !r.Skipped {
			sent++
		}
		results = append(results, r)
	}
	telemetry.Info("notify.completed", map[string]any{
		"tenants": len(all),
		"sent":    sent,
	})
	return results
}

func (s *Service) sendOne(ctx context.Context, t tenants.Tenant) (r Result) {
	r.TenantID = t.ID
	defer func() {
		if rec := recover(); rec != nil {
			err := faults.FromPanic(rec)
			telemetry.Error("notify.tenant_panic", map[string]any{"tenant_id": t.ID, "error": err})
			r = Result{TenantID: t.ID, Message: err.Error()}
		}
	}()

	if t.NotifyEmail == "" {
		r.Message = "no email address configured"
		return r
	}

	end := s.now()
	start := end.Add(-s.window)
	recs, err := s.summaries.SummariesSince(ctx, t.ID, start)
	if err != nil {
		r.Message = fmt.Sprintf("load summaries: %v", err)
		return r
	}
	if len(recs) == 0 {
		r.Success, r.Skipped = true, true
		r.Message = "no summaries in period"
		return r
	}

	d := Digest{
		TenantID:    t.ID,
		TenantName:  t.Name,
		Email:       t.NotifyEmail,
		Subject:     fmt.Sprintf("Weekly PDF Summary - %d document(s) processed", len(recs)),
		PeriodStart: start,
		PeriodEnd:   end,
		Records:     recs,
	}
	if err := s.publisher.Publish(ctx, d); err != nil {
		telemetry.Warn("notify.publish_failed", map[string]any{"tenant_id": t.ID, "error": err})
		r.Message = fmt.Sprintf("publish digest: %v", err)
		return r
	}
	r.Success = true
	r.Message = fmt.Sprintf("digest with %d summaries queued for %s", len(recs), t.NotifyEmail)
	return r
}
