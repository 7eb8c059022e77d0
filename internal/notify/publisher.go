package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/cockroachdb/errors"

	"digest-backend/internal/shared/faults"
	"digest-backend/internal/shared/storage/object"
	"digest-backend/internal/shared/telemetry"
	"digest-backend/internal/shared/util"
)

// LogPublisher writes each digest as a telemetry line.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, d Digest) error {
	titles := make([]string, 0, len(d.Records))
	for _, r := range d.Records {
		titles = append(titles, r.Title)
	}
	telemetry.Info("notify.digest", map[string]any{
		"tenant_id":    d.TenantID,
		"email":        d.Email,
		"subject":      d.Subject,
		"period_start": d.PeriodStart,
		"period_end":   d.PeriodEnd,
		"titles":       titles,
	})
	return nil
}

// OutboxPublisher writes each digest as a JSON object for an external
// mailer to pick up. Keys are <prefix>/<tenant>/<period end>-<id>.json.
type OutboxPublisher struct {
	Store  object.Store
	Prefix string
}

func (p OutboxPublisher) Publish(ctx context.Context, d Digest) error {
	if p.Store == nil {
		return faults.Configuration("outbox store is not configured")
	}
	body, err := json.Marshal(d)
	if err != nil {
		return errors.Wrap(err, "encode digest")
	}
	key := p.Key(d)
	if _, err := p.Store.Put(ctx, key, "application/json", bytes.NewReader(body)); err != nil {
		return faults.Transfer(err, fmt.Sprintf("write outbox %s", key))
	}
	telemetry.Info("notify.outbox_written", map[string]any{"tenant_id": d.TenantID, "key": key, "records": len(d.Records)})
	return nil
}

// Key returns the object key a digest is written under.
func (p OutboxPublisher) Key(d Digest) string {
	dir, err := util.SanitizeFileName(d.TenantID)
	if err != nil {
		dir = util.HashKey(d.TenantID)
	}
	name := fmt.Sprintf("%s-%s.json", d.PeriodEnd.UTC().Format("20060102T150405Z"), util.RandomID())
	return path.Join(p.Prefix, dir, name)
}

// MultiPublisher publishes to each publisher in order and stops at the
// first error.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, d Digest) error {
	for _, p := range m {
		if err := p.Publish(ctx, d); err != nil {
			return err
		}
	}
	return nil
}
