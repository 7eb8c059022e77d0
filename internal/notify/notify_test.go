package notify

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digest-backend/internal/records"
	localstore "digest-backend/internal/shared/storage/object/local"
	"digest-backend/internal/tenants"
)

var now = time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)

type fakeSummaries struct {
	byTenant map[string][]records.Record
	err      error
	since    map[string]time.Time
}

func (f *fakeSummaries) SummariesSince(ctx context.Context, tenantID string, since time.Time) ([]records.Record, error) {
	if f.since == nil {
		f.since = map[string]time.Time{}
	}
	f.since[tenantID] = since
	if f.err != nil {
		return nil, f.err
	}
	return f.byTenant[tenantID], nil
}

type capturePublisher struct {
	digests []Digest
	failFor string
}

func (c *capturePublisher) Publish(ctx context.Context, d Digest) error {
	if d.TenantID == c.failFor {
		return errors.New("smtp relay down")
	}
	c.digests = append(c.digests, d)
	return nil
}

func TestSendDigests(t *testing.T) {
	dir := tenants.NewMemoryRepo(
		tenants.Tenant{ID: "acme", NotifyEmail: "ops@acme.test"},
		tenants.Tenant{ID: "beta", NotifyEmail: "beta@beta.test"},
		tenants.Tenant{ID: "gamma"},
		tenants.Tenant{ID: "delta", NotifyEmail: "d@delta.test"},
	)
	src := &fakeSummaries{byTenant: map[string][]records.Record{
		"acme":  {{ID: "1", Title: "Q1"}, {ID: "2", Title: "Q2"}},
		"delta": {{ID: "3", Title: "D"}},
	}}
	pub := &capturePublisher{failFor: "delta"}
	svc := NewService(dir, src, pub, WithClock(func() time.Time { return now }))

	results := svc.SendDigests(context.Background())

	byID := map[string]Result{}
	for _, r := range results {
		byID[r.TenantID] = r
	}
	require.Len(t, byID, 4)

	assert.True(t, byID["acme"].Success)
	assert.False(t, byID["acme"].Skipped)
	assert.True(t, byID["beta"].Success)
	assert.True(t, byID["beta"].Skipped)
	assert.False(t, byID["gamma"].Success)
	assert.Equal(t, "no email address configured", byID["gamma"].Message)
	assert.False(t, byID["delta"].Success)
	assert.Contains(t, byID["delta"].Message, "smtp relay down")

	require.Len(t, pub.digests, 1)
	d := pub.digests[0]
	assert.Equal(t, "acme", d.TenantID)
	assert.Equal(t, "ops@acme.test", d.Email)
	assert.Equal(t, "Weekly PDF Summary - 2 document(s) processed", d.Subject)
	assert.Equal(t, now.Add(-DefaultWindow), d.PeriodStart)
	assert.Equal(t, now, d.PeriodEnd)
	assert.Equal(t, now.Add(-DefaultWindow), src.since["acme"])
}

func TestSendDigestsReportsQueryFailures(t *testing.T) {
	dir := tenants.NewMemoryRepo(tenants.Tenant{ID: "acme", NotifyEmail: "ops@acme.test"})
	src := &fakeSummaries{err: errors.New("db down")}
	svc := NewService(dir, src, &capturePublisher{})

	results := svc.SendDigests(context.Background())

	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Message, "db down")
}

func TestOutboxPublisherWritesJSON(t *testing.T) {
	base := t.TempDir()
	pub := OutboxPublisher{Store: localstore.New(base), Prefix: "digests"}
	d := Digest{
		TenantID:  "acme",
		Email:     "ops@acme.test",
		Subject:   "Weekly PDF Summary - 1 document(s) processed",
		PeriodEnd: now,
		Records:   []records.Record{{ID: "1", Title: "Quarterly Review", KeyMessages: []string{}}},
	}

	require.NoError(t, pub.Publish(context.Background(), d))

	var files []string
	require.NoError(t, filepath.Walk(base, func(p string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			files = append(files, p)
		}
		return err
	}))
	require.Len(t, files, 1)
	rel, err := filepath.Rel(base, files[0])
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.ToSlash(rel), "digests/acme/20260309T090000Z-"), rel)

	rc, err := localstore.New(base).Open(context.Background(), filepath.ToSlash(rel))
	require.NoError(t, err)
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	require.NoError(t, err)
	var got Digest
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "acme", got.TenantID)
	require.Len(t, got.Records, 1)
	assert.Equal(t, "Quarterly Review", got.Records[0].Title)
}

func TestOutboxPublisherRequiresStore(t *testing.T) {
	err := OutboxPublisher{}.Publish(context.Background(), Digest{TenantID: "acme"})
	require.Error(t, err)
}

func TestMultiPublisherStopsAtFirstError(t *testing.T) {
	failing := &capturePublisher{failFor: "acme"}
	after := &capturePublisher{}
	err := MultiPublisher{LogPublisher{}, failing, after}.Publish(context.Background(), Digest{TenantID: "acme"})

	require.Error(t, err)
	assert.Empty(t, after.digests)
}
