package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"digest-backend/internal/extract"
	"digest-backend/internal/records"
	"digest-backend/internal/shared/faults"
	"digest-backend/internal/shared/metrics"
	"digest-backend/internal/shared/telemetry"
	"digest-backend/internal/source"
	"digest-backend/internal/summarize"
	"digest-backend/internal/tenants"
)

const (
	DefaultWindow  = 7 * 24 * time.Hour
	DefaultWorkers = 4
)

// Service runs the list, fetch, extract, summarize and persist pipeline
// for tenants.
type Service struct {
	source  source.Source
	records records.Repo
	tenants tenants.Repo
	engine  summarize.Engine
	window  time.Duration
	tempDir string
	workers int
	pool    *ants.Pool
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithWindow sets how far back a scan looks for new documents.
func WithWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.window = d
		}
	}
}

// WithTempDir sets where downloads are staged.
func WithTempDir(dir string) Option {
	return func(s *Service) { s.tempDir = dir }
}

// WithWorkers bounds how many tenants ScanAll scans at once.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithEngine replaces the summarization engine.
func WithEngine(e summarize.Engine) Option {
	return func(s *Service) { s.engine = e }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService builds a Service. Call Release when done.
func NewService(src source.Source, recs records.Repo, dir tenants.Repo, opts ...Option) (*Service, error) {
	if src == nil || recs == nil || dir == nil {
		return nil, faults.Configuration("ingest: source, record store and tenant directory are required")
	}
	s := &Service{
		source:  src,
		records: recs,
		tenants: dir,
		engine:  summarize.NewEngine(),
		window:  DefaultWindow,
		workers: DefaultWorkers,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	pool, err := ants.NewPool(s.workers)
	if err != nil {
		return nil, errors.Wrap(err, "create scan pool")
	}
	s.pool = pool
	return s, nil
}

// Release stops the worker pool.
func (s *Service) Release() {
	if s.pool != nil {
		s.pool.Release()
	}
}

// Tenant resolves a tenant id through the directory.
func (s *Service) Tenant(ctx context.Context, id string) (tenants.Tenant, error) {
	return s.tenants.Get(ctx, id)
}

// Scan processes new documents for one tenant. Candidate faults are
// recorded in the report and never stop the loop; staged records are
// committed once at the end.
func (s *Service) Scan(ctx context.Context, tenant tenants.Tenant) (report ScanReport) {
	start := s.now()
	report = ScanReport{TenantID: tenant.ID, Errors: []ItemError{}}
	metrics.IncScanRuns()

	var tx records.Tx
	defer func() {
		if rec := recover(); rec != nil {
			if tx != nil {
				_ = tx.Rollback(ctx)
			}
			report.Processed = 0
			report.fail(ItemScan, faults.FromPanic(rec))
		}
		metrics.AddDocumentsProcessed(report.Processed)
		metrics.AddDocumentsSkipped(report.Skipped)
		metrics.AddDocumentsFailed(len(report.Errors))
		metrics.ObserveScanDurationMs(float64(s.now().Sub(start).Milliseconds()))
		telemetry.Info("scan.completed", map[string]any{
			"tenant_id":   tenant.ID,
			"candidates":  report.Candidates,
			"processed":   report.Processed,
			"skipped":     report.Skipped,
			"errors":      len(report.Errors),
			"duration_ms": s.now().Sub(start).Milliseconds(),
		})
	}()

	since := start.Add(-s.window)
	files, err := s.source.List(ctx, tenant.FolderScope, source.ContentTypePDF, since)
	if err != nil {
		telemetry.Error("scan.list_failed", map[string]any{"tenant_id": tenant.ID, "error": err})
		report.fail(ItemList, err)
		return report
	}
	report.Candidates = len(files)

	tx, err = s.records.Begin(ctx, tenant.ID)
	if err != nil {
		report.fail(ItemCommit, faults.Persistence(err, "begin"))
		return report
	}

	for _, f := range files {
		rec, skipped, err := s.processCandidate(ctx, tenant, f)
		if skipped {
			report.Skipped++
			continue
		}
		if err == nil {
			err = faults.Persistence(tx.Insert(ctx, rec), "stage record")
		}
		if err != nil {
			telemetry.Warn("scan.candidate_failed", map[string]any{
				"tenant_id": tenant.ID,
				"file_id":   f.ID,
				"file_name": f.Name,
				"kind":      faults.Kind(err),
				"error":     err,
			})
			report.fail(f.Name, err)
		}
	}

	n, err := tx.Commit(ctx)
	if err != nil {
		_ = tx.Rollback(ctx)
		telemetry.Error("scan.commit_failed", map[string]any{"tenant_id": tenant.ID, "error": err})
		report.fail(ItemCommit, faults.Persistence(err, "commit"))
		return report
	}
	report.Processed = n
	return report
}

// processCandidate builds the record for one remote file. skipped is true
// when the tenant already has a record for the file's link.
func (s *Service) processCandidate(ctx context.Context, tenant tenants.Tenant, f source.File) (rec records.Record, skipped bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec, skipped, err = records.Record{}, false, faults.FromPanic(r)
		}
	}()

	link := f.Link
	if link == "" {
		link = f.ID
	}
	_, err = s.records.FindByLink(ctx, tenant.ID, link)
	switch {
	case err == nil:
		return records.Record{}, true, nil
	case !errors.Is(err, records.ErrNotFound):
		return records.Record{}, false, faults.Persistence(err, "find by link")
	}

	body, err := s.source.Download(ctx, f.ID)
	if err != nil {
		return records.Record{}, false, err
	}
	defer body.Close()

	text, err := s.extractVia(ctx, body)
	if err != nil {
		return records.Record{}, false, err
	}

	now := s.now()
	created := f.CreatedAt
	if created.IsZero() {
		created = now
	}
	return s.newRecord(tenant.ID, f.Name, link, text, created, now), false, nil
}

// UploadAndProcess stores a submitted PDF in the tenant's remote scope,
// summarizes it and persists the record.
func (s *Service) UploadAndProcess(ctx context.Context, tenant tenants.Tenant, data []byte, filename string) (records.Record, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return records.Record{}, faults.Invalid("file name is required")
	}
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return records.Record{}, faults.Invalid("only PDF files are supported")
	}
	if len(data) == 0 {
		return records.Record{}, faults.Invalid("file is empty")
	}

	up, err := s.source.Upload(ctx, bytes.NewReader(data), filename, tenant.FolderScope)
	if err != nil {
		return records.Record{}, err
	}
	link := up.Link
	if link == "" {
		link = up.ID
	}

	text, err := s.extractVia(ctx, bytes.NewReader(data))
	if err != nil {
		return records.Record{}, err
	}

	now := s.now()
	rec := s.newRecord(tenant.ID, filename, link, text, now, now)

	tx, err := s.records.Begin(ctx, tenant.ID)
	if err != nil {
		return records.Record{}, faults.Persistence(err, "begin")
	}
	if err := tx.Insert(ctx, rec); err != nil {
		_ = tx.Rollback(ctx)
		return records.Record{}, faults.Persistence(err, "stage record")
	}
	n, err := tx.Commit(ctx)
	if err != nil {
		_ = tx.Rollback(ctx)
		return records.Record{}, faults.Persistence(err, "commit")
	}
	if n == 0 {
		// The link was already recorded; hand back the stored record.
		existing, err := s.records.FindByLink(ctx, tenant.ID, link)
		if err != nil {
			return records.Record{}, faults.Persistence(err, "load existing record")
		}
		metrics.AddDocumentsSkipped(1)
		telemetry.Info("upload.duplicate", map[string]any{
			"tenant_id": tenant.ID,
			"record_id": existing.ID,
			"file_name": filename,
		})
		return existing, nil
	}
	metrics.AddDocumentsProcessed(n)
	telemetry.Info("upload.processed", map[string]any{
		"tenant_id": tenant.ID,
		"record_id": rec.ID,
		"file_name": filename,
		"size":      len(data),
	})
	return rec, nil
}

// ScanAll scans every tenant through the worker pool. A tenant's fault,
// including a panic, is recorded and never interrupts the others.
func (s *Service) ScanAll(ctx context.Context) SweepReport {
	report := SweepReport{Errors: []TenantError{}, Scans: []ScanReport{}}
	all, err := s.tenants.List(ctx)
	if err != nil {
		telemetry.Error("sweep.tenants_failed", map[string]any{"error": err})
		report.Errors = append(report.Errors, TenantError{Item: "<tenants>", Kind: faults.Kind(err), Message: err.Error()})
		return report
	}
	report.Tenants = len(all)

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, t := range all {
		t := t
		wg.Add(1)
		err := s.pool.Submit(func() {
			defer wg.Done()
			r := s.safeScan(ctx, t)
			mu.Lock()
			report.add(r)
			mu.Unlock()
		})
		if err != nil {
			wg.Done()
			mu.Lock()
			report.Errors = append(report.Errors, TenantError{TenantID: t.ID, Item: ItemScan, Kind: "internal", Message: err.Error()})
			mu.Unlock()
		}
	}
	wg.Wait()

	sort.Slice(report.Scans, func(i, j int) bool { return report.Scans[i].TenantID < report.Scans[j].TenantID })
	telemetry.Info("sweep.completed", map[string]any{
		"tenants":   report.Tenants,
		"processed": report.Processed,
		"skipped":   report.Skipped,
		"errors":    len(report.Errors),
	})
	return report
}

func (s *Service) safeScan(ctx context.Context, t tenants.Tenant) (r ScanReport) {
	defer func() {
		if rec := recover(); rec != nil {
			err := faults.FromPanic(rec)
			telemetry.Error("sweep.tenant_panic", map[string]any{"tenant_id": t.ID, "error": err})
			r = ScanReport{TenantID: t.ID, Errors: []ItemError{{Item: ItemScan, Kind: faults.Kind(err), Message: err.Error()}}}
		}
	}()
	return s.Scan(ctx, t)
}

// SummariesSince returns the tenant's records created at or after since.
func (s *Service) SummariesSince(ctx context.Context, tenantID string, since time.Time) ([]records.Record, error) {
	recs, err := s.records.ListSince(ctx, tenantID, since)
	if err != nil {
		return nil, faults.Persistence(err, "list summaries")
	}
	return recs, nil
}

// DeleteSummary removes one of the tenant's records.
func (s *Service) DeleteSummary(ctx context.Context, tenantID, id string) error {
	if strings.TrimSpace(id) == "" {
		return faults.Invalid("record id is required")
	}
	if err := s.records.Delete(ctx, tenantID, id); err != nil {
		if errors.Is(err, records.ErrNotFound) {
			return err
		}
		return faults.Persistence(err, "delete summary")
	}
	return nil
}

// Window is the trailing window scans and digests look back over.
func (s *Service) Window() time.Duration {
	return s.window
}

// extractVia copies r into a scoped temp file and extracts its text. The
// file is removed on every path.
func (s *Service) extractVia(ctx context.Context, r io.Reader) (string, error) {
	tmp, err := os.CreateTemp(s.tempDir, "digest-*.pdf")
	if err != nil {
		return "", faults.Transfer(err, "create temp file")
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		return "", faults.Transfer(err, "fetch document")
	}
	if err := tmp.Close(); err != nil {
		return "", faults.Transfer(err, fmt.Sprintf("flush %s", tmp.Name()))
	}
	return extract.FromFile(ctx, tmp.Name()), nil
}

func (s *Service) newRecord(tenantID, name, link, text string, created, processed time.Time) records.Record {
	digest := s.engine.Process(text, name)
	return records.Record{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		Title:       digest.Title,
		FilePath:    name,
		Link:        link,
		Summary:     digest.Summary,
		KeyMessages: digest.KeyMessages,
		CreatedAt:   created,
		ProcessedAt: processed,
	}
}
