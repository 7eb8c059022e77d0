package ingest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digest-backend/internal/records"
	"digest-backend/internal/shared/faults"
	"digest-backend/internal/summarize"
	"digest-backend/internal/tenants"
)

var (
	acme = tenants.Tenant{ID: "acme", Name: "Acme", FolderScope: "acme-folder"}
	beta = tenants.Tenant{ID: "beta", Name: "Beta", FolderScope: "beta-folder"}
)

func newTestService(t *testing.T, src *fakeSource, recs records.Repo, ts ...tenants.Tenant) (*Service, string) {
	t.Helper()
	tmp := t.TempDir()
	svc, err := NewService(src, recs, tenants.NewMemoryRepo(ts...),
		WithTempDir(tmp),
		WithWorkers(2),
		WithClock(func() time.Time { return fixedNow }),
	)
	require.NoError(t, err)
	t.Cleanup(svc.Release)
	return svc, tmp
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, records.NewMemoryRepo(), tenants.NewMemoryRepo())
	require.Error(t, err)
	assert.Equal(t, "configuration", faults.Kind(err))
}

func TestScanProcessesNewDocuments(t *testing.T) {
	src := newFakeSource()
	src.add(acme.FolderScope, "review.pdf", fixedNow.Add(-time.Hour), pdf())
	recs := records.NewMemoryRepo()
	svc, _ := newTestService(t, src, recs, acme)

	report := svc.Scan(context.Background(), acme)

	require.True(t, report.OK(), "errors: %+v", report.Errors)
	assert.Equal(t, 1, report.Candidates)
	assert.Equal(t, 1, report.Processed)

	got, err := recs.ListSince(context.Background(), acme.ID, time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	rec := got[0]
	assert.Equal(t, "Quarterly Operations Review", rec.Title)
	assert.Equal(t, "review.pdf", rec.FilePath)
	assert.Equal(t, "fake://acme-folder/review.pdf", rec.Link)
	assert.Equal(t, fixedNow.Add(-time.Hour), rec.CreatedAt)
	assert.Equal(t, fixedNow, rec.ProcessedAt)
	assert.NotEmpty(t, rec.Summary)
	assert.NotEqual(t, summarize.SummaryTooShort, rec.Summary)
	assert.NotEmpty(t, rec.KeyMessages)
}

func TestScanIsIdempotent(t *testing.T) {
	src := newFakeSource()
	for _, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		src.add(acme.FolderScope, name, fixedNow.Add(-time.Hour), pdf())
	}
	recs := records.NewMemoryRepo()
	svc, _ := newTestService(t, src, recs, acme)

	first := svc.Scan(context.Background(), acme)
	second := svc.Scan(context.Background(), acme)

	assert.Equal(t, 3, first.Processed)
	assert.Equal(t, 0, second.Processed)
	assert.Equal(t, 3, second.Skipped)
	got, err := recs.ListSince(context.Background(), acme.ID, time.Time{})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestScanIsolatesCandidateFaults(t *testing.T) {
	src := newFakeSource()
	src.add(acme.FolderScope, "one.pdf", fixedNow.Add(-3*time.Hour), pdf())
	two := src.add(acme.FolderScope, "two.pdf", fixedNow.Add(-2*time.Hour), pdf())
	src.add(acme.FolderScope, "three.pdf", fixedNow.Add(-time.Hour), pdf())
	src.downloadErrs[two.ID] = faults.Transfer(errors.New("connection reset"), "download")
	recs := records.NewMemoryRepo()
	svc, _ := newTestService(t, src, recs, acme)

	report := svc.Scan(context.Background(), acme)

	assert.Equal(t, 3, report.Candidates)
	assert.Equal(t, 2, report.Processed)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "two.pdf", report.Errors[0].Item)
	assert.Equal(t, "transfer", report.Errors[0].Kind)

	got, err := recs.ListSince(context.Background(), acme.ID, time.Time{})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestScanRecordsUnreadableDocuments(t *testing.T) {
	src := newFakeSource()
	src.add(acme.FolderScope, "broken.pdf", fixedNow.Add(-time.Hour), []byte("not a pdf at all"))
	recs := records.NewMemoryRepo()
	svc, _ := newTestService(t, src, recs, acme)

	report := svc.Scan(context.Background(), acme)

	require.True(t, report.OK())
	assert.Equal(t, 1, report.Processed)
	got, err := recs.ListSince(context.Background(), acme.ID, time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "broken.pdf", got[0].Title)
	assert.Equal(t, summarize.SummaryNoText, got[0].Summary)
	assert.Empty(t, got[0].KeyMessages)
}

func TestScanHonoursWindow(t *testing.T) {
	src := newFakeSource()
	src.add(acme.FolderScope, "old.pdf", fixedNow.Add(-8*24*time.Hour), pdf())
	src.add(acme.FolderScope, "new.pdf", fixedNow.Add(-24*time.Hour), pdf())
	svc, _ := newTestService(t, src, records.NewMemoryRepo(), acme)

	report := svc.Scan(context.Background(), acme)

	assert.Equal(t, 1, report.Candidates)
	assert.Equal(t, 1, report.Processed)
}

func TestScanLeavesNoTempFiles(t *testing.T) {
	src := newFakeSource()
	src.add(acme.FolderScope, "a.pdf", fixedNow.Add(-time.Hour), pdf())
	bad := src.add(acme.FolderScope, "b.pdf", fixedNow.Add(-time.Hour), pdf())
	src.downloadErrs[bad.ID] = faults.Transfer(errors.New("timeout"), "download")
	src.add(acme.FolderScope, "c.pdf", fixedNow.Add(-time.Hour), []byte("garbage"))
	svc, tmp := newTestService(t, src, records.NewMemoryRepo(), acme)

	svc.Scan(context.Background(), acme)

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestScanListFailure(t *testing.T) {
	src := newFakeSource()
	src.listErr = faults.Transfer(errors.New("403"), "list")
	svc, _ := newTestService(t, src, records.NewMemoryRepo(), acme)

	report := svc.Scan(context.Background(), acme)

	assert.Equal(t, 0, report.Processed)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, ItemList, report.Errors[0].Item)
	assert.Equal(t, "transfer", report.Errors[0].Kind)
}

func TestScanCommitFailure(t *testing.T) {
	src := newFakeSource()
	src.add(acme.FolderScope, "a.pdf", fixedNow.Add(-time.Hour), pdf())
	src.add(acme.FolderScope, "b.pdf", fixedNow.Add(-time.Hour), pdf())
	svc, _ := newTestService(t, src, failingCommitRepo{records.NewMemoryRepo()}, acme)

	report := svc.Scan(context.Background(), acme)

	assert.Equal(t, 0, report.Processed)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, ItemCommit, report.Errors[0].Item)
	assert.Equal(t, "persistence", report.Errors[0].Kind)
}

func TestUploadAndProcess(t *testing.T) {
	src := newFakeSource()
	recs := records.NewMemoryRepo()
	svc, tmp := newTestService(t, src, recs, acme)

	rec, err := svc.UploadAndProcess(context.Background(), acme, pdf(), "review.pdf")

	require.NoError(t, err)
	assert.Equal(t, acme.ID, rec.TenantID)
	assert.Equal(t, "fake://acme-folder/up-review.pdf", rec.Link)
	assert.Equal(t, "Quarterly Operations Review", rec.Title)
	assert.Equal(t, []string{"acme-folder/up-review.pdf"}, src.uploads)

	found, err := recs.FindByLink(context.Background(), acme.ID, rec.Link)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, found.ID)

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUploadOfRecordedLinkReturnsStoredRecord(t *testing.T) {
	src := newFakeSource()
	recs := records.NewMemoryRepo()
	svc, _ := newTestService(t, src, recs, acme)
	ctx := context.Background()

	first, err := svc.UploadAndProcess(ctx, acme, pdf(), "review.pdf")
	require.NoError(t, err)
	second, err := svc.UploadAndProcess(ctx, acme, pdf(), "review.pdf")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	stored, err := recs.ListSince(ctx, acme.ID, time.Time{})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, first.ID, stored[0].ID)
}

func TestUploadAndProcessValidation(t *testing.T) {
	svc, _ := newTestService(t, newFakeSource(), records.NewMemoryRepo(), acme)

	cases := []struct {
		name string
		data []byte
	}{
		{"", pdf()},
		{"notes.txt", pdf()},
		{"empty.pdf", nil},
	}
	for _, tc := range cases {
		_, err := svc.UploadAndProcess(context.Background(), acme, tc.data, tc.name)
		require.Error(t, err, tc.name)
		assert.True(t, errors.Is(err, faults.ErrInvalidInput), tc.name)
	}
}

func TestUploadTransferFailure(t *testing.T) {
	src := newFakeSource()
	src.uploadErr = faults.Transfer(errors.New("quota exceeded"), "upload")
	recs := records.NewMemoryRepo()
	svc, _ := newTestService(t, src, recs, acme)

	_, err := svc.UploadAndProcess(context.Background(), acme, pdf(), "review.pdf")

	require.Error(t, err)
	assert.Equal(t, "transfer", faults.Kind(err))
	got, err := recs.ListSince(context.Background(), acme.ID, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestScanAllIsolatesTenants(t *testing.T) {
	src := newFakeSource()
	src.add(acme.FolderScope, "a.pdf", fixedNow.Add(-time.Hour), pdf())
	src.add(beta.FolderScope, "b.pdf", fixedNow.Add(-time.Hour), pdf())
	broken := tenants.Tenant{ID: "broken", FolderScope: "broken-folder"}
	src.panicScopes[broken.FolderScope] = true
	recs := records.NewMemoryRepo()
	svc, _ := newTestService(t, src, recs, acme, beta, broken)

	report := svc.ScanAll(context.Background())

	assert.Equal(t, 3, report.Tenants)
	assert.Equal(t, 2, report.Processed)
	require.Len(t, report.Scans, 3)
	assert.Equal(t, "acme", report.Scans[0].TenantID)
	assert.Equal(t, "broken", report.Scans[1].TenantID)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "broken", report.Errors[0].TenantID)
	assert.Equal(t, ItemScan, report.Errors[0].Item)

	for _, id := range []string{"acme", "beta"} {
		got, err := recs.ListSince(context.Background(), id, time.Time{})
		require.NoError(t, err)
		assert.Len(t, got, 1, id)
	}
}

func TestSummariesSinceAndDelete(t *testing.T) {
	src := newFakeSource()
	src.add(acme.FolderScope, "a.pdf", fixedNow.Add(-48*time.Hour), pdf())
	src.add(acme.FolderScope, "b.pdf", fixedNow.Add(-time.Hour), pdf())
	svc, _ := newTestService(t, src, records.NewMemoryRepo(), acme)
	svc.Scan(context.Background(), acme)

	recent, err := svc.SummariesSince(context.Background(), acme.ID, fixedNow.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "b.pdf", recent[0].FilePath)

	other, err := svc.SummariesSince(context.Background(), beta.ID, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, other)

	require.NoError(t, svc.DeleteSummary(context.Background(), acme.ID, recent[0].ID))
	err = svc.DeleteSummary(context.Background(), acme.ID, recent[0].ID)
	assert.True(t, errors.Is(err, records.ErrNotFound))
}
