package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"digest-backend/internal/extract/extracttest"
	"digest-backend/internal/records"
	"digest-backend/internal/shared/faults"
	"digest-backend/internal/source"
)

const reportText = "Quarterly Operations Review\n" +
	"The main objective of this review is to summarise the quarter. " +
	"Revenue grew in every region and costs stayed flat across the business. " +
	"The key finding is that customer retention improved by four points. " +
	"Warehouse throughput rose after the new scanners were installed. " +
	"In conclusion, the team recommends expanding the retention program next quarter."

var fixedNow = time.Date(2026, time.March, 2, 6, 0, 0, 0, time.UTC)

type fakeSource struct {
	mu           sync.Mutex
	files        map[string][]source.File
	bodies       map[string][]byte
	downloadErrs map[string]error
	listErr      error
	panicScopes  map[string]bool
	uploads      []string
	uploadErr    error
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		files:        map[string][]source.File{},
		bodies:       map[string][]byte{},
		downloadErrs: map[string]error{},
		panicScopes:  map[string]bool{},
	}
}

func (f *fakeSource) add(scope, name string, created time.Time, body []byte) source.File {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := scope + "/" + name
	file := source.File{ID: id, Name: name, CreatedAt: created, Link: "fake://" + id, Size: int64(len(body))}
	f.files[scope] = append(f.files[scope], file)
	f.bodies[id] = body
	return file
}

func (f *fakeSource) List(ctx context.Context, scope, contentType string, since time.Time) ([]source.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicScopes[scope] {
		panic("list exploded for " + scope)
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []source.File
	for _, file := range f.files[scope] {
		if !file.CreatedAt.Before(since) && strings.HasSuffix(file.Name, source.ExtensionFor(contentType)) {
			out = append(out, file)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeSource) Download(ctx context.Context, id string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.downloadErrs[id]; err != nil {
		return nil, err
	}
	body, ok := f.bodies[id]
	if !ok {
		return nil, faults.Transfer(errors.Newf("no such file %s", id), "download")
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

func (f *fakeSource) Upload(ctx context.Context, r io.Reader, name, scope string) (source.Uploaded, error) {
	if f.uploadErr != nil {
		return source.Uploaded{}, f.uploadErr
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return source.Uploaded{}, err
	}
	file := f.add(scope, fmt.Sprintf("up-%s", name), fixedNow, body)
	f.mu.Lock()
	f.uploads = append(f.uploads, file.ID)
	f.mu.Unlock()
	return source.Uploaded{ID: file.ID, Link: file.Link}, nil
}

// failingCommitRepo stages normally but fails every Commit.
type failingCommitRepo struct {
	*records.MemoryRepo
}

func (r failingCommitRepo) Begin(ctx context.Context, tenantID string) (records.Tx, error) {
	return &failingTx{}, nil
}

type failingTx struct {
	staged     int
	rolledBack bool
}

func (t *failingTx) Insert(ctx context.Context, rec records.Record) error {
	t.staged++
	return nil
}

func (t *failingTx) Commit(ctx context.Context) (int, error) {
	return 0, errors.New("database went away")
}

func (t *failingTx) Rollback(ctx context.Context) error {
	t.rolledBack = true
	return nil
}

func pdf() []byte {
	return extracttest.BuildPDF(reportText)
}
