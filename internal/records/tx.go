package records

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
)

type flushFunc func(ctx context.Context, tenantID string, recs []Record) (int, error)

// stagedTx buffers inserts in memory and hands them to flush on Commit, so
// no store transaction stays open while documents are downloaded.
type stagedTx struct {
	mu       sync.Mutex
	tenantID string
	staged   []Record
	done     bool
	flush    flushFunc
}

func newStagedTx(tenantID string, flush flushFunc) *stagedTx {
	return &stagedTx{tenantID: tenantID, flush: flush}
}

func (t *stagedTx) Insert(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.TenantID == "" {
		rec.TenantID = t.tenantID
	}
	if rec.TenantID != t.tenantID {
		return errors.Newf("record tenant %s does not match transaction tenant %s", rec.TenantID, t.tenantID)
	}
	if rec.Link == "" {
		return errors.New("record link is required")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return ErrTxDone
	}
	t.staged = append(t.staged, rec)
	return nil
}

func (t *stagedTx) Commit(ctx context.Context) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return 0, ErrTxDone
	}
	t.done = true
	staged := dedupeLinks(t.staged)
	t.staged = nil
	if len(staged) == 0 {
		return 0, nil
	}
	return t.flush(ctx, t.tenantID, staged)
}

func (t *stagedTx) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done = true
	t.staged = nil
	return nil
}

// dedupeLinks keeps the first staged record for each link.
func dedupeLinks(recs []Record) []Record {
	seen := make(map[string]struct{}, len(recs))
	out := make([]Record, 0, len(recs))
	for _, r := range recs {
		if _, ok := seen[r.Link]; ok {
			continue
		}
		seen[r.Link] = struct{}{}
		out = append(out, r)
	}
	return out
}
