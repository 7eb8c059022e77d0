package records

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]map[string]Record // tenantID -> link -> record
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]map[string]Record)}
}

// FindByLink returns the tenant's record for link.
func (r *MemoryRepo) FindByLink(ctx context.Context, tenantID, link string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.data[tenantID][link]
	if !ok {
		return Record{}, ErrNotFound
	}
	return clone(rec), nil
}

// ListSince returns the tenant's records created at or after since, newest first.
func (r *MemoryRepo) ListSince(ctx context.Context, tenantID string, since time.Time) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Record, 0, len(r.data[tenantID]))
	for _, rec := range r.data[tenantID] {
		if !rec.CreatedAt.Before(since) {
			out = append(out, clone(rec))
		}
	}
	r.mu.RUnlock()
	sortNewestFirst(out)
	return out, nil
}

// Begin opens a staged unit of work for tenantID.
func (r *MemoryRepo) Begin(ctx context.Context, tenantID string) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return newStagedTx(tenantID, r.flush), nil
}

// Delete removes a record by id.
func (r *MemoryRepo) Delete(ctx context.Context, tenantID, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for link, rec := range r.data[tenantID] {
		if rec.ID == id {
			delete(r.data[tenantID], link)
			return nil
		}
	}
	return ErrNotFound
}

func (r *MemoryRepo) flush(ctx context.Context, tenantID string, recs []Record) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	byLink, ok := r.data[tenantID]
	if !ok {
		byLink = make(map[string]Record)
		r.data[tenantID] = byLink
	}
	written := 0
	for _, rec := range recs {
		if _, exists := byLink[rec.Link]; exists {
			continue
		}
		byLink[rec.Link] = clone(rec)
		written++
	}
	return written, nil
}

func clone(rec Record) Record {
	msgs := make([]string, len(rec.KeyMessages))
	copy(msgs, rec.KeyMessages)
	rec.KeyMessages = msgs
	return rec
}

func sortNewestFirst(recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.After(recs[j].CreatedAt)
		}
		return recs[i].ID < recs[j].ID
	})
}

var _ Repo = (*MemoryRepo)(nil)
