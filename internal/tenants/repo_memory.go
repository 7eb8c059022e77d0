package tenants

import (
	"context"
	"sort"
	"sync"

	"digest-backend/internal/shared/config"
)

// MemoryRepo is an in-memory tenant directory.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Tenant
}

// NewMemoryRepo constructs a MemoryRepo holding ts.
func NewMemoryRepo(ts ...Tenant) *MemoryRepo {
	r := &MemoryRepo{data: make(map[string]Tenant, len(ts))}
	for _, t := range ts {
		r.data[t.ID] = t
	}
	return r
}

// LoadFile builds a MemoryRepo from a YAML tenants file.
func LoadFile(path string) (*MemoryRepo, error) {
	entries, err := config.LoadTenantsFile(path)
	if err != nil {
		return nil, err
	}
	ts := make([]Tenant, 0, len(entries))
	for _, e := range entries {
		ts = append(ts, Tenant{ID: e.ID, Name: e.Name, FolderScope: e.FolderScope, NotifyEmail: e.NotifyEmail})
	}
	return NewMemoryRepo(ts...), nil
}

// Get returns a tenant by id.
func (r *MemoryRepo) Get(ctx context.Context, id string) (Tenant, error) {
	if err := ctx.Err(); err != nil {
		return Tenant{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.data[id]
	if !ok {
		return Tenant{}, ErrNotFound
	}
	return t, nil
}

// List returns every tenant ordered by id.
func (r *MemoryRepo) List(ctx context.Context) ([]Tenant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Tenant, 0, len(r.data))
	for _, t := range r.data {
		out = append(out, t)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

var _ Repo = (*MemoryRepo)(nil)
