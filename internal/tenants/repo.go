package tenants

import "context"

// Repo is the read-only tenant directory.
type Repo interface {
	Get(ctx context.Context, id string) (Tenant, error)
	// List returns all tenants ordered by id.
	List(ctx context.Context) ([]Tenant, error)
}
