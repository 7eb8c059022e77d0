package records

import (
	"context"
	"time"
)

// Repo persists records. Every call is partitioned by tenant id.
type Repo interface {
	// FindByLink returns ErrNotFound when the tenant has no record for link.
	FindByLink(ctx context.Context, tenantID, link string) (Record, error)
	// ListSince returns records with CreatedAt >= since, newest first.
	ListSince(ctx context.Context, tenantID string, since time.Time) ([]Record, error)
	// Begin opens a unit of work for one tenant.
	Begin(ctx context.Context, tenantID string) (Tx, error)
	Delete(ctx context.Context, tenantID, id string) error
}

// Tx stages records for one tenant. Nothing is visible until Commit.
type Tx interface {
	Insert(ctx context.Context, rec Record) error
	// Commit persists staged records and returns how many were written.
	// A (tenant, link) pair that already exists is skipped.
	Commit(ctx context.Context) (int, error)
	// Rollback discards staged records. It is a no-op after Commit.
	Rollback(ctx context.Context) error
}
