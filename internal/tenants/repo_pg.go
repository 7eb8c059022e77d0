package tenants

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
)

// PGRepo reads tenants from Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Get returns a tenant by id.
func (r *PGRepo) Get(ctx context.Context, id string) (Tenant, error) {
	const query = `
SELECT id, name, folder_scope, notify_email
FROM tenants
WHERE id = $1`
	t, err := scanTenant(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Tenant{}, ErrNotFound
		}
		return Tenant{}, err
	}
	return t, nil
}

// List returns every tenant ordered by id.
func (r *PGRepo) List(ctx context.Context) ([]Tenant, error) {
	const query = `
SELECT id, name, folder_scope, notify_email
FROM tenants
ORDER BY id`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Tenant{}
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTenant(row rowScanner) (Tenant, error) {
	var t Tenant
	var name, folder, email sql.NullString
	if err := row.Scan(&t.ID, &name, &folder, &email); err != nil {
		return Tenant{}, err
	}
	t.Name = name.String
	if t.Name == "" {
		t.Name = t.ID
	}
	t.FolderScope = folder.String
	t.NotifyEmail = email.String
	return t, nil
}

var _ Repo = (*PGRepo)(nil)
