package records

import (
	"context"
	"database/sql"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/cockroachdb/errors"
)

var recordColumns = []string{
	"id", "tenant_id", "title", "file_path", "link", "summary", "key_messages", "created_at", "processed_at",
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// FindByLink returns the tenant's record for link.
func (r *PGRepo) FindByLink(ctx context.Context, tenantID, link string) (Record, error) {
	const query = `
SELECT id, tenant_id, title, file_path, link, summary, key_messages, created_at, processed_at
FROM document_records
WHERE tenant_id = $1 AND link = $2
LIMIT 1`
	rec, err := scanRecord(r.DB.QueryRowContext(ctx, query, tenantID, link))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

// ListSince returns the tenant's records created at or after since, newest first.
func (r *PGRepo) ListSince(ctx context.Context, tenantID string, since time.Time) ([]Record, error) {
	query, args, err := psql.Select(recordColumns...).
		From("document_records").
		Where(sq.Eq{"tenant_id": tenantID}).
		Where(sq.GtOrEq{"created_at": since}).
		OrderBy("created_at DESC", "id").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build list query")
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Begin opens a staged unit of work. Records are written in one SQL
// transaction on Commit.
func (r *PGRepo) Begin(ctx context.Context, tenantID string) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return newStagedTx(tenantID, r.flush), nil
}

// Delete removes a record by id.
func (r *PGRepo) Delete(ctx context.Context, tenantID, id string) error {
	const query = `DELETE FROM document_records WHERE tenant_id = $1 AND id = $2`
	res, err := r.DB.ExecContext(ctx, query, tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) flush(ctx context.Context, tenantID string, recs []Record) (int, error) {
	const query = `
INSERT INTO document_records (
    id,
    tenant_id,
    title,
    file_path,
    link,
    summary,
    key_messages,
    created_at,
    processed_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (tenant_id, link) DO NOTHING`

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback() }()

	written := 0
	for _, rec := range recs {
		res, err := tx.ExecContext(ctx, query,
			rec.ID,
			tenantID,
			rec.Title,
			rec.FilePath,
			rec.Link,
			rec.Summary,
			joinMessages(rec.KeyMessages),
			rec.CreatedAt,
			rec.ProcessedAt,
		)
		if err != nil {
			return 0, errors.Wrapf(err, "insert record link=%s", rec.Link)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			written += int(n)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit")
	}
	return written, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var title, filePath, summary, keyMessages sql.NullString
	if err := row.Scan(
		&rec.ID,
		&rec.TenantID,
		&title,
		&filePath,
		&rec.Link,
		&summary,
		&keyMessages,
		&rec.CreatedAt,
		&rec.ProcessedAt,
	); err != nil {
		return Record{}, err
	}
	rec.Title = title.String
	rec.FilePath = filePath.String
	rec.Summary = summary.String
	rec.KeyMessages = splitMessages(keyMessages.String)
	return rec, nil
}

// Key messages are stored newline-joined; a message never contains a newline.
func joinMessages(msgs []string) string {
	clean := make([]string, 0, len(msgs))
	for _, m := range msgs {
		clean = append(clean, strings.Join(strings.Fields(m), " "))
	}
	return strings.Join(clean, "\n")
}

func splitMessages(raw string) []string {
	out := []string{}
	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

var _ Repo = (*PGRepo)(nil)
