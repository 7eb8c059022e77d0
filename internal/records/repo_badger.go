package records

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"go.uber.org/zap"

	"digest-backend/internal/shared/telemetry"
	"digest-backend/internal/shared/util"
)

// BadgerRepo implements Repo on an embedded Badger database.
//
// Layout:
//
//	rec/<tenant hash>/<record id>   -> JSON record
//	link/<tenant hash>/<link hash>  -> record id
type BadgerRepo struct {
	db *badger.DB
}

type badgerLogger struct {
	log *zap.SugaredLogger
}

func (l badgerLogger) Errorf(msg string, args ...any)   { l.log.Errorf(msg, args...) }
func (l badgerLogger) Warningf(msg string, args ...any) { l.log.Warnf(msg, args...) }
func (l badgerLogger) Infof(msg string, args ...any)    { l.log.Debugf(msg, args...) }
func (l badgerLogger) Debugf(msg string, args ...any)   { l.log.Debugf(msg, args...) }

var _ badger.Logger = badgerLogger{}

// OpenBadger opens (or creates) a Badger database in dir. An empty dir
// opens an in-memory database.
func OpenBadger(dir string) (*BadgerRepo, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "create badger dir")
		}
		opts = badger.DefaultOptions(dir)
	}
	opts.Logger = badgerLogger{log: telemetry.Named("badger")}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "open badger")
	}
	return &BadgerRepo{db: db}, nil
}

// Close closes the underlying database.
func (r *BadgerRepo) Close() error {
	return r.db.Close()
}

// FindByLink returns the tenant's record for link.
func (r *BadgerRepo) FindByLink(ctx context.Context, tenantID, link string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	var rec Record
	err := r.db.View(func(txn *badger.Txn) error {
		id, err := getValue(txn, linkKey(tenantID, link))
		if err != nil {
			return err
		}
		raw, err := getValue(txn, recordKey(tenantID, string(id)))
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, &rec)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// ListSince returns the tenant's records created at or after since, newest first.
func (r *BadgerRepo) ListSince(ctx context.Context, tenantID string, since time.Time) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := []Record{}
	prefix := recordPrefix(tenantID)
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec Record
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			if !rec.CreatedAt.Before(since) {
				out = append(out, rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortNewestFirst(out)
	return out, nil
}

// Begin opens a staged unit of work. Records are written in one Badger
// transaction on Commit.
func (r *BadgerRepo) Begin(ctx context.Context, tenantID string) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return newStagedTx(tenantID, r.flush), nil
}

// Delete removes a record and its link index entry.
func (r *BadgerRepo) Delete(ctx context.Context, tenantID, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := r.db.Update(func(txn *badger.Txn) error {
		raw, err := getValue(txn, recordKey(tenantID, id))
		if err != nil {
			return err
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return err
		}
		if err := txn.Delete(recordKey(tenantID, id)); err != nil {
			return err
		}
		return txn.Delete(linkKey(tenantID, rec.Link))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	return err
}

func (r *BadgerRepo) flush(ctx context.Context, tenantID string, recs []Record) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	written := 0
	err := r.db.Update(func(txn *badger.Txn) error {
		written = 0
		for _, rec := range recs {
			lk := linkKey(tenantID, rec.Link)
			if _, err := txn.Get(lk); err == nil {
				continue
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			rec.TenantID = tenantID
			raw, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if err := txn.Set(recordKey(tenantID, rec.ID), raw); err != nil {
				return err
			}
			if err := txn.Set(lk, []byte(rec.ID)); err != nil {
				return err
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "badger commit")
	}
	return written, nil
}

func getValue(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func recordPrefix(tenantID string) []byte {
	return []byte("rec/" + util.HashKey(tenantID) + "/")
}

func recordKey(tenantID, id string) []byte {
	return append(recordPrefix(tenantID), id...)
}

func linkKey(tenantID, link string) []byte {
	return []byte("link/" + util.HashKey(tenantID) + "/" + util.HashKey(link))
}

var _ Repo = (*BadgerRepo)(nil)
