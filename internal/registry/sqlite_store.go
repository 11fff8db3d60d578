package registry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/designforge/mimicry/internal/errors"
	"github.com/designforge/mimicry/internal/types"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS components (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	filename   TEXT NOT NULL UNIQUE,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL DEFAULT 0,
	prompt     TEXT NOT NULL DEFAULT '',
	thread_id  TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS registry_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

const (
	metaActive      = "active_component"
	metaLastUpdated = "last_updated"
)

// SQLiteStore keeps the registry index in SQLite. Index updates are
// transactional; sources stay files in the components directory.
type SQLiteStore struct {
	broadcaster
	sources sourceDir
	db      *sql.DB
	opts    options
}

// NewSQLiteStore opens the database at dbPath (":memory:" for tests).
func NewSQLiteStore(dir, dbPath string, opts ...Option) (*SQLiteStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.WrapIO(err, "MKDIR", "cannot create components directory")
	}

	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}

	return &SQLiteStore{
		sources: sourceDir{dir: dir},
		db:      db,
		opts:    o,
	}, nil
}

// openDB opens SQLite with WAL, a busy timeout and the registry schema.
func openDB(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.WrapIO(err, "MKDIR", "cannot create database directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.WrapIO(err, "DB_OPEN", "cannot open registry database")
	}
	if path == ":memory:" {
		// each connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, errors.WrapIO(err, "DB_PRAGMA", p)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, errors.WrapIO(err, "DB_SCHEMA", "cannot apply registry schema")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.WrapIO(err, "DB_PING", "registry database unreachable")
	}
	return db, nil
}

func (s *SQLiteStore) Dir() string { return s.sources.dir }

func (s *SQLiteStore) Close() error {
	s.closeAll()
	return s.db.Close()
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const selectColumns = `SELECT id, name, filename, created_at, updated_at, prompt, thread_id FROM components`

func scanEntry(scan func(dest ...any) error) (types.ComponentEntry, error) {
	var (
		e                types.ComponentEntry
		created, updated int64
	)
	if err := scan(&e.ID, &e.Name, &e.Filename, &created, &updated, &e.Prompt, &e.ThreadID); err != nil {
		return e, err
	}
	e.CreatedAt = time.UnixMilli(created).UTC()
	if updated != 0 {
		e.UpdatedAt = time.UnixMilli(updated).UTC()
	}
	return e, nil
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func (s *SQLiteStore) Load(ctx context.Context) (*types.Registry, error) {
	return loadRegistry(ctx, s.db)
}

func loadRegistry(ctx context.Context, q querier) (*types.Registry, error) {
	rows, err := q.QueryContext(ctx, selectColumns+` ORDER BY seq`)
	if err != nil {
		return nil, errors.WrapIO(err, "REGISTRY_READ", "cannot query registry")
	}
	defer rows.Close()

	reg := &types.Registry{Components: []types.ComponentEntry{}}
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, errors.WrapIO(err, "REGISTRY_READ", "cannot scan registry row")
		}
		reg.Components = append(reg.Components, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapIO(err, "REGISTRY_READ", "cannot read registry")
	}

	if active, ok, err := getMeta(ctx, q, metaActive); err != nil {
		return nil, err
	} else if ok && active != "" {
		reg.ActiveComponent = &active
	}
	if last, ok, err := getMeta(ctx, q, metaLastUpdated); err != nil {
		return nil, err
	} else if ok {
		if t, perr := time.Parse(time.RFC3339Nano, last); perr == nil {
			reg.LastUpdated = t
		}
	}
	return reg, nil
}

func getMeta(ctx context.Context, q querier, key string) (string, bool, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT value FROM registry_meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.WrapIO(err, "REGISTRY_READ", "cannot read registry metadata")
	}
	return value, true, nil
}

func setMeta(ctx context.Context, q querier, key, value string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO registry_meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return errors.WrapIO(err, "REGISTRY_WRITE", "cannot write registry metadata")
	}
	return nil
}

func getEntry(ctx context.Context, q querier, where string, arg any) (*types.ComponentEntry, error) {
	row := q.QueryRowContext(ctx, selectColumns+` WHERE `+where, arg)
	e, err := scanEntry(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapIO(err, "REGISTRY_READ", "cannot read component")
	}
	return &e, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*types.ComponentEntry, error) {
	e, err := getEntry(ctx, s.db, `id = ?`, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, notFound(id)
	}
	return e, nil
}

// withTx runs fn in a transaction, committing when it returns nil.
func (s *SQLiteStore) withTx(ctx context.Context, now time.Time, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WrapIO(err, "TX_BEGIN", "cannot begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	if err := setMeta(ctx, tx, metaLastUpdated, now.UTC().Format(time.RFC3339Nano)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.WrapIO(err, "TX_COMMIT", "cannot commit registry change")
	}
	return nil
}

func (s *SQLiteStore) Create(ctx context.Context, nc types.NewComponent) (*types.ComponentEntry, error) {
	if err := validateNew(nc); err != nil {
		return nil, err
	}

	now := s.opts.now()
	filename := SanitizeFilename(nc.Name)
	if err := s.sources.write(filename, nc.Code); err != nil {
		return nil, err
	}

	var (
		result    types.ComponentEntry
		eventType = types.EventTypeAdded
	)
	err := s.withTx(ctx, now, func(tx *sql.Tx) error {
		existing, err := getEntry(ctx, tx, `filename = ?`, filename)
		if err != nil {
			return err
		}

		if existing != nil {
			eventType = types.EventTypeUpdated
			result = *existing
			result.Name = strings.TrimSpace(nc.Name)
			result.UpdatedAt = now
			if nc.Prompt != "" {
				result.Prompt = nc.Prompt
			}
			if nc.ThreadID != "" {
				result.ThreadID = nc.ThreadID
			}
			if err := updateRow(ctx, tx, result); err != nil {
				return err
			}
		} else {
			result = types.ComponentEntry{
				ID:        NewID(now),
				Name:      strings.TrimSpace(nc.Name),
				Filename:  filename,
				CreatedAt: now,
				Prompt:    nc.Prompt,
				ThreadID:  nc.ThreadID,
			}
			if err := insertRow(ctx, tx, result); err != nil {
				return err
			}
		}
		return setMeta(ctx, tx, metaActive, result.ID)
	})
	if err != nil {
		return nil, err
	}

	s.opts.logger.Info(ctx, "Component saved", "id", result.ID, "filename", filename, "event", string(eventType))
	s.emit(eventType, &result, now)
	return &result, nil
}

func insertRow(ctx context.Context, q querier, e types.ComponentEntry) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO components (id, name, filename, created_at, updated_at, prompt, thread_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Name, e.Filename, millis(e.CreatedAt), millis(e.UpdatedAt), e.Prompt, e.ThreadID)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return errors.NewValidationError("DUPLICATE", fmt.Sprintf("component %s (%s) already registered", e.ID, e.Filename))
		}
		return errors.WrapIO(err, "REGISTRY_WRITE", "cannot insert component")
	}
	return nil
}

func updateRow(ctx context.Context, q querier, e types.ComponentEntry) error {
	_, err := q.ExecContext(ctx,
		`UPDATE components SET name = ?, filename = ?, updated_at = ?, prompt = ?, thread_id = ? WHERE id = ?`,
		e.Name, e.Filename, millis(e.UpdatedAt), e.Prompt, e.ThreadID, e.ID)
	if err != nil {
		return errors.WrapIO(err, "REGISTRY_WRITE", "cannot update component")
	}
	return nil
}

func (s *SQLiteStore) Update(ctx context.Context, id string, patch types.ComponentPatch) (*types.ComponentEntry, error) {
	now := s.opts.now()

	var (
		result      types.ComponentEntry
		oldFilename string
	)
	err := s.withTx(ctx, now, func(tx *sql.Tx) error {
		entry, err := getEntry(ctx, tx, `id = ?`, id)
		if err != nil {
			return err
		}
		if entry == nil {
			return notFound(id)
		}

		var takenErr error
		oldFilename, err = applyPatch(entry, patch, now, func(filename string) bool {
			other, err := getEntry(ctx, tx, `filename = ?`, filename)
			if err != nil {
				takenErr = err
				return true
			}
			return other != nil && other.ID != id
		})
		if takenErr != nil {
			return takenErr
		}
		if err != nil {
			return err
		}

		if err := writePatched(s.sources, entry.Filename, oldFilename, patch); err != nil {
			return err
		}
		result = *entry
		return updateRow(ctx, tx, result)
	})
	if err != nil {
		return nil, err
	}

	if oldFilename != result.Filename {
		if err := s.sources.remove(oldFilename); err != nil {
			s.opts.logger.Warn(ctx, err, "Stale source left behind", "filename", oldFilename)
		}
	}

	s.emit(types.EventTypeUpdated, &result, now)
	return &result, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	now := s.opts.now()

	var removed types.ComponentEntry
	err := s.withTx(ctx, now, func(tx *sql.Tx) error {
		entry, err := getEntry(ctx, tx, `id = ?`, id)
		if err != nil {
			return err
		}
		if entry == nil {
			return notFound(id)
		}
		removed = *entry

		if _, err := tx.ExecContext(ctx, `DELETE FROM components WHERE id = ?`, id); err != nil {
			return errors.WrapIO(err, "REGISTRY_WRITE", "cannot delete component")
		}

		active, _, err := getMeta(ctx, tx, metaActive)
		if err != nil {
			return err
		}
		if active == id {
			var next string
			err := tx.QueryRowContext(ctx, `SELECT id FROM components ORDER BY seq DESC LIMIT 1`).Scan(&next)
			if err != nil && err != sql.ErrNoRows {
				return errors.WrapIO(err, "REGISTRY_READ", "cannot pick next active component")
			}
			return setMeta(ctx, tx, metaActive, next)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.sources.remove(removed.Filename); err != nil {
		s.opts.logger.Warn(ctx, err, "Source not removed", "filename", removed.Filename)
	}
	s.emit(types.EventTypeRemoved, &removed, now)
	return nil
}

func (s *SQLiteStore) Register(ctx context.Context, entry types.ComponentEntry) error {
	now := s.opts.now()
	err := s.withTx(ctx, now, func(tx *sql.Tx) error {
		return insertRow(ctx, tx, entry)
	})
	if err != nil {
		return err
	}
	s.emit(types.EventTypeAdded, &entry, now)
	return nil
}

func (s *SQLiteStore) SetActive(ctx context.Context, id string) error {
	now := s.opts.now()

	var entry *types.ComponentEntry
	err := s.withTx(ctx, now, func(tx *sql.Tx) error {
		if id != "" {
			found, err := getEntry(ctx, tx, `id = ?`, id)
			if err != nil {
				return err
			}
			if found == nil {
				return notFound(id)
			}
			entry = found
		}
		return setMeta(ctx, tx, metaActive, id)
	})
	if err != nil {
		return err
	}

	s.emit(types.EventTypeActive, entry, now)
	return nil
}

func (s *SQLiteStore) ReadSource(ctx context.Context, filename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.sources.read(filename)
}
