package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"countdown/internal/clock"
	"countdown/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS countdowns (
	id TEXT PRIMARY KEY,
	data TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

// SQLiteStore keeps one JSON document per countdown in a SQLite table.
type SQLiteStore struct {
	db    *sql.DB
	clock clock.Clock
	loc   *time.Location
}

// OpenSQLite opens (creating if needed) the database at path and applies
// the schema. Timestamps come from c.
func OpenSQLite(ctx context.Context, path string, c clock.Clock) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil && !errors.Is(err, os.ErrNotExist) {
		db.Close()
		return nil, fmt.Errorf("chmod db path: %w", err)
	}
	return &SQLiteStore{db: db, clock: c, loc: c.Now().Location()}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.Countdown, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM countdowns WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get countdown: %w", err)
	}
	c, err := decode([]byte(data), s.loc)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]model.Countdown, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM countdowns ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list countdowns: %w", err)
	}
	defer rows.Close()

	out := make([]model.Countdown, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan countdown: %w", err)
		}
		c, err := decode([]byte(data), s.loc)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list countdowns: %w", err)
	}
	sortByCreation(out)
	return out, nil
}

func (s *SQLiteStore) Create(ctx context.Context, c model.Countdown) (model.Countdown, error) {
	created, err := prepareCreate(c, s.clock.Now())
	if err != nil {
		return model.Countdown{}, err
	}
	data, err := encode(created, s.loc)
	if err != nil {
		return model.Countdown{}, err
	}
	if created, err = decode(data, s.loc); err != nil {
		return model.Countdown{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO countdowns(id, data, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		created.ID, string(data), clock.Format(created.CreatedAt.In(s.loc)), clock.Format(created.UpdatedAt.In(s.loc)))
	if err != nil {
		return model.Countdown{}, fmt.Errorf("insert countdown: %w", err)
	}
	return created, nil
}

// Update applies patch inside a transaction and returns the stored result.
func (s *SQLiteStore) Update(ctx context.Context, id string, patch Patch) (*model.Countdown, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	var data string
	err = tx.QueryRowContext(ctx, `SELECT data FROM countdowns WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load countdown: %w", err)
	}
	current, err := decode([]byte(data), s.loc)
	if err != nil {
		return nil, err
	}

	updated := patch.Apply(current)
	updated.UpdatedAt = s.clock.Now()
	if err := Validate(updated); err != nil {
		return nil, err
	}
	encoded, err := encode(updated, s.loc)
	if err != nil {
		return nil, err
	}
	if updated, err = decode(encoded, s.loc); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE countdowns SET data = ?, updated_at = ? WHERE id = ?`,
		string(encoded), clock.Format(updated.UpdatedAt.In(s.loc)), id); err != nil {
		return nil, fmt.Errorf("update countdown: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return &updated, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM countdowns WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete countdown: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete countdown: %w", err)
	}
	return n > 0, nil
}
