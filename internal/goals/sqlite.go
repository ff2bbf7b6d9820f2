package goals

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"posto-dashboard/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS goals (
	id TEXT PRIMARY KEY,
	view TEXT NOT NULL,
	category TEXT NOT NULL,
	target REAL NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS goals_view ON goals(view);
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

const (
	monthlyTargetKey = "monthly_target"
	// fixed width so created_at sorts as text
	timeFormat = "2006-01-02T15:04:05.000000000Z07:00"
)

type SQLite struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("goals: create %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("goals: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("goals: migrate %s: %w", path, err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) List(ctx context.Context, view models.View) ([]Goal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, view, category, target, created_at, updated_at FROM goals WHERE view = ? ORDER BY created_at, rowid`,
		string(view))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *SQLite) Get(ctx context.Context, id string) (Goal, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, view, category, target, created_at, updated_at FROM goals WHERE id = ?`, id)
	g, err := scanGoal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Goal{}, ErrNotFound
	}
	return g, err
}

func (s *SQLite) Put(ctx context.Context, g Goal) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO goals (id, view, category, target, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			category = excluded.category,
			target = excluded.target,
			updated_at = excluded.updated_at`,
		g.ID, string(g.View), g.Category, g.Target,
		g.CreatedAt.UTC().Format(timeFormat), g.UpdatedAt.UTC().Format(timeFormat))
	return err
}

func (s *SQLite) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM goals WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) MonthlyTarget(ctx context.Context) (float64, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, monthlyTargetKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("goals: stored monthly target %q: %w", raw, err)
	}
	return v, true, nil
}

func (s *SQLite) SetMonthlyTarget(ctx context.Context, v float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		monthlyTargetKey, strconv.FormatFloat(v, 'f', -1, 64))
	return err
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGoal(row scanner) (Goal, error) {
	var (
		g                    Goal
		view                 string
		createdAt, updatedAt string
	)
	if err := row.Scan(&g.ID, &view, &g.Category, &g.Target, &createdAt, &updatedAt); err != nil {
		return Goal{}, err
	}
	g.View = models.View(view)

	var err error
	if g.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return Goal{}, fmt.Errorf("goals: created_at %q: %w", createdAt, err)
	}
	if g.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return Goal{}, fmt.Errorf("goals: updated_at %q: %w", updatedAt, err)
	}
	return g, nil
}
