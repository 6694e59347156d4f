package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/loykin/herdsman/internal/history"
)

// Sink appends transition events to a SQLite table (modernc.org/sqlite
// driver, CGO-free). Path is a database file path; ":memory:" works for
// tests.
type Sink struct {
	db *sql.DB
}

func New(path string) (*Sink, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}
	d, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	_, _ = d.Exec("PRAGMA busy_timeout=3000;")
	s := &Sink{db: d}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = d.Close()
		return nil, err
	}
	return s, nil
}

func (s *Sink) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS profile_history(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			type TEXT NOT NULL,
			occurred_at TIMESTAMP NOT NULL,
			key TEXT NOT NULL,
			name TEXT NOT NULL,
			pid INTEGER NOT NULL,
			old_pid INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_profile_history_key ON profile_history(key);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profile_history(type, occurred_at, key, name, pid, old_pid)
		VALUES(?, ?, ?, ?, ?, ?);`,
		string(e.Type), e.OccurredAt.UTC(), e.Key, e.Name, e.PID, e.OldPID)
	return err
}

func (s *Sink) Close() error { return s.db.Close() }

// Count reports stored events, optionally filtered by profile key.
func (s *Sink) Count(ctx context.Context, key string) (int, error) {
	q := `SELECT COUNT(*) FROM profile_history;`
	args := []any{}
	if key != "" {
		q = `SELECT COUNT(*) FROM profile_history WHERE key = ?;`
		args = append(args, key)
	}
	var n int
	err := s.db.QueryRowContext(ctx, q, args...).Scan(&n)
	return n, err
}
