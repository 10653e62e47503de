package thread

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"pairchat/internal/model"

	_ "github.com/lib/pq"           // Postgres driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

type SQLRepo struct {
	db         *sql.DB
	driverName string
}

func NewSQLRepo(driverName, dataSourceName string) (*SQLRepo, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, err
	}
	if driverName == "sqlite3" {
		// every sqlite connection to ":memory:" is its own database
		db.SetMaxOpenConns(1)
	}
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	r := &SQLRepo{db: db, driverName: driverName}
	if err := r.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return r, nil
}

func (r *SQLRepo) Close() error {
	return r.db.Close()
}

func (r *SQLRepo) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS message_threads (
		thread_id TEXT PRIMARY KEY,
		participant1 BIGINT NOT NULL,
		participant2 BIGINT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		last_activity_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		party_id BIGINT NOT NULL,
		action TEXT NOT NULL,
		thread_id TEXT NOT NULL,
		at TIMESTAMP NOT NULL
	);
	`

	if r.driverName == "postgres" {
		query = strings.ReplaceAll(query, "INTEGER PRIMARY KEY AUTOINCREMENT", "SERIAL PRIMARY KEY")
	}

	_, err := r.db.Exec(query)
	return err
}

// Helper to handle placeholders
func (r *SQLRepo) rebind(query string) string {
	if r.driverName == "postgres" {
		n := strings.Count(query, "?")
		for i := 1; i <= n; i++ {
			query = strings.Replace(query, "?", fmt.Sprintf("$%d", i), 1)
		}
	}
	return query
}

func (r *SQLRepo) GetThread(ctx context.Context, id model.ThreadID) (*model.ThreadRecord, error) {
	var rec model.ThreadRecord
	query := r.rebind("SELECT thread_id, participant1, participant2, created_at, last_activity_at FROM message_threads WHERE thread_id = ?")
	err := r.db.QueryRowContext(ctx, query, string(id)).Scan(&rec.ThreadID, &rec.Participant1, &rec.Participant2, &rec.CreatedAt, &rec.LastActivityAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *SQLRepo) CreateThread(ctx context.Context, rec *model.ThreadRecord) (bool, error) {
	query := r.rebind(`
		INSERT INTO message_threads (thread_id, participant1, participant2, created_at, last_activity_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (thread_id) DO NOTHING
	`)
	res, err := r.db.ExecContext(ctx, query, string(rec.ThreadID), rec.Participant1, rec.Participant2, rec.CreatedAt.UTC(), rec.LastActivityAt.UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *SQLRepo) TouchThread(ctx context.Context, id model.ThreadID, at time.Time) error {
	query := r.rebind("UPDATE message_threads SET last_activity_at = ? WHERE thread_id = ? AND last_activity_at < ?")
	at = at.UTC()
	_, err := r.db.ExecContext(ctx, query, at, string(id), at)
	return err
}

func (r *SQLRepo) RecordAudit(ctx context.Context, entry model.AuditEntry) error {
	query := r.rebind("INSERT INTO audit_log (party_id, action, thread_id, at) VALUES (?, ?, ?, ?)")
	_, err := r.db.ExecContext(ctx, query, entry.PartyID, string(entry.Action), string(entry.ThreadID), entry.At.UTC())
	return err
}

// AuditTrail lists the audit entries of a thread, oldest first.
func (r *SQLRepo) AuditTrail(ctx context.Context, id model.ThreadID) ([]model.AuditEntry, error) {
	query := r.rebind("SELECT party_id, action, thread_id, at FROM audit_log WHERE thread_id = ? ORDER BY id ASC")
	rows, err := r.db.QueryContext(ctx, query, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.Scan(&e.PartyID, &e.Action, &e.ThreadID, &e.At); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
