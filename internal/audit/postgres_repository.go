package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the audit table.
const Schema = `
	CREATE TABLE IF NOT EXISTS console_audit_log (
		id          TEXT PRIMARY KEY,
		resource    TEXT NOT NULL,
		record_id   TEXT NOT NULL,
		action      TEXT NOT NULL,
		outcome     TEXT NOT NULL,
		error       TEXT NOT NULL DEFAULT '',
		actor       TEXT NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS console_audit_log_resource_idx
		ON console_audit_log (resource, record_id, occurred_at DESC);
`

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL audit repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// EnsureSchema creates the audit table if it does not exist.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("creating audit schema: %w", err)
	}
	return nil
}

// Record inserts an entry.
func (r *PostgresRepository) Record(ctx context.Context, entry *Entry) error {
	if err := entry.validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO console_audit_log (
			id, resource, record_id, action, outcome, error, actor, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.Resource,
		entry.RecordID,
		entry.Action,
		string(entry.Outcome),
		entry.Error,
		entry.Actor,
		entry.At,
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	return nil
}

// List returns matching entries, newest first.
func (r *PostgresRepository) List(ctx context.Context, opts ListOptions) ([]*Entry, error) {
	query := `
		SELECT id, resource, record_id, action, outcome, error, actor, occurred_at
		FROM console_audit_log
		WHERE ($1 = '' OR resource = $1)
		  AND ($2 = '' OR record_id = $2)
		ORDER BY occurred_at DESC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, opts.Resource, opts.RecordID, opts.limit())
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*Entry, 0)
	for rows.Next() {
		var (
			e       Entry
			outcome string
		)
		if err := rows.Scan(
			&e.ID,
			&e.Resource,
			&e.RecordID,
			&e.Action,
			&outcome,
			&e.Error,
			&e.Actor,
			&e.At,
		); err != nil {
			return nil, err
		}
		e.Outcome = Outcome(outcome)
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
