// Package postgres provides pgx-backed persistence for diagnostic record
// reads, quest progress, and outbox events.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/quest/internal/domain"
)

// Repository wraps a pgx pool.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RecentByEmail returns up to limit diagnostic records for the email, most
// recent first. The diagnostic table is owned by the assessment platform;
// this service only reads it.
func (r *Repository) RecentByEmail(ctx context.Context, email string, limit int) ([]domain.DiagnosticRecord, error) {
	const query = `SELECT id, full_name, email, whatsapp, subscription_status, profile, created_at
        FROM diagnostic_records WHERE email = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, email, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.DiagnosticRecord
	for rows.Next() {
		record, err := scanDiagnostic(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// ByID returns a single diagnostic record or domain.ErrSessionNotFound.
func (r *Repository) ByID(ctx context.Context, id string) (*domain.DiagnosticRecord, error) {
	const query = `SELECT id, full_name, email, whatsapp, subscription_status, profile, created_at
        FROM diagnostic_records WHERE id = $1`

	record, err := scanDiagnostic(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	return &record, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDiagnostic(row rowScanner) (domain.DiagnosticRecord, error) {
	var record domain.DiagnosticRecord
	var profile []byte
	if err := row.Scan(&record.ID, &record.FullName, &record.Email, &record.Whatsapp,
		&record.SubscriptionStatus, &profile, &record.CreatedAt); err != nil {
		return domain.DiagnosticRecord{}, err
	}
	if len(profile) > 0 {
		var p domain.Profile
		if err := json.Unmarshal(profile, &p); err == nil && !p.Empty() {
			record.Profile = &p
		}
	}
	return record, nil
}

// EnsureSession creates the progress record with revision 0 when absent and
// rotates the stored credential hash either way. A session.started event is
// recorded in the same transaction.
func (r *Repository) EnsureSession(ctx context.Context, sessionID, tokenHash string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const upsert = `INSERT INTO quest_progress (session_id, token_hash, doc, revision, updated_at)
        VALUES ($1, $2, '{}'::jsonb, 0, now())
        ON CONFLICT (session_id) DO UPDATE SET token_hash = EXCLUDED.token_hash, updated_at = now()`

	if _, err := tx.Exec(ctx, upsert, sessionID, tokenHash); err != nil {
		return err
	}

	if err := insertEvent(ctx, tx, sessionID, "session.started", map[string]any{
		"session_id": sessionID,
		"started_at": time.Now().UTC(),
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetProgress reads the progress record for a session.
func (r *Repository) GetProgress(ctx context.Context, sessionID string) (*domain.ProgressRecord, error) {
	const query = `SELECT session_id, token_hash, doc, revision, updated_at
        FROM quest_progress WHERE session_id = $1`

	var record domain.ProgressRecord
	err := r.pool.QueryRow(ctx, query, sessionID).Scan(
		&record.SessionID, &record.TokenHash, &record.Doc, &record.Revision, &record.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	return &record, nil
}

// UpdateProgress commits the document only when expectedRevision still
// matches the stored revision. A stale write returns RevisionConflictError
// carrying the current server state; nothing is modified.
func (r *Repository) UpdateProgress(ctx context.Context, sessionID string, doc json.RawMessage, expectedRevision int64) (*domain.ProgressRecord, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	const cas = `UPDATE quest_progress
        SET doc = $2, revision = revision + 1, updated_at = now()
        WHERE session_id = $1 AND revision = $3
        RETURNING session_id, token_hash, doc, revision, updated_at`

	var record domain.ProgressRecord
	err = tx.QueryRow(ctx, cas, sessionID, doc, expectedRevision).Scan(
		&record.SessionID, &record.TokenHash, &record.Doc, &record.Revision, &record.UpdatedAt)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		// Zero rows: either the session is unknown or the revision is stale.
		current, getErr := r.GetProgress(ctx, sessionID)
		if getErr != nil {
			return nil, getErr
		}
		return nil, &domain.RevisionConflictError{Current: *current}
	}

	if err := insertEvent(ctx, tx, sessionID, "progress.updated", map[string]any{
		"session_id": sessionID,
		"revision":   record.Revision,
		"updated_at": record.UpdatedAt,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &record, nil
}

// AppendEvent records a standalone quest event for asynchronous delivery.
func (r *Repository) AppendEvent(ctx context.Context, sessionID, eventType string, payload any) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := insertEvent(ctx, tx, sessionID, eventType, payload); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const questTopic = "quest_events"

func insertEvent(ctx context.Context, tx pgx.Tx, sessionID, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	const insert = `INSERT INTO outbox (session_id, event_type, topic, payload)
        VALUES ($1, $2, $3, $4)`

	_, err = tx.Exec(ctx, insert, sessionID, eventType, questTopic, body)
	return err
}
