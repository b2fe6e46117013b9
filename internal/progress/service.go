// Package progress implements the credentialed, optimistically concurrent
// quest progress store. There is no locking: concurrent writers race at the
// final compare-and-swap, and the loser receives the fresh server state for a
// merge-and-retry round instead of a lost update.
package progress

import (
	"context"
	"encoding/json"
	"errors"

	"example.com/quest/internal/domain"
	"example.com/quest/internal/observability"
)

// ErrUnauthorized covers both an unknown session and a credential hash
// mismatch; the store never distinguishes them to the caller.
var ErrUnauthorized = errors.New("progress access unauthorized")

// Store captures the persistence operations the service needs.
type Store interface {
	GetProgress(ctx context.Context, sessionID string) (*domain.ProgressRecord, error)
	UpdateProgress(ctx context.Context, sessionID string, doc json.RawMessage, expectedRevision int64) (*domain.ProgressRecord, error)
}

// Service gates progress reads and writes behind the session credential.
type Service struct {
	store Store
}

// NewService constructs a Service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// authorize loads the record and verifies the presented credential against
// the stored hash.
func (s *Service) authorize(ctx context.Context, sessionID, credential string) (*domain.ProgressRecord, error) {
	record, err := s.store.GetProgress(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if !domain.VerifyCredential(record.TokenHash, credential) {
		return nil, ErrUnauthorized
	}
	return record, nil
}

// Read returns the current progress document and revision.
func (s *Service) Read(ctx context.Context, sessionID, credential string) (*domain.ProgressRecord, error) {
	return s.authorize(ctx, sessionID, credential)
}

// Write commits doc when expectedRevision matches the stored revision. On a
// stale revision it returns domain.RevisionConflictError with the current
// server state attached.
func (s *Service) Write(ctx context.Context, sessionID, credential string, doc json.RawMessage, expectedRevision int64) (*domain.ProgressRecord, error) {
	if _, err := s.authorize(ctx, sessionID, credential); err != nil {
		return nil, err
	}

	record, err := s.store.UpdateProgress(ctx, sessionID, doc, expectedRevision)
	if err != nil {
		var conflict *domain.RevisionConflictError
		if errors.As(err, &conflict) {
			observability.RecordProgressConflict()
		}
		return nil, err
	}
	return record, nil
}
