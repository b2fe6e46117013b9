// Package eligibility authenticates quest participants against their
// completed diagnostic record and issues session credentials.
package eligibility

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"example.com/quest/internal/domain"
	"example.com/quest/internal/observability"
)

var (
	// ErrNoMatch means no diagnostic record matched the supplied identity.
	ErrNoMatch = errors.New("no matching diagnostic record")
	// ErrNotEligible means the identity matched but the record does not
	// unlock the quest (inactive subscription or empty profile).
	ErrNotEligible = errors.New("diagnostic record not eligible")
	// ErrLocked means the (address, email) pair is throttled.
	ErrLocked = errors.New("too many failed attempts")
)

// candidateLimit bounds the diagnostic records examined per login.
const candidateLimit = 5

// DiagnosticSource reads diagnostic records owned by the assessment platform.
type DiagnosticSource interface {
	// RecentByEmail returns up to limit records, most recent first.
	RecentByEmail(ctx context.Context, email string, limit int) ([]domain.DiagnosticRecord, error)
	// ByID returns a single record or domain.ErrSessionNotFound.
	ByID(ctx context.Context, id string) (*domain.DiagnosticRecord, error)
}

// SessionStore persists session credential hashes against progress records.
type SessionStore interface {
	// EnsureSession creates the progress record with revision 0 when absent
	// and stores the new credential hash either way.
	EnsureSession(ctx context.Context, sessionID, tokenHash string) error
}

// Gate matches participants to diagnostic records and issues credentials.
type Gate struct {
	source   DiagnosticSource
	sessions SessionStore
	lockout  *Lockout
	logger   *zap.Logger
}

// NewGate builds a Gate.
func NewGate(source DiagnosticSource, sessions SessionStore, lockout *Lockout, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{source: source, sessions: sessions, lockout: lockout, logger: logger}
}

// LoginResult is returned once per successful login. Credential is never
// retrievable again.
type LoginResult struct {
	SessionID  string
	Credential string
	Profile    domain.Profile
}

// Login authenticates the supplied identity. clientAddr participates in the
// brute-force throttle key only.
func (g *Gate) Login(ctx context.Context, clientAddr, email, phone, fullName string) (*LoginResult, error) {
	if g.lockout.Locked(clientAddr, email) {
		observability.RecordLogin("locked")
		return nil, ErrLocked
	}

	records, err := g.source.RecentByEmail(ctx, email, candidateLimit)
	if err != nil {
		return nil, err
	}

	record, found := matchIdentity(records, fullName, phone)
	if !found {
		g.lockout.Fail(clientAddr, email)
		observability.RecordLogin("no_match")
		g.logger.Info("login rejected", zap.String("reason", "no_match"))
		return nil, ErrNoMatch
	}

	if !record.Eligible() {
		observability.RecordLogin("not_eligible")
		g.logger.Info("login rejected",
			zap.String("reason", "not_eligible"),
			zap.String("session_id", record.ID))
		return nil, ErrNotEligible
	}

	credential := domain.NewCredential()
	if err := g.sessions.EnsureSession(ctx, record.ID, domain.HashCredential(credential)); err != nil {
		return nil, err
	}

	g.lockout.Clear(clientAddr, email)
	observability.RecordLogin("success")
	g.logger.Info("login accepted", zap.String("session_id", record.ID))

	return &LoginResult{
		SessionID:  record.ID,
		Credential: credential,
		Profile:    *record.Profile,
	}, nil
}

// matchIdentity returns the first candidate whose normalized full name and
// phone both match.
func matchIdentity(records []domain.DiagnosticRecord, fullName, phone string) (domain.DiagnosticRecord, bool) {
	wantName := normalizeName(fullName)
	if wantName == "" {
		return domain.DiagnosticRecord{}, false
	}
	for _, record := range records {
		if normalizeName(record.FullName) == wantName && phonesMatch(record.Whatsapp, phone) {
			return record, true
		}
	}
	return domain.DiagnosticRecord{}, false
}

// Recheck re-validates eligibility against the live diagnostic record. Used
// by the coaching endpoint, which must reflect the current subscription state
// rather than the snapshot taken at login.
func (g *Gate) Recheck(ctx context.Context, sessionID string) (*domain.DiagnosticRecord, error) {
	record, err := g.source.ByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !record.Eligible() {
		return nil, ErrNotEligible
	}
	return record, nil
}
