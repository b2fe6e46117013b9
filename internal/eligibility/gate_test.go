package eligibility

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/quest/internal/domain"
)

type stubSource struct {
	records []domain.DiagnosticRecord
}

func (s *stubSource) RecentByEmail(_ context.Context, email string, limit int) ([]domain.DiagnosticRecord, error) {
	out := make([]domain.DiagnosticRecord, 0, limit)
	for _, r := range s.records {
		if r.Email == email && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *stubSource) ByID(_ context.Context, id string) (*domain.DiagnosticRecord, error) {
	for _, r := range s.records {
		if r.ID == id {
			record := r
			return &record, nil
		}
	}
	return nil, domain.ErrSessionNotFound
}

type stubSessions struct {
	sessions map[string]string
}

func (s *stubSessions) EnsureSession(_ context.Context, sessionID, tokenHash string) error {
	if s.sessions == nil {
		s.sessions = make(map[string]string)
	}
	s.sessions[sessionID] = tokenHash
	return nil
}

func activeRecord() domain.DiagnosticRecord {
	return domain.DiagnosticRecord{
		ID:                 "diag-1",
		FullName:           "José da Silva",
		Email:              "jose@example.com",
		Whatsapp:           "+55 (11) 91234-5678",
		SubscriptionStatus: domain.SubscriptionActive,
		Profile: &domain.Profile{
			DeclaredRole: "analyst",
			RealRole:     "generalist",
			Maturity:     "early",
			Strengths:    []string{"communication"},
			Weaknesses:   []string{"networking"},
			FinalActions: []string{"publish a portfolio"},
		},
		CreatedAt: time.Now().UTC(),
	}
}

func newGate(source DiagnosticSource, sessions SessionStore) *Gate {
	return NewGate(source, sessions, NewLockout(5, 15*time.Minute), nil)
}

func TestLoginMatchesNormalizedIdentity(t *testing.T) {
	sessions := &stubSessions{}
	gate := newGate(&stubSource{records: []domain.DiagnosticRecord{activeRecord()}}, sessions)

	// Name without diacritics, uppercase, extra spaces; phone without country code.
	result, err := gate.Login(context.Background(), "1.2.3.4", "jose@example.com", "1191234-5678", "  JOSE   DA  SILVA ")
	require.NoError(t, err)
	require.Equal(t, "diag-1", result.SessionID)
	require.Len(t, result.Credential, 64)
	require.Equal(t, []string{"publish a portfolio"}, result.Profile.FinalActions)

	// Only the hash is persisted.
	require.Equal(t, domain.HashCredential(result.Credential), sessions.sessions["diag-1"])
}

func TestLoginPhoneLast8Fallback(t *testing.T) {
	gate := newGate(&stubSource{records: []domain.DiagnosticRecord{activeRecord()}}, &stubSessions{})

	_, err := gate.Login(context.Background(), "1.2.3.4", "jose@example.com", "005511991234567", "jose da silva")
	require.ErrorIs(t, err, ErrNoMatch)

	result, err := gate.Login(context.Background(), "1.2.3.4", "jose@example.com", "91234 5678", "jose da silva")
	require.NoError(t, err)
	require.Equal(t, "diag-1", result.SessionID)
}

func TestLoginRejectsWrongName(t *testing.T) {
	gate := newGate(&stubSource{records: []domain.DiagnosticRecord{activeRecord()}}, &stubSessions{})

	_, err := gate.Login(context.Background(), "1.2.3.4", "jose@example.com", "11912345678", "maria souza")
	require.ErrorIs(t, err, ErrNoMatch)
}

func TestLoginDistinguishesIneligible(t *testing.T) {
	record := activeRecord()
	record.SubscriptionStatus = "canceled"
	gate := newGate(&stubSource{records: []domain.DiagnosticRecord{record}}, &stubSessions{})

	_, err := gate.Login(context.Background(), "1.2.3.4", "jose@example.com", "11912345678", "jose da silva")
	require.ErrorIs(t, err, ErrNotEligible)

	record = activeRecord()
	record.Profile = nil
	gate = newGate(&stubSource{records: []domain.DiagnosticRecord{record}}, &stubSessions{})

	_, err = gate.Login(context.Background(), "1.2.3.4", "jose@example.com", "11912345678", "jose da silva")
	require.ErrorIs(t, err, ErrNotEligible)
}

func TestLoginPicksFirstMatchingCandidate(t *testing.T) {
	older := activeRecord()
	older.ID = "diag-older"
	newest := activeRecord()
	newest.ID = "diag-newest"

	gate := newGate(&stubSource{records: []domain.DiagnosticRecord{newest, older}}, &stubSessions{})

	result, err := gate.Login(context.Background(), "1.2.3.4", "jose@example.com", "11912345678", "jose da silva")
	require.NoError(t, err)
	require.Equal(t, "diag-newest", result.SessionID)
}

func TestLoginLockoutAfterFiveFailures(t *testing.T) {
	lockout := NewLockout(5, 15*time.Minute)
	now := time.Now()
	lockout.now = func() time.Time { return now }

	gate := NewGate(&stubSource{records: []domain.DiagnosticRecord{activeRecord()}}, &stubSessions{}, lockout, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := gate.Login(ctx, "9.9.9.9", "jose@example.com", "000", "wrong name")
		require.ErrorIs(t, err, ErrNoMatch)
	}

	// Sixth attempt is rejected before any matching work, even with correct identity.
	_, err := gate.Login(ctx, "9.9.9.9", "jose@example.com", "11912345678", "jose da silva")
	require.ErrorIs(t, err, ErrLocked)

	// A different client address is unaffected.
	_, err = gate.Login(ctx, "8.8.8.8", "jose@example.com", "11912345678", "jose da silva")
	require.NoError(t, err)

	// The lock expires after the window.
	now = now.Add(15*time.Minute + time.Second)
	_, err = gate.Login(ctx, "9.9.9.9", "jose@example.com", "11912345678", "jose da silva")
	require.NoError(t, err)
}

func TestLoginSuccessResetsFailureCounter(t *testing.T) {
	gate := newGate(&stubSource{records: []domain.DiagnosticRecord{activeRecord()}}, &stubSessions{})
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := gate.Login(ctx, "9.9.9.9", "jose@example.com", "000", "wrong name")
		require.ErrorIs(t, err, ErrNoMatch)
	}
	_, err := gate.Login(ctx, "9.9.9.9", "jose@example.com", "11912345678", "jose da silva")
	require.NoError(t, err)

	// Counter starts over: four more failures still do not lock.
	for i := 0; i < 4; i++ {
		_, err := gate.Login(ctx, "9.9.9.9", "jose@example.com", "000", "wrong name")
		require.ErrorIs(t, err, ErrNoMatch)
	}
	_, err = gate.Login(ctx, "9.9.9.9", "jose@example.com", "11912345678", "jose da silva")
	require.NoError(t, err)
}

func TestRecheckReflectsCurrentSubscription(t *testing.T) {
	source := &stubSource{records: []domain.DiagnosticRecord{activeRecord()}}
	gate := newGate(source, &stubSessions{})

	record, err := gate.Recheck(context.Background(), "diag-1")
	require.NoError(t, err)
	require.Equal(t, "diag-1", record.ID)

	source.records[0].SubscriptionStatus = "canceled"
	_, err = gate.Recheck(context.Background(), "diag-1")
	require.ErrorIs(t, err, ErrNotEligible)
}

func TestNormalizeName(t *testing.T) {
	require.Equal(t, "jose da silva", normalizeName(" José   DA\tSilva "))
	require.Equal(t, "francois muller", normalizeName("François Müller"))
	require.Equal(t, "", normalizeName("   "))
}

func TestPhonesMatch(t *testing.T) {
	require.True(t, phonesMatch("+55 11 91234-5678", "5511912345678"))
	require.True(t, phonesMatch("11912345678", "91234-5678"))
	require.False(t, phonesMatch("11912345678", "91234-0000"))
	require.False(t, phonesMatch("", "91234-5678"))
	require.False(t, phonesMatch("1234567", "7654321"))
}
