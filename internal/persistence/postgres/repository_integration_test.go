//go:build integration

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/quest/internal/domain"
)

func TestEnsureSessionCreatesAndRotates(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	repo := NewRepository(pool)
	sessionID := uuid.NewString()

	require.NoError(t, repo.EnsureSession(ctx, sessionID, "hash-one"))

	record, err := repo.GetProgress(ctx, sessionID)
	require.NoError(t, err)
	require.Equal(t, int64(0), record.Revision)
	require.Equal(t, "hash-one", record.TokenHash)
	require.JSONEq(t, `{}`, string(record.Doc))

	// Re-login rotates the credential hash but keeps the document.
	_, err = repo.UpdateProgress(ctx, sessionID, json.RawMessage(`{"level":1}`), 0)
	require.NoError(t, err)
	require.NoError(t, repo.EnsureSession(ctx, sessionID, "hash-two"))

	record, err = repo.GetProgress(ctx, sessionID)
	require.NoError(t, err)
	require.Equal(t, "hash-two", record.TokenHash)
	require.Equal(t, int64(1), record.Revision)
	require.JSONEq(t, `{"level":1}`, string(record.Doc))

	var started int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM outbox WHERE session_id = $1 AND event_type = 'session.started'`,
		sessionID).Scan(&started))
	require.Equal(t, 2, started)
}

func TestUpdateProgressCAS(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	repo := NewRepository(pool)
	sessionID := uuid.NewString()
	require.NoError(t, repo.EnsureSession(ctx, sessionID, "hash"))

	record, err := repo.UpdateProgress(ctx, sessionID, json.RawMessage(`{"level":1}`), 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), record.Revision)

	// A stale revision is rejected and the current state comes back.
	_, err = repo.UpdateProgress(ctx, sessionID, json.RawMessage(`{"level":9}`), 0)
	var conflict *domain.RevisionConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, int64(1), conflict.Current.Revision)
	require.JSONEq(t, `{"level":1}`, string(conflict.Current.Doc))

	// The losing write changed nothing.
	record, err = repo.GetProgress(ctx, sessionID)
	require.NoError(t, err)
	require.Equal(t, int64(1), record.Revision)
	require.JSONEq(t, `{"level":1}`, string(record.Doc))

	// Retrying with the fresh revision succeeds.
	record, err = repo.UpdateProgress(ctx, sessionID, json.RawMessage(`{"level":9}`), 1)
	require.NoError(t, err)
	require.Equal(t, int64(2), record.Revision)

	var updates int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM outbox WHERE session_id = $1 AND event_type = 'progress.updated'`,
		sessionID).Scan(&updates))
	require.Equal(t, 2, updates)
}

func TestUpdateProgressUnknownSession(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	repo := NewRepository(pool)
	_, err := repo.UpdateProgress(ctx, uuid.NewString(), json.RawMessage(`{}`), 0)
	require.True(t, errors.Is(err, domain.ErrSessionNotFound))
}

func TestDiagnosticReads(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	repo := NewRepository(pool)
	email := "maria@example.com"
	older := uuid.NewString()
	newer := uuid.NewString()

	seedDiagnostic(t, ctx, pool, older, email, "Maria Silva", "+5511912345678", "active",
		`{"declared_role":"analyst","real_role":"engineer","maturity":"junior","strengths":["sql"],"weaknesses":["visibility"]}`,
		time.Now().Add(-48*time.Hour))
	seedDiagnostic(t, ctx, pool, newer, email, "Maria Silva", "+5511912345678", "active",
		`{"declared_role":"analyst","real_role":"engineer","maturity":"mid","strengths":["sql"],"weaknesses":["visibility"]}`,
		time.Now())

	records, err := repo.RecentByEmail(ctx, email, 5)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, newer, records[0].ID)
	require.NotNil(t, records[0].Profile)
	require.Equal(t, "mid", records[0].Profile.Maturity)

	record, err := repo.ByID(ctx, older)
	require.NoError(t, err)
	require.Equal(t, "junior", record.Profile.Maturity)

	_, err = repo.ByID(ctx, uuid.NewString())
	require.True(t, errors.Is(err, domain.ErrSessionNotFound))
}

func TestAppendEvent(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	repo := NewRepository(pool)
	sessionID := uuid.NewString()
	require.NoError(t, repo.AppendEvent(ctx, sessionID, "proof.scored", map[string]any{"score": 73}))

	var payload []byte
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT payload FROM outbox WHERE session_id = $1 AND event_type = 'proof.scored'`,
		sessionID).Scan(&payload))
	require.JSONEq(t, `{"score":73}`, string(payload))
}

func seedDiagnostic(t *testing.T, ctx context.Context, pool *pgxpool.Pool, id, email, fullName, whatsapp, status, profile string, createdAt time.Time) {
	t.Helper()

	_, err := pool.Exec(ctx, `INSERT INTO diagnostic_records
        (id, full_name, email, whatsapp, subscription_status, profile, created_at)
        VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)`,
		id, fullName, email, whatsapp, status, profile, createdAt)
	require.NoError(t, err)
}

func setupPostgres(t *testing.T, ctx context.Context) (*pgxpool.Pool, func()) {
	t.Helper()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("quest"),
		postgrescontainer.WithUsername("quest"),
		postgrescontainer.WithPassword("quest"),
	)
	require.NoError(t, err)

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	runMigrations(t, ctx, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		_ = pg.Terminate(ctx)
	}
	return pool, cleanup
}

func runMigrations(t *testing.T, ctx context.Context, connStr string) {
	t.Helper()

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	migrationsDir := resolvePath(t, "../../../db/postgres/migrations")
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.up.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, files, "expected at least one migration .up.sql file")

	sort.Strings(files)

	for _, file := range files {
		contents, readErr := os.ReadFile(file)
		require.NoErrorf(t, readErr, "read migration %s", file)

		if _, execErr := pool.Exec(ctx, string(contents)); execErr != nil {
			require.NoErrorf(t, execErr, "execute migration %s", file)
		}
	}
}

func resolvePath(t *testing.T, rel string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), rel)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
