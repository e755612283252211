package audit

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"authcore/internal/audit/domain"
	auditrepo "authcore/internal/audit/repository"
)

type failingRepo struct{ err error }

func (f failingRepo) Create(context.Context, *domain.AuditLog) error { return f.err }
func (f failingRepo) ListByIdentity(context.Context, string, int32, int32) ([]*domain.AuditLog, error) {
	return nil, f.err
}

func TestLogger_LogEvent(t *testing.T) {
	repo := auditrepo.NewMemoryRepository()
	logger := NewLogger(repo, func(context.Context) string { return "192.168.1.1" }, zerolog.Nop())

	logger.LogEvent(context.Background(), "id-1", "login", "session", map[string]string{"session_id": "s1"})

	entries := repo.All()
	require.Len(t, entries, 1)
	e := entries[0]
	require.NotEmpty(t, e.ID)
	require.Equal(t, "id-1", e.IdentityID)
	require.Equal(t, "login", e.Action)
	require.Equal(t, "session", e.Resource)
	require.Equal(t, "192.168.1.1", e.IP)
	require.Equal(t, map[string]string{"session_id": "s1"}, e.Metadata)
	require.False(t, e.CreatedAt.IsZero())
}

func TestLogger_LogEvent_UnknownIP(t *testing.T) {
	repo := auditrepo.NewMemoryRepository()
	NewLogger(repo, nil, zerolog.Nop()).LogEvent(context.Background(), "", "login_failed", "identity", nil)
	NewLogger(repo, func(context.Context) string { return "" }, zerolog.Nop()).LogEvent(context.Background(), "", "login_failed", "identity", nil)

	for _, e := range repo.All() {
		require.Equal(t, "unknown", e.IP)
	}
}

func TestLogger_LogEvent_SurvivesCancelledRequest(t *testing.T) {
	repo := auditrepo.NewMemoryRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	NewLogger(repo, nil, zerolog.Nop()).LogEvent(ctx, "id-1", "logout", "session", nil)
	require.Len(t, repo.All(), 1)
}

func TestLogger_LogEvent_RepoErrorIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(failingRepo{err: errors.New("db down")}, nil, zerolog.New(&buf))

	require.NotPanics(t, func() {
		logger.LogEvent(context.Background(), "id-1", "logout", "session", nil)
	})
	require.Contains(t, buf.String(), "audit write failed")
	require.Contains(t, buf.String(), "db down")
}

func TestLogger_NilSafe(t *testing.T) {
	var l *Logger
	require.NotPanics(t, func() { l.LogEvent(context.Background(), "", "a", "r", nil) })
}

func TestMemoryRepository_ListByIdentity(t *testing.T) {
	repo := auditrepo.NewMemoryRepository()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, &domain.AuditLog{ID: string(rune('a' + i)), IdentityID: "id-1", CreatedAt: base.Add(time.Duration(i) * time.Minute)}))
	}
	require.NoError(t, repo.Create(ctx, &domain.AuditLog{ID: "other", IdentityID: "id-2", CreatedAt: base}))

	got, err := repo.ListByIdentity(ctx, "id-1", 2, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "c", got[0].ID)
	require.Equal(t, "b", got[1].ID)

	got, err = repo.ListByIdentity(ctx, "id-1", 10, 5)
	require.NoError(t, err)
	require.Empty(t, got)
}
