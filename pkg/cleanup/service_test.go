package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfolio/openfolio/pkg/models"
	"github.com/openfolio/openfolio/pkg/services"
	"github.com/openfolio/openfolio/test/util"
)

func TestService_ExpiresStaleSessions(t *testing.T) {
	db := util.SetupTestDatabase(t)
	sessionService := services.NewChatSessionService(db, nil)
	ctx := context.Background()

	session, err := sessionService.CreateSession(ctx, "visitor-1", "hash-1", "")
	require.NoError(t, err)

	_, err = db.ExecContext(ctx,
		`UPDATE chat_sessions SET expires_at = now() - interval '1 hour' WHERE id = $1`,
		session.ID)
	require.NoError(t, err)

	svc := NewService(DefaultConfig(), sessionService)
	svc.runAll(ctx)

	updated, err := sessionService.FindSessionByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusExpired, updated.Status)
}

func TestService_PrunesOldFinishedSessions(t *testing.T) {
	db := util.SetupTestDatabase(t)
	sessionService := services.NewChatSessionService(db, nil)
	ctx := context.Background()

	old, err := sessionService.CreateSession(ctx, "visitor-old", "hash-old", "")
	require.NoError(t, err)
	_, err = sessionService.AppendMessage(ctx, old.ID, models.MessageRoleUser, "hi", 0, "")
	require.NoError(t, err)
	require.NoError(t, sessionService.EndSession(ctx, old.ID))
	_, err = db.ExecContext(ctx,
		`UPDATE chat_sessions SET last_active_at = now() - interval '40 days' WHERE id = $1`,
		old.ID)
	require.NoError(t, err)

	recent, err := sessionService.CreateSession(ctx, "visitor-recent", "hash-recent", "")
	require.NoError(t, err)
	require.NoError(t, sessionService.EndSession(ctx, recent.ID))

	svc := NewService(Config{SessionRetention: 30 * 24 * time.Hour, Interval: time.Hour}, sessionService)
	svc.runAll(ctx)

	_, err = sessionService.FindSessionByID(ctx, old.ID)
	assert.ErrorIs(t, err, services.ErrNotFound)

	// The cascade removed the pruned session's messages.
	var messages int
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT count(*) FROM chat_messages WHERE session_id = $1`, old.ID).Scan(&messages))
	assert.Zero(t, messages)

	_, err = sessionService.FindSessionByID(ctx, recent.ID)
	assert.NoError(t, err)
}

func TestService_PreservesActiveSessions(t *testing.T) {
	db := util.SetupTestDatabase(t)
	sessionService := services.NewChatSessionService(db, nil)
	ctx := context.Background()

	session, err := sessionService.CreateSession(ctx, "visitor-live", "hash-live", "")
	require.NoError(t, err)

	svc := NewService(DefaultConfig(), sessionService)
	svc.runAll(ctx)

	updated, err := sessionService.FindSessionByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusActive, updated.Status)
}

func TestService_StartStop(t *testing.T) {
	db := util.SetupTestDatabase(t)
	sessionService := services.NewChatSessionService(db, nil)

	svc := NewService(Config{Interval: 10 * time.Millisecond}, sessionService)
	svc.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	svc.Stop()
}
