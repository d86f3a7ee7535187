package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/openfolio/openfolio/pkg/events"
	"github.com/openfolio/openfolio/pkg/ids"
	"github.com/openfolio/openfolio/pkg/models"
	"github.com/openfolio/openfolio/pkg/validation"
)

// SessionTTL is the fixed session lifetime from creation, regardless of
// activity.
const SessionTTL = 24 * time.Hour

const sessionColumns = `id, visitor_id, ip_hash, user_agent, message_count, status, created_at, last_active_at, expires_at`

const messageColumns = `id, session_id, role, content, tokens_used, model, created_at`

// ChatSessionService owns ChatSession and ChatMessage rows.
type ChatSessionService struct {
	db  *sql.DB
	bus *events.Bus
}

// NewChatSessionService creates a new ChatSessionService
func NewChatSessionService(db *sql.DB, bus *events.Bus) *ChatSessionService {
	return &ChatSessionService{db: db, bus: bus}
}

func scanSession(row rowScanner) (*models.ChatSession, error) {
	var s models.ChatSession
	var userAgent sql.NullString
	err := row.Scan(
		&s.ID, &s.VisitorID, &s.IPHash, &userAgent, &s.MessageCount,
		&s.Status, &s.CreatedAt, &s.LastActiveAt, &s.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	s.UserAgent = userAgent.String
	return &s, nil
}

func scanMessage(row rowScanner) (*models.ChatMessage, error) {
	var m models.ChatMessage
	var tokensUsed sql.NullInt64
	var model sql.NullString
	err := row.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &tokensUsed, &model, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.TokensUsed = int(tokensUsed.Int64)
	m.Model = model.String
	return &m, nil
}

// FindActiveSession returns the most-recently-active session for a visitor
// where status is active and the session has not expired. Stale active rows
// for the visitor are flipped to expired on the way.
func (s *ChatSessionService) FindActiveSession(ctx context.Context, visitorID string) (*models.ChatSession, error) {
	if err := s.expireStale(ctx, visitorID); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM chat_sessions
		 WHERE visitor_id = $1 AND status = 'active' AND expires_at > now()
		 ORDER BY last_active_at DESC LIMIT 1`, visitorID)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active session: %w", err)
	}
	return session, nil
}

// expireStale flips active-but-expired sessions to expired and emits an
// ended event per session.
func (s *ChatSessionService) expireStale(ctx context.Context, visitorID string) error {
	rows, err := s.db.QueryContext(ctx,
		`UPDATE chat_sessions SET status = 'expired'
		 WHERE visitor_id = $1 AND status = 'active' AND expires_at <= now()
		 RETURNING id`, visitorID)
	if err != nil {
		return fmt.Errorf("failed to expire stale sessions: %w", err)
	}
	_, err = s.collectExpired(rows)
	return err
}

// ExpireStaleSessions flips every active-but-expired session to expired,
// regardless of visitor. Returns the number of sessions flipped.
func (s *ChatSessionService) ExpireStaleSessions(ctx context.Context) (int, error) {
	rows, err := s.db.QueryContext(ctx,
		`UPDATE chat_sessions SET status = 'expired'
		 WHERE status = 'active' AND expires_at <= now()
		 RETURNING id`)
	if err != nil {
		return 0, fmt.Errorf("failed to expire stale sessions: %w", err)
	}
	return s.collectExpired(rows)
}

func (s *ChatSessionService) collectExpired(rows *sql.Rows) (int, error) {
	defer rows.Close()
	var count int
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return count, fmt.Errorf("failed to scan expired session id: %w", err)
		}
		count++
		if s.bus != nil {
			s.bus.Emit(events.TypeChatSessionEnded, events.SessionEndedPayload{
				SessionID: id,
				Reason:    "expired",
			})
		}
	}
	return count, rows.Err()
}

// PruneSessions removes ended and expired sessions whose last activity is
// older than the retention window. The cascade drops their messages.
func (s *ChatSessionService) PruneSessions(ctx context.Context, retention time.Duration) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM chat_sessions
		 WHERE status IN ('ended', 'expired') AND last_active_at < now() - $1::interval`,
		fmt.Sprintf("%d seconds", int(retention.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("failed to prune sessions: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return int(affected), nil
}

// CreateSession starts a new 24-hour session for a visitor.
func (s *ChatSessionService) CreateSession(ctx context.Context, visitorID, ipHash, userAgent string) (*models.ChatSession, error) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	now := time.Now().UTC()
	session := &models.ChatSession{
		ID:           ids.NewSessionID(),
		VisitorID:    visitorID,
		IPHash:       ipHash,
		UserAgent:    userAgent,
		Status:       models.SessionStatusActive,
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    now.Add(SessionTTL),
	}

	var ua sql.NullString
	if userAgent != "" {
		ua = sql.NullString{String: userAgent, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_sessions (id, visitor_id, ip_hash, user_agent, message_count, status, created_at, last_active_at, expires_at)
		 VALUES ($1, $2, $3, $4, 0, $5, $6, $7, $8)`,
		session.ID, visitorID, ipHash, ua, session.Status, now, now, session.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if s.bus != nil {
		s.bus.Emit(events.TypeChatSessionStarted, events.SessionStartedPayload{
			SessionID: session.ID,
			VisitorID: visitorID,
		})
	}
	return session, nil
}

// FindSessionByID returns a session regardless of status.
func (s *ChatSessionService) FindSessionByID(ctx context.Context, id string) (*models.ChatSession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM chat_sessions WHERE id = $1`, id)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return session, nil
}

// AppendMessage persists one message and, in the same transaction, bumps the
// session's message count and refreshes its last-active timestamp.
func (s *ChatSessionService) AppendMessage(ctx context.Context, sessionID string, role models.MessageRole, content string, tokensUsed int, model string) (*models.ChatMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	msg := &models.ChatMessage{
		ID:         ids.NewMessageID(),
		SessionID:  sessionID,
		Role:       role,
		Content:    content,
		TokensUsed: tokensUsed,
		Model:      model,
		CreatedAt:  now,
	}

	var tokens sql.NullInt64
	if tokensUsed > 0 {
		tokens = sql.NullInt64{Int64: int64(tokensUsed), Valid: true}
	}
	var mdl sql.NullString
	if model != "" {
		mdl = sql.NullString{String: model, Valid: true}
	}

	// Touch the session first so an unknown session id is a clean miss
	// rather than a foreign key violation on the message insert.
	res, err := tx.ExecContext(ctx,
		`UPDATE chat_sessions SET message_count = message_count + 1, last_active_at = $1 WHERE id = $2`,
		now, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to touch session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO chat_messages (id, session_id, role, content, tokens_used, model, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		msg.ID, sessionID, role, content, tokens, mdl, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit message append: %w", err)
	}

	if s.bus != nil {
		s.bus.Emit(events.TypeChatMessageSent, events.MessageSentPayload{
			SessionID:  sessionID,
			MessageID:  msg.ID,
			Role:       string(role),
			TokensUsed: tokensUsed,
			Model:      model,
		})
	}
	return msg, nil
}

// EndSession marks a session ended.
func (s *ChatSessionService) EndSession(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chat_sessions SET status = 'ended' WHERE id = $1 AND status = 'active'`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	if s.bus != nil {
		s.bus.Emit(events.TypeChatSessionEnded, events.SessionEndedPayload{
			SessionID: sessionID,
			Reason:    "ended",
		})
	}
	return nil
}

// GetRecentMessages returns the last n messages of a session in
// chronological order.
func (s *ChatSessionService) GetRecentMessages(ctx context.Context, sessionID string, n int) ([]*models.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM (
		     SELECT `+messageColumns+` FROM chat_messages
		     WHERE session_id = $1
		     ORDER BY created_at DESC LIMIT $2
		 ) recent ORDER BY created_at ASC`, sessionID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent messages: %w", err)
	}
	return collectMessages(rows)
}

// GetMessages returns all messages of a session in chronological order.
func (s *ChatSessionService) GetMessages(ctx context.Context, sessionID string) ([]*models.ChatMessage, error) {
	if _, err := s.FindSessionByID(ctx, sessionID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM chat_messages
		 WHERE session_id = $1 ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	return collectMessages(rows)
}

// ListSessions returns a paginated admin listing, most recently active first.
func (s *ChatSessionService) ListSessions(ctx context.Context, q models.SessionListQuery) ([]*models.ChatSession, error) {
	if q.Limit <= 0 {
		q.Limit = validation.DefaultListLimit
	}
	if q.Limit > validation.MaxListLimit {
		q.Limit = validation.MaxListLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	query := `SELECT ` + sessionColumns + ` FROM chat_sessions`
	args := []any{}
	if q.Status != "" {
		query += ` WHERE status = $1`
		args = append(args, q.Status)
	}
	query += fmt.Sprintf(` ORDER BY last_active_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, q.Limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.ChatSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session rows: %w", err)
	}
	return sessions, nil
}

func collectMessages(rows *sql.Rows) ([]*models.ChatMessage, error) {
	defer rows.Close()
	var messages []*models.ChatMessage
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}
	return messages, nil
}
