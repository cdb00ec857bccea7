package app

import (
	"context"
	"errors"
	"log"
	"strings"

	"chatlibrary/internal/model"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionForbidden = errors.New("session owned by another user")
	ErrMessageEmpty     = errors.New("message content is empty")
)

// SessionStore is the persistence surface for sessions.
type SessionStore interface {
	Create(session *model.Session) error
	GetByID(sessionID uint) (*model.Session, error)
	ListByUserID(userID uint) ([]model.Session, error)
}

// MessageStore is the persistence surface for messages. Create must be
// durable on return; PostMessage's ordering contract depends on it.
type MessageStore interface {
	Create(message *model.Message) error
	ListBySessionID(sessionID uint, limit int) ([]model.Message, error)
}

// Responder is the opaque reply function: text in, text out.
type Responder interface {
	Reply(ctx context.Context, content string) (string, error)
}

// EventPublisher fans out message-created events after the row is
// committed. Failures here never fail the request.
type EventPublisher interface {
	Publish(ctx context.Context, msg model.Message) error
}

type HistoryCache interface {
	GetHistory(ctx context.Context, sessionID uint) ([]model.Message, bool, error)
	SetHistory(ctx context.Context, sessionID uint, messages []model.Message) error
	DeleteHistory(ctx context.Context, sessionID uint) error
	MarkDirty(ctx context.Context, sessionID uint) error
	IsDirty(ctx context.Context, sessionID uint) (bool, error)
}

type ChatService struct {
	sessions     SessionStore
	messages     MessageStore
	responder    Responder
	publisher    EventPublisher
	historyCache HistoryCache
}

type CreateSessionInput struct {
	UserID uint
	Title  string
}

func NewChatService(
	sessions SessionStore,
	messages MessageStore,
	responder Responder,
	publisher EventPublisher,
	historyCache HistoryCache,
) *ChatService {
	return &ChatService{
		sessions:     sessions,
		messages:     messages,
		responder:    responder,
		publisher:    publisher,
		historyCache: historyCache,
	}
}

func (s *ChatService) CreateSession(input CreateSessionInput) (*model.Session, error) {
	if input.UserID == 0 {
		return nil, ErrInvalidInput
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = "New Chat"
	}

	session := &model.Session{
		UserID: input.UserID,
		Title:  title,
	}
	if err := s.sessions.Create(session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *ChatService) ListSessions(userID uint) ([]model.Session, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.sessions.ListByUserID(userID)
}

// AuthorizeSession gates every session-scoped read and write. Absence
// is checked before ownership, so the two failures stay distinct here;
// each endpoint decides how much of that to reveal.
func (s *ChatService) AuthorizeSession(user *model.User, sessionID uint) (*model.Session, error) {
	if user == nil || sessionID == 0 {
		return nil, ErrInvalidInput
	}

	session, err := s.sessions.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if session.UserID != user.ID {
		return nil, ErrSessionForbidden
	}
	return session, nil
}

// PostMessage appends the user's message, asks the responder for a
// reply, appends that as the ai message, and returns the ai message.
// The user row is durable before the responder runs and the ai row is
// durable before return. A responder failure aborts the call with the
// user message already committed; there is no retry and no compensation.
func (s *ChatService) PostMessage(ctx context.Context, user *model.User, sessionID uint, content string) (*model.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrMessageEmpty
	}

	session, err := s.AuthorizeSession(user, sessionID)
	if err != nil {
		return nil, err
	}

	userMessage := &model.Message{
		SessionID: session.ID,
		Judge:     model.JudgeUser,
		Content:   content,
	}
	if err := s.messages.Create(userMessage); err != nil {
		return nil, err
	}
	s.afterWrite(ctx, *userMessage)

	reply, err := s.responder.Reply(ctx, content)
	if err != nil {
		return nil, err
	}

	aiMessage := &model.Message{
		SessionID: session.ID,
		Judge:     model.JudgeAI,
		Content:   reply,
	}
	if err := s.messages.Create(aiMessage); err != nil {
		return nil, err
	}
	s.afterWrite(ctx, *aiMessage)

	return aiMessage, nil
}

// ListMessages returns the session transcript in insertion order,
// served from the cache when it is present and not marked dirty.
func (s *ChatService) ListMessages(ctx context.Context, user *model.User, sessionID uint, limit int) ([]model.Message, error) {
	session, err := s.AuthorizeSession(user, sessionID)
	if err != nil {
		return nil, err
	}

	if s.historyCache != nil {
		dirty, dirtyErr := s.historyCache.IsDirty(ctx, session.ID)
		if dirtyErr == nil && !dirty {
			if cached, hit, cacheErr := s.historyCache.GetHistory(ctx, session.ID); cacheErr == nil && hit {
				return trimMessages(cached, limit), nil
			}
		}
	}

	messages, err := s.messages.ListBySessionID(session.ID, limit)
	if err != nil {
		return nil, err
	}
	// Only the default window is cached. Caching a caller-limited page
	// would hand later readers a truncated transcript.
	if s.historyCache != nil && limit <= 0 {
		if dirty, dirtyErr := s.historyCache.IsDirty(ctx, session.ID); dirtyErr == nil && !dirty {
			_ = s.historyCache.SetHistory(ctx, session.ID, messages)
		}
	}
	return messages, nil
}

// afterWrite runs the best-effort side work that follows a durable
// message insert: invalidate the read cache and emit an event.
func (s *ChatService) afterWrite(ctx context.Context, msg model.Message) {
	if s.historyCache != nil {
		_ = s.historyCache.MarkDirty(ctx, msg.SessionID)
		_ = s.historyCache.DeleteHistory(ctx, msg.SessionID)
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, msg); err != nil {
			log.Printf("publish message event failed: %v", err)
		}
	}
}

// trimMessages applies the same window the repository does: the first
// limit messages in insertion order. A cache hit must not change which
// slice of the transcript a caller sees.
func trimMessages(messages []model.Message, limit int) []model.Message {
	if limit <= 0 || limit >= len(messages) {
		return messages
	}
	return messages[:limit]
}
