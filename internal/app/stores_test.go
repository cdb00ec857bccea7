package app_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"chatlibrary/internal/model"
	"chatlibrary/internal/repository"
)

// In-memory stands-ins for the gorm repositories, good enough to drive
// the services without a database.

type memUserStore struct {
	mu     sync.Mutex
	nextID uint
	users  map[uint]*model.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[uint]*model.User)}
}

func (s *memUserStore) Create(user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == user.Username {
			return repository.ErrDuplicateKey
		}
	}
	s.nextID++
	user.ID = s.nextID
	user.CreatedAt = time.Now()
	copied := *user
	s.users[user.ID] = &copied
	return nil
}

func (s *memUserStore) GetByUsername(username string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Username == username {
			copied := *user
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memUserStore) GetByID(id uint) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

type memSessionStore struct {
	mu       sync.Mutex
	nextID   uint
	sessions map[uint]*model.Session
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: make(map[uint]*model.Session)}
}

func (s *memSessionStore) Create(session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	session.ID = s.nextID
	session.CreatedAt = time.Now()
	session.UpdatedAt = session.CreatedAt
	copied := *session
	s.sessions[session.ID] = &copied
	return nil
}

func (s *memSessionStore) GetByID(sessionID uint) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	copied := *session
	return &copied, nil
}

func (s *memSessionStore) ListByUserID(userID uint) ([]model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []model.Session
	for _, session := range s.sessions {
		if session.UserID == userID {
			result = append(result, *session)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

type memMessageStore struct {
	mu       sync.Mutex
	nextID   uint
	messages []model.Message
}

func newMemMessageStore() *memMessageStore {
	return &memMessageStore{}
}

func (s *memMessageStore) Create(message *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	message.ID = s.nextID
	message.CreatedAt = time.Now()
	s.messages = append(s.messages, *message)
	return nil
}

func (s *memMessageStore) ListBySessionID(sessionID uint, limit int) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []model.Message
	for _, message := range s.messages {
		if message.SessionID == sessionID {
			result = append(result, message)
		}
	}
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

// memHistoryCache mirrors the Redis-backed cache: a transcript entry
// plus an independent dirty marker per session.
type memHistoryCache struct {
	mu      sync.Mutex
	entries map[uint][]model.Message
	dirty   map[uint]bool
	sets    int
}

func newMemHistoryCache() *memHistoryCache {
	return &memHistoryCache{
		entries: make(map[uint][]model.Message),
		dirty:   make(map[uint]bool),
	}
}

func (c *memHistoryCache) GetHistory(_ context.Context, sessionID uint) ([]model.Message, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[sessionID]
	if !ok {
		return nil, false, nil
	}
	return append([]model.Message(nil), entry...), true, nil
}

func (c *memHistoryCache) SetHistory(_ context.Context, sessionID uint, messages []model.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[sessionID] = append([]model.Message(nil), messages...)
	c.sets++
	return nil
}

func (c *memHistoryCache) DeleteHistory(_ context.Context, sessionID uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sessionID)
	return nil
}

func (c *memHistoryCache) MarkDirty(_ context.Context, sessionID uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirty[sessionID] = true
	return nil
}

func (c *memHistoryCache) ClearDirty(sessionID uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.dirty, sessionID)
}

func (c *memHistoryCache) IsDirty(_ context.Context, sessionID uint) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty[sessionID], nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []model.Message
}

func (p *recordingPublisher) Publish(_ context.Context, msg model.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return nil
}

func (p *recordingPublisher) published() []model.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.Message(nil), p.messages...)
}

// failingUserStore simulates a database outage.
type failingUserStore struct {
	err error
}

func (s *failingUserStore) Create(*model.User) error { return s.err }

func (s *failingUserStore) GetByUsername(string) (*model.User, error) { return nil, s.err }

func (s *failingUserStore) GetByID(uint) (*model.User, error) { return nil, s.err }

type stubResponder struct {
	prefix string
	err    error
}

func (r *stubResponder) Reply(_ context.Context, content string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return r.prefix + content, nil
}

var errResponderDown = errors.New("responder unavailable")
