package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kapu/shortlist-go/internal/domain"
	"github.com/kapu/shortlist-go/internal/metrics"
	"github.com/kapu/shortlist-go/internal/recommend"
)

// ErrSessionNotFound is returned for unknown or evicted session ids.
var ErrSessionNotFound = errors.New("session not found")

// EngineFactory builds the engine of a new session. notifier routes the
// engine's events to live subscribers.
type EngineFactory func(session *recommend.Session, notifier recommend.Notifier) *recommend.Engine

// EventCallback receives events of one session.
type EventCallback func(ev recommend.Event)

type subscriber struct {
	id       int
	callback EventCallback
}

type sessionEntry struct {
	engine   *recommend.Engine
	lastSeen time.Time
	subs     []subscriber
}

// SessionManager owns every live session and evicts idle ones.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
	nextSub  int
	factory  EngineFactory
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time
	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewSessionManager(factory EngineFactory, ttl time.Duration, logger *zap.Logger) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionManager{
		sessions: make(map[string]*sessionEntry),
		nextSub:  1,
		factory:  factory,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Create starts a session on category, optionally signed in.
func (m *SessionManager) Create(category domain.Category, identity string) (string, *recommend.Engine, error) {
	id := uuid.NewString()
	session := recommend.NewSession(id, category)
	engine := m.factory(session, m)
	if identity != "" {
		if _, err := engine.SignIn(identity); err != nil {
			return "", nil, err
		}
	}

	m.mu.Lock()
	m.sessions[id] = &sessionEntry{engine: engine, lastSeen: m.now()}
	count := len(m.sessions)
	m.mu.Unlock()

	metrics.ActiveSessions.Set(float64(count))
	m.logger.Debug("Session created", zap.String("session", id), zap.String("category", category.String()))
	return id, engine, nil
}

// Get returns the engine of id and refreshes its idle timer.
func (m *SessionManager) Get(id string) (*recommend.Engine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	entry.lastSeen = m.now()
	return entry.engine, nil
}

// Count returns the number of live sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Subscribe registers callback for events of id. The returned function
// removes it.
func (m *SessionManager) Subscribe(id string, callback EventCallback) (func(), error) {
	m.mu.Lock()
	entry, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	subID := m.nextSub
	m.nextSub++
	entry.subs = append(entry.subs, subscriber{id: subID, callback: callback})
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		entry, ok := m.sessions[id]
		if !ok {
			return
		}
		for i, sub := range entry.subs {
			if sub.id == subID {
				entry.subs = append(entry.subs[:i], entry.subs[i+1:]...)
				break
			}
		}
	}, nil
}

// Publish implements recommend.Notifier.
func (m *SessionManager) Publish(sessionID string, ev recommend.Event) {
	m.mu.RLock()
	entry, ok := m.sessions[sessionID]
	var subs []subscriber
	if ok {
		subs = make([]subscriber, len(entry.subs))
		copy(subs, entry.subs)
	}
	m.mu.RUnlock()

	for _, sub := range subs {
		sub.callback(ev)
	}
}

// Evict drops sessions idle for longer than the TTL. Busy sessions are kept.
func (m *SessionManager) Evict() int {
	cutoff := m.now().Add(-m.ttl)

	m.mu.Lock()
	evicted := 0
	for id, entry := range m.sessions {
		if entry.lastSeen.Before(cutoff) && !entry.engine.Busy() {
			delete(m.sessions, id)
			evicted++
		}
	}
	count := len(m.sessions)
	m.mu.Unlock()

	metrics.ActiveSessions.Set(float64(count))
	if evicted > 0 {
		m.logger.Info("Evicted idle sessions", zap.Int("evicted", evicted), zap.Int("remaining", count))
	}
	return evicted
}

// Run evicts periodically until ctx is done or Stop is called.
func (m *SessionManager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.Evict()
		}
	}
}

func (m *SessionManager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}
