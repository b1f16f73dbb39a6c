// Package session owns the current authenticated identity: one persisted
// session per client context, with change broadcast to any number of
// listeners.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/campuslink/api/internal/domain"
	"github.com/campuslink/api/internal/kv"
	"github.com/campuslink/api/internal/notify"
)

const sessionKey = notify.TopicSession

// Listener receives the new session state; nil means signed out.
type Listener func(*domain.Session)

// Manager persists the session in the kv layer and notifies listeners on
// every transition, whether triggered in-process or observed through the
// storage-level change signal (another writer on the same store).
type Manager struct {
	kv     kv.Store
	hub    *notify.Hub
	logger *slog.Logger

	mu        sync.Mutex
	listeners map[int]Listener
	nextID    int
	// suppress marks a storage signal as originating from this manager,
	// whose write path already broadcasts in-process.
	suppress bool

	storageSub notify.Subscriber
}

// NewManager constructs a Manager and attaches it to the storage signal.
func NewManager(store kv.Store, hub *notify.Hub, logger *slog.Logger) *Manager {
	m := &Manager{
		kv:        store,
		hub:       hub,
		logger:    logger,
		listeners: make(map[int]Listener),
	}
	m.storageSub = notify.SubscriberFunc(func(payload []byte) error {
		m.onStorageSignal(payload)
		return nil
	})
	if hub != nil {
		hub.Register(sessionKey, m.storageSub)
	}
	return m
}

// Close detaches the manager from the storage signal.
func (m *Manager) Close() {
	if m.hub != nil {
		m.hub.Unregister(sessionKey, m.storageSub)
	}
}

// Current reads the persisted session. Absent or unreadable state reads
// as signed out.
func (m *Manager) Current(ctx context.Context) *domain.Session {
	raw, err := m.kv.Get(ctx, sessionKey)
	if err != nil {
		if !errors.Is(err, kv.ErrNoKey) {
			m.logger.Warn("session read failed", "error", err)
		}
		return nil
	}
	return decodeSession(raw)
}

// Set persists the session and broadcasts the new state.
func (m *Manager) Set(ctx context.Context, s *domain.Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	m.setSuppress(true)
	err = m.kv.Set(ctx, sessionKey, raw)
	m.setSuppress(false)
	if err != nil {
		return err
	}
	m.broadcast(s)
	return nil
}

// Clear removes the persisted session and broadcasts the signed-out state.
func (m *Manager) Clear(ctx context.Context) error {
	m.setSuppress(true)
	err := m.kv.Delete(ctx, sessionKey)
	m.setSuppress(false)
	if err != nil {
		return err
	}
	m.broadcast(nil)
	return nil
}

// OnAuthStateChange registers a listener for session transitions. The
// returned unsubscribe detaches it from both the in-process broadcast and
// the storage signal path; calling it once is safe and sufficient.
func (m *Manager) OnAuthStateChange(cb Listener) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = cb
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}

// RefreshUser syncs the active session with an updated profile. Only
// name, phone, photo and gender follow profile changes; id and email
// never change here. A session owned by a different user is untouched.
func (m *Manager) RefreshUser(ctx context.Context, user domain.SafeUser) error {
	current := m.Current(ctx)
	if current == nil || current.User.ID != user.ID {
		return nil
	}
	current.User.Name = user.Name
	current.User.Phone = user.Phone
	current.User.Photo = user.Photo
	current.User.Gender = user.Gender
	return m.Set(ctx, current)
}

func (m *Manager) setSuppress(v bool) {
	m.mu.Lock()
	m.suppress = v
	m.mu.Unlock()
}

func (m *Manager) broadcast(s *domain.Session) {
	m.mu.Lock()
	cbs := make([]Listener, 0, len(m.listeners))
	for _, cb := range m.listeners {
		cbs = append(cbs, cb)
	}
	m.mu.Unlock()
	for _, cb := range cbs {
		cb(s)
	}
}

func (m *Manager) onStorageSignal(payload []byte) {
	m.mu.Lock()
	skip := m.suppress
	m.mu.Unlock()
	if skip {
		return
	}
	m.broadcast(decodeSession(payload))
}

func decodeSession(raw []byte) *domain.Session {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var s domain.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	if s.User.ID == "" {
		return nil
	}
	return &s
}
