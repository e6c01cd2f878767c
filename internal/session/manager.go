package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind separates the two wire protocols. An endpoint serves exactly one
// kind; the two are never multiplexed over one connection.
type Kind string

const (
	KindTranscribe Kind = "transcribe"
	KindSpeak      Kind = "speak"
)

var ErrNotFound = errors.New("session not found")

// Info is the externally visible snapshot of one live session.
type Info struct {
	ID             string    `json:"session_id"`
	Kind           Kind      `json:"kind"`
	State          string    `json:"state"`
	StartedAt      time.Time `json:"started_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

type record struct {
	info   Info
	cancel context.CancelFunc
}

// Manager is a registry of live connection sessions. Each websocket
// connection registers exactly one session at upgrade time and deregisters
// when its run loop returns. The janitor cancels sessions whose connections
// have gone quiet past the idle timeout; it is a backstop behind the
// per-session idle timers, which normally fire first and put a timeout
// error on the wire.
type Manager struct {
	mu          sync.RWMutex
	sessions    map[string]*record
	idleTimeout time.Duration
	onExpire    func(Info)
}

func NewManager(idleTimeout time.Duration) *Manager {
	if idleTimeout <= 0 {
		idleTimeout = 45 * time.Second
	}
	return &Manager{
		sessions:    make(map[string]*record),
		idleTimeout: idleTimeout,
	}
}

func (m *Manager) SetExpireHook(hook func(Info)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

// Register adds a session and returns its ID. cancel is invoked when the
// janitor expires the session.
func (m *Manager) Register(kind Kind, cancel context.CancelFunc) string {
	now := time.Now().UTC()
	r := &record{
		info: Info{
			ID:             uuid.NewString(),
			Kind:           kind,
			State:          "open",
			StartedAt:      now,
			LastActivityAt: now,
		},
		cancel: cancel,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[r.info.ID] = r
	return r.info.ID
}

func (m *Manager) Deregister(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

func (m *Manager) Touch(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	r.info.LastActivityAt = time.Now().UTC()
	return nil
}

// SetState records the session state for the listing endpoint. States only
// move forward; callers own that invariant, the registry just stores the tag.
func (m *Manager) SetState(id, state string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	r.info.State = state
	r.info.LastActivityAt = time.Now().UTC()
	return nil
}

func (m *Manager) Get(id string) (Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.sessions[id]
	if !ok {
		return Info{}, ErrNotFound
	}
	return r.info, nil
}

func (m *Manager) List() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Info, 0, len(m.sessions))
	for _, r := range m.sessions {
		out = append(out, r.info)
	}
	return out
}

func (m *Manager) ActiveCount(kind Kind) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, r := range m.sessions {
		if r.info.Kind == kind {
			count++
		}
	}
	return count
}

func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireIdle()
			}
		}
	}()
}

func (m *Manager) expireIdle() {
	now := time.Now().UTC()
	var expired []*record

	m.mu.Lock()
	for id, r := range m.sessions {
		if now.Sub(r.info.LastActivityAt) < m.idleTimeout {
			continue
		}
		expired = append(expired, r)
		delete(m.sessions, id)
	}
	hook := m.onExpire
	m.mu.Unlock()

	for _, r := range expired {
		if r.cancel != nil {
			r.cancel()
		}
		if hook != nil {
			hook(r.info)
		}
	}
}
