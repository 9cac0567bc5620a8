package sessionmap

import (
	"encoding/json"
	"log/slog"

	"github.com/sebas/distgrid/internal/fairlock"
	"github.com/sebas/distgrid/internal/gridbus"
	"github.com/sebas/distgrid/internal/syncmap"
)

// Memory is the in-memory reference backend: entries are removed only on an
// explicit Remove or a SESSION_CLOSED event (spec §4.5), so it holds plain
// syncmap.Map rather than anything TTL-based, with an outer fair lock added
// so admission order matches the rest of the directory's fairness guarantee.
type Memory struct {
	admission *fairlock.RWMutex
	sessions  *syncmap.Map[string, Session]

	unsubscribe func()
}

// NewMemory constructs a Memory backend and subscribes it to
// gridbus.SubjectSessionClosed for removal.
func NewMemory(bus gridbus.Bus) *Memory {
	m := &Memory{admission: fairlock.New(), sessions: syncmap.New[string, Session]()}

	unsub, err := bus.Subscribe(gridbus.SubjectSessionClosed, func(payload []byte) {
		var closed struct {
			SessionID string `json:"sessionId"`
		}
		if err := json.Unmarshal(payload, &closed); err != nil {
			slog.Warn("sessionmap: malformed session-closed event", "error", err)
			return
		}
		_ = m.Remove(closed.SessionID)
	})
	if err != nil {
		slog.Warn("sessionmap: failed to subscribe to session-closed events", "error", err)
	} else {
		m.unsubscribe = unsub
	}

	return m
}

func (m *Memory) Add(session Session) (bool, error) {
	m.admission.Lock()
	defer m.admission.Unlock()
	m.sessions.Set(session.SessionID, session)
	return true, nil
}

func (m *Memory) Get(id string) (Session, error) {
	m.admission.RLock()
	defer m.admission.RUnlock()
	s, ok := m.sessions.Get(id)
	if !ok {
		return Session{}, NoSuchSession(id)
	}
	return s, nil
}

func (m *Memory) Remove(id string) error {
	m.admission.Lock()
	defer m.admission.Unlock()
	m.sessions.Delete(id)
	return nil
}

func (m *Memory) IsReady() bool { return true }

func (m *Memory) Close() error {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	return nil
}
