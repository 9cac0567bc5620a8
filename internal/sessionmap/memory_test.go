package sessionmap

import (
	"testing"

	"github.com/sebas/distgrid/internal/capability"
	"github.com/sebas/distgrid/internal/gridbus"
)

func TestMemoryAddGetRemove(t *testing.T) {
	bus := gridbus.NewLocal()
	defer bus.Close()
	m := NewMemory(bus)
	defer m.Close()

	s := Session{SessionID: "s1", URI: "http://node-1/session/s1", Capabilities: capability.Capabilities{"browserName": "chrome"}}
	inserted, err := m.Add(s)
	if err != nil || !inserted {
		t.Fatalf("Add() = (%v, %v), want (true, nil)", inserted, err)
	}

	got, err := m.Get("s1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.URI != s.URI {
		t.Fatalf("Get() = %+v, want %+v", got, s)
	}

	if err := m.Remove("s1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := m.Get("s1"); err == nil {
		t.Fatal("expected NO_SUCH_SESSION after remove")
	}
}

func TestMemoryRemoveIdempotent(t *testing.T) {
	bus := gridbus.NewLocal()
	defer bus.Close()
	m := NewMemory(bus)
	defer m.Close()

	if err := m.Remove("never-added"); err != nil {
		t.Fatalf("Remove() of absent id must not error, got %v", err)
	}
}

func TestMemoryRemovedBySessionClosedEvent(t *testing.T) {
	bus := gridbus.NewLocal()
	defer bus.Close()
	m := NewMemory(bus)
	defer m.Close()

	s := Session{SessionID: "s2", URI: "http://node-1/session/s2"}
	if _, err := m.Add(s); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if err := bus.Publish(gridbus.SubjectSessionClosed, struct {
		SessionID string `json:"sessionId"`
	}{SessionID: "s2"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if _, err := m.Get("s2"); err == nil {
		t.Fatal("expected session removed after SESSION_CLOSED event")
	}
}
