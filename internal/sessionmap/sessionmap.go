// Package sessionmap implements the distributor's key-to-record table for
// confirmed sessions, with pluggable storage backends: in-memory and
// relational.
package sessionmap

import (
	"github.com/sebas/distgrid/internal/capability"
	"github.com/sebas/distgrid/internal/griderr"
)

// Session is the record the Distributor writes after a successful
// reservation and removes on a SESSION_CLOSED event.
type Session struct {
	SessionID    string                  `json:"sessionId"`
	URI          string                  `json:"uri"`
	Capabilities capability.Capabilities `json:"capabilities"`
}

// Map is the pluggable contract both reference backends satisfy.
type Map interface {
	// Add inserts or replaces session, returning whether an insert (as
	// opposed to a replace) occurred. Both reference backends report true
	// unconditionally, by convention (see spec §4.5).
	Add(session Session) (bool, error)
	// Get returns the session for id, or a griderr with code NoSuchSession.
	Get(id string) (Session, error)
	// Remove deletes id if present; it is not an error if absent.
	Remove(id string) error
	// IsReady reports whether the backend can currently serve requests.
	IsReady() bool
	// Close releases the backend's resources.
	Close() error
}

// NoSuchSession builds the standard lookup-miss error for an id.
func NoSuchSession(id string) error {
	return griderr.New(griderr.NoSuchSession, "no such session: "+id)
}
