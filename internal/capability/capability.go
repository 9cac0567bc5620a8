// Package capability defines the requested-session capability model shared
// by the distributor, node handles, and the selection policy.
package capability

import "reflect"

// BrowserNameKey is the distinguished capability key the rarity prefilter
// buckets on.
const BrowserNameKey = "browserName"

// Capabilities is an opaque, immutable mapping of string keys to JSON-like
// values. Callers must not mutate a Capabilities value after it has been
// passed to the distributor.
type Capabilities map[string]any

// BrowserName returns the requested browser name, or "" if unset or not a
// string.
func (c Capabilities) BrowserName() string {
	v, ok := c[BrowserNameKey]
	if !ok {
		return ""
	}
	name, _ := v.(string)
	return name
}

// Clone returns a shallow copy, used whenever a Capabilities value crosses
// into code that might otherwise be tempted to mutate the caller's map.
func (c Capabilities) Clone() Capabilities {
	out := make(Capabilities, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Stereotype is a capability template a node advertises as servable, paired
// with how many concurrent sessions matching it the node can host.
type Stereotype struct {
	Capabilities Capabilities `json:"capabilities"`
	SlotCount    int          `json:"slotCount"`
}

// BrowserName is a convenience accessor mirroring Capabilities.BrowserName.
func (s Stereotype) BrowserName() string {
	return s.Capabilities.BrowserName()
}

// Matches reports whether this stereotype can serve a request for the given
// capabilities. The grid's matching rule is "every requested key must be
// present with an equal value in the stereotype" -- a simple subset match,
// mirroring how the teacher's location bindings key off an exact AOR rather
// than a fuzzy one.
func (s Stereotype) Matches(requested Capabilities) bool {
	for k, v := range requested {
		sv, ok := s.Capabilities[k]
		if !ok || !reflect.DeepEqual(sv, v) {
			return false
		}
	}
	return true
}
