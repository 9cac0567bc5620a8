// Package gridbus defines the event bus the distributor and session map
// consume and produce events on, plus two implementations: an in-process
// bus for single-process deployments and tests, and a NATS JetStream bus
// for a real cluster, completing the sketch left commented-out in the
// teacher's events/nats.go.
package gridbus

// Subjects the distributor consumes and produces, named in the teacher's
// "<prefix>.<noun>.<verb>" style (events/subjects.go).
const (
	SubjectNodeStatus        = "grid.nodes.status"
	SubjectNodeDrainComplete = "grid.nodes.drain_complete"
	SubjectSessionClosed     = "grid.sessions.closed"
	SubjectNodeAdded         = "grid.nodes.added"
	SubjectNodeRemoved       = "grid.nodes.removed"
	SubjectNodeRejected      = "grid.nodes.rejected"
)

// Handler processes one message body delivered on a subject.
type Handler func(payload []byte)

// Bus is the transport-agnostic pub/sub contract the distributor and
// session map depend on. Out of scope per the spec: the concrete wire
// transport. Publish is fire-and-forget from the caller's perspective;
// delivery failures are the bus implementation's concern, not the
// publisher's.
type Bus interface {
	// Publish encodes v as JSON and sends it on subject.
	Publish(subject string, v any) error
	// Subscribe registers handler for subject, returning a function that
	// deregisters it. Handlers run on bus-provided goroutines and must not
	// block beyond what they need to acquire their own critical sections.
	Subscribe(subject string, handler Handler) (unsubscribe func(), err error)
	// Ready reports whether the bus is connected and able to publish.
	Ready() bool
	// Close releases the bus's resources.
	Close() error
}
