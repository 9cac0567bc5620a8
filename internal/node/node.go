// Package node implements the per-registered-node mirror the distributor
// keeps in its directory: capacity accounting, health state, and
// reservation bookkeeping for a single grid worker.
package node

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sebas/distgrid/internal/capability"
)

// Status is the lifecycle state of a registered node.
type Status int32

const (
	// Up nodes are selection candidates.
	Up Status = iota
	// Draining nodes refuse new reservations but keep existing sessions.
	Draining
	// Down nodes have failed health checks past the threshold.
	Down
)

func (s Status) String() string {
	switch s {
	case Up:
		return "UP"
	case Draining:
		return "DRAINING"
	case Down:
		return "DOWN"
	default:
		return "UNKNOWN"
	}
}

// unhealthyThreshold is the number of consecutive failed health checks
// before a node is demoted to Down.
const unhealthyThreshold = 3

// SessionCreation is the record produced by a successful remote session
// creation, handed back by a Reserve finalize thunk.
type SessionCreation struct {
	SessionID    string
	URI          string
	Capabilities capability.Capabilities
}

// Client is the injected, out-of-scope collaborator that actually talks to
// a worker node over the wire. The distributor core never implements this
// itself -- a production deployment supplies a concrete transport (HTTP,
// gRPC, ...) behind this interface.
type Client interface {
	CreateSession(ctx context.Context, uri string, stereotype capability.Stereotype, requested capability.Capabilities) (SessionCreation, error)
	Probe(ctx context.Context, uri string) error
}

// NodeClientFactory produces the Client used to talk to a node that was
// discovered rather than registered directly (i.e. a NODE_STATUS arriving
// for an id the caller never supplied a Client for). The concrete remote
// transport stays out of scope per the spec; production deployments inject
// their own HTTP/gRPC-backed factory, grounded on the split between the
// teacher's mediaclient.Transport interface and its GRPCTransport
// implementation.
type NodeClientFactory interface {
	NewClient(id, uri string) Client
}

// NodeClientFactoryFunc adapts a plain function to NodeClientFactory.
type NodeClientFactoryFunc func(id, uri string) Client

func (f NodeClientFactoryFunc) NewClient(id, uri string) Client { return f(id, uri) }

// unconfiguredClient is handed out by DefaultClientFactory: it fails every
// call with a clear error instead of leaving a nil Client behind for
// Reserve/RunHealthCheck to panic on.
type unconfiguredClient struct{ id, uri string }

func (c unconfiguredClient) CreateSession(ctx context.Context, uri string, stereotype capability.Stereotype, requested capability.Capabilities) (SessionCreation, error) {
	return SessionCreation{}, fmt.Errorf("node %s (%s): no NodeClientFactory configured", c.id, c.uri)
}

func (c unconfiguredClient) Probe(ctx context.Context, uri string) error {
	return fmt.Errorf("node %s (%s): no NodeClientFactory configured", c.id, c.uri)
}

// DefaultClientFactory is used whenever a Distributor is constructed without
// an explicit ClientFactory.
var DefaultClientFactory NodeClientFactory = NodeClientFactoryFunc(func(id, uri string) Client {
	return unconfiguredClient{id: id, uri: uri}
})

// Handle is the distributor's per-node mirror. All mutable fields are
// guarded by mu; callers reach a Handle only through the distributor's
// directory lock, except for health-check tasks, which touch only this
// handle's own lock per the concurrency model.
type Handle struct {
	mu sync.Mutex

	id          string
	uri         string
	stereotypes []capability.Stereotype
	client      Client

	status               Status
	load                 float64
	lastSessionCreatedAt int64 // monotonic nanoseconds since monoEpoch

	reserved map[int]int // stereotype index -> reservations in flight
	fails    int
}

// New constructs a Handle for a freshly registered node.
func New(id, uri string, stereotypes []capability.Stereotype, client Client) *Handle {
	return &Handle{
		id:          id,
		uri:         uri,
		stereotypes: stereotypes,
		client:      client,
		status:      Up,
		reserved:    make(map[int]int),
	}
}

func (h *Handle) ID() string  { return h.id }
func (h *Handle) URI() string { return h.uri }

func (h *Handle) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

func (h *Handle) Load() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.load
}

// monoEpoch is the reference point for lastSessionCreatedAt; time.Since
// measures from it on the monotonic clock.
var monoEpoch = time.Now()

// LastSessionCreatedAt returns the monotonic timestamp (nanoseconds since
// an arbitrary epoch) of the last session successfully created through a
// reservation, used only for the selection policy's tie-break ordering.
func (h *Handle) LastSessionCreatedAt() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastSessionCreatedAt
}

// Stereotypes returns the node's advertised stereotypes.
func (h *Handle) Stereotypes() []capability.Stereotype {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]capability.Stereotype, len(h.stereotypes))
	copy(out, h.stereotypes)
	return out
}

// HasCapacity reports whether any stereotype matching requested still has a
// free slot.
func (h *Handle) HasCapacity(requested capability.Capabilities) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.freeStereotype(requested) >= 0
}

// freeStereotype returns the index of a matching stereotype with a free
// slot, or -1. Callers must hold h.mu.
func (h *Handle) freeStereotype(requested capability.Capabilities) int {
	for i, st := range h.stereotypes {
		if !st.Matches(requested) {
			continue
		}
		if h.reserved[i] < st.SlotCount {
			return i
		}
	}
	return -1
}

// Finalize is returned by Reserve. It performs the remote "create session"
// call and, on failure, releases the reservation it was holding.
type Finalize func(ctx context.Context) (SessionCreation, error)

// ErrNotUp is returned by Reserve when the node is not in the Up state.
var ErrNotUp = fmt.Errorf("node is not UP")

// ErrNoCapacity is returned by Reserve when no stereotype has a free slot.
var ErrNoCapacity = fmt.Errorf("node has no free capacity for the requested capabilities")

// Reserve atomically decrements a free slot for a stereotype matching
// requested and returns a thunk that performs the actual remote session
// creation. The slot remains decremented until either the thunk succeeds
// (permanently consumed) or fails (released).
func (h *Handle) Reserve(requested capability.Capabilities) (Finalize, error) {
	h.mu.Lock()
	if h.status != Up {
		h.mu.Unlock()
		return nil, ErrNotUp
	}
	idx := h.freeStereotype(requested)
	if idx < 0 {
		h.mu.Unlock()
		return nil, ErrNoCapacity
	}
	h.reserved[idx]++
	stereotype := h.stereotypes[idx]
	client := h.client
	uri := h.uri
	h.mu.Unlock()

	released := false
	release := func() {
		if released {
			return
		}
		released = true
		h.mu.Lock()
		h.reserved[idx]--
		h.mu.Unlock()
	}

	return func(ctx context.Context) (SessionCreation, error) {
		result, err := client.CreateSession(ctx, uri, stereotype, requested)
		if err != nil {
			release()
			return SessionCreation{}, err
		}
		h.mu.Lock()
		h.lastSessionCreatedAt = time.Since(monoEpoch).Nanoseconds()
		h.mu.Unlock()
		return result, nil
	}, nil
}

// Update applies a freshly received NodeStatus snapshot: it replaces load
// and (when non-nil) the advertised stereotypes, and sets status. A
// Draining snapshot always sets Draining; any other snapshot sets Up unless
// the node is Down, and clears the health-check failure count. Reservation
// counters are left as they are.
func (h *Handle) Update(st Status, load float64, stereotypes []capability.Stereotype) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.load = load
	if stereotypes != nil {
		h.stereotypes = stereotypes
	}
	if st == Draining {
		h.status = Draining
		return
	}
	if h.status != Down {
		h.status = Up
	}
	h.fails = 0
}

// RunHealthCheck probes the node and transitions Up<->Down based on
// consecutive failure count. It must not be called while the distributor's
// directory lock is held; it only touches this Handle's own lock.
func (h *Handle) RunHealthCheck(ctx context.Context) {
	h.mu.Lock()
	client := h.client
	uri := h.uri
	draining := h.status == Draining
	h.mu.Unlock()

	err := client.Probe(ctx, uri)

	h.mu.Lock()
	defer h.mu.Unlock()
	if err != nil {
		h.fails++
		if h.fails >= unhealthyThreshold {
			h.status = Down
		}
		return
	}
	h.fails = 0
	if h.status == Down && !draining {
		h.status = Up
	}
}

// Summary is the immutable projection returned by Distributor.Status.
type Summary struct {
	ID          string                  `json:"id"`
	URI         string                  `json:"uri"`
	Status      string                  `json:"status"`
	Load        float64                 `json:"load"`
	Stereotypes []capability.Stereotype `json:"stereotypes"`
	Reserved    map[string]int          `json:"reserved"`
}

// AsSummary returns an immutable snapshot for status dumps.
func (h *Handle) AsSummary() Summary {
	h.mu.Lock()
	defer h.mu.Unlock()

	reserved := make(map[string]int, len(h.reserved))
	for i, n := range h.reserved {
		if i < len(h.stereotypes) {
			reserved[h.stereotypes[i].BrowserName()] += n
		}
	}
	stereotypes := make([]capability.Stereotype, len(h.stereotypes))
	copy(stereotypes, h.stereotypes)

	return Summary{
		ID:          h.id,
		URI:         h.uri,
		Status:      h.status.String(),
		Load:        h.load,
		Stereotypes: stereotypes,
		Reserved:    reserved,
	}
}
