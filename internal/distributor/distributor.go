// Package distributor implements the grid's node directory: registration,
// removal, draining, and concurrent scheduling under a fair lock, modeled
// on the pool-plus-health-checker shape of the teacher's mediaclient.Pool.
package distributor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sebas/distgrid/internal/capability"
	"github.com/sebas/distgrid/internal/fairlock"
	"github.com/sebas/distgrid/internal/gridbus"
	"github.com/sebas/distgrid/internal/griderr"
	"github.com/sebas/distgrid/internal/health"
	"github.com/sebas/distgrid/internal/node"
	"github.com/sebas/distgrid/internal/selection"
	"github.com/sebas/distgrid/internal/sessionmap"
	"github.com/sebas/distgrid/internal/tracing"
)

// NodeStatus is the snapshot message a node publishes on the bus.
//
// Availability carries the node's self-reported state ("UP" or "DRAINING";
// the empty string is treated as "UP" for callers that predate this field).
// Down is never self-reported -- it is only ever derived locally from
// consecutive health-check failures.
type NodeStatus struct {
	NodeID             string                  `json:"nodeId"`
	URI                string                  `json:"uri"`
	Stereotypes        []capability.Stereotype `json:"stereotypes"`
	Load               float64                 `json:"load"`
	Availability       string                  `json:"availability"`
	RegistrationSecret string                  `json:"registrationSecret"`
}

// availability maps a NodeStatus.Availability string onto the node package's
// Status enum for the subset a snapshot is allowed to report.
func availability(s string) node.Status {
	if strings.EqualFold(s, "DRAINING") {
		return node.Draining
	}
	return node.Up
}

// NewSessionRequest is the transport-agnostic request payload: a non-empty
// ordered sequence of capability sets. Only the first is served; the rest
// are reported in the error on failure but never tried, per spec Design
// Notes (open question, resolved as "verbatim" in this implementation).
type NewSessionRequest struct {
	CapabilitySets []capability.Capabilities
}

// NodeSummary is one entry of a Status() dump.
type NodeSummary = node.Summary

// Distributor owns the directory of registered nodes.
type Distributor struct {
	mu *fairlock.RWMutex

	hosts         map[string]*node.Handle // nodeId -> handle
	byURI         map[string]string       // uri -> nodeId, kept in lockstep with hosts
	secret        string
	bus           gridbus.Bus
	sessions      sessionmap.Map
	health        *health.Checker
	tracer        tracing.Tracer
	clientFactory node.NodeClientFactory

	unsubscribers []func()
}

// Config bundles the Distributor's external collaborators.
type Config struct {
	RegistrationSecret string
	Bus                gridbus.Bus
	Sessions           sessionmap.Map
	Health             *health.Checker
	Tracer             tracing.Tracer

	// ClientFactory produces the node.Client for a node discovered via
	// NODE_STATUS, or passed to Add as nil. Defaults to
	// node.DefaultClientFactory (every call fails cleanly) when unset.
	// The package's own tests leave it unset and pass an in-memory fake
	// Client to Add directly.
	ClientFactory node.NodeClientFactory
}

// New constructs a Distributor and subscribes it to NODE_STATUS and
// NODE_DRAIN_COMPLETE.
func New(cfg Config) *Distributor {
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = tracing.Noop()
	}
	checker := cfg.Health
	if checker == nil {
		checker = health.New()
	}
	clientFactory := cfg.ClientFactory
	if clientFactory == nil {
		clientFactory = node.DefaultClientFactory
	}

	d := &Distributor{
		mu:            fairlock.New(),
		hosts:         make(map[string]*node.Handle),
		byURI:         make(map[string]string),
		secret:        cfg.RegistrationSecret,
		bus:           cfg.Bus,
		sessions:      cfg.Sessions,
		health:        checker,
		tracer:        tracer,
		clientFactory: clientFactory,
	}

	if cfg.Bus != nil {
		if unsub, err := cfg.Bus.Subscribe(gridbus.SubjectNodeStatus, d.handleNodeStatus); err == nil {
			d.unsubscribers = append(d.unsubscribers, unsub)
		} else {
			slog.Warn("distributor: failed to subscribe to node status", "error", err)
		}
		if unsub, err := cfg.Bus.Subscribe(gridbus.SubjectNodeDrainComplete, d.handleDrainComplete); err == nil {
			d.unsubscribers = append(d.unsubscribers, unsub)
		} else {
			slog.Warn("distributor: failed to subscribe to drain complete", "error", err)
		}
	}

	return d
}

// NewSession selects a node for req's first capability set, reserves
// capacity, performs the remote creation, and records the resulting
// session.
func (d *Distributor) NewSession(ctx context.Context, req NewSessionRequest) (sessionmap.Session, error) {
	ctx, span := d.tracer.Start(ctx, "newSession")
	defer span.End()

	if len(req.CapabilitySets) == 0 {
		err := griderr.New(griderr.SessionNotCreated, "empty capability payload")
		span.SetError(err)
		return sessionmap.Session{}, err
	}
	requested := req.CapabilitySets[0]

	finalize, _, err := d.reserveCandidate(requested)
	if err != nil {
		wrapped := griderr.Wrap(griderr.SessionNotCreated, fmt.Sprintf("no candidate node for requested capabilities %v", req.CapabilitySets), err)
		span.SetError(wrapped)
		return sessionmap.Session{}, wrapped
	}

	created, err := finalize(ctx)
	if err != nil {
		wrapped := griderr.Wrap(griderr.SessionNotCreated, fmt.Sprintf("remote session creation failed for requested capabilities %v", req.CapabilitySets), err)
		span.SetError(wrapped)
		return sessionmap.Session{}, wrapped
	}

	record := sessionmap.Session{
		SessionID:    created.SessionID,
		URI:          created.URI,
		Capabilities: created.Capabilities,
	}
	if _, err := d.sessions.Add(record); err != nil {
		wrapped := griderr.Wrap(griderr.Storage, "write session record", err)
		span.SetError(wrapped)
		return sessionmap.Session{}, wrapped
	}

	return record, nil
}

// reserveCandidate runs the selection+reservation phase under the write
// lock and returns the winner's finalize thunk. External I/O (the thunk
// itself) must run after the lock is released.
func (d *Distributor) reserveCandidate(requested capability.Capabilities) (node.Finalize, string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	browserName := requested.BrowserName()

	var candidates []selection.Candidate
	for id, h := range d.hosts {
		if h.Status() != node.Up || !h.HasCapacity(requested) {
			continue
		}
		candidates = append(candidates, selection.Candidate{
			ID:                   id,
			LastSessionCreatedAt: h.LastSessionCreatedAt(),
			Load:                 h.Load(),
			Stereotypes:          h.Stereotypes(),
			Handle:               h,
		})
	}
	if len(candidates) == 0 {
		return nil, "", node.ErrNoCapacity
	}

	filtered := selection.Prefilter(candidates, browserName)
	winner, ok := selection.Best(filtered)
	if !ok {
		return nil, "", node.ErrNoCapacity
	}

	finalize, err := winner.Handle.Reserve(requested)
	if err != nil {
		return nil, "", err
	}
	return finalize, winner.ID, nil
}

// Add registers a node directly, equivalent to receiving a valid status
// for it.
func (d *Distributor) Add(id, uri string, stereotypes []capability.Stereotype, client node.Client) {
	_, span := d.tracer.Start(context.Background(), "add")
	defer span.End()

	if client == nil {
		client = d.clientFactory.NewClient(id, uri)
	}

	d.mu.Lock()
	var removedID string
	if existingID, ok := d.byURI[uri]; ok && existingID != id {
		d.removeLocked(existingID)
		removedID = existingID
	}
	handle := node.New(id, uri, stereotypes, client)
	d.hosts[id] = handle
	d.byURI[uri] = id
	d.mu.Unlock()

	if removedID != "" {
		d.health.Deregister(removedID)
		d.publish(gridbus.SubjectNodeRemoved, struct {
			NodeID string `json:"nodeId"`
		}{NodeID: removedID})
	}
	d.health.Register(id, handle)
	d.publish(gridbus.SubjectNodeAdded, struct {
		NodeID string `json:"nodeId"`
	}{NodeID: id})
}

// Remove deletes the Node Handle for id, cancels its health check, and
// fires NODE_REMOVED.
func (d *Distributor) Remove(id string) {
	_, span := d.tracer.Start(context.Background(), "remove")
	defer span.End()

	d.mu.Lock()
	removed := d.removeLocked(id)
	d.mu.Unlock()

	if removed {
		d.health.Deregister(id)
		d.publish(gridbus.SubjectNodeRemoved, struct {
			NodeID string `json:"nodeId"`
		}{NodeID: id})
	}
}

// removeLocked deletes id from the directory. Callers must hold d.mu.
func (d *Distributor) removeLocked(id string) bool {
	h, ok := d.hosts[id]
	if !ok {
		return false
	}
	delete(d.hosts, id)
	delete(d.byURI, h.URI())
	return true
}

// Status returns a snapshot of every registered node.
func (d *Distributor) Status() []node.Summary {
	_, span := d.tracer.Start(context.Background(), "status")
	defer span.End()

	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]node.Summary, 0, len(d.hosts))
	for _, h := range d.hosts {
		out = append(out, h.AsSummary())
	}
	return out
}

// Refresh triggers an immediate health check on every registered node.
func (d *Distributor) Refresh(ctx context.Context) {
	ctx, span := d.tracer.Start(ctx, "refresh")
	defer span.End()

	d.mu.RLock()
	handles := make([]*node.Handle, 0, len(d.hosts))
	for _, h := range d.hosts {
		handles = append(handles, h)
	}
	d.mu.RUnlock()

	for _, h := range handles {
		d.health.Refresh(ctx, h)
	}
}

// IsReady reports whether the bus and Session Map both report ready.
func (d *Distributor) IsReady() bool {
	busReady := d.bus == nil || d.bus.Ready()
	sessionsReady := d.sessions == nil || d.sessions.IsReady()
	return busReady && sessionsReady
}

// handleNodeStatus implements the NODE_STATUS bus binding.
func (d *Distributor) handleNodeStatus(payload []byte) {
	var status NodeStatus
	if err := json.Unmarshal(payload, &status); err != nil {
		slog.Warn("distributor: malformed node status event", "error", err)
		return
	}

	if status.RegistrationSecret != d.secret {
		d.publish(gridbus.SubjectNodeRejected, struct {
			URI string `json:"uri"`
		}{URI: status.URI})
		return
	}

	state := availability(status.Availability)

	d.mu.Lock()
	if existing, ok := d.hosts[status.NodeID]; ok {
		existing.Update(state, status.Load, status.Stereotypes)
		d.mu.Unlock()
		return
	}
	var removedID string
	if existingID, ok := d.byURI[status.URI]; ok {
		d.removeLocked(existingID)
		removedID = existingID
	}
	client := d.clientFactory.NewClient(status.NodeID, status.URI)
	handle := node.New(status.NodeID, status.URI, status.Stereotypes, client)
	handle.Update(state, status.Load, status.Stereotypes)
	d.hosts[status.NodeID] = handle
	d.byURI[status.URI] = status.NodeID
	d.mu.Unlock()

	if removedID != "" {
		d.health.Deregister(removedID)
		d.publish(gridbus.SubjectNodeRemoved, struct {
			NodeID string `json:"nodeId"`
		}{NodeID: removedID})
	}
	d.health.Register(status.NodeID, handle)
	d.publish(gridbus.SubjectNodeAdded, struct {
		NodeID string `json:"nodeId"`
	}{NodeID: status.NodeID})
}

// handleDrainComplete implements the NODE_DRAIN_COMPLETE bus binding.
func (d *Distributor) handleDrainComplete(payload []byte) {
	var drained struct {
		NodeID string `json:"nodeId"`
	}
	if err := json.Unmarshal(payload, &drained); err != nil {
		slog.Warn("distributor: malformed drain-complete event", "error", err)
		return
	}
	d.Remove(drained.NodeID)
}

func (d *Distributor) publish(subject string, v any) {
	if d.bus == nil {
		return
	}
	if err := d.bus.Publish(subject, v); err != nil {
		slog.Warn("distributor: publish failed", "subject", subject, "error", err)
	}
}

// Close deregisters every bus subscription and stops the health checker.
func (d *Distributor) Close() {
	for _, unsub := range d.unsubscribers {
		unsub()
	}
	d.health.Close()
}
