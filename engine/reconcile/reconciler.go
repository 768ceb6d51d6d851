// Package reconcile turns the live update feed into graph store deltas.
// Events are applied strictly in arrival order, one at a time; the
// reconciler never reorders or coalesces across event boundaries
// because later events may depend on earlier ones. When it cannot trust
// the stream (sequence gap, reconnect, live-updates re-enabled) it asks
// the transport for a full snapshot instead of risking silent drift.
package reconcile

import (
	"go.uber.org/zap"

	"dealgraph/domain/core/entities"
	"dealgraph/domain/core/valueobjects"
	"dealgraph/domain/deltas"
	"dealgraph/domain/events"
	"dealgraph/engine/store"
	pkgerrors "dealgraph/pkg/errors"
	"dealgraph/pkg/metrics"
)

// maxParkedEdges bounds the repair buffer for edges that arrived before
// an endpoint node. Beyond it the oldest entry is evicted with a
// warning; the periodic snapshot refresh will heal the loss.
const maxParkedEdges = 256

// SnapshotRequester lets the reconciler ask the transport for a full
// graph_replace when the stream can no longer be trusted.
type SnapshotRequester interface {
	RequestSnapshot()
}

// Status is the reconciler's externally visible state, surfaced to the
// UI as connection/liveness flags.
type Status struct {
	Connected bool   `json:"connected"`
	Live      bool   `json:"live"`
	LastSeq   uint64 `json:"last_seq"`
	Parked    int    `json:"parked_edges"`
}

type parkedEdge struct {
	edge    *entities.Deal
	waitFor valueobjects.CompanyID
}

// Reconciler reduces feed messages to store deltas. Owned by the engine
// loop; not safe for concurrent use.
type Reconciler struct {
	store     *store.Store
	requester SnapshotRequester
	logger    *zap.Logger
	metrics   *metrics.Metrics

	lastSeq          uint64
	haveSeq          bool
	live             bool
	connected        bool
	awaitingSnapshot bool

	// FIFO of edges waiting for a missing endpoint
	parked []parkedEdge
}

// New creates a reconciler over the given store. Live updates start
// enabled; the transport flips connection state via HandleConnect and
// HandleDisconnect.
func New(st *store.Store, logger *zap.Logger, m *metrics.Metrics) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		store:   st,
		logger:  logger,
		metrics: m,
		live:    true,
	}
}

// SetRequester wires the transport used for full snapshot requests
func (r *Reconciler) SetRequester(q SnapshotRequester) {
	r.requester = q
}

// Status returns the current reconciler state
func (r *Reconciler) Status() Status {
	return Status{
		Connected: r.connected,
		Live:      r.live,
		LastSeq:   r.lastSeq,
		Parked:    len(r.parked),
	}
}

// Live reports whether incoming events are being applied
func (r *Reconciler) Live() bool {
	return r.live
}

// SetLive toggles application of feed events. Disabling keeps the
// last-known-good graph on screen; re-enabling requests a full snapshot
// because events were dropped in between.
func (r *Reconciler) SetLive(live bool) {
	if r.live == live {
		return
	}
	r.live = live
	if live {
		r.logger.Info("live updates re-enabled, requesting snapshot")
		r.requestSnapshot()
	} else {
		r.logger.Info("live updates disabled")
	}
}

// HandleConnect marks the transport up. The stream position is unknown
// after a (re)connect, so a snapshot is always requested.
func (r *Reconciler) HandleConnect() {
	r.connected = true
	r.haveSeq = false
	r.requestSnapshot()
}

// HandleDisconnect marks the transport down. The model is deliberately
// left intact: a stale but valid graph beats an empty screen.
func (r *Reconciler) HandleDisconnect(err error) {
	r.connected = false
	if err != nil {
		r.logger.Warn("feed disconnected", zap.Error(err))
	} else {
		r.logger.Info("feed disconnected")
	}
}

// Apply reduces one feed message to store deltas and applies them. The
// returned result aggregates everything the message changed, including
// any parked edges it unlocked.
func (r *Reconciler) Apply(msg events.FeedMessage) (store.Result, error) {
	if !r.live {
		r.dropped("live_disabled")
		return store.Result{}, nil
	}

	// Non-event frames carry no sequence number; rejecting them before
	// the sequence check keeps them from registering as a gap.
	if !msg.Type.Valid() {
		r.dropped("unknown_type")
		return store.Result{}, pkgerrors.NewValidationError("unknown feed event type " + string(msg.Type))
	}

	if err := r.checkSequence(msg); err != nil {
		return store.Result{}, err
	}

	switch msg.Type {
	case events.EventGraphReplace:
		return r.applyReplace(msg)
	case events.EventNodeAdded:
		return r.applyNodeAdded(msg)
	case events.EventNodeRemoved:
		return r.applyNodeRemoved(msg)
	case events.EventEdgeAdded:
		return r.applyEdgeAdded(msg)
	case events.EventEdgeRemoved:
		return r.applyEdgeRemoved(msg)
	default:
		return r.applyPredictions(msg)
	}
}

// checkSequence enforces gap-free, in-order delivery. A graph_replace
// passes unconditionally; the reconciler re-anchors on it only once the
// payload has been applied. Anything else past a gap is dropped and a
// snapshot is requested instead.

func (r *Reconciler) checkSequence(msg events.FeedMessage) error {
	if msg.Type == events.EventGraphReplace {
		return nil
	}

	if r.awaitingSnapshot {
		r.dropped("awaiting_snapshot")
		return pkgerrors.NewSequenceGapError(r.lastSeq+1, msg.Seq)
	}

	if r.haveSeq && msg.Seq != r.lastSeq+1 {
		r.logger.Warn("feed sequence gap",
			zap.Uint64("expected", r.lastSeq+1),
			zap.Uint64("got", msg.Seq),
		)
		r.dropped("sequence_gap")
		r.awaitingSnapshot = true
		r.requestSnapshot()
		return pkgerrors.NewSequenceGapError(r.lastSeq+1, msg.Seq)
	}

	r.lastSeq = msg.Seq
	r.haveSeq = true
	return nil
}

func (r *Reconciler) applyReplace(msg events.FeedMessage) (store.Result, error) {
	if msg.Snapshot == nil {
		r.dropped("malformed")
		if r.awaitingSnapshot {
			// The recovery request was answered with garbage; ask again
			// rather than staying quarantined forever.
			r.requestSnapshot()
		}
		return store.Result{}, pkgerrors.NewValidationError("graph_replace without snapshot payload")
	}

	nodes := make([]*entities.Company, 0, len(msg.Snapshot.Nodes))
	for _, p := range msg.Snapshot.Nodes {
		n, err := p.ToEntity()
		if err != nil {
			r.warnMalformed("node", err)
			continue
		}
		nodes = append(nodes, n)
	}
	edges := make([]*entities.Deal, 0, len(msg.Snapshot.Edges))
	for _, p := range msg.Snapshot.Edges {
		e, err := p.ToEntity()
		if err != nil {
			r.warnMalformed("edge", err)
			continue
		}
		edges = append(edges, e)
	}

	res, err := r.store.Apply(deltas.FullReplace{Nodes: nodes, Edges: edges})
	if err != nil {
		return res, err
	}
	r.applied(msg.Type)

	// Re-anchor only now that the snapshot is in the store; a replace
	// that failed to apply must not lift the quarantine.
	r.lastSeq = msg.Seq
	r.haveSeq = true
	r.awaitingSnapshot = false

	// A full snapshot supersedes anything still parked
	r.setParked(nil)
	return res, nil
}

func (r *Reconciler) applyNodeAdded(msg events.FeedMessage) (store.Result, error) {
	if msg.Node == nil {
		r.dropped("malformed")
		return store.Result{}, pkgerrors.NewValidationError("node_added without node payload")
	}
	node, err := msg.Node.ToEntity()
	if err != nil {
		r.warnMalformed("node", err)
		return store.Result{}, err
	}

	res, err := r.store.Apply(deltas.AddNode{Node: node})
	if err != nil {
		return res, err
	}
	r.applied(msg.Type)

	// The new node may unlock edges that arrived before it
	unlocked := r.retryParked(node.ID())
	res = merge(res, unlocked)
	return res, nil
}

func (r *Reconciler) applyNodeRemoved(msg events.FeedMessage) (store.Result, error) {
	id, err := valueobjects.NewCompanyID(msg.NodeID)
	if err != nil {
		r.dropped("malformed")
		return store.Result{}, pkgerrors.NewValidationError("node_removed with empty node_id")
	}

	res, err := r.store.Apply(deltas.RemoveNode{ID: id})
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			// Remove of an unknown node is a harmless replay
			r.dropped("already_removed")
			return store.Result{}, nil
		}
		return res, err
	}
	r.applied(msg.Type)
	r.unparkWaitingOn(id)
	return res, nil
}

func (r *Reconciler) applyEdgeAdded(msg events.FeedMessage) (store.Result, error) {
	if msg.Edge == nil {
		r.dropped("malformed")
		return store.Result{}, pkgerrors.NewValidationError("edge_added without edge payload")
	}
	edge, err := msg.Edge.ToEntity()
	if err != nil {
		r.warnMalformed("edge", err)
		return store.Result{}, err
	}

	res, err := r.store.Apply(deltas.AddEdge{Edge: edge})
	if err != nil {
		if pkgerrors.IsUnknownEndpoint(err) {
			// The endpoint may simply not have arrived yet: park the
			// edge and retry when the node shows up.
			r.park(edge)
			return store.Result{}, nil
		}
		return res, err
	}
	r.applied(msg.Type)
	return res, nil
}

func (r *Reconciler) applyEdgeRemoved(msg events.FeedMessage) (store.Result, error) {
	id, err := valueobjects.NewDealIDFromString(msg.EdgeID)
	if err != nil {
		r.dropped("malformed")
		return store.Result{}, pkgerrors.NewValidationError("edge_removed with empty edge_id")
	}

	res, err := r.store.Apply(deltas.RemoveEdge{ID: id})
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			r.dropped("already_removed")
			return store.Result{}, nil
		}
		return res, err
	}
	r.applied(msg.Type)
	return res, nil
}

func (r *Reconciler) applyPredictions(msg events.FeedMessage) (store.Result, error) {
	edges := make([]*entities.Deal, 0, len(msg.Predictions))
	for _, p := range msg.Predictions {
		e, err := p.ToEntity()
		if err != nil {
			r.warnMalformed("prediction", err)
			continue
		}
		edges = append(edges, e)
	}

	res, err := r.store.Apply(deltas.ReplacePredictions{Edges: edges})
	if err != nil {
		return res, err
	}
	r.applied(msg.Type)
	return res, nil
}

// park defers an edge whose endpoint is missing. Bounded: beyond
// maxParkedEdges the oldest entry is evicted.
func (r *Reconciler) park(edge *entities.Deal) {
	missing := edge.SourceID()
	if r.store.HasCompany(missing) {
		missing = edge.TargetID()
	}

	if len(r.parked) >= maxParkedEdges {
		evicted := r.parked[0]
		r.setParked(r.parked[1:])
		r.logger.Warn("parked edge buffer full, evicting oldest",
			zap.String("edge_id", evicted.edge.ID().String()),
		)
		r.dropped("park_evicted")
	}

	r.setParked(append(r.parked, parkedEdge{edge: edge, waitFor: missing}))
	r.dropped("parked")
	r.logger.Debug("parked edge awaiting endpoint",
		zap.String("edge_id", edge.ID().String()),
		zap.String("waiting_for", missing.String()),
	)
}

// retryParked re-applies edges that were waiting for the given node.
// An edge whose other endpoint is still missing is re-parked.
func (r *Reconciler) retryParked(arrived valueobjects.CompanyID) store.Result {
	var total store.Result
	remaining := r.parked[:0]
	retry := []parkedEdge{}
	for _, p := range r.parked {
		if p.waitFor.Equals(arrived) {
			retry = append(retry, p)
		} else {
			remaining = append(remaining, p)
		}
	}
	r.setParked(remaining)

	for _, p := range retry {
		res, err := r.store.Apply(deltas.AddEdge{Edge: p.edge})
		if err != nil {
			if pkgerrors.IsUnknownEndpoint(err) {
				r.park(p.edge)
				continue
			}
			r.logger.Warn("dropping parked edge", zap.Error(err))
			r.dropped("malformed")
			continue
		}
		r.applied(events.EventEdgeAdded)
		total = merge(total, res)
	}
	return total
}

// unparkWaitingOn drops parked edges that were waiting for a node that
// has now been removed instead of added; they can never apply.
func (r *Reconciler) unparkWaitingOn(removed valueobjects.CompanyID) {
	remaining := r.parked[:0]
	for _, p := range r.parked {
		if p.waitFor.Equals(removed) || p.edge.Touches(removed) {
			r.dropped("endpoint_removed")
			continue
		}
		remaining = append(remaining, p)
	}
	r.setParked(remaining)
}

func (r *Reconciler) setParked(p []parkedEdge) {
	r.parked = p
	if r.metrics != nil {
		r.metrics.ParkedEdges.Set(float64(len(p)))
	}
}

func (r *Reconciler) requestSnapshot() {
	if r.requester == nil {
		return
	}
	if r.metrics != nil {
		r.metrics.SnapshotRequests.Inc()
	}
	r.requester.RequestSnapshot()
}

func (r *Reconciler) applied(t events.EventType) {
	if r.metrics != nil {
		r.metrics.EventsApplied.WithLabelValues(string(t)).Inc()
	}
}

func (r *Reconciler) dropped(reason string) {
	if r.metrics != nil {
		r.metrics.EventsDropped.WithLabelValues(reason).Inc()
	}
}

func (r *Reconciler) warnMalformed(what string, err error) {
	r.logger.Warn("dropping malformed "+what+" payload", zap.Error(err))
	r.dropped("malformed")
}

func merge(a, b store.Result) store.Result {
	return store.Result{
		Structural: a.Structural || b.Structural,
		Affected:   append(a.Affected, b.Affected...),
	}
}
