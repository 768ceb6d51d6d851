package websocket

import (
	"go.uber.org/zap"

	"dealgraph/domain/core/entities"
	"dealgraph/domain/core/valueobjects"
	"dealgraph/domain/events"
)

// Publisher turns graph mutations into feed messages and hands them to
// the hub for sequencing and fan-out. Command handlers publish through
// this after the server-side model has accepted the change, so clients
// only ever see committed state.
type Publisher struct {
	hub    *Hub
	logger *zap.Logger
}

// NewPublisher creates a feed publisher
func NewPublisher(hub *Hub, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{hub: hub, logger: logger}
}

// GraphReplaced announces a full graph swap
func (p *Publisher) GraphReplaced(nodes []*entities.Company, edges []*entities.Deal) {
	p.send(events.FeedMessage{
		Type:     events.EventGraphReplace,
		Snapshot: events.SnapshotToPayload(nodes, edges),
	})
}

// NodeAdded announces a new or refreshed company
func (p *Publisher) NodeAdded(c *entities.Company) {
	payload := events.CompanyToPayload(c)
	p.send(events.FeedMessage{
		Type: events.EventNodeAdded,
		Node: &payload,
	})
}

// NodeRemoved announces a company removal; clients cascade the edges
// themselves
func (p *Publisher) NodeRemoved(id valueobjects.CompanyID) {
	p.send(events.FeedMessage{
		Type:   events.EventNodeRemoved,
		NodeID: id.String(),
	})
}

// EdgeAdded announces a new deal
func (p *Publisher) EdgeAdded(d *entities.Deal) {
	payload := events.DealToPayload(d)
	p.send(events.FeedMessage{
		Type: events.EventEdgeAdded,
		Edge: &payload,
	})
}

// EdgeRemoved announces a deal removal
func (p *Publisher) EdgeRemoved(id valueobjects.DealID) {
	p.send(events.FeedMessage{
		Type:   events.EventEdgeRemoved,
		EdgeID: id.String(),
	})
}

// PredictionsReplaced announces a wholesale swap of the predicted
// edge set
func (p *Publisher) PredictionsReplaced(predictions []*entities.Deal) {
	payloads := make([]events.DealPayload, 0, len(predictions))
	for _, d := range predictions {
		payloads = append(payloads, events.DealToPayload(d))
	}
	p.send(events.FeedMessage{
		Type:        events.EventPredictionsReplaced,
		Predictions: payloads,
	})
}

func (p *Publisher) send(msg events.FeedMessage) {
	if err := p.hub.Publish(msg); err != nil {
		p.logger.Error("feed publish failed",
			zap.String("type", string(msg.Type)),
			zap.Error(err),
		)
	}
}
