// Package events defines the wire format of the live update feed.
// Messages are JSON, carry a monotonically increasing sequence number,
// and must be applied in arrival order; the reconciler treats a gap in
// the sequence as grounds for requesting a full snapshot.
package events

import (
	"time"

	"dealgraph/domain/core/entities"
	"dealgraph/domain/core/valueobjects"
	pkgerrors "dealgraph/pkg/errors"
)

// EventType enumerates the feed message kinds
type EventType string

const (
	EventGraphReplace        EventType = "graph_replace"
	EventNodeAdded           EventType = "node_added"
	EventNodeRemoved         EventType = "node_removed"
	EventEdgeAdded           EventType = "edge_added"
	EventEdgeRemoved         EventType = "edge_removed"
	EventPredictionsReplaced EventType = "predictions_replaced"
)

// Valid reports whether the type is a known feed event. Connection
// housekeeping frames are not events and carry no sequence number, so
// consumers must filter on this before sequence checking.
func (t EventType) Valid() bool {
	switch t {
	case EventGraphReplace, EventNodeAdded, EventNodeRemoved,
		EventEdgeAdded, EventEdgeRemoved, EventPredictionsReplaced:
		return true
	}
	return false
}

// CompanyPayload is the wire form of a company node
type CompanyPayload struct {
	ID         string                     `json:"id" validate:"required"`
	Label      string                     `json:"label"`
	Attributes entities.CompanyAttributes `json:"attributes"`
}

// DealPayload is the wire form of a deal edge
type DealPayload struct {
	ID          string                  `json:"id"`
	SourceID    string                  `json:"source_id" validate:"required"`
	TargetID    string                  `json:"target_id" validate:"required"`
	DealType    string                  `json:"deal_type"`
	IsPredicted bool                    `json:"is_predicted"`
	Confidence  float64                 `json:"confidence,omitempty"`
	Attributes  entities.DealAttributes `json:"attributes"`
}

// SnapshotPayload is the wire form of a full graph replacement
type SnapshotPayload struct {
	Nodes []CompanyPayload `json:"nodes"`
	Edges []DealPayload    `json:"edges"`
}

// FeedMessage is one envelope on the live update stream
type FeedMessage struct {
	Seq         uint64           `json:"seq"`
	Type        EventType        `json:"type"`
	Timestamp   time.Time        `json:"timestamp"`
	Snapshot    *SnapshotPayload `json:"snapshot,omitempty"`
	Node        *CompanyPayload  `json:"node,omitempty"`
	NodeID      string           `json:"node_id,omitempty"`
	Edge        *DealPayload     `json:"edge,omitempty"`
	EdgeID      string           `json:"edge_id,omitempty"`
	Predictions []DealPayload    `json:"predictions,omitempty"`
}

// ToEntity converts a company payload into a domain entity
func (p CompanyPayload) ToEntity() (*entities.Company, error) {
	id, err := valueobjects.NewCompanyID(p.ID)
	if err != nil {
		return nil, pkgerrors.NewValidationError("company payload: " + err.Error())
	}
	return entities.NewCompany(id, p.Label, p.Attributes)
}

// ToEntity converts a deal payload into a domain entity
func (p DealPayload) ToEntity() (*entities.Deal, error) {
	var id valueobjects.DealID
	if p.ID != "" {
		var err error
		id, err = valueobjects.NewDealIDFromString(p.ID)
		if err != nil {
			return nil, pkgerrors.NewValidationError("deal payload: " + err.Error())
		}
	}
	source, err := valueobjects.NewCompanyID(p.SourceID)
	if err != nil {
		return nil, pkgerrors.NewValidationError("deal payload source: " + err.Error())
	}
	target, err := valueobjects.NewCompanyID(p.TargetID)
	if err != nil {
		return nil, pkgerrors.NewValidationError("deal payload target: " + err.Error())
	}

	if p.IsPredicted {
		return entities.NewPredictedDeal(id, source, target, entities.DealType(p.DealType), p.Confidence, p.Attributes)
	}
	return entities.NewDeal(id, source, target, entities.DealType(p.DealType), p.Attributes)
}

// CompanyToPayload converts a domain entity to its wire form
func CompanyToPayload(c *entities.Company) CompanyPayload {
	return CompanyPayload{
		ID:         c.ID().String(),
		Label:      c.Label(),
		Attributes: c.Attributes(),
	}
}

// DealToPayload converts a domain entity to its wire form
func DealToPayload(d *entities.Deal) DealPayload {
	return DealPayload{
		ID:          d.ID().String(),
		SourceID:    d.SourceID().String(),
		TargetID:    d.TargetID().String(),
		DealType:    string(d.Type()),
		IsPredicted: d.IsPredicted(),
		Confidence:  d.Confidence(),
		Attributes:  d.Attributes(),
	}
}

// SnapshotToPayload converts full node/edge sets to their wire form
func SnapshotToPayload(nodes []*entities.Company, edges []*entities.Deal) *SnapshotPayload {
	p := &SnapshotPayload{
		Nodes: make([]CompanyPayload, 0, len(nodes)),
		Edges: make([]DealPayload, 0, len(edges)),
	}
	for _, n := range nodes {
		p.Nodes = append(p.Nodes, CompanyToPayload(n))
	}
	for _, e := range edges {
		p.Edges = append(p.Edges, DealToPayload(e))
	}
	return p
}
