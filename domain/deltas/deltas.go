// Package deltas defines the mutation vocabulary of the graph store.
// Every change to the data model, whether it came off the live feed, a
// user command, or a fixture, is expressed as one of these deltas and
// applied atomically.
package deltas

import (
	"dealgraph/domain/core/entities"
	"dealgraph/domain/core/valueobjects"
)

// Kind discriminates delta variants for logging and metrics
type Kind string

const (
	KindFullReplace        Kind = "full_replace"
	KindAddNode            Kind = "add_node"
	KindRemoveNode         Kind = "remove_node"
	KindAddEdge            Kind = "add_edge"
	KindRemoveEdge         Kind = "remove_edge"
	KindReplacePredictions Kind = "replace_predictions"
)

// Delta is a single atomic mutation of the graph model
type Delta interface {
	Kind() Kind
}

// FullReplace swaps the entire graph for a new node/edge set.
// Positions and pin state of surviving node IDs are preserved.
type FullReplace struct {
	Nodes []*entities.Company
	Edges []*entities.Deal
}

// AddNode inserts a company, or refreshes its attributes if the ID is
// already present.
type AddNode struct {
	Node *entities.Company
}

// RemoveNode deletes a company and cascades to every edge touching it
type RemoveNode struct {
	ID valueobjects.CompanyID
}

// AddEdge inserts a deal, or refreshes it if the ID is already present
type AddEdge struct {
	Edge *entities.Deal
}

// RemoveEdge deletes a deal by ID
type RemoveEdge struct {
	ID valueobjects.DealID
}

// ReplacePredictions drops every predicted edge and installs the given
// set, leaving observed edges untouched.
type ReplacePredictions struct {
	Edges []*entities.Deal
}

func (FullReplace) Kind() Kind        { return KindFullReplace }
func (AddNode) Kind() Kind            { return KindAddNode }
func (RemoveNode) Kind() Kind         { return KindRemoveNode }
func (AddEdge) Kind() Kind            { return KindAddEdge }
func (RemoveEdge) Kind() Kind         { return KindRemoveEdge }
func (ReplacePredictions) Kind() Kind { return KindReplacePredictions }
