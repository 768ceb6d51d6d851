// Package simulation defines the request/response contract with the
// deal prediction service. The prediction algorithm itself lives behind
// that interface; this package only models its inputs and outputs.
package simulation

import (
	"time"

	"github.com/go-playground/validator/v10"

	"dealgraph/domain/core/valueobjects"
	"dealgraph/domain/events"
	pkgerrors "dealgraph/pkg/errors"
)

var validate = validator.New()

// ScenarioRequest describes a what-if scenario to evaluate
type ScenarioRequest struct {
	ScenarioText      string   `json:"scenario_text" validate:"required,min=3,max=2000"`
	CompaniesInvolved []string `json:"companies_involved" validate:"required,min=1,dive,required"`
	DealType          string   `json:"deal_type,omitempty" validate:"omitempty,oneof=merger acquisition partnership investment ipo joint_venture other"`
}

// Validate checks the request against its field constraints
func (r ScenarioRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return pkgerrors.NewValidationError("invalid scenario request: " + err.Error())
	}
	return nil
}

// Result is the prediction service's answer: a pure function output that
// is only ever rendered as an overlay, never merged into the live graph.
type Result struct {
	ScenarioText      string                    `json:"scenario_text"`
	Confidence        float64                   `json:"confidence"`
	AffectedNodeIDs   []valueobjects.CompanyID  `json:"affected_node_ids"`
	NewOrChangedEdges []events.DealPayload      `json:"new_or_changed_edges"`
	TimelineText      string                    `json:"timeline_text,omitempty"`
	CreatedAt         time.Time                 `json:"created_at"`
}

// Validate checks the result invariants before it is applied as an overlay
func (r *Result) Validate() error {
	if r.Confidence < 0 || r.Confidence > 1 {
		return pkgerrors.NewValidationError("simulation confidence must be within [0,1]")
	}
	for _, e := range r.NewOrChangedEdges {
		if e.SourceID == "" || e.TargetID == "" {
			return pkgerrors.NewValidationError("simulation edge missing an endpoint")
		}
	}
	return nil
}

// AffectedSet returns the affected node IDs as a lookup set
func (r *Result) AffectedSet() map[valueobjects.CompanyID]struct{} {
	set := make(map[valueobjects.CompanyID]struct{}, len(r.AffectedNodeIDs))
	for _, id := range r.AffectedNodeIDs {
		set[id] = struct{}{}
	}
	return set
}
