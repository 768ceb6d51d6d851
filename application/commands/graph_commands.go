// Package commands defines the write operations accepted by the feed
// service API.
package commands

import (
	"github.com/go-playground/validator/v10"

	"dealgraph/domain/events"
	pkgerrors "dealgraph/pkg/errors"
)

var validate = validator.New()

// IngestDealCommand records one deal between two companies. Unknown
// companies are created, known ones have their attributes refreshed.
type IngestDealCommand struct {
	Source events.CompanyPayload `json:"source" validate:"required"`
	Target events.CompanyPayload `json:"target" validate:"required"`
	Deal   events.DealPayload    `json:"deal" validate:"required"`
}

// Validate checks the command's field constraints
func (c IngestDealCommand) Validate() error {
	if err := validate.Struct(c); err != nil {
		return pkgerrors.NewValidationError("invalid ingest command: " + err.Error())
	}
	if c.Deal.SourceID != c.Source.ID || c.Deal.TargetID != c.Target.ID {
		return pkgerrors.NewValidationError("deal endpoints must reference the supplied companies")
	}
	if c.Deal.IsPredicted {
		return pkgerrors.NewValidationError("predicted deals cannot be ingested directly")
	}
	return nil
}

// RemoveCompanyCommand deletes a company and cascades to its deals
type RemoveCompanyCommand struct {
	CompanyID string `json:"company_id" validate:"required"`
}

// Validate checks the command's field constraints
func (c RemoveCompanyCommand) Validate() error {
	if err := validate.Struct(c); err != nil {
		return pkgerrors.NewValidationError("invalid remove command: " + err.Error())
	}
	return nil
}

// RemoveDealCommand deletes a single deal
type RemoveDealCommand struct {
	DealID string `json:"deal_id" validate:"required"`
}

// Validate checks the command's field constraints
func (c RemoveDealCommand) Validate() error {
	if err := validate.Struct(c); err != nil {
		return pkgerrors.NewValidationError("invalid remove command: " + err.Error())
	}
	return nil
}

// LoadSnapshotCommand replaces the whole graph, used for dataset loads
type LoadSnapshotCommand struct {
	Snapshot *events.SnapshotPayload `json:"snapshot" validate:"required"`
}

// Validate checks the command's field constraints
func (c LoadSnapshotCommand) Validate() error {
	if c.Snapshot == nil {
		return pkgerrors.NewValidationError("snapshot payload is required")
	}
	return nil
}

// RefreshPredictionsCommand recomputes the predicted edge layer
type RefreshPredictionsCommand struct{}

// Validate always passes; the command has no parameters
func (RefreshPredictionsCommand) Validate() error {
	return nil
}
