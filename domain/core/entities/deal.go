package entities

import (
	"math"
	"time"

	"dealgraph/domain/core/valueobjects"
	pkgerrors "dealgraph/pkg/errors"
)

// DealType classifies the relationship an edge represents
type DealType string

const (
	DealTypeMerger       DealType = "merger"
	DealTypeAcquisition  DealType = "acquisition"
	DealTypePartnership  DealType = "partnership"
	DealTypeInvestment   DealType = "investment"
	DealTypeIPO          DealType = "ipo"
	DealTypeJointVenture DealType = "joint_venture"
	DealTypeOther        DealType = "other"
)

// IsValid reports whether the deal type is one of the known values
func (t DealType) IsValid() bool {
	switch t {
	case DealTypeMerger, DealTypeAcquisition, DealTypePartnership,
		DealTypeInvestment, DealTypeIPO, DealTypeJointVenture, DealTypeOther:
		return true
	}
	return false
}

// DealAttributes carries the display metadata for a deal edge
type DealAttributes struct {
	DealValue   float64   `json:"deal_value"`
	DealDate    time.Time `json:"deal_date"`
	Description string    `json:"description,omitempty"`
}

// Deal is an edge in the graph: an observed or predicted relationship
// between two companies. Predicted deals carry a confidence score.
type Deal struct {
	id          valueobjects.DealID
	sourceID    valueobjects.CompanyID
	targetID    valueobjects.CompanyID
	dealType    DealType
	isPredicted bool
	confidence  float64
	attributes  DealAttributes
	createdAt   time.Time
}

// NewDeal creates an observed deal edge
func NewDeal(id valueobjects.DealID, source, target valueobjects.CompanyID, dealType DealType, attrs DealAttributes) (*Deal, error) {
	return newDeal(id, source, target, dealType, false, 0, attrs)
}

// NewPredictedDeal creates a predicted deal edge with a confidence score
func NewPredictedDeal(id valueobjects.DealID, source, target valueobjects.CompanyID, dealType DealType, confidence float64, attrs DealAttributes) (*Deal, error) {
	return newDeal(id, source, target, dealType, true, confidence, attrs)
}

func newDeal(id valueobjects.DealID, source, target valueobjects.CompanyID, dealType DealType, predicted bool, confidence float64, attrs DealAttributes) (*Deal, error) {
	if id.IsZero() {
		id = valueobjects.NewDealID()
	}
	if source.IsZero() || target.IsZero() {
		return nil, pkgerrors.NewValidationError("deal requires both source and target company IDs")
	}
	if source.Equals(target) {
		return nil, pkgerrors.NewValidationError("deal cannot connect a company to itself")
	}
	if !dealType.IsValid() {
		dealType = DealTypeOther
	}
	if predicted {
		if confidence < 0 || confidence > 1 || math.IsNaN(confidence) {
			return nil, pkgerrors.NewValidationError("predicted deal confidence must be within [0,1]")
		}
	} else if confidence != 0 {
		return nil, pkgerrors.NewValidationError("observed deals carry no confidence score")
	}
	if attrs.DealValue < 0 {
		return nil, pkgerrors.NewValidationError("deal value cannot be negative")
	}

	return &Deal{
		id:          id,
		sourceID:    source,
		targetID:    target,
		dealType:    dealType,
		isPredicted: predicted,
		confidence:  confidence,
		attributes:  attrs,
		createdAt:   time.Now(),
	}, nil
}

// ID returns the deal's unique identifier
func (d *Deal) ID() valueobjects.DealID {
	return d.id
}

// SourceID returns the source company ID
func (d *Deal) SourceID() valueobjects.CompanyID {
	return d.sourceID
}

// TargetID returns the target company ID
func (d *Deal) TargetID() valueobjects.CompanyID {
	return d.targetID
}

// Type returns the deal classification
func (d *Deal) Type() DealType {
	return d.dealType
}

// IsPredicted reports whether this edge came from the inference service
func (d *Deal) IsPredicted() bool {
	return d.isPredicted
}

// Confidence returns the prediction confidence, 0 for observed deals
func (d *Deal) Confidence() float64 {
	return d.confidence
}

// Attributes returns the deal's display metadata
func (d *Deal) Attributes() DealAttributes {
	return d.attributes
}

// CreatedAt returns when the edge entered the model
func (d *Deal) CreatedAt() time.Time {
	return d.createdAt
}

// Touches reports whether the deal references the given company
func (d *Deal) Touches(id valueobjects.CompanyID) bool {
	return d.sourceID.Equals(id) || d.targetID.Equals(id)
}

// Weight maps deal value onto a link weight with a log10 scale, so a
// $10B acquisition pulls harder than a $10M seed round without
// dominating the layout outright. Valueless deals weigh 1.
func (d *Deal) Weight() float64 {
	if d.attributes.DealValue <= 0 {
		return 1.0
	}
	return 1.0 + math.Log10(1.0+d.attributes.DealValue/1e6)
}

// Clone returns an independent copy, used when forking overlay views
func (d *Deal) Clone() *Deal {
	dup := *d
	return &dup
}
