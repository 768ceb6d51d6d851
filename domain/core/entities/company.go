package entities

import (
	"math"
	"strings"
	"time"

	"dealgraph/domain/core/valueobjects"
	pkgerrors "dealgraph/pkg/errors"
)

// Visual sizing bounds. Zero-score companies still get a clickable dot.
const (
	MinNodeRadius = 8.0
	MaxNodeRadius = 26.0
)

// CompanyAttributes is the opaque attribute record carried by the feed.
// The engine treats it as display data; only ExtraordinaryScore feeds
// back into geometry (via Radius).
type CompanyAttributes struct {
	Industry           string         `json:"industry"`
	Valuation          float64        `json:"valuation"`
	FoundedYear        int            `json:"founded_year"`
	ExtraordinaryScore float64        `json:"extraordinary_score"`
	LogoRef            string         `json:"logo_ref,omitempty"`
	DealActivityCount  int            `json:"deal_activity_count"`
	Custom             map[string]any `json:"custom,omitempty"`
}

// Company is a node in the deal graph.
// Identity is stable across feed updates; position and pin state are
// owned by the layout solver and the interaction layer respectively and
// survive attribute refreshes.
type Company struct {
	id         valueobjects.CompanyID
	label      string
	attributes CompanyAttributes
	position   valueobjects.Position
	velocity   valueobjects.Velocity
	pinned     bool
	updatedAt  time.Time
}

// NewCompany creates a company node with validated attributes
func NewCompany(id valueobjects.CompanyID, label string, attrs CompanyAttributes) (*Company, error) {
	if id.IsZero() {
		return nil, pkgerrors.NewValidationError("company ID is required")
	}
	if strings.TrimSpace(label) == "" {
		label = id.String()
	}
	if attrs.ExtraordinaryScore < 0 || attrs.ExtraordinaryScore > 100 {
		return nil, pkgerrors.NewValidationError("extraordinary score must be within [0,100]")
	}

	return &Company{
		id:         id,
		label:      label,
		attributes: attrs,
		updatedAt:  time.Now(),
	}, nil
}

// ID returns the company's stable identifier
func (c *Company) ID() valueobjects.CompanyID {
	return c.id
}

// Label returns the display label
func (c *Company) Label() string {
	return c.label
}

// Attributes returns the opaque attribute record
func (c *Company) Attributes() CompanyAttributes {
	return c.attributes
}

// UpdatedAt returns when the company last received an attribute refresh
func (c *Company) UpdatedAt() time.Time {
	return c.updatedAt
}

// ColorKey derives the palette key from the company's industry
func (c *Company) ColorKey() string {
	key := strings.ToLower(strings.TrimSpace(c.attributes.Industry))
	if key == "" {
		return "other"
	}
	return key
}

// Radius maps the extraordinary score to a visual radius, clamped so a
// zero-score company remains clickable.
func (c *Company) Radius() float64 {
	score := c.attributes.ExtraordinaryScore
	if score < 0 {
		score = 0
	} else if score > 100 {
		score = 100
	}
	r := MinNodeRadius + (MaxNodeRadius-MinNodeRadius)*math.Sqrt(score/100)
	return r
}

// Position returns the current world position
func (c *Company) Position() valueobjects.Position {
	return c.position
}

// Velocity returns the layout solver's accumulated displacement
func (c *Company) Velocity() valueobjects.Velocity {
	return c.velocity
}

// Pinned reports whether the node is excluded from layout integration
func (c *Company) Pinned() bool {
	return c.pinned
}

// MoveTo places the node at an absolute world position.
// A non-finite candidate is rejected and the previous position retained.
func (c *Company) MoveTo(x, y float64) error {
	pos, err := valueobjects.NewPosition(x, y)
	if err != nil {
		return pkgerrors.NewValidationError("position must be finite").WithCause(err)
	}
	c.position = pos
	return nil
}

// SetVelocity replaces the accumulated displacement.
// Non-finite vectors are rejected so the solver can never poison a node.
func (c *Company) SetVelocity(v valueobjects.Velocity) error {
	if !v.IsFinite() {
		return pkgerrors.NewValidationError("velocity must be finite")
	}
	c.velocity = v
	return nil
}

// Pin fixes the node in place; the layout solver skips pinned nodes
func (c *Company) Pin() {
	c.pinned = true
	c.velocity = valueobjects.Velocity{}
}

// Unpin releases the node back to the solver with zero velocity
func (c *Company) Unpin() {
	c.pinned = false
	c.velocity = valueobjects.Velocity{}
}

// Refresh overwrites label and attributes from a newer version of the
// same company while preserving position, velocity and pin state. This
// is what keeps a background refresh from visually jumping a node the
// user is mid-drag on.
func (c *Company) Refresh(other *Company) error {
	if other == nil {
		return pkgerrors.NewValidationError("refresh source cannot be nil")
	}
	if !c.id.Equals(other.id) {
		return pkgerrors.NewConflictError("refresh source has a different company ID")
	}
	c.label = other.label
	c.attributes = other.attributes
	c.updatedAt = time.Now()
	return nil
}

// Clone returns an independent copy, used when forking overlay views
func (c *Company) Clone() *Company {
	dup := *c
	return &dup
}
