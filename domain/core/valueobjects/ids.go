package valueobjects

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// CompanyID is a value object identifying a company node.
// IDs arrive from the upstream feed and must stay stable across updates,
// so no particular format is enforced beyond being non-empty.
type CompanyID struct {
	value string
}

// NewCompanyID creates a CompanyID from a feed-supplied identifier
func NewCompanyID(id string) (CompanyID, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return CompanyID{}, errors.New("company ID cannot be empty")
	}
	return CompanyID{value: id}, nil
}

// MustCompanyID is a convenience constructor for fixtures and tests
func MustCompanyID(id string) CompanyID {
	cid, err := NewCompanyID(id)
	if err != nil {
		panic(err)
	}
	return cid
}

// String returns the string representation of the CompanyID
func (id CompanyID) String() string {
	return id.value
}

// Equals checks if two CompanyIDs are equal
func (id CompanyID) Equals(other CompanyID) bool {
	return id.value == other.value
}

// IsZero checks if the CompanyID is the zero value
func (id CompanyID) IsZero() bool {
	return id.value == ""
}

// MarshalJSON implements json.Marshaler
func (id CompanyID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.value + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (id *CompanyID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("CompanyID must be a string")
	}
	id.value = string(data[1 : len(data)-1])
	return nil
}

// DealID is a value object identifying a deal edge
type DealID struct {
	value string
}

// NewDealID generates a new random DealID
func NewDealID() DealID {
	return DealID{value: uuid.New().String()}
}

// NewDealIDFromString creates a DealID from an existing identifier
func NewDealIDFromString(id string) (DealID, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return DealID{}, errors.New("deal ID cannot be empty")
	}
	return DealID{value: id}, nil
}

// MustDealID is a convenience constructor for fixtures and tests
func MustDealID(id string) DealID {
	did, err := NewDealIDFromString(id)
	if err != nil {
		panic(err)
	}
	return did
}

// String returns the string representation of the DealID
func (id DealID) String() string {
	return id.value
}

// Equals checks if two DealIDs are equal
func (id DealID) Equals(other DealID) bool {
	return id.value == other.value
}

// IsZero checks if the DealID is the zero value
func (id DealID) IsZero() bool {
	return id.value == ""
}

// MarshalJSON implements json.Marshaler
func (id DealID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.value + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (id *DealID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("DealID must be a string")
	}
	id.value = string(data[1 : len(data)-1])
	return nil
}
