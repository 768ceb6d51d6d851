// Package queries defines the read operations served by the feed
// service API.
package queries

import (
	pkgerrors "dealgraph/pkg/errors"
)

// GetGraphQuery fetches the full graph in wire form
type GetGraphQuery struct {
	// IncludePredictions controls whether predicted edges are returned
	IncludePredictions bool `json:"include_predictions"`
}

// Validate always passes; both parameter states are legal
func (GetGraphQuery) Validate() error {
	return nil
}

// GetStatsQuery fetches graph summary counts
type GetStatsQuery struct{}

// Validate always passes; the query has no parameters
func (GetStatsQuery) Validate() error {
	return nil
}

// GetCompanyQuery fetches one company and the deals touching it
type GetCompanyQuery struct {
	CompanyID string `json:"company_id"`
}

// Validate checks the query's parameters
func (q GetCompanyQuery) Validate() error {
	if q.CompanyID == "" {
		return pkgerrors.NewValidationError("company_id is required")
	}
	return nil
}
