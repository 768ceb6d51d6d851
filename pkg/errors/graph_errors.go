package errors

import "fmt"

// Error codes for graph model failures. The reconciler branches on
// these to decide between dropping a delta and parking it for retry.
const (
	CodeUnknownEndpoint = "UNKNOWN_ENDPOINT"
	CodeDuplicateID     = "DUPLICATE_ID"
	CodeSequenceGap     = "SEQUENCE_GAP"
	CodeFeedClosed      = "FEED_CLOSED"
	CodeStaleResult     = "STALE_RESULT"
)

// NewUnknownEndpointError reports an edge referencing a company the
// model does not know about. Recoverable: the edge may be parked until
// the missing node arrives.
func NewUnknownEndpointError(edgeID, companyID string) *AppError {
	return NewValidationError(
		fmt.Sprintf("edge %s references unknown company %s", edgeID, companyID),
	).WithCode(CodeUnknownEndpoint).WithDetails(map[string]any{
		"edge_id":    edgeID,
		"company_id": companyID,
	})
}

// NewSequenceGapError reports a hole in the feed sequence
func NewSequenceGapError(expected, got uint64) *AppError {
	return NewConflictError(
		fmt.Sprintf("feed sequence gap: expected %d, got %d", expected, got),
	).WithCode(CodeSequenceGap).WithDetails(map[string]any{
		"expected": expected,
		"got":      got,
	})
}

// NewStaleResultError reports a simulation response that arrived after
// a newer request started
func NewStaleResultError(generation, current uint64) *AppError {
	return NewCanceledError("simulation").WithCode(CodeStaleResult).WithDetails(map[string]any{
		"generation": generation,
		"current":    current,
	})
}

// HasCode reports whether the error chain carries the given code
func HasCode(err error, code string) bool {
	if appErr := GetAppError(err); appErr != nil {
		return appErr.Code == code
	}
	return false
}

// IsUnknownEndpoint reports whether the error is a dangling-edge error
func IsUnknownEndpoint(err error) bool {
	return HasCode(err, CodeUnknownEndpoint)
}
