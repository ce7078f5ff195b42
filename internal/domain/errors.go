package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a site or dive lookup misses.
	ErrNotFound = errors.New("not found")

	// ErrParseFailure is returned when coordinate text cannot be parsed.
	ErrParseFailure = errors.New("invalid coordinates")

	// ErrAllocationExhausted is returned when the catalog cannot allocate a new site id.
	// It is fatal: no further sites can be created.
	ErrAllocationExhausted = errors.New("site id space exhausted")

	// ErrInvalidState is returned when a session operation does not fit its lifecycle state.
	ErrInvalidState = errors.New("invalid session state")

	// ErrInvalidMerge is returned for malformed merge requests (no sources, target among sources).
	ErrInvalidMerge = errors.New("invalid merge request")

	// ErrUnknownField is returned when an editable field name is not recognised.
	ErrUnknownField = errors.New("unknown field")
)

// MergeConflictError reports a merge source that no longer exists.
// The whole merge is aborted when it is returned.
type MergeConflictError struct {
	ID SiteID
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("merge conflict: site %d no longer exists", e.ID)
}

// Unwrap lets errors.Is(err, ErrNotFound) match a vanished merge source.
func (e *MergeConflictError) Unwrap() error {
	return ErrNotFound
}
