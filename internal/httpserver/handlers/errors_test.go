package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/MrSnakeDoc/divesite/internal/domain"
	"github.com/MrSnakeDoc/divesite/internal/editor"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("site 3: %w", domain.ErrNotFound), http.StatusNotFound},
		{"merge conflict wins over not found", &domain.MergeConflictError{ID: 9}, http.StatusConflict},
		{"parse failure", fmt.Errorf("%w: out of range", domain.ErrParseFailure), http.StatusUnprocessableEntity},
		{"unknown field", domain.ErrUnknownField, http.StatusUnprocessableEntity},
		{"invalid merge", domain.ErrInvalidMerge, http.StatusUnprocessableEntity},
		{"invalid state", domain.ErrInvalidState, http.StatusConflict},
		{"allocation exhausted", domain.ErrAllocationExhausted, http.StatusInsufficientStorage},
		{"no geocoder", editor.ErrNoGeocoder, http.StatusServiceUnavailable},
		{"bad request", fmt.Errorf("%w: eof", errBadRequest), http.StatusBadRequest},
		{"other", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestBeginRequestReference(t *testing.T) {
	name := "Blue Hole"

	ref, err := beginRequest{Create: &name, DiveID: 4}.reference()
	if err != nil || !ref.IsCreate() || ref.ProposedName != name || ref.Dive != 4 {
		t.Errorf("create reference = %+v, %v", ref, err)
	}

	ref, err = beginRequest{SiteID: 7}.reference()
	if err != nil || ref.SiteID != 7 {
		t.Errorf("existing reference = %+v, %v", ref, err)
	}

	if _, err := (beginRequest{}).reference(); err == nil {
		t.Error("empty request should be rejected")
	}
	if _, err := (beginRequest{SiteID: 1, Create: &name}).reference(); err == nil {
		t.Error("site_id with create should be rejected")
	}
}
