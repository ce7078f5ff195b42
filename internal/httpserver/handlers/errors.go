package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/divesite/internal/domain"
	"github.com/MrSnakeDoc/divesite/internal/editor"
	"github.com/MrSnakeDoc/divesite/internal/logger"
)

const maxBodyBytes = 64 << 10

type errorResponse struct {
	Error  string `json:"error"`
	SiteID uint32 `json:"site_id,omitempty"`
}

// errBadRequest marks malformed input that never reached the editor.
var errBadRequest = errors.New("bad request")

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var conflict *domain.MergeConflictError
	switch {
	case errors.As(err, &conflict):
		return http.StatusConflict
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrParseFailure),
		errors.Is(err, domain.ErrUnknownField),
		errors.Is(err, domain.ErrInvalidMerge):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, domain.ErrAllocationExhausted):
		return http.StatusInsufficientStorage
	case errors.Is(err, editor.ErrNoGeocoder):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, log logger.Logger, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}

	var conflict *domain.MergeConflictError
	if errors.As(err, &conflict) {
		resp.SiteID = uint32(conflict.ID)
	}

	if status >= http.StatusInternalServerError {
		log.Error("request failed", logger.Int("status", status), logger.Error(err))
	} else {
		log.Debug("request rejected", logger.Int("status", status), logger.Error(err))
	}
	writeJSON(w, status, resp)
}

// decodeJSON reads a bounded JSON body, rejecting unknown keys.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func siteIDParam(r *http.Request) (domain.SiteID, error) {
	raw := chi.URLParam(r, "id")
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || n == 0 {
		return domain.NoSite, fmt.Errorf("%w: invalid site id %q", errBadRequest, raw)
	}
	return domain.SiteID(n), nil
}

func diveIDParam(r *http.Request) (domain.DiveID, error) {
	raw := chi.URLParam(r, "id")
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("%w: invalid dive id %q", errBadRequest, raw)
	}
	return domain.DiveID(n), nil
}
