package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/errs"
	"github.com/kozaktomas/face-attendance/internal/logger"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorBody{Error: message})
}

// respondKindError maps a domain error to its HTTP status. Errors without a
// kind are internal and their details stay in the log.
func respondKindError(w http.ResponseWriter, r *http.Request, err error) {
	kind := errs.KindOf(err)
	status := statusFor(kind)

	if status >= http.StatusInternalServerError {
		logger.C(r.Context()).Error().Err(err).
			Str("path", sanitizeForLog(r.URL.Path)).
			Str("kind", string(kind)).
			Msg("request failed")
	}
	if kind == errs.KindUnknown {
		respondError(w, status, "internal server error")
		return
	}
	respondJSON(w, status, errorBody{Error: errs.Message(err), Kind: string(kind)})
}

func statusFor(kind errs.Kind) int {
	switch kind {
	case errs.KindInvalidThreshold, errs.KindInvalidDescriptor, errs.KindDimensionMismatch,
		errs.KindInvalidRequest, errs.KindNoFaceDetected, errs.KindMultipleFacesDetected:
		return http.StatusBadRequest
	case errs.KindNotRegistered:
		return http.StatusNotFound
	case errs.KindExtractionTimeout:
		return http.StatusGatewayTimeout
	case errs.KindExtractionFailed:
		return http.StatusBadGateway
	case errs.KindCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// parseThreshold reads an optional threshold form value.
func parseThreshold(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, errs.Newf(errs.KindInvalidThreshold, "threshold %q is not a number", s)
	}
	return &t, nil
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
