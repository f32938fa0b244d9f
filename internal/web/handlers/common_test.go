package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/errs"
)

func TestRespondJSON(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondJSON(recorder, http.StatusCreated, map[string]any{"count": 42})

	if recorder.Code != http.StatusCreated {
		t.Errorf("expected status %d, got %d", http.StatusCreated, recorder.Code)
	}
	if ct := recorder.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type 'application/json', got '%s'", ct)
	}
	var result map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if result["count"] != float64(42) { // JSON numbers are float64
		t.Errorf("expected count 42, got %v", result["count"])
	}
}

func TestRespondJSON_NilData(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondJSON(recorder, http.StatusOK, nil)

	if recorder.Body.Len() != 0 {
		t.Errorf("expected empty body for nil data, got '%s'", recorder.Body.String())
	}
}

func TestRespondKindError(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantKind   string
	}{
		{errs.New(errs.KindInvalidThreshold, "bad"), http.StatusBadRequest, "InvalidThreshold"},
		{errs.New(errs.KindInvalidDescriptor, "bad"), http.StatusBadRequest, "InvalidDescriptor"},
		{errs.New(errs.KindDimensionMismatch, "bad"), http.StatusBadRequest, "DimensionMismatch"},
		{errs.New(errs.KindInvalidRequest, "bad"), http.StatusBadRequest, "InvalidRequest"},
		{errs.New(errs.KindNoFaceDetected, "none"), http.StatusBadRequest, "NoFaceDetected"},
		{errs.New(errs.KindMultipleFacesDetected, "two"), http.StatusBadRequest, "MultipleFacesDetected"},
		{errs.New(errs.KindNotRegistered, "who"), http.StatusNotFound, "NotRegistered"},
		{errs.New(errs.KindExtractionTimeout, "slow"), http.StatusGatewayTimeout, "ExtractionTimeout"},
		{errs.New(errs.KindExtractionFailed, "down"), http.StatusBadGateway, "ExtractionFailed"},
		{errs.New(errs.KindStorageWriteFailed, "disk"), http.StatusInternalServerError, "StorageWriteFailed"},
		{errs.New(errs.KindCanceled, "gone"), http.StatusServiceUnavailable, "Canceled"},
		{errors.New("secret dsn in message"), http.StatusInternalServerError, ""},
	}

	for _, tc := range tests {
		t.Run(tc.err.Error(), func(t *testing.T) {
			recorder := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)

			respondKindError(recorder, req, tc.err)

			if recorder.Code != tc.wantStatus {
				t.Errorf("expected status %d, got %d", tc.wantStatus, recorder.Code)
			}
			var body errorBody
			if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if body.Kind != tc.wantKind {
				t.Errorf("expected kind '%s', got '%s'", tc.wantKind, body.Kind)
			}
			if tc.wantKind == "" && body.Error != "internal server error" {
				t.Errorf("internal error details leaked: '%s'", body.Error)
			}
		})
	}
}

func TestParseThreshold(t *testing.T) {
	if got, err := parseThreshold(""); got != nil || err != nil {
		t.Errorf("expected nil for empty input, got %v, %v", got, err)
	}
	if got, err := parseThreshold(" 0.75 "); err != nil || got == nil || *got != 0.75 {
		t.Errorf("expected 0.75, got %v, %v", got, err)
	}
	if _, err := parseThreshold("high"); !errs.IsKind(err, errs.KindInvalidThreshold) {
		t.Errorf("expected InvalidThreshold, got %v", err)
	}
}

func TestSanitizeForLog(t *testing.T) {
	if got := sanitizeForLog("a\nb\rc"); got != "abc" {
		t.Errorf("expected 'abc', got '%s'", got)
	}
}

func TestHealthCheck(t *testing.T) {
	recorder := httptest.NewRecorder()
	HealthCheck(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if recorder.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", recorder.Code)
	}
}
