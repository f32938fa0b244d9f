package handlers

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/errs"
	"github.com/kozaktomas/face-attendance/internal/extractor"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// AttendanceService is the pipeline behind the attendance endpoints.
type AttendanceService interface {
	Bulk(ctx context.Context, req attendance.BulkRequest) (*attendance.BulkResponse, error)
	Single(ctx context.Context, req attendance.SingleRequest) (*attendance.SingleResponse, error)
	SingleFromImage(ctx context.Context, eventID, volunteerID string, photo []byte, threshold *float64) (*attendance.SingleResponse, error)
	Identify(ctx context.Context, req attendance.IdentifyRequest) (*attendance.IdentifyResponse, error)
	List(ctx context.Context, eventID string) ([]database.AttendanceRecord, error)
}

// AttendanceHandler handles attendance endpoints.
type AttendanceHandler struct {
	service AttendanceService
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(svc AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: svc}
}

// readPhoto loads one uploaded file and rejects types the extractor cannot decode.
func readPhoto(fh *multipart.FileHeader) ([]byte, error) {
	file, err := fh.Open()
	if err != nil {
		return nil, errs.Wrap(errs.KindInvalidRequest, err, fmt.Sprintf("failed to open %s", fh.Filename))
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, constants.MaxUploadSize))
	if err != nil {
		return nil, errs.Wrap(errs.KindInvalidRequest, err, fmt.Sprintf("failed to read %s", fh.Filename))
	}
	if !extractor.IsSupported(data) {
		return nil, errs.Newf(errs.KindInvalidRequest,
			"%s: unsupported image type (JPEG, PNG, WebP or BMP expected)", fh.Filename)
	}
	return data, nil
}

func photoFiles(r *http.Request) []*multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	return r.MultipartForm.File["photo"]
}

// Bulk handles a group photo upload and marks everybody recognized.
func (h *AttendanceHandler) Bulk(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := photoFiles(r)
	if len(files) == 0 {
		respondKindError(w, r, errs.New(errs.KindInvalidRequest, "at least one photo is required"))
		return
	}
	if len(files) > constants.MaxPhotosPerRequest {
		respondKindError(w, r, errs.Newf(errs.KindInvalidRequest,
			"too many photos: %d (max %d)", len(files), constants.MaxPhotosPerRequest))
		return
	}

	threshold, err := parseThreshold(r.FormValue("threshold"))
	if err != nil {
		respondKindError(w, r, err)
		return
	}
	dryRun, _ := strconv.ParseBool(r.FormValue("dry_run"))

	photos := make([][]byte, 0, len(files))
	for _, fh := range files {
		data, err := readPhoto(fh)
		if err != nil {
			respondKindError(w, r, err)
			return
		}
		photos = append(photos, data)
	}

	resp, err := h.service.Bulk(r.Context(), attendance.BulkRequest{
		EventID:   chi.URLParam(r, "eventID"),
		Photos:    photos,
		Threshold: threshold,
		DryRun:    dryRun,
	})
	if err != nil {
		respondKindError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

type verifyRequest struct {
	VolunteerID string               `json:"volunteer_id" validate:"required,max=191"`
	Descriptor  facematch.Descriptor `json:"descriptor" validate:"required,min=1,max=4096"`
	Threshold   *float64             `json:"threshold,omitempty"`
}

// Verify checks a live descriptor against one volunteer and marks attendance.
func (h *AttendanceHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondKindError(w, r, err)
		return
	}

	resp, err := h.service.Single(r.Context(), attendance.SingleRequest{
		EventID:        chi.URLParam(r, "eventID"),
		VolunteerID:    req.VolunteerID,
		LiveDescriptor: req.Descriptor,
		Threshold:      req.Threshold,
	})
	if err != nil {
		respondKindError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// VerifyPhoto is Verify for a live capture upload.
func (h *AttendanceHandler) VerifyPhoto(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := photoFiles(r)
	if len(files) != 1 {
		respondKindError(w, r, errs.New(errs.KindInvalidRequest, "exactly one photo is required"))
		return
	}
	threshold, err := parseThreshold(r.FormValue("threshold"))
	if err != nil {
		respondKindError(w, r, err)
		return
	}
	photo, err := readPhoto(files[0])
	if err != nil {
		respondKindError(w, r, err)
		return
	}

	resp, err := h.service.SingleFromImage(r.Context(),
		chi.URLParam(r, "eventID"), r.FormValue("volunteer_id"), photo, threshold)
	if err != nil {
		respondKindError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// List returns the attendance recorded for an event.
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.List(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		respondKindError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}

type identifyRequest struct {
	Descriptor facematch.Descriptor `json:"descriptor" validate:"required,min=1,max=4096"`
	Threshold  *float64             `json:"threshold,omitempty"`
}

// Identify finds the gallery volunteer closest to a descriptor.
func (h *AttendanceHandler) Identify(w http.ResponseWriter, r *http.Request) {
	var req identifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondKindError(w, r, err)
		return
	}

	resp, err := h.service.Identify(r.Context(), attendance.IdentifyRequest{
		EventID:    chi.URLParam(r, "eventID"),
		Descriptor: req.Descriptor,
		Threshold:  req.Threshold,
	})
	if err != nil {
		respondKindError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}
