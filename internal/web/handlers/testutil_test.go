package handlers

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

const testDim = 4

// axis of each enrolled volunteer; the last axis is never enrolled
var testAxis = map[string]int{"V1": 0, "V2": 1}

func enrolled(volunteerID string) []float32 {
	d := make([]float32, testDim)
	d[testAxis[volunteerID]] = 1
	return d
}

func faceOf(volunteerID string, score float64) facematch.Descriptor {
	c := 2*score - 1
	d := make(facematch.Descriptor, testDim)
	d[testAxis[volunteerID]] = float32(c)
	d[testDim-1] = float32(math.Sqrt(1 - c*c))
	return d
}

// pngImage creates a small PNG whose width selects the faces widthExtractor returns.
func pngImage(t *testing.T, width int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, 2))
	img.Set(0, 0, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

// widthExtractor returns the faces registered for the image width.
type widthExtractor map[int][]facematch.Descriptor

func (e widthExtractor) Extract(ctx context.Context, data []byte) ([]facematch.DetectedFace, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var faces []facematch.DetectedFace
	for _, d := range e[cfg.Width] {
		faces = append(faces, facematch.DetectedFace{Descriptor: d})
	}
	return faces, nil
}

// Widths understood by newTestService.
const (
	photoV1     = 1 // V1 alone
	photoGroup  = 2 // V1 and V2
	photoNobody = 3 // no faces
)

func newTestService(t *testing.T) (*attendance.Service, *mock.MockStore) {
	t.Helper()

	store := mock.NewMockStore()
	store.AddEntry("E1", "V1", enrolled("V1"))
	store.AddEntry("E1", "V2", enrolled("V2"))

	ex := widthExtractor{
		photoV1:    {faceOf("V1", 0.85)},
		photoGroup: {faceOf("V1", 0.9), faceOf("V2", 0.8)},
	}
	svc, err := attendance.NewService(store, ex, config.Defaults().Matching, time.Second)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return svc, store
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// multipartRequest builds a POST with form fields and "photo" files.
func multipartRequest(t *testing.T, path string, fields map[string]string, photos ...[]byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}
	for i, p := range photos {
		fw, err := mw.CreateFormFile("photo", fmt.Sprintf("photo%d.png", i))
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		fw.Write(p)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
