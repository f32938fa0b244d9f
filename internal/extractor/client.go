// Package extractor talks to the face embedding service and runs extraction
// for a batch of photos on a bounded worker pool.
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/errs"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

const defaultEmbeddingURL = "http://localhost:8000"

// Client computes face descriptors using the embedding server's /embed/face endpoint.
type Client struct {
	baseURL      string
	maxImageSize int
	client       *http.Client
}

var _ facematch.Extractor = (*Client)(nil)

// NewClient creates a new embedding client. Timeouts are applied per call
// through the context, not on the http.Client.
func NewClient(cfg config.EmbeddingConfig) *Client {
	baseURL := cfg.URL
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	return &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		maxImageSize: cfg.MaxImageSize,
		client:       &http.Client{},
	}
}

// FaceDetection represents a single detected face
type FaceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// FaceResponse represents the response from the face embedding endpoint
type FaceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// Extract detects faces in an image and returns their descriptors.
func (c *Client) Extract(ctx context.Context, image []byte) ([]facematch.DetectedFace, error) {
	prepared, mimeType, err := Prepare(image, c.maxImageSize)
	if err != nil {
		return nil, err
	}

	resp, err := c.ComputeFaceEmbeddings(ctx, prepared, mimeType)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, errs.Wrap(errs.KindExtractionTimeout, err, "embedding service did not answer in time")
		}
		if errors.Is(err, context.Canceled) {
			return nil, errs.Wrap(errs.KindCanceled, err, "extraction canceled")
		}
		return nil, errs.Wrap(errs.KindExtractionFailed, err, "face extraction failed")
	}

	faces := make([]facematch.DetectedFace, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		if len(f.Embedding) == 0 || len(f.Embedding) > constants.MaxDescriptorDim {
			return nil, errs.Newf(errs.KindExtractionFailed,
				"embedding service returned a %d-dimensional descriptor", len(f.Embedding))
		}
		faces = append(faces, facematch.DetectedFace{
			Descriptor: facematch.Descriptor(f.Embedding),
			BBox:       f.BBox,
			DetScore:   f.DetScore,
		})
	}
	return faces, nil
}

// ComputeFaceEmbeddings detects faces and computes their embeddings
func (c *Client) ComputeFaceEmbeddings(ctx context.Context, imageData []byte, mimeType string) (*FaceResponse, error) {
	body, err := c.postMultipartImage(ctx, "/embed/face", imageData, mimeType)
	if err != nil {
		return nil, err
	}

	var faceResp FaceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &faceResp, nil
}

// postMultipartImage constructs a multipart form with the image data and posts it to the given endpoint.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte, mimeType string) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image`+extensionFor(mimeType)+`"`)
	h.Set("Content-Type", mimeType)
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}
