// Package facematch scores face descriptors against an event gallery and
// assigns detected faces to enrolled volunteers.
//
// Nothing in this package performs detection or talks to storage: descriptors
// come in through the Extractor interface and galleries are plain slices, so
// the assignment logic can be exercised without a camera, network or database.
package facematch

import (
	"context"
	"slices"
)

// Descriptor is a fixed-length face embedding produced by the extraction model.
// Treat it as immutable once created.
type Descriptor []float32

// Clone returns a copy that can be stored without aliasing the caller's slice.
func (d Descriptor) Clone() Descriptor {
	return slices.Clone(d)
}

// GalleryEntry is the enrolled reference descriptor of one volunteer for one event.
type GalleryEntry struct {
	VolunteerID string
	EventID     string
	Descriptor  Descriptor
}

// DetectedFace is a face found in an uploaded photo. It lives for one request only.
type DetectedFace struct {
	FaceID     string     // request-scoped, "<image>:<face>"
	ImageIndex int        // index of the source image within the request
	Descriptor Descriptor // extracted embedding
	BBox       []float64  // [x1, y1, x2, y2] in pixels
	DetScore   float64    // detector confidence, 0 when unknown
}

// MatchCandidate pairs a detected face with a volunteer. It is not committed.
type MatchCandidate struct {
	FaceID      string  `json:"face_id"`
	VolunteerID string  `json:"volunteer_id"`
	Score       float64 `json:"score"`
}

// SkippedEntry is a gallery entry excluded from scoring.
type SkippedEntry struct {
	VolunteerID string `json:"volunteer_id"`
	Kind        string `json:"kind"`
	Reason      string `json:"reason"`
}

// MatchResult is the outcome of one bulk matching run.
type MatchResult struct {
	TotalFaces   int
	MatchesFound int
	Matches      []MatchCandidate // sorted by score, best first
	Unmatched    []string         // face IDs left without a volunteer
	Skipped      []SkippedEntry
}

// Extractor turns an image into zero or more detected faces.
// Implementations leave FaceID and ImageIndex empty; the caller assigns them.
type Extractor interface {
	Extract(ctx context.Context, image []byte) ([]DetectedFace, error)
}
