package database

import (
	"time"

	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// Source records which flow marked an attendance record.
type Source string

const (
	SourceBulk   Source = "bulk"
	SourceSingle Source = "single"
)

// StoredGalleryEntry is a gallery descriptor as persisted.
type StoredGalleryEntry struct {
	EventID     string
	VolunteerID string
	Descriptor  []float32
	Dim         int
	EnrolledAt  time.Time
}

// Entry converts the stored row into a matcher gallery entry.
func (s StoredGalleryEntry) Entry() facematch.GalleryEntry {
	return facematch.GalleryEntry{
		VolunteerID: s.VolunteerID,
		EventID:     s.EventID,
		Descriptor:  facematch.Descriptor(s.Descriptor),
	}
}

// GalleryStats identifies a gallery revision. Two equal stats mean the
// gallery has not changed in between, which lets callers cache derived indexes.
type GalleryStats struct {
	Count      int
	EnrolledAt time.Time // latest enrollment, zero for an empty gallery
}

// AttendanceRecord is a committed attendance row. At most one exists per
// (EventID, VolunteerID).
type AttendanceRecord struct {
	ID          string    `json:"id"`
	EventID     string    `json:"event_id"`
	VolunteerID string    `json:"volunteer_id"`
	Confidence  float64   `json:"confidence"`
	Source      Source    `json:"source"`
	FaceID      string    `json:"face_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MarkResult is the outcome of one MarkAttendance call.
type MarkResult struct {
	Record   AttendanceRecord // the row as stored after the call
	Inserted bool             // no record existed before
	Upgraded bool             // an existing record took the higher confidence
}

// AlreadyMarked reports whether the volunteer was marked before this call.
func (r *MarkResult) AlreadyMarked() bool {
	return !r.Inserted
}
