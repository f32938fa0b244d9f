package database

import (
	"context"
)

// GalleryReader provides read-only access to enrolled descriptors
type GalleryReader interface {
	// GetEntry retrieves one volunteer's descriptor, returns nil if not enrolled
	GetEntry(ctx context.Context, eventID, volunteerID string) (*StoredGalleryEntry, error)
	// ListEntries returns the whole gallery of an event ordered by volunteer ID
	ListEntries(ctx context.Context, eventID string) ([]StoredGalleryEntry, error)
	// Stats returns the gallery size and the latest enrollment time
	Stats(ctx context.Context, eventID string) (GalleryStats, error)
}

// GalleryWriter provides write access to the gallery
type GalleryWriter interface {
	GalleryReader

	// UpsertEntry stores a descriptor, replacing any previous one for the same volunteer
	UpsertEntry(ctx context.Context, entry StoredGalleryEntry) error
	// DeleteEntry removes a volunteer from the event gallery
	DeleteEntry(ctx context.Context, eventID, volunteerID string) error
}

// AttendanceReader provides read-only access to attendance records
type AttendanceReader interface {
	// GetAttendance retrieves one record, returns nil if the volunteer is not marked
	GetAttendance(ctx context.Context, eventID, volunteerID string) (*AttendanceRecord, error)
	// ListAttendance returns all records of an event ordered by creation time
	ListAttendance(ctx context.Context, eventID string) ([]AttendanceRecord, error)
}

// AttendanceWriter provides write access to attendance records
type AttendanceWriter interface {
	AttendanceReader

	// MarkAttendance atomically inserts the record if (event, volunteer) is absent.
	// When a record exists it is replaced only if rec.Confidence is strictly higher;
	// the stored ID and CreatedAt are kept. Implementations must not read and then
	// write in separate statements.
	MarkAttendance(ctx context.Context, rec AttendanceRecord) (*MarkResult, error)
}

// Store is a complete storage backend.
type Store interface {
	GalleryWriter
	AttendanceWriter

	// Migrate applies pending schema migrations
	Migrate(ctx context.Context) error
	// Close releases the backend's connections
	Close() error
}
