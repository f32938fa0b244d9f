// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-attendance/internal/database"
)

type key struct {
	event, volunteer string
}

// MockStore is an in-memory database.Store. Attendance writes are atomic
// under one mutex, matching the conditional-write contract of the SQL backends.
type MockStore struct {
	mu         sync.RWMutex
	gallery    map[key]database.StoredGalleryEntry
	attendance map[key]database.AttendanceRecord
	now        func() time.Time

	// Error injection
	GetEntryError    error
	ListEntriesError error
	StatsError       error
	UpsertEntryError error
	MarkError        error
	MarkErrorFor     map[string]error // by volunteer ID
	ListError        error

	// BeforeMark runs before every MarkAttendance, outside the lock.
	BeforeMark func(ctx context.Context, rec database.AttendanceRecord)

	markCalls int
}

var _ database.Store = (*MockStore)(nil)

// NewMockStore creates an empty mock store
func NewMockStore() *MockStore {
	return &MockStore{
		gallery:    make(map[key]database.StoredGalleryEntry),
		attendance: make(map[key]database.AttendanceRecord),
		now:        time.Now,
	}
}

// SetClock replaces the time source used for timestamps
func (m *MockStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// AddEntry adds a gallery entry directly
func (m *MockStore) AddEntry(eventID, volunteerID string, descriptor []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gallery[key{eventID, volunteerID}] = database.StoredGalleryEntry{
		EventID:     eventID,
		VolunteerID: volunteerID,
		Descriptor:  slices.Clone(descriptor),
		Dim:         len(descriptor),
		EnrolledAt:  m.now(),
	}
}

// MarkCalls returns how many MarkAttendance calls reached the store
func (m *MockStore) MarkCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.markCalls
}

// GetEntry retrieves a gallery entry
func (m *MockStore) GetEntry(ctx context.Context, eventID, volunteerID string) (*database.StoredGalleryEntry, error) {
	if m.GetEntryError != nil {
		return nil, m.GetEntryError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.gallery[key{eventID, volunteerID}]
	if !ok {
		return nil, nil
	}
	e.Descriptor = slices.Clone(e.Descriptor)
	return &e, nil
}

// ListEntries returns an event's gallery ordered by volunteer ID
func (m *MockStore) ListEntries(ctx context.Context, eventID string) ([]database.StoredGalleryEntry, error) {
	if m.ListEntriesError != nil {
		return nil, m.ListEntriesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var entries []database.StoredGalleryEntry
	for k, e := range m.gallery {
		if k.event == eventID {
			e.Descriptor = slices.Clone(e.Descriptor)
			entries = append(entries, e)
		}
	}
	slices.SortFunc(entries, func(a, b database.StoredGalleryEntry) int {
		return cmp.Compare(a.VolunteerID, b.VolunteerID)
	})
	return entries, nil
}

// Stats returns the gallery size and latest enrollment
func (m *MockStore) Stats(ctx context.Context, eventID string) (database.GalleryStats, error) {
	if m.StatsError != nil {
		return database.GalleryStats{}, m.StatsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var stats database.GalleryStats
	for k, e := range m.gallery {
		if k.event != eventID {
			continue
		}
		stats.Count++
		if e.EnrolledAt.After(stats.EnrolledAt) {
			stats.EnrolledAt = e.EnrolledAt
		}
	}
	return stats, nil
}

// UpsertEntry stores a gallery entry, replacing any previous one
func (m *MockStore) UpsertEntry(ctx context.Context, entry database.StoredGalleryEntry) error {
	if m.UpsertEntryError != nil {
		return m.UpsertEntryError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry.EnrolledAt.IsZero() {
		entry.EnrolledAt = m.now()
	}
	entry.Descriptor = slices.Clone(entry.Descriptor)
	entry.Dim = len(entry.Descriptor)
	m.gallery[key{entry.EventID, entry.VolunteerID}] = entry
	return nil
}

// DeleteEntry removes a gallery entry
func (m *MockStore) DeleteEntry(ctx context.Context, eventID, volunteerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.gallery, key{eventID, volunteerID})
	return nil
}

// MarkAttendance inserts or upgrades an attendance record atomically
func (m *MockStore) MarkAttendance(ctx context.Context, rec database.AttendanceRecord) (*database.MarkResult, error) {
	if m.BeforeMark != nil {
		m.BeforeMark(ctx, rec)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.markCalls++

	if m.MarkError != nil {
		return nil, m.MarkError
	}
	if err := m.MarkErrorFor[rec.VolunteerID]; err != nil {
		return nil, err
	}

	k := key{rec.EventID, rec.VolunteerID}
	now := m.now()
	existing, ok := m.attendance[k]
	if !ok {
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		rec.CreatedAt, rec.UpdatedAt = now, now
		m.attendance[k] = rec
		return &database.MarkResult{Record: rec, Inserted: true}, nil
	}

	if rec.Confidence > existing.Confidence {
		existing.Confidence = rec.Confidence
		existing.Source = rec.Source
		existing.FaceID = rec.FaceID
		existing.UpdatedAt = now
		m.attendance[k] = existing
		return &database.MarkResult{Record: existing, Upgraded: true}, nil
	}
	return &database.MarkResult{Record: existing}, nil
}

// GetAttendance retrieves one attendance record
func (m *MockStore) GetAttendance(ctx context.Context, eventID, volunteerID string) (*database.AttendanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.attendance[key{eventID, volunteerID}]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// ListAttendance returns an event's records ordered by creation time
func (m *MockStore) ListAttendance(ctx context.Context, eventID string) ([]database.AttendanceRecord, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var records []database.AttendanceRecord
	for k, rec := range m.attendance {
		if k.event == eventID {
			records = append(records, rec)
		}
	}
	slices.SortFunc(records, func(a, b database.AttendanceRecord) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.VolunteerID, b.VolunteerID)
	})
	return records, nil
}

// Migrate is a no-op
func (m *MockStore) Migrate(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (m *MockStore) Close() error {
	return nil
}
