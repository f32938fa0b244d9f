package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// GalleryRepository provides PostgreSQL-backed gallery storage.
type GalleryRepository struct {
	pool *Pool
}

// NewGalleryRepository creates a new PostgreSQL gallery repository.
func NewGalleryRepository(pool *Pool) *GalleryRepository {
	return &GalleryRepository{pool: pool}
}

// GetEntry retrieves one volunteer's descriptor.
func (r *GalleryRepository) GetEntry(ctx context.Context, eventID, volunteerID string) (*database.StoredGalleryEntry, error) {
	query := `
		SELECT event_id, volunteer_id, descriptor, dim, enrolled_at
		FROM gallery
		WHERE event_id = $1 AND volunteer_id = $2
	`

	var e database.StoredGalleryEntry
	var vec pgvector.Vector
	err := r.pool.QueryRow(ctx, query, eventID, volunteerID).
		Scan(&e.EventID, &e.VolunteerID, &vec, &e.Dim, &e.EnrolledAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get gallery entry: %w", err)
	}
	e.Descriptor = vec.Slice()
	return &e, nil
}

// ListEntries returns the gallery of an event.
func (r *GalleryRepository) ListEntries(ctx context.Context, eventID string) ([]database.StoredGalleryEntry, error) {
	query := `
		SELECT event_id, volunteer_id, descriptor, dim, enrolled_at
		FROM gallery
		WHERE event_id = $1
		ORDER BY volunteer_id
	`

	rows, err := r.pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("query gallery: %w", err)
	}
	defer rows.Close()

	var entries []database.StoredGalleryEntry
	for rows.Next() {
		var e database.StoredGalleryEntry
		var vec pgvector.Vector
		if err := rows.Scan(&e.EventID, &e.VolunteerID, &vec, &e.Dim, &e.EnrolledAt); err != nil {
			return nil, fmt.Errorf("scan gallery entry: %w", err)
		}
		e.Descriptor = vec.Slice()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gallery: %w", err)
	}
	return entries, nil
}

// Stats returns the gallery size and latest enrollment time.
func (r *GalleryRepository) Stats(ctx context.Context, eventID string) (database.GalleryStats, error) {
	var stats database.GalleryStats
	var latest sql.NullTime
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*), MAX(enrolled_at) FROM gallery WHERE event_id = $1`, eventID,
	).Scan(&stats.Count, &latest)
	if err != nil {
		return stats, fmt.Errorf("gallery stats: %w", err)
	}
	if latest.Valid {
		stats.EnrolledAt = latest.Time
	}
	return stats, nil
}

// UpsertEntry stores a descriptor, replacing the previous one.
func (r *GalleryRepository) UpsertEntry(ctx context.Context, entry database.StoredGalleryEntry) error {
	enrolledAt := entry.EnrolledAt
	if enrolledAt.IsZero() {
		enrolledAt = time.Now()
	}

	query := `
		INSERT INTO gallery (event_id, volunteer_id, descriptor, dim, enrolled_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id, volunteer_id) DO UPDATE
		SET descriptor = EXCLUDED.descriptor,
		    dim = EXCLUDED.dim,
		    enrolled_at = EXCLUDED.enrolled_at
	`
	_, err := r.pool.Exec(ctx, query,
		entry.EventID, entry.VolunteerID, pgvector.NewVector(entry.Descriptor), len(entry.Descriptor), enrolledAt)
	if err != nil {
		return fmt.Errorf("upsert gallery entry: %w", err)
	}
	return nil
}

// DeleteEntry removes a volunteer from the gallery.
func (r *GalleryRepository) DeleteEntry(ctx context.Context, eventID, volunteerID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM gallery WHERE event_id = $1 AND volunteer_id = $2`, eventID, volunteerID)
	if err != nil {
		return fmt.Errorf("delete gallery entry: %w", err)
	}
	return nil
}
