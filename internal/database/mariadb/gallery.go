package mariadb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// GalleryRepository provides MariaDB-backed gallery storage. Descriptors are
// stored as JSON arrays since MariaDB has no vector type before 11.7.
type GalleryRepository struct {
	pool *Pool
}

func scanGalleryEntry(row interface{ Scan(...any) error }) (*database.StoredGalleryEntry, error) {
	var e database.StoredGalleryEntry
	var raw string
	if err := row.Scan(&e.EventID, &e.VolunteerID, &raw, &e.Dim, &e.EnrolledAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(raw), &e.Descriptor); err != nil {
		return nil, fmt.Errorf("decode descriptor of %s/%s: %w", e.EventID, e.VolunteerID, err)
	}
	return &e, nil
}

// GetEntry retrieves one volunteer's descriptor.
func (r *GalleryRepository) GetEntry(ctx context.Context, eventID, volunteerID string) (*database.StoredGalleryEntry, error) {
	row := r.pool.db.QueryRowContext(ctx, `
		SELECT event_id, volunteer_id, descriptor, dim, enrolled_at
		FROM gallery
		WHERE event_id = ? AND volunteer_id = ?`, eventID, volunteerID)

	e, err := scanGalleryEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get gallery entry: %w", err)
	}
	return e, nil
}

// ListEntries returns the gallery of an event.
func (r *GalleryRepository) ListEntries(ctx context.Context, eventID string) ([]database.StoredGalleryEntry, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT event_id, volunteer_id, descriptor, dim, enrolled_at
		FROM gallery
		WHERE event_id = ?
		ORDER BY volunteer_id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("query gallery: %w", err)
	}
	defer rows.Close()

	var entries []database.StoredGalleryEntry
	for rows.Next() {
		e, err := scanGalleryEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan gallery entry: %w", err)
		}
		entries = append(entries, *e)
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
	err := r.pool.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MAX(enrolled_at) FROM gallery WHERE event_id = ?`, eventID,
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
	raw, err := json.Marshal(entry.Descriptor)
	if err != nil {
		return fmt.Errorf("encode descriptor: %w", err)
	}
	enrolledAt := entry.EnrolledAt
	if enrolledAt.IsZero() {
		enrolledAt = time.Now()
	}

	_, err = r.pool.db.ExecContext(ctx, `
		INSERT INTO gallery (event_id, volunteer_id, descriptor, dim, enrolled_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			descriptor = VALUES(descriptor),
			dim = VALUES(dim),
			enrolled_at = VALUES(enrolled_at)`,
		entry.EventID, entry.VolunteerID, string(raw), len(entry.Descriptor), enrolledAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert gallery entry: %w", err)
	}
	return nil
}

// DeleteEntry removes a volunteer from the gallery.
func (r *GalleryRepository) DeleteEntry(ctx context.Context, eventID, volunteerID string) error {
	_, err := r.pool.db.ExecContext(ctx,
		`DELETE FROM gallery WHERE event_id = ? AND volunteer_id = ?`, eventID, volunteerID)
	if err != nil {
		return fmt.Errorf("delete gallery entry: %w", err)
	}
	return nil
}
