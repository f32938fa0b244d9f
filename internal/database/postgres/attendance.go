package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// AttendanceRepository provides PostgreSQL-backed attendance storage.
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new PostgreSQL attendance repository.
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

const attendanceColumns = `id, event_id, volunteer_id, confidence, source, face_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner, extra ...any) (*database.AttendanceRecord, error) {
	var rec database.AttendanceRecord
	var source string
	dest := append([]any{
		&rec.ID, &rec.EventID, &rec.VolunteerID, &rec.Confidence,
		&source, &rec.FaceID, &rec.CreatedAt, &rec.UpdatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	rec.Source = database.Source(source)
	return &rec, nil
}

// MarkAttendance inserts the record or upgrades an existing one with a lower
// confidence, in a single statement. xmax is zero only for freshly inserted rows.
func (r *AttendanceRepository) MarkAttendance(ctx context.Context, rec database.AttendanceRecord) (*database.MarkResult, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	query := `
		INSERT INTO attendance (id, event_id, volunteer_id, confidence, source, face_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id, volunteer_id) DO UPDATE
		SET confidence = EXCLUDED.confidence,
		    source = EXCLUDED.source,
		    face_id = EXCLUDED.face_id,
		    updated_at = NOW()
		WHERE attendance.confidence < EXCLUDED.confidence
		RETURNING ` + attendanceColumns + `, (xmax = 0) AS inserted
	`

	var inserted bool
	stored, err := scanRecord(r.pool.QueryRow(ctx, query,
		rec.ID, rec.EventID, rec.VolunteerID, rec.Confidence, string(rec.Source), rec.FaceID,
	), &inserted)
	switch {
	case err == nil:
		return &database.MarkResult{Record: *stored, Inserted: inserted, Upgraded: !inserted}, nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("mark attendance: %w", err)
	}

	// Conflict without upgrade: the row exists with an equal or higher confidence.
	existing, err := r.GetAttendance(ctx, rec.EventID, rec.VolunteerID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("mark attendance: record for %s/%s vanished", rec.EventID, rec.VolunteerID)
	}
	return &database.MarkResult{Record: *existing}, nil
}

// GetAttendance retrieves one record.
func (r *AttendanceRepository) GetAttendance(ctx context.Context, eventID, volunteerID string) (*database.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance WHERE event_id = $1 AND volunteer_id = $2`

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, eventID, volunteerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get attendance: %w", err)
	}
	return rec, nil
}

// ListAttendance returns all records of an event.
func (r *AttendanceRepository) ListAttendance(ctx context.Context, eventID string) ([]database.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance WHERE event_id = $1 ORDER BY created_at, volunteer_id`

	rows, err := r.pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	defer rows.Close()

	var records []database.AttendanceRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}
	return records, nil
}
