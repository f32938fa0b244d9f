package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// errDeadlock is ER_LOCK_DEADLOCK. InnoDB can pick concurrent upserts on the
// same unique key as deadlock victims; the statement is safe to retry.
const errDeadlock = 1213

const maxDeadlockRetries = 3

// AttendanceRepository provides MariaDB-backed attendance storage.
type AttendanceRepository struct {
	pool *Pool
}

const attendanceColumns = `id, event_id, volunteer_id, confidence, source, face_id, created_at, updated_at`

func scanRecord(row interface{ Scan(...any) error }) (*database.AttendanceRecord, error) {
	var rec database.AttendanceRecord
	var source string
	err := row.Scan(&rec.ID, &rec.EventID, &rec.VolunteerID, &rec.Confidence,
		&source, &rec.FaceID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.Source = database.Source(source)
	return &rec, nil
}

// MarkAttendance inserts the record or upgrades an existing one with a lower
// confidence in one statement. Assignments run left to right, so confidence
// is compared before it is overwritten. Rows affected is 1 for an insert,
// 2 for an update and 0 when nothing changed.
func (r *AttendanceRepository) MarkAttendance(ctx context.Context, rec database.AttendanceRecord) (*database.MarkResult, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	query := `
		INSERT INTO attendance (id, event_id, volunteer_id, confidence, source, face_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			source = IF(VALUES(confidence) > confidence, VALUES(source), source),
			face_id = IF(VALUES(confidence) > confidence, VALUES(face_id), face_id),
			updated_at = IF(VALUES(confidence) > confidence, CURRENT_TIMESTAMP(6), updated_at),
			confidence = IF(VALUES(confidence) > confidence, VALUES(confidence), confidence)`

	var res sql.Result
	var err error
	for attempt := 0; ; attempt++ {
		res, err = r.pool.db.ExecContext(ctx, query,
			rec.ID, rec.EventID, rec.VolunteerID, rec.Confidence, string(rec.Source), rec.FaceID)
		var myErr *mysql.MySQLError
		if err == nil || attempt >= maxDeadlockRetries || !errors.As(err, &myErr) || myErr.Number != errDeadlock {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("mark attendance: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("mark attendance rows affected: %w", err)
	}

	stored, err := r.GetAttendance(ctx, rec.EventID, rec.VolunteerID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("mark attendance: record for %s/%s vanished", rec.EventID, rec.VolunteerID)
	}

	return &database.MarkResult{
		Record:   *stored,
		Inserted: affected == 1,
		Upgraded: affected == 2,
	}, nil
}

// GetAttendance retrieves one record.
func (r *AttendanceRepository) GetAttendance(ctx context.Context, eventID, volunteerID string) (*database.AttendanceRecord, error) {
	row := r.pool.db.QueryRowContext(ctx,
		`SELECT `+attendanceColumns+` FROM attendance WHERE event_id = ? AND volunteer_id = ?`,
		eventID, volunteerID)

	rec, err := scanRecord(row)
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
	rows, err := r.pool.db.QueryContext(ctx,
		`SELECT `+attendanceColumns+` FROM attendance WHERE event_id = ? ORDER BY created_at, volunteer_id`,
		eventID)
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
