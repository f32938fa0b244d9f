// Package export writes attendance records to Parquet files for offline analysis.
package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// Row is the Parquet schema of one attendance record.
type Row struct {
	ID          string    `parquet:"id"`
	EventID     string    `parquet:"event_id"`
	VolunteerID string    `parquet:"volunteer_id"`
	Confidence  float64   `parquet:"confidence"`
	Source      string    `parquet:"source,dict"`
	FaceID      string    `parquet:"face_id,optional"`
	CreatedAt   time.Time `parquet:"created_at,timestamp(millisecond)"`
	UpdatedAt   time.Time `parquet:"updated_at,timestamp(millisecond)"`
}

func toRow(r database.AttendanceRecord) Row {
	return Row{
		ID:          r.ID,
		EventID:     r.EventID,
		VolunteerID: r.VolunteerID,
		Confidence:  r.Confidence,
		Source:      string(r.Source),
		FaceID:      r.FaceID,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

// Write encodes records as one Parquet file.
func Write(w io.Writer, records []database.AttendanceRecord) error {
	pw := parquet.NewGenericWriter[Row](w)

	rows := make([]Row, len(records))
	for i, r := range records {
		rows[i] = toRow(r)
	}
	if _, err := pw.Write(rows); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

// WriteFile writes records to path, replacing an existing file.
func WriteFile(path string, records []database.AttendanceRecord) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		err = errors.Join(err, file.Close())
	}()
	return Write(file, records)
}

// ReadFile loads rows from a Parquet file written by WriteFile.
func ReadFile(path string) ([]Row, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[Row](pf)
	defer reader.Close()

	rows := make([]Row, pf.NumRows())
	n, err := reader.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return rows[:n], nil
}
