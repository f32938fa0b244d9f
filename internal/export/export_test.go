package export

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

func TestWriteFile(t *testing.T) {
	created := time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC)
	records := []database.AttendanceRecord{
		{ID: "a", EventID: "E1", VolunteerID: "V1", Confidence: 0.91, Source: database.SourceBulk, FaceID: "0:1", CreatedAt: created, UpdatedAt: created},
		{ID: "b", EventID: "E1", VolunteerID: "V2", Confidence: 0.67, Source: database.SourceSingle, CreatedAt: created.Add(time.Minute), UpdatedAt: created.Add(time.Hour)},
	}

	path := filepath.Join(t.TempDir(), "attendance.parquet")
	if err := WriteFile(path, records); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	rows, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].VolunteerID != "V1" || rows[0].Source != "bulk" || rows[0].FaceID != "0:1" {
		t.Errorf("unexpected first row: %+v", rows[0])
	}
	if rows[1].Confidence != 0.67 || !rows[1].UpdatedAt.Equal(created.Add(time.Hour)) {
		t.Errorf("unexpected second row: %+v", rows[1])
	}
}

func TestWriteFile_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.parquet")
	if err := WriteFile(path, nil); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	rows, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
}

func TestWriteFile_BadPath(t *testing.T) {
	if err := WriteFile(filepath.Join(t.TempDir(), "missing", "x.parquet"), nil); err == nil {
		t.Error("expected error for a missing directory")
	}
}
