// Package storetest holds behaviour tests shared by every database.Store
// implementation. Backends call Run from their own test files.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// Run exercises gallery and attendance semantics against a migrated, empty store.
// Each subtest uses its own event ID so they do not interfere.
func Run(t *testing.T, store database.Store) {
	t.Helper()

	t.Run("GalleryUpsertLatestWins", func(t *testing.T) { testGalleryUpsert(t, store) })
	t.Run("GalleryStats", func(t *testing.T) { testGalleryStats(t, store) })
	t.Run("MarkInsertsOnce", func(t *testing.T) { testMarkInsertsOnce(t, store) })
	t.Run("MarkUpgradesOnlyOnHigherConfidence", func(t *testing.T) { testMarkUpgrade(t, store) })
	t.Run("MarkConcurrent", func(t *testing.T) { testMarkConcurrent(t, store) })
	t.Run("ListAttendance", func(t *testing.T) { testListAttendance(t, store) })
}

func testGalleryUpsert(t *testing.T, store database.Store) {
	ctx := context.Background()
	event := "gallery-upsert"

	first := database.StoredGalleryEntry{EventID: event, VolunteerID: "v1", Descriptor: []float32{1, 0, 0}}
	if err := store.UpsertEntry(ctx, first); err != nil {
		t.Fatalf("UpsertEntry failed: %v", err)
	}
	second := database.StoredGalleryEntry{EventID: event, VolunteerID: "v1", Descriptor: []float32{0, 1, 0, 0}}
	if err := store.UpsertEntry(ctx, second); err != nil {
		t.Fatalf("UpsertEntry (re-enroll) failed: %v", err)
	}

	got, err := store.GetEntry(ctx, event, "v1")
	if err != nil {
		t.Fatalf("GetEntry failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected entry, got nil")
	}
	if len(got.Descriptor) != 4 || got.Dim != 4 || got.Descriptor[1] != 1 {
		t.Errorf("expected re-enrolled 4-dim descriptor, got %+v", got)
	}

	missing, err := store.GetEntry(ctx, event, "nobody")
	if err != nil {
		t.Fatalf("GetEntry (missing) failed: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing entry, got %+v", missing)
	}

	if err := store.DeleteEntry(ctx, event, "v1"); err != nil {
		t.Fatalf("DeleteEntry failed: %v", err)
	}
	entries, err := store.ListEntries(ctx, event)
	if err != nil {
		t.Fatalf("ListEntries failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty gallery after delete, got %d entries", len(entries))
	}
}

func testGalleryStats(t *testing.T, store database.Store) {
	ctx := context.Background()
	event := "gallery-stats"

	empty, err := store.Stats(ctx, event)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if empty.Count != 0 || !empty.EnrolledAt.IsZero() {
		t.Errorf("expected zero stats, got %+v", empty)
	}

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i, vid := range []string{"b", "a", "c"} {
		err := store.UpsertEntry(ctx, database.StoredGalleryEntry{
			EventID:     event,
			VolunteerID: vid,
			Descriptor:  []float32{float32(i + 1), 1},
			EnrolledAt:  base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("UpsertEntry failed: %v", err)
		}
	}

	stats, err := store.Stats(ctx, event)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Count != 3 {
		t.Errorf("expected count 3, got %d", stats.Count)
	}
	if !stats.EnrolledAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("expected latest enrollment %v, got %v", base.Add(2*time.Minute), stats.EnrolledAt)
	}

	entries, err := store.ListEntries(ctx, event)
	if err != nil {
		t.Fatalf("ListEntries failed: %v", err)
	}
	if len(entries) != 3 || entries[0].VolunteerID != "a" || entries[2].VolunteerID != "c" {
		t.Errorf("expected entries ordered a,b,c, got %+v", entries)
	}
}

func testMarkInsertsOnce(t *testing.T, store database.Store) {
	ctx := context.Background()
	rec := database.AttendanceRecord{
		EventID: "mark-once", VolunteerID: "v1", Confidence: 0.8, Source: database.SourceBulk, FaceID: "0:0",
	}

	first, err := store.MarkAttendance(ctx, rec)
	if err != nil {
		t.Fatalf("MarkAttendance failed: %v", err)
	}
	if !first.Inserted || first.AlreadyMarked() || first.Upgraded {
		t.Errorf("expected fresh insert, got %+v", first)
	}
	if first.Record.ID == "" {
		t.Error("expected a record ID")
	}

	second, err := store.MarkAttendance(ctx, rec)
	if err != nil {
		t.Fatalf("MarkAttendance (repeat) failed: %v", err)
	}
	if !second.AlreadyMarked() || second.Upgraded {
		t.Errorf("expected already marked without upgrade, got %+v", second)
	}
	if second.Record.ID != first.Record.ID {
		t.Errorf("record ID changed from %s to %s", first.Record.ID, second.Record.ID)
	}

	records, err := store.ListAttendance(ctx, "mark-once")
	if err != nil {
		t.Fatalf("ListAttendance failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected 1 record, got %d", len(records))
	}
}

func testMarkUpgrade(t *testing.T, store database.Store) {
	ctx := context.Background()
	event := "mark-upgrade"
	mark := func(conf float64, src database.Source) *database.MarkResult {
		t.Helper()
		res, err := store.MarkAttendance(ctx, database.AttendanceRecord{
			EventID: event, VolunteerID: "v1", Confidence: conf, Source: src,
		})
		if err != nil {
			t.Fatalf("MarkAttendance(%v) failed: %v", conf, err)
		}
		return res
	}

	mark(0.7, database.SourceBulk)

	if res := mark(0.65, database.SourceSingle); res.Upgraded || res.Record.Confidence != 0.7 {
		t.Errorf("lower confidence must not downgrade, got %+v", res)
	}
	if res := mark(0.7, database.SourceSingle); res.Upgraded || res.Record.Source != database.SourceBulk {
		t.Errorf("equal confidence must not replace, got %+v", res)
	}

	res := mark(0.9, database.SourceSingle)
	if !res.Upgraded || !res.AlreadyMarked() {
		t.Errorf("expected upgrade, got %+v", res)
	}
	if res.Record.Confidence != 0.9 || res.Record.Source != database.SourceSingle {
		t.Errorf("expected stored 0.9/single, got %v/%s", res.Record.Confidence, res.Record.Source)
	}

	got, err := store.GetAttendance(ctx, event, "v1")
	if err != nil {
		t.Fatalf("GetAttendance failed: %v", err)
	}
	if got == nil || got.Confidence != 0.9 {
		t.Errorf("expected stored confidence 0.9, got %+v", got)
	}
}

func testMarkConcurrent(t *testing.T, store database.Store) {
	ctx := context.Background()
	event := "mark-concurrent"
	const writers = 16

	var wg sync.WaitGroup
	var mu sync.Mutex
	inserted := 0
	errs := make([]error, 0)

	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := store.MarkAttendance(ctx, database.AttendanceRecord{
				EventID:     event,
				VolunteerID: "v1",
				Confidence:  0.6 + float64(i)/100,
				Source:      database.SourceBulk,
				FaceID:      fmt.Sprintf("0:%d", i),
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if res.Inserted {
				inserted++
			}
		}()
	}
	wg.Wait()

	if len(errs) > 0 {
		t.Fatalf("concurrent MarkAttendance failed: %v", errs[0])
	}
	if inserted != 1 {
		t.Errorf("expected exactly one insert, got %d", inserted)
	}

	records, err := store.ListAttendance(ctx, event)
	if err != nil {
		t.Fatalf("ListAttendance failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if want := 0.6 + float64(writers-1)/100; records[0].Confidence < want-1e-9 {
		t.Errorf("expected the highest confidence %v to win, got %v", want, records[0].Confidence)
	}
}

func testListAttendance(t *testing.T, store database.Store) {
	ctx := context.Background()
	event := "list"

	for _, vid := range []string{"v1", "v2", "v3"} {
		if _, err := store.MarkAttendance(ctx, database.AttendanceRecord{
			EventID: event, VolunteerID: vid, Confidence: 0.75, Source: database.SourceBulk,
		}); err != nil {
			t.Fatalf("MarkAttendance failed: %v", err)
		}
	}
	if _, err := store.MarkAttendance(ctx, database.AttendanceRecord{
		EventID: "other", VolunteerID: "v1", Confidence: 0.75, Source: database.SourceBulk,
	}); err != nil {
		t.Fatalf("MarkAttendance failed: %v", err)
	}

	records, err := store.ListAttendance(ctx, event)
	if err != nil {
		t.Fatalf("ListAttendance failed: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("expected 3 records for %s, got %d", event, len(records))
	}
	for _, r := range records {
		if r.EventID != event {
			t.Errorf("record from wrong event: %+v", r)
		}
	}
}
