package attendance

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/errs"
)

func TestImportGallery(t *testing.T) {
	store := mock.NewMockStore()
	store.SetClock(tickingClock())

	items := []GalleryItem{
		{VolunteerID: "V1", Descriptor: enrolled("V1")},
		{VolunteerID: " V2 ", Descriptor: enrolled("V2")},
		{VolunteerID: "", Descriptor: enrolled("V3")},
		{VolunteerID: "V4", Descriptor: []float32{1, float32(math.NaN())}},
		{VolunteerID: "V5", Descriptor: make([]float32, 5000)},
		{VolunteerID: "V6"},
	}

	res, err := ImportGallery(context.Background(), store, "E1", items)
	if err != nil {
		t.Fatalf("ImportGallery failed: %v", err)
	}
	if res.Imported != 2 {
		t.Errorf("expected 2 imported, got %d", res.Imported)
	}

	wantKinds := []errs.Kind{
		errs.KindInvalidRequest,
		errs.KindInvalidDescriptor,
		errs.KindInvalidDescriptor,
		errs.KindInvalidDescriptor,
	}
	if len(res.Rejected) != len(wantKinds) {
		t.Fatalf("expected %d rejected, got %+v", len(wantKinds), res.Rejected)
	}
	for i, k := range wantKinds {
		if res.Rejected[i].Kind != string(k) {
			t.Errorf("rejected[%d] kind = %s, want %s", i, res.Rejected[i].Kind, k)
		}
	}

	if e, _ := store.GetEntry(context.Background(), "E1", "V2"); e == nil {
		t.Error("expected V2 stored under its trimmed ID")
	}
}

func TestImportGallery_LatestEnrollmentWins(t *testing.T) {
	store := mock.NewMockStore()
	store.SetClock(tickingClock())
	ctx := context.Background()

	if _, err := ImportGallery(ctx, store, "E1", []GalleryItem{{VolunteerID: "V1", Descriptor: enrolled("V1")}}); err != nil {
		t.Fatalf("ImportGallery failed: %v", err)
	}
	if _, err := ImportGallery(ctx, store, "E1", []GalleryItem{{VolunteerID: "V1", Descriptor: enrolled("V2")}}); err != nil {
		t.Fatalf("ImportGallery failed: %v", err)
	}

	e, _ := store.GetEntry(ctx, "E1", "V1")
	if e == nil || e.Descriptor[volunteerAxis["V2"]] != 1 {
		t.Errorf("expected the second descriptor to replace the first, got %+v", e)
	}
	if stats, _ := store.Stats(ctx, "E1"); stats.Count != 1 {
		t.Errorf("expected one gallery entry, got %d", stats.Count)
	}
}

func TestImportGallery_Errors(t *testing.T) {
	store := mock.NewMockStore()

	if _, err := ImportGallery(context.Background(), store, "", nil); !errs.IsKind(err, errs.KindInvalidRequest) {
		t.Errorf("expected InvalidRequest for blank event, got %v", err)
	}

	store.UpsertEntryError = errors.New("disk full")
	_, err := ImportGallery(context.Background(), store, "E1", []GalleryItem{{VolunteerID: "V1", Descriptor: enrolled("V1")}})
	if err == nil {
		t.Error("expected storage error")
	}
}
