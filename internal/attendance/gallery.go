package attendance

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/errs"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// GalleryItem is one descriptor to seed into an event gallery.
type GalleryItem struct {
	VolunteerID string    `json:"volunteer_id"`
	Descriptor  []float32 `json:"descriptor"`
}

// ImportResult summarizes a gallery import.
type ImportResult struct {
	Imported int       `json:"imported"`
	Rejected []Failure `json:"rejected"`
}

// ImportGallery stores descriptors for an event. A volunteer that is already
// enrolled gets the new descriptor. Invalid items are rejected individually.
func ImportGallery(ctx context.Context, w database.GalleryWriter, eventID string, items []GalleryItem) (*ImportResult, error) {
	eventID, err := requireID("event_id", eventID)
	if err != nil {
		return nil, err
	}

	res := &ImportResult{Rejected: []Failure{}}
	for _, item := range items {
		volunteerID := facematch.CanonicalID(item.VolunteerID)
		reject := func(err error) {
			res.Rejected = append(res.Rejected, Failure{
				VolunteerID: volunteerID,
				Kind:        string(errs.KindOf(err)),
				Reason:      errs.Message(err),
			})
		}

		switch {
		case volunteerID == "":
			reject(errs.New(errs.KindInvalidRequest, "volunteer_id is required"))
			continue
		case len(item.Descriptor) > constants.MaxDescriptorDim:
			reject(errs.Newf(errs.KindInvalidDescriptor, "descriptor has %d dimensions", len(item.Descriptor)))
			continue
		}
		if err := facematch.ValidateDescriptor(item.Descriptor); err != nil {
			reject(err)
			continue
		}

		if err := ctx.Err(); err != nil {
			return res, errs.Wrap(errs.KindCanceled, err, "gallery import canceled")
		}
		err := w.UpsertEntry(ctx, database.StoredGalleryEntry{
			EventID:     eventID,
			VolunteerID: volunteerID,
			Descriptor:  item.Descriptor,
		})
		if err != nil {
			return res, fmt.Errorf("storing %s: %w", volunteerID, err)
		}
		res.Imported++
	}
	return res, nil
}
