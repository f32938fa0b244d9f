package attendance

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/logger"
)

// IdentifyRequest asks which volunteer a descriptor belongs to.
type IdentifyRequest struct {
	EventID    string
	Descriptor facematch.Descriptor
	Threshold  *float64
}

// IdentifyResponse holds the best volunteer, if any scored above the
// threshold, and the nearest candidates.
type IdentifyResponse struct {
	Found       bool                       `json:"found"`
	VolunteerID string                     `json:"volunteer_id,omitempty"`
	Score       float64                    `json:"score,omitempty"`
	Candidates  []facematch.MatchCandidate `json:"candidates"`
}

// Identify finds the gallery volunteer closest to a descriptor. Neighbours
// come from a per-event HNSW index and are rescored with the configured metric.
// Nothing is recorded.
func (s *Service) Identify(ctx context.Context, req IdentifyRequest) (*IdentifyResponse, error) {
	eventID, err := requireID("event_id", req.EventID)
	if err != nil {
		return nil, err
	}
	if err := facematch.ValidateDescriptor(req.Descriptor); err != nil {
		return nil, err
	}
	threshold, err := s.resolveThreshold(req.Threshold, s.cfg.DefaultThreshold)
	if err != nil {
		return nil, err
	}

	idx, err := s.galleryIndex(ctx, eventID)
	if err != nil {
		return nil, err
	}

	neighbours, err := idx.Search(req.Descriptor, constants.IdentifyCandidates*database.HNSWSearchMultiplier)
	if err != nil {
		return nil, err
	}

	candidates := make([]facematch.MatchCandidate, 0, len(neighbours))
	for _, e := range neighbours {
		score, err := s.metric.Similarity(req.Descriptor, e.Descriptor)
		if err != nil {
			continue
		}
		candidates = append(candidates, facematch.MatchCandidate{VolunteerID: e.VolunteerID, Score: score})
	}
	slices.SortFunc(candidates, func(a, b facematch.MatchCandidate) int {
		if a.Score != b.Score {
			return cmp.Compare(b.Score, a.Score)
		}
		return cmp.Compare(a.VolunteerID, b.VolunteerID)
	})
	if len(candidates) > constants.IdentifyCandidates {
		candidates = candidates[:constants.IdentifyCandidates]
	}

	resp := &IdentifyResponse{Candidates: candidates}
	if len(candidates) > 0 && candidates[0].Score >= threshold {
		resp.Found = true
		resp.VolunteerID = candidates[0].VolunteerID
		resp.Score = candidates[0].Score
	}
	return resp, nil
}

// galleryIndex returns a current index for the event, rebuilding it when the
// gallery stats changed since the cached build.
func (s *Service) galleryIndex(ctx context.Context, eventID string) (*database.GalleryIndex, error) {
	stats, err := s.store.Stats(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("loading gallery stats: %w", err)
	}
	if idx := s.indexes.get(eventID); idx != nil && sameStats(idx.Stats(), stats) {
		return idx, nil
	}

	gallery, err := s.loadGallery(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if len(gallery) > 0 && s.gallerySkewed(gallery) {
		logger.C(ctx).Warn().Str("event_id", eventID).Msg("gallery holds descriptors of mixed dimensions")
	}

	idx := database.NewGalleryIndex(gallery, stats)
	s.indexes.put(eventID, idx)
	logger.C(ctx).Debug().
		Str("event_id", eventID).
		Int("indexed", idx.Count()).
		Int("gallery", len(gallery)).
		Msg("gallery index rebuilt")
	return idx, nil
}

func (s *Service) gallerySkewed(gallery []facematch.GalleryEntry) bool {
	dim := len(gallery[0].Descriptor)
	for _, e := range gallery[1:] {
		if len(e.Descriptor) != dim {
			return true
		}
	}
	return false
}

func sameStats(a, b database.GalleryStats) bool {
	return a.Count == b.Count && a.EnrolledAt.Equal(b.EnrolledAt)
}

// indexCache holds one gallery index per event.
type indexCache struct {
	mu      sync.RWMutex
	indexes map[string]*database.GalleryIndex
}

func newIndexCache() *indexCache {
	return &indexCache{indexes: make(map[string]*database.GalleryIndex)}
}

func (c *indexCache) get(eventID string) *database.GalleryIndex {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.indexes[eventID]
}

func (c *indexCache) put(eventID string, idx *database.GalleryIndex) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indexes[eventID] = idx
}
