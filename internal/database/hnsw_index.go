package database

import (
	"cmp"
	"errors"
	"slices"
	"sync"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/face-attendance/internal/errs"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// GalleryIndex wraps an HNSW graph over one event's gallery for approximate
// nearest-volunteer search. Entries whose dimension differs from the
// index dimension, or that have no direction, are left out.
type GalleryIndex struct {
	graph   *hnsw.Graph[string]
	entries map[string]facematch.GalleryEntry // keyed by volunteer ID
	dim     int
	stats   GalleryStats
	mu      sync.RWMutex
}

// NewGalleryIndex builds an index from a gallery snapshot. stats identifies
// the snapshot so callers can tell when the index is stale.
func NewGalleryIndex(gallery []facematch.GalleryEntry, stats GalleryStats) *GalleryIndex {
	h := &GalleryIndex{
		entries: make(map[string]facematch.GalleryEntry, len(gallery)),
		dim:     dominantDim(gallery),
		stats:   stats,
	}

	g := hnsw.NewGraph[string]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.CosineDistance

	for _, e := range gallery {
		if len(e.Descriptor) != h.dim || facematch.ValidateDescriptor(e.Descriptor) != nil || isZero(e.Descriptor) {
			continue
		}
		g.Add(hnsw.MakeNode(e.VolunteerID, []float32(e.Descriptor)))
		h.entries[e.VolunteerID] = e
	}

	h.graph = g
	return h
}

// Search returns up to k gallery entries nearest to the query by cosine
// distance, nearest first. Galleries up to HNSWExactSearchLimit entries are
// scanned exactly; larger ones walk the graph with at least EfSearch
// candidates and keep the k nearest of those.
func (h *GalleryIndex) Search(query facematch.Descriptor, k int) ([]facematch.GalleryEntry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil {
		return nil, errors.New("index not initialized")
	}
	if len(h.entries) == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != h.dim {
		return nil, errs.Newf(errs.KindDimensionMismatch,
			"query has %d dimensions, gallery has %d", len(query), h.dim)
	}
	if isZero(query) {
		return nil, nil
	}

	type hit struct {
		entry    facematch.GalleryEntry
		distance float32
	}
	var hits []hit
	if len(h.entries) <= HNSWExactSearchLimit {
		hits = make([]hit, 0, len(h.entries))
		for _, e := range h.entries {
			hits = append(hits, hit{e, hnsw.CosineDistance([]float32(query), []float32(e.Descriptor))})
		}
	} else {
		neighbors := h.graph.Search([]float32(query), max(k, HNSWEfSearch))
		hits = make([]hit, 0, len(neighbors))
		for _, n := range neighbors {
			if e, ok := h.entries[n.Key]; ok {
				hits = append(hits, hit{e, hnsw.CosineDistance([]float32(query), n.Value)})
			}
		}
	}

	slices.SortFunc(hits, func(a, b hit) int {
		if a.distance != b.distance {
			return cmp.Compare(a.distance, b.distance)
		}
		return cmp.Compare(a.entry.VolunteerID, b.entry.VolunteerID)
	})
	if len(hits) > k {
		hits = hits[:k]
	}

	out := make([]facematch.GalleryEntry, len(hits))
	for i, hh := range hits {
		out[i] = hh.entry
	}
	return out, nil
}

// Stats returns the gallery revision the index was built from.
func (h *GalleryIndex) Stats() GalleryStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.stats
}

// Count returns the number of indexed volunteers.
func (h *GalleryIndex) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Dim returns the descriptor dimension of the index, 0 when empty.
func (h *GalleryIndex) Dim() int {
	return h.dim
}

// dominantDim picks the most common descriptor length, the shorter one on ties.
func dominantDim(gallery []facematch.GalleryEntry) int {
	counts := make(map[int]int)
	best, bestCount := 0, 0
	for _, e := range gallery {
		n := len(e.Descriptor)
		if n == 0 {
			continue
		}
		counts[n]++
		if c := counts[n]; c > bestCount || (c == bestCount && n < best) {
			best, bestCount = n, c
		}
	}
	return best
}

func isZero(d facematch.Descriptor) bool {
	for _, v := range d {
		if v != 0 {
			return false
		}
	}
	return true
}
