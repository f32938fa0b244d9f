package facematch

import (
	"cmp"
	"fmt"
	"runtime"
	"slices"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/errs"
)

// Strategy selects the assignment algorithm used by a BulkMatcher.
type Strategy string

const (
	// StrategyHungarian maximises the number of matches, then the total score.
	StrategyHungarian Strategy = "hungarian"
	// StrategyGreedy takes the highest-scoring pairs first.
	StrategyGreedy Strategy = "greedy"
)

// ParseStrategy resolves a strategy by its configuration name.
func ParseStrategy(name string) (Strategy, error) {
	switch Strategy(name) {
	case "", StrategyHungarian:
		return StrategyHungarian, nil
	case StrategyGreedy:
		return StrategyGreedy, nil
	default:
		return "", fmt.Errorf("unknown match strategy %q (supported: hungarian, greedy)", name)
	}
}

// BulkMatcher assigns detected faces to gallery volunteers so that every face
// and every volunteer appears in at most one match and every match scores at
// least the threshold.
type BulkMatcher interface {
	Match(detected []DetectedFace, gallery []GalleryEntry, threshold float64) (*MatchResult, error)
}

// Options configures NewBulkMatcher. Zero values pick the defaults.
type Options struct {
	Strategy Strategy
	Metric   Metric
	Workers  int // parallel rows of the score matrix
}

// NewBulkMatcher returns a matcher for the requested strategy.
func NewBulkMatcher(opts Options) (BulkMatcher, error) {
	s := scorer{metric: opts.Metric, workers: opts.Workers}
	if s.metric == nil {
		s.metric = CosineMetric{}
	}
	if s.workers <= 0 {
		s.workers = runtime.GOMAXPROCS(0)
	}

	switch opts.Strategy {
	case "", StrategyHungarian:
		return &hungarianMatcher{scorer: s}, nil
	case StrategyGreedy:
		return &greedyMatcher{scorer: s}, nil
	default:
		return nil, fmt.Errorf("unknown match strategy %q", opts.Strategy)
	}
}

// noEdge marks a pair that scored below the threshold.
const noEdge = -1.0

type scorer struct {
	metric  Metric
	workers int
}

// problem is a validated matching input with its thresholded score matrix.
type problem struct {
	faces   []DetectedFace
	entries []GalleryEntry
	scores  [][]float64 // scores[face][entry], noEdge below threshold
	skipped []SkippedEntry
}

func (s scorer) prepare(detected []DetectedFace, gallery []GalleryEntry, threshold float64) (*problem, error) {
	if !(threshold > 0 && threshold < 1) {
		return nil, errs.Newf(errs.KindInvalidThreshold, "threshold must be in (0, 1), got %v", threshold)
	}

	p := &problem{faces: detected}
	if len(detected) == 0 {
		return p, nil
	}

	dim := len(detected[0].Descriptor)
	seenFaces := make(map[string]struct{}, len(detected))
	for _, f := range detected {
		if err := ValidateDescriptor(f.Descriptor); err != nil {
			return nil, errs.Wrap(errs.KindOf(err), err, fmt.Sprintf("face %s", f.FaceID))
		}
		if len(f.Descriptor) != dim {
			return nil, errs.Newf(errs.KindDimensionMismatch,
				"face %s has %d dimensions, expected %d", f.FaceID, len(f.Descriptor), dim)
		}
		if _, dup := seenFaces[f.FaceID]; dup {
			return nil, errs.Newf(errs.KindInvalidRequest, "duplicate face id %q", f.FaceID)
		}
		seenFaces[f.FaceID] = struct{}{}
	}

	mismatched := 0
	seenVolunteers := make(map[string]struct{}, len(gallery))
	for _, e := range gallery {
		switch {
		case len(e.Descriptor) != dim:
			mismatched++
			p.skipped = append(p.skipped, SkippedEntry{
				VolunteerID: e.VolunteerID,
				Kind:        string(errs.KindDimensionMismatch),
				Reason:      fmt.Sprintf("descriptor has %d dimensions, expected %d", len(e.Descriptor), dim),
			})
			continue
		case ValidateDescriptor(e.Descriptor) != nil:
			p.skipped = append(p.skipped, SkippedEntry{
				VolunteerID: e.VolunteerID,
				Kind:        string(errs.KindInvalidDescriptor),
				Reason:      errs.Message(ValidateDescriptor(e.Descriptor)),
			})
			continue
		}
		if _, dup := seenVolunteers[e.VolunteerID]; dup {
			p.skipped = append(p.skipped, SkippedEntry{
				VolunteerID: e.VolunteerID,
				Kind:        string(errs.KindInvalidRequest),
				Reason:      "duplicate gallery entry",
			})
			continue
		}
		seenVolunteers[e.VolunteerID] = struct{}{}
		p.entries = append(p.entries, e)
	}
	if len(gallery) > 0 && mismatched == len(gallery) {
		return nil, errs.Newf(errs.KindDimensionMismatch,
			"no gallery entry has the %d dimensions of the detected faces", dim)
	}

	p.scores = s.scoreMatrix(p.faces, p.entries, threshold)
	return p, nil
}

// scoreMatrix scores all face/entry pairs, spreading rows over a bounded set
// of goroutines. Pairs below the threshold are stored as noEdge.
func (s scorer) scoreMatrix(faces []DetectedFace, entries []GalleryEntry, threshold float64) [][]float64 {
	scores := make([][]float64, len(faces))
	if len(entries) == 0 {
		return scores
	}

	rows := make(chan int)
	var wg sync.WaitGroup
	for range min(s.workers, len(faces)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range rows {
				row := make([]float64, len(entries))
				for j := range entries {
					score, err := s.metric.Similarity(faces[i].Descriptor, entries[j].Descriptor)
					if err != nil || score < threshold {
						score = noEdge
					}
					row[j] = score
				}
				scores[i] = row
			}
		}()
	}
	for i := range faces {
		rows <- i
	}
	close(rows)
	wg.Wait()

	return scores
}

// result builds the MatchResult for a set of (face, entry) index pairs.
func (p *problem) result(pairs [][2]int) *MatchResult {
	res := &MatchResult{
		TotalFaces: len(p.faces),
		Matches:    make([]MatchCandidate, 0, len(pairs)),
		Unmatched:  []string{},
		Skipped:    p.skipped,
	}

	matchedFaces := make(map[int]struct{}, len(pairs))
	for _, pr := range pairs {
		matchedFaces[pr[0]] = struct{}{}
		res.Matches = append(res.Matches, MatchCandidate{
			FaceID:      p.faces[pr[0]].FaceID,
			VolunteerID: p.entries[pr[1]].VolunteerID,
			Score:       p.scores[pr[0]][pr[1]],
		})
	}
	sortCandidates(res.Matches)
	res.MatchesFound = len(res.Matches)

	for i, f := range p.faces {
		if _, ok := matchedFaces[i]; !ok {
			res.Unmatched = append(res.Unmatched, f.FaceID)
		}
	}
	return res
}

// sortCandidates orders by score descending, then face ID, then volunteer ID.
func sortCandidates(c []MatchCandidate) {
	slices.SortStableFunc(c, func(a, b MatchCandidate) int {
		if a.Score != b.Score {
			return cmp.Compare(b.Score, a.Score)
		}
		if a.FaceID != b.FaceID {
			return cmp.Compare(a.FaceID, b.FaceID)
		}
		return cmp.Compare(a.VolunteerID, b.VolunteerID)
	})
}

type greedyMatcher struct {
	scorer
}

func (m *greedyMatcher) Match(detected []DetectedFace, gallery []GalleryEntry, threshold float64) (*MatchResult, error) {
	p, err := m.prepare(detected, gallery, threshold)
	if err != nil {
		return nil, err
	}
	return p.result(greedyAssign(p)), nil
}

func greedyAssign(p *problem) [][2]int {
	type edge struct {
		face, entry int
		score       float64
	}
	var edges []edge
	for i, row := range p.scores {
		for j, score := range row {
			if score != noEdge {
				edges = append(edges, edge{i, j, score})
			}
		}
	}
	slices.SortStableFunc(edges, func(a, b edge) int {
		if a.score != b.score {
			return cmp.Compare(b.score, a.score)
		}
		if fa, fb := p.faces[a.face].FaceID, p.faces[b.face].FaceID; fa != fb {
			return cmp.Compare(fa, fb)
		}
		return cmp.Compare(p.entries[a.entry].VolunteerID, p.entries[b.entry].VolunteerID)
	})

	usedFaces := make(map[int]struct{})
	usedEntries := make(map[int]struct{})
	var pairs [][2]int
	for _, e := range edges {
		if _, ok := usedFaces[e.face]; ok {
			continue
		}
		if _, ok := usedEntries[e.entry]; ok {
			continue
		}
		usedFaces[e.face] = struct{}{}
		usedEntries[e.entry] = struct{}{}
		pairs = append(pairs, [2]int{e.face, e.entry})
	}
	return pairs
}

type hungarianMatcher struct {
	scorer
}

func (m *hungarianMatcher) Match(detected []DetectedFace, gallery []GalleryEntry, threshold float64) (*MatchResult, error) {
	p, err := m.prepare(detected, gallery, threshold)
	if err != nil {
		return nil, err
	}
	return p.result(hungarianAssign(p.scores, len(p.entries))), nil
}
