package facematch

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/errs"
)

// tableMetric scores pairs from a lookup table keyed by the first component
// of each descriptor, so assignment tests can state exact scores.
type tableMetric map[[2]float32]float64

func (tableMetric) Name() string { return "table" }

func (m tableMetric) Similarity(a, b Descriptor) (float64, error) {
	return m[[2]float32{a[0], b[0]}], nil
}

type scoreTable struct {
	faces   []string
	vols    []string
	metric  tableMetric
	detects []DetectedFace
	gallery []GalleryEntry
}

// newScoreTable builds faces and gallery entries whose pairwise scores come from scores[face][volunteer].
func newScoreTable(faces, vols []string, scores map[string]map[string]float64) *scoreTable {
	st := &scoreTable{faces: faces, vols: vols, metric: tableMetric{}}
	for i, f := range faces {
		st.detects = append(st.detects, DetectedFace{FaceID: f, Descriptor: Descriptor{float32(i + 1), 1}})
	}
	for j, v := range vols {
		st.gallery = append(st.gallery, GalleryEntry{VolunteerID: v, Descriptor: Descriptor{float32(-(j + 1)), 1}})
	}
	for i, f := range faces {
		for j, v := range vols {
			st.metric[[2]float32{float32(i + 1), float32(-(j + 1))}] = scores[f][v]
		}
	}
	return st
}

func (st *scoreTable) matcher(t *testing.T, s Strategy) BulkMatcher {
	t.Helper()
	m, err := NewBulkMatcher(Options{Strategy: s, Metric: st.metric, Workers: 2})
	if err != nil {
		t.Fatalf("NewBulkMatcher(%s) error: %v", s, err)
	}
	return m
}

func pairsOf(res *MatchResult) map[string]string {
	out := make(map[string]string, len(res.Matches))
	for _, m := range res.Matches {
		out[m.FaceID] = m.VolunteerID
	}
	return out
}

var strategies = []Strategy{StrategyHungarian, StrategyGreedy}

func TestMatch_TwoFacesTwoVolunteers(t *testing.T) {
	st := newScoreTable([]string{"f1", "f2"}, []string{"V1", "V2"}, map[string]map[string]float64{
		"f1": {"V1": 0.9, "V2": 0.5},
		"f2": {"V1": 0.55, "V2": 0.8},
	})

	for _, s := range strategies {
		t.Run(string(s), func(t *testing.T) {
			res, err := st.matcher(t, s).Match(st.detects, st.gallery, 0.6)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.TotalFaces != 2 || res.MatchesFound != 2 {
				t.Fatalf("got total=%d matches=%d, want 2/2", res.TotalFaces, res.MatchesFound)
			}
			pairs := pairsOf(res)
			if pairs["f1"] != "V1" || pairs["f2"] != "V2" {
				t.Errorf("unexpected pairs: %v", pairs)
			}
			if res.Matches[0].Score != 0.9 {
				t.Errorf("matches not sorted by score: %+v", res.Matches)
			}
			if len(res.Unmatched) != 0 {
				t.Errorf("expected no unmatched faces, got %v", res.Unmatched)
			}
		})
	}
}

func TestMatch_StrictThresholdMatchesNothing(t *testing.T) {
	st := newScoreTable([]string{"f1", "f2"}, []string{"V1", "V2"}, map[string]map[string]float64{
		"f1": {"V1": 0.9, "V2": 0.5},
		"f2": {"V1": 0.55, "V2": 0.8},
	})

	for _, s := range strategies {
		t.Run(string(s), func(t *testing.T) {
			res, err := st.matcher(t, s).Match(st.detects, st.gallery, 0.95)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.MatchesFound != 0 {
				t.Errorf("expected 0 matches, got %d", res.MatchesFound)
			}
			if len(res.Unmatched) != 2 {
				t.Errorf("expected 2 unmatched faces, got %v", res.Unmatched)
			}
		})
	}
}

func TestMatch_MoreFacesThanVolunteers(t *testing.T) {
	st := newScoreTable([]string{"f1", "f2", "f3"}, []string{"V1"}, map[string]map[string]float64{
		"f1": {"V1": 0.7},
		"f2": {"V1": 0.65},
		"f3": {"V1": 0.62},
	})

	for _, s := range strategies {
		t.Run(string(s), func(t *testing.T) {
			res, err := st.matcher(t, s).Match(st.detects, st.gallery, 0.6)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.MatchesFound != 1 || res.Matches[0].FaceID != "f1" {
				t.Errorf("expected only f1-V1, got %+v", res.Matches)
			}
			if len(res.Unmatched) != 2 {
				t.Errorf("expected 2 unmatched faces, got %v", res.Unmatched)
			}
		})
	}
}

func TestMatch_HungarianBeatsGreedy(t *testing.T) {
	st := newScoreTable([]string{"f1", "f2"}, []string{"V1", "V2"}, map[string]map[string]float64{
		"f1": {"V1": 0.9, "V2": 0.85},
		"f2": {"V1": 0.8, "V2": 0.1},
	})

	greedy, err := st.matcher(t, StrategyGreedy).Match(st.detects, st.gallery, 0.6)
	if err != nil {
		t.Fatalf("greedy error: %v", err)
	}
	if greedy.MatchesFound != 1 || pairsOf(greedy)["f1"] != "V1" {
		t.Errorf("greedy: expected only f1-V1, got %+v", greedy.Matches)
	}

	hung, err := st.matcher(t, StrategyHungarian).Match(st.detects, st.gallery, 0.6)
	if err != nil {
		t.Fatalf("hungarian error: %v", err)
	}
	pairs := pairsOf(hung)
	if hung.MatchesFound != 2 || pairs["f1"] != "V2" || pairs["f2"] != "V1" {
		t.Errorf("hungarian: expected f1-V2 and f2-V1, got %+v", hung.Matches)
	}
}

func TestMatch_GreedyTieBreak(t *testing.T) {
	st := newScoreTable([]string{"f2", "f1"}, []string{"V2", "V1"}, map[string]map[string]float64{
		"f1": {"V1": 0.8, "V2": 0.8},
		"f2": {"V1": 0.8, "V2": 0.8},
	})

	for range 5 {
		res, err := st.matcher(t, StrategyGreedy).Match(st.detects, st.gallery, 0.6)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		pairs := pairsOf(res)
		if pairs["f1"] != "V1" || pairs["f2"] != "V2" {
			t.Fatalf("expected f1-V1 and f2-V2, got %v", pairs)
		}
	}
}

func TestMatch_EmptyInputs(t *testing.T) {
	m, _ := NewBulkMatcher(Options{})

	res, err := m.Match(nil, []GalleryEntry{{VolunteerID: "V1", Descriptor: Descriptor{1, 0}}}, 0.6)
	if err != nil {
		t.Fatalf("no faces: unexpected error: %v", err)
	}
	if res.TotalFaces != 0 || res.MatchesFound != 0 {
		t.Errorf("no faces: got %+v", res)
	}

	faces := []DetectedFace{{FaceID: "0:0", Descriptor: Descriptor{1, 0}}}
	res, err = m.Match(faces, nil, 0.6)
	if err != nil {
		t.Fatalf("empty gallery: unexpected error: %v", err)
	}
	if res.MatchesFound != 0 || len(res.Unmatched) != 1 {
		t.Errorf("empty gallery: got %+v", res)
	}
}

func TestMatch_InvalidThreshold(t *testing.T) {
	m, _ := NewBulkMatcher(Options{})
	faces := []DetectedFace{{FaceID: "0:0", Descriptor: Descriptor{1, 0}}}

	for _, th := range []float64{0, 1, -1, 2} {
		if _, err := m.Match(faces, nil, th); !errs.IsKind(err, errs.KindInvalidThreshold) {
			t.Errorf("threshold %v: expected InvalidThreshold, got %v", th, err)
		}
	}
}

func TestMatch_DimensionHandling(t *testing.T) {
	m, _ := NewBulkMatcher(Options{})

	t.Run("detected faces disagree", func(t *testing.T) {
		faces := []DetectedFace{
			{FaceID: "0:0", Descriptor: Descriptor{1, 0}},
			{FaceID: "0:1", Descriptor: Descriptor{1, 0, 0}},
		}
		if _, err := m.Match(faces, nil, 0.6); !errs.IsKind(err, errs.KindDimensionMismatch) {
			t.Errorf("expected DimensionMismatch, got %v", err)
		}
	})

	t.Run("some gallery entries mismatch", func(t *testing.T) {
		faces := []DetectedFace{{FaceID: "0:0", Descriptor: Descriptor{1, 0}}}
		gallery := []GalleryEntry{
			{VolunteerID: "V1", Descriptor: Descriptor{1, 0}},
			{VolunteerID: "V2", Descriptor: Descriptor{1, 0, 0}},
		}
		res, err := m.Match(faces, gallery, 0.6)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.MatchesFound != 1 || res.Matches[0].VolunteerID != "V1" {
			t.Errorf("expected V1 match, got %+v", res.Matches)
		}
		if len(res.Skipped) != 1 || res.Skipped[0].VolunteerID != "V2" ||
			res.Skipped[0].Kind != string(errs.KindDimensionMismatch) {
			t.Errorf("expected V2 skipped for dimension mismatch, got %+v", res.Skipped)
		}
	})

	t.Run("whole gallery mismatches", func(t *testing.T) {
		faces := []DetectedFace{{FaceID: "0:0", Descriptor: Descriptor{1, 0}}}
		gallery := []GalleryEntry{{VolunteerID: "V1", Descriptor: Descriptor{1, 0, 0}}}
		if _, err := m.Match(faces, gallery, 0.6); !errs.IsKind(err, errs.KindDimensionMismatch) {
			t.Errorf("expected DimensionMismatch, got %v", err)
		}
	})

	t.Run("invalid detected descriptor", func(t *testing.T) {
		faces := []DetectedFace{{FaceID: "0:0", Descriptor: Descriptor{}}}
		if _, err := m.Match(faces, nil, 0.6); !errs.IsKind(err, errs.KindInvalidDescriptor) {
			t.Errorf("expected InvalidDescriptor, got %v", err)
		}
	})
}

func TestMatch_DuplicateIDs(t *testing.T) {
	m, _ := NewBulkMatcher(Options{})

	faces := []DetectedFace{
		{FaceID: "0:0", Descriptor: Descriptor{1, 0}},
		{FaceID: "0:0", Descriptor: Descriptor{0, 1}},
	}
	if _, err := m.Match(faces, nil, 0.6); !errs.IsKind(err, errs.KindInvalidRequest) {
		t.Errorf("duplicate face ids: expected InvalidRequest, got %v", err)
	}

	faces = faces[:1]
	gallery := []GalleryEntry{
		{VolunteerID: "V1", Descriptor: Descriptor{1, 0}},
		{VolunteerID: "V1", Descriptor: Descriptor{0, 1}},
	}
	res, err := m.Match(faces, gallery, 0.6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Skipped) != 1 {
		t.Errorf("expected duplicate gallery entry to be skipped, got %+v", res.Skipped)
	}
}

func TestMatch_SelfSimilarity(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	const n, dim = 12, 64

	var gallery []GalleryEntry
	var faces []DetectedFace
	owner := make(map[string]string)
	for i := range n {
		d := make(Descriptor, dim)
		for k := range d {
			d[k] = float32(rng.NormFloat64())
		}
		vid := fmt.Sprintf("V%02d", i)
		gallery = append(gallery, GalleryEntry{VolunteerID: vid, Descriptor: d})
		fid := fmt.Sprintf("0:%d", i)
		faces = append(faces, DetectedFace{FaceID: fid, Descriptor: d.Clone()})
		owner[fid] = vid
	}

	for _, s := range strategies {
		t.Run(string(s), func(t *testing.T) {
			m, _ := NewBulkMatcher(Options{Strategy: s, Workers: 3})
			res, err := m.Match(faces, gallery, 0.9)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.MatchesFound != n {
				t.Fatalf("expected %d matches, got %d", n, res.MatchesFound)
			}
			for _, c := range res.Matches {
				if c.VolunteerID != owner[c.FaceID] {
					t.Errorf("face %s matched %s, want %s", c.FaceID, c.VolunteerID, owner[c.FaceID])
				}
			}
		})
	}
}

// randomTable builds a dense score table with values in [0, 1).
func randomTable(rng *rand.Rand, nf, nv int) *scoreTable {
	var faces, vols []string
	for i := range nf {
		faces = append(faces, fmt.Sprintf("f%d", i))
	}
	for j := range nv {
		vols = append(vols, fmt.Sprintf("V%d", j))
	}
	scores := make(map[string]map[string]float64)
	for _, f := range faces {
		scores[f] = make(map[string]float64)
		for _, v := range vols {
			scores[f][v] = rng.Float64()
		}
	}
	return newScoreTable(faces, vols, scores)
}

func assertValidAssignment(t *testing.T, res *MatchResult, threshold float64) {
	t.Helper()
	faces := make(map[string]bool)
	vols := make(map[string]bool)
	for _, m := range res.Matches {
		if faces[m.FaceID] {
			t.Errorf("face %s matched twice", m.FaceID)
		}
		if vols[m.VolunteerID] {
			t.Errorf("volunteer %s matched twice", m.VolunteerID)
		}
		if m.Score < threshold {
			t.Errorf("match %s-%s scores %v below threshold %v", m.FaceID, m.VolunteerID, m.Score, threshold)
		}
		faces[m.FaceID] = true
		vols[m.VolunteerID] = true
	}
	if res.MatchesFound+len(res.Unmatched) != res.TotalFaces {
		t.Errorf("matches %d + unmatched %d != total %d", res.MatchesFound, len(res.Unmatched), res.TotalFaces)
	}
	for i := 1; i < len(res.Matches); i++ {
		if res.Matches[i].Score > res.Matches[i-1].Score {
			t.Errorf("matches not sorted at %d", i)
		}
	}
}

func TestMatch_Invariants(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	thresholds := []float64{0.1, 0.3, 0.5, 0.6, 0.7, 0.8, 0.9, 0.99}

	for trial := range 40 {
		st := randomTable(rng, 1+rng.IntN(6), 1+rng.IntN(6))
		hung := st.matcher(t, StrategyHungarian)
		greedy := st.matcher(t, StrategyGreedy)

		prev := -1
		for _, th := range thresholds {
			h, err := hung.Match(st.detects, st.gallery, th)
			if err != nil {
				t.Fatalf("trial %d: hungarian error: %v", trial, err)
			}
			g, err := greedy.Match(st.detects, st.gallery, th)
			if err != nil {
				t.Fatalf("trial %d: greedy error: %v", trial, err)
			}
			assertValidAssignment(t, h, th)
			assertValidAssignment(t, g, th)

			if prev >= 0 && h.MatchesFound > prev {
				t.Errorf("trial %d: matches grew from %d to %d when raising threshold to %v",
					trial, prev, h.MatchesFound, th)
			}
			prev = h.MatchesFound

			if h.MatchesFound < g.MatchesFound {
				t.Errorf("trial %d: hungarian found %d matches, greedy %d", trial, h.MatchesFound, g.MatchesFound)
			}
			if want := bruteForceCardinality(st, th); h.MatchesFound != want {
				t.Errorf("trial %d threshold %v: hungarian found %d matches, optimum is %d",
					trial, th, h.MatchesFound, want)
			}
		}
	}
}

// bruteForceCardinality returns the size of the largest valid assignment.
func bruteForceCardinality(st *scoreTable, threshold float64) int {
	used := make([]bool, len(st.gallery))
	var best func(i int) int
	best = func(i int) int {
		if i == len(st.detects) {
			return 0
		}
		result := best(i + 1)
		for j := range st.gallery {
			if used[j] {
				continue
			}
			s, _ := st.metric.Similarity(st.detects[i].Descriptor, st.gallery[j].Descriptor)
			if s < threshold {
				continue
			}
			used[j] = true
			result = max(result, 1+best(i+1))
			used[j] = false
		}
		return result
	}
	return best(0)
}

func TestNewBulkMatcher_UnknownStrategy(t *testing.T) {
	if _, err := NewBulkMatcher(Options{Strategy: "random"}); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestParseStrategy(t *testing.T) {
	tests := map[string]Strategy{"": StrategyHungarian, "hungarian": StrategyHungarian, "greedy": StrategyGreedy}
	for in, want := range tests {
		got, err := ParseStrategy(in)
		if err != nil || got != want {
			t.Errorf("ParseStrategy(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseStrategy("best"); err == nil {
		t.Error("expected error for unknown strategy")
	}
}
