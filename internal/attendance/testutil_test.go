package attendance

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/errs"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

const testDim = 8

// volunteerAxis gives every test volunteer its own axis, so two different
// volunteers score exactly 0.5 against each other under the cosine metric.
var volunteerAxis = map[string]int{"V1": 0, "V2": 1, "V3": 2, "V4": 3, "V5": 4}

// enrolled is the gallery descriptor of a volunteer.
func enrolled(volunteerID string) []float32 {
	d := make([]float32, testDim)
	d[volunteerAxis[volunteerID]] = 1
	return d
}

// face returns a descriptor scoring about score against the volunteer and
// 0.5 against everybody else. The remainder goes to the last axis, which no
// volunteer uses.
func face(volunteerID string, score float64) facematch.Descriptor {
	c := 2*score - 1
	d := make(facematch.Descriptor, testDim)
	d[volunteerAxis[volunteerID]] = float32(c)
	d[testDim-1] = float32(math.Sqrt(1 - c*c))
	return d
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-4
}

func ptr(f float64) *float64 { return &f }

// fakeExtractor maps photo contents to the faces in them. "hang" blocks
// until the context ends and "broken" fails.
type fakeExtractor struct {
	mu     sync.Mutex
	photos map[string][]facematch.DetectedFace
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{photos: make(map[string][]facematch.DetectedFace)}
}

func (f *fakeExtractor) add(photo string, faces ...facematch.Descriptor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range faces {
		f.photos[photo] = append(f.photos[photo], facematch.DetectedFace{Descriptor: d})
	}
}

func (f *fakeExtractor) Extract(ctx context.Context, image []byte) ([]facematch.DetectedFace, error) {
	switch string(image) {
	case "hang":
		<-ctx.Done()
		return nil, ctx.Err()
	case "broken":
		return nil, errs.New(errs.KindExtractionFailed, "model crashed")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	faces := make([]facematch.DetectedFace, len(f.photos[string(image)]))
	copy(faces, f.photos[string(image)])
	return faces, nil
}

// tickingClock returns strictly increasing timestamps.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func testConfig() config.MatchingConfig {
	return config.Defaults().Matching
}

type fixture struct {
	store     *mock.MockStore
	extractor *fakeExtractor
	service   *Service
}

// newFixture builds a service over a mock store whose "E1" gallery holds the
// given volunteers.
func newFixture(t *testing.T, cfg config.MatchingConfig, volunteers ...string) *fixture {
	t.Helper()

	store := mock.NewMockStore()
	store.SetClock(tickingClock())
	for _, v := range volunteers {
		store.AddEntry("E1", v, enrolled(v))
	}

	ex := newFakeExtractor()
	svc, err := NewService(store, ex, cfg, 200*time.Millisecond)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return &fixture{store: store, extractor: ex, service: svc}
}
