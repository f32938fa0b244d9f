package attendance

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/errs"
	"github.com/kozaktomas/face-attendance/internal/logger"
)

// Match is a confirmed pairing ready to be committed.
type Match struct {
	EventID     string
	VolunteerID string
	FaceID      string
	Confidence  float64
	Source      database.Source
}

// Outcome reports one committed attendance write.
type Outcome struct {
	VolunteerID      string  `json:"volunteer_id"`
	Confidence       float64 `json:"confidence"`
	StoredConfidence float64 `json:"stored_confidence"`
	AlreadyMarked    bool    `json:"already_marked"`
	Upgraded         bool    `json:"upgraded"`
	RecordID         string  `json:"record_id"`
}

// Failure reports one attendance write that did not happen.
type Failure struct {
	VolunteerID string `json:"volunteer_id"`
	Kind        string `json:"kind"`
	Reason      string `json:"reason"`
}

// BulkOutcome collects the per-match results of RecordAll. Marked and Failed
// keep the input order. Dropped counts matches never attempted because the
// context ended.
type BulkOutcome struct {
	Marked  []Outcome
	Failed  []Failure
	Dropped int
}

// Recorder commits matches through the storage layer's conditional write.
// It holds no locks of its own: uniqueness is the store's job.
type Recorder struct {
	store   database.AttendanceWriter
	workers int
}

// NewRecorder creates a recorder writing with up to workers concurrent calls.
func NewRecorder(store database.AttendanceWriter, workers int) *Recorder {
	if workers <= 0 {
		workers = 1
	}
	return &Recorder{store: store, workers: workers}
}

// Record commits one match. Repeating it is a no-op reported as AlreadyMarked.
func (r *Recorder) Record(ctx context.Context, m Match) (Outcome, error) {
	writeCtx, cancel := context.WithTimeout(ctx, constants.RecordTimeoutSeconds*time.Second)
	defer cancel()

	res, err := r.store.MarkAttendance(writeCtx, database.AttendanceRecord{
		EventID:     m.EventID,
		VolunteerID: m.VolunteerID,
		Confidence:  m.Confidence,
		Source:      m.Source,
		FaceID:      m.FaceID,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return Outcome{}, errs.Wrap(errs.KindCanceled, err, "attendance write canceled")
		}
		return Outcome{}, errs.Wrap(errs.KindStorageWriteFailed, err, "failed to record attendance")
	}

	return Outcome{
		VolunteerID:      m.VolunteerID,
		Confidence:       m.Confidence,
		StoredConfidence: res.Record.Confidence,
		AlreadyMarked:    res.AlreadyMarked(),
		Upgraded:         res.Upgraded,
		RecordID:         res.Record.ID,
	}, nil
}

// RecordAll commits every match independently. A failed write does not stop
// its siblings. Once ctx ends, matches not yet started are dropped; writes
// that already committed stand.
func (r *Recorder) RecordAll(ctx context.Context, matches []Match) BulkOutcome {
	log := logger.C(ctx)

	type result struct {
		outcome Outcome
		err     error
		done    bool
	}
	results := make([]result, len(matches))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for range min(r.workers, len(matches)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					continue
				}
				out, err := r.Record(ctx, matches[i])
				results[i] = result{outcome: out, err: err, done: true}
			}
		}()
	}

feed:
	for i := range matches {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	var bo BulkOutcome
	for i, res := range results {
		switch {
		case !res.done, errs.IsKind(res.err, errs.KindCanceled):
			bo.Dropped++
		case res.err != nil:
			log.Warn().Err(res.err).
				Str("event_id", matches[i].EventID).
				Str("volunteer_id", matches[i].VolunteerID).
				Msg("attendance write failed")
			bo.Failed = append(bo.Failed, Failure{
				VolunteerID: matches[i].VolunteerID,
				Kind:        string(errs.KindOf(res.err)),
				Reason:      res.err.Error(),
			})
		default:
			bo.Marked = append(bo.Marked, res.outcome)
		}
	}
	return bo
}
