// Package attendance runs the reconciliation pipeline: extract descriptors
// from event photos, match them against the event gallery and commit
// attendance records.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/errs"
	"github.com/kozaktomas/face-attendance/internal/extractor"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/logger"
)

// Store is the storage the pipeline needs.
type Store interface {
	database.GalleryReader
	database.AttendanceWriter
}

// Service is the attendance pipeline. It is safe for concurrent use.
type Service struct {
	store             Store
	extractor         facematch.Extractor
	matcher           facematch.BulkMatcher
	metric            facematch.Metric
	recorder          *Recorder
	cfg               config.MatchingConfig
	extractionTimeout time.Duration
	indexes           *indexCache
}

// NewService wires the pipeline. extractionTimeout bounds each photo; 0 disables it.
func NewService(store Store, ex facematch.Extractor, cfg config.MatchingConfig, extractionTimeout time.Duration) (*Service, error) {
	metric, err := facematch.ParseMetric(cfg.Metric)
	if err != nil {
		return nil, err
	}
	strategy, err := facematch.ParseStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	matcher, err := facematch.NewBulkMatcher(facematch.Options{
		Strategy: strategy,
		Metric:   metric,
		Workers:  cfg.Workers,
	})
	if err != nil {
		return nil, err
	}

	return &Service{
		store:             store,
		extractor:         ex,
		matcher:           matcher,
		metric:            metric,
		recorder:          NewRecorder(store, cfg.Workers),
		cfg:               cfg,
		extractionTimeout: extractionTimeout,
		indexes:           newIndexCache(),
	}, nil
}

// resolveThreshold applies the default for nil, rejects values outside (0, 1)
// and clamps the rest into the configured range.
func (s *Service) resolveThreshold(t *float64, def float64) (float64, error) {
	if t == nil {
		return def, nil
	}
	if !(*t > 0 && *t < 1) {
		return 0, errs.Newf(errs.KindInvalidThreshold, "threshold must be in (0, 1), got %v", *t)
	}
	return s.cfg.ClampThreshold(*t), nil
}

func requireID(name, value string) (string, error) {
	id := facematch.CanonicalID(value)
	if id == "" {
		return "", errs.Newf(errs.KindInvalidRequest, "%s is required", name)
	}
	return id, nil
}

func (s *Service) loadGallery(ctx context.Context, eventID string) ([]facematch.GalleryEntry, error) {
	stored, err := s.store.ListEntries(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("loading gallery: %w", err)
	}
	gallery := make([]facematch.GalleryEntry, len(stored))
	for i, e := range stored {
		gallery[i] = e.Entry()
	}
	return gallery, nil
}

// BulkRequest asks for a group photo reconciliation.
type BulkRequest struct {
	EventID   string
	Photos    [][]byte
	Threshold *float64
	DryRun    bool // match only, commit nothing
	OnImage   func(index int)
}

// BulkResponse summarizes one bulk run.
type BulkResponse struct {
	EventID          string                     `json:"event_id"`
	Threshold        float64                    `json:"threshold"`
	TotalFaces       int                        `json:"total_faces"`
	MatchesFound     int                        `json:"matches_found"`
	Matches          []facematch.MatchCandidate `json:"matches"`
	AttendanceMarked []Outcome                  `json:"attendance_marked"`
	Failed           []Failure                  `json:"failed"`
	Dropped          int                        `json:"dropped"`
	UnmatchedFaces   []string                   `json:"unmatched_faces"`
	ExcludedImages   []extractor.ImageFailure   `json:"excluded_images"`
	SkippedEntries   []facematch.SkippedEntry   `json:"skipped_entries"`
}

// Bulk extracts faces from all photos, matches them against the event gallery
// in one assignment and records attendance for every match. Photos that fail
// or time out are excluded and reported. Faces from all photos compete in one
// matching, so a volunteer is credited at most once per request.
func (s *Service) Bulk(ctx context.Context, req BulkRequest) (*BulkResponse, error) {
	eventID, err := requireID("event_id", req.EventID)
	if err != nil {
		return nil, err
	}
	if len(req.Photos) == 0 {
		return nil, errs.New(errs.KindInvalidRequest, "at least one photo is required")
	}
	threshold, err := s.resolveThreshold(req.Threshold, s.cfg.DefaultThreshold)
	if err != nil {
		return nil, err
	}

	log := logger.C(ctx).With().Str("event_id", eventID).Logger()
	start := time.Now()

	gallery, err := s.loadGallery(ctx, eventID)
	if err != nil {
		return nil, err
	}

	batch := &extractor.Batch{
		Extractor: s.extractor,
		Workers:   s.cfg.Workers,
		Timeout:   s.extractionTimeout,
		OnImage:   req.OnImage,
	}
	extracted, err := batch.Run(ctx, req.Photos)
	if err != nil {
		return nil, err
	}
	faces := facematch.SuppressOverlapping(extracted.Faces, s.cfg.OverlapIoU)

	result, err := s.matcher.Match(faces, gallery, threshold)
	if err != nil {
		return nil, err
	}

	resp := &BulkResponse{
		EventID:          eventID,
		Threshold:        threshold,
		TotalFaces:       result.TotalFaces,
		MatchesFound:     result.MatchesFound,
		Matches:          result.Matches,
		AttendanceMarked: []Outcome{},
		Failed:           []Failure{},
		UnmatchedFaces:   result.Unmatched,
		ExcludedImages:   emptyIfNil(extracted.Excluded),
		SkippedEntries:   emptyIfNil(result.Skipped),
	}

	if !req.DryRun {
		matches := make([]Match, len(result.Matches))
		for i, c := range result.Matches {
			matches[i] = Match{
				EventID:     eventID,
				VolunteerID: c.VolunteerID,
				FaceID:      c.FaceID,
				Confidence:  c.Score,
				Source:      database.SourceBulk,
			}
		}
		outcome := s.recorder.RecordAll(ctx, matches)
		resp.AttendanceMarked = emptyIfNil(outcome.Marked)
		resp.Failed = emptyIfNil(outcome.Failed)
		resp.Dropped = outcome.Dropped
	}

	log.Info().
		Int("photos", len(req.Photos)).
		Int("excluded_images", len(resp.ExcludedImages)).
		Int("faces", resp.TotalFaces).
		Int("gallery", len(gallery)).
		Int("matches", resp.MatchesFound).
		Int("marked", len(resp.AttendanceMarked)).
		Int("failed", len(resp.Failed)).
		Int("dropped", resp.Dropped).
		Float64("threshold", threshold).
		Bool("dry_run", req.DryRun).
		Dur("took", time.Since(start)).
		Msg("bulk attendance processed")

	return resp, nil
}

// SingleRequest asks to verify one volunteer against a live capture.
type SingleRequest struct {
	EventID        string
	VolunteerID    string
	LiveDescriptor facematch.Descriptor
	Threshold      *float64
}

// SingleResponse is the result of a one-to-one verification. A rejected
// probe is Success false with a message, not an error.
type SingleResponse struct {
	Success       bool    `json:"success"`
	Message       string  `json:"message,omitempty"`
	Confidence    float64 `json:"confidence"`
	AlreadyMarked bool    `json:"already_marked"`
	Upgraded      bool    `json:"upgraded,omitempty"`
}

// Single verifies a live descriptor against the volunteer's gallery entry and
// records attendance when it is accepted.
func (s *Service) Single(ctx context.Context, req SingleRequest) (*SingleResponse, error) {
	eventID, err := requireID("event_id", req.EventID)
	if err != nil {
		return nil, err
	}
	volunteerID, err := requireID("volunteer_id", req.VolunteerID)
	if err != nil {
		return nil, err
	}
	if err := facematch.ValidateDescriptor(req.LiveDescriptor); err != nil {
		return nil, err
	}
	threshold, err := s.resolveThreshold(req.Threshold, s.cfg.VerifyThreshold)
	if err != nil {
		return nil, err
	}

	entry, err := s.store.GetEntry(ctx, eventID, volunteerID)
	if err != nil {
		return nil, fmt.Errorf("loading gallery entry: %w", err)
	}
	if entry == nil {
		return nil, errs.Newf(errs.KindNotRegistered,
			"volunteer %s is not registered for event %s", volunteerID, eventID)
	}

	verdict, err := facematch.VerifyWith(s.metric, req.LiveDescriptor, entry.Descriptor, threshold)
	if err != nil {
		return nil, err
	}

	log := logger.C(ctx).With().
		Str("event_id", eventID).
		Str("volunteer_id", volunteerID).
		Float64("score", verdict.Score).
		Float64("threshold", threshold).
		Logger()

	if !verdict.Accepted {
		log.Info().Msg("verification rejected")
		return &SingleResponse{
			Success:    false,
			Message:    "face does not match the registered volunteer",
			Confidence: verdict.Score,
		}, nil
	}

	out, err := s.recorder.Record(ctx, Match{
		EventID:     eventID,
		VolunteerID: volunteerID,
		Confidence:  verdict.Score,
		Source:      database.SourceSingle,
	})
	if err != nil {
		return nil, err
	}

	log.Info().Bool("already_marked", out.AlreadyMarked).Msg("verification accepted")

	msg := "attendance marked"
	if out.AlreadyMarked {
		msg = "attendance already marked"
	}
	return &SingleResponse{
		Success:       true,
		Message:       msg,
		Confidence:    verdict.Score,
		AlreadyMarked: out.AlreadyMarked,
		Upgraded:      out.Upgraded,
	}, nil
}

// SingleFromImage extracts the descriptor from a live capture, which must
// hold exactly one face, and continues as Single.
func (s *Service) SingleFromImage(ctx context.Context, eventID, volunteerID string, photo []byte, threshold *float64) (*SingleResponse, error) {
	if len(photo) == 0 {
		return nil, errs.New(errs.KindInvalidRequest, "photo is required")
	}

	extractCtx := ctx
	if s.extractionTimeout > 0 {
		var cancel context.CancelFunc
		extractCtx, cancel = context.WithTimeout(ctx, s.extractionTimeout)
		defer cancel()
	}

	faces, err := s.extractor.Extract(extractCtx, photo)
	if err != nil {
		if errs.KindOf(err) == errs.KindUnknown {
			if errors.Is(extractCtx.Err(), context.DeadlineExceeded) {
				return nil, errs.Wrap(errs.KindExtractionTimeout, err, "face extraction timed out")
			}
			return nil, errs.Wrap(errs.KindExtractionFailed, err, "face extraction failed")
		}
		return nil, err
	}

	face, err := facematch.RequireSingleFace(faces)
	if err != nil {
		return nil, err
	}

	return s.Single(ctx, SingleRequest{
		EventID:        eventID,
		VolunteerID:    volunteerID,
		LiveDescriptor: face.Descriptor,
		Threshold:      threshold,
	})
}

// List returns the recorded attendance of an event.
func (s *Service) List(ctx context.Context, eventID string) ([]database.AttendanceRecord, error) {
	id, err := requireID("event_id", eventID)
	if err != nil {
		return nil, err
	}
	records, err := s.store.ListAttendance(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("listing attendance: %w", err)
	}
	return emptyIfNil(records), nil
}

func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
