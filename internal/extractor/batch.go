package extractor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/errs"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/logger"
)

// ImageFailure describes a photo excluded from a batch.
type ImageFailure struct {
	Index  int    `json:"image_index"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// BatchResult holds the faces of all successfully processed photos, in image order.
type BatchResult struct {
	Faces    []facematch.DetectedFace
	Excluded []ImageFailure
}

// Batch runs an Extractor over many photos with bounded concurrency and a
// per-image deadline. A photo that fails or times out is excluded; the rest
// of the batch continues.
type Batch struct {
	Extractor facematch.Extractor
	Workers   int
	Timeout   time.Duration   // per image, 0 disables
	OnImage   func(index int) // called after each photo, from worker goroutines
}

type imageResult struct {
	faces []facematch.DetectedFace
	err   error
}

// Run extracts all photos. It returns an error only when ctx ends before the
// batch completes.
func (b *Batch) Run(ctx context.Context, photos [][]byte) (*BatchResult, error) {
	log := logger.Named("extractor")
	results := make([]imageResult, len(photos))

	workers := b.Workers
	if workers <= 0 {
		workers = 1
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for range min(workers, len(photos)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				start := time.Now()
				faces, err := b.extractOne(ctx, photos[i])
				results[i] = imageResult{faces: faces, err: err}
				log.Debug().
					Int("image", i).
					Int("faces", len(faces)).
					Dur("took", time.Since(start)).
					Err(err).
					Msg("image processed")
				if b.OnImage != nil {
					b.OnImage(i)
				}
			}
		}()
	}

feed:
	for i := range photos {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(errs.KindCanceled, err, "extraction canceled")
	}

	out := &BatchResult{}
	for i, r := range results {
		if r.err != nil {
			kind := errs.KindOf(r.err)
			if kind == errs.KindUnknown {
				kind = errs.KindExtractionFailed
			}
			out.Excluded = append(out.Excluded, ImageFailure{
				Index:  i,
				Kind:   string(kind),
				Reason: errs.Message(r.err),
			})
			continue
		}
		for k, f := range r.faces {
			f.FaceID = fmt.Sprintf("%d:%d", i, k)
			f.ImageIndex = i
			out.Faces = append(out.Faces, f)
		}
	}
	return out, nil
}

// extractOne applies the per-image deadline. The extractor call runs in its
// own goroutine so a stuck extractor cannot hold a worker past the deadline.
func (b *Batch) extractOne(ctx context.Context, photo []byte) ([]facematch.DetectedFace, error) {
	if b.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.Timeout)
		defer cancel()
	}

	done := make(chan imageResult, 1)
	go func() {
		faces, err := b.Extractor.Extract(ctx, photo)
		done <- imageResult{faces: faces, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errs.Wrap(errs.KindExtractionTimeout, r.err, "image extraction timed out")
		}
		return r.faces, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errs.Wrap(errs.KindExtractionTimeout, ctx.Err(), "image extraction timed out")
		}
		return nil, errs.Wrap(errs.KindCanceled, ctx.Err(), "extraction canceled")
	}
}
