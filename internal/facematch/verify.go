package facematch

import "github.com/kozaktomas/face-attendance/internal/errs"

// Verdict is the outcome of a one-to-one verification.
type Verdict struct {
	Accepted bool
	Score    float64
}

// Verify compares a live descriptor with a stored one using the cosine metric.
func Verify(live, stored Descriptor, threshold float64) (Verdict, error) {
	return VerifyWith(CosineMetric{}, live, stored, threshold)
}

// VerifyWith compares a live descriptor with a stored one. The probe is
// accepted when its score reaches the threshold.
func VerifyWith(m Metric, live, stored Descriptor, threshold float64) (Verdict, error) {
	if !(threshold > 0 && threshold < 1) {
		return Verdict{}, errs.Newf(errs.KindInvalidThreshold, "threshold must be in (0, 1), got %v", threshold)
	}
	score, err := m.Similarity(live, stored)
	if err != nil {
		return Verdict{}, err
	}
	return Verdict{Accepted: score >= threshold, Score: score}, nil
}

// RequireSingleFace returns the only face of a single-face capture.
func RequireSingleFace(faces []DetectedFace) (DetectedFace, error) {
	switch len(faces) {
	case 0:
		return DetectedFace{}, errs.New(errs.KindNoFaceDetected, "no face detected in the photo")
	case 1:
		return faces[0], nil
	default:
		return DetectedFace{}, errs.Newf(errs.KindMultipleFacesDetected,
			"%d faces detected, expected exactly one", len(faces))
	}
}
