package facematch

import (
	"fmt"
	"math"

	"github.com/kozaktomas/face-attendance/internal/errs"
)

// Metric turns two descriptors into a similarity score in [0, 1].
type Metric interface {
	Name() string
	Similarity(a, b Descriptor) (float64, error)
}

// CosineMetric maps cosine distance d ∈ [0, 2] to 1 - d/2.
type CosineMetric struct{}

// EuclideanMetric maps the Euclidean distance of L2-normalized vectors
// d ∈ [0, 2] to 1 - d/2.
type EuclideanMetric struct{}

// ParseMetric resolves a metric by its configuration name.
func ParseMetric(name string) (Metric, error) {
	switch name {
	case "", "cosine":
		return CosineMetric{}, nil
	case "euclidean", "l2":
		return EuclideanMetric{}, nil
	default:
		return nil, fmt.Errorf("unknown metric %q (supported: cosine, euclidean)", name)
	}
}

// Similarity scores two descriptors with the cosine metric.
func Similarity(a, b Descriptor) (float64, error) {
	return CosineMetric{}.Similarity(a, b)
}

func (CosineMetric) Name() string { return "cosine" }

func (CosineMetric) Similarity(a, b Descriptor) (float64, error) {
	if err := checkPair(a, b); err != nil {
		return 0, err
	}
	if s, ok := zeroNormSimilarity(a, b); ok {
		return s, nil
	}
	return 1 - CosineDistance(a, b)/2, nil
}

func (EuclideanMetric) Name() string { return "euclidean" }

func (EuclideanMetric) Similarity(a, b Descriptor) (float64, error) {
	if err := checkPair(a, b); err != nil {
		return 0, err
	}
	if s, ok := zeroNormSimilarity(a, b); ok {
		return s, nil
	}
	na, nb := l2Norm(a), l2Norm(b)
	var sum float64
	for i := range a {
		diff := float64(a[i])/na - float64(b[i])/nb
		sum += diff * diff
	}
	return clamp01(1 - math.Sqrt(sum)/2), nil
}

// CosineDistance computes the cosine distance between two vectors.
// Returns a value between 0 (identical) and 2 (opposite); 2 for invalid input.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 2.0
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors
	similarity = max(-1, min(1, similarity))

	return 1 - similarity
}

// ValidateDescriptor rejects empty descriptors and non-finite components.
func ValidateDescriptor(d Descriptor) error {
	if len(d) == 0 {
		return errs.New(errs.KindInvalidDescriptor, "descriptor is empty")
	}
	for i, v := range d {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return errs.Newf(errs.KindInvalidDescriptor, "descriptor component %d is not finite", i)
		}
	}
	return nil
}

func checkPair(a, b Descriptor) error {
	if len(a) != len(b) {
		return errs.Newf(errs.KindDimensionMismatch, "descriptor dimensions differ: %d vs %d", len(a), len(b))
	}
	if err := ValidateDescriptor(a); err != nil {
		return err
	}
	return ValidateDescriptor(b)
}

// zeroNormSimilarity handles zero vectors, which have no direction:
// two zero vectors are identical, a zero vector matches nothing else.
func zeroNormSimilarity(a, b Descriptor) (float64, bool) {
	za, zb := l2Norm(a) == 0, l2Norm(b) == 0
	switch {
	case za && zb:
		return 1, true
	case za || zb:
		return 0, true
	default:
		return 0, false
	}
}

func l2Norm(d Descriptor) float64 {
	var sum float64
	for _, v := range d {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

func clamp01(x float64) float64 {
	return max(0, min(1, x))
}
