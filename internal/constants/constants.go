// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Matching constants
const (
	// IdentifyCandidates is the number of candidates an identify query returns
	IdentifyCandidates = 5

	// MaxDescriptorDim is the largest descriptor accepted from clients or the extractor
	MaxDescriptorDim = 4096
)

// Processing constants
const (
	// JPEGQuality is used when re-encoding uploads before extraction
	JPEGQuality = 85

	// RecordTimeoutSeconds bounds a single attendance write
	RecordTimeoutSeconds = 10
)
