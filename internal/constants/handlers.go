// Package constants provides shared constants used across the codebase.
package constants

// File upload constants
const (
	// MaxUploadSize is the maximum multipart body size in bytes (100MB)
	MaxUploadSize = 100 << 20

	// MaxPhotosPerRequest caps the number of photos in one bulk upload
	MaxPhotosPerRequest = 50

	// MaxJSONBodySize is the maximum JSON request body size in bytes (1MB)
	MaxJSONBodySize = 1 << 20
)
