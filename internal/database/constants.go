package database

// HNSW index parameters for gallery descriptors
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the search candidate pool size.
	// Higher values improve recall but slow down search.
	HNSWEfSearch = 100

	// HNSWSearchMultiplier is the factor to request more candidates from HNSW
	// than the caller asked for, since results are rescored exactly afterwards.
	HNSWSearchMultiplier = 3

	// HNSWExactSearchLimit is the gallery size up to which Search scans every
	// entry instead of walking the graph.
	HNSWExactSearchLimit = 1000
)
