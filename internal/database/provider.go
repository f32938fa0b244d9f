package database

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/config"
)

// OpenFunc connects a backend.
type OpenFunc func(ctx context.Context, cfg *config.DatabaseConfig) (Store, error)

var (
	backendsMu sync.RWMutex
	backends   = make(map[string]OpenFunc)
)

// RegisterBackend registers a storage backend under a driver name.
// This is called from the backend packages' init to avoid import cycles.
func RegisterBackend(driver string, open OpenFunc) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if open == nil {
		panic("database: RegisterBackend open func is nil")
	}
	if _, dup := backends[driver]; dup {
		panic("database: RegisterBackend called twice for driver " + driver)
	}
	backends[driver] = open
}

// Backends returns the registered driver names.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Open connects the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (Store, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, fmt.Errorf("database not configured: DATABASE_URL is required")
	}

	backendsMu.RLock()
	open, ok := backends[strings.ToLower(cfg.Driver)]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown database driver %q (registered: %s)",
			cfg.Driver, strings.Join(Backends(), ", "))
	}

	store, err := open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening %s backend: %w", cfg.Driver, err)
	}
	return store, nil
}
