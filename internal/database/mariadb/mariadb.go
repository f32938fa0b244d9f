package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
)

func init() {
	database.RegisterBackend("mariadb", Open)
}

// Pool manages a MariaDB connection pool.
type Pool struct {
	db *sql.DB
}

// Store is the MariaDB storage backend.
type Store struct {
	*Pool
	*GalleryRepository
	*AttendanceRepository
}

var _ database.Store = (*Store)(nil)

// Open connects to MariaDB and returns a Store. Migrations are not applied.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (database.Store, error) {
	pool, err := NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewStore(pool), nil
}

// NewStore wires the repositories onto one pool.
func NewStore(pool *Pool) *Store {
	return &Store{
		Pool:                 pool,
		GalleryRepository:    &GalleryRepository{pool: pool},
		AttendanceRepository: &AttendanceRepository{pool: pool},
	}
}

// normalizeDSN makes DATETIME columns scan into time.Time in UTC and keeps
// RowsAffected counting changed rows only, which MarkAttendance relies on.
func normalizeDSN(url string) (string, error) {
	dsn, err := mysql.ParseDSN(url)
	if err != nil {
		return "", fmt.Errorf("invalid MariaDB DSN: %w", err)
	}
	dsn.ParseTime = true
	dsn.Loc = time.UTC
	dsn.ClientFoundRows = false
	return dsn.FormatDSN(), nil
}

// NewPool creates a new MariaDB connection pool.
func NewPool(ctx context.Context, cfg *config.DatabaseConfig) (*Pool, error) {
	if cfg.URL == "" {
		return nil, errors.New("MariaDB DSN is required")
	}

	dsn, err := normalizeDSN(cfg.URL)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}

	maxOpen, maxIdle := 5, 2
	if cfg.MaxOpenConns > 0 {
		maxOpen = cfg.MaxOpenConns
	}
	if cfg.MaxIdleConns > 0 {
		maxIdle = cfg.MaxIdleConns
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", err)
	}

	return &Pool{db: db}, nil
}

// DB returns the underlying sql.DB for direct access.
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}
