package telemetry

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vremyavnikuda/sysinfo-utils/internal/errors"
	"github.com/vremyavnikuda/sysinfo-utils/internal/logger"
)

type Repository interface {
	Store(ctx context.Context, observation *Observation) error
	Close() error
}

type sqliteRepository struct {
	db *sql.DB
	mu sync.Mutex
}

func NewRepository(cfg Config) (Repository, error) {
	errFactory := errors.New()

	if cfg.DBPath == "" {
		return nil, errFactory.New(ErrInvalidDBPath)
	}

	logger.Debug().Str("path", cfg.DBPath).Msg("Initializing telemetry repository")

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	if version, err := schemaVersion(db); err == nil && version != SchemaVersion {
		logger.Warn().
			Int("found", version).
			Int("expected", SchemaVersion).
			Msg("Telemetry schema version mismatch")
	}

	return &sqliteRepository{db: db}, nil
}

func (r *sqliteRepository) Store(ctx context.Context, observation *Observation) error {
	errFactory := errors.New()

	r.mu.Lock()
	defer r.mu.Unlock()

	device := observation.Device
	_, err := r.db.ExecContext(ctx, insertObservationSQL,
		observation.Timestamp.Unix(),
		observation.DeviceIndex,
		device.Vendor.String(),
		device.Name,
		nullString(device.DriverVersion),
		nullFloat(device.Temperature),
		nullFloat(device.Utilization),
		nullUint(device.CoreClock),
		nullUint(device.MemoryClock),
		nullUint(device.MaxClock),
		nullFloat(device.PowerUsage),
		nullFloat(device.PowerLimit),
		nullUint(device.MemoryUsed),
		nullUint(device.MemoryTotal),
		nullBool(device.Active),
	)
	if err != nil {
		return errFactory.Wrap(ErrStorageAccess, err)
	}
	return nil
}

func (r *sqliteRepository) Close() error {
	errFactory := errors.New()

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.db.Close(); err != nil {
		return errFactory.Wrap(ErrStorageClose, err)
	}
	return nil
}

// Absent metrics persist as NULL, matching the record's optional fields

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullUint(v *uint64) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func nullBool(v *bool) any {
	if v == nil {
		return nil
	}
	if *v {
		return 1
	}
	return 0
}
