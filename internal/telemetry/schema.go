package telemetry

import (
	"database/sql"
	"time"

	"github.com/vremyavnikuda/sysinfo-utils/internal/errors"
	"github.com/vremyavnikuda/sysinfo-utils/internal/logger"
)

const (
	SchemaVersion = 1

	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS observations (
	       id               INTEGER PRIMARY KEY AUTOINCREMENT,
	       recorded_at      INTEGER NOT NULL,
	       device_index     INTEGER NOT NULL,
	       vendor           TEXT NOT NULL,
	       name             TEXT NOT NULL,
	       driver_version   TEXT,
	       temperature_c    REAL,
	       utilization_pct  REAL,
	       core_clock_mhz   INTEGER,
	       memory_clock_mhz INTEGER,
	       max_clock_mhz    INTEGER,
	       power_usage_w    REAL,
	       power_limit_w    REAL,
	       memory_used      INTEGER,
	       memory_total     INTEGER,
	       active           INTEGER CHECK (active IN (0, 1) OR active IS NULL)
	   );
	   CREATE INDEX IF NOT EXISTS idx_observations_recorded_at
	       ON observations (recorded_at);`

	insertObservationSQL = `
    INSERT INTO observations (
        recorded_at, device_index, vendor, name, driver_version,
        temperature_c, utilization_pct,
        core_clock_mhz, memory_clock_mhz, max_clock_mhz,
        power_usage_w, power_limit_w,
        memory_used, memory_total, active
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
)

// initSchema creates the observation tables and stamps the current
// schema version
func initSchema(db *sql.DB) error {
	errFactory := errors.New()

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(createTablesSQL); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	if _, err := tx.Exec(
		"INSERT OR IGNORE INTO schema_versions (version, applied_at) VALUES (?, ?)",
		SchemaVersion, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	logger.Debug().Int("version", SchemaVersion).Msg("Telemetry schema ready")
	return nil
}

// schemaVersion reads the highest applied schema version, zero when the
// database is fresh
func schemaVersion(db *sql.DB) (int, error) {
	var version sql.NullInt64
	err := db.QueryRow("SELECT MAX(version) FROM schema_versions").Scan(&version)
	if err != nil {
		return 0, err
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}
