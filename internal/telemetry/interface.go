package telemetry

import (
	"context"
	"time"

	"github.com/vremyavnikuda/sysinfo-utils/internal/gpu"
)

// Collector persists point-in-time GPU observations for later analysis
type Collector interface {
	Record(ctx context.Context, observation *Observation) error
	Close() error
}

// Observation ties a device snapshot to when and where it was taken
type Observation struct {
	Timestamp   time.Time
	DeviceIndex int
	Device      gpu.DeviceRecord
}
