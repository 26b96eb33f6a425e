//go:build !nonvml
// +build !nonvml

package nvml

import (
	"sync"
	"time"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"github.com/cenkalti/backoff/v4"

	"github.com/vremyavnikuda/sysinfo-utils/internal/errors"
	"github.com/vremyavnikuda/sysinfo-utils/internal/gpu"
	"github.com/vremyavnikuda/sysinfo-utils/internal/logger"
)

const (
	ErrInitFailed  = errors.ErrorCode("nvml_init_failed")
	ErrQueryFailed = errors.ErrorCode("nvml_query_failed")
)

// Backend answers NVIDIA queries through NVML. Initialization is lazy
// and retried with exponential backoff: the driver may still be loading
// during early boot, which is when detection typically first runs.
type Backend struct {
	initOnce sync.Once
	initErr  error
}

func New() *Backend {
	return &Backend{}
}

func (b *Backend) Vendor() gpu.VendorKind {
	return gpu.VendorNvidia
}

func (b *Backend) Name() string {
	return "nvml"
}

func (b *Backend) ensureInit() error {
	b.initOnce.Do(func() {
		errFactory := errors.New()

		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = 100 * time.Millisecond
		bo.MaxInterval = 500 * time.Millisecond
		bo.MaxElapsedTime = 2 * time.Second

		b.initErr = backoff.Retry(func() error {
			if ret := nvml.Init(); ret != nvml.SUCCESS {
				return errFactory.WithData(ErrInitFailed, nvml.ErrorString(ret))
			}
			return nil
		}, bo)

		if b.initErr != nil {
			logger.Debug().Err(b.initErr).Msg("NVML initialization failed")
		}
	})
	return b.initErr
}

// Close shuts NVML down. Safe to call when initialization never succeeded.
func (b *Backend) Close() error {
	if b.initErr != nil {
		return nil
	}
	if ret := nvml.Shutdown(); ret != nvml.SUCCESS {
		errFactory := errors.New()
		return errFactory.WithData(ErrQueryFailed, nvml.ErrorString(ret))
	}
	return nil
}

func (b *Backend) Detect() ([]gpu.DeviceRecord, error) {
	if err := b.ensureInit(); err != nil {
		return nil, err
	}

	errFactory := errors.New()
	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		return nil, errFactory.WithData(ErrQueryFailed, nvml.ErrorString(ret))
	}

	records := make([]gpu.DeviceRecord, 0, count)
	for i := 0; i < count; i++ {
		device, ret := nvml.DeviceGetHandleByIndex(i)
		if ret != nvml.SUCCESS {
			logger.Warn().Int("index", i).Str("error", nvml.ErrorString(ret)).
				Msg("Skipping unreachable NVIDIA device")
			continue
		}
		records = append(records, readDevice(device))
	}
	return records, nil
}

func (b *Backend) Refresh(rec gpu.DeviceRecord) (gpu.DeviceRecord, error) {
	if err := b.ensureInit(); err != nil {
		return rec, err
	}

	errFactory := errors.New()
	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		return rec, errFactory.WithData(ErrQueryFailed, nvml.ErrorString(ret))
	}

	for i := 0; i < count; i++ {
		device, ret := nvml.DeviceGetHandleByIndex(i)
		if ret != nvml.SUCCESS {
			continue
		}
		name, ret := device.GetName()
		if ret != nvml.SUCCESS {
			continue
		}
		if rec.Name == "" || name == rec.Name {
			return readDevice(device), nil
		}
	}
	return rec, errFactory.WithData(ErrQueryFailed, "device not found: "+rec.Name)
}

// readDevice fills a record from one NVML handle. Each metric is
// independent: a single failing query leaves its field absent rather
// than failing the whole read.
func readDevice(device nvml.Device) gpu.DeviceRecord {
	rec := gpu.DeviceRecord{Vendor: gpu.Nvidia(), Active: gpu.Bool(true)}

	if name, ret := device.GetName(); ret == nvml.SUCCESS {
		rec.Name = name
	}
	if driver, ret := nvml.SystemGetDriverVersion(); ret == nvml.SUCCESS {
		rec.DriverVersion = driver
	}
	if temp, ret := device.GetTemperature(nvml.TEMPERATURE_GPU); ret == nvml.SUCCESS {
		rec.Temperature = gpu.Float64(float64(temp))
	}
	if util, ret := device.GetUtilizationRates(); ret == nvml.SUCCESS {
		rec.Utilization = gpu.Float64(float64(util.Gpu))
	}
	if clock, ret := device.GetClockInfo(nvml.CLOCK_GRAPHICS); ret == nvml.SUCCESS {
		rec.CoreClock = gpu.Uint64(uint64(clock))
	}
	if clock, ret := device.GetClockInfo(nvml.CLOCK_MEM); ret == nvml.SUCCESS {
		rec.MemoryClock = gpu.Uint64(uint64(clock))
	}
	if clock, ret := device.GetMaxClockInfo(nvml.CLOCK_GRAPHICS); ret == nvml.SUCCESS {
		rec.MaxClock = gpu.Uint64(uint64(clock))
	}
	if power, ret := device.GetPowerUsage(); ret == nvml.SUCCESS {
		rec.PowerUsage = gpu.Float64(milliwattsToWatts(power))
	}
	if limit, ret := device.GetPowerManagementLimit(); ret == nvml.SUCCESS {
		rec.PowerLimit = gpu.Float64(milliwattsToWatts(limit))
	}
	if mem, ret := device.GetMemoryInfo(); ret == nvml.SUCCESS {
		rec.MemoryUsed = gpu.Uint64(mem.Used)
		rec.MemoryTotal = gpu.Uint64(mem.Total)
	}
	return rec
}

var _ gpu.Backend = (*Backend)(nil)
