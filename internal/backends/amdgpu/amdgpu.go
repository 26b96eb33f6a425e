// Package amdgpu detects AMD GPUs on Linux through the amdgpu driver's
// sysfs interface under /sys/class/drm.
package amdgpu

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/vremyavnikuda/sysinfo-utils/internal/errors"
	"github.com/vremyavnikuda/sysinfo-utils/internal/gpu"
	"github.com/vremyavnikuda/sysinfo-utils/internal/logger"
)

const (
	defaultDRMRoot       = "/sys/class/drm"
	defaultDriverVerFile = "/sys/module/amdgpu/version"

	amdVendorID = 0x1002

	microWattsPerWatt = 1_000_000
	milliDegreesPerC  = 1000
	hertzPerMegahertz = 1_000_000
)

const ErrDeviceVanished = errors.ErrorCode("amdgpu_device_vanished")

// Backend reads AMD GPU state from sysfs. Every metric is optional: a
// kernel or driver that does not expose a file simply leaves the field
// absent.
type Backend struct {
	drmRoot       string
	driverVerFile string
}

func New() *Backend {
	return NewWithRoot(defaultDRMRoot, defaultDriverVerFile)
}

// NewWithRoot constructs a Backend over an alternate sysfs layout
func NewWithRoot(drmRoot, driverVerFile string) *Backend {
	return &Backend{drmRoot: drmRoot, driverVerFile: driverVerFile}
}

func (b *Backend) Vendor() gpu.VendorKind {
	return gpu.VendorAmd
}

func (b *Backend) Name() string {
	return "amdgpu-sysfs"
}

func (b *Backend) Detect() ([]gpu.DeviceRecord, error) {
	entries, err := os.ReadDir(b.drmRoot)
	if err != nil {
		logger.Debug().Str("path", b.drmRoot).Msg("DRM sysfs root not readable")
		return nil, nil
	}

	var records []gpu.DeviceRecord
	for _, entry := range entries {
		name := entry.Name()
		// cardN entries are devices; cardN-DP-1 and friends are connectors
		if !strings.HasPrefix(name, "card") || strings.Contains(name, "-") {
			continue
		}
		devicePath := filepath.Join(b.drmRoot, name, "device")
		if vendorID, ok := readHexFile(filepath.Join(devicePath, "vendor")); !ok || vendorID != amdVendorID {
			continue
		}
		records = append(records, b.readCard(devicePath))
	}
	return records, nil
}

func (b *Backend) Refresh(rec gpu.DeviceRecord) (gpu.DeviceRecord, error) {
	records, err := b.Detect()
	if err != nil {
		return rec, err
	}
	for i := range records {
		if records[i].SameDevice(rec) {
			return records[i], nil
		}
	}
	if rec.Name == "" && len(records) > 0 {
		return records[0], nil
	}
	errFactory := errors.New()
	return rec, errFactory.WithData(ErrDeviceVanished, rec.Name)
}

func (b *Backend) readCard(devicePath string) gpu.DeviceRecord {
	rec := gpu.DeviceRecord{Vendor: gpu.Amd(), Active: gpu.Bool(true)}

	rec.Name = b.cardName(devicePath)
	if ver, ok := readTrimmedFile(b.driverVerFile); ok {
		rec.DriverVersion = ver
	}

	if milli, ok := readUintFromHwmon(devicePath, "temp1_input"); ok {
		rec.Temperature = gpu.Float64(float64(milli) / milliDegreesPerC)
	}
	if util, ok := b.utilization(devicePath); ok {
		rec.Utilization = gpu.Float64(util)
	}
	if micro, ok := readUintFromHwmon(devicePath, "power1_average"); ok {
		rec.PowerUsage = gpu.Float64(float64(micro) / microWattsPerWatt)
	}
	if micro, ok := b.powerLimit(devicePath); ok {
		rec.PowerLimit = gpu.Float64(float64(micro) / microWattsPerWatt)
	}

	if mhz, ok := b.coreClock(devicePath); ok {
		rec.CoreClock = gpu.Uint64(mhz)
	}
	if mhz, ok := b.memoryClock(devicePath); ok {
		rec.MemoryClock = gpu.Uint64(mhz)
	}
	if mhz, ok := b.maxClock(devicePath); ok {
		rec.MaxClock = gpu.Uint64(mhz)
	}

	if bytes, ok := readUintFile(filepath.Join(devicePath, "mem_info_vram_total")); ok {
		rec.MemoryTotal = gpu.Uint64(bytes)
	}
	if bytes, ok := readUintFile(filepath.Join(devicePath, "mem_info_vram_used")); ok {
		rec.MemoryUsed = gpu.Uint64(bytes)
	}
	return rec
}

func (b *Backend) cardName(devicePath string) string {
	if name, ok := readTrimmedFile(filepath.Join(devicePath, "product_name")); ok {
		return name
	}
	if id, ok := readTrimmedFile(filepath.Join(devicePath, "subsystem_device")); ok {
		return "AMD GPU (Device ID: " + id + ")"
	}
	return "AMD GPU"
}

func (b *Backend) utilization(devicePath string) (float64, bool) {
	if busy, ok := readUintFile(filepath.Join(devicePath, "gpu_busy_percent")); ok {
		return float64(busy), true
	}
	// Older kernels only expose the busy percentage through the amdgpu
	// hwmon device
	for _, hwmon := range hwmonDirs(devicePath) {
		name, ok := readTrimmedFile(filepath.Join(hwmon, "name"))
		if !ok || name != "amdgpu" {
			continue
		}
		if busy, ok := readUintFile(filepath.Join(hwmon, "gpu_busy_percent")); ok {
			return float64(busy), true
		}
	}
	return 0, false
}

func (b *Backend) powerLimit(devicePath string) (uint64, bool) {
	if micro, ok := readUintFile(filepath.Join(devicePath, "power1_cap")); ok {
		return micro, true
	}
	return readUintFromHwmon(devicePath, "power1_cap")
}

func (b *Backend) coreClock(devicePath string) (uint64, bool) {
	if mhz, ok := activeDPMClock(filepath.Join(devicePath, "pp_dpm_sclk")); ok {
		return mhz, true
	}
	if hz, ok := readUintFromHwmon(devicePath, "freq1_input"); ok {
		return hz / hertzPerMegahertz, true
	}
	return 0, false
}

func (b *Backend) memoryClock(devicePath string) (uint64, bool) {
	if mhz, ok := activeDPMClock(filepath.Join(devicePath, "pp_dpm_mclk")); ok {
		return mhz, true
	}
	if hz, ok := readUintFromHwmon(devicePath, "freq2_input"); ok {
		return hz / hertzPerMegahertz, true
	}
	return 0, false
}

func (b *Backend) maxClock(devicePath string) (uint64, bool) {
	if mhz, ok := maxDPMClock(filepath.Join(devicePath, "pp_dpm_sclk")); ok {
		return mhz, true
	}
	if hz, ok := readUintFromHwmon(devicePath, "freq1_max"); ok {
		return hz / hertzPerMegahertz, true
	}
	return 0, false
}

var _ gpu.Backend = (*Backend)(nil)
