// Package intelgpu detects Intel GPUs on Linux through the i915 driver's
// sysfs interface under /sys/class/drm.
package intelgpu

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/vremyavnikuda/sysinfo-utils/internal/errors"
	"github.com/vremyavnikuda/sysinfo-utils/internal/gpu"
	"github.com/vremyavnikuda/sysinfo-utils/internal/logger"
)

const (
	defaultDRMRoot       = "/sys/class/drm"
	defaultDriverVerFile = "/sys/module/i915/version"

	intelVendorID = 0x8086

	milliDegreesPerC = 1000
)

const ErrDeviceVanished = errors.ErrorCode("intelgpu_device_vanished")

// Backend reads Intel GPU state from sysfs. Detected devices default to
// the integrated variant; discrete Arc parts expose the same interface
// and are reported the same way.
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
	return gpu.VendorIntel
}

func (b *Backend) Name() string {
	return "i915-sysfs"
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
		if !strings.HasPrefix(name, "card") || strings.Contains(name, "-") {
			continue
		}
		cardPath := filepath.Join(b.drmRoot, name)
		devicePath := filepath.Join(cardPath, "device")
		if vendorID, ok := readHexFile(filepath.Join(devicePath, "vendor")); !ok || vendorID != intelVendorID {
			continue
		}
		records = append(records, b.readCard(cardPath, devicePath))
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

func (b *Backend) readCard(cardPath, devicePath string) gpu.DeviceRecord {
	rec := gpu.DeviceRecord{Vendor: gpu.Intel(gpu.IntelIntegrated), Active: gpu.Bool(true)}

	rec.Name = b.cardName(devicePath)
	if ver, ok := readTrimmedFile(b.driverVerFile); ok {
		rec.DriverVersion = ver
	}

	if milli, ok := readHwmonUint(devicePath, "temp1_input"); ok {
		rec.Temperature = gpu.Float64(float64(milli) / milliDegreesPerC)
	}

	// Frequency files live on the card, not the PCI device. gt_cur can
	// idle at zero, so the actual frequency comes first.
	if mhz, ok := firstUintFile(
		filepath.Join(cardPath, "gt_act_freq_mhz"),
		filepath.Join(cardPath, "gt_cur_freq_mhz"),
	); ok {
		rec.CoreClock = gpu.Uint64(mhz)
	}
	if mhz, ok := firstUintFile(
		filepath.Join(cardPath, "gt_max_freq_mhz"),
		filepath.Join(cardPath, "gt_boost_freq_mhz"),
	); ok {
		rec.MaxClock = gpu.Uint64(mhz)
	}

	// Integrated parts share system RAM; memory and power stay absent
	return rec
}

func (b *Backend) cardName(devicePath string) string {
	if deviceID, ok := readHexFile(filepath.Join(devicePath, "device")); ok {
		if sub, ok := readTrimmedFile(filepath.Join(devicePath, "subsystem_device")); ok {
			return fmt.Sprintf("Intel GPU (Device ID: 0x%04x, %s)", deviceID, sub)
		}
		return fmt.Sprintf("Intel GPU (Device ID: 0x%04x)", deviceID)
	}
	return "Intel GPU"
}

func readTrimmedFile(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

func readUintFile(path string) (uint64, bool) {
	s, ok := readTrimmedFile(path)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func readHexFile(path string) (uint64, bool) {
	s, ok := readTrimmedFile(path)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func firstUintFile(paths ...string) (uint64, bool) {
	for _, path := range paths {
		if v, ok := readUintFile(path); ok {
			return v, true
		}
	}
	return 0, false
}

func readHwmonUint(devicePath, file string) (uint64, bool) {
	entries, err := os.ReadDir(filepath.Join(devicePath, "hwmon"))
	if err != nil {
		return 0, false
	}
	for _, entry := range entries {
		if v, ok := readUintFile(filepath.Join(devicePath, "hwmon", entry.Name(), file)); ok {
			return v, true
		}
	}
	return 0, false
}

var _ gpu.Backend = (*Backend)(nil)
