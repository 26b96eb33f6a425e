package intelgpu

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vremyavnikuda/sysinfo-utils/internal/gpu"
)

func writeSysfsFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content+"\n"), 0o644))
}

func fakeIntelCard(t *testing.T) *Backend {
	t.Helper()
	root := t.TempDir()
	card := filepath.Join(root, "card0")
	device := filepath.Join(card, "device")

	writeSysfsFile(t, filepath.Join(device, "vendor"), "0x8086")
	writeSysfsFile(t, filepath.Join(device, "device"), "0xa780")
	writeSysfsFile(t, filepath.Join(device, "subsystem_device"), "0x8882")
	writeSysfsFile(t, filepath.Join(device, "hwmon", "hwmon2", "temp1_input"), "48000")
	writeSysfsFile(t, filepath.Join(card, "gt_act_freq_mhz"), "1150")
	writeSysfsFile(t, filepath.Join(card, "gt_max_freq_mhz"), "1500")

	driverVer := filepath.Join(root, "i915_version")
	writeSysfsFile(t, driverVer, "1.0.0")

	return NewWithRoot(root, driverVer)
}

func TestDetectReadsIntegratedRecord(t *testing.T) {
	backend := fakeIntelCard(t)

	records, err := backend.Detect()
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, gpu.VendorIntel, rec.Vendor.Kind)
	assert.Equal(t, gpu.IntelIntegrated, rec.Vendor.Intel)
	assert.Equal(t, "Intel GPU (Device ID: 0xa780, 0x8882)", rec.Name)
	assert.Equal(t, "1.0.0", rec.DriverVersion)
	assert.Equal(t, 48.0, *rec.Temperature)
	assert.Equal(t, uint64(1150), *rec.CoreClock)
	assert.Equal(t, uint64(1500), *rec.MaxClock)
	assert.Nil(t, rec.MemoryTotal, "Shared-memory parts report no dedicated VRAM")
	assert.Nil(t, rec.PowerUsage)
}

func TestDetectSkipsForeignVendors(t *testing.T) {
	root := t.TempDir()
	writeSysfsFile(t, filepath.Join(root, "card0", "device", "vendor"), "0x1002")

	backend := NewWithRoot(root, "/nonexistent")
	records, err := backend.Detect()
	assert.NoError(t, err)
	assert.Empty(t, records)
}

func TestFrequencyPrefersActualOverRequested(t *testing.T) {
	root := t.TempDir()
	card := filepath.Join(root, "card0")
	writeSysfsFile(t, filepath.Join(card, "device", "vendor"), "0x8086")
	writeSysfsFile(t, filepath.Join(card, "gt_cur_freq_mhz"), "300")

	backend := NewWithRoot(root, "/nonexistent")
	records, err := backend.Detect()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, uint64(300), *records[0].CoreClock, "Requested frequency is the fallback")
}

func TestRefreshVanishedDevice(t *testing.T) {
	backend := fakeIntelCard(t)

	stale := gpu.DeviceRecord{Vendor: gpu.Intel(gpu.IntelDiscrete), Name: "Arc A770"}
	_, err := backend.Refresh(stale)
	require.Error(t, err)
}
