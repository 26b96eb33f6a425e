package amdgpu

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

func fakeAMDCard(t *testing.T) *Backend {
	t.Helper()
	root := t.TempDir()
	device := filepath.Join(root, "card0", "device")
	hwmon := filepath.Join(device, "hwmon", "hwmon3")

	writeSysfsFile(t, filepath.Join(device, "vendor"), "0x1002")
	writeSysfsFile(t, filepath.Join(device, "product_name"), "Radeon RX 7900 XTX")
	writeSysfsFile(t, filepath.Join(device, "gpu_busy_percent"), "42")
	writeSysfsFile(t, filepath.Join(device, "pp_dpm_sclk"), "0: 300Mhz\n1: 1800Mhz *\n2: 2400Mhz")
	writeSysfsFile(t, filepath.Join(device, "pp_dpm_mclk"), "0: 150Mhz\n1: 1000Mhz *")
	writeSysfsFile(t, filepath.Join(device, "mem_info_vram_total"), "25753026560")
	writeSysfsFile(t, filepath.Join(device, "mem_info_vram_used"), "1073741824")
	writeSysfsFile(t, filepath.Join(device, "power1_cap"), "339000000")
	writeSysfsFile(t, filepath.Join(hwmon, "name"), "amdgpu")
	writeSysfsFile(t, filepath.Join(hwmon, "temp1_input"), "65000")
	writeSysfsFile(t, filepath.Join(hwmon, "power1_average"), "285500000")

	// Connector entries and foreign vendors must both be skipped
	writeSysfsFile(t, filepath.Join(root, "card0-DP-1", "status"), "connected")
	writeSysfsFile(t, filepath.Join(root, "card1", "device", "vendor"), "0x10de")

	driverVer := filepath.Join(root, "amdgpu_version")
	writeSysfsFile(t, driverVer, "6.8.5")

	return NewWithRoot(root, driverVer)
}

func TestDetectReadsFullRecord(t *testing.T) {
	backend := fakeAMDCard(t)

	records, err := backend.Detect()
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, gpu.VendorAmd, rec.Vendor.Kind)
	assert.Equal(t, "Radeon RX 7900 XTX", rec.Name)
	assert.Equal(t, "6.8.5", rec.DriverVersion)
	assert.Equal(t, 65.0, *rec.Temperature)
	assert.Equal(t, 42.0, *rec.Utilization)
	assert.Equal(t, 285.5, *rec.PowerUsage)
	assert.Equal(t, 339.0, *rec.PowerLimit)
	assert.Equal(t, uint64(1800), *rec.CoreClock)
	assert.Equal(t, uint64(1000), *rec.MemoryClock)
	assert.Equal(t, uint64(2400), *rec.MaxClock)
	assert.Equal(t, uint64(25753026560), *rec.MemoryTotal)
	assert.Equal(t, uint64(1073741824), *rec.MemoryUsed)
	assert.True(t, *rec.Active)
}

func TestDetectMissingRootIsEmpty(t *testing.T) {
	backend := NewWithRoot(filepath.Join(t.TempDir(), "nope"), "/nonexistent")

	records, err := backend.Detect()
	assert.NoError(t, err)
	assert.Empty(t, records)
}

func TestDetectSparseCard(t *testing.T) {
	root := t.TempDir()
	device := filepath.Join(root, "card0", "device")
	writeSysfsFile(t, filepath.Join(device, "vendor"), "0x1002")

	backend := NewWithRoot(root, "/nonexistent")
	records, err := backend.Detect()
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "AMD GPU", rec.Name)
	assert.Empty(t, rec.DriverVersion)
	assert.Nil(t, rec.Temperature)
	assert.Nil(t, rec.Utilization)
	assert.Nil(t, rec.MemoryTotal)
}

func TestRefreshMatchesByName(t *testing.T) {
	backend := fakeAMDCard(t)

	stale := gpu.DeviceRecord{Vendor: gpu.Amd(), Name: "Radeon RX 7900 XTX"}
	updated, err := backend.Refresh(stale)
	require.NoError(t, err)
	assert.Equal(t, 65.0, *updated.Temperature)
}

func TestRefreshVanishedDevice(t *testing.T) {
	backend := fakeAMDCard(t)

	stale := gpu.DeviceRecord{Vendor: gpu.Amd(), Name: "Radeon VII"}
	updated, err := backend.Refresh(stale)
	require.Error(t, err)
	assert.Equal(t, "Radeon VII", updated.Name)
}

func TestParseDPMLevel(t *testing.T) {
	mhz, active, ok := parseDPMLevel("1: 1800Mhz *")
	require.True(t, ok)
	assert.True(t, active)
	assert.Equal(t, uint64(1800), mhz)

	mhz, active, ok = parseDPMLevel("0: 300Mhz")
	require.True(t, ok)
	assert.False(t, active)
	assert.Equal(t, uint64(300), mhz)

	_, _, ok = parseDPMLevel("garbage")
	assert.False(t, ok)
}
