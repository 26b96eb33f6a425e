package gpu_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vremyavnikuda/sysinfo-utils/internal/errors"
	"github.com/vremyavnikuda/sysinfo-utils/internal/gpu"
)

func TestDetectAllConcatenatesInRegistrationOrder(t *testing.T) {
	registry := gpu.NewRegistry()
	registry.Register(gpu.NewMockBackend(gpu.VendorNvidia,
		gpu.DeviceRecord{Vendor: gpu.Nvidia(), Name: "RTX 4090"}))
	registry.Register(gpu.NewMockBackend(gpu.VendorAmd,
		gpu.DeviceRecord{Vendor: gpu.Amd(), Name: "RX 7900 XTX"}))

	records := registry.DetectAll()
	require.Len(t, records, 2)
	assert.Equal(t, "RTX 4090", records[0].Name)
	assert.Equal(t, "RX 7900 XTX", records[1].Name)
}

func TestDetectAllIsBestEffort(t *testing.T) {
	errFactory := errors.New()

	failing := gpu.NewMockBackend(gpu.VendorNvidia)
	failing.DetectErr = errFactory.New(gpu.ErrDetectionFailed)
	working := gpu.NewMockBackend(gpu.VendorAmd,
		gpu.DeviceRecord{Vendor: gpu.Amd(), Name: "RX 7900 XTX"})

	registry := gpu.NewRegistry()
	registry.Register(failing)
	registry.Register(working)

	records := registry.DetectAll()
	require.Len(t, records, 1, "Failing backend contributes zero records, not an error")
	assert.Equal(t, "RX 7900 XTX", records[0].Name)
	assert.Equal(t, 1, failing.DetectCalls(), "Every backend is invoked exactly once")
	assert.Equal(t, 1, working.DetectCalls())
}

func TestDetectAllWithNoBackends(t *testing.T) {
	registry := gpu.NewRegistry()
	assert.Empty(t, registry.DetectAll(), "No backends means empty sequence, not an error")
}

func TestRefreshFallbackOrder(t *testing.T) {
	errFactory := errors.New()

	broken := gpu.NewMockBackend(gpu.VendorNvidia)
	broken.BackendName = "broken"
	broken.RefreshErr = errFactory.New(gpu.ErrDetectionFailed)

	fallback := gpu.NewMockBackend(gpu.VendorNvidia,
		gpu.DeviceRecord{Vendor: gpu.Nvidia(), Name: "RTX 4090", Temperature: gpu.Float64(70.0)})
	fallback.BackendName = "fallback"

	registry := gpu.NewRegistry()
	registry.Register(broken)
	registry.Register(fallback)

	updated, err := registry.Refresh(gpu.DeviceRecord{Vendor: gpu.Nvidia(), Name: "RTX 4090"})
	require.NoError(t, err, "First backend's failure is observable only via log")
	assert.Equal(t, 70.0, *updated.Temperature)
	assert.Equal(t, 1, broken.RefreshCalls())
	assert.Equal(t, 1, fallback.RefreshCalls())
}

func TestRefreshStopsAtFirstSuccess(t *testing.T) {
	preferred := gpu.NewMockBackend(gpu.VendorNvidia,
		gpu.DeviceRecord{Vendor: gpu.Nvidia(), Name: "RTX 4090", Temperature: gpu.Float64(65.0)})
	spare := gpu.NewMockBackend(gpu.VendorNvidia,
		gpu.DeviceRecord{Vendor: gpu.Nvidia(), Name: "RTX 4090", Temperature: gpu.Float64(99.0)})

	registry := gpu.NewRegistry()
	registry.Register(preferred)
	registry.Register(spare)

	updated, err := registry.Refresh(gpu.DeviceRecord{Vendor: gpu.Nvidia(), Name: "RTX 4090"})
	require.NoError(t, err)
	assert.Equal(t, 65.0, *updated.Temperature, "First registered backend wins")
	assert.Equal(t, 0, spare.RefreshCalls())
}

func TestRefreshWithNoBackendRegistered(t *testing.T) {
	registry := gpu.NewRegistry()
	registry.Register(gpu.NewMockBackend(gpu.VendorAmd))

	_, err := registry.Refresh(gpu.DeviceRecord{Vendor: gpu.Nvidia(), Name: "RTX 4090"})
	require.Error(t, err)
	assert.True(t, gpu.IsNoBackend(err),
		"Support absent must be distinguishable from hardware absent")
}

func TestRefreshAllBackendsFail(t *testing.T) {
	errFactory := errors.New()

	first := gpu.NewMockBackend(gpu.VendorNvidia)
	first.RefreshErr = errFactory.New(gpu.ErrDetectionFailed)
	second := gpu.NewMockBackend(gpu.VendorNvidia)
	second.RefreshErr = errFactory.New(gpu.ErrDetectionFailed)

	registry := gpu.NewRegistry()
	registry.Register(first)
	registry.Register(second)

	rec := gpu.DeviceRecord{Vendor: gpu.Nvidia(), Name: "RTX 4090", Temperature: gpu.Float64(55.0)}
	returned, err := registry.Refresh(rec)
	require.Error(t, err)
	assert.False(t, gpu.IsNoBackend(err))
	assert.Equal(t, errors.ErrorCode("gpu_detection_failed"), errors.Code(err))
	assert.Equal(t, 55.0, *returned.Temperature, "Record is returned unchanged on total failure")
}

func TestRefreshDispatchIgnoresIntelVariant(t *testing.T) {
	backend := gpu.NewMockBackend(gpu.VendorIntel,
		gpu.DeviceRecord{Vendor: gpu.Intel(gpu.IntelDiscrete), Name: "Arc A770", Utilization: gpu.Float64(12.0)})

	registry := gpu.NewRegistry()
	registry.Register(backend)

	// Record carries the discrete variant; backend is registered for the kind
	updated, err := registry.Refresh(gpu.DeviceRecord{Vendor: gpu.Intel(gpu.IntelDiscrete), Name: "Arc A770"})
	require.NoError(t, err)
	assert.Equal(t, 12.0, *updated.Utilization)

	// Same backend answers for the integrated variant as well
	_, err = registry.Refresh(gpu.DeviceRecord{Vendor: gpu.Intel(gpu.IntelIntegrated), Name: "UHD 770"})
	require.NoError(t, err)
	assert.Equal(t, 2, backend.RefreshCalls())
}

func TestVendorSupported(t *testing.T) {
	registry := gpu.NewRegistry()
	registry.Register(gpu.NewMockBackend(gpu.VendorNvidia))

	assert.True(t, registry.VendorSupported(gpu.VendorNvidia))
	assert.False(t, registry.VendorSupported(gpu.VendorAmd))
}
