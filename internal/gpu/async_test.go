package gpu_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vremyavnikuda/sysinfo-utils/internal/errors"
	"github.com/vremyavnikuda/sysinfo-utils/internal/gpu"
)

func TestAsyncMatchesSynchronousOutcome(t *testing.T) {
	backend := gpu.NewMockBackend(gpu.VendorNvidia,
		gpu.DeviceRecord{Vendor: gpu.Nvidia(), Name: "RTX 4090", Temperature: gpu.Float64(65.0)})
	manager := newTestManager(t, backend, gpu.WithCacheConfig(time.Minute, 0))

	res := <-manager.GetGPUCachedAsync(context.Background(), 0)
	require.NoError(t, res.Err)
	require.NotNil(t, res.Device)
	assert.Equal(t, "RTX 4090", res.Device.Name)
	assert.Equal(t, 65.0, *res.Device.Temperature)

	// The async path populates the same cache the synchronous one reads
	assert.Same(t, res.Device, manager.GetGPUCached(0))
	assert.Equal(t, 1, backend.RefreshCalls())
}

func TestAsyncOutOfRangeReportsDeviceNotFound(t *testing.T) {
	backend := gpu.NewMockBackend(gpu.VendorNvidia,
		gpu.DeviceRecord{Vendor: gpu.Nvidia(), Name: "RTX 4090"})
	manager := newTestManager(t, backend)

	res := <-manager.GetGPUCachedAsync(context.Background(), 7)
	require.Error(t, res.Err)
	assert.Nil(t, res.Device)
	assert.Equal(t, gpu.ErrDeviceNotFound, errors.Code(res.Err))
}

func TestGetAsyncResolvesPrimary(t *testing.T) {
	backend := gpu.NewMockBackend(gpu.VendorNvidia,
		gpu.DeviceRecord{Vendor: gpu.Nvidia(), Name: "RTX 4090"},
		gpu.DeviceRecord{Vendor: gpu.Nvidia(), Name: "RTX 4080"})
	manager := newTestManager(t, backend)

	require.NoError(t, manager.SetPrimaryGPU(1))

	res := <-manager.GetAsync(context.Background())
	require.NoError(t, res.Err)
	assert.Equal(t, "RTX 4080", res.Device.Name)
}

func TestGetAllAsyncCollectsEveryDevice(t *testing.T) {
	backend := gpu.NewMockBackend(gpu.VendorNvidia,
		gpu.DeviceRecord{Vendor: gpu.Nvidia(), Name: "RTX 4090"},
		gpu.DeviceRecord{Vendor: gpu.Nvidia(), Name: "RTX 4080"})
	manager := newTestManager(t, backend, gpu.WithCacheConfig(time.Minute, 0))

	res := <-manager.GetAllAsync(context.Background())
	require.NoError(t, res.Err)
	require.Len(t, res.Devices, 2)
	assert.Equal(t, "RTX 4090", res.Devices[0].Name)
	assert.Equal(t, "RTX 4080", res.Devices[1].Name)
}

func TestCancelledContextAbandonsQueuedWait(t *testing.T) {
	backend := gpu.NewMockBackend(gpu.VendorNvidia,
		gpu.DeviceRecord{Vendor: gpu.Nvidia(), Name: "RTX 4090"})
	backend.RefreshFn = func(rec gpu.DeviceRecord) (gpu.DeviceRecord, error) {
		time.Sleep(200 * time.Millisecond)
		return rec.Clone(), nil
	}
	manager := newTestManager(t, backend, gpu.WithAsyncWorkers(1))

	// Occupy the single worker so the next submission has to queue
	busy := manager.GetGPUCachedAsync(context.Background(), 0)
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := <-manager.GetGPUCachedAsync(ctx, 0)
	require.Error(t, res.Err)
	assert.Nil(t, res.Device)
	assert.Equal(t, errors.ErrTimeout, errors.Code(res.Err))

	<-busy
}

func TestAsyncAfterCloseReportsManagerClosed(t *testing.T) {
	backend := gpu.NewMockBackend(gpu.VendorNvidia,
		gpu.DeviceRecord{Vendor: gpu.Nvidia(), Name: "RTX 4090"})
	registry := gpu.NewRegistry()
	registry.Register(backend)
	manager := gpu.NewManager(registry)
	manager.Close()

	res := <-manager.GetGPUCachedAsync(context.Background(), 0)
	require.Error(t, res.Err)
	assert.Equal(t, gpu.ErrManagerClosed, errors.Code(res.Err))

	// The synchronous path outlives the pool
	assert.NotNil(t, manager.GetGPUCached(0))
}

func TestAsyncWaitTimeoutLeavesQueryRunning(t *testing.T) {
	backend := gpu.NewMockBackend(gpu.VendorNvidia,
		gpu.DeviceRecord{Vendor: gpu.Nvidia(), Name: "RTX 4090", Temperature: gpu.Float64(65.0)})
	base := backend.Records[0]
	backend.RefreshFn = func(gpu.DeviceRecord) (gpu.DeviceRecord, error) {
		time.Sleep(150 * time.Millisecond)
		return base.Clone(), nil
	}
	manager := newTestManager(t, backend,
		gpu.WithCacheConfig(time.Minute, 0),
		gpu.WithAsyncTimeout(30*time.Millisecond))

	res := <-manager.GetGPUCachedAsync(context.Background(), 0)
	require.Error(t, res.Err)
	assert.Equal(t, gpu.ErrAsyncTimeout, errors.Code(res.Err))

	// The abandoned query finishes on its worker and still caches
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, manager.CacheStats().Entries)
}
