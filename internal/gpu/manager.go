package gpu

import (
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vremyavnikuda/sysinfo-utils/internal/errors"
	"github.com/vremyavnikuda/sysinfo-utils/internal/logger"
)

const defaultAsyncWorkers = 4

// Manager is the single entry point tying together the backend registry,
// the in-memory device collection, and the result cache. It is safe for
// concurrent use; only the Manager mutates the collection or the cache.
type Manager struct {
	registry *Registry

	mu      sync.Mutex
	devices []DeviceRecord
	primary int

	cache *resultCache
	group singleflight.Group

	pool         *workerPool
	asyncTimeout time.Duration

	closeOnce sync.Once
}

// Option configures a Manager at construction
type Option func(*managerOptions)

type managerOptions struct {
	cacheConfig  CacheConfig
	asyncWorkers int
	asyncTimeout time.Duration
}

// WithCacheConfig fixes the snapshot cache's TTL and entry bound for the
// lifetime of the Manager. A maxEntries of zero leaves the cache
// unbounded (TTL-only).
func WithCacheConfig(ttl time.Duration, maxEntries int) Option {
	return func(o *managerOptions) {
		o.cacheConfig = CacheConfig{TTL: ttl, MaxEntries: maxEntries}
	}
}

// WithAsyncWorkers sets the size of the worker pool backing the
// asynchronous entry points
func WithAsyncWorkers(n int) Option {
	return func(o *managerOptions) {
		if n > 0 {
			o.asyncWorkers = n
		}
	}
}

// WithAsyncTimeout bounds how long an asynchronous caller waits for a
// result. Zero disables the bound. The underlying native query is not
// cancelled either way; a timed-out wait leaves it to finish on its
// worker.
func WithAsyncTimeout(d time.Duration) Option {
	return func(o *managerOptions) {
		o.asyncTimeout = d
	}
}

// NewManager constructs a Manager over the given registry and runs
// initial detection. When detection yields no devices the collection
// holds the unknown sentinel, so the primary device always resolves.
func NewManager(registry *Registry, opts ...Option) *Manager {
	options := managerOptions{
		cacheConfig:  DefaultCacheConfig(),
		asyncWorkers: defaultAsyncWorkers,
	}
	for _, opt := range opts {
		opt(&options)
	}

	m := &Manager{
		registry:     registry,
		cache:        newResultCache(options.cacheConfig),
		pool:         newWorkerPool(options.asyncWorkers),
		asyncTimeout: options.asyncTimeout,
	}

	m.mu.Lock()
	m.detectLocked()
	m.mu.Unlock()

	return m
}

// Close stops the async worker pool. Synchronous entry points remain
// usable; in-flight async queries finish, queued ones resolve to
// ErrManagerClosed.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.pool.close()
	})
}

// detectLocked replaces the device collection wholesale. Callers hold m.mu.
func (m *Manager) detectLocked() {
	records := m.registry.DetectAll()
	if len(records) == 0 {
		logger.Warn().Msg("No GPUs detected in the system")
		records = []DeviceRecord{UnknownDevice()}
	} else {
		logger.Info().Int("count", len(records)).Msg("GPU detection complete")
	}
	m.devices = records
	m.primary = 0
}

// Redetect discards the current device collection, re-runs detection
// across every backend, and clears the cache.
func (m *Manager) Redetect() {
	m.mu.Lock()
	m.detectLocked()
	m.mu.Unlock()
	m.cache.clear()
}

// DeviceCount returns the number of records in the collection
func (m *Manager) DeviceCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.devices)
}

// Devices returns owned copies of every record in the collection
func (m *Manager) Devices() []DeviceRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]DeviceRecord, len(m.devices))
	for i, rec := range m.devices {
		out[i] = rec.Clone()
	}
	return out
}

// PrimaryIndex returns the index of the primary device
func (m *Manager) PrimaryIndex() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.primary
}

// SetPrimaryGPU overrides the primary device selection
func (m *Manager) SetPrimaryGPU(index int) error {
	errFactory := errors.New()

	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.devices) {
		return errFactory.WithData(ErrDeviceNotFound, index)
	}
	m.primary = index
	return nil
}

// GetGPUCached returns a shared immutable snapshot of the device at
// index. A cache hit within TTL answers directly; a miss refreshes the
// device through the registry, stores the result, populates the cache,
// and returns the fresh snapshot. A failed refresh returns the prior
// in-memory record without caching it, so the next call retries instead
// of serving a cached failure. Returns nil only for an out-of-range
// index. Concurrent misses for the same index are collapsed into one
// backend call.
func (m *Manager) GetGPUCached(index int) *DeviceRecord {
	if snap := m.cache.get(index); snap != nil {
		return snap
	}

	v, _, _ := m.group.Do(strconv.Itoa(index), func() (any, error) {
		return m.refreshAndCache(index), nil
	})
	snap, _ := v.(*DeviceRecord)
	return snap
}

func (m *Manager) refreshAndCache(index int) *DeviceRecord {
	m.mu.Lock()
	if len(m.devices) == 0 {
		m.detectLocked()
	}
	if index < 0 || index >= len(m.devices) {
		m.mu.Unlock()
		return nil
	}
	current := m.devices[index].Clone()
	m.mu.Unlock()

	// The native query runs outside the collection lock; this is the
	// only suspension point besides reacquiring it below.
	updated, err := m.registry.Refresh(current)
	if err != nil {
		logger.Warn().
			Int("index", index).
			Str("vendor", current.Vendor.String()).
			Err(err).
			Msg("Refresh failed, returning last known record")
		stale := current.Clone()
		return &stale
	}

	m.mu.Lock()
	m.devices[index] = updated
	m.mu.Unlock()

	snapshot := updated.Clone()
	m.cache.put(index, &snapshot)
	return &snapshot
}

// GetPrimaryGPUCached returns a shared snapshot of the primary device
func (m *Manager) GetPrimaryGPUCached() *DeviceRecord {
	return m.GetGPUCached(m.PrimaryIndex())
}

// Get returns an owned copy of the primary device's latest snapshot,
// falling back to the unknown sentinel when nothing resolves.
func (m *Manager) Get() DeviceRecord {
	if snap := m.GetPrimaryGPUCached(); snap != nil {
		return snap.Clone()
	}
	return UnknownDevice()
}

// RefreshGPU forces a refresh of the device at index, bypassing and then
// repopulating the cache.
func (m *Manager) RefreshGPU(index int) error {
	errFactory := errors.New()

	m.mu.Lock()
	if index < 0 || index >= len(m.devices) {
		m.mu.Unlock()
		return errFactory.WithData(ErrDeviceNotFound, index)
	}
	current := m.devices[index].Clone()
	m.mu.Unlock()

	m.cache.invalidate(index)

	updated, err := m.registry.Refresh(current)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.devices[index] = updated
	m.mu.Unlock()

	snapshot := updated.Clone()
	m.cache.put(index, &snapshot)
	return nil
}

// RefreshAll refreshes every device in the collection and invalidates the
// whole cache. Every device is attempted even when some fail; the first
// error is returned.
func (m *Manager) RefreshAll() error {
	m.mu.Lock()
	devices := make([]DeviceRecord, len(m.devices))
	for i, rec := range m.devices {
		devices[i] = rec.Clone()
	}
	m.mu.Unlock()

	var firstErr error
	for i := range devices {
		updated, err := m.registry.Refresh(devices[i])
		if err != nil {
			logger.Warn().Int("index", i).Err(err).Msg("Failed to refresh GPU")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		devices[i] = updated
	}

	m.mu.Lock()
	m.devices = devices
	m.mu.Unlock()

	m.cache.clear()
	return firstErr
}

// ClearCache drops every cached snapshot; the device collection is kept
func (m *Manager) ClearCache() {
	m.cache.clear()
}

// CacheStats returns a point-in-time aggregate over the cache
func (m *Manager) CacheStats() CacheStats {
	return m.cache.stats()
}
