package gpu

import (
	"sync"

	"github.com/vremyavnikuda/sysinfo-utils/internal/errors"
	"github.com/vremyavnikuda/sysinfo-utils/internal/logger"
)

// Backend is a vendor/platform-specific detection source. Implementations
// read live hardware state and write nothing shared; any private session
// state (an open SDK handle, say) must tolerate use from multiple
// goroutines, since backend calls run on the async worker pool.
type Backend interface {
	// Vendor returns the manufacturer this backend answers for
	Vendor() VendorKind

	// Name identifies the backend in logs
	Name() string

	// Detect enumerates the devices currently visible to this backend.
	// Zero devices with a nil error means "hardware absent".
	Detect() ([]DeviceRecord, error)

	// Refresh re-reads live metrics for the given device and returns a
	// new record; the input is never mutated.
	Refresh(rec DeviceRecord) (DeviceRecord, error)
}

// Registry maps vendor kinds to ordered backend sets. Registration order
// is the fallback order: the first registered backend for a vendor is
// preferred, later ones are tried only after it fails.
type Registry struct {
	mu       sync.RWMutex
	order    []Backend
	byVendor map[VendorKind][]Backend
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{
		byVendor: make(map[VendorKind][]Backend),
	}
}

// Register appends a backend for its vendor. Multiple backends per vendor
// are kept; later registrations never replace earlier ones.
func (r *Registry) Register(backend Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kind := backend.Vendor()
	r.order = append(r.order, backend)
	r.byVendor[kind] = append(r.byVendor[kind], backend)

	logger.Debug().
		Str("backend", backend.Name()).
		Str("vendor", kind.String()).
		Msg("Registered detection backend")
}

// Backends returns every registered backend in registration order
func (r *Registry) Backends() []Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Backend, len(r.order))
	copy(out, r.order)
	return out
}

// VendorSupported reports whether at least one backend is registered for
// the given vendor kind
func (r *Registry) VendorSupported(kind VendorKind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byVendor[kind]) > 0
}

// DetectAll invokes every registered backend exactly once, in
// registration order, concatenating the results. Detection is best-effort
// across vendors: a failing backend contributes zero records and its
// error is logged, never propagated. Zero registered backends yields an
// empty slice, not an error. The result is not a single-instant view;
// each backend observes the hardware at its own moment.
func (r *Registry) DetectAll() []DeviceRecord {
	backends := r.Backends()

	var all []DeviceRecord
	for _, backend := range backends {
		records, err := backend.Detect()
		if err != nil {
			logger.Warn().
				Str("backend", backend.Name()).
				Str("vendor", backend.Vendor().String()).
				Err(err).
				Msg("Backend detection failed")
			continue
		}
		for _, rec := range records {
			logger.Info().
				Str("backend", backend.Name()).
				Str("vendor", rec.Vendor.String()).
				Str("name", rec.Name).
				Msg("Detected GPU")
		}
		all = append(all, records...)
	}
	return all
}

// Refresh re-reads live metrics for rec through the backends registered
// for its vendor kind (Intel variants share one backend set), trying each
// in registration order and stopping at the first success. Individual
// backend failures are logged; only a fully-failed refresh surfaces an
// error, and the caller's record is left untouched either way.
func (r *Registry) Refresh(rec DeviceRecord) (DeviceRecord, error) {
	errFactory := errors.New()

	r.mu.RLock()
	backends := make([]Backend, len(r.byVendor[rec.Vendor.Kind]))
	copy(backends, r.byVendor[rec.Vendor.Kind])
	r.mu.RUnlock()

	if len(backends) == 0 {
		return rec, errFactory.WithData(ErrNoBackendRegistered, rec.Vendor.Kind.String())
	}

	var lastErr error
	for _, backend := range backends {
		updated, err := backend.Refresh(rec)
		if err != nil {
			logger.Warn().
				Str("backend", backend.Name()).
				Str("vendor", rec.Vendor.String()).
				Str("name", rec.Name).
				Err(err).
				Msg("Backend refresh failed, trying fallback")
			lastErr = err
			continue
		}
		return updated, nil
	}

	return rec, errFactory.Wrap(ErrDetectionFailed, lastErr)
}
