package gpu

import (
	"github.com/vremyavnikuda/sysinfo-utils/internal/errors"
)

const (
	// Dispatch errors
	ErrNoBackendRegistered = errors.ErrorCode("gpu_no_backend_registered")
	ErrDetectionFailed     = errors.ErrorCode("gpu_detection_failed")
	ErrDeviceNotFound      = errors.ErrorCode("gpu_device_not_found")

	// Lifecycle errors
	ErrManagerClosed = errors.ErrorCode("gpu_manager_closed")
	ErrAsyncTimeout  = errors.ErrorCode("gpu_async_wait_timeout")
)

// IsNoBackend reports whether err signals that no backend is registered
// for the record's vendor, as opposed to every registered backend failing.
func IsNoBackend(err error) bool {
	return errors.HasCode(err, ErrNoBackendRegistered)
}
