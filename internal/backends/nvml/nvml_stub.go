//go:build nonvml
// +build nonvml

package nvml

import (
	"github.com/vremyavnikuda/sysinfo-utils/internal/errors"
	"github.com/vremyavnikuda/sysinfo-utils/internal/gpu"
)

const (
	ErrInitFailed  = errors.ErrorCode("nvml_init_failed")
	ErrQueryFailed = errors.ErrorCode("nvml_query_failed")
)

// Backend stub used when building without the NVIDIA driver libraries
type Backend struct{}

func New() *Backend {
	return &Backend{}
}

func (b *Backend) Vendor() gpu.VendorKind {
	return gpu.VendorNvidia
}

func (b *Backend) Name() string {
	return "nvml"
}

func (b *Backend) Close() error {
	return nil
}

func (b *Backend) Detect() ([]gpu.DeviceRecord, error) {
	errFactory := errors.New()
	return nil, errFactory.WithMessage(ErrInitFailed, "built without NVML support")
}

func (b *Backend) Refresh(rec gpu.DeviceRecord) (gpu.DeviceRecord, error) {
	errFactory := errors.New()
	return rec, errFactory.WithMessage(ErrInitFailed, "built without NVML support")
}

var _ gpu.Backend = (*Backend)(nil)
