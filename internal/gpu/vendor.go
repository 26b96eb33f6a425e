package gpu

import (
	"github.com/vremyavnikuda/sysinfo-utils/internal/errors"
)

// VendorKind is the closed set of GPU manufacturers the detection layer
// can dispatch on.
type VendorKind uint8

const (
	VendorUnknown VendorKind = iota
	VendorNvidia
	VendorAmd
	VendorIntel
)

func (k VendorKind) String() string {
	switch k {
	case VendorNvidia:
		return "NVIDIA"
	case VendorAmd:
		return "AMD"
	case VendorIntel:
		return "Intel"
	default:
		return "Unknown"
	}
}

// MarshalText implements encoding.TextMarshaler
func (k VendorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *VendorKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "NVIDIA":
		*k = VendorNvidia
	case "AMD":
		*k = VendorAmd
	case "Intel":
		*k = VendorIntel
	case "Unknown", "":
		*k = VendorUnknown
	default:
		errFactory := errors.New()
		return errFactory.WithData(errors.ErrInvalidArgument, string(text))
	}
	return nil
}

// IntelVariant distinguishes integrated from discrete Intel graphics.
// It refines identity only; backend dispatch ignores it.
type IntelVariant uint8

const (
	IntelVariantUnknown IntelVariant = iota
	IntelIntegrated
	IntelDiscrete
)

func (v IntelVariant) String() string {
	switch v {
	case IntelIntegrated:
		return "integrated"
	case IntelDiscrete:
		return "discrete"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler
func (v IntelVariant) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (v *IntelVariant) UnmarshalText(text []byte) error {
	switch string(text) {
	case "integrated":
		*v = IntelIntegrated
	case "discrete":
		*v = IntelDiscrete
	case "unknown", "":
		*v = IntelVariantUnknown
	default:
		errFactory := errors.New()
		return errFactory.WithData(errors.ErrInvalidArgument, string(text))
	}
	return nil
}

// Vendor identifies a device's manufacturer. The Intel variant is carried
// alongside the kind so that integrated and discrete Intel parts remain
// distinguishable in device identity while sharing one backend.
type Vendor struct {
	Kind  VendorKind   `json:"kind"`
	Intel IntelVariant `json:"intel_variant,omitempty"`
}

func (v Vendor) String() string {
	if v.Kind == VendorIntel && v.Intel != IntelVariantUnknown {
		return v.Kind.String() + " (" + v.Intel.String() + ")"
	}
	return v.Kind.String()
}

// SameKind reports whether both vendors dispatch to the same backend set,
// ignoring the Intel variant.
func (v Vendor) SameKind(other Vendor) bool {
	return v.Kind == other.Kind
}

// Nvidia returns the NVIDIA vendor value
func Nvidia() Vendor { return Vendor{Kind: VendorNvidia} }

// Amd returns the AMD vendor value
func Amd() Vendor { return Vendor{Kind: VendorAmd} }

// Intel returns an Intel vendor value with the given variant
func Intel(variant IntelVariant) Vendor {
	return Vendor{Kind: VendorIntel, Intel: variant}
}

// Unknown returns the unknown vendor value
func Unknown() Vendor { return Vendor{} }
