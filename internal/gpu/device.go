package gpu

// DeviceRecord is one physical GPU's last-known state. Every metric field
// is independently optional: a nil pointer means the backend or hardware
// does not expose the value, which is distinct from a reading of zero.
// Records are treated as immutable snapshots once they leave a backend;
// refreshing constructs a new record rather than mutating in place.
type DeviceRecord struct {
	Vendor        Vendor   `json:"vendor"`
	Name          string   `json:"name,omitempty"`
	DriverVersion string   `json:"driver_version,omitempty"`
	Temperature   *float64 `json:"temperature_c,omitempty"`
	Utilization   *float64 `json:"utilization_percent,omitempty"`
	CoreClock     *uint64  `json:"core_clock_mhz,omitempty"`
	MemoryClock   *uint64  `json:"memory_clock_mhz,omitempty"`
	MaxClock      *uint64  `json:"max_clock_mhz,omitempty"`
	PowerUsage    *float64 `json:"power_usage_w,omitempty"`
	PowerLimit    *float64 `json:"power_limit_w,omitempty"`
	MemoryUsed    *uint64  `json:"memory_used_bytes,omitempty"`
	MemoryTotal   *uint64  `json:"memory_total_bytes,omitempty"`
	Active        *bool    `json:"active,omitempty"`
}

// DeviceKey is the identity of a physical device: vendor and name only.
// Two snapshots of the same device with different readings compare equal
// under this key.
type DeviceKey struct {
	Vendor Vendor
	Name   string
}

// Key returns the record's identity for lookup and hashing
func (r DeviceRecord) Key() DeviceKey {
	return DeviceKey{Vendor: r.Vendor, Name: r.Name}
}

// SameDevice reports whether two records describe the same physical device
func (r DeviceRecord) SameDevice(other DeviceRecord) bool {
	return r.Key() == other.Key()
}

// IsUnknown reports whether the record is the unknown/unset sentinel
func (r DeviceRecord) IsUnknown() bool {
	return r.Vendor.Kind == VendorUnknown && r.Name == ""
}

// UnknownDevice returns the canonical sentinel for "no device detected".
// It carries the Unknown vendor and no metrics, which keeps it
// distinguishable from a device whose refresh failed.
func UnknownDevice() DeviceRecord {
	return DeviceRecord{Vendor: Unknown()}
}

// Clone returns a deep copy of the record. Snapshots handed to the cache
// are cloned first so later refreshes can never alias a shared pointer.
func (r DeviceRecord) Clone() DeviceRecord {
	out := r
	out.Temperature = cloneFloat64(r.Temperature)
	out.Utilization = cloneFloat64(r.Utilization)
	out.CoreClock = cloneUint64(r.CoreClock)
	out.MemoryClock = cloneUint64(r.MemoryClock)
	out.MaxClock = cloneUint64(r.MaxClock)
	out.PowerUsage = cloneFloat64(r.PowerUsage)
	out.PowerLimit = cloneFloat64(r.PowerLimit)
	out.MemoryUsed = cloneUint64(r.MemoryUsed)
	out.MemoryTotal = cloneUint64(r.MemoryTotal)
	out.Active = cloneBool(r.Active)
	return out
}

// Float64 returns a pointer to v, for populating optional metric fields
func Float64(v float64) *float64 { return &v }

// Uint64 returns a pointer to v, for populating optional metric fields
func Uint64(v uint64) *uint64 { return &v }

// Bool returns a pointer to v, for populating optional flag fields
func Bool(v bool) *bool { return &v }

func cloneFloat64(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneUint64(p *uint64) *uint64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneBool(p *bool) *bool {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
