package gpu

import (
	"sync"
)

// MockBackend provides fake detection data for tests and for exercising
// the dispatch layer without hardware.
type MockBackend struct {
	Kind        VendorKind
	BackendName string
	Records     []DeviceRecord
	DetectErr   error
	RefreshErr  error

	// RefreshFn overrides the default refresh behavior when set
	RefreshFn func(DeviceRecord) (DeviceRecord, error)

	mu           sync.Mutex
	detectCalls  int
	refreshCalls int
}

// NewMockBackend returns a mock answering for kind with the given records
func NewMockBackend(kind VendorKind, records ...DeviceRecord) *MockBackend {
	return &MockBackend{Kind: kind, BackendName: "mock-" + kind.String(), Records: records}
}

func (b *MockBackend) Vendor() VendorKind {
	return b.Kind
}

func (b *MockBackend) Name() string {
	if b.BackendName != "" {
		return b.BackendName
	}
	return "mock"
}

func (b *MockBackend) Detect() ([]DeviceRecord, error) {
	b.mu.Lock()
	b.detectCalls++
	b.mu.Unlock()

	if b.DetectErr != nil {
		return nil, b.DetectErr
	}
	out := make([]DeviceRecord, len(b.Records))
	for i, rec := range b.Records {
		out[i] = rec.Clone()
	}
	return out, nil
}

func (b *MockBackend) Refresh(rec DeviceRecord) (DeviceRecord, error) {
	b.mu.Lock()
	b.refreshCalls++
	b.mu.Unlock()

	if b.RefreshFn != nil {
		return b.RefreshFn(rec)
	}
	if b.RefreshErr != nil {
		return rec, b.RefreshErr
	}
	for _, candidate := range b.Records {
		if candidate.SameDevice(rec) {
			return candidate.Clone(), nil
		}
	}
	return rec.Clone(), nil
}

// DetectCalls returns how many times Detect ran
func (b *MockBackend) DetectCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.detectCalls
}

// RefreshCalls returns how many times Refresh ran
func (b *MockBackend) RefreshCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshCalls
}

var _ Backend = (*MockBackend)(nil)
