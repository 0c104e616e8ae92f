package delivery

import (
	"context"
	"sync"
)

// Disabled is a transport for offline kiosks: every strip is kept locally.
type Disabled struct{}

// Upload always fails with ErrTransportDisabled.
func (Disabled) Upload(ctx context.Context, u Upload) (*UploadResult, error) {
	return nil, ErrTransportDisabled
}

// MockTransport implements Transport for testing.
type MockTransport struct {
	// UploadFunc is called when Upload is invoked.
	// If nil, succeeds with URL "https://example.com/<filename>".
	UploadFunc func(ctx context.Context, u Upload) (*UploadResult, error)

	// Tracking
	mu      sync.Mutex
	uploads []Upload
}

// NewMockTransport creates a mock that always succeeds.
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// SucceedingTransport returns a mock answering with url.
func SucceedingTransport(url string) *MockTransport {
	return &MockTransport{
		UploadFunc: func(ctx context.Context, u Upload) (*UploadResult, error) {
			return &UploadResult{Status: StatusSuccess, URL: url}, nil
		},
	}
}

// FailingTransport returns a mock that always returns err.
func FailingTransport(err error) *MockTransport {
	return &MockTransport{
		UploadFunc: func(ctx context.Context, u Upload) (*UploadResult, error) {
			return nil, err
		},
	}
}

// Upload calls UploadFunc and records the request.
func (m *MockTransport) Upload(ctx context.Context, u Upload) (*UploadResult, error) {
	m.mu.Lock()
	m.uploads = append(m.uploads, u)
	m.mu.Unlock()

	if m.UploadFunc != nil {
		return m.UploadFunc(ctx, u)
	}
	return &UploadResult{Status: StatusSuccess, URL: "https://example.com/" + u.Filename}, nil
}

// Uploads returns all recorded requests.
func (m *MockTransport) Uploads() []Upload {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]Upload, len(m.uploads))
	copy(result, m.uploads)
	return result
}

// CallCount returns the number of Upload calls.
func (m *MockTransport) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.uploads)
}

var (
	_ Transport = Disabled{}
	_ Transport = (*MockTransport)(nil)
)
