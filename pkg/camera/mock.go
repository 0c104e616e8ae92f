package camera

import (
	"context"
	"image"
	"image/color"
	"sync"
	"time"
)

// Mock implements Device for testing.
// All methods can be customized via function fields.
type Mock struct {
	// OpenFunc is called when Open is invoked.
	// If nil, returns a mock stream.
	OpenFunc func(ctx context.Context) (Stream, error)

	// ReadFrameFunc is called when ReadFrame is invoked.
	// If nil, returns a solid gray frame of Width x Height.
	ReadFrameFunc func(s Stream) (image.Image, error)

	// CloseFunc is called when Close is invoked.
	// If nil, returns nil.
	CloseFunc func(s Stream) error

	// Size of the default frames.
	Width  int
	Height int

	// Tracking
	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation for verification.
type MockCall struct {
	Method string
	Time   time.Time
}

type mockStream struct{}

func (mockStream) ID() string { return "mock" }

// NewMock creates a mock camera producing 640x480 frames.
func NewMock() *Mock {
	return &Mock{Width: 640, Height: 480}
}

// Open calls OpenFunc and records the call.
func (m *Mock) Open(ctx context.Context) (Stream, error) {
	m.recordCall("Open")
	if m.OpenFunc != nil {
		return m.OpenFunc(ctx)
	}
	return mockStream{}, nil
}

// ReadFrame calls ReadFrameFunc and records the call.
func (m *Mock) ReadFrame(s Stream) (image.Image, error) {
	m.recordCall("ReadFrame")
	if m.ReadFrameFunc != nil {
		return m.ReadFrameFunc(s)
	}
	img := image.NewRGBA(image.Rect(0, 0, m.Width, m.Height))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	return img, nil
}

// Close calls CloseFunc and records the call.
func (m *Mock) Close(s Stream) error {
	m.recordCall("Close")
	if m.CloseFunc != nil {
		return m.CloseFunc(s)
	}
	return nil
}

func (m *Mock) recordCall(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Method: method, Time: time.Now()})
}

// Calls returns all recorded method calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// CallCount returns the number of times a method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// Reset clears all recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Unavailable returns a mock whose Open always fails.
func Unavailable() *Mock {
	m := NewMock()
	m.OpenFunc = func(ctx context.Context) (Stream, error) {
		return nil, ErrDeviceUnavailable
	}
	return m
}

// Sequence returns a mock that serves frames of the given colors in order,
// then repeats the last one. Reads whose zero-based number is set in fails
// return ErrNotReady.
func Sequence(w, h int, colors []color.RGBA, fails map[int]bool) *Mock {
	if len(colors) == 0 {
		colors = []color.RGBA{{R: 0x80, G: 0x80, B: 0x80, A: 0xFF}}
	}
	m := &Mock{Width: w, Height: h}
	var n int
	var mu sync.Mutex
	m.ReadFrameFunc = func(s Stream) (image.Image, error) {
		mu.Lock()
		i := n
		n++
		mu.Unlock()
		if fails[i] {
			return nil, ErrNotReady
		}
		c := colors[min(i, len(colors)-1)]
		img := image.NewRGBA(image.Rect(0, 0, w, h))
		for p := 0; p < len(img.Pix); p += 4 {
			img.Pix[p], img.Pix[p+1], img.Pix[p+2], img.Pix[p+3] = c.R, c.G, c.B, c.A
		}
		return img, nil
	}
	return m
}

// Verify Mock implements Device at compile time.
var _ Device = (*Mock)(nil)
