package tts

import (
	"context"
	"sync"
	"time"
)

// Mock implements Synthesizer for testing.
// All methods can be customized via function fields.
type Mock struct {
	// SynthesizeFunc is called when Synthesize is invoked.
	// If nil, returns a small deterministic MP3-tagged payload.
	SynthesizeFunc func(ctx context.Context, text string) (*Artifact, error)

	// NameValue is returned by Name. Defaults to "mock".
	NameValue string

	// FingerprintValue is returned by Fingerprint. Defaults to "lang=en".
	FingerprintValue string

	// FormatValue is returned by Format. Defaults to FormatMP3.
	FormatValue Format

	// Tracking
	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation for verification.
type MockCall struct {
	Method string
	Text   string
	Time   time.Time
}

// NewMock creates a new mock backend with sensible defaults.
func NewMock() *Mock {
	return &Mock{
		SynthesizeFunc: func(ctx context.Context, text string) (*Artifact, error) {
			// Deterministic payload so cache keys and sizes are stable
			// in tests.
			return &Artifact{
				Audio:  []byte("audio:" + text),
				Format: FormatMP3,
			}, nil
		},
	}
}

// NewMockError creates a mock backend that always fails.
func NewMockError(err error) *Mock {
	return &Mock{
		SynthesizeFunc: func(ctx context.Context, text string) (*Artifact, error) {
			return nil, err
		},
	}
}

// Synthesize calls SynthesizeFunc and records the call.
func (m *Mock) Synthesize(ctx context.Context, text string) (*Artifact, error) {
	m.recordCall("Synthesize", text)
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, text)
	}
	return nil, WrapError(m.Name(), ErrEmptyText)
}

// Name returns the configured name or "mock".
func (m *Mock) Name() string {
	if m.NameValue != "" {
		return m.NameValue
	}
	return "mock"
}

// Fingerprint returns the configured fingerprint or "lang=en".
func (m *Mock) Fingerprint() string {
	if m.FingerprintValue != "" {
		return m.FingerprintValue
	}
	return "lang=en"
}

// Format returns the configured format or MP3.
func (m *Mock) Format() Format {
	if m.FormatValue != "" {
		return m.FormatValue
	}
	return FormatMP3
}

// Close records the call.
func (m *Mock) Close() error {
	m.recordCall("Close", "")
	return nil
}

// recordCall adds a call to the tracking list.
func (m *Mock) recordCall(method, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{
		Method: method,
		Text:   text,
		Time:   time.Now(),
	})
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

// Verify Mock implements Synthesizer at compile time.
var _ Synthesizer = (*Mock)(nil)
