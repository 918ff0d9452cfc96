package stt

import (
	"context"
	"sync"

	"github.com/mithlajmt/nila/pkg/capture"
)

// Mock implements Recognizer for testing.
type Mock struct {
	// RecognizeFunc is called when Recognize is invoked.
	// If nil, returns an empty (silence) result.
	RecognizeFunc func(ctx context.Context, clip *capture.Clip) (*Result, error)

	// NameValue is returned by Name. Defaults to "mock".
	NameValue string

	mu    sync.Mutex
	calls int
}

// NewMock creates a mock recognizer that returns the given transcript.
func NewMock(text string) *Mock {
	return &Mock{
		RecognizeFunc: func(ctx context.Context, clip *capture.Clip) (*Result, error) {
			return &Result{Text: text, Language: "en", Confidence: 0.9}, nil
		},
	}
}

// NewMockError creates a mock recognizer that always fails.
func NewMockError(err error) *Mock {
	return &Mock{
		RecognizeFunc: func(ctx context.Context, clip *capture.Clip) (*Result, error) {
			return nil, err
		},
	}
}

// Recognize calls RecognizeFunc and counts the call.
func (m *Mock) Recognize(ctx context.Context, clip *capture.Clip) (*Result, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.RecognizeFunc != nil {
		return m.RecognizeFunc(ctx, clip)
	}
	return &Result{}, nil
}

// CallCount returns how many times Recognize was invoked.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Name returns the configured name or "mock".
func (m *Mock) Name() string {
	if m.NameValue != "" {
		return m.NameValue
	}
	return "mock"
}

// Close is a no-op.
func (m *Mock) Close() error {
	return nil
}

// Verify Mock implements Recognizer at compile time.
var _ Recognizer = (*Mock)(nil)
