package actuator

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePort records frames and can be told to fail writes.
type fakePort struct {
	mu       sync.Mutex
	frames   []string
	failNext int
	closed   bool
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failNext > 0 {
		p.failNext--
		return 0, errors.New("write: input/output error")
	}
	p.frames = append(p.frames, string(b))
	return len(b), nil
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePort) Frames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.frames...)
}

func newTestLink(t *testing.T, open Opener) *Link {
	t.Helper()
	return New("/dev/null", DefaultBaudRate,
		WithOpener(open),
		WithResetGrace(0),
	)
}

func TestSetIntensityWireFormat(t *testing.T) {
	port := &fakePort{}
	link := newTestLink(t, func() (Port, error) { return port, nil })
	require.NoError(t, link.Connect())

	require.NoError(t, link.SetIntensity(0))
	require.NoError(t, link.SetIntensity(42))
	require.NoError(t, link.SetIntensity(100))

	assert.Equal(t, []string{"0\n", "42\n", "100\n"}, port.Frames())
}

func TestSetIntensityClamps(t *testing.T) {
	port := &fakePort{}
	link := newTestLink(t, func() (Port, error) { return port, nil })
	require.NoError(t, link.Connect())

	require.NoError(t, link.SetIntensity(-20))
	require.NoError(t, link.SetIntensity(250))

	assert.Equal(t, []string{"0\n", "100\n"}, port.Frames())
}

func TestReconnectOnceOnWriteFailure(t *testing.T) {
	first := &fakePort{failNext: 1}
	second := &fakePort{}

	opens := 0
	link := newTestLink(t, func() (Port, error) {
		opens++
		if opens == 1 {
			return first, nil
		}
		return second, nil
	})
	require.NoError(t, link.Connect())

	// First write fails, link reopens and resends the same frame.
	require.NoError(t, link.SetIntensity(55))

	assert.Equal(t, 2, opens)
	assert.True(t, first.closed)
	assert.Equal(t, []string{"55\n"}, second.Frames())
}

func TestGivesUpAfterSecondFailure(t *testing.T) {
	opens := 0
	link := newTestLink(t, func() (Port, error) {
		opens++
		return &fakePort{failNext: 1}, nil
	})
	require.NoError(t, link.Connect())

	err := link.SetIntensity(30)
	require.Error(t, err)

	// Exactly one reconnect attempt for the failed call.
	assert.Equal(t, 2, opens)
	assert.False(t, link.Connected())

	// The next call tries again on its own.
	require.Error(t, link.SetIntensity(30))
	assert.Equal(t, 4, opens)
}

func TestConnectFailureIsNonFatal(t *testing.T) {
	link := newTestLink(t, func() (Port, error) {
		return nil, errors.New("no such device")
	})

	err := link.Connect()
	require.Error(t, err)
	assert.False(t, link.Connected())

	// Calls on a disconnected link return an error but never panic.
	assert.Error(t, link.SetIntensity(50))
}

func TestSetIntensityReconnectsWhenDisconnected(t *testing.T) {
	port := &fakePort{}
	available := false
	link := newTestLink(t, func() (Port, error) {
		if !available {
			return nil, errors.New("no such device")
		}
		return port, nil
	})

	_ = link.Connect()
	require.False(t, link.Connected())

	available = true
	require.NoError(t, link.SetIntensity(70))
	assert.True(t, link.Connected())
	assert.Equal(t, []string{"70\n"}, port.Frames())
}

func TestCloseZeroesJaw(t *testing.T) {
	port := &fakePort{}
	link := newTestLink(t, func() (Port, error) { return port, nil })
	require.NoError(t, link.Connect())
	require.NoError(t, link.SetIntensity(80))

	require.NoError(t, link.Close())

	frames := port.Frames()
	require.NotEmpty(t, frames)
	assert.Equal(t, "0\n", frames[len(frames)-1])
	assert.True(t, port.closed)
	assert.False(t, link.Connected())
}

func TestCloseWithoutConnectIsSafe(t *testing.T) {
	link := newTestLink(t, func() (Port, error) {
		return nil, errors.New("no such device")
	})
	assert.NoError(t, link.Close())
}

func TestConcurrentWritesDoNotInterleave(t *testing.T) {
	port := &fakePort{}
	link := newTestLink(t, func() (Port, error) { return port, nil })
	require.NoError(t, link.Connect())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			_ = link.SetIntensity(v)
		}(i * 5)
	}
	wg.Wait()

	for _, f := range port.Frames() {
		assert.True(t, strings.HasSuffix(f, "\n"))
		assert.Equal(t, 1, strings.Count(f, "\n"))
	}
	assert.Len(t, port.Frames(), 20)
}
