// Package actuator drives the jaw servo over a half-duplex serial link.
//
// The wire protocol is a single ASCII integer per line: "<0-100>\n", where 0
// is fully closed and 100 fully open. The microcontroller sends nothing back.
// A Link owns the one physical connection for the process; callers share the
// same handle and writes are serialized so frames never interleave.
package actuator

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.bug.st/serial"
)

// Defaults for the serial transport.
const (
	DefaultBaudRate = 115200

	// DefaultResetGrace is how long to wait after opening the port before
	// the first write. Opening the port resets the microcontroller.
	DefaultResetGrace = 2 * time.Second
)

// Port is the subset of the serial port used by the Link.
// It is an interface so tests can substitute a fake transport.
type Port interface {
	Write(p []byte) (int, error)
	Close() error
}

// Opener opens the underlying transport.
type Opener func() (Port, error)

// Link manages the serial connection to the jaw controller.
type Link struct {
	open   Opener
	grace  time.Duration
	logger *slog.Logger

	mu        sync.Mutex
	port      Port
	connected bool
}

// Option is a functional option for configuring a Link.
type Option func(*Link)

// WithOpener replaces the transport opener. Used by tests.
func WithOpener(open Opener) Option {
	return func(l *Link) {
		l.open = open
	}
}

// WithResetGrace overrides the post-open reset grace period.
func WithResetGrace(d time.Duration) Option {
	return func(l *Link) {
		l.grace = d
	}
}

// WithLogger sets the structured logger for the link.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Link) {
		l.logger = logger.With("component", "actuator")
	}
}

// New creates a Link for the given serial port and baud rate.
// The connection is not opened until Connect is called.
func New(portName string, baud int, opts ...Option) *Link {
	if baud <= 0 {
		baud = DefaultBaudRate
	}

	l := &Link{
		open: func() (Port, error) {
			return serial.Open(portName, &serial.Mode{BaudRate: baud})
		},
		grace:  DefaultResetGrace,
		logger: slog.Default().With("component", "actuator"),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Connect opens the serial connection and waits out the device reset grace
// period. A failed connect leaves the link usable: SetIntensity will retry
// the connection on each call, so a robot without hardware attached still
// runs (actuation is simply dropped).
func (l *Link) Connect() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connectLocked()
}

func (l *Link) connectLocked() error {
	port, err := l.open()
	if err != nil {
		l.connected = false
		l.logger.Warn("hardware connection failed", "error", err)
		return fmt.Errorf("actuator: open: %w", err)
	}

	// Opening the port resets the microcontroller; writes during boot are lost.
	time.Sleep(l.grace)

	l.port = port
	l.connected = true
	l.logger.Info("hardware connected")
	return nil
}

// Connected reports whether the link currently holds an open transport.
func (l *Link) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

// SetIntensity sends a jaw intensity command. The value is clamped to
// [0, 100]. On write failure the link performs exactly one reconnect attempt
// and rewrites; a second failure gives up for this call (the next call will
// try to reconnect again). Errors are returned for observability but callers
// in the playback path ignore them by design.
func (l *Link) SetIntensity(value int) error {
	if value < 0 {
		value = 0
	}
	if value > 100 {
		value = 100
	}

	frame := []byte(fmt.Sprintf("%d\n", value))

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.connected {
		if err := l.connectLocked(); err != nil {
			return err
		}
	}

	if _, err := l.port.Write(frame); err != nil {
		l.logger.Warn("serial write failed, reconnecting once", "error", err)
		l.closeLocked()

		if rerr := l.connectLocked(); rerr != nil {
			return fmt.Errorf("actuator: write %d: %w", value, err)
		}
		if _, werr := l.port.Write(frame); werr != nil {
			l.closeLocked()
			return fmt.Errorf("actuator: write %d after reconnect: %w", value, werr)
		}
	}

	return nil
}

// Close zeroes the jaw best-effort and closes the transport.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.connected && l.port != nil {
		_, _ = l.port.Write([]byte("0\n"))
	}
	l.closeLocked()
	return nil
}

func (l *Link) closeLocked() {
	if l.port != nil {
		_ = l.port.Close()
		l.port = nil
	}
	if l.connected {
		l.logger.Info("hardware disconnected")
	}
	l.connected = false
}
