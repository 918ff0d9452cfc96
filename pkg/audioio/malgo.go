package audioio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
)

// matchDeviceName returns the index of the first device whose name contains
// want, case-insensitively, or -1. Substring matching lets config say "USB"
// for "USB PnP Sound Device".
func matchDeviceName(names []string, want string) int {
	want = strings.ToLower(want)
	for i, name := range names {
		if strings.Contains(strings.ToLower(name), want) {
			return i
		}
	}
	return -1
}

// findDeviceID resolves a configured device name against the enumerated
// devices of the given kind.
func findDeviceID(actx *malgo.AllocatedContext, kind malgo.DeviceType, want string) (malgo.DeviceID, error) {
	infos, err := actx.Devices(kind)
	if err != nil {
		return malgo.DeviceID{}, fmt.Errorf("audioio: enumerate devices: %w", err)
	}
	names := make([]string, len(infos))
	for i := range infos {
		names[i] = infos[i].Name()
	}
	idx := matchDeviceName(names, want)
	if idx < 0 {
		return malgo.DeviceID{}, fmt.Errorf("audioio: no device matching %q (have %v)", want, names)
	}
	return infos[idx].ID, nil
}

// MalgoSource captures audio using the miniaudio library.
// This is the production implementation on the robot.
type MalgoSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	streamCh chan AudioChunk

	actx     *malgo.AllocatedContext
	device   *malgo.Device
	deviceID malgo.DeviceID

	// Stats
	chunksRead  atomic.Int64
	samplesRead atomic.Int64
	overruns    atomic.Int64
}

// newMalgoSource creates a new miniaudio capture source.
func newMalgoSource(cfg Config, logger *slog.Logger) (*MalgoSource, error) {
	actx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug("miniaudio", "message", message)
	})
	if err != nil {
		return nil, fmt.Errorf("audioio: init context: %w", err)
	}

	s := &MalgoSource{
		cfg:      cfg,
		logger:   logger,
		actx:     actx,
		streamCh: make(chan AudioChunk, 10),
	}

	logger.Info("miniaudio source created",
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
	)

	return s, nil
}

// Start begins audio capture.
func (s *MalgoSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	devCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	devCfg.Capture.Format = malgo.FormatS16
	devCfg.Capture.Channels = uint32(s.cfg.Channels)
	devCfg.SampleRate = uint32(s.cfg.SampleRate)
	devCfg.PeriodSizeInMilliseconds = uint32(s.cfg.BufferDuration.Milliseconds())
	devCfg.Alsa.NoMMap = 1

	if s.cfg.Device != "" && s.cfg.Device != "default" {
		id, err := findDeviceID(s.actx, malgo.Capture, s.cfg.Device)
		if err != nil {
			return err
		}
		s.deviceID = id
		devCfg.Capture.DeviceID = s.deviceID.Pointer()
		s.logger.Info("capture device selected", "device", s.cfg.Device)
	}

	s.streamCh = make(chan AudioChunk, 10)

	onRecv := func(_, input []byte, frameCount uint32) {
		if len(input) == 0 {
			return
		}
		var chunk AudioChunk
		chunk.FromBytes(input, s.cfg.SampleRate, s.cfg.Channels)

		select {
		case s.streamCh <- chunk:
			s.chunksRead.Add(1)
			s.samplesRead.Add(int64(len(chunk.Samples)))
		default:
			s.overruns.Add(1)
		}
	}

	device, err := malgo.InitDevice(s.actx.Context, devCfg, malgo.DeviceCallbacks{Data: onRecv})
	if err != nil {
		return fmt.Errorf("audioio: init capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("audioio: start capture device: %w", err)
	}

	s.device = device
	s.running = true

	s.logger.Info("audio capture started", "backend", "malgo")

	return nil
}

// Stop halts audio capture.
func (s *MalgoSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.running = false
	if s.device != nil {
		s.device.Uninit()
		s.device = nil
	}
	close(s.streamCh)

	s.logger.Info("audio capture stopped")

	return nil
}

// Read reads the next audio chunk.
func (s *MalgoSource) Read(ctx context.Context) (AudioChunk, error) {
	select {
	case <-ctx.Done():
		return AudioChunk{}, ctx.Err()
	case chunk, ok := <-s.streamCh:
		if !ok {
			return AudioChunk{}, io.EOF
		}
		return chunk, nil
	}
}

// Stream returns the audio chunk channel.
func (s *MalgoSource) Stream() <-chan AudioChunk {
	return s.streamCh
}

// Config returns the audio configuration.
func (s *MalgoSource) Config() Config {
	return s.cfg
}

// Name returns "malgo".
func (s *MalgoSource) Name() string {
	return "malgo"
}

// Close releases resources.
func (s *MalgoSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.Stop()

	if s.actx != nil {
		_ = s.actx.Uninit()
		s.actx.Free()
		s.actx = nil
	}
	return nil
}

// Stats returns source statistics.
func (s *MalgoSource) Stats() SourceStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	return SourceStats{
		ChunksRead:  s.chunksRead.Load(),
		SamplesRead: s.samplesRead.Load(),
		Overruns:    s.overruns.Load(),
		Running:     running,
		Backend:     "malgo",
	}
}

var _ SourceWithStats = (*MalgoSource)(nil)

// MalgoSink plays audio using the miniaudio library.
// Writes append to an internal buffer that the device callback drains.
type MalgoSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	pending []byte

	actx     *malgo.AllocatedContext
	device   *malgo.Device
	deviceID malgo.DeviceID

	// Stats
	chunksWritten  atomic.Int64
	samplesWritten atomic.Int64
	underruns      atomic.Int64
}

// newMalgoSink creates a new miniaudio playback sink.
func newMalgoSink(cfg Config, logger *slog.Logger) (*MalgoSink, error) {
	actx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug("miniaudio", "message", message)
	})
	if err != nil {
		return nil, fmt.Errorf("audioio: init context: %w", err)
	}

	s := &MalgoSink{
		cfg:    cfg,
		logger: logger,
		actx:   actx,
	}

	logger.Info("miniaudio sink created",
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
	)

	return s, nil
}

// Start begins audio playback.
func (s *MalgoSink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	devCfg := malgo.DefaultDeviceConfig(malgo.Playback)
	devCfg.Playback.Format = malgo.FormatS16
	devCfg.Playback.Channels = uint32(s.cfg.Channels)
	devCfg.SampleRate = uint32(s.cfg.SampleRate)
	devCfg.PeriodSizeInMilliseconds = uint32(s.cfg.BufferDuration.Milliseconds())
	devCfg.Alsa.NoMMap = 1

	if s.cfg.Device != "" && s.cfg.Device != "default" {
		id, err := findDeviceID(s.actx, malgo.Playback, s.cfg.Device)
		if err != nil {
			return err
		}
		s.deviceID = id
		devCfg.Playback.DeviceID = s.deviceID.Pointer()
		s.logger.Info("playback device selected", "device", s.cfg.Device)
	}

	onSend := func(output, _ []byte, frameCount uint32) {
		s.mu.Lock()
		n := copy(output, s.pending)
		s.pending = s.pending[n:]
		running := s.running
		s.mu.Unlock()

		if n < len(output) {
			// Zero-fill the remainder; counts as an underrun only while
			// playback is active and audio is expected.
			for i := n; i < len(output); i++ {
				output[i] = 0
			}
			if running && n > 0 {
				s.underruns.Add(1)
			}
		}
	}

	device, err := malgo.InitDevice(s.actx.Context, devCfg, malgo.DeviceCallbacks{Data: onSend})
	if err != nil {
		return fmt.Errorf("audioio: init playback device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("audioio: start playback device: %w", err)
	}

	s.device = device
	s.running = true

	s.logger.Info("audio playback started", "backend", "malgo")

	return nil
}

// Stop halts audio playback.
func (s *MalgoSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.running = false
	if s.device != nil {
		s.device.Uninit()
		s.device = nil
	}
	s.pending = nil

	s.logger.Info("audio playback stopped")

	return nil
}

// Write queues an audio chunk for playback.
func (s *MalgoSink) Write(ctx context.Context, chunk AudioChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.running {
		return io.ErrClosedPipe
	}

	s.pending = append(s.pending, chunk.Bytes()...)
	s.chunksWritten.Add(1)
	s.samplesWritten.Add(int64(len(chunk.Samples)))

	return nil
}

// Flush waits until all queued audio has been handed to the device.
func (s *MalgoSink) Flush(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		s.mu.Lock()
		remaining := len(s.pending)
		running := s.running
		s.mu.Unlock()

		if remaining == 0 || !running {
			// One more buffer period so the device drains its own buffer.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.cfg.BufferDuration):
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Clear discards all queued audio immediately.
func (s *MalgoSink) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = nil
	return nil
}

// Config returns the audio configuration.
func (s *MalgoSink) Config() Config {
	return s.cfg
}

// Name returns "malgo".
func (s *MalgoSink) Name() string {
	return "malgo"
}

// Close releases resources.
func (s *MalgoSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.Stop()

	if s.actx != nil {
		_ = s.actx.Uninit()
		s.actx.Free()
		s.actx = nil
	}
	return nil
}

// Stats returns sink statistics.
func (s *MalgoSink) Stats() SinkStats {
	s.mu.Lock()
	running := s.running
	buffered := int64(len(s.pending) / 2)
	s.mu.Unlock()

	return SinkStats{
		ChunksWritten:   s.chunksWritten.Load(),
		SamplesWritten:  s.samplesWritten.Load(),
		Underruns:       s.underruns.Load(),
		Running:         running,
		Backend:         "malgo",
		BufferedSamples: buffered,
	}
}

var _ SinkWithStats = (*MalgoSink)(nil)
