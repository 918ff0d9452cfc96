// Command nila runs the companion robot's voice loop: it listens on the
// microphone, transcribes what it hears, asks the language model for a
// reply, and speaks the reply while moving the jaw in sync.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mithlajmt/nila/internal/config"
	"github.com/mithlajmt/nila/internal/llm"
	ilog "github.com/mithlajmt/nila/internal/log"
	"github.com/mithlajmt/nila/pkg/actuator"
	"github.com/mithlajmt/nila/pkg/agent"
	"github.com/mithlajmt/nila/pkg/audioio"
	"github.com/mithlajmt/nila/pkg/capture"
	"github.com/mithlajmt/nila/pkg/player"
	"github.com/mithlajmt/nila/pkg/stt"
	"github.com/mithlajmt/nila/pkg/tts"
)

const greeting = "Hello! I'm Nila. Talk to me!"

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if *debug {
		cfg.LogLevel = "debug"
	}

	ilog.Init(cfg.LogLevel)
	logger := ilog.L()

	fmt.Println("🤖 Nila Voice Companion")
	fmt.Printf("   Speech: %s  TTS: %s  Serial: %s\n",
		cfg.SpeechProvider, cfg.TTSProvider, cfg.SerialPort)
	fmt.Println()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n👋 Shutting down...")
		cancel()
	}()

	// Audio devices.
	captureCfg := audioio.DefaultConfig()
	captureCfg.Device = cfg.CaptureDevice
	source, err := audioio.NewSource(captureCfg, logger)
	if err != nil {
		logger.Error("failed to open microphone", "error", err)
		os.Exit(1)
	}
	defer source.Close()

	playbackCfg := audioio.DefaultConfig()
	playbackCfg.Device = cfg.PlaybackDevice
	sink, err := audioio.NewSink(playbackCfg, logger)
	if err != nil {
		logger.Error("failed to open speaker", "error", err)
		os.Exit(1)
	}
	defer sink.Close()

	// Jaw actuator. A missing controller is not fatal: the robot speaks
	// without moving its mouth and reconnects when the hardware shows up.
	link := actuator.New(cfg.SerialPort, cfg.SerialBaud, actuator.WithLogger(logger))
	if err := link.Connect(); err != nil {
		logger.Warn("jaw controller unavailable, continuing without actuation")
	}
	defer link.Close()

	if err := source.Start(ctx); err != nil {
		logger.Error("failed to start capture", "error", err)
		os.Exit(1)
	}

	// Capture pipeline.
	calibrator := capture.NewCalibrator(
		capture.WithEnergyFloor(cfg.EnergyFloor),
		capture.WithRecalInterval(cfg.CalibrationInterval),
		capture.WithCalibratorLogger(logger),
	)
	calibrator.Calibrate(ctx, source)

	segmenter := capture.NewSegmenter(source, calibrator,
		capture.WithPause(cfg.PauseDuration),
		capture.WithMaxUtterance(cfg.MaxUtterance),
		capture.WithSegmenterLogger(logger),
	)

	recognizer := buildRecognizer(ctx, cfg, logger)
	defer recognizer.Close()

	synthesizer, err := buildSynthesizer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build synthesizer", "error", err)
		os.Exit(1)
	}
	defer synthesizer.Close()

	var responder llm.Responder
	if cfg.LLMAPIKey != "" {
		responder = llm.NewClient(cfg.LLMAPIKey,
			llm.WithBaseURL(cfg.LLMBaseURL),
			llm.WithModel(cfg.LLMModel),
			llm.WithSystemPrompt(cfg.LLMSystemPrompt),
			llm.WithHistoryLimit(cfg.LLMMaxHistory*2),
			llm.WithClientLogger(logger),
		)
	} else {
		logger.Warn("no LLM API key configured, using echo responder")
		responder = llm.NewEcho()
	}

	p := player.New(sink, link, player.WithLogger(logger))

	a := agent.New(source, segmenter, recognizer, synthesizer, p, responder,
		agent.WithListenTimeout(cfg.ListenTimeout),
		agent.WithLogger(logger),
	)

	a.Speak(ctx, greeting)
	fmt.Println("🎤 Listening - start talking!")

	if err := a.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("conversation loop ended", "error", err)
	}

	fmt.Println("👋 Goodbye!")
}

// buildRecognizer assembles the transcription router. The configured
// provider is primary; the other backend, when constructible, is the
// per-call fallback. A primary that cannot start is substituted at launch.
func buildRecognizer(ctx context.Context, cfg *config.Settings, logger *slog.Logger) stt.Recognizer {
	newWhisper := func() (stt.Recognizer, error) {
		return stt.NewWhisper(cfg.WhisperModel,
			stt.WithWhisperLanguage(cfg.WhisperLanguage),
			stt.WithWhisperLogger(logger),
		)
	}
	newGoogle := func() (stt.Recognizer, error) {
		return stt.NewGoogle(ctx, cfg.GoogleAPIKey,
			stt.WithGoogleLanguage(cfg.SpeechLanguage),
			stt.WithGoogleLogger(logger),
		)
	}

	var (
		rec stt.Recognizer
		err error
	)
	if cfg.SpeechProvider == config.SpeechWhisper {
		rec, err = stt.Build(newWhisper, newGoogle, config.SpeechWhisper, config.SpeechGoogle, logger)
	} else {
		rec, err = stt.Build(newGoogle, newWhisper, config.SpeechGoogle, config.SpeechWhisper, logger)
	}
	if err != nil {
		logger.Error("no speech backend available", "error", err)
		os.Exit(1)
	}
	return rec
}

// buildSynthesizer assembles the configured TTS backend behind the artifact
// cache. Backends that need credentials or local binaries fall back to the
// free gtts tier when they cannot start.
func buildSynthesizer(ctx context.Context, cfg *config.Settings, logger *slog.Logger) (tts.Synthesizer, error) {
	gttsLang := "en"
	if cfg.TTSLanguage != "" && cfg.TTSLanguage != "auto" {
		gttsLang = cfg.TTSLanguage
	}

	var backend tts.Synthesizer
	switch cfg.TTSProvider {
	case config.TTSGoogleCloud:
		gc, err := tts.NewGoogleCloud(ctx, cfg.GoogleAPIKey,
			tts.WithCloudVoice(cfg.TTSVoiceEnglish),
			tts.WithCloudLanguage(cfg.SpeechLanguage),
			tts.WithCloudSpeakingRate(cfg.TTSSpeakingRate),
			tts.WithCloudPitch(cfg.TTSPitch),
			tts.WithCloudLogger(logger),
		)
		if err != nil {
			logger.Warn("google cloud TTS unavailable, falling back to gtts", "error", err)
			backend = tts.NewGTTS(tts.WithGTTSLanguage(gttsLang), tts.WithGTTSLogger(logger))
		} else {
			backend = gc
		}
	case config.TTSPiper:
		piper, err := tts.NewPiper(cfg.PiperBinary, cfg.PiperModel, tts.WithPiperLogger(logger))
		if err != nil {
			logger.Warn("piper unavailable, falling back to gtts", "error", err)
			backend = tts.NewGTTS(tts.WithGTTSLanguage(gttsLang), tts.WithGTTSLogger(logger))
		} else {
			backend = piper
		}
	default:
		backend = tts.NewGTTS(tts.WithGTTSLanguage(gttsLang), tts.WithGTTSLogger(logger))
	}

	return tts.NewCache(backend, cfg.CacheDir,
		tts.WithCacheBudget(cfg.CacheBudgetBytes()),
		tts.WithCacheThreshold(cfg.CacheThreshold),
		tts.WithCacheLogger(logger),
	)
}
