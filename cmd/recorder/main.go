package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/johnnyzhao5619/echonote-recorder/internal/capture"
	"github.com/johnnyzhao5619/echonote-recorder/internal/config"
	"github.com/johnnyzhao5619/echonote-recorder/internal/engine"
	"github.com/johnnyzhao5619/echonote-recorder/internal/metrics"
	"github.com/johnnyzhao5619/echonote-recorder/internal/server"
	"github.com/johnnyzhao5619/echonote-recorder/internal/session"
	"github.com/johnnyzhao5619/echonote-recorder/internal/store"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "echonote-recorder"
	serviceVersion    = "1.0.0"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	inputPath := flag.String("input", "", "WAV file to record from (file capture device)")
	realtime := flag.Bool("realtime", false, "Pace file playback at wall-clock speed")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)
	logger.Info("Configuration loaded",
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Int("ring_capacity_seconds", cfg.Audio.RingCapacitySeconds),
		slog.Float64("vad_threshold", float64(cfg.VAD.Threshold)),
		slog.Int("silence_duration_ms", cfg.Segmenter.SilenceDurationMs),
		slog.String("transcription_endpoint", cfg.Transcription.Endpoint),
		slog.Bool("translation_enabled", cfg.Translation.Enabled),
		slog.String("output_directory", cfg.Output.Directory),
		slog.String("log_level", cfg.Logging.Level),
	)

	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "An -input WAV file is required")
		os.Exit(1)
	}

	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	speechClient, err := engine.NewSpeechClient(engine.SpeechClientConfig{
		Endpoint:      cfg.Transcription.Endpoint,
		APIKey:        cfg.Transcription.APIKey,
		Model:         cfg.Transcription.Model,
		Timeout:       cfg.Transcription.GetTimeout(),
		MaxRetries:    cfg.Transcription.MaxRetries,
		MaxConcurrent: cfg.Transcription.MaxConcurrent,
	})
	if err != nil {
		logger.Error("Failed to create speech client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var translationClient *engine.TranslationClient
	if cfg.Translation.Enabled {
		translationClient, err = engine.NewTranslationClient(engine.TranslationClientConfig{
			Endpoint:   cfg.Translation.Endpoint,
			APIKey:     cfg.Translation.APIKey,
			Timeout:    cfg.Translation.GetTimeout(),
			MaxRetries: cfg.Translation.MaxRetries,
		})
		if err != nil {
			logger.Error("Failed to create translation client", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	fileStore, err := store.NewFileStore(cfg.Output.Directory)
	if err != nil {
		logger.Error("Failed to create file store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	device := &capture.FileDevice{Path: *inputPath, Realtime: *realtime}

	var translator engine.TranslationEngine
	if translationClient != nil {
		translator = translationClient
	}
	recorder, err := session.NewRecorder(cfg, device, speechClient, translator, fileStore, nil, logger, appMetrics)
	if err != nil {
		logger.Error("Failed to create recorder", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, cfg, recorder,
			engineStats{speech: speechClient, translation: translationClient}, appMetrics)
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("HTTP API server initialized", slog.String("address", cfg.HTTP.Address()))
	}

	opts := session.Options{
		Language:            cfg.Transcription.Language,
		EnableTranslation:   cfg.Translation.Enabled,
		TargetLanguage:      cfg.Translation.TargetLanguage,
		RecordingFormat:     cfg.Output.RecordingFormat,
		SampleRate:          cfg.Audio.SampleRate,
		SaveRecording:       cfg.Output.SaveRecording,
		SaveTranscript:      cfg.Output.SaveTranscript,
		CreateCalendarEvent: cfg.Output.CreateCalendarEvent,
	}

	ctx := context.Background()
	if err := recorder.Start(ctx, *inputPath, opts); err != nil {
		logger.Error("Failed to start recording", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Mirror the live transcript to the log.
	stream, err := recorder.TranscriptStream()
	if err == nil {
		go func() {
			for seg := range stream {
				if seg.Failed {
					logger.Warn("Transcription placeholder", slog.Duration("start", seg.Start))
					continue
				}
				logger.Info("Transcript", slog.Duration("start", seg.Start), slog.String("text", seg.Text))
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Recording, press Ctrl+C to stop...")
	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := recorder.Stop(stopCtx)
	if err != nil {
		logger.Error("Failed to stop recording", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Recording finished",
		slog.String("session_id", result.SessionID),
		slog.Duration("duration", result.Duration),
		slog.Int("transcript_segments", len(result.Transcript)),
		slog.Int("translation_segments", len(result.Translation)),
		slog.String("recording_path", result.RecordingPath),
		slog.String("transcript_path", result.TranscriptPath),
	)
	for _, w := range result.Warnings {
		logger.Warn("Session warning", slog.String("warning", w))
	}

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	logger.Info("Service stopped")
}

// engineStats adapts the engine clients to the monitoring API.
type engineStats struct {
	speech      *engine.SpeechClient
	translation *engine.TranslationClient
}

func (e engineStats) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"transcription": e.speech.Stats(),
	}
	if e.translation != nil {
		stats["translation"] = e.translation.Stats()
	}
	return stats
}

// initLogger creates the structured logger from configuration.
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
