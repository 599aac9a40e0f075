package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/d1nch8g/speechform/config"
	"github.com/d1nch8g/speechform/engine"
	"github.com/d1nch8g/speechform/sound"
	"github.com/d1nch8g/speechform/tts"
	"github.com/d1nch8g/speechform/utterance"
	"github.com/d1nch8g/speechform/voices"
	"github.com/d1nch8g/speechform/web"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	if err := setupLogging(cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to setup logging")
	}

	ttsClient, err := tts.New(cfg.Backend, tts.Config{
		EspeakBinary:   cfg.EspeakBinary,
		YandexAPIKey:   cfg.YandexAPIKey,
		YandexFolderID: cfg.YandexFolderID,
		YandexModel:    cfg.YandexModel,
		YandexFormat:   cfg.YandexFormat,
	})
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Backend).Msg("Failed to create TTS client")
	}

	player := sound.NewPortaudioPlayer(sound.PlayerConfig{FramesPerBuffer: cfg.FramesPerBuffer})
	eng := engine.NewEngine(engine.EngineConfig{
		QueueSize:        cfg.QueueSize,
		SynthesisTimeout: cfg.SynthesisTimeout,
	}, ttsClient, player)
	defer func() {
		if err := eng.Stop(); err != nil {
			log.Error().Err(err).Msg("Failed to stop engine")
		}
	}()

	controller := utterance.NewController(eng)
	dir := controller.RefreshDirectory()
	if dir.Empty() {
		log.Warn().Str("backend", cfg.Backend).Msg("No voices available yet; use Refresh voices once the engine has loaded them")
	} else {
		log.Info().
			Int("voices", len(dir.Voices)).
			Strs("languages", dir.Languages).
			Msg("Voices discovered")
	}

	if cfg.ListVoices {
		printDirectory(cfg.Backend, dir)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := eng.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Speech engine stopped")
			stop()
		}
	}()

	if cfg.WatchVoicesDir != "" {
		go func() {
			err := voices.Watch(ctx, cfg.WatchVoicesDir, voices.DefaultWatchDebounce, func() {
				dir := controller.RefreshDirectory()
				log.Info().Int("voices", len(dir.Voices)).Msg("Voice directory refreshed")
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Str("dir", cfg.WatchVoicesDir).Msg("Voice watch stopped")
			}
		}()
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           web.NewServer(controller, log.Logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP shutdown failed")
		}
	}()

	log.Info().Str("addr", cfg.ListenAddr).Msg("Serving speech form")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("HTTP server failed")
	}
}

func setupLogging(cfg *config.Config) error {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		log.Logger = zerolog.New(f).With().Timestamp().Logger()
	}

	return nil
}

func printDirectory(backend string, dir voices.Directory) {
	fmt.Fprintf(os.Stdout, "Backend: %s\n", backend)
	fmt.Fprintf(os.Stdout, "Languages: %s\n", strings.Join(dir.Languages, ", "))
	fmt.Fprintf(os.Stdout, "Available voices (%d):\n", len(dir.Voices))
	for _, v := range dir.Voices {
		fmt.Fprintf(os.Stdout, "  %-24s %-28s %s\n", v.ID, v.Name, v.Language)
	}
}
