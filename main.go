package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/raine/product-lens/config"
	"github.com/raine/product-lens/internal/app"
	"github.com/raine/product-lens/internal/imagesource"
	"github.com/raine/product-lens/internal/llm"
	"github.com/raine/product-lens/internal/web"
)

const shutdownTimeout = 10 * time.Second

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	// Try to load existing .env file
	config.LoadEnvFile()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	// JOURNAL_STREAM is set by systemd when running as a service.
	// Skip file logging under systemd, journald handles it.
	_, underSystemd := os.LookupEnv("JOURNAL_STREAM")
	if underSystemd || cfg.LogFile == "" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		// Local development: log to both stderr and file
		logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open log file")
		}
		defer logFile.Close()

		consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr}
		fileWriter := zerolog.ConsoleWriter{Out: logFile, NoColor: true}
		multiWriter := io.MultiWriter(consoleWriter, fileWriter)
		log.Logger = log.Output(multiWriter)

		log.Info().Str("logFile", cfg.LogFile).Msg("logging to file")
	}

	// Create context that cancels on SIGINT or SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	analyzer, err := llm.NewGeminiAnalyzer(ctx, cfg.APIKey, cfg.GeminiModel)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize gemini analyzer")
	}
	log.Info().Str("model", analyzer.Model()).Msg("gemini analyzer initialized")

	files := imagesource.NewFileLoader().WithMaxSize(cfg.MaxUploadBytes)
	camera := imagesource.NewCamera(imagesource.NewGoCVDevice(cfg.CameraDevice))

	controller := app.NewController(analyzer, camera, files)
	controller.Start()
	defer controller.Stop()

	server, err := web.NewServer(controller, analyzer, files)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize web server")
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", cfg.ListenAddr).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("shutdown with error")
	} else {
		log.Info().Msg("shutdown complete")
	}
}
