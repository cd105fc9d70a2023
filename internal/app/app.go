// Package app provides the core application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/expo-works/scrape/internal/auth"
	"github.com/expo-works/scrape/internal/config"
	"github.com/expo-works/scrape/internal/oracle"
	"github.com/expo-works/scrape/internal/oracle/gemini"
	"github.com/expo-works/scrape/internal/scraper"
)

// Application holds all application dependencies and manages their lifecycle.
//
// It is created once at startup and shared across all CLI commands.
// Use Close() to ensure proper resource cleanup on shutdown.
type Application struct {
	Config  *config.Config
	Logger  *zerolog.Logger
	Scraper *scraper.Scraper

	// Planner and Parser are nil when no API key is configured. Commands that
	// need them must check and instruct the user to run 'scrape keys set'.
	Planner oracle.Planner
	Parser  oracle.Parser

	startTime time.Time
}

// New creates and initializes a new Application with all dependencies.
//
// Logging is configured first, then the planning client when a key is
// available, then the scraper around both. A missing planner key is not an
// error; plan-free commands still work.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logLevel := zerolog.ErrorLevel // default: suppress non-verbose info logs
	switch cfg.LogLevel {
	case "debug":
		logLevel = zerolog.DebugLevel
	case "warn":
		logLevel = zerolog.WarnLevel
	case "error":
		logLevel = zerolog.ErrorLevel
	default:
		logLevel = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	var logWriter io.Writer
	if cfg.JSONLog {
		logWriter = os.Stderr
	} else {
		logWriter = zerolog.NewConsoleWriter()
	}
	logger := log.Output(logWriter).With().Timestamp().Logger()
	log.Logger = logger

	logger.Debug().
		Str("level", cfg.LogLevel).
		Bool("json", cfg.JSONLog).
		Msg("Logger initialized")

	var planner oracle.Planner
	var parser oracle.Parser
	if key, err := auth.GeminiAPIKey(); err == nil {
		client, cerr := gemini.NewClient(ctx, key)
		if cerr != nil {
			logger.Warn().Err(cerr).Msg("Planner client unavailable")
		} else {
			planner = client
			parser = client
			logger.Debug().Msg("Planner client initialized")
		}
	} else {
		logger.Debug().Msg("No planner API key configured")
	}

	app := &Application{
		Config:    cfg,
		Logger:    &logger,
		Scraper:   scraper.New(cfg, planner),
		Planner:   planner,
		Parser:    parser,
		startTime: time.Now(),
	}

	logger.Debug().Msg("Application initialized")
	return app, nil
}

// Close gracefully shuts down the application's resources.
func (a *Application) Close(ctx context.Context) error {
	if a == nil {
		return nil
	}
	if a.Scraper != nil {
		a.Scraper.Close()
	}
	a.Logger.Debug().
		Dur("uptime", time.Since(a.startTime)).
		Msg("Application closed")
	return nil
}
