// Package app holds the bootstrap shared by every command: logging,
// configuration, and the store handle.
package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"github.com/scholarpipe/backend/internal/config"
	"github.com/scholarpipe/backend/internal/store"
)

// Setup initializes logging with a per-run session id, loads config for
// the chosen data root, and opens the store. Callers own closing the
// store.
func Setup(testMode, verbose bool) (*config.Config, *store.Store, error) {
	sessionID := uuid.NewString()
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	log.DefaultLogger = log.Logger{
		Level:      level,
		TimeFormat: "15:04:05",
		Writer:     &log.ConsoleWriter{ColorOutput: true, EndWithMessage: true},
		Context:    log.NewContext(nil).Str("session", sessionID).Value(),
	}

	cfg, err := config.Load(testMode)
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath()), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create data root: %w", err)
	}

	st, err := store.New(cfg.DBPath())
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	log.Info().Str("data_root", cfg.DataRoot).Bool("test_mode", testMode).Msg("pipeline starting")
	return cfg, st, nil
}

// UserAgent builds the polite-pool User-Agent for outbound requests.
func UserAgent(cfg *config.Config) string {
	ua := "scholarpipe/1.0 (+https://github.com/scholarpipe/backend"
	if cfg.ContactEmail != "" {
		ua += "; mailto:" + cfg.ContactEmail
	}
	return ua + ")"
}

// Fatal logs the error and exits non-zero.
func Fatal(err error) {
	log.Error().Err(err).Msg("fatal")
	os.Exit(1)
}
