package app

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/blackwell-systems/ctx/internal/analyzer"
	"github.com/blackwell-systems/ctx/internal/config"
	"github.com/blackwell-systems/ctx/internal/logging"
	"github.com/blackwell-systems/ctx/internal/spool"
	"github.com/blackwell-systems/ctx/internal/store"
)

// selfName is the invocation name whose own commands are kept out of
// usage reports.
const selfName = store.DefaultSelfName

// loadConfig resolves the data directory and config file, then applies the
// --db override.
func loadConfig() (config.Config, error) {
	dir, err := config.Dir()
	if err != nil {
		return config.Config{}, err
	}

	path := configPath
	if path == "" {
		path = filepath.Join(dir, "config.yaml")
	}

	cfg, err := config.Load(dir, path)
	if err != nil {
		return cfg, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	return cfg, nil
}

// session bundles what a command needs: config, logger and an initialized
// store. Close releases all of it.
type session struct {
	cfg      config.Config
	logger   zerolog.Logger
	logClose io.Closer
	store    *store.Store
}

// openSession loads config, sets up logging and opens the store, creating
// the schema if needed.
func openSession(ctx context.Context) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, logClose := logging.Setup(cfg.LogPath, cfg.LogLevel, debug)
	s := &session{cfg: cfg, logger: logger, logClose: logClose}

	st, err := store.New(cfg.DBPath, store.WithSelfName(selfName))
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := st.Initialize(ctx); err != nil {
		st.Close()
		s.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	s.store = st
	return s, nil
}

func (s *session) analyzer() *analyzer.Analyzer {
	return analyzer.New(s.store, analyzer.WithLogger(s.logger))
}

func (s *session) spool() *spool.Spool {
	return spool.New(s.cfg.SpoolPath, s.logger)
}

func (s *session) Close() {
	if s.store != nil {
		s.store.Close()
	}
	if s.logClose != nil {
		s.logClose.Close()
	}
}
