package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/gravitrone/portal-cli/internal/api"
	"github.com/gravitrone/portal-cli/internal/binding"
	"github.com/gravitrone/portal-cli/internal/config"
	"github.com/gravitrone/portal-cli/internal/logging"
	"github.com/gravitrone/portal-cli/internal/realtime"
	"github.com/gravitrone/portal-cli/internal/store"
	"github.com/gravitrone/portal-cli/internal/suggest"
)

// errNotLoggedIn is returned when no api key can be resolved.
var errNotLoggedIn = errors.New("not logged in. run 'portal login' first")

// session is everything one invocation shares: config, logger, client and
// the caches built on it.
type session struct {
	cfg      *config.Config
	logger   *slog.Logger
	closeLog func() error
	client   *api.Client
	store    *store.Store
	index    *suggest.Index
}

func configPath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	return path
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath(cmd), cmd.Flags())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", errNotLoggedIn, err)
		}
		return nil, err
	}
	return cfg, nil
}

// newSession loads config and wires the shared services. logOut receives
// logs when no log file is configured; nil discards them.
func newSession(cmd *cobra.Command, logOut io.Writer) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return newSessionFromConfig(cfg, logOut)
}

func newSessionFromConfig(cfg *config.Config, logOut io.Writer) (*session, error) {
	logger, closeLog, err := logging.New(logging.Options{
		Level:    cfg.LogLevel,
		File:     cfg.LogFile,
		Fallback: logOut,
	})
	if err != nil {
		return nil, err
	}

	client := api.NewClient(cfg.BaseURL, cfg.APIKey)
	client.SetLogger(logger)

	return &session{
		cfg:      cfg,
		logger:   logger,
		closeLog: closeLog,
		client:   client,
		store:    store.New(store.Options{Fetcher: client, Logger: logger}),
		index: suggest.NewIndex(client, suggest.IndexOptions{
			TTL:       cfg.Suggest.TTL,
			SeedLimit: cfg.Suggest.SeedLimit,
			Logger:    logger,
		}),
	}, nil
}

func (s *session) engine() *suggest.Engine {
	return suggest.NewEngine(s.index, suggest.EngineOptions{
		Limit:  s.cfg.Suggest.Limit,
		Logger: s.logger,
	})
}

func (s *session) bindings() *binding.Controller {
	return binding.NewController(s.client, s.store, s.logger)
}

// realtime builds the live update client for the configured server.
func (s *session) realtime(handler realtime.Handler) (*realtime.Client, error) {
	endpoint, err := realtime.Endpoint(s.cfg.BaseURL, s.cfg.Realtime.Path)
	if err != nil {
		return nil, fmt.Errorf("realtime endpoint: %w", err)
	}
	return realtime.New(realtime.Options{
		URL:         endpoint,
		Token:       s.cfg.APIKey,
		Heartbeat:   s.cfg.Realtime.Heartbeat,
		BackoffBase: s.cfg.Realtime.BackoffBase,
		BackoffMax:  s.cfg.Realtime.BackoffMax,
		MaxAttempts: s.cfg.Realtime.MaxAttempts,
		Handler:     handler,
		Logger:      s.logger,
	}), nil
}

// applyTo returns a realtime handler that feeds the store.
func (s *session) applyTo() realtime.Handler {
	return func(msg realtime.Message) {
		if err := s.store.Apply(msg); err != nil {
			s.logger.Warn("realtime message dropped", "type", msg.Type, "error", err)
		}
	}
}

func (s *session) Close() error {
	s.store.Wait()
	return s.closeLog()
}
