package cmd

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gravitrone/portal-cli/internal/config"
	"github.com/gravitrone/portal-cli/internal/realtime"
	"github.com/gravitrone/portal-cli/internal/ui"
)

func runTUI(cmd *cobra.Command) error {
	s, err := newSession(cmd, nil)
	if err != nil {
		if errors.Is(err, errNotLoggedIn) {
			fmt.Fprintln(cmd.OutOrStdout(), "not logged in. run 'portal login' first.")
		}
		return err
	}
	defer s.Close()

	live, err := s.realtime(s.applyTo())
	if err != nil {
		return err
	}
	engine := s.engine()

	app := ui.NewApp(ui.Deps{
		Client:   s.client,
		Config:   s.cfg,
		Store:    s.store,
		Bindings: s.bindings(),
		Engine:   engine,
		Live:     live,
	})
	defer app.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(gctx))
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("tui error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		err := live.Run(gctx)
		if errors.Is(err, realtime.ErrRetriesExhausted) {
			s.logger.Warn("live updates unavailable, continuing offline")
			return nil
		}
		return err
	})

	if s.cfg.File != "" {
		path, flags := s.cfg.File, cmd.Flags()
		g.Go(func() error {
			reload := func() (*config.Config, error) { return config.Load(path, flags) }
			onChange := func(next *config.Config) {
				s.client.SetAPIKey(next.APIKey)
				live.SetToken(next.APIKey)
				s.logger.Info("config reloaded", "path", path)
			}
			if err := config.Watch(gctx, path, config.DefaultDebounce, reload, onChange, s.logger); err != nil {
				s.logger.Warn("config watch stopped", "error", err)
			}
			return nil
		})
	}

	err = g.Wait()
	engine.Wait()
	return err
}
