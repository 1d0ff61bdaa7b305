package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gravitrone/portal-cli/internal/api"
	"github.com/gravitrone/portal-cli/internal/realtime"
)

// WatchCmd returns `portal watch`, which prints live analysis updates until
// interrupted.
func WatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print live analysis updates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd)
		},
	}
}

func runWatch(ctx context.Context, cmd *cobra.Command) error {
	s, err := newSession(cmd, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer s.Close()

	out := cmd.OutOrStdout()
	var mu sync.Mutex
	printf := func(format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(out, format, args...)
	}

	apply := s.applyTo()
	live, err := s.realtime(func(msg realtime.Message) {
		apply(msg)
		if line := describeMessage(msg); line != "" {
			printf("%s\n", line)
		}
	})
	if err != nil {
		return err
	}
	states := live.Subscribe()
	defer live.Unsubscribe(states)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return live.Run(gctx)
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case state, ok := <-states:
				if !ok {
					return nil
				}
				printf("# %s\n", state)
			}
		}
	})
	return g.Wait()
}

// describeMessage renders one push as a line; heartbeats render empty.
func describeMessage(msg realtime.Message) string {
	switch msg.Type {
	case realtime.TypeConnected:
		if msg.Message != "" {
			return "connected: " + msg.Message
		}
		return "connected"
	case realtime.TypeDeleted:
		id, err := msg.DeletedID()
		if err != nil {
			return "deleted: " + err.Error()
		}
		return "deleted    " + id
	case realtime.TypeCreated, realtime.TypeUpdated, realtime.TypeEvaluated:
		a, err := msg.Analysis()
		if err != nil {
			return msg.Type + ": " + err.Error()
		}
		return fmt.Sprintf("%-10s %s  %s  %s", msg.Type, a.ID, a.Name, statusText(a.ComputationStatus)) + outputSummary(a)
	}
	return ""
}

func outputSummary(a api.Analysis) string {
	if len(a.Outputs) == 0 {
		return ""
	}
	var b []byte
	for _, o := range a.Outputs {
		b = append(b, "  "...)
		b = append(b, o.Name...)
		b = append(b, '=')
		switch {
		case o.Error != "":
			b = append(b, "error"...)
		case o.Value != nil:
			b = fmt.Appendf(b, "%g", *o.Value)
		default:
			b = append(b, '-')
		}
	}
	return string(b)
}
