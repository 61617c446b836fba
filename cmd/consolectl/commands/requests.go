package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/consentdesk/console/internal/dsar"
	"github.com/consentdesk/console/internal/notify"
)

func newRequestsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "requests",
		Aliases: []string{"dsar"},
		Short:   "Work with data subject access requests",
	}

	cmd.AddCommand(
		newRequestsListCmd(opts),
		newRequestsWatchCmd(opts),
		newRequestsProcessCmd(opts),
		newRequestsStatsCmd(opts),
	)
	return cmd
}

func newRequestsListCmd(opts *rootOptions) *cobra.Command {
	var search, status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List requests with their recommendations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := opts.open(ctx, cmd, failures(cmd))
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Board.Load(ctx); err != nil {
				return fmt.Errorf("loading requests: %w", err)
			}
			renderRequests(cmd.OutOrStdout(), a.Board.Entries(dsar.Query(search, status)))
			return nil
		},
	}

	cmd.Flags().StringVar(&search, "search", "", "Match request id or requester name or email")
	cmd.Flags().StringVar(&status, "status", "", "Only show requests with this status")
	return cmd
}

func newRequestsWatchCmd(opts *rootOptions) *cobra.Command {
	var search, status string
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Refresh the request list until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// Every successful load of the board triggers a redraw.
			loaded := make(chan struct{}, 1)
			onLoad := notify.NotifierFunc(func(_ context.Context, n notify.Notification) {
				if n.Source == dsar.ViewName && n.Level == notify.LevelInfo {
					select {
					case loaded <- struct{}{}:
					default:
					}
				}
			})

			a, err := opts.open(ctx, cmd, notify.Multi(failures(cmd), onLoad))
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Board.Load(ctx); err != nil {
				return fmt.Errorf("loading requests: %w", err)
			}
			a.Board.StartAutoRefresh(interval)

			out := cmd.OutOrStdout()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-loaded:
					fmt.Fprintf(out, "%s\n", mutedStyle.Render("updated "+a.Board.Now().Format(time.Kitchen)))
					renderRequests(out, a.Board.Entries(dsar.Query(search, status)))
				}
			}
		},
	}

	cmd.Flags().StringVar(&search, "search", "", "Match request id or requester name or email")
	cmd.Flags().StringVar(&status, "status", "", "Only show requests with this status")
	cmd.Flags().DurationVar(&interval, "interval", 30*time.Second, "Refresh interval")
	return cmd
}

func newRequestsProcessCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "process <id>",
		Short: "Auto-process a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := opts.open(ctx, cmd, failures(cmd))
			if err != nil {
				return err
			}
			defer a.Close()

			id := args[0]
			if err := a.Board.Process(ctx, id); err != nil {
				return fmt.Errorf("processing %s: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Request %s processed.\n", id)
			return nil
		},
	}
}

func newRequestsStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarise requests by status, type and urgency",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := opts.open(ctx, cmd, failures(cmd))
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Board.Load(ctx); err != nil {
				return fmt.Errorf("loading requests: %w", err)
			}
			renderStats(cmd.OutOrStdout(), a.Board.Stats())
			return nil
		},
	}
}
