// Package commands implements the consolectl command tree.
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/consentdesk/console/internal/app"
	"github.com/consentdesk/console/internal/config"
	"github.com/consentdesk/console/internal/logging"
	"github.com/consentdesk/console/internal/notify"
)

type rootOptions struct {
	configPath string
	logLevel   string
	version    string
}

// NewRootCmd creates the root command.
func NewRootCmd(version string) *cobra.Command {
	opts := &rootOptions{version: version}

	cmd := &cobra.Command{
		Use:          "consolectl",
		Short:        "Operate the consent console from the terminal",
		Long:         `consolectl lists and processes DSAR requests and browses the consent backend resources.`,
		Version:      version,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to console.yaml (default: ./console.yaml or /etc/consentdesk/console.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (trace|debug|info|warn|error)")

	cmd.AddCommand(
		newRequestsCmd(opts),
		newResourcesCmd(opts),
	)

	return cmd
}

// open loads configuration and wires the console. Notifications go to
// notifier in addition to the inbox; pass nil for none.
func (o *rootOptions) open(ctx context.Context, cmd *cobra.Command, notifier notify.Notifier) (*app.App, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg.Log = config.LogConfig{Level: o.logLevel, Format: "console"}
	logger := logging.NewWithWriter(cmd.ErrOrStderr(), cfg.Log, "consolectl", o.version)

	a, err := app.New(ctx, cfg, logger, app.Options{
		Notifier:      notifier,
		DisablePubSub: true,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// failures prints blocking and urgent notifications to the command's
// error stream.
func failures(cmd *cobra.Command) notify.Notifier {
	return notify.NotifierFunc(func(_ context.Context, n notify.Notification) {
		if n.Level == notify.LevelBlocking || n.Level == notify.LevelUrgent {
			fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render(n.Title+": "+n.Message))
		}
	})
}
