package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"user-tracker/internal/activity"
	"user-tracker/internal/config"
	"user-tracker/internal/gerrit"
	"user-tracker/internal/interval"
	"user-tracker/internal/logger"
	"user-tracker/internal/phabricator"
	"user-tracker/pkg/models"
)

// runFunc performs the work of a subcommand once config is resolved
type runFunc func(ctx context.Context, cfg *config.Config, src activity.Source, loop bool) error

// options holds the flags shared by every subcommand
type options struct {
	configPath string
	interval   string
	emails     string
	debug      bool
	loop       bool
	user       string
	apiKey     string
	phid       string
	accountID  int
}

func newRootCmd(run runFunc) *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "user-tracker",
		Short:         "Email a summary of a user's recent tracker activity",
		Long:          `user-tracker checks Phabricator or Gerrit for objects a user recently touched and mails the list to the configured recipients.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "config.yaml", "Path to the configuration file")
	flags.StringVarP(&opts.interval, "interval", "i", "", "Look-back window, e.g. 30m, 1h, 2d")
	flags.StringVarP(&opts.emails, "email", "e", "", "Comma-separated recipient addresses")
	flags.BoolVar(&opts.debug, "debug", false, "Print the message instead of sending it")
	flags.BoolVar(&opts.loop, "loop", false, "Keep running, checking once per interval")
	flags.StringVarP(&opts.user, "user", "u", "", "Username to track")

	phabCmd := &cobra.Command{
		Use:   "phabricator",
		Short: "Track recent Phabricator task activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if err := cfg.ValidatePhabricator(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg, phabricator.NewTracker(cfg), opts.loop)
		},
	}
	phabCmd.Flags().StringVar(&opts.apiKey, "api-key", "", "Conduit API token")
	phabCmd.Flags().StringVar(&opts.phid, "phid", "", "User PHID, skips the lookup")

	gerritCmd := &cobra.Command{
		Use:   "gerrit",
		Short: "Track recent Gerrit change activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if err := cfg.ValidateGerrit(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg, gerrit.NewTracker(cfg), opts.loop)
		},
	}
	gerritCmd.Flags().IntVar(&opts.accountID, "account-id", 0, "Numeric Gerrit account id")

	rootCmd.AddCommand(phabCmd, gerritCmd)
	return rootCmd
}

// load reads the config file, initializes logging and applies the flags
// that were set on the command line.
func (o *options) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	o.apply(cmd, cfg)
	logger.Init(cfg)

	slog.Info("Loaded configuration",
		"command", cmd.Name(),
		"interval", cfg.Interval,
		"email_recipients", cfg.Emails,
		"debug", cfg.Debug,
		"log_file", cfg.Log.File,
		"log_level", cfg.Log.Level,
	)
	return cfg, nil
}

func (o *options) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed

	if changed("interval") {
		cfg.Interval = o.interval
	}
	if changed("email") {
		cfg.Emails = splitList(o.emails)
	}
	if changed("debug") {
		cfg.Debug = o.debug
	}
	if changed("user") {
		cfg.Phabricator.User = strings.TrimSpace(o.user)
		cfg.Gerrit.User = strings.TrimSpace(o.user)
	}
	if changed("api-key") {
		cfg.Phabricator.APIKey = strings.TrimSpace(o.apiKey)
	}
	if changed("phid") {
		cfg.Phabricator.PHID = strings.TrimSpace(o.phid)
	}
	if changed("account-id") {
		cfg.Gerrit.AccountID = o.accountID
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// runTracker runs one pass, or keeps polling when loop is set
func runTracker(ctx context.Context, cfg *config.Config, src activity.Source, loop bool) error {
	runner := activity.NewRunner(cfg)
	defer runner.Close()
	if !loop {
		return runner.Run(ctx, src)
	}

	every, err := interval.Parse(cfg.Interval)
	if err != nil {
		return err
	}
	if every <= 0 {
		return fmt.Errorf("loop period %q must be positive: %w", cfg.Interval, models.ErrInvalidInterval)
	}
	slog.Info("User tracking service started", "tracker", src.Name(), "every", every.String())
	if err := runner.Loop(ctx, src, every); err != nil {
		return fmt.Errorf("%s loop: %w", src.Name(), err)
	}
	slog.Info("Shutdown complete.")
	return nil
}
