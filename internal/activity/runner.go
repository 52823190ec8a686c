// Package activity runs one tracking pass: compute the cutoff, collect the
// user's matching items from a tracker and report them.
package activity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"user-tracker/internal/config"
	"user-tracker/internal/interval"
	"user-tracker/internal/notifier"
	"user-tracker/pkg/models"
)

// Source is a tracker the runner can poll
type Source interface {
	Name() string       // lowercase, used in log lines
	Display() string    // used in email subjects
	Objects() string    // what the items are, used in email bodies
	SenderName() string // local part of the sender address
	BaseURL() string
	User() string
	Collect(ctx context.Context, cutoff time.Time) ([]models.Item, error)
}

// Runner performs tracking passes
type Runner struct {
	Config *config.Config
	// Email is required; Extra notifiers run after it and their failures
	// are only logged.
	Email     notifier.Notifier
	Extra     []notifier.Notifier
	SystemLog notifier.SystemLog
	Out       io.Writer
	Now       func() time.Time
}

// NewRunner wires the notifiers described by cfg
func NewRunner(cfg *config.Config) *Runner {
	r := &Runner{
		Config:    cfg,
		Email:     notifier.NewEmailNotifier(cfg),
		SystemLog: notifier.NewSyslog("user-tracker"),
		Out:       os.Stdout,
		Now:       time.Now,
	}
	if cfg.Notifiers.Teams.WebhookURL != "" && !cfg.Debug {
		r.Extra = append(r.Extra, notifier.NewTeamsNotifier(cfg))
	}
	return r
}

// Close releases the system log connection, if the system log holds one
func (r *Runner) Close() error {
	if c, ok := r.SystemLog.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Run performs one pass against src. Finding nothing is not an error.
func (r *Runner) Run(ctx context.Context, src Source) error {
	logger := slog.With("run_id", uuid.NewString(), "tracker", src.Name(), "user", src.User())

	cutoff, err := interval.Cutoff(r.Now(), r.Config.Interval)
	if err != nil {
		return err
	}
	logger.Info("Checking recent activity", "since", cutoff.UTC().Format(time.RFC3339))

	items, err := src.Collect(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("collecting %s activity: %w", src.Name(), err)
	}

	if len(items) == 0 {
		logger.Info("No recent activity")
		fmt.Fprintf(r.Out, "No recent %s activity found for user %s.\n", src.Name(), src.User())
		return nil
	}

	alert := models.Alert{
		Tracker:    src.Name(),
		Display:    src.Display(),
		Objects:    src.Objects(),
		SenderName: src.SenderName(),
		BaseURL:    src.BaseURL(),
		User:       src.User(),
		Since:      cutoff,
		Items:      items,
	}
	logger.Info("Sending activity notification", "items", len(items))
	if err := r.Email.Notify(ctx, alert); err != nil {
		return err
	}
	for _, n := range r.Extra {
		if err := n.Notify(ctx, alert); err != nil {
			logger.Error("Error notifying", "error", err)
		}
	}

	summary := alert.Summary()
	if r.Config.Debug {
		fmt.Fprintln(r.Out, summary)
		return nil
	}
	if err := r.SystemLog.Info(summary); err != nil {
		logger.Warn("Could not write summary to syslog", "error", err)
	}
	return nil
}

// Loop runs a pass every period until ctx is cancelled. Pass errors other
// than an invalid interval are logged and the loop continues.
func (r *Runner) Loop(ctx context.Context, src Source, every time.Duration) error {
	for {
		err := r.Run(ctx, src)
		switch {
		case errors.Is(err, models.ErrInvalidInterval):
			return err
		case err != nil && ctx.Err() == nil:
			slog.Error("Tracking pass failed", "tracker", src.Name(), "error", err)
		}

		slog.Info("Sleeping until next check...", "every", every.String())
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(every):
		}
	}
}
