package phabricator

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"user-tracker/internal/config"
	"user-tracker/pkg/models"
)

// Categories are the maniphest.search user constraints, in the order they
// are queried. The first category to report a task wins.
var Categories = []string{
	"assigned",
	"authorPHIDs",
	"closerPHIDs",
	"subscribers",
}

// Tracker reports a user's recent Maniphest task activity
type Tracker struct {
	Client *Client
	user   string
	phid   string
}

// NewTracker creates a tracker for the configured Phabricator user
func NewTracker(cfg *config.Config) *Tracker {
	return &Tracker{
		Client: NewClient(cfg),
		user:   cfg.Phabricator.User,
		phid:   cfg.Phabricator.PHID,
	}
}

func (t *Tracker) Name() string       { return "phabricator" }
func (t *Tracker) Display() string    { return "Phabricator" }
func (t *Tracker) Objects() string    { return "Phabricator objects" }
func (t *Tracker) SenderName() string { return "PhabricatorTracker" }
func (t *Tracker) BaseURL() string    { return t.Client.BaseURL }
func (t *Tracker) User() string       { return t.user }

// Collect queries every category and returns the matched tasks in the
// order they were first seen.
func (t *Tracker) Collect(ctx context.Context, cutoff time.Time) ([]models.Item, error) {
	phid := t.phid
	if phid == "" {
		var err error
		phid, err = t.Client.UserPHID(ctx, t.user)
		if err != nil {
			return nil, err
		}
		slog.Debug("Resolved phabricator user", "user", t.user, "phid", phid)
	}

	record := models.NewTrackingRecord[string]()
	for _, category := range Categories {
		tasks, err := t.Client.SearchTasks(ctx, category, phid, cutoff)
		if err != nil {
			return nil, err
		}
		slog.Info("Fetched maniphest tasks", "category", category, "total", len(tasks))
		AddTasks(record, category, tasks)
	}
	return record.Items(func(tag string) string { return "[" + tag + "]" }), nil
}

// AddTasks records each task under "T<id>" unless it is already present
func AddTasks(record *models.TrackingRecord[string], category string, tasks []models.Task) {
	tag := RoleTag(category)
	for _, task := range tasks {
		key := "T" + strconv.Itoa(task.ID)
		if record.Has(key) {
			continue
		}
		record.Set(key, tag)
	}
}

// RoleTag derives the tag for a category: "authorPHIDs" becomes "author",
// "subscribers" becomes "subscriber".
func RoleTag(category string) string {
	return strings.TrimSuffix(strings.TrimSuffix(category, "s"), "PHID")
}
