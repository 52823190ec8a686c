package gerrit

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"user-tracker/internal/config"
	"user-tracker/pkg/models"
)

// Roles are the relationships a user holds on one change: "Owner",
// "Submitter" and the names of labels the user voted on.
type Roles []string

// Tracker reports a user's recent Gerrit change activity
type Tracker struct {
	Client    *Client
	user      string
	accountID int
}

// NewTracker creates a tracker for the configured Gerrit account
func NewTracker(cfg *config.Config) *Tracker {
	return &Tracker{
		Client:    NewClient(cfg),
		user:      cfg.Gerrit.User,
		accountID: cfg.Gerrit.AccountID,
	}
}

func (t *Tracker) Name() string       { return "gerrit" }
func (t *Tracker) Display() string    { return "Gerrit" }
func (t *Tracker) Objects() string    { return "gerrit patch sets" }
func (t *Tracker) SenderName() string { return "GerritTracker" }
func (t *Tracker) BaseURL() string    { return t.Client.BaseURL }
func (t *Tracker) User() string       { return t.user }

// Collect fetches the user's changes and returns those updated since cutoff
// on which the user holds a role.
func (t *Tracker) Collect(ctx context.Context, cutoff time.Time) ([]models.Item, error) {
	pages, err := t.Client.Changes(ctx, t.user)
	if err != nil {
		return nil, err
	}

	record := models.NewTrackingRecord[[]Roles]()
	for _, page := range pages {
		slog.Debug("Filtering gerrit changes", "total", len(page))
		if err := AddChanges(record, page, t.accountID, cutoff); err != nil {
			return nil, err
		}
	}
	return record.Items(FormatRoles), nil
}

// AddChanges records every change updated at or after cutoff on which the
// account holds a role. A change number seen again appends its roles as a
// further entry instead of merging.
func AddChanges(record *models.TrackingRecord[[]Roles], changes []models.Change, accountID int, cutoff time.Time) error {
	for _, change := range changes {
		updated, err := change.UpdatedTime()
		if err != nil {
			return fmt.Errorf("%w: %v", models.ErrTransport, err)
		}
		if updated.Before(cutoff) {
			continue
		}

		roles := RolesOf(change, accountID)
		if len(roles) == 0 {
			continue
		}
		key := strconv.Itoa(change.Number)
		existing, _ := record.Get(key)
		record.Set(key, append(existing, roles))
	}
	return nil
}

// RolesOf lists the account's roles on a change. Labels are visited in name
// order and a label appears once per vote entry held by the account.
func RolesOf(change models.Change, accountID int) Roles {
	var roles Roles
	if change.Owner != nil && change.Owner.AccountID == accountID {
		roles = append(roles, "Owner")
	}
	if change.Submitter != nil && change.Submitter.AccountID == accountID {
		roles = append(roles, "Submitter")
	}

	labels := make([]string, 0, len(change.Labels))
	for label := range change.Labels {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		for _, id := range change.LabelVoters(label) {
			if id == accountID {
				roles = append(roles, label)
			}
		}
	}
	return roles
}

// FormatRoles renders the first role set flat and any later sets nested:
// [Owner, Code-Review, [Owner]].
func FormatRoles(sets []Roles) string {
	if len(sets) == 0 {
		return "[]"
	}
	parts := append([]string{}, sets[0]...)
	for _, extra := range sets[1:] {
		parts = append(parts, "["+strings.Join(extra, ", ")+"]")
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
