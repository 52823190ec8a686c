package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// GerritTimeLayout is the timestamp layout Gerrit uses, without the
// fractional part.
const GerritTimeLayout = "2006-01-02 15:04:05"

// Account is a Gerrit account reference
type Account struct {
	AccountID int    `json:"_account_id"`
	Name      string `json:"name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// Change represents a Gerrit change as returned by /changes/ with o=LABELS
type Change struct {
	Number    int      `json:"_number"`
	Project   string   `json:"project"`
	Subject   string   `json:"subject"`
	Status    string   `json:"status"`
	Updated   string   `json:"updated"` // "2006-01-02 15:04:05.000000000", UTC
	Owner     *Account `json:"owner"`
	Submitter *Account `json:"submitter,omitempty"`
	// Labels maps a label name ("Code-Review") to its vote summary. Entries
	// such as "approved" or "rejected" hold an account; others ("value",
	// "default_value") are scalars.
	Labels map[string]map[string]json.RawMessage `json:"labels,omitempty"`
}

// UpdatedTime parses Updated, discarding the fractional seconds
func (c Change) UpdatedTime() (time.Time, error) {
	ts, _, _ := strings.Cut(c.Updated, ".")
	t, err := time.ParseInLocation(GerritTimeLayout, ts, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing updated time of change %d: %w", c.Number, err)
	}
	return t, nil
}

// LabelVoters returns the account ids found under a label's vote entries.
// Non-object entries are skipped.
func (c Change) LabelVoters(label string) []int {
	var ids []int
	for _, raw := range c.Labels[label] {
		var acct struct {
			AccountID *int `json:"_account_id"`
		}
		if len(raw) == 0 || raw[0] != '{' {
			continue
		}
		if err := json.Unmarshal(raw, &acct); err != nil || acct.AccountID == nil {
			continue
		}
		ids = append(ids, *acct.AccountID)
	}
	return ids
}
