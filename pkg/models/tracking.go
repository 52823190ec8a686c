package models

import (
	"fmt"
	"strings"
	"time"
)

// TrackingRecord is an insertion-ordered mapping from item identifier to the
// tags explaining why the item matched.
type TrackingRecord[V any] struct {
	keys   []string
	values map[string]V
}

// NewTrackingRecord creates an empty record
func NewTrackingRecord[V any]() *TrackingRecord[V] {
	return &TrackingRecord[V]{values: make(map[string]V)}
}

// Has reports whether key was recorded
func (r *TrackingRecord[V]) Has(key string) bool {
	_, ok := r.values[key]
	return ok
}

// Get returns the value stored under key
func (r *TrackingRecord[V]) Get(key string) (V, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Set stores value under key. A new key is appended to the iteration order;
// an existing key keeps its position.
func (r *TrackingRecord[V]) Set(key string, value V) {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Keys returns the keys in insertion order
func (r *TrackingRecord[V]) Keys() []string {
	keys := make([]string, len(r.keys))
	copy(keys, r.keys)
	return keys
}

// Len returns the number of recorded keys
func (r *TrackingRecord[V]) Len() int {
	return len(r.keys)
}

// Items renders every entry with format, preserving insertion order.
func (r *TrackingRecord[V]) Items(format func(V) string) []Item {
	items := make([]Item, 0, len(r.keys))
	for _, k := range r.keys {
		items = append(items, Item{ID: k, Tags: format(r.values[k])})
	}
	return items
}

// Item is one line of an alert: the tracker-relative identifier and its
// rendered tags.
type Item struct {
	ID   string
	Tags string
}

// Alert carries everything needed to notify about one run's findings.
type Alert struct {
	Tracker    string // lowercase tracker name used in log lines, e.g. "gerrit"
	Display    string // tracker name used in subjects, e.g. "Gerrit"
	Objects    string // what the items are, e.g. "gerrit patch sets"
	SenderName string
	BaseURL    string
	User       string
	Since      time.Time
	Items      []Item
}

// SinceUTC formats the cutoff the way it appears in messages
func (a Alert) SinceUTC() string {
	return a.Since.UTC().Format("2006-01-02 15:04")
}

// IDs returns the item identifiers in alert order
func (a Alert) IDs() []string {
	ids := make([]string, len(a.Items))
	for i, it := range a.Items {
		ids[i] = it.ID
	}
	return ids
}

// Summary is the one-line record of a run that found activity.
func (a Alert) Summary() string {
	return fmt.Sprintf("Recent %s activity since %s for user %s: [%s]",
		a.Tracker, a.SinceUTC(), a.User, strings.Join(a.IDs(), ", "))
}
