package activity

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"user-tracker/internal/config"
	"user-tracker/internal/notifier"
	"user-tracker/internal/phabricator"
	"user-tracker/pkg/models"
)

var now = time.Date(2024, 4, 5, 10, 30, 0, 0, time.UTC)

type fakeSource struct {
	items  []models.Item
	err    error
	cutoff time.Time
	calls  int
}

func (f *fakeSource) Name() string       { return "gerrit" }
func (f *fakeSource) Display() string    { return "Gerrit" }
func (f *fakeSource) Objects() string    { return "gerrit patch sets" }
func (f *fakeSource) SenderName() string { return "GerritTracker" }
func (f *fakeSource) BaseURL() string    { return "https://gerrit.example.org/r/" }
func (f *fakeSource) User() string       { return "jdoe" }
func (f *fakeSource) Collect(_ context.Context, cutoff time.Time) ([]models.Item, error) {
	f.calls++
	f.cutoff = cutoff
	return f.items, f.err
}

type recordingNotifier struct {
	alerts []models.Alert
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, alert models.Alert) error {
	n.alerts = append(n.alerts, alert)
	return n.err
}

type fakeSystemLog struct {
	lines  []string
	closed bool
	err    error
}

func (s *fakeSystemLog) Close() error {
	s.closed = true
	return nil
}

func (s *fakeSystemLog) Info(msg string) error {
	s.lines = append(s.lines, msg)
	return s.err
}

func newTestRunner(cfg *config.Config) (*Runner, *recordingNotifier, *fakeSystemLog, *bytes.Buffer) {
	email := &recordingNotifier{}
	syslog := &fakeSystemLog{}
	var out bytes.Buffer
	return &Runner{
		Config:    cfg,
		Email:     email,
		SystemLog: syslog,
		Out:       &out,
		Now:       func() time.Time { return now },
	}, email, syslog, &out
}

func TestRunner_Run_NoActivity(t *testing.T) {
	r, email, syslog, out := newTestRunner(&config.Config{Interval: "1h"})
	src := &fakeSource{}

	require.NoError(t, r.Run(context.Background(), src))
	assert.Equal(t, now.Add(-time.Hour), src.cutoff)
	assert.Empty(t, email.alerts)
	assert.Empty(t, syslog.lines)
	assert.Equal(t, "No recent gerrit activity found for user jdoe.\n", out.String())
}

func TestRunner_Run_NotifiesAndLogs(t *testing.T) {
	r, email, syslog, out := newTestRunner(&config.Config{Interval: "2d"})
	extra := &recordingNotifier{err: errors.New("webhook down")}
	r.Extra = []notifier.Notifier{extra}
	src := &fakeSource{items: []models.Item{{ID: "12", Tags: "[Owner]"}, {ID: "9", Tags: "[Code-Review]"}}}

	require.NoError(t, r.Run(context.Background(), src))

	require.Len(t, email.alerts, 1)
	alert := email.alerts[0]
	assert.Equal(t, "gerrit", alert.Tracker)
	assert.Equal(t, "GerritTracker", alert.SenderName)
	assert.Equal(t, now.Add(-48*time.Hour), alert.Since)
	assert.Equal(t, src.items, alert.Items)
	assert.Len(t, extra.alerts, 1, "extra notifier failures are not fatal")

	assert.Equal(t, []string{"Recent gerrit activity since 2024-04-03 10:30 for user jdoe: [12, 9]"}, syslog.lines)
	assert.Empty(t, out.String())
}

func TestRunner_Run_DebugNeverWritesSystemLog(t *testing.T) {
	r, email, syslog, out := newTestRunner(&config.Config{Interval: "1h", Debug: true})
	src := &fakeSource{items: []models.Item{{ID: "12", Tags: "[Owner]"}}}

	require.NoError(t, r.Run(context.Background(), src))
	assert.Len(t, email.alerts, 1)
	assert.Empty(t, syslog.lines)
	assert.Equal(t, "Recent gerrit activity since 2024-04-05 09:30 for user jdoe: [12]\n", out.String())
}

func TestRunner_Run_InvalidIntervalBeforeNetwork(t *testing.T) {
	r, _, _, _ := newTestRunner(&config.Config{Interval: "1y"})
	src := &fakeSource{}

	err := r.Run(context.Background(), src)
	assert.True(t, errors.Is(err, models.ErrInvalidInterval), "got %v", err)
	assert.Zero(t, src.calls)
}

func TestRunner_Run_CollectError(t *testing.T) {
	r, email, _, _ := newTestRunner(&config.Config{Interval: "1h"})
	src := &fakeSource{err: models.ErrTransport}

	err := r.Run(context.Background(), src)
	assert.True(t, errors.Is(err, models.ErrTransport), "got %v", err)
	assert.Empty(t, email.alerts)
}

func TestRunner_Run_DeliveryError(t *testing.T) {
	r, email, syslog, _ := newTestRunner(&config.Config{Interval: "1h"})
	email.err = models.ErrDelivery
	src := &fakeSource{items: []models.Item{{ID: "1", Tags: "[Owner]"}}}

	err := r.Run(context.Background(), src)
	assert.True(t, errors.Is(err, models.ErrDelivery), "got %v", err)
	assert.Empty(t, syslog.lines)
}

func TestRunner_Loop_StopsOnCancel(t *testing.T) {
	r, _, _, _ := newTestRunner(&config.Config{Interval: "1h"})
	src := &fakeSource{err: models.ErrTransport}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Loop(ctx, src, time.Millisecond) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop after cancel")
	}
}

func TestRunner_Loop_InvalidInterval(t *testing.T) {
	r, _, _, _ := newTestRunner(&config.Config{Interval: "bogus"})
	err := r.Loop(context.Background(), &fakeSource{}, time.Hour)
	assert.True(t, errors.Is(err, models.ErrInvalidInterval), "got %v", err)
}

// TestRunner_Run_PhabricatorRoundTrip drives a real tracker and email
// notifier against a stubbed Conduit API.
func TestRunner_Run_PhabricatorRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		if r.PostForm.Get("constraints[assigned][0]") != "" {
			w.Write([]byte(`{"result":{"data":[{"id":123}]}}`))
			return
		}
		w.Write([]byte(`{"result":{"data":[]}}`))
	}))
	defer server.Close()

	cfg := &config.Config{Interval: "1h", Debug: true, Emails: []string{"a@example.org"}}
	cfg.Phabricator.BaseURL = server.URL + "/"
	cfg.Phabricator.User = "jdoe"
	cfg.Phabricator.APIKey = "key"
	cfg.Phabricator.PHID = "PHID-USER-1"

	var out bytes.Buffer
	email := notifier.NewEmailNotifier(cfg)
	email.Out = &out
	email.Hostname = func() string { return "host.example.org" }
	r := &Runner{
		Config:    cfg,
		Email:     email,
		SystemLog: &fakeSystemLog{},
		Out:       &out,
		Now:       func() time.Time { return now },
	}

	require.NoError(t, r.Run(context.Background(), phabricator.NewTracker(cfg)))
	assert.Contains(t, out.String(), "* "+server.URL+"/T123  [assigned]\n")
	assert.Contains(t, out.String(), "sender: PhabricatorTracker@host.example.org")
	assert.Contains(t, out.String(), "Recent phabricator activity since 2024-04-05 09:30 for user jdoe: [T123]")
}

func TestRunner_Run_PhabricatorEmptyResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":{"data":[]}}`))
	}))
	defer server.Close()

	cfg := &config.Config{Interval: "1h", Emails: []string{"a@example.org"}}
	cfg.Phabricator.BaseURL = server.URL + "/"
	cfg.Phabricator.User = "jdoe"
	cfg.Phabricator.PHID = "PHID-USER-1"

	r, email, syslog, out := newTestRunner(cfg)
	require.NoError(t, r.Run(context.Background(), phabricator.NewTracker(cfg)))
	assert.Empty(t, email.alerts)
	assert.Empty(t, syslog.lines)
	assert.Equal(t, "No recent phabricator activity found for user jdoe.\n", out.String())
}

func TestNewRunner(t *testing.T) {
	cfg := &config.Config{}
	cfg.Notifiers.Teams.WebhookURL = "https://webhook.url"
	r := NewRunner(cfg)
	assert.NotNil(t, r.Email)
	assert.Len(t, r.Extra, 1)

	cfg.Debug = true
	assert.Empty(t, NewRunner(cfg).Extra, "debug runs do not post to Teams")
}

func TestRunner_Close(t *testing.T) {
	r, _, syslog, _ := newTestRunner(&config.Config{Interval: "1h"})
	require.NoError(t, r.Close())
	assert.True(t, syslog.closed)

	assert.NoError(t, (&Runner{}).Close(), "no system log is not an error")
}

func TestRunner_Run_SystemLogFailureIsNotFatal(t *testing.T) {
	r, email, syslog, _ := newTestRunner(&config.Config{Interval: "1h"})
	syslog.err = errors.New("no syslog daemon")
	src := &fakeSource{items: []models.Item{{ID: "12", Tags: "[Owner]"}}}

	require.NoError(t, r.Run(context.Background(), src))
	assert.Len(t, email.alerts, 1)
	assert.Len(t, syslog.lines, 1)
}
