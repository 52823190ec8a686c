package gerrit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"user-tracker/internal/config"
	"user-tracker/pkg/models"
)

// Client represents an anonymous Gerrit REST API client
type Client struct {
	Config  *config.Config
	Client  *http.Client
	BaseURL string
}

// NewClient creates a new Gerrit client
func NewClient(cfg *config.Config) *Client {
	return &Client{
		Config:  cfg,
		Client:  &http.Client{Timeout: 15 * time.Second},
		BaseURL: cfg.Gerrit.BaseURL,
	}
}

// QueryURL builds the /changes/ URL with one query per relationship:
// open changes the user owns, open changes the user reviews but does not
// own, and closed changes the user owns.
func (c *Client) QueryURL(username string) string {
	q := url.Values{}
	q.Add("q", "is:open owner:"+username)
	q.Add("q", "is:open reviewer:"+username+" -owner:"+username)
	q.Add("q", "is:closed owner:"+username)
	q.Set("o", "LABELS")
	return strings.TrimRight(c.BaseURL, "/") + "/changes/?" + q.Encode()
}

// Changes fetches the user's changes. The result holds one page of changes
// per query, in query order.
func (c *Client) Changes(ctx context.Context, username string) ([][]models.Change, error) {
	endpoint := c.QueryURL(username)
	slog.Info("Fetching gerrit changes", "user", username, "url", endpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating changes request: %v", models.ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching changes: %v", models.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading changes response: %v", models.ErrTransport, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: error fetching changes: %s (URL: %s, Body: %s)", models.ErrTransport, resp.Status, endpoint, string(body))
	}

	payload, err := StripMagicPrefix(body)
	if err != nil {
		return nil, err
	}
	var pages [][]models.Change
	if err := json.Unmarshal(payload, &pages); err != nil {
		return nil, fmt.Errorf("%w: decoding changes: %v", models.ErrTransport, err)
	}
	return pages, nil
}

// StripMagicPrefix drops the first line of a Gerrit JSON response, which
// holds the ")]}'" guard against cross-site script inclusion.
func StripMagicPrefix(body []byte) ([]byte, error) {
	prefix, rest, found := bytes.Cut(body, []byte("\n"))
	if !found {
		return nil, fmt.Errorf("%w: response has no magic prefix line", models.ErrTransport)
	}
	if !bytes.HasPrefix(bytes.TrimSpace(prefix), []byte(")]}'")) {
		slog.Warn("Unexpected gerrit response prefix", "prefix", string(prefix))
	}
	return rest, nil
}
