package phabricator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"user-tracker/internal/config"
	"user-tracker/pkg/models"
)

// Client represents a Phabricator Conduit API client
type Client struct {
	Config  *config.Config
	Client  *http.Client
	BaseURL string
}

// NewClient creates a new Conduit client
func NewClient(cfg *config.Config) *Client {
	return &Client{
		Config:  cfg,
		Client:  &http.Client{Timeout: 15 * time.Second},
		BaseURL: cfg.Phabricator.BaseURL,
	}
}

// Call POSTs params to a Conduit method and returns the raw "result". The
// API token is added to params; a nil params map is a caller bug.
func (c *Client) Call(ctx context.Context, method string, params url.Values) (json.RawMessage, error) {
	if params == nil {
		return nil, fmt.Errorf("%w: %s called without constraints", models.ErrInvalidConstraintPayload, method)
	}

	form := url.Values{"api.token": {c.Config.Phabricator.APIKey}}
	for k, v := range params {
		form[k] = v
	}

	endpoint := c.endpoint(method)
	slog.Debug("Calling Conduit method", "method", method, "url", endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: creating %s request: %v", models.ErrTransport, method, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: calling %s: %v", models.ErrTransport, method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s response: %v", models.ErrTransport, method, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s failed: %s (URL: %s, Body: %s)", models.ErrTransport, method, resp.Status, endpoint, string(body))
	}

	var cResp models.ConduitResponse
	if err := json.Unmarshal(body, &cResp); err != nil {
		return nil, fmt.Errorf("%w: decoding %s response: %v", models.ErrTransport, method, err)
	}
	if cResp.ErrorCode != nil {
		info := ""
		if cResp.ErrorInfo != nil {
			info = *cResp.ErrorInfo
		}
		return nil, fmt.Errorf("%w: %s returned %s: %s", models.ErrTransport, method, *cResp.ErrorCode, info)
	}
	return cResp.Result, nil
}

// UserPHID looks up the PHID of a username via user.search
func (c *Client) UserPHID(ctx context.Context, username string) (string, error) {
	raw, err := c.Call(ctx, "user.search", url.Values{
		"constraints[usernames][0]": {username},
	})
	if err != nil {
		return "", err
	}

	var result models.SearchResult[models.User]
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("%w: decoding user.search result: %v", models.ErrTransport, err)
	}
	if len(result.Data) == 0 || result.Data[0].PHID == "" {
		return "", fmt.Errorf("%w: no phabricator user named %q", models.ErrTransport, username)
	}
	return result.Data[0].PHID, nil
}

// SearchTasks returns the first page of tasks modified since cutoff where
// the user identified by phid matches the given constraint category.
func (c *Client) SearchTasks(ctx context.Context, category, phid string, cutoff time.Time) ([]models.Task, error) {
	raw, err := c.Call(ctx, "maniphest.search", url.Values{
		"constraints[" + category + "][0]": {phid},
		"constraints[modifiedStart]":       {strconv.FormatInt(cutoff.Unix(), 10)},
		"order":                            {"updated"},
	})
	if err != nil {
		return nil, err
	}

	var result models.SearchResult[models.Task]
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: decoding maniphest.search result: %v", models.ErrTransport, err)
	}
	if result.Cursor.After != nil {
		slog.Warn("More maniphest results than one page; only the first page is reported",
			"category", category, "limit", result.Cursor.Limit)
	}
	return result.Data, nil
}

func (c *Client) endpoint(method string) string {
	return strings.TrimRight(c.BaseURL, "/") + "/api/" + method
}
