// Package steam asks the Steam Web API whether a user is currently in game.
package steam

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/goodtune/onlinelimiter/internal/config"
	"github.com/tidwall/gjson"
)

const (
	summariesPath = "/ISteamUser/GetPlayerSummaries/v0002/"
	maxBodyBytes  = 1 << 20
)

// Client queries player summaries for a single Steam user.
type Client struct {
	baseURL    string
	apiKey     string
	steamID    string
	httpClient *http.Client
}

// New creates a client from the steam section of the configuration.
func New(cfg config.SteamConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.APIURL, "/"),
		apiKey:  cfg.APIKey,
		steamID: cfg.SteamID,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout(),
		},
	}
}

// CurrentGame returns the gameid of the user's current session, or "" when
// the user is not in game.
func (c *Client) CurrentGame(ctx context.Context) (string, error) {
	query := url.Values{}
	query.Set("key", c.apiKey)
	query.Set("steamids", c.steamID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+summariesPath+"?"+query.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build steam request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The error text carries the URL, and with it the API key
		return "", fmt.Errorf("steam request failed: %w", redact(err, c.apiKey))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("steam API returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read steam response: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("steam API returned invalid JSON")
	}

	return gjson.GetBytes(body, "response.players.0.gameid").String(), nil
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

func redact(err error, secret string) error {
	if secret == "" {
		return err
	}
	return &redactedError{
		msg: strings.ReplaceAll(err.Error(), url.QueryEscape(secret), "REDACTED"),
		err: err,
	}
}
