// Package f1api is the typed client for the F1 statistics backend. It
// performs no caching of its own; orchestration lives in pitwall.
package f1api

import (
	"context"

	"github.com/pitsnap/paddock/fetch"
)

// Client wraps the F1 statistics backend endpoints.
type Client struct {
	api *fetch.Client
}

// New creates a client for the backend at baseURL. The backend takes no
// authentication.
func New(baseURL string, opts ...fetch.Option) (*Client, error) {
	api, err := fetch.New(baseURL, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{api: api}, nil
}

// Schedule fetches the season calendar.
func (c *Client) Schedule(ctx context.Context) (Schedule, error) {
	var s Schedule
	err := c.api.GetJSON(ctx, "/f1/schedule", nil, &s)
	return s, err
}

// NextRace fetches the next upcoming race.
func (c *Client) NextRace(ctx context.Context) (NextRace, error) {
	var n NextRace
	err := c.api.GetJSON(ctx, "/f1/next-race", nil, &n)
	return n, err
}

// LatestResults fetches the classification of the most recent race.
func (c *Client) LatestResults(ctx context.Context) (RaceResults, error) {
	var r RaceResults
	err := c.api.GetJSON(ctx, "/f1/latest-results", nil, &r)
	return r, err
}

// Standings fetches the current championship standings.
func (c *Client) Standings(ctx context.Context) (Standings, error) {
	var s Standings
	err := c.api.GetJSON(ctx, "/f1/standings", nil, &s)
	return s, err
}
