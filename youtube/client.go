// Package youtube finds embeddable race videos through the YouTube
// Data API.
package youtube

import (
	"context"
	"strconv"
	"strings"

	"github.com/pitsnap/paddock/fetch"
)

// DefaultBaseURL is the production API host.
const DefaultBaseURL = "https://www.googleapis.com/youtube/v3"

// DefaultMaxResults bounds a search when the caller does not.
const DefaultMaxResults = 5

// Video is one search hit.
type Video struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Channel     string `json:"channel"`
	Thumbnail   string `json:"thumbnail"`
	PublishedAt string `json:"published_at"`
}

// VideoStatus is the status part of a video resource.
type VideoStatus struct {
	ID         string
	Embeddable bool
	Privacy    string
}

// Client calls the YouTube Data API with a fixed API key.
type Client struct {
	api *fetch.Client
	key string
}

// NewClient returns a client for the API at baseURL, or the production
// host when baseURL is empty.
func NewClient(apiKey, baseURL string, opts ...fetch.Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	api, err := fetch.New(baseURL, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{api: api, key: apiKey}, nil
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			ChannelTitle string `json:"channelTitle"`
			PublishedAt  string `json:"publishedAt"`
			Thumbnails   struct {
				Medium struct {
					URL string `json:"url"`
				} `json:"medium"`
			} `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

// Search runs a video search and returns up to max hits.
func (c *Client) Search(ctx context.Context, query string, max int) ([]Video, error) {
	if max <= 0 {
		max = DefaultMaxResults
	}

	q := map[string]string{
		"part":       "snippet",
		"type":       "video",
		"q":          query,
		"maxResults": strconv.Itoa(max),
		"key":        c.key,
	}

	var resp searchResponse
	if err := c.api.GetJSON(ctx, "/search", q, &resp); err != nil {
		return nil, err
	}

	videos := make([]Video, 0, len(resp.Items))
	for _, it := range resp.Items {
		if it.ID.VideoID == "" {
			continue
		}
		videos = append(videos, Video{
			ID:          it.ID.VideoID,
			Title:       it.Snippet.Title,
			Channel:     it.Snippet.ChannelTitle,
			Thumbnail:   it.Snippet.Thumbnails.Medium.URL,
			PublishedAt: it.Snippet.PublishedAt,
		})
	}
	return videos, nil
}

type videosResponse struct {
	Items []struct {
		ID     string `json:"id"`
		Status struct {
			Embeddable    bool   `json:"embeddable"`
			PrivacyStatus string `json:"privacyStatus"`
		} `json:"status"`
	} `json:"items"`
}

// Videos fetches the status part for the given video ids.
func (c *Client) Videos(ctx context.Context, ids []string) ([]VideoStatus, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	q := map[string]string{
		"part": "status",
		"id":   strings.Join(ids, ","),
		"key":  c.key,
	}

	var resp videosResponse
	if err := c.api.GetJSON(ctx, "/videos", q, &resp); err != nil {
		return nil, err
	}

	statuses := make([]VideoStatus, 0, len(resp.Items))
	for _, it := range resp.Items {
		statuses = append(statuses, VideoStatus{
			ID:         it.ID,
			Embeddable: it.Status.Embeddable,
			Privacy:    it.Status.PrivacyStatus,
		})
	}
	return statuses, nil
}

// Embeddable returns the subset of ids that can be embedded in a
// player, preserving the input order.
func (c *Client) Embeddable(ctx context.Context, ids []string) ([]string, error) {
	statuses, err := c.Videos(ctx, ids)
	if err != nil {
		return nil, err
	}

	ok := make(map[string]bool, len(statuses))
	for _, st := range statuses {
		if st.Embeddable && st.Privacy == "public" {
			ok[st.ID] = true
		}
	}

	var out []string
	for _, id := range ids {
		if ok[id] {
			out = append(out, id)
		}
	}
	return out, nil
}
