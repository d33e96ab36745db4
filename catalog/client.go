// Package catalog queries the Jikan REST API for anime metadata.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const DefaultBaseURL = "https://api.jikan.moe/v4"

const defaultLimit = 20

var (
	// ErrNetwork means the catalog API could not be reached or refused the request.
	ErrNetwork = errors.New("catalog unreachable")

	// ErrMalformed means the catalog API answered with something other than the
	// expected JSON shape.
	ErrMalformed = errors.New("malformed catalog response")
)

// Anime is one read-only result from the catalog. Score is 0 when unrated.
type Anime struct {
	MalID    int
	Name     string
	ImageURL string
	Score    float64
}

// list.Item interface for Bubble Tea
func (a Anime) Title() string       { return a.Name }
func (a Anime) Description() string { return "Score: " + a.ScoreText() }
func (a Anime) FilterValue() string { return a.Name }

// ScoreText formats the score for display, with N/A for unrated titles.
func (a Anime) ScoreText() string {
	if a.Score <= 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", a.Score)
}

type Client struct {
	base   string
	limit  int
	client *http.Client
}

func NewClient(base string, limit int) *Client {
	if base == "" {
		base = DefaultBaseURL
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	return &Client{
		base:   base,
		limit:  limit,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Jikan wraps every listing in a "data" array. Score is null for unrated titles.
type animePage struct {
	Data []struct {
		MalID  int    `json:"mal_id"`
		Title  string `json:"title"`
		Images struct {
			JPG struct {
				ImageURL string `json:"image_url"`
			} `json:"jpg"`
		} `json:"images"`
		Score *float64 `json:"score"`
	} `json:"data"`
}

// TopAiring returns the currently airing titles with the highest rank,
// capped at the configured limit.
func (c *Client) TopAiring(ctx context.Context) ([]Anime, error) {
	u := fmt.Sprintf("%s/top/anime?filter=airing&limit=%d", c.base, c.limit)
	return c.fetch(ctx, u)
}

// Search runs a keyword query. Debouncing and the minimum query length are the
// caller's concern; this fires exactly one request per call and never retries.
func (c *Client) Search(ctx context.Context, query string) ([]Anime, error) {
	u := fmt.Sprintf("%s/anime?q=%s&limit=%d", c.base, url.QueryEscape(query), c.limit)
	return c.fetch(ctx, u)
}

func (c *Client) fetch(ctx context.Context, u string) ([]Anime, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrNetwork, resp.StatusCode)
	}

	var page animePage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	// A missing "data" field is an empty result set, not an error.
	results := make([]Anime, 0, len(page.Data))
	for _, d := range page.Data {
		a := Anime{
			MalID:    d.MalID,
			Name:     d.Title,
			ImageURL: d.Images.JPG.ImageURL,
		}
		if d.Score != nil {
			a.Score = *d.Score
		}
		results = append(results, a)
	}
	return results, nil
}
