package codeforces

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"
)

const (
	defaultBaseURL = "https://codeforces.com/api"
	userAgent      = "contest-reminder-bot/1.0"

	// the API returns the full contest history; we only ever care about the
	// nearest upcoming ones
	maxUpcoming = 10
)

// Contest is a single entry of the contest.list response.
type Contest struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	Phase            string `json:"phase"`
	StartTimeSeconds int64  `json:"startTimeSeconds"`
	DurationSeconds  int64  `json:"durationSeconds"`
}

// StartTime returns the contest start as a time.Time.
func (c Contest) StartTime() time.Time {
	return time.Unix(c.StartTimeSeconds, 0)
}

// Duration returns the contest length.
func (c Contest) Duration() time.Duration {
	return time.Duration(c.DurationSeconds) * time.Second
}

// URL returns the public contest page.
func (c Contest) URL() string {
	return fmt.Sprintf("https://codeforces.com/contests/%d", c.ID)
}

// Client is a minimal Codeforces API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient() *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
	}
}

// UpcomingContests fetches the contest list and returns the contests that
// have not started yet, ordered by start time, at most maxUpcoming of them.
// Any transport, HTTP status or decode problem is returned as an error;
// callers must treat an error as "try again later", never as an empty list.
func (c *Client) UpcomingContests(ctx context.Context) ([]Contest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/contest.list?gym=false", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("codeforces: unexpected status " + resp.Status)
	}

	var wrapper struct {
		Status  string    `json:"status"`
		Comment string    `json:"comment"`
		Result  []Contest `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wrapper); err != nil {
		return nil, fmt.Errorf("codeforces: decode response: %w", err)
	}
	if wrapper.Status != "OK" {
		return nil, fmt.Errorf("codeforces: api status %q: %s", wrapper.Status, wrapper.Comment)
	}

	upcoming := make([]Contest, 0, maxUpcoming)
	for _, contest := range wrapper.Result {
		if contest.Phase == "BEFORE" {
			upcoming = append(upcoming, contest)
		}
	}
	sort.Slice(upcoming, func(i, j int) bool {
		return upcoming[i].StartTimeSeconds < upcoming[j].StartTimeSeconds
	})
	if len(upcoming) > maxUpcoming {
		upcoming = upcoming[:maxUpcoming]
	}
	return upcoming, nil
}
