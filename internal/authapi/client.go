// Package authapi is the bot-side client of the auth server's internal
// get-user-token endpoint.
package authapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/example/contest-reminder-bot/internal/model"
)

var (
	// ErrNotFound means the user never completed the connect flow.
	ErrNotFound = errors.New("authapi: token not found")
	// ErrForbidden means the internal API key was rejected.
	ErrForbidden = errors.New("authapi: forbidden")
)

// Client fetches stored credentials from the auth server. Every call goes to
// the network; credentials are deliberately not cached so a re-authorization
// takes effect immediately.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// UserToken returns the credential record stored for the user, ErrNotFound
// when none exists, ErrForbidden on a key mismatch, or a transport error.
func (c *Client) UserToken(ctx context.Context, userID int64) (*model.Credential, error) {
	q := url.Values{}
	q.Set("user_id", strconv.FormatInt(userID, 10))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/get-user-token?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden:
		return nil, ErrForbidden
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, errors.New("authapi: unexpected status " + resp.Status)
	}

	var cred model.Credential
	if err := json.NewDecoder(resp.Body).Decode(&cred); err != nil {
		return nil, err
	}
	return &cred, nil
}
