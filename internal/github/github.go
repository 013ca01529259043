package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultBaseURL is the REST endpoint of the default hosting service
const DefaultBaseURL = "https://api.github.com"

// Client represents a GitHub API client
type Client struct {
	Token   string
	BaseURL string
	HTTP    *http.Client
}

// NewClient creates a new GitHub client
func NewClient(token string) *Client {
	return &Client{
		Token:   token,
		BaseURL: DefaultBaseURL,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// CreateRepoRequest is the body of the repository creation call
type CreateRepoRequest struct {
	Name     string `json:"name"`
	Private  bool   `json:"private"`
	AutoInit bool   `json:"auto_init"`
}

// CreateRepo creates a repository owned by the authenticated user
func (c *Client) CreateRepo(ctx context.Context, name string, private bool) error {
	if c.Token == "" {
		return fmt.Errorf("cannot create repository %s: no API token configured", name)
	}

	body, err := json.Marshal(CreateRepoRequest{Name: name, Private: private, AutoInit: true})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/user/repos", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "token "+c.Token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("failed to create repository %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("GitHub API error: %s: %s", resp.Status, respBody)
	}
	return nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}
