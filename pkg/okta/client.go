// Package okta is a minimal client for the Okta management API: System Log
// fetching, user lifecycle operations and factor enumeration.
package okta

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultPageLimit = 200
	maxPages         = 100
)

// Client represents an Okta management API client
type Client struct {
	orgURL     string
	apiToken   string
	httpClient *http.Client
}

// NewClient creates a new Okta API client. orgURL is the organization base
// URL, for example https://example.okta.com.
func NewClient(orgURL, apiToken string) *Client {
	return &Client{
		orgURL:   strings.TrimRight(strings.TrimSpace(orgURL), "/"),
		apiToken: strings.TrimSpace(apiToken),
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

// FetchLogs retrieves System Log events published after since, oldest first.
// A nil since asks Okta for its default recent window. Pagination follows
// the Link rel="next" headers up to a bounded page count.
func (c *Client) FetchLogs(ctx context.Context, since *time.Time) ([]map[string]any, error) {
	url := c.orgURL + "/api/v1/logs?limit=" + strconv.Itoa(defaultPageLimit)
	if since != nil {
		url += "&since=" + since.UTC().Format(time.RFC3339)
	}
	return c.fetchPaginated(ctx, url, "logs")
}

// ListUsers retrieves all users in the organization.
func (c *Client) ListUsers(ctx context.Context) ([]map[string]any, error) {
	url := c.orgURL + "/api/v1/users?limit=" + strconv.Itoa(defaultPageLimit)
	return c.fetchPaginated(ctx, url, "users")
}

// ListUserFactors retrieves the MFA factors enrolled for a user. A 404 means
// the user has no factors and yields an empty list, not an error.
func (c *Client) ListUserFactors(ctx context.Context, userID string) ([]map[string]any, error) {
	url := fmt.Sprintf("%s/api/v1/users/%s/factors", c.orgURL, userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	c.setAuthHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query factors: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read factors response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("okta API error (factors): %s - %s", resp.Status, string(body))
	}

	var factors []map[string]any
	if err := json.Unmarshal(body, &factors); err != nil {
		return nil, fmt.Errorf("failed to parse factors response: %w", err)
	}
	return factors, nil
}

// SuspendUser suspends a user account through the lifecycle API.
func (c *Client) SuspendUser(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("userID required")
	}

	url := fmt.Sprintf("%s/api/v1/users/%s/lifecycle/suspend", c.orgURL, userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	c.setAuthHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to suspend user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("failed to suspend user: status %d, body: %s", resp.StatusCode, string(body))
	}

	return nil
}

func (c *Client) fetchPaginated(ctx context.Context, url, what string) ([]map[string]any, error) {
	var items []map[string]any

	for page := 0; url != "" && page < maxPages; page++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		c.setAuthHeaders(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to query okta %s API: %w", what, err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read okta %s response: %w", what, err)
		}

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, fmt.Errorf("okta API authentication failed: %s", resp.Status)
		}
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("okta API error (%s): %s - %s", what, resp.Status, string(body))
		}

		var pageItems []map[string]any
		if err := json.Unmarshal(body, &pageItems); err != nil {
			return nil, fmt.Errorf("failed to parse %s response: %w", what, err)
		}
		items = append(items, pageItems...)

		if len(pageItems) < defaultPageLimit {
			break
		}
		url = nextLink(resp.Header)
	}

	return items, nil
}

// nextLink extracts the rel="next" URL from Okta's Link headers.
func nextLink(header http.Header) string {
	for _, link := range header.Values("Link") {
		parts := strings.Split(link, ";")
		if len(parts) < 2 {
			continue
		}
		url := strings.Trim(strings.TrimSpace(parts[0]), "<>")
		for _, attr := range parts[1:] {
			if strings.TrimSpace(attr) == `rel="next"` {
				return url
			}
		}
	}
	return ""
}

// setAuthHeaders sets authentication headers for Okta API requests
func (c *Client) setAuthHeaders(req *http.Request) {
	// Okta management API uses the SSWS token scheme
	req.Header.Set("Authorization", "SSWS "+c.apiToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
}
