package jira

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opsmetrics/jiralog/internal/config"
)

// searchFields is the field list requested on every issue search.
var searchFields = strings.Join([]string{
	"assignee",
	"created",
	"creator",
	"customfield_10002", // Story Points
	"duedate",
	"issuetype",
	"labels",
	"lastViewed",
	"priority",
	"project",
	"reporter",
	"resolution",
	"resolutiondate",
	"status",
	"summary",
	"updated",
}, ",")

// maxConcurrentPages caps parallel page fetches for one search.
const maxConcurrentPages = 5

// Client is a Jira REST API v2 client.
type Client struct {
	baseURL    string
	authHeader string
	httpClient *http.Client
}

// NewClient creates a new Jira client from the given config. The config is
// copied into the client; there are no shared mutable request defaults.
func NewClient(cfg config.Config) *Client {
	creds := base64.StdEncoding.EncodeToString([]byte(cfg.Email + ":" + cfg.Token))
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/") + "/rest/api/2",
		authHeader: "Basic " + creds,
		httpClient: &http.Client{},
	}
}

// BuildJQL combines the project scope, the relative recency bound, and the
// watermark lower bound into one search expression. Note the JQL date
// predicate only has minute resolution, so the minute matching the watermark
// is always re-returned; callers are responsible for skipping already-seen
// issues.
func BuildJQL(projects []string, dayRange int, watermark time.Time) string {
	return fmt.Sprintf("project in (%s) and updated > -%dd and updated > '%s'",
		strings.Join(projects, ","), dayRange, watermark.UTC().Format("2006/01/02 15:04"))
}

// SearchAll fetches every page of results for the given JQL expression. The
// first page is fetched synchronously to learn the total and the page size
// the server actually honors; the remaining pages are fetched concurrently.
// A failed page fetch cancels the rest. Pages are returned in offset order.
func (c *Client) SearchAll(ctx context.Context, jql string, pageSize int) ([]*SearchResponse, error) {
	first, err := c.search(ctx, jql, 0, pageSize)
	if err != nil {
		return nil, err
	}

	inc := first.MaxResults
	start := len(first.Issues)
	if inc <= 0 || start >= first.Total {
		return []*SearchResponse{first}, nil
	}

	var offsets []int
	for i := start; i < first.Total; i += inc {
		offsets = append(offsets, i)
	}

	pages := make([]*SearchResponse, len(offsets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentPages)
	for i, off := range offsets {
		i, off := i, off
		g.Go(func() error {
			page, err := c.search(gctx, jql, off, inc)
			if err != nil {
				return err
			}
			pages[i] = page
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return append([]*SearchResponse{first}, pages...), nil
}

// search fetches a single result page.
func (c *Client) search(ctx context.Context, jql string, startAt, maxResults int) (*SearchResponse, error) {
	q := url.Values{
		"jql":        {jql},
		"fields":     {searchFields},
		"expand":     {"changelog"},
		"startAt":    {strconv.Itoa(startAt)},
		"maxResults": {strconv.Itoa(maxResults)},
	}

	var res SearchResponse
	if err := c.getJSON(ctx, "/search", q, &res); err != nil {
		return nil, fmt.Errorf("searching issues (startAt=%d): %w", startAt, err)
	}
	return &res, nil
}

// SearchRaw fetches the raw search response body for a single-issue query.
// Used by the issue command to dump the untouched API payload.
func (c *Client) SearchRaw(ctx context.Context, key string) ([]byte, error) {
	q := url.Values{
		"jql":        {fmt.Sprintf("key = %s", key)},
		"fields":     {searchFields},
		"expand":     {"changelog"},
		"startAt":    {"0"},
		"maxResults": {"50"},
	}

	req, err := c.newRequest(ctx, "/search", q)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Jira API returned %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// Statuses fetches the status dictionary.
func (c *Client) Statuses(ctx context.Context) ([]StatusDef, error) {
	var defs []StatusDef
	if err := c.getJSON(ctx, "/status", nil, &defs); err != nil {
		return nil, fmt.Errorf("fetching statuses: %w", err)
	}
	return defs, nil
}

// StatusCategories fetches the status category dictionary.
func (c *Client) StatusCategories(ctx context.Context) ([]StatusCategory, error) {
	var cats []StatusCategory
	if err := c.getJSON(ctx, "/statuscategory", nil, &cats); err != nil {
		return nil, fmt.Errorf("fetching status categories: %w", err)
	}
	return cats, nil
}

// Fields fetches the field dictionary, including custom fields.
func (c *Client) Fields(ctx context.Context) ([]FieldDef, error) {
	var defs []FieldDef
	if err := c.getJSON(ctx, "/field", nil, &defs); err != nil {
		return nil, fmt.Errorf("fetching fields: %w", err)
	}
	return defs, nil
}

func (c *Client) newRequest(ctx context.Context, path string, q url.Values) (*http.Request, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	req, err := c.newRequest(ctx, path, q)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("Jira API returned %d: %s", resp.StatusCode, string(body))
	}

	if err := decodeJSON(resp.Body, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
