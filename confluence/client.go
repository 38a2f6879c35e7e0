// Copyright 2026 Quarry Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package confluence fetches spaces and pages from a Confluence-style
// content API. Requests are proactively throttled and tolerate HTTP 429
// rate limiting with capped exponential backoff and jitter; pagination
// runs to upstream exhaustion.
package confluence

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// DefaultMaxRetries is the attempt budget for rate-limited or failing requests.
const DefaultMaxRetries = 5

// DefaultPageLimit is the page size requested from collection endpoints.
const DefaultPageLimit = 100

// defaultThrottle is the proactive request rate (requests per second).
const defaultThrottle = 5

// Client talks to a Confluence REST API.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	baseDelay  time.Duration
	jitterMax  time.Duration
	pageLimit  int
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBasicAuth sets the credentials sent with every request.
func WithBasicAuth(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithMaxRetries sets the retry budget for 429 and network failures.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// WithBaseDelay sets the base for exponential backoff.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.baseDelay = d
		}
	}
}

// WithJitterMax bounds the random jitter added to backoff waits.
// Zero disables jitter; useful in tests.
func WithJitterMax(d time.Duration) Option {
	return func(c *Client) {
		c.jitterMax = d
	}
}

// WithPageLimit sets the page size for collection endpoints.
func WithPageLimit(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageLimit = n
		}
	}
}

// WithThrottle sets the proactive client-side request rate per second.
func WithThrottle(perSecond float64) Option {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// NewClient creates a Client for the given API base URL
// (e.g. "https://wiki.example.com/rest/api").
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, ErrBaseURLRequired
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(defaultThrottle), 1),
		maxRetries: DefaultMaxRetries,
		baseDelay:  time.Second,
		jitterMax:  maxJitter,
		pageLimit:  DefaultPageLimit,
		logger:     slog.Default().With("component", "confluence"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// get performs one GET with rate-limit tolerance. 429 responses wait out
// Retry-After (or capped exponential backoff) and retry; network errors
// retry on a separate attempt counter; any other non-200 status fails
// immediately. Exhausting either budget returns ErrRetriesExhausted.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	rateAttempts := 0
	netAttempts := 0
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		if c.username != "" {
			req.SetBasicAuth(c.username, c.password)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if netAttempts >= c.maxRetries {
				return nil, fmt.Errorf("%w: %s: %w", ErrRetriesExhausted, endpoint, err)
			}
			wait := backoff(c.baseDelay, netAttempts, c.jitterMax)
			c.logger.Warn("network error, retrying", "url", endpoint, "attempt", netAttempts+1, "wait", wait, "err", err)
			netAttempts++
			if err := sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			if readErr != nil {
				return nil, readErr
			}
			return body, nil

		case resp.StatusCode == http.StatusTooManyRequests:
			if rateAttempts >= c.maxRetries {
				return nil, fmt.Errorf("%w: %s: rate limited %d times", ErrRetriesExhausted, endpoint, rateAttempts)
			}
			wait := retryAfter(resp)
			if wait == 0 {
				wait = backoff(c.baseDelay, rateAttempts, c.jitterMax)
			}
			c.logger.Warn("rate limited, retrying", "url", endpoint, "attempt", rateAttempts+1, "wait", wait)
			rateAttempts++
			if err := sleep(ctx, wait); err != nil {
				return nil, err
			}

		default:
			c.logger.Error("request failed", "url", endpoint, "status", resp.StatusCode)
			return nil, fmt.Errorf("%w: %s: status %d", ErrRequestFailed, endpoint, resp.StatusCode)
		}
	}
}

type spaceResult struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

type contentVersion struct {
	When   string `json:"when"`
	Number int    `json:"number"`
}

type contentAncestor struct {
	ID string `json:"id"`
}

type contentResult struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Version   contentVersion    `json:"version"`
	Ancestors []contentAncestor `json:"ancestors"`
}

type bodyStorage struct {
	Value string `json:"value"`
}

type contentBody struct {
	Storage bodyStorage `json:"storage"`
}

type contentDetail struct {
	Body contentBody `json:"body"`
}

// SpaceRef identifies one remote space.
type SpaceRef struct {
	Key  string
	Name string
}

// Spaces lists all non-personal spaces (keys starting with "~" are user
// spaces and are excluded), paginating until the API returns a short page.
func (c *Client) Spaces(ctx context.Context) ([]SpaceRef, error) {
	var spaces []SpaceRef

	for start := 0; ; {
		params := url.Values{}
		params.Set("start", strconv.Itoa(start))
		params.Set("limit", strconv.Itoa(c.pageLimit))

		raw, err := c.get(ctx, "/space", params)
		if err != nil {
			return nil, fmt.Errorf("fetching spaces at offset %d: %w", start, err)
		}

		var page struct {
			Results []spaceResult `json:"results"`
		}
		if err := json.Unmarshal(raw, &page); err != nil {
			return nil, fmt.Errorf("decoding spaces response: %w", err)
		}
		if len(page.Results) == 0 {
			break
		}

		for _, sp := range page.Results {
			if len(sp.Key) > 0 && sp.Key[0] == '~' {
				continue
			}
			spaces = append(spaces, SpaceRef{Key: sp.Key, Name: sp.Name})
		}

		if len(page.Results) < c.pageLimit {
			break
		}
		start += len(page.Results)
	}

	c.logger.Info("fetched space list", "spaces", len(spaces))
	return spaces, nil
}

// PageMeta is page metadata without a body.
type PageMeta struct {
	ID          string
	Title       string
	Updated     string
	UpdateCount int
	ParentID    string
	Level       int
}

// Pages lists page metadata for a space, paginating until exhaustion.
func (c *Client) Pages(ctx context.Context, spaceKey string) ([]PageMeta, error) {
	var pages []PageMeta

	for start := 0; ; {
		params := url.Values{}
		params.Set("type", "page")
		params.Set("spaceKey", spaceKey)
		params.Set("start", strconv.Itoa(start))
		params.Set("limit", strconv.Itoa(c.pageLimit))
		params.Set("expand", "version,ancestors")

		raw, err := c.get(ctx, "/content", params)
		if err != nil {
			return nil, fmt.Errorf("fetching pages for space %s at offset %d: %w", spaceKey, start, err)
		}

		var page struct {
			Results []contentResult `json:"results"`
		}
		if err := json.Unmarshal(raw, &page); err != nil {
			return nil, fmt.Errorf("decoding pages response: %w", err)
		}
		if len(page.Results) == 0 {
			break
		}

		for _, item := range page.Results {
			meta := PageMeta{
				ID:          item.ID,
				Title:       item.Title,
				Updated:     item.Version.When,
				UpdateCount: item.Version.Number,
				Level:       len(item.Ancestors),
			}
			// Ancestors are ordered root first; the direct parent is last.
			if n := len(item.Ancestors); n > 0 {
				meta.ParentID = item.Ancestors[n-1].ID
			}
			pages = append(pages, meta)
		}

		if len(page.Results) < c.pageLimit {
			break
		}
		start += len(page.Results)
	}

	c.logger.Info("fetched page metadata", "space", spaceKey, "pages", len(pages))
	return pages, nil
}

// PageBody fetches a page's storage-format body.
func (c *Client) PageBody(ctx context.Context, pageID string) (string, error) {
	params := url.Values{}
	params.Set("expand", "body.storage")

	raw, err := c.get(ctx, "/content/"+pageID, params)
	if err != nil {
		return "", fmt.Errorf("fetching body for page %s: %w", pageID, err)
	}

	var detail contentDetail
	if err := json.Unmarshal(raw, &detail); err != nil {
		return "", fmt.Errorf("decoding body response: %w", err)
	}
	return detail.Body.Storage.Value, nil
}
