package semsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Client is the semsearch SDK entry point.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures the Client.
type Option interface {
	apply(*Client)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*Client)

func (f optionFunc) apply(c *Client) { f(c) }

// WithAPIKey sets the Bearer token sent with every request.
func WithAPIKey(key string) Option {
	return optionFunc(func(c *Client) {
		c.apiKey = key
	})
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return optionFunc(func(c *Client) {
		c.httpClient = hc
	})
}

// WithTimeout sets the per-request timeout on the default HTTP client.
// Default: 30s.
func WithTimeout(d time.Duration) Option {
	return optionFunc(func(c *Client) {
		c.httpClient.Timeout = d
	})
}

// New creates a semsearch Client for the given base URL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("semsearch: base URL required")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o.apply(c)
	}
	return c, nil
}

// Similar returns items most similar to a stored item.
func (c *Client) Similar(
	ctx context.Context, collection, itemID string, params SimilarParams,
) (*SimilarResponse, error) {
	q := url.Values{}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Threshold > 0 {
		q.Set("similarity_threshold", strconv.FormatFloat(params.Threshold, 'f', -1, 64))
	}
	for k, v := range params.Filters {
		q.Set(k, v)
	}

	path := fmt.Sprintf("/similar/%s/%s", url.PathEscape(collection), url.PathEscape(itemID))
	var resp SimilarResponse
	if err := c.do(ctx, http.MethodGet, path, q, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HybridSearch runs a query across all (or the requested) collections.
func (c *Client) HybridSearch(
	ctx context.Context, query string, params HybridParams,
) (*HybridResponse, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidParameter)
	}

	q := url.Values{}
	q.Set("query", query)
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Threshold > 0 {
		q.Set("similarity_threshold", strconv.FormatFloat(params.Threshold, 'f', -1, 64))
	}
	if len(params.Types) > 0 {
		q.Set("type", strings.Join(params.Types, ","))
	}
	for k, v := range params.Filters {
		q.Set(k, v)
	}

	var resp HybridResponse
	if err := c.do(ctx, http.MethodGet, "/search/hybrid", q, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpsertItem creates or replaces an item in its collection. Empty text is
// allowed; the server synthesizes embedding text from metadata.
func (c *Client) UpsertItem(
	ctx context.Context, collection, itemID, text string, metadata map[string]string,
) (*Item, error) {
	body := map[string]any{"text": text}
	if metadata != nil {
		body["metadata"] = metadata
	}

	path := fmt.Sprintf("/items/%s/%s", url.PathEscape(collection), url.PathEscape(itemID))
	var item Item
	if err := c.do(ctx, http.MethodPut, path, nil, body, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// DeleteItem removes an item from its collection.
func (c *Client) DeleteItem(ctx context.Context, collection, itemID string) error {
	path := fmt.Sprintf("/items/%s/%s", url.PathEscape(collection), url.PathEscape(itemID))
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// Health returns the service health report. A degraded or unhealthy service
// still returns a report, not an error.
func (c *Client) Health(ctx context.Context) (*HealthReport, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/health", nil, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("semsearch: health request: %w", err)
	}
	defer resp.Body.Close()

	var report HealthReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("semsearch: decode health response: %w", err)
	}
	return &report, nil
}

func (c *Client) do(
	ctx context.Context, method, path string, query url.Values, body, out any,
) error {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("semsearch: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return parseAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("semsearch: decode response: %w", err)
	}
	return nil
}

func (c *Client) newRequest(
	ctx context.Context, method, path string, query url.Values, body any,
) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("semsearch: encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("semsearch: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

func parseAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
