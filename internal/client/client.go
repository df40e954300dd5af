package client

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/ChaseHampton/memorease/internal/config"
)

type Client struct {
	httpClient *http.Client
	userAgent  string
	token      *string
}

type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
	Duration   time.Duration
}

func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// NewClient builds a client for the memorial park API. A nil token sends no
// Authorization header.
func NewClient(cfg *config.HTTPConfig, token *string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				MaxIdleConns:    cfg.MaxIdleConns,
				MaxConnsPerHost: cfg.MaxConnsPerHost,
				IdleConnTimeout: cfg.IdleConnTimeout,
			},
		},
		userAgent: cfg.UserAgent,
		token:     token,
	}
}

func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	return c.makeRequest(ctx, http.MethodGet, url, nil)
}

func (c *Client) makeRequest(ctx context.Context, method, url string, body io.Reader) (*Response, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if c.token != nil && *c.token != "" {
		req.Header.Set("Authorization", "Bearer "+*c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	duration := time.Since(start)

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	response := &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       responseBody,
		Duration:   duration,
	}

	return response, nil
}
