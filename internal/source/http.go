package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ChaseHampton/memorease/internal/client"
	"github.com/ChaseHampton/memorease/internal/config"
	"github.com/ChaseHampton/memorease/internal/search"
	"github.com/rs/zerolog"
)

const bodySnippetLen = 200

// HTTPSource reads GET {base_url}/deceased from the park API.
type HTTPSource struct {
	client        *client.Client
	baseURL       string
	pageSize      int
	maxPages      int
	retryAttempts int
	retryDelay    time.Duration
	logger        zerolog.Logger
}

func NewHTTPSource(httpCfg *config.HTTPConfig, remote config.RemoteConfig, logger zerolog.Logger) *HTTPSource {
	return &HTTPSource{
		client:        client.NewClient(httpCfg, remote.Token),
		baseURL:       remote.BaseURL,
		pageSize:      remote.PageSize,
		maxPages:      remote.MaxPages,
		retryAttempts: httpCfg.RetryAttempts,
		retryDelay:    httpCfg.RetryDelay,
		logger:        logger.With().Str("component", "http_source").Logger(),
	}
}

// Fetch returns the whole snapshot. With a page size configured the API is
// walked page by page; otherwise one unpaginated request is made.
func (h *HTTPSource) Fetch(ctx context.Context, params search.SearchParams) ([]search.DeceasedRecord, error) {
	if h.pageSize <= 0 {
		resp, err := h.fetchPage(ctx, params)
		if err != nil {
			return nil, err
		}
		return resp.Data, nil
	}

	params.Pagination = search.PaginationPaged
	params.PerPage = h.pageSize
	var records []search.DeceasedRecord
	for page := 1; h.maxPages <= 0 || page <= h.maxPages; page++ {
		params.Page = page
		resp, err := h.fetchPage(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("failed to get page %d: %w", page, err)
		}
		records = append(records, resp.Data...)
		h.logger.Debug().Int("page", page).Int("records", len(resp.Data)).Int("last_page", resp.LastPage).Msg("fetched page")

		if len(resp.Data) < h.pageSize || (resp.LastPage > 0 && page >= resp.LastPage) {
			return records, nil
		}
	}
	return nil, fmt.Errorf("remote snapshot exceeds %d pages of %d records", h.maxPages, h.pageSize)
}

func (h *HTTPSource) fetchPage(ctx context.Context, params search.SearchParams) (*search.SearchResponse, error) {
	u, err := h.buildSearchURL(params)
	if err != nil {
		return nil, err
	}
	response, err := h.makeRequestWithRetry(ctx, u)
	if err != nil {
		return nil, err
	}

	var resp search.SearchResponse
	if err := json.Unmarshal(response.Body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal deceased response: %w", err)
	}
	return &resp, nil
}

func (h *HTTPSource) buildSearchURL(params search.SearchParams) (string, error) {
	u, err := url.Parse(h.baseURL + "/deceased")
	if err != nil {
		return "", fmt.Errorf("failed to build search URL: %w", err)
	}
	u.RawQuery = params.Values().Encode()
	return u.String(), nil
}

func (h *HTTPSource) makeRequestWithRetry(ctx context.Context, u string) (*client.Response, error) {
	var lasterr error
	for attempt := 0; attempt <= h.retryAttempts; attempt++ {
		if attempt > 0 {
			h.logger.Warn().Err(lasterr).Str("url", u).Int("attempt", attempt).Msg("retrying request")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(h.retryDelay):
			}
		}

		response, err := h.client.Get(ctx, u)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			lasterr = err
			continue
		}
		if response.OK() {
			return response, nil
		}

		lasterr = fmt.Errorf("HTTP %d: %s", response.StatusCode, snippet(response.Body))
		switch {
		case response.StatusCode == http.StatusUnauthorized || response.StatusCode == http.StatusForbidden:
			return nil, fmt.Errorf("%w: %v", ErrUnauthorized, lasterr)
		case !retryable(response.StatusCode):
			return nil, lasterr
		}
	}

	return nil, fmt.Errorf("failed to get response after %d attempts: %w", h.retryAttempts+1, lasterr)
}

func retryable(status int) bool {
	return status >= 500 || status == http.StatusTooManyRequests
}

func snippet(body []byte) string {
	if len(body) > bodySnippetLen {
		return string(body[:bodySnippetLen]) + "..."
	}
	return string(body)
}

// IsUnauthorized reports whether err came from a rejected token.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
