package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kapu/greeting-push-go/internal/constants"
	"github.com/kapu/greeting-push-go/internal/util"
	"github.com/kapu/greeting-push-go/pkg/errors"
)

// Client is the JSON-over-HTTP helper shared by every upstream API.
// All requests go through one rate limiter.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

type Options struct {
	Timeout        time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
	HTTPClient     *http.Client
}

func NewClient(opts Options, logger *zap.Logger) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = constants.APIConfig.Timeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	burst := opts.RateLimitBurst
	if opts.RateLimitRPS > 0 {
		limit = rate.Limit(opts.RateLimitRPS)
	}
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger,
	}
}

// HTTPClient exposes the underlying client, e.g. for oauth2 contexts.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// GetJSON issues a GET with the given query and decodes the JSON response into respBody.
func (c *Client) GetJSON(ctx context.Context, rawURL string, query url.Values, respBody any) error {
	return c.doRequest(ctx, http.MethodGet, rawURL, query, nil, respBody)
}

// PostJSON sends reqBody as JSON and decodes the JSON response into respBody (may be nil).
func (c *Client) PostJSON(ctx context.Context, rawURL string, query url.Values, reqBody, respBody any) error {
	return c.doRequest(ctx, http.MethodPost, rawURL, query, reqBody, respBody)
}

func (c *Client) doRequest(ctx context.Context, method, rawURL string, query url.Values, reqBody, respBody any) error {
	endpoint := rawURL
	if len(query) > 0 {
		endpoint = rawURL + "?" + query.Encode()
	}
	// Query strings may carry credentials; only the bare URL goes into errors.
	logURL := rawURL

	var bodyReader io.Reader
	if reqBody != nil {
		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return errors.NewAPIError("failed to marshal request", 400, map[string]any{
				"url": logURL,
			}).WithCause(err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return errors.NewAPIError("rate limiter wait aborted", 0, map[string]any{
			"url": logURL,
		}).WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return errors.NewAPIError("failed to create request", 500, map[string]any{
			"url": logURL,
		}).WithCause(err)
	}

	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.NewAPIError("request failed", 500, map[string]any{
			"url": logURL,
		}).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errors.NewAPIError(
			fmt.Sprintf("upstream API error: %s", resp.Status),
			resp.StatusCode,
			map[string]any{
				"url":  logURL,
				"body": util.TruncateString(string(bodyBytes), constants.RunConfig.ResponseLength),
			},
		)
	}

	if respBody != nil {
		if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
			return errors.NewAPIError("failed to decode response", resp.StatusCode, map[string]any{
				"url": logURL,
			}).WithCause(err)
		}
	}

	c.logger.Debug("Upstream request completed",
		zap.String("method", method),
		zap.String("url", logURL),
		zap.Int("status", resp.StatusCode),
	)

	return nil
}
