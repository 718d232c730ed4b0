// Package remote talks to the CV matching service over JSON HTTP.
package remote

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/cv-ranker/internal/retry"
	"github.com/spigell/cv-ranker/internal/scorer"
	"github.com/spigell/cv-ranker/internal/utils"
)

const (
	contentType     = "application/json"
	contentEncoding = "gzip"
	userAgent       = "spigell/cv-ranker"

	matchPath  = "/match"
	healthPath = "/health"

	maxErrorBody = 512

	// DefaultMaxLogLength bounds response previews in debug logs.
	DefaultMaxLogLength = 200
)

// Client is the HTTP scoring service client.
type Client struct {
	baseURL string
	token   string
	logger  *zap.Logger

	HTTPClient   *http.Client
	UserAgent    string
	HealthPolicy retry.Policy
	MaxLogLength int
}

// New builds a client for the service at baseURL. The token is optional.
// Per-request deadlines come from the caller context, so the HTTP client carries no timeout of its own.
func New(baseURL, token string, logger *zap.Logger) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("scorer url is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:      baseURL,
		token:        strings.TrimSpace(token),
		logger:       logger,
		HTTPClient:   &http.Client{},
		UserAgent:    userAgent,
		HealthPolicy: retry.RequestPolicy(),
		MaxLogLength: DefaultMaxLogLength,
	}, nil
}

// Score posts one jd/cv pair to the matching endpoint.
func (c *Client) Score(ctx context.Context, req scorer.Request) (*scorer.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal match request: %w", err)
	}

	var raw map[string]any
	if err := c.do(ctx, http.MethodPost, matchPath, body, &raw); err != nil {
		return nil, err
	}

	return scorer.Decode(raw)
}

// Health checks that the service answers. Transient failures are retried with backoff.
func (c *Client) Health(ctx context.Context) error {
	policy := c.HealthPolicy
	policy.Notify = func(attempt int, err *retry.Error, delay time.Duration) {
		c.logger.Warn("health check failed, retrying",
			zap.Int("attempt", attempt),
			zap.Stringer("kind", err.Kind),
			zap.Duration("delay", delay),
			zap.Error(err.Err),
		)
	}

	_, err := retry.Do(ctx, policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.do(ctx, http.MethodGet, healthPath, nil, nil)
	})
	return err
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, target any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}

	req = c.setHeaders(req)
	if payload != nil {
		req.Header.Set("Content-Type", contentType)
	}

	c.logger.Debug("make request", zap.String("method", method), zap.String("url", req.URL.String()))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	reader, err := decodedBody(resp)
	if err != nil {
		return err
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &retry.StatusError{
			Code:    resp.StatusCode,
			Message: utils.TruncateForLog(string(data), maxErrorBody),
		}
	}

	c.logger.Debug("got response from scorer",
		zap.String("url", req.URL.String()),
		zap.Int("status", resp.StatusCode),
		zap.String("response_preview", utils.TruncateForLog(string(data), c.MaxLogLength)),
	)

	if target == nil {
		return nil
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("parse scorer response: %v: %w", err, retry.ErrMalformedResponse)
	}

	return nil
}

func (c *Client) setHeaders(req *http.Request) *http.Request {
	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", contentType)
	req.Header.Set("Accept-Encoding", contentEncoding)

	return req
}

func decodedBody(resp *http.Response) (io.ReadCloser, error) {
	if resp.Header.Get("Content-Encoding") != "gzip" {
		return io.NopCloser(resp.Body), nil
	}

	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("open gzip body: %w", err)
	}
	return gz, nil
}
