/*
Package backend provides typed clients for the remote HeatX services.

SERVICES:
  AnalysisClient  Prediction model, dataset upload, regression/classification
  LedgerClient    Carbon-credit signing and ledger (mint, transfer, retire)
  ChatClient      Assistant chat relay

The services own all of their semantics. These clients only shape requests,
decode responses and classify failures. Ledger blocks in particular are
opaque records: nothing here hashes, links or validates them.

TRANSPORT:
  Every client shares the same base: JSON over net/http, a per-client
  token-bucket limiter (golang.org/x/time/rate) and a zerolog child logger.
  Calls block on the limiter and honour ctx cancellation.

ERRORS:
  Non-2xx responses become *ServiceError. errors.Is distinguishes
  ErrServiceUnavailable (transport failure, 5xx) from ErrRejected (4xx).
  Undecodable bodies return ErrBadResponse.
*/
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Options configure a client.
type Options struct {
	BaseURL string
	// RequestsPerSecond <= 0 disables throttling.
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
	HTTPClient        *http.Client
}

type client struct {
	service string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

func newClient(service string, opts Options, log zerolog.Logger) client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	return client{
		service: service,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    httpClient,
		limiter: rate.NewLimiter(limit, burst),
		log:     log.With().Str("client", service).Logger(),
	}
}

func (c *client) getJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, "", nil, out)
}

func (c *client) postJSON(ctx context.Context, path string, body any, headers map[string]string, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", c.service, err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(data), "application/json", headers, out)
}

func (c *client) do(ctx context.Context, method, path string, body io.Reader, contentType string, headers map[string]string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", c.service, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("method", method).Str("url", url).Msg("Request failed")
		return &ServiceError{Service: c.service, Detail: err.Error(), cause: err}
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", method).
		Str("url", url).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("Request completed")

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ServiceError{Service: c.service, Status: resp.StatusCode, Detail: err.Error(), cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ServiceError{Service: c.service, Status: resp.StatusCode, Detail: errorDetail(raw, resp.Status)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w from %s: %v", ErrBadResponse, c.service, err)
	}
	return nil
}

// errorDetail pulls a message out of {"detail": ...} or {"error": ...}
// bodies, falling back to the raw body or status text.
func errorDetail(raw []byte, status string) string {
	var body struct {
		Detail any    `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		switch d := body.Detail.(type) {
		case string:
			if d != "" {
				return d
			}
		case nil:
		default:
			if b, err := json.Marshal(d); err == nil {
				return string(b)
			}
		}
		if body.Error != "" {
			return body.Error
		}
	}
	if text := strings.TrimSpace(string(raw)); text != "" && len(text) <= 512 {
		return text
	}
	return status
}
