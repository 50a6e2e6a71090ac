package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/welldanyogia/aap/pkg/protocol"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 10 << 20

type request struct {
	method string
	url    string
	body   any
	header http.Header
}

type response struct {
	status int
	body   []byte
}

// do runs req until it succeeds, fails permanently, the caller's context
// ends, or the attempt budget is spent. Retryable failures are transport
// errors and HTTP 408, 429 and 5xx; every other non-2xx status is returned at
// once as a *ProviderError.
func (c *Client) do(ctx context.Context, req request) (*response, error) {
	var payload []byte
	if req.body != nil {
		var err error
		if payload, err = json.Marshal(req.body); err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%s %s: %w", req.method, req.url, err)
		}

		resp, err := c.doOnce(ctx, req, payload)
		if err == nil {
			c.logger.Debug("provider request succeeded",
				"method", req.method,
				"url", req.url,
				"attempt", attempt,
				"status", resp.status,
			)
			return resp, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s %s: %w", req.method, req.url, ctxErr)
		}
		if !isRetryable(err) {
			return nil, err
		}
		lastErr = err

		if attempt == c.maxRetries {
			break
		}

		wait := c.retryDelay * time.Duration(attempt)
		c.logger.Warn("provider request failed, retrying",
			"method", req.method,
			"url", req.url,
			"attempt", attempt,
			"max_attempts", c.maxRetries,
			"sleep", wait.String(),
			"error", err.Error(),
		)
		if err := sleep(ctx, wait); err != nil {
			return nil, fmt.Errorf("%s %s: %w", req.method, req.url, err)
		}
	}

	c.logger.Warn("provider unreachable",
		"method", req.method,
		"url", req.url,
		"attempts", c.maxRetries,
		"error", lastErr.Error(),
	)
	return nil, &UnreachableError{URL: req.url, Attempts: c.maxRetries, Err: lastErr}
}

// doOnce performs a single attempt bounded by the per-request timeout.
func (c *Client) doOnce(ctx context.Context, req request, payload []byte) (*response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, req.url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range req.header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &transportError{err: err}
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, &transportError{err: fmt.Errorf("read response: %w", err)}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, newProviderError(httpResp.StatusCode, raw)
	}
	return &response{status: httpResp.StatusCode, body: raw}, nil
}

type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	var te *transportError
	if errors.As(err, &te) {
		return true
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.StatusCode >= 500 ||
			pe.StatusCode == http.StatusRequestTimeout ||
			pe.StatusCode == http.StatusTooManyRequests
	}
	return false
}

func newProviderError(status int, raw []byte) *ProviderError {
	pe := &ProviderError{StatusCode: status}

	var body protocol.ErrorBody
	if err := json.Unmarshal(raw, &body); err == nil && body.Error.Code != "" {
		pe.Code = body.Error.Code
		pe.Message = body.Error.Message
		return pe
	}

	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		msg = http.StatusText(status)
	}
	if len(msg) > 512 {
		msg = msg[:512] + "..."
	}
	pe.Message = msg
	return pe
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
