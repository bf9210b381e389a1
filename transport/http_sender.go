package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-oee-hooks/core"
)

const defaultResponseBodyLimit int64 = 64 << 10

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPSender POSTs webhook payloads. Response bodies are read up to
// MaxResponseBodyBytes and kept only for error summaries.
type HTTPSender struct {
	Client               HTTPDoer
	MaxResponseBodyBytes int64
}

// NewHTTPSender uses a client without an overall timeout when client is nil.
// Each request is bounded by its DeliveryRequest.Timeout instead.
func NewHTTPSender(client HTTPDoer) *HTTPSender {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPSender{
		Client:               client,
		MaxResponseBodyBytes: defaultResponseBodyLimit,
	}
}

func (s *HTTPSender) Send(ctx context.Context, req core.DeliveryRequest) (core.DeliveryResponse, error) {
	if s == nil || s.Client == nil {
		return core.DeliveryResponse{}, core.DependencyError("transport: http sender requires an http client")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	target := strings.TrimSpace(req.URL)
	parsedURL, err := url.Parse(target)
	if err != nil || parsedURL.Host == "" {
		return core.DeliveryResponse{}, core.WrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: invalid delivery url",
			map[string]any{"url": core.RedactURL(target)},
		)
	}

	requestCtx := ctx
	cancel := func() {}
	if req.Timeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, req.Timeout)
	}
	defer cancel()

	httpReq, err := http.NewRequestWithContext(requestCtx, http.MethodPost, parsedURL.String(), bytes.NewReader(req.Body))
	if err != nil {
		return core.DeliveryResponse{}, core.WrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: create http request",
			map[string]any{"url": core.RedactURL(parsedURL.String())},
		)
	}
	for key, value := range req.Headers {
		if strings.TrimSpace(key) == "" {
			continue
		}
		httpReq.Header.Set(strings.TrimSpace(key), value)
	}
	if httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	startedAt := time.Now()
	httpRes, err := s.Client.Do(httpReq)
	if err != nil {
		return core.DeliveryResponse{Duration: time.Since(startedAt)}, core.WrapError(
			err,
			goerrors.CategoryExternal,
			"transport: execute http request",
			map[string]any{"url": core.RedactURL(parsedURL.String())},
		)
	}
	defer httpRes.Body.Close()

	limit := s.MaxResponseBodyBytes
	if limit <= 0 {
		limit = defaultResponseBodyLimit
	}
	body, err := io.ReadAll(io.LimitReader(httpRes.Body, limit))
	if err != nil {
		return core.DeliveryResponse{StatusCode: httpRes.StatusCode, Duration: time.Since(startedAt)}, core.WrapError(
			err,
			goerrors.CategoryExternal,
			"transport: read response body",
			map[string]any{"status_code": httpRes.StatusCode},
		)
	}
	// Drain the remainder so the connection can be reused.
	_, _ = io.Copy(io.Discard, httpRes.Body)

	return core.DeliveryResponse{
		StatusCode: httpRes.StatusCode,
		Body:       body,
		Duration:   time.Since(startedAt),
	}, nil
}

var _ core.Sender = (*HTTPSender)(nil)
