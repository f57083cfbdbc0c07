// Package backend is the HTTP client for the processing service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"asset-studio/internal/apperr"
)

const maxResponseBytes = 256 << 20

// Config configures the client.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables
	Burst     int
}

// RequestObserver records backend call outcomes.
type RequestObserver interface {
	ObserveRequest(endpoint, status string, d time.Duration)
}

// UploadResponse is the backend's classification of an uploaded file.
type UploadResponse struct {
	Filename string `json:"filename"`
	FileType string `json:"file_type"`
	Preview  string `json:"preview"`
}

// TechniqueRequest is the body of preprocess and augment calls.
type TechniqueRequest struct {
	Filename           string   `json:"filename"`
	Techniques         []string `json:"techniques"`
	PreprocessedResult *string  `json:"preprocessed_result,omitempty"`
}

// Results maps technique id to its payload text.
type Results map[string]string

// Client talks to the processing backend.
type Client struct {
	cfg      Config
	base     *url.URL
	http     *http.Client
	limiter  *rate.Limiter
	logger   *zap.Logger
	observer RequestObserver
}

// NewClient validates cfg and builds a client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("backend: invalid base url %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		cfg:    cfg,
		base:   base,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(zap.String("component", "backend")),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c, nil
}

// SetObserver registers a request observer.
func (c *Client) SetObserver(o RequestObserver) { c.observer = o }

// Upload sends a file as multipart form field "file".
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (*UploadResponse, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, apperr.Upload("could not build upload form").WithCause(err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, apperr.Upload("could not read file").WithCause(err)
	}
	if err := mw.Close(); err != nil {
		return nil, apperr.Upload("could not build upload form").WithCause(err)
	}

	raw, status, err := c.do(ctx, "upload", "/upload/", mw.FormDataContentType(), &body)
	if err != nil {
		return nil, apperr.Upload("upload failed").WithCause(err).WithHTTPStatus(status)
	}

	var envelope struct {
		UploadResponse
		Error *string `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, apperr.Upload("malformed upload response").WithCause(err).WithHTTPStatus(status)
	}
	if envelope.Error != nil {
		return nil, apperr.Upload(*envelope.Error).WithHTTPStatus(status)
	}
	if status >= 300 {
		return nil, apperr.Upload(fmt.Sprintf("upload rejected: %s", http.StatusText(status))).WithHTTPStatus(status)
	}
	if envelope.Filename == "" || envelope.FileType == "" {
		return nil, apperr.Upload("malformed upload response: missing filename or file_type").WithHTTPStatus(status)
	}
	resp := envelope.UploadResponse
	return &resp, nil
}

// Preprocess runs preprocessing techniques on an uploaded asset.
func (c *Client) Preprocess(ctx context.Context, fileType string, req TechniqueRequest) (Results, error) {
	return c.techniques(ctx, "preprocess", fileType, req)
}

// Augment runs augmentation techniques, optionally on a preprocessed result.
func (c *Client) Augment(ctx context.Context, fileType string, req TechniqueRequest) (Results, error) {
	return c.techniques(ctx, "augment", fileType, req)
}

func (c *Client) techniques(ctx context.Context, kind, fileType string, req TechniqueRequest) (Results, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, apperr.Request("could not encode request").WithCause(err)
	}
	path := "/" + kind + "/" + url.PathEscape(fileType)

	raw, status, err := c.do(ctx, kind, path, "application/json", bytes.NewReader(data))
	if err != nil {
		return nil, apperr.Request(kind + " request failed").WithCause(err).WithHTTPStatus(status)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		if status >= 300 {
			return nil, apperr.Request(fmt.Sprintf("%s failed: %s", kind, http.StatusText(status))).WithHTTPStatus(status)
		}
		return nil, apperr.Request("malformed " + kind + " response").WithCause(err).WithHTTPStatus(status)
	}
	if msg, ok := errorMessage(fields); ok {
		return nil, apperr.Request(msg).WithHTTPStatus(status)
	}
	if status >= 300 {
		return nil, apperr.Request(fmt.Sprintf("%s failed: %s", kind, http.StatusText(status))).WithHTTPStatus(status)
	}

	out := make(Results, len(fields))
	for id, v := range fields {
		out[id] = text(v)
	}
	return out, nil
}

// do performs one request and returns the body and status. Transport errors
// and timeouts are returned as errors; HTTP error statuses are not.
func (c *Client) do(ctx context.Context, endpoint, path, contentType string, body io.Reader) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, 0, fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base.String()+path, body)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(endpoint, "transport_error", start)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", c.cfg.Timeout, err)
		}
		c.logger.Warn("backend request failed", zap.String("endpoint", endpoint), zap.Error(err))
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.observe(endpoint, "read_error", start)
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	c.observe(endpoint, fmt.Sprintf("%d", resp.StatusCode), start)
	c.logger.Debug("backend response",
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(raw)),
		zap.Duration("elapsed", time.Since(start)))
	return raw, resp.StatusCode, nil
}

func (c *Client) observe(endpoint, status string, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveRequest(endpoint, status, time.Since(start))
	}
}

// errorMessage extracts an "error" (or FastAPI "detail") message.
func errorMessage(fields map[string]json.RawMessage) (string, bool) {
	for _, key := range []string{"error", "detail"} {
		if v, ok := fields[key]; ok {
			return text(v), true
		}
	}
	return "", false
}

// text unquotes JSON strings and passes other values through as JSON.
func text(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	return string(v)
}
