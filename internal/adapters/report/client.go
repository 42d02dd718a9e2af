// Package report delivers violation records and evidence snapshots to the
// proctoring backend. Delivery is best-effort: failures are logged, counted,
// and dropped. Nothing in the scoring path ever blocks on, or retries, an
// upload.
package report

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/okian/vigil/internal/domain/model"
	"github.com/okian/vigil/pkg/logger"
	"github.com/okian/vigil/pkg/metrics"
)

// Default client configuration constants.
const (
	defaultTimeout     = 5 * time.Second
	breakerMaxRequests = 3
	breakerInterval    = 30 * time.Second
	breakerTimeout     = 60 * time.Second
	breakerMinRequests = 5
	breakerFailureRate = 0.6
)

// Sink accepts structured violation records and evidence snapshots.
type Sink interface {
	// Report submits one violation record for a session.
	Report(ctx context.Context, token string, v model.Violation) error

	// UploadEvidence submits one snapshot captured at warning level.
	UploadEvidence(ctx context.Context, ev model.Evidence) error
}

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.http.Timeout = d
		}
	}
}

// WithLogger sets a custom logger for the client.
func WithLogger(l logger.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// Client implements Sink against the original backend's endpoint shapes:
// POST {base}/api/test/{token}/violations and POST {base}/api/test/{token}/snapshot.
// A circuit breaker stops hammering a sink that is clearly down; while the
// breaker is open, submissions fail fast and are dropped like any other
// delivery failure.
type Client struct {
	base    string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[struct{}]
	logger  logger.Logger
}

// NewClient creates a reporting client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		base:   baseURL,
		http:   &http.Client{Timeout: defaultTimeout},
		logger: logger.Get().Named("report"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:     "violation-sink",
		Interval: breakerInterval,
		Timeout:  breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= breakerMinRequests && ratio >= breakerFailureRate
		},
		MaxRequests: breakerMaxRequests,
	})
	return c
}

// Report submits one violation record.
func (c *Client) Report(ctx context.Context, token string, v model.Violation) error {
	_, err := c.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, c.postViolation(ctx, token, v)
	})
	if err != nil {
		metrics.RecordReportFailure()
		c.logger.Warn(ctx, "violation report dropped",
			logger.String("token", token),
			logger.String("type", v.Type),
			logger.Error(err),
		)
		return fmt.Errorf("report violation: %w", ErrSinkUnavailable)
	}
	metrics.RecordViolationReported(v.Type)
	return nil
}

func (c *Client) postViolation(ctx context.Context, token string, v model.Violation) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal violation: %w", err)
	}
	url := fmt.Sprintf("%s/api/test/%s/violations", c.base, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post violation: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sink returned %d: %w", resp.StatusCode, ErrSinkRejected)
	}
	return nil
}

// UploadEvidence submits one snapshot as a multipart upload.
func (c *Client) UploadEvidence(ctx context.Context, ev model.Evidence) error {
	_, err := c.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, c.postEvidence(ctx, ev)
	})
	if err != nil {
		metrics.RecordReportFailure()
		c.logger.Warn(ctx, "evidence upload dropped",
			logger.String("token", ev.Token),
			logger.String("evidenceID", ev.ID),
			logger.Error(err),
		)
		return fmt.Errorf("upload evidence: %w", ErrSinkUnavailable)
	}
	metrics.RecordEvidenceUpload()
	return nil
}

func (c *Client) postEvidence(ctx context.Context, ev model.Evidence) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("snapshot", ev.ID+".png")
	if err != nil {
		return fmt.Errorf("build multipart: %w", err)
	}
	if _, err := part.Write(ev.Image); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}

	url := fmt.Sprintf("%s/api/test/%s/snapshot", c.base, ev.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post snapshot: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sink returned %d: %w", resp.StatusCode, ErrSinkRejected)
	}
	return nil
}

// NopSink discards everything. Used when no report base URL is configured
// and in tests that do not care about reporting.
type NopSink struct{}

// Report discards the violation.
func (NopSink) Report(context.Context, string, model.Violation) error { return nil }

// UploadEvidence discards the snapshot.
func (NopSink) UploadEvidence(context.Context, model.Evidence) error { return nil }
