// Package storageclient talks to the section storage service over HTTP.
package storageclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"dqsurvey/internal/sections"
	"dqsurvey/internal/shared/telemetry"
	"dqsurvey/internal/survey"
)

const (
	defaultTimeout = 10 * time.Second
	defaultBackoff = 250 * time.Millisecond
	maxBodyBytes   = 1 << 20
)

// Options configures a Client. A zero Timeout or Backoff selects the default.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// Retries applies to GET requests only; submissions are never retried.
	Retries    int
	Backoff    time.Duration
	HTTPClient *http.Client
}

// Client implements survey.SectionService against the storage service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retries    int
	backoff    time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

// New constructs a Client for the service rooted at opts.BaseURL (e.g. http://localhost:8080/api/v1).
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("SURVEY_API_URL is required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid SURVEY_API_URL: %w", err)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := opts.Retries
	if retries < 0 {
		retries = 0
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    base,
		httpClient: httpClient,
		retries:    retries,
		backoff:    backoff,
		sleep:      sleepContext,
	}, nil
}

type createResponse struct {
	ID int64 `json:"id"`
}

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// CreateSection POSTs a record and returns the generated identifier.
func (c *Client) CreateSection(ctx context.Context, rec sections.Record) (int64, error) {
	path := "/" + sections.SectionKey(rec.Section())
	payload, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("encode %s: %w", path, err)
	}
	status, body, err := c.do(ctx, http.MethodPost, path, payload)
	if err != nil {
		return 0, err
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return 0, statusError("POST "+path, status, body)
	}
	var out createResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("decode POST %s response: %w", path, err)
	}
	if out.ID <= 0 {
		return 0, fmt.Errorf("POST %s: response carried no id", path)
	}
	return out.ID, nil
}

// FetchSection GETs the record addressed by chain. A missing record wraps
// sections.ErrNotFound. Network failures and 5xx responses are retried.
func (c *Client) FetchSection(ctx context.Context, section int, chain []int64) (sections.Record, error) {
	rec, err := sections.NewRecord(section)
	if err != nil {
		return nil, err
	}
	parts := make([]string, 0, len(chain)+1)
	parts = append(parts, sections.SectionKey(section))
	for _, id := range chain {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	path := "/" + strings.Join(parts, "/")
	op := "GET " + path

	var (
		status int
		body   []byte
	)
	for attempt := 0; ; attempt++ {
		status, body, err = c.do(ctx, http.MethodGet, path, nil)
		retryable := err != nil || status >= 500
		if !retryable || attempt >= c.retries || ctx.Err() != nil {
			break
		}
		wait := c.backoff << attempt
		telemetry.Warn("storageclient.retry", map[string]any{
			"op":      op,
			"attempt": attempt + 1,
			"wait_ms": wait.Milliseconds(),
			"status":  status,
		})
		if serr := c.sleep(ctx, wait); serr != nil {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusOK:
	case status == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", sections.ErrNotFound, op)
	default:
		return nil, statusError(op, status, body)
	}
	if err := json.Unmarshal(body, rec); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", op, err)
	}
	return rec, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, &survey.NetworkFailureError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, &survey.NetworkFailureError{Op: method + " " + path, Err: err}
	}
	return resp.StatusCode, body, nil
}

// statusError maps a non-success response. 4xx bodies are rejections shown
// verbatim, 5xx bodies are server failures.
func statusError(op string, status int, body []byte) error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)
	msg := strings.TrimSpace(eb.Message)
	if msg == "" {
		msg = http.StatusText(status)
	}
	if status >= 500 {
		return &survey.ServerError{Op: op, Status: status, Code: eb.Code, Message: msg}
	}
	return &survey.ServerValidationError{Status: status, Code: eb.Code, Message: msg}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ survey.SectionService = (*Client)(nil)
