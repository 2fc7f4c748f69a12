package dokindex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultPollInterval = 500 * time.Millisecond

// Client talks to a dokindex server over HTTP.
type Client struct {
	baseURL      string
	apiKey       string
	hc           *http.Client
	pollInterval time.Duration
	obs          *observer
}

// New creates a dokindex API client.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("dokindex: base url required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("dokindex: invalid base url: %w", err)
	}

	cfg := &clientConfig{
		pollInterval: defaultPollInterval,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       cfg.apiKey,
		hc:           hc,
		pollInterval: cfg.pollInterval,
		obs:          obs,
	}, nil
}

// Ingest enqueues ingestion of a document that is awaiting processing.
func (c *Client) Ingest(ctx context.Context, documentID string) (j Job, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ingest", start, err) }()

	err = c.do(ctx, http.MethodPost, "/v1/documents/"+url.PathEscape(documentID)+"/ingest", nil, &j)
	return j, err
}

// Retry re-enqueues a document that previously failed ingestion.
func (c *Client) Retry(ctx context.Context, documentID string) (j Job, err error) {
	start := time.Now()
	defer func() { c.obs.observe("retry", start, err) }()

	err = c.do(ctx, http.MethodPost, "/v1/documents/"+url.PathEscape(documentID)+"/retry", nil, &j)
	return j, err
}

// JobStatus returns the current state of an ingestion job.
func (c *Client) JobStatus(ctx context.Context, jobID string) (j Job, err error) {
	start := time.Now()
	defer func() { c.obs.observe("job_status", start, err) }()

	err = c.do(ctx, http.MethodGet, "/v1/ingest-jobs/"+url.PathEscape(jobID), nil, &j)
	return j, err
}

// WaitForJob polls until the job reaches a terminal state or ctx expires.
func (c *Client) WaitForJob(ctx context.Context, jobID string) (Job, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		j, err := c.JobStatus(ctx, jobID)
		if err != nil {
			return Job{}, err
		}
		if j.Terminal() {
			return j, nil
		}

		select {
		case <-ctx.Done():
			return Job{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Document returns a document metadata record.
func (c *Client) Document(ctx context.Context, documentID string) (d Document, err error) {
	start := time.Now()
	defer func() { c.obs.observe("get_document", start, err) }()

	err = c.do(ctx, http.MethodGet, "/v1/documents/"+url.PathEscape(documentID), nil, &d)
	return d, err
}

// DeleteDocument removes a document's vectors and metadata.
func (c *Client) DeleteDocument(ctx context.Context, documentID string) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("delete_document", start, err) }()

	return c.do(ctx, http.MethodDelete, "/v1/documents/"+url.PathEscape(documentID), nil, nil)
}

// Retrieve runs a retrieval query and returns ranked sources with a
// prompt-ready context block.
func (c *Client) Retrieve(ctx context.Context, req RetrieveRequest) (res RetrieveResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("retrieve", start, err) }()

	err = c.do(ctx, http.MethodPost, "/v1/retrieve", req, &res)
	return res, err
}

// Health returns the service health report.
func (c *Client) Health(ctx context.Context) (r HealthReport, err error) {
	start := time.Now()
	defer func() { c.obs.observe("health", start, err) }()

	err = c.do(ctx, http.MethodGet, "/health", nil, &r)
	return r, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("dokindex: encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("dokindex: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("dokindex: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return parseAPIError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("dokindex: decode response: %w", err)
	}
	return nil
}

func parseAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err == nil {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
