// Package compute implements the HTTP client for the external best-effort
// compute service.
package compute

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

	"github.com/dispatchlab/dispatch/internal/core"
	apperrors "github.com/dispatchlab/dispatch/internal/errors"
)

// Config captures the subset of compute service behaviour we need.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Client  *http.Client
}

// Client talks to the compute service's run and status endpoints.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient builds a compute service client. Callers should pass a validated config.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("compute base url is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("compute api key is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(cfg.APIKey),
		client:  hc,
	}, nil
}

type runRequestBody struct {
	Input   runInput `json:"input"`
	Webhook string   `json:"webhook,omitempty"`
}

type runInput struct {
	Prompt string `json:"prompt"`
}

type runResponseBody struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type statusResponseBody struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  json.RawMessage `json:"error"`
}

// Run submits a job to the compute service and returns its job ID.
//
// Every failure mode is typed as a submission error; the caller records the
// job as failed with the diagnostic regardless of which leg broke.
func (c *Client) Run(ctx context.Context, req core.RunRequest) (*core.RunResponse, error) {
	body, err := json.Marshal(runRequestBody{
		Input:   runInput{Prompt: req.Prompt},
		Webhook: req.WebhookURL,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeSubmission, "encode run request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/run", bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeSubmission, "create run request")
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeSubmission, "run request failed")
	}
	respBody, err := readBody(resp)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeSubmission, "read run response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.Wrapf(
			errors.New(strings.TrimSpace(string(respBody))),
			apperrors.ErrCodeSubmission,
			"compute service returned %s", resp.Status,
		)
	}

	var parsed runResponseBody
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeSubmission, "decode run response")
	}
	if parsed.ID == "" {
		return nil, apperrors.Wrap(errors.New("response has no job id"), apperrors.ErrCodeSubmission, "decode run response")
	}

	return &core.RunResponse{ID: parsed.ID, Status: parsed.Status}, nil
}

// Status fetches the current status of a previously submitted job.
//
// Errors are typed so the poller can tell a flaky service apart from a
// response it cannot interpret: transport failures and non-2xx responses
// carry ErrCodePollTransport and are worth retrying, while an undecodable
// 2xx body carries ErrCodePollProtocol.
func (c *Client) Status(ctx context.Context, externalID string) (*core.StatusResponse, error) {
	statusURL := c.baseURL + "/status/" + url.PathEscape(externalID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodePollTransport, "create status request")
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodePollTransport, "status request failed")
	}
	respBody, err := readBody(resp)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodePollTransport, "read status response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.Wrapf(
			errors.New(strings.TrimSpace(string(respBody))),
			apperrors.ErrCodePollTransport,
			"compute service returned %s", resp.Status,
		)
	}

	var parsed statusResponseBody
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodePollProtocol, "decode status response")
	}
	if parsed.Status == "" {
		return nil, apperrors.Wrap(errors.New("response has no status field"), apperrors.ErrCodePollProtocol, "decode status response")
	}

	return &core.StatusResponse{ID: parsed.ID, Status: parsed.Status, Output: parsed.Output, Error: parsed.Error}, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
}

func readBody(resp *http.Response) ([]byte, error) {
	body, readErr := io.ReadAll(resp.Body)
	closeErr := resp.Body.Close()
	if readErr != nil {
		if closeErr != nil {
			return nil, errors.Join(
				fmt.Errorf("read response body: %w", readErr),
				fmt.Errorf("close response body: %w", closeErr),
			)
		}
		return nil, fmt.Errorf("read response body: %w", readErr)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("close response body: %w", closeErr)
	}
	return body, nil
}
