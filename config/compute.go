package config

import (
	"errors"
	"time"
)

// ComputeConfig contains configuration for the external compute service.
type ComputeConfig struct {
	// BaseURL is the endpoint root, e.g. "https://api.runpod.ai/v2/<endpoint>".
	// Run and status URLs are derived from it.
	BaseURL string `env:"BASE_URL"`

	// APIKey is sent as a bearer token on every compute request.
	APIKey string `env:"API_KEY"`

	// WebhookURL is the callback address handed to the compute service on
	// submission. Defaults to "<APP_BASE_URL>/webhook" when empty.
	WebhookURL string `env:"WEBHOOK_URL"`

	// SubmitTimeout bounds the run request.
	SubmitTimeout time.Duration `env:"SUBMIT_TIMEOUT" envDefault:"30s"`

	// StatusTimeout bounds a single status poll request.
	StatusTimeout time.Duration `env:"STATUS_TIMEOUT" envDefault:"10s"`
}

// Sanitize applies guardrails to compute configuration values.
func (c *ComputeConfig) Sanitize() {
	if c.SubmitTimeout <= 0 {
		c.SubmitTimeout = 30 * time.Second
	}
	if c.StatusTimeout <= 0 {
		c.StatusTimeout = 10 * time.Second
	}
}

// Validate checks that the required compute settings are present.
func (c *ComputeConfig) Validate() error {
	if c.BaseURL == "" {
		return errors.New("compute base URL is required (COMPUTE_BASE_URL)")
	}
	if c.APIKey == "" {
		return errors.New("compute API key is required (COMPUTE_API_KEY)")
	}
	return nil
}

// PollerConfig contains configuration for the per-job status poller.
type PollerConfig struct {
	// Interval is the delay between status polls for one job.
	Interval time.Duration `env:"INTERVAL" envDefault:"5s"`

	// MaxPolls bounds the number of poll iterations per job. With the default
	// interval this gives each job a five minute budget.
	MaxPolls int `env:"MAX_POLLS" envDefault:"60"`
}

// Sanitize applies guardrails to poller configuration values.
func (p *PollerConfig) Sanitize() {
	if p.Interval <= 0 {
		p.Interval = 5 * time.Second
	}
	if p.MaxPolls <= 0 {
		p.MaxPolls = 60
	}
}
