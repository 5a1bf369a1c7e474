package config

import "time"

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// BaseURL is the externally reachable base URL of this service
	// (e.g., "https://dispatch.example.com"). Used to derive the webhook
	// callback address handed to the compute service.
	BaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`
}

// StreamConfig contains status streamer configuration.
type StreamConfig struct {
	// Interval is how often a live-status connection re-reads the job record
	// to detect changes. Detection latency is bounded by this value.
	Interval time.Duration `env:"INTERVAL" envDefault:"2s"`
}

// Sanitize applies guardrails to streamer configuration values.
func (s *StreamConfig) Sanitize() {
	if s.Interval <= 0 {
		s.Interval = 2 * time.Second
	}
}
