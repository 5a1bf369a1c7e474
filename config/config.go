package config

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - compute.go: External compute service and poller configuration
//   - database.go: Database and Redis configuration
//   - http.go: HTTP server and status streamer configuration
type AppConfig struct {
	// IsDev controls development mode behavior (verbose logging, etc.)
	IsDev bool `env:"DEV" envDefault:"false"`

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// HTTP server configuration
	HTTP HTTPConfig

	// Status streamer configuration
	Stream StreamConfig `envPrefix:"STREAM_"`

	// External compute service configuration
	Compute ComputeConfig `envPrefix:"COMPUTE_"`

	// Poller configuration
	Poller PollerConfig `envPrefix:"POLLER_"`

	// Service mode configuration
	Services string `env:"SERVICES" envDefault:"http,poller"`
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Stream.Sanitize()
	c.Compute.Sanitize()
	c.Poller.Sanitize()

	// The webhook callback defaults to this service's own webhook endpoint so
	// a bare deployment still receives push notifications.
	if c.Compute.WebhookURL == "" && c.HTTP.BaseURL != "" {
		c.Compute.WebhookURL = c.HTTP.BaseURL + "/webhook"
	}
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsHTTPServerEnabled returns true if the HTTP server service is enabled.
func (c *AppConfig) IsHTTPServerEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeHTTP]
}

// IsPollerEnabled returns true if the poller service is enabled.
func (c *AppConfig) IsPollerEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModePoller]
}
