package internal

import "github.com/starford/munin/internal/gateway"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	client gateway.Client
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithAIClient overrides the upstream model client. Used for dry runs and
// tests; when unset, an HTTP client is built from the AI config.
func WithAIClient(c gateway.Client) Option {
	return func(a *application) {
		a.client = c
	}
}
