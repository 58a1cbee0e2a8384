package api

import "time"

// ServerConfig configures the public HTTP server.
//
// A single listener serves everything: the JSON API, the resumable upload
// endpoints, downloads, and the Prometheus metrics handler.
type ServerConfig struct {
	// Port is the HTTP port to listen on.
	// Default: 8080
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body. Chunk uploads stream their body within this
	// window, so it bounds the slowest acceptable chunk.
	// A zero or negative value means there is no timeout.
	// Default: 30s
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. Downloads stream blob contents within this window.
	// A zero or negative value means there is no timeout.
	// Default: 30s
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled. If zero, the value of ReadTimeout is used.
	// Default: 120s
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum time to wait for in-flight requests
	// during graceful shutdown.
	// Default: 10s
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`
}

// ApplyDefaults fills in zero values with sensible defaults.
func (c *ServerConfig) ApplyDefaults() {
	if c.Port <= 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 120 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}
