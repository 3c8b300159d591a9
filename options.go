package lazyq

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lazyq/pkg/protocol"
)

// Defaults for Config.
const (
	DefaultHost       = "127.0.0.1"
	DefaultPort       = 3381
	DefaultMaxResults = 1000
)

// Config holds the search server location and the open-ended page size.
type Config struct {
	Host string
	Port int
	// MaxResults bounds slices with no stop, e.g. Offset(20).
	MaxResults int
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:       DefaultHost,
		Port:       DefaultPort,
		MaxResults: DefaultMaxResults,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Host == "" {
		return errors.New("host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.MaxResults <= 0 {
		return fmt.Errorf("max results must be positive, got %d", c.MaxResults)
	}
	return nil
}

// Option configures a Query.
type Option interface {
	apply(*queryConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*queryConfig)

func (f optionFunc) apply(c *queryConfig) { f(c) }

type queryConfig struct {
	cfg     Config
	factory func() protocol.Client
	ft      *FTBackend

	logger     *zap.Logger
	metricsReg prometheus.Registerer
}

// WithConfig replaces the whole server configuration.
func WithConfig(cfg Config) Option {
	return optionFunc(func(c *queryConfig) {
		c.cfg = cfg
	})
}

// WithServer sets the search server host and port.
func WithServer(host string, port int) Option {
	return optionFunc(func(c *queryConfig) {
		c.cfg.Host = host
		c.cfg.Port = port
	})
}

// WithMaxResults sets the page size used for slices without a stop.
// Default: 1000.
func WithMaxResults(n int) Option {
	return optionFunc(func(c *queryConfig) {
		c.cfg.MaxResults = n
	})
}

// WithClientFactory selects the protocol backend. The factory is called once
// per round trip; clients are stateful and never reused.
func WithClientFactory(f func() protocol.Client) Option {
	return optionFunc(func(c *queryConfig) {
		c.factory = f
	})
}

// WithFTBackend selects the FT.SEARCH backend.
func WithFTBackend(b *FTBackend) Option {
	return optionFunc(func(c *queryConfig) {
		c.ft = b
	})
}

// WithLogger enables structured logging. Pass nil to disable (default).
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *queryConfig) {
		c.logger = l
	})
}

// WithPrometheus registers search metrics (round trips, durations, excerpts)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *queryConfig) {
		c.metricsReg = reg
	})
}
