package analysis

import (
	"io"
	"log/slog"
)

// Option configures a TrendAnalyzer or Predictor
type Option func(*options)

type options struct {
	logger *slog.Logger
	load   LoadConfig
}

// WithLogger injects a logger. Without it diagnostics are discarded, which
// keeps the engine silent when hosted behind a stdio protocol.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithLoadConfig overrides the CTL/ATL time constants used for projection
func WithLoadConfig(cfg LoadConfig) Option {
	return func(o *options) {
		o.load = cfg
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		load:   DefaultLoadConfig(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
