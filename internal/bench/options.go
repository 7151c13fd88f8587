package bench

import (
	"errors"
	"fmt"
	"time"

	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc/message"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/infrastructure/config"
)

// DefaultMaxFailures is the consecutive send failure count that aborts a
// transport run
const DefaultMaxFailures = 8

// Options configures a run
type Options struct {
	Messages       int
	PayloadSize    int
	BatchSize      int
	RatePerSecond  int // 0 sends unpaced
	Transports     []message.Transport
	ReceiveTimeout time.Duration
	MaxFailures    uint32
}

// DefaultOptions mirrors the bench section of config.Default
func DefaultOptions() Options {
	opts, _ := OptionsFromConfig(config.Default().Bench)
	return opts
}

// OptionsFromConfig converts the bench config section
func OptionsFromConfig(cfg config.BenchConfig) (Options, error) {
	transports := make([]message.Transport, 0, len(cfg.Transports))
	for _, name := range cfg.Transports {
		t, err := message.ParseTransport(name)
		if err != nil {
			return Options{}, fmt.Errorf("bench transports: %w", err)
		}
		transports = append(transports, t)
	}

	opts := Options{
		Messages:       cfg.Messages,
		PayloadSize:    cfg.PayloadSize,
		BatchSize:      cfg.BatchSize,
		RatePerSecond:  cfg.RatePerSecond,
		Transports:     transports,
		ReceiveTimeout: time.Duration(cfg.ChannelTimeout) * time.Millisecond,
		MaxFailures:    DefaultMaxFailures,
	}
	return opts, opts.Validate()
}

// Validate checks that the options describe a runnable workload
func (o Options) Validate() error {
	var errs []error
	if o.Messages <= 0 {
		errs = append(errs, fmt.Errorf("messages must be positive, got %d", o.Messages))
	}
	if o.PayloadSize < 0 {
		errs = append(errs, fmt.Errorf("payload size must not be negative, got %d", o.PayloadSize))
	}
	if o.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("batch size must be positive, got %d", o.BatchSize))
	}
	if o.RatePerSecond < 0 {
		errs = append(errs, fmt.Errorf("rate must not be negative, got %d", o.RatePerSecond))
	}
	if len(o.Transports) == 0 {
		errs = append(errs, errors.New("at least one transport is required"))
	}
	for _, t := range o.Transports {
		if !t.Implemented() {
			errs = append(errs, fmt.Errorf("transport %s has no implementation", t))
		}
	}
	if o.ReceiveTimeout <= 0 {
		errs = append(errs, fmt.Errorf("receive timeout must be positive, got %s", o.ReceiveTimeout))
	}
	if o.MaxFailures == 0 {
		errs = append(errs, errors.New("max failures must be positive"))
	}
	return errors.Join(errs...)
}
