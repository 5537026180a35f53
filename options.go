package corofiber

import "time"

// runtimeOptions holds the resolved configuration for a Runtime.
type runtimeOptions struct {
	logger       Logger
	metrics      bool
	pollTimeout  time.Duration
	fdCacheSize  int
}

// RuntimeOption configures a Runtime at construction time.
type RuntimeOption interface {
	applyRuntime(*runtimeOptions) error
}

type runtimeOptionFunc struct {
	fn func(*runtimeOptions) error
}

func (o *runtimeOptionFunc) applyRuntime(opts *runtimeOptions) error {
	return o.fn(opts)
}

// WithLogger sets the structured logger used for failure diagnostics
// (poll wait, resume, and accept-loop failures). A nil logger is treated
// as NoOpLogger.
func WithLogger(l Logger) RuntimeOption {
	return &runtimeOptionFunc{func(opts *runtimeOptions) error {
		if l == nil {
			l = NoOpLogger{}
		}
		opts.logger = l
		return nil
	}}
}

// WithMetrics enables the optional pool/runtime counters reachable via
// Runtime.Metrics.
func WithMetrics(enabled bool) RuntimeOption {
	return &runtimeOptionFunc{func(opts *runtimeOptions) error {
		opts.metrics = enabled
		return nil
	}}
}

// WithPollTimeout caps how long a single poller Wait call in Run may
// block. When the shrink interval is positive and shorter, Run waits no
// longer than the shrink interval instead.
func WithPollTimeout(d time.Duration) RuntimeOption {
	return &runtimeOptionFunc{func(opts *runtimeOptions) error {
		opts.pollTimeout = d
		return nil
	}}
}

// WithFDCacheSize sets the size of the free-fd holder cache the runtime
// keeps to gracefully handle EMFILE/ENFILE during accept bursts.
func WithFDCacheSize(n int) RuntimeOption {
	return &runtimeOptionFunc{func(opts *runtimeOptions) error {
		opts.fdCacheSize = n
		return nil
	}}
}

// resolveRuntimeOptions applies RuntimeOption instances over the defaults,
// skipping nil options.
func resolveRuntimeOptions(opts []RuntimeOption) (*runtimeOptions, error) {
	cfg := &runtimeOptions{
		logger:      NoOpLogger{},
		pollTimeout: 60 * time.Second,
		fdCacheSize: 1,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyRuntime(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
