package corofiber

import (
	"testing"
	"time"
)

func TestResolveRuntimeOptions_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := resolveRuntimeOptions(nil)
	if err != nil {
		t.Fatalf("resolveRuntimeOptions: %v", err)
	}
	if _, ok := cfg.logger.(NoOpLogger); !ok {
		t.Errorf("default logger = %T, want NoOpLogger", cfg.logger)
	}
	if cfg.metrics {
		t.Error("metrics should default to disabled")
	}
	if cfg.pollTimeout != 60*time.Second {
		t.Errorf("pollTimeout = %v, want 60s", cfg.pollTimeout)
	}
	if cfg.fdCacheSize != 1 {
		t.Errorf("fdCacheSize = %d, want 1", cfg.fdCacheSize)
	}
}

func TestResolveRuntimeOptions_AppliesOverrides(t *testing.T) {
	t.Parallel()

	cfg, err := resolveRuntimeOptions([]RuntimeOption{
		WithLogger(nil), // nil logger should fall back to NoOpLogger, not panic
		WithMetrics(true),
		WithPollTimeout(5 * time.Second),
		WithFDCacheSize(8),
		nil, // nil options are skipped
	})
	if err != nil {
		t.Fatalf("resolveRuntimeOptions: %v", err)
	}
	if _, ok := cfg.logger.(NoOpLogger); !ok {
		t.Errorf("logger after WithLogger(nil) = %T, want NoOpLogger", cfg.logger)
	}
	if !cfg.metrics {
		t.Error("metrics should be enabled")
	}
	if cfg.pollTimeout != 5*time.Second {
		t.Errorf("pollTimeout = %v, want 5s", cfg.pollTimeout)
	}
	if cfg.fdCacheSize != 8 {
		t.Errorf("fdCacheSize = %d, want 8", cfg.fdCacheSize)
	}
}
