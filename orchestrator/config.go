package orchestrator

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config configures an Orchestrator. The zero value disables
// content-addressing and verification; use DefaultConfig or LoadConfig for
// the standard setup.
type Config struct {
	// ContentAddressing caches results keyed by the hash of
	// (operation, input) and serves repeat invocations from the cache.
	ContentAddressing bool `env:"ARTIFACTOPS_CONTENT_ADDRESSING" envDefault:"true"`

	// VerifyIdempotency compares each successful result's hash against
	// the digest previously stored for the same input. Mismatches are
	// warnings, never failures.
	VerifyIdempotency bool `env:"ARTIFACTOPS_VERIFY_IDEMPOTENCY" envDefault:"true"`

	// VerifyStrict re-invokes the handler and compares result hashes
	// instead of trusting stored digests. Costs a second execution per
	// verified call.
	VerifyStrict bool `env:"ARTIFACTOPS_VERIFY_STRICT" envDefault:"false"`

	// CacheMaxEntries bounds the result cache.
	// Default: 1000
	CacheMaxEntries int `env:"ARTIFACTOPS_CACHE_MAX_ENTRIES" envDefault:"1000"`

	// CacheTTL is the result-cache entry lifetime.
	// Default: 5 minutes
	CacheTTL time.Duration `env:"ARTIFACTOPS_CACHE_TTL" envDefault:"5m"`

	// MaxConcurrentTasks is the pooled-worker capacity.
	// Default: max(2, NumCPU-1)
	MaxConcurrentTasks int `env:"ARTIFACTOPS_MAX_CONCURRENT_TASKS"`

	// SmallTaskThreshold is the payload size in bytes below which
	// handlers run inline on the caller.
	// Default: 1024
	SmallTaskThreshold int `env:"ARTIFACTOPS_SMALL_TASK_THRESHOLD" envDefault:"1024"`

	// DefaultTimeout bounds a single handler invocation.
	// Default: 30 seconds
	DefaultTimeout time.Duration `env:"ARTIFACTOPS_DEFAULT_TIMEOUT" envDefault:"30s"`

	// MaxProvenanceRecords caps the audit log; the oldest records are
	// dropped past capacity.
	// Default: 10000
	MaxProvenanceRecords int `env:"ARTIFACTOPS_MAX_PROVENANCE_RECORDS" envDefault:"10000"`

	// PerformanceTargets maps an operation name to its p95 latency
	// threshold. Operations without a target skip compliance checks.
	// Not environment-driven; set programmatically.
	PerformanceTargets map[string]time.Duration `env:"-"`
}

// DefaultConfig returns the standard configuration: content-addressing and
// idempotency verification on, strict mode off.
func DefaultConfig() Config {
	return Config{
		ContentAddressing:    true,
		VerifyIdempotency:    true,
		CacheMaxEntries:      1000,
		CacheTTL:             5 * time.Minute,
		SmallTaskThreshold:   1024,
		DefaultTimeout:       30 * time.Second,
		MaxProvenanceRecords: 10000,
	}
}

// LoadConfig builds a Config from ARTIFACTOPS_* environment variables,
// falling back to the documented defaults.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("orchestrator: parse environment: %w", err)
	}
	return cfg, nil
}

// applyDefaults fills numeric zero values. Boolean feature flags are left
// as given: a zero-value Config deliberately runs with caching and
// verification off.
func (c *Config) applyDefaults() {
	if c.CacheMaxEntries <= 0 {
		c.CacheMaxEntries = 1000
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 5 * time.Minute
	}
	if c.SmallTaskThreshold <= 0 {
		c.SmallTaskThreshold = 1024
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = 30 * time.Second
	}
	if c.MaxProvenanceRecords <= 0 {
		c.MaxProvenanceRecords = 10000
	}
}
