package core

import (
	"fmt"
	"strings"
	"time"
)

type DeliveryConfig struct {
	MaxConcurrent        int           `koanf:"max_concurrent" mapstructure:"max_concurrent"`
	DefaultTimeout       time.Duration `koanf:"default_timeout" mapstructure:"default_timeout"`
	MaxResponseBodyBytes int64         `koanf:"max_response_body_bytes" mapstructure:"max_response_body_bytes"`
	ErrorSummaryLimit    int           `koanf:"error_summary_limit" mapstructure:"error_summary_limit"`
}

type RetryConfig struct {
	MaxRetries        int           `koanf:"max_retries" mapstructure:"max_retries"`
	InitialDelay      time.Duration `koanf:"initial_delay" mapstructure:"initial_delay"`
	BackoffMultiplier float64       `koanf:"backoff_multiplier" mapstructure:"backoff_multiplier"`
}

// EscalationConfig controls auto-deactivation of failing subscriptions.
type EscalationConfig struct {
	MinSent      int     `koanf:"min_sent" mapstructure:"min_sent"`
	FailureRatio float64 `koanf:"failure_ratio" mapstructure:"failure_ratio"`
}

type BreakerConfig struct {
	Enabled          bool          `koanf:"enabled" mapstructure:"enabled"`
	FailureThreshold uint32        `koanf:"failure_threshold" mapstructure:"failure_threshold"`
	Cooldown         time.Duration `koanf:"cooldown" mapstructure:"cooldown"`
}

type Config struct {
	ServiceName string           `koanf:"service_name" mapstructure:"service_name"`
	Source      string           `koanf:"source" mapstructure:"source"`
	Version     string           `koanf:"version" mapstructure:"version"`
	Delivery    DeliveryConfig   `koanf:"delivery" mapstructure:"delivery"`
	Retry       RetryConfig      `koanf:"retry" mapstructure:"retry"`
	Escalation  EscalationConfig `koanf:"escalation" mapstructure:"escalation"`
	Breaker     BreakerConfig    `koanf:"breaker" mapstructure:"breaker"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "oee-hooks",
		Source:      "oee-monitor",
		Version:     "1.0.0",
		Delivery: DeliveryConfig{
			MaxConcurrent:        5,
			DefaultTimeout:       DefaultSubscriptionTimeout,
			MaxResponseBodyBytes: 64 * 1024,
			ErrorSummaryLimit:    ErrorSummaryLimit,
		},
		Retry: RetryConfig{
			MaxRetries:        DefaultMaxRetries,
			InitialDelay:      DefaultInitialDelay,
			BackoffMultiplier: DefaultBackoffMultiplier,
		},
		Escalation: EscalationConfig{
			MinSent:      10,
			FailureRatio: 0.8,
		},
		Breaker: BreakerConfig{
			Enabled:          false,
			FailureThreshold: 5,
			Cooldown:         time.Minute,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.Source) == "" {
		return fmt.Errorf("core: source is required")
	}
	if c.Delivery.MaxConcurrent <= 0 {
		return fmt.Errorf("core: delivery.max_concurrent must be > 0")
	}
	if c.Delivery.DefaultTimeout < 0 {
		return fmt.Errorf("core: delivery.default_timeout must be >= 0")
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("core: retry.max_retries must be >= 0")
	}
	if c.Retry.BackoffMultiplier < 0 {
		return fmt.Errorf("core: retry.backoff_multiplier must be >= 0")
	}
	if c.Escalation.FailureRatio < 0 || c.Escalation.FailureRatio > 1 {
		return fmt.Errorf("core: escalation.failure_ratio must be within [0,1]")
	}
	if c.Breaker.Enabled && c.Breaker.FailureThreshold == 0 {
		return fmt.Errorf("core: breaker.failure_threshold must be > 0 when breaker is enabled")
	}
	return nil
}

// RetryPolicy returns the engine-wide default policy.
func (c Config) RetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        c.Retry.MaxRetries,
		InitialDelay:      c.Retry.InitialDelay,
		BackoffMultiplier: c.Retry.BackoffMultiplier,
	}
}
