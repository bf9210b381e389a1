package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
)

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

// StaticRawConfigLoader serves a fixed map, mostly for tests and embedded hosts.
type StaticRawConfigLoader struct {
	Values map[string]any
}

func (l StaticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = StaticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	return cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
}

// GoOptionsResolver merges defaults < config < runtime.
type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return resolved, nil
}

// LoadConfig loads raw values through cfgx and layers runtime overrides on top.
func LoadConfig(ctx context.Context, provider ConfigProvider, resolver OptionsResolver, runtime Config) (Config, error) {
	defaults := DefaultConfig()
	if provider == nil {
		provider = NewCfgxConfigProvider(nil)
	}
	if resolver == nil {
		resolver = GoOptionsResolver{}
	}
	loaded, err := provider.Load(ctx, defaults)
	if err != nil {
		return Config{}, err
	}
	return resolver.Resolve(defaults, loaded, runtime)
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	setString := func(key, value string) {
		if includeZero || strings.TrimSpace(value) != "" {
			layer[key] = value
		}
	}
	setString("service_name", cfg.ServiceName)
	setString("source", cfg.Source)
	setString("version", cfg.Version)

	delivery := map[string]any{}
	if includeZero || cfg.Delivery.MaxConcurrent != 0 {
		delivery["max_concurrent"] = cfg.Delivery.MaxConcurrent
	}
	if includeZero || cfg.Delivery.DefaultTimeout != 0 {
		delivery["default_timeout"] = cfg.Delivery.DefaultTimeout
	}
	if includeZero || cfg.Delivery.MaxResponseBodyBytes != 0 {
		delivery["max_response_body_bytes"] = cfg.Delivery.MaxResponseBodyBytes
	}
	if includeZero || cfg.Delivery.ErrorSummaryLimit != 0 {
		delivery["error_summary_limit"] = cfg.Delivery.ErrorSummaryLimit
	}
	if len(delivery) > 0 {
		layer["delivery"] = delivery
	}

	retry := map[string]any{}
	if includeZero || cfg.Retry.MaxRetries != 0 {
		retry["max_retries"] = cfg.Retry.MaxRetries
	}
	if includeZero || cfg.Retry.InitialDelay != 0 {
		retry["initial_delay"] = cfg.Retry.InitialDelay
	}
	if includeZero || cfg.Retry.BackoffMultiplier != 0 {
		retry["backoff_multiplier"] = cfg.Retry.BackoffMultiplier
	}
	if len(retry) > 0 {
		layer["retry"] = retry
	}

	escalation := map[string]any{}
	if includeZero || cfg.Escalation.MinSent != 0 {
		escalation["min_sent"] = cfg.Escalation.MinSent
	}
	if includeZero || cfg.Escalation.FailureRatio != 0 {
		escalation["failure_ratio"] = cfg.Escalation.FailureRatio
	}
	if len(escalation) > 0 {
		layer["escalation"] = escalation
	}

	breaker := map[string]any{}
	if includeZero || cfg.Breaker.Enabled {
		breaker["enabled"] = cfg.Breaker.Enabled
	}
	if includeZero || cfg.Breaker.FailureThreshold != 0 {
		breaker["failure_threshold"] = cfg.Breaker.FailureThreshold
	}
	if includeZero || cfg.Breaker.Cooldown != 0 {
		breaker["cooldown"] = cfg.Breaker.Cooldown
	}
	if len(breaker) > 0 {
		layer["breaker"] = breaker
	}
	return layer
}
