package hooks

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-oee-hooks/core"
	"github.com/goliatone/go-oee-hooks/security"
	sqlstore "github.com/goliatone/go-oee-hooks/store/sql"
	"github.com/goliatone/go-oee-hooks/webhooks"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

type setupOptions struct {
	configProvider  core.ConfigProvider
	optionsResolver core.OptionsResolver
	persistence     any
	secrets         core.SecretProvider
	appKey          string
	cache           repositorycache.CacheService
	engineOptions   []webhooks.Option
}

type SetupOption func(*setupOptions)

func WithConfigProvider(provider core.ConfigProvider) SetupOption {
	return func(o *setupOptions) {
		o.configProvider = provider
	}
}

func WithOptionsResolver(resolver core.OptionsResolver) SetupOption {
	return func(o *setupOptions) {
		o.optionsResolver = resolver
	}
}

// WithPersistenceClient switches Setup to the SQL stores. client is a
// *bun.DB or a go-persistence-bun client.
func WithPersistenceClient(client any) SetupOption {
	return func(o *setupOptions) {
		o.persistence = client
	}
}

func WithSecretProvider(provider core.SecretProvider) SetupOption {
	return func(o *setupOptions) {
		o.secrets = provider
	}
}

// WithAppKey seals subscription secrets with an AES-GCM key derived from key.
func WithAppKey(key string) SetupOption {
	return func(o *setupOptions) {
		o.appKey = key
	}
}

// WithSubscriptionCache fronts the SQL subscription store with a read cache.
func WithSubscriptionCache(cache repositorycache.CacheService) SetupOption {
	return func(o *setupOptions) {
		o.cache = cache
	}
}

func WithEngineOptions(opts ...webhooks.Option) SetupOption {
	return func(o *setupOptions) {
		o.engineOptions = append(o.engineOptions, opts...)
	}
}

// Setup loads configuration, builds the stores and starts an engine. Without
// a persistence client the in-memory stores are used.
func Setup(ctx context.Context, runtime Config, opts ...SetupOption) (*Facade, error) {
	options := setupOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&options)
	}

	cfg, err := core.LoadConfig(ctx, options.configProvider, options.optionsResolver, runtime)
	if err != nil {
		return nil, err
	}

	registry, audit, err := buildStores(options)
	if err != nil {
		return nil, err
	}

	engineOpts := append([]webhooks.Option{webhooks.WithAuditSink(audit)}, options.engineOptions...)
	engine, err := webhooks.NewEngine(cfg, registry, engineOpts...)
	if err != nil {
		return nil, err
	}
	return NewFacade(engine, registry, WithAuditReader(audit))
}

func buildStores(options setupOptions) (core.SubscriptionRegistry, core.AuditStore, error) {
	if options.persistence == nil {
		return core.NewMemorySubscriptionStore(), core.NewMemoryAuditStore(), nil
	}

	secrets := options.secrets
	if secrets == nil {
		if strings.TrimSpace(options.appKey) == "" {
			return nil, nil, fmt.Errorf("hooks: a secret provider or app key is required with a persistence client")
		}
		provider, err := security.NewAppKeySecretProviderFromString(options.appKey)
		if err != nil {
			return nil, nil, err
		}
		secrets = provider
	}

	factory := sqlstore.NewRepositoryFactory(secrets)
	if err := factory.BuildStores(options.persistence); err != nil {
		return nil, nil, err
	}

	var registry core.SubscriptionRegistry = factory.SubscriptionStore()
	if options.cache != nil {
		cached, err := sqlstore.NewCachedSubscriptionStore(registry, options.cache)
		if err != nil {
			return nil, nil, err
		}
		registry = cached
	}
	return registry, factory.AuditStore(), nil
}
