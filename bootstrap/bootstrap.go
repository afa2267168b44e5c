// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bootstrap builds a ready Service from configuration: providers,
// cache backend, usage sinks, metrics and logger.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	_ "github.com/lib/pq" // postgres driver
	"github.com/prometheus/client_golang/prometheus"

	"axonflow/aiservice/cache"
	"axonflow/aiservice/config"
	"axonflow/aiservice/llm"
	"axonflow/aiservice/providers"
	"axonflow/aiservice/service"
	"axonflow/aiservice/shared/logger"
	"axonflow/aiservice/usage"
)

// Options override the defaults Build uses for its collaborators.
type Options struct {
	// Factories creates providers. Defaults to providers.Default().
	Factories *llm.FactoryManager

	// Registerer receives the metrics collectors. Defaults to
	// prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer

	// LogOutput replaces the configured logging channel.
	LogOutput io.Writer

	// OpenDB opens the usage database. Defaults to sql.Open("postgres", url).
	OpenDB func(url string) (*sql.DB, error)

	// UsageStore replaces the Postgres store.
	UsageStore usage.Store
}

// Result is a built service and the resources it owns.
type Result struct {
	Service  *service.Service
	Registry *llm.Registry
	Logger   *logger.Logger

	// Usage is the queryable usage store, or nil when storage is disabled.
	Usage usage.Store

	// ProvidersFailed maps provider names to their construction errors.
	ProvidersFailed map[string]error

	closers []func() error
}

// Close releases every resource in reverse order of acquisition.
func (r *Result) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// Build creates the service described by cfg. On error every resource
// acquired so far is released.
func Build(ctx context.Context, cfg *config.Config, opts Options) (_ *Result, err error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	res := &Result{
		Registry:        llm.NewRegistry(),
		ProvidersFailed: make(map[string]error),
	}
	defer func() {
		if err != nil {
			_ = res.Close()
		}
	}()

	out := opts.LogOutput
	if out == nil {
		w, closeLog, err := logger.OpenChannel(cfg.Logging.Channel)
		if err != nil {
			return nil, err
		}
		out = w
		res.closers = append(res.closers, closeLog)
	}
	res.Logger = logger.New("ai-service", logger.WithOutput(out), logger.WithLevel(cfg.Logging.Level))

	factories := opts.Factories
	if factories == nil {
		factories = providers.Default()
	}
	for _, name := range cfg.ProviderNames() {
		if _, err := res.Registry.RegisterFromConfig(factories, cfg.Providers[name]); err != nil {
			res.ProvidersFailed[name] = err
			res.Logger.Warn("", "", "Provider failed to initialize", map[string]interface{}{
				"provider": name,
				"error":    err.Error(),
			})
		}
	}
	if failure, ok := res.ProvidersFailed[cfg.DefaultProvider]; ok {
		return nil, fmt.Errorf("default provider %s: %w", cfg.DefaultProvider, failure)
	}

	svcOpts := []service.Option{
		service.WithDefaultProvider(cfg.DefaultProvider),
		service.WithFallback(cfg.Fallback.Enabled, res.fallbackProviders(cfg)...),
		service.WithLogger(res.Logger),
	}

	if cfg.Cache.Enabled {
		strategy, err := buildCache(ctx, cfg, res.Logger)
		if err != nil {
			return nil, err
		}
		res.closers = append(res.closers, strategy.Close)
		svcOpts = append(svcOpts, service.WithCache(strategy))
	}

	var sinks []usage.Sink
	if cfg.Logging.Enabled {
		usageLog := logger.New("ai-usage", logger.WithOutput(out), logger.WithLevel(cfg.Logging.Level))
		sinks = append(sinks, usage.NewLogSink(usageLog))
	}
	switch {
	case opts.UsageStore != nil:
		res.Usage = opts.UsageStore
	case cfg.Storage.Enabled:
		store, closeDB, err := openPostgres(ctx, cfg.Storage.DatabaseURL, opts.OpenDB)
		if err != nil {
			return nil, err
		}
		res.closers = append(res.closers, closeDB)
		res.Usage = store
	}
	if res.Usage != nil {
		sinks = append(sinks, res.Usage)
	}
	if len(sinks) > 0 {
		svcOpts = append(svcOpts, service.WithRecorder(usage.NewRecorder(sinks...)))
	}

	if cfg.Metrics.Enabled {
		reg := opts.Registerer
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		svcOpts = append(svcOpts, service.WithMetrics(service.NewMetrics(reg)))
	}

	svc, err := service.New(res.Registry, svcOpts...)
	if err != nil {
		return nil, err
	}
	res.Service = svc

	res.Logger.Info("", "", "AI service ready", map[string]interface{}{
		"default_provider": cfg.DefaultProvider,
		"providers":        res.Registry.List(),
		"fallback":         svc.FallbackProviders(),
		"cache":            cfg.Cache.Enabled,
		"storage":          res.Usage != nil,
	})
	return res, nil
}

// fallbackProviders drops fallback entries whose provider failed to build.
func (r *Result) fallbackProviders(cfg *config.Config) []string {
	var out []string
	for _, name := range cfg.Fallback.Providers {
		if err, failed := r.ProvidersFailed[name]; failed {
			r.Logger.Warn("", "", "Skipping fallback provider", map[string]interface{}{
				"provider": name,
				"error":    err.Error(),
			})
			continue
		}
		out = append(out, name)
	}
	return out
}

func buildCache(ctx context.Context, cfg *config.Config, log *logger.Logger) (*cache.Strategy, error) {
	ops, err := cfg.CacheOperations()
	if err != nil {
		return nil, err
	}

	var store cache.Store
	switch cfg.Cache.Driver {
	case config.CacheDriverRedis:
		store, err = cache.OpenRedisStore(ctx, cfg.Cache.RedisURL)
	case config.CacheDriverBadger:
		store, err = cache.OpenBadgerStore(cfg.Cache.BadgerPath, log)
	default:
		store = cache.NewMemoryStore()
	}
	if err != nil {
		return nil, err
	}

	return cache.NewStrategy(store, cache.Config{
		Enabled:        true,
		TTLMinutes:     cfg.Cache.TTLMinutes,
		Operations:     ops,
		ProviderScoped: cfg.Cache.ProviderScoped,
	}, log), nil
}

func openPostgres(ctx context.Context, url string, open func(string) (*sql.DB, error)) (*usage.PostgresStore, func() error, error) {
	if open == nil {
		open = func(url string) (*sql.DB, error) { return sql.Open("postgres", url) }
	}
	db, err := open(url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open usage database: %w", err)
	}
	store := usage.NewPostgresStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return store, db.Close, nil
}
