package config

import (
	"fmt"
	"log/slog"

	"github.com/rushteam/simkit/cache"
	"github.com/rushteam/simkit/catalog"
	"github.com/rushteam/simkit/core"
	"github.com/rushteam/simkit/encoder"
	"github.com/rushteam/simkit/engine"
	"github.com/rushteam/simkit/personalize"
	"github.com/rushteam/simkit/rules"
	"github.com/rushteam/simkit/store"
)

// Service 是装配完成的服务组件集合。
type Service struct {
	Engine     *engine.Engine
	Aggregator *personalize.Aggregator
	Catalog    core.Catalog
	Defaults   core.QueryOptions
}

// Build 按配置装配引擎与聚合器。
func (c *Config) Build(l *slog.Logger) (*Service, error) {
	log := logger(l)

	cat, err := c.buildCatalog()
	if err != nil {
		return nil, fmt.Errorf("build catalog: %w", err)
	}

	var enc core.Encoder
	if c.Encoder.Endpoint != "" {
		enc = encoder.NewHTTPEncoder(c.Encoder.Endpoint,
			encoder.WithEncoderDim(c.Encoder.Dim),
			encoder.WithEncoderTimeout(c.Encoder.Timeout.Std()),
		)
	}

	emb, err := c.buildCache()
	if err != nil {
		return nil, fmt.Errorf("build cache: %w", err)
	}

	scorer, err := c.buildScorer(log)
	if err != nil {
		return nil, fmt.Errorf("build scorer: %w", err)
	}

	opts := []engine.Option{
		engine.WithLogger(log),
		engine.WithScorer(scorer),
		engine.WithCandidateK(c.Engine.CandidateK),
		engine.WithCatalogTimeout(c.Engine.CatalogTimeout.Std()),
		engine.WithEncodeTimeout(c.Engine.EncodeTimeout.Std()),
		engine.WithCategoryPreFilter(c.Engine.PreFilterCategory),
	}
	if emb != nil {
		opts = append(opts, engine.WithCache(emb))
	}
	if c.Snapshot != "" {
		vs, err := store.LoadSnapshot(c.Snapshot)
		if err != nil {
			return nil, fmt.Errorf("load snapshot: %w", err)
		}
		opts = append(opts, engine.WithStore(vs))
	}

	eng := engine.New(cat, enc, opts...)
	agg := personalize.New(eng, cat,
		personalize.WithLogger(log),
		personalize.WithSeedTimeout(c.Personalize.SeedTimeout.Std()),
	)

	return &Service{
		Engine:     eng,
		Aggregator: agg,
		Catalog:    cat,
		Defaults:   c.Options(),
	}, nil
}

func (c *Config) buildCatalog() (core.Catalog, error) {
	if c.Catalog.Feast.Host != "" {
		return catalog.NewFeastCatalog(
			c.Catalog.Feast.Host,
			c.Catalog.Feast.Port,
			c.Catalog.Feast.Project,
			catalog.StaticIDs(c.Catalog.Feast.IDs),
		)
	}
	mem := catalog.NewMemoryCatalog()
	if c.Catalog.Fixture != "" {
		items, err := catalog.LoadItems(c.Catalog.Fixture)
		if err != nil {
			return nil, err
		}
		mem.Put(items...)
	}
	return mem, nil
}

func (c *Config) buildCache() (core.EmbeddingCache, error) {
	switch c.Cache.Kind {
	case "", "none":
		return nil, nil
	case "memory":
		return cache.NewMemoryCache(c.Cache.MaxSize, c.Cache.TTL.Std()), nil
	case "redis":
		return cache.NewRedisCache(
			c.Cache.Redis.Addr,
			c.Cache.Redis.Password,
			c.Cache.Redis.DB,
			c.Cache.TTL.Std(),
		)
	default:
		return nil, fmt.Errorf("unknown cache kind: %s", c.Cache.Kind)
	}
}

func (c *Config) buildScorer(log *slog.Logger) (*rules.Scorer, error) {
	filters := make([]rules.Filter, 0, len(c.Rules))
	for _, expr := range c.Rules {
		f, err := rules.NewCELFilter(expr)
		if err != nil {
			return nil, fmt.Errorf("compile rule %q: %w", expr, err)
		}
		filters = append(filters, f)
	}
	return rules.NewScorer(log, filters...), nil
}
