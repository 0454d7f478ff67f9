package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/scout/internal/affiliation"
	"github.com/MrSnakeDoc/scout/internal/config"
	"github.com/MrSnakeDoc/scout/internal/domain"
	"github.com/MrSnakeDoc/scout/internal/logger"
	"github.com/MrSnakeDoc/scout/internal/postgres"
	"github.com/MrSnakeDoc/scout/internal/redis"
	"github.com/MrSnakeDoc/scout/internal/scheduler"
	"github.com/MrSnakeDoc/scout/internal/sources"
	"github.com/MrSnakeDoc/scout/internal/sources/amazon"
	"github.com/MrSnakeDoc/scout/internal/sources/hotmart"
	"github.com/MrSnakeDoc/scout/internal/sources/mercadolibre"
	"github.com/MrSnakeDoc/scout/internal/store"
	"github.com/MrSnakeDoc/scout/internal/store/memory"
	pgstore "github.com/MrSnakeDoc/scout/internal/store/postgres"
	redisstore "github.com/MrSnakeDoc/scout/internal/store/redis"
)

// backend is the selected catalog store and what it owns.
type backend struct {
	catalog store.CatalogStore
	reports scheduler.ReportStore // nil when the backend keeps no history
	archive store.ReportArchive
	close   func()
}

func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (*backend, error) {
	switch cfg.Store {
	case config.StorePostgres:
		log.Infof("Connecting to Postgres at %s", postgres.Redact(cfg.DatabaseURL))
		pool, err := postgres.New(ctx, postgres.ConnectOptions{
			DatabaseURL:    cfg.DatabaseURL,
			MaxConns:       int32(cfg.DBMaxConns),
			ConnectTimeout: cfg.ConnectTimeout,
			RetryInterval:  cfg.ConnectRetry,
			MaxWait:        cfg.ConnectMaxWait,
			PingTimeout:    cfg.ConnectPingTimeout,
			WarnThreshold:  cfg.ConnectWarnAttempts,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		st := pgstore.NewStore(pool)
		if err := st.Migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to migrate catalog schema: %w", err)
		}
		return &backend{catalog: st, close: pool.Close}, nil

	case config.StoreRedis:
		log.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		client, err := redis.New(ctx, redis.ConnectOptions{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			RedisDB:        cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.ConnectTimeout,
			RetryInterval:  cfg.ConnectRetry,
			MaxWait:        cfg.ConnectMaxWait,
			PingTimeout:    cfg.ConnectPingTimeout,
			WarnThreshold:  cfg.ConnectWarnAttempts,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		st := redisstore.NewStore(client, redisstore.WithLogger(log))
		return &backend{
			catalog: st,
			reports: st,
			archive: st,
			close: func() {
				if err := client.Close(); err != nil {
					log.Warnf("failed to close redis: %v", err)
				}
			},
		}, nil

	case config.StoreMemory:
		log.Warn("using the in-memory catalog, products are lost on restart")
		return &backend{catalog: memory.New(), close: func() {}}, nil
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Store)
}

// buildSources registers every enabled and configured adapter and the
// affiliation client serving it. A misconfigured source is skipped with a
// warning so the others keep running.
func buildSources(src *config.Sources, catalog store.CatalogStore, autoApprove bool, log logger.Logger) (*sources.Registry, affiliation.Client) {
	reg := sources.NewRegistry()
	router := affiliation.NewRouter(autoApprove)

	register := func(a sources.Adapter) {
		if err := reg.Register(a); err != nil {
			log.Warn("source not registered", logger.String("source", a.Name()), logger.Error(err))
			return
		}
		log.Info("source enabled", logger.String("source", a.Name()))
	}

	if h := src.Hotmart; h.Enabled {
		a, err := hotmart.New(hotmart.Options{
			BaseURL:      h.BaseURL,
			ClientID:     h.ClientID,
			ClientSecret: h.ClientSecret,
			Basic:        h.Basic,
			Logger:       log,
		})
		if err != nil {
			log.Warn("hotmart disabled", logger.Error(err))
		} else {
			register(a)
			if h.Affiliate {
				router.Handle(domain.SourceHotmart, affiliation.NewHTTPClient(a.AffiliationURL(), a.Tokens(), nil))
			}
		}
	}

	if m := src.MercadoLibre; m.Enabled {
		a, err := mercadolibre.New(mercadolibre.Options{
			BaseURL:      m.BaseURL,
			Site:         m.Site,
			Queries:      m.Queries,
			ClientID:     m.ClientID,
			ClientSecret: m.ClientSecret,
			Logger:       log,
		})
		if err != nil {
			log.Warn("mercadolibre disabled", logger.Error(err))
		} else {
			register(a)
		}
	}

	if az := src.Amazon; az.Enabled {
		a, err := amazon.New(amazon.Options{
			Pages:    az.Pages,
			Currency: az.Currency,
			Logger:   log,
		})
		if err != nil {
			log.Warn("amazon disabled", logger.Error(err))
		} else {
			register(a)
			if az.PartnerTag != "" {
				router.Handle(domain.SourceAmazon, affiliation.NewTagLinker(az.Host, az.PartnerTag))
			}
		}
	}

	return reg, affiliation.NewIdempotent(router, catalogLookup(catalog))
}

// catalogLookup adapts CatalogStore.Get to the affiliation lookup contract.
func catalogLookup(catalog store.CatalogStore) affiliation.Lookup {
	return func(ctx context.Context, externalID string) (*domain.CatalogEntry, error) {
		e, err := catalog.Get(ctx, externalID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return e, err
	}
}
