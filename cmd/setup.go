package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/prospectline/prospect-matcher/internal/cache"
	"github.com/prospectline/prospect-matcher/internal/coordinator"
	"github.com/prospectline/prospect-matcher/internal/identity"
	"github.com/prospectline/prospect-matcher/internal/logger"
	"github.com/prospectline/prospect-matcher/internal/notify"
	"github.com/prospectline/prospect-matcher/internal/secrets"
	"github.com/prospectline/prospect-matcher/internal/source"
	"github.com/prospectline/prospect-matcher/internal/source/gemini"
	"github.com/prospectline/prospect-matcher/internal/source/httpapi"
	"github.com/prospectline/prospect-matcher/internal/source/static"
)

const defaultCachePath = ".prospect-matcher/match-cache.json"

func buildCache(cfg *CacheConfig, log *zap.Logger) (*cache.Cache, error) {
	backend := "file"
	if cfg != nil && strings.TrimSpace(cfg.Backend) != "" {
		backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	}

	switch backend {
	case "file":
		path := defaultCachePath
		if cfg != nil && strings.TrimSpace(cfg.Path) != "" {
			path = strings.TrimSpace(cfg.Path)
		}
		return cache.New(cache.NewFileStore(afero.NewOsFs(), path), log), nil
	case "redis":
		if cfg == nil || cfg.Redis == nil || strings.TrimSpace(cfg.Redis.Addr) == "" {
			return nil, fmt.Errorf("cache.redis.addr is required for the redis backend")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return cache.New(cache.NewRedisStore(client, cfg.Redis.Key), log), nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", backend)
	}
}

func buildSource(ctx context.Context, cfg *SourceConfig, log *zap.Logger) (source.Source, error) {
	provider := "static"
	if cfg != nil && strings.TrimSpace(cfg.Provider) != "" {
		provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	}

	switch provider {
	case "static":
		var fixtures map[string]any
		if cfg != nil {
			fixtures = cfg.Static
		}
		return static.New(fixtures, logger.WithSourceFields(log, "static", ""))
	case "api":
		var tokenFile string
		if cfg != nil && cfg.API != nil {
			tokenFile = cfg.API.TokenFile
		}
		token, err := secrets.Load(secrets.Source{
			Name: "matching api token",
			File: tokenFile,
			Env:  "PROSPECT_MATCHER_TOKEN",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set source.api.token-file or PROSPECT_MATCHER_TOKEN)", err)
		}

		client := httpapi.New(logger.WithSourceFields(log, "api", ""), token)
		if cfg != nil && cfg.API != nil && strings.TrimSpace(cfg.API.BaseURL) != "" {
			client.APIURL = strings.TrimSpace(cfg.API.BaseURL)
		}
		return client, nil
	case "gemini":
		var gcfg GeminiConfig
		if cfg != nil && cfg.Gemini != nil {
			gcfg = *cfg.Gemini
		}
		apiKey, err := secrets.Load(secrets.Source{
			Name: "gemini api key",
			File: gcfg.APIKeyFile,
			Env:  "GEMINI_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set source.gemini.api-key-file or GEMINI_API_KEY)", err)
		}

		generator, err := gemini.NewGenerator(ctx, apiKey, gcfg.Model)
		if err != nil {
			return nil, err
		}

		srcLogger := logger.WithSourceFields(log, "gemini", generator.Model())
		return gemini.NewMatchSource(generator, srcLogger, gcfg.MaxLogLength), nil
	default:
		return nil, fmt.Errorf("unsupported source provider: %s", provider)
	}
}

func buildCoordinator(ctx context.Context, config *Config, log *zap.Logger) (*coordinator.Coordinator, *cache.Cache, error) {
	matchCache, err := buildCache(config.Cache, log)
	if err != nil {
		return nil, nil, fmt.Errorf("building cache: %w", err)
	}

	src, err := buildSource(ctx, config.Source, log)
	if err != nil {
		return nil, nil, fmt.Errorf("building match source: %w", err)
	}

	resolver := identity.NewStatic(config.UserID)
	notifier := notify.NewZapNotifier(log)

	return coordinator.New(src, matchCache, resolver, notifier, log), matchCache, nil
}
