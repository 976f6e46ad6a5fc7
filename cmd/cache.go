package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/prospectline/prospect-matcher/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the durable match cache",
}

var cacheSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove all expired entries from the match cache",
	Run: func(*cobra.Command, []string) {
		withCache(func(ctx context.Context, c cacheHandle) {
			c.cache.SweepExpired(ctx)
			c.logger.Info("sweep finished")
		})
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every entry from the match cache",
	Run: func(*cobra.Command, []string) {
		withCache(func(ctx context.Context, c cacheHandle) {
			c.cache.ClearAll(ctx)
			c.logger.Info("cache cleared")
		})
	},
}

func init() {
	cacheCmd.AddCommand(cacheSweepCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

type cacheHandle struct {
	cache  *cache.Cache
	logger *zap.Logger
}

func withCache(fn func(context.Context, cacheHandle)) {
	ctx := context.Background()

	log := newLogger()

	config, err := getConfig()
	if err != nil {
		log.Fatal("getting a config", zap.Error(err))
	}

	var cacheCfg *CacheConfig
	if config != nil {
		cacheCfg = config.Cache
	}

	matchCache, err := buildCache(cacheCfg, log)
	if err != nil {
		log.Fatal("building cache", zap.Error(err))
	}

	fn(ctx, cacheHandle{cache: matchCache, logger: log})
}
