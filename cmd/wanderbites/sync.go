package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/eringen/wanderbites"
	"github.com/eringen/wanderbites/cache"
	"github.com/eringen/wanderbites/content"
)

var flagSyncOut string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Mirror CMS content into the local SQLite store",
	Long: `Fetch every post, author and category from Cosmic and replace the
contents of the SQLite mirror with them.

The mirror path comes from content.mirror_path unless overridden with --out.
Run the site from the mirror with content.source set to sqlite. With the
redis cache backend, cached responses are flushed afterwards so running
sites serve the fresh content.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := wanderbites.LoadConfig(flagConfig)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		log := wanderbites.NewLogger(cfg.Log.Level, cfg.Log.Pretty)

		src, err := content.NewCosmicClient(cfg.CosmicConfig(), nil, log)
		if err != nil {
			return err
		}

		path := cfg.Content.MirrorPath
		if flagSyncOut != "" {
			path = flagSyncOut
		}
		dst, err := content.OpenSQLite(path)
		if err != nil {
			return fmt.Errorf("opening mirror: %w", err)
		}
		defer dst.Close()

		counts, err := content.Mirror(cmd.Context(), src, dst)
		if err != nil {
			return fmt.Errorf("mirroring: %w", err)
		}
		for _, kind := range content.MirrorKinds {
			log.Info().Str("kind", string(kind)).Int("records", counts[kind]).Msg("mirrored")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Mirrored %d post(s), %d author(s), %d categor(ies) into %s.\n",
			counts[content.KindPost], counts[content.KindAuthor], counts[content.KindCategory], path)

		flushed, err := flushSharedCache(cmd.Context(), cfg, dst, log)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("addr", cfg.Cache.Redis.Addr).Msg("shared cache not flushed")
		case flushed:
			log.Info().Str("addr", cfg.Cache.Redis.Addr).Msg("shared cache flushed")
		}
		return nil
	},
}

// flushSharedCache drops the responses running sites cached in redis. Other
// backends live inside each server process and are left alone.
func flushSharedCache(ctx context.Context, cfg wanderbites.SiteConfig, repo content.Repository, log zerolog.Logger) (bool, error) {
	if cfg.Cache.Backend != "redis" {
		return false, nil
	}
	r := cache.NewRedis(cfg.RedisConfig())
	defer r.Close()
	if err := r.Ping(ctx); err != nil {
		return false, err
	}
	if err := content.NewCached(repo, r, cfg.Cache.TTL, log).Invalidate(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func init() {
	syncCmd.Flags().StringVar(&flagSyncOut, "out", "", "override the mirror database path")
}
