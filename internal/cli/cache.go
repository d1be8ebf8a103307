package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/makegraph/pkg/cache"
	"github.com/matzehuels/makegraph/pkg/errors"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the make database cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear all cached make databases",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(cmd)
			if err != nil {
				return err
			}

			if cfg.RedisURL != "" {
				rc, err := cache.NewRedisCache(cmd.Context(), cfg.RedisURL)
				if err != nil {
					return errors.Wrap(errors.ErrCodeInternal, err, "connect to redis")
				}
				defer rc.Close()

				count, err := rc.Clear(cmd.Context(), redisKeyPrefix)
				if err != nil {
					return errors.Wrap(errors.ErrCodeInternal, err, "clear redis cache")
				}
				printSuccess(c.Stderr, "Cleared %d cached entries", count)
				printDetail(c.Stderr, "Redis: %s", cfg.RedisURL)
				return nil
			}

			dir, err := cacheDir(cfg)
			if err != nil {
				return fmt.Errorf("get cache dir: %w", err)
			}
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				printInfo(c.Stderr, "Cache is empty")
				return nil
			}

			fc, err := cache.NewFileCache(dir)
			if err != nil {
				return errors.Wrap(errors.ErrCodeInvalidPath, err, "open cache %s", dir)
			}
			count, err := fc.Clear()
			if err != nil {
				return errors.Wrap(errors.ErrCodeInvalidPath, err, "clear cache %s", dir)
			}

			printSuccess(c.Stderr, "Cleared %d cached entries", count)
			printDetail(c.Stderr, "Directory: %s", dir)
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.RedisURL != "" {
				fmt.Fprintln(c.Stdout, cfg.RedisURL)
				return nil
			}
			dir, err := cacheDir(cfg)
			if err != nil {
				return fmt.Errorf("get cache dir: %w", err)
			}
			fmt.Fprintln(c.Stdout, dir)
			return nil
		},
	}
}
