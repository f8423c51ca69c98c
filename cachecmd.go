package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ratiofetcher/internal/resolver"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the ratio cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show entry counts and sizes of both cache tiers",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openCache(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer m.Close()

		s, err := m.Stats(cmd.Context())
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "durable: %s snapshots, %s\n",
			humanize.Comma(int64(s.DurableEntries)), humanize.Bytes(uint64(s.DurableBytes)))
		fmt.Fprintf(w, "blob (%s): %s entries, %s, %s expired\n", cfg.Cache.BlobBackend,
			humanize.Comma(int64(s.BlobEntries)), humanize.Bytes(uint64(s.BlobBytes)), humanize.Comma(int64(s.ExpiredBlobs)))
		if !s.OldestBlob.IsZero() {
			fmt.Fprintf(w, "oldest blob: %s\n", humanize.Time(s.OldestBlob))
		}
		return nil
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired blob entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openCache(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer m.Close()

		n, err := m.Prune(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "pruned %s expired entries\n", humanize.Comma(int64(n)))
		return nil
	},
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate code...",
	Short: "Drop every cached entry of the given listing codes",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openCache(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer m.Close()

		for _, arg := range args {
			code := resolver.NormalizeCode(arg)
			n, err := m.InvalidateCode(cmd.Context(), code)
			if err != nil {
				return err
			}
			zap.L().Info("cache invalidated", zap.String("code", code), zap.Int("blobs", n))
			fmt.Fprintf(cmd.OutOrStdout(), "%s: removed snapshot and %d blob entries\n", code, n)
		}
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cachePruneCmd, cacheInvalidateCmd)
	rootCmd.AddCommand(cacheCmd)
}
