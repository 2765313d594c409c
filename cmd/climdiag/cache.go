package main

import (
	"fmt"
	"time"

	"github.com/panbanda/climdiag/internal/cache"
	"github.com/panbanda/climdiag/internal/output"
	"github.com/urfave/cli/v2"
)

func cacheCmd() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect or clear the result cache",
		Subcommands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show the number, size and age of cached results",
				Action: runCacheStats,
			},
			{
				Name:   "clear",
				Usage:  "Remove every cached result",
				Action: runCacheClear,
			},
		},
	}
}

// openCache opens the configured cache directory even when caching is
// disabled for computations.
func openCache(c *cli.Context) (*env, *cache.Cache, error) {
	e, err := newEnv(c)
	if err != nil {
		return nil, nil, err
	}
	store, err := cache.New(e.cfg.Cache.Dir, e.cfg.Cache.TTL, true)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open cache %q: %w", e.cfg.Cache.Dir, err)
	}
	return e, store, nil
}

type cacheStats struct {
	Dir string `json:"dir"`
	*cache.Stats
}

func runCacheStats(c *cli.Context) error {
	e, store, err := openCache(c)
	if err != nil {
		return err
	}
	st, err := store.GetStats()
	if err != nil {
		return err
	}

	summary := &output.Summary{Title: "Cache", Data: cacheStats{Dir: e.cfg.Cache.Dir, Stats: st}}
	summary.
		Add("Directory", e.cfg.Cache.Dir).
		Add("Entries", fmt.Sprint(st.Entries)).
		Add("Size", fmt.Sprintf("%d bytes", st.TotalSize))
	if st.Entries > 0 {
		summary.
			Add("Oldest", st.OldestAge.Round(time.Second).String()).
			Add("Newest", st.NewestAge.Round(time.Second).String())
	}

	formatter, err := e.formatter(c)
	if err != nil {
		return err
	}
	defer formatter.Close()

	return formatter.Output(summary)
}

func runCacheClear(c *cli.Context) error {
	e, store, err := openCache(c)
	if err != nil {
		return err
	}
	st, err := store.GetStats()
	if err != nil {
		return err
	}
	if err := store.Clear(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	formatter, err := e.formatter(c)
	if err != nil {
		return err
	}
	defer formatter.Close()

	if !e.cfg.Cache.Enabled {
		formatter.Warning("caching is disabled ([cache] enabled = false)")
	}
	formatter.Success("Cleared %s", e.cfg.Cache.Dir)
	formatter.Info("%d entries, %d bytes removed", st.Entries, st.TotalSize)
	return nil
}
