// Copyright 2026 Quarry Systems
//
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

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	quarry "github.com/quarry-ai/quarry"
	"github.com/quarry-ai/quarry/cache"
	"github.com/quarry-ai/quarry/config"
	"github.com/quarry-ai/quarry/confluence"
)

func main() {
	app := &cli.App{
		Name:  "quarry",
		Usage: "Incremental Confluence-to-OpenWebUI ingestion pipeline",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to TOML configuration file",
				Value:   "quarry.toml",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "fetch",
				Usage:  "Fetch and cache wiki spaces locally",
				Action: fetchCommand,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "space",
						Usage: "Space key to fetch (repeatable; default all)",
					},
					&cli.BoolFlag{
						Name:  "reset",
						Usage: "Re-fetch spaces even when already cached",
					},
				},
			},
			{
				Name:   "upload",
				Usage:  "Chunk, embed and upload cached spaces",
				Action: uploadCommand,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "space",
						Usage: "Space key to upload (repeatable)",
					},
					&cli.BoolFlag{
						Name:  "all-spaces",
						Usage: "Upload every cached space",
					},
					&cli.BoolFlag{
						Name:  "clear-checkpoint",
						Usage: "Discard previous progress and start over",
					},
				},
			},
			{
				Name:   "reconcile",
				Usage:  "Fold legacy *_full cache entries into canonical ones",
				Action: reconcileCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "execute",
						Usage: "Apply changes (default is a dry run)",
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

// signalContext returns a context cancelled by SIGINT or SIGTERM, so an
// interrupted run still gets its checkpoint written.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func fetchCommand(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	fetcher, err := quarry.NewFetcher(cfg)
	if err != nil {
		return err
	}

	refs, err := fetcher.Client.Spaces(ctx)
	if err != nil {
		return fmt.Errorf("listing spaces: %w", err)
	}

	wanted := make(map[string]bool)
	for _, key := range c.StringSlice("space") {
		wanted[key] = true
	}

	fetched, skipped := 0, 0
	for _, ref := range refs {
		if len(wanted) > 0 && !wanted[ref.Key] {
			continue
		}
		if !c.Bool("reset") {
			cached, err := fetcher.Store.Load(ref.Key)
			if err != nil {
				return err
			}
			if cached != nil {
				slog.Debug("space already cached", "space", ref.Key)
				skipped++
				continue
			}
		}

		space, err := fetcher.Client.FetchSpace(ctx, ref, confluence.SamplePolicy{})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("fetching space failed", "space", ref.Key, "err", err)
			continue
		}
		if err := fetcher.Store.Save(ref.Key, space); err != nil {
			return err
		}
		slog.Info("cached space", "space", ref.Key, "pages", len(space.Pages))
		fetched++
	}

	fmt.Fprintf(os.Stderr, "Fetched %d spaces (%d already cached)\n", fetched, skipped)
	return nil
}

func uploadCommand(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	keys := c.StringSlice("space")
	if len(keys) == 0 && !c.Bool("all-spaces") {
		return fmt.Errorf("specify --space or --all-spaces")
	}

	ctx, cancel := signalContext()
	defer cancel()

	ingestor, err := quarry.NewIngestor(cfg)
	if err != nil {
		return err
	}
	defer ingestor.Close()

	if c.Bool("clear-checkpoint") {
		if err := ingestor.Checkpoints.Clear(); err != nil {
			return err
		}
		slog.Info("checkpoint cleared")
	}

	summary, err := ingestor.Pipeline.Run(ctx, keys)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Ingested %d pages (%d skipped, %d failed) across %d spaces in %s\n",
		summary.Ingested, summary.Skipped, summary.Failed, summary.Spaces, summary.Elapsed.Round(10*time.Millisecond))

	if sizes, err := ingestor.Vectors.CollectionSizes(ctx); err != nil {
		slog.Warn("could not read collection sizes", "err", err)
	} else {
		names := make([]string, 0, len(sizes))
		for name := range sizes {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(os.Stderr, "  %s: %d points\n", name, sizes[name])
		}
	}

	if summary.Failed > 0 {
		return fmt.Errorf("%d pages failed; re-run to retry them", summary.Failed)
	}
	return nil
}

func reconcileCommand(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	store, err := cache.NewStore(cfg.Storage.CacheDir)
	if err != nil {
		return err
	}

	resolutions, err := store.Reconcile(c.Bool("execute"))
	if err != nil {
		return err
	}

	if len(resolutions) == 0 {
		fmt.Fprintln(os.Stderr, "Nothing to reconcile")
		return nil
	}
	for _, res := range resolutions {
		fmt.Fprintln(os.Stderr, describeResolution(res))
	}
	if !c.Bool("execute") {
		fmt.Fprintln(os.Stderr, "Dry run; pass --execute to apply")
	}
	return nil
}

// describeResolution renders one reconcile outcome. The legacy file's
// content survives under the canonical name in the promotion cases, so
// the message names both sides rather than calling it a plain drop.
func describeResolution(res cache.Resolution) string {
	return fmt.Sprintf("%s: keep %s, remove %s (%s)", res.Key, res.Kept, res.Dropped, res.Reason)
}
