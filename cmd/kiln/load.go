package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hupe1980/kiln"
	"github.com/hupe1980/kiln/loader"
	"github.com/hupe1980/kiln/memory"
	"github.com/hupe1980/kiln/source"
)

var (
	loadDir    string
	loadPrefix string
)

func init() {
	cmd := newLoadCmd()
	cmd.Flags().StringVarP(&loadDir, "dir", "d", ".", "Asset root directory")
	cmd.Flags().StringVar(&loadPrefix, "prefix", "", "Only load assets under this prefix")
	rootCmd.AddCommand(cmd)

	// kiln --dir ./assets is shorthand for kiln load --dir ./assets.
	rootCmd.Flags().StringVarP(&loadDir, "dir", "d", "", "Asset root directory")
	rootCmd.RunE = func(cmd *cobra.Command, _ []string) error {
		if loadDir == "" {
			return cmd.Help()
		}
		return runLoad(cmd.Context(), cmd.OutOrStdout())
	}
}

func newLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Load every asset under a directory",
		Long: `The load command lists every file under --dir, loads them through the
async loader with a raw-bytes decoder, prints statistics and releases
everything again.

Example:
  kiln load --dir ./assets
  kiln load --dir ./assets --prefix textures/ -c kiln.toml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLoad(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func runLoad(ctx context.Context, out io.Writer) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := resolveConfig(configPath)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg.Logging, verbose)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	core, err := kiln.Open(append(cfg.Options(), kiln.WithLogger(log))...)
	if err != nil {
		return fmt.Errorf("open core: %w", err)
	}
	defer func() {
		if cerr := core.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close core: %w", cerr))
		}
	}()

	dir := loadDir
	if dir == "" {
		dir = "."
	}
	return loadDirectory(ctx, core, cfg, dir, out)
}

// loadDirectory loads every asset under dir, prints the summary and unloads
// everything again. Resident assets are unloaded on failure as well.
func loadDirectory(ctx context.Context, core *kiln.Core, cfg *kiln.Config, dir string, out io.Writer) error {
	local := source.NewLocal(dir)
	ids, err := local.List(ctx, loadPrefix)
	if err != nil {
		return fmt.Errorf("list %s: %w", dir, err)
	}

	var src source.Source = local
	if cfg.Loader.CacheBytes > 0 {
		src = source.NewCached(local, cfg.Loader.CacheBytes)
	}

	l, err := core.NewLoader(src, loader.Raw())
	if err != nil {
		return err
	}

	start := time.Now()
	entries, err := l.LoadAll(ctx, ids)
	if err != nil {
		return errors.Join(fmt.Errorf("load: %w", err), l.UnloadAll())
	}
	elapsed := time.Since(start)
	core.Logger().Info("assets loaded", zap.Int("count", len(entries)), zap.Duration("elapsed", elapsed))

	printSummary(out, core.Stats(), l.Stats(), elapsed)

	for _, e := range entries {
		_ = core.Registry().Release(e)
	}
	return l.UnloadAll()
}

func printSummary(out io.Writer, s kiln.Stats, ls loader.Stats, elapsed time.Duration) {
	printSection(out, "loader")
	printStat(out, "loaded", fmt.Sprint(ls.Loaded))
	printStat(out, "failed", fmt.Sprint(ls.Failed))
	printStat(out, "bytes read", humanize.IBytes(ls.BytesRead))
	printStat(out, "elapsed", elapsed.Round(time.Millisecond).String())

	printSection(out, "memory")
	for _, c := range memory.Categories() {
		cs := s.Memory.Category(c)
		printStat(out, c.String(), fmt.Sprintf("%s (peak %s, %d allocs)",
			humanize.IBytes(cs.CurrentUsage), humanize.IBytes(cs.PeakUsage), cs.AllocationCount))
	}
	printStat(out, "in use", humanize.IBytes(uint64(max(s.MemoryInUse, 0)))) //nolint:gosec // clamped

	printSection(out, "resources")
	printStat(out, "registered", fmt.Sprint(s.Resources))
	printStat(out, "loaded", fmt.Sprint(s.States.Loaded))
	printStat(out, "error", fmt.Sprint(s.States.Error))
	printStat(out, "handles", fmt.Sprint(s.Handles))
}

func printSection(out io.Writer, title string) {
	fmt.Fprintf(out, "── %s %s\n", title, strings.Repeat("─", max(3, 40-len(title))))
}

func printStat(out io.Writer, label, value string) {
	dots := max(3, 28-len(label))
	fmt.Fprintf(out, "  %s %s %s\n", label, strings.Repeat("·", dots), value)
}
