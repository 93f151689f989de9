package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/docquery/docquery/internal/service"
)

// watchDebounce coalesces bursts of filesystem events into one sync.
const watchDebounce = 2 * time.Second

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Sync automatically when documents change",
		Long: `Watch monitors the namespace's docs and custom_chunks directories and
runs a sync whenever files change, debounced so a burst of writes
triggers one pass. Stops on Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			svc, cleanup, err := newService(false)
			if err != nil {
				return err
			}
			defer cleanup()

			dirs := []string{
				cfg.DocsDir(namespaceFlag),
				cfg.CustomChunksDir(namespaceFlag),
			}
			for _, dir := range dirs {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(cmd.OutOrStdout(), "watching %s and %s\n", dirs[0], dirs[1])
			return runWatch(ctx, cmd, svc, dirs)
		},
	}
	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, svc *service.Service, dirs []string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return err
		}
	}

	// Catch up on anything that changed before the watch started.
	if err := syncOnce(ctx, cmd, svc); err != nil {
		return err
	}

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
				timerC = timer.C
			} else {
				timer.Reset(watchDebounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", slog.String("error", err.Error()))

		case <-timerC:
			timer = nil
			timerC = nil
			if err := syncOnce(ctx, cmd, svc); err != nil {
				slog.Warn("auto-sync failed", slog.String("error", err.Error()))
			}
		}
	}
}

func syncOnce(ctx context.Context, cmd *cobra.Command, svc *service.Service) error {
	pending, err := svc.HasPendingChanges(namespaceFlag, nil)
	if err != nil {
		return err
	}
	if !pending {
		return nil
	}

	report, err := svc.Sync(ctx, namespaceFlag, nil)
	if err != nil {
		return err
	}
	printReport(cmd, report)
	return nil
}
