package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	syncengine "scansync/store/sync"
)

// newSyncCmd creates the sync command.
func newSyncCmd() *cobra.Command {
	var watch bool
	var intervalMinutes int

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize the local store with the remote store",
		Long: `Reconcile the local database with the shared remote store in three
phases:

- Download: fetch the complete remote collections
- Merge: insert remote items missing locally (local items are never
  overwritten)
- Upload: write every local item to the remote store, compressing images
  to fit the remote document size limit

Per-item failures are counted and reported; only losing the remote store
entirely aborts a run. Re-running a failed sync converges.

Examples:
  scansync sync              # one sync run
  scansync sync --plain      # no live progress bar
  scansync sync --watch      # keep syncing on an interval`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			engine, err := app.Engine()
			if err != nil {
				return err
			}

			if !watch {
				return runSyncOnce(engine)
			}

			interval := time.Duration(intervalMinutes) * time.Minute
			if intervalMinutes == 0 {
				if app.Config.Sync.AutoSyncMinutes > 0 {
					interval = time.Duration(app.Config.Sync.AutoSyncMinutes) * time.Minute
				} else {
					interval = 5 * time.Minute
				}
			}
			return runSyncWatch(engine, interval)
		},
	}

	syncCmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep syncing on an interval")
	syncCmd.Flags().IntVarP(&intervalMinutes, "interval", "i", 0, "watch interval in minutes")

	return syncCmd
}

func runSyncOnce(engine *syncengine.Engine) error {
	useTUI := !plainOutput && isatty.IsTerminal(os.Stdout.Fd())

	var result *syncengine.Result
	var syncErr error
	if useTUI {
		result, syncErr = runSyncWithProgressUI(engine)
	} else {
		unsubscribe := engine.Subscribe(func(p syncengine.Progress) {
			fmt.Printf("%s: %d/%d\n", p.Phase, p.Current, p.Total)
		})
		defer unsubscribe()
		result, syncErr = engine.Sync(context.Background())
	}

	if result != nil {
		printSyncSummary(result)
	}
	if syncErr != nil {
		if errors.Is(syncErr, syncengine.ErrSyncInProgress) {
			return fmt.Errorf("a sync is already running")
		}
		return fmt.Errorf("sync failed: %w", syncErr)
	}
	return nil
}

// runSyncWatch runs sync on a fixed interval until interrupted. A tick that
// lands while a run is still active is skipped.
func runSyncWatch(engine *syncengine.Engine, interval time.Duration) error {
	fmt.Printf("Syncing every %s, press Ctrl+C to stop.\n", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	run := func() {
		result, err := engine.Sync(context.Background())
		if err != nil {
			if errors.Is(err, syncengine.ErrSyncInProgress) {
				return
			}
			fmt.Println(errorStyle.Render("sync failed: ") + err.Error())
		}
		if result != nil {
			printSyncSummary(result)
		}
	}

	run()
	for range ticker.C {
		run()
	}
	return nil
}

func printSyncSummary(result *syncengine.Result) {
	fmt.Println(headerStyle.Render("Sync summary"))
	fmt.Printf("  Downloaded:  %d\n", result.Downloaded)
	fmt.Printf("  Merged new:  %d\n", result.MergedNew)
	fmt.Printf("  Uploaded:    %d\n", result.Uploaded)

	if n := result.ErrorCount(); n > 0 {
		fmt.Println(warnStyle.Render(fmt.Sprintf("  Errors:      %d", n)))
		for _, f := range result.Failures {
			if f.Kind == syncengine.KindPermissionDenied {
				continue
			}
			fmt.Println(dimStyle.Render(fmt.Sprintf("    %s %s: %s", f.Collection, f.ID, f.Kind)))
		}
	} else {
		fmt.Println(successStyle.Render("  Errors:      0"))
	}
	if result.PermissionDenied > 0 {
		fmt.Println(dimStyle.Render(fmt.Sprintf("  Skipped (already present remotely): %d", result.PermissionDenied)))
	}
	fmt.Println(dimStyle.Render(fmt.Sprintf("  Took %s", result.Duration.Round(time.Millisecond))))
}
