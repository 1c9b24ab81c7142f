package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tanatools/supertag/internal/config"
	"github.com/tanatools/supertag/internal/snapshot"
	"github.com/tanatools/supertag/internal/types"
	"github.com/tanatools/supertag/internal/ui"
	"github.com/tanatools/supertag/internal/watcher"
	"github.com/tanatools/supertag/internal/workspace"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	Short:   "Ingest snapshot exports",
	GroupID: "data",
}

var (
	syncAll   bool
	syncFile  string
	syncDelta bool
	keepCount int
	dryRun    bool
)

var syncIndexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index the latest snapshot export",
	Long: `Index the newest export in the workspace's export directory.
Unchanged nodes are skipped via per-node signatures, so re-indexing the
same export is a no-op.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if syncDelta {
			fmt.Println(ui.TableHintStyle.Render("delta sync needs the local API, which is unavailable; running a full re-index"))
		}
		if syncAll {
			return syncIndexAll(cmd.Context())
		}
		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		var report interface{}
		if syncFile != "" {
			report, err = env.IndexFile(cmd.Context(), syncFile)
		} else {
			report, err = env.IndexLatest(cmd.Context(), flagExportDir)
		}
		if err != nil {
			return err
		}
		if jsonMode() {
			return printJSON(report)
		}
		fmt.Println(ui.RenderIndexReport(report.(*types.IndexReport)))
		return nil
	},
}

func syncIndexAll(ctx context.Context) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	report, err := workspace.RunBatch(ctx, reg, nil, func(ctx context.Context, env *workspace.Env) (interface{}, error) {
		return env.IndexLatest(ctx, "")
	})
	if err != nil {
		return err
	}
	if jsonMode() {
		return printJSON(report)
	}
	for _, o := range report.Outcomes {
		if o.Err != nil {
			fmt.Printf("%s: %s\n", o.Alias, ui.TableErrorStyle.Render(o.Error))
			continue
		}
		fmt.Printf("%s:\n%s\n", o.Alias, ui.RenderIndexReport(o.Value.(*types.IndexReport)))
	}
	fmt.Println(ui.TableHintStyle.Render(fmt.Sprintf("%d succeeded, %d failed", report.Succeeded, report.Failed)))
	return nil
}

var syncMonitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch the export directory and index new snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		dir := flagExportDir
		if dir == "" {
			dir = env.Workspace.ExportDir
		}
		w := watcher.New(dir, env, config.GetDuration("debounce"))
		if err := w.Start(cmd.Context()); err != nil {
			return err
		}
		defer w.Stop()
		fmt.Println(ui.TableHintStyle.Render("watching " + dir + " (ctrl-c to stop)"))

		for {
			select {
			case <-cmd.Context().Done():
				return nil
			case ev := <-w.Events():
				if ev.Err != nil {
					reportError(ev.Err)
					continue
				}
				fmt.Println(ui.RenderIndexReport(ev.Report))
			}
		}
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show indexing status",
	RunE: func(cmd *cobra.Command, args []string) error {
		if syncAll {
			reg, err := loadRegistry()
			if err != nil {
				return err
			}
			report, err := workspace.RunBatch(cmd.Context(), reg, nil, func(ctx context.Context, env *workspace.Env) (interface{}, error) {
				return env.Store.Statistics(ctx)
			})
			if err != nil {
				return err
			}
			return printJSON(report)
		}
		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.Close()
		stats, err := env.Store.Statistics(cmd.Context())
		if err != nil {
			return err
		}
		if jsonMode() {
			return printJSON(stats)
		}
		fmt.Println(ui.RenderStats(stats))

		dir := flagExportDir
		if dir == "" {
			dir = env.Workspace.ExportDir
		}
		if dir != "" {
			if latest, err := snapshot.LatestExport(dir); err == nil {
				fmt.Println("latest export:    " + latest)
			}
		}
		return nil
	},
}

var syncCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete old exports, keeping the newest N",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.Close()
		removed, err := env.CleanupExports(keepCount, dryRun)
		if err != nil {
			return err
		}
		if len(removed) == 0 {
			fmt.Println(ui.TableHintStyle.Render("nothing to clean up"))
			return nil
		}
		verb := "removed"
		if dryRun {
			verb = "would remove"
		}
		for _, name := range removed {
			fmt.Printf("%s %s\n", verb, name)
		}
		return nil
	},
}

func init() {
	syncIndexCmd.Flags().BoolVar(&syncAll, "all", false, "index every enabled workspace")
	syncIndexCmd.Flags().StringVar(&syncFile, "file", "", "index a specific export file")
	syncIndexCmd.Flags().BoolVar(&syncDelta, "delta", false, "request a delta sync (falls back to a full re-index)")
	syncStatusCmd.Flags().BoolVar(&syncAll, "all", false, "status for every enabled workspace")
	syncCleanupCmd.Flags().IntVar(&keepCount, "keep", 3, "exports to keep")
	syncCleanupCmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be removed")

	syncCmd.AddCommand(syncIndexCmd, syncMonitorCmd, syncStatusCmd, syncCleanupCmd)
	rootCmd.AddCommand(syncCmd)
}
