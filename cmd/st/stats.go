package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tanatools/supertag/internal/config"
	"github.com/tanatools/supertag/internal/embed"
	"github.com/tanatools/supertag/internal/ui"
)

var (
	statsDB     bool
	statsEmbed  bool
	statsFilter bool
)

var statsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Workspace statistics and health checks",
	GroupID: "admin",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		switch {
		case statsDB:
			report, err := env.Store.CheckIntegrity(cmd.Context())
			if err != nil {
				return err
			}
			if jsonMode() {
				return printJSON(report)
			}
			okMark := func(ok bool) string {
				if ok {
					return ui.TableSuccessStyle.Render("✓")
				}
				return ui.TableErrorStyle.Render("✗")
			}
			fmt.Printf("%s fts rows match nodes (%d / %d)\n", okMark(report.FTSInSync), report.FTSRows, report.Nodes)
			fmt.Printf("%s orphan refs: %d\n", okMark(report.OrphanRefs == 0), report.OrphanRefs)
			fmt.Printf("%s dangling tag applications: %d\n", okMark(report.DanglingTags == 0), report.DanglingTags)
			return nil

		case statsEmbed:
			es, err := env.Store.EmbeddingStatistics(cmd.Context())
			if err != nil {
				return err
			}
			if jsonMode() {
				return printJSON(es)
			}
			fmt.Printf("embeddings:  %d\n", es.Count)
			fmt.Printf("dimensions:  %d\n", es.Dimensions)
			if es.OldestAt > 0 {
				fmt.Printf("oldest:      %s\n", formatEpoch(es.OldestAt))
				fmt.Printf("newest:      %s\n", formatEpoch(es.NewestAt))
			}
			return nil

		case statsFilter:
			filter := embed.NewFilter(env.Store, embed.FilterOptions{
				MinLength:    config.GetInt("embed.min-length"),
				EntitiesOnly: config.GetBool("embed.entities-only"),
			})
			candidates, err := filter.Select(cmd.Context())
			if err != nil {
				return err
			}
			total, err := env.Store.Statistics(cmd.Context())
			if err != nil {
				return err
			}
			if jsonMode() {
				return printJSON(map[string]interface{}{
					"candidates": len(candidates),
					"nodes":      total.Nodes,
				})
			}
			fmt.Printf("embeddable:  %d of %d nodes\n", len(candidates), total.Nodes)
			return nil
		}

		stats, err := env.Store.Statistics(cmd.Context())
		if err != nil {
			return err
		}
		if jsonMode() {
			return printJSON(stats)
		}
		fmt.Println(ui.RenderStats(stats))
		return nil
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsDB, "db", false, "run database integrity checks")
	statsCmd.Flags().BoolVar(&statsEmbed, "embed", false, "embedding bookkeeping stats")
	statsCmd.Flags().BoolVar(&statsFilter, "filter", false, "count nodes the embedding filter selects")

	rootCmd.AddCommand(statsCmd)
}
