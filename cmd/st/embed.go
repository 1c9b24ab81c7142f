package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tanatools/supertag/internal/config"
	"github.com/tanatools/supertag/internal/embed"
	"github.com/tanatools/supertag/internal/sterr"
	"github.com/tanatools/supertag/internal/ui"
	"github.com/tanatools/supertag/internal/workspace"
)

var (
	embedLimit      int
	embedDepth      int
	embedReset      bool
	embedWithParent bool
)

var embedCmd = &cobra.Command{
	Use:     "embed",
	Short:   "Semantic search over node embeddings",
	GroupID: "query",
	Long: `Generate and query vector embeddings of node names via a local
Ollama instance. Run "st embed generate" after indexing, then
"st embed search <text>".`,
}

func openEmbedEnv() (*workspace.Env, *embed.VecStore, *embed.OllamaSink, error) {
	env, err := openEnv()
	if err != nil {
		return nil, nil, nil, err
	}
	vectors, err := embed.OpenVecStore(env.Workspace.VectorDir())
	if err != nil {
		env.Close()
		return nil, nil, nil, err
	}
	sink, err := embed.NewOllamaSink(config.GetString("embed.model"))
	if err != nil {
		env.Close()
		return nil, nil, nil, err
	}
	return env, vectors, sink, nil
}

var embedConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the active embedding configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := map[string]interface{}{
			"model":         config.GetString("embed.model"),
			"batch_size":    config.GetInt("embed.batch-size"),
			"min_length":    config.GetInt("embed.min-length"),
			"entities_only": config.GetBool("embed.entities-only"),
		}
		if jsonMode() {
			return printJSON(out)
		}
		fmt.Printf("model:          %s\n", out["model"])
		fmt.Printf("batch size:     %d\n", out["batch_size"])
		fmt.Printf("min length:     %d\n", out["min_length"])
		fmt.Printf("entities only:  %v\n", out["entities_only"])

		sink, err := embed.NewOllamaSink(config.GetString("embed.model"))
		if err == nil && sink.Available(cmd.Context()) {
			fmt.Println(ui.TableSuccessStyle.Render("✓") + " ollama reachable")
		} else {
			fmt.Println(ui.TableWarningStyle.Render("⚠ ollama not reachable"))
		}
		return nil
	},
}

var embedGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Embed new and changed nodes",
	Long: `Embed every eligible node whose text changed since the last run.
Progress is durable per batch; an interrupted run resumes where it
stopped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, vectors, sink, err := openEmbedEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		if !sink.Available(cmd.Context()) {
			return sterr.New(sterr.LocalAPIUnavailable, "ollama is not reachable").
				WithSuggestion("start ollama, then: ollama pull " + sink.Model())
		}

		filter := embed.NewFilter(env.Store, embed.FilterOptions{
			MinLength:    config.GetInt("embed.min-length"),
			EntitiesOnly: config.GetBool("embed.entities-only"),
		})
		gen := embed.NewGenerator(env.Store, vectors, sink, filter, config.GetInt("embed.batch-size"))
		report, err := gen.Generate(cmd.Context())
		if report != nil && !jsonMode() {
			fmt.Printf("selected %d, embedded %d, unchanged %d (%d batches)\n",
				report.Selected, report.Embedded, report.Skipped, report.Batches)
		}
		if err != nil {
			return err
		}
		if jsonMode() {
			return printJSON(report)
		}
		return nil
	},
}

var embedSearchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Semantic search over embedded nodes",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, vectors, sink, err := openEmbedEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		searcher := embed.NewSearcher(env.Store, vectors, sink)
		results, err := searcher.Search(cmd.Context(), strings.Join(args, " "), embed.SearchOptions{
			Limit:         embedLimit,
			WithAncestors: embedWithParent,
			ChildDepth:    embedDepth,
		})
		if err != nil {
			return err
		}
		if jsonMode() {
			return printJSON(results)
		}
		if len(results) == 0 {
			fmt.Println(ui.TableHintStyle.Render("no matches"))
			return nil
		}
		for _, r := range results {
			line := fmt.Sprintf("%.3f  %s [%s]", r.Score, nodeName(r.Node), r.Node.ID)
			for _, t := range r.Tags {
				line += " #" + t
			}
			if r.Ancestor != nil {
				line += ui.TableHintStyle.Render("  < " + nodeName(r.Ancestor))
			}
			fmt.Println(line)
			for _, c := range r.Children {
				fmt.Println("    - " + nodeName(c))
			}
		}
		return nil
	},
}

var embedStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Embedding bookkeeping counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		es, err := env.Store.EmbeddingStatistics(cmd.Context())
		if err != nil {
			return err
		}
		if jsonMode() {
			return printJSON(es)
		}
		fmt.Printf("embeddings:  %d\n", es.Count)
		fmt.Printf("dimensions:  %d\n", es.Dimensions)
		if es.NewestAt > 0 {
			fmt.Printf("newest:      %s\n", formatEpoch(es.NewestAt))
		}
		return nil
	},
}

var embedMaintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Drop vectors for deleted or no-longer-eligible nodes",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, vectors, sink, err := openEmbedEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		if embedReset {
			ids := vectors.IDs()
			if err := vectors.Delete(ids...); err != nil {
				return err
			}
			if err := env.Store.DeleteEmbeddings(cmd.Context(), ids); err != nil {
				return err
			}
			fmt.Printf("dropped all %d vectors\n", len(ids))
			return nil
		}

		filter := embed.NewFilter(env.Store, embed.FilterOptions{
			MinLength:    config.GetInt("embed.min-length"),
			EntitiesOnly: config.GetBool("embed.entities-only"),
		})
		gen := embed.NewGenerator(env.Store, vectors, sink, filter, config.GetInt("embed.batch-size"))
		dropped, err := gen.Maintain(cmd.Context())
		if err != nil {
			return err
		}
		if jsonMode() {
			return printJSON(map[string]int{"dropped": dropped})
		}
		fmt.Printf("dropped %d stale vectors\n", dropped)
		return nil
	},
}

func init() {
	embedSearchCmd.Flags().IntVar(&embedLimit, "limit", 10, "maximum results")
	embedSearchCmd.Flags().IntVar(&embedDepth, "depth", 0, "include children down to this depth")
	embedSearchCmd.Flags().BoolVar(&embedWithParent, "ancestors", true, "attach the nearest named ancestor")
	embedMaintainCmd.Flags().BoolVar(&embedReset, "reset", false, "drop every vector and start over")

	embedCmd.AddCommand(embedConfigCmd, embedGenerateCmd, embedSearchCmd, embedStatsCmd, embedMaintainCmd)
	rootCmd.AddCommand(embedCmd)
}
