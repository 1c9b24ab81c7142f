package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tanatools/supertag/internal/config"
	"github.com/tanatools/supertag/internal/embed"
	"github.com/tanatools/supertag/internal/query"
	"github.com/tanatools/supertag/internal/sterr"
	"github.com/tanatools/supertag/internal/ui"
	"github.com/tanatools/supertag/internal/workspace"
)

var (
	searchTag      string
	searchFields   []string
	searchSemantic bool
	searchRaw      bool
	searchLimit    int
)

var searchCmd = &cobra.Command{
	Use:     "search <text>",
	Short:   "Full-text search over node names",
	GroupID: "query",
	Long: `Search node names. Matches on untitled nodes are lifted to their
nearest tagged ancestor so results stay recognizable.

Examples:
  st search "zurich meeting"
  st search budget --tag task --field Status=Done
  st search "quarterly planning" --semantic`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		if searchSemantic {
			return semanticSearchCLI(cmd, env, text)
		}
		if searchTag != "" {
			return taggedSearch(cmd, env, text)
		}

		matches, err := env.Store.SearchNames(cmd.Context(), text, searchLimit)
		if err != nil {
			return err
		}
		mode := query.ResolveTagged
		if searchRaw {
			mode = query.ResolveRaw
		}
		hits, err := query.ResolveAncestors(cmd.Context(), env.Store, matches, mode)
		if err != nil {
			return err
		}
		if jsonMode() {
			return printJSON(hits)
		}
		if len(hits) == 0 {
			fmt.Println(ui.TableHintStyle.Render("no matches"))
			return nil
		}
		for _, h := range hits {
			line := "- " + nodeName(h.Node) + " [" + h.Node.ID + "]"
			for _, t := range h.Tags {
				line += " #" + t
			}
			if h.MatchCount > 1 {
				line += fmt.Sprintf(" (%d matches)", h.MatchCount)
			}
			fmt.Println(line)
		}
		return nil
	},
}

// taggedSearch routes through the query engine so field filters and tag
// scoping share one evaluation path.
func taggedSearch(cmd *cobra.Command, env *workspace.Env, text string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "find %s where name ~ %q", searchTag, text)
	for _, f := range searchFields {
		k, v, ok := strings.Cut(f, "=")
		if !ok {
			return sterr.New(sterr.InvalidParameter, "--field wants key=value, got %q", f)
		}
		fmt.Fprintf(&b, " and %s = %q", k, v)
	}
	if searchLimit > 0 {
		fmt.Fprintf(&b, " limit %d", searchLimit)
	}

	engine := query.NewEngine(env.Store, env.Schema, nil)
	res, err := engine.ExecuteString(cmd.Context(), b.String())
	if err != nil {
		return err
	}
	if jsonMode() {
		return printJSON(res)
	}
	for _, w := range res.Warnings {
		fmt.Println(ui.TableWarningStyle.Render("⚠ " + w))
	}
	fmt.Println(ui.RenderRows(res.Rows, res.Total, ui.GetWidth()))
	return nil
}

func semanticSearchCLI(cmd *cobra.Command, env *workspace.Env, text string) error {
	vectors, err := embed.OpenVecStore(env.Workspace.VectorDir())
	if err != nil {
		return err
	}
	sink, err := embed.NewOllamaSink(config.GetString("embed.model"))
	if err != nil {
		return err
	}
	searcher := embed.NewSearcher(env.Store, vectors, sink)
	results, err := searcher.Search(cmd.Context(), text, embed.SearchOptions{
		Limit:         searchLimit,
		WithAncestors: true,
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
	}
	return nil
}

func init() {
	searchCmd.Flags().StringVar(&searchTag, "tag", "", "restrict to nodes with this supertag")
	searchCmd.Flags().StringArrayVar(&searchFields, "field", nil, "field filter key=value (with --tag, repeatable)")
	searchCmd.Flags().BoolVar(&searchSemantic, "semantic", false, "semantic search over embeddings")
	searchCmd.Flags().BoolVar(&searchRaw, "raw", false, "skip ancestor resolution")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "maximum results")

	rootCmd.AddCommand(searchCmd)
}
