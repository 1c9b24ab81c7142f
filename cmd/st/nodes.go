package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tanatools/supertag/internal/sterr"
	"github.com/tanatools/supertag/internal/ui"
	"github.com/tanatools/supertag/internal/workspace"
)

var (
	nodeDepth       int
	nodeRecentLimit int
)

var nodeCmd = &cobra.Command{
	Use:     "node",
	Short:   "Inspect individual nodes",
	GroupID: "query",
}

var nodeShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a node with its tags and fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		node, err := env.Store.GetNode(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		tags, err := env.Store.TagsOfNode(cmd.Context(), node.ID)
		if err != nil {
			return err
		}
		values, err := env.Store.FieldValuesOfNode(cmd.Context(), node.ID)
		if err != nil {
			return err
		}

		if jsonMode() {
			out := map[string]interface{}{"node": node, "tags": tags, "fields": values}
			if nodeDepth > 0 {
				children, err := env.Store.GetChildren(cmd.Context(), node.ID)
				if err != nil {
					return err
				}
				out["children"] = children
			}
			return printJSON(out)
		}

		fmt.Println(ui.TableHeaderStyle.Render(nodeName(node)) + "  [" + node.ID + "]")
		if node.Created > 0 {
			fmt.Println("created:  " + formatEpoch(node.Created))
		}
		if node.Updated > 0 {
			fmt.Println("updated:  " + formatEpoch(node.Updated))
		}
		if len(tags) > 0 {
			names := make([]string, 0, len(tags))
			for _, t := range tags {
				names = append(names, "#"+t.TagName)
			}
			fmt.Println("tags:     " + strings.Join(names, " "))
		}
		for _, v := range values {
			fmt.Printf("%-9s %s\n", v.FieldName+":", v.ValueText)
		}
		if nodeDepth > 0 {
			if err := printChildren(cmd, env, node.ID, nodeDepth, 1); err != nil {
				return err
			}
		}
		return nil
	},
}

func printChildren(cmd *cobra.Command, env *workspace.Env, id string, depth, level int) error {
	children, err := env.Store.GetChildren(cmd.Context(), id)
	if err != nil {
		return err
	}
	indent := strings.Repeat("  ", level)
	for _, c := range children {
		fmt.Println(indent + "- " + nodeName(c) + " [" + c.ID + "]")
		if level < depth {
			if err := printChildren(cmd, env, c.ID, depth, level+1); err != nil {
				return err
			}
		}
	}
	return nil
}

var nodeRefsCmd = &cobra.Command{
	Use:   "refs <id>",
	Short: "Show references to and from a node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		// Make sure the node exists before listing edges.
		if _, err := env.Store.GetNode(cmd.Context(), args[0]); err != nil {
			return err
		}
		outbound, inbound, err := env.Store.RefsOfNode(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonMode() {
			return printJSON(map[string]interface{}{"outbound": outbound, "inbound": inbound})
		}
		for _, r := range outbound {
			fmt.Printf("-> %s (%s)\n", r.ToNode, r.RefType)
		}
		for _, r := range inbound {
			fmt.Printf("<- %s (%s)\n", r.FromNode, r.RefType)
		}
		if len(outbound)+len(inbound) == 0 {
			fmt.Println(ui.TableHintStyle.Render("no references"))
		}
		return nil
	},
}

var nodeRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List the most recently created nodes",
	RunE: func(cmd *cobra.Command, args []string) error {
		if nodeRecentLimit <= 0 {
			return sterr.New(sterr.InvalidParameter, "--limit must be positive")
		}
		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		nodes, err := env.Store.RecentNodes(cmd.Context(), nodeRecentLimit)
		if err != nil {
			return err
		}
		if jsonMode() {
			return printJSON(nodes)
		}
		for _, n := range nodes {
			fmt.Printf("%s  %s [%s]\n", formatEpoch(n.Created), nodeName(n), n.ID)
		}
		return nil
	},
}

func formatEpoch(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Format("2006-01-02 15:04")
}

func init() {
	nodeShowCmd.Flags().IntVar(&nodeDepth, "depth", 0, "include children down to this depth")
	nodeRecentCmd.Flags().IntVar(&nodeRecentLimit, "limit", 20, "maximum results")

	nodeCmd.AddCommand(nodeShowCmd, nodeRefsCmd, nodeRecentCmd)
	rootCmd.AddCommand(nodeCmd)
}
