package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tanatools/supertag/internal/types"
	"github.com/tanatools/supertag/internal/ui"
)

var tagsTopLimit int

var tagsCmd = &cobra.Command{
	Use:     "tags",
	Short:   "Explore the supertag catalog",
	GroupID: "query",
}

var tagsListCmd = &cobra.Command{
	Use:   "list [pattern]",
	Short: "List supertags, optionally filtered by name",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		var tags []*types.Supertag
		if len(args) == 1 {
			tags, err = env.Schema.SearchSupertags(cmd.Context(), args[0])
		} else {
			tags, err = env.Schema.ListSupertags(cmd.Context())
		}
		if err != nil {
			return err
		}
		if jsonMode() {
			return printJSON(tags)
		}
		if len(tags) == 0 {
			fmt.Println(ui.TableHintStyle.Render("no supertags"))
			return nil
		}
		for _, t := range tags {
			line := "#" + t.Name
			if len(t.Fields) > 0 {
				line += ui.TableHintStyle.Render(fmt.Sprintf("  (%d fields)", len(t.Fields)))
			}
			if len(t.ParentIDs) > 0 {
				line += ui.TableHintStyle.Render("  extends " + strings.Join(t.ParentIDs, ", "))
			}
			fmt.Println(line)
		}
		return nil
	},
}

var tagsTopCmd = &cobra.Command{
	Use:   "top",
	Short: "Supertags ranked by how many nodes carry them",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		counts, err := env.Store.TopSupertags(cmd.Context(), tagsTopLimit)
		if err != nil {
			return err
		}
		if jsonMode() {
			return printJSON(counts)
		}
		for _, c := range counts {
			fmt.Printf("%6d  #%s\n", c.Count, c.TagName)
		}
		return nil
	},
}

var tagsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show one supertag with its full (inherited) field set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		st, err := env.Schema.GetSupertag(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fields, err := env.Schema.AllFields(cmd.Context(), st.ID)
		if err != nil {
			return err
		}
		if jsonMode() {
			return printJSON(map[string]interface{}{"supertag": st, "all_fields": fields})
		}

		fmt.Println(ui.TableHeaderStyle.Render("#"+st.Name) + "  [" + st.ID + "]")
		if st.Description != nil && *st.Description != "" {
			fmt.Println(*st.Description)
		}
		if len(st.ParentIDs) > 0 {
			fmt.Println("extends: " + strings.Join(st.ParentIDs, ", "))
		}
		for _, f := range fields {
			line := fmt.Sprintf("  %-24s %s", f.Name, f.DataType)
			if f.Depth > 0 {
				line += ui.TableHintStyle.Render(fmt.Sprintf("  (inherited, depth %d)", f.Depth))
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	tagsTopCmd.Flags().IntVar(&tagsTopLimit, "limit", 20, "maximum results")

	tagsCmd.AddCommand(tagsListCmd, tagsTopCmd, tagsShowCmd)
	rootCmd.AddCommand(tagsCmd)
}
