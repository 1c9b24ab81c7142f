package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tanatools/supertag/internal/types"
	"github.com/tanatools/supertag/internal/ui"
)

var fieldsValuesLimit int

var fieldsCmd = &cobra.Command{
	Use:     "fields",
	Short:   "Explore field names and values",
	GroupID: "query",
}

var fieldsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known field names, most used first",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		names, err := env.Store.ListFieldNames(cmd.Context())
		if err != nil {
			return err
		}
		if jsonMode() {
			return printJSON(names)
		}
		for _, n := range names {
			fmt.Printf("%6d  %s\n", n.Count, n.Name)
		}
		return nil
	},
}

var fieldsValuesCmd = &cobra.Command{
	Use:   "values <field>",
	Short: "List values of a field across the workspace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		values, err := env.Store.FieldValuesByName(cmd.Context(), types.NormalizeName(args[0]), fieldsValuesLimit)
		if err != nil {
			return err
		}
		if jsonMode() {
			return printJSON(values)
		}
		if len(values) == 0 {
			fmt.Println(ui.TableHintStyle.Render("no values"))
			return nil
		}
		for _, v := range values {
			fmt.Printf("%s  %s\n", v.ParentID, v.ValueText)
		}
		return nil
	},
}

var fieldsSearchCmd = &cobra.Command{
	Use:   "search <field> <text>",
	Short: "Find nodes whose field value contains the text",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		values, err := env.Store.FieldValuesByName(cmd.Context(), types.NormalizeName(args[0]), 10000)
		if err != nil {
			return err
		}
		needle := strings.ToLower(args[1])
		var hits []types.FieldValue
		for _, v := range values {
			if strings.Contains(strings.ToLower(v.ValueText), needle) {
				hits = append(hits, v)
			}
		}
		if jsonMode() {
			return printJSON(hits)
		}
		if len(hits) == 0 {
			fmt.Println(ui.TableHintStyle.Render("no matches"))
			return nil
		}
		for _, v := range hits {
			fmt.Printf("%s  %s = %s\n", v.ParentID, v.FieldName, v.ValueText)
		}
		return nil
	},
}

func init() {
	fieldsValuesCmd.Flags().IntVar(&fieldsValuesLimit, "limit", 100, "maximum values")

	fieldsCmd.AddCommand(fieldsListCmd, fieldsValuesCmd, fieldsSearchCmd)
	rootCmd.AddCommand(fieldsCmd)
}
