package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tanatools/supertag/internal/query"
	"github.com/tanatools/supertag/internal/ui"
)

var queryCmd = &cobra.Command{
	Use:     "query <expression>",
	Short:   "Run a query expression",
	GroupID: "query",
	Long: `Run a structured query over the index.

Examples:
  st query "find task where Status = Done limit 10"
  st query "find meeting where Location = Zurich order by -created"
  st query "find * where name ~ budget select name,created"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		engine := query.NewEngine(env.Store, env.Schema, nil)
		res, err := engine.ExecuteString(cmd.Context(), strings.Join(args, " "))
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
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
}
