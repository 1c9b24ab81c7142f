package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tanatools/supertag/internal/query"
	"github.com/tanatools/supertag/internal/sterr"
	"github.com/tanatools/supertag/internal/ui"
)

var (
	aggGroupBy []string
	aggPeriod  string
	aggDate    string
	aggPercent bool
	aggTop     int
)

var aggregateCmd = &cobra.Command{
	Use:     "aggregate <expression>",
	Short:   "Count query results by field or time bucket",
	GroupID: "query",
	Long: `Group the results of a query and count per bucket.

Examples:
  st aggregate "find task" --group-by Status
  st aggregate "find meeting where created > 3m" --period week
  st aggregate "find task" --group-by Status --group-by Priority --percent`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(aggGroupBy) == 0 && aggPeriod == "" {
			return sterr.New(sterr.MissingRequired, "need --group-by or --period")
		}
		if len(aggGroupBy) > 2 {
			return sterr.New(sterr.InvalidParameter, "at most two --group-by fields")
		}

		q, err := query.Parse(strings.Join(args, " "))
		if err != nil {
			return sterr.Wrap(sterr.InvalidParameter, err, "parse query")
		}

		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		engine := query.NewEngine(env.Store, env.Schema, nil)
		res, err := engine.Aggregate(cmd.Context(), &query.AggregateRequest{
			Query:       q,
			GroupBy:     aggGroupBy,
			Period:      query.Period(aggPeriod),
			DateField:   aggDate,
			ShowPercent: aggPercent,
			Top:         aggTop,
		})
		if err != nil {
			return err
		}
		if jsonMode() {
			return printJSON(res)
		}
		fmt.Println(ui.RenderAggregate(res))
		return nil
	},
}

func init() {
	aggregateCmd.Flags().StringArrayVar(&aggGroupBy, "group-by", nil, "field to group by (repeatable, max 2)")
	aggregateCmd.Flags().StringVar(&aggPeriod, "period", "", "time bucket: day|week|month|quarter|year")
	aggregateCmd.Flags().StringVar(&aggDate, "date-field", "", "date field for --period (default created)")
	aggregateCmd.Flags().BoolVar(&aggPercent, "percent", false, "show percentages")
	aggregateCmd.Flags().IntVar(&aggTop, "top", 0, "keep only the top N groups")

	rootCmd.AddCommand(aggregateCmd)
}
