package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tanatools/supertag/internal/config"
	"github.com/tanatools/supertag/internal/schema"
	"github.com/tanatools/supertag/internal/sink"
	"github.com/tanatools/supertag/internal/sterr"
	"github.com/tanatools/supertag/internal/ui"
)

var (
	createFields   []string
	createChildren []string
	createFile     string
	createTarget   string
	createDryRun   bool
)

var createCmd = &cobra.Command{
	Use:     "create <tag[,tag...]> <name>",
	Short:   "Create a tagged node in the live graph",
	GroupID: "data",
	Long: `Build a node payload from the supertag schema and post it through the
write API. Field names and types come from the indexed catalog, so
unknown fields are dropped and checkbox/date/url values are shaped
correctly.

Examples:
  st create task "Review budget" --field Status=Todo --field Due=2026-09-01
  st create task,urgent "Pay invoice" -c "amount is on the invoice"
  st create task "Draft plan" --dry-run`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		fields, err := collectFields()
		if err != nil {
			return err
		}

		payload, err := env.Schema.BuildPayload(cmd.Context(), schema.SplitTags(args[0]), args[1], fields)
		if err != nil {
			return err
		}
		for _, child := range createChildren {
			payload.Children = append(payload.Children, &schema.PayloadNode{Name: child})
		}

		if createDryRun {
			return printJSON(payload)
		}

		client, err := sink.New(config.GetString("endpoint"), env.Workspace.Token)
		if err != nil {
			return err
		}
		target := createTarget
		if target == "" {
			target = env.Workspace.Target
		}
		if target == "" {
			target = config.GetString("target")
		}
		if err := client.Post(cmd.Context(), target, []*schema.PayloadNode{payload}); err != nil {
			return err
		}
		if jsonMode() {
			return printJSON(map[string]interface{}{"posted": true, "payload": payload})
		}
		fmt.Println(ui.TableSuccessStyle.Render("✓") + " created " + args[1])
		return nil
	},
}

// collectFields merges --field key=value pairs with an optional JSON file
// of {"field": value} entries. Flags win on conflict.
func collectFields() (map[string]interface{}, error) {
	fields := make(map[string]interface{})
	if createFile != "" {
		data, err := os.ReadFile(createFile)
		if err != nil {
			return nil, sterr.Wrap(sterr.InvalidParameter, err, "read %s", createFile)
		}
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, sterr.Wrap(sterr.InvalidFormat, err, "parse %s", createFile)
		}
	}
	for _, f := range createFields {
		k, v, ok := strings.Cut(f, "=")
		if !ok {
			return nil, sterr.New(sterr.InvalidParameter, "--field wants key=value, got %q", f)
		}
		fields[k] = v
	}
	return fields, nil
}

func init() {
	createCmd.Flags().StringArrayVar(&createFields, "field", nil, "field value key=value (repeatable)")
	createCmd.Flags().StringArrayVarP(&createChildren, "child", "c", nil, "plain child node (repeatable)")
	createCmd.Flags().StringVarP(&createFile, "file", "f", "", "JSON file of field values")
	createCmd.Flags().StringVar(&createTarget, "target", "", "target node id (default from workspace)")
	createCmd.Flags().BoolVar(&createDryRun, "dry-run", false, "print the payload without posting")

	rootCmd.AddCommand(createCmd)
}
