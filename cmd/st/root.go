package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tanatools/supertag/internal/config"
	"github.com/tanatools/supertag/internal/sterr"
	"github.com/tanatools/supertag/internal/types"
	"github.com/tanatools/supertag/internal/ui"
	"github.com/tanatools/supertag/internal/workspace"
)

var (
	flagWorkspace string
	flagDB        string
	flagExportDir string
	flagJSON      bool
)

var rootCmd = &cobra.Command{
	Use:   "st",
	Short: "Index and query note-graph snapshot exports",
	Long: `st ingests JSON snapshot exports of a note graph into a local SQLite
index and answers structural, full-text and semantic queries over it.

Typical flow:
  st workspace add             # register a workspace
  st sync index                # ingest the latest export
  st query "find task where Status = Done limit 10"
  st search "zurich meeting"`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(); err != nil {
			return err
		}
		if flagWorkspace == "" {
			flagWorkspace = config.GetString("workspace")
		}
		if flagDB == "" {
			flagDB = config.GetString("db")
		}
		if flagExportDir == "" {
			flagExportDir = config.GetString("export-dir")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagWorkspace, "workspace", "w", "", "workspace alias")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "explicit database path (overrides workspace)")
	rootCmd.PersistentFlags().StringVar(&flagExportDir, "export-dir", "", "snapshot export directory")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "JSON output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "data", Title: "Data commands:"},
		&cobra.Group{ID: "query", Title: "Query commands:"},
		&cobra.Group{ID: "admin", Title: "Administration:"},
	)
}

// loadRegistry reads the workspace registry.
func loadRegistry() (*workspace.Registry, error) {
	return workspace.LoadRegistry("")
}

// selector builds the resolution selector from the persistent flags.
func selector() workspace.Selector {
	return workspace.Selector{
		DBPath:    flagDB,
		Alias:     flagWorkspace,
		ExportDir: flagExportDir,
	}
}

// openEnv resolves and opens the selected workspace.
func openEnv() (*workspace.Env, error) {
	reg, err := loadRegistry()
	if err != nil {
		return nil, err
	}
	ws, err := workspace.Resolve(reg, selector())
	if err != nil {
		return nil, err
	}
	return workspace.Open(ws)
}

// resolveWorkspace resolves without opening, for commands that only need
// paths.
func resolveWorkspace() (*types.Workspace, error) {
	reg, err := loadRegistry()
	if err != nil {
		return nil, err
	}
	return workspace.Resolve(reg, selector())
}

// nodeName is the display name for terminal output.
func nodeName(n *types.Node) string {
	if name := n.NameOrEmpty(); name != "" {
		return name
	}
	return "(untitled)"
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// jsonMode is true when the user asked for machine output.
func jsonMode() bool { return flagJSON || config.GetBool("json") }

// reportError prints the one-line cause and suggestion the way every
// command's failure should look.
func reportError(err error) {
	msg := err.Error()
	if ui.ShouldUseColor() {
		msg = ui.TableErrorStyle.Render("error: ") + msg
	} else {
		msg = "error: " + msg
	}
	fmt.Fprintln(os.Stderr, msg)
	var serr *sterr.Error
	if errors.As(err, &serr) && serr.Suggestion != "" {
		fmt.Fprintln(os.Stderr, ui.TableHintStyle.Render("hint: "+serr.Suggestion))
	}
}
