package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tanatools/supertag/internal/ui"
	"github.com/tanatools/supertag/internal/workspace"
)

var migrateAlias string

var migrateCmd = &cobra.Command{
	Use:     "migrate",
	Short:   "Adopt a legacy single database into the workspace registry",
	GroupID: "admin",
	Long: `Copy the pre-workspace database from the config directory into a
registered workspace. The old file is left in place; delete it once the
new workspace checks out.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		ws, err := workspace.MigrateLegacy(reg, migrateAlias)
		if err != nil {
			return err
		}
		if jsonMode() {
			return printJSON(ws)
		}
		fmt.Printf("%s migrated legacy database to workspace %q\n", ui.TableSuccessStyle.Render("✓"), ws.Alias)
		fmt.Println(ui.TableHintStyle.Render("old file kept at " + workspace.LegacyDBPath()))
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateAlias, "alias", "default", "alias for the migrated workspace")

	rootCmd.AddCommand(migrateCmd)
}
