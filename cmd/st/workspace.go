package main

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/tanatools/supertag/internal/sterr"
	"github.com/tanatools/supertag/internal/types"
	"github.com/tanatools/supertag/internal/ui"
)

var (
	wsExportDir string
	wsDBPath    string
	wsToken     string
	wsTarget    string
	wsDefault   bool
)

var workspaceCmd = &cobra.Command{
	Use:     "workspace",
	Short:   "Manage workspaces",
	GroupID: "admin",
}

var workspaceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered workspaces",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		list := reg.List()
		if jsonMode() {
			return printJSON(list)
		}
		if len(list) == 0 {
			fmt.Println(ui.TableHintStyle.Render("no workspaces; run: st workspace add <alias>"))
			return nil
		}
		for _, ws := range list {
			marker := "  "
			if ws.Default {
				marker = "* "
			}
			state := ""
			if !ws.Enabled {
				state = ui.TableWarningStyle.Render("  (disabled)")
			}
			fmt.Printf("%s%-16s %s%s\n", marker, ws.Alias, ws.ExportDir, state)
		}
		return nil
	},
}

var workspaceAddCmd = &cobra.Command{
	Use:   "add [alias]",
	Short: "Register a workspace",
	Long: `Register a workspace. With no flags and a terminal attached this runs
an interactive form; otherwise pass --export-dir (and optionally --db,
--token, --target).`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}

		alias := ""
		if len(args) == 1 {
			alias = args[0]
		}
		if wsExportDir == "" && ui.IsTerminal() {
			form := huh.NewForm(huh.NewGroup(
				huh.NewInput().Title("Alias").
					Description("Short name used with -w").
					Value(&alias),
				huh.NewInput().Title("Export directory").
					Description("Where snapshot exports land").
					Value(&wsExportDir),
				huh.NewInput().Title("API token").
					Description("For write-back (optional)").
					Value(&wsToken),
				huh.NewInput().Title("Default target node").
					Description("Where created nodes go (optional)").
					Value(&wsTarget),
			))
			if err := form.Run(); err != nil {
				return sterr.Wrap(sterr.InvalidParameter, err, "workspace form")
			}
		}
		if alias == "" {
			return sterr.New(sterr.MissingRequired, "workspace alias is required")
		}
		if wsExportDir == "" {
			return sterr.New(sterr.MissingRequired, "export directory is required")
		}

		ws := &types.Workspace{
			Alias:     alias,
			ExportDir: wsExportDir,
			DBPath:    wsDBPath,
			Token:     wsToken,
			Target:    wsTarget,
			Enabled:   true,
		}
		if err := reg.Add(ws); err != nil {
			return err
		}
		if wsDefault {
			if err := reg.SetDefault(alias); err != nil {
				return err
			}
		}
		if err := reg.Save(); err != nil {
			return err
		}
		fmt.Println(ui.TableSuccessStyle.Render("✓") + " added workspace " + alias)
		return nil
	},
}

var workspaceUpdateCmd = &cobra.Command{
	Use:   "update <alias>",
	Short: "Update a workspace's settings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		ws, err := reg.Get(args[0])
		if err != nil {
			return err
		}
		if wsExportDir != "" {
			ws.ExportDir = wsExportDir
		}
		if wsDBPath != "" {
			ws.DBPath = wsDBPath
		}
		if wsToken != "" {
			ws.Token = wsToken
		}
		if wsTarget != "" {
			ws.Target = wsTarget
		}
		if err := reg.Update(ws); err != nil {
			return err
		}
		if err := reg.Save(); err != nil {
			return err
		}
		fmt.Println(ui.TableSuccessStyle.Render("✓") + " updated workspace " + ws.Alias)
		return nil
	},
}

var workspaceRemoveCmd = &cobra.Command{
	Use:   "remove <alias>",
	Short: "Unregister a workspace (data files are kept)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		if err := reg.Remove(args[0]); err != nil {
			return err
		}
		if err := reg.Save(); err != nil {
			return err
		}
		fmt.Println(ui.TableSuccessStyle.Render("✓") + " removed workspace " + args[0])
		return nil
	},
}

var workspaceSetDefaultCmd = &cobra.Command{
	Use:   "set-default <alias>",
	Short: "Make a workspace the default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		if err := reg.SetDefault(args[0]); err != nil {
			return err
		}
		if err := reg.Save(); err != nil {
			return err
		}
		fmt.Println(ui.TableSuccessStyle.Render("✓") + " default workspace is " + args[0])
		return nil
	},
}

var workspaceEnableCmd = &cobra.Command{
	Use:   "enable <alias>",
	Short: "Include a workspace in --all runs",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setEnabled(args[0], true) },
}

var workspaceDisableCmd = &cobra.Command{
	Use:   "disable <alias>",
	Short: "Exclude a workspace from --all runs",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setEnabled(args[0], false) },
}

func setEnabled(alias string, enabled bool) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	if err := reg.SetEnabled(alias, enabled); err != nil {
		return err
	}
	return reg.Save()
}

var workspaceShowCmd = &cobra.Command{
	Use:   "show <alias>",
	Short: "Show one workspace's configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		ws, err := reg.Get(args[0])
		if err != nil {
			return err
		}
		if jsonMode() {
			return printJSON(ws)
		}
		fmt.Println(ui.TableHeaderStyle.Render(ws.Alias))
		fmt.Println("export dir:    " + ws.ExportDir)
		fmt.Println("database:      " + ws.DBPath)
		fmt.Println("schema cache:  " + ws.SchemaCachePath)
		if ws.Target != "" {
			fmt.Println("target:        " + ws.Target)
		}
		if ws.Token != "" {
			fmt.Println("token:         (set)")
		}
		fmt.Printf("enabled:       %v\n", ws.Enabled)
		fmt.Printf("default:       %v\n", ws.Default)
		return nil
	},
}

func init() {
	workspaceAddCmd.Flags().StringVar(&wsExportDir, "export-dir", "", "snapshot export directory")
	workspaceAddCmd.Flags().StringVar(&wsDBPath, "db", "", "database path (default under the config dir)")
	workspaceAddCmd.Flags().StringVar(&wsToken, "token", "", "API token for write-back")
	workspaceAddCmd.Flags().StringVar(&wsTarget, "target", "", "default target node for created nodes")
	workspaceAddCmd.Flags().BoolVar(&wsDefault, "default", false, "make this the default workspace")

	workspaceUpdateCmd.Flags().StringVar(&wsExportDir, "export-dir", "", "snapshot export directory")
	workspaceUpdateCmd.Flags().StringVar(&wsDBPath, "db", "", "database path")
	workspaceUpdateCmd.Flags().StringVar(&wsToken, "token", "", "API token for write-back")
	workspaceUpdateCmd.Flags().StringVar(&wsTarget, "target", "", "default target node")

	workspaceCmd.AddCommand(
		workspaceListCmd, workspaceAddCmd, workspaceUpdateCmd, workspaceRemoveCmd,
		workspaceSetDefaultCmd, workspaceEnableCmd, workspaceDisableCmd, workspaceShowCmd,
	)
	rootCmd.AddCommand(workspaceCmd)
}
