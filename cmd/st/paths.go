package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tanatools/supertag/internal/config"
	"github.com/tanatools/supertag/internal/webhook"
	"github.com/tanatools/supertag/internal/workspace"
)

var pathsCmd = &cobra.Command{
	Use:     "paths",
	Short:   "Show where st keeps its files",
	GroupID: "admin",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := map[string]string{
			"config_dir":    config.Dir(),
			"registry":      workspace.DefaultRegistryPath(),
			"server_config": webhook.ServerConfigPath(),
			"server_pid":    webhook.PIDPath(),
		}
		if ws, err := resolveWorkspace(); err == nil {
			out["workspace"] = ws.Alias
			out["database"] = ws.DBPath
			out["schema_cache"] = ws.SchemaCachePath
			out["vectors"] = ws.VectorDir()
			out["export_dir"] = ws.ExportDir
		}
		if jsonMode() {
			return printJSON(out)
		}
		fmt.Println("config dir:     " + out["config_dir"])
		fmt.Println("registry:       " + out["registry"])
		fmt.Println("server config:  " + out["server_config"])
		fmt.Println("server pid:     " + out["server_pid"])
		if out["database"] != "" {
			fmt.Println("workspace:      " + out["workspace"])
			fmt.Println("database:       " + out["database"])
			fmt.Println("schema cache:   " + out["schema_cache"])
			fmt.Println("vectors:        " + out["vectors"])
			fmt.Println("export dir:     " + out["export_dir"])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pathsCmd)
}
