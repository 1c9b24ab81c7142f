package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tanatools/supertag/internal/ui"
	"github.com/tanatools/supertag/internal/webhook"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Run the HTTP webhook server",
	GroupID: "admin",
	Long: `Serve the webhook API over HTTP. Host, port and log settings come
from server.toml in the config directory, falling back to the serve.*
config keys. A PID file guards against double starts.

Endpoints take ?workspace=<alias> and ?format=json|text; default output
is paste-ready text.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := webhook.LoadServerConfig("")
		if err != nil {
			return err
		}
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		if err := webhook.WritePID(); err != nil {
			return err
		}
		defer webhook.RemovePID()

		logger := webhook.NewLogger(cfg)
		srv := webhook.NewServer(cfg, reg, logger)
		fmt.Println(ui.TableHintStyle.Render(fmt.Sprintf("listening on %s:%d (ctrl-c to stop)", cfg.Host, cfg.Port)))
		return srv.ListenAndServe(cmd.Context())
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check whether the webhook server is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, alive := webhook.ReadPID()
		if jsonMode() {
			return printJSON(map[string]interface{}{"pid": pid, "running": alive})
		}
		if alive {
			fmt.Printf("%s running (pid %d)\n", ui.TableSuccessStyle.Render("✓"), pid)
		} else {
			fmt.Println(ui.TableHintStyle.Render("not running"))
		}
		return nil
	},
}

func init() {
	serveCmd.AddCommand(serveStatusCmd)
	rootCmd.AddCommand(serveCmd)
}
