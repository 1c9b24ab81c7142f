package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tanatools/supertag/internal/schema"
	"github.com/tanatools/supertag/internal/sterr"
	"github.com/tanatools/supertag/internal/types"
	"github.com/tanatools/supertag/internal/ui"
)

var schemaOut string

var schemaCmd = &cobra.Command{
	Use:     "schema",
	Short:   "Export and import the supertag catalog",
	GroupID: "admin",
	Long: `The supertag catalog is cached as a JSON document next to the
database so other tools can read the schema without opening SQLite.
Indexing refreshes the cache; these commands manage it directly.`,
}

var schemaSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Write the catalog cache from the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		path := schemaOut
		if path == "" {
			path = env.Workspace.SchemaCachePath
		}
		if path == "" {
			return sterr.New(sterr.MissingRequired, "no schema cache path; pass --out")
		}
		if err := env.Schema.WriteCatalogFile(cmd.Context(), path); err != nil {
			return err
		}
		fmt.Println(ui.TableSuccessStyle.Render("✓") + " wrote " + path)
		return nil
	},
}

var schemaShowCmd = &cobra.Command{
	Use:   "show [file]",
	Short: "Show the cached catalog document",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 1 {
			path = args[0]
		} else {
			ws, err := resolveWorkspace()
			if err != nil {
				return err
			}
			path = ws.SchemaCachePath
		}
		if path == "" {
			return sterr.New(sterr.MissingRequired, "no schema cache path; pass a file argument")
		}
		doc, err := schema.ReadCatalogFile(path)
		if err != nil {
			return err
		}
		if jsonMode() {
			return printJSON(doc)
		}
		fmt.Printf("catalog v%d, %d supertags\n", doc.Version, len(doc.Supertags))
		for _, st := range doc.Supertags {
			fmt.Printf("  #%-24s %d fields\n", st.Name, len(st.Fields))
		}
		return nil
	},
}

var schemaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List supertags in the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		tags, err := env.Schema.ListSupertags(cmd.Context())
		if err != nil {
			return err
		}
		return renderCatalogTags(tags)
	},
}

var schemaSearchCmd = &cobra.Command{
	Use:   "search <pattern>",
	Short: "Search supertags by name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		tags, err := env.Schema.SearchSupertags(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return renderCatalogTags(tags)
	},
}

func renderCatalogTags(tags []*types.Supertag) error {
	if jsonMode() {
		return printJSON(tags)
	}
	if len(tags) == 0 {
		fmt.Println(ui.TableHintStyle.Render("no supertags"))
		return nil
	}
	for _, t := range tags {
		fmt.Printf("#%-24s %s\n", t.Name, ui.TableHintStyle.Render(fmt.Sprintf("[%s] %d fields", t.ID, len(t.Fields))))
	}
	return nil
}

var schemaImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the catalog from a catalog document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := schema.ReadCatalogFile(args[0])
		if err != nil {
			return err
		}
		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Schema.FromCatalogDocument(cmd.Context(), doc); err != nil {
			return err
		}
		fmt.Printf("%s imported %d supertags\n", ui.TableSuccessStyle.Render("✓"), len(doc.Supertags))
		return nil
	},
}

func init() {
	schemaSyncCmd.Flags().StringVar(&schemaOut, "out", "", "write the catalog to this path")

	schemaCmd.AddCommand(schemaSyncCmd, schemaListCmd, schemaShowCmd, schemaSearchCmd, schemaImportCmd)
	rootCmd.AddCommand(schemaCmd)
}
