package main

import (
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/tanatools/supertag/internal/ui"
)

const guideText = `# Supertag guide

st turns JSON snapshot exports of your note graph into a local, queryable
index. Nothing leaves your machine except explicit "st create" posts.

## Getting started

1. Register a workspace pointing at your export directory:

   st workspace add personal --export-dir ~/Downloads/exports --default

2. Ingest the newest export (re-run any time; unchanged nodes are skipped):

   st sync index

3. Query it:

   st query "find task where Status = Done limit 10"
   st search "zurich meeting"
   st tags top

## The query language

Queries read as one line:

   find <tag|*> [where <clauses>] [order by [-]<field>] [limit N] [offset N] [select a,b]

- Clauses join with "and"; parenthesized groups OR their clauses.
- Operators: = != > < >= <= ~ (contains), "exists", "is empty".
- Dates accept ISO forms, "today", "yesterday", "7d", "3m", and natural
  phrases like "last monday".
- Field names match case-insensitively; "fields.Status" and "Status" are
  the same field.

## Counting

   st aggregate "find task" --group-by Status --percent
   st aggregate "find meeting" --period week

## Semantic search

Needs a local Ollama install:

   st embed generate
   st embed search "planning the offsite"

## Staying fresh

   st sync monitor      # watch the export dir and index automatically
   st sync cleanup      # prune old exports, keep the newest 3

## Writing back

   st create task "Review budget" --field Status=Todo
   st create task "Draft plan" --dry-run   # inspect the payload first

## Automation surfaces

   st serve             # HTTP webhook API (server.toml configures it)
   st mcp               # JSON-RPC tools over stdio for AI clients
`

var guideCmd = &cobra.Command{
	Use:   "guide",
	Short: "Rendered usage guide",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !ui.IsTerminal() {
			fmt.Print(guideText)
			return nil
		}
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(ui.GetWidth()),
		)
		if err != nil {
			fmt.Print(guideText)
			return nil
		}
		out, err := r.Render(guideText)
		if err != nil {
			fmt.Print(guideText)
			return nil
		}
		fmt.Print(out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(guideCmd)
}
