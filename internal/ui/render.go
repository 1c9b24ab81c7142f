package ui

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/tanatools/supertag/internal/query"
	"github.com/tanatools/supertag/internal/types"
)

// RenderIndexReport formats one ingestion run for the terminal.
func RenderIndexReport(r *types.IndexReport) string {
	var b strings.Builder
	b.WriteString(TableSuccessStyle.Render("✓ indexed ") + r.ExportFile + "\n")
	b.WriteString(fmt.Sprintf("  +%d added, ~%d modified, -%d deleted", r.Added, r.Modified, r.Deleted))
	if r.SkippedRecords > 0 {
		b.WriteString(TableWarningStyle.Render(fmt.Sprintf(", %d records skipped", r.SkippedRecords)))
	}
	b.WriteString(fmt.Sprintf("\n  %d nodes, %d supertags, %d fields, %d refs, %d tag applications (%dms)",
		r.NodesTotal, r.SupertagsTotal, r.FieldsTotal, r.RefsTotal, r.TagAppsTotal, r.DurationMS))
	return b.String()
}

// RenderRows formats query results as a bordered table.
func RenderRows(rows []*query.Row, total int, width int) string {
	if len(rows) == 0 {
		return TableHintStyle.Render("No results.")
	}
	t := NewTable(width).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle
			}
			return lipgloss.NewStyle()
		}).
		Headers("ID", "NAME", "TAGS", "FIELDS")
	for _, r := range rows {
		t.Row(r.ID, r.Name, strings.Join(r.Tags, ", "), flattenFields(r.Fields))
	}
	out := t.String()
	if total > len(rows) {
		out += "\n" + TableHintStyle.Render(fmt.Sprintf("showing %d of %d matches", len(rows), total))
	}
	return out
}

func flattenFields(fields map[string][]string) string {
	if len(fields) == 0 {
		return ""
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+strings.Join(fields[name], "|"))
	}
	return strings.Join(parts, " ")
}

// RenderAggregate formats grouped counts, nesting second-level groups.
func RenderAggregate(res *query.AggregateResult) string {
	var b strings.Builder
	for _, g := range res.Groups {
		line := fmt.Sprintf("%-30s %6d", g.Key, g.Count)
		if g.Percent > 0 {
			line += fmt.Sprintf("  %5.1f%%", g.Percent)
		}
		b.WriteString(line + "\n")
		for _, sg := range g.Sub {
			b.WriteString(fmt.Sprintf("  %-28s %6d\n", sg.Key, sg.Count))
		}
	}
	b.WriteString(TableHintStyle.Render(fmt.Sprintf("total: %d", res.Total)))
	for _, w := range res.Warnings {
		b.WriteString("\n" + TableWarningStyle.Render("⚠ "+w))
	}
	return b.String()
}

// RenderStats formats workspace statistics.
func RenderStats(s *types.Statistics) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("nodes:            %d (%d named)\n", s.Nodes, s.NamedNodes))
	b.WriteString(fmt.Sprintf("supertags:        %d\n", s.Supertags))
	b.WriteString(fmt.Sprintf("fields:           %d (%d values)\n", s.Fields, s.FieldValues))
	b.WriteString(fmt.Sprintf("references:       %d\n", s.Refs))
	b.WriteString(fmt.Sprintf("tag applications: %d\n", s.TagApps))
	b.WriteString(fmt.Sprintf("embeddings:       %d\n", s.Embeddings))
	b.WriteString(fmt.Sprintf("database size:    %s\n", humanBytes(s.DBSizeBytes)))
	if s.DBPath != "" {
		b.WriteString(fmt.Sprintf("database:         %s\n", s.DBPath))
	}
	if s.LastExport != "" {
		b.WriteString(fmt.Sprintf("last export:      %s\n", s.LastExport))
	}
	return strings.TrimRight(b.String(), "\n")
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return strconv.FormatInt(n, 10) + " B"
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
