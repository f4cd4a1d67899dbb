package main

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"TuxLetter/internal/domain"
	"TuxLetter/internal/ports"
)

func renderBatch(w io.Writer, batch domain.Batch) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Source", "Type", "Title", "Author", "Link"})
	for i, item := range batch.Items {
		t.AppendRow(table.Row{i + 1, item.Source, item.Type, shorten(item.Title, 60), item.Author, item.Link})
	}
	t.AppendFooter(table.Row{"", "Total", len(batch.Items), "", "", ""})
	t.Render()

	counts := table.NewWriter()
	counts.SetOutputMirror(w)
	counts.SetStyle(table.StyleLight)
	counts.AppendHeader(table.Row{"Source", "Items"})
	for _, c := range batch.Counts {
		counts.AppendRow(table.Row{c.Source, c.Items})
	}
	counts.Render()
}

func renderStats(w io.Writer, stats ports.CacheStats, sources []string) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Setting", "Value"})
	t.AppendRow(table.Row{"Cache file", stats.Location})
	t.AppendRow(table.Row{"Exists", stats.Exists})
	t.AppendRow(table.Row{"Cached links", stats.TotalLinks})
	t.AppendRow(table.Row{"Sources", len(sources)})
	for _, name := range sources {
		t.AppendRow(table.Row{"", name})
	}
	t.Render()
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
