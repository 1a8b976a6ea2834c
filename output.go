package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/deadpyxel/shreddit-client/pkg/api"
)

const maxCellWidth = 60

// since renders a backend timestamp relative to now. Anything that is not RFC 3339 is printed as is.
func since(createdAt string) string {
	if createdAt == "" {
		return "-"
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"} {
		if t, err := time.Parse(layout, createdAt); err == nil {
			return humanize.Time(t)
		}
	}
	return createdAt
}

// excerpt flattens text to a single line of at most maxCellWidth runes.
func excerpt(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return text.Trim(s, maxCellWidth)
}

func newTable(out io.Writer, header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(header)
	t.SetStyle(table.StyleLight)
	return t
}

func renderDocuments(out io.Writer, documents []api.Document) {
	if len(documents) == 0 {
		fmt.Fprintln(out, "No documents found")
		return
	}
	t := newTable(out, table.Row{"ID", "Title", "Owner", "Created", "Content"})
	for _, d := range documents {
		t.AppendRow(table.Row{d.ID, d.Title, d.Username, since(d.CreatedAt), excerpt(d.Content)})
	}
	t.Render()
}

func renderComments(out io.Writer, comments []api.Comment) {
	if len(comments) == 0 {
		fmt.Fprintln(out, "No comments")
		return
	}
	t := newTable(out, table.Row{"ID", "Author", "Created", "Text"})
	for _, c := range comments {
		t.AppendRow(table.Row{c.ID, c.Author, since(c.CreatedAt), excerpt(c.Text)})
	}
	t.Render()
}

func renderNotes(out io.Writer, notes []api.Note) {
	if len(notes) == 0 {
		fmt.Fprintln(out, "No notes")
		return
	}
	t := newTable(out, table.Row{"ID", "Created", "Content"})
	for _, n := range notes {
		t.AppendRow(table.Row{n.ID, since(n.CreatedAt), excerpt(n.Content)})
	}
	t.Render()
}
