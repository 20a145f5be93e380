package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// Table renders rows in aligned columns. The header line and its dash
// divider are deferred until the first row arrives, so a table that never
// receives a row prints nothing on Flush.
type Table struct {
	w       *tabwriter.Writer
	headers []string
	prefix  string
	started bool
}

// NewTable builds a table over stdout with the given column headers.
func NewTable(headers ...string) *Table {
	return NewTableTo(os.Stdout, headers...)
}

// NewTableTo writes the table to w instead of stdout.
func NewTableTo(w io.Writer, headers ...string) *Table {
	return &Table{
		w:       tabwriter.NewWriter(w, 0, 0, 2, ' ', 0),
		headers: headers,
	}
}

// WithPrefix prepends prefix to every emitted line, for nesting a table
// inside indented output.
func (t *Table) WithPrefix(prefix string) *Table {
	t.prefix = prefix
	return t
}

// Row writes one tab-separated row, emitting the headers first if this is
// the table's first row.
func (t *Table) Row(values ...string) {
	t.start()
	fmt.Fprintln(t.w, t.prefix+strings.Join(values, "\t"))
}

// Flush writes buffered output. An empty table stays silent.
func (t *Table) Flush() {
	if !t.started {
		return
	}
	t.w.Flush()
}

func (t *Table) start() {
	if t.started {
		return
	}
	t.started = true
	fmt.Fprintln(t.w, t.prefix+strings.Join(t.headers, "\t"))
	dividers := make([]string, len(t.headers))
	for i, h := range t.headers {
		dividers[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(t.w, t.prefix+strings.Join(dividers, "\t"))
}
