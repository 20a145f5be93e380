package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestTableHeadersPrecedeFirstRow(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTableTo(&buf, "PORT", "SPEED")
	tbl.Row("eth1/1", "100G")
	tbl.Row("eth1/2", "25G")
	tbl.Flush()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("lines = %d, want headers + divider + 2 rows:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "PORT") {
		t.Errorf("first line = %q, want headers", lines[0])
	}
	if !strings.HasPrefix(lines[1], "----") {
		t.Errorf("second line = %q, want divider", lines[1])
	}
	if !strings.HasPrefix(lines[2], "eth1/1") {
		t.Errorf("third line = %q, want first row", lines[2])
	}
}

func TestEmptyTablePrintsNothing(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTableTo(&buf, "PORT", "SPEED")
	tbl.Flush()
	if buf.Len() != 0 {
		t.Errorf("empty table printed %q, want nothing", buf.String())
	}
}

func TestTablePrefix(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTableTo(&buf, "NAME").WithPrefix("  ")
	tbl.Row("queue0")
	tbl.Flush()
	for _, line := range strings.Split(strings.TrimRight(buf.String(), "\n"), "\n") {
		if !strings.HasPrefix(line, "  ") {
			t.Errorf("line %q missing prefix", line)
		}
	}
}
