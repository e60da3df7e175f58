package ui

import (
	"bytes"
	"strings"
	"testing"
)

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf, true, "Label", "Fullname", "Kind")

	table.AddRow("shop.Book", "shop.models.Book", "concrete")
	table.AddRow("shop.Owned", "shop.models.Owned")

	table.Render()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "Label       Fullname") {
		t.Errorf("header not aligned: %q", lines[0])
	}
	if !strings.Contains(lines[1], "─") {
		t.Errorf("missing separator: %q", lines[1])
	}
	if lines[2] != "shop.Book   shop.models.Book   concrete" {
		t.Errorf("unexpected row: %q", lines[2])
	}
	if lines[3] != "shop.Owned  shop.models.Owned" {
		t.Errorf("short rows should render empty cells: %q", lines[3])
	}
	if table.Len() != 2 {
		t.Errorf("expected 2 rows, got %d", table.Len())
	}
}

func TestTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	NewTable(&buf, true).Render()

	if buf.String() != "" {
		t.Errorf("expected empty output for table with no headers, got: %q", buf.String())
	}
}

func TestHeader(t *testing.T) {
	var buf bytes.Buffer
	Header(&buf, "shop.Book", true)

	if buf.String() != "shop.Book\n─────────\n" {
		t.Errorf("unexpected header: %q", buf.String())
	}
}

func TestKeyValues(t *testing.T) {
	var buf bytes.Buffer
	KeyValues(&buf, true, [2]string{"lookup", "author__name"}, [2]string{"type", "builtins.str"})

	expected := "lookup: author__name\ntype:   builtins.str\n"
	if buf.String() != expected {
		t.Errorf("expected %q, got %q", expected, buf.String())
	}
}
