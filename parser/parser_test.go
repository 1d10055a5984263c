package parser

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"tml-rank-card/models"
)

// reportPage builds a page shaped like the ranking report: a header row followed by data rows
func reportPage(rows ...string) string {
	var sb strings.Builder
	sb.WriteString(`<html><body><h1>Ranks</h1><table class="primary"><tbody>`)
	sb.WriteString(`<tr><th>Rank</th><th>Display Name</th><th>Downloads</th><th>Yesterday</th></tr>`)
	for _, r := range rows {
		sb.WriteString(r)
	}
	sb.WriteString(`</tbody></table></body></html>`)
	return sb.String()
}

func row(rank, name, total, yesterday string) string {
	return fmt.Sprintf("<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>", rank, name, total, yesterday)
}

func TestParseHTML_RowCounts(t *testing.T) {
	tests := []struct {
		name string
		rows []string
		want models.RecordSet
	}{
		{
			name: "empty table",
			rows: nil,
			want: models.RecordSet{},
		},
		{
			name: "single row",
			rows: []string{row("1", "Calamity Mod", "1,000,000", "5,000")},
			want: models.RecordSet{
				{DisplayName: "Calamity Mod", RankTotal: "1", DownloadsTotal: "1,000,000", DownloadsYesterday: "5,000"},
			},
		},
		{
			name: "many rows keep source order",
			rows: []string{
				row("3", "Gamma", "10", "1"),
				row("1", "Alpha", "30", "3"),
				row("2", "Beta", "20", "2"),
			},
			want: models.RecordSet{
				{DisplayName: "Gamma", RankTotal: "3", DownloadsTotal: "10", DownloadsYesterday: "1"},
				{DisplayName: "Alpha", RankTotal: "1", DownloadsTotal: "30", DownloadsYesterday: "3"},
				{DisplayName: "Beta", RankTotal: "2", DownloadsTotal: "20", DownloadsYesterday: "2"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewParser("").ParseHTML(reportPage(tt.rows...))
			if err != nil {
				t.Fatalf("ParseHTML() error = %v", err)
			}
			if got == nil {
				t.Fatal("ParseHTML() returned nil RecordSet, want non-nil")
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseHTML() returned %d records, want %d", len(got), len(tt.want))
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("record %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseHTML_Fixture(t *testing.T) {
	html := reportPage(row("1", "Alice", "1000", "10"), row("2", "Bob", "500", "5"))

	got, err := NewParser(DefaultTableSelector).ParseHTML(html)
	if err != nil {
		t.Fatalf("ParseHTML() error = %v", err)
	}

	want := models.RecordSet{
		{DisplayName: "Alice", RankTotal: "1", DownloadsTotal: "1000", DownloadsYesterday: "10"},
		{DisplayName: "Bob", RankTotal: "2", DownloadsTotal: "500", DownloadsYesterday: "5"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParseHTML_TableNotFound(t *testing.T) {
	tests := []struct {
		name string
		html string
	}{
		{"no table", `<html><body><p>nothing here</p></body></html>`},
		{"table without marker", `<table><tr><td>1</td></tr></table>`},
		{"empty document", ``},
		{"marker on a non-table element", `<div class="primary"><tr><td>h</td></tr></div>`},
		{"marker on a wrapper around the table", `<div class="primary"><table><tr><th>h</th></tr><tr><td>1</td><td>A</td><td>1</td><td>1</td></tr></table></div>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewParser("").ParseHTML(tt.html)
			if got != nil {
				t.Errorf("ParseHTML() = %v, want nil", got)
			}
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("ParseHTML() error = %v, want *ParseError", err)
			}
			if perr.Reason != ReasonTableNotFound {
				t.Errorf("Reason = %q, want %q", perr.Reason, ReasonTableNotFound)
			}
		})
	}
}

func TestParseHTML_RowShapeMismatch(t *testing.T) {
	tests := []struct {
		name     string
		rows     []string
		rowIndex int
		cell     int
	}{
		{
			name:     "missing last cell",
			rows:     []string{row("1", "Alice", "1000", "10"), "<tr><td>2</td><td>Bob</td><td>500</td></tr>"},
			rowIndex: 2,
			cell:     3,
		},
		{
			name:     "empty cell has no text node",
			rows:     []string{"<tr><td>1</td><td></td><td>1000</td><td>10</td></tr>"},
			rowIndex: 1,
			cell:     1,
		},
		{
			name:     "value wrapped in element",
			rows:     []string{"<tr><td>1</td><td><a href='/m'>Alice</a></td><td>1000</td><td>10</td></tr>"},
			rowIndex: 1,
			cell:     1,
		},
		{
			name:     "row without cells",
			rows:     []string{"<tr></tr>"},
			rowIndex: 1,
			cell:     0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewParser("").ParseHTML(reportPage(tt.rows...))
			if got != nil {
				t.Errorf("ParseHTML() returned partial records %v, want nil", got)
			}
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("ParseHTML() error = %v, want *ParseError", err)
			}
			if perr.Reason != ReasonRowShapeMismatch {
				t.Errorf("Reason = %q, want %q", perr.Reason, ReasonRowShapeMismatch)
			}
			if perr.RowIndex != tt.rowIndex || perr.Cell != tt.cell {
				t.Errorf("RowIndex/Cell = %d/%d, want %d/%d", perr.RowIndex, perr.Cell, tt.rowIndex, tt.cell)
			}
		})
	}
}

func TestParseHTML_VariableMarkup(t *testing.T) {
	tests := []struct {
		name string
		html string
		want models.RecordSet
	}{
		{
			name: "extra cells are ignored",
			html: reportPage("<tr><td>1</td><td>Alice</td><td>1000</td><td>10</td><td>extra</td><td>more</td></tr>"),
			want: models.RecordSet{{DisplayName: "Alice", RankTotal: "1", DownloadsTotal: "1000", DownloadsYesterday: "10"}},
		},
		{
			name: "text after an inline icon",
			html: reportPage("<tr><td>1</td><td><img src='i.png'>Alice</td><td>1000</td><td>10</td></tr>"),
			want: models.RecordSet{{DisplayName: "Alice", RankTotal: "1", DownloadsTotal: "1000", DownloadsYesterday: "10"}},
		},
		{
			name: "whitespace is kept verbatim",
			html: reportPage("<tr><td> 1 </td><td>Alice</td><td>1 000</td><td>10</td></tr>"),
			want: models.RecordSet{{DisplayName: "Alice", RankTotal: " 1 ", DownloadsTotal: "1 000", DownloadsYesterday: "10"}},
		},
		{
			name: "html entities are decoded",
			html: reportPage("<tr><td>1</td><td>Tom &amp; Jerry</td><td>1000</td><td>10</td></tr>"),
			want: models.RecordSet{{DisplayName: "Tom & Jerry", RankTotal: "1", DownloadsTotal: "1000", DownloadsYesterday: "10"}},
		},
		{
			name: "only the first marked table is used",
			html: `<table class="primary"><tr><th>h</th></tr><tr><td>1</td><td>First</td><td>1</td><td>1</td></tr></table>` +
				`<table class="primary"><tr><th>h</th></tr><tr><td>1</td><td>Second</td><td>1</td><td>1</td></tr></table>`,
			want: models.RecordSet{{DisplayName: "First", RankTotal: "1", DownloadsTotal: "1", DownloadsYesterday: "1"}},
		},
		{
			name: "marked table with only a header",
			html: `<table class="primary"><tr><th>h</th></tr></table>`,
			want: models.RecordSet{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewParser("").ParseHTML(tt.html)
			if err != nil {
				t.Fatalf("ParseHTML() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseHTML() returned %d records, want %d: %+v", len(got), len(tt.want), got)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("record %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseHTML_CustomSelector(t *testing.T) {
	html := `<table id="ranks"><tr><th>h</th></tr><tr><td>7</td><td>Custom</td><td>70</td><td>7</td></tr></table>`

	got, err := NewParser("#ranks").ParseHTML(html)
	if err != nil {
		t.Fatalf("ParseHTML() error = %v", err)
	}
	if len(got) != 1 || got[0].DisplayName != "Custom" {
		t.Errorf("ParseHTML() = %+v, want one record named Custom", got)
	}
}

func TestParseError_Error(t *testing.T) {
	err := &ParseError{Reason: ReasonRowShapeMismatch, RowIndex: 4, Cell: 2}
	if !strings.Contains(err.Error(), "row 4") {
		t.Errorf("Error() = %q, want it to mention the row", err.Error())
	}
	err = &ParseError{Reason: ReasonTableNotFound}
	if err.Error() != "parse error: table-not-found" {
		t.Errorf("Error() = %q", err.Error())
	}
}
