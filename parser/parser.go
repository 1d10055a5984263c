package parser

import (
	"fmt"
	"strings"

	"tml-rank-card/models"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// DefaultTableSelector identifies the ranking table on the report page
const DefaultTableSelector = ".primary"

// Reasons reported by ParseError
const (
	ReasonTableNotFound    = "table-not-found"
	ReasonRowShapeMismatch = "row-shape-mismatch"
)

// Cell positions inside a report row
const (
	cellRank = iota
	cellDisplayName
	cellDownloadsTotal
	cellDownloadsYesterday
	cellCount
)

// ParseError describes why a report page could not be turned into records
type ParseError struct {
	Reason   string
	RowIndex int // Index in the table body, header included; only set for row-shape-mismatch
	Cell     int
}

func (e *ParseError) Error() string {
	if e.Reason == ReasonRowShapeMismatch {
		return fmt.Sprintf("parse error: %s at row %d (cell %d)", e.Reason, e.RowIndex, e.Cell)
	}
	return "parse error: " + e.Reason
}

// Parser extracts ranking records from report HTML
type Parser struct {
	tableSelector string
}

// NewParser creates a new Parser instance.
// An empty selector falls back to DefaultTableSelector.
func NewParser(tableSelector string) *Parser {
	if strings.TrimSpace(tableSelector) == "" {
		tableSelector = DefaultTableSelector
	}
	return &Parser{tableSelector: tableSelector}
}

// ParseHTML extracts the ranking records from HTML content.
// The first body row is the header and is always skipped.
func (p *Parser) ParseHTML(htmlContent string) (models.RecordSet, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	table := doc.Find(p.tableSelector).First()
	if table.Length() == 0 {
		return nil, &ParseError{Reason: ReasonTableNotFound}
	}

	rows := p.bodyRows(table)
	if rows.Length() == 0 && goquery.NodeName(table) != "table" {
		return nil, &ParseError{Reason: ReasonTableNotFound}
	}
	records := make(models.RecordSet, 0, max(rows.Length()-1, 0))

	for i := 1; i < rows.Length(); i++ {
		record, err := p.extractRecord(rows.Eq(i), i)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, nil
}

// bodyRows returns the rows of the table's first body.
// The HTML parser inserts a tbody for real tables; other markers hold rows directly.
func (p *Parser) bodyRows(table *goquery.Selection) *goquery.Selection {
	body := table.ChildrenFiltered("tbody").First()
	if body.Length() == 0 {
		return table.ChildrenFiltered("tr")
	}
	return body.ChildrenFiltered("tr")
}

// extractRecord reads the four fixed cells of a row
func (p *Parser) extractRecord(row *goquery.Selection, rowIndex int) (models.Record, error) {
	cells := row.ChildrenFiltered("td, th")

	var values [cellCount]string
	for i := 0; i < cellCount; i++ {
		if i >= cells.Length() {
			return models.Record{}, &ParseError{Reason: ReasonRowShapeMismatch, RowIndex: rowIndex, Cell: i}
		}
		text, ok := firstTextNode(cells.Get(i))
		if !ok {
			return models.Record{}, &ParseError{Reason: ReasonRowShapeMismatch, RowIndex: rowIndex, Cell: i}
		}
		values[i] = text
	}

	return models.Record{
		DisplayName:        values[cellDisplayName],
		RankTotal:          values[cellRank],
		DownloadsTotal:     values[cellDownloadsTotal],
		DownloadsYesterday: values[cellDownloadsYesterday],
	}, nil
}

// firstTextNode returns the data of the first direct text child of n.
// Nested elements are not searched: a value wrapped in markup counts as absent.
func firstTextNode(n *html.Node) (string, bool) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			return c.Data, true
		}
	}
	return "", false
}
