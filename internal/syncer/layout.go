// Package syncer writes article rows into a tabular store without duplicating the
// rows already there.
package syncer

import (
	"fmt"
	"strconv"
	"strings"

	"sjsage522/newsworker/internal/news"
)

// Layout is the row shape of a destination sheet
type Layout string

const (
	// LayoutList writes one row per article
	LayoutList Layout = "list"
	// LayoutExploded writes one row per (article, comment) pair
	LayoutExploded Layout = "exploded"
)

// CellLimit is the largest number of characters a Sheets cell accepts
const CellLimit = 50000

// colURL is the URL column of both layouts
const colURL = 1

// colExplodedComment is the comment column of the exploded layout
const colExplodedComment = 8

// ListBaseWidth is the number of list layout columns before the enrichment block
const ListBaseWidth = 4

var (
	listHeader     = []string{"Title", "URL", "PublishedAt", "Source"}
	explodedHeader = []string{"Title", "URL", "Source", "PublishedAt", "Sentiment", "Category", "Body", "CommentCount", "Comment"}
)

// ParseLayout parses a layout name
func ParseLayout(s string) (Layout, error) {
	switch Layout(strings.ToLower(strings.TrimSpace(s))) {
	case LayoutList:
		return LayoutList, nil
	case LayoutExploded:
		return LayoutExploded, nil
	}
	return "", fmt.Errorf("unknown layout %q", s)
}

// Identity returns the identity policy of the layout
func (l Layout) Identity() IdentityPolicy {
	if l == LayoutExploded {
		return RowIdentity{URLCol: colURL, CommentCol: colExplodedComment}
	}
	return ArticleIdentity{URLCol: colURL}
}

// Header returns the column names. For the list layout, bodyPages and comments size
// the optional enrichment block; both zero means no block.
func (l Layout) Header(bodyPages, comments int) []string {
	if l == LayoutExploded {
		return append([]string(nil), explodedHeader...)
	}
	header := append([]string(nil), listHeader...)
	if bodyPages > 0 || comments > 0 {
		header = append(header, EnrichmentHeader(bodyPages, 1+bodyPages+comments)...)
	}
	return header
}

// ListHeader returns the list layout columns before the enrichment block
func ListHeader() []string {
	return append([]string(nil), listHeader...)
}

// EnrichmentHeader names a list layout enrichment block of width columns:
// Body1..BodyN, CommentCount, Comment1..
func EnrichmentHeader(bodyPages, width int) []string {
	header := make([]string, 0, width)
	for i := 1; i <= bodyPages && len(header) < width; i++ {
		header = append(header, "Body"+strconv.Itoa(i))
	}
	if len(header) < width {
		header = append(header, "CommentCount")
	}
	for i := 1; len(header) < width; i++ {
		header = append(header, "Comment"+strconv.Itoa(i))
	}
	return header
}

// IdentityPolicy derives the key deciding whether a row is already stored.
// An empty key marks a row without identity; it is never written.
type IdentityPolicy interface {
	Key(row []string) string
}

// ArticleIdentity keys rows on the article URL
type ArticleIdentity struct {
	URLCol int
}

func (p ArticleIdentity) Key(row []string) string {
	return cell(row, p.URLCol)
}

// RowIdentity keys rows on the article URL and the comment text
type RowIdentity struct {
	URLCol     int
	CommentCol int
}

func (p RowIdentity) Key(row []string) string {
	u := cell(row, p.URLCol)
	if u == "" {
		return ""
	}
	return u + "\x00" + cell(row, p.CommentCol)
}

// RowURL returns the article URL of a row of either layout
func RowURL(row []string) string {
	return cell(row, colURL)
}

func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

// Table is a header plus the rows to synchronise under it
type Table struct {
	Layout Layout
	Header []string
	Rows   [][]string
}

// BuildTable flattens articles into rows of layout. With enrich, list rows carry the
// enrichment block sized for maxBodyPages body columns.
func BuildTable(layout Layout, articles []news.EnrichedArticle, enrich bool, maxBodyPages int) Table {
	if layout == LayoutExploded {
		return Table{Layout: layout, Header: layout.Header(0, 0), Rows: explodedRows(articles)}
	}

	rows := make([][]string, 0, len(articles))
	maxComments := 0
	for _, a := range articles {
		row := []string{clip(a.Title), a.URL, a.PublishedAt.String(), clip(a.SourceName())}
		if enrich {
			row = append(row, EnrichmentCells(a, maxBodyPages)...)
			maxComments = max(maxComments, len(a.Comments))
		}
		rows = append(rows, row)
	}

	header := layout.Header(0, 0)
	if enrich {
		header = layout.Header(maxBodyPages, maxComments)
	}
	return Table{Layout: layout, Header: header, Rows: rows}
}

// EnrichmentCells returns the list layout enrichment block of a: the body pages
// padded to maxBodyPages, the comment count and every comment
func EnrichmentCells(a news.EnrichedArticle, maxBodyPages int) []string {
	cells := make([]string, 0, maxBodyPages+1+len(a.Comments))
	for i := 0; i < maxBodyPages; i++ {
		if i < len(a.BodyPages) {
			cells = append(cells, clip(a.BodyPages[i]))
		} else {
			cells = append(cells, "")
		}
	}
	cells = append(cells, strconv.Itoa(a.CommentCount()))
	for _, c := range a.Comments {
		cells = append(cells, clip(c))
	}
	return cells
}

func explodedRows(articles []news.EnrichedArticle) [][]string {
	var rows [][]string
	for _, a := range articles {
		base := []string{
			clip(a.Title),
			a.URL,
			clip(a.SourceName()),
			a.PublishedAt.String(),
			"", // Sentiment
			"", // Category
			clip(strings.Join(a.BodyPages, "\n")),
			strconv.Itoa(a.CommentCount()),
		}
		if len(a.Comments) == 0 {
			rows = append(rows, append(append([]string(nil), base...), ""))
			continue
		}
		for _, c := range a.Comments {
			rows = append(rows, append(append([]string(nil), base...), clip(c)))
		}
	}
	return rows
}

// clip truncates s to CellLimit characters
func clip(s string) string {
	if len(s) <= CellLimit {
		return s
	}
	r := []rune(s)
	if len(r) <= CellLimit {
		return s
	}
	return string(r[:CellLimit])
}
