package syncer

import (
	"context"

	"sjsage522/newsworker/internal/news"
	"sjsage522/newsworker/logger"
	"sjsage522/newsworker/services/store"
)

// EnrichFunc returns the enrichment cells for each row, in the order given
type EnrichFunc func(ctx context.Context, rows [][]string) [][]string

// ColumnEnrichment attaches enrichment columns to the right of stored rows
type ColumnEnrichment struct {
	// BaseWidth is the number of columns before the enrichment block
	BaseWidth int
	// BaseHeader names the columns before the block
	BaseHeader []string
	// BlockHeader names an enrichment block of width columns
	BlockHeader func(width int) []string
	Enrich      EnrichFunc
}

type pendingRow struct {
	sheetRow int // 1-based, header is row 1
	cells    []string
}

// EnrichColumns fills the enrichment block of every stored row that has none yet and
// returns the number of rows updated. Rows with any non-empty enrichment cell are
// skipped, so a rerun only touches rows a previous run did not finish.
func (w *Writer) EnrichColumns(ctx context.Context, sheet string, plan ColumnEnrichment) (int, error) {
	log := logger.ForSync().WithField("sheet", sheet)

	if err := w.Store.EnsureSheet(ctx, sheet); err != nil {
		return 0, err
	}
	grid, err := w.Store.ReadRange(ctx, sheet, "")
	if err != nil {
		return 0, err
	}
	if len(grid) <= 1 {
		log.Info().Msg("No rows to enrich")
		return 0, nil
	}

	var (
		targets  [][]string
		sheetRow []int
	)
	for i, row := range grid[1:] {
		if cell(row, colURL) == "" || hasEnrichment(row, plan.BaseWidth) {
			continue
		}
		targets = append(targets, row)
		sheetRow = append(sheetRow, i+2)
	}
	if len(targets) == 0 {
		log.Info().Int("rows", len(grid)-1).Msg("Every row already enriched")
		return 0, nil
	}

	results := plan.Enrich(ctx, targets)
	var pending []pendingRow
	width := 0
	for i, cells := range results {
		if i >= len(sheetRow) || len(cells) == 0 {
			continue
		}
		pending = append(pending, pendingRow{sheetRow: sheetRow[i], cells: cells})
		width = max(width, len(cells))
	}
	if width == 0 {
		return 0, nil
	}

	// Rectangular update region
	for i := range pending {
		for len(pending[i].cells) < width {
			pending[i].cells = append(pending[i].cells, "")
		}
	}

	header := append(append([]string(nil), plan.BaseHeader...), plan.BlockHeader(width)...)
	if merged, changed := mergeHeader(grid[0], header); changed {
		if err := w.Store.WriteRange(ctx, sheet, "A1", [][]string{merged}); err != nil {
			return 0, err
		}
	}

	written, err := w.writeSpans(ctx, sheet, plan.BaseWidth+1, width, pending)
	log.Info().
		Int("candidates", len(targets)).
		Int("written", written).
		Int("width", width).
		Msg("Enrichment columns written")
	return written, err
}

// writeSpans writes contiguous runs of rows as one rectangular range each, split so
// that no request exceeds the chunk size or the byte budget
func (w *Writer) writeSpans(ctx context.Context, sheet string, col, width int, rows []pendingRow) (int, error) {
	observer := news.OrNop(w.Observer)
	size := w.chunkSize(width)

	cells := make([][]string, len(rows))
	for i, r := range rows {
		cells[i] = r.cells
	}

	written, chunk := 0, 0
	for start := 0; start < len(rows); {
		end := start + 1
		for end < len(rows) && rows[end].sheetRow == rows[end-1].sheetRow+1 {
			end++
		}
		end = w.chunkEnd(cells[:end], start, size)
		chunk++

		grid := cells[start:end]
		rng, err := store.RangeFor(col, rows[start].sheetRow, width, len(grid))
		if err == nil {
			err = w.Store.WriteRange(ctx, sheet, rng, grid)
		}
		if err != nil {
			return written, &ChunkError{Sheet: sheet, Chunk: chunk, Rows: len(grid), Err: err}
		}
		written += len(grid)
		observer.ChunkWritten(sheet, chunk, len(grid))
		start = end
	}
	return written, nil
}

func hasEnrichment(row []string, baseWidth int) bool {
	for i := baseWidth; i < len(row); i++ {
		if cell(row, i) != "" {
			return true
		}
	}
	return false
}
