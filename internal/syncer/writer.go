package syncer

import (
	"context"
	"fmt"
	"slices"

	"sjsage522/newsworker/internal/news"
	"sjsage522/newsworker/logger"
	"sjsage522/newsworker/services/store"
)

// Defaults keep one write request well under the Sheets per request limits
const (
	DefaultChunkRows  = 5000
	DefaultCellBudget = 100000
	DefaultByteBudget = 2000000
)

// ChunkError reports the chunk whose write failed. Chunks before it stay committed.
type ChunkError struct {
	Sheet string
	Chunk int // 1-based
	Rows  int
	Err   error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("sheet %s: chunk %d (%d rows) failed: %v", e.Sheet, e.Chunk, e.Rows, e.Err)
}

func (e *ChunkError) Unwrap() error {
	return e.Err
}

// Writer synchronises tables into a store. It holds no state between calls; the
// identity set is rebuilt from the store on every call.
type Writer struct {
	Store      store.Store
	ChunkRows  int
	CellBudget int
	// ByteBudget bounds the cell text of one request; zero means the default
	ByteBudget int
	Observer   news.Observer
}

// NewWriter creates a writer with the given chunk bounds; zero means the default
func NewWriter(s store.Store, chunkRows, cellBudget int, observer news.Observer) *Writer {
	return &Writer{
		Store:      s,
		ChunkRows:  chunkRows,
		CellBudget: cellBudget,
		Observer:   news.OrNop(observer),
	}
}

// Sync appends the rows of t whose identity is not yet stored and returns how many
// were written. A failing chunk returns the rows committed before it and a *ChunkError.
func (w *Writer) Sync(ctx context.Context, sheet string, t Table) (int, error) {
	rows, err := w.SyncRows(ctx, sheet, t)
	return len(rows), err
}

// SyncRows is Sync returning the committed rows themselves, in write order
func (w *Writer) SyncRows(ctx context.Context, sheet string, t Table) ([][]string, error) {
	log := logger.ForSync().WithField("sheet", sheet)

	grid, err := w.prepare(ctx, sheet, t.Header)
	if err != nil {
		return nil, err
	}

	fresh := Filter(t.Rows, existingKeys(grid, t.Layout.Identity()), t.Layout.Identity())
	if len(fresh) == 0 {
		log.Info().Int("candidates", len(t.Rows)).Msg("No new rows")
		return nil, nil
	}

	written, err := w.appendChunks(ctx, sheet, fresh, max(len(t.Header), maxWidth(fresh)))
	log.Info().
		Int("candidates", len(t.Rows)).
		Int("new", len(fresh)).
		Int("written", written).
		Msg("Sync finished")
	return fresh[:written], err
}

// prepare makes sure the sheet exists with a matching header and returns its data
// rows, header excluded
func (w *Writer) prepare(ctx context.Context, sheet string, header []string) ([][]string, error) {
	if err := w.Store.EnsureSheet(ctx, sheet); err != nil {
		return nil, err
	}
	grid, err := w.Store.ReadRange(ctx, sheet, "")
	if err != nil {
		return nil, err
	}

	var current []string
	if len(grid) > 0 {
		current = grid[0]
	}
	if merged, changed := mergeHeader(current, header); changed {
		if err := w.Store.WriteRange(ctx, sheet, "A1", [][]string{merged}); err != nil {
			return nil, err
		}
		logger.ForSync().Info().Str("sheet", sheet).Int("columns", len(merged)).Msg("Header written")
	}

	if len(grid) <= 1 {
		return nil, nil
	}
	return grid[1:], nil
}

// mergeHeader returns the header to store. Columns beyond the expected header are
// kept so user columns are never dropped.
func mergeHeader(current, expected []string) ([]string, bool) {
	if len(expected) <= len(current) && slices.Equal(current[:len(expected)], expected) {
		return current, false
	}
	merged := append([]string(nil), expected...)
	if len(current) > len(expected) {
		merged = append(merged, current[len(expected):]...)
	}
	return merged, true
}

func existingKeys(rows [][]string, policy IdentityPolicy) map[string]struct{} {
	keys := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if k := policy.Key(row); k != "" {
			keys[k] = struct{}{}
		}
	}
	return keys
}

// Filter returns the rows whose key is neither in seen nor earlier in rows, in
// input order. Rows without identity are dropped. seen is extended in place.
func Filter(rows [][]string, seen map[string]struct{}, policy IdentityPolicy) [][]string {
	var out [][]string
	for _, row := range rows {
		k := policy.Key(row)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, row)
	}
	return out
}

// chunkSize is the number of rows of width columns one request may carry
func (w *Writer) chunkSize(width int) int {
	rows := w.ChunkRows
	if rows <= 0 {
		rows = DefaultChunkRows
	}
	budget := w.CellBudget
	if budget <= 0 {
		budget = DefaultCellBudget
	}
	if width > 0 {
		rows = min(rows, budget/width)
	}
	return max(rows, 1)
}

// chunkEnd returns the end of the chunk starting at start: at most size rows whose
// cell text fits the byte budget. A row larger than the budget goes alone.
func (w *Writer) chunkEnd(rows [][]string, start, size int) int {
	budget := w.ByteBudget
	if budget <= 0 {
		budget = DefaultByteBudget
	}
	end, bytes := start, 0
	for end < len(rows) && end-start < size {
		n := rowBytes(rows[end])
		if end > start && bytes+n > budget {
			break
		}
		bytes += n
		end++
	}
	return end
}

func rowBytes(row []string) int {
	n := 0
	for _, c := range row {
		n += len(c)
	}
	return n
}

func (w *Writer) appendChunks(ctx context.Context, sheet string, rows [][]string, width int) (int, error) {
	observer := news.OrNop(w.Observer)
	size := w.chunkSize(width)

	written := 0
	for chunk := 1; written < len(rows); chunk++ {
		end := w.chunkEnd(rows, written, size)
		part := rows[written:end]
		if err := w.Store.AppendRows(ctx, sheet, part); err != nil {
			logger.ForSync().Error().Err(err).
				Str("sheet", sheet).
				Int("chunk", chunk).
				Int("committed", written).
				Msg("Chunk write failed")
			return written, &ChunkError{Sheet: sheet, Chunk: chunk, Rows: len(part), Err: err}
		}
		written = end
		observer.ChunkWritten(sheet, chunk, len(part))
	}
	return written, nil
}

func maxWidth(rows [][]string) int {
	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}
	return width
}
