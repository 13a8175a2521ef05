// Package store provides the tabular stores rows are synchronised into.
package store

import (
	"context"
)

// Store is a workbook of named sheets holding string grids
type Store interface {
	// EnsureSheet creates the sheet when it does not exist
	EnsureSheet(ctx context.Context, sheet string) error

	// ReadRange reads an A1 range; an empty range reads the whole sheet
	ReadRange(ctx context.Context, sheet, rng string) ([][]string, error)

	// WriteRange writes grid with its top-left cell at the start of rng
	WriteRange(ctx context.Context, sheet, rng string, grid [][]string) error

	// AppendRows appends rows after the last non-empty row
	AppendRows(ctx context.Context, sheet string, rows [][]string) error
}
