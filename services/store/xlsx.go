package store

import (
	"context"
	"os"
	"sync"

	"sjsage522/newsworker/logger"
	"sjsage522/newsworker/pkg/errors"

	"github.com/xuri/excelize/v2"
)

// XLSXStore keeps sheets in a local workbook that is saved after every mutation
type XLSXStore struct {
	mu   sync.Mutex
	path string
	file *excelize.File
}

// OpenXLSXStore opens the workbook at path, creating it when missing
func OpenXLSXStore(path string) (*XLSXStore, error) {
	var (
		f   *excelize.File
		err error
	)
	if _, statErr := os.Stat(path); statErr == nil {
		f, err = excelize.OpenFile(path)
		if err != nil {
			return nil, errors.NewStore(path, "failed to open workbook", err)
		}
	} else {
		f = excelize.NewFile()
		logger.ForComponent("store").Info().Str("path", path).Msg("Creating new workbook")
	}
	return &XLSXStore{path: path, file: f}, nil
}

// Close closes the workbook
func (x *XLSXStore) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.file.Close()
}

func (x *XLSXStore) EnsureSheet(_ context.Context, sheet string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	idx, err := x.file.GetSheetIndex(sheet)
	if err != nil {
		return errors.NewStore(sheet, "invalid sheet name", err)
	}
	if idx >= 0 {
		return nil
	}
	if _, err := x.file.NewSheet(sheet); err != nil {
		return errors.NewStore(sheet, "failed to create sheet", err)
	}
	return x.save(sheet)
}

func (x *XLSXStore) ReadRange(_ context.Context, sheet, rng string) ([][]string, error) {
	r, err := ParseRange(rng)
	if err != nil {
		return nil, errors.NewStore(sheet, "invalid range "+rng, err)
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	rows, err := x.file.GetRows(sheet)
	if err != nil {
		return nil, errors.NewStore(sheet, "failed to read rows", err)
	}
	return r.slice(rows), nil
}

func (x *XLSXStore) WriteRange(_ context.Context, sheet, rng string, grid [][]string) error {
	r, err := ParseRange(rng)
	if err != nil {
		return errors.NewStore(sheet, "invalid range "+rng, err)
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.writeRows(sheet, r.StartCol, r.StartRow, grid); err != nil {
		return err
	}
	return x.save(sheet)
}

func (x *XLSXStore) AppendRows(_ context.Context, sheet string, rows [][]string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	existing, err := x.file.GetRows(sheet)
	if err != nil {
		return errors.NewStore(sheet, "failed to read rows", err)
	}
	if err := x.writeRows(sheet, 1, len(existing)+1, rows); err != nil {
		return err
	}
	return x.save(sheet)
}

func (x *XLSXStore) writeRows(sheet string, col, row int, grid [][]string) error {
	for i, values := range grid {
		cell, err := excelize.CoordinatesToCellName(col, row+i)
		if err != nil {
			return errors.NewStore(sheet, "invalid cell", err)
		}
		values := values
		if err := x.file.SetSheetRow(sheet, cell, &values); err != nil {
			return errors.NewStore(sheet, "failed to write row", err)
		}
	}
	return nil
}

func (x *XLSXStore) save(sheet string) error {
	if err := x.file.SaveAs(x.path); err != nil {
		return errors.NewStore(sheet, "failed to save workbook", err)
	}
	return nil
}
