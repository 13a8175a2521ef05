package store

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Range is a parsed A1 range with 1-based bounds. A zero end is unbounded.
type Range struct {
	StartCol int
	StartRow int
	EndCol   int
	EndRow   int
}

// ParseRange parses "A1", "A1:J10", "A2:J" and "A:J". The empty string is the whole sheet.
func ParseRange(rng string) (Range, error) {
	rng = strings.TrimSpace(rng)
	if rng == "" {
		return Range{StartCol: 1, StartRow: 1}, nil
	}

	start, end, hasEnd := strings.Cut(rng, ":")
	r := Range{}
	var err error
	if r.StartCol, r.StartRow, err = parseRef(start); err != nil {
		return Range{}, err
	}
	if r.StartRow == 0 {
		r.StartRow = 1
	}
	if !hasEnd {
		r.EndCol, r.EndRow = r.StartCol, r.StartRow
		return r, nil
	}
	if r.EndCol, r.EndRow, err = parseRef(end); err != nil {
		return Range{}, err
	}
	if r.EndCol < r.StartCol || (r.EndRow != 0 && r.EndRow < r.StartRow) {
		return Range{}, fmt.Errorf("invalid range %q", rng)
	}
	return r, nil
}

// parseRef parses a cell reference or a bare column; the row is 0 for a bare column
func parseRef(ref string) (col, row int, err error) {
	ref = strings.ToUpper(strings.TrimSpace(ref))
	if ref == "" {
		return 0, 0, fmt.Errorf("empty cell reference")
	}
	if strings.IndexFunc(ref, func(r rune) bool { return r >= '0' && r <= '9' }) < 0 {
		col, err = excelize.ColumnNameToNumber(ref)
		return col, 0, err
	}
	return excelize.CellNameToCoordinates(ref)
}

// RangeFor returns the A1 range of a width x height block whose top-left is (col, row)
func RangeFor(col, row, width, height int) (string, error) {
	if width <= 0 || height <= 0 {
		return "", fmt.Errorf("empty block %dx%d", width, height)
	}
	start, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "", err
	}
	end, err := excelize.CoordinatesToCellName(col+width-1, row+height-1)
	if err != nil {
		return "", err
	}
	return start + ":" + end, nil
}

// Cell returns the A1 name of (col, row)
func Cell(col, row int) (string, error) {
	return excelize.CoordinatesToCellName(col, row)
}

// slice cuts the part of grid covered by r
func (r Range) slice(grid [][]string) [][]string {
	if r.StartRow > len(grid) {
		return nil
	}
	rows := grid[r.StartRow-1:]
	if r.EndRow != 0 && r.EndRow-r.StartRow+1 < len(rows) {
		rows = rows[:r.EndRow-r.StartRow+1]
	}

	out := make([][]string, len(rows))
	for i, row := range rows {
		if r.StartCol > len(row) {
			out[i] = []string{}
			continue
		}
		cells := row[r.StartCol-1:]
		if r.EndCol != 0 && r.EndCol-r.StartCol+1 < len(cells) {
			cells = cells[:r.EndCol-r.StartCol+1]
		}
		out[i] = append([]string(nil), cells...)
	}
	return out
}

// place writes block into grid at (col, row), growing it as needed
func place(grid [][]string, col, row int, block [][]string) [][]string {
	for i, values := range block {
		r := row - 1 + i
		for len(grid) <= r {
			grid = append(grid, []string{})
		}
		need := col - 1 + len(values)
		for len(grid[r]) < need {
			grid[r] = append(grid[r], "")
		}
		copy(grid[r][col-1:], values)
	}
	return grid
}
