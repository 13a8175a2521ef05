package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"sjsage522/newsworker/logger"
	"sjsage522/newsworker/pkg/errors"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

type sheetProps struct {
	id      int64
	columns int64
}

// SheetsStore is a Google Sheets spreadsheet accessed with a service account
type SheetsStore struct {
	srv           *sheets.Service
	spreadsheetID string

	mu    sync.Mutex
	props map[string]sheetProps
}

// NewSheetsStore creates a store for spreadsheetID from service account JSON
func NewSheetsStore(ctx context.Context, spreadsheetID, credentialsJSON string, opts ...option.ClientOption) (*SheetsStore, error) {
	if spreadsheetID == "" {
		return nil, errors.NewConfiguration("SPREADSHEET_ID is required", nil)
	}
	if credentialsJSON != "" {
		opts = append(opts,
			option.WithCredentialsJSON([]byte(credentialsJSON)),
			option.WithScopes(sheets.SpreadsheetsScope),
		)
	}

	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.NewConfiguration("failed to create sheets client", err)
	}
	return &SheetsStore{
		srv:           srv,
		spreadsheetID: spreadsheetID,
		props:         make(map[string]sheetProps),
	}, nil
}

func (s *SheetsStore) EnsureSheet(ctx context.Context, sheet string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadProps(ctx); err != nil {
		return errors.NewStore(sheet, "failed to read spreadsheet", err)
	}
	if _, ok := s.props[sheet]; ok {
		return nil
	}

	_, err := s.srv.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: sheet}},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return errors.NewStore(sheet, "failed to add sheet", err)
	}
	logger.ForComponent("store").Info().Str("sheet", sheet).Msg("Worksheet created")

	s.props = make(map[string]sheetProps)
	if err := s.loadProps(ctx); err != nil {
		return errors.NewStore(sheet, "failed to read spreadsheet", err)
	}
	return nil
}

func (s *SheetsStore) ReadRange(ctx context.Context, sheet, rng string) ([][]string, error) {
	resp, err := s.srv.Spreadsheets.Values.Get(s.spreadsheetID, a1(sheet, rng)).Context(ctx).Do()
	if err != nil {
		return nil, errors.NewStore(sheet, "failed to read range "+rng, err)
	}

	grid := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		grid[i] = make([]string, len(row))
		for j, v := range row {
			grid[i][j] = fmt.Sprint(v)
		}
	}
	return grid, nil
}

func (s *SheetsStore) WriteRange(ctx context.Context, sheet, rng string, grid [][]string) error {
	r, err := ParseRange(rng)
	if err != nil {
		return errors.NewStore(sheet, "invalid range "+rng, err)
	}
	if err := s.ensureWidth(ctx, sheet, r.StartCol-1+maxWidth(grid)); err != nil {
		return err
	}

	_, err = s.srv.Spreadsheets.Values.Update(s.spreadsheetID, a1(sheet, rng), valueRange(grid)).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return errors.NewStore(sheet, "failed to write range "+rng, err)
	}
	return nil
}

func (s *SheetsStore) AppendRows(ctx context.Context, sheet string, rows [][]string) error {
	if err := s.ensureWidth(ctx, sheet, maxWidth(rows)); err != nil {
		return err
	}

	_, err := s.srv.Spreadsheets.Values.Append(s.spreadsheetID, a1(sheet, "A1"), valueRange(rows)).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return errors.NewStore(sheet, fmt.Sprintf("failed to append %d rows", len(rows)), err)
	}
	return nil
}

// ensureWidth grows the sheet grid so width columns can be written
func (s *SheetsStore) ensureWidth(ctx context.Context, sheet string, width int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadProps(ctx); err != nil {
		return errors.NewStore(sheet, "failed to read spreadsheet", err)
	}
	p, ok := s.props[sheet]
	if !ok {
		return errors.NewStore(sheet, "sheet not found", nil)
	}
	if int64(width) <= p.columns {
		return nil
	}

	_, err := s.srv.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AppendDimension: &sheets.AppendDimensionRequest{
				SheetId:   p.id,
				Dimension: "COLUMNS",
				Length:    int64(width) - p.columns,
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return errors.NewStore(sheet, "failed to add columns", err)
	}
	p.columns = int64(width)
	s.props[sheet] = p
	return nil
}

// loadProps caches sheet ids and widths; callers hold s.mu
func (s *SheetsStore) loadProps(ctx context.Context) error {
	if len(s.props) > 0 {
		return nil
	}
	resp, err := s.srv.Spreadsheets.Get(s.spreadsheetID).
		Fields("sheets(properties(sheetId,title,gridProperties(columnCount)))").
		Context(ctx).
		Do()
	if err != nil {
		return err
	}
	for _, sh := range resp.Sheets {
		if sh.Properties == nil {
			continue
		}
		p := sheetProps{id: sh.Properties.SheetId}
		if sh.Properties.GridProperties != nil {
			p.columns = sh.Properties.GridProperties.ColumnCount
		}
		s.props[sh.Properties.Title] = p
	}
	return nil
}

// a1 qualifies rng with the quoted sheet name
func a1(sheet, rng string) string {
	quoted := "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
	if rng == "" {
		return quoted
	}
	return quoted + "!" + rng
}

func valueRange(grid [][]string) *sheets.ValueRange {
	values := make([][]interface{}, len(grid))
	for i, row := range grid {
		values[i] = make([]interface{}, len(row))
		for j, v := range row {
			values[i][j] = v
		}
	}
	return &sheets.ValueRange{Values: values}
}

func maxWidth(grid [][]string) int {
	width := 0
	for _, row := range grid {
		width = max(width, len(row))
	}
	return width
}
