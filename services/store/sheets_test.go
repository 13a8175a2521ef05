package store

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

// fakeSheetsAPI records the calls a SheetsStore makes
type fakeSheetsAPI struct {
	mu       sync.Mutex
	columns  int
	batches  []string
	appended []string
	updated  []string
	gets     int
}

func (f *fakeSheetsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	body, _ := io.ReadAll(r.Body)
	path := r.URL.Path
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && path == "/v4/spreadsheets/sid":
		f.gets++
		json.NewEncoder(w).Encode(map[string]any{
			"sheets": []map[string]any{{
				"properties": map[string]any{
					"sheetId":        7,
					"title":          "News",
					"gridProperties": map[string]any{"columnCount": f.columns},
				},
			}},
		})
	case r.Method == http.MethodPost && path == "/v4/spreadsheets/sid:batchUpdate":
		f.batches = append(f.batches, string(body))
		w.Write([]byte(`{}`))
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":append"):
		f.appended = append(f.appended, path+" "+r.URL.RawQuery+" "+string(body))
		w.Write([]byte(`{}`))
	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		f.updated = append(f.updated, path+" "+string(body))
		w.Write([]byte(`{}`))
	case r.Method == http.MethodGet && strings.Contains(path, "/values/"):
		w.Write([]byte(`{"values":[["Title","URL"],["t1",3]]}`))
	default:
		http.Error(w, "unexpected "+r.Method+" "+path, http.StatusNotFound)
	}
}

func newFakeSheetsStore(t *testing.T, api *fakeSheetsAPI) *SheetsStore {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	s, err := NewSheetsStore(context.Background(), "sid", "",
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	return s
}

func TestSheetsStore_RequiresSpreadsheetID(t *testing.T) {
	_, err := NewSheetsStore(context.Background(), "", "{}")
	assert.Error(t, err)
}

func TestSheetsStore_EnsureSheet(t *testing.T) {
	api := &fakeSheetsAPI{columns: 26}
	s := newFakeSheetsStore(t, api)
	ctx := context.Background()

	require.NoError(t, s.EnsureSheet(ctx, "News"))
	assert.Empty(t, api.batches)

	require.NoError(t, s.EnsureSheet(ctx, "Other"))
	require.Len(t, api.batches, 1)
	assert.Contains(t, api.batches[0], `"addSheet"`)
	assert.Contains(t, api.batches[0], `"title":"Other"`)
}

func TestSheetsStore_ReadRange(t *testing.T) {
	s := newFakeSheetsStore(t, &fakeSheetsAPI{columns: 26})

	rows, err := s.ReadRange(context.Background(), "News", "")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Title", "URL"}, {"t1", "3"}}, rows)
}

func TestSheetsStore_AppendGrowsColumns(t *testing.T) {
	api := &fakeSheetsAPI{columns: 2}
	s := newFakeSheetsStore(t, api)

	err := s.AppendRows(context.Background(), "News", [][]string{{"a", "b", "c", "d"}})
	require.NoError(t, err)

	require.Len(t, api.batches, 1)
	assert.Contains(t, api.batches[0], `"appendDimension"`)
	assert.Contains(t, api.batches[0], `"length":2`)
	require.Len(t, api.appended, 1)
	assert.Contains(t, api.appended[0], "'News'!A1:append")
	assert.Contains(t, api.appended[0], "insertDataOption=INSERT_ROWS")
	assert.Contains(t, api.appended[0], `["a","b","c","d"]`)

	// The grown width is remembered
	require.NoError(t, s.AppendRows(context.Background(), "News", [][]string{{"e", "f", "g"}}))
	assert.Len(t, api.batches, 1)
}

func TestSheetsStore_WriteRange(t *testing.T) {
	api := &fakeSheetsAPI{columns: 26}
	s := newFakeSheetsStore(t, api)

	err := s.WriteRange(context.Background(), "News", "E2:F3", [][]string{{"1", "2"}, {"3", ""}})
	require.NoError(t, err)

	require.Len(t, api.updated, 1)
	assert.Contains(t, api.updated[0], "'News'!E2:F3")
	assert.Empty(t, api.batches)
}

func TestA1(t *testing.T) {
	assert.Equal(t, "'News'", a1("News", ""))
	assert.Equal(t, "'O''Brien'!A1:B2", a1("O'Brien", "A1:B2"))
}
