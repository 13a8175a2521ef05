package store

import (
	"context"
	"path/filepath"
	"testing"

	"sjsage522/newsworker/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRange(t *testing.T) {
	tests := []struct {
		in      string
		want    Range
		wantErr bool
	}{
		{"", Range{StartCol: 1, StartRow: 1}, false},
		{"A1", Range{1, 1, 1, 1}, false},
		{"B2:J10", Range{2, 2, 10, 10}, false},
		{"A2:J", Range{1, 2, 10, 0}, false},
		{"A:C", Range{1, 1, 3, 0}, false},
		{"aa1:ab2", Range{27, 1, 28, 2}, false},
		{"J1:A1", Range{}, true},
		{"A5:B2", Range{}, true},
		{"1:1", Range{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRange(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRangeFor(t *testing.T) {
	rng, err := RangeFor(1, 2, 9, 5000)
	require.NoError(t, err)
	assert.Equal(t, "A2:I5001", rng)

	rng, err = RangeFor(5, 3, 24, 1)
	require.NoError(t, err)
	assert.Equal(t, "E3:AB3", rng)

	_, err = RangeFor(1, 1, 0, 1)
	assert.Error(t, err)
}

// exerciseStore runs the same contract against every backend
func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.ReadRange(ctx, "missing", "")
	assert.Error(t, err)

	require.NoError(t, s.EnsureSheet(ctx, "トヨタ"))
	require.NoError(t, s.EnsureSheet(ctx, "トヨタ"))

	rows, err := s.ReadRange(ctx, "トヨタ", "")
	require.NoError(t, err)
	assert.Empty(t, rows)

	require.NoError(t, s.WriteRange(ctx, "トヨタ", "A1", [][]string{{"Title", "URL"}}))
	require.NoError(t, s.AppendRows(ctx, "トヨタ", [][]string{{"t1", "u1"}, {"t2", "u2"}}))
	require.NoError(t, s.AppendRows(ctx, "トヨタ", [][]string{{"t3", "u3", "x"}}))

	rows, err = s.ReadRange(ctx, "トヨタ", "")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Title", "URL"},
		{"t1", "u1"},
		{"t2", "u2"},
		{"t3", "u3", "x"},
	}, rows)

	require.NoError(t, s.WriteRange(ctx, "トヨタ", "C2:D3", [][]string{{"b1", "c1"}, {"b2", "c2"}}))

	rows, err = s.ReadRange(ctx, "トヨタ", "B2:D")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"u1", "b1", "c1"},
		{"u2", "b2", "c2"},
		{"u3", "x"},
	}, rows)

	rows, err = s.ReadRange(ctx, "トヨタ", "A1:B1")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Title", "URL"}}, rows)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStore_UnknownSheet(t *testing.T) {
	s := NewMemoryStore()
	err := s.AppendRows(context.Background(), "nope", [][]string{{"a"}})
	assert.True(t, errors.IsType(err, errors.ErrorTypeStore))
}

func TestXLSXStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "news.xlsx")

	s, err := OpenXLSXStore(path)
	require.NoError(t, err)
	exerciseStore(t, s)
	require.NoError(t, s.Close())

	// Reopening sees the saved rows
	reopened, err := OpenXLSXStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	rows, err := reopened.ReadRange(context.Background(), "トヨタ", "A1:A")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Title"}, {"t1"}, {"t2"}, {"t3"}}, rows)
}
