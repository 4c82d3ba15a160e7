package exporter

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWorkbookStore_ReplaceTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "marketpulse.xlsx")
	store := NewWorkbookStore(path, nil)
	ctx := context.Background()

	require.NoError(t, store.ReplaceTable(ctx, silverFixture()))
	require.NoError(t, store.ReplaceTable(ctx, goldFixture()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t, []string{"Stocks_Data", "Summary"}, f.GetSheetList())

	header, err := f.GetCellValue("Summary", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Ticker", header)

	closing, err := f.GetCellValue("Summary", "E2")
	require.NoError(t, err)
	assert.Equal(t, "110", closing)

	nullCell, err := f.GetCellValue("Summary", "E3")
	require.NoError(t, err)
	assert.Equal(t, "", nullCell)

	silverRows, err := f.GetRows("Stocks_Data")
	require.NoError(t, err)
	assert.Len(t, silverRows, 3)
}

func TestWorkbookStore_ReplaceDropsOldRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "marketpulse.xlsx")
	store := NewWorkbookStore(path, nil)
	ctx := context.Background()

	require.NoError(t, store.ReplaceTable(ctx, goldFixture()))

	smaller := goldFixture()
	smaller.Rows = smaller.Rows[:1]
	require.NoError(t, store.ReplaceTable(ctx, smaller))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Summary"}, f.GetSheetList())
	rows, err := f.GetRows("Summary")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
