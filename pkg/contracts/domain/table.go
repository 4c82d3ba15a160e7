package domain

import (
	"fmt"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
)

// Kind is the logical type of a table column
type Kind string

const (
	KindString Kind = "string"
	KindFloat  Kind = "float"
	KindInt    Kind = "int"
)

// Column describes one table column
type Column struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Table is a store-neutral tabular value. Cells hold string, float64, int64
// or nil for null, matching the column kind.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Header returns the column names in order
func (t Table) Header() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Validate checks that every row has one cell per column and that each
// non-null cell matches its column kind.
func (t Table) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("table name is empty")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %s has no columns", t.Name)
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("table %s row %d has %d cells, want %d", t.Name, i, len(row), len(t.Columns))
		}
		for j, cell := range row {
			if cell == nil {
				continue
			}
			ok := false
			switch t.Columns[j].Kind {
			case KindString:
				_, ok = cell.(string)
			case KindFloat:
				_, ok = cell.(float64)
			case KindInt:
				_, ok = cell.(int64)
			}
			if !ok {
				return fmt.Errorf("table %s row %d column %s: %T is not %s", t.Name, i, t.Columns[j].Name, cell, t.Columns[j].Kind)
			}
		}
	}
	return nil
}

// Stable column names read by the dashboard
var (
	SilverColumns = []Column{
		{Name: "Ticker", Kind: KindString},
		{Name: "Date", Kind: KindString},
		{Name: "Open", Kind: KindFloat},
		{Name: "High", Kind: KindFloat},
		{Name: "Low", Kind: KindFloat},
		{Name: "Close", Kind: KindFloat},
		{Name: "Volume", Kind: KindInt},
		{Name: "Variation", Kind: KindFloat},
		{Name: "Daily_Change_Pct", Kind: KindFloat},
	}

	GoldColumns = []Column{
		{Name: "Ticker", Kind: KindString},
		{Name: "Trading_Days", Kind: KindInt},
		{Name: "First_Date", Kind: KindString},
		{Name: "Last_Date", Kind: KindString},
		{Name: "Closing_Price", Kind: KindFloat},
		{Name: "Total_Volume", Kind: KindInt},
		{Name: "Avg_Daily_Variation", Kind: KindFloat},
		{Name: "Variation_Std_Dev", Kind: KindFloat},
		{Name: "Period_Change_Pct", Kind: KindFloat},
	}
)

// Decimal places used when rendering cells
const (
	PricePlaces   int32 = 4
	RatioPlaces   int32 = 6
	PercentPlaces int32 = 4
)

// Round rounds half away from zero to places decimals using exact decimal
// arithmetic, so 0.1056 stays 0.1056 in the destination.
func Round(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

func nullCell(f null.Float, places int32) any {
	if !f.Valid {
		return nil
	}
	return Round(f.Float64, places)
}

func nullString(s null.String) any {
	if !s.Valid {
		return nil
	}
	return s.String
}

// SilverTable converts cleaned bars into the Silver table
func SilverTable(name string, bars []CleanedBar) Table {
	rows := make([][]any, 0, len(bars))
	for _, b := range bars {
		rows = append(rows, []any{
			b.Ticker,
			b.DateString(),
			Round(b.Open, PricePlaces),
			Round(b.High, PricePlaces),
			Round(b.Low, PricePlaces),
			Round(b.Close, PricePlaces),
			b.Volume,
			Round(b.Variation, RatioPlaces),
			Round(b.ChangePct, PercentPlaces),
		})
	}
	return Table{Name: name, Columns: SilverColumns, Rows: rows}
}

// GoldTable converts summaries into the Gold table, one row each
func GoldTable(name string, summaries []MetricSummary) Table {
	rows := make([][]any, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []any{
			s.Ticker,
			int64(s.TradingDays),
			nullString(s.FirstDate),
			nullString(s.LastDate),
			nullCell(s.ClosingPrice, PricePlaces),
			s.TotalVolume,
			nullCell(s.AvgDailyVariation, RatioPlaces),
			nullCell(s.VariationStdDev, RatioPlaces),
			nullCell(s.PeriodChangePct, PercentPlaces),
		})
	}
	return Table{Name: name, Columns: GoldColumns, Rows: rows}
}
