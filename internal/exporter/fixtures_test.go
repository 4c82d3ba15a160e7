package exporter

import (
	"context"
	"errors"
	"time"

	"github.com/guregu/null/v6"

	"marketpulse/pkg/contracts/domain"
)

func silverFixture() domain.Table {
	return domain.SilverTable("Stocks_Data", []domain.CleanedBar{
		{
			Ticker: "AAPL", Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			Open: 90, High: 101, Low: 89, Close: 100, Volume: 1000,
			Variation: 0.111111, ChangePct: 0,
		},
		{
			Ticker: "AAPL", Date: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
			Open: 100, High: 111, Low: 99, Close: 110, Volume: 500,
			Variation: 0.1, ChangePct: 10,
		},
	})
}

func goldFixture() domain.Table {
	return domain.GoldTable("Summary", []domain.MetricSummary{
		{
			Ticker:            "AAPL",
			TradingDays:       2,
			FirstDate:         null.StringFrom("2024-01-02"),
			LastDate:          null.StringFrom("2024-01-03"),
			ClosingPrice:      null.FloatFrom(110),
			TotalVolume:       1500,
			AvgDailyVariation: null.FloatFrom(0.105556),
			VariationStdDev:   null.FloatFrom(0.005556),
			PeriodChangePct:   null.FloatFrom(10),
		},
		domain.EmptySummary("TSLA"),
	})
}

// memoryStore keeps the last table written under each name
type memoryStore struct {
	name   string
	tables map[string]domain.Table
	calls  []string
	failOn string
}

func newMemoryStore(name string) *memoryStore {
	return &memoryStore{name: name, tables: make(map[string]domain.Table)}
}

func (m *memoryStore) Name() string { return m.name }

func (m *memoryStore) ReplaceTable(_ context.Context, table domain.Table) error {
	m.calls = append(m.calls, table.Name)
	if table.Name == m.failOn {
		return errors.New("disk full")
	}
	m.tables[table.Name] = table
	return nil
}
