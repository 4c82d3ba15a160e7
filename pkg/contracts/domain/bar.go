package domain

import (
	"time"

	"github.com/guregu/null/v6"
)

// DateFormat is the calendar date layout used for every date column
const DateFormat = "2006-01-02"

// RawBar is one Bronze row: a daily bar exactly as the provider returned it.
// Numeric fields are nullable because providers emit nulls for halted or
// partially reported sessions. Identity is (Ticker, Date).
type RawBar struct {
	Ticker   string     `json:"ticker"`
	Date     time.Time  `json:"date"`
	Open     null.Float `json:"open"`
	High     null.Float `json:"high"`
	Low      null.Float `json:"low"`
	Close    null.Float `json:"close"`
	AdjClose null.Float `json:"adj_close"`
	Volume   null.Int   `json:"volume"`
}

// CleanedBar is one Silver row. Every field is present and validated.
type CleanedBar struct {
	Ticker string    `json:"ticker" validate:"required"`
	Date   time.Time `json:"date" validate:"required"`
	Open   float64   `json:"open" validate:"gt=0"`
	High   float64   `json:"high" validate:"gt=0"`
	Low    float64   `json:"low" validate:"gt=0"`
	Close  float64   `json:"close" validate:"gt=0"`
	Volume int64     `json:"volume" validate:"gt=0"`

	// Variation is the intraday move relative to the open: (Close-Open)/Open
	Variation float64 `json:"variation"`

	// ChangePct is the close-to-close change in percent against the previous
	// retained bar of the same ticker; 0 for the first bar.
	ChangePct float64 `json:"change_pct"`
}

// Raw converts a cleaned bar back into Bronze form. Cleaning the result
// yields the same bar again.
func (b CleanedBar) Raw() RawBar {
	return RawBar{
		Ticker:   b.Ticker,
		Date:     b.Date,
		Open:     null.FloatFrom(b.Open),
		High:     null.FloatFrom(b.High),
		Low:      null.FloatFrom(b.Low),
		Close:    null.FloatFrom(b.Close),
		AdjClose: null.FloatFrom(b.Close),
		Volume:   null.IntFrom(b.Volume),
	}
}

// DateString returns the bar date as YYYY-MM-DD
func (b CleanedBar) DateString() string {
	return b.Date.Format(DateFormat)
}

// TruncateDate normalises a timestamp to midnight UTC of its calendar day
// in loc. Providers report sessions in exchange time.
func TruncateDate(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
