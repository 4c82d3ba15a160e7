package marketdata

import (
	"strings"
	"time"

	"github.com/scmhub/calendar"

	"marketpulse/pkg/contracts/domain"
)

// maxCalendarScan bounds the backwards walk when counting trading days
const maxCalendarScan = 20000

// TradingCalendar decides which calendar days are trading sessions. When the
// exchange calendar cannot be loaded it falls back to Monday to Friday.
type TradingCalendar struct {
	cal      *calendar.Calendar
	loc      *time.Location
	fallback bool
}

// NewTradingCalendar loads the calendar for an ISO 10383 MIC such as xnys
func NewTradingCalendar(mic string) *TradingCalendar {
	mic = strings.ToLower(strings.TrimSpace(mic))
	if mic == "" {
		mic = "xnys"
	}

	cal := calendar.GetCalendar(mic)
	if cal == nil {
		return &TradingCalendar{loc: newYork(), fallback: true}
	}
	return &TradingCalendar{cal: cal, loc: cal.Loc}
}

// WeekdayCalendar treats every Monday to Friday as a session
func WeekdayCalendar(loc *time.Location) *TradingCalendar {
	if loc == nil {
		loc = time.UTC
	}
	return &TradingCalendar{loc: loc, fallback: true}
}

// Location returns the exchange time zone
func (c *TradingCalendar) Location() *time.Location {
	return c.loc
}

// Fallback reports whether the weekday approximation is in use
func (c *TradingCalendar) Fallback() bool {
	return c.fallback
}

// IsTradingDay reports whether the calendar date of day is a session
func (c *TradingCalendar) IsTradingDay(day time.Time) bool {
	// midday in exchange time keeps the date stable across zones
	local := time.Date(day.Year(), day.Month(), day.Day(), 12, 0, 0, 0, c.loc)

	if c.fallback {
		wd := local.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	}
	return c.cal.IsBusinessDay(local)
}

// Window is the inclusive date range of a run. Dates are midnight UTC of
// exchange calendar days.
type Window struct {
	From        time.Time
	To          time.Time
	TradingDays int
}

// Window returns the range covering the last lookback trading days that
// end on or before the exchange date of now.
func (c *TradingCalendar) Window(now time.Time, lookback int) Window {
	if lookback < 1 {
		lookback = 1
	}
	to := domain.TruncateDate(now, c.loc)

	day := to
	counted := 0
	from := to
	for i := 0; i < maxCalendarScan && counted < lookback; i++ {
		if c.IsTradingDay(day) {
			counted++
			from = day
		}
		day = day.AddDate(0, 0, -1)
	}

	return Window{From: from, To: to, TradingDays: counted}
}
