// Package dataprocessing turns the Bronze layer into the Silver and Gold
// layers.
//
// # Silver
//
// CleanSeries validates and standardizes the raw bars of one ticker:
//
//   - rows with a missing, non-finite or non-positive open, high, low or
//     close are dropped
//   - rows with a missing or non-positive volume are dropped
//   - rows whose high is below their low are dropped
//   - when several rows share a date the last retained one wins
//   - rows are sorted by date
//
// With price adjustment enabled and a positive adjusted close, open, high and
// low are scaled by AdjClose/Close and the close becomes the adjusted close.
// Variation is (Close-Open)/Open and ChangePct is the close-to-close change in
// percent, 0 for the first row. Cleaning a cleaned series returns it unchanged.
//
// # Gold
//
// Aggregate reduces one ticker's Silver rows to a domain.MetricSummary. A
// ticker without rows still gets a summary: TradingDays and TotalVolume are 0
// and every price metric is null.
package dataprocessing
