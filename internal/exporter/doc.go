// Package exporter loads the Silver and Gold tables into destination stores.
//
// Every store implements TableStore. ReplaceTable swaps the full contents of
// one logical table so readers see either the previous or the new rows, never
// a mix:
//
//   - SheetsStore resizes and rewrites a Google Sheets tab in one batchUpdate
//   - WorkbookStore rebuilds an xlsx sheet and renames the file into place
//   - SQLStore drops, recreates and fills the table inside one transaction
//   - RedisStore fills a staging list and renames it in one MULTI/EXEC
//   - CSVStore and ParquetStore write a temp file and rename it
//
// Loader writes the tables to each configured store in order and stops at
// the first failure.
package exporter
