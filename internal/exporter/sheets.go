package exporter

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"marketpulse/pkg/contracts/domain"
)

// SheetsStore writes each table to a tab of one Google spreadsheet
type SheetsStore struct {
	service       *sheets.Service
	spreadsheetID string
	logger        *slog.Logger
}

// NewSheetsService creates a Sheets client. An empty credentials file falls
// back to application default credentials. endpoint overrides the API base
// URL and is only used against local fakes.
func NewSheetsService(ctx context.Context, credentialsFile, endpoint string) (*sheets.Service, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	opts = append(opts, option.WithScopes(sheets.SpreadsheetsScope))

	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return service, nil
}

// NewSheetsStore creates a store for one spreadsheet
func NewSheetsStore(service *sheets.Service, spreadsheetID string, logger *slog.Logger) *SheetsStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SheetsStore{service: service, spreadsheetID: spreadsheetID, logger: logger}
}

// Name implements TableStore
func (s *SheetsStore) Name() string { return "sheets" }

// ReplaceTable creates the tab when missing, then resizes the grid to the
// table and overwrites every cell in a single batchUpdate. Sheets applies a
// batch atomically.
func (s *SheetsStore) ReplaceTable(ctx context.Context, table domain.Table) error {
	sheetID, err := s.ensureSheet(ctx, table.Name)
	if err != nil {
		return err
	}

	rows := make([]*sheets.RowData, 0, len(table.Rows)+1)
	rows = append(rows, rowData(stringsToCells(table.Header())))
	for _, cells := range table.Rows {
		rows = append(rows, rowData(cells))
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{
				UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
					Properties: &sheets.SheetProperties{
						SheetId:         sheetID,
						ForceSendFields: []string{"SheetId"},
						GridProperties: &sheets.GridProperties{
							RowCount:    int64(len(rows)),
							ColumnCount: int64(len(table.Columns)),
						},
					},
					Fields: "gridProperties(rowCount,columnCount)",
				},
			},
			{
				UpdateCells: &sheets.UpdateCellsRequest{
					Start:  &sheets.GridCoordinate{SheetId: sheetID, ForceSendFields: []string{"SheetId"}},
					Rows:   rows,
					Fields: "userEnteredValue",
				},
			},
		},
	}

	if _, err := s.service.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to overwrite sheet %s: %w", table.Name, err)
	}

	s.logger.DebugContext(ctx, "sheet replaced",
		slog.String("spreadsheet_id", s.spreadsheetID),
		slog.String("sheet", table.Name),
		slog.Int("rows", len(table.Rows)))
	return nil
}

// ensureSheet returns the id of the tab titled title, adding it if needed
func (s *SheetsStore) ensureSheet(ctx context.Context, title string) (int64, error) {
	doc, err := s.service.Spreadsheets.Get(s.spreadsheetID).
		Fields("sheets.properties(sheetId,title)").
		Context(ctx).
		Do()
	if err != nil {
		return 0, fmt.Errorf("failed to read spreadsheet %s: %w", s.spreadsheetID, err)
	}
	for _, sh := range doc.Sheets {
		if sh.Properties != nil && sh.Properties.Title == title {
			return sh.Properties.SheetId, nil
		}
	}

	resp, err := s.service.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: title},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("failed to add sheet %s: %w", title, err)
	}
	if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil || resp.Replies[0].AddSheet.Properties == nil {
		return 0, fmt.Errorf("add sheet %s: empty reply", title)
	}

	s.logger.InfoContext(ctx, "sheet created", slog.String("sheet", title))
	return resp.Replies[0].AddSheet.Properties.SheetId, nil
}

// rowData converts cells to Sheets values. Null becomes a cell without a
// value so the overwrite clears it.
func rowData(cells []any) *sheets.RowData {
	values := make([]*sheets.CellData, len(cells))
	for i, cell := range cells {
		cd := &sheets.CellData{}
		switch v := cell.(type) {
		case string:
			cd.UserEnteredValue = &sheets.ExtendedValue{StringValue: &v}
		case float64:
			cd.UserEnteredValue = &sheets.ExtendedValue{NumberValue: &v}
		case int64:
			f := float64(v)
			cd.UserEnteredValue = &sheets.ExtendedValue{NumberValue: &f}
		}
		values[i] = cd
	}
	return &sheets.RowData{Values: values}
}
