package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"monthbook/internal/core"
	ports "monthbook/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
}

// Ensure interface conformance
var _ ports.MonthExporter = (*Client)(nil)

// Config selects the spreadsheet and the service account used to reach it.
type Config struct {
	SpreadsheetID      string
	ServiceAccountJSON string
	ServiceAccountFile string
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	credentialsJSON, err := loadCredentials(ctx, cfg)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created successfully", "spreadsheet_id", spreadsheetID)
	return &Client{svc: svc, spreadsheetID: spreadsheetID}, nil
}

// loadCredentials prefers inline JSON, then the file, then GOOGLE_APPLICATION_CREDENTIALS.
func loadCredentials(ctx context.Context, cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.ServiceAccountJSON)
	file := strings.TrimSpace(cfg.ServiceAccountFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		return []byte(inline), nil
	case file != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", file)
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// ExportMonth creates the month's sheet when needed and overwrites its contents.
func (c *Client) ExportMonth(ctx context.Context, s core.MonthSummary) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	title := s.Month.Label()

	if _, found, err := c.findSheet(ctx, title); err != nil {
		return "", err
	} else if !found {
		if err := c.addSheet(ctx, title); err != nil {
			return "", err
		}
	}

	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, a1(title, "A:C"), &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("clear sheet %s: %w", title, err)
	}

	rows := ports.Rows(s)
	vr := &gsheet.ValueRange{Values: toValues(rows)}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, a1(title, "A1"), vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("write sheet %s: %w", title, err)
	}

	return a1(title, fmt.Sprintf("A1:C%d", len(rows))), nil
}

// RemoveMonth deletes the sheet titled period, if present.
func (c *Client) RemoveMonth(ctx context.Context, period string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	sheetID, found, err := c.findSheet(ctx, period)
	if err != nil || !found {
		return err
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteSheet: &gsheet.DeleteSheetRequest{SheetId: sheetID},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete sheet %s: %w", period, err)
	}
	slog.InfoContext(ctx, "Deleted month sheet", "title", period)
	return nil
}

func (c *Client) findSheet(ctx context.Context, title string) (int64, bool, error) {
	resp, err := c.svc.Spreadsheets.Get(c.spreadsheetID).
		Fields("sheets.properties(sheetId,title)").Context(ctx).Do()
	if err != nil {
		return 0, false, fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, sh := range resp.Sheets {
		if sh.Properties != nil && sh.Properties.Title == title {
			return sh.Properties.SheetId, true, nil
		}
	}
	return 0, false, nil
}

func (c *Client) addSheet(ctx context.Context, title string) error {
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{Title: title},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", title, err)
	}
	slog.InfoContext(ctx, "Created month sheet", "title", title)
	return nil
}

// a1 builds a range in A1 notation, quoting the sheet title.
func a1(title, cells string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'!" + cells
}

func toValues(rows [][]string) [][]interface{} {
	out := make([][]interface{}, len(rows))
	for i, row := range rows {
		vals := make([]interface{}, len(row))
		for j, v := range row {
			vals[j] = v
		}
		out[i] = vals
	}
	return out
}
