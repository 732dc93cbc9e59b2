package sheets

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"monthbook/internal/core"
)

func TestRows(t *testing.T) {
	m := core.Month{Money: decimal.RequireFromString("800")}
	created := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)
	notes := []core.Note{
		{Title: "Groceries", Money: decimal.RequireFromString("12.5"), CreatedAt: created},
		{Title: "Bus", Money: decimal.RequireFromString("3"), CreatedAt: created},
	}

	rows := Rows(core.Summarize(m, notes))

	if len(rows) != 7 {
		t.Fatalf("expected 7 rows, got %d: %v", len(rows), rows)
	}
	if rows[0][0] != "Title" {
		t.Errorf("expected header first, got %v", rows[0])
	}
	if rows[1][0] != "Groceries" || rows[1][1] != "12.50" || rows[1][2] != "2024-01-05" {
		t.Errorf("unexpected note row %v", rows[1])
	}
	if len(rows[3]) != 0 {
		t.Errorf("expected blank separator, got %v", rows[3])
	}
	if rows[5][1] != "15.50" || rows[6][1] != "784.50" {
		t.Errorf("unexpected totals spent=%v remaining=%v", rows[5], rows[6])
	}
}

func TestRowsEmptyMonth(t *testing.T) {
	rows := Rows(core.Summarize(core.Month{Money: decimal.Zero}, nil))
	if len(rows) != 5 || rows[3][1] != "0.00" {
		t.Fatalf("unexpected rows for empty month: %v", rows)
	}
}
