package sheets

import (
	"context"

	"monthbook/internal/core"
)

// MonthExporter mirrors months into an external spreadsheet, one sheet per
// month titled with the month's period.
type MonthExporter interface {
	// ExportMonth rewrites the month's sheet and returns a reference to it.
	ExportMonth(ctx context.Context, s core.MonthSummary) (ref string, err error)
	// RemoveMonth deletes the sheet for period. A missing sheet is not an error.
	RemoveMonth(ctx context.Context, period string) error
}
