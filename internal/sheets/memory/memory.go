// Package memory is an in-process MonthExporter used when no spreadsheet is
// configured and in tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"monthbook/internal/core"
	"monthbook/internal/sheets"
)

type Exporter struct {
	mu      sync.Mutex
	sheets  map[string][][]string
	exports int
}

var _ sheets.MonthExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{sheets: make(map[string][][]string)}
}

func (e *Exporter) ExportMonth(_ context.Context, s core.MonthSummary) (string, error) {
	rows := sheets.Rows(s)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sheets[s.Month.Label()] = rows
	e.exports++
	return fmt.Sprintf("mem:%s:%d", s.Month.Label(), len(rows)), nil
}

func (e *Exporter) RemoveMonth(_ context.Context, period string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sheets, period)
	return nil
}

// Sheet returns a copy of the rows exported for period.
func (e *Exporter) Sheet(period string) ([][]string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rows, ok := e.sheets[period]
	if !ok {
		return nil, false
	}
	return append([][]string(nil), rows...), true
}

// Titles lists the exported sheet titles in order.
func (e *Exporter) Titles() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.sheets))
	for title := range e.sheets {
		out = append(out, title)
	}
	sort.Strings(out)
	return out
}

// Exports counts ExportMonth calls.
func (e *Exporter) Exports() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exports
}
