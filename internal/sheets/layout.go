package sheets

import (
	"monthbook/internal/core"
)

// Header is the first row of every exported month.
var Header = []string{"Title", "Money", "Created"}

// Rows lays out a month summary: header, one row per note, a blank line and
// the budget totals.
func Rows(s core.MonthSummary) [][]string {
	rows := make([][]string, 0, len(s.Notes)+5)
	rows = append(rows, Header)
	for _, n := range s.Notes {
		rows = append(rows, []string{n.Title, core.FormatMoney(n.Money), n.CreatedAt.Format(core.DateLayout)})
	}
	rows = append(rows,
		[]string{},
		[]string{"Budget", core.FormatMoney(s.Month.Money)},
		[]string{"Spent", core.FormatMoney(s.Spent)},
		[]string{"Remaining", core.FormatMoney(s.Remaining)},
	)
	return rows
}
