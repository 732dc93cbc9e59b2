package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

type (
	// Date is a calendar day in UTC.
	Date struct {
		time.Time
	}

	// Actor identifies the caller of a service operation. The zero value is
	// an unauthenticated actor.
	Actor struct {
		ID string
	}

	User struct {
		ID           string
		Email        string
		PasswordHash string
		// SessionVersion is bumped on sign out; tokens carrying an older
		// version no longer resolve.
		SessionVersion int64
		CreatedAt      time.Time
		UpdatedAt    time.Time
	}

	// Month is a budgeting period owned by a single user.
	Month struct {
		ID        string
		Start     Date
		End       Date
		Money     decimal.Decimal
		OwnerID   string
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	// Note is a spending entry recorded against a Month.
	Note struct {
		ID        string
		Title     string
		Money     decimal.Decimal
		MonthID   string
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	// MonthSummary is a Month together with its notes and derived totals.
	MonthSummary struct {
		Month     Month
		Notes     []Note
		Spent     decimal.Decimal
		Remaining decimal.Decimal
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// Authenticated reports whether the actor carries an identity.
func (a Actor) Authenticated() bool {
	return a.ID != ""
}

// ActorFor returns the actor acting as u.
func ActorFor(u User) Actor {
	return Actor{ID: u.ID}
}

// NewID returns a fresh record identifier.
func NewID() string {
	return uuid.NewString()
}

// Label is the human name of the month, also used as its sheet title.
func (m Month) Label() string {
	return m.Start.String() + ".." + m.End.String()
}

// NotesMoney sums the money of the given notes. An empty slice sums to zero.
func NotesMoney(notes []Note) decimal.Decimal {
	total := decimal.Zero
	for _, n := range notes {
		total = total.Add(n.Money)
	}
	return total
}

// Summarize derives spent and remaining amounts for m.
func Summarize(m Month, notes []Note) MonthSummary {
	spent := NotesMoney(notes)
	return MonthSummary{
		Month:     m,
		Notes:     notes,
		Spent:     spent,
		Remaining: m.Money.Sub(spent),
	}
}
