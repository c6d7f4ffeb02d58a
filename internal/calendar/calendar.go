// Package calendar builds the month grid and the per-day bill status summary.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pathakanu/billcal/internal/model"
	"github.com/pathakanu/billcal/internal/session"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidMonth is returned for a month outside 1..12.
	ErrInvalidMonth = errors.New("month must be between 1 and 12")
	// ErrInvalidYear is returned for a year that YYYY-MM-DD cannot hold.
	ErrInvalidYear = errors.New("year must be between 1 and 9999")
)

// Day summarises the bills on one calendar date.
type Day struct {
	Date                  string          `json:"date"`
	Day                   int             `json:"day"`
	Bills                 []model.Bill    `json:"bills"`
	AllPaid               bool            `json:"all_paid"`
	HasPaymentArrangement bool            `json:"has_payment_arrangement"`
	ItemCount             int             `json:"item_count"`
	TotalAmount           decimal.Decimal `json:"total_amount"`
	TotalBills            decimal.Decimal `json:"total_bills"`
	TotalIncome           decimal.Decimal `json:"total_income"`
}

// ShowPaymentArrangement reports whether the PA marker is displayed; the
// all-paid badge wins when both apply.
func (d Day) ShowPaymentArrangement() bool {
	return d.HasPaymentArrangement && !d.AllPaid
}

// Grid is one month of day cells. Cells starts with Leading nil placeholders
// so that day 1 falls under its weekday column (0 = Sunday).
type Grid struct {
	Year    int        `json:"year"`
	Month   time.Month `json:"month"`
	Leading int        `json:"leading"`
	Cells   []*Day     `json:"cells"`
	Range   MonthRange `json:"range"`
}

// MonthRange holds the inclusive first and last day of a month as YYYY-MM-DD.
type MonthRange struct {
	First string `json:"first"`
	Last  string `json:"last"`
}

// Month returns the inclusive date range of year/month.
func Month(year int, month time.Month) (MonthRange, error) {
	if month < time.January || month > time.December {
		return MonthRange{}, ErrInvalidMonth
	}
	if year < 1 || year > 9999 {
		return MonthRange{}, ErrInvalidYear
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return MonthRange{
		First: first.Format(session.DayLayout),
		Last:  last.Format(session.DayLayout),
	}, nil
}

// Prev returns the month before year/month.
func Prev(year int, month time.Month) (int, time.Month) {
	t := time.Date(year, month-1, 1, 0, 0, 0, 0, time.UTC)
	return t.Year(), t.Month()
}

// Next returns the month after year/month.
func Next(year int, month time.Month) (int, time.Month) {
	t := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC)
	return t.Year(), t.Month()
}

// Summarize classifies the bills of one day.
func Summarize(date string, bills []model.Bill) Day {
	day := Day{
		Date:        date,
		Bills:       bills,
		ItemCount:   len(bills),
		TotalAmount: decimal.Zero,
		TotalBills:  decimal.Zero,
		TotalIncome: decimal.Zero,
	}
	if day.Bills == nil {
		day.Bills = []model.Bill{}
	}
	if t, err := time.Parse(session.DayLayout, date); err == nil {
		day.Day = t.Day()
	}

	allPaid := len(bills) > 0
	for _, b := range bills {
		if b.Status != model.StatusPaid {
			allPaid = false
		}
		if b.Status == model.StatusPaymentArrangement {
			day.HasPaymentArrangement = true
		}
		amount := b.AmountOrZero()
		day.TotalAmount = day.TotalAmount.Add(amount)
		switch b.Type {
		case model.BillTypeBill:
			day.TotalBills = day.TotalBills.Add(amount)
		case model.BillTypeIncome:
			day.TotalIncome = day.TotalIncome.Add(amount)
		}
	}
	day.AllPaid = allPaid
	return day
}

// BuildGrid lays out year/month and attaches each bill to its date. Bills
// dated outside the month are ignored.
func BuildGrid(year int, month time.Month, bills []model.Bill) (Grid, error) {
	rng, err := Month(year, month)
	if err != nil {
		return Grid{}, err
	}

	byDate := make(map[string][]model.Bill)
	for _, b := range bills {
		byDate[b.Date] = append(byDate[b.Date], b)
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	daysInMonth := first.AddDate(0, 1, -1).Day()
	leading := int(first.Weekday())

	grid := Grid{
		Year:    year,
		Month:   month,
		Leading: leading,
		Range:   rng,
		Cells:   make([]*Day, leading, leading+daysInMonth),
	}
	for d := 1; d <= daysInMonth; d++ {
		date := first.AddDate(0, 0, d-1).Format(session.DayLayout)
		day := Summarize(date, byDate[date])
		grid.Cells = append(grid.Cells, &day)
	}
	return grid, nil
}

// Days returns the non-blank cells of g.
func (g Grid) Days() []*Day {
	return g.Cells[g.Leading:]
}

// BillRanger reads the bills of a user within an inclusive date range.
type BillRanger interface {
	Range(ctx context.Context, userID, from, to string) ([]model.Bill, error)
}

// Service loads month grids from the record store. Every call re-reads the
// whole month.
type Service struct {
	bills BillRanger
}

// NewService returns a Service reading from bills.
func NewService(bills BillRanger) *Service {
	return &Service{bills: bills}
}

// Load fetches the bills of year/month for the session user and builds the grid.
func (s *Service) Load(ctx context.Context, sess session.Session, year int, month time.Month) (Grid, error) {
	rng, err := Month(year, month)
	if err != nil {
		return Grid{}, err
	}
	bills, err := s.bills.Range(ctx, sess.UserID, rng.First, rng.Last)
	if err != nil {
		return Grid{}, fmt.Errorf("load month %s: %w", rng.First[:7], err)
	}
	return BuildGrid(year, month, bills)
}
