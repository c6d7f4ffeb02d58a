// Package notify turns unpaid bills into due-date notifications and delivers
// them on a daily schedule.
package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/pathakanu/billcal/internal/model"
	"github.com/pathakanu/billcal/internal/session"
)

// Window is how many days ahead of today bills are fetched for a check.
const Window = 7

// Kind names the due-date offset a notification was fired for.
type Kind string

const (
	KindToday    Kind = "today"
	KindTomorrow Kind = "tomorrow"
	KindUpcoming Kind = "upcoming"
)

// Notification is one alert about a bill.
type Notification struct {
	Kind               Kind   `json:"kind"`
	Title              string `json:"title"`
	Body               string `json:"body"`
	Tag                string `json:"tag"`
	RequireInteraction bool   `json:"require_interaction"`
}

type offset struct {
	days  int
	kind  Kind
	title string
	body  string
}

// Only these offsets fire; a bill two days out stays silent.
var offsets = []offset{
	{days: 0, kind: KindToday, title: "Bill Due Today!", body: "%s - %s"},
	{days: 1, kind: KindTomorrow, title: "Bill Due Tomorrow", body: "%s - %s"},
	{days: 3, kind: KindUpcoming, title: "Upcoming Bill", body: "%s due in 3 days - %s"},
}

// Due returns the notifications for bills relative to today. Paid bills and
// bills at any other offset produce nothing, and each bill yields at most one
// notification.
func Due(bills []model.Bill, today time.Time) []Notification {
	today = session.Midnight(today)

	var out []Notification
	for _, b := range bills {
		if b.Status == model.StatusPaid {
			continue
		}
		for _, o := range offsets {
			if today.AddDate(0, 0, o.days).Format(session.DayLayout) != b.Date {
				continue
			}
			out = append(out, Notification{
				Kind:               o.kind,
				Title:              o.title,
				Body:               fmt.Sprintf(o.body, b.Description, formatAmount(b)),
				Tag:                Tag(b),
				RequireInteraction: true,
			})
			break
		}
	}
	return out
}

// Tag returns the dedupe tag of a bill's notification.
func Tag(b model.Bill) string {
	return "bill-" + b.ID
}

func formatAmount(b model.Bill) string {
	if !b.Amount.Valid {
		return "Amount TBD"
	}
	return "$" + b.Amount.Decimal.StringFixed(2)
}

// Notifier delivers a notification to a subscribed user.
type Notifier interface {
	Notify(ctx context.Context, sub model.Subscription, n Notification) error
}

// LogNotifier writes notifications to a logger. It stands in for a delivery
// channel when none is configured.
type LogNotifier struct {
	Logger *log.Logger
}

// Notify logs n.
func (l LogNotifier) Notify(_ context.Context, sub model.Subscription, n Notification) error {
	l.Logger.Printf("notify: user %s [%s] %s: %s", sub.UserID, n.Tag, n.Title, n.Body)
	return nil
}
