package notify

import (
	"bytes"
	"context"
	"log"
	"testing"
	"time"

	"github.com/pathakanu/billcal/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 10, 16, 9, 30, 0, 0, time.UTC)

func bill(id, date string, status model.BillStatus, amount string) model.Bill {
	b := model.Bill{ID: id, UserID: "user", Date: date, Description: "Rent", Type: model.BillTypeBill, Status: status}
	if amount != "" {
		b.Amount = decimal.NewNullDecimal(decimal.RequireFromString(amount))
	}
	return b
}

func TestDueUpcomingUnpaid(t *testing.T) {
	t.Parallel()

	got := Due([]model.Bill{bill("b1", "2025-10-19", model.StatusUnpaid, "1200")}, now)
	require.Len(t, got, 1)
	assert.Equal(t, Notification{
		Kind:               KindUpcoming,
		Title:              "Upcoming Bill",
		Body:               "Rent due in 3 days - $1200.00",
		Tag:                "bill-b1",
		RequireInteraction: true,
	}, got[0])
}

func TestDueSkipsPaid(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Due([]model.Bill{bill("b1", "2025-10-19", model.StatusPaid, "1200")}, now))
}

func TestDueOffsets(t *testing.T) {
	t.Parallel()

	cases := []struct {
		date  string
		title string
	}{
		{"2025-10-16", "Bill Due Today!"},
		{"2025-10-17", "Bill Due Tomorrow"},
		{"2025-10-18", ""},
		{"2025-10-19", "Upcoming Bill"},
		{"2025-10-20", ""},
		{"2025-10-23", ""},
		{"2025-10-15", ""},
	}
	for _, tc := range cases {
		got := Due([]model.Bill{bill("x", tc.date, model.StatusUnpaid, "10")}, now)
		if tc.title == "" {
			assert.Empty(t, got, tc.date)
			continue
		}
		require.Len(t, got, 1, tc.date)
		assert.Equal(t, tc.title, got[0].Title)
	}
}

func TestDueBodies(t *testing.T) {
	t.Parallel()

	got := Due([]model.Bill{
		bill("a", "2025-10-16", model.StatusUnpaid, "45.5"),
		bill("b", "2025-10-17", model.StatusPaymentArrangement, ""),
		bill("c", "2025-10-19", model.StatusUnpaid, ""),
	}, now)
	require.Len(t, got, 3)
	assert.Equal(t, "Rent - $45.50", got[0].Body)
	assert.Equal(t, "Rent - Amount TBD", got[1].Body)
	assert.Equal(t, "Rent due in 3 days - Amount TBD", got[2].Body)
}

func TestDueUsesCalendarDayInLocation(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC-5", -5*3600)
	late := time.Date(2025, 10, 16, 23, 30, 0, 0, loc)
	got := Due([]model.Bill{bill("a", "2025-10-16", model.StatusUnpaid, "1")}, late)
	require.Len(t, got, 1)
	assert.Equal(t, KindToday, got[0].Kind)
}

func TestLogNotifier(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	n := LogNotifier{Logger: log.New(&buf, "", 0)}
	require.NoError(t, n.Notify(context.Background(), model.Subscription{UserID: "user"}, Notification{Title: "Upcoming Bill", Body: "Rent", Tag: "bill-1"}))
	assert.Contains(t, buf.String(), "user [bill-1] Upcoming Bill: Rent")
}
