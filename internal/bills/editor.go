// Package bills implements the day detail editor: adding, updating and
// removing the bills of one calendar date. Every successful write is followed
// by a full re-read of the affected day.
package bills

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pathakanu/billcal/internal/calendar"
	"github.com/pathakanu/billcal/internal/model"
	"github.com/pathakanu/billcal/internal/session"
	"github.com/shopspring/decimal"
)

var (
	// ErrDescriptionRequired blocks adding an item without a description.
	ErrDescriptionRequired = errors.New("description is required")
	// ErrPADateRequired is returned when payment_arrangement is set without a date.
	ErrPADateRequired = errors.New("payment arrangement date is required")
)

// Store is the subset of the record store the editor uses.
type Store interface {
	Create(ctx context.Context, bill *model.Bill) error
	Get(ctx context.Context, userID, id string) (model.Bill, error)
	OnDate(ctx context.Context, userID, date string) ([]model.Bill, error)
	Update(ctx context.Context, userID, id string, fields map[string]any) error
	Delete(ctx context.Context, userID, id string) error
}

// NewItem describes a bill to add to a day.
type NewItem struct {
	Description string              `json:"description"`
	Amount      decimal.NullDecimal `json:"amount"`
	Type        model.BillType      `json:"type"`
	Note        string              `json:"note"`
}

// Editor edits the bills of single dates.
type Editor struct {
	store Store
}

// NewEditor returns an Editor writing to store.
func NewEditor(store Store) *Editor {
	return &Editor{store: store}
}

// Day re-reads the bills of date and summarises them.
func (e *Editor) Day(ctx context.Context, sess session.Session, date string) (calendar.Day, error) {
	t, err := session.ParseDay(date, sess.Location)
	if err != nil {
		return calendar.Day{}, err
	}
	date = t.Format(session.DayLayout)
	bills, err := e.store.OnDate(ctx, sess.UserID, date)
	if err != nil {
		return calendar.Day{}, fmt.Errorf("reload %s: %w", date, err)
	}
	return calendar.Summarize(date, bills), nil
}

// AddItem creates an unpaid bill on date.
func (e *Editor) AddItem(ctx context.Context, sess session.Session, date string, item NewItem) (calendar.Day, error) {
	description := strings.TrimSpace(item.Description)
	if description == "" {
		return calendar.Day{}, ErrDescriptionRequired
	}
	t, err := session.ParseDay(date, sess.Location)
	if err != nil {
		return calendar.Day{}, err
	}
	date = t.Format(session.DayLayout)
	if item.Type == "" {
		item.Type = model.BillTypeBill
	}
	if !item.Type.Valid() {
		return calendar.Day{}, model.ErrInvalidBillType
	}

	bill := &model.Bill{
		UserID:      sess.UserID,
		Date:        date,
		Description: description,
		Amount:      item.Amount,
		Type:        item.Type,
		Status:      model.StatusUnpaid,
	}
	if note := strings.TrimSpace(item.Note); note != "" {
		bill.Note = &note
	}
	if err := e.store.Create(ctx, bill); err != nil {
		return calendar.Day{}, fmt.Errorf("add item: %w", err)
	}
	return e.Day(ctx, sess, date)
}

// SetStatus sets the status of a bill. payment_arrangement needs paDate in
// the same call; paid and unpaid leave any recorded PA date untouched.
func (e *Editor) SetStatus(ctx context.Context, sess session.Session, billID string, status model.BillStatus, paDate string) (calendar.Day, error) {
	if !status.Valid() {
		return calendar.Day{}, model.ErrInvalidBillStatus
	}
	if status == model.StatusPaymentArrangement {
		return e.SetPaymentArrangementDate(ctx, sess, billID, paDate)
	}
	return e.update(ctx, sess, billID, map[string]any{"status": status})
}

// TogglePaid flips a bill between paid and unpaid; any non-paid status becomes paid.
func (e *Editor) TogglePaid(ctx context.Context, sess session.Session, billID string) (calendar.Day, error) {
	bill, err := e.store.Get(ctx, sess.UserID, billID)
	if err != nil {
		return calendar.Day{}, fmt.Errorf("toggle paid: %w", err)
	}
	next := model.StatusPaid
	if bill.Status == model.StatusPaid {
		next = model.StatusUnpaid
	}
	return e.update(ctx, sess, billID, map[string]any{"status": next})
}

// SetPaymentArrangementDate records a rescheduled date and forces the
// payment_arrangement status regardless of the prior one.
func (e *Editor) SetPaymentArrangementDate(ctx context.Context, sess session.Session, billID, paDate string) (calendar.Day, error) {
	paDate = strings.TrimSpace(paDate)
	if paDate == "" {
		return calendar.Day{}, ErrPADateRequired
	}
	t, err := session.ParseDay(paDate, sess.Location)
	if err != nil {
		return calendar.Day{}, err
	}
	return e.update(ctx, sess, billID, map[string]any{
		"status":  model.StatusPaymentArrangement,
		"pa_date": t.Format(session.DayLayout),
	})
}

// DeleteItem removes a bill permanently and returns its refreshed day.
func (e *Editor) DeleteItem(ctx context.Context, sess session.Session, billID string) (calendar.Day, error) {
	bill, err := e.store.Get(ctx, sess.UserID, billID)
	if err != nil {
		return calendar.Day{}, fmt.Errorf("delete item: %w", err)
	}
	if err := e.store.Delete(ctx, sess.UserID, billID); err != nil {
		return calendar.Day{}, fmt.Errorf("delete item: %w", err)
	}
	return e.Day(ctx, sess, bill.Date)
}

func (e *Editor) update(ctx context.Context, sess session.Session, billID string, fields map[string]any) (calendar.Day, error) {
	if err := e.store.Update(ctx, sess.UserID, billID, fields); err != nil {
		return calendar.Day{}, fmt.Errorf("update bill: %w", err)
	}
	bill, err := e.store.Get(ctx, sess.UserID, billID)
	if err != nil {
		return calendar.Day{}, fmt.Errorf("reload bill: %w", err)
	}
	return e.Day(ctx, sess, bill.Date)
}
