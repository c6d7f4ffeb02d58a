package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// BillType classifies a calendar item.
type BillType string

const (
	BillTypeBill     BillType = "bill"
	BillTypeIncome   BillType = "income"
	BillTypeReminder BillType = "reminder"
)

// Valid reports whether t is a known bill type.
func (t BillType) Valid() bool {
	switch t {
	case BillTypeBill, BillTypeIncome, BillTypeReminder:
		return true
	}
	return false
}

// BillStatus is the payment state of a bill.
type BillStatus string

const (
	StatusUnpaid             BillStatus = "unpaid"
	StatusPaid               BillStatus = "paid"
	StatusPaymentArrangement BillStatus = "payment_arrangement"
)

// Valid reports whether s is a known bill status.
func (s BillStatus) Valid() bool {
	switch s {
	case StatusUnpaid, StatusPaid, StatusPaymentArrangement:
		return true
	}
	return false
}

var (
	// ErrInvalidBillType is returned for a type outside bill, income and reminder.
	ErrInvalidBillType = errors.New("invalid bill type")
	// ErrInvalidBillStatus is returned for a status outside unpaid, paid and payment_arrangement.
	ErrInvalidBillStatus = errors.New("invalid bill status")
)

// Bill is a dated bill, income entry or reminder owned by one user.
// Date and PADate are calendar days formatted as YYYY-MM-DD.
type Bill struct {
	ID          string              `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID      string              `gorm:"index;not null;type:varchar(64)" json:"user_id"`
	Date        string              `gorm:"index;not null;type:varchar(10)" json:"date"`
	Description string              `gorm:"type:text;not null" json:"description"`
	Amount      decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"amount"`
	Type        BillType            `gorm:"type:varchar(16);not null;default:bill" json:"type"`
	Status      BillStatus          `gorm:"type:varchar(32);not null;default:unpaid" json:"status"`
	Note        *string             `gorm:"type:text" json:"note"`
	PADate      *string             `gorm:"column:pa_date;type:varchar(10)" json:"pa_date"`
	CreatedAt   time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

// AmountOrZero returns the bill amount, treating an unknown amount as zero.
func (b Bill) AmountOrZero() decimal.Decimal {
	if !b.Amount.Valid {
		return decimal.Zero
	}
	return b.Amount.Decimal
}
