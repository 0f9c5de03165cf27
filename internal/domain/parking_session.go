package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/guregu/null.v4"
)

// ReceiptLayout is the time layout receipts are derived from.
const ReceiptLayout = "20060102-150405"

// Vehicle describes the car bound to a parking session.
type Vehicle struct {
	Plate string
	Brand string
	Model string
	Color string
}

// ParkingSession is a single stay of a vehicle in a slot. It is open while
// ExitTime is null and closed, terminally, once check-out sets ExitTime, Fee
// and Discount together.
type ParkingSession struct {
	ID                 string
	CustomerID         string
	CustomerNationalID string
	SlotID             string
	SlotCode           string
	Receipt            string
	Vehicle            Vehicle
	EntryTime          time.Time
	ExitTime           null.Time
	Fee                decimal.NullDecimal
	Discount           decimal.NullDecimal
}

// Open reports whether the session still holds its slot.
func (s *ParkingSession) Open() bool {
	return !s.ExitTime.Valid
}

// Total is the amount due after discount. Zero for open sessions.
func (s *ParkingSession) Total() decimal.Decimal {
	if !s.Fee.Valid {
		return decimal.Zero
	}
	total := s.Fee.Decimal
	if s.Discount.Valid {
		total = total.Sub(s.Discount.Decimal)
	}
	return total
}

// NewReceipt derives the receipt code from the entry time.
func NewReceipt(entry time.Time) string {
	return entry.Format(ReceiptLayout)
}
