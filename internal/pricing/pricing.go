// Package pricing computes parking fees and loyalty discounts. It performs no
// I/O; every amount is a decimal rounded once, at the end, with banker's
// rounding to two places.
package pricing

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNegativeDuration is returned when exit precedes entry.
var ErrNegativeDuration = errors.New("pricing: exit time before entry time")

const scale = 2

// Tariff holds the rate table.
type Tariff struct {
	FirstBlockMinutes int64
	FirstBlockPrice   decimal.Decimal
	BaseMinutes       int64
	BasePrice         decimal.Decimal
	ExtraBlockMinutes int64
	ExtraBlockPrice   decimal.Decimal
	DiscountRate      decimal.Decimal
	DiscountEvery     int64
}

// DefaultTariff is the reference rate table: 5.00 up to 15 minutes, 9.25 up to
// an hour, then 1.75 for every started 15 minutes, with 30% off every 10th
// completed stay.
var DefaultTariff = Tariff{
	FirstBlockMinutes: 15,
	FirstBlockPrice:   decimal.RequireFromString("5.00"),
	BaseMinutes:       60,
	BasePrice:         decimal.RequireFromString("9.25"),
	ExtraBlockMinutes: 15,
	ExtraBlockPrice:   decimal.RequireFromString("1.75"),
	DiscountRate:      decimal.RequireFromString("0.30"),
	DiscountEvery:     10,
}

// Validate checks the tariff is usable.
func (t Tariff) Validate() error {
	if t.FirstBlockMinutes <= 0 || t.BaseMinutes < t.FirstBlockMinutes || t.ExtraBlockMinutes <= 0 {
		return errors.New("pricing: tariff minutes must be positive and increasing")
	}
	if t.FirstBlockPrice.IsNegative() || t.BasePrice.IsNegative() || t.ExtraBlockPrice.IsNegative() {
		return errors.New("pricing: tariff prices must not be negative")
	}
	if t.DiscountRate.IsNegative() || t.DiscountRate.GreaterThan(decimal.NewFromInt(1)) {
		return errors.New("pricing: discount rate must be within [0, 1]")
	}
	if t.DiscountEvery <= 0 {
		return errors.New("pricing: discount interval must be positive")
	}
	return nil
}

// Minutes returns the whole minutes between entry and exit, truncated.
func Minutes(entry, exit time.Time) (int64, error) {
	delta := exit.Sub(entry)
	if delta < 0 {
		return 0, ErrNegativeDuration
	}
	return int64(delta / time.Minute), nil
}

// Fee prices a stay from entry to exit.
func (t Tariff) Fee(entry, exit time.Time) (decimal.Decimal, error) {
	minutes, err := Minutes(entry, exit)
	if err != nil {
		return decimal.Zero, err
	}
	return t.FeeForMinutes(minutes), nil
}

// FeeForMinutes prices a stay of the given whole minutes.
func (t Tariff) FeeForMinutes(minutes int64) decimal.Decimal {
	var total decimal.Decimal
	switch {
	case minutes <= t.FirstBlockMinutes:
		total = t.FirstBlockPrice
	case minutes <= t.BaseMinutes:
		total = t.BasePrice
	default:
		extra := minutes - t.BaseMinutes
		blocks := (extra + t.ExtraBlockMinutes - 1) / t.ExtraBlockMinutes
		total = t.BasePrice.Add(t.ExtraBlockPrice.Mul(decimal.NewFromInt(blocks)))
	}
	return total.RoundBank(scale)
}

// Discount returns the loyalty discount for fee given how many stays the
// customer had already completed before this one.
func (t Tariff) Discount(fee decimal.Decimal, completedSessions int64) decimal.Decimal {
	if completedSessions <= 0 || completedSessions%t.DiscountEvery != 0 {
		return decimal.Zero.RoundBank(scale)
	}
	return fee.Mul(t.DiscountRate).RoundBank(scale)
}

// Fee prices a stay with DefaultTariff.
func Fee(entry, exit time.Time) (decimal.Decimal, error) {
	return DefaultTariff.Fee(entry, exit)
}

// Discount applies DefaultTariff's loyalty rule.
func Discount(fee decimal.Decimal, completedSessions int64) decimal.Decimal {
	return DefaultTariff.Discount(fee, completedSessions)
}
