// Package commission splits a transaction's gross amount into the platform
// commission and the provider's net payout.
package commission

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount is returned for a gross amount that is zero or negative.
	ErrInvalidAmount = errors.New("gross amount must be greater than zero")

	// ErrInvalidRate is returned for a rate outside [0, 1].
	ErrInvalidRate = errors.New("commission rate must be between 0 and 1")
)

// DefaultRate is the platform's flat 5% cut.
var DefaultRate = decimal.RequireFromString("0.05")

var (
	zero = decimal.Zero
	one  = decimal.NewFromInt(1)
)

// Split is the priced result of a transaction. Commission + Net == Gross.
type Split struct {
	Gross      decimal.Decimal `json:"gross_amount"`
	Rate       decimal.Decimal `json:"rate"`
	Commission decimal.Decimal `json:"commission_amount"`
	Net        decimal.Decimal `json:"net_amount"`
}

// ComputeSplit rounds gross*rate to cents and derives the net amount by
// subtraction, so the two parts always add back to gross exactly.
func ComputeSplit(gross, rate decimal.Decimal) (Split, error) {
	if gross.LessThanOrEqual(zero) {
		return Split{}, fmt.Errorf("%w: got %s", ErrInvalidAmount, gross)
	}
	if err := ValidateRate(rate); err != nil {
		return Split{}, err
	}

	commission := gross.Mul(rate).Round(2)
	return Split{
		Gross:      gross,
		Rate:       rate,
		Commission: commission,
		Net:        gross.Sub(commission),
	}, nil
}

// ValidateRate reports ErrInvalidRate when rate is outside [0, 1].
func ValidateRate(rate decimal.Decimal) error {
	if rate.LessThan(zero) || rate.GreaterThan(one) {
		return fmt.Errorf("%w: got %s", ErrInvalidRate, rate)
	}
	return nil
}
