package commission

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind identifies what is being priced. The calculator itself never looks at
// it; only the Schedule does.
type Kind string

const (
	KindOrder       Kind = "order"
	KindAppointment Kind = "appointment"
	KindLabBooking  Kind = "lab_booking"
	KindDelivery    Kind = "delivery"
)

// Tier applies Rate to any gross amount at or above MinGross.
type Tier struct {
	MinGross decimal.Decimal
	Rate     decimal.Decimal
}

// Schedule resolves the rate a caller hands to ComputeSplit.
//
// An explicit per-kind override wins. Otherwise the highest tier whose
// threshold the gross amount meets applies, and Default covers the rest.
type Schedule struct {
	Default   decimal.Decimal
	Overrides map[Kind]decimal.Decimal
	Tiers     []Tier
}

// NewSchedule returns a flat schedule at rate.
func NewSchedule(rate decimal.Decimal) Schedule {
	return Schedule{Default: rate}
}

// RateFor picks the rate for a transaction of the given kind and size.
func (s Schedule) RateFor(kind Kind, gross decimal.Decimal) decimal.Decimal {
	if rate, ok := s.Overrides[kind]; ok {
		return rate
	}
	rate := s.Default
	best := decimal.NewFromInt(-1)
	for _, tier := range s.Tiers {
		if gross.GreaterThanOrEqual(tier.MinGross) && tier.MinGross.GreaterThan(best) {
			best = tier.MinGross
			rate = tier.Rate
		}
	}
	return rate
}

// Split resolves the rate and prices gross in one step.
func (s Schedule) Split(kind Kind, gross decimal.Decimal) (Split, error) {
	return ComputeSplit(gross, s.RateFor(kind, gross))
}

// Validate checks every configured rate.
func (s Schedule) Validate() error {
	if err := ValidateRate(s.Default); err != nil {
		return fmt.Errorf("default rate: %w", err)
	}
	for kind, rate := range s.Overrides {
		if err := ValidateRate(rate); err != nil {
			return fmt.Errorf("%s rate: %w", kind, err)
		}
	}
	for _, tier := range s.Tiers {
		if err := ValidateRate(tier.Rate); err != nil {
			return fmt.Errorf("tier %s: %w", tier.MinGross, err)
		}
	}
	return nil
}

// ParseTiers reads "threshold:rate" pairs separated by commas, for example
// "10000:0.04,50000:0.03". An empty string yields no tiers.
func ParseTiers(raw string) ([]Tier, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var tiers []Tier
	for _, part := range strings.Split(raw, ",") {
		threshold, rate, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return nil, fmt.Errorf("invalid commission tier %q", part)
		}
		minGross, err := decimal.NewFromString(strings.TrimSpace(threshold))
		if err != nil {
			return nil, fmt.Errorf("invalid commission tier threshold %q: %w", threshold, err)
		}
		r, err := decimal.NewFromString(strings.TrimSpace(rate))
		if err != nil {
			return nil, fmt.Errorf("invalid commission tier rate %q: %w", rate, err)
		}
		tiers = append(tiers, Tier{MinGross: minGross, Rate: r})
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].MinGross.LessThan(tiers[j].MinGross) })
	return tiers, nil
}
