package domain

import (
	"github.com/shopspring/decimal"

	"medeasy/marketplace/internal/commission"
)

// Amounts is the priced part of a transaction. It is written once at creation
// and no update statement touches it afterwards.
type Amounts struct {
	GrossAmount      decimal.Decimal `db:"gross_amount" json:"gross_amount"`
	CommissionAmount decimal.Decimal `db:"commission_amount" json:"commission_amount"`
	NetAmount        decimal.Decimal `db:"net_amount" json:"net_amount"`
}

// AmountsFrom copies a computed split.
func AmountsFrom(s commission.Split) Amounts {
	return Amounts{GrossAmount: s.Gross, CommissionAmount: s.Commission, NetAmount: s.Net}
}
