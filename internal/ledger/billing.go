package ledger

import (
	"github.com/shopspring/decimal"

	"giftcards/internal/model"
)

var hundred = decimal.NewFromInt(100)

// CalculateFee splits amount into the platform fee at rate percent, rounded
// to cents, and the net amount owed to the company.
func CalculateFee(amount, rate decimal.Decimal) (fee, net decimal.Decimal) {
	fee = amount.Mul(rate).Div(hundred).Round(2)
	return fee, amount.Sub(fee)
}

// CommissionRate returns the company's rate, falling back to def.
func CommissionRate(company *model.Company, def decimal.Decimal) decimal.Decimal {
	if company != nil && company.CommissionRate.Valid {
		return company.CommissionRate.Decimal
	}
	return def
}
