package costing

import "github.com/shopspring/decimal"

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Percent is a rate held as a fraction (0.18 means 18%).
type Percent struct {
	fraction decimal.Decimal
}

// FromFraction builds a Percent from a fraction such as 0.18.
func FromFraction(f decimal.Decimal) Percent {
	return Percent{fraction: f}
}

// FromPercent builds a Percent from a whole percent such as 18.
func FromPercent(p decimal.Decimal) Percent {
	return Percent{fraction: p.Div(hundred)}
}

// NormalizePercent accepts either form: values above 1 are whole percents,
// anything else is already a fraction. 0.5 therefore always means 50%, never 0.5%.
func NormalizePercent(p decimal.Decimal) Percent {
	if p.GreaterThan(one) {
		return FromPercent(p)
	}
	return FromFraction(p)
}

// Fraction returns the rate as a fraction.
func (p Percent) Fraction() decimal.Decimal {
	return p.fraction
}

// Of returns the share of amount the rate represents.
func (p Percent) Of(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(p.fraction)
}

// Markup returns amount * (1 + rate).
func (p Percent) Markup(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(one.Add(p.fraction))
}

func (p Percent) String() string {
	return p.fraction.Mul(hundred).String() + "%"
}
