// Package financing computes fixed-rate amortization plans for vehicle loans.
package financing

import (
	"errors"
	"math"
)

const (
	// AnnualRate is the fixed APR applied to every plan.
	AnnualRate = 0.10
	// MinDownPaymentPct is the minimum down payment as a fraction of price.
	MinDownPaymentPct = 0.10
)

// AllowedTerms lists the loan terms offered, in months.
var AllowedTerms = []int{36, 48, 60, 72}

var (
	ErrInvalidPrice       = errors.New("financing: price must be positive")
	ErrDownPaymentTooLow  = errors.New("financing: down payment below minimum")
	ErrDownPaymentTooHigh = errors.New("financing: down payment cannot reach full price")
	ErrInvalidTerm        = errors.New("financing: term not offered")
)

// Plan describes one financing option. Amounts are unrounded; rounding
// happens only at presentation time via the Rounded accessors.
type Plan struct {
	TermMonths     int
	FinancedAmount float64
	MonthlyPayment float64
	TotalPaid      float64
	TotalInterest  float64
}

// MonthlyRounded returns the monthly payment rounded to centavos.
func (p Plan) MonthlyRounded() float64 { return roundCents(p.MonthlyPayment) }

// TotalPaidRounded returns the total amount paid rounded to centavos.
func (p Plan) TotalPaidRounded() float64 { return roundCents(p.TotalPaid) }

// TotalInterestRounded returns the total interest rounded to centavos.
func (p Plan) TotalInterestRounded() float64 { return roundCents(p.TotalInterest) }

// TermYears reports the term in whole years (terms are all multiples of 12).
func (p Plan) TermYears() int { return p.TermMonths / 12 }

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

func termAllowed(months int) bool {
	for _, t := range AllowedTerms {
		if t == months {
			return true
		}
	}
	return false
}

// Calculate produces the amortized plan for a price, down payment fraction,
// and term. Identical inputs always yield bit-identical outputs: the formula
// uses only float64 arithmetic with no intermediate rounding.
func Calculate(price, downPaymentPct float64, termMonths int) (Plan, error) {
	if price <= 0 {
		return Plan{}, ErrInvalidPrice
	}
	if downPaymentPct < MinDownPaymentPct {
		return Plan{}, ErrDownPaymentTooLow
	}
	if downPaymentPct >= 1 {
		return Plan{}, ErrDownPaymentTooHigh
	}
	if !termAllowed(termMonths) {
		return Plan{}, ErrInvalidTerm
	}

	principal := price * (1 - downPaymentPct)
	monthlyRate := AnnualRate / 12
	n := float64(termMonths)

	// M = P * r(1+r)^n / ((1+r)^n - 1)
	growth := math.Pow(1+monthlyRate, n)
	monthly := principal * (monthlyRate * growth) / (growth - 1)
	total := monthly * n

	return Plan{
		TermMonths:     termMonths,
		FinancedAmount: principal,
		MonthlyPayment: monthly,
		TotalPaid:      total,
		TotalInterest:  total - principal,
	}, nil
}

// Plans computes the standard 36/48/60 month options for a price and down
// payment, skipping nothing: the inputs were validated by the first call so
// the remaining terms cannot fail.
func Plans(price, downPaymentPct float64) ([]Plan, error) {
	terms := []int{36, 48, 60}
	plans := make([]Plan, 0, len(terms))
	for _, term := range terms {
		plan, err := Calculate(price, downPaymentPct, term)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, nil
}
