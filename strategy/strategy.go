// Package strategy holds the pluggable investment policies.
package strategy

import (
	"auto_zonky_go/remote"

	"github.com/shopspring/decimal"
)

const (
	// MinimalInvestmentAllowed is the smallest amount the platform accepts.
	MinimalInvestmentAllowed = 200
	// MinimalInvestmentIncrement is the step all investment amounts must be a multiple of.
	MinimalInvestmentIncrement = 200
)

// Strategy selects and sizes investment candidates.
type Strategy interface {
	// GetMatchingLoans returns the loans worth investing into, best first.
	// Loans already present in existing should not be offered.
	GetMatchingLoans(stats *remote.Statistics, existing []remote.Investment) []remote.Loan

	// RecommendInvestmentAmount sizes the investment into loan. Zero declines the loan.
	RecommendInvestmentAmount(loan remote.Loan, balance decimal.Decimal) decimal.Decimal

	// MinimumInvestment is the floor below which the strategy never recommends.
	MinimumInvestment() decimal.Decimal
}

// Factory builds the strategy for one cycle from that cycle's marketplace snapshot.
type Factory func(marketplace []remote.Loan) Strategy
