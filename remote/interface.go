package remote

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"auto_zonky_go/errs"
)

// Rating is the platform's risk class of a loan.
type Rating string

const (
	RatingAAAAA Rating = "AAAAA"
	RatingAAAA  Rating = "AAAA"
	RatingAAA   Rating = "AAA"
	RatingAA    Rating = "AA"
	RatingA     Rating = "A"
	RatingB     Rating = "B"
	RatingC     Rating = "C"
	RatingD     Rating = "D"
)

var allRatings = []Rating{RatingAAAAA, RatingAAAA, RatingAAA, RatingAA, RatingA, RatingB, RatingC, RatingD}

// Ratings returns every rating from the safest to the riskiest.
func Ratings() []Rating {
	out := make([]Rating, len(allRatings))
	copy(out, allRatings)
	return out
}

// ParseRating converts a tag such as "AAA" into a Rating.
func ParseRating(s string) (Rating, error) {
	tag := Rating(strings.ToUpper(strings.TrimSpace(s)))
	for _, r := range allRatings {
		if r == tag {
			return r, nil
		}
	}
	return "", errs.New("parse rating", errs.CodeInvalidFormat, errs.WithMessage(fmt.Sprintf("unknown rating %q", s)))
}

// Loan is a per-cycle snapshot of a fundable loan on the marketplace.
type Loan struct {
	ID                  int             `json:"id"`
	Name                string          `json:"name"`
	Rating              Rating          `json:"rating"`
	TermInMonths        int             `json:"termInMonths"`
	InterestRate        decimal.Decimal `json:"interestRate"`
	Amount              decimal.Decimal `json:"amount"`
	RemainingInvestment decimal.Decimal `json:"remainingInvestment"`
}

// Investment is a confirmed or reconciled commitment of money to a loan.
type Investment struct {
	LoanID int             `json:"loanId"`
	Amount decimal.Decimal `json:"amount"`
}

// NewInvestment builds the investment of amount into loan.
func NewInvestment(loan Loan, amount decimal.Decimal) Investment {
	return Investment{LoanID: loan.ID, Amount: amount}
}

// Equal is value equality on loan ID and numeric amount.
func (i Investment) Equal(o Investment) bool {
	return i.LoanID == o.LoanID && i.Amount.Equal(o.Amount)
}

func (i Investment) String() string {
	return fmt.Sprintf("Investment{loan=%d, amount=%s}", i.LoanID, i.Amount.String())
}

// FeeLoanID is the loan ID the platform uses for blocked investor fees.
const FeeLoanID = 0

// BlockedAmount is money the platform has reserved against a loan pending settlement.
type BlockedAmount struct {
	LoanID   int             `json:"loanId"`
	Amount   decimal.Decimal `json:"amount"`
	Category string          `json:"category,omitempty"`
}

// IsFee reports whether the entry is the platform fee rather than a loan reservation.
func (b BlockedAmount) IsFee() bool {
	return b.LoanID == FeeLoanID
}

// RiskPortfolio is the portfolio exposure to one rating.
type RiskPortfolio struct {
	Rating Rating          `json:"rating"`
	Unpaid decimal.Decimal `json:"unpaid"`
	Paid   decimal.Decimal `json:"paid"`
	Due    decimal.Decimal `json:"due"`
}

// Statistics is the platform's portfolio snapshot. The engine passes it to strategies untouched.
type Statistics struct {
	CurrentProfitability  decimal.Decimal `json:"currentProfitability"`
	ExpectedProfitability decimal.Decimal `json:"expectedProfitability"`
	RiskPortfolio         []RiskPortfolio `json:"riskPortfolio"`
}

// UnpaidByRating sums outstanding principal per rating.
func (s *Statistics) UnpaidByRating() map[Rating]decimal.Decimal {
	out := make(map[Rating]decimal.Decimal)
	if s == nil {
		return out
	}
	for _, rp := range s.RiskPortfolio {
		out[rp.Rating] = out[rp.Rating].Add(rp.Unpaid)
	}
	return out
}

// Wallet holds the account balances.
type Wallet struct {
	Balance          decimal.Decimal `json:"balance"`
	AvailableBalance decimal.Decimal `json:"availableBalance"`
	BlockedBalance   decimal.Decimal `json:"blockedBalance"`
}

// InvestStatus is the business outcome of an investment request.
type InvestStatus string

const (
	InvestAccepted InvestStatus = "ACCEPTED"
	InvestRejected InvestStatus = "REJECTED"
)

// InvestResult is what the platform said about an investment request that reached it.
// A rejection is a normal result; transport failures are returned as errors instead.
type InvestResult struct {
	Status InvestStatus
	Reason string
}

// Accepted reports whether the platform took the investment.
func (r InvestResult) Accepted() bool {
	return r.Status == InvestAccepted
}

// Client is everything the bot needs from the lending platform.
type Client interface {
	// GetWallet returns current balances. Idempotent.
	GetWallet(ctx context.Context) (*Wallet, error)

	// GetStatistics returns the portfolio snapshot. Idempotent.
	GetStatistics(ctx context.Context) (*Statistics, error)

	// GetAvailableLoans lists loans currently open for investment. Idempotent.
	GetAvailableLoans(ctx context.Context) ([]Loan, error)

	// GetLoan looks up a single loan. Idempotent.
	GetLoan(ctx context.Context, id int) (*Loan, error)

	// GetBlockedAmounts returns one page of the account's fund reservations. Idempotent.
	GetBlockedAmounts(ctx context.Context, offset, size int) ([]BlockedAmount, error)

	// GetInvestments lists the account's investments in any of the given statuses. Idempotent.
	GetInvestments(ctx context.Context, statuses InvestmentStatuses) ([]Investment, error)

	// Invest submits an investment request. It is never retried by the client.
	// A non-nil error means the outcome is unknown.
	Invest(ctx context.Context, investment Investment) (InvestResult, error)
}
