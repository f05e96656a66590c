// strategy/simple.go
package strategy

import (
	"auto_zonky_go/config"
	"auto_zonky_go/errs"
	"auto_zonky_go/logs"
	"auto_zonky_go/remote"
	"auto_zonky_go/utils"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Ensure SimpleStrategy implements Strategy
var _ Strategy = (*SimpleStrategy)(nil)

// SimpleStrategy keeps the portfolio close to a target share per rating and sizes
// each investment by per-rating limits.
type SimpleStrategy struct {
	rules       *config.SimpleStrategyConfig
	marketplace []remote.Loan
}

// NewSimpleStrategy creates the strategy without a marketplace; use WithMarketplace per cycle.
// Rating keys are matched case-insensitively; an unknown rating is an InvalidFormat error.
func NewSimpleStrategy(rules *config.SimpleStrategyConfig) (*SimpleStrategy, error) {
	canonical, err := canonicalRules(rules)
	if err != nil {
		return nil, err
	}
	return &SimpleStrategy{rules: canonical}, nil
}

// canonicalRules copies rules with every rating key replaced by its rating tag.
func canonicalRules(rules *config.SimpleStrategyConfig) (*config.SimpleStrategyConfig, error) {
	if rules == nil {
		return nil, errs.New("simple strategy", errs.CodeInvalidFormat, errs.WithMessage("no rules configured"))
	}
	out := &config.SimpleStrategyConfig{
		Default: rules.Default,
		Ratings: make(map[string]config.RatingConfig, len(rules.Ratings)),
	}
	for key, rc := range rules.Ratings {
		rating, err := remote.ParseRating(key)
		if err != nil {
			return nil, errs.New("simple strategy", errs.CodeInvalidFormat, errs.WithCause(err))
		}
		if _, dup := out.Ratings[string(rating)]; dup {
			return nil, errs.New("simple strategy", errs.CodeInvalidFormat,
				errs.WithMessage(fmt.Sprintf("rating %s is configured more than once", rating)))
		}
		out.Ratings[string(rating)] = rc
	}
	return out, nil
}

// WithMarketplace returns a copy of the strategy that chooses from loans.
func (s *SimpleStrategy) WithMarketplace(loans []remote.Loan) *SimpleStrategy {
	snapshot := make([]remote.Loan, len(loans))
	copy(snapshot, loans)
	return &SimpleStrategy{rules: s.rules, marketplace: snapshot}
}

// Factory adapts the strategy to the per-cycle Factory signature.
func (s *SimpleStrategy) Factory() Factory {
	return func(marketplace []remote.Loan) Strategy {
		return s.WithMarketplace(marketplace)
	}
}

// MinimumInvestment is the highest of the platform floor and every rule's minimum.
func (s *SimpleStrategy) MinimumInvestment() decimal.Decimal {
	floor := decimal.NewFromInt(MinimalInvestmentAllowed)
	raise := func(rc config.RatingConfig) {
		if m := decimal.NewFromFloat(rc.MinInvestment); m.GreaterThan(floor) {
			floor = m
		}
	}
	raise(s.rules.Default)
	for _, rc := range s.rules.Ratings {
		raise(rc)
	}
	return floor
}

type candidate struct {
	loan    remote.Loan
	deficit decimal.Decimal // target share minus current share
}

// GetMatchingLoans returns marketplace loans whose rating is under its target share,
// skipping loans already invested into and loans outside the term bounds.
// The most under-represented ratings come first, then larger remaining amounts.
func (s *SimpleStrategy) GetMatchingLoans(stats *remote.Statistics, existing []remote.Investment) []remote.Loan {
	invested := make(map[int]struct{}, len(existing))
	for _, inv := range existing {
		invested[inv.LoanID] = struct{}{}
	}

	unpaid := stats.UnpaidByRating()
	total := decimal.Zero
	for _, v := range unpaid {
		total = total.Add(v)
	}

	candidates := make([]candidate, 0, len(s.marketplace))
	for _, loan := range s.marketplace {
		if _, ok := invested[loan.ID]; ok {
			continue
		}
		if !loan.RemainingInvestment.IsPositive() {
			continue
		}
		rules := s.rules.ForRating(string(loan.Rating))
		if rules.MinTermMonths > 0 && loan.TermInMonths < rules.MinTermMonths {
			continue
		}
		if rules.MaxTermMonths > 0 && loan.TermInMonths > rules.MaxTermMonths {
			continue
		}
		target := decimal.NewFromFloat(rules.TargetShare)
		deficit := target.Sub(utils.Share(unpaid[loan.Rating], total))
		if !deficit.IsPositive() {
			continue
		}
		candidates = append(candidates, candidate{loan: loan, deficit: deficit})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if !a.deficit.Equal(b.deficit) {
			return a.deficit.GreaterThan(b.deficit)
		}
		if !a.loan.RemainingInvestment.Equal(b.loan.RemainingInvestment) {
			return a.loan.RemainingInvestment.GreaterThan(b.loan.RemainingInvestment)
		}
		return a.loan.ID < b.loan.ID
	})

	out := make([]remote.Loan, len(candidates))
	for i, c := range candidates {
		out[i] = c.loan
	}
	logs.Debugf("[Strategy] %d of %d marketplace loans match.", len(out), len(s.marketplace))
	return out
}

// RecommendInvestmentAmount takes the smallest of the rating's max investment, its max
// share of the loan, what the loan can still absorb and the balance, rounded down to the
// platform increment. Anything under the minimum becomes zero.
func (s *SimpleStrategy) RecommendInvestmentAmount(loan remote.Loan, balance decimal.Decimal) decimal.Decimal {
	rules := s.rules.ForRating(string(loan.Rating))

	var shareCap decimal.Decimal
	if rules.MaxLoanShare > 0 {
		shareCap = loan.Amount.Mul(decimal.NewFromFloat(rules.MaxLoanShare))
		if !shareCap.IsPositive() {
			return decimal.Zero
		}
	}
	if !loan.RemainingInvestment.IsPositive() || !balance.IsPositive() {
		return decimal.Zero
	}

	amount := utils.MinPositive(decimal.NewFromFloat(rules.MaxInvestment), shareCap, loan.RemainingInvestment, balance)
	amount = utils.RoundDownToIncrement(amount, decimal.NewFromInt(MinimalInvestmentIncrement))

	floor := decimal.NewFromInt(MinimalInvestmentAllowed)
	if m := decimal.NewFromFloat(rules.MinInvestment); m.GreaterThan(floor) {
		floor = m
	}
	if amount.LessThan(floor) {
		return decimal.Zero
	}
	return amount
}
