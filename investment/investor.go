// investment/investor.go
package investment

import (
	"auto_zonky_go/errs"
	"auto_zonky_go/logs"
	"auto_zonky_go/remote"
	"auto_zonky_go/strategy"
	"context"

	"github.com/shopspring/decimal"
)

// Submitter defines the client interface required by the attempt loop, convenient for testing
type Submitter interface {
	Invest(ctx context.Context, investment remote.Investment) (remote.InvestResult, error)
}

// Outcome labels what happened to one candidate.
type Outcome string

const (
	OutcomeInvested        Outcome = "invested"
	OutcomeRejected        Outcome = "rejected"
	OutcomeFailed          Outcome = "failed"
	OutcomeDeclined        Outcome = "declined"         // strategy recommended zero
	OutcomeOverBalance     Outcome = "over_balance"     // recommendation exceeds balance
	OutcomeOverLoan        Outcome = "over_loan"        // recommendation exceeds what the loan can absorb
	OutcomeAlreadyInvested Outcome = "already_invested" // skipped by the existing-loan policy
)

// Observer is notified of every candidate decision. It must not block.
type Observer func(loan remote.Loan, amount decimal.Decimal, outcome Outcome)

// Investor walks the strategy's candidates and makes at most one investment per call.
type Investor struct {
	client   Submitter
	strategy strategy.Strategy

	// SkipExistingLoans makes the loop itself drop candidates already present in the
	// existing investments. Off by default: filtering belongs to the strategy.
	SkipExistingLoans bool
	// DryRun logs what would be invested and reports success without calling the platform.
	DryRun bool
	// Observer, when set, receives every candidate decision.
	Observer Observer
	// Logger carries per-cycle fields; defaults to the package logger.
	Logger Logger
}

// Logger is the subset of logrus used by the investor.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type pkgLogger struct{}

func (pkgLogger) Infof(format string, args ...interface{})  { logs.Infof(format, args...) }
func (pkgLogger) Warnf(format string, args ...interface{})  { logs.Warnf(format, args...) }
func (pkgLogger) Debugf(format string, args ...interface{}) { logs.Debugf(format, args...) }

// NewInvestor creates a new investor
func NewInvestor(client Submitter, strat strategy.Strategy) *Investor {
	return &Investor{client: client, strategy: strat, Logger: pkgLogger{}}
}

func (i *Investor) observe(loan remote.Loan, amount decimal.Decimal, outcome Outcome) {
	if i.Observer != nil {
		i.Observer(loan, amount, outcome)
	}
}

func (i *Investor) logger() Logger {
	if i.Logger == nil {
		return pkgLogger{}
	}
	return i.Logger
}

// AttemptInvestment asks the strategy for candidates and submits investments one at a
// time until the first is accepted. A candidate is skipped without a platform call when
// the recommendation is zero, exceeds balance, or exceeds the loan's remaining amount.
// A rejected request moves on to the next candidate; a transport failure aborts and is
// returned. The returned investment is nil when no candidate was invested into.
func (i *Investor) AttemptInvestment(ctx context.Context, balance decimal.Decimal, stats *remote.Statistics, existing []remote.Investment) (*remote.Investment, error) {
	log := i.logger()
	candidates := i.strategy.GetMatchingLoans(stats, existing)
	log.Debugf("[Investor] Balance %s, %d candidates.", balance, len(candidates))

	var invested map[int]struct{}
	if i.SkipExistingLoans {
		invested = make(map[int]struct{}, len(existing))
		for _, inv := range existing {
			invested[inv.LoanID] = struct{}{}
		}
	}

	for _, loan := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, errs.New("attempt investment", errs.CodeTransport, errs.WithCause(err))
		}
		if _, ok := invested[loan.ID]; ok {
			log.Debugf("[Investor] Loan %d already invested into, skipping.", loan.ID)
			i.observe(loan, decimal.Zero, OutcomeAlreadyInvested)
			continue
		}

		amount := i.strategy.RecommendInvestmentAmount(loan, balance)
		switch {
		case !amount.IsPositive():
			log.Debugf("[Investor] Strategy declined loan %d.", loan.ID)
			i.observe(loan, amount, OutcomeDeclined)
			continue
		case amount.GreaterThan(balance):
			log.Debugf("[Investor] Recommended %s into loan %d exceeds balance %s.", amount, loan.ID, balance)
			i.observe(loan, amount, OutcomeOverBalance)
			continue
		case amount.GreaterThan(loan.RemainingInvestment):
			log.Debugf("[Investor] Recommended %s into loan %d exceeds its remaining %s.", amount, loan.ID, loan.RemainingInvestment)
			i.observe(loan, amount, OutcomeOverLoan)
			continue
		}

		investment := remote.NewInvestment(loan, amount)
		if i.DryRun {
			log.Infof("[Investor] Dry run: would invest %s into loan %d.", amount, loan.ID)
			i.observe(loan, amount, OutcomeInvested)
			return &investment, nil
		}

		result, err := i.client.Invest(ctx, investment)
		if err != nil {
			i.observe(loan, amount, OutcomeFailed)
			if errs.IsCode(err, errs.CodeTransport) {
				return nil, err
			}
			return nil, errs.New("attempt investment", errs.CodeTransport, errs.WithMessage(investment.String()), errs.WithCause(err))
		}
		if !result.Accepted() {
			log.Warnf("[Investor] Investment of %s into loan %d rejected: %s", amount, loan.ID, result.Reason)
			i.observe(loan, amount, OutcomeRejected)
			continue
		}

		log.Infof("[Investor] Invested %s into loan %d.", amount, loan.ID)
		i.observe(loan, amount, OutcomeInvested)
		return &investment, nil
	}

	log.Debugf("[Investor] No candidate accepted.")
	return nil, nil
}
