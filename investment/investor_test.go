package investment

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auto_zonky_go/errs"
	"auto_zonky_go/remote"
)

// fixedStrategy returns its candidates verbatim and recommends a fixed amount per loan.
type fixedStrategy struct {
	candidates []remote.Loan
	amounts    map[int]decimal.Decimal
}

func (s *fixedStrategy) GetMatchingLoans(stats *remote.Statistics, existing []remote.Investment) []remote.Loan {
	return s.candidates
}

func (s *fixedStrategy) RecommendInvestmentAmount(loan remote.Loan, balance decimal.Decimal) decimal.Decimal {
	return s.amounts[loan.ID]
}

func (s *fixedStrategy) MinimumInvestment() decimal.Decimal {
	return decimal.NewFromInt(200)
}

// recordingSubmitter answers Invest from a per-loan script.
type recordingSubmitter struct {
	mu      sync.Mutex
	calls   []remote.Investment
	results map[int]remote.InvestResult
	errors  map[int]error
}

func newRecordingSubmitter() *recordingSubmitter {
	return &recordingSubmitter{results: map[int]remote.InvestResult{}, errors: map[int]error{}}
}

func (r *recordingSubmitter) Invest(ctx context.Context, investment remote.Investment) (remote.InvestResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, investment)
	if err, ok := r.errors[investment.LoanID]; ok {
		return remote.InvestResult{}, err
	}
	if res, ok := r.results[investment.LoanID]; ok {
		return res, nil
	}
	return remote.InvestResult{Status: remote.InvestAccepted}, nil
}

func loanWithRemaining(id int, remaining int64) remote.Loan {
	return remote.Loan{ID: id, Amount: decimal.NewFromInt(100000), RemainingInvestment: decimal.NewFromInt(remaining)}
}

func amounts(kv ...int64) map[int]decimal.Decimal {
	m := make(map[int]decimal.Decimal, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		m[int(kv[i])] = decimal.NewFromInt(kv[i+1])
	}
	return m
}

func fourCandidates() []remote.Loan {
	return []remote.Loan{
		loanWithRemaining(1, 1000), // recommendation is zero
		loanWithRemaining(2, 1000), // recommendation exceeds balance
		loanWithRemaining(3, 100),  // recommendation exceeds remaining
		{ID: 4, Amount: decimal.NewFromInt(1000), RemainingInvestment: decimal.NewFromInt(1000)}, // recommendation is half the loan
	}
}

func TestAttemptInvestmentFiltersCandidates(t *testing.T) {
	balance := decimal.NewFromInt(1000)
	recommended := amounts(1, 0, 2, 1200, 3, 200, 4, 500)

	loans := fourCandidates()
	orders := [][]int{{0, 1, 2, 3}, {3, 2, 1, 0}, {2, 3, 0, 1}, {1, 0, 3, 2}}
	for _, order := range orders {
		candidates := make([]remote.Loan, len(order))
		for i, idx := range order {
			candidates[i] = loans[idx]
		}
		sub := newRecordingSubmitter()
		investor := NewInvestor(sub, &fixedStrategy{candidates: candidates, amounts: recommended})

		got, err := investor.AttemptInvestment(context.Background(), balance, &remote.Statistics{}, nil)
		require.NoError(t, err)
		require.NotNil(t, got, "order %v", order)
		assert.True(t, got.Equal(inv(4, 500)), "order %v: got %s", order, got)
		assert.Len(t, sub.calls, 1, "order %v", order)
	}
}

func TestAttemptInvestmentMovesOnAfterRejection(t *testing.T) {
	sub := newRecordingSubmitter()
	sub.results[1] = remote.InvestResult{Status: remote.InvestRejected, Reason: "loan already covered"}
	strat := &fixedStrategy{
		candidates: []remote.Loan{loanWithRemaining(1, 1000), loanWithRemaining(2, 1000), loanWithRemaining(3, 1000)},
		amounts:    amounts(1, 200, 2, 400, 3, 600),
	}

	got, err := NewInvestor(sub, strat).AttemptInvestment(context.Background(), decimal.NewFromInt(1000), nil, nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Equal(inv(2, 400)))
	assert.Len(t, sub.calls, 2)
}

func TestAttemptInvestmentAllRejected(t *testing.T) {
	sub := newRecordingSubmitter()
	sub.results[1] = remote.InvestResult{Status: remote.InvestRejected}
	sub.results[2] = remote.InvestResult{Status: remote.InvestRejected}
	strat := &fixedStrategy{
		candidates: []remote.Loan{loanWithRemaining(1, 1000), loanWithRemaining(2, 1000)},
		amounts:    amounts(1, 200, 2, 200),
	}

	got, err := NewInvestor(sub, strat).AttemptInvestment(context.Background(), decimal.NewFromInt(1000), nil, nil)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Len(t, sub.calls, 2)
}

func TestAttemptInvestmentWithoutCandidates(t *testing.T) {
	sub := newRecordingSubmitter()
	got, err := NewInvestor(sub, &fixedStrategy{}).AttemptInvestment(context.Background(), decimal.NewFromInt(1000), nil, nil)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Empty(t, sub.calls)

	// every candidate filtered out locally
	strat := &fixedStrategy{
		candidates: []remote.Loan{loanWithRemaining(1, 1000), loanWithRemaining(2, 100)},
		amounts:    amounts(1, 2000, 2, 200),
	}
	got, err = NewInvestor(sub, strat).AttemptInvestment(context.Background(), decimal.NewFromInt(1000), nil, nil)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Empty(t, sub.calls)
}

func TestAttemptInvestmentAbortsOnTransportFailure(t *testing.T) {
	sub := newRecordingSubmitter()
	sub.errors[1] = errors.New("connection reset by peer")
	strat := &fixedStrategy{
		candidates: []remote.Loan{loanWithRemaining(1, 1000), loanWithRemaining(2, 1000)},
		amounts:    amounts(1, 200, 2, 200),
	}

	got, err := NewInvestor(sub, strat).AttemptInvestment(context.Background(), decimal.NewFromInt(1000), nil, nil)
	require.Error(t, err)
	assert.Nil(t, got)
	assert.True(t, errs.IsCode(err, errs.CodeTransport))
	assert.Len(t, sub.calls, 1, "no later candidate may be tried")
}

func TestAttemptInvestmentKeepsTransportError(t *testing.T) {
	c := remote.NewMockClient()
	c.SetBalance(decimal.NewFromInt(1000))
	c.AddLoan(loanWithRemaining(1, 1000))
	c.FailInvest(1, errors.New("timeout"))
	strat := &fixedStrategy{candidates: []remote.Loan{loanWithRemaining(1, 1000)}, amounts: amounts(1, 200)}

	_, err := NewInvestor(c, strat).AttemptInvestment(context.Background(), decimal.NewFromInt(1000), nil, nil)
	var e *errs.E
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "invest", e.Op)
}

func TestAttemptInvestmentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sub := newRecordingSubmitter()
	strat := &fixedStrategy{candidates: []remote.Loan{loanWithRemaining(1, 1000)}, amounts: amounts(1, 200)}

	_, err := NewInvestor(sub, strat).AttemptInvestment(ctx, decimal.NewFromInt(1000), nil, nil)
	assert.True(t, errs.IsCode(err, errs.CodeTransport))
	assert.Empty(t, sub.calls)
}

func TestAttemptInvestmentExistingLoanPolicy(t *testing.T) {
	existing := []remote.Investment{inv(1, 200)}
	newStrat := func() *fixedStrategy {
		return &fixedStrategy{
			candidates: []remote.Loan{loanWithRemaining(1, 1000), loanWithRemaining(2, 1000)},
			amounts:    amounts(1, 200, 2, 400),
		}
	}

	t.Run("off", func(t *testing.T) {
		sub := newRecordingSubmitter()
		got, err := NewInvestor(sub, newStrat()).AttemptInvestment(context.Background(), decimal.NewFromInt(1000), nil, existing)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, 1, got.LoanID)
	})

	t.Run("on", func(t *testing.T) {
		sub := newRecordingSubmitter()
		investor := NewInvestor(sub, newStrat())
		investor.SkipExistingLoans = true
		var outcomes []Outcome
		investor.Observer = func(loan remote.Loan, amount decimal.Decimal, outcome Outcome) {
			outcomes = append(outcomes, outcome)
		}

		got, err := investor.AttemptInvestment(context.Background(), decimal.NewFromInt(1000), nil, existing)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, 2, got.LoanID)
		assert.Len(t, sub.calls, 1)
		assert.Equal(t, []Outcome{OutcomeAlreadyInvested, OutcomeInvested}, outcomes)
	})
}

func TestAttemptInvestmentDryRun(t *testing.T) {
	sub := newRecordingSubmitter()
	investor := NewInvestor(sub, &fixedStrategy{candidates: []remote.Loan{loanWithRemaining(7, 1000)}, amounts: amounts(7, 600)})
	investor.DryRun = true

	got, err := investor.AttemptInvestment(context.Background(), decimal.NewFromInt(1000), nil, nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Equal(inv(7, 600)))
	assert.Empty(t, sub.calls)
}

func TestAttemptInvestmentReportsOutcomes(t *testing.T) {
	sub := newRecordingSubmitter()
	sub.results[4] = remote.InvestResult{Status: remote.InvestRejected, Reason: "too late"}
	candidates := append(fourCandidates(), loanWithRemaining(5, 1000))
	strat := &fixedStrategy{candidates: candidates, amounts: amounts(1, 0, 2, 1200, 3, 200, 4, 500, 5, 200)}

	investor := NewInvestor(sub, strat)
	got := map[int]Outcome{}
	investor.Observer = func(loan remote.Loan, amount decimal.Decimal, outcome Outcome) {
		got[loan.ID] = outcome
	}

	_, err := investor.AttemptInvestment(context.Background(), decimal.NewFromInt(1000), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, map[int]Outcome{
		1: OutcomeDeclined,
		2: OutcomeOverBalance,
		3: OutcomeOverLoan,
		4: OutcomeRejected,
		5: OutcomeInvested,
	}, got)
}

func TestAttemptInvestmentAgainstMockPlatform(t *testing.T) {
	c := remote.NewMockClient()
	c.SetBalance(decimal.NewFromInt(400))
	c.AddLoan(loanWithRemaining(1, 1000))
	c.AddLoan(loanWithRemaining(2, 1000))
	c.RejectLoan(1, "loan is reserved")
	strat := &fixedStrategy{
		candidates: []remote.Loan{loanWithRemaining(1, 1000), loanWithRemaining(2, 1000)},
		amounts:    amounts(1, 200, 2, 400),
	}

	got, err := NewInvestor(c, strat).AttemptInvestment(context.Background(), decimal.NewFromInt(400), nil, nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Len(t, c.InvestCalls(), 2)

	// the accepted investment shows up in the next reconciliation
	reconciled, err := Reconcile(context.Background(), c)
	require.NoError(t, err)
	assertSameInvestments(t, []remote.Investment{inv(2, 400)}, reconciled)
}
