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

func blocked(loanID int, amount int64) remote.BlockedAmount {
	return remote.BlockedAmount{LoanID: loanID, Amount: decimal.NewFromInt(amount)}
}

func newLedgerMock(amounts ...remote.BlockedAmount) *remote.MockClient {
	c := remote.NewMockClient()
	for _, b := range amounts {
		c.AddBlockedAmount(b)
	}
	return c
}

func TestReconcileBlockedAmounts(t *testing.T) {
	c := newLedgerMock(blocked(0, 1000), blocked(1, 100), blocked(2, 200), blocked(1, 400))
	c.AddLoan(remote.Loan{ID: 1, RemainingInvestment: decimal.NewFromInt(100)})
	c.AddLoan(remote.Loan{ID: 2, RemainingInvestment: decimal.NewFromInt(200)})

	result, err := Reconcile(context.Background(), c)
	require.NoError(t, err)
	assertSameInvestments(t, []remote.Investment{inv(1, 500), inv(2, 200)}, result)

	// the fee entry is never looked up as a loan; every real loan exactly once
	assert.Zero(t, c.LookupCalls(0))
	assert.Equal(t, 1, c.LookupCalls(1))
	assert.Equal(t, 1, c.LookupCalls(2))
}

func TestReconcileKeepsFirstSeenOrderUnderParallelLookups(t *testing.T) {
	c := remote.NewMockClient()
	var want []remote.Investment
	for id := 50; id >= 1; id-- {
		c.AddBlockedAmount(blocked(id, 200))
		c.AddLoan(remote.Loan{ID: id})
		want = append(want, inv(id, 200))
	}

	result, err := ReconcileWithOptions(context.Background(), c, ReconcilerOptions{PageSize: 7, Workers: 8})
	require.NoError(t, err)
	assertSameInvestments(t, want, result)
	assert.Equal(t, 8, c.BlockedAmountCalls()) // 7*7=49 and a short page
}

func TestReconcileEmptyLedger(t *testing.T) {
	result, err := Reconcile(context.Background(), remote.NewMockClient())
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestReconcileOnlyFees(t *testing.T) {
	result, err := Reconcile(context.Background(), newLedgerMock(blocked(0, 15), blocked(0, 30)))
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestReconcileIsAllOrNothing(t *testing.T) {
	c := newLedgerMock(blocked(1, 100), blocked(2, 200), blocked(3, 300))
	c.AddLoan(remote.Loan{ID: 1})
	c.AddLoan(remote.Loan{ID: 3})
	c.FailLookup(2, errs.New("get loan 2", errs.CodeTransport, errs.WithMessage("timeout")))

	result, err := Reconcile(context.Background(), c)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errs.IsCode(err, errs.CodeReconciliation))
	assert.True(t, errs.IsCode(err, errs.CodeTransport))
}

func TestReconcileFailsOnMissingLoan(t *testing.T) {
	c := newLedgerMock(blocked(1, 100))

	result, err := Reconcile(context.Background(), c)
	assert.Nil(t, result)
	assert.True(t, errs.IsCode(err, errs.CodeReconciliation))
	assert.True(t, errs.IsCode(err, errs.CodeNotFound))
}

type failingPages struct {
	remote.MockClient
}

func (f *failingPages) GetBlockedAmounts(ctx context.Context, offset, size int) ([]remote.BlockedAmount, error) {
	return nil, errors.New("connection refused")
}

func TestReconcileFailsWhenLedgerUnavailable(t *testing.T) {
	_, err := Reconcile(context.Background(), &failingPages{})
	assert.True(t, errs.IsCode(err, errs.CodeReconciliation))
}

// mislabeledLoans answers every lookup with the next loan over.
type mislabeledLoans struct {
	*remote.MockClient
}

func (m mislabeledLoans) GetLoan(ctx context.Context, id int) (*remote.Loan, error) {
	return &remote.Loan{ID: id + 1}, nil
}

func TestReconcileFailsOnMismatchedLoan(t *testing.T) {
	c := mislabeledLoans{newLedgerMock(blocked(1, 100), blocked(2, 200))}

	result, err := Reconcile(context.Background(), c)
	assert.Nil(t, result)
	assert.True(t, errs.IsCode(err, errs.CodeReconciliation))
	assert.Contains(t, err.Error(), "different loan")
}

// slowLedger blocks lookups until the context is done.
type slowLedger struct {
	mu      sync.Mutex
	entries []remote.BlockedAmount
}

func (s *slowLedger) GetLoan(ctx context.Context, id int) (*remote.Loan, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *slowLedger) GetBlockedAmounts(ctx context.Context, offset, size int) ([]remote.BlockedAmount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if offset >= len(s.entries) {
		return nil, nil
	}
	return s.entries[offset:], nil
}

func TestReconcileAbandonedOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := Reconcile(ctx, &slowLedger{entries: []remote.BlockedAmount{blocked(1, 100)}})
	assert.Nil(t, result)
	assert.True(t, errs.IsCode(err, errs.CodeReconciliation))
}

func TestFetchAllBlockedAmountsPages(t *testing.T) {
	c := remote.NewMockClient()
	for i := 1; i <= 10; i++ {
		c.AddBlockedAmount(blocked(i, 200))
	}

	all, err := FetchAllBlockedAmounts(context.Background(), c, 5)
	require.NoError(t, err)
	assert.Len(t, all, 10)
	assert.Equal(t, 3, c.BlockedAmountCalls()) // two full pages and an empty one
}
