package remote

import (
	"auto_zonky_go/errs"
	"auto_zonky_go/logs"
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

//
// In-memory platform for simulation mode and tests
//

// Ensure MockClient implements Client interface
var _ Client = (*MockClient)(nil)

// MockClient is an in-memory stand-in for the lending platform.
// Accepted investments reserve funds as blocked amounts, like the real platform does
// until the loan is signed.
type MockClient struct {
	mu           sync.RWMutex
	wallet       Wallet
	stats        Statistics
	loans        map[int]*Loan
	loanOrder    []int
	blocked      []BlockedAmount
	investments  []Investment
	rejectLoans  map[int]string // loan ID -> rejection reason
	failInvest   map[int]error  // loan ID -> transport failure on invest
	failLookup   map[int]error  // loan ID -> failure on GetLoan
	investCalls  []Investment
	lookupCalls  map[int]int
	blockedCalls int
}

// NewMockClient creates a new mock client with an empty wallet.
func NewMockClient() *MockClient {
	return &MockClient{
		loans:       make(map[int]*Loan),
		rejectLoans: make(map[int]string),
		failInvest:  make(map[int]error),
		failLookup:  make(map[int]error),
		lookupCalls: make(map[int]int),
	}
}

// SetBalance sets both the total and available balance.
func (c *MockClient) SetBalance(balance decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wallet = Wallet{Balance: balance, AvailableBalance: balance}
}

// SetStatistics replaces the portfolio snapshot.
func (c *MockClient) SetStatistics(stats Statistics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = stats
}

// AddLoan puts a loan on the marketplace.
func (c *MockClient) AddLoan(loan Loan) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.loans[loan.ID]; !ok {
		c.loanOrder = append(c.loanOrder, loan.ID)
	}
	l := loan
	c.loans[loan.ID] = &l
}

// AddBlockedAmount records a reservation as if the platform had made it.
func (c *MockClient) AddBlockedAmount(b BlockedAmount) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blocked = append(c.blocked, b)
}

// RejectLoan makes every investment into the loan come back as a soft rejection.
func (c *MockClient) RejectLoan(loanID int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rejectLoans[loanID] = reason
}

// FailInvest makes investing into the loan fail at the transport level.
func (c *MockClient) FailInvest(loanID int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failInvest[loanID] = err
}

// FailLookup makes GetLoan fail for the loan.
func (c *MockClient) FailLookup(loanID int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failLookup[loanID] = err
}

// InvestCalls returns every investment submitted, accepted or not.
func (c *MockClient) InvestCalls() []Investment {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Investment, len(c.investCalls))
	copy(out, c.investCalls)
	return out
}

// LookupCalls returns how many times GetLoan was called for the loan.
func (c *MockClient) LookupCalls(loanID int) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lookupCalls[loanID]
}

// BlockedAmountCalls returns how many pages of blocked amounts were requested.
func (c *MockClient) BlockedAmountCalls() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.blockedCalls
}

func (c *MockClient) GetWallet(ctx context.Context) (*Wallet, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	w := c.wallet
	return &w, nil
}

func (c *MockClient) GetStatistics(ctx context.Context) (*Statistics, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.stats
	s.RiskPortfolio = append([]RiskPortfolio(nil), c.stats.RiskPortfolio...)
	return &s, nil
}

// GetAvailableLoans returns loans with money left to invest, in the order they were added.
func (c *MockClient) GetAvailableLoans(ctx context.Context) ([]Loan, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Loan, 0, len(c.loanOrder))
	for _, id := range c.loanOrder {
		if l := c.loans[id]; l.RemainingInvestment.IsPositive() {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (c *MockClient) GetLoan(ctx context.Context, id int) (*Loan, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookupCalls[id]++
	if err, ok := c.failLookup[id]; ok {
		return nil, err
	}
	l, ok := c.loans[id]
	if !ok {
		return nil, errs.New(fmt.Sprintf("get loan %d", id), errs.CodeNotFound, errs.WithMessage("mock loan not found"))
	}
	loan := *l
	return &loan, nil
}

func (c *MockClient) GetBlockedAmounts(ctx context.Context, offset, size int) ([]BlockedAmount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blockedCalls++
	if offset >= len(c.blocked) || size <= 0 {
		return []BlockedAmount{}, nil
	}
	end := offset + size
	if end > len(c.blocked) {
		end = len(c.blocked)
	}
	out := make([]BlockedAmount, end-offset)
	copy(out, c.blocked[offset:end])
	return out, nil
}

// GetInvestments returns investments accepted by the mock. They are all SIGNED.
func (c *MockClient) GetInvestments(ctx context.Context, statuses InvestmentStatuses) ([]Investment, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !statuses.Contains(StatusSigned) {
		return []Investment{}, nil
	}
	out := make([]Investment, len(c.investments))
	copy(out, c.investments)
	return out, nil
}

// Invest accepts the investment when the loan exists, can absorb the amount and the
// wallet can cover it; otherwise it rejects. Configured failures take precedence.
func (c *MockClient) Invest(ctx context.Context, investment Investment) (InvestResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.investCalls = append(c.investCalls, investment)

	if err, ok := c.failInvest[investment.LoanID]; ok {
		return InvestResult{}, errs.New("invest", errs.CodeTransport, errs.WithMessage(investment.String()), errs.WithCause(err))
	}
	if reason, ok := c.rejectLoans[investment.LoanID]; ok {
		logs.Debugf("[Mock] Rejecting %s: %s", investment, reason)
		return InvestResult{Status: InvestRejected, Reason: reason}, nil
	}
	loan, ok := c.loans[investment.LoanID]
	if !ok {
		return InvestResult{Status: InvestRejected, Reason: "loan not found"}, nil
	}
	if investment.Amount.GreaterThan(loan.RemainingInvestment) {
		return InvestResult{Status: InvestRejected, Reason: "loan already funded"}, nil
	}
	if investment.Amount.GreaterThan(c.wallet.AvailableBalance) {
		return InvestResult{Status: InvestRejected, Reason: "insufficient balance"}, nil
	}

	loan.RemainingInvestment = loan.RemainingInvestment.Sub(investment.Amount)
	c.wallet.AvailableBalance = c.wallet.AvailableBalance.Sub(investment.Amount)
	c.wallet.BlockedBalance = c.wallet.BlockedBalance.Add(investment.Amount)
	c.blocked = append(c.blocked, BlockedAmount{LoanID: investment.LoanID, Amount: investment.Amount, Category: "INVESTMENT"})
	c.investments = append(c.investments, investment)
	logs.Debugf("[Mock] Accepted %s, remaining on loan: %s", investment, loan.RemainingInvestment)
	return InvestResult{Status: InvestAccepted}, nil
}
