package profit

import (
	"auto_zonky_go/remote"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Record is a single investment made during this session.
type Record struct {
	LoanID       int
	Rating       remote.Rating
	Amount       decimal.Decimal
	InterestRate decimal.Decimal
	Timestamp    int64
}

// SessionState summarizes what the bot invested since it started.
type SessionState struct {
	Count            int
	TotalInvested    decimal.Decimal
	InvestedByRating map[remote.Rating]decimal.Decimal
	Rejections       int
	// WeightedRate is the amount-weighted average interest rate of the session's investments.
	WeightedRate decimal.Decimal
}

// Accountant keeps track of the investments and rejections of the running session.
type Accountant struct {
	mu         sync.Mutex
	history    []Record
	rejections int
}

// NewAccountant creates an empty session accountant.
func NewAccountant() *Accountant {
	return &Accountant{history: make([]Record, 0)}
}

// RecordInvestment records an accepted investment into loan.
func (a *Accountant) RecordInvestment(loan remote.Loan, amount decimal.Decimal) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = append(a.history, Record{
		LoanID:       loan.ID,
		Rating:       loan.Rating,
		Amount:       amount,
		InterestRate: loan.InterestRate,
		Timestamp:    time.Now().Unix(),
	})
}

// RecordRejection counts a soft rejection by the platform.
func (a *Accountant) RecordRejection() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rejections++
}

// GetSessionState returns a copy of the session summary.
func (a *Accountant) GetSessionState() SessionState {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := SessionState{
		Count:            len(a.history),
		TotalInvested:    decimal.Zero,
		InvestedByRating: make(map[remote.Rating]decimal.Decimal),
		Rejections:       a.rejections,
		WeightedRate:     decimal.Zero,
	}
	weighted := decimal.Zero
	for _, r := range a.history {
		s.TotalInvested = s.TotalInvested.Add(r.Amount)
		s.InvestedByRating[r.Rating] = s.InvestedByRating[r.Rating].Add(r.Amount)
		weighted = weighted.Add(r.Amount.Mul(r.InterestRate))
	}
	if s.TotalInvested.IsPositive() {
		s.WeightedRate = weighted.DivRound(s.TotalInvested, 6)
	}
	return s
}

// History returns the session's investments, oldest first.
func (a *Accountant) History() []Record {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Record, len(a.history))
	copy(out, a.history)
	return out
}

// SortedRatings returns the ratings invested into, best first.
func (s SessionState) SortedRatings() []remote.Rating {
	order := make(map[remote.Rating]int)
	for i, r := range remote.Ratings() {
		order[r] = i
	}
	out := make([]remote.Rating, 0, len(s.InvestedByRating))
	for r := range s.InvestedByRating {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return order[out[i]] < order[out[j]] })
	return out
}
