package profit

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"auto_zonky_go/remote"
)

func TestAccountantSession(t *testing.T) {
	a := NewAccountant()
	empty := a.GetSessionState()
	assert.Zero(t, empty.Count)
	assert.True(t, empty.WeightedRate.IsZero())

	a.RecordInvestment(remote.Loan{ID: 1, Rating: remote.RatingB, InterestRate: decimal.RequireFromString("0.10")}, decimal.NewFromInt(200))
	a.RecordInvestment(remote.Loan{ID: 2, Rating: remote.RatingAA, InterestRate: decimal.RequireFromString("0.04")}, decimal.NewFromInt(600))
	a.RecordInvestment(remote.Loan{ID: 3, Rating: remote.RatingB, InterestRate: decimal.RequireFromString("0.10")}, decimal.NewFromInt(200))
	a.RecordRejection()

	s := a.GetSessionState()
	assert.Equal(t, 3, s.Count)
	assert.Equal(t, 1, s.Rejections)
	assert.True(t, s.TotalInvested.Equal(decimal.NewFromInt(1000)))
	assert.True(t, s.InvestedByRating[remote.RatingB].Equal(decimal.NewFromInt(400)))
	// (200*0.1 + 600*0.04 + 200*0.1) / 1000
	assert.True(t, s.WeightedRate.Equal(decimal.RequireFromString("0.064")), s.WeightedRate.String())
	assert.Equal(t, []remote.Rating{remote.RatingAA, remote.RatingB}, s.SortedRatings())
	assert.Len(t, a.History(), 3)
}
