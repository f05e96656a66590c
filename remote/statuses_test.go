package remote

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auto_zonky_go/errs"
)

func TestInvestmentStatusesRoundTrip(t *testing.T) {
	set, err := NewInvestmentStatuses(StatusSigned, StatusActive)
	require.NoError(t, err)
	assert.Equal(t, "[ACTIVE, SIGNED]", set.String())

	parsed, err := ParseInvestmentStatuses(set.String())
	require.NoError(t, err)
	assert.Equal(t, set, parsed)

	all := AllInvestmentStatuses()
	parsedAll, err := ParseInvestmentStatuses(all.String())
	require.NoError(t, err)
	assert.Equal(t, all, parsedAll)
	assert.Equal(t, "[ACTIVE, SIGNED, PAID_OFF, PAID, CANCELED, COVERED]", all.String())
	assert.Equal(t, 6, parsedAll.Len())
}

func TestPaidAndPaidOffAreDistinct(t *testing.T) {
	set, err := ParseInvestmentStatuses("[PAID]")
	require.NoError(t, err)
	assert.True(t, set.Contains(StatusPaid))
	assert.False(t, set.Contains(StatusPaidOff))
	assert.Equal(t, "[PAID]", set.String())
}

func TestParseInvestmentStatusesEmpty(t *testing.T) {
	for _, text := range []string{"[]", " [ ] ", "[   ]"} {
		set, err := ParseInvestmentStatuses(text)
		require.NoError(t, err, text)
		assert.Zero(t, set.Len(), text)
		assert.Equal(t, "[]", set.String())
	}
}

func TestParseInvestmentStatusesToleratesWhitespaceAndDuplicates(t *testing.T) {
	set, err := ParseInvestmentStatuses("[ SIGNED ,ACTIVE,SIGNED ]")
	require.NoError(t, err)
	assert.True(t, set.Contains(StatusActive))
	assert.True(t, set.Contains(StatusSigned))
	assert.False(t, set.Contains(StatusCanceled))
	assert.Equal(t, 2, set.Len())
}

func TestParseInvestmentStatusesMalformed(t *testing.T) {
	for _, text := range []string{"", "ACTIVE", "[ACTIVE", "ACTIVE]", "[ACTIVE, BOGUS]", "[ACTIVE,,SIGNED]", "[active]"} {
		_, err := ParseInvestmentStatuses(text)
		require.Error(t, err, text)
		assert.True(t, errs.IsCode(err, errs.CodeInvalidFormat), text)
	}
}

func TestParseRating(t *testing.T) {
	r, err := ParseRating(" aaa ")
	require.NoError(t, err)
	assert.Equal(t, RatingAAA, r)

	_, err = ParseRating("Z")
	assert.True(t, errs.IsCode(err, errs.CodeInvalidFormat))
}
