package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_NormalizesCurrency(t *testing.T) {
	m, err := New(decimal.NewFromInt(100), "sar")
	require.NoError(t, err)
	assert.Equal(t, "SAR", m.Currency)
}

func TestNew_RejectsBadCurrency(t *testing.T) {
	_, err := New(decimal.NewFromInt(1), "EURO")
	assert.ErrorIs(t, err, ErrInvalidCurrency)

	_, err = New(decimal.NewFromInt(1), "")
	assert.ErrorIs(t, err, ErrInvalidCurrency)
}

func TestFromString(t *testing.T) {
	m, err := FromString("263.375", "AED")
	require.NoError(t, err)
	assert.Equal(t, "263.375", m.Amount.String())

	_, err = FromString("not-a-number", "AED")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestAddSub_CurrencyGuard(t *testing.T) {
	a := Must("10.50", "SAR")
	b := Must("0.25", "SAR")

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.True(t, sum.Equal(Must("10.75", "SAR")))

	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.True(t, diff.Equal(Must("10.25", "SAR")))

	_, err = a.Add(Must("1", "AED"))
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
}

func TestPercent_Exact(t *testing.T) {
	total := Must("5267.5", "AED")
	assert.True(t, total.Percent(5).Equal(Must("263.375", "AED")))
	assert.True(t, total.Percent(0).IsZero())
	assert.True(t, total.Percent(-10).IsZero())
	assert.True(t, total.Percent(100).Equal(total))
}

func TestRound2_HalfUp(t *testing.T) {
	assert.True(t, Must("263.375", "AED").Round2().Equal(Must("263.38", "AED")))
	assert.True(t, Must("997.5", "SAR").Round2().Equal(Must("997.5", "SAR")))
}
