package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_WholeNumber(t *testing.T) {
	result, err := Parse("100")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100).Equal(result))
}

func TestParse_WithDecimals(t *testing.T) {
	result, err := Parse("1500.5")
	require.NoError(t, err)
	assert.Equal(t, "1500.50", Format(result))
}

func TestParse_FrenchFormat(t *testing.T) {
	result, err := Parse("1 500,25")
	require.NoError(t, err)
	assert.Equal(t, "1500.25", Format(result))
}

func TestParse_RoundsToCents(t *testing.T) {
	result, err := Parse("10.005")
	require.NoError(t, err)
	assert.Equal(t, "10.01", Format(result))

	result, err = Parse("10.004")
	require.NoError(t, err)
	assert.Equal(t, "10.00", Format(result))
}

func TestParse_EmptyString(t *testing.T) {
	_, err := Parse("")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "amount is required")
}

func TestParse_InvalidFormat(t *testing.T) {
	_, err := Parse("abc")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid amount format")
}

func TestParse_Negative(t *testing.T) {
	result, err := Parse("-42.10")
	require.NoError(t, err)
	assert.Equal(t, "-42.10", Format(result))
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParse("not a number") })
	assert.NotPanics(t, func() { MustParse("1") })
}

func TestNearlyEqual(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"100", "100", true},
		{"100", "100.009", true},
		{"100", "100.01", false},
		{"100", "99.99", false},
		{"0", "-0.001", true},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			a, _ := decimal.NewFromString(tt.a)
			b, _ := decimal.NewFromString(tt.b)
			assert.Equal(t, tt.want, NearlyEqual(a, b))
		})
	}
}

func TestIsZero(t *testing.T) {
	assert.True(t, IsZero(decimal.Zero))
	assert.True(t, IsZero(decimal.RequireFromString("0.004")))
	assert.False(t, IsZero(decimal.RequireFromString("0.005")))
}

func TestSumAndMin(t *testing.T) {
	total := Sum(MustParse("10.10"), MustParse("20.20"), MustParse("-5"))
	assert.Equal(t, "25.30", Format(total))

	assert.Equal(t, "3.00", Format(Min(MustParse("3"), MustParse("4"))))
	assert.Equal(t, "3.00", Format(Min(MustParse("4"), MustParse("3"))))
	assert.Equal(t, "0.00", Format(Sum()))
}
