package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatement(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		european  bool
		hint      string
		wantCents int64
		wantCode  string
	}{
		{"us format with dollar", "$1,234.56", false, "", 123456, USD},
		{"european format with euro", "1.234,56 €", true, "", 123456, EUR},
		{"parenthesized negative", "($1,000.00)", false, "", -100000, USD},
		{"plain with hint", "42.50", false, GBP, 4250, GBP},
		{"no hint defaults to eur", "10.00", false, "", 1000, EUR},
		{"brazilian real before dollar", "R$ 99,90", true, "", 9990, BRL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ParseStatement(tt.raw, tt.european, tt.hint)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCents, m.Amount())
			assert.Equal(t, tt.wantCode, m.Currency())
		})
	}

	t.Run("empty fails", func(t *testing.T) {
		_, err := ParseStatement("   ", false, "")
		assert.Error(t, err)
	})

	t.Run("garbage fails", func(t *testing.T) {
		_, err := ParseStatement("abc", false, "")
		assert.Error(t, err)
	})
}

func TestMoney_RoundTrip(t *testing.T) {
	m := New(123456, USD)
	assert.Equal(t, "1234.56", m.String())
	assert.InDelta(t, 1234.56, m.ToFloat64(), 1e-9)
	assert.Equal(t, int64(-123456), m.Negate().Amount())
}

func TestMoney_AddMismatchedCurrencies(t *testing.T) {
	_, err := New(100, USD).Add(New(100, EUR))
	assert.Error(t, err)
}

func TestMoney_NilSafety(t *testing.T) {
	var m *Money
	assert.True(t, m.IsZero())
	assert.False(t, m.IsNegative())
	assert.Equal(t, int64(0), m.Amount())
	assert.Equal(t, "0", m.String())
}

func TestTestDataGenerator_Deterministic(t *testing.T) {
	a := NewTestDataGeneratorWithSeed(42).Rows(EUR, 5)
	b := NewTestDataGeneratorWithSeed(42).Rows(EUR, 5)

	require.Len(t, a, 5)
	for i := range a {
		assert.Equal(t, a[i].Description, b[i].Description)
		assert.Equal(t, a[i].Amount.Amount(), b[i].Amount.Amount())
	}
}
