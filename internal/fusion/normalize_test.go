package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankfuse/bankfuse/internal/extract"
)

func TestNormalizer_NormalizeDate(t *testing.T) {
	n := NewNormalizer(nil)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"day first slash", "7/3/2025", "07/03/2025"},
		{"day first dash", "7-3-2025", "07/03/2025"},
		{"already normalized", "07/03/2025", "07/03/2025"},
		{"year first", "2025-03-07", "07/03/2025"},
		{"year first slash", "2025/3/7", "07/03/2025"},
		{"two digit year below pivot", "7/3/25", "07/03/2025"},
		{"two digit year above pivot", "7/3/99", "07/03/1999"},
		{"unmatched passes through", "March 7, 2025", "March 7, 2025"},
		{"whitespace trimmed", "  15/01/2024  ", "15/01/2024"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.NormalizeDate(tt.in))
		})
	}
}

func TestNormalizer_ParseAmount(t *testing.T) {
	n := NewNormalizer(nil)

	tests := []struct {
		name string
		in   string
		want float64
	}{
		{"plain", "1234.56", 1234.56},
		{"us thousands", "1,234.56", 1234.56},
		{"european", "1.234,56", 1234.56},
		{"currency symbol", "$1,234.56", 1234.56},
		{"euro symbol", "€ 1.234,56", 1234.56},
		{"negative dash", "-42.50", -42.50},
		{"negative parentheses", "(42.50)", -42.50},
		{"parentheses with currency", "($1,000.00)", -1000.00},
		{"comma decimal short", "123,4", 123.4},
		{"comma thousands only", "1,234", 1234},
		{"multiple comma thousands", "1,234,567", 1234567},
		{"rupee", "₹99", 99},
		{"internal whitespace", "1 234.56", 1234.56},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := n.ParseAmount(tt.in)
			require.NoError(t, err)
			got, _ := d.Float64()
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}

	t.Run("empty is a typed error", func(t *testing.T) {
		_, err := n.ParseAmount("   ")
		assert.ErrorIs(t, err, ErrEmptyAmount)
	})

	t.Run("garbage fails with wrapped error", func(t *testing.T) {
		_, err := n.ParseAmount("N/A")
		require.Error(t, err)
	})
}

func TestNormalizer_NormalizeAmount_FailureIsZero(t *testing.T) {
	n := NewNormalizer(nil)
	assert.Equal(t, 0.0, n.NormalizeAmount("not a number"))
	assert.Equal(t, 0.0, n.NormalizeAmount(""))
}

func TestNormalizer_NormalizeText(t *testing.T) {
	n := NewNormalizer(nil)
	assert.Equal(t, "COFFEE SHOP DOWNTOWN", n.NormalizeText("  coffee   shop\tdowntown "))
	assert.Equal(t, "", n.NormalizeText("   "))
	assert.Equal(t, "", n.NormalizeText(""))
}

func TestNormalizer_NormalizeTransaction_Idempotent(t *testing.T) {
	n := NewNormalizer(nil)

	raws := []extract.RawTransaction{
		{
			"date":        "5/1/2025",
			"amount":      "$1,234.56",
			"description": "  grocery   store ",
			"balance":     "(10,00)",
			"reference":   " TX-1 ",
		},
		{
			"fecha":   "2025-01-05",
			"importe": "1.234,56",
			"memo":    "mercado",
		},
		{
			"date":   "not a date",
			"amount": "??",
		},
	}

	for _, raw := range raws {
		once := n.NormalizeTransaction(raw)
		twice := n.NormalizeTransaction(once)
		assert.Equal(t, once, twice)
	}
}

func TestNormalizer_NormalizeTransaction_AliasedKeys(t *testing.T) {
	n := NewNormalizer(nil)

	got := n.NormalizeTransaction(extract.RawTransaction{
		"fecha":   "5/1/2025",
		"importe": "99,50",
		"memo":    "cafe central",
		"saldo":   "1.000,00",
	})

	assert.Equal(t, "05/01/2025", got["date"])
	assert.Equal(t, "99.5", got["amount"])
	assert.Equal(t, "CAFE CENTRAL", got["description"])
	assert.Equal(t, "1000", got["balance"])
}
