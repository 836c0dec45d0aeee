package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankfuse/bankfuse/internal/extract"
)

func newTestResolver() *ConflictResolver {
	return NewConflictResolver(DefaultConfig(), NewNormalizer(nil), nil)
}

func fuseForTest(t *testing.T, results []extract.Result, cv CrossValidationResult) []Transaction {
	t.Helper()
	return newTestFuser().Fuse(results, cv).Transactions
}

func TestConflictResolver_NoOpBelowTwoMethods(t *testing.T) {
	r := newTestResolver()

	results := []extract.Result{{
		Method:       extract.MethodCSVText,
		Transactions: []extract.RawTransaction{statementRow("15/01/2025", "10.00", "A")},
		Confidence:   0.9,
	}}
	fused := fuseForTest(t, results, CrossValidationResult{ConsistencyScore: 1})

	resolutions, out := r.Resolve(results, fused)
	assert.Nil(t, resolutions)
	assert.Equal(t, fused, out)
}

func TestConflictResolver_AmountConflictAtTwoCents(t *testing.T) {
	// Amounts differing by exactly 0.02 are beyond the 0.011 tolerance and
	// must surface as an amount_conflict.
	r := newTestResolver()

	results := []extract.Result{
		{
			Method:       extract.MethodCSVText,
			Transactions: []extract.RawTransaction{statementRow("15/01/2025", "100.00", "SHOP")},
			Confidence:   0.9,
		},
		{
			Method:       extract.MethodOCR,
			Transactions: []extract.RawTransaction{statementRow("15/01/2025", "100.02", "SHOP")},
			Confidence:   0.9,
		},
	}
	fused := fuseForTest(t, results, CrossValidationResult{ConsistencyScore: 0.9})

	resolutions, _ := r.Resolve(results, fused)
	require.Len(t, resolutions, 1)
	assert.Equal(t, "amount_conflict", resolutions[0].ConflictType)
}

func TestConflictResolver_NoConflictWithinTolerance(t *testing.T) {
	r := newTestResolver()

	results := []extract.Result{
		{
			Method:       extract.MethodCSVText,
			Transactions: []extract.RawTransaction{statementRow("15/01/2025", "100.00", "SHOP")},
			Confidence:   0.9,
		},
		{
			Method:       extract.MethodOCR,
			Transactions: []extract.RawTransaction{statementRow("15/01/2025", "100.01", "SHOP")},
			Confidence:   0.9,
		},
	}
	fused := fuseForTest(t, results, CrossValidationResult{ConsistencyScore: 0.9})

	resolutions, _ := r.Resolve(results, fused)
	assert.Empty(t, resolutions)
}

func TestConflictResolver_HigherConfidenceWins(t *testing.T) {
	// Scenario: 0.95-confidence method proposes 100.00, 0.4-confidence method
	// proposes 100.05; the high-confidence value must win.
	r := newTestResolver()

	results := []extract.Result{
		{
			Method:       extract.MethodCSVText,
			Transactions: []extract.RawTransaction{statementRow("15/01/2025", "100.00", "SHOP")},
			Confidence:   0.95,
		},
		{
			Method:       extract.MethodOCR,
			Transactions: []extract.RawTransaction{statementRow("15/01/2025", "100.05", "SHOP")},
			Confidence:   0.4,
		},
	}
	fused := fuseForTest(t, results, CrossValidationResult{ConsistencyScore: 0.9})

	resolutions, out := r.Resolve(results, fused)
	require.Len(t, resolutions, 1)

	res := resolutions[0]
	assert.Equal(t, "100.00", res.ResolvedValue)
	assert.Equal(t, extract.MethodCSVText, res.WinningMethod)
	assert.InDelta(t, 0.95*0.9*1.0, res.Confidence, 1e-9)

	// The fused transaction is overwritten with the winner.
	assert.InDelta(t, 100.00, out[0].Amount, 1e-9)
	require.Len(t, out[0].Provenance.Resolutions, 1)

	// Evidence preserves both methods' raw values and scores.
	require.Contains(t, res.Evidence, extract.MethodOCR)
	assert.Equal(t, "100.05", res.Evidence[extract.MethodOCR].Value)
}

func TestConflictResolver_AgreementPoolsScores(t *testing.T) {
	// Two weaker methods proposing the same value outvote one stronger one.
	r := newTestResolver()

	results := []extract.Result{
		{
			Method:       extract.MethodCSVText,
			Transactions: []extract.RawTransaction{statementRow("15/01/2025", "200.00", "SHOP")},
			Confidence:   0.9,
		},
		{
			Method:       extract.MethodOCR,
			Transactions: []extract.RawTransaction{statementRow("15/01/2025", "100.00", "SHOP")},
			Confidence:   0.7,
		},
		{
			Method:       extract.MethodTableGrid,
			Transactions: []extract.RawTransaction{statementRow("15/01/2025", "100.00", "SHOP")},
			Confidence:   0.7,
		},
	}
	fused := fuseForTest(t, results, CrossValidationResult{ConsistencyScore: 0.9})

	resolutions, _ := r.Resolve(results, fused)
	require.Len(t, resolutions, 1)
	// csvtext alone: 0.9*0.9 = 0.81; ocr+tablegrid: 0.7*0.8 + 0.7*0.75 = 1.085.
	assert.Equal(t, "100.00", resolutions[0].ResolvedValue)
	assert.Equal(t, extract.MethodOCR, resolutions[0].WinningMethod)
}

func TestConflictResolver_MultipleResolutionsAccumulate(t *testing.T) {
	r := newTestResolver()

	results := []extract.Result{
		{
			Method: extract.MethodCSVText,
			Transactions: []extract.RawTransaction{{
				"date":        "15/01/2025",
				"amount":      "100.00",
				"description": "COFFEE SHOP",
			}},
			Confidence: 0.9,
		},
		{
			Method: extract.MethodOCR,
			Transactions: []extract.RawTransaction{{
				"date":        "16/01/2025",
				"amount":      "105.00",
				"description": "TOTALLY DIFFERENT TEXT",
			}},
			Confidence: 0.5,
		},
	}
	fused := fuseForTest(t, results, CrossValidationResult{ConsistencyScore: 0.9})

	resolutions, out := r.Resolve(results, fused)
	require.Len(t, resolutions, 3) // date, amount, description all conflict
	assert.Len(t, out[0].Provenance.Resolutions, 3)

	types := make([]string, 0, len(resolutions))
	for _, res := range resolutions {
		types = append(types, res.ConflictType)
	}
	assert.ElementsMatch(t, []string{"date_conflict", "amount_conflict", "description_conflict"}, types)
}

func TestConflictResolver_EquivalentSerializationsDoNotConflict(t *testing.T) {
	// Scenario: "$1,234.56" vs European "1.234,56" normalize identically.
	r := newTestResolver()

	results := []extract.Result{
		{
			Method:       extract.MethodCSVText,
			Transactions: []extract.RawTransaction{statementRow("15/01/2025", "$1,234.56", "SHOP")},
			Confidence:   0.9,
		},
		{
			Method:       extract.MethodOCR,
			Transactions: []extract.RawTransaction{statementRow("15/01/2025", "1.234,56", "SHOP")},
			Confidence:   0.8,
		},
	}
	fused := fuseForTest(t, results, CrossValidationResult{ConsistencyScore: 0.9})

	resolutions, _ := r.Resolve(results, fused)
	assert.Empty(t, resolutions)
}
