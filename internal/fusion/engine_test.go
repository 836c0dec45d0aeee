package fusion

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankfuse/bankfuse/internal/extract"
)

func newTestEngine() *Engine {
	return New(DefaultConfig(), NewIsolationForest(), nil)
}

func TestEngine_EmptyInputIsPreconditionViolation(t *testing.T) {
	e := newTestEngine()

	result, err := e.CombineResults(nil)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestEngine_SingleMethodPassthrough(t *testing.T) {
	e := newTestEngine()

	result, err := e.CombineResults([]extract.Result{{
		Method: extract.MethodCSVText,
		Transactions: []extract.RawTransaction{
			statementRow("15/01/2025", "100.00", "COFFEE"),
			statementRow("16/01/2025", "-20.00", "BAKERY"),
		},
		Confidence: 0.9,
	}})
	require.NoError(t, err)

	assert.Equal(t, 1.0, result.CrossValidation.ConsistencyScore)
	require.Len(t, result.Transactions, 2)
	assert.Equal(t, "15/01/2025", result.Transactions[0].Date)
	assert.InDelta(t, 100.00, result.Transactions[0].Amount, 1e-9)
	assert.Equal(t, "COFFEE", result.Transactions[0].Description)
	assert.Empty(t, result.ConflictResolutions)
	assert.Equal(t, StrategySingleMethod, result.ProcessingSummary.FusionStrategy)
}

func TestEngine_FullAgreementScenario(t *testing.T) {
	// Two methods agree exactly on three transactions: full consistency,
	// zero discrepancies, zero conflict resolutions.
	rows := []extract.RawTransaction{
		statementRow("01/02/2025", "10.00", "COFFEE SHOP"),
		statementRow("02/02/2025", "-25.50", "SUPERMARKET"),
		statementRow("03/02/2025", "1200.00", "SALARY"),
	}

	e := newTestEngine()
	result, err := e.CombineResults([]extract.Result{
		{Method: extract.MethodCSVText, Transactions: rows, Confidence: 0.9},
		{Method: extract.MethodPDFText, Transactions: rows, Confidence: 0.85},
	})
	require.NoError(t, err)

	assert.Equal(t, 1.0, result.CrossValidation.ConsistencyScore)
	assert.Empty(t, result.CrossValidation.Discrepancies)
	assert.Empty(t, result.ConflictResolutions)
	assert.Len(t, result.Transactions, 3)
	assert.Equal(t, StrategyWeightedVoting, result.ProcessingSummary.FusionStrategy)
}

func TestEngine_DisagreeingMethodsStillProduceAResult(t *testing.T) {
	// The engine must never fail on bad data, only report low confidence.
	e := newTestEngine()

	result, err := e.CombineResults([]extract.Result{
		{
			Method: extract.MethodOCR,
			Transactions: []extract.RawTransaction{
				statementRow("garbled", "??", "NOISE"),
			},
			Confidence: 0.1,
		},
		{
			Method: extract.MethodTableGrid,
			Transactions: []extract.RawTransaction{
				statementRow("15/01/2025", "10.00", "REAL ROW"),
				statementRow("16/01/2025", "20.00", "ANOTHER ROW"),
			},
			Confidence: 0.2,
		},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.Transactions)
	assert.NotEmpty(t, result.Recommendations)
	assert.Less(t, result.QualityAssessment.OverallConfidence, 0.7)
}

func TestEngine_ConflictSurfacesInCombinedResult(t *testing.T) {
	e := newTestEngine()

	result, err := e.CombineResults([]extract.Result{
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
	})
	require.NoError(t, err)

	require.Len(t, result.ConflictResolutions, 1)
	res := result.ConflictResolutions[0]
	assert.Equal(t, "amount_conflict", res.ConflictType)
	assert.Equal(t, extract.MethodCSVText, res.WinningMethod)
	assert.InDelta(t, 100.00, result.Transactions[0].Amount, 1e-9)
}

func TestEngine_MethodContributionsSumToHundred(t *testing.T) {
	rows := []extract.RawTransaction{statementRow("15/01/2025", "10.00", "A")}

	e := newTestEngine()
	result, err := e.CombineResults([]extract.Result{
		{Method: extract.MethodCSVText, Transactions: rows, Confidence: 0.9},
		{Method: extract.MethodPDFText, Transactions: rows, Confidence: 0.8},
		{Method: extract.MethodOCR, Transactions: rows, Confidence: 0.7},
	})
	require.NoError(t, err)

	var sum float64
	for _, c := range result.MethodContributions {
		sum += c
	}
	assert.InDelta(t, 100.0, sum, 1e-6)
}

func TestEngine_SafeForConcurrentUse(t *testing.T) {
	e := newTestEngine()
	rows := []extract.RawTransaction{
		statementRow("15/01/2025", "10.00", "A"),
		statementRow("16/01/2025", "20.00", "B"),
	}
	input := []extract.Result{
		{Method: extract.MethodCSVText, Transactions: rows, Confidence: 0.9},
		{Method: extract.MethodOCR, Transactions: rows, Confidence: 0.8},
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := e.CombineResults(input)
			assert.NoError(t, err)
			assert.Len(t, result.Transactions, 2)
		}()
	}
	wg.Wait()
}
