package fusion

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecommender_NothingTriggered(t *testing.T) {
	r := NewRecommender(DefaultConfig())

	qa := QualityAssessment{
		OverallConfidence: 0.92,
		MethodScores:      map[string]float64{"csvtext": 0.9, "ocr": 0.8},
		FieldConfidence:   map[string]float64{"date": 0.9, "amount": 0.85},
		CompletenessScore: 0.95,
		ConsistencyScore:  0.9,
		AnomalyScore:      0.05,
	}

	assert.Empty(t, r.Recommend(qa, CrossValidationResult{}, nil))
}

func TestRecommender_LowOverallConfidence(t *testing.T) {
	r := NewRecommender(DefaultConfig())

	t.Run("below 0.5 asks for full manual review", func(t *testing.T) {
		out := r.Recommend(QualityAssessment{OverallConfidence: 0.3, CompletenessScore: 1, ConsistencyScore: 1}, CrossValidationResult{}, nil)
		require.NotEmpty(t, out)
		assert.Contains(t, out[0], "manual review of all transactions")
	})

	t.Run("between 0.5 and 0.7 asks for field review", func(t *testing.T) {
		out := r.Recommend(QualityAssessment{OverallConfidence: 0.6, CompletenessScore: 1, ConsistencyScore: 1}, CrossValidationResult{}, nil)
		require.NotEmpty(t, out)
		assert.Contains(t, out[0], "review low-confidence fields")
	})
}

func TestRecommender_AllTriggers(t *testing.T) {
	r := NewRecommender(DefaultConfig())

	qa := QualityAssessment{
		OverallConfidence: 0.4,
		MethodScores:      map[string]float64{"ocr": 0.3, "csvtext": 0.9},
		FieldConfidence:   map[string]float64{"date": 0.4, "amount": 0.45, "description": 0.9},
		CompletenessScore: 0.5,
		ConsistencyScore:  0.4,
		AnomalyScore:      0.3,
	}
	resolutions := []ConflictResolution{
		{Field: FieldAmount, Confidence: 0.5},
		{Field: FieldDate, Confidence: 0.9},
	}

	out := r.Recommend(qa, CrossValidationResult{}, resolutions)
	joined := strings.Join(out, "\n")

	assert.Contains(t, joined, "manual review of all transactions")
	assert.Contains(t, joined, `Method "ocr"`)
	assert.Contains(t, joined, "Low confidence in date")
	assert.Contains(t, joined, "Low confidence in amount")
	assert.NotContains(t, joined, "Low confidence in description")
	assert.Contains(t, joined, "incomplete")
	assert.Contains(t, joined, "disagree significantly")
	assert.Contains(t, joined, "anomalous")
	assert.Contains(t, joined, "1 conflict(s) resolved with low confidence")
}

func TestRecommender_DeterministicOrder(t *testing.T) {
	r := NewRecommender(DefaultConfig())

	qa := QualityAssessment{
		OverallConfidence: 0.4,
		FieldConfidence:   map[string]float64{"amount": 0.4, "date": 0.4},
		CompletenessScore: 1,
		ConsistencyScore:  1,
	}

	first := r.Recommend(qa, CrossValidationResult{}, nil)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, r.Recommend(qa, CrossValidationResult{}, nil))
	}
	// Field flags follow the canonical field order, date before amount.
	require.Len(t, first, 3)
	assert.Contains(t, first[1], "date")
	assert.Contains(t, first[2], "amount")
}
