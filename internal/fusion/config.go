// Package fusion combines the outputs of several independent extraction
// methods into a single transaction list with a quality assessment. The
// pipeline is normalize -> cross-validate -> fuse -> resolve conflicts ->
// assess -> recommend, and it is stateless: an Engine can be shared by any
// number of goroutines.
package fusion

import (
	"github.com/bankfuse/bankfuse/internal/extract"
)

// Thresholds groups the tunable cut-offs used across the pipeline.
type Thresholds struct {
	// MinConfidence is the floor below which a score is flagged for review.
	MinConfidence float64
	// HighConfidence marks a score that needs no further attention.
	HighConfidence float64
	// ConsistencyHigh selects weighted voting when cross-validation meets it.
	ConsistencyHigh float64
	// ConsistencyLow selects best-method fallback when cross-validation is
	// below it; scores in between use consensus fusion.
	ConsistencyLow float64
	// AnomalyAlert is the anomaly-score level that triggers a recommendation.
	AnomalyAlert float64
	// AmountTolerance is the absolute difference (one cent plus float slack)
	// under which two amounts count as equal.
	AmountTolerance float64
	// DescriptionSimilarity is the minimum sequence-similarity ratio for two
	// descriptions to count as equal. Absorbs OCR noise.
	DescriptionSimilarity float64
	// PairAgreement is the fraction of compared fields that must agree for a
	// transaction pair to count as in agreement.
	PairAgreement float64
}

// Config is the immutable configuration of the fusion engine. Construct it
// once and treat it as read-only; the engine never mutates it.
type Config struct {
	// MethodWeights are prior weights per extraction method. Methods not
	// listed get extract.DefaultBaseWeight.
	MethodWeights map[string]float64
	// FieldWeights bias conflict resolution toward the fields that matter
	// most for a bank statement.
	FieldWeights map[string]float64
	Thresholds   Thresholds
}

// DefaultConfig returns the standard weight tables and thresholds.
func DefaultConfig() Config {
	methods := make(map[string]float64, len(extract.BaseWeights))
	for m, w := range extract.BaseWeights {
		methods[m] = w
	}
	return Config{
		MethodWeights: methods,
		FieldWeights: map[string]float64{
			FieldDate:        1.0,
			FieldAmount:      1.0,
			FieldDescription: 0.8,
			FieldBalance:     0.9,
			FieldReference:   0.7,
		},
		Thresholds: Thresholds{
			MinConfidence:         0.5,
			HighConfidence:        0.7,
			ConsistencyHigh:       0.8,
			ConsistencyLow:        0.6,
			AnomalyAlert:          0.2,
			AmountTolerance:       0.011,
			DescriptionSimilarity: 0.8,
			PairAgreement:         0.7,
		},
	}
}

// methodWeight returns the configured prior for a method, falling back to the
// shared base table and then the default.
func (c Config) methodWeight(method string) float64 {
	if w, ok := c.MethodWeights[method]; ok {
		return w
	}
	return extract.BaseWeight(method)
}

// fieldWeight returns the resolution weight for a field, defaulting to the
// reference weight for fields outside the table.
func (c Config) fieldWeight(field string) float64 {
	if w, ok := c.FieldWeights[field]; ok {
		return w
	}
	return 0.7
}
