package fusion

import (
	"time"
)

// Canonical transaction field names shared by the whole pipeline.
const (
	FieldDate        = "date"
	FieldAmount      = "amount"
	FieldDescription = "description"
	FieldBalance     = "balance"
	FieldReference   = "reference"
	FieldType        = "type"
)

// Discrepancy severities, high for fields that change money, medium for
// everything else.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
)

// Fusion strategy names recorded on transaction provenance.
const (
	StrategyWeightedVoting = "weighted_voting"
	StrategyConsensus      = "consensus"
	StrategyBestMethod     = "best_method"
	StrategySingleMethod   = "single_method"
)

// Transaction is the canonical, post-normalization transaction. Domain fields
// are typed; everything the pipeline learns about how the value was produced
// lives in Provenance instead of being smuggled into the field namespace.
type Transaction struct {
	// Date is normalized to DD/MM/YYYY; empty when the method reported none.
	Date string `json:"date,omitempty"`
	// Amount is sign-bearing. Unparsable amounts normalize to 0 with the raw
	// string kept in Provenance.RawAmount.
	Amount      float64  `json:"amount"`
	Description string   `json:"description,omitempty"`
	Balance     *float64 `json:"balance,omitempty"`
	Reference   string   `json:"reference,omitempty"`
	Type        string   `json:"type,omitempty"`

	Provenance Provenance `json:"provenance"`
}

// Provenance is the audit annex of a fused transaction.
type Provenance struct {
	FusionMethod        string               `json:"fusion_method,omitempty"`
	PrimaryMethod       string               `json:"primary_method,omitempty"`
	SelectedMethod      string               `json:"selected_method,omitempty"`
	MethodWeights       map[string]float64   `json:"method_weights,omitempty"`
	ConsensusSources    []string             `json:"consensus_sources,omitempty"`
	ConsensusConfidence float64              `json:"consensus_confidence,omitempty"`
	Resolutions         []ConflictResolution `json:"conflict_resolutions,omitempty"`
	// RawAmount holds the original amount string when parsing failed, so a
	// true zero stays distinguishable from a parse failure.
	RawAmount string `json:"raw_amount,omitempty"`
	// MissingFields lists canonical fields the source row never carried.
	MissingFields []string `json:"missing_fields,omitempty"`
}

// FieldEvidence is one method's contribution to a disputed field.
type FieldEvidence struct {
	Value string  `json:"value"`
	Score float64 `json:"score"`
}

// ConflictResolution records how a disputed field was settled. Immutable once
// created; referenced by the transaction it applies to and by the combined
// result.
type ConflictResolution struct {
	TransactionIndex int                      `json:"transaction_index"`
	Field            string                   `json:"field"`
	ResolvedValue    string                   `json:"resolved_value"`
	WinningMethod    string                   `json:"winning_method"`
	Confidence       float64                  `json:"confidence"`
	ConflictType     string                   `json:"conflict_type"`
	Evidence         map[string]FieldEvidence `json:"evidence"`
}

// Discrepancy is one disagreement found during cross-validation.
type Discrepancy struct {
	// Type is e.g. "amount_mismatch", "missing_field",
	// "transaction_count_mismatch".
	Type     string            `json:"type"`
	Field    string            `json:"field,omitempty"`
	Index    int               `json:"index"`
	Methods  []string          `json:"methods"`
	Values   map[string]string `json:"values"`
	Severity string            `json:"severity"`
}

// ValidationDetails summarizes what the cross-validator compared.
type ValidationDetails struct {
	MethodCount   int    `json:"method_count"`
	PairsCompared int    `json:"pairs_compared"`
	Agreements    int    `json:"agreements"`
	Note          string `json:"note,omitempty"`
}

// CrossValidationResult is the pairwise agreement measurement across methods.
type CrossValidationResult struct {
	ConsistencyScore    float64           `json:"consistency_score"`
	AgreementPercentage float64           `json:"agreement_percentage"`
	Discrepancies       []Discrepancy     `json:"discrepancies,omitempty"`
	ValidationDetails   ValidationDetails `json:"validation_details"`
}

// ReliabilityIndicators are diagnostic counters attached to the quality
// assessment.
type ReliabilityIndicators struct {
	MethodAgreement          float64            `json:"method_agreement"`
	TransactionCount         int                `json:"transaction_count"`
	MeanFieldsPerTransaction float64            `json:"mean_fields_per_transaction"`
	ProcessingSeconds        map[string]float64 `json:"processing_seconds"`
	ConflictCount            int                `json:"conflict_count"`
	ConflictRate             float64            `json:"conflict_rate"`
}

// QualityAssessment is the derived, read-only quality verdict for one
// combination call.
type QualityAssessment struct {
	OverallConfidence     float64               `json:"overall_confidence"`
	MethodScores          map[string]float64    `json:"method_scores"`
	FieldConfidence       map[string]float64    `json:"field_confidence"`
	CompletenessScore     float64               `json:"completeness_score"`
	ConsistencyScore      float64               `json:"consistency_score"`
	AnomalyScore          float64               `json:"anomaly_score"`
	ReliabilityIndicators ReliabilityIndicators `json:"reliability_indicators"`
}

// ProcessingSummary describes the combination run itself.
type ProcessingSummary struct {
	MethodsUsed      []string  `json:"methods_used"`
	FusionStrategy   string    `json:"fusion_strategy"`
	TotalTimeSeconds float64   `json:"total_time_seconds"`
	CombinedAt       time.Time `json:"combined_at"`
}

// CombinedResult is the terminal artifact of the fusion core. Owned by the
// caller.
type CombinedResult struct {
	Transactions        []Transaction         `json:"transactions"`
	QualityAssessment   QualityAssessment     `json:"quality_assessment"`
	CrossValidation     CrossValidationResult `json:"cross_validation"`
	MethodContributions map[string]float64    `json:"method_contributions"`
	ConflictResolutions []ConflictResolution  `json:"conflict_resolutions,omitempty"`
	Recommendations     []string              `json:"recommendations,omitempty"`
	ProcessingSummary   ProcessingSummary     `json:"processing_summary"`
}
