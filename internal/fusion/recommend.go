package fusion

import (
	"fmt"
)

// Recommender turns a quality assessment into the short list of
// human-actionable warnings that is the primary user-facing signal for
// data-quality problems. Output order is fixed; an empty list means nothing
// triggered.
type Recommender struct {
	cfg Config
}

// NewRecommender creates a recommender over the given thresholds.
func NewRecommender(cfg Config) *Recommender {
	return &Recommender{cfg: cfg}
}

// Recommend emits the triggered messages in a deterministic order.
func (r *Recommender) Recommend(qa QualityAssessment, cv CrossValidationResult, resolutions []ConflictResolution) []string {
	var out []string
	t := r.cfg.Thresholds

	switch {
	case qa.OverallConfidence < t.MinConfidence:
		out = append(out, "Overall extraction confidence is low - manual review of all transactions recommended")
	case qa.OverallConfidence < t.HighConfidence:
		out = append(out, "Moderate extraction confidence - review low-confidence fields")
	}

	if method, score, ok := worstMethod(qa.MethodScores); ok && score < t.MinConfidence {
		out = append(out, fmt.Sprintf("Method %q scored %.2f - consider excluding it from extraction", method, score))
	}

	for _, field := range resolvedFields {
		if conf, ok := qa.FieldConfidence[field]; ok && conf < t.MinConfidence {
			out = append(out, fmt.Sprintf("Low confidence in %s values (%.2f) - verify against the source document", field, conf))
		}
	}

	if qa.CompletenessScore < 0.7 {
		out = append(out, fmt.Sprintf("Extracted transactions are incomplete (%.0f%%) - some fields may be missing", qa.CompletenessScore*100))
	}

	if qa.ConsistencyScore < t.ConsistencyLow {
		out = append(out, "Extraction methods disagree significantly - results may be unreliable")
	}

	if qa.AnomalyScore > t.AnomalyAlert {
		out = append(out, fmt.Sprintf("%.0f%% of transactions look anomalous - check for extraction artifacts", qa.AnomalyScore*100))
	}

	lowConfidence := 0
	for _, res := range resolutions {
		if res.Confidence < t.HighConfidence {
			lowConfidence++
		}
	}
	if lowConfidence > 0 {
		out = append(out, fmt.Sprintf("%d conflict(s) resolved with low confidence - verify the resolved values", lowConfidence))
	}

	return out
}

// worstMethod returns the lowest-scoring method, breaking ties toward the
// lexicographically smaller name so output stays deterministic.
func worstMethod(scores map[string]float64) (string, float64, bool) {
	worst := ""
	worstScore := 0.0
	found := false
	for m, s := range scores {
		if !found || s < worstScore || (s == worstScore && m < worst) {
			worst = m
			worstScore = s
			found = true
		}
	}
	return worst, worstScore, found
}
