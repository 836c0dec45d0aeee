package fusion

import (
	"log/slog"
	"math"
	"regexp"

	"github.com/bankfuse/bankfuse/internal/extract"
)

// Overall-confidence component weights.
const (
	weightMethodQuality = 0.30
	weightFieldQuality  = 0.25
	weightCompleteness  = 0.20
	weightConsistency   = 0.15
	weightAnomaly       = 0.10
)

// unconflictedFieldConfidence is the default per-field confidence when no
// conflict was recorded for a transaction.
const unconflictedFieldConfidence = 0.8

var normalizedDateRe = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)

var requiredFields = []string{FieldDate, FieldAmount, FieldDescription}
var optionalFields = []string{FieldBalance, FieldReference, FieldType}

// QualityAssessor derives the quality verdict for a combination run. Purely
// derived and never fails: missing inputs push scores toward zero instead of
// erroring.
type QualityAssessor struct {
	cfg      Config
	norm     *Normalizer
	detector AnomalyDetector
	logger   *slog.Logger
}

// NewQualityAssessor creates an assessor. A nil detector degrades to
// NopDetector, keeping anomaly scoring an optional enrichment.
func NewQualityAssessor(cfg Config, norm *Normalizer, detector AnomalyDetector, logger *slog.Logger) *QualityAssessor {
	if detector == nil {
		detector = NopDetector{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QualityAssessor{cfg: cfg, norm: norm, detector: detector, logger: logger}
}

// Assess computes the full quality assessment over the fused transactions.
func (q *QualityAssessor) Assess(txs []Transaction, results []extract.Result, cv CrossValidationResult) QualityAssessment {
	methodScores := q.methodScores(results)
	fieldConfidence := q.fieldConfidence(txs)
	completeness := q.completeness(txs)
	anomaly := q.anomalyScore(txs)

	overall := weightMethodQuality*meanValues(methodScores) +
		weightFieldQuality*meanValues(fieldConfidence) +
		weightCompleteness*completeness +
		weightConsistency*cv.ConsistencyScore +
		weightAnomaly*(1-anomaly)

	return QualityAssessment{
		OverallConfidence:     clamp01(overall),
		MethodScores:          methodScores,
		FieldConfidence:       fieldConfidence,
		CompletenessScore:     completeness,
		ConsistencyScore:      cv.ConsistencyScore,
		AnomalyScore:          anomaly,
		ReliabilityIndicators: q.reliability(txs, results, cv),
	}
}

// methodScores averages each method's self-reported confidence with its mean
// quality metric.
func (q *QualityAssessor) methodScores(results []extract.Result) map[string]float64 {
	scores := make(map[string]float64, len(results))
	for _, r := range results {
		scores[r.Method] = (r.Confidence + r.MeanQuality()) / 2
	}
	return scores
}

// fieldConfidence scores each canonical field: the mean per-transaction
// resolution confidence (default when unconflicted), with amount penalized
// for statistical outliers and date penalized for values that escaped
// normalization.
func (q *QualityAssessor) fieldConfidence(txs []Transaction) map[string]float64 {
	out := make(map[string]float64, len(resolvedFields))
	for _, field := range resolvedFields {
		conf := q.meanResolutionConfidence(txs, field)
		switch field {
		case FieldAmount:
			conf -= q.amountOutlierRatio(txs) * 0.5
		case FieldDate:
			conf -= q.badDateRatio(txs)
		}
		out[field] = clamp01(conf)
	}
	return out
}

// meanResolutionConfidence averages per-transaction confidence for one
// field, taking the resolution's confidence where a conflict was settled and
// the unconflicted default elsewhere.
func (q *QualityAssessor) meanResolutionConfidence(txs []Transaction, field string) float64 {
	if len(txs) == 0 {
		return 0
	}
	var sum float64
	for _, tx := range txs {
		conf := unconflictedFieldConfidence
		for _, res := range tx.Provenance.Resolutions {
			if res.Field == field {
				conf = math.Min(res.Confidence, 1)
				break
			}
		}
		sum += conf
	}
	return sum / float64(len(txs))
}

// amountOutlierRatio is the fraction of amounts beyond two standard
// deviations of the mean.
func (q *QualityAssessor) amountOutlierRatio(txs []Transaction) float64 {
	if len(txs) < 2 {
		return 0
	}
	var mean float64
	for _, tx := range txs {
		mean += tx.Amount
	}
	mean /= float64(len(txs))

	var variance float64
	for _, tx := range txs {
		diff := tx.Amount - mean
		variance += diff * diff
	}
	std := math.Sqrt(variance / float64(len(txs)))
	if std == 0 {
		return 0
	}

	outliers := 0
	for _, tx := range txs {
		if math.Abs(tx.Amount-mean) > 2*std {
			outliers++
		}
	}
	return float64(outliers) / float64(len(txs))
}

// badDateRatio is the fraction of dates that are present but not in the
// canonical DD/MM/YYYY form, i.e. values the normalizer had to pass through.
func (q *QualityAssessor) badDateRatio(txs []Transaction) float64 {
	if len(txs) == 0 {
		return 0
	}
	bad := 0
	for _, tx := range txs {
		if tx.Date != "" && !normalizedDateRe.MatchString(tx.Date) {
			bad++
		}
	}
	return float64(bad) / float64(len(txs))
}

// completeness weighs required fields (date, amount, description) at 0.7 and
// optional fields at 0.3, averaged over all transactions.
func (q *QualityAssessor) completeness(txs []Transaction) float64 {
	if len(txs) == 0 {
		return 0
	}
	var sum float64
	for _, tx := range txs {
		reqPresent := 0
		for _, f := range requiredFields {
			if tx.hasField(f) {
				reqPresent++
			}
		}
		optPresent := 0
		for _, f := range optionalFields {
			if tx.hasField(f) {
				optPresent++
			}
		}
		sum += float64(reqPresent)/float64(len(requiredFields))*0.7 +
			float64(optPresent)/float64(len(optionalFields))*0.3
	}
	return sum / float64(len(txs))
}

// anomalyScore runs the detector over (amount, description length, position)
// feature vectors. Fewer than two transactions cannot be ranked.
func (q *QualityAssessor) anomalyScore(txs []Transaction) float64 {
	if len(txs) < 2 {
		return 0
	}
	features := make([][]float64, len(txs))
	for i, tx := range txs {
		features[i] = []float64{tx.Amount, float64(len(tx.Description)), float64(i)}
	}
	return clamp01(q.detector.Score(features))
}

// reliability gathers the diagnostic counters.
func (q *QualityAssessor) reliability(txs []Transaction, results []extract.Result, cv CrossValidationResult) ReliabilityIndicators {
	times := make(map[string]float64, len(results))
	for _, r := range results {
		times[r.Method] = r.ProcessingTime.Seconds()
	}

	var fieldsPopulated int
	var conflicts int
	for _, tx := range txs {
		for _, f := range canonicalFields {
			if tx.hasField(f) {
				fieldsPopulated++
			}
		}
		conflicts += len(tx.Provenance.Resolutions)
	}

	meanFields := 0.0
	conflictRate := 0.0
	if len(txs) > 0 {
		meanFields = float64(fieldsPopulated) / float64(len(txs))
		conflictRate = float64(conflicts) / float64(len(txs))
	}

	return ReliabilityIndicators{
		MethodAgreement:          cv.AgreementPercentage,
		TransactionCount:         len(txs),
		MeanFieldsPerTransaction: meanFields,
		ProcessingSeconds:        times,
		ConflictCount:            conflicts,
		ConflictRate:             conflictRate,
	}
}

func meanValues(m map[string]float64) float64 {
	if len(m) == 0 {
		return 0
	}
	var sum float64
	for _, v := range m {
		sum += v
	}
	return sum / float64(len(m))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
