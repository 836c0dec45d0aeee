package fusion

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/shopspring/decimal"

	"github.com/bankfuse/bankfuse/internal/extract"
)

// comparedFields are the fields the cross-validator scores per transaction
// pair. Reference participates only when a method actually reported it.
var comparedFields = []string{
	FieldDate, FieldAmount, FieldDescription, FieldBalance, FieldReference,
}

// CrossValidator measures pairwise agreement between extraction methods.
//
// Alignment is positional: index i in one method's list is assumed to be the
// same real-world transaction as index i in another's. Methods that merge,
// split or drop rows violate the assumption; the count-mismatch discrepancy
// is the signal for that, not a correction of it.
type CrossValidator struct {
	cfg    Config
	norm   *Normalizer
	logger *slog.Logger
}

// NewCrossValidator creates a cross-validator over the given config.
func NewCrossValidator(cfg Config, norm *Normalizer, logger *slog.Logger) *CrossValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &CrossValidator{cfg: cfg, norm: norm, logger: logger}
}

// Validate compares every unordered pair of methods. With fewer than two
// methods there is nothing to compare and the result is trivial full
// agreement.
func (v *CrossValidator) Validate(results []extract.Result) CrossValidationResult {
	if len(results) < 2 {
		return CrossValidationResult{
			ConsistencyScore:    1.0,
			AgreementPercentage: 100.0,
			ValidationDetails: ValidationDetails{
				MethodCount: len(results),
				Note:        "cross-validation requires at least two methods",
			},
		}
	}

	var (
		discrepancies []Discrepancy
		agreements    int
		totalPairs    int
	)

	for i := 0; i < len(results); i++ {
		for j := i + 1; j < len(results); j++ {
			a, b := results[i], results[j]

			if len(a.Transactions) != len(b.Transactions) {
				discrepancies = append(discrepancies, Discrepancy{
					Type:    "transaction_count_mismatch",
					Index:   -1,
					Methods: []string{a.Method, b.Method},
					Values: map[string]string{
						a.Method: strconv.Itoa(len(a.Transactions)),
						b.Method: strconv.Itoa(len(b.Transactions)),
					},
					Severity: SeverityHigh,
				})
			}

			n := min(len(a.Transactions), len(b.Transactions))
			for idx := 0; idx < n; idx++ {
				agreed, found := v.compareTransactions(idx, a, b, a.Transactions[idx], b.Transactions[idx])
				discrepancies = append(discrepancies, found...)
				if agreed < 0 {
					continue // nothing comparable at this index
				}
				totalPairs++
				if agreed == 1 {
					agreements++
				}
			}
		}
	}

	pct := 0.0
	if totalPairs > 0 {
		pct = float64(agreements) / float64(totalPairs) * 100
	}

	v.logger.Debug("cross-validation complete",
		slog.Int("methods", len(results)),
		slog.Int("pairs", totalPairs),
		slog.Float64("agreement_pct", pct),
	)

	return CrossValidationResult{
		ConsistencyScore:    pct / 100,
		AgreementPercentage: pct,
		Discrepancies:       discrepancies,
		ValidationDetails: ValidationDetails{
			MethodCount:   len(results),
			PairsCompared: totalPairs,
			Agreements:    agreements,
		},
	}
}

// compareTransactions scores one aligned transaction pair. Returns 1 when the
// pair agrees on at least the configured fraction of compared fields, 0 when
// it does not, and -1 when no field was comparable.
func (v *CrossValidator) compareTransactions(idx int, a, b extract.Result, ta, tb extract.RawTransaction) (int, []Discrepancy) {
	var (
		compared      int
		agreed        int
		discrepancies []Discrepancy
	)

	for _, field := range comparedFields {
		va, okA := rawField(ta, field)
		vb, okB := rawField(tb, field)
		okA = okA && strings.TrimSpace(va) != ""
		okB = okB && strings.TrimSpace(vb) != ""

		if !okA && !okB {
			continue
		}
		compared++

		if okA != okB {
			discrepancies = append(discrepancies, Discrepancy{
				Type:     "missing_field",
				Field:    field,
				Index:    idx,
				Methods:  []string{a.Method, b.Method},
				Values:   map[string]string{a.Method: va, b.Method: vb},
				Severity: SeverityMedium,
			})
			continue
		}

		if v.fieldsEqual(field, va, vb) {
			agreed++
			continue
		}

		severity := SeverityMedium
		switch field {
		case FieldDate, FieldAmount, FieldBalance:
			severity = SeverityHigh
		}
		discrepancies = append(discrepancies, Discrepancy{
			Type:     fmt.Sprintf("%s_mismatch", field),
			Field:    field,
			Index:    idx,
			Methods:  []string{a.Method, b.Method},
			Values:   map[string]string{a.Method: va, b.Method: vb},
			Severity: severity,
		})
	}

	if compared == 0 {
		return -1, discrepancies
	}
	if float64(agreed)/float64(compared) >= v.cfg.Thresholds.PairAgreement {
		return 1, discrepancies
	}
	return 0, discrepancies
}

// fieldsEqual applies field-typed equality: numeric tolerance for amounts,
// normalized equality for dates, sequence similarity for descriptions, exact
// trimmed equality for the rest.
func (v *CrossValidator) fieldsEqual(field, a, b string) bool {
	switch field {
	case FieldAmount:
		da, errA := v.norm.ParseAmount(a)
		db, errB := v.norm.ParseAmount(b)
		if errA != nil {
			da = decimal.Zero
		}
		if errB != nil {
			db = decimal.Zero
		}
		tolerance := decimal.NewFromFloat(v.cfg.Thresholds.AmountTolerance)
		return da.Sub(db).Abs().LessThanOrEqual(tolerance)
	case FieldDate:
		return v.norm.NormalizeDate(a) == v.norm.NormalizeDate(b)
	case FieldDescription:
		return v.descriptionSimilarity(a, b) >= v.cfg.Thresholds.DescriptionSimilarity
	default:
		return strings.TrimSpace(a) == strings.TrimSpace(b)
	}
}

// descriptionSimilarity is an edit-distance ratio over normalized text,
// tolerant of OCR character noise.
func (v *CrossValidator) descriptionSimilarity(a, b string) float64 {
	na, nb := v.norm.NormalizeText(a), v.norm.NormalizeText(b)
	if na == nb {
		return 1.0
	}
	maxLen := max(len(na), len(nb))
	if maxLen == 0 {
		return 1.0
	}
	dist := fuzzy.LevenshteinDistance(na, nb)
	return 1.0 - float64(dist)/float64(maxLen)
}
