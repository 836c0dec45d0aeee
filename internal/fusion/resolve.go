package fusion

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bankfuse/bankfuse/internal/extract"
)

// resolvedFields are the fields re-checked against every original method
// after fusion.
var resolvedFields = []string{FieldDate, FieldAmount, FieldDescription, FieldBalance}

// ConflictResolver arbitrates fields where methods still disagree after
// fusion. Every contributing value is scored by method confidence x method
// prior x field weight; identical values pool their scores and the highest
// aggregate wins. The loser's evidence is preserved on the resolution record.
type ConflictResolver struct {
	cfg    Config
	norm   *Normalizer
	logger *slog.Logger
}

// NewConflictResolver creates a resolver over the given config.
func NewConflictResolver(cfg Config, norm *Normalizer, logger *slog.Logger) *ConflictResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConflictResolver{cfg: cfg, norm: norm, logger: logger}
}

// Resolve detects and settles per-field conflicts, overwriting the fused
// transaction with each winner and accumulating the audit trail on its
// provenance. No-op with fewer than two methods.
func (r *ConflictResolver) Resolve(results []extract.Result, fused []Transaction) ([]ConflictResolution, []Transaction) {
	if len(results) < 2 {
		return nil, fused
	}

	var resolutions []ConflictResolution

	for idx := range fused {
		for _, field := range resolvedFields {
			values := r.gatherValues(results, idx, field)
			if len(values) < 2 {
				continue
			}
			if !r.isConflict(field, values) {
				continue
			}

			res := r.arbitrate(idx, field, values)
			fused[idx].setField(field, res.ResolvedValue, r.norm)
			fused[idx].Provenance.Resolutions = append(fused[idx].Provenance.Resolutions, res)
			resolutions = append(resolutions, res)

			r.logger.Debug("conflict resolved",
				slog.Int("index", idx),
				slog.String("field", field),
				slog.String("winner", res.WinningMethod),
				slog.Float64("confidence", res.Confidence),
			)
		}
	}

	return resolutions, fused
}

// methodValue pairs a method with the value it proposed for one field.
type methodValue struct {
	method     string
	confidence float64
	value      string
}

// gatherValues collects each method's non-empty raw value for a field at one
// transaction index, in method order.
func (r *ConflictResolver) gatherValues(results []extract.Result, idx int, field string) []methodValue {
	var out []methodValue
	for _, res := range results {
		if idx >= len(res.Transactions) {
			continue
		}
		v, ok := rawField(res.Transactions[idx], field)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		out = append(out, methodValue{method: res.Method, confidence: res.Confidence, value: v})
	}
	return out
}

// isConflict applies field-typed disagreement rules: amounts conflict when
// the normalized spread exceeds the tolerance, dates when more than one
// normalized value exists, everything else on distinct normalized text.
func (r *ConflictResolver) isConflict(field string, values []methodValue) bool {
	switch field {
	case FieldAmount:
		var lo, hi decimal.Decimal
		for i, mv := range values {
			d, err := r.norm.ParseAmount(mv.value)
			if err != nil {
				d = decimal.Zero
			}
			if i == 0 || d.LessThan(lo) {
				lo = d
			}
			if i == 0 || d.GreaterThan(hi) {
				hi = d
			}
		}
		tolerance := decimal.NewFromFloat(r.cfg.Thresholds.AmountTolerance)
		return hi.Sub(lo).GreaterThan(tolerance)
	case FieldDate:
		distinct := make(map[string]struct{}, len(values))
		for _, mv := range values {
			distinct[r.norm.NormalizeDate(mv.value)] = struct{}{}
		}
		return len(distinct) > 1
	default:
		distinct := make(map[string]struct{}, len(values))
		for _, mv := range values {
			distinct[r.norm.NormalizeText(mv.value)] = struct{}{}
		}
		return len(distinct) > 1
	}
}

// arbitrate picks the winning value: scores pool across methods proposing the
// same normalized value, the highest aggregate wins, ties break toward the
// value scored first.
func (r *ConflictResolver) arbitrate(idx int, field string, values []methodValue) ConflictResolution {
	fieldWeight := r.cfg.fieldWeight(field)

	type candidate struct {
		representative string
		aggregate      float64
		topMethod      string
		topScore       float64
	}

	var order []string
	candidates := make(map[string]*candidate)
	evidence := make(map[string]FieldEvidence, len(values))

	for _, mv := range values {
		score := mv.confidence * r.cfg.methodWeight(mv.method) * fieldWeight
		evidence[mv.method] = FieldEvidence{Value: mv.value, Score: score}

		key := r.normalizedKey(field, mv.value)
		c, ok := candidates[key]
		if !ok {
			c = &candidate{representative: mv.value}
			candidates[key] = c
			order = append(order, key)
		}
		c.aggregate += score
		if score > c.topScore {
			c.topScore = score
			c.topMethod = mv.method
		}
	}

	winner := candidates[order[0]]
	for _, key := range order[1:] {
		if candidates[key].aggregate > winner.aggregate {
			winner = candidates[key]
		}
	}

	return ConflictResolution{
		TransactionIndex: idx,
		Field:            field,
		ResolvedValue:    winner.representative,
		WinningMethod:    winner.topMethod,
		Confidence:       winner.aggregate,
		ConflictType:     fmt.Sprintf("%s_conflict", field),
		Evidence:         evidence,
	}
}

// normalizedKey groups identical proposals so methods agreeing on a value
// pool their scores.
func (r *ConflictResolver) normalizedKey(field, value string) string {
	switch field {
	case FieldAmount, FieldBalance:
		d, err := r.norm.ParseAmount(value)
		if err != nil {
			return "unparsable:" + strings.TrimSpace(value)
		}
		return d.String()
	case FieldDate:
		return r.norm.NormalizeDate(value)
	default:
		return r.norm.NormalizeText(value)
	}
}
