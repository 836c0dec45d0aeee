package fusion

import (
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/bankfuse/bankfuse/internal/extract"
)

// fusionOutcome carries the fused list plus the bookkeeping the engine folds
// into the combined result.
type fusionOutcome struct {
	Transactions  []Transaction
	Strategy      string
	Contributions map[string]float64
}

// Fuser merges the methods' transaction lists into one, choosing its strategy
// from how well the methods agreed: high consistency trusts the single best
// weighted method, moderate consistency synthesizes a consensus, low
// consistency falls back to the best individual method.
type Fuser struct {
	cfg    Config
	norm   *Normalizer
	logger *slog.Logger
}

// NewFuser creates a fuser over the given config.
func NewFuser(cfg Config, norm *Normalizer, logger *slog.Logger) *Fuser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fuser{cfg: cfg, norm: norm, logger: logger}
}

// Fuse produces one transaction list from all method outputs. Deterministic
// for identical inputs; ties always break toward the earlier method in the
// input order.
func (f *Fuser) Fuse(results []extract.Result, cv CrossValidationResult) fusionOutcome {
	if len(results) == 1 {
		txs := make([]Transaction, 0, len(results[0].Transactions))
		for _, raw := range results[0].Transactions {
			tx := fromRaw(raw, f.norm)
			tx.Provenance.FusionMethod = StrategySingleMethod
			tx.Provenance.PrimaryMethod = results[0].Method
			txs = append(txs, tx)
		}
		return fusionOutcome{
			Transactions:  txs,
			Strategy:      StrategySingleMethod,
			Contributions: map[string]float64{results[0].Method: 100},
		}
	}

	switch {
	case cv.ConsistencyScore >= f.cfg.Thresholds.ConsistencyHigh:
		return f.weightedVoting(results)
	case cv.ConsistencyScore >= f.cfg.Thresholds.ConsistencyLow:
		return f.consensus(results)
	default:
		return f.bestMethod(results)
	}
}

// weightedVoting scores every method by prior weight x self-reported
// confidence x mean quality, normalizes the weights to sum 1, and emits the
// highest-weight method's list annotated with the full weight table.
func (f *Fuser) weightedVoting(results []extract.Result) fusionOutcome {
	weights := make(map[string]float64, len(results))
	var total float64
	for _, r := range results {
		w := f.cfg.methodWeight(r.Method) * r.Confidence * r.MeanQuality()
		weights[r.Method] = w
		total += w
	}
	if total > 0 {
		for m := range weights {
			weights[m] /= total
		}
	}

	primary := results[0]
	for _, r := range results[1:] {
		if weights[r.Method] > weights[primary.Method] {
			primary = r
		}
	}

	f.logger.Debug("weighted voting selected primary method",
		slog.String("method", primary.Method),
		slog.Float64("weight", weights[primary.Method]),
	)

	txs := make([]Transaction, 0, len(primary.Transactions))
	for _, raw := range primary.Transactions {
		tx := fromRaw(raw, f.norm)
		tx.Provenance.FusionMethod = StrategyWeightedVoting
		tx.Provenance.PrimaryMethod = primary.Method
		tx.Provenance.MethodWeights = copyWeights(weights)
		txs = append(txs, tx)
	}

	contributions := make(map[string]float64, len(weights))
	for m, w := range weights {
		contributions[m] = w * 100
	}
	return fusionOutcome{Transactions: txs, Strategy: StrategyWeightedVoting, Contributions: contributions}
}

// consensus groups transactions positionally (index i of every method is one
// group) and synthesizes each output transaction: median for amounts, modal
// normalized value for dates, modal raw value for everything else.
func (f *Fuser) consensus(results []extract.Result) fusionOutcome {
	maxLen := 0
	for _, r := range results {
		maxLen = max(maxLen, len(r.Transactions))
	}

	participation := make(map[string]int, len(results))
	txs := make([]Transaction, 0, maxLen)

	for idx := 0; idx < maxLen; idx++ {
		group := make([]extract.Result, 0, len(results))
		rows := make([]extract.RawTransaction, 0, len(results))
		for _, r := range results {
			if idx < len(r.Transactions) {
				group = append(group, r)
				rows = append(rows, r.Transactions[idx])
				participation[r.Method]++
			}
		}
		txs = append(txs, f.consensusTransaction(group, rows))
	}

	var totalVotes int
	for _, c := range participation {
		totalVotes += c
	}
	contributions := make(map[string]float64, len(participation))
	for m, c := range participation {
		if totalVotes > 0 {
			contributions[m] = float64(c) / float64(totalVotes) * 100
		}
	}
	return fusionOutcome{Transactions: txs, Strategy: StrategyConsensus, Contributions: contributions}
}

// consensusTransaction builds one synthesized transaction from the rows all
// methods produced at the same index.
func (f *Fuser) consensusTransaction(group []extract.Result, rows []extract.RawTransaction) Transaction {
	consensusRaw := make(extract.RawTransaction, len(canonicalFields))

	// Median amount over parseable values keeps a single wild reading from
	// dragging the result.
	var amounts []decimal.Decimal
	for _, row := range rows {
		if v, ok := rawField(row, FieldAmount); ok {
			if d, err := f.norm.ParseAmount(v); err == nil {
				amounts = append(amounts, d)
			}
		}
	}
	if len(amounts) > 0 {
		consensusRaw[FieldAmount] = median(amounts).String()
	}

	// Modal normalized date, first-seen winning ties.
	consensusRaw[FieldDate] = f.modalValue(rows, FieldDate, true)

	for _, field := range []string{FieldDescription, FieldBalance, FieldReference, FieldType} {
		consensusRaw[field] = f.modalValue(rows, field, false)
	}

	tx := fromRaw(consensusRaw, f.norm)
	tx.Provenance.FusionMethod = StrategyConsensus
	var sources []string
	var confSum float64
	for _, r := range group {
		sources = append(sources, r.Method)
		confSum += r.Confidence
	}
	tx.Provenance.ConsensusSources = sources
	if len(group) > 0 {
		tx.Provenance.ConsensusConfidence = confSum / float64(len(group))
	}
	return tx
}

// modalValue returns the most frequent non-empty value for a field across the
// grouped rows, optionally counting by normalized date form. Ties break by
// first appearance in method order.
func (f *Fuser) modalValue(rows []extract.RawTransaction, field string, normalizeDates bool) string {
	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	representative := make(map[string]string)
	order := 0

	for _, row := range rows {
		v, ok := rawField(row, field)
		if !ok || v == "" {
			continue
		}
		key := v
		if normalizeDates {
			key = f.norm.NormalizeDate(v)
		}
		if _, seen := counts[key]; !seen {
			firstSeen[key] = order
			representative[key] = v
		}
		counts[key]++
		order++
	}

	best := ""
	bestCount := 0
	bestOrder := 0
	for key, c := range counts {
		if c > bestCount || (c == bestCount && firstSeen[key] < bestOrder) {
			best = key
			bestCount = c
			bestOrder = firstSeen[key]
		}
	}
	if best == "" {
		return ""
	}
	return representative[best]
}

// bestMethod emits the transactions of the single method maximizing
// confidence x mean quality, used when methods disagree too much to merge.
func (f *Fuser) bestMethod(results []extract.Result) fusionOutcome {
	best := results[0]
	bestScore := best.Confidence * best.MeanQuality()
	for _, r := range results[1:] {
		if s := r.Confidence * r.MeanQuality(); s > bestScore {
			best = r
			bestScore = s
		}
	}

	f.logger.Debug("low consistency, selecting best method",
		slog.String("method", best.Method),
		slog.Float64("score", bestScore),
	)

	txs := make([]Transaction, 0, len(best.Transactions))
	for _, raw := range best.Transactions {
		tx := fromRaw(raw, f.norm)
		tx.Provenance.FusionMethod = StrategyBestMethod
		tx.Provenance.SelectedMethod = best.Method
		txs = append(txs, tx)
	}
	return fusionOutcome{
		Transactions:  txs,
		Strategy:      StrategyBestMethod,
		Contributions: map[string]float64{best.Method: 100},
	}
}

func copyWeights(w map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// median returns the middle of the sorted values, averaging the two middle
// values for even counts.
func median(values []decimal.Decimal) decimal.Decimal {
	sorted := make([]decimal.Decimal, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return sorted[n/2-1].Add(sorted[n/2]).Div(decimal.NewFromInt(2))
}
