// Package tables extracts transactions from detected table structures.
// Detection itself runs behind the Detector interface; this package scores
// the detected grids, picks the ones shaped like statement tables and
// converts their rows.
package tables

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bankfuse/bankfuse/internal/extract"
	"github.com/bankfuse/bankfuse/internal/extract/sniffer"
	"github.com/bankfuse/bankfuse/pkg/money"
)

// Table is one detected grid with its detection confidence.
type Table struct {
	Page       int
	Header     []string
	Rows       [][]string
	Confidence float64
}

// FillRatio is the share of non-empty cells, a proxy for detection quality.
func (t Table) FillRatio() float64 {
	total, filled := 0, 0
	for _, row := range t.Rows {
		for _, cell := range row {
			total++
			if strings.TrimSpace(cell) != "" {
				filled++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(filled) / float64(total)
}

// Detector finds table structures in a rendered document.
type Detector interface {
	Detect(ctx context.Context, data []byte) ([]Table, error)
}

// minTableConfidence drops grids the detector itself is unsure about.
const minTableConfidence = 0.5

// Extractor is the table-grid extraction method.
type Extractor struct {
	detector Detector
	logger   *slog.Logger
}

func New(detector Detector, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{detector: detector, logger: logger}
}

func (e *Extractor) Method() string { return extract.MethodTableGrid }

// Extract runs detection and converts every statement-shaped table.
func (e *Extractor) Extract(ctx context.Context, data []byte) (*extract.Result, error) {
	if e.detector == nil {
		return nil, fmt.Errorf("tables: no detector configured")
	}

	start := time.Now()
	detected, err := e.detector.Detect(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("tables: detect: %w", err)
	}

	res, err := e.FromTables(ctx, detected)
	if err != nil {
		return nil, err
	}
	res.ProcessingTime = time.Since(start)
	return res, nil
}

// FromTables converts already-detected tables, for callers with their own
// detection pipeline.
func (e *Extractor) FromTables(ctx context.Context, detected []Table) (*extract.Result, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var transactions []extract.RawTransaction
	used := 0
	confidenceSum := 0.0
	fillSum := 0.0
	badAmounts := 0

	for _, table := range detected {
		if table.Confidence < minTableConfidence {
			continue
		}
		cm := sniffer.MapColumns(table.Header)
		if cm.Date < 0 || (cm.Amount < 0 && cm.Debit < 0 && cm.Credit < 0) {
			continue
		}

		dialect := sniffer.ProbeCells(table.Rows, cm)
		used++
		confidenceSum += table.Confidence
		fillSum += table.FillRatio()

		for _, row := range table.Rows {
			get := func(idx int) string {
				if idx < 0 || idx >= len(row) {
					return ""
				}
				return strings.TrimSpace(row[idx])
			}

			date := get(cm.Date)
			if date == "" {
				continue
			}

			tx := extract.RawTransaction{
				"date":        date,
				"description": get(cm.Description),
			}
			amount, ok := foldAmount(get(cm.Amount), get(cm.Debit), get(cm.Credit), dialect)
			if !ok {
				badAmounts++
			}
			if amount != "" {
				tx["amount"] = amount
			}
			if balance := get(cm.Balance); balance != "" {
				tx["balance"] = balance
			}
			if ref := get(cm.Reference); ref != "" {
				tx["reference"] = ref
			}
			transactions = append(transactions, tx)
		}
	}

	if used == 0 || len(transactions) == 0 {
		return nil, fmt.Errorf("tables: no statement-shaped tables found (%d detected)", len(detected))
	}

	meanConfidence := confidenceSum / float64(used)
	meanFill := fillSum / float64(used)
	parseRate := float64(len(transactions)-badAmounts) / float64(len(transactions))

	e.logger.Debug("table extraction finished",
		slog.Int("tables_detected", len(detected)),
		slog.Int("tables_used", used),
		slog.Int("transactions", len(transactions)))

	return &extract.Result{
		Method:         extract.MethodTableGrid,
		Transactions:   transactions,
		Confidence:     extract.BaseWeight(extract.MethodTableGrid) * meanConfidence * parseRate,
		ProcessingTime: time.Since(start),
		Metadata: map[string]string{
			"tables_used": fmt.Sprintf("%d", used),
		},
		QualityMetrics: map[string]float64{
			"parse_rate":       parseRate,
			"table_confidence": meanConfidence,
			"fill_ratio":       meanFill,
		},
	}, nil
}

func foldAmount(single, debit, credit string, dialect sniffer.Dialect) (string, bool) {
	if single != "" {
		m, err := money.ParseStatement(single, dialect.European, dialect.CurrencyHint)
		if err != nil {
			return single, false
		}
		return m.ToDecimal().String(), true
	}
	if debit != "" {
		m, err := money.ParseStatement(debit, dialect.European, dialect.CurrencyHint)
		if err != nil {
			return debit, false
		}
		if m.IsPositive() {
			m = m.Negate()
		}
		return m.ToDecimal().String(), true
	}
	if credit != "" {
		m, err := money.ParseStatement(credit, dialect.European, dialect.CurrencyHint)
		if err != nil {
			return credit, false
		}
		if m.IsNegative() {
			m = m.Negate()
		}
		return m.ToDecimal().String(), true
	}
	return "", true
}
