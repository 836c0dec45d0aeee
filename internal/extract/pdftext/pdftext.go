// Package pdftext extracts transactions from a statement's text layer with
// line-oriented rules. The caller supplies text pulled from the PDF; scanned
// documents with no text layer belong to the OCR path instead.
package pdftext

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/bankfuse/bankfuse/internal/extract"
	"github.com/bankfuse/bankfuse/pkg/money"
)

// minParseRate is the share of date-bearing lines that must yield a
// transaction before the result is trusted at all.
const minParseRate = 0.50

// transactionLineRe matches "date ... description ... amount" lines.
// Groups: (1) date, (2) description, (3) amount with optional CR/DR suffix.
var transactionLineRe = regexp.MustCompile(
	`(?i)^\s*` +
		`(\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4}|\d{4}[/\-]\d{2}[/\-]\d{2}|` +
		`(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+\d{1,2}(?:[,\s]+\d{2,4})?|` +
		`\d{1,2}\s+(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?(?:[,\s]+\d{2,4})?)` +
		`\s+(.+?)\s+` +
		`(-?[€$£]?\d{1,3}(?:[,.]\d{3})*[.,]\d{2})\s*(CR|DR)?\s*$`)

// dateLineRe spots lines that start with something date-like, used to
// estimate how many transactions the document holds.
var dateLineRe = regexp.MustCompile(
	`(?i)^\s*(\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4}|\d{4}[/\-]\d{2}[/\-]\d{2}|` +
		`(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+\d{1,2}|` +
		`\d{1,2}\s+(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec))`)

// Extractor is the text-layer extraction method.
type Extractor struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

func (e *Extractor) Method() string { return extract.MethodPDFText }

// Extract scans the text layer line by line for transaction rows. It fails
// when too few of the date-bearing lines parse, so a garbled text layer is
// rejected rather than half-read.
func (e *Extractor) Extract(ctx context.Context, text []byte) (*extract.Result, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(text))) == 0 {
		return nil, fmt.Errorf("pdftext: empty text layer")
	}

	lines := strings.Split(string(text), "\n")
	transactions, estimated := ParseStatementLines(lines)

	if len(transactions) == 0 {
		return nil, fmt.Errorf("pdftext: no transaction lines matched")
	}

	parseRate := 1.0
	if estimated > 0 {
		parseRate = float64(len(transactions)) / float64(estimated)
	}
	if parseRate < minParseRate {
		return nil, fmt.Errorf("pdftext: parse rate %.2f below threshold %.2f (%d/%d)",
			parseRate, minParseRate, len(transactions), estimated)
	}

	e.logger.Debug("pdftext extraction finished",
		slog.Int("lines", len(lines)),
		slog.Int("transactions", len(transactions)),
		slog.Int("estimated", estimated))

	return &extract.Result{
		Method:         extract.MethodPDFText,
		Transactions:   transactions,
		Confidence:     extract.BaseWeight(extract.MethodPDFText) * parseRate,
		ProcessingTime: time.Since(start),
		Metadata: map[string]string{
			"lines": fmt.Sprintf("%d", len(lines)),
		},
		QualityMetrics: map[string]float64{
			"parse_rate": parseRate,
		},
	}, nil
}

// ParseStatementLines applies the transaction-line rules to already-split
// lines. It returns the parsed transactions and the number of lines that
// looked date-bearing, which callers use as a parse-rate denominator. The
// OCR path assembles lines from word boxes and runs them through here too.
func ParseStatementLines(lines []string) ([]extract.RawTransaction, int) {
	estimated := 0
	transactions := make([]extract.RawTransaction, 0, 64)

	for _, line := range lines {
		if dateLineRe.MatchString(line) {
			estimated++
		}

		m := transactionLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		amount, ok := normalizeAmount(m[3], m[4])
		if !ok {
			continue
		}

		transactions = append(transactions, extract.RawTransaction{
			"date":        strings.TrimSpace(m[1]),
			"description": strings.TrimSpace(m[2]),
			"amount":      amount,
		})
	}
	return transactions, estimated
}

// normalizeAmount converts a matched statement amount to a plain signed
// decimal string. A CR suffix marks money in, DR money out.
func normalizeAmount(raw, suffix string) (string, bool) {
	european := false
	if i := strings.LastIndexAny(raw, ",."); i >= 0 && raw[i] == ',' {
		european = true
	}

	m, err := money.ParseStatement(raw, european, "")
	if err != nil {
		return "", false
	}

	switch strings.ToUpper(suffix) {
	case "CR":
		if m.IsNegative() {
			m = m.Negate()
		}
	case "DR":
		if m.IsPositive() {
			m = m.Negate()
		}
	}
	return m.ToDecimal().String(), true
}
