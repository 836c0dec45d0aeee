// Package csvtext extracts transactions from delimited text statements.
// Rows unmarshal by header name through gocsv, so exports from different
// banks and languages map onto the same fields without configuration.
package csvtext

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/bankfuse/bankfuse/internal/extract"
	"github.com/bankfuse/bankfuse/internal/extract/sniffer"
	"github.com/bankfuse/bankfuse/pkg/money"
)

// statementRow is a raw CSV row. Multiple tags per field cover the common
// column names across English, Portuguese and Spanish exports.
type statementRow struct {
	Date      string `csv:"date"`
	DataMov   string `csv:"data mov."`
	DataMovim string `csv:"data movim."`
	Fecha     string `csv:"fecha"`
	Datum     string `csv:"datum"`

	Description string `csv:"description"`
	Descricao   string `csv:"descrição"`
	Descricao2  string `csv:"descricao"`
	Descripcion string `csv:"descripción"`
	Merchant    string `csv:"merchant"`
	Payee       string `csv:"payee"`
	Memo        string `csv:"memo"`

	Amount  string `csv:"amount"`
	Valor   string `csv:"valor"`
	Importe string `csv:"importe"`
	Value   string `csv:"value"`

	Debit   string `csv:"debit"`
	Debito  string `csv:"débito"`
	Debito2 string `csv:"debito"`
	Cargo   string `csv:"cargo"`

	Credit   string `csv:"credit"`
	Credito  string `csv:"crédito"`
	Credito2 string `csv:"credito"`
	Abono    string `csv:"abono"`

	Balance string `csv:"balance"`
	Saldo   string `csv:"saldo"`

	Reference  string `csv:"reference"`
	Referencia string `csv:"referencia"`

	Type string `csv:"type"`
	Tipo string `csv:"tipo"`
}

// Extractor is the delimited-text extraction method.
type Extractor struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

func (e *Extractor) Method() string { return extract.MethodCSVText }

// Extract sniffs the file layout, unmarshals the rows and converts them to
// raw transactions. Rows without a date are treated as metadata and skipped.
func (e *Extractor) Extract(ctx context.Context, data []byte) (*extract.Result, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	profile, err := sniffer.Sniff(data)
	if err != nil {
		return nil, fmt.Errorf("csvtext: sniff: %w", err)
	}

	var reader io.Reader = bytes.NewReader(data)
	if profile.SkipLines > 0 {
		reader = skipLines(reader, profile.SkipLines)
	}

	// Struct tags are lowercase; fold real-world header casing onto them.
	gocsv.SetHeaderNormalizer(strings.ToLower)
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		r := csv.NewReader(in)
		r.Comma = profile.Delimiter
		r.LazyQuotes = true
		r.TrimLeadingSpace = true
		r.FieldsPerRecord = -1
		return r
	})

	var rows []statementRow
	if err := gocsv.Unmarshal(reader, &rows); err != nil {
		return nil, fmt.Errorf("csvtext: unmarshal: %w", err)
	}

	transactions := make([]extract.RawTransaction, 0, len(rows))
	badAmounts := 0
	skipped := 0

	for _, row := range rows {
		date := coalesce(row.Date, row.DataMov, row.DataMovim, row.Fecha, row.Datum)
		if date == "" {
			skipped++
			continue
		}

		tx := extract.RawTransaction{
			"date":        date,
			"description": coalesce(row.Description, row.Descricao, row.Descricao2, row.Descripcion, row.Merchant, row.Payee, row.Memo),
		}

		amount, ok := e.foldAmount(row, profile.Dialect)
		if !ok {
			badAmounts++
		}
		if amount != "" {
			tx["amount"] = amount
		}
		if balance := coalesce(row.Balance, row.Saldo); balance != "" {
			tx["balance"] = balance
		}
		if ref := coalesce(row.Reference, row.Referencia); ref != "" {
			tx["reference"] = ref
		}
		if typ := coalesce(row.Type, row.Tipo); typ != "" {
			tx["type"] = typ
		}

		transactions = append(transactions, tx)
	}

	parseRate := 1.0
	if len(transactions) > 0 {
		parseRate = float64(len(transactions)-badAmounts) / float64(len(transactions))
	}

	e.logger.Debug("csvtext extraction finished",
		slog.Int("rows", len(rows)),
		slog.Int("transactions", len(transactions)),
		slog.Int("skipped", skipped),
		slog.Int("bad_amounts", badAmounts))

	return &extract.Result{
		Method:         extract.MethodCSVText,
		Transactions:   transactions,
		Confidence:     confidence(parseRate, profile.Dialect.Confidence),
		ProcessingTime: time.Since(start),
		Metadata: map[string]string{
			"fingerprint": profile.Fingerprint,
			"delimiter":   string(profile.Delimiter),
			"skip_lines":  strconv.Itoa(profile.SkipLines),
		},
		QualityMetrics: map[string]float64{
			"parse_rate":         parseRate,
			"dialect_confidence": profile.Dialect.Confidence,
		},
	}, nil
}

// foldAmount resolves a row's signed amount from either the single amount
// column or the debit/credit pair. Debits come out negative. The returned
// bool is false when a present value failed to parse.
func (e *Extractor) foldAmount(row statementRow, dialect sniffer.Dialect) (string, bool) {
	single := coalesce(row.Amount, row.Valor, row.Importe, row.Value)
	if single != "" {
		m, err := money.ParseStatement(single, dialect.European, dialect.CurrencyHint)
		if err != nil {
			return single, false
		}
		return m.ToDecimal().String(), true
	}

	debit := coalesce(row.Debit, row.Debito, row.Debito2, row.Cargo)
	credit := coalesce(row.Credit, row.Credito, row.Credito2, row.Abono)

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

// confidence blends the method's base reliability with what the data showed.
func confidence(parseRate, dialectConfidence float64) float64 {
	c := extract.BaseWeight(extract.MethodCSVText) * parseRate
	if dialectConfidence < 0.5 {
		c *= 0.9
	}
	if c > 1 {
		c = 1
	}
	return c
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func skipLines(r io.Reader, n int) io.Reader {
	return &lineSkipper{reader: r, skip: n}
}

type lineSkipper struct {
	reader  io.Reader
	skip    int
	skipped bool
}

func (ls *lineSkipper) Read(p []byte) (int, error) {
	if !ls.skipped {
		buf := make([]byte, 1)
		lines := 0
		for lines < ls.skip {
			n, err := ls.reader.Read(buf)
			if err != nil {
				return 0, err
			}
			if n > 0 && buf[0] == '\n' {
				lines++
			}
		}
		ls.skipped = true
	}
	return ls.reader.Read(p)
}
