// Package exceltab extracts transactions from XLSX workbooks using
// excelize. It picks the sheet most likely to hold statement rows, finds
// the header row and maps columns by keyword, then emits raw transactions.
package exceltab

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/bankfuse/bankfuse/internal/extract"
	"github.com/bankfuse/bankfuse/internal/extract/sniffer"
	"github.com/bankfuse/bankfuse/pkg/money"
)

// Sheets with these names are checked before falling back to the first one.
var preferredSheets = []string{
	"transactions", "movimentos", "extrato", "statement", "data", "sheet1",
}

var (
	dateKeywords      = []string{"date", "data", "fecha", "datum"}
	descKeywords      = []string{"description", "descrição", "descricao", "descripción", "merchant", "payee", "memo"}
	amountKeywords    = []string{"amount", "valor", "importe", "value"}
	debitKeywords     = []string{"debit", "débito", "debito", "cargo"}
	creditKeywords    = []string{"credit", "crédito", "credito", "abono"}
	balanceKeywords   = []string{"balance", "saldo"}
	referenceKeywords = []string{"reference", "referencia", "ref"}
)

type columnMap struct {
	date, desc, amount, debit, credit, balance, reference int
}

// Extractor is the spreadsheet extraction method.
type Extractor struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

func (e *Extractor) Method() string { return extract.MethodExcelTab }

// Extract opens the workbook, locates the statement sheet and header row,
// and converts the data rows to raw transactions.
func (e *Extractor) Extract(ctx context.Context, data []byte) (*extract.Result, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("exceltab: open workbook: %w", err)
	}
	defer f.Close()

	sheet := findStatementSheet(f)
	if sheet == "" {
		return nil, fmt.Errorf("exceltab: workbook has no sheets")
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("exceltab: read sheet %s: %w", sheet, err)
	}

	headerIdx, cm := findHeader(rows)
	if headerIdx < 0 {
		return nil, fmt.Errorf("exceltab: no header row found in sheet %s", sheet)
	}

	dialect := probeRows(rows[headerIdx+1:], cm)

	transactions := make([]extract.RawTransaction, 0, len(rows))
	badAmounts := 0

	for _, row := range rows[headerIdx+1:] {
		get := func(idx int) string {
			if idx < 0 || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		date := get(cm.date)
		if date == "" {
			continue
		}

		tx := extract.RawTransaction{
			"date":        date,
			"description": get(cm.desc),
		}

		amount, ok := foldAmount(get(cm.amount), get(cm.debit), get(cm.credit), dialect)
		if !ok {
			badAmounts++
		}
		if amount != "" {
			tx["amount"] = amount
		}
		if balance := get(cm.balance); balance != "" {
			tx["balance"] = balance
		}
		if ref := get(cm.reference); ref != "" {
			tx["reference"] = ref
		}

		transactions = append(transactions, tx)
	}

	parseRate := 1.0
	if len(transactions) > 0 {
		parseRate = float64(len(transactions)-badAmounts) / float64(len(transactions))
	}

	e.logger.Debug("exceltab extraction finished",
		slog.String("sheet", sheet),
		slog.Int("transactions", len(transactions)),
		slog.Int("bad_amounts", badAmounts))

	confidence := extract.BaseWeight(extract.MethodExcelTab) * parseRate

	return &extract.Result{
		Method:         extract.MethodExcelTab,
		Transactions:   transactions,
		Confidence:     confidence,
		ProcessingTime: time.Since(start),
		Metadata: map[string]string{
			"sheet": sheet,
		},
		QualityMetrics: map[string]float64{
			"parse_rate": parseRate,
		},
	}, nil
}

func findStatementSheet(f *excelize.File) string {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return ""
	}
	for _, preferred := range preferredSheets {
		for _, sheet := range sheets {
			if strings.EqualFold(sheet, preferred) {
				return sheet
			}
		}
	}
	return sheets[0]
}

// findHeader scans the first rows for one whose cells match at least a
// date and one monetary column.
func findHeader(rows [][]string) (int, columnMap) {
	limit := len(rows)
	if limit > 20 {
		limit = 20
	}
	for i := 0; i < limit; i++ {
		cm := mapColumns(rows[i])
		if cm.date >= 0 && (cm.amount >= 0 || cm.debit >= 0 || cm.credit >= 0) {
			return i, cm
		}
	}
	return -1, columnMap{}
}

func mapColumns(headers []string) columnMap {
	cm := columnMap{date: -1, desc: -1, amount: -1, debit: -1, credit: -1, balance: -1, reference: -1}
	for i, header := range headers {
		h := strings.ToLower(strings.TrimSpace(header))
		switch {
		case cm.date < 0 && containsAny(h, dateKeywords):
			cm.date = i
		case cm.desc < 0 && containsAny(h, descKeywords):
			cm.desc = i
		case cm.debit < 0 && containsAny(h, debitKeywords):
			cm.debit = i
		case cm.credit < 0 && containsAny(h, creditKeywords):
			cm.credit = i
		case cm.amount < 0 && containsAny(h, amountKeywords):
			cm.amount = i
		case cm.balance < 0 && containsAny(h, balanceKeywords):
			cm.balance = i
		case cm.reference < 0 && containsAny(h, referenceKeywords):
			cm.reference = i
		}
	}
	return cm
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// probeRows reuses the delimited-text dialect heuristics on sheet cells.
func probeRows(rows [][]string, cm columnMap) sniffer.Dialect {
	limit := len(rows)
	if limit > 5 {
		limit = 5
	}
	return sniffer.ProbeCells(rows[:limit], sniffer.ColumnMap{
		Date:        cm.date,
		Description: cm.desc,
		Amount:      cm.amount,
		Debit:       cm.debit,
		Credit:      cm.credit,
		Balance:     cm.balance,
		Reference:   cm.reference,
	})
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
