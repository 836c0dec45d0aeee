// Package sniffer inspects raw statement bytes before extraction: it
// classifies the file kind, and for delimited text it detects the delimiter,
// header row, column roles and regional amount formatting so downstream
// methods can parse without per-bank configuration.
package sniffer

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"unicode"
)

// Kind is the detected container format of an uploaded statement.
type Kind string

const (
	KindCSV     Kind = "csv"
	KindExcel   Kind = "excel"
	KindPDF     Kind = "pdf"
	KindImage   Kind = "image"
	KindUnknown Kind = "unknown"
)

var (
	ErrEmptyFile        = errors.New("file is empty")
	ErrNoHeadersFound   = errors.New("could not find data headers")
	ErrInvalidDelimiter = errors.New("could not detect valid delimiter")
)

// Statement header keywords across the languages we see in the wild.
var headerKeywords = []string{
	// Portuguese
	"data mov", "descrição", "descricao", "débito", "debito", "crédito", "credito",
	"data valor", "saldo",
	// English
	"date", "description", "amount", "debit", "credit", "balance", "reference", "merchant",
	// Spanish
	"fecha", "descripción", "descripcion", "importe", "cargo", "abono",
}

// Profile is the result of sniffing a delimited statement file.
type Profile struct {
	Delimiter   rune
	SkipLines   int
	Headers     []string
	Columns     ColumnMap
	Dialect     Dialect
	Fingerprint string
	SampleRows  [][]string
}

// ColumnMap holds detected column indices, -1 where nothing matched.
type ColumnMap struct {
	Date        int
	Description int
	Amount      int
	Debit       int
	Credit      int
	Balance     int
	Reference   int
}

// DoubleEntry reports whether amounts are split across debit and credit
// columns instead of a single signed column.
func (c ColumnMap) DoubleEntry() bool {
	return c.Debit >= 0 && c.Credit >= 0
}

// Dialect captures the regional formatting inferred from sample data.
type Dialect struct {
	European     bool   // comma decimal separator
	DayFirst     bool   // DD/MM rather than MM/DD
	CurrencyHint string // ISO code when a symbol was spotted, else ""
	Confidence   float64
}

// DetectKind classifies raw bytes by magic numbers, falling back to a
// text heuristic for CSV.
func DetectKind(data []byte) Kind {
	switch {
	case len(data) == 0:
		return KindUnknown
	case bytes.HasPrefix(data, []byte("%PDF")):
		return KindPDF
	case bytes.HasPrefix(data, []byte{0x50, 0x4B, 0x03, 0x04}):
		// zip container; xlsx is the only zip format we accept
		return KindExcel
	case bytes.HasPrefix(data, []byte{0xD0, 0xCF, 0x11, 0xE0}):
		// legacy OLE2 (xls)
		return KindExcel
	case bytes.HasPrefix(data, []byte{0x89, 'P', 'N', 'G'}),
		bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}),
		bytes.HasPrefix(data, []byte("II*\x00")),
		bytes.HasPrefix(data, []byte("MM\x00*")):
		return KindImage
	}
	if looksLikeText(data) {
		return KindCSV
	}
	return KindUnknown
}

func looksLikeText(data []byte) bool {
	sample := data
	if len(sample) > 1024 {
		sample = sample[:1024]
	}
	control := 0
	for _, b := range sample {
		if b < 0x09 || (b > 0x0D && b < 0x20) {
			control++
		}
	}
	return control*20 < len(sample)
}

// Sniff profiles a delimited statement file: delimiter, header row,
// column roles, regional dialect and a header fingerprint.
func Sniff(data []byte) (*Profile, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	lines := strings.Split(string(data), "\n")
	delimiter, skipLines, err := findHeaderRow(lines)
	if err != nil {
		return nil, err
	}

	headerLine := cleanLine(lines[skipLines], skipLines == 0)
	r := csv.NewReader(strings.NewReader(headerLine))
	r.Comma = delimiter
	r.LazyQuotes = true
	headers, err := r.Read()
	if err != nil {
		return nil, err
	}
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	columns := mapColumns(headers)
	samples := sampleRows(data, delimiter, skipLines+1, 5)

	return &Profile{
		Delimiter:   delimiter,
		SkipLines:   skipLines,
		Headers:     headers,
		Columns:     columns,
		Dialect:     probeDialect(samples, columns),
		Fingerprint: fingerprint(headers),
		SampleRows:  samples,
	}, nil
}

// MapColumns matches header names to transaction fields. Other extraction
// methods reuse it for any header-shaped row they encounter.
func MapColumns(headers []string) ColumnMap {
	return mapColumns(headers)
}

// mapColumns matches header names to transaction fields.
func mapColumns(headers []string) ColumnMap {
	m := ColumnMap{Date: -1, Description: -1, Amount: -1, Debit: -1, Credit: -1, Balance: -1, Reference: -1}
	for i, header := range headers {
		h := strings.ToLower(strings.TrimSpace(header))
		switch {
		case m.Date == -1 && (strings.Contains(h, "data mov") || strings.Contains(h, "date") ||
			strings.Contains(h, "fecha") || h == "data" || h == "datum"):
			m.Date = i
		case m.Description == -1 && (strings.Contains(h, "descri") || strings.Contains(h, "merchant") ||
			h == "memo" || h == "payee" || h == "nome" || h == "name"):
			m.Description = i
		case m.Debit == -1 && (strings.Contains(h, "débito") || strings.Contains(h, "debito") ||
			strings.Contains(h, "debit") || strings.Contains(h, "cargo")):
			m.Debit = i
		case m.Credit == -1 && (strings.Contains(h, "crédito") || strings.Contains(h, "credito") ||
			strings.Contains(h, "credit") || strings.Contains(h, "abono")):
			m.Credit = i
		case m.Amount == -1 && (h == "amount" || h == "valor" || h == "importe" || h == "montante" || h == "value"):
			m.Amount = i
		case m.Balance == -1 && (strings.Contains(h, "saldo") || strings.Contains(h, "balance")):
			m.Balance = i
		case m.Reference == -1 && (strings.Contains(h, "ref") || strings.Contains(h, "referencia")):
			m.Reference = i
		}
	}
	return m
}

// ProbeCells infers regional formatting from tabular cells using detected
// column roles. Spreadsheet extraction shares these heuristics.
func ProbeCells(rows [][]string, columns ColumnMap) Dialect {
	return probeDialect(rows, columns)
}

// probeDialect infers regional number and date formatting from data rows.
// All monetary columns contribute so double-entry files are covered too.
func probeDialect(rows [][]string, columns ColumnMap) Dialect {
	d := Dialect{Confidence: 0.5}

	moneyCols := []int{columns.Amount, columns.Debit, columns.Credit, columns.Balance}
	dateIdx := columns.Date

	europeanHints := 0
	usHints := 0
	dayFirst := false
	monthFirst := false

	for _, row := range rows {
		for _, idx := range moneyCols {
			if idx >= 0 && idx < len(row) && row[idx] != "" {
				switch separatorHint(row[idx]) {
				case 1:
					europeanHints++
				case -1:
					usHints++
				}
			}
		}
		if dateIdx >= 0 && dateIdx < len(row) && row[dateIdx] != "" {
			if firstDatePartExceeds12(row[dateIdx]) {
				dayFirst = true
			} else {
				monthFirst = true
			}
		}
		for _, cell := range row {
			switch {
			case strings.Contains(cell, "€") || strings.Contains(cell, "EUR"):
				d.CurrencyHint = "EUR"
				europeanHints++
			case strings.Contains(cell, "R$") || strings.Contains(cell, "BRL"):
				d.CurrencyHint = "BRL"
				europeanHints++
			case strings.Contains(cell, "£"):
				d.CurrencyHint = "GBP"
				usHints++
			case strings.Contains(cell, "$"):
				if d.CurrencyHint == "" {
					d.CurrencyHint = "USD"
				}
				usHints++
			}
		}
	}

	d.European = europeanHints > usHints
	if total := europeanHints + usHints; total > 0 {
		d.Confidence = float64(max(europeanHints, usHints)) / float64(total)
	}

	switch {
	case dayFirst && !monthFirst:
		d.DayFirst = true
	case !dayFirst && monthFirst:
		d.DayFirst = false
	default:
		// Ambiguous day values; lean on the amount format.
		d.DayFirst = d.European
	}
	return d
}

// separatorHint returns 1 for European amounts, -1 for US, 0 when ambiguous.
func separatorHint(val string) int {
	cleaned := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' || r == ',' || r == '.' || r == '-' {
			return r
		}
		return -1
	}, val)
	cleaned = strings.TrimPrefix(cleaned, "-")
	if cleaned == "" {
		return 0
	}

	lastComma := strings.LastIndex(cleaned, ",")
	lastDot := strings.LastIndex(cleaned, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			return 1
		}
		return -1
	case lastComma >= 0:
		if len(cleaned)-lastComma-1 <= 2 {
			return 1
		}
		return 0
	case lastDot >= 0:
		if len(cleaned)-lastDot-1 <= 2 {
			return -1
		}
		return 0
	}
	return 0
}

// firstDatePartExceeds12 reports whether the leading date component can
// only be a day.
func firstDatePartExceeds12(val string) bool {
	parts := strings.FieldsFunc(val, func(r rune) bool {
		return r == '/' || r == '-' || r == '.'
	})
	if len(parts) < 2 {
		return false
	}
	first := 0
	for _, c := range strings.TrimSpace(parts[0]) {
		if c < '0' || c > '9' {
			break
		}
		first = first*10 + int(c-'0')
	}
	return first > 12 && first <= 31
}

// findHeaderRow scans the first lines for the one that looks most like a
// statement header. Lines with header keywords win; otherwise the line
// with the most delimited columns is used.
func findHeaderRow(lines []string) (rune, int, error) {
	bestKeywordIdx, bestKeywordCols := -1, 0
	var bestKeywordDelim rune
	bestKeywordScore := 0

	fallbackIdx, fallbackCols := -1, 0
	var fallbackDelim rune

	for i, line := range lines {
		if i > 20 {
			break
		}
		line = cleanLine(line, i == 0)
		if line == "" {
			continue
		}

		delim, cols := detectDelimiter(line)
		if cols < 1 {
			continue
		}

		lower := strings.ToLower(line)
		matches := 0
		for _, kw := range headerKeywords {
			if strings.Contains(lower, kw) {
				matches++
			}
		}

		if matches > 0 {
			score := cols*10 + matches
			if score > bestKeywordScore {
				bestKeywordScore = score
				bestKeywordIdx = i
				bestKeywordCols = cols
				bestKeywordDelim = delim
			}
		} else if cols > fallbackCols {
			fallbackIdx = i
			fallbackCols = cols
			fallbackDelim = delim
		}
	}

	if bestKeywordIdx >= 0 && bestKeywordCols >= 2 {
		return bestKeywordDelim, bestKeywordIdx, nil
	}
	if fallbackCols >= 2 {
		return fallbackDelim, fallbackIdx, nil
	}
	return 0, 0, ErrNoHeadersFound
}

func cleanLine(line string, firstLine bool) string {
	line = strings.TrimRight(line, "\r")
	if firstLine {
		line = strings.TrimPrefix(line, "\uFEFF")
	}
	return strings.TrimSpace(line)
}

func detectDelimiter(line string) (rune, int) {
	var best rune
	bestCount := 0
	for _, d := range []rune{';', '\t', ',', '|'} {
		if count := strings.Count(line, string(d)); count > bestCount {
			bestCount = count
			best = d
		}
	}
	return best, bestCount
}

// fingerprint hashes normalized header names so layouts can be recognized
// across uploads from the same bank.
func fingerprint(headers []string) string {
	var normalized []string
	for _, h := range headers {
		clean := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return unicode.ToLower(r)
			}
			return -1
		}, h)
		if clean != "" {
			normalized = append(normalized, clean)
		}
	}
	sum := sha256.Sum256([]byte(strings.Join(normalized, "|")))
	return hex.EncodeToString(sum[:])
}

func sampleRows(data []byte, delimiter rune, startLine, maxRows int) [][]string {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delimiter
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	var rows [][]string
	lineNum := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		if lineNum >= startLine {
			rows = append(rows, record)
			if len(rows) >= maxRows {
				break
			}
		}
		lineNum++
	}
	return rows
}
