package fusion

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/bankfuse/bankfuse/internal/extract"
)

// ErrEmptyAmount reports an amount string with no digits to parse.
var ErrEmptyAmount = errors.New("empty amount")

// currencySymbols are stripped before amount parsing.
const currencySymbols = "€$£¥₹"

var (
	dayFirstRe  = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{4})$`)
	yearFirstRe = regexp.MustCompile(`^(\d{4})[/-](\d{1,2})[/-](\d{1,2})$`)
	shortYearRe = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{2})$`)
)

// keyAliases folds the column names different methods emit onto the canonical
// field names. Mirrors the header vocabulary the extractors accept.
var keyAliases = map[string]string{
	"data":        FieldDate,
	"fecha":       FieldDate,
	"datum":       FieldDate,
	"valor":       FieldAmount,
	"importe":     FieldAmount,
	"value":       FieldAmount,
	"descricao":   FieldDescription,
	"descripcion": FieldDescription,
	"memo":        FieldDescription,
	"payee":       FieldDescription,
	"merchant":    FieldDescription,
	"saldo":       FieldBalance,
	"ref":         FieldReference,
	"tipo":        FieldType,
}

// Normalizer canonicalizes dates, amounts and free text across extraction
// methods so their values become comparable. Normalize never fails: bad input
// degrades to a safe default and a warning log, per the contract that data
// quality is never an error.
type Normalizer struct {
	logger *slog.Logger
}

// NewNormalizer creates a normalizer. A nil logger falls back to slog.Default.
func NewNormalizer(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{logger: logger}
}

// NormalizeDate re-emits recognized dates as DD/MM/YYYY. Three patterns are
// recognized: day-first with 4-digit year, year-first, and day-first with a
// 2-digit year (pivot: <50 means 20YY, otherwise 19YY). Anything else passes
// through trimmed, so downstream comparisons still see the raw value.
func (n *Normalizer) NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if m := dayFirstRe.FindStringSubmatch(s); m != nil {
		return formatDate(m[1], m[2], m[3])
	}
	if m := yearFirstRe.FindStringSubmatch(s); m != nil {
		return formatDate(m[3], m[2], m[1])
	}
	if m := shortYearRe.FindStringSubmatch(s); m != nil {
		yy, _ := strconv.Atoi(m[3])
		century := 1900
		if yy < 50 {
			century = 2000
		}
		return formatDate(m[1], m[2], strconv.Itoa(century+yy))
	}
	return s
}

func formatDate(day, month, year string) string {
	d, _ := strconv.Atoi(day)
	m, _ := strconv.Atoi(month)
	y, _ := strconv.Atoi(year)
	return fmt.Sprintf("%02d/%02d/%04d", d, m, y)
}

// ParseAmount parses an amount string into an exact decimal. It strips
// currency symbols and whitespace, honors leading '-' and enclosing
// parentheses as negative markers, and disambiguates '.' vs ',' separators:
// when both appear the later one is the decimal point; a lone comma is
// decimal only when followed by one or two digits. Callers that cannot fail
// should use NormalizeAmount instead.
func (n *Normalizer) ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrEmptyAmount
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}

	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(currencySymbols, r) || unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	s = b.String()

	if strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimPrefix(s, "-")
	}

	dot := strings.LastIndex(s, ".")
	comma := strings.LastIndex(s, ",")
	switch {
	case dot >= 0 && comma >= 0:
		if comma > dot {
			s = strings.ReplaceAll(s, ".", "")
			s = replaceDecimalComma(s)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case comma >= 0:
		frac := len(s) - comma - 1
		if frac >= 1 && frac <= 2 {
			s = replaceDecimalComma(s)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// replaceDecimalComma strips all commas except the last, which becomes the
// decimal point.
func replaceDecimalComma(s string) string {
	last := strings.LastIndex(s, ",")
	if last < 0 {
		return s
	}
	head := strings.ReplaceAll(s[:last], ",", "")
	return head + "." + s[last+1:]
}

// NormalizeAmount is the never-fails boundary over ParseAmount: parse
// failures normalize to 0.0 with a warning, which is an explicit policy
// rather than silent loss.
func (n *Normalizer) NormalizeAmount(s string) float64 {
	d, err := n.ParseAmount(s)
	if err != nil {
		if !errors.Is(err, ErrEmptyAmount) {
			n.logger.Warn("unparsable amount normalized to zero", slog.String("raw", s))
		}
		return 0
	}
	f, _ := d.Float64()
	return f
}

// NormalizeText collapses whitespace runs, trims and upper-cases. Empty input
// yields the empty string.
func (n *Normalizer) NormalizeText(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(strings.Join(fields, " "))
}

// NormalizeTransaction returns a canonicalized copy of a raw transaction:
// keys folded to canonical names, date/amount/balance/description rewritten
// to comparable forms, remaining values trimmed. Pure; the input map is never
// mutated, and normalizing twice is a no-op.
func (n *Normalizer) NormalizeTransaction(raw extract.RawTransaction) extract.RawTransaction {
	out := make(extract.RawTransaction, len(raw))
	for k, v := range raw {
		key := strings.ToLower(strings.TrimSpace(k))
		if canonical, ok := keyAliases[key]; ok {
			key = canonical
		}
		switch key {
		case FieldDate:
			out[key] = n.NormalizeDate(v)
		case FieldAmount, FieldBalance:
			if strings.TrimSpace(v) == "" {
				out[key] = ""
				continue
			}
			out[key] = strconv.FormatFloat(n.NormalizeAmount(v), 'f', -1, 64)
		case FieldDescription:
			out[key] = n.NormalizeText(v)
		default:
			out[key] = strings.TrimSpace(v)
		}
	}
	return out
}
