package fusion

import (
	"errors"
	"strings"

	"github.com/bankfuse/bankfuse/internal/extract"
)

// canonicalFields is the fixed iteration order whenever the pipeline walks
// transaction fields; map iteration order must never leak into output.
var canonicalFields = []string{
	FieldDate, FieldAmount, FieldDescription, FieldBalance, FieldReference, FieldType,
}

// fromRaw builds a canonical Transaction from one method's raw row. Fields
// the row never carried are listed in Provenance.MissingFields; an amount
// that fails to parse keeps its raw string in Provenance.RawAmount.
func fromRaw(raw extract.RawTransaction, n *Normalizer) Transaction {
	norm := n.NormalizeTransaction(raw)
	tx := Transaction{
		Date:        norm[FieldDate],
		Description: norm[FieldDescription],
		Reference:   norm[FieldReference],
		Type:        norm[FieldType],
	}

	if v, ok := norm[FieldAmount]; ok && v != "" {
		d, err := n.ParseAmount(v)
		if err == nil {
			tx.Amount, _ = d.Float64()
		}
	}
	if rawAmount, ok := rawField(raw, FieldAmount); ok {
		if _, err := n.ParseAmount(rawAmount); err != nil && !errors.Is(err, ErrEmptyAmount) {
			tx.Provenance.RawAmount = rawAmount
		}
	}

	if v, ok := norm[FieldBalance]; ok && v != "" {
		if d, err := n.ParseAmount(v); err == nil {
			f, _ := d.Float64()
			tx.Balance = &f
		}
	}

	for _, field := range canonicalFields {
		if v, ok := norm[field]; !ok || v == "" {
			tx.Provenance.MissingFields = append(tx.Provenance.MissingFields, field)
		}
	}
	return tx
}

// rawField looks a canonical field up in an un-normalized row, honoring the
// same key aliases the normalizer folds.
func rawField(raw extract.RawTransaction, field string) (string, bool) {
	if v, ok := raw[field]; ok {
		return v, true
	}
	for k, v := range raw {
		key := strings.ToLower(strings.TrimSpace(k))
		if key == field {
			return v, true
		}
		if canonical, ok := keyAliases[key]; ok && canonical == field {
			return v, true
		}
	}
	return "", false
}

// hasField reports whether the transaction carries a non-empty value for a
// canonical field.
func (t *Transaction) hasField(field string) bool {
	switch field {
	case FieldDate:
		return t.Date != ""
	case FieldAmount:
		for _, m := range t.Provenance.MissingFields {
			if m == FieldAmount {
				return false
			}
		}
		return true
	case FieldDescription:
		return t.Description != ""
	case FieldBalance:
		return t.Balance != nil
	case FieldReference:
		return t.Reference != ""
	case FieldType:
		return t.Type != ""
	}
	return false
}

// setField overwrites one canonical field with a resolution winner,
// normalizing the value on the way in.
func (t *Transaction) setField(field, value string, n *Normalizer) {
	switch field {
	case FieldDate:
		t.Date = n.NormalizeDate(value)
	case FieldAmount:
		t.Amount = n.NormalizeAmount(value)
	case FieldDescription:
		t.Description = n.NormalizeText(value)
	case FieldBalance:
		f := n.NormalizeAmount(value)
		t.Balance = &f
	case FieldReference:
		t.Reference = strings.TrimSpace(value)
	case FieldType:
		t.Type = strings.TrimSpace(value)
	}
}
