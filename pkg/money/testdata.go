package money

import (
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
)

// TestDataGenerator produces realistic bank-statement rows for extractor and
// fusion tests using gofakeit.
type TestDataGenerator struct {
	faker *gofakeit.Faker
}

// NewTestDataGenerator creates a generator with a random seed.
func NewTestDataGenerator() *TestDataGenerator {
	return &TestDataGenerator{faker: gofakeit.New(0)}
}

// NewTestDataGeneratorWithSeed creates a reproducible generator.
func NewTestDataGeneratorWithSeed(seed int64) *TestDataGenerator {
	return &TestDataGenerator{faker: gofakeit.New(seed)}
}

// StatementRow is one generated statement line.
type StatementRow struct {
	ID          uuid.UUID
	Date        time.Time
	Description string
	Amount      *Money
	Balance     *Money
	Reference   string
}

// Row generates a single statement row in the given currency.
func (g *TestDataGenerator) Row(currency string) StatementRow {
	cents := int64(g.faker.Number(1, 50000))
	amount := New(cents, currency)
	if g.faker.Bool() {
		amount = amount.Negate()
	}
	return StatementRow{
		ID:          uuid.New(),
		Date:        g.faker.DateRange(time.Now().AddDate(-1, 0, 0), time.Now()),
		Description: g.Merchant(),
		Amount:      amount,
		Balance:     New(int64(g.faker.Number(0, 1000000)), currency),
		Reference:   fmt.Sprintf("TX-%06d", g.faker.Number(1, 999999)),
	}
}

// Rows generates count statement rows.
func (g *TestDataGenerator) Rows(currency string, count int) []StatementRow {
	rows := make([]StatementRow, count)
	for i := range rows {
		rows[i] = g.Row(currency)
	}
	return rows
}

// Merchant generates a plausible statement description.
func (g *TestDataGenerator) Merchant() string {
	name := strings.ToUpper(g.faker.Company())
	return fmt.Sprintf("%s %03d", name, g.faker.Number(1, 999))
}

// CSVStatement renders rows as a delimited statement file, the shape the CSV
// extractor consumes.
func (g *TestDataGenerator) CSVStatement(rows []StatementRow, delimiter rune) string {
	var b strings.Builder
	b.WriteString(strings.Join([]string{"date", "description", "amount", "balance"}, string(delimiter)))
	b.WriteByte('\n')
	for _, row := range rows {
		fields := []string{
			row.Date.Format("02/01/2006"),
			row.Description,
			row.Amount.String(),
			row.Balance.String(),
		}
		b.WriteString(strings.Join(fields, string(delimiter)))
		b.WriteByte('\n')
	}
	return b.String()
}

// RawRows renders the generated rows as the key-value maps extraction
// methods emit, for driving fusion tests directly.
func (g *TestDataGenerator) RawRows(rows []StatementRow) []map[string]string {
	out := make([]map[string]string, len(rows))
	for i, row := range rows {
		out[i] = map[string]string{
			"date":        row.Date.Format("02/01/2006"),
			"description": row.Description,
			"amount":      row.Amount.String(),
			"balance":     row.Balance.String(),
			"reference":   row.Reference,
		}
	}
	return out
}
