package tables

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankfuse/bankfuse/internal/extract"
)

func statementTable() Table {
	return Table{
		Page:       1,
		Header:     []string{"Date", "Description", "Amount", "Balance"},
		Confidence: 0.9,
		Rows: [][]string{
			{"15/01/2025", "GROCERY STORE", "-45.20", "1200.00"},
			{"16/01/2025", "SALARY", "2500.00", "3700.00"},
		},
	}
}

func TestFillRatio(t *testing.T) {
	table := Table{Rows: [][]string{{"a", "", "b"}, {"", "c", "d"}}}
	assert.InDelta(t, 4.0/6.0, table.FillRatio(), 1e-9)
	assert.Equal(t, 0.0, Table{}.FillRatio())
}

func TestFromTables(t *testing.T) {
	res, err := New(nil, nil).FromTables(context.Background(), []Table{statementTable()})
	require.NoError(t, err)

	assert.Equal(t, extract.MethodTableGrid, res.Method)
	require.Len(t, res.Transactions, 2)
	assert.Equal(t, "-45.2", res.Transactions[0]["amount"])
	assert.Equal(t, "1200.00", res.Transactions[0]["balance"])
	assert.InDelta(t, 0.9, res.QualityMetrics["table_confidence"], 1e-9)
	assert.InDelta(t, 1.0, res.QualityMetrics["fill_ratio"], 1e-9)
	assert.InDelta(t, extract.BaseWeight(extract.MethodTableGrid)*0.9, res.Confidence, 1e-9)
}

func TestFromTablesSkipsLowConfidenceAndNonStatement(t *testing.T) {
	junk := Table{
		Header:     []string{"Name", "Phone"},
		Confidence: 0.95,
		Rows:       [][]string{{"Alice", "123"}},
	}
	shaky := statementTable()
	shaky.Confidence = 0.3

	res, err := New(nil, nil).FromTables(context.Background(), []Table{junk, shaky, statementTable()})
	require.NoError(t, err)
	assert.Equal(t, "1", res.Metadata["tables_used"])
	assert.Len(t, res.Transactions, 2)
}

func TestFromTablesNoUsableTables(t *testing.T) {
	_, err := New(nil, nil).FromTables(context.Background(), nil)
	require.Error(t, err)

	junk := Table{Header: []string{"Name", "Phone"}, Confidence: 0.9, Rows: [][]string{{"x", "y"}}}
	_, err = New(nil, nil).FromTables(context.Background(), []Table{junk})
	require.Error(t, err)
}

type fakeDetector struct {
	tables []Table
	err    error
}

func (f *fakeDetector) Detect(_ context.Context, _ []byte) ([]Table, error) {
	return f.tables, f.err
}

func TestExtractUsesDetector(t *testing.T) {
	res, err := New(&fakeDetector{tables: []Table{statementTable()}}, nil).
		Extract(context.Background(), []byte("%PDF"))
	require.NoError(t, err)
	assert.Len(t, res.Transactions, 2)
}

func TestExtractDetectorFailure(t *testing.T) {
	_, err := New(&fakeDetector{err: errors.New("render failed")}, nil).
		Extract(context.Background(), nil)
	require.Error(t, err)

	_, err = New(nil, nil).Extract(context.Background(), nil)
	require.Error(t, err)
}
