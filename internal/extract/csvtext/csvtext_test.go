package csvtext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankfuse/bankfuse/internal/extract"
)

func TestExtractSimpleStatement(t *testing.T) {
	data := []byte("date,description,amount,balance\n" +
		"15/01/2025,GROCERY STORE,-45.20,1200.00\n" +
		"16/01/2025,SALARY,2500.00,3700.00\n")

	res, err := New(nil).Extract(context.Background(), data)
	require.NoError(t, err)

	assert.Equal(t, extract.MethodCSVText, res.Method)
	require.Len(t, res.Transactions, 2)

	first := res.Transactions[0]
	assert.Equal(t, "15/01/2025", first["date"])
	assert.Equal(t, "GROCERY STORE", first["description"])
	assert.Equal(t, "-45.2", first["amount"])
	assert.Equal(t, "1200.00", first["balance"])

	assert.Equal(t, "2500", res.Transactions[1]["amount"])
	assert.Greater(t, res.Confidence, 0.5)
	assert.Equal(t, 1.0, res.QualityMetrics["parse_rate"])
	assert.Less(t, res.ProcessingTime, time.Minute)
	assert.NotEmpty(t, res.Metadata["fingerprint"])
}

func TestExtractDoubleEntryPortuguese(t *testing.T) {
	data := []byte("Conta corrente\n" +
		"Data Mov.;Descrição;Débito;Crédito;Saldo\n" +
		"15/01/2025;SUPERMERCADO;45,20;;1.200,00\n" +
		"16/01/2025;ORDENADO;;2.500,00;3.700,00\n")

	res, err := New(nil).Extract(context.Background(), data)
	require.NoError(t, err)
	require.Len(t, res.Transactions, 2)

	assert.Equal(t, "-45.2", res.Transactions[0]["amount"])
	assert.Equal(t, "2500", res.Transactions[1]["amount"])
	assert.Equal(t, "SUPERMERCADO", res.Transactions[0]["description"])
}

func TestExtractSkipsDatelessRows(t *testing.T) {
	data := []byte("date,description,amount\n" +
		"15/01/2025,COFFEE,-3.50\n" +
		",Total,-3.50\n")

	res, err := New(nil).Extract(context.Background(), data)
	require.NoError(t, err)
	assert.Len(t, res.Transactions, 1)
}

func TestExtractUnparsableAmountLowersConfidence(t *testing.T) {
	good := []byte("date,description,amount\n" +
		"15/01/2025,COFFEE,-3.50\n" +
		"16/01/2025,LUNCH,-12.00\n")
	bad := []byte("date,description,amount\n" +
		"15/01/2025,COFFEE,-3.50\n" +
		"16/01/2025,LUNCH,abc\n")

	goodRes, err := New(nil).Extract(context.Background(), good)
	require.NoError(t, err)
	badRes, err := New(nil).Extract(context.Background(), bad)
	require.NoError(t, err)

	assert.Less(t, badRes.Confidence, goodRes.Confidence)
	assert.Equal(t, 0.5, badRes.QualityMetrics["parse_rate"])
	// raw value is preserved for downstream inspection
	assert.Equal(t, "abc", badRes.Transactions[1]["amount"])
}

func TestExtractEmptyFile(t *testing.T) {
	_, err := New(nil).Extract(context.Background(), nil)
	require.Error(t, err)
}

func TestExtractCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(nil).Extract(ctx, []byte("date,description,amount\n15/01/2025,X,-1.00\n"))
	assert.ErrorIs(t, err, context.Canceled)
}
