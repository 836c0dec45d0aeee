package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankfuse/bankfuse/internal/fusion"
)

func sampleResult() *fusion.CombinedResult {
	return &fusion.CombinedResult{
		Transactions: []fusion.Transaction{
			{Date: "15/01/2025", Amount: -45.2, Description: "GROCERY STORE"},
		},
		ProcessingSummary: fusion.ProcessingSummary{
			MethodsUsed:    []string{"csvtext"},
			FusionStrategy: "single_method",
		},
	}
}

func TestKeyIsStable(t *testing.T) {
	a := Key([]byte("statement bytes"))
	b := Key([]byte("statement bytes"))
	c := Key([]byte("different bytes"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestPutGetRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir(), time.Hour, nil)
	require.NoError(t, err)

	key := Key([]byte("data"))
	require.NoError(t, store.Put(context.Background(), key, sampleResult()))

	got, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	require.Len(t, got.Transactions, 1)
	assert.Equal(t, "GROCERY STORE", got.Transactions[0].Description)
	assert.Equal(t, "single_method", got.ProcessingSummary.FusionStrategy)
}

func TestGetMiss(t *testing.T) {
	store, err := NewStore(t.TempDir(), time.Hour, nil)
	require.NoError(t, err)

	_, err = store.Get(context.Background(), Key([]byte("never stored")))
	assert.ErrorIs(t, err, ErrMiss)
}

func TestGetExpired(t *testing.T) {
	store, err := NewStore(t.TempDir(), time.Millisecond, nil)
	require.NoError(t, err)

	key := Key([]byte("data"))
	require.NoError(t, store.Put(context.Background(), key, sampleResult()))

	time.Sleep(10 * time.Millisecond)
	_, err = store.Get(context.Background(), key)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestGetCorruptEntry(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, time.Hour, nil)
	require.NoError(t, err)

	key := Key([]byte("data"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, key+".json"), []byte("{not json"), 0o644))

	_, err = store.Get(context.Background(), key)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestSweepRemovesExpired(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, 50*time.Millisecond, nil)
	require.NoError(t, err)

	oldKey := Key([]byte("old"))
	require.NoError(t, store.Put(context.Background(), oldKey, sampleResult()))

	time.Sleep(60 * time.Millisecond)

	freshKey := Key([]byte("fresh"))
	require.NoError(t, store.Put(context.Background(), freshKey, sampleResult()))

	removed, err := store.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = store.Get(context.Background(), oldKey)
	assert.ErrorIs(t, err, ErrMiss)
	_, err = store.Get(context.Background(), freshKey)
	assert.NoError(t, err)
}

func TestSchedulerStartStop(t *testing.T) {
	store, err := NewStore(t.TempDir(), time.Hour, nil)
	require.NoError(t, err)

	sched := NewScheduler(store, nil)
	require.NoError(t, sched.Start("* * * * *"))
	<-sched.Stop().Done()

	assert.Error(t, NewScheduler(store, nil).Start("not a schedule"))
}
