package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRates(t *testing.T) {
	tbl := NewTable()

	assert.Equal(t, 0.1, tbl.Rate("arxiv"))
	assert.Equal(t, 1.0, tbl.Rate("crossref"))
	assert.Equal(t, 5.0, tbl.Rate("openalex"))
	assert.Equal(t, 2.0, tbl.Rate("preprints"))
	assert.Equal(t, DefaultRate, tbl.Rate("some-new-source"))
}

func TestSetRateOverrides(t *testing.T) {
	tbl := NewTable()
	tbl.SetRate("crossref", 10)
	assert.Equal(t, 10.0, tbl.Rate("crossref"))
}

func TestFirstWaitIsImmediate(t *testing.T) {
	tbl := NewTable()
	tbl.SetRate("slow", 0.01)

	start := time.Now()
	require.NoError(t, tbl.Wait(context.Background(), "slow"))
	// Burst of 1: the first token is free, only the second waits.
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestWaitHonorsContextCancel(t *testing.T) {
	tbl := NewTable()
	tbl.SetRate("slow", 0.01)
	require.NoError(t, tbl.Wait(context.Background(), "slow"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := tbl.Wait(ctx, "slow")
	assert.Error(t, err)
}
