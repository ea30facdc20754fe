package tse

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSymbolScanScheduler_OrdersByOccurredAtThenSequenceThenWatchRank(t *testing.T) {
	s := NewSymbolScanScheduler()
	base := time.Date(2026, 7, 31, 9, 10, 0, 0, time.UTC)

	s.EnqueueCandidate(BuyCandidate{OccurredAt: base.Add(time.Second), Sequence: 1, WatchRank: 1, Symbol: "later"})
	s.EnqueueCandidate(BuyCandidate{OccurredAt: base, Sequence: 2, WatchRank: 1, Symbol: "same-time-seq2"})
	s.EnqueueCandidate(BuyCandidate{OccurredAt: base, Sequence: 1, WatchRank: 2, Symbol: "same-time-seq1-rank2"})
	s.EnqueueCandidate(BuyCandidate{OccurredAt: base, Sequence: 1, WatchRank: 1, Symbol: "winner"})

	first, ok := s.PopNext()
	assert.True(t, ok)
	assert.Equal(t, "winner", first.Symbol)

	second, ok := s.PopNext()
	assert.True(t, ok)
	assert.Equal(t, "same-time-seq1-rank2", second.Symbol)

	third, ok := s.PopNext()
	assert.True(t, ok)
	assert.Equal(t, "same-time-seq2", third.Symbol)

	fourth, ok := s.PopNext()
	assert.True(t, ok)
	assert.Equal(t, "later", fourth.Symbol)

	_, ok = s.PopNext()
	assert.False(t, ok)
}

func TestSymbolScanScheduler_Clear(t *testing.T) {
	s := NewSymbolScanScheduler()
	s.EnqueueCandidate(BuyCandidate{Symbol: "x", CurrentPrice: decimal.NewFromInt(1)})
	s.Clear()
	_, ok := s.PopNext()
	assert.False(t, ok)
}
