package tse

import (
	"container/heap"
	"time"

	"github.com/shopspring/decimal"
)

// BuyCandidate is one symbol's rebound-triggered entry, ordered by
// occurredAt, then sequence, then watchRank — all ascending, so the
// scheduler always pops the earliest, lowest-sequence, highest-priority
// (lowest watchRank) candidate first.
type BuyCandidate struct {
	OccurredAt   time.Time
	Sequence     int
	WatchRank    int
	Symbol       string
	CurrentPrice decimal.Decimal
	ReboundRate  decimal.Decimal
}

func (c BuyCandidate) less(other BuyCandidate) bool {
	if !c.OccurredAt.Equal(other.OccurredAt) {
		return c.OccurredAt.Before(other.OccurredAt)
	}
	if c.Sequence != other.Sequence {
		return c.Sequence < other.Sequence
	}
	return c.WatchRank < other.WatchRank
}

type candidateHeap []BuyCandidate

func (h candidateHeap) Len() int            { return len(h) }
func (h candidateHeap) Less(i, j int) bool  { return h[i].less(h[j]) }
func (h candidateHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x any)         { *h = append(*h, x.(BuyCandidate)) }
func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// SymbolScanScheduler orders buy candidates across all watched symbols so
// the portfolio gate's single slot always goes to the earliest-qualifying
// one.
type SymbolScanScheduler struct {
	heap candidateHeap
}

// NewSymbolScanScheduler builds an empty scheduler.
func NewSymbolScanScheduler() *SymbolScanScheduler {
	s := &SymbolScanScheduler{}
	heap.Init(&s.heap)
	return s
}

// EnqueueCandidate adds a rebound-triggered candidate to the heap.
func (s *SymbolScanScheduler) EnqueueCandidate(c BuyCandidate) {
	heap.Push(&s.heap, c)
}

// PopNext removes and returns the highest-priority candidate, or false if
// the scheduler is empty.
func (s *SymbolScanScheduler) PopNext() (BuyCandidate, bool) {
	if s.heap.Len() == 0 {
		return BuyCandidate{}, false
	}
	return heap.Pop(&s.heap).(BuyCandidate), true
}

// Clear drops every pending candidate.
func (s *SymbolScanScheduler) Clear() {
	s.heap = s.heap[:0]
}
