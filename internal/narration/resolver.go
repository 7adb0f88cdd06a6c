package narration

import (
	"sort"
	"time"
)

// ResolveToken returns the smallest token index whose cumulative weight is
// >= target. Returns -1 for an empty model. Targets past the end resolve to
// the last token.
func (m *WeightModel) ResolveToken(target float64) int {
	if m.Empty() {
		return -1
	}
	n := len(m.Tokens)
	i := sort.Search(n, func(i int) bool {
		return m.Tokens[i].CumulativeWeight >= target
	})
	if i == n {
		return n - 1
	}
	return i
}

// ResolveProgress maps normalized progress in [0,1] to a token index
func (m *WeightModel) ResolveProgress(progress float64) int {
	if m.Empty() {
		return -1
	}
	return m.ResolveToken(clamp01(progress) * m.TotalWeight)
}

// ResolveTime returns the playback position where a token starts: the share
// of the total weight consumed by the tokens before it, scaled to duration.
// ok is false when the model is empty, the duration is unknown or the index
// is out of range.
func (m *WeightModel) ResolveTime(index int, duration time.Duration) (time.Duration, bool) {
	if m.Empty() || duration <= 0 || index < 0 || index >= len(m.Tokens) {
		return 0, false
	}
	if index == 0 {
		return 0, true
	}
	share := m.Tokens[index-1].CumulativeWeight / m.TotalWeight
	pos := time.Duration(share * float64(duration))
	return clampDuration(pos, 0, duration), true
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}
