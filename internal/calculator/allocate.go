// Package calculator implements the bill split arithmetic: distributing an
// integer amount of minor units across weighted members without creating or
// destroying a single unit.
package calculator

import (
	"math"
	"sort"
)

// Weight is one member's share weight. Weights are passed as an ordered
// slice, not a map: tie-breaking during remainder distribution follows input
// order, so iteration order is load-bearing and Go map order would make the
// result non-deterministic.
type Weight struct {
	MemberID string
	Value    float64
}

// Allocate splits amount across the weighted members using floor plus
// largest-remainder. This is the standard way to hand out indivisible
// currency units proportionally: every member gets the floor of their exact
// share, then the leftover units go one each to the members whose exact
// shares had the largest fractional parts (ties broken by input order).
//
// When the weight total is not positive the split degenerates to an equal
// split: everyone gets amount/n, and the first amount%n members in input
// order get one extra unit.
//
// Postconditions: the results sum to amount exactly, every share is >= 0,
// and no share deviates from its exact proportional value by a full unit.
// Identical input always yields identical output.
func Allocate(amount int64, weights []Weight) map[string]int64 {
	if len(weights) == 0 {
		return map[string]int64{}
	}

	var totalWeight float64
	for _, w := range weights {
		if w.Value > 0 {
			totalWeight += w.Value
		}
	}
	if totalWeight <= 0 {
		return equalSplit(amount, weights)
	}

	shares := make(map[string]int64, len(weights))
	fracs := make([]struct {
		idx  int
		frac float64
	}, 0, len(weights))

	var distributed int64
	for i, w := range weights {
		v := w.Value
		if v < 0 {
			v = 0
		}
		raw := float64(amount) * v / totalWeight
		floored := int64(math.Floor(raw))
		shares[w.MemberID] = floored
		distributed += floored
		fracs = append(fracs, struct {
			idx  int
			frac float64
		}{i, raw - float64(floored)})
	}

	// Hand out the remaining units by descending fractional part, input
	// order breaking ties.
	sort.SliceStable(fracs, func(a, b int) bool {
		return fracs[a].frac > fracs[b].frac
	})
	remainder := amount - distributed
	for i := int64(0); i < remainder && i < int64(len(fracs)); i++ {
		shares[weights[fracs[i].idx].MemberID]++
	}
	return shares
}

func equalSplit(amount int64, weights []Weight) map[string]int64 {
	n := int64(len(weights))
	base := amount / n
	remainder := amount - base*n

	shares := make(map[string]int64, len(weights))
	for _, w := range weights {
		shares[w.MemberID] = base
	}
	for i := int64(0); i < remainder; i++ {
		shares[weights[i].MemberID]++
	}
	return shares
}
