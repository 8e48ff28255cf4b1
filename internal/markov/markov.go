// Package markov keeps a decayed app-to-app transition table bounded to the
// top M destinations per source app.
//
// Thread safety: NOT safe for concurrent use. The engine serializes access.
package markov

import (
	"math"
	"sort"
)

// #region table
// Table maps source app -> (destination app -> decayed weight).
type Table struct {
	topM  int
	decay float64
	rows  map[string]map[string]float64
}

// NewTable creates an empty table. topM bounds every row; decay in (0, 1]
// multiplies a row's existing weights before each new observation.
func NewTable(topM int, decay float64) *Table {
	return &Table{
		topM:  topM,
		decay: decay,
		rows:  make(map[string]map[string]float64),
	}
}

// TopM returns the per-row bound.
func (t *Table) TopM() int { return t.topM }

// Decay returns the per-update decay factor.
func (t *Table) Decay() float64 { return t.decay }

// #endregion table

// #region update
// Update records the transition a -> b. Empty ids and self-transitions are
// ignored.
func (t *Table) Update(a, b string) {
	if a == "" || b == "" || a == b {
		return
	}
	row, ok := t.rows[a]
	if !ok {
		row = make(map[string]float64)
		t.rows[a] = row
	}
	for k, w := range row {
		row[k] = w * t.decay
	}
	row[b] += 1.0
	t.prune(row, b)
}

// prune evicts minimum-weight entries until the row fits. keep loses ties
// against any other entry; remaining ties evict the smallest destination id.
func (t *Table) prune(row map[string]float64, keep string) {
	for len(row) > t.topM {
		victim := ""
		found := false
		minW := math.Inf(1)
		for k, w := range row {
			if !found || evictBefore(k, w, victim, minW, keep) {
				victim, minW, found = k, w, true
			}
		}
		delete(row, victim)
	}
}

func evictBefore(k string, w float64, cur string, curW float64, keep string) bool {
	if w != curW {
		return w < curW
	}
	if (k == keep) != (cur == keep) {
		return cur == keep
	}
	return k < cur
}

// #endregion update

// #region query
// TopN returns up to n destinations of a sorted by weight descending; equal
// weights are ordered by destination id.
func (t *Table) TopN(a string, n int) []string {
	row := t.rows[a]
	if len(row) == 0 || n <= 0 {
		return []string{}
	}
	entries := sortedEntries(row)
	if n > len(entries) {
		n = len(entries)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = entries[i].Dst
	}
	return out
}

// Weight returns the weight of a -> b, or 0.
func (t *Table) Weight(a, b string) float64 {
	return t.rows[a][b]
}

// RowLen returns the number of destinations tracked for a.
func (t *Table) RowLen(a string) int {
	return len(t.rows[a])
}

// Rows returns the number of source apps.
func (t *Table) Rows() int {
	return len(t.rows)
}

// MaxRowLen returns the size of the largest row.
func (t *Table) MaxRowLen() int {
	max := 0
	for _, row := range t.rows {
		if len(row) > max {
			max = len(row)
		}
	}
	return max
}

func sortedEntries(row map[string]float64) []Transition {
	entries := make([]Transition, 0, len(row))
	for dst, w := range row {
		entries = append(entries, Transition{Dst: dst, Weight: w})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Weight != entries[j].Weight {
			return entries[i].Weight > entries[j].Weight
		}
		return entries[i].Dst < entries[j].Dst
	})
	return entries
}

// #endregion query
