package markov

import (
	"math"
	"sort"
)

// #region snapshot-types
// Transition is one weighted destination of a row.
type Transition struct {
	Dst    string  `json:"dst"`
	Weight float64 `json:"weight"`
}

// Row is one source app and its destinations, heaviest first.
type Row struct {
	Src         string       `json:"src"`
	Transitions []Transition `json:"transitions"`
}

// Snapshot is the export form of a Table. Rows are ordered by source id.
type Snapshot struct {
	TopM  int     `json:"top_m"`
	Decay float64 `json:"decay"`
	Rows  []Row   `json:"rows"`
}

// #endregion snapshot-types

// #region export
// Export copies the table into a Snapshot.
func (t *Table) Export() Snapshot {
	srcs := make([]string, 0, len(t.rows))
	for src := range t.rows {
		srcs = append(srcs, src)
	}
	sort.Strings(srcs)

	snap := Snapshot{TopM: t.topM, Decay: t.decay, Rows: make([]Row, 0, len(srcs))}
	for _, src := range srcs {
		snap.Rows = append(snap.Rows, Row{Src: src, Transitions: sortedEntries(t.rows[src])})
	}
	return snap
}

// #endregion export

// #region import
// Import replaces the table contents with snap. The table keeps its own topM
// and decay; rows larger than topM are pruned, and entries with empty ids,
// self-transitions or non-finite/negative weights are dropped. It returns
// the number of transitions loaded.
func (t *Table) Import(snap Snapshot) int {
	t.rows = make(map[string]map[string]float64, len(snap.Rows))
	for _, r := range snap.Rows {
		if r.Src == "" {
			continue
		}
		row := t.rows[r.Src]
		for _, tr := range r.Transitions {
			if tr.Dst == "" || tr.Dst == r.Src || !validWeight(tr.Weight) {
				continue
			}
			if row == nil {
				row = make(map[string]float64)
				t.rows[r.Src] = row
			}
			row[tr.Dst] = tr.Weight
		}
		if row == nil {
			continue
		}
		t.prune(row, "")
	}
	loaded := 0
	for _, row := range t.rows {
		loaded += len(row)
	}
	return loaded
}

func validWeight(w float64) bool {
	return w >= 0 && !math.IsNaN(w) && !math.IsInf(w, 0)
}

// #endregion import
