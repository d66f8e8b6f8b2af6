package query

import "fmt"

// ChangeRow is one row of a query's sorted+filtered candidate set,
// annotated with the bookkeeping the query-changes engine needs:
// whether it is currently active-and-matching, its modseq, and (for
// thread-collapsed mode) which thread it belongs to.
type ChangeRow struct {
	Id       string
	IsIn     bool // active && filter(row), at current state
	ModSeq   int64
	ThreadId string // only consulted when Collapse is true
}

// Added is one entry of a queryChanges response's "added" list.
type Added struct {
	Id    string
	Index int
}

// Delta is the result of reconstructing the edit between two query
// states: the ids to remove and, for ids still in the result, where to
// reinsert them.
type Delta struct {
	Removed []string
	Added   []Added
	Total   int
}

// ErrCannotCalculateChanges is returned when the number of changed rows
// exceeds maxChanges.
var ErrCannotCalculateChanges = fmt.Errorf("cannotCalculateChanges")

// Uncollapsed reconstructs the delta for a non-thread-collapsed query
// (spec §4.7 "Uncollapsed" mode). rows must already be in current sort
// order. upToId, if non-empty, stops further *reporting* once reached —
// total counting continues regardless.
func Uncollapsed(rows []ChangeRow, sinceQueryState int64, maxChanges int, upToId string) (Delta, error) {
	var d Delta
	changes := 0
	reporting := true

	for idx, row := range rows {
		if row.IsIn {
			d.Total++
		}
		changed := row.ModSeq > sinceQueryState
		if changed {
			changes++
			if maxChanges > 0 && changes > maxChanges {
				return Delta{}, ErrCannotCalculateChanges
			}
		}

		if row.Id == upToId {
			reporting = false
		}
		if !reporting {
			continue
		}
		if changed {
			d.Removed = append(d.Removed, row.Id)
			if row.IsIn {
				d.Added = append(d.Added, Added{Id: row.Id, Index: d.Total - 1})
			}
		}

		_ = idx
	}
	return d, nil
}

// threadState tracks the per-thread bookkeeping Collapsed needs while
// walking rows in sort order.
type threadState struct {
	exemplar string
	finished bool
	hasExemp bool
}

// Collapsed reconstructs the delta for a thread-collapsed query (spec
// §4.7 "Collapsed" mode), including the subtle case where a thread's
// exemplar (the first in-filter message of the thread, in sort order)
// changes between the two states.
//
// Per thread: the exemplar is the first in-filter row seen; once an
// unchanged in-filter row is observed for a thread, that thread is
// marked finished and no further rows of it are reported. This matches
// the source's conservative termination rule — see the Collapsed
// queryChanges correctness Open Question in DESIGN.md for why this can
// under-report when an exemplar moves backward across the sort.
func Collapsed(rows []ChangeRow, sinceQueryState int64, maxChanges int, upToId string) (Delta, error) {
	var d Delta
	changes := 0
	reporting := true
	threads := make(map[string]*threadState)

	for _, row := range rows {
		ts := threads[row.ThreadId]
		if ts == nil {
			ts = &threadState{}
			threads[row.ThreadId] = ts
		}
		if ts.finished {
			continue
		}

		if row.Id == upToId {
			reporting = false
		}

		isIn := row.IsIn
		isExemplar := false
		if isIn && !ts.hasExemp {
			ts.exemplar = row.Id
			ts.hasExemp = true
			d.Total++
			isExemplar = true
		} else if isIn && ts.hasExemp && ts.exemplar == row.Id {
			isExemplar = true
		}

		changed := row.ModSeq > sinceQueryState
		if changed {
			changes++
			if maxChanges > 0 && changes > maxChanges {
				return Delta{}, ErrCannotCalculateChanges
			}
		}

		switch {
		case changed && isExemplar:
			if reporting {
				d.Removed = append(d.Removed, row.Id)
				d.Added = append(d.Added, Added{Id: row.Id, Index: d.Total - 1})
			}
		case changed && !isExemplar:
			// This row is not the thread's new exemplar, but it changed,
			// so it may have been the client's previously-visible
			// exemplar (e.g. deleted, or pushed out of exemplar position
			// by a property change). Conservatively report it removed
			// with no corresponding add — the row that is now the
			// exemplar gets its own added entry when we reach it.
			if reporting {
				d.Removed = append(d.Removed, row.Id)
			}
		case !changed && isIn && isExemplar:
			// Unchanged, currently the exemplar: nothing to report, and
			// we now know this thread's exemplar for certain.
			ts.finished = true
		case !changed && isIn && !isExemplar:
			// Unchanged and never the exemplar (old or new): the client
			// never saw this id, so there is nothing to remove. This is
			// also where the thread is marked finished — see the
			// Collapsed queryChanges correctness note in DESIGN.md for
			// the known under-report when an unchanged row should have
			// been promoted to exemplar by an earlier row's removal.
			ts.finished = true
		}
	}
	return d, nil
}
