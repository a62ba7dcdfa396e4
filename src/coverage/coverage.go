// Package coverage holds sets of h3 cells of mixed resolutions covering an
// area.
package coverage

import (
	"iter"
	"sort"

	"github.com/mappichat/rasterh3/src/project_types"
	"github.com/pkg/errors"
	h3 "github.com/uber/h3-go/v3"
)

const numResolutions = project_types.MaxResolution + 1

// CellCoverage is a set of cells bucketed by resolution.
//
// After Compact the contained cells do not overlap, even when they were
// added at different resolutions, and complete sets of siblings are
// replaced by their parent.
type CellCoverage struct {
	// resolutions with insertions since the last compaction
	modified [numResolutions]bool

	cells [numResolutions][]h3.H3Index
}

func New() *CellCoverage {
	return &CellCoverage{}
}

func (c *CellCoverage) Insert(cell h3.H3Index) {
	res := h3.Resolution(cell)
	c.cells[res] = append(c.cells[res], cell)
	c.modified[res] = true
}

// Append moves all cells of other into c, leaving other empty.
func (c *CellCoverage) Append(other *CellCoverage) {
	for res := range other.cells {
		if len(other.cells[res]) == 0 {
			continue
		}
		c.modified[res] = true
		c.cells[res] = append(c.cells[res], other.cells[res]...)
		other.cells[res] = nil
		other.modified[res] = false
	}
}

// Covers reports whether the cell or one of its ancestors is contained.
// Every call scans the buckets, use it sparingly.
func (c *CellCoverage) Covers(cell h3.H3Index) bool {
	cellRes := h3.Resolution(cell)
	for res := 0; res <= cellRes; res++ {
		search := cell
		if res != cellRes {
			search = h3.ToParent(cell, res)
		}
		for _, contained := range c.cells[res] {
			if contained == search {
				return true
			}
		}
	}
	return false
}

func sortDedup(cells []h3.H3Index) []h3.H3Index {
	if len(cells) < 2 {
		return cells
	}
	sort.Slice(cells, func(i, j int) bool { return cells[i] < cells[j] })
	out := cells[:1]
	for _, cell := range cells[1:] {
		if cell != out[len(out)-1] {
			out = append(out, cell)
		}
	}
	return out
}

// Dedup sorts every bucket and removes duplicates. With shrink the buckets
// release excess capacity. With removeCoveredByParent cells having an
// ancestor in a coarser bucket are dropped.
func (c *CellCoverage) Dedup(shrink bool, removeCoveredByParent bool) {
	nonEmpty := 0
	for res := range c.cells {
		c.cells[res] = sortDedup(c.cells[res])
		if shrink && cap(c.cells[res]) > len(c.cells[res]) {
			if len(c.cells[res]) == 0 {
				c.cells[res] = nil
			} else {
				c.cells[res] = append([]h3.H3Index(nil), c.cells[res]...)
			}
		}
		if len(c.cells[res]) > 0 {
			nonEmpty++
		}
	}

	if !removeCoveredByParent || nonEmpty < 2 {
		return
	}

	seen := map[h3.H3Index]struct{}{}
	for res := range c.cells {
		if len(seen) > 0 {
			kept := c.cells[res][:0]
			for _, cell := range c.cells[res] {
				if !hasAncestorIn(cell, seen) {
					kept = append(kept, cell)
				}
			}
			c.cells[res] = kept
		}
		for _, cell := range c.cells[res] {
			seen[cell] = struct{}{}
		}
	}
}

func hasAncestorIn(cell h3.H3Index, seen map[h3.H3Index]struct{}) bool {
	for res := h3.Resolution(cell) - 1; res >= 0; res-- {
		if _, ok := seen[h3.ToParent(cell, res)]; ok {
			return true
		}
	}
	return false
}

// Compact replaces complete sets of siblings with their parents, starting
// at the finest modified resolution and walking towards resolution 0, then
// removes cells covered by a coarser cell.
func (c *CellCoverage) Compact() error {
	c.Dedup(false, false)

	finest := -1
	for res := numResolutions - 1; res >= 0; res-- {
		if c.modified[res] {
			finest = res
			break
		}
	}

	if finest >= 0 {
		for res := finest; res >= 0; res-- {
			in := c.cells[res]
			c.cells[res] = nil
			compacted, err := compactCells(sortDedup(in), res)
			if err != nil {
				return err
			}
			for _, cell := range compacted {
				c.Insert(cell)
			}
		}
		c.modified = [numResolutions]bool{}
	}

	c.Dedup(true, true)
	return nil
}

// compactCells wraps h3.Compact, which neither reports errors nor accepts
// an empty set.
func compactCells(cells []h3.H3Index, res int) ([]h3.H3Index, error) {
	if len(cells) == 0 {
		return nil, nil
	}
	for _, cell := range cells {
		if !h3.IsValid(cell) || h3.Resolution(cell) != res {
			return nil, errors.Wrapf(project_types.ErrCompaction, "cell %s at resolution %d", h3.ToString(cell), res)
		}
	}
	compacted := h3.Compact(cells)
	for _, cell := range compacted {
		if !h3.IsValid(cell) || h3.Resolution(cell) > res {
			return nil, errors.Wrapf(project_types.ErrCompaction, "compacted to %s", h3.ToString(cell))
		}
	}
	return compacted, nil
}

// Finalize prepares the coverage for iteration.
func (c *CellCoverage) Finalize(compact bool) error {
	if compact {
		return c.Compact()
	}
	c.Dedup(true, true)
	return nil
}

// CompactedIter yields all cells, coarsest resolution first.
func (c *CellCoverage) CompactedIter() iter.Seq[h3.H3Index] {
	return func(yield func(h3.H3Index) bool) {
		for res := range c.cells {
			for _, cell := range c.cells[res] {
				if !yield(cell) {
					return
				}
			}
		}
	}
}

// UncompactedIter yields the cells at the target resolution, coarser cells
// are expanded into their descendants. Cells finer than target and invalid
// targets yield nothing.
func (c *CellCoverage) UncompactedIter(target int) iter.Seq[h3.H3Index] {
	return func(yield func(h3.H3Index) bool) {
		if project_types.ValidateResolution(target) != nil {
			return
		}
		for res := 0; res <= target; res++ {
			for _, cell := range c.cells[res] {
				if res == target {
					if !yield(cell) {
						return
					}
					continue
				}
				for _, child := range h3.ToChildren(cell, target) {
					if !yield(child) {
						return
					}
				}
			}
		}
	}
}

// Cells returns a copy of all cells in CompactedIter order.
func (c *CellCoverage) Cells() []h3.H3Index {
	out := make([]h3.H3Index, 0, c.Len())
	for cell := range c.CompactedIter() {
		out = append(out, cell)
	}
	return out
}

// Resolutions counts the cells per non-empty resolution.
func (c *CellCoverage) Resolutions() map[int]int {
	out := map[int]int{}
	for res, cells := range c.cells {
		if len(cells) > 0 {
			out[res] = len(cells)
		}
	}
	return out
}

func (c *CellCoverage) Len() int {
	n := 0
	for _, cells := range c.cells {
		n += len(cells)
	}
	return n
}

func (c *CellCoverage) IsEmpty() bool {
	for _, cells := range c.cells {
		if len(cells) > 0 {
			return false
		}
	}
	return true
}
