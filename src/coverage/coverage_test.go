package coverage

import (
	"slices"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mappichat/rasterh3/src/project_types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	h3 "github.com/uber/h3-go/v3"
)

var karlsruhe = h3.GeoCoord{Latitude: 49.0069, Longitude: 8.4037}

func sorted(cells []h3.H3Index) []h3.H3Index {
	out := append([]h3.H3Index(nil), cells...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func assertNoAncestors(t *testing.T, c *CellCoverage) {
	t.Helper()
	cells := c.Cells()
	set := map[h3.H3Index]struct{}{}
	for _, cell := range cells {
		_, dup := set[cell]
		assert.False(t, dup, "duplicate cell %s", h3.ToString(cell))
		set[cell] = struct{}{}
	}
	for _, cell := range cells {
		for res := h3.Resolution(cell) - 1; res >= 0; res-- {
			_, ok := set[h3.ToParent(cell, res)]
			assert.False(t, ok, "ancestor of %s at resolution %d is present", h3.ToString(cell), res)
		}
	}
}

func TestCompactCompleteSiblings(t *testing.T) {
	parent := h3.FromGeo(karlsruhe, 5)
	children := h3.ToChildren(parent, 6)
	require.Len(t, children, 7)

	c := New()
	for _, child := range children {
		c.Insert(child)
	}
	// duplicates are dropped too
	c.Insert(children[0])
	assert.Equal(t, 8, c.Len())

	require.NoError(t, c.Compact())
	assert.Equal(t, []h3.H3Index{parent}, c.Cells())
	assert.Equal(t, map[int]int{5: 1}, c.Resolutions())

	for _, child := range children {
		assert.True(t, c.Covers(child))
	}
	assert.True(t, c.Covers(parent))
	assert.False(t, c.Covers(h3.ToParent(parent, 4)))
}

func TestCompactRecursesTowardsResolutionZero(t *testing.T) {
	grandparent := h3.FromGeo(karlsruhe, 4)
	grandchildren := h3.ToChildren(grandparent, 6)
	require.Len(t, grandchildren, 49)

	c := New()
	for _, cell := range grandchildren {
		c.Insert(cell)
	}
	require.NoError(t, c.Compact())
	assert.Equal(t, []h3.H3Index{grandparent}, c.Cells())
}

func TestCompactKeepsIncompleteSets(t *testing.T) {
	parent := h3.FromGeo(karlsruhe, 7)
	children := h3.ToChildren(parent, 8)

	c := New()
	for _, child := range children[1:] {
		c.Insert(child)
	}
	require.NoError(t, c.Compact())
	if diff := cmp.Diff(sorted(children[1:]), c.Cells()); diff != "" {
		t.Errorf("cells mismatch (-want +got):\n%s", diff)
	}
}

func TestCompactIdempotent(t *testing.T) {
	parent := h3.FromGeo(karlsruhe, 6)
	c := New()
	for _, child := range h3.ToChildren(parent, 7) {
		c.Insert(child)
	}
	// an incomplete neighbourhood at a finer resolution
	neighbour := h3.FromGeo(h3.GeoCoord{Latitude: 49.2, Longitude: 8.9}, 8)
	siblings := h3.ToChildren(h3.ToParent(neighbour, 7), 8)
	for _, cell := range siblings[:4] {
		c.Insert(cell)
	}

	require.NoError(t, c.Compact())
	first := c.Cells()
	require.NoError(t, c.Compact())
	assert.Equal(t, first, c.Cells())
	assertNoAncestors(t, c)
}

func TestCompactRemovesCoveredCells(t *testing.T) {
	parent := h3.FromGeo(karlsruhe, 5)
	inserted := []h3.H3Index{parent}
	inserted = append(inserted, h3.ToChildren(parent, 7)[:10]...)
	inserted = append(inserted, h3.ToChildren(parent, 9)[:3]...)

	c := New()
	for _, cell := range inserted {
		c.Insert(cell)
	}
	for _, cell := range inserted {
		assert.True(t, c.Covers(cell))
	}

	require.NoError(t, c.Compact())
	assert.Equal(t, []h3.H3Index{parent}, c.Cells())
	for _, cell := range inserted {
		assert.True(t, c.Covers(cell))
	}
	assertNoAncestors(t, c)
}

func TestFinalizeWithoutCompaction(t *testing.T) {
	parent := h3.FromGeo(karlsruhe, 5)
	children := h3.ToChildren(parent, 6)

	c := New()
	for _, child := range children {
		c.Insert(child)
		c.Insert(child)
	}
	require.NoError(t, c.Finalize(false))
	// siblings are not collapsed into their parent
	assert.Equal(t, sorted(children), c.Cells())

	c.Insert(parent)
	require.NoError(t, c.Finalize(false))
	// but cells already covered by a coarser one are removed
	assert.Equal(t, []h3.H3Index{parent}, c.Cells())
}

func TestAppend(t *testing.T) {
	a, b := New(), New()
	parent := h3.FromGeo(karlsruhe, 5)
	children := h3.ToChildren(parent, 6)
	for _, child := range children[:3] {
		a.Insert(child)
	}
	for _, child := range children[3:] {
		b.Insert(child)
	}

	a.Append(b)
	assert.True(t, b.IsEmpty())
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 7, a.Len())

	require.NoError(t, a.Finalize(true))
	assert.Equal(t, []h3.H3Index{parent}, a.Cells())
}

func TestAppendOrderDoesNotMatter(t *testing.T) {
	parent := h3.FromGeo(karlsruhe, 6)
	cells := h3.ToChildren(parent, 8)[:30]

	build := func(order []int) []h3.H3Index {
		total := New()
		for _, i := range order {
			part := New()
			part.Insert(cells[i])
			part.Insert(cells[(i+5)%len(cells)])
			require.NoError(t, part.Finalize(true))
			total.Append(part)
		}
		require.NoError(t, total.Finalize(true))
		return total.Cells()
	}

	forward := make([]int, len(cells))
	for i := range forward {
		forward[i] = i
	}
	backward := slices.Clone(forward)
	slices.Reverse(backward)
	assert.Equal(t, build(forward), build(backward))
}

func TestUncompactedIter(t *testing.T) {
	parent := h3.FromGeo(karlsruhe, 5)
	children := h3.ToChildren(parent, 7)
	other := h3.FromGeo(h3.GeoCoord{Latitude: 10, Longitude: 10}, 7)

	c := New()
	for _, child := range children {
		c.Insert(child)
	}
	c.Insert(other)
	require.NoError(t, c.Compact())
	assert.Equal(t, 2, c.Len())

	var got []h3.H3Index
	for cell := range c.UncompactedIter(7) {
		got = append(got, cell)
	}
	want := append(slices.Clone(children), other)
	assert.Equal(t, sorted(want), sorted(got))

	// restartable
	n := 0
	for range c.UncompactedIter(7) {
		n++
	}
	assert.Equal(t, len(want), n)

	// cells finer than the target are not part of the expansion
	n = 0
	for range c.UncompactedIter(5) {
		n++
	}
	assert.Equal(t, 1, n)

	for range c.UncompactedIter(16) {
		t.Fatal("invalid resolution must not yield cells")
	}
}

func TestCompactedIterStops(t *testing.T) {
	c := New()
	for _, cell := range h3.ToChildren(h3.FromGeo(karlsruhe, 5), 6)[:3] {
		c.Insert(cell)
	}
	n := 0
	for range c.CompactedIter() {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestCompactRejectsInvalidCells(t *testing.T) {
	c := New()
	c.Insert(h3.H3Index(0))
	err := c.Compact()
	assert.ErrorIs(t, err, project_types.ErrCompaction)
}

func TestEmptyCoverage(t *testing.T) {
	c := New()
	assert.True(t, c.IsEmpty())
	require.NoError(t, c.Compact())
	assert.Empty(t, c.Cells())
	assert.False(t, c.Covers(h3.FromGeo(karlsruhe, 3)))
}
