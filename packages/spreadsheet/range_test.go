package spreadsheet

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

func cellAt(col, row int) SimpleCellAddress {
	return SimpleCellAddress{Sheet: 1, Col: col, Row: row}
}

func span(startCol, startRow, endCol, endRow int) AbsoluteCellRange {
	return AbsoluteCellRange{Start: cellAt(startCol, startRow), End: cellAt(endCol, endRow)}
}

func TestAbsoluteCellRange(t *testing.T) {
	r, err := NewAbsoluteCellRange(cellAt(2, 5), cellAt(0, 1))
	require.NoError(t, err)
	require.Equal(t, span(0, 1, 2, 5), r)
	require.Equal(t, 3, r.Width())
	require.Equal(t, 5, r.Height())
	require.Equal(t, 15, r.Size())
	require.Equal(t, "1!A2:C6", r.String())

	_, err = NewAbsoluteCellRange(cellAt(0, 0), SimpleCellAddress{Sheet: 2})
	require.ErrorIs(t, err, ErrDifferentSheets)

	require.True(t, r.AddressInRange(cellAt(1, 3)))
	require.False(t, r.AddressInRange(cellAt(3, 3)))
	require.False(t, r.AddressInRange(SimpleCellAddress{Sheet: 2, Col: 1, Row: 3}))
	require.True(t, r.ContainsRange(span(1, 1, 2, 2)))
	require.False(t, r.ContainsRange(span(1, 0, 2, 2)))
	require.True(t, r.DoesOverlap(span(2, 5, 9, 9)))
	require.False(t, r.DoesOverlap(span(3, 0, 9, 9)))

	got := slices.Collect(span(0, 0, 1, 1).Addresses())
	require.Equal(t, []SimpleCellAddress{cellAt(0, 0), cellAt(1, 0), cellAt(0, 1), cellAt(1, 1)}, got)
	require.Equal(t, span(1, 1, 2, 3), SpanFrom(cellAt(1, 1), 2, 3))
}

func TestColumnLetters(t *testing.T) {
	for col, letters := range map[int]string{0: "A", 25: "Z", 26: "AA", 27: "AB", 701: "ZZ", 702: "AAA"} {
		require.Equal(t, letters, ColumnToLetters(col))
		back, ok := LettersToColumn(letters)
		require.True(t, ok)
		require.Equal(t, col, back)
	}
	_, ok := LettersToColumn("A1")
	require.False(t, ok)
}

func TestParseA1(t *testing.T) {
	col, row, absCol, absRow, err := parseA1("$C$10")
	require.NoError(t, err)
	require.Equal(t, []any{2, 9, true, true}, []any{col, row, absCol, absRow})

	col, row, absCol, absRow, err = parseA1("ab7")
	require.NoError(t, err)
	require.Equal(t, []any{27, 6, false, false}, []any{col, row, absCol, absRow})

	for _, bad := range []string{"", "1A", "A", "A0", "A-1", "$"} {
		_, _, _, _, err := parseA1(bad)
		require.Error(t, err, bad)
	}
}

func TestSheetPrefix(t *testing.T) {
	name, rest := splitSheetPrefix("'It''s here'!B2")
	require.Equal(t, "It's here", name)
	require.Equal(t, "B2", rest)

	name, rest = splitSheetPrefix("A1")
	require.Empty(t, name)
	require.Equal(t, "A1", rest)

	require.Equal(t, "Sheet1", quoteSheetName("Sheet1"))
	require.Equal(t, "'My Sheet'", quoteSheetName("My Sheet"))
	require.Equal(t, "'1st'", quoteSheetName("1st"))
	require.Equal(t, "'It''s'", quoteSheetName("It's"))
}

func materialize(dg *DependencyGraph, rm *RangeMapping, r AbsoluteCellRange) *Vertex {
	v := newRangeVertex(r)
	dg.AddVertex(v)
	rm.SetRange(v)
	return v
}

func TestRangeMappingPrefixes(t *testing.T) {
	dg := NewDependencyGraph()
	rm := NewRangeMapping(dg)
	small := materialize(dg, rm, span(0, 0, 0, 2))
	medium := materialize(dg, rm, span(0, 0, 0, 4))
	wide := materialize(dg, rm, span(0, 0, 1, 4))
	materialize(dg, rm, span(1, 0, 1, 9))
	require.Equal(t, 4, rm.Count())

	got, ok := rm.GetRange(cellAt(0, 0), cellAt(0, 4))
	require.True(t, ok)
	require.Equal(t, medium.ID(), got.ID())

	t.Run("LargestPrefix", func(t *testing.T) {
		sub, residual, ok := rm.FindLargestPrefix(span(0, 0, 0, 9))
		require.True(t, ok)
		require.Equal(t, medium.ID(), sub.ID())
		require.Equal(t, []AbsoluteCellRange{span(0, 5, 0, 9)}, residual)
	})

	t.Run("ColumnPrefix", func(t *testing.T) {
		sub, residual, ok := rm.FindLargestPrefix(span(0, 0, 3, 4))
		require.True(t, ok)
		require.Equal(t, wide.ID(), sub.ID())
		require.Equal(t, []AbsoluteCellRange{span(2, 0, 3, 4)}, residual)
	})

	t.Run("NoPrefix", func(t *testing.T) {
		sub, residual, ok := rm.FindLargestPrefix(span(0, 1, 0, 9))
		require.False(t, ok)
		require.Nil(t, sub)
		require.Equal(t, []AbsoluteCellRange{span(0, 1, 0, 9)}, residual)
	})

	t.Run("ContainedSubRangeNeedsEdge", func(t *testing.T) {
		target := materialize(dg, rm, span(0, 0, 0, 9))
		_, residual, ok := rm.FindContainedSubRange(target)
		require.False(t, ok)
		require.Equal(t, []AbsoluteCellRange{target.Range()}, residual)

		require.NoError(t, dg.AddEdge(small.ID(), target.ID()))
		sub, residual, ok := rm.FindContainedSubRange(target)
		require.True(t, ok)
		require.Equal(t, small.ID(), sub.ID())
		require.Equal(t, []AbsoluteCellRange{span(0, 3, 0, 9)}, residual)
	})

	t.Run("Queries", func(t *testing.T) {
		overlapping := rm.RangesOverlapping(span(1, 8, 5, 8))
		require.Len(t, overlapping, 1)
		require.Equal(t, span(1, 0, 1, 9), overlapping[0].Range())
		require.Len(t, rm.RangesOnSheet(1), 5)
		require.Empty(t, rm.RangesOnSheet(2))

		rm.RemoveRange(small)
		_, ok := rm.GetRange(small.Range().Start, small.Range().End)
		require.False(t, ok)
		require.Equal(t, 4, rm.Count())
	})
}
