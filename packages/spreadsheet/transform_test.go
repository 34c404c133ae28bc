package spreadsheet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShiftCoordinate(t *testing.T) {
	tests := []struct {
		name                string
		coord, start, count int
		insert              bool
		want                int
		wantOK              bool
	}{
		{"insert before", 5, 2, 3, true, 8, true},
		{"insert at", 2, 2, 3, true, 5, true},
		{"insert after", 1, 2, 3, true, 1, true},
		{"delete before", 1, 2, 3, false, 1, true},
		{"delete inside", 3, 2, 3, false, 0, false},
		{"delete after", 7, 2, 3, false, 4, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := shiftCoordinate(tt.coord, tt.start, tt.count, tt.insert)
			require.Equal(t, tt.wantOK, ok)
			if ok {
				require.Equal(t, tt.want, got)
			}
		})
	}
}

func TestClipSpan(t *testing.T) {
	tests := []struct {
		name               string
		lo, hi, start, cnt int
		wantLo, wantHi     int
		wantOK             bool
	}{
		{"before", 0, 1, 5, 2, 0, 1, true},
		{"after", 8, 9, 5, 2, 6, 7, true},
		{"tail clipped", 3, 6, 5, 2, 3, 4, true},
		{"head clipped", 5, 9, 4, 3, 4, 6, true},
		{"middle removed", 0, 9, 3, 4, 0, 5, true},
		{"fully removed", 4, 5, 3, 4, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi, ok := clipSpan(tt.lo, tt.hi, tt.start, tt.cnt)
			require.Equal(t, tt.wantOK, ok)
			if ok {
				require.Equal(t, []int{tt.wantLo, tt.wantHi}, []int{lo, hi})
			}
		})
	}
}

func TestTransformRange(t *testing.T) {
	r := span(1, 2, 3, 6)

	got, ok := Transformation{Kind: RowInsert, Sheet: 1, Start: 4, Count: 2}.TransformRange(r)
	require.True(t, ok)
	require.Equal(t, span(1, 2, 3, 8), got, "insert inside grows the range")

	got, ok = Transformation{Kind: ColumnInsert, Sheet: 1, Start: 0, Count: 1}.TransformRange(r)
	require.True(t, ok)
	require.Equal(t, span(2, 2, 4, 6), got, "insert before shifts the range")

	got, ok = Transformation{Kind: RowInsert, Sheet: 2, Start: 0, Count: 9}.TransformRange(r)
	require.True(t, ok)
	require.Equal(t, r, got, "other sheets are untouched")

	got, ok = Transformation{Kind: ColumnDelete, Sheet: 1, Start: 2, Count: 1}.TransformRange(r)
	require.True(t, ok)
	require.Equal(t, span(1, 2, 2, 6), got)

	_, ok = Transformation{Kind: RowDelete, Sheet: 1, Start: 0, Count: 10}.TransformRange(r)
	require.False(t, ok)

	_, ok = Transformation{Kind: SheetRemove, Sheet: 1}.TransformRange(r)
	require.False(t, ok)

	move := Transformation{Kind: RangeMove, Source: span(0, 0, 5, 9), Destination: SimpleCellAddress{Sheet: 2, Col: 10, Row: 10}}
	got, ok = move.TransformRange(r)
	require.True(t, ok)
	require.Equal(t, AbsoluteCellRange{
		Start: SimpleCellAddress{Sheet: 2, Col: 11, Row: 12},
		End:   SimpleCellAddress{Sheet: 2, Col: 13, Row: 16},
	}, got)

	partial := Transformation{Kind: RangeMove, Source: span(0, 0, 1, 9), Destination: cellAt(20, 0)}
	got, ok = partial.TransformRange(r)
	require.True(t, ok)
	require.Equal(t, r, got, "a range only partly inside the source stays")
}

func transformFormula(t *testing.T, formula string, base SimpleCellAddress, ts ...Transformation) (string, SimpleCellAddress) {
	t.Helper()
	svc := NewLazyTransformationService()
	for _, tr := range ts {
		svc.RecordTransformation(tr)
	}
	ast, newBase, version := svc.ApplyTransformations(parseAt(t, formula, base), base, 0)
	require.Equal(t, svc.Version(), version)
	return Unparse(ast, newBase, testSheetName), newBase
}

func TestTransformFormula(t *testing.T) {
	base := cellAt(1, 4) // B5

	t.Run("RowInsert", func(t *testing.T) {
		text, newBase := transformFormula(t, "=A3+SUM(A1:A4)+$A$9", base,
			Transformation{Kind: RowInsert, Sheet: 1, Start: 2, Count: 1})
		require.Equal(t, "=A4+SUM(A1:A5)+$A$10", text)
		require.Equal(t, cellAt(1, 5), newBase)
	})

	t.Run("RowDelete", func(t *testing.T) {
		text, newBase := transformFormula(t, "=A2*A4+SUM(A1:A4)", base,
			Transformation{Kind: RowDelete, Sheet: 1, Start: 1, Count: 1})
		require.Equal(t, "=#REF!*A3+SUM(A1:A3)", text)
		require.Equal(t, cellAt(1, 3), newBase)
	})

	t.Run("ColumnInsertOnOtherSheet", func(t *testing.T) {
		text, newBase := transformFormula(t, "=A1+Sheet2!A1", base,
			Transformation{Kind: ColumnInsert, Sheet: 2, Start: 0, Count: 2})
		require.Equal(t, "=A1+Sheet2!C1", text)
		require.Equal(t, base, newBase)
	})

	t.Run("SheetRemove", func(t *testing.T) {
		text, _ := transformFormula(t, "=A1+Sheet2!A1+SUM(Sheet2!A1:A3)", base,
			Transformation{Kind: SheetRemove, Sheet: 2})
		require.Equal(t, "=A1+#REF!+SUM(#REF!)", text)
	})

	t.Run("Move", func(t *testing.T) {
		text, newBase := transformFormula(t, "=A1+C1", base,
			Transformation{Kind: RangeMove, Source: span(0, 0, 0, 0), Destination: cellAt(4, 0)})
		require.Equal(t, "=E1+C1", text)
		require.Equal(t, base, newBase)
	})

	t.Run("InsertThenDeleteRestores", func(t *testing.T) {
		text, newBase := transformFormula(t, "=A3+SUM(A1:A4)", base,
			Transformation{Kind: RowInsert, Sheet: 1, Start: 1, Count: 3},
			Transformation{Kind: RowDelete, Sheet: 1, Start: 1, Count: 3})
		require.Equal(t, "=A3+SUM(A1:A4)", text)
		require.Equal(t, base, newBase)
	})
}

func TestLazyTransformationReplay(t *testing.T) {
	edits := []Transformation{
		{Kind: RowInsert, Sheet: 1, Start: 0, Count: 2},
		{Kind: ColumnInsert, Sheet: 1, Start: 1, Count: 1},
		{Kind: RowDelete, Sheet: 1, Start: 8, Count: 1},
	}
	base := cellAt(2, 3)
	formula := "=A1+B2+SUM(A1:C3)+Sheet2!A1"

	svc := NewLazyTransformationService()
	for _, e := range edits {
		svc.RecordTransformation(e)
	}
	require.Equal(t, uint64(3), svc.Version())
	require.Equal(t, 3, svc.Len())

	all, allBase, _ := svc.ApplyTransformations(parseAt(t, formula, base), base, 0)

	// replaying in two steps matches replaying at once
	first := NewLazyTransformationService()
	first.RecordTransformation(edits[0])
	mid, midBase, v := first.ApplyTransformations(parseAt(t, formula, base), base, 0)
	require.Equal(t, uint64(1), v)
	stepped, steppedBase, v := svc.ApplyTransformations(mid, midBase, v)
	require.Equal(t, uint64(3), v)

	require.Equal(t, allBase, steppedBase)
	require.Equal(t, Unparse(all, allBase, testSheetName), Unparse(stepped, steppedBase, testSheetName))

	t.Run("UpToDateIsUnchanged", func(t *testing.T) {
		ast, newBase, v := svc.ApplyTransformations(all, allBase, svc.Version())
		require.Same(t, all, ast)
		require.Equal(t, allBase, newBase)
		require.Equal(t, svc.Version(), v)
	})

	t.Run("Compact", func(t *testing.T) {
		require.Equal(t, 2, svc.Compact(2))
		require.Equal(t, 1, svc.Len())
		require.Equal(t, uint64(3), svc.Version())
		require.Equal(t, 0, svc.Compact(1))
	})
}
