package escher

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func insertRows(row, count int) *InsertContext {
	return &InsertContext{
		Range: CellRange{Row1: row, Row2: row, Col1: 0, Col2: MaxCol},
		Count: count,
		Rows:  true,
	}
}

func TestClientAnchor_InsertRows(t *testing.T) {
	tests := []struct {
		name   string
		flags  uint16
		ctx    *InsertContext
		anchor Anchor
		want   Anchor
	}{
		{
			name:   "move and size below point",
			flags:  AnchorMoveAndSize,
			ctx:    &InsertContext{Range: CellRange{Row1: 4, Row2: 6, Col2: MaxCol}, Count: 1, Rows: true},
			anchor: Anchor{Col1: 1, Row1: 5, Col2: 3, Row2: 7},
			want:   Anchor{Col1: 1, Row1: 8, Col2: 3, Row2: 10},
		},
		{
			name:   "move only below point",
			flags:  AnchorMove,
			ctx:    &InsertContext{Range: CellRange{Row1: 4, Row2: 6, Col2: MaxCol}, Count: 1, Rows: true},
			anchor: Anchor{Col1: 1, Row1: 5, Dy1: 10, Col2: 3, Row2: 7, Dy2: 20},
			want:   Anchor{Col1: 1, Row1: 8, Dy1: 10, Col2: 3, Row2: 10, Dy2: 20},
		},
		{
			name:   "move and size spanning point grows",
			flags:  AnchorMoveAndSize,
			ctx:    insertRows(4, 3),
			anchor: Anchor{Row1: 2, Col2: 1, Row2: 7},
			want:   Anchor{Row1: 2, Col2: 1, Row2: 10},
		},
		{
			name:   "move only spanning point stays",
			flags:  AnchorMove,
			ctx:    insertRows(4, 3),
			anchor: Anchor{Row1: 2, Col2: 1, Row2: 7},
			want:   Anchor{Row1: 2, Col2: 1, Row2: 7},
		},
		{
			name:   "deleted rows snap to point",
			flags:  AnchorMoveAndSize,
			ctx:    &InsertContext{Range: CellRange{Row1: 4, Row2: 6, Col2: MaxCol}, Count: -1, Rows: true},
			anchor: Anchor{Row1: 5, Dy1: 100, Col2: 1, Row2: 9, Dy2: 50},
			want:   Anchor{Row1: 4, Col2: 1, Row2: 6, Dy2: 50},
		},
		{
			name:   "other columns untouched",
			flags:  AnchorMoveAndSize,
			ctx:    &InsertContext{Range: CellRange{Row1: 4, Row2: 4, Col1: 10, Col2: 12}, Count: 1, Rows: true},
			anchor: Anchor{Col1: 1, Row1: 5, Col2: 3, Row2: 7},
			want:   Anchor{Col1: 1, Row1: 5, Col2: 3, Row2: 7},
		},
		{
			name:   "columns",
			flags:  AnchorMoveAndSize,
			ctx:    &InsertContext{Range: CellRange{Col1: 2, Col2: 3, Row2: MaxRow}, Count: 1},
			anchor: Anchor{Col1: 1, Row1: 5, Col2: 3, Row2: 7},
			want:   Anchor{Col1: 1, Row1: 5, Col2: 5, Row2: 7},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewClientAnchor(tt.flags, tt.anchor)
			require.NoError(t, err)
			require.NoError(t, a.ArrangeInsertRange(tt.ctx))
			require.Equal(t, tt.want, a.Anchor())
		})
	}
}

func TestClientAnchor_InsertPastSheetLimit(t *testing.T) {
	a, err := NewClientAnchor(AnchorMoveAndSize, Anchor{Row1: MaxRow - 2, Row2: MaxRow - 1, Col2: 1})
	require.NoError(t, err)

	err = a.ArrangeInsertRange(insertRows(0, 5))
	var re *RangeError
	require.True(t, errors.As(err, &re))
	require.False(t, re.IsFatal())
	require.Equal(t, MaxRow, re.Limit)
	require.Equal(t, MaxRow-2, a.Anchor().Row1)
}

func TestClientAnchor_AbsoluteKeepsPosition(t *testing.T) {
	require := require.New(t)
	geo := UniformGeometry{Height: 20, Width: 64}
	start := Anchor{Col1: 2, Dx1: 512, Row1: 3, Dy1: 128, Col2: 4, Row2: 6, Dy2: 64}

	a, err := NewClientAnchor(AnchorAbsolute, start)
	require.NoError(err)
	ctx := insertRows(1, 2)
	ctx.Before, ctx.After = geo, geo

	for range 2 {
		require.NoError(a.ArrangeInsertRange(ctx))
		require.Equal(start, a.Anchor())
	}

	ctx.Before, ctx.After = nil, nil
	require.NoError(a.ArrangeInsertRange(ctx))
	require.Equal(start, a.Anchor())
}

func TestClientAnchor_Position(t *testing.T) {
	require := require.New(t)
	geo := UniformGeometry{Height: 20, Width: 64}

	a, err := NewClientAnchor(AnchorMove, Anchor{Col1: 1, Dx1: 256, Row1: 2, Dy1: 64, Col2: 3, Row2: 4})
	require.NoError(err)
	require.Equal(AbsRect{X1: 80, Y1: 45, X2: 192, Y2: 80}, a.Position(geo))

	require.NoError(a.SetPosition(geo, AbsRect{X1: 32, Y1: 10, X2: 64, Y2: 30}))
	require.Equal(Anchor{Col1: 0, Dx1: 512, Row1: 0, Dy1: 128, Col2: 1, Row2: 1, Dy2: 128}, a.Anchor())
}

func TestClientAnchor_MoveRange(t *testing.T) {
	require := require.New(t)

	inside, err := NewClientAnchor(AnchorMoveAndSize, Anchor{Col1: 1, Row1: 1, Col2: 2, Row2: 2})
	require.NoError(err)
	outside, err := NewClientAnchor(AnchorMoveAndSize, Anchor{Col1: 1, Row1: 1, Col2: 9, Row2: 2})
	require.NoError(err)

	ctx := &MoveContext{Src: CellRange{Row1: 0, Col1: 0, Row2: 3, Col2: 3}, DstRow: 10, DstCol: 5}
	require.NoError(inside.ArrangeMoveRange(ctx))
	require.NoError(outside.ArrangeMoveRange(ctx))
	require.Equal(Anchor{Col1: 6, Row1: 11, Col2: 7, Row2: 12}, inside.Anchor())
	require.Equal(Anchor{Col1: 1, Row1: 1, Col2: 9, Row2: 2}, outside.Anchor())
}

func TestChartAnchor(t *testing.T) {
	require := require.New(t)
	a := NewChartAnchor(AnchorMoveAndSize, Rect{Left: 10, Top: 20, Right: 400, Bottom: 300})
	require.True(a.IsChart())
	require.Equal(AbsRect{X1: 10, Y1: 20, X2: 400, Y2: 300}, a.Position(nil))
	require.Error(a.SetAnchor(Anchor{}))
	require.NoError(a.ArrangeInsertRange(insertRows(0, 3)))
	require.Equal(Rect{Left: 10, Top: 20, Right: 400, Bottom: 300}, a.ChartRect())
}

func TestDrawing_InsertRangeMovesEveryAnchor(t *testing.T) {
	require := require.New(t)
	_, d := newTestDrawing(t)

	a, err := d.AddPicture(testPNG, BlipPNG, Anchor{Row1: 5, Col2: 1, Row2: 7}, "a")
	require.NoError(err)
	b, err := d.AddPicture(testPNG, BlipPNG, Anchor{Row1: 1, Col2: 1, Row2: 2}, "b")
	require.NoError(err)

	require.NoError(d.InsertRange(insertRows(4, 3)))
	ca, _ := FindFirstChildOfType[*ClientAnchor](a)
	cb, _ := FindFirstChildOfType[*ClientAnchor](b)
	require.Equal(8, ca.Anchor().Row1)
	require.Equal(1, cb.Anchor().Row1)

	require.NoError(d.MoveRange(&MoveContext{Src: CellRange{Row1: 8, Row2: 10, Col2: 1}, DstRow: 20}))
	require.Equal(20, ca.Anchor().Row1)
	require.Equal(22, ca.Anchor().Row2)
}
