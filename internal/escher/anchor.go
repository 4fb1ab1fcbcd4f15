package escher

import (
	"fmt"
	"math"
)

// Sheet limits of the format.
const (
	MaxRow = 65535
	MaxCol = 255
)

// Anchor behavior flags.
const (
	AnchorMoveAndSize uint16 = 0
	AnchorMove        uint16 = 2
	AnchorAbsolute    uint16 = 3
)

const (
	clientAnchorSize = 18
	dxScale          = 1024
	dyScale          = 256
)

// SheetGeometry provides row heights and column widths in a common unit.
type SheetGeometry interface {
	RowHeight(row int) int
	ColWidth(col int) int
}

// UniformGeometry is a SheetGeometry with constant sizes.
type UniformGeometry struct {
	Height int
	Width  int
}

// RowHeight implements SheetGeometry.
func (g UniformGeometry) RowHeight(int) int { return g.Height }

// ColWidth implements SheetGeometry.
func (g UniformGeometry) ColWidth(int) int { return g.Width }

// Anchor is a sheet-relative position. Dx is in 1/1024 of the column width,
// Dy in 1/256 of the row height.
type Anchor struct {
	Col1, Dx1, Row1, Dy1 int
	Col2, Dx2, Row2, Dy2 int
}

func (a Anchor) String() string {
	return fmt.Sprintf("R%dC%d+(%d,%d):R%dC%d+(%d,%d)", a.Row1, a.Col1, a.Dx1, a.Dy1, a.Row2, a.Col2, a.Dx2, a.Dy2)
}

// Validate checks the anchor against the sheet limits.
func (a Anchor) Validate() error {
	for _, r := range []int{a.Row1, a.Row2} {
		if r < 0 || r > MaxRow {
			return NewRangeError("row", r, MaxRow)
		}
	}
	for _, c := range []int{a.Col1, a.Col2} {
		if c < 0 || c > MaxCol {
			return NewRangeError("column", c, MaxCol)
		}
	}
	return nil
}

// AbsRect is an absolute position in geometry units.
type AbsRect struct {
	X1, Y1, X2, Y2 float64
}

// CellRange is an inclusive block of rows and columns.
type CellRange struct {
	Row1, Col1, Row2, Col2 int
}

// Rows returns the number of rows in the range.
func (r CellRange) Rows() int { return r.Row2 - r.Row1 + 1 }

// Cols returns the number of columns in the range.
func (r CellRange) Cols() int { return r.Col2 - r.Col1 + 1 }

// InsertContext describes a row or column insertion. Count is how many times
// the range is inserted; a negative count deletes it.
type InsertContext struct {
	Range  CellRange
	Count  int
	Rows   bool
	Before SheetGeometry
	After  SheetGeometry
}

func (a *InsertContext) shift() int {
	if a.Rows {
		return a.Count * a.Range.Rows()
	}
	return a.Count * a.Range.Cols()
}

// MoveContext describes moving the cells of Src so that its top-left corner
// lands on (DstRow, DstCol).
type MoveContext struct {
	Src    CellRange
	DstRow int
	DstCol int
	Before SheetGeometry
	After  SheetGeometry
}

// ClientAnchor positions a top-level shape on the sheet, or on the chart in
// absolute coordinates. The coordinate system is fixed when the record is
// attached.
type ClientAnchor struct {
	DataRecord
	chart bool
}

// NewClientAnchor builds a sheet anchor.
func NewClientAnchor(flags uint16, a Anchor) (*ClientAnchor, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	r := &ClientAnchor{DataRecord: *NewDataRecord(TagClientAnchor, 0, 0, make([]byte, clientAnchorSize))}
	r.putU16(0, flags)
	r.putAnchor(a)
	return r, nil
}

// NewChartAnchor builds a chart anchor.
func NewChartAnchor(flags uint16, rc Rect) *ClientAnchor {
	r := &ClientAnchor{DataRecord: *NewDataRecord(TagClientAnchor, 0, 0, make([]byte, clientAnchorSize)), chart: true}
	r.putU16(0, flags)
	r.putRect(2, rc)
	return r
}

func (r *ClientAnchor) afterLoad() error {
	return r.requireLen(clientAnchorSize)
}

// Attach fixes the coordinate system and adds r to the anchor index.
func (r *ClientAnchor) Attach(g *GroupCache, d *DrawingCache) error {
	if err := r.recordBase.Attach(g, d); err != nil {
		return err
	}
	if d != nil {
		if !r.IsFullyLoaded() {
			r.chart = d.IsChart
		}
		d.addAnchor(r)
	}
	return nil
}

// Destroy removes r from the anchor index.
func (r *ClientAnchor) Destroy() {
	if d := r.drawing; d != nil {
		d.removeAnchor(r)
	}
	r.recordBase.Destroy()
}

// IsChart reports whether the anchor uses absolute chart coordinates.
func (r *ClientAnchor) IsChart() bool { return r.chart }

// Flags returns the move/resize behavior.
func (r *ClientAnchor) Flags() uint16 { return r.u16(0) }

// SetFlags sets the move/resize behavior.
func (r *ClientAnchor) SetFlags(f uint16) { r.putU16(0, f) }

// Anchor returns the sheet-relative position.
func (r *ClientAnchor) Anchor() Anchor {
	return Anchor{
		Col1: int(r.u16(2)), Dx1: int(r.u16(4)), Row1: int(r.u16(6)), Dy1: int(r.u16(8)),
		Col2: int(r.u16(10)), Dx2: int(r.u16(12)), Row2: int(r.u16(14)), Dy2: int(r.u16(16)),
	}
}

// SetAnchor replaces the sheet-relative position.
func (r *ClientAnchor) SetAnchor(a Anchor) error {
	if r.chart {
		return newInternalError("set sheet anchor on a chart anchor")
	}
	if err := a.Validate(); err != nil {
		return err
	}
	r.putAnchor(a)
	return nil
}

func (r *ClientAnchor) putAnchor(a Anchor) {
	for i, v := range []int{a.Col1, a.Dx1, a.Row1, a.Dy1, a.Col2, a.Dx2, a.Row2, a.Dy2} {
		r.putU16(2+2*i, uint16(v))
	}
}

// ChartRect returns the absolute chart position.
func (r *ClientAnchor) ChartRect() Rect { return r.rect(2) }

// Shape returns the top-level shape the anchor positions: the shape container,
// or the group when the shape is the group's own shape.
func (r *ClientAnchor) Shape() *Container {
	sp := r.parent
	if sp == nil {
		return nil
	}
	if g := sp.parent; g != nil && g.Tag() == TagSpgrContainer && g.IndexOf(sp.self()) == 0 &&
		(r.drawing == nil || g != r.drawing.patriarch) {
		return g
	}
	return sp
}

// Position resolves the anchor to absolute coordinates.
func (r *ClientAnchor) Position(g SheetGeometry) AbsRect {
	if r.chart {
		rc := r.ChartRect()
		return AbsRect{X1: float64(rc.Left), Y1: float64(rc.Top), X2: float64(rc.Right), Y2: float64(rc.Bottom)}
	}
	a := r.Anchor()
	return AbsRect{
		X1: colOffset(g, a.Col1, a.Dx1),
		Y1: rowOffset(g, a.Row1, a.Dy1),
		X2: colOffset(g, a.Col2, a.Dx2),
		Y2: rowOffset(g, a.Row2, a.Dy2),
	}
}

// SetPosition sets the anchor from absolute coordinates.
func (r *ClientAnchor) SetPosition(g SheetGeometry, p AbsRect) error {
	if r.chart {
		r.putRect(2, Rect{Left: int32(p.X1), Top: int32(p.Y1), Right: int32(p.X2), Bottom: int32(p.Y2)})
		return nil
	}
	var a Anchor
	a.Col1, a.Dx1 = colAt(g, p.X1)
	a.Row1, a.Dy1 = rowAt(g, p.Y1)
	a.Col2, a.Dx2 = colAt(g, p.X2)
	a.Row2, a.Dy2 = rowAt(g, p.Y2)
	return r.SetAnchor(a)
}

func rowOffset(g SheetGeometry, row, dy int) float64 {
	var y int
	for i := range row {
		y += g.RowHeight(i)
	}
	return float64(y) + float64(dy)*float64(g.RowHeight(row))/dyScale
}

func colOffset(g SheetGeometry, col, dx int) float64 {
	var x int
	for i := range col {
		x += g.ColWidth(i)
	}
	return float64(x) + float64(dx)*float64(g.ColWidth(col))/dxScale
}

func rowAt(g SheetGeometry, y float64) (row, dy int) {
	return locate(g.RowHeight, MaxRow, dyScale, y)
}

func colAt(g SheetGeometry, x float64) (col, dx int) {
	return locate(g.ColWidth, MaxCol, dxScale, x)
}

func locate(size func(int) int, limit, scale int, v float64) (int, int) {
	var pos float64
	for i := 0; i <= limit; i++ {
		s := float64(size(i))
		if s > 0 && v < pos+s {
			frac := int(math.Round((v - pos) * float64(scale) / s))
			if frac >= scale {
				return i + 1, 0
			}
			return i, frac
		}
		pos += s
	}
	return limit, 0
}

// shiftEdge moves one edge at or after point by delta. An edge that ends up
// inside a deleted block snaps to the point with a zero offset.
func shiftEdge(pos, frac, point, delta int) (int, int) {
	if pos < point {
		return pos, frac
	}
	n := pos + delta
	if n < point {
		return point, 0
	}
	return n, frac
}

// ArrangeInsertRange adjusts the anchor after rows or columns were inserted
// or deleted.
func (r *ClientAnchor) ArrangeInsertRange(ctx *InsertContext) error {
	if r.chart {
		return nil
	}
	a := r.Anchor()

	var snap AbsRect
	absolute := r.Flags() == AnchorAbsolute && ctx.Before != nil && ctx.After != nil
	if absolute {
		snap = r.Position(ctx.Before)
	}

	delta := ctx.shift()
	rg := ctx.Range
	switch {
	case absolute:
		return r.SetPosition(ctx.After, snap)
	case r.Flags() == AnchorAbsolute:
		return nil
	case ctx.Rows:
		if a.Col2 < rg.Col1 || a.Col1 > rg.Col2 {
			return nil
		}
		if r.Flags() == AnchorMoveAndSize {
			a.Row1, a.Dy1 = shiftEdge(a.Row1, a.Dy1, rg.Row1, delta)
			a.Row2, a.Dy2 = shiftEdge(a.Row2, a.Dy2, rg.Row1, delta)
		} else {
			if a.Row1 < rg.Row1 {
				return nil
			}
			n, _ := shiftEdge(a.Row1, a.Dy1, rg.Row1, delta)
			d := n - a.Row1
			a.Row1 += d
			a.Row2 += d
		}
	default:
		if a.Row2 < rg.Row1 || a.Row1 > rg.Row2 {
			return nil
		}
		if r.Flags() == AnchorMoveAndSize {
			a.Col1, a.Dx1 = shiftEdge(a.Col1, a.Dx1, rg.Col1, delta)
			a.Col2, a.Dx2 = shiftEdge(a.Col2, a.Dx2, rg.Col1, delta)
		} else {
			if a.Col1 < rg.Col1 {
				return nil
			}
			n, _ := shiftEdge(a.Col1, a.Dx1, rg.Col1, delta)
			d := n - a.Col1
			a.Col1 += d
			a.Col2 += d
		}
	}
	return r.SetAnchor(a)
}

// ArrangeMoveRange moves the anchor along with the cells when it lies wholly
// inside the moved block.
func (r *ClientAnchor) ArrangeMoveRange(ctx *MoveContext) error {
	if r.chart {
		return nil
	}
	a := r.Anchor()
	src := ctx.Src
	if a.Row1 < src.Row1 || a.Row2 > src.Row2 || a.Col1 < src.Col1 || a.Col2 > src.Col2 {
		return nil
	}
	if r.Flags() == AnchorAbsolute {
		if ctx.Before != nil && ctx.After != nil {
			return r.SetPosition(ctx.After, r.Position(ctx.Before))
		}
		return nil
	}
	dr, dc := ctx.DstRow-src.Row1, ctx.DstCol-src.Col1
	a.Row1 += dr
	a.Row2 += dr
	a.Col1 += dc
	a.Col2 += dc
	return r.SetAnchor(a)
}

// Copy clones the anchor shifted by the copy offsets.
func (r *ClientAnchor) Copy(ctx *CopyContext) (Record, error) {
	c := &ClientAnchor{DataRecord: r.clone(ctx), chart: r.chart}
	if !c.chart && (ctx.RowOffset != 0 || ctx.ColOffset != 0) {
		a := c.Anchor()
		a.Row1 += ctx.RowOffset
		a.Row2 += ctx.RowOffset
		a.Col1 += ctx.ColOffset
		a.Col2 += ctx.ColOffset
		if err := c.SetAnchor(a); err != nil {
			return nil, err
		}
	}
	ctx.remember(r, c)
	if err := c.Attach(ctx.DstGroup, ctx.DstDrawing); err != nil {
		return nil, err
	}
	return c, nil
}
