package escher

import "fmt"

// Shape flags stored in the Sp record.
const (
	ShapeGroup      uint32 = 0x0001
	ShapeChild      uint32 = 0x0002
	ShapePatriarch  uint32 = 0x0004
	ShapeDeleted    uint32 = 0x0008
	ShapeOleShape   uint32 = 0x0010
	ShapeHaveMaster uint32 = 0x0020
	ShapeFlipH      uint32 = 0x0040
	ShapeFlipV      uint32 = 0x0080
	ShapeConnector  uint32 = 0x0100
	ShapeHaveAnchor uint32 = 0x0200
	ShapeBackground uint32 = 0x0400
	ShapeHaveSpt    uint32 = 0x0800
)

// Shape types (Sp instance).
const (
	ShapeTypeNotPrimitive uint16 = 0
	ShapeTypeRectangle    uint16 = 1
	ShapeTypeEllipse      uint16 = 3
	ShapeTypeLine         uint16 = 20
	ShapeTypeArrow        uint16 = 13
	ShapeTypePictureFrame uint16 = 75
	ShapeTypeHostControl  uint16 = 201
	ShapeTypeTextBox      uint16 = 202
)

// Rect is a rectangle in drawing units.
type Rect struct {
	Left, Top, Right, Bottom int32
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d)", r.Left, r.Top, r.Right, r.Bottom)
}

func (d *DataRecord) rect(off int) Rect {
	return Rect{Left: d.i32(off), Top: d.i32(off + 4), Right: d.i32(off + 8), Bottom: d.i32(off + 12)}
}

func (d *DataRecord) putRect(off int, r Rect) {
	d.putU32(off, uint32(r.Left))
	d.putU32(off+4, uint32(r.Top))
	d.putU32(off+8, uint32(r.Right))
	d.putU32(off+12, uint32(r.Bottom))
}

// DgRecord is the drawing header of a sheet: shape count and last issued
// shape id. The instance holds the drawing id.
type DgRecord struct {
	DataRecord
}

// NewDg builds a drawing header for drawing dgid.
func NewDg(dgid uint32) *DgRecord {
	return &DgRecord{DataRecord: *NewDataRecord(TagDg, uint16(dgid), 0, make([]byte, 8))}
}

// DrawingID returns the drawing id.
func (r *DgRecord) DrawingID() uint32 { return uint32(r.Instance()) }

// ShapeCount returns the number of shapes of the drawing.
func (r *DgRecord) ShapeCount() uint32 { return r.u32(0) }

// LastShapeID returns the last shape id issued to the drawing.
func (r *DgRecord) LastShapeID() uint32 { return r.u32(4) }

func (r *DgRecord) noteIssued(id uint32) {
	r.putU32(0, r.ShapeCount()+1)
	if id > r.LastShapeID() {
		r.putU32(4, id)
	}
}

func (r *DgRecord) noteRemoved(n int) {
	r.putU32(0, r.ShapeCount()-min(r.ShapeCount(), uint32(n)))
}

func (r *DgRecord) afterLoad() error {
	if err := r.requireLen(8); err != nil {
		return err
	}
	if r.drawing != nil {
		r.drawing.noteShapeID(r.LastShapeID())
	}
	return nil
}

// Attach registers the header as the drawing singleton.
func (r *DgRecord) Attach(g *GroupCache, d *DrawingCache) error {
	if err := r.recordBase.Attach(g, d); err != nil {
		return err
	}
	if d == nil {
		return nil
	}
	return d.setDg(r)
}

// Destroy unregisters the header.
func (r *DgRecord) Destroy() {
	if d := r.drawing; d != nil && d.dg == r {
		d.dg = nil
	}
	r.recordBase.Destroy()
}

// Copy allocates a fresh cluster in the destination workbook. The first id
// of that cluster is handed to the first shape copied after the header.
func (r *DgRecord) Copy(ctx *CopyContext) (Record, error) {
	if ctx.DstGroup == nil || ctx.DstGroup.Dgg() == nil {
		return nil, newInternalError("copy Dg: destination has no Dgg record")
	}
	dgid, first := ctx.DstGroup.Dgg().AllocateClusterForNewDrawing()
	c := &DgRecord{DataRecord: r.clone(ctx)}
	c.SetInstance(uint16(dgid))
	c.putU32(0, 0)
	c.putU32(4, 0)
	ctx.remember(r, c)
	if err := c.Attach(ctx.DstGroup, ctx.DstDrawing); err != nil {
		return nil, err
	}
	if ctx.DstDrawing != nil {
		ctx.DstDrawing.reserved = first
	}
	return c, nil
}

// SpRecord holds the shape id and flags. The instance holds the shape type.
type SpRecord struct {
	DataRecord
}

// NewSp builds a shape record. The id is assigned on insertion.
func NewSp(shapeType uint16, id, flags uint32) *SpRecord {
	r := &SpRecord{DataRecord: *NewDataRecord(TagSp, shapeType, 2, make([]byte, 8))}
	r.putU32(0, id)
	r.putU32(4, flags)
	return r
}

// ShapeID returns the shape id.
func (r *SpRecord) ShapeID() uint32 { return r.u32(0) }

// Flags returns the shape flags.
func (r *SpRecord) Flags() uint32 { return r.u32(4) }

// ShapeType returns the shape type.
func (r *SpRecord) ShapeType() uint16 { return r.Instance() }

// SetFlags replaces the shape flags.
func (r *SpRecord) SetFlags(f uint32) { r.putU32(4, f) }

// SetShapeID renumbers the shape and updates the shape index.
func (r *SpRecord) SetShapeID(id uint32) {
	r.unregister()
	r.putU32(0, id)
	r.register()
}

func (r *SpRecord) register() {
	if r.drawing != nil && r.parent != nil && len(r.data) >= 8 {
		r.drawing.registerShape(r.ShapeID(), r.parent)
	}
}

func (r *SpRecord) unregister() {
	if r.drawing != nil && r.parent != nil && len(r.data) >= 8 {
		r.drawing.unregisterShape(r.ShapeID(), r.parent)
	}
}

func (r *SpRecord) afterLoad() error {
	if err := r.requireLen(8); err != nil {
		return err
	}
	r.register()
	return nil
}

// Attach indexes the shape by id once its payload is complete.
func (r *SpRecord) Attach(g *GroupCache, d *DrawingCache) error {
	if err := r.recordBase.Attach(g, d); err != nil {
		return err
	}
	if r.IsFullyLoaded() {
		r.register()
	}
	return nil
}

// Destroy removes the shape from the shape index.
func (r *SpRecord) Destroy() {
	r.unregister()
	r.recordBase.Destroy()
}

// Copy issues a new shape id from the destination drawing.
func (r *SpRecord) Copy(ctx *CopyContext) (Record, error) {
	c := &SpRecord{DataRecord: r.clone(ctx)}
	if ctx.DstDrawing != nil {
		id, err := ctx.DstDrawing.NewShapeID(ctx.DstGroup)
		if err != nil {
			return nil, err
		}
		ctx.shapeIDs[r.ShapeID()] = id
		c.putU32(0, id)
	}
	ctx.remember(r, c)
	if err := c.Attach(ctx.DstGroup, ctx.DstDrawing); err != nil {
		return nil, err
	}
	return c, nil
}

// SpgrRecord holds the coordinate system of a group.
type SpgrRecord struct {
	DataRecord
}

// NewSpgr builds a group coordinate record.
func NewSpgr(r Rect) *SpgrRecord {
	g := &SpgrRecord{DataRecord: *NewDataRecord(TagSpgr, 0, 1, make([]byte, 16))}
	g.putRect(0, r)
	return g
}

// Rect returns the group coordinate system.
func (r *SpgrRecord) Rect() Rect { return r.rect(0) }

func (r *SpgrRecord) afterLoad() error {
	return r.requireLen(16)
}

// Copy clones the record.
func (r *SpgrRecord) Copy(ctx *CopyContext) (Record, error) {
	c := &SpgrRecord{DataRecord: r.clone(ctx)}
	ctx.remember(r, c)
	if err := c.Attach(ctx.DstGroup, ctx.DstDrawing); err != nil {
		return nil, err
	}
	return c, nil
}

// ChildAnchor positions a shape inside its group.
type ChildAnchor struct {
	DataRecord
}

// NewChildAnchor builds a child anchor.
func NewChildAnchor(r Rect) *ChildAnchor {
	a := &ChildAnchor{DataRecord: *NewDataRecord(TagChildAnchor, 0, 0, make([]byte, 16))}
	a.putRect(0, r)
	return a
}

// Rect returns the position in group coordinates.
func (r *ChildAnchor) Rect() Rect { return r.rect(0) }

func (r *ChildAnchor) afterLoad() error {
	return r.requireLen(16)
}

// Copy clones the record.
func (r *ChildAnchor) Copy(ctx *CopyContext) (Record, error) {
	c := &ChildAnchor{DataRecord: r.clone(ctx)}
	ctx.remember(r, c)
	if err := c.Attach(ctx.DstGroup, ctx.DstDrawing); err != nil {
		return nil, err
	}
	return c, nil
}

// ShapeRecord returns the Sp record of a shape container.
func ShapeRecord(c *Container) (*SpRecord, bool) {
	if c == nil {
		return nil, false
	}
	if c.Tag() == TagSpgrContainer && c.Len() > 0 {
		if first := c.Child(0).asContainer(); first != nil {
			c = first
		}
	}
	return FindFirstChildOfType[*SpRecord](c)
}
