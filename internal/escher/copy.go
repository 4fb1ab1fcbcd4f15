package escher

// CopyContext carries the destination caches and the clone memo of a copy
// operation. The same context may serve several passes; Begin starts a new
// pass and makes every clone remembered by earlier passes invisible.
type CopyContext struct {
	RowOffset int
	ColOffset int

	SrcGroup   *GroupCache
	DstGroup   *GroupCache
	SrcDrawing *DrawingCache
	DstDrawing *DrawingCache

	pass     uint64
	memo     map[copyKey]Record
	shapeIDs map[uint32]uint32
	objIDs   map[uint16]uint16
	rules    []*ConnectorRule
}

type copyKey struct {
	pass uint64
	src  Record
}

// NewCopyContext creates a context copying from the src caches into the dst
// caches. Pass the same caches twice to copy within one drawing.
func NewCopyContext(srcGroup, dstGroup *GroupCache, srcDrawing, dstDrawing *DrawingCache) *CopyContext {
	ctx := &CopyContext{
		SrcGroup:   srcGroup,
		DstGroup:   dstGroup,
		SrcDrawing: srcDrawing,
		DstDrawing: dstDrawing,
		memo:       make(map[copyKey]Record),
	}
	ctx.Begin(0, 0)
	return ctx
}

// Begin starts a new copy pass shifting anchors by the given offsets.
func (ctx *CopyContext) Begin(rowOffset, colOffset int) {
	ctx.pass++
	ctx.RowOffset = rowOffset
	ctx.ColOffset = colOffset
	ctx.shapeIDs = make(map[uint32]uint32)
	ctx.objIDs = make(map[uint16]uint16)
	ctx.rules = nil
}

// Pass returns the current pass id.
func (ctx *CopyContext) Pass() uint64 {
	return ctx.pass
}

// Cloned returns the clone of src made in the current pass.
func (ctx *CopyContext) Cloned(src Record) (Record, bool) {
	r, ok := ctx.memo[copyKey{pass: ctx.pass, src: src}]
	return r, ok
}

func (ctx *CopyContext) remember(src, dst Record) {
	ctx.memo[copyKey{pass: ctx.pass, src: src}] = dst
}

// ShapeID returns the id the shape old was renumbered to in this pass.
func (ctx *CopyContext) ShapeID(old uint32) (uint32, bool) {
	id, ok := ctx.shapeIDs[old]
	return id, ok
}

// CrossGroup reports whether the copy targets another workbook.
func (ctx *CopyContext) CrossGroup() bool {
	return ctx.SrcGroup != ctx.DstGroup
}

// Finish remaps the connector rules copied in this pass to the new shape
// ids. Rules whose shapes were not copied keep the old ids.
func (ctx *CopyContext) Finish() {
	for _, r := range ctx.rules {
		r.remap(ctx.shapeIDs)
	}
	ctx.rules = nil
}
