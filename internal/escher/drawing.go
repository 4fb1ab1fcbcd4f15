package escher

import (
	"encoding/binary"
	"fmt"
	"io"
	"slices"

	"github.com/roboco-io/xlsdraw/internal/biff"
)

// Group is the drawing group of a workbook: the shape id allocator, the image
// catalog and the sheet drawings attached to them.
type Group struct {
	Cache *GroupCache

	root     *Container
	drawings []*Drawing
}

// NewGroup builds an empty drawing group.
func NewGroup() (*Group, error) {
	cache := NewGroupCache()
	root := NewContainer(TagDggContainer, 0)
	if err := root.Attach(cache, nil); err != nil {
		return nil, err
	}
	if err := root.AddChild(NewDgg()); err != nil {
		return nil, err
	}
	return &Group{Cache: cache, root: root}, nil
}

// NewGroupDecoder returns a decoder for the payloads of a drawing group
// record and its continuations.
func NewGroupDecoder() *Decoder {
	return NewDecoder(NewGroupCache(), nil)
}

// GroupFromDecoder wraps a completely decoded drawing group.
func GroupFromDecoder(dec *Decoder) (*Group, error) {
	root, err := decodedRoot(dec, TagDggContainer)
	if err != nil {
		return nil, err
	}
	if dec.GroupCache().Dgg() == nil {
		return nil, newInvalidDataError("drawing group has no Dgg record")
	}
	return &Group{Cache: dec.GroupCache(), root: root}, nil
}

func decodedRoot(dec *Decoder, tag uint16) (*Container, error) {
	if !dec.Done() {
		return nil, newInvalidDataError("truncated %s record", TagName(tag))
	}
	root := dec.Root().asContainer()
	if root == nil || root.Tag() != tag {
		return nil, newInvalidDataError("expected %s, found %s", TagName(tag), TagName(dec.Root().Tag()))
	}
	return root, nil
}

// Root returns the drawing group container.
func (g *Group) Root() *Container { return g.root }

// Dgg returns the shape id allocator.
func (g *Group) Dgg() *DggRecord { return g.Cache.Dgg() }

// BStore returns the image catalog, creating it after the Dgg record when the
// group has none.
func (g *Group) BStore() (*BStore, error) {
	if s := g.Cache.BStore(); s != nil {
		return s, nil
	}
	i := g.root.IndexOf(g.Cache.Dgg()) + 1
	if err := g.root.InsertChild(i, NewBStore()); err != nil {
		return nil, err
	}
	return g.Cache.BStore(), nil
}

// Drawings returns the sheet drawings of the group.
func (g *Group) Drawings() []*Drawing { return g.drawings }

// NewDrawingDecoder returns a decoder for the drawing records of one sheet or
// chart.
func (g *Group) NewDrawingDecoder(chart bool) *Decoder {
	d := NewDrawingCache()
	d.IsChart = chart
	return NewDecoder(g.Cache, d)
}

// DrawingFromDecoder wraps a completely decoded sheet drawing.
func (g *Group) DrawingFromDecoder(dec *Decoder) (*Drawing, error) {
	if dec.GroupCache() != g.Cache {
		return nil, newInternalError("decoder belongs to another drawing group")
	}
	root, err := decodedRoot(dec, TagDgContainer)
	if err != nil {
		return nil, err
	}
	if dec.DrawingCache().Dg() == nil {
		return nil, newInvalidDataError("drawing has no Dg record")
	}
	d := &Drawing{group: g, Cache: dec.DrawingCache(), root: root}
	g.drawings = append(g.drawings, d)
	return d, nil
}

// NewDrawing creates an empty sheet drawing with its own cluster and a
// patriarch group.
func (g *Group) NewDrawing(chart bool) (*Drawing, error) {
	dgg := g.Dgg()
	if dgg == nil {
		return nil, newInternalError("drawing group has no Dgg record")
	}
	dgid, first := dgg.AllocateClusterForNewDrawing()

	cache := NewDrawingCache()
	cache.IsChart = chart
	cache.reserved = first

	root := NewContainer(TagDgContainer, 0)
	if err := root.Attach(g.Cache, cache); err != nil {
		return nil, err
	}
	if err := root.AddChild(NewDg(dgid)); err != nil {
		return nil, err
	}
	patriarch := NewContainer(TagSpgrContainer, 0)
	if err := root.AddChild(patriarch); err != nil {
		return nil, err
	}

	id, err := cache.NewShapeID(g.Cache)
	if err != nil {
		return nil, err
	}
	sp := NewContainer(TagSpContainer, 0)
	if err := sp.AddChild(NewSpgr(Rect{})); err != nil {
		return nil, err
	}
	if err := sp.AddChild(NewSp(ShapeTypeNotPrimitive, id, ShapeGroup|ShapePatriarch)); err != nil {
		return nil, err
	}
	if err := patriarch.AddChild(sp); err != nil {
		return nil, err
	}

	d := &Drawing{group: g, Cache: cache, root: root}
	g.drawings = append(g.drawings, d)
	return d, nil
}

// RemoveDrawing destroys a sheet drawing and frees its clusters.
func (g *Group) RemoveDrawing(d *Drawing) error {
	i := slices.Index(g.drawings, d)
	if i < 0 {
		return newInternalError("drawing does not belong to the group")
	}
	dgid := d.Cache.Dg().DrawingID()
	d.root.Destroy()
	if dgg := g.Dgg(); dgg != nil {
		dgg.ReleaseClusterForDrawing(dgid)
	}
	g.drawings = slices.Delete(g.drawings, i, i+1)
	return nil
}

// Save writes the drawing group as a drawing group record and continuations.
func (g *Group) Save(w io.Writer) error {
	if s := g.Cache.BStore(); s != nil {
		s.FixPositions()
	}
	return saveSplit(w, g.root, biff.TagMsoDrawingGroup)
}

// Destroy destroys every drawing and the group.
func (g *Group) Destroy() {
	for i := len(g.drawings) - 1; i >= 0; i-- {
		g.drawings[i].root.Destroy()
	}
	g.drawings = nil
	g.root.Destroy()
}

func saveSplit(w io.Writer, root Record, tag uint16) error {
	s := biff.NewSplitter(tag, biff.TagContinue)
	if err := root.Prepare(s); err != nil {
		return err
	}
	sw := biff.NewSplitWriter(w, s)
	if err := root.Save(sw); err != nil {
		return err
	}
	return sw.Close()
}

// Drawing is the drawing of one sheet or chart.
type Drawing struct {
	Cache *DrawingCache

	group *Group
	root  *Container
}

// Group returns the owning drawing group.
func (d *Drawing) Group() *Group { return d.group }

// Root returns the sheet drawing container.
func (d *Drawing) Root() *Container { return d.root }

// Dg returns the drawing header.
func (d *Drawing) Dg() *DgRecord { return d.Cache.Dg() }

// Patriarch returns the root shape group.
func (d *Drawing) Patriarch() *Container { return d.Cache.Patriarch() }

// Shapes returns the anchored top-level shapes in document order.
func (d *Drawing) Shapes() []*Container {
	var out []*Container
	for _, a := range d.Cache.Anchors() {
		if s := a.Shape(); s != nil {
			out = append(out, s)
		}
	}
	return out
}

// Save writes the drawing as drawing records, continuations and the client
// records interleaved after their ClientData records.
func (d *Drawing) Save(w io.Writer) error {
	return saveSplit(w, d.root, biff.TagMsoDrawing)
}

// Picture object type of the OBJ record.
const objTypePicture = 8

func newPictureObj(id uint16) *biff.Record {
	data := make([]byte, 26)
	binary.LittleEndian.PutUint16(data[0:], objFtCmo)
	binary.LittleEndian.PutUint16(data[2:], 0x12)
	binary.LittleEndian.PutUint16(data[4:], objTypePicture)
	binary.LittleEndian.PutUint16(data[6:], id)
	binary.LittleEndian.PutUint16(data[8:], 0x6011)
	// 마지막 4바이트는 ftEnd
	return &biff.Record{Tag: biff.TagObj, Data: data}
}

// AddPicture inserts a picture shape anchored at a. The image is added to the
// catalog or shares an identical entry already there.
func (d *Drawing) AddPicture(data []byte, t BlipType, a Anchor, name string) (*Container, error) {
	if d.Patriarch() == nil {
		return nil, newInternalError("drawing has no patriarch")
	}
	anchor, err := NewClientAnchor(AnchorMove, a)
	if err != nil {
		return nil, err
	}
	store, err := d.group.BStore()
	if err != nil {
		return nil, err
	}
	bse, _, err := store.Insert(data, t)
	if err != nil {
		return nil, err
	}

	id, err := d.Cache.NewShapeID(d.group.Cache)
	if err != nil {
		return nil, err
	}
	opt := NewOPT()
	opt.SetBlip(PropPib, bse)
	if name != "" {
		if err := opt.SetName(name); err != nil {
			return nil, err
		}
	}
	cd := NewClientData()
	cd.AttachClientRecord(newPictureObj(d.Cache.MaxObjID() + 1))

	sp := NewContainer(TagSpContainer, 0)
	for _, r := range []Record{NewSp(ShapeTypePictureFrame, id, ShapeHaveAnchor|ShapeHaveSpt), opt, anchor, cd} {
		if err := sp.AddChild(r); err != nil {
			return nil, err
		}
	}
	if err := d.Patriarch().AddChild(sp); err != nil {
		return nil, err
	}
	return sp, nil
}

// DeleteShape removes a top-level or grouped shape, releasing its images and
// the connector rules that reference it.
func (d *Drawing) DeleteShape(shape *Container) error {
	parent := shape.Parent()
	if parent == nil || shape == d.Patriarch() {
		return newInternalError("cannot delete the patriarch or a detached shape")
	}

	var ids []uint32
	Walk(shape, func(r Record) bool {
		if sp, ok := r.(*SpRecord); ok {
			ids = append(ids, sp.ShapeID())
		}
		return true
	})
	if err := parent.RemoveChild(shape); err != nil {
		return err
	}
	if dg := d.Dg(); dg != nil {
		dg.noteRemoved(len(ids))
	}

	if solver := d.Cache.Solver(); solver != nil {
		for _, ch := range slices.Clone(solver.Children()) {
			rule, ok := ch.(*ConnectorRule)
			if !ok {
				continue
			}
			a, b, c := rule.Shapes()
			if slices.Contains(ids, a) || slices.Contains(ids, b) || slices.Contains(ids, c) {
				if err := solver.RemoveChild(rule); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// CopyShape copies a top-level shape into dst, which may belong to another
// workbook. The anchor is shifted by the offsets.
func (d *Drawing) CopyShape(shape *Container, dst *Drawing, rowOffset, colOffset int) (*Container, error) {
	if dst.Patriarch() == nil {
		return nil, newInternalError("destination drawing has no patriarch")
	}
	if d.group != dst.group {
		if _, err := dst.group.BStore(); err != nil {
			return nil, err
		}
	}
	ctx := NewCopyContext(d.group.Cache, dst.group.Cache, d.Cache, dst.Cache)
	ctx.Begin(rowOffset, colOffset)
	c, err := shape.self().Copy(ctx)
	if err != nil {
		return nil, fmt.Errorf("copy shape: %w", err)
	}
	ctx.Finish()
	if err := dst.Patriarch().AddChild(c); err != nil {
		return nil, err
	}
	return c.asContainer(), nil
}

// CopyTo copies the whole drawing into dst with a fresh drawing id and
// cluster.
func (d *Drawing) CopyTo(dst *Group) (*Drawing, error) {
	if dst.Dgg() == nil {
		return nil, newInternalError("destination group has no Dgg record")
	}
	if d.group != dst {
		if _, err := dst.BStore(); err != nil {
			return nil, err
		}
	}
	cache := NewDrawingCache()
	cache.IsChart = d.Cache.IsChart
	ctx := NewCopyContext(d.group.Cache, dst.Cache, d.Cache, cache)
	r, err := d.root.Copy(ctx)
	if err != nil {
		return nil, fmt.Errorf("copy drawing: %w", err)
	}
	ctx.Finish()
	nd := &Drawing{group: dst, Cache: cache, root: r.asContainer()}
	dst.drawings = append(dst.drawings, nd)
	return nd, nil
}

// InsertRange arranges every anchor after a row or column insertion.
func (d *Drawing) InsertRange(ctx *InsertContext) error {
	return d.root.ArrangeInsertRange(ctx)
}

// MoveRange arranges every anchor after a block of cells moved.
func (d *Drawing) MoveRange(ctx *MoveContext) error {
	return d.root.ArrangeMoveRange(ctx)
}
