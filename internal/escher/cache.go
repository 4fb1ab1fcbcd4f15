package escher

import "slices"

// GroupCache indexes the workbook-wide singleton records: the image catalog
// and the shape id allocator.
type GroupCache struct {
	root   *Container
	bstore *BStore
	dgg    *DggRecord
}

// NewGroupCache creates an empty workbook cache.
func NewGroupCache() *GroupCache {
	return &GroupCache{}
}

// Root returns the drawing group container.
func (g *GroupCache) Root() *Container { return g.root }

// BStore returns the image catalog, or nil.
func (g *GroupCache) BStore() *BStore { return g.bstore }

// Dgg returns the shape id allocator, or nil.
func (g *GroupCache) Dgg() *DggRecord { return g.dgg }

func (g *GroupCache) setRoot(c *Container) error {
	if g.root != nil && g.root != c {
		return &DuplicateRoleError{Role: "drawing group container"}
	}
	g.root = c
	return nil
}

func (g *GroupCache) setBStore(b *BStore) error {
	if g.bstore != nil && g.bstore != b {
		return &DuplicateRoleError{Role: "image catalog"}
	}
	g.bstore = b
	return nil
}

func (g *GroupCache) setDgg(d *DggRecord) error {
	if g.dgg != nil && g.dgg != d {
		return &DuplicateRoleError{Role: "drawing group header"}
	}
	g.dgg = d
	return nil
}

func (g *GroupCache) forget(r Record) {
	switch {
	case g.root != nil && Record(g.root) == r:
		g.root = nil
	case g.bstore != nil && Record(g.bstore) == r:
		g.bstore = nil
	case g.dgg != nil && Record(g.dgg) == r:
		g.dgg = nil
	}
}

// DrawingCache indexes the records of one sheet drawing by role.
type DrawingCache struct {
	// IsChart selects absolute anchor coordinates for new anchors.
	IsChart bool

	maxShapeID uint32
	reserved   uint32

	root      *Container
	dg        *DgRecord
	solver    *Container
	patriarch *Container
	anchors   []*ClientAnchor
	shapes    map[uint32]*Container
	objs      map[uint16]*ClientData
	blips     map[*BSE]int
	names     map[string][]*Container // 이름이 같은 도형은 등록 순서대로

	lastClient *ClientData
}

// NewDrawingCache creates an empty sheet cache.
func NewDrawingCache() *DrawingCache {
	return &DrawingCache{
		shapes: make(map[uint32]*Container),
		objs:   make(map[uint16]*ClientData),
		blips:  make(map[*BSE]int),
		names:  make(map[string][]*Container),
	}
}

// MaxShapeID returns the highest shape id seen in the drawing.
func (d *DrawingCache) MaxShapeID() uint32 { return d.maxShapeID }

// Root returns the sheet drawing container.
func (d *DrawingCache) Root() *Container { return d.root }

// Dg returns the drawing header record.
func (d *DrawingCache) Dg() *DgRecord { return d.dg }

// Solver returns the rules container, or nil.
func (d *DrawingCache) Solver() *Container { return d.solver }

// Patriarch returns the root shape group.
func (d *DrawingCache) Patriarch() *Container { return d.patriarch }

// Anchors returns the anchored top-level shapes in document order.
func (d *DrawingCache) Anchors() []*ClientAnchor { return d.anchors }

// Shape returns the shape container with the given id.
func (d *DrawingCache) Shape(id uint32) (*Container, bool) {
	c, ok := d.shapes[id]
	return c, ok
}

// Obj returns the client data record whose OBJ carries id.
func (d *DrawingCache) Obj(id uint16) (*ClientData, bool) {
	c, ok := d.objs[id]
	return c, ok
}

// ShapeByName returns the shape container named name. When several shapes
// share the name, the first registered one wins.
func (d *DrawingCache) ShapeByName(name string) (*Container, bool) {
	if cs := d.names[name]; len(cs) > 0 {
		return cs[0], true
	}
	return nil, false
}

// BlipUsage returns how many shapes of this drawing reference b.
func (d *DrawingCache) BlipUsage(b *BSE) int { return d.blips[b] }

// MaxObjID returns the highest OBJ id in use.
func (d *DrawingCache) MaxObjID() uint16 {
	var m uint16
	for id := range d.objs {
		m = max(m, id)
	}
	return m
}

func (d *DrawingCache) setRoot(c *Container) error {
	if d.root != nil && d.root != c {
		return &DuplicateRoleError{Role: "drawing container"}
	}
	d.root = c
	return nil
}

func (d *DrawingCache) setDg(r *DgRecord) error {
	if d.dg != nil && d.dg != r {
		return &DuplicateRoleError{Role: "drawing header"}
	}
	d.dg = r
	return nil
}

func (d *DrawingCache) setSolver(c *Container) error {
	if d.solver != nil && d.solver != c {
		return &DuplicateRoleError{Role: "solver container"}
	}
	d.solver = c
	return nil
}

// offerPatriarch makes c the patriarch if the drawing has none yet.
func (d *DrawingCache) offerPatriarch(c *Container) {
	if d.patriarch == nil {
		d.patriarch = c
	}
}

func (d *DrawingCache) forgetContainer(c *Container) {
	switch c {
	case d.root:
		d.root = nil
	case d.solver:
		d.solver = nil
	case d.patriarch:
		d.patriarch = nil
	}
}

func (d *DrawingCache) noteShapeID(id uint32) {
	d.maxShapeID = max(d.maxShapeID, id)
}

func (d *DrawingCache) registerShape(id uint32, c *Container) {
	d.shapes[id] = c
	d.noteShapeID(id)
}

func (d *DrawingCache) unregisterShape(id uint32, c *Container) {
	if d.shapes[id] == c {
		delete(d.shapes, id)
	}
}

func (d *DrawingCache) registerName(name string, c *Container) {
	if name == "" || slices.Contains(d.names[name], c) {
		return
	}
	d.names[name] = append(d.names[name], c)
}

func (d *DrawingCache) unregisterName(name string, c *Container) {
	cs := d.names[name]
	i := slices.Index(cs, c)
	if i < 0 {
		return
	}
	if len(cs) == 1 {
		delete(d.names, name)
		return
	}
	d.names[name] = slices.Delete(cs, i, i+1)
}

func (d *DrawingCache) addAnchor(a *ClientAnchor) {
	if !slices.Contains(d.anchors, a) {
		d.anchors = append(d.anchors, a)
	}
}

func (d *DrawingCache) removeAnchor(a *ClientAnchor) {
	if i := slices.Index(d.anchors, a); i >= 0 {
		d.anchors = slices.Delete(d.anchors, i, i+1)
	}
}

func (d *DrawingCache) useBlip(b *BSE) {
	d.blips[b]++
}

func (d *DrawingCache) unuseBlip(b *BSE) {
	if d.blips[b] <= 1 {
		delete(d.blips, b)
		return
	}
	d.blips[b]--
}

// NewShapeID issues the next shape id of the drawing from the allocator in g
// and records it in the drawing header.
func (d *DrawingCache) NewShapeID(g *GroupCache) (uint32, error) {
	if d.dg == nil {
		return 0, newInternalError("issue shape id: drawing has no Dg record")
	}
	var id uint32
	if d.reserved != 0 {
		id, d.reserved = d.reserved, 0
	} else {
		if g == nil || g.dgg == nil {
			return 0, newInternalError("issue shape id: drawing group has no Dgg record")
		}
		var err error
		id, err = g.dgg.IssueNextShapeID(d.dg.DrawingID(), d.dg.LastShapeID())
		if err != nil {
			return 0, err
		}
	}
	d.dg.noteIssued(id)
	d.noteShapeID(id)
	return id, nil
}
