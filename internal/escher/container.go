package escher

import (
	"io"
	"slices"

	"github.com/roboco-io/xlsdraw/internal/biff"
)

// Container is a record whose payload is a sequence of child records.
type Container struct {
	recordBase
	children []Record
	pending  []byte // partial child header split across physical records
	owner    Record // typed record embedding this container, if any
}

func newContainer(h Header) *Container {
	return &Container{recordBase: recordBase{hdr: h}}
}

// NewContainer builds an empty, fully loaded container.
func NewContainer(tag, instance uint16) *Container {
	return newContainer(Header{Version: ContainerVersion, Instance: instance & 0x0FFF, Tag: tag})
}

func (c *Container) asContainer() *Container { return c }

// Children returns the child records in document order.
func (c *Container) Children() []Record {
	return c.children
}

// Len returns the number of children.
func (c *Container) Len() int {
	return len(c.children)
}

// Child returns the i-th child or nil.
func (c *Container) Child(i int) Record {
	if i < 0 || i >= len(c.children) {
		return nil
	}
	return c.children[i]
}

// IndexOf returns the position of r among the children, or -1.
func (c *Container) IndexOf(r Record) int {
	return slices.Index(c.children, r)
}

// FindChild returns the first direct child with the given tag.
func (c *Container) FindChild(tag uint16) Record {
	for _, ch := range c.children {
		if ch.Tag() == tag {
			return ch
		}
	}
	return nil
}

// FindFirstChildOfType returns the first direct child of type T. It does not
// recurse.
func FindFirstChildOfType[T Record](c *Container) (T, bool) {
	for _, ch := range c.children {
		if t, ok := ch.(T); ok {
			return t, true
		}
	}
	var zero T
	return zero, false
}

// Load decodes children from src until the container or src is exhausted.
func (c *Container) Load(src *Source) error {
	if err := c.alive("load"); err != nil {
		return err
	}

	for !c.IsFullyLoaded() && src.Len() > 0 {
		// 직전 자식이 아직 덜 읽힌 경우 먼저 이어서 읽음
		if n := len(c.children); n > 0 && len(c.pending) == 0 && !c.children[n-1].IsFullyLoaded() {
			last := c.children[n-1]
			pos := src.Pos()
			if err := last.Load(src); err != nil {
				return err
			}
			c.loaded += src.Pos() - pos
			if last.IsFullyLoaded() {
				if err := finishLoad(last); err != nil {
					return err
				}
			}
			continue
		}

		need := HeaderSize - len(c.pending)
		if need > c.hdr.Length-c.loaded {
			return newInvalidDataError("%s: child header overruns container (%d bytes left)",
				TagName(c.hdr.Tag), c.hdr.Length-c.loaded)
		}
		chunk := src.Next(need)
		c.pending = append(c.pending, chunk...)
		c.loaded += len(chunk)
		if len(c.pending) < HeaderSize {
			break
		}

		h, err := ParseHeader(c.pending)
		c.pending = c.pending[:0]
		if err != nil {
			return err
		}
		if h.Length > c.hdr.Length-c.loaded {
			return newInvalidDataError("%s: child %s declares %d bytes, %d left",
				TagName(c.hdr.Tag), TagName(h.Tag), h.Length, c.hdr.Length-c.loaded)
		}

		child := newRecord(h)
		child.base().parent = c
		if err := child.Attach(c.group, c.drawing); err != nil {
			return err
		}
		c.children = append(c.children, child)
		if h.Length == 0 {
			if err := finishLoad(child); err != nil {
				return err
			}
		}
	}
	return nil
}

func finishLoad(r Record) error {
	if al, ok := r.(afterLoader); ok {
		return al.afterLoad()
	}
	return nil
}

// TotalSize returns header plus the live size of all children.
func (c *Container) TotalSize() int {
	n := HeaderSize
	for _, ch := range c.children {
		n += ch.TotalSize()
	}
	return n
}

// Prepare reports the container header and then every child to s.
func (c *Container) Prepare(s *biff.Splitter) error {
	if !c.IsFullyLoaded() {
		return newInternalError("prepare %s: %d of %d bytes loaded", TagName(c.hdr.Tag), c.loaded, c.hdr.Length)
	}
	if err := s.Add(HeaderSize); err != nil {
		return err
	}
	for _, ch := range c.children {
		if err := ch.Prepare(s); err != nil {
			return err
		}
	}
	return nil
}

// Save writes the header with the live payload size, then every child.
func (c *Container) Save(w io.Writer) error {
	if err := c.alive("save"); err != nil {
		return err
	}
	if !c.IsFullyLoaded() {
		return newInternalError("save %s: %d of %d bytes loaded", TagName(c.hdr.Tag), c.loaded, c.hdr.Length)
	}
	if err := c.writeHeader(w, c.TotalSize()-HeaderSize); err != nil {
		return err
	}
	for _, ch := range c.children {
		if err := ch.Save(w); err != nil {
			return err
		}
	}
	return nil
}

// Compare orders containers by header only.
func (c *Container) Compare(other Record) int {
	return c.compareHeader(other.base())
}

// Copy clones the container and every child into the destination caches.
func (c *Container) Copy(ctx *CopyContext) (Record, error) {
	if r, ok := ctx.Cloned(c); ok {
		return r, nil
	}
	nc := &Container{recordBase: c.cloneBase(ctx)}
	if err := nc.copyFrom(ctx, c); err != nil {
		return nil, err
	}
	return nc, nil
}

// copyFrom registers nc as the clone of src and copies the children.
func (c *Container) copyFrom(ctx *CopyContext, src *Container) error {
	if !src.IsFullyLoaded() {
		return newInternalError("copy %s: not fully loaded", TagName(src.hdr.Tag))
	}
	ctx.remember(src.self(), c.self())
	if err := c.self().Attach(ctx.DstGroup, ctx.DstDrawing); err != nil {
		return err
	}
	c.children = make([]Record, 0, len(src.children))
	for _, ch := range src.children {
		cc, err := ch.Copy(ctx)
		if err != nil {
			return err
		}
		cc.base().parent = c
		c.children = append(c.children, cc)
	}
	c.hdr.Length = c.TotalSize() - HeaderSize
	c.loaded = c.hdr.Length
	return nil
}

// self returns the outermost record embedding c.
func (c *Container) self() Record {
	if c.owner != nil {
		return c.owner
	}
	return c
}

// Attach registers the container in the role its tag implies.
func (c *Container) Attach(g *GroupCache, d *DrawingCache) error {
	if err := c.recordBase.Attach(g, d); err != nil {
		return err
	}
	switch {
	case c.hdr.Tag == TagDggContainer && g != nil:
		return g.setRoot(c)
	case d == nil:
		return nil
	case c.hdr.Tag == TagDgContainer:
		return d.setRoot(c)
	case c.hdr.Tag == TagSolverContainer:
		return d.setSolver(c)
	case c.hdr.Tag == TagSpgrContainer:
		d.offerPatriarch(c)
	}
	return nil
}

// Destroy destroys the children in reverse order, then unregisters c.
func (c *Container) Destroy() {
	if c.destroyed {
		return
	}
	for i := len(c.children) - 1; i >= 0; i-- {
		c.children[i].Destroy()
	}
	if g := c.group; g != nil {
		g.forget(c)
	}
	if d := c.drawing; d != nil {
		d.forgetContainer(c)
	}
	c.recordBase.Destroy()
}

// InsertChild inserts a fully loaded record at position i and attaches its
// subtree to the container's caches.
func (c *Container) InsertChild(i int, r Record) error {
	if err := c.alive("insert"); err != nil {
		return err
	}
	b := r.base()
	if b.parent != nil {
		return newInternalError("insert %s: record already has a parent", TagName(b.hdr.Tag))
	}
	if !r.IsFullyLoaded() {
		return newInternalError("insert %s: not fully loaded", TagName(b.hdr.Tag))
	}
	if i < 0 || i > len(c.children) {
		return newInternalError("insert %s at %d: container has %d children", TagName(b.hdr.Tag), i, len(c.children))
	}
	b.parent = c
	c.children = slices.Insert(c.children, i, r)
	c.resize(r.TotalSize())
	if c.group == nil && c.drawing == nil {
		return nil
	}
	return attachTree(r, c.group, c.drawing)
}

// AddChild appends a fully loaded record.
func (c *Container) AddChild(r Record) error {
	return c.InsertChild(len(c.children), r)
}

// RemoveChild destroys r and then removes it from the children.
func (c *Container) RemoveChild(r Record) error {
	i := c.IndexOf(r)
	if i < 0 {
		return newInternalError("remove %s: not a child of %s", TagName(r.Tag()), TagName(c.hdr.Tag))
	}
	size := r.TotalSize()
	r.Destroy()
	c.children = slices.Delete(c.children, i, i+1)
	c.resize(-size)
	r.base().parent = nil
	return nil
}

// ArrangeInsertRange forwards the arrangement to every child.
func (c *Container) ArrangeInsertRange(a *InsertContext) error {
	for _, ch := range c.children {
		if err := ch.ArrangeInsertRange(a); err != nil {
			return err
		}
	}
	return nil
}

// ArrangeMoveRange forwards the arrangement to every child.
func (c *Container) ArrangeMoveRange(m *MoveContext) error {
	for _, ch := range c.children {
		if err := ch.ArrangeMoveRange(m); err != nil {
			return err
		}
	}
	return nil
}

// attachTree attaches r and its descendants that are not attached yet.
func attachTree(r Record, g *GroupCache, d *DrawingCache) error {
	b := r.base()
	if !b.attached {
		if err := r.Attach(g, d); err != nil {
			return err
		}
	}
	if c := r.asContainer(); c != nil {
		for _, ch := range c.children {
			if err := attachTree(ch, g, d); err != nil {
				return err
			}
		}
	}
	return nil
}

// Walk calls fn for r and every descendant in document order. Returning
// false from fn skips the descendants of that record.
func Walk(r Record, fn func(Record) bool) {
	if !fn(r) {
		return
	}
	if c := r.asContainer(); c != nil {
		for _, ch := range c.children {
			Walk(ch, fn)
		}
	}
}
