package escher

import (
	"cmp"
	"io"

	"github.com/roboco-io/xlsdraw/internal/biff"
)

// Record is a node of the drawing record graph.
//
// A record is created from a decoded header (or programmatically), attached
// to its caches, loaded incrementally, and finally saved or destroyed.
// Destroy is terminal: it severs every cache reference to the record.
type Record interface {
	// Header returns the record header. Length is the declared payload size.
	Header() Header
	Tag() uint16
	Instance() uint16
	Parent() *Container

	// Load consumes as many payload bytes from src as are still missing.
	Load(src *Source) error
	IsFullyLoaded() bool

	// TotalSize returns header plus live payload size.
	TotalSize() int

	// Prepare reports the record's bytes to s, in document order.
	Prepare(s *biff.Splitter) error
	// Save writes header and payload, recomputing the length from live content.
	Save(w io.Writer) error

	// Compare orders records by tag, preamble and declared size.
	Compare(other Record) int
	// Copy clones the record into the destination caches of ctx.
	Copy(ctx *CopyContext) (Record, error)

	// Attach registers the record in the caches it plays a role in.
	Attach(g *GroupCache, d *DrawingCache) error
	// Destroy unregisters the record from every cache. It must run before
	// the record is removed from its parent.
	Destroy()

	ArrangeInsertRange(a *InsertContext) error
	ArrangeMoveRange(m *MoveContext) error

	base() *recordBase
	asContainer() *Container
}

// afterLoader is implemented by records that decode their payload once it is
// complete.
type afterLoader interface {
	afterLoad() error
}

type recordBase struct {
	hdr       Header
	loaded    int
	parent    *Container
	group     *GroupCache
	drawing   *DrawingCache
	attached  bool
	destroyed bool
}

func (b *recordBase) base() *recordBase { return b }

// Header returns the record header.
func (b *recordBase) Header() Header { return b.hdr }

// Tag returns the record tag.
func (b *recordBase) Tag() uint16 { return b.hdr.Tag }

// Instance returns the 12-bit instance field.
func (b *recordBase) Instance() uint16 { return b.hdr.Instance }

// SetInstance updates the 12-bit instance field.
func (b *recordBase) SetInstance(v uint16) { b.hdr.Instance = v & 0x0FFF }

// Parent returns the owning container, or nil for a root.
func (b *recordBase) Parent() *Container { return b.parent }

// IsFullyLoaded reports whether every declared byte was loaded.
func (b *recordBase) IsFullyLoaded() bool { return b.loaded == b.hdr.Length }

// GroupCache returns the workbook-wide cache the record is attached to.
func (b *recordBase) GroupCache() *GroupCache { return b.group }

// DrawingCache returns the sheet cache the record is attached to.
func (b *recordBase) DrawingCache() *DrawingCache { return b.drawing }

// Attach stores the caches. Records with a cache role override it.
func (b *recordBase) Attach(g *GroupCache, d *DrawingCache) error {
	if b.destroyed {
		return newInternalError("attach on destroyed %s", TagName(b.hdr.Tag))
	}
	b.group = g
	b.drawing = d
	b.attached = g != nil || d != nil
	return nil
}

// Destroy marks the record dead. Records with a cache role override it.
func (b *recordBase) Destroy() {
	b.destroyed = true
}

func (b *recordBase) ArrangeInsertRange(*InsertContext) error { return nil }

func (b *recordBase) ArrangeMoveRange(*MoveContext) error { return nil }

func (b *recordBase) asContainer() *Container { return nil }

func (b *recordBase) alive(op string) error {
	if b.destroyed {
		return newInternalError("%s on destroyed %s", op, TagName(b.hdr.Tag))
	}
	return nil
}

// resize moves declared and loaded size by delta on b and every ancestor.
func (b *recordBase) resize(delta int) {
	if delta == 0 {
		return
	}
	b.hdr.Length += delta
	b.loaded += delta
	for p := b.parent; p != nil; p = p.parent {
		p.hdr.Length += delta
		p.loaded += delta
	}
}

func (b *recordBase) compareHeader(o *recordBase) int {
	if c := cmp.Compare(b.hdr.Tag, o.hdr.Tag); c != 0 {
		return c
	}
	if c := cmp.Compare(b.hdr.Preamble(), o.hdr.Preamble()); c != 0 {
		return c
	}
	return cmp.Compare(b.hdr.Length, o.hdr.Length)
}

// cloneBase copies the header and resolves the parent through the copy memo.
func (b *recordBase) cloneBase(ctx *CopyContext) recordBase {
	nb := recordBase{hdr: b.hdr, loaded: b.loaded}
	if b.parent != nil {
		if p, ok := ctx.Cloned(b.parent.self()); ok {
			nb.parent = p.asContainer()
		}
	}
	return nb
}

func (b *recordBase) writeHeader(w io.Writer, length int) error {
	var hdr [HeaderSize]byte
	b.hdr.Put(hdr[:], length)
	_, err := w.Write(hdr[:])
	return err
}

// Source is a read cursor over the payload of one physical record.
type Source struct {
	data []byte
	pos  int
}

// NewSource creates a cursor over data.
func NewSource(data []byte) *Source {
	return &Source{data: data}
}

// Len returns the number of unread bytes.
func (s *Source) Len() int {
	return len(s.data) - s.pos
}

// Pos returns the number of bytes consumed.
func (s *Source) Pos() int {
	return s.pos
}

// Next consumes up to n bytes.
func (s *Source) Next(n int) []byte {
	n = min(n, s.Len())
	b := s.data[s.pos : s.pos+n]
	s.pos += n
	return b
}

// ReadFull consumes exactly n bytes.
func (s *Source) ReadFull(n int) ([]byte, error) {
	if n > s.Len() {
		return nil, newInvalidDataError("need %d bytes, have %d", n, s.Len())
	}
	return s.Next(n), nil
}

// newRecord dispatches on the container flag and tag. Unknown tags fall back
// to a generic container or data record.
func newRecord(h Header) Record {
	if h.IsContainer() {
		switch h.Tag {
		case TagBStoreContainer:
			return newBStore(h)
		default:
			return newContainer(h)
		}
	}

	switch h.Tag {
	case TagDgg:
		return &DggRecord{DataRecord: newDataRecord(h)}
	case TagBSE:
		return &BSE{DataRecord: newDataRecord(h)}
	case TagDg:
		return &DgRecord{DataRecord: newDataRecord(h)}
	case TagSpgr:
		return &SpgrRecord{DataRecord: newDataRecord(h)}
	case TagSp:
		return &SpRecord{DataRecord: newDataRecord(h)}
	case TagOPT, TagTertiaryOPT:
		return &OPT{DataRecord: newDataRecord(h)}
	case TagClientAnchor:
		return &ClientAnchor{DataRecord: newDataRecord(h)}
	case TagChildAnchor:
		return &ChildAnchor{DataRecord: newDataRecord(h)}
	case TagClientData, TagClientTextbox:
		return &ClientData{DataRecord: newDataRecord(h)}
	case TagConnectorRule:
		return &ConnectorRule{DataRecord: newDataRecord(h)}
	default:
		d := newDataRecord(h)
		return &d
	}
}
