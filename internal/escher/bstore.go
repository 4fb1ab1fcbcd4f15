package escher

import (
	"bytes"
	"cmp"
	"io"
	"slices"
)

// BSE layout.
const (
	bseHeaderSize  = 36
	bseOffWin32    = 0
	bseOffMacOS    = 1
	bseOffUID      = 2
	bseOffTag      = 18
	bseOffSize     = 20
	bseOffRef      = 24
	bseOffDelay    = 28
	bseOffUsage    = 32
	bseOffNameSize = 33
)

// BSE is one entry of the image catalog: a 36-byte header followed by the
// optional name and the embedded blip record.
type BSE struct {
	DataRecord
	pos int
}

func (b *BSE) afterLoad() error {
	if err := b.requireLen(bseHeaderSize); err != nil {
		return err
	}
	if s := b.store(); s != nil {
		s.index(b)
	}
	return nil
}

func (b *BSE) store() *BStore {
	if b.parent == nil {
		return nil
	}
	s, _ := b.parent.owner.(*BStore)
	return s
}

// BlipType returns the Windows format discriminator.
func (b *BSE) BlipType() BlipType { return BlipType(b.u8(bseOffWin32)) }

// MacBlipType returns the Macintosh format discriminator.
func (b *BSE) MacBlipType() BlipType { return BlipType(b.u8(bseOffMacOS)) }

// UID returns the image checksum.
func (b *BSE) UID() [16]byte {
	var uid [16]byte
	if len(b.data) >= bseOffUID+16 {
		copy(uid[:], b.data[bseOffUID:])
	}
	return uid
}

// RefCount returns the number of shapes referencing the image.
func (b *BSE) RefCount() uint32 { return b.u32(bseOffRef) }

// AddRef increments the reference count.
func (b *BSE) AddRef() { b.putU32(bseOffRef, b.RefCount()+1) }

// Position returns the 1-based catalog position.
func (b *BSE) Position() int { return b.pos }

// Name returns the image name stored in the entry.
func (b *BSE) Name() string {
	n := int(b.u8(bseOffNameSize))
	if n == 0 || len(b.data) < bseHeaderSize+n {
		return ""
	}
	return decodeWString(b.data[bseHeaderSize : bseHeaderSize+n])
}

// Payload returns the bytes after the fixed header.
func (b *BSE) Payload() []byte {
	if len(b.data) < bseHeaderSize {
		return nil
	}
	return b.data[bseHeaderSize:]
}

// Compare orders entries by format bytes and payload. The reference count,
// position and delay offset do not take part.
func (b *BSE) Compare(other Record) int {
	o, ok := other.(*BSE)
	if !ok {
		return b.DataRecord.Compare(other)
	}
	if c := cmp.Compare(b.u8(bseOffWin32), o.u8(bseOffWin32)); c != 0 {
		return c
	}
	if c := cmp.Compare(b.u8(bseOffMacOS), o.u8(bseOffMacOS)); c != 0 {
		return c
	}
	pa, pb := b.Payload(), o.Payload()
	if c := cmp.Compare(len(pa), len(pb)); c != 0 {
		return c
	}
	return bytes.Compare(pa, pb)
}

// Copy clones the entry into the catalog being copied.
func (b *BSE) Copy(ctx *CopyContext) (Record, error) {
	c := &BSE{DataRecord: b.clone(ctx), pos: b.pos}
	ctx.remember(b, c)
	if err := c.Attach(ctx.DstGroup, ctx.DstDrawing); err != nil {
		return nil, err
	}
	if s := c.store(); s != nil {
		s.index(c)
	}
	return c, nil
}

// Destroy removes the entry from the catalog index.
func (b *BSE) Destroy() {
	if s := b.store(); s != nil {
		s.unindex(b)
	}
	b.recordBase.Destroy()
}

// BStore is the image catalog. Children are BSE records addressed by
// 1-based position; a sorted index finds duplicates on insert.
type BStore struct {
	Container
	sorted []*BSE
}

func newBStore(h Header) *BStore {
	s := &BStore{Container: Container{recordBase: recordBase{hdr: h}}}
	s.owner = s
	return s
}

// NewBStore builds an empty catalog.
func NewBStore() *BStore {
	return newBStore(Header{Version: ContainerVersion, Tag: TagBStoreContainer})
}

// Attach registers the catalog as the workbook singleton.
func (s *BStore) Attach(g *GroupCache, d *DrawingCache) error {
	if err := s.Container.Attach(g, d); err != nil {
		return err
	}
	if g == nil {
		return nil
	}
	return g.setBStore(s)
}

// Destroy destroys the entries and unregisters the catalog.
func (s *BStore) Destroy() {
	if s.destroyed {
		return
	}
	if s.group != nil {
		s.group.forget(s)
	}
	s.Container.Destroy()
	s.sorted = nil
}

// Copy clones the catalog with every entry.
func (s *BStore) Copy(ctx *CopyContext) (Record, error) {
	if r, ok := ctx.Cloned(s); ok {
		return r, nil
	}
	ns := &BStore{Container: Container{recordBase: s.cloneBase(ctx)}}
	ns.owner = ns
	if err := ns.copyFrom(ctx, &s.Container); err != nil {
		return nil, err
	}
	ns.FixPositions()
	return ns, nil
}

// Count returns the number of entries.
func (s *BStore) Count() int {
	return len(s.children)
}

// Entry returns the entry at 1-based position pos, or nil.
func (s *BStore) Entry(pos int) *BSE {
	b, _ := s.Child(pos - 1).(*BSE)
	return b
}

// Entries returns the entries in position order.
func (s *BStore) Entries() []*BSE {
	out := make([]*BSE, 0, len(s.children))
	for _, ch := range s.children {
		if b, ok := ch.(*BSE); ok {
			out = append(out, b)
		}
	}
	return out
}

func (s *BStore) search(b *BSE) (int, bool) {
	return slices.BinarySearchFunc(s.sorted, b, func(e, t *BSE) int { return e.Compare(t) })
}

func (s *BStore) index(b *BSE) {
	i, _ := s.search(b)
	s.sorted = slices.Insert(s.sorted, i, b)
	b.pos = s.IndexOf(b) + 1
}

func (s *BStore) unindex(b *BSE) {
	if i := slices.Index(s.sorted, b); i >= 0 {
		s.sorted = slices.Delete(s.sorted, i, i+1)
	}
}

// Find returns a catalog entry equal to b.
func (s *BStore) Find(b *BSE) (*BSE, bool) {
	i, ok := s.search(b)
	if !ok {
		return nil, false
	}
	return s.sorted[i], true
}

// FixPositions reassigns every entry's position to its current index.
func (s *BStore) FixPositions() {
	for i, ch := range s.children {
		if b, ok := ch.(*BSE); ok {
			b.pos = i + 1
		}
	}
	s.SetInstance(uint16(len(s.children)))
}

// Insert adds an image. An identical image already in the catalog gets one
// more reference instead. It returns the entry and its position.
func (s *BStore) Insert(data []byte, t BlipType) (*BSE, int, error) {
	b, err := NewBSE(data, t)
	if err != nil {
		return nil, 0, err
	}
	return s.add(b)
}

// Intern adds a copy of an entry of another catalog with one reference.
func (s *BStore) Intern(src *BSE) (*BSE, error) {
	b := &BSE{DataRecord: *NewDataRecord(TagBSE, src.Instance(), src.hdr.Version, src.data)}
	b.putU32(bseOffRef, 1)
	b.putU32(bseOffDelay, 0)
	b, _, err := s.add(b)
	return b, err
}

func (s *BStore) add(b *BSE) (*BSE, int, error) {
	if found, ok := s.Find(b); ok {
		found.AddRef()
		return found, found.pos, nil
	}
	if err := s.Container.AddChild(b); err != nil {
		return nil, 0, err
	}
	s.index(b)
	s.FixPositions()
	return b, b.pos, nil
}

// AddRef adds a reference to the entry at pos.
func (s *BStore) AddRef(pos int) error {
	b := s.Entry(pos)
	if b == nil {
		return newInternalError("image catalog has no entry %d", pos)
	}
	b.AddRef()
	return nil
}

// Release drops a reference to the entry at pos and removes the entry when
// no reference is left.
func (s *BStore) Release(pos int) error {
	b := s.Entry(pos)
	if b == nil {
		return newInternalError("image catalog has no entry %d", pos)
	}
	return s.ReleaseEntry(b)
}

// ReleaseEntry drops a reference to b.
func (s *BStore) ReleaseEntry(b *BSE) error {
	if n := b.RefCount(); n > 1 {
		b.putU32(bseOffRef, n-1)
		return nil
	}
	if err := s.RemoveChild(b); err != nil {
		return err
	}
	s.FixPositions()
	return nil
}

// Export writes the image at pos as a standalone image file.
func (s *BStore) Export(pos int, w io.Writer) error {
	b := s.Entry(pos)
	if b == nil {
		return newInternalError("image catalog has no entry %d", pos)
	}
	return b.ExportAsStandardImage(w)
}
