package escher

import (
	"encoding/binary"
	"io"
	"slices"

	"github.com/roboco-io/xlsdraw/internal/biff"
)

const (
	optEntrySize = 6

	propIDMask      uint16 = 0x3FFF
	propBlipFlag    uint16 = 0x4000
	propComplexFlag uint16 = 0x8000

	imsoHeaderSize = 6
)

// Property is one entry of a shape option table.
type Property struct {
	ID      uint16
	Blip    bool   // value refers to the image catalog
	Complex bool   // value is the length of Data
	Value   int32  // inline value, or 1-based catalog position for blips
	Data    []byte // complex payload

	bse   *BSE
	entry int // table slot in the encoded payload
}

// Image returns the catalog entry of a blip property.
func (p *Property) Image() *BSE { return p.bse }

// IsEmptyBlip reports a blip property that deliberately references no image.
func (p *Property) IsEmptyBlip() bool {
	return p.Blip && !p.Complex && p.bse == nil && p.Value <= 0
}

// OPT is a shape option table: properties sorted by id, encoded as 6-byte
// entries followed by the complex payloads in table order. The instance holds
// the property count.
type OPT struct {
	DataRecord
	props []Property
	name  string
}

// NewOPT builds an empty option table.
func NewOPT() *OPT {
	return &OPT{DataRecord: *NewDataRecord(TagOPT, 0, 3, nil)}
}

// Properties returns the properties in id order.
func (r *OPT) Properties() []Property {
	return r.props
}

// Len returns the number of properties.
func (r *OPT) Len() int {
	return len(r.props)
}

func (r *OPT) find(id uint16) (int, bool) {
	return slices.BinarySearchFunc(r.props, id, func(p Property, id uint16) int {
		return int(p.ID) - int(id)
	})
}

// Property returns the property with the given id.
func (r *OPT) Property(id uint16) (*Property, bool) {
	i, ok := r.find(id)
	if !ok {
		return nil, false
	}
	return &r.props[i], true
}

// isIMSOArray reports properties whose complex payload is an array with a
// 6-byte header: count(2) alloc(2) elementSize(2).
func isIMSOArray(id uint16) bool {
	switch id {
	case PropVertices, PropSegmentInfo, PropConnectionSites, PropConnectionSitesDir,
		PropAdjustHandles, PropGuides, PropInscribe, PropFillShadeColors,
		PropLineDashStyle, PropWrapPolygonVertices:
		return true
	}
	return false
}

// imsoLength returns the byte size of an array property. Element size 0xFFF0
// means 4-byte elements.
func imsoLength(hdr []byte) int {
	n := int(binary.LittleEndian.Uint16(hdr[0:2]))
	cb := int(binary.LittleEndian.Uint16(hdr[4:6]))
	if cb == 0xFFF0 {
		cb = 4
	}
	return n*cb + imsoHeaderSize
}

func (r *OPT) afterLoad() error {
	props, err := decodeOPT(r.data, int(r.Instance()))
	if err != nil {
		return err
	}
	slices.SortStableFunc(props, func(a, b Property) int { return int(a.ID) - int(b.ID) })
	r.props = props
	r.resolve()
	return nil
}

func decodeOPT(data []byte, count int) ([]Property, error) {
	table := count * optEntrySize
	if table > len(data) {
		return nil, newInvalidDataError("OPT declares %d properties in %d bytes", count, len(data))
	}

	props := make([]Property, 0, count)
	off := table
	for i := range count {
		e := data[i*optEntrySize:]
		packed := binary.LittleEndian.Uint16(e[0:2])
		p := Property{
			ID:      packed & propIDMask,
			Blip:    packed&propBlipFlag != 0,
			Complex: packed&propComplexFlag != 0,
			Value:   int32(binary.LittleEndian.Uint32(e[2:6])),
			entry:   i,
		}
		if p.Complex {
			n := int(uint32(p.Value))
			// 배열 속성: 헤더 포함/미포함 두 가지 기록 방식을 모두 허용
			if n > 0 && isIMSOArray(p.ID) && off+imsoHeaderSize <= len(data) {
				if computed := imsoLength(data[off:]); n == computed || n == computed-imsoHeaderSize {
					n = computed
				}
			}
			if n < 0 || off+n > len(data) {
				return nil, newInvalidDataError("OPT property 0x%04X needs %d complex bytes at %d, have %d",
					p.ID, n, off, len(data)-off)
			}
			p.Data = append([]byte(nil), data[off:off+n]...)
			p.Value = int32(n)
			off += n
		}
		props = append(props, p)
	}
	if off != len(data) {
		return nil, newInvalidDataError("OPT has %d trailing bytes", len(data)-off)
	}
	return props, nil
}

// encode writes the canonical form: ascending ids, complex lengths equal to
// the payload length, blips at their current catalog position.
func (r *OPT) encode() []byte {
	slices.SortStableFunc(r.props, func(a, b Property) int { return int(a.ID) - int(b.ID) })

	size := len(r.props) * optEntrySize
	for _, p := range r.props {
		size += len(p.Data)
	}
	buf := make([]byte, size)
	off := len(r.props) * optEntrySize
	for i := range r.props {
		p := &r.props[i]
		packed := p.ID & propIDMask
		if p.Blip {
			packed |= propBlipFlag
		}
		if p.Complex {
			packed |= propComplexFlag
			p.Value = int32(len(p.Data))
			copy(buf[off:], p.Data)
			off += len(p.Data)
		}
		p.entry = i
		e := buf[i*optEntrySize:]
		binary.LittleEndian.PutUint16(e[0:2], packed)
		binary.LittleEndian.PutUint32(e[2:6], uint32(r.entryValue(p)))
	}
	return buf
}

func (r *OPT) entryValue(p *Property) int32 {
	if p.Blip && !p.Complex && p.bse != nil {
		return int32(p.bse.Position())
	}
	return p.Value
}

// sync re-encodes the table and moves the record size by the exact delta.
func (r *OPT) sync() {
	r.setData(r.encode())
	r.SetInstance(uint16(len(r.props)))
}

// patchBlips writes current catalog positions into the table.
func (r *OPT) patchBlips() {
	for i := range r.props {
		p := &r.props[i]
		if p.Blip && !p.Complex && p.bse != nil {
			r.putU32(p.entry*optEntrySize+2, uint32(p.bse.Position()))
		}
	}
}

// resolve binds blip properties to catalog entries and indexes the name.
func (r *OPT) resolve() {
	var store *BStore
	if r.group != nil {
		store = r.group.BStore()
	}
	for i := range r.props {
		p := &r.props[i]
		if !p.Blip || p.Complex || p.Value <= 0 || store == nil {
			continue
		}
		if b := store.Entry(int(p.Value)); b != nil {
			p.bse = b
			if r.drawing != nil {
				r.drawing.useBlip(b)
			}
		}
	}
	r.indexName()
}

func (r *OPT) indexName() {
	name := r.Name()
	if r.drawing != nil && r.parent != nil && r.parent.Tag() == TagSpContainer {
		if name != r.name {
			r.drawing.unregisterName(r.name, r.parent)
		}
		r.drawing.registerName(name, r.parent)
	}
	r.name = name
}

// Attach resolves a programmatically built table against the caches.
func (r *OPT) Attach(g *GroupCache, d *DrawingCache) error {
	if err := r.recordBase.Attach(g, d); err != nil {
		return err
	}
	if r.IsFullyLoaded() && r.drawing != nil {
		for i := range r.props {
			if b := r.props[i].bse; b != nil {
				r.drawing.useBlip(b)
			}
		}
		r.indexName()
	}
	return nil
}

// Destroy releases the images and the name the table holds.
func (r *OPT) Destroy() {
	for i := range r.props {
		if b := r.props[i].bse; b != nil {
			r.dropImage(b)
			r.props[i].bse = nil
		}
	}
	if r.drawing != nil && r.parent != nil {
		r.drawing.unregisterName(r.name, r.parent)
	}
	r.recordBase.Destroy()
}

// Prepare refreshes the blip positions and reports the record.
func (r *OPT) Prepare(s *biff.Splitter) error {
	r.patchBlips()
	return r.DataRecord.Prepare(s)
}

// Save writes the table with the current blip positions.
func (r *OPT) Save(w io.Writer) error {
	r.patchBlips()
	return r.DataRecord.Save(w)
}

// Copy clones the table. Images are referenced again in the same workbook or
// re-interned into the destination catalog.
func (r *OPT) Copy(ctx *CopyContext) (Record, error) {
	c := &OPT{DataRecord: r.clone(ctx)}
	c.props = make([]Property, len(r.props))
	for i, p := range r.props {
		p.Data = append([]byte(nil), p.Data...)
		if p.bse != nil {
			b, err := copyImage(ctx, p.bse)
			if err != nil {
				return nil, err
			}
			p.bse = b
		}
		c.props[i] = p
	}
	c.patchBlips()
	ctx.remember(r, c)
	if err := c.Attach(ctx.DstGroup, ctx.DstDrawing); err != nil {
		return nil, err
	}
	return c, nil
}

func copyImage(ctx *CopyContext, b *BSE) (*BSE, error) {
	if !ctx.CrossGroup() {
		b.AddRef()
		return b, nil
	}
	if ctx.DstGroup == nil || ctx.DstGroup.BStore() == nil {
		return nil, newInternalError("copy image: destination workbook has no image catalog")
	}
	return ctx.DstGroup.BStore().Intern(b)
}

// dropImage gives back one reference of b.
func (r *OPT) dropImage(b *BSE) {
	if r.drawing != nil {
		r.drawing.unuseBlip(b)
	}
	if r.group != nil && r.group.BStore() != nil && !b.destroyed {
		_ = r.group.BStore().ReleaseEntry(b)
	}
}

func (r *OPT) set(p Property) {
	i, ok := r.find(p.ID)
	if ok {
		if old := r.props[i].bse; old != nil && old != p.bse {
			r.dropImage(old)
		}
		r.props[i] = p
	} else {
		r.props = slices.Insert(r.props, i, p)
	}
	r.sync()
}

// SetInt sets an inline value. A value equal to the property default removes
// the property.
func (r *OPT) SetInt(id uint16, v int32) {
	if def, ok := propertyDefaults[id]; ok && def == v {
		r.RemoveProperty(id)
		return
	}
	r.set(Property{ID: id, Value: v})
}

// SetUInt sets an unsigned inline value.
func (r *OPT) SetUInt(id uint16, v uint32) {
	r.SetInt(id, int32(v))
}

// SetBool sets one flag of a packed boolean property. The flag's "defined"
// bit sixteen positions higher is set as well; other flags are kept.
func (r *OPT) SetBool(id uint16, bit uint, v bool) {
	var raw uint32
	if p, ok := r.Property(id); ok {
		raw = uint32(p.Value)
	}
	raw |= 1 << (bit + 16)
	if v {
		raw |= 1 << bit
	} else {
		raw &^= 1 << bit
	}
	r.set(Property{ID: id, Value: int32(raw)})
}

// SetByteArray replaces a complex property.
func (r *OPT) SetByteArray(id uint16, data []byte) {
	r.set(Property{ID: id, Complex: true, Data: append([]byte(nil), data...), Value: int32(len(data))})
}

// SetBlip makes id reference b. The caller owns one reference of b that is
// handed to the table.
func (r *OPT) SetBlip(id uint16, b *BSE) {
	if cur, ok := r.Blip(id); ok && b != nil && cur == b {
		// 이미 같은 이미지를 가리키면 넘겨받은 참조만 반납
		if r.group != nil && r.group.BStore() != nil && !b.destroyed {
			_ = r.group.BStore().ReleaseEntry(b)
		}
		return
	}
	p := Property{ID: id, Blip: true, bse: b}
	if b != nil {
		p.Value = int32(b.Position())
		if r.drawing != nil {
			r.drawing.useBlip(b)
		}
	}
	r.set(p)
}

// RemoveProperty deletes a property. It reports whether it existed.
func (r *OPT) RemoveProperty(id uint16) bool {
	i, ok := r.find(id)
	if !ok {
		return false
	}
	if b := r.props[i].bse; b != nil {
		r.dropImage(b)
	}
	r.props = slices.Delete(r.props, i, i+1)
	r.sync()
	return true
}

// Int returns an inline value or def.
func (r *OPT) Int(id uint16, def int32) int32 {
	if p, ok := r.Property(id); ok && !p.Complex {
		return p.Value
	}
	return def
}

// UInt returns an unsigned inline value or def.
func (r *OPT) UInt(id uint16, def uint32) uint32 {
	return uint32(r.Int(id, int32(def)))
}

// Bool returns one flag of a packed boolean property. The value bit counts
// only when its "defined" bit is set; otherwise def applies.
func (r *OPT) Bool(id uint16, bit uint, def bool) bool {
	p, ok := r.Property(id)
	if !ok {
		return def
	}
	raw := uint32(p.Value)
	if raw&(1<<(bit+16)) == 0 {
		return def
	}
	return raw&(1<<bit) != 0
}

// Bytes returns a complex payload.
func (r *OPT) Bytes(id uint16) []byte {
	if p, ok := r.Property(id); ok && p.Complex {
		return p.Data
	}
	return nil
}

// Blip returns the image a blip property references.
func (r *OPT) Blip(id uint16) (*BSE, bool) {
	if p, ok := r.Property(id); ok && p.bse != nil {
		return p.bse, true
	}
	return nil, false
}
