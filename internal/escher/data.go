package escher

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/roboco-io/xlsdraw/internal/biff"
)

// DataRecord is a leaf record holding a raw payload.
type DataRecord struct {
	recordBase
	data []byte
}

// 선언 길이를 그대로 믿고 할당하지 않음
const maxPrealloc = 1 << 16

func newDataRecord(h Header) DataRecord {
	return DataRecord{
		recordBase: recordBase{hdr: h},
		data:       make([]byte, 0, min(h.Length, maxPrealloc)),
	}
}

// NewDataRecord builds a fully loaded leaf record.
func NewDataRecord(tag, instance uint16, version uint8, data []byte) *DataRecord {
	d := &DataRecord{
		recordBase: recordBase{hdr: Header{Version: version, Instance: instance & 0x0FFF, Tag: tag, Length: len(data)}},
		data:       append([]byte(nil), data...),
	}
	d.loaded = len(data)
	return d
}

// Data returns the payload. The slice must not be resized by callers.
func (d *DataRecord) Data() []byte {
	return d.data
}

// Load appends the missing payload bytes available in src.
func (d *DataRecord) Load(src *Source) error {
	if err := d.alive("load"); err != nil {
		return err
	}
	want := d.hdr.Length - d.loaded
	if want < 0 {
		return newInvalidDataError("%s loaded %d of %d bytes", TagName(d.hdr.Tag), d.loaded, d.hdr.Length)
	}
	chunk := src.Next(want)
	d.data = append(d.data, chunk...)
	d.loaded += len(chunk)
	return nil
}

// TotalSize returns header plus payload size.
func (d *DataRecord) TotalSize() int {
	return HeaderSize + len(d.data)
}

// Prepare reports header and payload to s.
func (d *DataRecord) Prepare(s *biff.Splitter) error {
	if !d.IsFullyLoaded() {
		return newInternalError("prepare %s: %d of %d bytes loaded", TagName(d.hdr.Tag), d.loaded, d.hdr.Length)
	}
	return s.Add(d.TotalSize())
}

// Save writes header and payload.
func (d *DataRecord) Save(w io.Writer) error {
	if err := d.alive("save"); err != nil {
		return err
	}
	if !d.IsFullyLoaded() {
		return newInternalError("save %s: %d of %d bytes loaded", TagName(d.hdr.Tag), d.loaded, d.hdr.Length)
	}
	if err := d.writeHeader(w, len(d.data)); err != nil {
		return err
	}
	_, err := w.Write(d.data)
	return err
}

// Compare orders by header and then byte-for-byte on the payload.
func (d *DataRecord) Compare(other Record) int {
	if c := d.compareHeader(other.base()); c != 0 {
		return c
	}
	if o, ok := other.(interface{ Data() []byte }); ok {
		return bytes.Compare(d.data, o.Data())
	}
	return 0
}

// Copy clones a generic leaf record.
func (d *DataRecord) Copy(ctx *CopyContext) (Record, error) {
	c := d.clone(ctx)
	ctx.remember(d, &c)
	if err := c.Attach(ctx.DstGroup, ctx.DstDrawing); err != nil {
		return nil, err
	}
	return &c, nil
}

func (d *DataRecord) clone(ctx *CopyContext) DataRecord {
	return DataRecord{
		recordBase: d.cloneBase(ctx),
		data:       append([]byte(nil), d.data...),
	}
}

// setData replaces the payload and propagates the size delta to ancestors.
func (d *DataRecord) setData(b []byte) {
	delta := len(b) - len(d.data)
	d.data = b
	d.resize(delta)
}

func (d *DataRecord) u8(off int) uint8 {
	if off >= len(d.data) {
		return 0
	}
	return d.data[off]
}

func (d *DataRecord) u16(off int) uint16 {
	if off+2 > len(d.data) {
		return 0
	}
	return binary.LittleEndian.Uint16(d.data[off:])
}

func (d *DataRecord) u32(off int) uint32 {
	if off+4 > len(d.data) {
		return 0
	}
	return binary.LittleEndian.Uint32(d.data[off:])
}

func (d *DataRecord) i32(off int) int32 {
	return int32(d.u32(off))
}

func (d *DataRecord) putU16(off int, v uint16) {
	binary.LittleEndian.PutUint16(d.data[off:], v)
}

func (d *DataRecord) putU32(off int, v uint32) {
	binary.LittleEndian.PutUint32(d.data[off:], v)
}

// requireLen fails when a fully loaded payload is shorter than n.
func (d *DataRecord) requireLen(n int) error {
	if len(d.data) < n {
		return newInvalidDataError("%s payload has %d bytes, need %d", TagName(d.hdr.Tag), len(d.data), n)
	}
	return nil
}
