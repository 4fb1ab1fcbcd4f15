package escher

import (
	"encoding/binary"
	"io"

	"github.com/roboco-io/xlsdraw/internal/biff"
)

// OBJ sub-record layout: ftCmo(2) cb(2) ot(2) id(2).
const (
	objFtCmo    = 0x15
	objIDOffset = 6
)

// ClientData is a ClientData or ClientTextbox record. The workbook records
// that follow it in the sheet stream (OBJ, TXO and the TXO continuations)
// belong to it and are written right after the drawing chunk ending with it.
type ClientData struct {
	DataRecord
	client []*biff.Record
}

// NewClientData builds an empty ClientData record.
func NewClientData() *ClientData {
	return &ClientData{DataRecord: *NewDataRecord(TagClientData, 0, 0, nil)}
}

// NewClientTextbox builds an empty ClientTextbox record.
func NewClientTextbox() *ClientData {
	return &ClientData{DataRecord: *NewDataRecord(TagClientTextbox, 0, 0, nil)}
}

// ClientRecords returns the attached workbook records.
func (r *ClientData) ClientRecords() []*biff.Record {
	return r.client
}

// AttachClientRecord appends a workbook record that belongs to r.
func (r *ClientData) AttachClientRecord(rec *biff.Record) {
	r.client = append(r.client, rec)
	if rec.Tag == biff.TagObj {
		r.registerObj()
	}
}

// Obj returns the attached OBJ record, or nil.
func (r *ClientData) Obj() *biff.Record {
	for _, rec := range r.client {
		if rec.Tag == biff.TagObj {
			return rec
		}
	}
	return nil
}

// ObjID returns the object id of the attached OBJ record.
func (r *ClientData) ObjID() (uint16, bool) {
	obj := r.Obj()
	if obj == nil || len(obj.Data) < objIDOffset+2 {
		return 0, false
	}
	if binary.LittleEndian.Uint16(obj.Data) != objFtCmo {
		return 0, false
	}
	return binary.LittleEndian.Uint16(obj.Data[objIDOffset:]), true
}

// ObjType returns the object type of the attached OBJ record.
func (r *ClientData) ObjType() (uint16, bool) {
	obj := r.Obj()
	if obj == nil || len(obj.Data) < objIDOffset {
		return 0, false
	}
	return binary.LittleEndian.Uint16(obj.Data[4:]), true
}

func (r *ClientData) setObjID(id uint16) {
	if obj := r.Obj(); obj != nil && len(obj.Data) >= objIDOffset+2 {
		binary.LittleEndian.PutUint16(obj.Data[objIDOffset:], id)
	}
}

func (r *ClientData) registerObj() {
	if r.drawing == nil {
		return
	}
	if id, ok := r.ObjID(); ok {
		r.drawing.objs[id] = r
	}
}

// Attach makes r the target of the client records that follow.
func (r *ClientData) Attach(g *GroupCache, d *DrawingCache) error {
	if err := r.recordBase.Attach(g, d); err != nil {
		return err
	}
	if d != nil {
		d.lastClient = r
		r.registerObj()
	}
	return nil
}

// Destroy removes r from the object index.
func (r *ClientData) Destroy() {
	if d := r.drawing; d != nil {
		if id, ok := r.ObjID(); ok && d.objs[id] == r {
			delete(d.objs, id)
		}
		if d.lastClient == r {
			d.lastClient = nil
		}
	}
	r.recordBase.Destroy()
}

// Prepare reports the record and schedules its client records after it.
func (r *ClientData) Prepare(s *biff.Splitter) error {
	if err := r.DataRecord.Prepare(s); err != nil {
		return err
	}
	return s.Interleave(r.client...)
}

// Save writes the record. Client records are emitted by the split writer.
func (r *ClientData) Save(w io.Writer) error {
	return r.DataRecord.Save(w)
}

// Copy clones the record and its client records. The OBJ record gets the next
// free object id of the destination drawing.
func (r *ClientData) Copy(ctx *CopyContext) (Record, error) {
	c := &ClientData{DataRecord: r.clone(ctx)}
	for _, rec := range r.client {
		c.client = append(c.client, rec.Clone())
	}
	if old, ok := r.ObjID(); ok && ctx.DstDrawing != nil {
		id := ctx.DstDrawing.MaxObjID() + 1
		c.setObjID(id)
		ctx.objIDs[old] = id
	}
	ctx.remember(r, c)
	if err := c.Attach(ctx.DstGroup, ctx.DstDrawing); err != nil {
		return nil, err
	}
	return c, nil
}

// ConnectorRule binds a connector shape to the shapes it connects.
//
// Payload: ruid(4) spidA(4) spidB(4) spidC(4) cptiA(4) cptiB(4).
type ConnectorRule struct {
	DataRecord
}

// NewConnectorRule builds a rule connecting shapes a and b with connector c.
func NewConnectorRule(ruid, a, b, c uint32) *ConnectorRule {
	r := &ConnectorRule{DataRecord: *NewDataRecord(TagConnectorRule, 0, 1, make([]byte, 24))}
	r.putU32(0, ruid)
	r.putU32(4, a)
	r.putU32(8, b)
	r.putU32(12, c)
	return r
}

// RuleID returns the rule id.
func (r *ConnectorRule) RuleID() uint32 { return r.u32(0) }

// Shapes returns the start shape, end shape and connector shape ids.
func (r *ConnectorRule) Shapes() (a, b, c uint32) {
	return r.u32(4), r.u32(8), r.u32(12)
}

func (r *ConnectorRule) afterLoad() error {
	return r.requireLen(24)
}

func (r *ConnectorRule) remap(ids map[uint32]uint32) {
	for _, off := range []int{4, 8, 12} {
		if id, ok := ids[r.u32(off)]; ok {
			r.putU32(off, id)
		}
	}
}

// Copy clones the rule. Shape ids are remapped by CopyContext.Finish.
func (r *ConnectorRule) Copy(ctx *CopyContext) (Record, error) {
	c := &ConnectorRule{DataRecord: r.clone(ctx)}
	ctx.rules = append(ctx.rules, c)
	ctx.remember(r, c)
	if err := c.Attach(ctx.DstGroup, ctx.DstDrawing); err != nil {
		return nil, err
	}
	return c, nil
}
