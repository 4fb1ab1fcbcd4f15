package escher

import "github.com/roboco-io/xlsdraw/internal/biff"

// Decoder reads one root record from a sequence of physical record payloads.
// A payload may end anywhere, including inside a record header.
type Decoder struct {
	group   *GroupCache
	drawing *DrawingCache

	root    Record
	pending []byte
}

// NewDecoder creates a decoder attaching records to g and d.
func NewDecoder(g *GroupCache, d *DrawingCache) *Decoder {
	return &Decoder{group: g, drawing: d}
}

// Root returns the decoded root record, or nil before its header is read.
func (dec *Decoder) Root() Record {
	return dec.root
}

// Done reports whether the root record is complete.
func (dec *Decoder) Done() bool {
	return dec.root != nil && dec.root.IsFullyLoaded()
}

// GroupCache returns the workbook cache records are attached to.
func (dec *Decoder) GroupCache() *GroupCache {
	return dec.group
}

// DrawingCache returns the sheet cache records are attached to.
func (dec *Decoder) DrawingCache() *DrawingCache {
	return dec.drawing
}

// Feed consumes the payload of one physical record.
func (dec *Decoder) Feed(payload []byte) error {
	src := NewSource(payload)
	for src.Len() > 0 {
		if dec.root == nil {
			dec.pending = append(dec.pending, src.Next(HeaderSize-len(dec.pending))...)
			if len(dec.pending) < HeaderSize {
				return nil
			}
			h, err := ParseHeader(dec.pending)
			dec.pending = nil
			if err != nil {
				return err
			}
			root := newRecord(h)
			if err := root.Attach(dec.group, dec.drawing); err != nil {
				return err
			}
			dec.root = root
			if h.Length == 0 {
				if err := finishLoad(root); err != nil {
					return err
				}
			}
			continue
		}

		if dec.root.IsFullyLoaded() {
			return newInvalidDataError("%d bytes after the %s record", src.Len(), TagName(dec.root.Tag()))
		}
		if err := dec.root.Load(src); err != nil {
			return err
		}
		if dec.root.IsFullyLoaded() {
			if err := finishLoad(dec.root); err != nil {
				return err
			}
		}
	}
	return nil
}

// AttachClientRecord hands an OBJ, TXO or TXO continuation record to the last
// ClientData or ClientTextbox record decoded.
func (dec *Decoder) AttachClientRecord(rec *biff.Record) error {
	if dec.drawing == nil || dec.drawing.lastClient == nil {
		return newInvalidDataError("%s record without a preceding client data record", biff.TagName(rec.Tag))
	}
	dec.drawing.lastClient.AttachClientRecord(rec)
	return nil
}
