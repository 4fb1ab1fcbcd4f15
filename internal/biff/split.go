package biff

import (
	"errors"
	"fmt"
	"io"
)

// ErrSplit marks an invariant violation in record splitting. It signals a
// programming defect, never malformed input.
var ErrSplit = errors.New("biff: record split invariant violated")

// Break describes one physical record scheduled by a Splitter.
type Break struct {
	Tag       uint16    // tag written in the record header
	Offset    int       // logical offset of the first payload byte
	Size      int       // logical bytes carried by this record
	Continued bool      // true for continuation records
	Extra     []byte    // bytes written before the logical payload
	Trailer   []*Record // foreign records emitted right after this record
}

// PhysicalSize returns header plus payload size of the scheduled record.
func (b *Break) PhysicalSize() int {
	return HeaderSize + len(b.Extra) + b.Size
}

// Splitter computes where a logical byte stream is cut into physical records.
//
// Callers visit their content in document order and report every byte span
// with Add. Whenever the running offset crosses the payload limit a
// continuation record is scheduled and its header overhead is accounted in
// RealSize. Interleave closes the current record and queues foreign records
// that must appear between two chunks of the logical stream.
type Splitter struct {
	firstTag    uint16
	continueTag uint16
	maxPayload  int
	extra       []byte

	breaks   []Break
	offset   int
	realSize int
	restart  bool
}

// NewSplitter creates a splitter whose first record uses firstTag and whose
// overflow records use continueTag.
func NewSplitter(firstTag, continueTag uint16) *Splitter {
	return &Splitter{
		firstTag:    firstTag,
		continueTag: continueTag,
		maxPayload:  MaxRecordPayload,
	}
}

// SetMaxPayload overrides the per-record payload limit.
func (s *Splitter) SetMaxPayload(n int) error {
	if n <= len(s.extra) {
		return fmt.Errorf("%w: payload limit %d leaves no room after %d extra bytes", ErrSplit, n, len(s.extra))
	}
	s.maxPayload = n
	return nil
}

// SetContinueExtra sets bytes prepended to every continuation payload, such
// as the discriminator continuations of client data carry.
func (s *Splitter) SetContinueExtra(extra []byte) error {
	if len(extra) >= s.maxPayload {
		return fmt.Errorf("%w: %d extra bytes exceed payload limit %d", ErrSplit, len(extra), s.maxPayload)
	}
	s.extra = append([]byte(nil), extra...)
	return nil
}

// Offset returns the logical number of bytes added so far.
func (s *Splitter) Offset() int {
	return s.offset
}

// RealSize returns the physical size of everything scheduled so far,
// headers and interleaved records included.
func (s *Splitter) RealSize() int {
	return s.realSize
}

// Breaks returns the scheduled physical records in stream order.
func (s *Splitter) Breaks() []Break {
	return s.breaks
}

// Continuations returns the number of continuation records scheduled.
func (s *Splitter) Continuations() int {
	n := 0
	for i := range s.breaks {
		if s.breaks[i].Continued {
			n++
		}
	}
	return n
}

func (s *Splitter) capacity(b *Break) int {
	return s.maxPayload - len(b.Extra)
}

func (s *Splitter) open(tag uint16, continued bool) *Break {
	b := Break{Tag: tag, Offset: s.offset, Continued: continued}
	if continued {
		b.Extra = s.extra
	}
	s.breaks = append(s.breaks, b)
	s.realSize += HeaderSize + len(b.Extra)
	return &s.breaks[len(s.breaks)-1]
}

// Add accounts n logical bytes starting at the current offset.
func (s *Splitter) Add(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: negative span %d", ErrSplit, n)
	}
	for n > 0 {
		var cur *Break
		if len(s.breaks) > 0 {
			cur = &s.breaks[len(s.breaks)-1]
		}
		switch {
		case cur == nil || s.restart:
			cur = s.open(s.firstTag, false)
			s.restart = false
		case cur.Size == s.capacity(cur):
			cur = s.open(s.continueTag, true)
		}

		room := s.capacity(cur) - cur.Size
		if room <= 0 {
			return fmt.Errorf("%w: record at logical offset %d overruns %d bytes", ErrSplit, cur.Offset, s.maxPayload)
		}
		k := min(room, n)
		cur.Size += k
		s.offset += k
		s.realSize += k
		n -= k
	}
	return nil
}

// Interleave queues records after the current physical record. The next
// logical byte opens a fresh record with the first tag.
func (s *Splitter) Interleave(recs ...*Record) error {
	if len(recs) == 0 {
		return nil
	}
	if len(s.breaks) == 0 {
		return fmt.Errorf("%w: interleaved record before any payload", ErrSplit)
	}
	cur := &s.breaks[len(s.breaks)-1]
	for _, r := range recs {
		cur.Trailer = append(cur.Trailer, r)
		s.realSize += r.Size()
	}
	s.restart = true
	return nil
}

// SplitWriter writes a logical stream as the physical records a Splitter
// scheduled. Writes may cross record boundaries at any byte.
type SplitWriter struct {
	w       io.Writer
	breaks  []Break
	idx     int
	offset  int
	started bool
	written int64
}

// NewSplitWriter creates a writer following the breaks of s.
func NewSplitWriter(w io.Writer, s *Splitter) *SplitWriter {
	return &SplitWriter{w: w, breaks: s.Breaks()}
}

// Written returns the number of physical bytes written.
func (sw *SplitWriter) Written() int64 {
	return sw.written
}

// Offset returns the logical number of bytes written.
func (sw *SplitWriter) Offset() int {
	return sw.offset
}

func (sw *SplitWriter) raw(p []byte) error {
	n, err := sw.w.Write(p)
	sw.written += int64(n)
	return err
}

// Write implements io.Writer.
func (sw *SplitWriter) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		if sw.idx >= len(sw.breaks) {
			return total, fmt.Errorf("%w: write past the last scheduled record at offset %d", ErrSplit, sw.offset)
		}
		b := &sw.breaks[sw.idx]
		if !sw.started {
			if b.Offset != sw.offset {
				return total, fmt.Errorf("%w: record scheduled at %d, writer at %d", ErrSplit, b.Offset, sw.offset)
			}
			var hdr [HeaderSize]byte
			PutHeader(hdr[:], b.Tag, len(b.Extra)+b.Size)
			if err := sw.raw(hdr[:]); err != nil {
				return total, err
			}
			if len(b.Extra) > 0 {
				if err := sw.raw(b.Extra); err != nil {
					return total, err
				}
			}
			sw.started = true
		}

		end := b.Offset + b.Size
		k := min(len(p), end-sw.offset)
		if err := sw.raw(p[:k]); err != nil {
			return total, err
		}
		sw.offset += k
		total += k
		p = p[k:]

		if sw.offset == end {
			for _, r := range b.Trailer {
				if _, err := r.WriteTo(rawWriter{sw}); err != nil {
					return total, err
				}
			}
			sw.idx++
			sw.started = false
		}
	}
	return total, nil
}

// rawWriter lets trailers bypass the split bookkeeping.
type rawWriter struct{ sw *SplitWriter }

func (r rawWriter) Write(p []byte) (int, error) {
	if err := r.sw.raw(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close verifies that every scheduled record was written completely.
func (sw *SplitWriter) Close() error {
	if sw.idx != len(sw.breaks) {
		return fmt.Errorf("%w: %d of %d records written", ErrSplit, sw.idx, len(sw.breaks))
	}
	return nil
}
