package biff

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Record is a single physical BIFF record.
type Record struct {
	Tag  uint16 // 레코드 종류
	Data []byte // 레코드 데이터
}

// Size returns the number of bytes the record occupies in the stream.
func (r *Record) Size() int {
	return HeaderSize + len(r.Data)
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	return &Record{Tag: r.Tag, Data: append([]byte(nil), r.Data...)}
}

// WriteTo writes header and payload to w.
func (r *Record) WriteTo(w io.Writer) (int64, error) {
	if len(r.Data) > MaxRecordPayload {
		return 0, fmt.Errorf("record %s payload too large: %d bytes", TagName(r.Tag), len(r.Data))
	}
	var hdr [HeaderSize]byte
	PutHeader(hdr[:], r.Tag, len(r.Data))
	n, err := w.Write(hdr[:])
	if err != nil {
		return int64(n), err
	}
	m, err := w.Write(r.Data)
	return int64(n + m), err
}

// Header is the generic 4-byte record header.
// 구조: [Tag:16비트][Length:16비트]
type Header uint32

// ParseHeader parses a 4-byte generic header.
func ParseHeader(data []byte) Header {
	return Header(binary.LittleEndian.Uint32(data))
}

// Tag returns the record tag.
func (h Header) Tag() uint16 {
	return uint16(h & 0xFFFF)
}

// Length returns the payload length.
func (h Header) Length() int {
	return int(h >> 16)
}

// PutHeader encodes a generic header into dst.
func PutHeader(dst []byte, tag uint16, length int) {
	binary.LittleEndian.PutUint16(dst[0:2], tag)
	binary.LittleEndian.PutUint16(dst[2:4], uint16(length))
}

// Error reports a malformed generic record.
type Error struct {
	Offset  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("biff: %s at offset %d", e.Message, e.Offset)
}

// RecordReader reads records from a workbook stream.
type RecordReader struct {
	data   []byte
	offset int
}

// NewRecordReader creates a new record reader from raw stream data.
func NewRecordReader(data []byte) *RecordReader {
	return &RecordReader{
		data:   data,
		offset: 0,
	}
}

// Offset returns the stream offset of the next record.
func (r *RecordReader) Offset() int {
	return r.offset
}

// Read reads the next record. The payload aliases the stream data.
func (r *RecordReader) Read() (*Record, error) {
	if r.offset >= len(r.data) {
		return nil, io.EOF
	}

	if r.offset+HeaderSize > len(r.data) {
		return nil, &Error{Offset: r.offset, Message: "incomplete record header"}
	}

	header := ParseHeader(r.data[r.offset : r.offset+HeaderSize])
	start := r.offset
	r.offset += HeaderSize

	size := header.Length()
	if size > MaxRecordPayload {
		return nil, &Error{Offset: start, Message: fmt.Sprintf("record %s declares %d bytes (max %d)",
			TagName(header.Tag()), size, MaxRecordPayload)}
	}
	if r.offset+size > len(r.data) {
		return nil, &Error{Offset: start, Message: fmt.Sprintf("incomplete record data: need %d bytes, have %d",
			size, len(r.data)-r.offset)}
	}

	rec := &Record{
		Tag:  header.Tag(),
		Data: r.data[r.offset : r.offset+size],
	}
	r.offset += size

	return rec, nil
}

// ReadAll reads all records from the stream.
func (r *RecordReader) ReadAll() ([]*Record, error) {
	var records []*Record
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
	return records, nil
}
