package biff

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i * 7)
	}
	return b
}

func reassemble(t *testing.T, stream []byte) ([]*Record, []byte) {
	t.Helper()
	recs, err := NewRecordReader(stream).ReadAll()
	require.NoError(t, err)
	var out []byte
	for _, r := range recs {
		out = append(out, r.Data...)
	}
	return recs, out
}

func TestSplitter_TwoContinuations(t *testing.T) {
	require := require.New(t)

	data := payload(2*MaxRecordPayload + 5)
	s := NewSplitter(TagMsoDrawingGroup, TagContinue)
	require.NoError(s.Add(len(data)))

	require.Equal(2, s.Continuations())
	breaks := s.Breaks()
	require.Len(breaks, 3)
	require.Equal(MaxRecordPayload, breaks[0].Size)
	require.Equal(MaxRecordPayload, breaks[1].Size)
	require.Equal(5, breaks[2].Size)
	require.Equal(len(data)+3*HeaderSize, s.RealSize())

	var buf bytes.Buffer
	sw := NewSplitWriter(&buf, s)
	_, err := sw.Write(data)
	require.NoError(err)
	require.NoError(sw.Close())
	require.Equal(int64(s.RealSize()), sw.Written())

	recs, joined := reassemble(t, buf.Bytes())
	require.Equal(TagMsoDrawingGroup, recs[0].Tag)
	require.Equal(TagContinue, recs[1].Tag)
	require.Equal(TagContinue, recs[2].Tag)
	require.Equal(data, joined)
}

func TestSplitter_ExactBoundaryNoEmptyContinuation(t *testing.T) {
	require := require.New(t)

	s := NewSplitter(TagMsoDrawing, TagContinue)
	require.NoError(s.Add(MaxRecordPayload))
	require.Equal(0, s.Continuations())
	require.Len(s.Breaks(), 1)

	require.NoError(s.Add(0))
	require.Len(s.Breaks(), 1)

	require.NoError(s.Add(1))
	require.Equal(1, s.Continuations())
}

func TestSplitter_ManySmallSpans(t *testing.T) {
	require := require.New(t)

	data := payload(3*MaxRecordPayload + 100)
	s := NewSplitter(TagMsoDrawing, TagContinue)
	for off := 0; off < len(data); off += 8 {
		require.NoError(s.Add(min(8, len(data)-off)))
	}

	var buf bytes.Buffer
	sw := NewSplitWriter(&buf, s)
	// uneven write sizes cross the boundaries mid-span
	for off := 0; off < len(data); off += 13 {
		_, err := sw.Write(data[off:min(off+13, len(data))])
		require.NoError(err)
	}
	require.NoError(sw.Close())

	_, joined := reassemble(t, buf.Bytes())
	require.Equal(data, joined)
}

func TestSplitter_ContinueExtra(t *testing.T) {
	require := require.New(t)

	s := NewSplitter(TagMsoDrawing, TagContinue)
	require.NoError(s.SetMaxPayload(10))
	require.NoError(s.SetContinueExtra([]byte{0xAA}))
	require.NoError(s.Add(25))

	breaks := s.Breaks()
	require.Len(breaks, 3)
	require.Equal(10, breaks[0].Size)
	require.Equal(9, breaks[1].Size)
	require.Equal(6, breaks[2].Size)
	require.Equal(25+3*HeaderSize+2, s.RealSize())

	var buf bytes.Buffer
	sw := NewSplitWriter(&buf, s)
	_, err := sw.Write(payload(25))
	require.NoError(err)
	require.NoError(sw.Close())

	recs, err := NewRecordReader(buf.Bytes()).ReadAll()
	require.NoError(err)
	require.Len(recs, 3)
	for _, r := range recs[1:] {
		require.Equal(byte(0xAA), r.Data[0])
	}
}

func TestSplitter_Interleave(t *testing.T) {
	require := require.New(t)

	obj := &Record{Tag: TagObj, Data: []byte{1, 2, 3}}
	s := NewSplitter(TagMsoDrawing, TagContinue)
	require.NoError(s.Add(20))
	require.NoError(s.Interleave(obj))
	require.NoError(s.Add(4))

	var buf bytes.Buffer
	sw := NewSplitWriter(&buf, s)
	_, err := sw.Write(payload(24))
	require.NoError(err)
	require.NoError(sw.Close())

	recs, err := NewRecordReader(buf.Bytes()).ReadAll()
	require.NoError(err)
	require.Len(recs, 3)
	require.Equal(TagMsoDrawing, recs[0].Tag)
	require.Equal(TagObj, recs[1].Tag)
	require.Equal(TagMsoDrawing, recs[2].Tag)
	require.Len(recs[2].Data, 4)
	require.Equal(s.RealSize(), buf.Len())
}

func TestSplitWriter_WritePastSchedule(t *testing.T) {
	s := NewSplitter(TagMsoDrawing, TagContinue)
	require.NoError(t, s.Add(4))

	sw := NewSplitWriter(&bytes.Buffer{}, s)
	_, err := sw.Write(payload(5))
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrSplit))
}

func TestSplitWriter_ShortWrite(t *testing.T) {
	s := NewSplitter(TagMsoDrawing, TagContinue)
	require.NoError(t, s.Add(4))

	sw := NewSplitWriter(&bytes.Buffer{}, s)
	_, err := sw.Write(payload(3))
	require.NoError(t, err)
	require.ErrorIs(t, sw.Close(), ErrSplit)
}

func TestRecordReader(t *testing.T) {
	data := []byte{0x5D, 0x00, 0x02, 0x00, 0xAB, 0xCD}

	rec, err := NewRecordReader(data).Read()
	require.NoError(t, err)
	require.Equal(t, TagObj, rec.Tag)
	require.Equal(t, []byte{0xAB, 0xCD}, rec.Data)

	_, err = NewRecordReader(data[:5]).Read()
	var berr *Error
	require.ErrorAs(t, err, &berr)
}

func TestTagName(t *testing.T) {
	tests := []struct {
		tag      uint16
		expected string
	}{
		{TagMsoDrawingGroup, "MSODRAWINGGROUP"},
		{TagContinue, "CONTINUE"},
		{0xFFFF, "UNKNOWN(0xFFFF)"},
	}

	for _, tt := range tests {
		if got := TagName(tt.tag); got != tt.expected {
			t.Errorf("TagName(%d) = %s, expected %s", tt.tag, got, tt.expected)
		}
	}
}
