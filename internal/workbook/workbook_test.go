package workbook

import (
	"bytes"
	"encoding/binary"
	"log/slog"
	"testing"

	"github.com/roboco-io/xlsdraw/internal/biff"
	"github.com/roboco-io/xlsdraw/internal/escher"
	"github.com/roboco-io/xlsdraw/internal/ir"
	"github.com/stretchr/testify/require"
)

var testPNG = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR workbook png")

func record(tag uint16, data []byte) []byte {
	b := make([]byte, biff.HeaderSize+len(data))
	biff.PutHeader(b, tag, len(data))
	copy(b[biff.HeaderSize:], data)
	return b
}

func bofRecord(dt uint16) []byte {
	data := make([]byte, 16)
	binary.LittleEndian.PutUint16(data, 0x0600)
	binary.LittleEndian.PutUint16(data[2:], dt)
	return record(biff.TagBOF, data)
}

func eofRecord() []byte {
	return record(biff.TagEOF, nil)
}

func boundSheetRecord(offset int, name string) []byte {
	data := make([]byte, 8, 8+len(name))
	binary.LittleEndian.PutUint32(data, uint32(offset))
	data[6] = byte(len(name))
	return record(biff.TagBoundSheet, append(data, name...))
}

type testSheet struct {
	name string
	dt   uint16
	body []byte
}

// buildStream lays out a globals substream followed by the sheets, with the
// BOUNDSHEET offsets pointing at each sheet BOF.
func buildStream(globals []byte, sheets ...testSheet) []byte {
	size := len(bofRecord(biff.SubstreamGlobals)) + len(globals) + len(eofRecord())
	for _, s := range sheets {
		size += len(boundSheetRecord(0, s.name))
	}

	var head, tail bytes.Buffer
	head.Write(bofRecord(biff.SubstreamGlobals))
	for _, s := range sheets {
		head.Write(boundSheetRecord(size+tail.Len(), s.name))
		tail.Write(bofRecord(s.dt))
		tail.Write(s.body)
		tail.Write(eofRecord())
	}
	head.Write(globals)
	head.Write(eofRecord())
	return append(head.Bytes(), tail.Bytes()...)
}

func saved(t *testing.T, fn func(w *bytes.Buffer) error) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, fn(&buf))
	return buf.Bytes()
}

// testDrawings builds a drawing group with one picture and one text box.
func testDrawings(t *testing.T) (group, drawing []byte) {
	t.Helper()
	require := require.New(t)

	g, err := escher.NewGroup()
	require.NoError(err)
	d, err := g.NewDrawing(false)
	require.NoError(err)
	_, err = d.AddPicture(testPNG, escher.BlipPNG, escher.Anchor{Col1: 1, Row1: 2, Col2: 4, Row2: 8}, "Logo")
	require.NoError(err)

	id, err := d.Cache.NewShapeID(g.Cache)
	require.NoError(err)
	box := escher.NewContainer(escher.TagSpContainer, 0)
	require.NoError(box.AddChild(escher.NewSp(escher.ShapeTypeTextBox, id, escher.ShapeHaveAnchor|escher.ShapeHaveSpt)))
	anchor, err := escher.NewClientAnchor(escher.AnchorMoveAndSize, escher.Anchor{Row1: 10, Col2: 2, Row2: 12})
	require.NoError(err)
	require.NoError(box.AddChild(anchor))
	text := escher.NewClientTextbox()
	text.AttachClientRecord(&biff.Record{Tag: biff.TagTxo, Data: make([]byte, 18)})
	text.AttachClientRecord(&biff.Record{Tag: biff.TagContinue, Data: []byte{0, 'h', 'i'}})
	text.AttachClientRecord(&biff.Record{Tag: biff.TagContinue, Data: make([]byte, 16)})
	require.NoError(box.AddChild(text))
	require.NoError(d.Patriarch().AddChild(box))

	group = saved(t, func(w *bytes.Buffer) error { return g.Save(w) })
	drawing = saved(t, func(w *bytes.Buffer) error { return d.Save(w) })
	return group, drawing
}

func TestParse_RoundTrip(t *testing.T) {
	require := require.New(t)
	group, drawing := testDrawings(t)

	unrelated := record(0x0200, make([]byte, 14))
	stream := buildStream(group,
		testSheet{name: "Data", dt: biff.SubstreamWorksheet, body: unrelated},
		testSheet{name: "Pictures", dt: biff.SubstreamWorksheet, body: cat(unrelated, drawing)},
	)

	wb, err := Parse(stream, Options{Logger: slog.New(slog.DiscardHandler)})
	require.NoError(err)
	defer wb.Close()

	require.Len(wb.Sheets, 2)
	require.Nil(wb.Sheets[0].Drawing)
	s, ok := wb.Sheet("Pictures")
	require.True(ok)
	require.Equal(SheetWorksheet, s.Kind)
	require.NotNil(s.Drawing)
	require.Len(s.Drawing.Shapes(), 2)
	require.Equal(drawing, s.Original())

	logo, err := s.Drawing.Find("@Logo")
	require.NoError(err)
	cd, ok := escher.FindFirstChildOfType[*escher.ClientData](logo)
	require.True(ok)
	objID, ok := cd.ObjID()
	require.True(ok)
	require.Equal(uint16(1), objID)

	box := s.Drawing.Shapes()[1]
	text, ok := escher.FindFirstChildOfType[*escher.ClientData](box)
	require.True(ok)
	require.Len(text.ClientRecords(), 3)
	require.Equal(biff.TagTxo, text.ClientRecords()[0].Tag)

	var out bytes.Buffer
	require.NoError(wb.SaveDrawings(&out))
	require.Equal(cat(group, drawing), out.Bytes())
	require.Equal(out.Bytes(), wb.Original())
}

func cat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestParse_NoDrawings(t *testing.T) {
	wb, err := Parse(buildStream(nil, testSheet{name: "Sheet1", dt: biff.SubstreamWorksheet}), DefaultOptions())
	require.NoError(t, err)
	require.Nil(t, wb.Group)
	require.Empty(t, wb.Drawings())

	var out bytes.Buffer
	require.NoError(t, wb.SaveDrawings(&out))
	require.Zero(t, out.Len())
}

func TestParse_EmbeddedChart(t *testing.T) {
	require := require.New(t)
	body := cat(bofRecord(biff.SubstreamChart), eofRecord())

	wb, err := Parse(buildStream(nil, testSheet{name: "Sales", dt: biff.SubstreamWorksheet, body: body}), DefaultOptions())
	require.NoError(err)
	require.Len(wb.Sheets, 2)

	chart := wb.Sheets[1]
	require.Equal(SheetChart, chart.Kind)
	require.Empty(chart.Name)
	require.Same(wb.Sheets[0], chart.Parent)
	require.Contains(chart.Title(), "Sales (chart @")
}

func TestParse_DrawingWithoutGroup(t *testing.T) {
	_, drawing := testDrawings(t)
	_, err := Parse(buildStream(nil, testSheet{name: "S", dt: biff.SubstreamWorksheet, body: drawing}), DefaultOptions())
	require.Error(t, err)
}

func TestParse_BrokenDrawing(t *testing.T) {
	group, drawing := testDrawings(t)
	recs, err := biff.NewRecordReader(drawing).ReadAll()
	require.NoError(t, err)
	truncated := record(biff.TagMsoDrawing, recs[0].Data[:20])
	stream := buildStream(group,
		testSheet{name: "Broken", dt: biff.SubstreamWorksheet, body: truncated},
		testSheet{name: "Good", dt: biff.SubstreamWorksheet, body: drawing},
	)

	_, err = Parse(stream, DefaultOptions())
	var ide *escher.InvalidDataError
	require.ErrorAs(t, err, &ide)

	wb, err := Parse(stream, Options{SkipBrokenDrawings: true})
	require.NoError(t, err)
	broken, _ := wb.Sheet("Broken")
	require.Nil(t, broken.Drawing)
	good, _ := wb.Sheet("Good")
	require.NotNil(t, good.Drawing)
	require.Len(t, good.Drawing.Shapes(), 2)
}

func TestParse_MalformedStream(t *testing.T) {
	tests := []struct {
		name   string
		stream []byte
	}{
		{"missing EOF", bofRecord(biff.SubstreamGlobals)},
		{"EOF without BOF", eofRecord()},
		{"short BOF", record(biff.TagBOF, []byte{0, 6})},
		{"truncated record", record(biff.TagBOF, make([]byte, 16))[:10]},
		{"drawing group in sheet", cat(bofRecord(biff.SubstreamWorksheet), record(biff.TagMsoDrawingGroup, []byte{1}), eofRecord())},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.stream, DefaultOptions())
			require.Error(t, err)
		})
	}
}

func TestBoundSheet_Names(t *testing.T) {
	bs, err := parseBoundSheet(boundSheetRecord(1234, "Caf\xe9")[biff.HeaderSize:])
	require.NoError(t, err)
	require.Equal(t, 1234, bs.offset)
	require.Equal(t, "Café", bs.name)

	data := []byte{0, 0, 0, 0, 0, 0, 2, 1, 0xDC, 0xC2, 0xB8, 0xD2}
	bs, err = parseBoundSheet(data)
	require.NoError(t, err)
	require.Equal(t, "시트", bs.name)

	_, err = parseBoundSheet(data[:10])
	require.Error(t, err)
}

func TestPalette(t *testing.T) {
	require := require.New(t)
	pal := record(biff.TagPalette, []byte{1, 0, 0x12, 0x34, 0x56, 0})

	wb, err := Parse(buildStream(pal, testSheet{name: "S", dt: biff.SubstreamWorksheet}), DefaultOptions())
	require.NoError(err)

	c, ok := wb.PaletteColor(8)
	require.True(ok)
	require.Equal("123456", c.Hex())
	c, ok = wb.PaletteColor(9)
	require.True(ok)
	require.Equal("FFFFFF", c.Hex())
	_, ok = wb.PaletteColor(64)
	require.False(ok)

	c, ok = escher.ResolveColor(0x08000008, wb)
	require.True(ok)
	require.Equal("123456", c.Hex())

	require.Error(applyPaletteRecord(newPalette(), []byte{2, 0, 1, 2, 3, 4}))
}

func TestIsCompoundFile(t *testing.T) {
	ok, err := IsCompoundFile(bytes.NewReader(append(append([]byte(nil), oleMagic...), 0, 0)))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = IsCompoundFile(bytes.NewReader([]byte("PK\x03\x04")))
	require.NoError(t, err)
	require.False(t, ok)

	_, err = ReadStream(bytes.NewReader([]byte("not an ole file at all")))
	require.Error(t, err)
}

func TestWorkbook_Dump(t *testing.T) {
	require := require.New(t)
	group, drawing := testDrawings(t)
	stream := buildStream(group,
		testSheet{name: "Empty", dt: biff.SubstreamWorksheet},
		testSheet{name: "Pictures", dt: biff.SubstreamWorksheet, body: drawing},
	)
	wb, err := Parse(stream, DefaultOptions())
	require.NoError(err)

	doc := wb.Dump("book.xls")
	require.True(doc.Metadata.DrawingGroup)
	require.Equal(1, doc.Metadata.Clusters)
	require.Len(doc.Sheets, 2)
	require.Zero(doc.Sheets[0].DrawingID)

	sheet := doc.Sheets[1]
	require.Equal("Pictures", sheet.Name)
	require.Equal(uint32(1), sheet.DrawingID)
	require.Len(sheet.Shapes, 2)

	pic := sheet.Shapes[0]
	require.Equal("/1", pic.Path)
	require.Equal(ir.ShapeKindPicture, pic.Kind)
	require.Equal("Logo", pic.Name)
	require.Equal(1, pic.Image)
	require.Equal(uint16(1), pic.ObjID)
	require.Equal("move", pic.Anchor.Mode)
	require.Equal("B3:E9", pic.Anchor.String())
	require.Nil(pic.Fill)

	box := sheet.Shapes[1]
	require.Equal(ir.ShapeKindTextBox, box.Kind)
	require.Equal("/2", box.Path)

	require.Len(doc.Images, 1)
	require.Equal("PNG", doc.Images[0].Format)
	require.Equal(uint32(1), doc.Images[0].RefCount)
	require.Equal(2, doc.ShapeTotal())
}
