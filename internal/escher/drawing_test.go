package escher

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roboco-io/xlsdraw/internal/biff"
)

var testPNG = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR fake png body")

func newTestDrawing(t *testing.T) (*Group, *Drawing) {
	t.Helper()
	g, err := NewGroup()
	require.NoError(t, err)
	d, err := g.NewDrawing(false)
	require.NoError(t, err)
	return g, d
}

func decodeGroup(t *testing.T, stream []byte) *Group {
	t.Helper()
	recs, err := biff.NewRecordReader(stream).ReadAll()
	require.NoError(t, err)
	dec := NewGroupDecoder()
	for _, r := range recs {
		require.NoError(t, dec.Feed(r.Data))
	}
	g, err := GroupFromDecoder(dec)
	require.NoError(t, err)
	return g
}

func decodeDrawing(t *testing.T, g *Group, stream []byte) *Drawing {
	t.Helper()
	recs, err := biff.NewRecordReader(stream).ReadAll()
	require.NoError(t, err)
	dec := g.NewDrawingDecoder(false)
	for _, r := range recs {
		switch r.Tag {
		case biff.TagMsoDrawing, biff.TagContinue:
			require.NoError(t, dec.Feed(r.Data))
		default:
			require.NoError(t, dec.AttachClientRecord(r))
		}
	}
	d, err := g.DrawingFromDecoder(dec)
	require.NoError(t, err)
	return d
}

func save(t *testing.T, fn func(io.Writer) error) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, fn(&buf))
	return buf.Bytes()
}

func TestNewDrawing_Layout(t *testing.T) {
	require := require.New(t)
	g, d := newTestDrawing(t)

	require.Equal(uint32(1), d.Dg().DrawingID())
	require.Equal(uint32(1), d.Dg().ShapeCount())
	require.Equal(uint32(ClusterSize), d.Dg().LastShapeID())
	require.Equal(1, g.Dgg().ClusterCount())
	require.Equal(uint32(1), g.Dgg().DrawingsSaved())

	p := d.Patriarch()
	require.NotNil(p)
	require.Equal(1, p.Len())
	sp, ok := ShapeRecord(p)
	require.True(ok)
	require.Equal(ShapeGroup|ShapePatriarch, sp.Flags())
	require.Empty(d.Shapes())
}

func TestDrawing_RoundTrip(t *testing.T) {
	require := require.New(t)
	g, d := newTestDrawing(t)

	_, err := d.AddPicture(testPNG, BlipPNG, Anchor{Col1: 1, Row1: 5, Col2: 3, Row2: 7}, "Logo")
	require.NoError(err)
	_, err = d.AddPicture(testPNG, BlipPNG, Anchor{Col1: 4, Row1: 1, Col2: 6, Row2: 2}, "Logo 2")
	require.NoError(err)

	store := g.Cache.BStore()
	require.Equal(1, store.Count())
	require.Equal(uint32(2), store.Entry(1).RefCount())

	groupBytes := save(t, g.Save)
	drawingBytes := save(t, d.Save)

	g2 := decodeGroup(t, groupBytes)
	d2 := decodeDrawing(t, g2, drawingBytes)

	require.Equal(groupBytes, save(t, g2.Save))
	require.Equal(drawingBytes, save(t, d2.Save))

	shapes := d2.Shapes()
	require.Len(shapes, 2)
	logo, err := d2.Find("@Logo")
	require.NoError(err)
	require.Same(shapes[0], logo)

	sp, ok := ShapeRecord(shapes[1])
	require.True(ok)
	require.Equal(uint32(ClusterSize+2), sp.ShapeID())
	byID, err := d2.Find("#1026")
	require.NoError(err)
	require.Same(shapes[1], byID)

	opt, ok := FindFirstChildOfType[*OPT](shapes[0])
	require.True(ok)
	b, ok := opt.Blip(PropPib)
	require.True(ok)
	require.Same(g2.Cache.BStore().Entry(1), b)
	require.Equal(2, d2.Cache.BlipUsage(b))

	_, ok = d2.Cache.Obj(1)
	require.True(ok)
	_, ok = d2.Cache.Obj(2)
	require.True(ok)
}

func TestDrawing_ClientRecordsFollowClientData(t *testing.T) {
	require := require.New(t)
	_, d := newTestDrawing(t)

	_, err := d.AddPicture(testPNG, BlipPNG, Anchor{Row2: 1, Col2: 1}, "")
	require.NoError(err)

	recs, err := biff.NewRecordReader(save(t, d.Save)).ReadAll()
	require.NoError(err)
	require.Len(recs, 2)
	require.Equal(biff.TagMsoDrawing, recs[0].Tag)
	require.Equal(biff.TagObj, recs[1].Tag)
	require.Equal(uint16(objTypePicture), binary.LittleEndian.Uint16(recs[1].Data[4:]))
	require.Equal(uint16(1), binary.LittleEndian.Uint16(recs[1].Data[6:]))
}

func TestDrawing_SizeConsistencyAfterMutation(t *testing.T) {
	require := require.New(t)
	g, d := newTestDrawing(t)

	sp, err := d.AddPicture(testPNG, BlipPNG, Anchor{Row2: 2, Col2: 2}, "a")
	require.NoError(err)
	opt, ok := FindFirstChildOfType[*OPT](sp)
	require.True(ok)
	require.NoError(opt.SetName("a much longer shape name"))
	require.NoError(opt.SetDescription("alt text"))
	opt.SetBool(PropLineBooleans, BitLine, true)

	for _, root := range []*Container{g.Root(), d.Root()} {
		Walk(root, func(r Record) bool {
			require.True(r.IsFullyLoaded(), TagName(r.Tag()))
			require.Equal(r.Header().Length+HeaderSize, r.TotalSize(), TagName(r.Tag()))
			return true
		})
	}

	s := biff.NewSplitter(biff.TagMsoDrawing, biff.TagContinue)
	require.NoError(d.Root().Prepare(s))
	require.Equal(s.RealSize(), len(save(t, d.Save)))

	named, err := d.Find("@a much longer shape name")
	require.NoError(err)
	require.Same(sp, named)
	_, err = d.Find("@a")
	require.Error(err)
}

func TestDrawing_DeleteShapeReleasesImage(t *testing.T) {
	require := require.New(t)
	g, d := newTestDrawing(t)

	a, err := d.AddPicture(testPNG, BlipPNG, Anchor{Row2: 1, Col2: 1}, "a")
	require.NoError(err)
	b, err := d.AddPicture(testPNG, BlipPNG, Anchor{Row2: 1, Col2: 1}, "b")
	require.NoError(err)
	store := g.Cache.BStore()
	before := d.Patriarch().TotalSize()

	require.NoError(d.DeleteShape(a))
	require.Equal(before-a.TotalSize(), d.Patriarch().TotalSize())
	require.Equal(uint32(2), d.Dg().ShapeCount())
	require.Equal(1, store.Count())
	require.Equal(uint32(1), store.Entry(1).RefCount())
	require.Len(d.Shapes(), 1)

	require.NoError(d.DeleteShape(b))
	require.Equal(0, store.Count())
	require.Empty(d.Shapes())
	_, err = d.Find("@b")
	require.Error(err)
}

func TestDrawing_DuplicateNamesSurviveDelete(t *testing.T) {
	require := require.New(t)
	_, d := newTestDrawing(t)

	first, err := d.AddPicture(testPNG, BlipPNG, Anchor{Row2: 1, Col2: 1}, "A")
	require.NoError(err)
	second, err := d.AddPicture(testPNG, BlipPNG, Anchor{Row1: 2, Row2: 3, Col2: 1}, "A")
	require.NoError(err)

	got, err := d.Find("@A")
	require.NoError(err)
	require.Same(first, got)

	require.NoError(d.DeleteShape(second))
	got, err = d.Find("@A")
	require.NoError(err)
	require.Same(first, got)

	second, err = d.AddPicture(testPNG, BlipPNG, Anchor{Row2: 1, Col2: 1}, "A")
	require.NoError(err)
	require.NoError(d.DeleteShape(first))
	got, err = d.Find("@A")
	require.NoError(err)
	require.Same(second, got)

	// 이름을 바꾸면 이전 이름에서 빠짐
	opt, _ := FindFirstChildOfType[*OPT](second)
	require.NoError(opt.SetName("B"))
	_, err = d.Find("@A")
	require.Error(err)
	got, err = d.Find("@B")
	require.NoError(err)
	require.Same(second, got)
}

func TestDrawing_DeleteShapeRemovesConnectorRules(t *testing.T) {
	require := require.New(t)
	_, d := newTestDrawing(t)

	a, err := d.AddPicture(testPNG, BlipPNG, Anchor{Row2: 1, Col2: 1}, "a")
	require.NoError(err)
	b, err := d.AddPicture(testPNG, BlipPNG, Anchor{Row2: 1, Col2: 1}, "b")
	require.NoError(err)
	spA, _ := ShapeRecord(a)
	spB, _ := ShapeRecord(b)

	solver := NewContainer(TagSolverContainer, 0)
	require.NoError(solver.AddChild(NewConnectorRule(1, spA.ShapeID(), spB.ShapeID(), 0)))
	require.NoError(solver.AddChild(NewConnectorRule(2, spB.ShapeID(), spB.ShapeID(), 0)))
	require.NoError(d.Root().AddChild(solver))
	require.Same(solver, d.Cache.Solver())

	require.NoError(d.DeleteShape(a))
	require.Equal(1, solver.Len())
	rule := solver.Child(0).(*ConnectorRule)
	require.Equal(uint32(2), rule.RuleID())
}

func TestBStore_Dedup(t *testing.T) {
	require := require.New(t)
	s := NewBStore()

	b1, pos1, err := s.Insert(testPNG, BlipPNG)
	require.NoError(err)
	b2, pos2, err := s.Insert(testPNG, BlipPNG)
	require.NoError(err)
	require.Same(b1, b2)
	require.Equal(1, pos1)
	require.Equal(pos1, pos2)
	require.Equal(1, s.Count())
	require.Equal(uint32(2), b1.RefCount())

	other, pos3, err := s.Insert([]byte("\xff\xd8\xff\xe0 jpeg"), BlipJPEG)
	require.NoError(err)
	require.Equal(2, pos3)
	require.Equal(2, s.Count())
	require.Equal(uint16(2), s.Instance())

	require.NoError(s.Release(1))
	require.Equal(2, s.Count())
	require.NoError(s.Release(1))
	require.Equal(1, s.Count())
	require.Equal(1, other.Position())
	require.Same(other, s.Entry(1))

	_, ok := s.Find(b1)
	require.False(ok)
	require.Error(s.Release(5))
}

func TestBStore_ExportPNG(t *testing.T) {
	require := require.New(t)
	s := NewBStore()
	_, pos, err := s.Insert(testPNG, BlipPNG)
	require.NoError(err)

	var buf bytes.Buffer
	require.NoError(s.Export(pos, &buf))
	require.Equal(testPNG, buf.Bytes())

	var ie *InternalError
	require.True(errors.As(s.Export(9, &buf), &ie))
}

func TestGroupCache_DuplicateRole(t *testing.T) {
	require := require.New(t)
	g, err := NewGroup()
	require.NoError(err)

	err = g.Root().AddChild(NewDgg())
	var dup *DuplicateRoleError
	require.True(errors.As(err, &dup))
	require.True(dup.IsFatal())

	_, err = g.BStore()
	require.NoError(err)
	err = g.Root().AddChild(NewBStore())
	require.True(errors.As(err, &dup))
}

func TestGroup_RemoveDrawingFreesCluster(t *testing.T) {
	require := require.New(t)
	g, d := newTestDrawing(t)
	d2, err := g.NewDrawing(false)
	require.NoError(err)
	require.Equal(uint32(2), d2.Dg().DrawingID())

	require.NoError(g.RemoveDrawing(d))
	require.Len(g.Drawings(), 1)
	owner, _ := g.Dgg().Cluster(0)
	require.Zero(owner)

	d3, err := g.NewDrawing(false)
	require.NoError(err)
	require.Equal(uint32(3), d3.Dg().DrawingID())
	owner, _ = g.Dgg().Cluster(0)
	require.Equal(uint32(3), owner)
	require.Equal(2, g.Dgg().ClusterCount())
}

func TestFind_Paths(t *testing.T) {
	require := require.New(t)
	_, d := newTestDrawing(t)

	a, err := d.AddPicture(testPNG, BlipPNG, Anchor{Row2: 1, Col2: 1}, "a")
	require.NoError(err)
	b, err := d.AddPicture(testPNG, BlipPNG, Anchor{Row2: 1, Col2: 1}, "b")
	require.NoError(err)

	for path, want := range map[string]*Container{
		"1":  a,
		"2":  b,
		"/1": a,
		"/2": b,
		"@b": b,
	} {
		got, err := d.Find(path)
		require.NoError(err, path)
		require.Same(want, got, path)
	}

	for _, path := range []string{"", "3", "/0", "x", "1/1", "#abc", "#99", "@nope"} {
		_, err := d.Find(path)
		require.Error(err, path)
	}
}
