package workbook

import (
	"encoding/hex"
	"fmt"

	"github.com/roboco-io/xlsdraw/internal/escher"
	"github.com/roboco-io/xlsdraw/internal/ir"
)

// Dump builds the inspection model of the drawing layer.
func (w *Workbook) Dump(source string) *ir.Document {
	doc := ir.NewDocument()
	doc.Metadata.Source = source

	if w.Group != nil {
		dgg := w.Group.Dgg()
		doc.Metadata.DrawingGroup = true
		doc.Metadata.Clusters = dgg.ClusterCount()
		doc.Metadata.MaxShapeID = dgg.MaxShapeID()
		doc.Metadata.SavedShapes = dgg.ShapesSaved()
		doc.Metadata.SavedDrawings = dgg.DrawingsSaved()

		if store := w.Group.Cache.BStore(); store != nil {
			for _, b := range store.Entries() {
				doc.AddImage(imageBlock(b))
			}
		}
	}

	for _, s := range w.Sheets {
		doc.AddSheet(w.dumpSheet(s))
	}
	return doc
}

func imageBlock(b *escher.BSE) *ir.ImageBlock {
	img := ir.NewImage(b.Position())
	uid := b.UID()
	img.Format = b.BlipType().String()
	img.Ext = b.BlipType().Ext()
	img.UID = hex.EncodeToString(uid[:])
	img.RefCount = b.RefCount()
	img.Size = len(b.Payload())
	img.Name = b.Name()
	return img
}

func (w *Workbook) dumpSheet(s *Sheet) *ir.Sheet {
	out := &ir.Sheet{Name: s.Title(), Kind: s.Kind.String()}
	if s.Drawing == nil {
		return out
	}
	if dg := s.Drawing.Dg(); dg != nil {
		out.DrawingID = dg.DrawingID()
		out.ShapeCount = dg.ShapeCount()
	}

	p := s.Drawing.Patriarch()
	if p == nil {
		return out
	}
	// 0번 자식은 패트리아크 자신의 도형
	for i := 1; i < p.Len(); i++ {
		if c, ok := p.Child(i).(*escher.Container); ok {
			out.Shapes = append(out.Shapes, w.dumpShape(c, fmt.Sprintf("/%d", i)))
		}
	}
	return out
}

func (w *Workbook) dumpShape(c *escher.Container, path string) *ir.Shape {
	if c.Tag() != escher.TagSpgrContainer {
		return w.shapeInfo(c, path)
	}

	s := ir.NewShape(0, path, ir.ShapeKindGroup)
	if c.Len() > 0 {
		if own, ok := c.Child(0).(*escher.Container); ok {
			s = w.shapeInfo(own, path)
		}
	}
	s.Kind = ir.ShapeKindGroup
	for i := 1; i < c.Len(); i++ {
		if m, ok := c.Child(i).(*escher.Container); ok {
			s.AddChild(w.dumpShape(m, fmt.Sprintf("%s/%d", path, i)))
		}
	}
	return s
}

func (w *Workbook) shapeInfo(sp *escher.Container, path string) *ir.Shape {
	s := ir.NewShape(0, path, ir.ShapeKindOther)
	if rec, ok := escher.ShapeRecord(sp); ok {
		s.ID = rec.ShapeID()
		s.Type = rec.ShapeType()
		s.Kind = shapeKind(rec)
	}

	if a, ok := escher.FindFirstChildOfType[*escher.ClientAnchor](sp); ok {
		s.Anchor = anchorInfo(a)
	}
	if cd, ok := escher.FindFirstChildOfType[*escher.ClientData](sp); ok {
		if id, ok := cd.ObjID(); ok {
			s.ObjID = id
		}
	}

	opt, ok := escher.FindFirstChildOfType[*escher.OPT](sp)
	if !ok {
		return s
	}
	s.Name = opt.Name()
	s.Rotation = opt.Rotation()
	s.Hidden = opt.Hidden()
	if b, ok := opt.Blip(escher.PropPib); ok {
		s.Image = b.Position()
	}

	if f := opt.Fill(w); f.Filled {
		s.Fill = &ir.Fill{Opacity: f.Opacity}
		if f.HasColor {
			s.Fill.Color = f.Color.Hex()
		}
	}
	if l := opt.Line(w); l.Visible {
		s.Line = &ir.Line{Width: l.Width}
		if l.HasColor {
			s.Line.Color = l.Color.Hex()
		}
	}
	if c := opt.Crop(); c != (escher.Crop{}) {
		s.Crop = &ir.Crop{Top: c.Top, Bottom: c.Bottom, Left: c.Left, Right: c.Right}
	}
	return s
}

func shapeKind(rec *escher.SpRecord) ir.ShapeKind {
	if rec.Flags()&escher.ShapeGroup != 0 {
		return ir.ShapeKindGroup
	}
	switch rec.ShapeType() {
	case escher.ShapeTypePictureFrame:
		return ir.ShapeKindPicture
	case escher.ShapeTypeTextBox:
		return ir.ShapeKindTextBox
	case escher.ShapeTypeRectangle:
		return ir.ShapeKindRectangle
	case escher.ShapeTypeEllipse:
		return ir.ShapeKindEllipse
	case escher.ShapeTypeLine, escher.ShapeTypeArrow:
		return ir.ShapeKindLine
	case escher.ShapeTypeHostControl:
		return ir.ShapeKindControl
	default:
		return ir.ShapeKindOther
	}
}

func anchorInfo(a *escher.ClientAnchor) *ir.Anchor {
	out := &ir.Anchor{Mode: anchorMode(a.Flags()), Chart: a.IsChart()}
	if a.IsChart() {
		r := a.ChartRect()
		out.Col1, out.Row1 = int(r.Left), int(r.Top)
		out.Col2, out.Row2 = int(r.Right), int(r.Bottom)
		return out
	}
	v := a.Anchor()
	out.Col1, out.Dx1, out.Row1, out.Dy1 = v.Col1, v.Dx1, v.Row1, v.Dy1
	out.Col2, out.Dx2, out.Row2, out.Dy2 = v.Col2, v.Dx2, v.Row2, v.Dy2
	return out
}

func anchorMode(flags uint16) string {
	switch flags {
	case escher.AnchorMoveAndSize:
		return "move-and-size"
	case escher.AnchorMove:
		return "move"
	case escher.AnchorAbsolute:
		return "absolute"
	default:
		return fmt.Sprintf("flags-%d", flags)
	}
}
