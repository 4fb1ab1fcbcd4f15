package ir

import (
	"fmt"
	"io"
	"strings"
)

// WriteText renders the document as an indented text tree.
func (d *Document) WriteText(w io.Writer) error {
	tw := &textWriter{w: w}

	if d.Metadata.Source != "" {
		tw.line(0, "%s", d.Metadata.Source)
	}
	if d.Metadata.DrawingGroup {
		tw.line(0, "drawing group: %d clusters, max shape id %d, %d shapes in %d drawings",
			d.Metadata.Clusters, d.Metadata.MaxShapeID, d.Metadata.SavedShapes, d.Metadata.SavedDrawings)
	} else {
		tw.line(0, "drawing group: none")
	}

	for _, s := range d.Sheets {
		if s.DrawingID == 0 {
			tw.line(0, "sheet %q (%s): no drawing", s.Name, s.Kind)
			continue
		}
		tw.line(0, "sheet %q (%s): drawing %d, %d shapes", s.Name, s.Kind, s.DrawingID, s.ShapeCount)
		for _, sp := range s.Shapes {
			tw.shape(1, sp)
		}
	}

	if len(d.Images) > 0 {
		tw.line(0, "images:")
		for _, img := range d.Images {
			tw.line(1, "%d: %s, %d bytes, %d refs, uid %s%s", img.Position, img.Format, img.Size,
				img.RefCount, img.UID, optional(" name %q", img.Name))
		}
	}
	return tw.err
}

type textWriter struct {
	w   io.Writer
	err error
}

func (tw *textWriter) line(depth int, format string, args ...any) {
	if tw.err != nil {
		return
	}
	_, tw.err = fmt.Fprintf(tw.w, "%s%s\n", strings.Repeat("  ", depth), fmt.Sprintf(format, args...))
}

func (tw *textWriter) shape(depth int, s *Shape) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s #%d %s", s.Path, s.ID, s.Kind)
	if s.Name != "" {
		fmt.Fprintf(&b, " %q", s.Name)
	}
	if s.Anchor != nil {
		b.WriteString(" " + s.Anchor.String())
	}
	if s.Image > 0 {
		fmt.Fprintf(&b, " image %d", s.Image)
	}
	if s.ObjID > 0 {
		fmt.Fprintf(&b, " obj %d", s.ObjID)
	}
	if s.Rotation != 0 {
		fmt.Fprintf(&b, " rot %.1f", s.Rotation)
	}
	if s.Hidden {
		b.WriteString(" hidden")
	}
	tw.line(depth, "%s", b.String())

	for _, c := range s.Children {
		tw.shape(depth+1, c)
	}
}

func optional(format, v string) string {
	if v == "" {
		return ""
	}
	return fmt.Sprintf(format, v)
}

// String returns the anchor as a cell range, or as a rectangle for charts.
func (a *Anchor) String() string {
	if a.Chart {
		return fmt.Sprintf("(%d,%d)-(%d,%d)", a.Col1, a.Row1, a.Col2, a.Row2)
	}
	return fmt.Sprintf("%s%d:%s%d", ColumnName(a.Col1), a.Row1+1, ColumnName(a.Col2), a.Row2+1)
}

// ColumnName returns the spreadsheet letters of a zero-based column.
func ColumnName(col int) string {
	if col < 0 {
		return "?"
	}
	var buf []byte
	for col >= 0 {
		buf = append([]byte{byte('A' + col%26)}, buf...)
		col = col/26 - 1
	}
	return string(buf)
}
