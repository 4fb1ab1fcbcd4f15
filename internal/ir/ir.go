// Package ir defines the dump model of a workbook's drawing layer.
// It is built from a loaded workbook and rendered by the inspect command.
package ir

// Document represents the drawing layer of one workbook.
type Document struct {
	Version  string        `json:"version"`
	Metadata Metadata      `json:"metadata"`
	Sheets   []*Sheet      `json:"sheets"`
	Images   []*ImageBlock `json:"images,omitempty"`
}

// Metadata contains drawing group counters.
type Metadata struct {
	Source        string `json:"source,omitempty"`
	DrawingGroup  bool   `json:"drawing_group"`
	Clusters      int    `json:"clusters,omitempty"`
	MaxShapeID    uint32 `json:"max_shape_id,omitempty"`
	SavedShapes   uint32 `json:"saved_shapes,omitempty"`
	SavedDrawings uint32 `json:"saved_drawings,omitempty"`
}

// Sheet represents one sheet and its shapes.
type Sheet struct {
	Name       string   `json:"name"`
	Kind       string   `json:"kind"`
	DrawingID  uint32   `json:"drawing_id,omitempty"`
	ShapeCount uint32   `json:"shape_count,omitempty"`
	Shapes     []*Shape `json:"shapes,omitempty"`
}

// NewDocument creates a new dump document with the current version.
func NewDocument() *Document {
	return &Document{
		Version: "1.0",
		Sheets:  make([]*Sheet, 0),
	}
}

// AddSheet adds a sheet to the document.
func (d *Document) AddSheet(s *Sheet) {
	d.Sheets = append(d.Sheets, s)
}

// AddImage adds an image catalog entry to the document.
func (d *Document) AddImage(img *ImageBlock) {
	d.Images = append(d.Images, img)
}

// Image returns the image at catalog position pos.
func (d *Document) Image(pos int) (*ImageBlock, bool) {
	for _, img := range d.Images {
		if img.Position == pos {
			return img, true
		}
	}
	return nil, false
}

// ShapeTotal returns the number of shapes on every sheet, group members
// included.
func (d *Document) ShapeTotal() int {
	n := 0
	for _, s := range d.Sheets {
		for _, sp := range s.Shapes {
			n += sp.count()
		}
	}
	return n
}
