package ir

// ShapeKind represents the kind of a shape.
type ShapeKind string

const (
	ShapeKindGroup     ShapeKind = "group"
	ShapeKindPicture   ShapeKind = "picture"
	ShapeKindTextBox   ShapeKind = "textbox"
	ShapeKindRectangle ShapeKind = "rectangle"
	ShapeKindEllipse   ShapeKind = "ellipse"
	ShapeKindLine      ShapeKind = "line"
	ShapeKindControl   ShapeKind = "control"
	ShapeKindOther     ShapeKind = "other"
)

// Shape represents one shape and, for groups, its members.
type Shape struct {
	ID       uint32    `json:"id"`
	Path     string    `json:"path"`
	Kind     ShapeKind `json:"kind"`
	Type     uint16    `json:"type"`
	Name     string    `json:"name,omitempty"`
	ObjID    uint16    `json:"obj_id,omitempty"`
	Anchor   *Anchor   `json:"anchor,omitempty"`
	Rotation float64   `json:"rotation,omitempty"`
	Hidden   bool      `json:"hidden,omitempty"`
	Fill     *Fill     `json:"fill,omitempty"`
	Line     *Line     `json:"line,omitempty"`
	Crop     *Crop     `json:"crop,omitempty"`
	Image    int       `json:"image,omitempty"` // 이미지 카탈로그 위치
	Children []*Shape  `json:"children,omitempty"`
}

// Anchor is a shape position. Sheet anchors use cells, chart anchors use
// absolute coordinates.
type Anchor struct {
	Mode  string `json:"mode"` // move-and-size, move, absolute
	Chart bool   `json:"chart,omitempty"`
	Col1  int    `json:"col1"`
	Dx1   int    `json:"dx1"`
	Row1  int    `json:"row1"`
	Dy1   int    `json:"dy1"`
	Col2  int    `json:"col2"`
	Dx2   int    `json:"dx2"`
	Row2  int    `json:"row2"`
	Dy2   int    `json:"dy2"`
}

// Fill describes a resolved shape fill.
type Fill struct {
	Color   string  `json:"color,omitempty"` // RRGGBB
	Opacity float64 `json:"opacity"`
}

// Line describes a resolved shape outline.
type Line struct {
	Color string `json:"color,omitempty"` // RRGGBB
	Width int    `json:"width"`           // EMU
}

// Crop is the picture cropping as fractions of the image size.
type Crop struct {
	Top    float64 `json:"top,omitempty"`
	Bottom float64 `json:"bottom,omitempty"`
	Left   float64 `json:"left,omitempty"`
	Right  float64 `json:"right,omitempty"`
}

// NewShape creates a new shape.
func NewShape(id uint32, path string, kind ShapeKind) *Shape {
	return &Shape{
		ID:   id,
		Path: path,
		Kind: kind,
	}
}

// AddChild adds a group member.
func (s *Shape) AddChild(c *Shape) {
	s.Children = append(s.Children, c)
}

func (s *Shape) count() int {
	n := 1
	for _, c := range s.Children {
		n += c.count()
	}
	return n
}
