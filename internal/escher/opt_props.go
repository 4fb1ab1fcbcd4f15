package escher

import (
	"bytes"
	"fmt"

	"golang.org/x/text/encoding/unicode"
)

// Shape option property ids.
const (
	PropRotation            uint16 = 0x0004
	PropLockAgainstGrouping uint16 = 0x007F
	PropTextID              uint16 = 0x0080
	PropCropFromTop         uint16 = 0x0100
	PropCropFromBottom      uint16 = 0x0101
	PropCropFromLeft        uint16 = 0x0102
	PropCropFromRight       uint16 = 0x0103
	PropPib                 uint16 = 0x0104
	PropPibName             uint16 = 0x0105
	PropPibFlags            uint16 = 0x0106
	PropPictureTransparent  uint16 = 0x0107
	PropPictureContrast     uint16 = 0x0108
	PropPictureBrightness   uint16 = 0x0109
	PropBlipBooleans        uint16 = 0x013F
	PropVertices            uint16 = 0x0145
	PropSegmentInfo         uint16 = 0x0146
	PropConnectionSites     uint16 = 0x0151
	PropConnectionSitesDir  uint16 = 0x0152
	PropAdjustHandles       uint16 = 0x0155
	PropGuides              uint16 = 0x0156
	PropInscribe            uint16 = 0x0157
	PropFillType            uint16 = 0x0180
	PropFillColor           uint16 = 0x0181
	PropFillOpacity         uint16 = 0x0182
	PropFillBackColor       uint16 = 0x0183
	PropFillBackOpacity     uint16 = 0x0184
	PropFillBlip            uint16 = 0x0186
	PropFillBlipName        uint16 = 0x0187
	PropFillShadeColors     uint16 = 0x0197
	PropFillBooleans        uint16 = 0x01BF
	PropLineColor           uint16 = 0x01C0
	PropLineOpacity         uint16 = 0x01C1
	PropLineBackColor       uint16 = 0x01C2
	PropLineWidth           uint16 = 0x01CB
	PropLineStyle           uint16 = 0x01CD
	PropLineDashing         uint16 = 0x01CE
	PropLineDashStyle       uint16 = 0x01CF
	PropLineBooleans        uint16 = 0x01FF
	PropShadowBooleans      uint16 = 0x023F
	PropName                uint16 = 0x0380
	PropDescription         uint16 = 0x0381
	PropWrapPolygonVertices uint16 = 0x0383
	PropGroupBooleans       uint16 = 0x03BF
)

// Flag bits of the packed boolean properties. The "defined" bit of each flag
// sits sixteen positions higher.
const (
	BitFilled      uint = 4 // PropFillBooleans
	BitLine        uint = 3 // PropLineBooleans
	BitShadow      uint = 1 // PropShadowBooleans
	BitPrint       uint = 0 // PropGroupBooleans
	BitHidden      uint = 1 // PropGroupBooleans
	BitBlipGray    uint = 2 // PropBlipBooleans
	BitBlipBiLevel uint = 1 // PropBlipBooleans
)

// Fill types.
const (
	FillSolid      uint32 = 0
	FillPattern    uint32 = 1
	FillTexture    uint32 = 2
	FillPicture    uint32 = 3
	FillBackground uint32 = 9
)

// Documented property defaults. Setting a property to its default removes it.
var propertyDefaults = map[uint16]int32{
	PropRotation:          0,
	PropCropFromTop:       0,
	PropCropFromBottom:    0,
	PropCropFromLeft:      0,
	PropCropFromRight:     0,
	PropPictureContrast:   0x10000,
	PropPictureBrightness: 0,
	PropFillType:          int32(FillSolid),
	PropFillColor:         0x00FFFFFF,
	PropFillOpacity:       0x10000,
	PropFillBackColor:     0x00FFFFFF,
	PropFillBackOpacity:   0x10000,
	PropLineColor:         0,
	PropLineOpacity:       0x10000,
	PropLineWidth:         9525,
	PropLineStyle:         0,
	PropLineDashing:       0,
}

// Fixed1616 decodes a 16.16 fixed point value: signed integer part in the
// high word, unsigned fraction in the low word.
func Fixed1616(v int32) float64 {
	return float64(int16(uint32(v)>>16)) + float64(uint16(v))/65536
}

// ToFixed1616 encodes f as 16.16 fixed point.
func ToFixed1616(f float64) int32 {
	return int32(f * 65536)
}

// RGB is a resolved color.
type RGB struct {
	R, G, B uint8
}

// Hex returns the color as RRGGBB.
func (c RGB) Hex() string {
	return fmt.Sprintf("%02X%02X%02X", c.R, c.G, c.B)
}

// Palette resolves workbook palette indexes.
type Palette interface {
	PaletteColor(index int) (RGB, bool)
}

// Color flags in the high byte of a color value.
const (
	colorPaletteIndex = 0x08
	colorSystemIndex  = 0x10
)

// ResolveColor converts a stored color. Palette references go through p.
func ResolveColor(v uint32, p Palette) (RGB, bool) {
	flags := v >> 24
	switch {
	case flags&colorPaletteIndex != 0:
		if p == nil {
			return RGB{}, false
		}
		return p.PaletteColor(int(v & 0xFFFF))
	case flags&colorSystemIndex != 0:
		return RGB{}, false
	default:
		return RGB{R: uint8(v), G: uint8(v >> 8), B: uint8(v >> 16)}, true
	}
}

// shapeType returns the type of the sibling Sp record, if any.
func (r *OPT) shapeType() (uint16, bool) {
	if r.parent == nil {
		return 0, false
	}
	sp, ok := FindFirstChildOfType[*SpRecord](r.parent)
	if !ok {
		return 0, false
	}
	return sp.ShapeType(), true
}

// Rotation returns the rotation in degrees.
func (r *OPT) Rotation() float64 {
	return Fixed1616(r.Int(PropRotation, 0))
}

// Crop holds the cropped fractions of each picture edge.
type Crop struct {
	Top, Bottom, Left, Right float64
}

// Crop returns the picture cropping.
func (r *OPT) Crop() Crop {
	return Crop{
		Top:    Fixed1616(r.Int(PropCropFromTop, 0)),
		Bottom: Fixed1616(r.Int(PropCropFromBottom, 0)),
		Left:   Fixed1616(r.Int(PropCropFromLeft, 0)),
		Right:  Fixed1616(r.Int(PropCropFromRight, 0)),
	}
}

// Fill describes the resolved shape fill.
type Fill struct {
	Filled    bool
	Type      uint32
	Color     RGB
	HasColor  bool
	Opacity   float64
	BackColor RGB
	Blip      *BSE
}

// Fill resolves the fill. Pictures, lines and text boxes are unfilled unless
// the table says otherwise.
func (r *OPT) Fill(p Palette) Fill {
	def := true
	if t, ok := r.shapeType(); ok {
		switch t {
		case ShapeTypePictureFrame, ShapeTypeLine, ShapeTypeHostControl:
			def = false
		}
	}
	f := Fill{
		Filled:  r.Bool(PropFillBooleans, BitFilled, def),
		Type:    r.UInt(PropFillType, FillSolid),
		Opacity: Fixed1616(r.Int(PropFillOpacity, 0x10000)),
	}
	f.Color, f.HasColor = ResolveColor(r.UInt(PropFillColor, 0x00FFFFFF), p)
	f.BackColor, _ = ResolveColor(r.UInt(PropFillBackColor, 0x00FFFFFF), p)
	f.Blip, _ = r.Blip(PropFillBlip)
	return f
}

// Transparency returns 1 minus the fill opacity.
func (r *OPT) Transparency() float64 {
	return 1 - Fixed1616(r.Int(PropFillOpacity, 0x10000))
}

// Line describes the resolved shape outline.
type Line struct {
	Visible  bool
	Color    RGB
	HasColor bool
	Width    int // EMU
	Style    uint32
	Dashing  uint32
	Opacity  float64
}

// Line resolves the outline. Pictures have no outline by default.
func (r *OPT) Line(p Palette) Line {
	def := true
	if t, ok := r.shapeType(); ok && t == ShapeTypePictureFrame {
		def = false
	}
	l := Line{
		Visible: r.Bool(PropLineBooleans, BitLine, def),
		Width:   int(r.Int(PropLineWidth, 9525)),
		Style:   r.UInt(PropLineStyle, 0),
		Dashing: r.UInt(PropLineDashing, 0),
		Opacity: Fixed1616(r.Int(PropLineOpacity, 0x10000)),
	}
	l.Color, l.HasColor = ResolveColor(r.UInt(PropLineColor, 0), p)
	return l
}

// Hidden reports the group "hidden" flag.
func (r *OPT) Hidden() bool {
	return r.Bool(PropGroupBooleans, BitHidden, false)
}

// Printable reports the group "print" flag.
func (r *OPT) Printable() bool {
	return r.Bool(PropGroupBooleans, BitPrint, true)
}

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

func decodeWString(b []byte) string {
	for i := 0; i+1 < len(b); i += 2 {
		if b[i] == 0 && b[i+1] == 0 {
			b = b[:i]
			break
		}
	}
	s, err := utf16le.NewDecoder().Bytes(b)
	if err != nil {
		return ""
	}
	return string(s)
}

func encodeWString(s string) ([]byte, error) {
	b, err := utf16le.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, err
	}
	return append(b, 0, 0), nil
}

// Name returns the shape name.
func (r *OPT) Name() string {
	return decodeWString(r.Bytes(PropName))
}

// Description returns the alternative text.
func (r *OPT) Description() string {
	return decodeWString(r.Bytes(PropDescription))
}

// PictureName returns the original file name of the picture.
func (r *OPT) PictureName() string {
	return decodeWString(r.Bytes(PropPibName))
}

// SetName renames the shape. An empty name removes the property.
func (r *OPT) SetName(name string) error {
	if name == "" {
		r.RemoveProperty(PropName)
	} else {
		b, err := encodeWString(name)
		if err != nil {
			return fmt.Errorf("encode shape name: %w", err)
		}
		if bytes.Equal(b, r.Bytes(PropName)) {
			return nil
		}
		r.SetByteArray(PropName, b)
	}
	r.indexName()
	return nil
}

// SetDescription sets the alternative text.
func (r *OPT) SetDescription(text string) error {
	if text == "" {
		r.RemoveProperty(PropDescription)
		return nil
	}
	b, err := encodeWString(text)
	if err != nil {
		return fmt.Errorf("encode shape description: %w", err)
	}
	r.SetByteArray(PropDescription, b)
	return nil
}
