package workbook

import (
	"encoding/binary"
	"fmt"

	"github.com/roboco-io/xlsdraw/internal/biff"
	"github.com/roboco-io/xlsdraw/internal/escher"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// SheetKind is the substream type of a sheet.
type SheetKind int

const (
	SheetUnknown SheetKind = iota
	SheetWorksheet
	SheetChart
	SheetMacro
)

// String returns the string representation of the kind.
func (k SheetKind) String() string {
	switch k {
	case SheetWorksheet:
		return "worksheet"
	case SheetChart:
		return "chart"
	case SheetMacro:
		return "macro"
	default:
		return "unknown"
	}
}

func sheetKind(dt uint16) SheetKind {
	switch dt {
	case biff.SubstreamWorksheet:
		return SheetWorksheet
	case biff.SubstreamChart:
		return SheetChart
	case biff.SubstreamMacro:
		return SheetMacro
	default:
		return SheetUnknown
	}
}

// Sheet is one sheet substream of the workbook.
type Sheet struct {
	Name   string
	Kind   SheetKind
	Offset int    // BOF 레코드의 스트림 오프셋
	Parent *Sheet // 포함된 차트의 상위 시트

	// Drawing is nil when the sheet has no drawing records.
	Drawing *escher.Drawing

	original []byte
}

// Title returns the sheet name, or a name derived from the parent sheet for
// embedded charts.
func (s *Sheet) Title() string {
	if s.Name != "" || s.Parent == nil {
		return s.Name
	}
	return fmt.Sprintf("%s (chart @%d)", s.Parent.Title(), s.Offset)
}

// Original returns the drawing records of the sheet as they were read.
func (s *Sheet) Original() []byte {
	return s.original
}

// boundSheet is the catalog entry of a sheet in the globals substream.
type boundSheet struct {
	offset int
	name   string
}

// parseBoundSheet decodes a BOUNDSHEET payload.
// 구조: [lbPlyPos:4][hsState:1][dt:1][cch:1][fHighByte:1][name]
func parseBoundSheet(data []byte) (boundSheet, error) {
	if len(data) < 8 {
		return boundSheet{}, fmt.Errorf("BOUNDSHEET 레코드가 너무 짧습니다: %d바이트", len(data))
	}
	offset := int(binary.LittleEndian.Uint32(data))
	cch := int(data[6])
	high := data[7]&0x01 != 0

	raw := data[8:]
	size := cch
	if high {
		size *= 2
	}
	if len(raw) < size {
		return boundSheet{}, fmt.Errorf("BOUNDSHEET 이름이 잘렸습니다: %d/%d바이트", len(raw), size)
	}

	name, err := decodeSheetName(raw[:size], high)
	if err != nil {
		return boundSheet{}, err
	}
	return boundSheet{offset: offset, name: name}, nil
}

// decodeSheetName decodes a BIFF8 short string: UTF-16LE when high is set,
// otherwise compressed Latin-1.
func decodeSheetName(raw []byte, high bool) (string, error) {
	var (
		out []byte
		err error
	)
	if high {
		out, err = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(raw)
	} else {
		out, err = charmap.ISO8859_1.NewDecoder().Bytes(raw)
	}
	if err != nil {
		return "", fmt.Errorf("시트 이름 디코딩 실패: %w", err)
	}
	return string(out), nil
}
