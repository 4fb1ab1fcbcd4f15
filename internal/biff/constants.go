// Package biff provides the generic BIFF8 record framework shared by every
// workbook record: the 4-byte header codec, a record reader and the record
// splitting machinery used when a logical payload exceeds one physical record.
package biff

import "fmt"

// BIFF8 레코드 상수
const (
	// HeaderSize is the size of a generic record header (tag + length).
	HeaderSize = 4

	// MaxRecordPayload is the largest payload a single physical record may carry.
	MaxRecordPayload = 8224
)

// 레코드 태그 (BIFF8)
const (
	TagEOF                 uint16 = 0x000A
	TagContinue            uint16 = 0x003C
	TagObj                 uint16 = 0x005D
	TagBoundSheet          uint16 = 0x0085
	TagPalette             uint16 = 0x0092
	TagMsoDrawingGroup     uint16 = 0x00EB
	TagMsoDrawing          uint16 = 0x00EC
	TagMsoDrawingSelection uint16 = 0x00ED
	TagTxo                 uint16 = 0x01B6
	TagBOF                 uint16 = 0x0809
)

// BOF substream types (dt field).
const (
	SubstreamGlobals   uint16 = 0x0005
	SubstreamWorksheet uint16 = 0x0010
	SubstreamChart     uint16 = 0x0020
	SubstreamMacro     uint16 = 0x0040
)

// TagName returns the human-readable name for a record tag.
func TagName(tag uint16) string {
	names := map[uint16]string{
		TagEOF:                 "EOF",
		TagContinue:            "CONTINUE",
		TagObj:                 "OBJ",
		TagBoundSheet:          "BOUNDSHEET",
		TagPalette:             "PALETTE",
		TagMsoDrawingGroup:     "MSODRAWINGGROUP",
		TagMsoDrawing:          "MSODRAWING",
		TagMsoDrawingSelection: "MSODRAWINGSELECTION",
		TagTxo:                 "TXO",
		TagBOF:                 "BOF",
	}

	if name, ok := names[tag]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(0x%04X)", tag)
}
