// Package escher implements the drawing record graph of the BIFF8 workbook
// format: a tree of self-describing records (containers and data leaves)
// describing shapes, their properties, anchors and the shared image catalog.
package escher

import (
	"encoding/binary"
	"fmt"
)

const (
	// HeaderSize is the size of a drawing record header.
	HeaderSize = 8

	// ContainerVersion in the version nibble marks a container record.
	ContainerVersion = 0xF

	// MaxRecordLength bounds the declared length of a single drawing record.
	MaxRecordLength = 0x10000000
)

// Record tags.
const (
	TagDggContainer    uint16 = 0xF000
	TagBStoreContainer uint16 = 0xF001
	TagDgContainer     uint16 = 0xF002
	TagSpgrContainer   uint16 = 0xF003
	TagSpContainer     uint16 = 0xF004
	TagSolverContainer uint16 = 0xF005
	TagDgg             uint16 = 0xF006
	TagBSE             uint16 = 0xF007
	TagDg              uint16 = 0xF008
	TagSpgr            uint16 = 0xF009
	TagSp              uint16 = 0xF00A
	TagOPT             uint16 = 0xF00B
	TagTextbox         uint16 = 0xF00C
	TagClientTextbox   uint16 = 0xF00D
	TagAnchor          uint16 = 0xF00E
	TagChildAnchor     uint16 = 0xF00F
	TagClientAnchor    uint16 = 0xF010
	TagClientData      uint16 = 0xF011
	TagConnectorRule   uint16 = 0xF012
	TagAlignRule       uint16 = 0xF013
	TagArcRule         uint16 = 0xF014
	TagClientRule      uint16 = 0xF015
	TagCalloutRule     uint16 = 0xF017
	TagBlipFirst       uint16 = 0xF018
	TagBlipLast        uint16 = 0xF117
	TagRegroupItems    uint16 = 0xF118
	TagSelection       uint16 = 0xF119
	TagColorMRU        uint16 = 0xF11A
	TagDeletedPspl     uint16 = 0xF11D
	TagSplitMenuColors uint16 = 0xF11E
	TagOleObject       uint16 = 0xF11F
	TagColorScheme     uint16 = 0xF120
	TagTertiaryOPT     uint16 = 0xF122
)

// Header is the 8-byte drawing record header.
// 구조: [Version:4비트][Instance:12비트][Tag:16비트][Length:32비트]
type Header struct {
	Version  uint8
	Instance uint16
	Tag      uint16
	Length   int
}

// ParseHeader decodes and validates a drawing record header.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, newInvalidDataError("incomplete drawing record header: %d bytes", len(data))
	}

	preamble := binary.LittleEndian.Uint16(data[0:2])
	length := binary.LittleEndian.Uint32(data[4:8])
	if length > MaxRecordLength {
		return Header{}, newInvalidDataError("drawing record 0x%04X declares %d bytes (max %d)",
			binary.LittleEndian.Uint16(data[2:4]), length, MaxRecordLength)
	}

	return Header{
		Version:  uint8(preamble & 0x0F),
		Instance: preamble >> 4,
		Tag:      binary.LittleEndian.Uint16(data[2:4]),
		Length:   int(length),
	}, nil
}

// Preamble packs version and instance.
func (h Header) Preamble() uint16 {
	return uint16(h.Version&0x0F) | h.Instance<<4
}

// IsContainer reports whether the header announces a container record.
func (h Header) IsContainer() bool {
	return h.Version == ContainerVersion
}

// Put encodes the header with the given payload length into dst.
func (h Header) Put(dst []byte, length int) {
	binary.LittleEndian.PutUint16(dst[0:2], h.Preamble())
	binary.LittleEndian.PutUint16(dst[2:4], h.Tag)
	binary.LittleEndian.PutUint32(dst[4:8], uint32(length))
}

func (h Header) String() string {
	return fmt.Sprintf("%s ver=%d inst=%d len=%d", TagName(h.Tag), h.Version, h.Instance, h.Length)
}

// TagName returns the human-readable name for a drawing record tag.
func TagName(tag uint16) string {
	names := map[uint16]string{
		TagDggContainer:    "DggContainer",
		TagBStoreContainer: "BStoreContainer",
		TagDgContainer:     "DgContainer",
		TagSpgrContainer:   "SpgrContainer",
		TagSpContainer:     "SpContainer",
		TagSolverContainer: "SolverContainer",
		TagDgg:             "Dgg",
		TagBSE:             "BSE",
		TagDg:              "Dg",
		TagSpgr:            "Spgr",
		TagSp:              "Sp",
		TagOPT:             "OPT",
		TagTextbox:         "Textbox",
		TagClientTextbox:   "ClientTextbox",
		TagAnchor:          "Anchor",
		TagChildAnchor:     "ChildAnchor",
		TagClientAnchor:    "ClientAnchor",
		TagClientData:      "ClientData",
		TagConnectorRule:   "ConnectorRule",
		TagAlignRule:       "AlignRule",
		TagArcRule:         "ArcRule",
		TagClientRule:      "ClientRule",
		TagCalloutRule:     "CalloutRule",
		TagRegroupItems:    "RegroupItems",
		TagSelection:       "Selection",
		TagColorMRU:        "ColorMRU",
		TagDeletedPspl:     "DeletedPspl",
		TagSplitMenuColors: "SplitMenuColors",
		TagOleObject:       "OleObject",
		TagColorScheme:     "ColorScheme",
		TagTertiaryOPT:     "TertiaryOPT",
	}

	if name, ok := names[tag]; ok {
		return name
	}
	if tag >= TagBlipFirst && tag <= TagBlipLast {
		return fmt.Sprintf("Blip(%d)", tag-TagBlipFirst)
	}
	return fmt.Sprintf("UNKNOWN(0x%04X)", tag)
}
