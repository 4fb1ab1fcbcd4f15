package workbook

import (
	"encoding/binary"
	"fmt"

	"github.com/roboco-io/xlsdraw/internal/escher"
)

// 기본 팔레트 (BIFF8). 0-7은 고정 색상, 8부터 PALETTE 레코드로 덮어쓸 수 있음.
var defaultPalette = []uint32{
	0x000000, 0xFFFFFF, 0xFF0000, 0x00FF00, 0x0000FF, 0xFFFF00, 0xFF00FF, 0x00FFFF,
	0x000000, 0xFFFFFF, 0xFF0000, 0x00FF00, 0x0000FF, 0xFFFF00, 0xFF00FF, 0x00FFFF,
	0x800000, 0x008000, 0x000080, 0x808000, 0x800080, 0x008080, 0xC0C0C0, 0x808080,
	0x9999FF, 0x993366, 0xFFFFCC, 0xCCFFFF, 0x660066, 0xFF8080, 0x0066CC, 0xCCCCFF,
	0x000080, 0xFF00FF, 0xFFFF00, 0x00FFFF, 0x800080, 0x800000, 0x008080, 0x0000FF,
	0x00CCFF, 0xCCFFFF, 0xCCFFCC, 0xFFFF99, 0x99CCFF, 0xFF99CC, 0xCC99FF, 0xFFCC99,
	0x3366FF, 0x33CCCC, 0x99CC00, 0xFFCC00, 0xFF9900, 0xFF6600, 0x666699, 0x969696,
	0x003366, 0x339966, 0x003300, 0x333300, 0x993300, 0x993366, 0x333399, 0x333333,
}

// 사용자 정의 색상이 시작되는 인덱스
const paletteCustomStart = 8

func newPalette() []escher.RGB {
	p := make([]escher.RGB, len(defaultPalette))
	for i, c := range defaultPalette {
		p[i] = escher.RGB{R: uint8(c >> 16), G: uint8(c >> 8), B: uint8(c)}
	}
	return p
}

// applyPaletteRecord overrides the custom colors with a PALETTE payload.
// 구조: [ccv:2][rgb:4]*ccv
func applyPaletteRecord(p []escher.RGB, data []byte) error {
	if len(data) < 2 {
		return fmt.Errorf("PALETTE 레코드가 너무 짧습니다")
	}
	count := int(binary.LittleEndian.Uint16(data))
	if len(data) < 2+4*count {
		return fmt.Errorf("PALETTE 레코드가 잘렸습니다: 색상 %d개, %d바이트", count, len(data))
	}
	for i := range count {
		idx := paletteCustomStart + i
		if idx >= len(p) {
			break
		}
		c := data[2+4*i:]
		p[idx] = escher.RGB{R: c[0], G: c[1], B: c[2]}
	}
	return nil
}
