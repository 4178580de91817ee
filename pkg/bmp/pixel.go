package bmp

import "encoding/binary"

// 565形式を示す赤マスク
const mask565Red = 0xF800

// rowPaddingBits は1行のビット数を32ビット（4バイト）境界に揃えるためのパディングビット数
func rowPaddingBits(width, bits int) int {
	return (32 - (width*bits)%32) % 32
}

// rowStride はパディングを含む1行のバイト数
func rowStride(width, bits int) int {
	return (width*bits + rowPaddingBits(width, bits)) / 8
}

// resolvePixel はビット位置 pos のピクセルを 0x00RRGGBB に解決する。
// 必要なバイトがデータに無い場合は ok = false を返す。
func resolvePixel(data []byte, pos, bits int, masks *BitfieldMasks, palette Palette) (v uint32, ok bool) {
	i := pos / 8

	switch bits {
	case 32, 24:
		// B, G, R の3バイトのみ読む（32ビットの4バイト目は無視）
		if i+3 > len(data) {
			return 0, false
		}
		return uint32(data[i]) | uint32(data[i+1])<<8 | uint32(data[i+2])<<16, true

	case 16:
		if i+2 > len(data) {
			return 0, false
		}
		c := uint32(binary.LittleEndian.Uint16(data[i:]))
		if masks == nil || masks.Red != mask565Red {
			// 555
			return (c&0x7C00)>>7<<16 | (c&0x03E0)>>2<<8 | (c&0x001F)<<3, true
		}
		// 565
		return (c&0xF800)>>8<<16 | (c&0x07E0)>>3<<8 | (c&0x001F)<<3, true

	case 8:
		if i >= len(data) {
			return 0, false
		}
		return palette.RGB(int(data[i])), true

	case 4:
		if i >= len(data) {
			return 0, false
		}
		idx := data[i] & 0x0F
		if (pos/4)%2 == 0 {
			idx = data[i] >> 4
		}
		return palette.RGB(int(idx)), true

	case 1:
		if i >= len(data) {
			return 0, false
		}
		// MSBが先頭のピクセル
		idx := (data[i] >> (7 - uint(pos%8))) & 0x01
		return palette.RGB(int(idx)), true
	}

	return 0, false
}
