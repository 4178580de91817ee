package bmp

import "encoding/binary"

// 符号付きで格納されたパレットを補正する値 (2^24)
const paletteSignFix = 1 << 24

// Palette はカラーパレット。各要素はBGR0の32ビット値を符号付きで読んだもの。
type Palette []int64

// RGB はインデックスの色を返す。範囲外のインデックスは黒になる。
func (p Palette) RGB(i int) uint32 {
	if i < 0 || i >= len(p) {
		return 0
	}
	return uint32(p[i]) & 0xFFFFFF
}

// readPalette は data[off:] から colors 個のパレットエントリーを読み込む。
// データが足りない場合は読めた分だけのパレットを返す。
//
// 先頭エントリーが負の場合は、全エントリーに 2^24 を加算する。
// 判定は先頭エントリーの1回だけで、補正はパレット全体に一律に適用する。
func readPalette(data []byte, off, colors int) Palette {
	if off < 0 || off >= len(data) || colors <= 0 {
		return Palette{}
	}
	avail := (len(data) - off) / 4
	if colors > avail {
		colors = avail
	}

	p := make(Palette, colors)
	for i := range p {
		p[i] = int64(int32(binary.LittleEndian.Uint32(data[off+i*4:])))
	}

	if len(p) > 0 && p[0] < 0 {
		for i := range p {
			p[i] += paletteSignFix
		}
	}
	return p
}
