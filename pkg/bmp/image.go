package bmp

import (
	"image"
	"image/color"
)

// Image はデコード結果のピクセルグリッド。
// (0, 0) が左上で、Pix は行優先に 0x00RRGGBB を格納する。
type Image struct {
	Width   int
	Height  int
	Pix     []uint32
	Header  Header
	Palette Palette
}

func newImage(h *Header, palette Palette) *Image {
	width, height := h.Width(), h.Height()
	return &Image{
		Width:   width,
		Height:  height,
		Pix:     make([]uint32, width*height),
		Header:  *h,
		Palette: palette,
	}
}

// ColorModel implements image.Image.
func (m *Image) ColorModel() color.Model {
	return color.RGBAModel
}

// Bounds implements image.Image.
func (m *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.Width, m.Height)
}

// At implements image.Image. BMPのアルファは無視するため常に不透明。
func (m *Image) At(x, y int) color.Color {
	r, g, b := m.RGBAt(x, y)
	return color.RGBA{R: r, G: g, B: b, A: 0xFF}
}

// RGBAt は (x, y) のRGB値を返す。範囲外は黒。
func (m *Image) RGBAt(x, y int) (r, g, b uint8) {
	if !(image.Point{X: x, Y: y}.In(m.Bounds())) {
		return 0, 0, 0
	}
	v := m.Pix[y*m.Width+x]
	return uint8(v >> 16), uint8(v >> 8), uint8(v)
}

