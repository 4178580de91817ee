package resize

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

// Scale は src を w x h に縮小した画像を返す。
// crop が有効な場合は、先に目標の縦横比で中央を切り出す。
func Scale(src image.Image, w, h int, crop bool) *image.RGBA {
	sr := src.Bounds()
	if crop {
		sr = cropRect(sr, w, h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, sr, draw.Src, nil)
	return dst
}

// cropRect は b の中央から w:h の縦横比の領域を返す
func cropRect(b image.Rectangle, w, h int) image.Rectangle {
	ow, oh := b.Dx(), b.Dy()
	ratio := math.Max(float64(w)/float64(ow), float64(h)/float64(oh))

	cw := min(ow, round(float64(w)/ratio))
	ch := min(oh, round(float64(h)/ratio))
	x := b.Min.X + (ow-cw)/2
	y := b.Min.Y + (oh-ch)/2
	return image.Rect(x, y, x+cw, y+ch)
}

// Flatten は透過部分を白で塗りつぶした不透明な画像を返す
func Flatten(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	return dst
}
