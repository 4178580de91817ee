package resize

import (
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/chai2010/webp"
	"golang.org/x/image/draw"

	"github.com/zurustar/imsanity/pkg/imagefmt"
)

// Encode は mime の形式で img を書き出す。quality はJPEGとWebPに使う。
func Encode(w io.Writer, img image.Image, mime string, quality int) error {
	switch mime {
	case imagefmt.MIMEJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case imagefmt.MIMEPNG:
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		return enc.Encode(w, img)
	case imagefmt.MIMEGIF:
		return gif.Encode(w, img, &gif.Options{NumColors: 256, Drawer: draw.FloydSteinberg})
	case imagefmt.MIMEWebP:
		return webp.Encode(w, img, &webp.Options{Quality: float32(quality)})
	}
	return fmt.Errorf("%s: %w", mime, ErrUnsupportedOutput)
}

// CanEncode は mime の形式で書き出せるかを返す
func CanEncode(mime string) bool {
	switch mime {
	case imagefmt.MIMEJPEG, imagefmt.MIMEPNG, imagefmt.MIMEGIF, imagefmt.MIMEWebP:
		return true
	}
	return false
}
