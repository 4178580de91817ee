// Package imagefmt はアップロードされた画像の形式判定、サイズ取得、デコードを行う。
package imagefmt

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	xbmp "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/zurustar/imsanity/pkg/bmp"
	"github.com/zurustar/imsanity/pkg/logger"
)

// MIMEタイプ
const (
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
	MIMEGIF  = "image/gif"
	MIMEBMP  = "image/bmp"
	MIMEWebP = "image/webp"
	MIMEAVIF = "image/avif"
	MIMEPDF  = "application/pdf"
)

// 形式判定に読み込むバイト数
const sniffLen = 4096

var (
	// ErrUnknownFormat は形式を判定できない場合のエラー
	ErrUnknownFormat = errors.New("imagefmt: unknown image format")

	// ErrNotPNG は PNG 以外のファイルでアルファ判定をしようとした場合のエラー
	ErrNotPNG = errors.New("imagefmt: not a PNG image")
)

// QuickMIME は拡張子からMIMEタイプを返す。不明な場合は空文字列。
func QuickMIME(path string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "jpg", "jpeg", "jpe":
		return MIMEJPEG
	case "png":
		return MIMEPNG
	case "gif":
		return MIMEGIF
	case "bmp":
		return MIMEBMP
	case "webp":
		return MIMEWebP
	case "avif":
		return MIMEAVIF
	case "pdf":
		return MIMEPDF
	}
	return ""
}

// SniffMIME はマジックナンバーからMIMEタイプを返す。
// 対応していない形式（APNGはPNGとして扱う）は空文字列。
func SniffMIME(data []byte) string {
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if known[m.String()] {
			return m.String()
		}
	}
	return ""
}

var known = map[string]bool{
	MIMEJPEG: true,
	MIMEPNG:  true,
	MIMEGIF:  true,
	MIMEBMP:  true,
	MIMEWebP: true,
	MIMEAVIF: true,
	MIMEPDF:  true,
}

// DetectMIME はファイルの先頭を読んでMIMEタイプを判定する
func DetectMIME(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	mime := SniffMIME(head[:n])
	if mime == "" {
		return "", fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	}
	return mime, nil
}

// ExtensionFor はMIMEタイプに対応する拡張子（ドットなし）を返す
func ExtensionFor(mime string) string {
	switch mime {
	case MIMEJPEG:
		return "jpg"
	case MIMEPNG:
		return "png"
	case MIMEGIF:
		return "gif"
	case MIMEBMP:
		return "bmp"
	case MIMEWebP:
		return "webp"
	case MIMEAVIF:
		return "avif"
	}
	return ""
}

// Dimensions は画像の幅と高さを返す。
// 標準のデコーダーが読めないBMP（RLE、16ビットなど）はヘッダーから取得する。
func Dimensions(path string) (int, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err == nil {
		return cfg.Width, cfg.Height, nil
	}

	if SniffMIME(data) == MIMEBMP {
		h, herr := bmp.DecodeHeader(data)
		if herr != nil {
			return 0, 0, fmt.Errorf("failed to read dimensions of %s: %w", path, herr)
		}
		return h.Width(), h.Height(), nil
	}
	return 0, 0, fmt.Errorf("failed to read dimensions of %s: %w", path, err)
}

// Decode は画像ファイルをデコードし、画像とMIMEタイプを返す。
//
// 画像はEXIFの向きに合わせて回転済みで返す。
// BMPはまず golang.org/x/image/bmp で読み、対応していない形式の場合は
// pkg/bmp にフォールバックする。データ不足の部分画像は警告を出して受け入れる。
func Decode(path string) (image.Image, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	mime := SniffMIME(data)
	if mime == MIMEBMP {
		img, err := decodeBMP(data, path)
		return img, mime, err
	}

	// JPEGはEXIFの向きを適用する
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, mime, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, mime, nil
}

func decodeBMP(data []byte, path string) (image.Image, error) {
	log := logger.Component("imagefmt")

	// golang.org/x/image/bmp はRLE圧縮に対応していない
	if rle, _ := bmp.IsRLECompressed(data); rle {
		log.Debug("RLE compressed BMP, using bundled decoder", "path", path)
	} else {
		img, err := xbmp.Decode(bytes.NewReader(data))
		if err == nil {
			return img, nil
		}
		log.Debug("falling back to bundled BMP decoder", "path", path, "reason", err)
	}

	bm, err := bmp.NewDecoder(bmp.WithLogger(log)).DecodeBytes(data)
	if errors.Is(err, bmp.ErrTruncatedData) {
		log.Warn("using partially decoded BMP", "path", path, "error", err)
		return bm, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return bm, nil
}

// HasAlpha はPNG画像が透過を含むかを返す。
// 透過色を持つパレット、またはアルファが255未満のピクセルがあれば true。
func HasAlpha(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if SniffMIME(data) != MIMEPNG {
		return false, fmt.Errorf("%s: %w", path, ErrNotPNG)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	if p, ok := img.(*image.Paletted); ok {
		for _, c := range p.Palette {
			if _, _, _, a := c.RGBA(); a != 0xFFFF {
				return true, nil
			}
		}
		return false, nil
	}

	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque(), nil
	}

	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0xFFFF {
				return true, nil
			}
		}
	}
	return false, nil
}
