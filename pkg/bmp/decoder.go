// Package bmp provides a Windows BMP decoder that also handles the files
// the standard decoders reject (RLE8/RLE4, 1/4/16-bit, bit-field masks).
//
// アップロードされたBMPをJPEGに変換するためのデコーダー。
// 画像サイズの補完、符号付きパレットの補正、途中で切れたデータの
// 部分デコードなど、古いエンコーダーが出力するファイルにも対応する。
package bmp

import (
	"fmt"
	"io"
	"log/slog"
)

// RowOrder はデコードした行を出力画像のどの行に書き込むかを表す
type RowOrder int

const (
	// RowOrderImage は格納順の最初の行（ボトムアップでは最下行）を
	// 出力画像の最下行に書き込む。左上原点の通常の画像になる。
	RowOrderImage RowOrder = iota

	// RowOrderStorage は格納順のi番目の行を出力画像のi行目に書き込む。
	// ボトムアップのBMPでは上下が反転した画像になる。
	RowOrderStorage
)

func (o RowOrder) String() string {
	switch o {
	case RowOrderImage:
		return "image"
	case RowOrderStorage:
		return "storage"
	}
	return fmt.Sprintf("RowOrder(%d)", int(o))
}

// Option は Decoder の設定
type Option func(*Decoder)

// WithRowOrder は行の書き込み順を設定する
func WithRowOrder(o RowOrder) Option {
	return func(d *Decoder) {
		d.rowOrder = o
	}
}

// WithLogger はデータ不足などの警告を出力するロガーを設定する
func WithLogger(log *slog.Logger) Option {
	return func(d *Decoder) {
		if log != nil {
			d.log = log
		}
	}
}

// Decoder はBMPデコーダー。状態を持たないため並行に使用できる。
type Decoder struct {
	rowOrder RowOrder
	log      *slog.Logger
}

// NewDecoder は新しい Decoder を作成する
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{
		rowOrder: RowOrderImage,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode はデフォルト設定の Decoder で r をデコードする
func Decode(r io.Reader) (*Image, error) {
	return NewDecoder().Decode(r)
}

// DecodeBytes はデフォルト設定の Decoder で data をデコードする
func DecodeBytes(data []byte) (*Image, error) {
	return NewDecoder().DecodeBytes(data)
}

// Decode は r の内容をすべて読み込んでデコードする
func (d *Decoder) Decode(r io.Reader) (*Image, error) {
	if r == nil {
		return nil, fmt.Errorf("nil reader: %w", ErrNotReadable)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotReadable, err)
	}
	return d.DecodeBytes(data)
}

// DecodeBytes はBMPファイルのバイト列をデコードする。
//
// ピクセルデータが途中で尽きた場合は、そこまでの画像と ErrTruncatedData を返す。
// それ以外のエラーでは画像は nil になる。
func (d *Decoder) DecodeBytes(data []byte) (*Image, error) {
	h, err := DecodeHeader(data)
	if err != nil {
		return nil, err
	}

	// 画像データサイズを決定する
	offset := int64(h.File.Offset)
	imageSize := int64(h.Info.ImageSize)
	if imageSize < 1 {
		imageSize = int64(h.File.FileSize) - offset
		if imageSize < 1 {
			// ファイルサイズとオフセットが等しい場合があるため実際の長さを使う
			imageSize = int64(len(data)) - offset
			if imageSize < 1 {
				return nil, fmt.Errorf("offset %d, length %d: %w", offset, len(data), ErrCannotDetermineSize)
			}
		}
	}

	bits := int(h.Info.BitCount)
	switch bits {
	case 1, 4, 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%d bits: %w", bits, ErrUnsupportedBitDepth)
	}

	// カラーパレットを読み込む
	var palette Palette
	if bits < 16 {
		colors := int(h.Info.ColorsUsed)
		if colors == 0 {
			colors = 1 << bits
		}
		palette = readPalette(data, h.paletteOffset(), colors)
	}

	pixels := region(data, offset, imageSize)
	if n := int64(h.Width()) * int64(h.Height()); n > pixelBudget(h, bits, len(pixels)) {
		return nil, fmt.Errorf("%dx%d with %d bytes of pixel data: %w", h.Width(), h.Height(), len(pixels), ErrInvalidDimensions)
	}

	switch h.Info.Compression {
	case biRLE8:
		pixels = decodeRLE8(pixels, h.Width())
	case biRLE4:
		pixels = decodeRLE4(pixels, h.Width())
	}

	img := newImage(h, palette)
	if err := d.fill(img, h, pixels, bits); err != nil {
		d.log.Warn("BMP has not enough data, returning partial image",
			"width", img.Width,
			"height", img.Height,
			"bits", bits,
			"compression", h.Info.Compression,
			"error", err)
		return img, err
	}

	return img, nil
}

// fill はピクセルデータを格納順（ボトムアップなら下の行から）に読んで img に書き込む
func (d *Decoder) fill(img *Image, h *Header, pixels []byte, bits int) error {
	width, height := img.Width, img.Height
	pad := rowPaddingBits(width, bits)

	pos := 0 // ビット単位のカーソル
	for i := 0; i < height; i++ {
		y := d.destRow(h, i, height)
		row := img.Pix[y*width : (y+1)*width]
		for x := range row {
			v, ok := resolvePixel(pixels, pos, bits, h.Masks, img.Palette)
			if !ok {
				return fmt.Errorf("stored row %d, column %d: %w", i, x, ErrTruncatedData)
			}
			row[x] = v
			pos += bits
		}
		pos += pad
	}
	return nil
}

// destRow は格納順で i 番目の行を書き込む出力画像の行を返す
func (d *Decoder) destRow(h *Header, i, height int) int {
	if d.rowOrder == RowOrderStorage || h.TopDown() {
		return i
	}
	return height - 1 - i
}

// ピクセルデータの量に見合わないサイズの画像は確保しない
const (
	minPixelBudget   = 1 << 22 // これ以下なら途中で切れたデータでも部分画像を返す
	rawSlack         = 4       // 非圧縮: 宣言サイズの1/4以上のデータがあれば受け付ける
	rlePixelsPerByte = 255     // RLE: 1バイトあたりに許容する展開ピクセル数
)

// pixelBudget は available バイトのピクセルデータから確保してよい最大ピクセル数を返す
func pixelBudget(h *Header, bits, available int) int64 {
	var n int64
	if h.IsRLE() {
		n = int64(available) * rlePixelsPerByte
	} else {
		n = int64(available) * 8 / int64(bits) * rawSlack
	}
	return minPixelBudget + n
}

// region は data[offset:offset+size] を範囲内に切り詰めて返す
func region(data []byte, offset, size int64) []byte {
	n := int64(len(data))
	if offset >= n {
		return nil
	}
	end := offset + size
	if end > n {
		end = n
	}
	return data[offset:end]
}
