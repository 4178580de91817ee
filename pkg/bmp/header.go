package bmp

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// BMP圧縮方式の定数
const (
	biRGB       = 0 // 非圧縮
	biRLE8      = 1 // 8ビットRLE圧縮
	biRLE4      = 2 // 4ビットRLE圧縮
	biBitfields = 3 // ビットフィールド（16ビット）
)

const (
	fileHeaderLen = 14
	infoHeaderLen = 40
	masksLen      = 12

	// "BM" をリトルエンディアンの uint16 として読んだ値
	signature = 19778

	// データ量に関係なく受け付けない画素数
	maxPixels = 1 << 28
)

// FileHeader はBMPファイルヘッダー (14バイト)
type FileHeader struct {
	Type     uint16 // シグネチャ ("BM" = 19778)
	FileSize uint32 // ファイルサイズ
	Reserved uint32 // 予約（無視）
	Offset   uint32 // 画像データへのオフセット
}

// InfoHeader はBMP情報ヘッダー (BITMAPINFOHEADER, 40バイト)
type InfoHeader struct {
	HeaderSize      uint32 // ヘッダーサイズ（40以上。超過分は読み飛ばす）
	Width           int32  // 画像の幅
	Height          int32  // 画像の高さ (負の場合はトップダウン)
	Planes          uint16 // プレーン数（未使用）
	BitCount        uint16 // ビット深度 (1, 4, 8, 16, 24, 32)
	Compression     uint32 // 圧縮方式
	ImageSize       uint32 // 画像データサイズ（0の場合あり）
	XPixelsPerMeter int32  // 水平解像度（未使用）
	YPixelsPerMeter int32  // 垂直解像度（未使用）
	ColorsUsed      uint32 // 使用色数（0の場合は 2^BitCount）
	ColorsImportant uint32 // 重要な色数（未使用）
}

// BitfieldMasks は Compression == 3 の場合に情報ヘッダーの直後に続くマスク
type BitfieldMasks struct {
	Red   uint32
	Green uint32
	Blue  uint32
}

// Header はデコードに必要なヘッダー情報一式
type Header struct {
	File  FileHeader
	Info  InfoHeader
	Masks *BitfieldMasks // Compression == 3 の場合のみ
}

// IsRLE はRLE8またはRLE4で圧縮されているかを返す
func (h *Header) IsRLE() bool {
	return h.Info.Compression == biRLE8 || h.Info.Compression == biRLE4
}

// TopDown は高さが負（トップダウン格納）かを返す
func (h *Header) TopDown() bool {
	return h.Info.Height < 0
}

// Width は画像の幅を返す
func (h *Header) Width() int {
	return int(h.Info.Width)
}

// Height は画像の高さ（絶対値）を返す
func (h *Header) Height() int {
	if h.Info.Height < 0 {
		return -int(h.Info.Height)
	}
	return int(h.Info.Height)
}

// headerBytesRead はファイルヘッダーの後に読んだヘッダーのバイト数（情報ヘッダー+マスク）
func (h *Header) headerBytesRead() int {
	n := infoHeaderLen
	if h.Masks != nil {
		n += masksLen
	}
	return n
}

// paletteOffset はカラーパレットの開始位置を返す。
// 拡張DIBヘッダー（V4/V5）の場合、パレットはヘッダー全体の後ろにある。
func (h *Header) paletteOffset() int {
	n := h.headerBytesRead()
	if int(h.Info.HeaderSize) > n {
		n = int(h.Info.HeaderSize)
	}
	return fileHeaderLen + n
}

// DecodeHeader はBMPのヘッダー部分のみを解析する
func DecodeHeader(data []byte) (*Header, error) {
	r := bytes.NewReader(data)

	var h Header
	if err := binary.Read(r, binary.LittleEndian, &h.File); err != nil {
		return nil, fmt.Errorf("failed to read BMP file header: %w", ErrNotABitmap)
	}
	if h.File.Type != signature {
		return nil, fmt.Errorf("invalid BMP signature %#04x: %w", h.File.Type, ErrNotABitmap)
	}

	if err := binary.Read(r, binary.LittleEndian, &h.Info); err != nil {
		return nil, fmt.Errorf("failed to read BMP info header: %w", ErrUnsupportedHeader)
	}
	if h.Info.HeaderSize < infoHeaderLen {
		return nil, fmt.Errorf("header size %d: %w", h.Info.HeaderSize, ErrUnsupportedHeader)
	}

	// ビットフィールドのマスクを読み込む
	if h.Info.Compression == biBitfields {
		var masks BitfieldMasks
		if err := binary.Read(r, binary.LittleEndian, &masks); err != nil {
			return nil, fmt.Errorf("failed to read BMP bitfield masks: %w", ErrUnsupportedHeader)
		}
		h.Masks = &masks
	}

	width, height := h.Width(), h.Height()
	if width <= 0 || height <= 0 || int64(width)*int64(height) > maxPixels {
		return nil, fmt.Errorf("%dx%d: %w", h.Info.Width, h.Info.Height, ErrInvalidDimensions)
	}

	return &h, nil
}

// IsRLECompressed はBMPがRLE圧縮されているかどうかを判定する。
// BMPでない場合は false を返す。
func IsRLECompressed(data []byte) (bool, error) {
	if len(data) < fileHeaderLen+infoHeaderLen {
		return false, fmt.Errorf("data too short for BMP header")
	}

	// シグネチャを確認
	if binary.LittleEndian.Uint16(data[0:2]) != signature {
		return false, nil
	}

	// 圧縮方式を読み取る（オフセット 30 = 14 + 16）
	compression := binary.LittleEndian.Uint32(data[30:34])
	return compression == biRLE8 || compression == biRLE4, nil
}
