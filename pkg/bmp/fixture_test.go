package bmp

import (
	"bytes"
	"encoding/binary"
)

// testBMP はテスト用のBMPファイルを組み立てる
type testBMP struct {
	sig         [2]byte // ゼロ値なら "BM"
	width       int32
	height      int32
	bits        uint16
	compression uint32
	imageSize   uint32
	fileSize    *uint32 // nil なら実際の長さ
	colors      uint32
	headerSize  uint32 // 0 なら 40
	masks       *BitfieldMasks
	palette     []uint32
	pixels      []byte
}

func u32(v uint32) *uint32 { return &v }

func (b testBMP) bytes() []byte {
	headerSize := b.headerSize
	if headerSize == 0 {
		headerSize = infoHeaderLen
	}
	headerArea := int(headerSize)
	if b.masks != nil && headerArea < infoHeaderLen+masksLen {
		headerArea = infoHeaderLen + masksLen
	}
	offset := fileHeaderLen + headerArea + len(b.palette)*4
	total := offset + len(b.pixels)

	sig := b.sig
	if sig == [2]byte{} {
		sig = [2]byte{'B', 'M'}
	}
	fileSize := uint32(total)
	if b.fileSize != nil {
		fileSize = *b.fileSize
	}

	var buf bytes.Buffer
	buf.Write(sig[:])
	binary.Write(&buf, binary.LittleEndian, fileSize)
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	binary.Write(&buf, binary.LittleEndian, uint32(offset))

	binary.Write(&buf, binary.LittleEndian, InfoHeader{
		HeaderSize:  headerSize,
		Width:       b.width,
		Height:      b.height,
		Planes:      1,
		BitCount:    b.bits,
		Compression: b.compression,
		ImageSize:   b.imageSize,
		ColorsUsed:  b.colors,
	})
	if b.masks != nil {
		binary.Write(&buf, binary.LittleEndian, *b.masks)
	}
	// 拡張ヘッダーの残りを0で埋める
	for buf.Len() < fileHeaderLen+headerArea {
		buf.WriteByte(0)
	}
	for _, c := range b.palette {
		binary.Write(&buf, binary.LittleEndian, c)
	}
	buf.Write(b.pixels)
	return buf.Bytes()
}
