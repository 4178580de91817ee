package bmp

import "errors"

var (
	// ErrNotReadable は入力を読み取れない場合のエラー
	ErrNotReadable = errors.New("bmp: input not readable")

	// ErrNotABitmap はファイルヘッダーのシグネチャが "BM" でない場合のエラー
	ErrNotABitmap = errors.New("bmp: not a bitmap")

	// ErrCannotDetermineSize は画像データサイズがどの方法でも決定できない場合のエラー
	ErrCannotDetermineSize = errors.New("bmp: cannot determine image data size")

	// ErrUnsupportedBitDepth は 1/4/8/16/24/32 以外のビット深度のエラー
	ErrUnsupportedBitDepth = errors.New("bmp: unsupported bit depth")

	// ErrUnsupportedHeader は40バイト未満のDIBヘッダー（OS/2 コアヘッダー等）のエラー
	ErrUnsupportedHeader = errors.New("bmp: unsupported DIB header")

	// ErrInvalidDimensions は幅・高さが不正、または大きすぎる場合のエラー
	ErrInvalidDimensions = errors.New("bmp: invalid dimensions")

	// ErrTruncatedData はピクセルデータが途中で尽きた場合のエラー。
	// このエラーの場合のみ、途中までデコードした画像も一緒に返される。
	ErrTruncatedData = errors.New("bmp: not enough pixel data")
)
