package resize

import "errors"

var (
	// ErrUnsupportedOutput は再エンコードできない出力形式（AVIF、BMP）
	ErrUnsupportedOutput = errors.New("resize: unsupported output format")

	// ErrConversionFailed はJPEGへの変換に失敗した場合のエラー
	ErrConversionFailed = errors.New("resize: conversion to JPEG failed")

	// ErrResizeFailed はリサイズに失敗した場合のエラー
	ErrResizeFailed = errors.New("resize: unable to resize image")
)
