// Package fileutil provides file system helpers for the upload directory.
package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ErrFileNotFound はファイルが見つからない場合のエラー
var ErrFileNotFound = errors.New("file not found")

// scaledSuffix は大きな画像をアップロードした際に付けられる接尾辞
const scaledSuffix = "-scaled"

// FindFileCaseInsensitive searches for a file with the given name in the specified directory.
// The search is case-insensitive, which is useful for cross-platform compatibility.
//
// Example:
//
//	path, err := FindFileCaseInsensitive("/uploads/2024/05", "Photo.JPG")
//	// Will find "photo.jpg", "PHOTO.JPG", "Photo.jpg", etc.
func FindFileCaseInsensitive(dir, filename string) (string, error) {
	searchName := strings.ToLower(filename)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.ToLower(entry.Name()) == searchName {
			return filepath.Join(dir, entry.Name()), nil
		}
	}

	return "", fmt.Errorf("%s (searched in %s): %w", filename, dir, ErrFileNotFound)
}

// exists は大文字小文字を無視して dir に name が存在するかを返す
func exists(dir, name string) bool {
	_, err := FindFileCaseInsensitive(dir, name)
	return err == nil
}

// UniqueFilename は dir 内で重複しないファイル名を返す。
// 既に存在する場合は拡張子の前に -1, -2, ... を付ける。
//
// Example:
//
//	UniqueFilename("/uploads", "photo.jpg") // "photo-1.jpg" (photo.jpg が既にある場合)
func UniqueFilename(dir, name string) string {
	if !exists(dir, name) {
		return name
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate := base + "-" + strconv.Itoa(i) + ext
		if !exists(dir, candidate) {
			return candidate
		}
	}
}

// CollectImages は paths に含まれるファイルとディレクトリ（再帰）から
// 拡張子が exts のいずれかに一致するファイルを集める。
// 結果は重複を除き、新しいものから処理できるよう逆順に並べる。
func CollectImages(paths []string, exts []string) ([]string, error) {
	allowed := make(map[string]bool, len(exts))
	for _, ext := range exts {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}
	match := func(path string) bool {
		return allowed[strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))]
	}

	seen := make(map[string]bool)
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", root, err)
		}

		if !info.IsDir() {
			if match(root) {
				seen[filepath.Clean(root)] = true
			}
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.Type().IsRegular() && match(path) {
				seen[path] = true
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", root, err)
		}
	}

	files := make([]string, 0, len(seen))
	for path := range seen {
		files = append(files, path)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(files)))
	return files, nil
}

// OriginalFor は "photo-scaled.jpg" に対応する元画像 "photo.jpg" が
// 存在する場合にそのパスを返す。
func OriginalFor(path string) (string, bool) {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	if !strings.HasSuffix(base, scaledSuffix) {
		return "", false
	}

	original := strings.TrimSuffix(base, scaledSuffix) + ext
	info, err := os.Stat(original)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return original, true
}

// ScaledFor は元画像 "photo.jpg" に対応する "photo-scaled.jpg" が
// 存在する場合にそのパスを返す。OriginalFor の逆。
func ScaledFor(path string) (string, bool) {
	ext := filepath.Ext(path)
	scaled := strings.TrimSuffix(path, ext) + scaledSuffix + ext
	info, err := os.Stat(scaled)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return scaled, true
}

// IsWritable はファイルを書き込み用に開けるかを返す（内容は変更しない）
func IsWritable(path string) bool {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// ReplaceExt はパスの拡張子を ext に置き換える
func ReplaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + "." + strings.TrimPrefix(ext, ".")
}
