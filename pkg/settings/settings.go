// Package settings はリサイズの設定を管理する。
// サイト単位の設定と、マルチサイトのネットワーク設定による上書きに対応する。
package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/zurustar/imsanity/pkg/imagefmt"
)

// デフォルト値
const (
	DefaultMaxWidth  = 1920
	DefaultMaxHeight = 1920
	DefaultBMPToJPG  = true
	DefaultPNGToJPG  = false
	DefaultQuality   = 82

	// maxJPEGQuality は画像エディターに渡す品質の上限
	maxJPEGQuality = 92
)

var (
	// ErrInvalidQuality は品質が1-100の範囲外の場合のエラー
	ErrInvalidQuality = errors.New("settings: quality must be between 1 and 100")

	// ErrInvalidDimension は最大サイズが負の場合のエラー
	ErrInvalidDimension = errors.New("settings: max dimensions must not be negative")

	// ErrInvalidSource は不明なアップロード元の場合のエラー
	ErrInvalidSource = errors.New("settings: invalid source")
)

// Source は画像のアップロード元
type Source int

const (
	// SourcePost は投稿・ページの編集画面からのアップロード
	SourcePost Source = 1
	// SourceLibrary はメディアライブラリからのアップロード
	SourceLibrary Source = 2
	// SourceOther はそれ以外（テーマ、プラグインなど）
	SourceOther Source = 4
)

func (s Source) String() string {
	switch s {
	case SourcePost:
		return "post"
	case SourceLibrary:
		return "library"
	case SourceOther:
		return "other"
	}
	return fmt.Sprintf("Source(%d)", int(s))
}

// ParseSource はアップロード元の名前を Source に変換する
func ParseSource(name string) (Source, error) {
	switch strings.ToLower(name) {
	case "post":
		return SourcePost, nil
	case "library":
		return SourceLibrary, nil
	case "other":
		return SourceOther, nil
	}
	return 0, fmt.Errorf("%q: %w", name, ErrInvalidSource)
}

// Settings はリサイズの設定。最大サイズの0は無制限を表す。
type Settings struct {
	MaxWidth         int      `json:"max_width"`
	MaxHeight        int      `json:"max_height"`
	MaxWidthLibrary  int      `json:"max_width_library"`
	MaxHeightLibrary int      `json:"max_height_library"`
	MaxWidthOther    int      `json:"max_width_other"`
	MaxHeightOther   int      `json:"max_height_other"`
	BMPToJPG         bool     `json:"bmp_to_jpg"`
	PNGToJPG         bool     `json:"png_to_jpg"`
	Quality          int      `json:"quality"`
	DeleteOriginals  bool     `json:"delete_originals"`
	Crop             bool     `json:"crop"`
	AllowedMIMEs     []string `json:"allowed_mimes"`
}

// Defaults はデフォルト設定を返す
func Defaults() Settings {
	return Settings{
		MaxWidth:         DefaultMaxWidth,
		MaxHeight:        DefaultMaxHeight,
		MaxWidthLibrary:  DefaultMaxWidth,
		MaxHeightLibrary: DefaultMaxHeight,
		MaxWidthOther:    DefaultMaxWidth,
		MaxHeightOther:   DefaultMaxHeight,
		BMPToJPG:         DefaultBMPToJPG,
		PNGToJPG:         DefaultPNGToJPG,
		Quality:          DefaultQuality,
		AllowedMIMEs:     []string{imagefmt.MIMEPNG, imagefmt.MIMEGIF, imagefmt.MIMEJPEG},
	}
}

// Validate は設定値の範囲を検証する
func (s Settings) Validate() error {
	if s.Quality < 1 || s.Quality > 100 {
		return fmt.Errorf("quality %d: %w", s.Quality, ErrInvalidQuality)
	}
	dims := []int{s.MaxWidth, s.MaxHeight, s.MaxWidthLibrary, s.MaxHeightLibrary, s.MaxWidthOther, s.MaxHeightOther}
	for _, d := range dims {
		if d < 0 {
			return fmt.Errorf("dimension %d: %w", d, ErrInvalidDimension)
		}
	}
	return nil
}

// MaxDimensions はアップロード元に応じた最大の幅と高さを返す
func (s Settings) MaxDimensions(src Source) (int, int) {
	switch src {
	case SourcePost:
		return s.MaxWidth, s.MaxHeight
	case SourceLibrary:
		return s.MaxWidthLibrary, s.MaxHeightLibrary
	}
	return s.MaxWidthOther, s.MaxHeightOther
}

// JPEGQuality は画像エディターに渡すJPEG品質を返す（上限92）
func (s Settings) JPEGQuality() int {
	return min(maxJPEGQuality, s.Quality)
}

// Allows はMIMEタイプがリサイズ対象かを返す
func (s Settings) Allows(mime string) bool {
	for _, m := range s.AllowedMIMEs {
		if m == mime {
			return true
		}
	}
	return false
}

// Network はネットワーク（マルチサイト全体）の設定
type Network struct {
	Settings
	// OverrideSite が true の場合、各サイトの設定よりネットワーク設定を優先する
	OverrideSite bool `json:"override_site"`
}

// File は設定ファイルの内容
type File struct {
	Network *Network  `json:"network,omitempty"`
	Site    *Settings `json:"site,omitempty"`
}

// Resolve はネットワーク設定による上書きを適用した設定を返す。
// サイトの設定が無い場合は、ネットワーク設定（無ければデフォルト）を使う。
func (f File) Resolve() Settings {
	if f.Network != nil && f.Network.OverrideSite {
		return f.Network.Settings
	}
	if f.Site != nil {
		return *f.Site
	}
	if f.Network != nil {
		return f.Network.Settings
	}
	return Defaults()
}

// Parse は設定ファイルのJSONを解析する。
// "network" と "site" のどちらも無い場合は、全体をサイトの設定として扱う。
// 指定されていない項目はデフォルト値（サイトの場合はネットワークの値）のままになる。
func Parse(data []byte) (File, error) {
	var raw struct {
		Network json.RawMessage `json:"network"`
		Site    json.RawMessage `json:"site"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return File{}, fmt.Errorf("failed to parse settings: %w", err)
	}
	if raw.Network == nil && raw.Site == nil {
		raw.Site = data
	}

	var f File
	base := Defaults()
	if raw.Network != nil {
		network := Network{Settings: Defaults()}
		if err := decodeStrict(raw.Network, &network); err != nil {
			return File{}, fmt.Errorf("failed to parse network settings: %w", err)
		}
		f.Network = &network
		base = network.Settings
	}
	if raw.Site != nil {
		site := base
		site.AllowedMIMEs = append([]string(nil), base.AllowedMIMEs...)
		if err := decodeStrict(raw.Site, &site); err != nil {
			return File{}, fmt.Errorf("failed to parse site settings: %w", err)
		}
		f.Site = &site
	}
	return f, nil
}

func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// LoadFile は設定ファイルを読み込む。ファイルが無い場合は空の File を返す。
func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return File{}, nil
	}
	if err != nil {
		return File{}, fmt.Errorf("failed to read settings %s: %w", path, err)
	}
	return Parse(data)
}

// Load は設定ファイルを読み込み、上書きを適用した設定を返す
func Load(path string) (Settings, error) {
	f, err := LoadFile(path)
	if err != nil {
		return Settings{}, err
	}
	return f.Resolve(), nil
}
