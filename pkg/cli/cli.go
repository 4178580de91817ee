package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/zurustar/imsanity/pkg/settings"
)

// コマンド
const (
	CommandResize = "resize"
	CommandUpload = "upload"
	CommandDecode = "decode"
	CommandHelp   = "help"
)

// レポートの文字コード
const (
	EncodingUTF8     = "utf-8"
	EncodingShiftJIS = "sjis"
)

// ErrMissingPath はパス引数が無い場合のエラー
var ErrMissingPath = errors.New("at least one path is required")

// Config はコマンドライン引数から解析された設定を保持する
type Config struct {
	Command      string
	Paths        []string
	SettingsPath string // 設定ファイル（JSON）
	MaxWidth     int    // 0は設定ファイルの値を使う
	MaxHeight    int
	Quality      int

	// 指定されなかった場合は nil（設定ファイルの値を使う）
	BMPToJPG        *bool
	PNGToJPG        *bool
	Crop            *bool
	DeleteOriginals *bool

	Source         settings.Source // upload の場合のアップロード元
	NoPrompt       bool
	StorageOrder   bool // decode で保存順のまま出力する
	LogLevel       string
	Lang           string
	ReportEncoding string
	ShowHelp       bool
}

// boolFlag は指定されたかどうかを区別するブール型フラグ
type boolFlag struct {
	value **bool
}

func (b *boolFlag) String() string {
	if b == nil || b.value == nil || *b.value == nil {
		return ""
	}
	return strconv.FormatBool(**b.value)
}

func (b *boolFlag) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	*b.value = &v
	return nil
}

func (b *boolFlag) IsBoolFlag() bool { return true }

// ParseArgs コマンドライン引数を解析してConfigを返す
func ParseArgs(args []string) (*Config, error) {
	// 引数を並べ替え：フラグを前に、位置引数を後ろに
	reorderedArgs := reorderArgs(args)

	fs := flag.NewFlagSet("imsanity", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	config := &Config{}

	var source string
	fs.IntVar(&config.MaxWidth, "max-width", 0, "最大の幅")
	fs.IntVar(&config.MaxWidth, "W", 0, "最大の幅（短縮形）")
	fs.IntVar(&config.MaxHeight, "max-height", 0, "最大の高さ")
	fs.IntVar(&config.MaxHeight, "H", 0, "最大の高さ（短縮形）")
	fs.IntVar(&config.Quality, "quality", 0, "JPEG品質（1-100）")
	fs.IntVar(&config.Quality, "q", 0, "JPEG品質（短縮形）")
	fs.Var(&boolFlag{&config.BMPToJPG}, "bmp-to-jpg", "BMPをJPEGに変換")
	fs.Var(&boolFlag{&config.PNGToJPG}, "png-to-jpg", "PNGをJPEGに変換")
	fs.Var(&boolFlag{&config.Crop}, "crop", "最大サイズに合わせて切り抜く")
	fs.Var(&boolFlag{&config.DeleteOriginals}, "delete-originals", "元画像を削除")
	fs.StringVar(&config.SettingsPath, "settings", "", "設定ファイル")
	fs.StringVar(&config.SettingsPath, "s", "", "設定ファイル（短縮形）")
	fs.StringVar(&source, "source", "post", "アップロード元（post, library, other）")
	fs.BoolVar(&config.NoPrompt, "noprompt", false, "確認しない")
	fs.BoolVar(&config.NoPrompt, "y", false, "確認しない（短縮形）")
	fs.BoolVar(&config.StorageOrder, "storage-order", false, "行を保存順のまま出力")
	fs.StringVar(&config.LogLevel, "log-level", "info", "ログレベル（debug, info, warn, error）")
	fs.StringVar(&config.LogLevel, "l", "info", "ログレベル（短縮形）")
	fs.StringVar(&config.Lang, "lang", "", "レポートの言語（en, ja）")
	fs.StringVar(&config.ReportEncoding, "report-encoding", EncodingUTF8, "レポートの文字コード（utf-8, sjis）")
	fs.BoolVar(&config.ShowHelp, "help", false, "ヘルプを表示")
	fs.BoolVar(&config.ShowHelp, "h", false, "ヘルプを表示（短縮形）")

	if err := fs.Parse(reorderedArgs); err != nil {
		return nil, err
	}

	// 環境変数からの設定（コマンドラインフラグが優先）
	if config.SettingsPath == "" {
		config.SettingsPath = os.Getenv("IMSANITY_SETTINGS")
	}
	if !config.NoPrompt {
		if env := os.Getenv("IMSANITY_NOPROMPT"); env != "" {
			config.NoPrompt = env == "1" || strings.ToLower(env) == "true"
		}
	}
	if config.LogLevel == "info" {
		if logLevelEnv := os.Getenv("LOG_LEVEL"); logLevelEnv != "" {
			config.LogLevel = strings.ToLower(logLevelEnv)
		}
	}
	if config.Lang == "" {
		config.Lang = os.Getenv("LANG")
	}

	if config.ShowHelp {
		config.Command = CommandHelp
		return config, nil
	}

	// 位置引数（コマンドとパス）
	if fs.NArg() == 0 {
		config.Command = CommandHelp
		return config, nil
	}
	config.Command = fs.Arg(0)
	config.Paths = fs.Args()[1:]

	switch config.Command {
	case CommandHelp:
		return config, nil
	case CommandResize, CommandUpload, CommandDecode:
	default:
		return nil, fmt.Errorf("unknown command: %s", config.Command)
	}

	if config.MaxWidth < 0 || config.MaxHeight < 0 {
		return nil, fmt.Errorf("max dimensions must be non-negative, got %d x %d", config.MaxWidth, config.MaxHeight)
	}
	if config.Quality < 0 || config.Quality > 100 {
		return nil, fmt.Errorf("quality must be between 1 and 100, got %d", config.Quality)
	}

	// ログレベルの検証
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[config.LogLevel] {
		return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.LogLevel)
	}

	switch strings.ToLower(config.ReportEncoding) {
	case EncodingUTF8, "utf8":
		config.ReportEncoding = EncodingUTF8
	case EncodingShiftJIS, "shift_jis", "shift-jis":
		config.ReportEncoding = EncodingShiftJIS
	default:
		return nil, fmt.Errorf("invalid report encoding: %s (must be utf-8 or sjis)", config.ReportEncoding)
	}

	src, err := settings.ParseSource(source)
	if err != nil {
		return nil, err
	}
	config.Source = src

	if len(config.Paths) == 0 {
		return nil, fmt.Errorf("%s: %w", config.Command, ErrMissingPath)
	}
	if config.Command == CommandDecode && len(config.Paths) > 2 {
		return nil, fmt.Errorf("decode takes an input and an optional output path, got %d paths", len(config.Paths))
	}

	return config, nil
}

// Apply はコマンドラインで指定された値で設定を上書きする
func (c *Config) Apply(s settings.Settings) settings.Settings {
	if c.MaxWidth > 0 {
		s.MaxWidth = c.MaxWidth
	}
	if c.MaxHeight > 0 {
		s.MaxHeight = c.MaxHeight
	}
	if c.Quality > 0 {
		s.Quality = c.Quality
	}
	if c.BMPToJPG != nil {
		s.BMPToJPG = *c.BMPToJPG
	}
	if c.PNGToJPG != nil {
		s.PNGToJPG = *c.PNGToJPG
	}
	if c.Crop != nil {
		s.Crop = *c.Crop
	}
	if c.DeleteOriginals != nil {
		s.DeleteOriginals = *c.DeleteOriginals
	}
	return s
}

// 値を取らないフラグ
var boolFlags = map[string]bool{
	"h": true, "help": true,
	"y": true, "noprompt": true,
	"storage-order": true,
	"bmp-to-jpg":    true, "png-to-jpg": true, "crop": true, "delete-originals": true,
}

// reorderArgs 引数を並べ替えて、フラグを前に、位置引数を後ろに配置する
func reorderArgs(args []string) []string {
	var flags []string
	var positional []string

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if arg == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}

		// フラグかどうかを判定（-または--で始まる）
		if len(arg) > 1 && arg[0] == '-' {
			flags = append(flags, arg)

			name := strings.TrimLeft(arg, "-")
			if strings.Contains(name, "=") || boolFlags[name] {
				continue
			}
			// 次の引数が値（-W 800 のような場合）
			if i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			// 位置引数
			positional = append(positional, arg)
		}
	}

	// フラグを前に、位置引数を後ろに配置
	return append(append(flags, "--"), positional...)
}

// PrintHelp ヘルプメッセージを表示
func PrintHelp(w io.Writer) {
	fmt.Fprint(w, `imsanity - resize huge images to a sane size

Usage:
  imsanity [options] resize <file-or-dir>...
  imsanity [options] upload <file>...
  imsanity [options] decode <input.bmp> [output.png]

Commands:
  resize    既存の画像を最大サイズに縮小（一括リサイズ）
  upload    アップロードされた画像として変換・縮小
  decode    BMPをデコードしてPNGで保存

Options:
  -W, --max-width <px>        最大の幅（設定ファイルより優先）
  -H, --max-height <px>       最大の高さ（設定ファイルより優先）
  -q, --quality <1-100>       JPEG品質（デフォルト: 82）
  --bmp-to-jpg[=false]        BMPをJPEGに変換（デフォルト: 有効）
  --png-to-jpg[=false]        透過の無いPNGをJPEGに変換
  --crop[=false]              最大サイズちょうどに切り抜く
  --delete-originals[=false]  "-scaled" 画像の元画像を削除
  -s, --settings <file>       設定ファイル（JSON）
  --source <source>           アップロード元: post, library, other（デフォルト: post）
  -y, --noprompt              確認せずに実行
  --storage-order             decode で行を保存順のまま出力
  -l, --log-level <level>     ログレベル: debug, info, warn, error（デフォルト: info）
  --lang <lang>               レポートの言語: en, ja
  --report-encoding <enc>     レポートの文字コード: utf-8, sjis（デフォルト: utf-8）
  -h, --help                  このヘルプを表示

Environment Variables:
  IMSANITY_SETTINGS=<file>    設定ファイル
  IMSANITY_NOPROMPT=1         確認せずに実行
  LOG_LEVEL=<level>           ログレベル
  LANG=<locale>               レポートの言語（ja で始まる場合は日本語）

Examples:
  imsanity resize wp-content/uploads
  imsanity -W 1200 -H 1200 -y resize wp-content/uploads/2024
  imsanity --source library upload scan.bmp
  imsanity decode scan.bmp scan.png
`)
}
