package app

import (
	"bufio"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/message"
	"golang.org/x/text/transform"

	"github.com/zurustar/imsanity/pkg/bmp"
	"github.com/zurustar/imsanity/pkg/cli"
	"github.com/zurustar/imsanity/pkg/fileutil"
	"github.com/zurustar/imsanity/pkg/imagefmt"
	"github.com/zurustar/imsanity/pkg/logger"
	"github.com/zurustar/imsanity/pkg/resize"
	"github.com/zurustar/imsanity/pkg/settings"
)

// 一括リサイズで集める画像の拡張子
var imageExtensions = []string{"jpg", "jpeg", "jpe", "png", "gif", "bmp", "webp", "avif"}

// Application はアプリケーションのメインロジックを管理する
type Application struct {
	config   *cli.Config
	log      *slog.Logger
	settings settings.Settings
	printer  *message.Printer

	stdin  io.Reader
	input  *bufio.Scanner
	out    io.Writer
	errOut io.Writer
}

// New Applicationを作成
func New(stdin io.Reader, stdout, stderr io.Writer) *Application {
	return &Application{
		stdin:  stdin,
		out:    stdout,
		errOut: stderr,
	}
}

// Run アプリケーションを実行
func (app *Application) Run(args []string) (err error) {
	// 1. コマンドライン引数の解析
	if err := app.parseArgs(args); err != nil {
		return fmt.Errorf("failed to parse args: %w", err)
	}

	if app.config.Command == cli.CommandHelp {
		cli.PrintHelp(app.out)
		return nil
	}

	// 2. ロガーの初期化
	if err := app.initLogger(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	// 3. 設定の読み込み
	if err := app.loadSettings(); err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	app.log.Debug("Application started", "command", app.config.Command, "paths", len(app.config.Paths))

	// 4. レポートの出力先
	app.printer = message.NewPrinter(languageFor(app.config.Lang))
	app.input = bufio.NewScanner(app.stdin)
	if app.config.ReportEncoding == cli.EncodingShiftJIS {
		out := shiftJISWriter(app.out)
		errOut := shiftJISWriter(app.errOut)
		app.out, app.errOut = out, errOut
		defer func() {
			err = errors.Join(err, out.Close(), errOut.Close())
		}()
	}

	// 5. コマンドの実行
	switch app.config.Command {
	case cli.CommandResize:
		return app.runResize()
	case cli.CommandUpload:
		return app.runUpload()
	case cli.CommandDecode:
		return app.runDecode()
	}
	return fmt.Errorf("unknown command: %s", app.config.Command)
}

// parseArgs コマンドライン引数を解析
func (app *Application) parseArgs(args []string) error {
	config, err := cli.ParseArgs(args)
	if err != nil {
		return err
	}
	app.config = config
	return nil
}

// initLogger ロガーを初期化（レポートと混ざらないよう標準エラーに出力）
func (app *Application) initLogger() error {
	if err := logger.InitLoggerWithWriter(app.errOut, app.config.LogLevel); err != nil {
		return err
	}
	app.log = logger.Component("app")
	return nil
}

// loadSettings 設定ファイルを読み込み、コマンドラインの指定で上書きする
func (app *Application) loadSettings() error {
	s := settings.Defaults()
	if app.config.SettingsPath != "" {
		loaded, err := settings.Load(app.config.SettingsPath)
		if err != nil {
			return err
		}
		s = loaded
	}
	s = app.config.Apply(s)
	if err := s.Validate(); err != nil {
		return err
	}
	app.settings = s

	app.log.Debug("Settings loaded", "path", app.config.SettingsPath,
		"max_width", s.MaxWidth, "max_height", s.MaxHeight, "quality", s.Quality,
		"bmp_to_jpg", s.BMPToJPG, "png_to_jpg", s.PNGToJPG, "delete_originals", s.DeleteOriginals)
	return nil
}

func (app *Application) processor() *resize.Processor {
	return resize.NewProcessor(app.settings, logger.GetLogger(), resize.WithPrinter(app.printer))
}

// runResize 既存の画像を一括でリサイズする
func (app *Application) runResize() error {
	p := app.printer
	maxW, maxH := app.settings.MaxWidth, app.settings.MaxHeight

	if !app.config.NoPrompt {
		app.warn(strings.Join([]string{
			p.Sprintf("Bulk Resize will alter your original images and cannot be undone!"),
			p.Sprintf("It is HIGHLY recommended that you backup your images before proceeding. You will be prompted before resizing each image."),
			p.Sprintf("It is also recommended that you initially resize only 1 or 2 images and verify that everything is working properly before processing your entire library."),
		}, "\n"))
	}

	app.println(p.Sprintf("Resizing images to %s x %s", strconv.Itoa(maxW), strconv.Itoa(maxH)))

	collected, err := fileutil.CollectImages(app.config.Paths, imageExtensions)
	if err != nil {
		return fmt.Errorf("failed to collect images: %w", err)
	}

	// "-scaled" 画像の元画像は保存用なので縮小しない
	paths := collected[:0]
	for _, path := range collected {
		if scaled, ok := fileutil.ScaledFor(path); ok {
			app.log.Debug("Skipping original of scaled image", "path", path, "scaled", scaled)
			continue
		}
		paths = append(paths, path)
	}

	count := len(paths)
	if count == 0 {
		app.success(p.Sprintf("There are no images to resize."))
		return nil
	}
	if app.config.NoPrompt {
		app.println(p.Sprintf("There are %d images to check.", count))
	} else if !app.confirm(p.Sprintf("There are %d images to check.", count) + " " + p.Sprintf("Continue?")) {
		app.log.Info("Bulk resize cancelled")
		return nil
	}

	proc := app.processor()
	var saved int64
	for i, path := range paths {
		finished := i + 1

		w, h, err := imagefmt.Dimensions(path)
		if err != nil || w == 0 || h == 0 {
			app.log.Debug("Skipping unreadable image", "path", path, "error", err)
			continue
		}

		if !resize.NeedsResize(w, h, maxW, maxH, 0) {
			app.println(p.Sprintf("SKIPPED: %s (Resize not required)", path) + fmt.Sprintf(" -- %d x %d", w, h))
			continue
		}

		if !app.config.NoPrompt {
			answer := app.prompt(fmt.Sprintf("%s: %dx%d\n", path, w, h) + p.Sprintf("Resize (Y/n)?"))
			if answer == "n" {
				continue
			}
		}

		res := proc.ResizeFile(path)
		line := fmt.Sprintf("%s %d / %d", res.Message, finished, count)
		if res.Success {
			saved += res.BytesSaved
			app.println(line)
		} else {
			app.warn(line)
		}
	}

	app.success(p.Sprintf("Finished Resizing!"))
	if saved > 0 {
		app.println(p.Sprintf("Saved %d bytes in total.", saved))
	}
	return nil
}

// runUpload ファイルをアップロードされた画像として処理する
func (app *Application) runUpload() error {
	p := app.printer
	proc := app.processor()

	failed := 0
	for _, path := range app.config.Paths {
		mime, err := imagefmt.DetectMIME(path)
		if err != nil {
			app.warn(p.Sprintf("%s could not be processed: %s", path, err.Error()))
			failed++
			continue
		}

		u, err := proc.HandleUpload(resize.Upload{Path: path, MIME: mime, Source: app.config.Source})
		if err != nil {
			app.warn(p.Sprintf("%s could not be processed: %s", path, err.Error()))
			failed++
			continue
		}

		detail := u.MIME
		if w, h, err := imagefmt.Dimensions(u.Path); err == nil {
			detail = fmt.Sprintf("%s, %d x %d", u.MIME, w, h)
		}
		app.println(p.Sprintf("%s is ready (%s)", u.Path, detail))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, len(app.config.Paths))
	}
	return nil
}

// runDecode BMPをデコードしてPNGで保存する
func (app *Application) runDecode() error {
	in := app.config.Paths[0]
	out := fileutil.ReplaceExt(in, "png")
	if len(app.config.Paths) > 1 {
		out = app.config.Paths[1]
	}

	data, err := os.ReadFile(in)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w: %w", in, bmp.ErrNotReadable, err)
	}

	order := bmp.RowOrderImage
	if app.config.StorageOrder {
		order = bmp.RowOrderStorage
	}
	decoder := bmp.NewDecoder(bmp.WithRowOrder(order), bmp.WithLogger(logger.Component("bmp")))

	img, err := decoder.DecodeBytes(data)
	truncated := errors.Is(err, bmp.ErrTruncatedData)
	if err != nil && !truncated {
		return fmt.Errorf("failed to decode %s: %w", in, err)
	}

	if err := writePNG(out, img); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}

	if truncated {
		app.warn(app.printer.Sprintf("%s is truncated, the output is incomplete.", in))
	}
	app.println(app.printer.Sprintf("Decoded %s (%s x %s, %d-bit) to %s",
		in, strconv.Itoa(img.Width), strconv.Itoa(img.Height), int(img.Header.Info.BitCount), out))
	app.log.Debug("Decoded bitmap", "path", in, "compression", img.Header.Info.Compression,
		"top_down", img.Header.TopDown(), "row_order", order.String(), "palette", len(img.Palette))
	return nil
}

func writePNG(path string, img *bmp.Image) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return png.Encode(f, img)
}

// confirm は y/n の確認を求める。y 以外は中止
func (app *Application) confirm(question string) bool {
	answer := app.prompt(question + " [y/n]")
	return strings.EqualFold(answer, "y")
}

// prompt は質問を表示して1行読み込む。入力が無い場合は空文字列
func (app *Application) prompt(question string) string {
	fmt.Fprint(app.out, question, ": ")
	if !app.input.Scan() {
		fmt.Fprintln(app.out)
		return ""
	}
	return strings.TrimSpace(app.input.Text())
}

func (app *Application) println(line string) {
	fmt.Fprintln(app.out, line)
}

func (app *Application) success(line string) {
	fmt.Fprintln(app.out, app.printer.Sprintf("Success: %s", line))
}

func (app *Application) warn(line string) {
	fmt.Fprintln(app.errOut, app.printer.Sprintf("Warning: %s", line))
}

// shiftJISWriter はレポートをShift_JISに変換する。変換できない文字は置き換える
func shiftJISWriter(w io.Writer) io.WriteCloser {
	return transform.NewWriter(w, encoding.ReplaceUnsupported(japanese.ShiftJIS.NewEncoder()))
}
