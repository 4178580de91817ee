package resize

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/zurustar/imsanity/pkg/fileutil"
	"github.com/zurustar/imsanity/pkg/imagefmt"
	"github.com/zurustar/imsanity/pkg/settings"
)

// ファイル名にこの文字列を含む画像はリサイズしない
const skipMarker = "noresize"

// アップロード時の許容誤差（ピクセル）
const uploadTolerance = 1

// Upload はアップロードされたファイル
type Upload struct {
	Path   string
	MIME   string
	Source settings.Source
}

// Result は一括リサイズの1ファイル分の結果
type Result struct {
	Path       string
	Success    bool
	Message    string
	Width      int
	Height     int
	BytesSaved int64
}

// Option は Processor の設定
type Option func(*Processor)

// WithPrinter は結果メッセージの翻訳に使うプリンターを設定する
func WithPrinter(p *message.Printer) Option {
	return func(proc *Processor) {
		if p != nil {
			proc.printer = p
		}
	}
}

// Processor はアップロードと一括リサイズの処理を行う
type Processor struct {
	settings settings.Settings
	log      *slog.Logger
	printer  *message.Printer
}

// NewProcessor は新しい Processor を作成する
func NewProcessor(s settings.Settings, log *slog.Logger, opts ...Option) *Processor {
	if log == nil {
		log = slog.Default()
	}
	p := &Processor{
		settings: s,
		log:      log.With("component", "resize"),
		printer:  message.NewPrinter(language.English),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// HandleUpload はアップロードされたファイルを必要に応じて変換・縮小する。
//
// 変換に成功した場合は新しいパスとMIMEタイプを持つ Upload を返す。
// リサイズに失敗した場合はアップロードされたファイルを削除してエラーを返す。
func (p *Processor) HandleUpload(u Upload) (Upload, error) {
	if strings.Contains(u.Path, skipMarker) {
		p.log.Debug("skipping upload", "path", u.Path, "reason", skipMarker)
		return u, nil
	}

	var err error
	if isBMP(u.MIME) && p.settings.BMPToJPG {
		if u, err = p.ConvertToJPEG(u, "bmp"); err != nil {
			return u, err
		}
	}
	if u.MIME == imagefmt.MIMEPNG && p.settings.PNGToJPG {
		if u, err = p.ConvertToJPEG(u, "png"); err != nil {
			return u, err
		}
	}

	if !p.settings.Allows(u.MIME) || !isResizable(u.Path) {
		return u, nil
	}

	oldW, oldH, err := imagefmt.Dimensions(u.Path)
	if err != nil {
		p.log.Warn("could not read dimensions", "path", u.Path, "error", err)
		return u, nil
	}

	maxW, maxH := p.settings.MaxDimensions(u.Source)
	if !NeedsResize(oldW, oldH, maxW, maxH, uploadTolerance) {
		return u, nil
	}

	newPath, _, _, err := p.resizeTo(u.Path, u.Path, maxW, maxH)
	if err != nil {
		// 孤立したファイルを残さないよう元のファイルを削除する
		os.Remove(u.Path)
		return u, fmt.Errorf("%w: %s: %w", ErrResizeFailed, filepath.Base(u.Path), err)
	}

	if _, err := p.replaceIfSmaller(u.Path, newPath); err != nil {
		return u, err
	}
	return u, nil
}

// ConvertToJPEG は BMP または PNG の画像をJPEGに変換し、元のファイルを削除する。
// 透過を含むPNGは変換しない。
func (p *Processor) ConvertToJPEG(u Upload, kind string) (Upload, error) {
	switch kind {
	case "png":
		alpha, err := imagefmt.HasAlpha(u.Path)
		if err != nil {
			p.log.Warn("could not check transparency", "path", u.Path, "error", err)
			return u, nil
		}
		if alpha {
			p.log.Debug("PNG has transparency, not converting", "path", u.Path)
			return u, nil
		}
	case "bmp":
	default:
		return u, fmt.Errorf("unknown image type %q: %w", kind, ErrConversionFailed)
	}

	img, _, err := imagefmt.Decode(u.Path)
	if err == nil && kind == "png" {
		img = Flatten(img)
	}

	dir := filepath.Dir(u.Path)
	name := fileutil.UniqueFilename(dir, filepath.Base(fileutil.ReplaceExt(u.Path, "jpg")))
	newPath := filepath.Join(dir, name)

	if err == nil {
		err = p.writeImage(newPath, img, imagefmt.MIMEJPEG, p.settings.Quality)
	}
	if err != nil {
		os.Remove(u.Path)
		return u, fmt.Errorf("%w: unable to process the %s file %s: %w", ErrConversionFailed, kind, filepath.Base(u.Path), err)
	}

	if err := os.Remove(u.Path); err != nil {
		p.log.Warn("could not remove converted source", "path", u.Path, "error", err)
	}
	p.log.Info("converted to JPEG", "from", u.Path, "to", newPath)

	return Upload{Path: newPath, MIME: imagefmt.MIMEJPEG, Source: u.Source}, nil
}

// ResizeFile は既存の画像を基本の最大サイズに縮小する（一括リサイズ）
func (p *Processor) ResizeFile(path string) Result {
	name := filepath.Base(path)
	res := Result{Path: path}

	if strings.Contains(name, skipMarker) {
		res.Message = p.printer.Sprintf("SKIPPED: %s (noresize)", name)
		return res
	}

	ftype := imagefmt.QuickMIME(path)
	if !p.settings.Allows(ftype) {
		res.Message = p.printer.Sprintf("%s does not have an allowed file type (%s)", name, ftype)
		return res
	}
	if !fileutil.IsWritable(path) {
		res.Message = p.printer.Sprintf("%s is not writable", name)
		return res
	}

	p.resizeExisting(path, name, &res)
	p.removeOriginal(path)
	return res
}

func (p *Processor) resizeExisting(path, name string, res *Result) {
	oldW, oldH, err := imagefmt.Dimensions(path)
	if err != nil {
		res.Message = p.printer.Sprintf("ERROR: %s (%s)", name, err.Error())
		return
	}
	res.Width, res.Height = oldW, oldH

	maxW, maxH := p.settings.MaxWidth, p.settings.MaxHeight
	if !NeedsResize(oldW, oldH, maxW, maxH, 0) {
		p.log.Debug("already small enough", "path", path, "width", oldW, "height", oldH)
		res.Success = true
		res.Message = p.printer.Sprintf("SKIPPED: %s (Resize not required)", name) + fmt.Sprintf(" -- %d x %d", oldW, oldH)
		return
	}

	source := path
	if original, ok := fileutil.OriginalFor(path); ok {
		p.log.Debug("resizing from original", "original", original)
		source = original
	}

	newPath, newW, newH, err := p.resizeTo(source, path, maxW, maxH)
	if err != nil {
		p.log.Warn("resize failed", "path", path, "error", err)
		res.Message = p.printer.Sprintf("ERROR: %s (%s)", name, err.Error())
		return
	}

	// 書き出した画像は拡張子の形式と一致しなければならない
	ftype := imagefmt.QuickMIME(path)
	newType, _ := imagefmt.DetectMIME(newPath)
	if newType != ftype {
		p.log.Debug("mime type changed, not allowed for existing images", "from", ftype, "to", newType)
		os.Remove(newPath)
		res.Message = p.printer.Sprintf("ERROR: %s (%s)", name, p.printer.Sprintf("File format/mime type was changed"))
		return
	}

	saved, err := p.replaceIfSmaller(path, newPath)
	switch {
	case err != nil:
		res.Message = p.printer.Sprintf("ERROR: %s (%s)", name, err.Error())
	case saved > 0:
		res.Success = true
		res.Width, res.Height = newW, newH
		res.BytesSaved = saved
		res.Message = p.printer.Sprintf("OK: %s resized to %s x %s", name, strconv.Itoa(newW)+"w", strconv.Itoa(newH)+"h")
	default:
		res.Message = p.printer.Sprintf("ERROR: %s (%s)", name, p.printer.Sprintf("File size of resized image was larger than the original"))
	}
}

// RemoveOriginal は "photo-scaled.jpg" に対して保存されている元画像 "photo.jpg" を削除する。
// DeleteOriginals が無効な場合は何もしない。
func (p *Processor) RemoveOriginal(path string) (bool, error) {
	if !p.settings.DeleteOriginals {
		p.log.Debug("delete_originals option not enabled, not removing", "path", path)
		return false, nil
	}
	original, ok := fileutil.OriginalFor(path)
	if !ok {
		return false, nil
	}
	if !fileutil.IsWritable(original) {
		return false, fmt.Errorf("original %s is not writable", original)
	}
	if err := os.Remove(original); err != nil {
		return false, fmt.Errorf("failed to remove original %s: %w", original, err)
	}
	p.log.Info("removed original image", "path", original)
	return true, nil
}

func (p *Processor) removeOriginal(path string) {
	if _, err := p.RemoveOriginal(path); err != nil {
		p.log.Warn("could not remove original image", "error", err)
	}
}

// resizeTo は src を maxW x maxH に収まるよう縮小し、dest と同じディレクトリに
// "<src の名前>-<w>x<h>.<dest の拡張子>" として保存したパスとサイズを返す。
// サイズはEXIFの向きを適用した画像から決める。出力形式は dest の拡張子に従う。
func (p *Processor) resizeTo(src, dest string, maxW, maxH int) (string, int, int, error) {
	mime := imagefmt.QuickMIME(dest)
	if !CanEncode(mime) {
		return "", 0, 0, fmt.Errorf("%s: %w", mime, ErrUnsupportedOutput)
	}

	img, _, err := imagefmt.Decode(src)
	if err != nil {
		return "", 0, 0, err
	}
	b := img.Bounds()
	w, h := TargetDimensions(b.Dx(), b.Dy(), maxW, maxH, p.settings.Crop)

	ext := filepath.Ext(dest)
	base := filepath.Join(filepath.Dir(dest), strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)))
	newPath := fmt.Sprintf("%s-%dx%d%s", base, w, h, ext)
	if _, err := os.Stat(newPath); err == nil {
		newPath = base + "-TMP" + ext
	}

	p.log.Debug("saving resized image", "path", newPath, "width", w, "height", h, "quality", p.settings.JPEGQuality())
	if err := p.writeImage(newPath, Scale(img, w, h, p.settings.Crop), mime, p.settings.JPEGQuality()); err != nil {
		return "", 0, 0, err
	}
	return newPath, w, h, nil
}

// replaceIfSmaller は newPath が oldPath より小さければ置き換え、削減したバイト数を返す。
// 大きい場合は newPath を削除して0を返す。
func (p *Processor) replaceIfSmaller(oldPath, newPath string) (int64, error) {
	oldInfo, err := os.Stat(oldPath)
	if err != nil {
		return 0, err
	}
	newInfo, err := os.Stat(newPath)
	if err != nil {
		return 0, err
	}

	if newInfo.Size() >= oldInfo.Size() {
		p.log.Debug("resized image is larger, keeping original", "path", oldPath,
			"original_size", oldInfo.Size(), "resized_size", newInfo.Size())
		os.Remove(newPath)
		return 0, nil
	}

	if err := os.Remove(oldPath); err != nil {
		return 0, fmt.Errorf("failed to replace %s: %w", oldPath, err)
	}
	if err := os.Rename(newPath, oldPath); err != nil {
		return 0, fmt.Errorf("failed to replace %s: %w", oldPath, err)
	}
	return oldInfo.Size() - newInfo.Size(), nil
}

func (p *Processor) writeImage(path string, img image.Image, mime string, quality int) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(path)
		}
	}()
	return Encode(f, img, mime, quality)
}

func isBMP(mime string) bool {
	return mime == imagefmt.MIMEBMP || mime == "image/x-ms-bmp"
}

// isResizable は空でない通常のファイルで、読み書きできるかを返す
func isResizable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
		return false
	}
	return fileutil.IsWritable(path)
}
