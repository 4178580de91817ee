package app

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	xbmp "golang.org/x/image/bmp"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/language"
	"golang.org/x/text/transform"

	"github.com/zurustar/imsanity/pkg/imagefmt"
)

func noise(w, h int, seed int64) *image.RGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	rng.Read(img.Pix)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xFF
	}
	return img
}

func writeFixture(t *testing.T, path string, img image.Image) string {
	t.Helper()
	var buf bytes.Buffer
	var err error
	switch filepath.Ext(path) {
	case ".png":
		err = png.Encode(&buf, img)
	case ".jpg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95})
	case ".bmp":
		err = xbmp.Encode(&buf, img)
	}
	if err != nil {
		t.Fatalf("Failed to encode fixture: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
	return path
}

// run はアプリケーションを実行して標準出力と標準エラーを返す
func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	for _, key := range []string{"IMSANITY_SETTINGS", "IMSANITY_NOPROMPT", "LOG_LEVEL", "LANG"} {
		t.Setenv(key, "")
	}
	var stdout, stderr bytes.Buffer
	err := New(strings.NewReader(stdin), &stdout, &stderr).Run(args)
	return stdout.String(), stderr.String(), err
}

func TestRun_Help(t *testing.T) {
	for _, args := range [][]string{{}, {"--help"}, {"help"}} {
		stdout, _, err := run(t, "", args...)
		if err != nil {
			t.Fatalf("%v: unexpected error: %v", args, err)
		}
		if !strings.Contains(stdout, "Usage:") {
			t.Errorf("%v: help should be printed, got %q", args, stdout)
		}
	}
}

func TestRun_InvalidArgs(t *testing.T) {
	if _, _, err := run(t, "", "shrink", "."); err == nil {
		t.Error("expected error for unknown command")
	}
}

func TestRun_Resize(t *testing.T) {
	dir := t.TempDir()
	big := writeFixture(t, filepath.Join(dir, "big.jpg"), noise(400, 300, 1))
	small := writeFixture(t, filepath.Join(dir, "small.png"), noise(50, 50, 2))

	stdout, stderr, err := run(t, "", "-W", "100", "-H", "100", "-y", "resize", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v (stderr: %s)", err, stderr)
	}

	for _, want := range []string{
		"Resizing images to 100 x 100",
		"There are 2 images to check.",
		"SKIPPED: " + small + " (Resize not required) -- 50 x 50",
		"OK: big.jpg resized to 100w x 75h 2 / 2",
		"Success: Finished Resizing!",
		"Saved ",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("output should contain %q, got:\n%s", want, stdout)
		}
	}
	if strings.Contains(stderr, "Bulk Resize will alter") {
		t.Error("warning should not be shown with --noprompt")
	}

	if w, h, _ := imagefmt.Dimensions(big); w != 100 || h != 75 {
		t.Errorf("expected 100x75, got %dx%d", w, h)
	}
}

func TestRun_ResizePrompts(t *testing.T) {
	tests := []struct {
		name       string
		stdin      string
		wantWidth  int
		wantOutput string
	}{
		{"確認してリサイズ", "y\n\n", 100, "OK: photo.jpg resized to 100w x 75h 1 / 1"},
		{"画像ごとにスキップ", "y\nn\n", 400, "Resize (Y/n)?"},
		{"続行しない", "n\n", 400, "Continue? [y/n]"},
		{"入力なし", "", 400, "There are 1 images to check."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := writeFixture(t, filepath.Join(dir, "photo.jpg"), noise(400, 300, 3))

			stdout, stderr, err := run(t, tt.stdin, "-W", "100", "-H", "100", "resize", dir)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(stdout, tt.wantOutput) {
				t.Errorf("output should contain %q, got:\n%s", tt.wantOutput, stdout)
			}
			if !strings.Contains(stderr, "Warning: Bulk Resize will alter your original images") {
				t.Errorf("expected bulk resize warning, got:\n%s", stderr)
			}
			if w, _, _ := imagefmt.Dimensions(path); w != tt.wantWidth {
				t.Errorf("expected width %d, got %d", tt.wantWidth, w)
			}
		})
	}
}

func TestRun_ResizeKeepsOriginal(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		wantOriginal bool
	}{
		{"元画像を残す", nil, true},
		{"元画像を削除", []string{"--delete-originals"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			original := writeFixture(t, filepath.Join(dir, "photo.jpg"), noise(800, 600, 4))
			scaled := writeFixture(t, filepath.Join(dir, "photo-scaled.jpg"), noise(400, 300, 5))

			args := append([]string{"-W", "200", "-H", "200", "-y"}, tt.args...)
			stdout, stderr, err := run(t, "", append(args, "resize", dir)...)
			if err != nil {
				t.Fatalf("unexpected error: %v (stderr: %s)", err, stderr)
			}

			for _, want := range []string{
				"There are 1 images to check.",
				"OK: photo-scaled.jpg resized to 200w x 150h 1 / 1",
			} {
				if !strings.Contains(stdout, want) {
					t.Errorf("output should contain %q, got:\n%s", want, stdout)
				}
			}
			if strings.Contains(stdout, "OK: photo.jpg") {
				t.Errorf("original should not be resized, got:\n%s", stdout)
			}

			if w, h, _ := imagefmt.Dimensions(scaled); w != 200 || h != 150 {
				t.Errorf("expected scaled image 200x150, got %dx%d", w, h)
			}
			_, statErr := os.Stat(original)
			if exists := statErr == nil; exists != tt.wantOriginal {
				t.Fatalf("original exists=%v, want %v", exists, tt.wantOriginal)
			}
			if tt.wantOriginal {
				if w, h, _ := imagefmt.Dimensions(original); w != 800 || h != 600 {
					t.Errorf("original should stay 800x600, got %dx%d", w, h)
				}
			}
		})
	}
}

func TestRun_ResizeNoImages(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0644)

	stdout, _, err := run(t, "", "-y", "resize", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout, "Success: There are no images to resize.") {
		t.Errorf("unexpected output:\n%s", stdout)
	}
}

func TestRun_ResizeWarnings(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, filepath.Join(dir, "scan.bmp"), noise(400, 300, 4))

	stdout, stderr, err := run(t, "", "-W", "100", "-H", "100", "-y", "resize", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stderr, "Warning: scan.bmp does not have an allowed file type (image/bmp) 1 / 1") {
		t.Errorf("expected warning line, got:\n%s", stderr)
	}
	if strings.Contains(stdout, "Saved ") {
		t.Error("nothing should be saved")
	}
}

func TestRun_SettingsFile(t *testing.T) {
	dir := t.TempDir()
	settingsPath := filepath.Join(dir, "imsanity.json")
	os.WriteFile(settingsPath, []byte(`{"max_width": 200, "max_height": 200, "quality": 60}`), 0644)

	images := filepath.Join(dir, "uploads")
	os.Mkdir(images, 0755)
	path := writeFixture(t, filepath.Join(images, "photo.png"), noise(400, 300, 5))

	// コマンドラインの指定が設定ファイルより優先
	stdout, _, err := run(t, "", "-s", settingsPath, "-H", "120", "-y", "resize", images)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout, "Resizing images to 200 x 120") {
		t.Errorf("unexpected output:\n%s", stdout)
	}
	if w, h, _ := imagefmt.Dimensions(path); w != 160 || h != 120 {
		t.Errorf("expected 160x120, got %dx%d", w, h)
	}

	os.WriteFile(settingsPath, []byte(`{"quality": 500}`), 0644)
	if _, _, err := run(t, "", "-s", settingsPath, "resize", images); err == nil {
		t.Error("expected error for invalid quality")
	}

	os.WriteFile(settingsPath, []byte(`{"max_widht": 10}`), 0644)
	if _, _, err := run(t, "", "-s", settingsPath, "resize", images); err == nil {
		t.Error("expected error for unknown setting")
	}
}

func TestRun_Japanese(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, filepath.Join(dir, "photo-noresize.jpg"), noise(400, 300, 6))

	stdout, stderr, err := run(t, "", "--lang", "ja_JP.UTF-8", "-W", "100", "-H", "100", "-y", "resize", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"画像を 100 x 100 にリサイズします", "確認する画像が 1 枚あります。", "成功: リサイズが完了しました！"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("output should contain %q, got:\n%s", want, stdout)
		}
	}
	if !strings.Contains(stderr, "警告: スキップ: photo-noresize.jpg (noresize) 1 / 1") {
		t.Errorf("unexpected warnings:\n%s", stderr)
	}
}

func TestRun_ShiftJIS(t *testing.T) {
	dir := t.TempDir()

	stdout, _, err := run(t, "", "--lang", "ja", "--report-encoding", "sjis", "-y", "resize", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(stdout, "リサイズ") {
		t.Fatal("output should not be UTF-8")
	}

	decoded, err := io.ReadAll(transform.NewReader(strings.NewReader(stdout), japanese.ShiftJIS.NewDecoder()))
	if err != nil {
		t.Fatalf("Failed to decode Shift_JIS: %v", err)
	}
	if !strings.Contains(string(decoded), "リサイズする画像がありません。") {
		t.Errorf("unexpected output:\n%s", decoded)
	}
}

func TestRun_Upload(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, filepath.Join(dir, "scan.bmp"), noise(400, 200, 7))

	stdout, stderr, err := run(t, "", "-W", "100", "-H", "100", "upload", path)
	if err != nil {
		t.Fatalf("unexpected error: %v (stderr: %s)", err, stderr)
	}

	jpg := filepath.Join(dir, "scan.jpg")
	if !strings.Contains(stdout, jpg+" is ready (image/jpeg, 100 x 50)") {
		t.Errorf("unexpected output:\n%s", stdout)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("BMP should be removed")
	}
}

func TestRun_UploadFailure(t *testing.T) {
	dir := t.TempDir()
	good := writeFixture(t, filepath.Join(dir, "ok.png"), noise(10, 10, 8))
	bad := filepath.Join(dir, "notes.txt")
	os.WriteFile(bad, []byte("not an image"), 0644)

	stdout, stderr, err := run(t, "", "upload", good, bad)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(stdout, good+" is ready (image/png, 10 x 10)") {
		t.Errorf("good upload should still be processed, got:\n%s", stdout)
	}
	if !strings.Contains(stderr, "Warning: "+bad+" could not be processed") {
		t.Errorf("expected warning, got:\n%s", stderr)
	}
}

func TestRun_Decode(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	for i := 3; i < len(src.Pix); i += 4 {
		src.Pix[i] = 0xFF
	}
	src.SetRGBA(0, 0, color.RGBA{0xFF, 0, 0, 0xFF})
	src.SetRGBA(2, 1, color.RGBA{0, 0, 0xFF, 0xFF})

	tests := []struct {
		name         string
		args         []string
		topLeft      color.RGBA
		bottomRight  color.RGBA
		outputSuffix string
	}{
		{"通常の向き", nil, color.RGBA{0xFF, 0, 0, 0xFF}, color.RGBA{0, 0, 0xFF, 0xFF}, "in.png"},
		{"保存順", []string{"--storage-order"}, color.RGBA{0, 0, 0, 0xFF}, color.RGBA{0, 0, 0, 0xFF}, "in.png"},
		{"出力先指定", []string{"decode-out.png"}, color.RGBA{0xFF, 0, 0, 0xFF}, color.RGBA{0, 0, 0xFF, 0xFF}, "decode-out.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			in := writeFixture(t, filepath.Join(dir, "in.bmp"), src)

			args := []string{"decode", in}
			for _, a := range tt.args {
				if strings.HasSuffix(a, ".png") {
					a = filepath.Join(dir, a)
				}
				args = append(args, a)
			}

			stdout, _, err := run(t, "", args...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			out := filepath.Join(dir, tt.outputSuffix)
			if !strings.Contains(stdout, "Decoded "+in+" (3 x 2, 24-bit) to "+out) {
				t.Errorf("unexpected output:\n%s", stdout)
			}

			f, err := os.Open(out)
			if err != nil {
				t.Fatalf("output not written: %v", err)
			}
			defer f.Close()
			img, err := png.Decode(f)
			if err != nil {
				t.Fatalf("Failed to decode output: %v", err)
			}
			if got := color.RGBAModel.Convert(img.At(0, 0)); got != tt.topLeft {
				t.Errorf("top-left: expected %v, got %v", tt.topLeft, got)
			}
			if got := color.RGBAModel.Convert(img.At(2, 1)); got != tt.bottomRight {
				t.Errorf("bottom-right: expected %v, got %v", tt.bottomRight, got)
			}
		})
	}
}

func TestRun_DecodeTruncated(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	xbmp.Encode(&buf, noise(4, 4, 9))
	in := filepath.Join(dir, "cut.bmp")
	os.WriteFile(in, buf.Bytes()[:buf.Len()-20], 0644)

	_, stderr, err := run(t, "", "decode", in)
	if err != nil {
		t.Fatalf("truncated data should not be fatal: %v", err)
	}
	if !strings.Contains(stderr, "Warning: "+in+" is truncated, the output is incomplete.") {
		t.Errorf("expected truncation warning, got:\n%s", stderr)
	}
	if _, err := os.Stat(filepath.Join(dir, "cut.png")); err != nil {
		t.Error("partial image should be written")
	}
}

func TestRun_DecodeNotABitmap(t *testing.T) {
	dir := t.TempDir()
	in := writeFixture(t, filepath.Join(dir, "photo.png"), noise(2, 2, 10))
	bmpPath := filepath.Join(dir, "photo.bmp")
	os.Rename(in, bmpPath)

	if _, _, err := run(t, "", "decode", bmpPath); err == nil {
		t.Error("expected error for non-bitmap input")
	}
}

func TestLanguageFor(t *testing.T) {
	tests := []struct {
		locale string
		want   language.Tag
	}{
		{"", language.English},
		{"C", language.English},
		{"en_US.UTF-8", language.English},
		{"ja_JP.UTF-8", language.Japanese},
		{"ja", language.Japanese},
		{"fr_FR", language.English},
		{"not a locale!", language.English},
	}
	for _, tt := range tests {
		if got := languageFor(tt.locale); got != tt.want {
			t.Errorf("languageFor(%q) = %v, want %v", tt.locale, got, tt.want)
		}
	}
}
