package app

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// レポートの言語
var supportedLanguages = []language.Tag{language.English, language.Japanese}

var languageMatcher = language.NewMatcher(supportedLanguages)

// 英語はキーそのものを表示する
var japaneseMessages = []struct{ key, ja string }{
	{"Bulk Resize will alter your original images and cannot be undone!", "一括リサイズは元の画像を変更します。元に戻すことはできません！"},
	{"It is HIGHLY recommended that you backup your images before proceeding. You will be prompted before resizing each image.", "続行する前に画像をバックアップすることを強くお勧めします。画像ごとにリサイズの確認を求められます。"},
	{"It is also recommended that you initially resize only 1 or 2 images and verify that everything is working properly before processing your entire library.", "最初は1、2枚だけリサイズして、正しく動作することを確認してからすべての画像を処理することをお勧めします。"},
	{"Resizing images to %s x %s", "画像を %s x %s にリサイズします"},
	{"There are no images to resize.", "リサイズする画像がありません。"},
	{"There are %d images to check.", "確認する画像が %d 枚あります。"},
	{"Continue?", "続行しますか？"},
	{"Resize (Y/n)?", "リサイズしますか (Y/n)？"},
	{"Finished Resizing!", "リサイズが完了しました！"},
	{"Saved %d bytes in total.", "合計 %d バイト削減しました。"},
	{"Warning: %s", "警告: %s"},
	{"Success: %s", "成功: %s"},
	{"SKIPPED: %s (noresize)", "スキップ: %s (noresize)"},
	{"SKIPPED: %s (Resize not required)", "スキップ: %s (リサイズ不要)"},
	{"%s does not have an allowed file type (%s)", "%s は許可されていないファイル形式です (%s)"},
	{"%s is not writable", "%s に書き込めません"},
	{"OK: %s resized to %s x %s", "OK: %s を %s x %s にリサイズしました"},
	{"ERROR: %s (%s)", "エラー: %s (%s)"},
	{"File format/mime type was changed", "ファイル形式/MIMEタイプが変更されました"},
	{"File size of resized image was larger than the original", "リサイズ後の画像のファイルサイズが元の画像より大きくなりました"},
	{"%s is ready (%s)", "%s の準備ができました (%s)"},
	{"%s could not be processed: %s", "%s を処理できませんでした: %s"},
	{"Decoded %s (%s x %s, %d-bit) to %s", "%s をデコードしました (%s x %s, %dビット) 出力: %s"},
	{"%s is truncated, the output is incomplete.", "%s は途中で切れています。出力は不完全です。"},
}

func init() {
	for _, m := range japaneseMessages {
		message.SetString(language.English, m.key, m.key)
		message.SetString(language.Japanese, m.key, m.ja)
	}
}

// languageFor は LANG 形式のロケール（ja_JP.UTF-8 など）に最も近いレポートの言語を返す
func languageFor(locale string) language.Tag {
	locale, _, _ = strings.Cut(locale, ".")
	locale, _, _ = strings.Cut(locale, "@")
	if locale == "" || locale == "C" || locale == "POSIX" {
		return language.English
	}
	tag, err := language.Parse(strings.ReplaceAll(locale, "_", "-"))
	if err != nil {
		return language.English
	}
	_, index, _ := languageMatcher.Match(tag)
	return supportedLanguages[index]
}
