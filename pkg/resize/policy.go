package resize

import "math"

// NeedsResize は画像が最大サイズを超えているかを返す。
// 最大サイズの0は無制限。tolerance はアップロード時に1、一括処理では0。
func NeedsResize(w, h, maxW, maxH, tolerance int) bool {
	return (w > maxW+tolerance && maxW > 0) || (h > maxH+tolerance && maxH > 0)
}

// ConstrainDimensions は縦横比を保ったまま maxW x maxH に収まるサイズを返す。
// 最大サイズの0は無制限。結果は最小1で、丸めにより1ピクセル足りない場合は切り上げる。
func ConstrainDimensions(w, h, maxW, maxH int) (int, int) {
	if maxW == 0 && maxH == 0 {
		return w, h
	}

	widthRatio, heightRatio := 1.0, 1.0
	didWidth, didHeight := false, false

	if maxW > 0 && w > 0 && w > maxW {
		widthRatio = float64(maxW) / float64(w)
		didWidth = true
	}
	if maxH > 0 && h > 0 && h > maxH {
		heightRatio = float64(maxH) / float64(h)
		didHeight = true
	}

	smaller := math.Min(widthRatio, heightRatio)
	larger := math.Max(widthRatio, heightRatio)

	// 大きい方の比率がはみ出す場合は小さい方を使う
	ratio := larger
	if round(float64(w)*larger) > maxW || round(float64(h)*larger) > maxH {
		ratio = smaller
	}

	newW := max(1, round(float64(w)*ratio))
	newH := max(1, round(float64(h)*ratio))

	if didWidth && newW == maxW-1 {
		newW = maxW
	}
	if didHeight && newH == maxH-1 {
		newH = maxH
	}
	return newW, newH
}

// TargetDimensions はリサイズ後のサイズを返す。
// crop が有効で、両方の最大サイズが設定され、画像がそれを覆う場合はちょうど maxW x maxH になる。
func TargetDimensions(w, h, maxW, maxH int, crop bool) (int, int) {
	if crop && maxW > 0 && maxH > 0 && w >= maxW && h >= maxH && (h > maxH || w > maxW) {
		return maxW, maxH
	}
	return ConstrainDimensions(w, h, maxW, maxH)
}

func round(v float64) int {
	return int(math.Round(v))
}
