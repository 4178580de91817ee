package bmp

// RLE8/RLE4 の展開。
//
// エンコーディング:
//   - 最初のバイトが0でない場合: 次のバイトを最初のバイト回繰り返す
//   - 最初のバイトが0の場合（エスケープ）:
//   - 次のバイトが0: 行末 (End of Line)
//   - 次のバイトが1: ビットマップ終了 (End of Bitmap)
//   - 次のバイトが2: デルタ（2バイト読み飛ばすのみ。位置移動は行わない）
//   - それ以外: 絶対モード（次のバイト個のピクセルをそのまま読み取る）
//
// 入力が途中で尽きた場合は、その時点までの出力を返す。

// rle8LineWidth は展開後の1行のバイト数（4バイト境界）
func rle8LineWidth(width int) int {
	return width + (3 - (width-1)%4)
}

// rle4LineWidth は展開後の1行のニブル数
func rle4LineWidth(width int) int {
	w := width/2 + width%2
	return w + (3 - ((width-1)/2)%4)
}

// padTo は out の長さが lineWidth の倍数になるまで0で埋める
func padTo(out []byte, lineWidth int) []byte {
	for len(out)%lineWidth != 0 {
		out = append(out, 0)
	}
	return out
}

// decodeRLE8 はRLE8圧縮データをパレットインデックスの列に展開する
func decodeRLE8(src []byte, width int) []byte {
	lineWidth := rle8LineWidth(width)
	out := make([]byte, 0, len(src)*2)
	n := len(src)

	for i := 0; i < n; i++ {
		count := int(src[i])
		if count != 0 {
			// エンコードモード
			i++
			if i >= n {
				return out
			}
			for j := 0; j < count; j++ {
				out = append(out, src[i])
			}
			continue
		}

		// エスケープモード
		i++
		if i >= n {
			return out
		}
		switch src[i] {
		case 0:
			out = padTo(out, lineWidth)
		case 1:
			return padTo(out, lineWidth)
		case 2:
			i += 2
		default:
			num := int(src[i])
			for j := 0; j < num; j++ {
				i++
				if i >= n {
					return out
				}
				out = append(out, src[i])
			}
			// 絶対モードは2バイト境界にパディングされる
			if num%2 != 0 {
				i++
			}
		}
	}
	return out
}

// decodeRLE4 はRLE4圧縮データを展開する。
// 展開中はニブル単位の配列で保持し、最後に2ニブルずつ（上位が先）バイトに詰める。
func decodeRLE4(src []byte, width int) []byte {
	lineWidth := rle4LineWidth(width)
	nibbles := make([]byte, 0, len(src)*4)
	n := len(src)

loop:
	for i := 0; i < n; i++ {
		count := int(src[i])
		if count != 0 {
			// エンコードモード: 上位4ビットと下位4ビットを交互にcount回繰り返す
			i++
			if i >= n {
				break
			}
			c := src[i]
			for j := 0; j < count; j++ {
				if j%2 == 0 {
					nibbles = append(nibbles, c>>4)
				} else {
					nibbles = append(nibbles, c&0x0F)
				}
			}
			continue
		}

		// エスケープモード
		i++
		if i >= n {
			break
		}
		switch src[i] {
		case 0:
			nibbles = padTo(nibbles, lineWidth)
		case 1:
			nibbles = padTo(nibbles, lineWidth)
			break loop
		case 2:
			i += 2
		default:
			num := int(src[i])
			var c byte
			for j := 0; j < num; j++ {
				if j%2 == 0 {
					i++
					if i >= n {
						break loop
					}
					c = src[i]
					nibbles = append(nibbles, c>>4)
				} else {
					nibbles = append(nibbles, c&0x0F)
				}
			}
			// 読んだバイト数が奇数なら2バイト境界のパディングを読み飛ばす
			if ((num+1)/2)%2 != 0 {
				i++
			}
		}
	}

	return packNibbles(nibbles)
}

// packNibbles はニブル列を上位ニブルが先になるようにバイト列に詰める
func packNibbles(nibbles []byte) []byte {
	if len(nibbles)%2 != 0 {
		nibbles = append(nibbles, 0)
	}
	out := make([]byte, len(nibbles)/2)
	for i := range out {
		out[i] = nibbles[2*i]<<4 | nibbles[2*i+1]
	}
	return out
}
