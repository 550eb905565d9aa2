// Package imaging はキャプチャ画像の簡単な解析を提供する
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
)

// Bins はヒストグラムの階級数
const Bins = 256

// GrayHistogram はJPEGをデコードし、全画素の輝度を256階級に集計する
func GrayHistogram(data []byte) ([Bins]int, error) {
	var hist [Bins]int

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return hist, fmt.Errorf("JPEGのデコードに失敗: %w", err)
	}

	b := img.Bounds()
	switch src := img.(type) {
	case *image.YCbCr:
		// Y成分がそのまま輝度
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				hist[src.Y[src.YOffset(x, y)]]++
			}
		}
	case *image.Gray:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				hist[src.GrayAt(x, y).Y]++
			}
		}
	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
				hist[g.Y]++
			}
		}
	}

	return hist, nil
}

// Downsample は256階級のヒストグラムをn階級にまとめる
func Downsample(hist [Bins]int, n int) []int {
	if n <= 0 {
		return nil
	}
	if n > Bins {
		n = Bins
	}

	out := make([]int, n)
	for i, v := range hist {
		out[i*n/Bins] += v
	}
	return out
}

// Max は最大の度数を返す
func Max(counts []int) int {
	m := 0
	for _, v := range counts {
		if v > m {
			m = v
		}
	}
	return m
}
