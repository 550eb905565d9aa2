package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

func encodeGray(t *testing.T, w, h int, fill func(x, y int) uint8) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: fill(x, y)})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 100}); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestGrayHistogram_Uniform(t *testing.T) {
	data := encodeGray(t, 16, 8, func(x, y int) uint8 { return 128 })

	hist, err := GrayHistogram(data)
	if err != nil {
		t.Fatalf("GrayHistogram failed: %v", err)
	}

	total := 0
	for _, v := range hist {
		total += v
	}
	if total != 16*8 {
		t.Errorf("画素数の合計 = %d, want %d", total, 16*8)
	}
	// 単色画像は圧縮後もほぼ1階級に集中する
	near := hist[127] + hist[128] + hist[129]
	if near != total {
		t.Errorf("128付近に集中していません: %d/%d", near, total)
	}
}

func TestGrayHistogram_Color(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 100}); err != nil {
		t.Fatal(err)
	}

	hist, err := GrayHistogram(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if hist[255]+hist[254] != 64 {
		t.Errorf("白画像の輝度が255付近にありません: %d", hist[255]+hist[254])
	}
}

func TestGrayHistogram_Invalid(t *testing.T) {
	if _, err := GrayHistogram([]byte("not a jpeg")); err == nil {
		t.Error("不正なデータでエラーが期待されました")
	}
}

func TestDownsample(t *testing.T) {
	var hist [Bins]int
	for i := range hist {
		hist[i] = 1
	}

	testCases := []struct {
		n    int
		want []int
	}{
		{4, []int{64, 64, 64, 64}},
		{1, []int{256}},
		{0, nil},
	}

	for _, tc := range testCases {
		got := Downsample(hist, tc.n)
		if len(got) != len(tc.want) {
			t.Fatalf("n=%d: len = %d, want %d", tc.n, len(got), len(tc.want))
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("n=%d: got %v, want %v", tc.n, got, tc.want)
				break
			}
		}
	}

	if got := Downsample(hist, 1000); len(got) != Bins {
		t.Errorf("上限を超えるnは%dに丸める: %d", Bins, len(got))
	}
	if Max([]int{3, 9, 2}) != 9 {
		t.Error("Max が不正")
	}
}
