package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	_ "image/jpeg"
)

// Adaptive threshold parameters. The window is the square neighborhood
// a pixel is compared against; the offset biases toward white so light
// paper texture does not survive binarization.
const (
	thresholdWindow = 25
	thresholdOffset = 10
)

// Preprocess binarizes a page render for OCR: grayscale conversion
// followed by mean adaptive thresholding. Returns a PNG.
func Preprocess(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode page image: %w", err)
	}

	gray := toGray(src)
	bin := adaptiveThreshold(gray, thresholdWindow, thresholdOffset)

	var buf bytes.Buffer
	if err := png.Encode(&buf, bin); err != nil {
		return nil, fmt.Errorf("encode preprocessed image: %w", err)
	}
	return buf.Bytes(), nil
}

func toGray(src image.Image) *image.Gray {
	b := src.Bounds()
	gray := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gray.Set(x, y, color.GrayModel.Convert(src.At(x, y)))
		}
	}
	return gray
}

// adaptiveThreshold binarizes against the local mean, computed with a
// summed-area table so the window size does not affect cost.
func adaptiveThreshold(gray *image.Gray, window, offset int) *image.Gray {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(b)

	// integral[y][x] holds the sum of the w*h block above and left of (x, y).
	integral := make([][]int64, h+1)
	for i := range integral {
		integral[i] = make([]int64, w+1)
	}
	for y := 0; y < h; y++ {
		var rowSum int64
		for x := 0; x < w; x++ {
			rowSum += int64(gray.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			integral[y+1][x+1] = integral[y][x+1] + rowSum
		}
	}

	half := window / 2
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			x0, y0 := max(0, x-half), max(0, y-half)
			x1, y1 := min(w-1, x+half), min(h-1, y+half)
			count := int64((x1 - x0 + 1) * (y1 - y0 + 1))
			sum := integral[y1+1][x1+1] - integral[y0][x1+1] - integral[y1+1][x0] + integral[y0][x0]
			mean := sum / count

			px := int64(gray.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			v := uint8(255)
			if px < mean-int64(offset) {
				v = 0
			}
			out.SetGray(b.Min.X+x, b.Min.Y+y, color.Gray{Y: v})
		}
	}
	return out
}
