package model

import (
	"image"

	"github.com/nfnt/resize"
)

// Preprocess resizes img to the model's square input and flattens it into
// the tensor layout and value range described by meta.
func Preprocess(img image.Image, meta *Metadata) []float32 {
	size := uint(meta.ImageSize)
	resized := resize.Resize(size, size, img, resize.Bilinear)

	bounds := resized.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	plane := width * height
	data := make([]float32, 3*plane)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			px := [3]float32{
				normalize(r, meta.Normalization),
				normalize(g, meta.Normalization),
				normalize(b, meta.Normalization),
			}

			i := y*width + x
			if meta.Layout == LayoutNHWC {
				copy(data[i*3:i*3+3], px[:])
				continue
			}
			data[i] = px[0]
			data[plane+i] = px[1]
			data[2*plane+i] = px[2]
		}
	}
	return data
}

// normalize maps a 16-bit colour channel onto the model's input range.
func normalize(c uint32, mode string) float32 {
	v := float32(c>>8) / 255.0
	if mode == NormalizeMobileNet {
		return v*2 - 1
	}
	return v
}
