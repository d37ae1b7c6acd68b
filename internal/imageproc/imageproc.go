// Package imageproc decodes uploaded images and turns them into the
// normalized CHW tensors the classifier was trained on.
package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/anthonynsimon/bild/transform"
	"github.com/gabriel-vasile/mimetype"
	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const (
	// ItemSize is the squish-resize applied to every image first.
	ItemSize = 460
	// Size is the final square input size seen by the network.
	Size = 224
	// Channels is the number of input channels (RGB).
	Channels = 3
	// MaxPixels caps the declared width*height of an image before decoding.
	MaxPixels = 40_000_000
)

// ImageNet normalization statistics.
var (
	ImageNetMean = [Channels]float32{0.485, 0.456, 0.406}
	ImageNetStd  = [Channels]float32{0.229, 0.224, 0.225}
)

var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrDecode            = errors.New("failed to decode image")
	ErrTooLarge          = errors.New("image dimensions too large")
)

var supportedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
}

// Decode sniffs the content type of data and decodes it into an image.
// It returns the detected MIME type alongside the image.
func Decode(data []byte) (image.Image, string, error) {
	mtype := mimetype.Detect(data).String()
	if !supportedMIME[mtype] {
		return nil, mtype, fmt.Errorf("%w: %s", ErrUnsupportedFormat, mtype)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, mtype, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, mtype, fmt.Errorf("%w: empty dimensions %dx%d", ErrDecode, cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, mtype, fmt.Errorf("%w: %w: %dx%d", ErrDecode, ErrTooLarge, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, mtype, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, mtype, nil
}

// Pipeline holds the preprocessing parameters. They have to match training
// exactly; a mismatch does not fail, it only degrades accuracy.
type Pipeline struct {
	ItemSize int
	Size     int
	Mean     [Channels]float32
	Std      [Channels]float32
}

// Default returns the pipeline the classifier was trained with.
func Default() Pipeline {
	return Pipeline{
		ItemSize: ItemSize,
		Size:     Size,
		Mean:     ImageNetMean,
		Std:      ImageNetStd,
	}
}

// Shape returns the (channels, height, width) of tensors produced by Tensor.
func (p Pipeline) Shape() (int, int, int) {
	return Channels, p.Size, p.Size
}

// Tensor resizes img ignoring aspect ratio, first to ItemSize and then to
// Size, and returns it as normalized CHW float32 values. Alpha is dropped
// before resizing.
func (p Pipeline) Tensor(img image.Image) []float32 {
	item := resize.Resize(uint(p.ItemSize), uint(p.ItemSize), Opaque(img), resize.Bilinear)
	final := transform.Resize(item, p.Size, p.Size, transform.Linear)

	bounds := final.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	plane := width * height
	out := make([]float32, Channels*plane)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			px := final.RGBAAt(bounds.Min.X+x, bounds.Min.Y+y)
			idx := y*width + x
			out[idx] = (float32(px.R)/255 - p.Mean[0]) / p.Std[0]
			out[plane+idx] = (float32(px.G)/255 - p.Mean[1]) / p.Std[1]
			out[2*plane+idx] = (float32(px.B)/255 - p.Mean[2]) / p.Std[2]
		}
	}
	return out
}

// Opaque converts img to RGB with full alpha, keeping the straight
// (un-premultiplied) color of translucent pixels.
func Opaque(img image.Image) *image.NRGBA {
	bounds := img.Bounds()
	out := image.NewNRGBA(bounds)
	src, isNRGBA := img.(*image.NRGBA)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			var c color.NRGBA
			if isNRGBA {
				c = src.NRGBAAt(x, y)
			} else {
				c = color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			}
			c.A = 255
			out.SetNRGBA(x, y, c)
		}
	}
	return out
}
