// Package video converts frames into Go images and JPEG bytes.
package video

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/teslashibe/go-lumacam/pkg/frame"
	"golang.org/x/image/draw"
)

// ToImage copies f into an image.Image. Luma frames become image.Gray and
// I420 frames become image.YCbCr. f is not released.
func ToImage(f *frame.Frame) (image.Image, error) {
	y, err := f.Plane(0)
	if err != nil {
		return nil, err
	}
	rect := image.Rect(0, 0, f.Width, f.Height)

	switch f.Format {
	case frame.FormatI420:
		u, err := f.Plane(1)
		if err != nil {
			return nil, err
		}
		v, err := f.Plane(2)
		if err != nil {
			return nil, err
		}
		img := image.NewYCbCr(rect, image.YCbCrSubsampleRatio420)
		if len(y.Bytes()) < len(img.Y) || len(u.Bytes()) < len(img.Cb) || len(v.Bytes()) < len(img.Cr) {
			return nil, fmt.Errorf("i420 planes too short for %dx%d", f.Width, f.Height)
		}
		copy(img.Y, y.Bytes())
		copy(img.Cb, u.Bytes())
		copy(img.Cr, v.Bytes())
		return img, nil

	default:
		img := image.NewGray(rect)
		if len(y.Bytes()) < len(img.Pix) {
			return nil, fmt.Errorf("luma plane too short for %dx%d", f.Width, f.Height)
		}
		copy(img.Pix, y.Bytes())
		return img, nil
	}
}

// EncodeJPEG encodes f as JPEG at the given quality (1-100).
func EncodeJPEG(f *frame.Frame, quality int) ([]byte, error) {
	img, err := ToImage(f)
	if err != nil {
		return nil, err
	}
	return ImageToJPEG(img, quality)
}

// ImageToJPEG encodes an image to JPEG bytes.
func ImageToJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Scale shrinks img so its width is at most maxWidth, keeping aspect ratio.
// Images already small enough are returned unchanged.
func Scale(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	if maxWidth <= 0 || b.Dx() <= maxWidth {
		return img
	}
	h := b.Dy() * maxWidth / b.Dx()
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// PreviewJPEG renders a downscaled JPEG of f for live preview.
func PreviewJPEG(f *frame.Frame, maxWidth, quality int) ([]byte, error) {
	img, err := ToImage(f)
	if err != nil {
		return nil, err
	}
	return ImageToJPEG(Scale(img, maxWidth), quality)
}
