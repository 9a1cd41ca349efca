package renderer

import (
	"fmt"
	"image"

	"github.com/achilleasa/wavefront/tracer"
)

// A Surface receives the presented frames.
type Surface = tracer.Surface

// ImageSurface presents frames into an in-memory RGBA image.
type ImageSurface struct {
	img   *image.RGBA
	bound bool
}

// Create a surface backed by a new width x height image.
func NewImageSurface(width, height int) *ImageSurface {
	return &ImageSurface{
		img: image.NewRGBA(image.Rect(0, 0, width, height)),
	}
}

// Wrap an existing image. The image must start at the origin.
func WrapImage(img *image.RGBA) *ImageSurface {
	return &ImageSurface{img: img}
}

// Get the backing image. Its contents are updated by each presented frame.
func (s *ImageSurface) Image() *image.RGBA {
	return s.img
}

func (s *ImageSurface) Size() (int, int) {
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

func (s *ImageSurface) Bind() error {
	s.bound = true
	return nil
}

func (s *ImageSurface) Blit(pixels []uint32) error {
	if !s.bound {
		return ErrSurfaceNotBound
	}
	w, h := s.Size()
	if len(pixels) != w*h {
		return fmt.Errorf("renderer: blit of %d pixels to a %dx%d surface", len(pixels), w, h)
	}

	for y := 0; y < h; y++ {
		row := s.img.Pix[y*s.img.Stride:]
		for x, px := range pixels[y*w : (y+1)*w] {
			row[4*x+0] = uint8(px)
			row[4*x+1] = uint8(px >> 8)
			row[4*x+2] = uint8(px >> 16)
			row[4*x+3] = uint8(px >> 24)
		}
	}
	return nil
}

func (s *ImageSurface) Unbind() error {
	if !s.bound {
		return ErrSurfaceNotBound
	}
	s.bound = false
	return nil
}
