package tracer

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"strings"
	"time"
)

// A presented frame handed to the post-processing stages.
type Frame struct {
	// Sequential frame number starting at 1.
	Index uint64

	Width  int
	Height int

	// Packed RGBA8 pixels (R in the low byte) in row-major order. The slice
	// is reused by the next frame.
	Pixels []uint32

	// Accumulated samples per pixel.
	SamplesTaken uint32
}

// Copy the frame into a new RGBA image.
func (f *Frame) Image() *image.RGBA {
	im := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for i, px := range f.Pixels {
		o := 4 * i
		im.Pix[o+0] = uint8(px)
		im.Pix[o+1] = uint8(px >> 8)
		im.Pix[o+2] = uint8(px >> 16)
		im.Pix[o+3] = uint8(px >> 24)
	}
	return im
}

// An alias for functions that can be used as part of the post-processing
// pipeline.
type PipelineStage func(tr *Tracer, frame *Frame) (time.Duration, error)

// Append post-processing stages.
func (tr *Tracer) AddPostProcess(stages ...PipelineStage) {
	tr.postProcess = append(tr.postProcess, stages...)
}

func (tr *Tracer) runPostProcess() error {
	if len(tr.postProcess) == 0 {
		return nil
	}

	pixels := tr.width * tr.height
	frame := &Frame{
		Index:        tr.frame,
		Width:        tr.width,
		Height:       tr.height,
		Pixels:       tr.buffers.Output.HostPtr()[:pixels],
		SamplesTaken: tr.samplesTaken,
	}
	for stageIndex, stage := range tr.postProcess {
		elapsed, err := stage(tr, frame)
		if err != nil {
			return fmt.Errorf("tracer: post-process stage %d: %w", stageIndex, err)
		}
		tr.logger.Debugf("post-process stage %d completed in %s", stageIndex, elapsed)
	}
	return nil
}

// Write each presented frame to a PNG file. If imgFile contains a %d verb it
// is replaced with the frame index; otherwise the file is overwritten by
// every frame.
func SaveFrame(imgFile string) PipelineStage {
	return func(tr *Tracer, frame *Frame) (time.Duration, error) {
		start := time.Now()

		path := imgFile
		if strings.Contains(imgFile, "%d") {
			path = fmt.Sprintf(imgFile, frame.Index)
		}

		f, err := os.Create(path)
		if err != nil {
			return 0, err
		}
		defer f.Close()

		if err = png.Encode(f, frame.Image()); err != nil {
			return 0, err
		}
		return time.Since(start), nil
	}
}
