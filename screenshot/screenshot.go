// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package screenshot reads render targets back to the CPU and saves them
// as PNG files.
//
// The read-back is asynchronous: Take queues a texture to buffer copy and
// the pixels are delivered from rendersys.Context.ExecutePendingTasks
// once the copy has completed on the GPU.
package screenshot

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/image/draw"

	"github.com/gogpu/blockrender/gpu"
	"github.com/gogpu/blockrender/internal/parallel"
	"github.com/gogpu/blockrender/rendersys"
	"github.com/gogpu/blockrender/target"
)

// Dir is the default directory name for screenshots.
const Dir = "screenshots"

// ErrIncomplete is returned for targets without a color texture.
var ErrIncomplete = errors.New("screenshot: incomplete render target")

// Options controls the conversion of read-back pixels.
type Options struct {
	// FlipY reverses the row order, for targets rendered bottom-up.
	FlipY bool
	// MaxWidth and MaxHeight bound the saved image; larger captures are
	// scaled down preserving the aspect ratio. Zero means unbounded.
	MaxWidth, MaxHeight int
}

// Take copies the color texture of rt into a read-back buffer. fn
// receives the opaque RGBA image on the render thread once the copy has
// completed. Must be called on the render thread.
func Take(rs *rendersys.Context, rt *target.RenderTarget, opts Options, fn func(*image.RGBA, error)) error {
	rs.AssertOnRenderThread()
	tex := rt.ColorTexture()
	if tex == nil || tex.IsClosed() {
		return ErrIncomplete
	}
	if tex.Format() != gpu.FormatRGBA8 {
		return fmt.Errorf("screenshot: %w: format %s", gpu.ErrUnsupported, tex.Format())
	}
	w, h := rt.Width(), rt.Height()
	dev := rs.Device()
	buf, err := dev.CreateBuffer("Screenshot buffer", gpu.BufferPixelPack, gpu.StaticRead, w*h*tex.Format().PixelSize())
	if err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	err = dev.CreateCommandEncoder().CopyTextureToBuffer(tex, buf, 0, 0, func() {
		defer buf.Close()
		view, err := dev.CreateCommandEncoder().ReadBuffer(buf, 0, buf.Size())
		if err != nil {
			fn(nil, fmt.Errorf("screenshot: %w", err))
			return
		}
		defer view.Close()
		fn(Scale(Convert(view.Data(), w, h, opts.FlipY), opts.MaxWidth, opts.MaxHeight), nil)
	})
	if err != nil {
		buf.Close()
		return fmt.Errorf("screenshot: %w", err)
	}
	return nil
}

// Convert turns tightly packed RGBA8 rows into an opaque image.
func Convert(pixels []byte, width, height int, flipY bool) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	stride := width * 4
	for y := range height {
		src := pixels[y*stride : (y+1)*stride]
		dy := y
		if flipY {
			dy = height - y - 1
		}
		row := img.Pix[dy*img.Stride : dy*img.Stride+stride]
		copy(row, src)
		for x := 3; x < stride; x += 4 {
			row[x] = 0xFF
		}
	}
	return img
}

// Scale shrinks img to fit within maxW x maxH. It returns img unchanged
// when it already fits or both bounds are zero.
func Scale(img *image.RGBA, maxW, maxH int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	f := 1.0
	if maxW > 0 && w > maxW {
		f = min(f, float64(maxW)/float64(w))
	}
	if maxH > 0 && h > maxH {
		f = min(f, float64(maxH)/float64(h))
	}
	if f == 1 {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, max(int(float64(w)*f), 1), max(int(float64(h)*f), 1)))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// NextFile returns the first unused "<date>_<time>[_n].png" path in dir.
func NextFile(dir string, now time.Time) string {
	stamp := now.Format("2006-01-02_15.04.05")
	for i := 1; ; i++ {
		name := stamp
		if i > 1 {
			name += "_" + strconv.Itoa(i)
		}
		path := filepath.Join(dir, name+".png")
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return path
		}
	}
}

// WritePNG encodes img to path.
func WritePNG(path string, img image.Image) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return png.Encode(f, img)
}

// Grab takes a screenshot of rt and writes it into dir on io. An empty
// name picks the next free timestamped file. done is called on io with
// the written path.
func Grab(rs *rendersys.Context, rt *target.RenderTarget, dir, name string, opts Options, io parallel.Executor, done func(path string, err error)) error {
	if io == nil {
		io = parallel.Inline
	}
	return Take(rs, rt, opts, func(img *image.RGBA, err error) {
		io.Execute(func() {
			if err != nil {
				gpu.Logger().Warn("screenshot: couldn't save screenshot", "err", err)
				done("", err)
				return
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				done("", fmt.Errorf("screenshot: %w", err))
				return
			}
			path := filepath.Join(dir, name)
			if name == "" {
				path = NextFile(dir, time.Now())
			}
			if err := WritePNG(path, img); err != nil {
				gpu.Logger().Warn("screenshot: couldn't save screenshot", "path", path, "err", err)
				done("", fmt.Errorf("screenshot: %w", err))
				return
			}
			gpu.Logger().Info("screenshot: saved", "path", path)
			done(path, nil)
		})
	})
}
