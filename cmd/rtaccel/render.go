package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gekko3d/rtaccel"
	"github.com/gekko3d/rtaccel/rt/core"
	"github.com/urfave/cli"
	xdraw "golang.org/x/image/draw"
)

var background = color.RGBA{R: 24, G: 24, B: 32, A: 255}

// Render a still frame of the scene camera.
func RenderFrame(ctx *cli.Context) error {
	logger := setupLogging(ctx)

	width, height := ctx.Int("width"), ctx.Int("height")
	ss := ctx.Int("supersample")
	if width <= 0 || height <= 0 || ss <= 0 {
		return errors.New("width, height and supersample must be positive")
	}
	shade, err := shader(ctx.String("shading"))
	if err != nil {
		return err
	}

	f, scene, err := loadScene(ctx, logger)
	if err != nil {
		return err
	}
	defer scene.Close()

	fw, fh := width*ss, height*ss
	rays := f.Camera.Rays(fw, fh)

	start := time.Now()
	results, err := scene.TraceBatch(context.Background(), rays, core.ClosestHit, 0)
	if err != nil {
		return err
	}
	logger.Infof("traced %d primary rays in %s", len(rays), time.Since(start))

	frame := shade(rays, results, fw, fh)
	out := downscale(frame, width, height)

	if err := imaging.Save(out, ctx.String("out")); err != nil {
		return fmt.Errorf("saving frame: %w", err)
	}
	logger.Infof("wrote %s", ctx.String("out"))
	return nil
}

type shadeFunc func(rays []core.Ray, results []rtaccel.TraceResult, w, h int) *image.RGBA

func shader(name string) (shadeFunc, error) {
	switch name {
	case "normal":
		return shadeNormals, nil
	case "depth":
		return shadeDepth, nil
	}
	return nil, fmt.Errorf("unknown shading %q", name)
}

// shadeNormals maps the world normal to RGB, dimmed by the angle to the
// viewer.
func shadeNormals(rays []core.Ray, results []rtaccel.TraceResult, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i, r := range results {
		x, y := i%w, i/w
		if !r.OK {
			img.SetRGBA(x, y, background)
			continue
		}
		n := r.Hit.Normal
		facing := float32(math.Abs(float64(n.Dot(rays[i].Dir))))
		k := 0.25 + 0.75*facing
		img.SetRGBA(x, y, color.RGBA{
			R: channel((n.X() + 1) / 2 * k),
			G: channel((n.Y() + 1) / 2 * k),
			B: channel((n.Z() + 1) / 2 * k),
			A: 255,
		})
	}
	return img
}

// shadeDepth maps hit distance to gray, nearest white.
func shadeDepth(_ []core.Ray, results []rtaccel.TraceResult, w, h int) *image.RGBA {
	near, far := float32(math.Inf(1)), float32(0)
	for _, r := range results {
		if r.OK {
			near = min(near, r.Hit.T)
			far = max(far, r.Hit.T)
		}
	}
	span := far - near
	if span <= 0 {
		span = 1
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i, r := range results {
		x, y := i%w, i/w
		if !r.OK {
			img.SetRGBA(x, y, background)
			continue
		}
		g := channel(1 - 0.8*(r.Hit.T-near)/span)
		img.SetRGBA(x, y, color.RGBA{R: g, G: g, B: g, A: 255})
	}
	return img
}

func channel(v float32) uint8 {
	return uint8(math.Round(float64(min(max(v, 0), 1) * 255)))
}

func downscale(src *image.RGBA, w, h int) image.Image {
	if src.Bounds().Dx() == w && src.Bounds().Dy() == h {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}
