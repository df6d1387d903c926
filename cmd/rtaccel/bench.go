package main

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/gekko3d/rtaccel"
	"github.com/gekko3d/rtaccel/rt/core"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// Trace random rays through the scene bounds and report throughput for
// both trace modes.
func Bench(ctx *cli.Context) error {
	logger := setupLogging(ctx)

	n := ctx.Int("rays")
	if n <= 0 {
		return fmt.Errorf("rays must be positive, got %d", n)
	}

	_, scene, err := loadScene(ctx, logger)
	if err != nil {
		return err
	}
	defer scene.Close()

	rays := benchRays(scene.Bounds(), n, rand.New(rand.NewSource(ctx.Int64("seed"))))

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Mode", "Rays", "Hits", "Time", "Mrays/s"})
	for _, mode := range []core.TraceMode{core.ClosestHit, core.AnyHit} {
		start := time.Now()
		results, err := scene.TraceBatch(context.Background(), rays, mode, 0)
		if err != nil {
			return err
		}
		elapsed := time.Since(start)
		table.Append([]string{
			mode.String(),
			fmt.Sprintf("%d", len(rays)),
			fmt.Sprintf("%d", countHits(results)),
			elapsed.String(),
			fmt.Sprintf("%.2f", float64(len(rays))/elapsed.Seconds()/1e6),
		})
	}

	table.Render()
	logger.Infof("trace throughput\n%s", buf.String())
	return nil
}

// benchRays starts rays on a sphere around bounds and aims them at random
// points inside it.
func benchRays(bounds core.AABB, n int, rng *rand.Rand) []core.Ray {
	if bounds.IsEmpty() {
		bounds = core.AABB{Min: mgl32.Vec3{-1, -1, -1}, Max: mgl32.Vec3{1, 1, 1}}
	}
	center := bounds.Center()
	radius := bounds.Extent().Len()
	if radius == 0 {
		radius = 1
	}

	point := func() mgl32.Vec3 {
		e := bounds.Extent()
		return bounds.Min.Add(mgl32.Vec3{rng.Float32() * e.X(), rng.Float32() * e.Y(), rng.Float32() * e.Z()})
	}

	rays := make([]core.Ray, n)
	for i := range rays {
		dir := mgl32.Vec3{float32(rng.NormFloat64()), float32(rng.NormFloat64()), float32(rng.NormFloat64())}
		if dir.Len() == 0 {
			dir = mgl32.Vec3{0, 0, 1}
		}
		origin := center.Add(dir.Normalize().Mul(radius))
		rays[i] = core.NewRay(origin, point().Sub(origin).Normalize())
	}
	return rays
}

func countHits(results []rtaccel.TraceResult) int {
	hits := 0
	for _, r := range results {
		if r.OK {
			hits++
		}
	}
	return hits
}
