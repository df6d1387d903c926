package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "rtaccel"
	app.Usage = "build and query ray tracing acceleration structures"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "verbose, v",
			Usage: "enable debug logging",
		},
		cli.IntFlag{
			Name:  "workers, w",
			Usage: "trace goroutines (0 uses GOMAXPROCS)",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "stats",
			Usage: "build a scene and print hierarchy statistics",
			Description: `
Load a YAML scene, build one BLAS per mesh and a TLAS over the instances,
validate every hierarchy and print node counts, depths, SAH costs and pool
usage.`,
			ArgsUsage: "scene.yaml",
			Action:    ShowStats,
		},
		{
			Name:        "render",
			Usage:       "render a shaded view of a scene",
			Description: `Trace one primary ray per sample from the scene camera and write an image.`,
			ArgsUsage:   "scene.yaml",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "width",
					Value: 512,
					Usage: "frame width",
				},
				cli.IntFlag{
					Name:  "height",
					Value: 512,
					Usage: "frame height",
				},
				cli.IntFlag{
					Name:  "supersample, s",
					Value: 2,
					Usage: "samples per pixel along each axis",
				},
				cli.StringFlag{
					Name:  "shading",
					Value: "normal",
					Usage: "normal or depth",
				},
				cli.StringFlag{
					Name:  "out, o",
					Value: "frame.png",
					Usage: "image filename for the rendered frame",
				},
			},
			Action: RenderFrame,
		},
		{
			Name:      "bench",
			Usage:     "measure trace throughput with random rays",
			ArgsUsage: "scene.yaml",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "rays, n",
					Value: 1 << 20,
					Usage: "number of rays per mode",
				},
				cli.Int64Flag{
					Name:  "seed",
					Value: 1,
					Usage: "random seed",
				},
			},
			Action: Bench,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
