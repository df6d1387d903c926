package main

import (
	"errors"
	"path/filepath"

	"github.com/gekko3d/rtaccel"
	"github.com/gekko3d/rtaccel/logging"
	"github.com/gekko3d/rtaccel/rt/scenefile"
	"github.com/urfave/cli"
)

// loadScene reads the scene file named by the first argument and builds it.
func loadScene(ctx *cli.Context, logger logging.Logger) (*scenefile.File, *rtaccel.Scene, error) {
	if ctx.NArg() != 1 {
		return nil, nil, errors.New("missing scene file argument")
	}
	path := ctx.Args().First()

	f, err := scenefile.Load(path)
	if err != nil {
		return nil, nil, err
	}

	scene := rtaccel.NewSceneBuilder().
		UseLogger(logger).
		UseWorkers(ctx.GlobalInt("workers")).
		Build()

	logger.Infof("building scene %s: %d meshes, %d instances", path, len(f.Meshes), len(f.Instances))
	if _, err := f.Populate(scene, filepath.Dir(path)); err != nil {
		scene.Close()
		return nil, nil, err
	}
	return f, scene, nil
}
