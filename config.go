package rtaccel

import (
	"runtime"

	"github.com/gekko3d/rtaccel/logging"
	"github.com/gekko3d/rtaccel/rt/bvh"
)

type Config struct {
	Build  bvh.BuildConfig
	Pool   bvh.PoolConfig
	Logger logging.Logger
	// Workers is the default fan-out of TraceBatch.
	Workers int
}

func DefaultConfig() Config {
	return Config{
		Build:   bvh.DefaultBuildConfig(),
		Logger:  logging.NewNopLogger(),
		Workers: runtime.GOMAXPROCS(0),
	}
}
