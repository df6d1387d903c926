package rtaccel

import (
	"github.com/gekko3d/rtaccel/logging"
	"github.com/gekko3d/rtaccel/rt/bvh"
)

type SceneBuilder struct {
	cfg Config
}

func NewSceneBuilder() *SceneBuilder {
	return &SceneBuilder{cfg: DefaultConfig()}
}

func (b *SceneBuilder) UseLogger(l logging.Logger) *SceneBuilder {
	b.cfg.Logger = logging.OrNop(l)

	return b
}

func (b *SceneBuilder) UseBuildConfig(cfg bvh.BuildConfig) *SceneBuilder {
	b.cfg.Build = cfg

	return b
}

func (b *SceneBuilder) UsePoolConfig(cfg bvh.PoolConfig) *SceneBuilder {
	b.cfg.Pool = cfg

	return b
}

func (b *SceneBuilder) UseWorkers(n int) *SceneBuilder {
	if n > 0 {
		b.cfg.Workers = n
	}

	return b
}

func (b *SceneBuilder) Build() *Scene {
	return NewScene(b.cfg)
}
