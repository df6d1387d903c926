package rtaccel

import (
	"testing"

	"github.com/gekko3d/rtaccel/logging"
	"github.com/gekko3d/rtaccel/rt/bvh"
)

func TestSceneBuilder_Defaults(t *testing.T) {
	scene := NewSceneBuilder().Build()

	if scene.cfg.Build != bvh.DefaultBuildConfig() {
		t.Errorf("Expected default build config, got %+v", scene.cfg.Build)
	}
	if scene.cfg.Workers < 1 {
		t.Errorf("Expected at least one worker, got %d", scene.cfg.Workers)
	}
	if scene.log == nil {
		t.Error("Expected a non-nil logger")
	}
}

func TestSceneBuilder_UseConfig(t *testing.T) {
	build := bvh.BuildConfig{LeafSize: 4, MaxDepth: 16, Bins: 8}
	pools := bvh.PoolConfig{MaxNodes: 1024}

	scene := NewSceneBuilder().
		UseBuildConfig(build).
		UsePoolConfig(pools).
		UseWorkers(3).
		UseLogger(logging.NewNopLogger()).
		Build()

	if scene.cfg.Build != build {
		t.Errorf("Expected build config %+v, got %+v", build, scene.cfg.Build)
	}
	if scene.cfg.Pool != pools {
		t.Errorf("Expected pool config %+v, got %+v", pools, scene.cfg.Pool)
	}
	if scene.cfg.Workers != 3 {
		t.Errorf("Expected 3 workers, got %d", scene.cfg.Workers)
	}
}

func TestSceneBuilder_IgnoresBadWorkers(t *testing.T) {
	scene := NewSceneBuilder().UseWorkers(0).Build()
	if scene.cfg.Workers != DefaultConfig().Workers {
		t.Errorf("Expected default workers, got %d", scene.cfg.Workers)
	}
}
