package engine

import (
	"github.com/spaghettifunk/voxel/engine/core"
)

type ApplicationConfig struct {
	// Window starting position x axis.
	StartPosX uint32
	// Window starting position y axis.
	StartPosY uint32
	// Window starting width.
	StartWidth uint32
	// Window starting height.
	StartHeight uint32
	// The application name used for the window title and the Vulkan instance.
	Name     string
	LogLevel core.LogLevel
	// AssetDir is the root every asset name is resolved against.
	AssetDir    string
	WatchAssets bool
	Renderer    core.RendererSettings
}

// NewApplicationConfig flattens a loaded config file.
func NewApplicationConfig(cfg *core.Config) (*ApplicationConfig, error) {
	level, err := core.ParseLogLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return &ApplicationConfig{
		StartPosX:   cfg.Application.PosX,
		StartPosY:   cfg.Application.PosY,
		StartWidth:  cfg.Application.Width,
		StartHeight: cfg.Application.Height,
		Name:        cfg.Application.Name,
		LogLevel:    level,
		AssetDir:    cfg.Assets.Dir,
		WatchAssets: cfg.Assets.Watch,
		Renderer:    cfg.Renderer,
	}, nil
}
