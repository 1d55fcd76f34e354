package engine

import (
	"github.com/spaghettifunk/voxel/engine/assets"
	"github.com/spaghettifunk/voxel/engine/core"
	"github.com/spaghettifunk/voxel/engine/renderer/components"
	"github.com/spaghettifunk/voxel/engine/renderer/vulkan"
	"github.com/spaghettifunk/voxel/engine/systems"
)

// Resources is what the engine hands the game once the renderer is up.
type Resources struct {
	Renderer *vulkan.Renderer
	Assets   *assets.AssetManager
	Models   *systems.ModelCache
	Textures *systems.TextureCache
	Input    *core.Input
	IDs      *core.IDAllocator
	Camera   *components.Camera

	// GlobalTexture is bound at set 0, binding 1. The game may set it during
	// initialize; a 1x1 white texture is used otherwise.
	GlobalTexture *vulkan.Texture

	SimpleRenderSystem *systems.SimpleRenderSystem
}

type Game struct {
	ApplicationConfig *ApplicationConfig
	State             interface{}
	FnInitialize      Initialize
	FnUpdate          Update
	FnRender          Render
	FnOnResize        OnResize
	FnShutdown        Shutdown
}

type Initialize func(res *Resources) error
type Update func(res *Resources, deltaTime float64) error
type Render func(res *Resources, frame *systems.FrameInfo) error
type OnResize func(width uint32, height uint32) error
type Shutdown func(res *Resources) error
