package testbed

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/voxel/engine"
	"github.com/spaghettifunk/voxel/engine/assets"
	"github.com/spaghettifunk/voxel/engine/containers"
	"github.com/spaghettifunk/voxel/engine/core"
	"github.com/spaghettifunk/voxel/engine/renderer/components"
	"github.com/spaghettifunk/voxel/engine/renderer/vulkan"
	"github.com/spaghettifunk/voxel/engine/systems"
)

// maxModels bounds how many OBJ files from the asset directory are placed
// in the scene.
const maxModels = 8

type TestGame struct {
	*engine.Game
}

type gameState struct {
	viewer     *components.GameObject
	controller *systems.KeyboardMovementController
	objects    []*components.GameObject

	models  []*containers.Handle[string, *vulkan.Model]
	texture *containers.Handle[string, *vulkan.Texture]
	cube    *vulkan.Model
}

func NewTestGame(config *engine.ApplicationConfig) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: config,
			State: &gameState{
				controller: systems.NewKeyboardMovementController(),
			},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

func (g *TestGame) Initialize(res *engine.Resources) error {
	core.LogInfo("initializing testbed...")
	state := g.state()

	state.viewer = components.NewGameObject(res.IDs)

	if images := res.Assets.List(assets.AssetTypeImage); len(images) > 0 {
		h, err := res.Textures.Acquire(images[0])
		if err != nil {
			return err
		}
		state.texture = h
		res.GlobalTexture = h.Value()
		core.LogInfo("Using texture %s.", images[0])
	}

	names := res.Assets.List(assets.AssetTypeModel)
	if len(names) > maxModels {
		names = names[:maxModels]
	}
	for i, name := range names {
		h, err := res.Models.Acquire(name)
		if err != nil {
			return err
		}
		state.models = append(state.models, h)

		obj := components.NewGameObject(res.IDs)
		obj.Model = h.Value()
		obj.Texture = res.GlobalTexture
		obj.Transform.Translation = mgl32.Vec3{float32(i) - float32(len(names)-1)/2, 0, 2.5}
		obj.Transform.Scale = mgl32.Vec3{0.5, 0.5, 0.5}
		state.objects = append(state.objects, obj)
	}

	if len(state.objects) == 0 {
		core.LogInfo("No models found under %s, drawing a cube.", res.Assets.Root())
		cube, err := vulkan.NewModel(res.Renderer.Context(), cubeModel(mgl32.Vec3{}))
		if err != nil {
			return err
		}
		state.cube = cube

		obj := components.NewGameObject(res.IDs)
		obj.Model = cube
		obj.Transform.Translation = mgl32.Vec3{0, 0, 2.5}
		obj.Transform.Scale = mgl32.Vec3{0.5, 0.5, 0.5}
		state.objects = append(state.objects, obj)
	}
	return nil
}

func (g *TestGame) Update(res *engine.Resources, deltaTime float64) error {
	state := g.state()
	state.controller.MoveInPlaneXZ(res.Input, float32(deltaTime), state.viewer)
	res.Camera.SetViewYXZ(state.viewer.Transform.Translation, state.viewer.Transform.Rotation)
	res.Camera.SetPerspectiveProjection(mgl32.DegToRad(50), res.Renderer.AspectRatio(), 0.1, 100)
	return nil
}

func (g *TestGame) Render(res *engine.Resources, frame *systems.FrameInfo) error {
	return res.SimpleRenderSystem.RenderGameObjects(frame, g.state().objects)
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	core.LogDebug("testbed resized to %dx%d", width, height)
	return nil
}

func (g *TestGame) Shutdown(res *engine.Resources) error {
	state := g.state()
	for _, h := range state.models {
		if err := res.Models.Release(h); err != nil {
			return err
		}
	}
	state.models = nil
	if state.texture != nil {
		if err := res.Textures.Release(state.texture); err != nil {
			return err
		}
		state.texture = nil
	}
	if state.cube != nil {
		if err := res.Renderer.Defer(state.cube.Destroy); err != nil {
			return err
		}
		state.cube = nil
	}
	for _, obj := range append(state.objects, state.viewer) {
		if obj == nil {
			continue
		}
		if err := obj.Release(res.IDs); err != nil {
			return err
		}
	}
	state.objects = nil
	return nil
}
