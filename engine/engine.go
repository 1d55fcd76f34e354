package engine

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/voxel/engine/assets"
	"github.com/spaghettifunk/voxel/engine/assets/loaders"
	"github.com/spaghettifunk/voxel/engine/core"
	"github.com/spaghettifunk/voxel/engine/platform"
	"github.com/spaghettifunk/voxel/engine/renderer/components"
	"github.com/spaghettifunk/voxel/engine/renderer/vulkan"
	"github.com/spaghettifunk/voxel/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

type Engine struct {
	currentStage Stage
	gameInstance *Game
	platform     *platform.Platform
	input        *core.Input
	clock        *core.Clock
	metrics      *core.Metrics
	lastTime     float64

	assetManager *assets.AssetManager
	context      *vulkan.VulkanContext
	renderer     *vulkan.Renderer
	global       *systems.GlobalResources
	whiteTexture *vulkan.Texture
	resources    *Resources
}

func New(g *Game) (*Engine, error) {
	if g == nil || g.ApplicationConfig == nil {
		return nil, errors.AssertionFailedf("game and application config are required")
	}
	if g.FnUpdate == nil || g.FnRender == nil {
		return nil, errors.AssertionFailedf("game must provide update and render functions")
	}
	input := core.NewInput()
	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		platform:     platform.New(input),
		input:        input,
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
	}, nil
}

// Initialize opens the window and brings up the renderer, the asset
// manager and the game, in that order.
func (e *Engine) Initialize() error {
	if e.currentStage != EngineStageUninitialized {
		return errors.AssertionFailedf("engine initialized twice")
	}
	e.currentStage = EngineStageInitializing
	cfg := e.gameInstance.ApplicationConfig
	core.SetLogLevel(cfg.LogLevel)

	if err := e.platform.Startup(cfg.Name, cfg.StartPosX, cfg.StartPosY, cfg.StartWidth, cfg.StartHeight); err != nil {
		return err
	}

	am, err := assets.NewAssetManager(cfg.AssetDir)
	if err != nil {
		return err
	}
	e.assetManager = am
	if cfg.WatchAssets {
		if err := am.Watch(); err != nil {
			return err
		}
	}

	ctx, err := vulkan.NewVulkanContext(e.platform, cfg.Renderer, cfg.Name)
	if err != nil {
		return err
	}
	e.context = ctx

	r, err := vulkan.NewRenderer(ctx, e.platform)
	if err != nil {
		return err
	}
	e.renderer = r

	e.resources = &Resources{
		Renderer: r,
		Assets:   am,
		Models:   systems.NewModelCache(ctx, am, r),
		Textures: systems.NewTextureCache(ctx, am, r),
		Input:    e.input,
		IDs:      core.NewIDAllocator(),
		Camera:   components.NewCamera(),
	}
	if fn := e.gameInstance.FnInitialize; fn != nil {
		if err := fn(e.resources); err != nil {
			return errors.Wrap(err, "initializing game")
		}
	}

	texture := e.resources.GlobalTexture
	if texture == nil {
		white := loaders.SolidImage(1, 1, 255, 255, 255, 255)
		if texture, err = vulkan.NewTexture(ctx, white.Pixels, white.Width, white.Height); err != nil {
			return err
		}
		e.whiteTexture = texture
	}
	global, err := systems.NewGlobalResources(ctx, texture)
	if err != nil {
		return err
	}
	e.global = global

	// Decode both stages before any pipeline object exists.
	if _, err := am.LoadAll(context.Background(), systems.SimpleShaderAssets()); err != nil {
		return core.WithKind(errors.WithHint(err, "run `mage build:shaders`"), core.ErrInitialization)
	}
	simple, err := systems.NewSimpleRenderSystem(ctx, r.SwapChainRenderPass(), global.Layout, am.Root())
	if err != nil {
		return err
	}
	e.resources.SimpleRenderSystem = simple
	r.OnSwapChainRecreated(simple.OnSwapChainRecreated)
	r.OnSwapChainRecreated(func(sc *vulkan.SwapChain) error {
		if fn := e.gameInstance.FnOnResize; fn != nil {
			return fn(sc.Width(), sc.Height())
		}
		return nil
	})
	if fn := e.gameInstance.FnOnResize; fn != nil {
		if err := fn(r.SwapChain().Width(), r.SwapChain().Height()); err != nil {
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	core.LogInfo("Engine initialized.")
	return nil
}

// Run drives frames until the window closes, ctx is cancelled or a frame
// fails with an error that cannot be recovered from.
func (e *Engine) Run(ctx context.Context) error {
	if e.currentStage != EngineStageInitialized {
		return errors.AssertionFailedf("engine must be initialized before running")
	}
	e.currentStage = EngineStageRunning

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.platform.PollEvents() {
		if ctx.Err() != nil {
			core.LogInfo("Run cancelled, shutting down.")
			break
		}
		if e.input.IsKeyDown(core.KEY_ESCAPE) {
			e.platform.RequestClose()
			continue
		}
		e.reloadChangedAssets()

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := clampFrameTime(currentTime - e.lastTime)
		e.lastTime = currentTime
		e.metrics.Update(delta)

		if err := e.gameInstance.FnUpdate(e.resources, delta); err != nil {
			reportFatal(err)
			return err
		}

		drawn, err := drawFrame(e.renderer, e.global, e.resources.Camera, float32(delta), func(frame *systems.FrameInfo) error {
			return e.gameInstance.FnRender(e.resources, frame)
		})
		if err != nil {
			reportFatal(err)
			return err
		}
		if !drawn {
			if w, h := e.platform.FramebufferSize(); w == 0 || h == 0 {
				// Minimized; nothing to draw until the window comes back.
				e.platform.WaitEvents()
			}
		}

		// Input state is copied last so every consumer this frame saw the
		// same previous state.
		e.input.Update()
	}

	core.LogInfo("Average frame time %.2fms (%.0f fps).", e.metrics.FrameTime(), e.metrics.FPS())
	return e.context.WaitIdle()
}

// reloadChangedAssets rebuilds the pipeline when a compiled shader changes
// on disk. Other changes are only logged; cached models and textures are
// keyed by name and keep their current contents.
func (e *Engine) reloadChangedAssets() {
	for {
		select {
		case name := <-e.assetManager.Changes():
			if !strings.HasPrefix(filepath.ToSlash(name), "shaders/") {
				core.LogInfo("Asset %s changed.", name)
				continue
			}
			if err := e.context.WaitIdle(); err != nil {
				core.LogError("waiting for device idle: %s", err)
				return
			}
			if err := e.resources.SimpleRenderSystem.RebuildPipeline(e.renderer.SwapChainRenderPass()); err != nil {
				core.LogError("Shader %s failed to reload, keeping the old pipeline: %s", name, err)
				continue
			}
			core.LogInfo("Shader %s reloaded.", name)
		default:
			return
		}
	}
}

// Shutdown releases everything Initialize created. It is safe to call after
// a partial Initialize.
func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	var errs error

	if e.context != nil && e.context.Driver != nil {
		errs = errors.CombineErrors(errs, e.context.WaitIdle())
	}
	if e.resources != nil {
		if fn := e.gameInstance.FnShutdown; fn != nil {
			errs = errors.CombineErrors(errs, fn(e.resources))
		}
		// Evicted resources go through the renderer's deletion queue,
		// which is drained when the renderer is destroyed below.
		e.resources.Models.Clear()
		e.resources.Textures.Clear()
		if e.resources.SimpleRenderSystem != nil {
			e.resources.SimpleRenderSystem.Destroy()
		}
	}
	if e.global != nil {
		e.global.Destroy()
	}
	if e.whiteTexture != nil {
		e.whiteTexture.Destroy()
	}
	if e.renderer != nil {
		e.renderer.Destroy()
	}
	if e.context != nil {
		e.context.Destroy()
	}
	if e.assetManager != nil {
		errs = errors.CombineErrors(errs, e.assetManager.Close())
	}
	errs = errors.CombineErrors(errs, e.platform.Shutdown())
	core.LogInfo("Engine shut down.")
	return errs
}

// GetFramebufferSize returns the width and height of the window framebuffer.
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.platform.FramebufferSize()
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}
