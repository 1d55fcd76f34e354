package engine

import (
	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/voxel/engine/core"
	"github.com/spaghettifunk/voxel/engine/renderer/components"
	"github.com/spaghettifunk/voxel/engine/renderer/vulkan"
	"github.com/spaghettifunk/voxel/engine/systems"
)

// maxFrameTime caps the step handed to the game, e.g. after a breakpoint or
// while the window was being dragged.
const maxFrameTime = 0.25

// frameRenderer is the part of *vulkan.Renderer the frame loop drives.
type frameRenderer interface {
	BeginFrame() (*vulkan.VulkanCommandBuffer, error)
	BeginSwapChainRenderPass(cb *vulkan.VulkanCommandBuffer) error
	EndSwapChainRenderPass(cb *vulkan.VulkanCommandBuffer) error
	EndFrame() error
	FrameIndex() int
}

// globalUniforms is the part of *systems.GlobalResources the frame loop uses.
type globalUniforms interface {
	Update(frameIndex int, ubo systems.GlobalUbo) error
	DescriptorSet(frameIndex int) *vulkan.DescriptorSet
}

func clampFrameTime(dt float64) float64 {
	switch {
	case dt < 0:
		return 0
	case dt > maxFrameTime:
		return maxFrameTime
	}
	return dt
}

// drawFrame records and submits one frame. It reports false when the
// renderer skipped the frame, e.g. while the swap chain was recreated.
func drawFrame(r frameRenderer, globals globalUniforms, camera *components.Camera, dt float32, render func(frame *systems.FrameInfo) error) (bool, error) {
	cb, err := r.BeginFrame()
	if err != nil {
		return false, errors.Wrap(err, "beginning frame")
	}
	if cb == nil {
		return false, nil
	}

	frame := &systems.FrameInfo{
		FrameIndex:    r.FrameIndex(),
		FrameTime:     dt,
		CommandBuffer: cb,
		Camera:        camera,
	}

	// Update
	ubo := systems.NewGlobalUbo()
	ubo.Projection = camera.Projection()
	ubo.View = camera.View()
	if err := globals.Update(frame.FrameIndex, ubo); err != nil {
		return false, errors.Wrap(err, "updating global uniforms")
	}
	frame.GlobalDescriptorSet = globals.DescriptorSet(frame.FrameIndex)

	// Render
	if err := r.BeginSwapChainRenderPass(cb); err != nil {
		return false, err
	}
	if err := render(frame); err != nil {
		return false, errors.Wrap(err, "game render")
	}
	if err := r.EndSwapChainRenderPass(cb); err != nil {
		return false, err
	}
	if err := r.EndFrame(); err != nil {
		return false, errors.Wrap(err, "ending frame")
	}
	return true, nil
}

// reportFatal logs why the loop is stopping.
func reportFatal(err error) {
	switch {
	case core.IsPreconditionViolation(err):
		core.LogError("Precondition violated, stopping: %+v", err)
	case errors.Is(err, core.ErrDeviceLost):
		core.LogError("Vulkan device lost, stopping: %s", err)
	case core.IsResourceExhausted(err):
		core.LogError("Out of GPU resources, stopping: %s", err)
	default:
		core.LogError("Frame failed, stopping: %s", err)
	}
}
