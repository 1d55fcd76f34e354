package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/voxel/engine/containers"
	"github.com/spaghettifunk/voxel/engine/core"
)

// Window is what the renderer needs from the platform window.
type Window interface {
	FramebufferSize() (uint32, uint32)
	WasResized() bool
	ResetResizedFlag()
}

type FrameState int

const (
	FrameIdle FrameState = iota
	FrameStarted
	RenderPassActive
)

func (s FrameState) String() string {
	switch s {
	case FrameIdle:
		return "idle"
	case FrameStarted:
		return "frame started"
	case RenderPassActive:
		return "render pass active"
	}
	return "unknown"
}

type frameSlot struct {
	commandBuffer  *VulkanCommandBuffer
	inFlight       *VulkanFence
	imageAvailable vk.Semaphore
}

// Renderer drives frames through Idle -> FrameStarted -> RenderPassActive and
// back, recording into one of MaxFramesInFlight command buffers per frame.
type Renderer struct {
	ctx    *VulkanContext
	window Window

	swapChain *SwapChain
	frames    [MaxFramesInFlight]frameSlot

	state           FrameState
	frameIndex      int
	imageIndex      uint32
	frameNumber     uint64
	recreatePending bool

	deletions     *DeletionQueue
	recreateHooks []func(*SwapChain) error
}

func NewRenderer(ctx *VulkanContext, window Window) (*Renderer, error) {
	r := &Renderer{
		ctx:       ctx,
		window:    window,
		deletions: NewDeletionQueue(deferredDeletionCapacity),
	}

	if w, h := window.FramebufferSize(); w == 0 || h == 0 {
		return nil, core.WithKind(errors.Newf("window framebuffer is %dx%d", w, h), core.ErrInitialization)
	}
	if _, err := r.recreateSwapChain(); err != nil {
		r.Destroy()
		return nil, errors.Wrap(err, "creating swapchain")
	}
	if err := r.createFrameSlots(); err != nil {
		r.Destroy()
		return nil, err
	}
	return r, nil
}

func (r *Renderer) createFrameSlots() error {
	buffers, err := NewVulkanCommandBuffers(r.ctx, r.ctx.Device.GraphicsCommandPool, true, MaxFramesInFlight)
	if err != nil {
		return err
	}
	for i := range r.frames {
		slot := &r.frames[i]
		slot.commandBuffer = buffers[i]
		// Created signaled so the first wait on each slot passes.
		fence, err := NewFence(r.ctx, true)
		if err != nil {
			return err
		}
		slot.inFlight = fence
		sem, err := r.ctx.Driver.CreateSemaphore()
		if err != nil {
			return errors.Wrap(err, "creating image-available semaphore")
		}
		slot.imageAvailable = sem
	}
	core.LogDebug("Vulkan command buffers created.")
	return nil
}

// BeginFrame waits for the current frame slot, acquires a swap chain image and
// starts recording. It returns a nil buffer and no error when the frame must be
// skipped, either because the swap chain was just recreated or because the
// window has no area.
func (r *Renderer) BeginFrame() (*VulkanCommandBuffer, error) {
	if r.state != FrameIdle {
		return nil, errors.AssertionFailedf("cannot call BeginFrame while %s", r.state)
	}

	if r.recreatePending || r.window.WasResized() {
		r.recreatePending = true
		if _, err := r.recreateSwapChain(); err != nil {
			return nil, err
		}
		if r.recreatePending {
			return nil, nil
		}
	}

	slot := &r.frames[r.frameIndex]
	// Wait for the execution of the slot's previous frame to complete.
	if err := slot.inFlight.Wait(r.ctx.fenceTimeout()); err != nil {
		return nil, errors.Wrap(err, "waiting for in-flight frame")
	}
	r.deletions.Flush(r.frameNumber)

	imageIndex, err := r.swapChain.AcquireNextImage(slot.imageAvailable)
	if err != nil {
		if core.IsRecoverable(err) {
			core.LogDebug("Swapchain out of date on acquire, recreating.")
			r.recreatePending = true
			if _, err := r.recreateSwapChain(); err != nil {
				return nil, err
			}
			return nil, nil
		}
		return nil, errors.Wrap(err, "acquiring swapchain image")
	}
	r.imageIndex = imageIndex

	// Begin recording commands.
	cb := slot.commandBuffer
	if err := cb.Reset(); err != nil {
		return nil, err
	}
	if err := cb.Begin(false, false, false); err != nil {
		return nil, err
	}
	r.state = FrameStarted
	return cb, nil
}

// EndFrame submits the frame and presents it, then advances to the next
// frame slot. An out-of-date swap chain or a pending resize is handled here
// by recreating the swap chain.
func (r *Renderer) EndFrame() error {
	if r.state != FrameStarted {
		return errors.AssertionFailedf("cannot call EndFrame while %s", r.state)
	}
	slot := &r.frames[r.frameIndex]
	if err := slot.commandBuffer.End(); err != nil {
		return err
	}

	err := r.swapChain.SubmitCommandBuffers(
		[]*VulkanCommandBuffer{slot.commandBuffer},
		r.imageIndex,
		FrameSync{ImageAvailable: slot.imageAvailable, InFlight: slot.inFlight})

	r.state = FrameIdle
	r.frameIndex = (r.frameIndex + 1) % MaxFramesInFlight
	r.frameNumber++

	switch {
	case err != nil && !core.IsRecoverable(err):
		return errors.Wrap(err, "presenting frame")
	case err != nil || r.window.WasResized():
		r.recreatePending = true
		if _, err := r.recreateSwapChain(); err != nil {
			return err
		}
	}
	return nil
}

// BeginSwapChainRenderPass begins the swap chain render pass on cb, which must
// be the buffer returned by the last BeginFrame.
func (r *Renderer) BeginSwapChainRenderPass(cb *VulkanCommandBuffer) error {
	if r.state != FrameStarted {
		return errors.AssertionFailedf("cannot begin the render pass while %s", r.state)
	}
	if cb != r.frames[r.frameIndex].commandBuffer {
		return errors.AssertionFailedf("cannot begin the render pass on a command buffer from a different frame")
	}

	extent := r.swapChain.Extent()
	if err := r.swapChain.RenderPass().Begin(cb, r.swapChain.Framebuffer(r.imageIndex).Handle, extent); err != nil {
		return err
	}

	viewport := vk.Viewport{
		X:        0.0,
		Y:        0.0,
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	}
	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: extent,
	}
	r.ctx.Driver.CmdSetViewport(cb.Handle, []vk.Viewport{viewport})
	r.ctx.Driver.CmdSetScissor(cb.Handle, []vk.Rect2D{scissor})

	r.state = RenderPassActive
	return nil
}

func (r *Renderer) EndSwapChainRenderPass(cb *VulkanCommandBuffer) error {
	if r.state != RenderPassActive {
		return errors.AssertionFailedf("cannot end the render pass while %s", r.state)
	}
	if cb != r.frames[r.frameIndex].commandBuffer {
		return errors.AssertionFailedf("cannot end the render pass on a command buffer from a different frame")
	}
	if err := r.swapChain.RenderPass().End(cb); err != nil {
		return err
	}
	r.state = FrameStarted
	return nil
}

// recreateSwapChain rebuilds the swap chain for the current window size. It
// reports false, leaving the request pending, while the window has no area.
func (r *Renderer) recreateSwapChain() (bool, error) {
	width, height := r.window.FramebufferSize()
	if width == 0 || height == 0 {
		core.LogDebug("Window is %dx%d, deferring swapchain recreation.", width, height)
		return false, nil
	}

	// Wait for any operations to complete.
	if err := r.ctx.WaitIdle(); err != nil {
		return false, errors.Wrap(err, "waiting for device idle")
	}

	old := r.swapChain
	sc, err := NewSwapChain(r.ctx, vk.Extent2D{Width: width, Height: height}, old)
	if err != nil {
		return false, err
	}
	if old != nil {
		compatible := old.CompareSwapFormats(sc)
		old.Destroy()
		if !compatible {
			// Without a swap chain the next BeginFrame builds a fresh one.
			sc.Destroy()
			r.swapChain = nil
			r.recreatePending = true
			return false, errors.AssertionFailedf("swapchain image or depth format has changed")
		}
		core.LogInfo("Swapchain recreated at %dx%d.", sc.Width(), sc.Height())
	}
	r.swapChain = sc
	r.recreatePending = false
	r.window.ResetResizedFlag()

	for _, hook := range r.recreateHooks {
		if err := hook(sc); err != nil {
			return false, errors.Wrap(err, "swapchain recreation hook")
		}
	}
	return true, nil
}

// OnSwapChainRecreated registers fn to run after every swap chain recreation,
// e.g. to rebuild pipelines bound to the old render pass.
func (r *Renderer) OnSwapChainRecreated(fn func(*SwapChain) error) {
	r.recreateHooks = append(r.recreateHooks, fn)
}

// Defer runs destroy once every frame that might reference the resource has
// completed on the GPU.
func (r *Renderer) Defer(destroy func()) error {
	retire := r.frameNumber + MaxFramesInFlight
	err := r.deletions.Push(retire, destroy)
	if errors.Is(err, containers.ErrQueueFull) {
		core.LogWarn("Deferred deletion queue full, waiting for device idle.")
		if err := r.ctx.WaitIdle(); err != nil {
			return err
		}
		r.deletions.FlushAll()
		err = r.deletions.Push(retire, destroy)
	}
	return err
}

// SwapChainRenderPass is nil while no swap chain exists.
func (r *Renderer) SwapChainRenderPass() *VulkanRenderpass {
	if r.swapChain == nil {
		return nil
	}
	return r.swapChain.RenderPass()
}

func (r *Renderer) SwapChain() *SwapChain {
	return r.swapChain
}

// AspectRatio is 1 while no swap chain exists.
func (r *Renderer) AspectRatio() float32 {
	if r.swapChain == nil {
		return 1
	}
	return r.swapChain.ExtentAspectRatio()
}

func (r *Renderer) IsFrameInProgress() bool {
	return r.state != FrameIdle
}

func (r *Renderer) State() FrameState {
	return r.state
}

// CurrentCommandBuffer is the buffer being recorded for the frame in progress.
func (r *Renderer) CurrentCommandBuffer() (*VulkanCommandBuffer, error) {
	if !r.IsFrameInProgress() {
		return nil, errors.AssertionFailedf("cannot get command buffer when frame not in progress")
	}
	return r.frames[r.frameIndex].commandBuffer, nil
}

// FrameIndex is the current frame-in-flight slot.
func (r *Renderer) FrameIndex() int {
	return r.frameIndex
}

// FrameNumber counts frames submitted since creation.
func (r *Renderer) FrameNumber() uint64 {
	return r.frameNumber
}

func (r *Renderer) Context() *VulkanContext {
	return r.ctx
}

func (r *Renderer) Destroy() {
	if r.ctx.Driver != nil {
		if err := r.ctx.WaitIdle(); err != nil {
			core.LogError("waiting for device idle on shutdown: %s", err)
		}
	}
	r.deletions.FlushAll()

	for i := range r.frames {
		slot := &r.frames[i]
		if slot.commandBuffer != nil {
			slot.commandBuffer.Free()
			slot.commandBuffer = nil
		}
		if slot.inFlight != nil {
			slot.inFlight.Destroy()
			slot.inFlight = nil
		}
		if slot.imageAvailable != vk.NullSemaphore {
			r.ctx.Driver.DestroySemaphore(slot.imageAvailable)
			slot.imageAvailable = vk.NullSemaphore
		}
	}
	if r.swapChain != nil {
		r.swapChain.Destroy()
		r.swapChain = nil
	}
	r.state = FrameIdle
}
