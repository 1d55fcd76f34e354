package vulkan

import (
	"strings"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/voxel/engine/core"
	vmath "github.com/spaghettifunk/voxel/engine/math"
)

// FrameSync is the per-frame-slot synchronization handed to SubmitCommandBuffers.
type FrameSync struct {
	ImageAvailable vk.Semaphore
	InFlight       *VulkanFence
}

// SwapChain owns the presentable images and everything sized to them: views,
// depth buffers, framebuffers, the render pass and one render-finished
// semaphore per image. Image count and extent never change; a resize builds
// a new SwapChain.
type SwapChain struct {
	Handle vk.Swapchain

	ctx          *VulkanContext
	imageFormat  vk.SurfaceFormat
	depthFormat  vk.Format
	presentMode  vk.PresentMode
	extent       vk.Extent2D
	windowExtent vk.Extent2D

	images         []vk.Image
	views          []vk.ImageView
	depthImages    []*VulkanImage
	framebuffers   []*VulkanFramebuffer
	renderPass     *VulkanRenderpass
	renderFinished []vk.Semaphore

	// Fence of the frame that last rendered into each image, not owned.
	imagesInFlight []*VulkanFence
}

// NewSwapChain creates a swap chain for windowExtent. previous, when set, is
// handed to the driver as the old swap chain; the caller destroys it once the
// new one exists.
func NewSwapChain(ctx *VulkanContext, windowExtent vk.Extent2D, previous *SwapChain) (*SwapChain, error) {
	sc := &SwapChain{
		ctx:          ctx,
		windowExtent: windowExtent,
		depthFormat:  ctx.Device.DepthFormat,
	}
	if err := sc.createSwapChain(previous); err != nil {
		sc.Destroy()
		return nil, err
	}
	if err := sc.createImageViews(); err != nil {
		sc.Destroy()
		return nil, err
	}
	if err := sc.createRenderPass(); err != nil {
		sc.Destroy()
		return nil, err
	}
	if err := sc.createDepthResources(); err != nil {
		sc.Destroy()
		return nil, err
	}
	if err := sc.createFramebuffers(); err != nil {
		sc.Destroy()
		return nil, err
	}
	if err := sc.createSyncObjects(); err != nil {
		sc.Destroy()
		return nil, err
	}

	core.LogInfo("Swapchain created: %dx%d, %d images, present mode %d.", sc.extent.Width, sc.extent.Height, len(sc.images), sc.presentMode)
	return sc, nil
}

func (sc *SwapChain) createSwapChain(previous *SwapChain) error {
	support := sc.ctx.Device.SwapchainSupport
	if len(support.Formats) == 0 || len(support.PresentModes) == 0 {
		return core.WithKind(errors.New("surface reports no formats or present modes"), core.ErrInitialization)
	}
	capabilities, err := sc.ctx.Driver.SurfaceCapabilities(sc.ctx.Surface)
	if err != nil {
		return errors.Wrap(err, "querying surface capabilities")
	}

	sc.imageFormat = chooseSurfaceFormat(support.Formats)
	sc.presentMode = choosePresentMode(support.PresentModes, sc.ctx.Config.PresentMode)
	sc.extent = chooseExtent(capabilities, sc.windowExtent)

	imageCount := capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 && imageCount > capabilities.MaxImageCount {
		imageCount = capabilities.MaxImageCount
	}

	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          sc.ctx.Surface,
		MinImageCount:    imageCount,
		ImageFormat:      sc.imageFormat.Format,
		ImageColorSpace:  sc.imageFormat.ColorSpace,
		ImageExtent:      sc.extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      sc.presentMode,
		Clipped:          vk.True,
		OldSwapchain:     vk.NullSwapchain,
	}

	// Setup the queue family indices
	device := sc.ctx.Device
	if device.GraphicsQueueIndex != device.PresentQueueIndex {
		createInfo.ImageSharingMode = vk.SharingModeConcurrent
		createInfo.QueueFamilyIndexCount = 2
		createInfo.PQueueFamilyIndices = []uint32{device.GraphicsQueueIndex, device.PresentQueueIndex}
	} else {
		createInfo.ImageSharingMode = vk.SharingModeExclusive
	}
	if previous != nil {
		createInfo.OldSwapchain = previous.Handle
	}

	handle, err := sc.ctx.Driver.CreateSwapchain(&createInfo)
	if err != nil {
		return errors.Wrap(err, "creating swapchain")
	}
	sc.Handle = handle

	images, err := sc.ctx.Driver.SwapchainImages(handle)
	if err != nil {
		return errors.Wrap(err, "getting swapchain images")
	}
	sc.images = images
	return nil
}

func (sc *SwapChain) createImageViews() error {
	sc.views = make([]vk.ImageView, 0, len(sc.images))
	for _, image := range sc.images {
		view, err := CreateImageView(sc.ctx.Driver, image, sc.imageFormat.Format, vk.ImageAspectFlags(vk.ImageAspectColorBit), 1)
		if err != nil {
			return err
		}
		sc.views = append(sc.views, view)
	}
	return nil
}

func (sc *SwapChain) createRenderPass() error {
	if sc.depthFormat == vk.FormatUndefined {
		return core.WithKind(errors.New("no supported depth format"), core.ErrUnsupportedFormat)
	}
	rp, err := RenderpassCreate(sc.ctx, sc.imageFormat.Format, sc.depthFormat, sc.ctx.Config.ClearColor, 1.0, 0)
	if err != nil {
		return err
	}
	sc.renderPass = rp
	return nil
}

func (sc *SwapChain) createDepthResources() error {
	sc.depthImages = make([]*VulkanImage, 0, len(sc.images))
	for range sc.images {
		depth, err := ImageCreate(sc.ctx, ImageConfig{
			Width:       sc.extent.Width,
			Height:      sc.extent.Height,
			Format:      sc.depthFormat,
			Tiling:      vk.ImageTilingOptimal,
			Usage:       vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
			MemoryFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
			CreateView:  true,
			ViewAspect:  vk.ImageAspectFlags(vk.ImageAspectDepthBit),
		})
		if err != nil {
			return errors.Wrap(err, "creating depth attachment")
		}
		sc.depthImages = append(sc.depthImages, depth)
	}
	return nil
}

func (sc *SwapChain) createFramebuffers() error {
	sc.framebuffers = make([]*VulkanFramebuffer, 0, len(sc.images))
	for i := range sc.images {
		fb, err := FramebufferCreate(sc.ctx, sc.renderPass, sc.extent.Width, sc.extent.Height,
			[]vk.ImageView{sc.views[i], sc.depthImages[i].View})
		if err != nil {
			return err
		}
		sc.framebuffers = append(sc.framebuffers, fb)
	}
	return nil
}

func (sc *SwapChain) createSyncObjects() error {
	sc.renderFinished = make([]vk.Semaphore, 0, len(sc.images))
	for range sc.images {
		sem, err := sc.ctx.Driver.CreateSemaphore()
		if err != nil {
			return errors.Wrap(err, "creating render-finished semaphore")
		}
		sc.renderFinished = append(sc.renderFinished, sem)
	}
	sc.imagesInFlight = make([]*VulkanFence, len(sc.images))
	return nil
}

// AcquireNextImage returns the index of the next presentable image. imageAvailable
// is signaled when the image may be written. An out-of-date swap chain yields an
// error marked core.ErrSwapchainOutOfDate; suboptimal is accepted.
func (sc *SwapChain) AcquireNextImage(imageAvailable vk.Semaphore) (uint32, error) {
	index, result := sc.ctx.Driver.AcquireNextImage(sc.Handle, sc.ctx.acquireTimeout(), imageAvailable, vk.NullFence)
	switch result {
	case vk.Success, vk.Suboptimal:
		return index, nil
	default:
		return 0, ResultError("vkAcquireNextImageKHR", result)
	}
}

// SubmitCommandBuffers submits buffers for imageIndex and presents it. The
// submission waits on sync.ImageAvailable and signals sync.InFlight. A
// suboptimal or out-of-date present is reported as core.ErrSwapchainOutOfDate
// after the work has been queued.
func (sc *SwapChain) SubmitCommandBuffers(buffers []*VulkanCommandBuffer, imageIndex uint32, sync FrameSync) error {
	if int(imageIndex) >= len(sc.images) {
		return errors.AssertionFailedf("image index %d out of range (%d images)", imageIndex, len(sc.images))
	}
	handles := make([]vk.CommandBuffer, len(buffers))
	for i, cb := range buffers {
		if cb.State != COMMAND_BUFFER_STATE_RECORDING_ENDED {
			return errors.AssertionFailedf("submitting command buffer in state %d", cb.State)
		}
		handles[i] = cb.Handle
	}

	// Another frame slot may still be rendering into this image.
	if prev := sc.imagesInFlight[imageIndex]; prev != nil && prev != sync.InFlight {
		if err := prev.Wait(sc.ctx.fenceTimeout()); err != nil {
			return err
		}
	}
	sc.imagesInFlight[imageIndex] = sync.InFlight

	renderFinished := sc.renderFinished[imageIndex]
	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{sync.ImageAvailable},
		PWaitDstStageMask:    []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
		CommandBufferCount:   uint32(len(handles)),
		PCommandBuffers:      handles,
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{renderFinished},
	}

	if err := sync.InFlight.Reset(); err != nil {
		return err
	}
	device := sc.ctx.Device
	err := sc.ctx.Locks.SafeQueueCall(device.GraphicsQueueIndex, func() error {
		return sc.ctx.Driver.QueueSubmit(device.GraphicsQueue, []vk.SubmitInfo{submitInfo}, sync.InFlight.Handle)
	})
	if err != nil {
		return errors.Wrap(err, "submitting draw command buffer")
	}
	for _, cb := range buffers {
		cb.UpdateSubmitted()
	}

	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{renderFinished},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{sc.Handle},
		PImageIndices:      []uint32{imageIndex},
	}
	var result vk.Result
	_ = sc.ctx.Locks.SafeQueueCall(device.PresentQueueIndex, func() error {
		result = sc.ctx.Driver.QueuePresent(device.PresentQueue, &presentInfo)
		return nil
	})
	if result != vk.Success {
		return ResultError("vkQueuePresentKHR", result)
	}
	return nil
}

// CompareSwapFormats reports whether other renders into the same color and
// depth formats, so pipelines built against one render pass stay compatible.
func (sc *SwapChain) CompareSwapFormats(other *SwapChain) bool {
	return sc.imageFormat.Format == other.imageFormat.Format && sc.depthFormat == other.depthFormat
}

func (sc *SwapChain) Extent() vk.Extent2D {
	return sc.extent
}

func (sc *SwapChain) Width() uint32  { return sc.extent.Width }
func (sc *SwapChain) Height() uint32 { return sc.extent.Height }

func (sc *SwapChain) ImageCount() int {
	return len(sc.images)
}

func (sc *SwapChain) RenderPass() *VulkanRenderpass {
	return sc.renderPass
}

func (sc *SwapChain) Framebuffer(index uint32) *VulkanFramebuffer {
	return sc.framebuffers[index]
}

func (sc *SwapChain) ImageView(index uint32) vk.ImageView {
	return sc.views[index]
}

func (sc *SwapChain) ImageFormat() vk.Format {
	return sc.imageFormat.Format
}

func (sc *SwapChain) DepthFormat() vk.Format {
	return sc.depthFormat
}

func (sc *SwapChain) PresentMode() vk.PresentMode {
	return sc.presentMode
}

func (sc *SwapChain) ExtentAspectRatio() float32 {
	if sc.extent.Height == 0 {
		return 0
	}
	return float32(sc.extent.Width) / float32(sc.extent.Height)
}

// Destroy releases everything the swap chain created. The caller must ensure
// the device no longer uses any of it.
func (sc *SwapChain) Destroy() {
	driver := sc.ctx.Driver
	for _, fb := range sc.framebuffers {
		fb.Destroy()
	}
	sc.framebuffers = nil
	for _, depth := range sc.depthImages {
		depth.Destroy()
	}
	sc.depthImages = nil
	if sc.renderPass != nil {
		sc.renderPass.Destroy()
		sc.renderPass = nil
	}
	// Only destroy the views, the images belong to the swapchain itself.
	for _, view := range sc.views {
		driver.DestroyImageView(view)
	}
	sc.views = nil
	for _, sem := range sc.renderFinished {
		driver.DestroySemaphore(sem)
	}
	sc.renderFinished = nil
	sc.imagesInFlight = nil
	if sc.Handle != vk.NullSwapchain {
		driver.DestroySwapchain(sc.Handle)
		sc.Handle = vk.NullSwapchain
	}
	sc.images = nil
}

func chooseSurfaceFormat(formats []vk.SurfaceFormat) vk.SurfaceFormat {
	for _, format := range formats {
		// Preferred formats
		if format.Format == vk.FormatB8g8r8a8Srgb && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return format
		}
	}
	return formats[0]
}

func choosePresentMode(modes []vk.PresentMode, preferred string) vk.PresentMode {
	var want vk.PresentMode
	switch strings.ToLower(preferred) {
	case "mailbox":
		want = vk.PresentModeMailbox
	case "immediate":
		want = vk.PresentModeImmediate
	default:
		return vk.PresentModeFifo
	}
	for _, mode := range modes {
		if mode == want {
			return mode
		}
	}
	// FIFO is always supported.
	return vk.PresentModeFifo
}

func chooseExtent(capabilities vk.SurfaceCapabilities, window vk.Extent2D) vk.Extent2D {
	if capabilities.CurrentExtent.Width != vk.MaxUint32 {
		return capabilities.CurrentExtent
	}
	// Clamp to the value allowed by the GPU.
	minExtent := capabilities.MinImageExtent
	maxExtent := capabilities.MaxImageExtent
	return vk.Extent2D{
		Width:  vmath.Clamp(window.Width, minExtent.Width, maxExtent.Width),
		Height: vmath.Clamp(window.Height, minExtent.Height, maxExtent.Height),
	}
}
