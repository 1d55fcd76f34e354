package vulkan

import (
	"fmt"
	"sync/atomic"
	"testing"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/voxel/engine/core"
	"github.com/stretchr/testify/assert"
)

type fakeFence struct {
	signaled bool
	pending  bool
}

type recordedBarrier struct {
	srcStage, dstStage vk.PipelineStageFlags
	barrier            vk.ImageMemoryBarrier
}

// fakeDriver is an in-memory Driver. Submitted work completes when something
// waits on it. Misuse that a real driver would reject or that validation
// layers would flag is collected in violations.
type fakeDriver struct {
	fences     map[vk.Fence]*fakeFence
	cbFence    map[vk.CommandBuffer]vk.Fence
	memory     map[vk.DeviceMemory][]byte
	bufferSize map[vk.Buffer]vk.DeviceSize
	imageSize  map[vk.Image]vk.DeviceSize
	swapchains map[vk.Swapchain][]vk.Image
	live       map[string]int
	violations []string

	caps           vk.SurfaceCapabilities
	formatFeatures vk.FormatFeatureFlags
	acquireResults []vk.Result
	presentResults []vk.Result
	allocateError  error
	nextImage      uint32

	acquires, submits, presents int
	swapchainInfos              []vk.SwapchainCreateInfo
	flushed                     []vk.MappedMemoryRange
	barriers                    []recordedBarrier
	blits                       []vk.ImageBlit
	copies                      int
	descriptorWrites            []vk.WriteDescriptorSet
	allocatedSets               int
	pipelineInfos               []*vk.GraphicsPipelineCreateInfo
	pipelineLayoutInfos         []*vk.PipelineLayoutCreateInfo
	pushConstants               [][]byte
	viewports                   []vk.Viewport
	scissors                    []vk.Rect2D
	renderPassBegins            []vk.RenderPassBeginInfo
	boundPipelines              []vk.Pipeline
	boundSets                   []vk.DescriptorSet
	vertexBinds, indexBinds     int
	draws, indexedDraws         int
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		fences:     make(map[vk.Fence]*fakeFence),
		cbFence:    make(map[vk.CommandBuffer]vk.Fence),
		memory:     make(map[vk.DeviceMemory][]byte),
		bufferSize: make(map[vk.Buffer]vk.DeviceSize),
		imageSize:  make(map[vk.Image]vk.DeviceSize),
		swapchains: make(map[vk.Swapchain][]vk.Image),
		live:       make(map[string]int),
		caps: vk.SurfaceCapabilities{
			MinImageCount:    2,
			MaxImageCount:    3,
			CurrentExtent:    vk.Extent2D{Width: vk.MaxUint32, Height: vk.MaxUint32},
			MinImageExtent:   vk.Extent2D{Width: 1, Height: 1},
			MaxImageExtent:   vk.Extent2D{Width: 4096, Height: 4096},
			CurrentTransform: vk.SurfaceTransformIdentityBit,
		},
		formatFeatures: vk.FormatFeatureFlags(vk.FormatFeatureSampledImageFilterLinearBit),
	}
}

// Vulkan handles are pointers to incomplete C types, which must never point
// into the Go heap. Test handles are addresses inside a static arena.
var (
	handleArena [1 << 20]byte
	nextHandle  atomic.Uint32
)

// handle returns a non-nil pointer no other handle in the process shares.
func (f *fakeDriver) handle() unsafe.Pointer {
	i := nextHandle.Add(1)
	if int(i) >= len(handleArena) {
		panic("test handle arena exhausted")
	}
	return unsafe.Pointer(&handleArena[i])
}

func (f *fakeDriver) violate(format string, args ...interface{}) {
	f.violations = append(f.violations, fmt.Sprintf(format, args...))
}

func (f *fakeDriver) create(kind string) unsafe.Pointer {
	f.live[kind]++
	return f.handle()
}

func (f *fakeDriver) destroy(kind string, isNull bool) {
	if isNull {
		return
	}
	f.live[kind]--
	if f.live[kind] < 0 {
		f.violate("%s destroyed more often than created", kind)
	}
}

// completeAll finishes every pending submission.
func (f *fakeDriver) completeAll() {
	for _, fence := range f.fences {
		if fence.pending {
			fence.pending = false
			fence.signaled = true
		}
	}
}

func (f *fakeDriver) leaks() map[string]int {
	out := make(map[string]int)
	for kind, n := range f.live {
		if n != 0 {
			out[kind] = n
		}
	}
	return out
}

func (f *fakeDriver) DeviceWaitIdle() error {
	f.completeAll()
	return nil
}

func (f *fakeDriver) QueueWaitIdle(queue vk.Queue) error {
	f.completeAll()
	return nil
}

func (f *fakeDriver) AllocateMemory(info *vk.MemoryAllocateInfo) (vk.DeviceMemory, error) {
	if f.allocateError != nil {
		return vk.NullDeviceMemory, f.allocateError
	}
	mem := vk.DeviceMemory(f.create("memory"))
	f.memory[mem] = make([]byte, info.AllocationSize)
	return mem, nil
}

func (f *fakeDriver) FreeMemory(memory vk.DeviceMemory) {
	f.destroy("memory", memory == vk.NullDeviceMemory)
	delete(f.memory, memory)
}

func (f *fakeDriver) MapMemory(memory vk.DeviceMemory, offset, size vk.DeviceSize) ([]byte, error) {
	data, ok := f.memory[memory]
	if !ok {
		f.violate("mapping unknown memory")
		return nil, ResultError("vkMapMemory", vk.ErrorMemoryMapFailed)
	}
	return data[offset : offset+size], nil
}

func (f *fakeDriver) UnmapMemory(memory vk.DeviceMemory) {}

func (f *fakeDriver) FlushMappedMemoryRanges(ranges []vk.MappedMemoryRange) error {
	f.flushed = append(f.flushed, ranges...)
	return nil
}

func (f *fakeDriver) InvalidateMappedMemoryRanges(ranges []vk.MappedMemoryRange) error {
	return nil
}

func (f *fakeDriver) CreateBuffer(info *vk.BufferCreateInfo) (vk.Buffer, error) {
	b := vk.Buffer(f.create("buffer"))
	f.bufferSize[b] = info.Size
	return b, nil
}

func (f *fakeDriver) DestroyBuffer(buffer vk.Buffer) {
	f.destroy("buffer", buffer == vk.NullBuffer)
}

func (f *fakeDriver) BufferMemoryRequirements(buffer vk.Buffer) vk.MemoryRequirements {
	return vk.MemoryRequirements{Size: f.bufferSize[buffer], Alignment: 16, MemoryTypeBits: 0xFFFFFFFF}
}

func (f *fakeDriver) BindBufferMemory(buffer vk.Buffer, memory vk.DeviceMemory, offset vk.DeviceSize) error {
	return nil
}

func (f *fakeDriver) CreateImage(info *vk.ImageCreateInfo) (vk.Image, error) {
	img := vk.Image(f.create("image"))
	f.imageSize[img] = vk.DeviceSize(info.Extent.Width) * vk.DeviceSize(info.Extent.Height) * 4
	return img, nil
}

func (f *fakeDriver) DestroyImage(image vk.Image) {
	f.destroy("image", image == vk.NullImage)
}

func (f *fakeDriver) ImageMemoryRequirements(image vk.Image) vk.MemoryRequirements {
	return vk.MemoryRequirements{Size: f.imageSize[image], Alignment: 256, MemoryTypeBits: 0xFFFFFFFF}
}

func (f *fakeDriver) BindImageMemory(image vk.Image, memory vk.DeviceMemory, offset vk.DeviceSize) error {
	return nil
}

func (f *fakeDriver) CreateImageView(info *vk.ImageViewCreateInfo) (vk.ImageView, error) {
	return vk.ImageView(f.create("image view")), nil
}

func (f *fakeDriver) DestroyImageView(view vk.ImageView) {
	f.destroy("image view", view == vk.NullImageView)
}

func (f *fakeDriver) CreateSampler(info *vk.SamplerCreateInfo) (vk.Sampler, error) {
	return vk.Sampler(f.create("sampler")), nil
}

func (f *fakeDriver) DestroySampler(sampler vk.Sampler) {
	f.destroy("sampler", sampler == vk.NullSampler)
}

func (f *fakeDriver) FormatProperties(format vk.Format) vk.FormatProperties {
	return vk.FormatProperties{OptimalTilingFeatures: f.formatFeatures}
}

func (f *fakeDriver) CreateSemaphore() (vk.Semaphore, error) {
	return vk.Semaphore(f.create("semaphore")), nil
}

func (f *fakeDriver) DestroySemaphore(semaphore vk.Semaphore) {
	f.destroy("semaphore", semaphore == vk.NullSemaphore)
}

func (f *fakeDriver) CreateFence(signaled bool) (vk.Fence, error) {
	fence := vk.Fence(f.create("fence"))
	f.fences[fence] = &fakeFence{signaled: signaled}
	return fence, nil
}

func (f *fakeDriver) DestroyFence(fence vk.Fence) {
	if state, ok := f.fences[fence]; ok && state.pending {
		f.violate("destroying a fence with pending work")
	}
	f.destroy("fence", fence == vk.NullFence)
	delete(f.fences, fence)
}

func (f *fakeDriver) WaitForFences(fences []vk.Fence, waitAll bool, timeout uint64) vk.Result {
	for _, fence := range fences {
		state := f.fences[fence]
		switch {
		case state.pending:
			state.pending = false
			state.signaled = true
		case !state.signaled:
			// Nothing was submitted, the wait can never finish.
			return vk.Timeout
		}
	}
	return vk.Success
}

func (f *fakeDriver) ResetFences(fences []vk.Fence) error {
	for _, fence := range fences {
		state := f.fences[fence]
		if state.pending {
			f.violate("resetting a fence with pending work")
		}
		state.signaled = false
	}
	return nil
}

func (f *fakeDriver) SurfaceCapabilities(surface vk.Surface) (vk.SurfaceCapabilities, error) {
	return f.caps, nil
}

func (f *fakeDriver) CreateSwapchain(info *vk.SwapchainCreateInfo) (vk.Swapchain, error) {
	sc := vk.Swapchain(f.create("swapchain"))
	images := make([]vk.Image, info.MinImageCount)
	for i := range images {
		images[i] = vk.Image(f.handle())
	}
	f.swapchains[sc] = images
	f.swapchainInfos = append(f.swapchainInfos, *info)
	return sc, nil
}

func (f *fakeDriver) DestroySwapchain(swapchain vk.Swapchain) {
	f.destroy("swapchain", swapchain == vk.NullSwapchain)
	delete(f.swapchains, swapchain)
}

func (f *fakeDriver) SwapchainImages(swapchain vk.Swapchain) ([]vk.Image, error) {
	return append([]vk.Image(nil), f.swapchains[swapchain]...), nil
}

func (f *fakeDriver) AcquireNextImage(swapchain vk.Swapchain, timeout uint64, semaphore vk.Semaphore, fence vk.Fence) (uint32, vk.Result) {
	f.acquires++
	if len(f.acquireResults) > 0 {
		result := f.acquireResults[0]
		f.acquireResults = f.acquireResults[1:]
		if result != vk.Success && result != vk.Suboptimal {
			return 0, result
		}
	}
	images := f.swapchains[swapchain]
	index := f.nextImage % uint32(len(images))
	f.nextImage++
	return index, vk.Success
}

func (f *fakeDriver) QueueSubmit(queue vk.Queue, submits []vk.SubmitInfo, fence vk.Fence) error {
	f.submits++
	if fence != vk.NullFence {
		state := f.fences[fence]
		if state.signaled || state.pending {
			f.violate("submitting with a fence that is not reset")
		}
		state.pending = true
	}
	for _, submit := range submits {
		for _, cb := range submit.PCommandBuffers {
			f.cbFence[cb] = fence
		}
	}
	return nil
}

func (f *fakeDriver) QueuePresent(queue vk.Queue, info *vk.PresentInfo) vk.Result {
	f.presents++
	if len(f.presentResults) > 0 {
		result := f.presentResults[0]
		f.presentResults = f.presentResults[1:]
		return result
	}
	return vk.Success
}

func (f *fakeDriver) CreateRenderPass(info *vk.RenderPassCreateInfo) (vk.RenderPass, error) {
	return vk.RenderPass(f.create("render pass")), nil
}

func (f *fakeDriver) DestroyRenderPass(renderPass vk.RenderPass) {
	f.destroy("render pass", renderPass == vk.NullRenderPass)
}

func (f *fakeDriver) CreateFramebuffer(info *vk.FramebufferCreateInfo) (vk.Framebuffer, error) {
	return vk.Framebuffer(f.create("framebuffer")), nil
}

func (f *fakeDriver) DestroyFramebuffer(framebuffer vk.Framebuffer) {
	f.destroy("framebuffer", framebuffer == vk.NullFramebuffer)
}

func (f *fakeDriver) AllocateCommandBuffers(pool vk.CommandPool, level vk.CommandBufferLevel, count uint32) ([]vk.CommandBuffer, error) {
	out := make([]vk.CommandBuffer, count)
	for i := range out {
		out[i] = vk.CommandBuffer(f.create("command buffer"))
	}
	return out, nil
}

func (f *fakeDriver) FreeCommandBuffers(pool vk.CommandPool, buffers []vk.CommandBuffer) {
	for _, cb := range buffers {
		f.checkNotInFlight(cb, "freeing")
		f.destroy("command buffer", cb == nil)
		delete(f.cbFence, cb)
	}
}

func (f *fakeDriver) checkNotInFlight(cb vk.CommandBuffer, what string) {
	fence, ok := f.cbFence[cb]
	if !ok || fence == vk.NullFence {
		return
	}
	if state, ok := f.fences[fence]; ok && state.pending {
		f.violate("%s a command buffer whose previous submission has not completed", what)
	}
}

func (f *fakeDriver) BeginCommandBuffer(buffer vk.CommandBuffer, flags vk.CommandBufferUsageFlags) error {
	f.checkNotInFlight(buffer, "beginning")
	return nil
}

func (f *fakeDriver) EndCommandBuffer(buffer vk.CommandBuffer) error { return nil }

func (f *fakeDriver) ResetCommandBuffer(buffer vk.CommandBuffer) error {
	f.checkNotInFlight(buffer, "resetting")
	return nil
}

func (f *fakeDriver) CmdBeginRenderPass(buffer vk.CommandBuffer, info *vk.RenderPassBeginInfo) {
	f.renderPassBegins = append(f.renderPassBegins, *info)
}

func (f *fakeDriver) CmdEndRenderPass(buffer vk.CommandBuffer) {}

func (f *fakeDriver) CmdSetViewport(buffer vk.CommandBuffer, viewports []vk.Viewport) {
	f.viewports = append(f.viewports, viewports...)
}

func (f *fakeDriver) CmdSetScissor(buffer vk.CommandBuffer, scissors []vk.Rect2D) {
	f.scissors = append(f.scissors, scissors...)
}

func (f *fakeDriver) CmdBindPipeline(buffer vk.CommandBuffer, bindPoint vk.PipelineBindPoint, pipeline vk.Pipeline) {
	f.boundPipelines = append(f.boundPipelines, pipeline)
}

func (f *fakeDriver) CmdBindDescriptorSets(buffer vk.CommandBuffer, bindPoint vk.PipelineBindPoint, layout vk.PipelineLayout, firstSet uint32, sets []vk.DescriptorSet) {
	f.boundSets = append(f.boundSets, sets...)
}

func (f *fakeDriver) CmdPushConstants(buffer vk.CommandBuffer, layout vk.PipelineLayout, stages vk.ShaderStageFlags, offset uint32, data []byte) {
	f.pushConstants = append(f.pushConstants, append([]byte(nil), data...))
}

func (f *fakeDriver) CmdBindVertexBuffers(buffer vk.CommandBuffer, firstBinding uint32, buffers []vk.Buffer, offsets []vk.DeviceSize) {
	f.vertexBinds++
}

func (f *fakeDriver) CmdBindIndexBuffer(buffer vk.CommandBuffer, index vk.Buffer, offset vk.DeviceSize, indexType vk.IndexType) {
	f.indexBinds++
}

func (f *fakeDriver) CmdDraw(buffer vk.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	f.draws++
}

func (f *fakeDriver) CmdDrawIndexed(buffer vk.CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	f.indexedDraws++
}

func (f *fakeDriver) CmdPipelineBarrier(buffer vk.CommandBuffer, srcStage, dstStage vk.PipelineStageFlags, barriers []vk.ImageMemoryBarrier) {
	for _, b := range barriers {
		f.barriers = append(f.barriers, recordedBarrier{srcStage: srcStage, dstStage: dstStage, barrier: b})
	}
}

func (f *fakeDriver) CmdCopyBuffer(buffer vk.CommandBuffer, src, dst vk.Buffer, regions []vk.BufferCopy) {
	f.copies++
}

func (f *fakeDriver) CmdCopyBufferToImage(buffer vk.CommandBuffer, src vk.Buffer, dst vk.Image, layout vk.ImageLayout, regions []vk.BufferImageCopy) {
	f.copies++
}

func (f *fakeDriver) CmdBlitImage(buffer vk.CommandBuffer, src vk.Image, srcLayout vk.ImageLayout, dst vk.Image, dstLayout vk.ImageLayout, regions []vk.ImageBlit, filter vk.Filter) {
	f.blits = append(f.blits, regions...)
}

func (f *fakeDriver) CreateShaderModule(code []uint32) (vk.ShaderModule, error) {
	return vk.ShaderModule(f.create("shader module")), nil
}

func (f *fakeDriver) DestroyShaderModule(module vk.ShaderModule) {
	f.destroy("shader module", module == vk.NullShaderModule)
}

func (f *fakeDriver) CreatePipelineLayout(info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error) {
	f.pipelineLayoutInfos = append(f.pipelineLayoutInfos, info)
	return vk.PipelineLayout(f.create("pipeline layout")), nil
}

func (f *fakeDriver) DestroyPipelineLayout(layout vk.PipelineLayout) {
	f.destroy("pipeline layout", layout == vk.NullPipelineLayout)
}

func (f *fakeDriver) CreateGraphicsPipeline(info *vk.GraphicsPipelineCreateInfo) (vk.Pipeline, error) {
	f.pipelineInfos = append(f.pipelineInfos, info)
	return vk.Pipeline(f.create("pipeline")), nil
}

func (f *fakeDriver) DestroyPipeline(pipeline vk.Pipeline) {
	f.destroy("pipeline", pipeline == vk.NullPipeline)
}

func (f *fakeDriver) CreateDescriptorSetLayout(info *vk.DescriptorSetLayoutCreateInfo) (vk.DescriptorSetLayout, error) {
	return vk.DescriptorSetLayout(f.create("descriptor set layout")), nil
}

func (f *fakeDriver) DestroyDescriptorSetLayout(layout vk.DescriptorSetLayout) {
	f.destroy("descriptor set layout", layout == nil)
}

func (f *fakeDriver) CreateDescriptorPool(info *vk.DescriptorPoolCreateInfo) (vk.DescriptorPool, error) {
	return vk.DescriptorPool(f.create("descriptor pool")), nil
}

func (f *fakeDriver) DestroyDescriptorPool(pool vk.DescriptorPool) {
	f.destroy("descriptor pool", pool == nil)
}

func (f *fakeDriver) ResetDescriptorPool(pool vk.DescriptorPool) error { return nil }

func (f *fakeDriver) AllocateDescriptorSets(pool vk.DescriptorPool, layouts []vk.DescriptorSetLayout) ([]vk.DescriptorSet, error) {
	out := make([]vk.DescriptorSet, len(layouts))
	for i := range out {
		out[i] = vk.DescriptorSet(f.handle())
	}
	f.allocatedSets += len(layouts)
	return out, nil
}

func (f *fakeDriver) FreeDescriptorSets(pool vk.DescriptorPool, sets []vk.DescriptorSet) error {
	f.allocatedSets -= len(sets)
	return nil
}

func (f *fakeDriver) UpdateDescriptorSets(writes []vk.WriteDescriptorSet) {
	f.descriptorWrites = append(f.descriptorWrites, writes...)
}

// Memory types of the fake device: 0 device-local, 1 host-visible only,
// 2 host-visible and coherent.
func fakeMemoryProperties() vk.PhysicalDeviceMemoryProperties {
	var props vk.PhysicalDeviceMemoryProperties
	props.MemoryTypeCount = 3
	props.MemoryTypes[0].PropertyFlags = vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	props.MemoryTypes[1].PropertyFlags = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit)
	props.MemoryTypes[2].PropertyFlags = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	props.MemoryHeapCount = 1
	return props
}

func newTestContext(t *testing.T) (*VulkanContext, *fakeDriver) {
	t.Helper()
	driver := newFakeDriver()

	device := &VulkanDevice{
		GraphicsQueueIndex:  0,
		PresentQueueIndex:   0,
		GraphicsQueue:       vk.Queue(driver.handle()),
		PresentQueue:        vk.Queue(driver.handle()),
		GraphicsCommandPool: vk.CommandPool(driver.handle()),
		Memory:              fakeMemoryProperties(),
		DepthFormat:         vk.FormatD32Sfloat,
		SwapchainSupport: VulkanSwapchainSupportInfo{
			Formats: []vk.SurfaceFormat{
				{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
				{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
			},
			PresentModes: []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox},
		},
	}
	device.Properties.Limits.NonCoherentAtomSize = 64
	device.Properties.Limits.MinUniformBufferOffsetAlignment = 256
	device.Properties.Limits.MaxPushConstantsSize = 128
	device.Properties.Limits.MaxSamplerAnisotropy = 16
	device.Features.SamplerAnisotropy = vk.True

	cfg := core.DefaultConfig().Renderer
	ctx := &VulkanContext{
		Surface: vk.Surface(driver.handle()),
		Device:  device,
		Driver:  driver,
		Locks:   NewVulkanLockPool(),
		Config:  cfg,
	}
	return ctx, driver
}

type fakeWindow struct {
	width, height uint32
	resized       bool
}

func (w *fakeWindow) FramebufferSize() (uint32, uint32) { return w.width, w.height }
func (w *fakeWindow) WasResized() bool                  { return w.resized }
func (w *fakeWindow) ResetResizedFlag()                 { w.resized = false }

func (w *fakeWindow) resize(width, height uint32) {
	w.width, w.height = width, height
	w.resized = true
}

// assertHandle compares Vulkan handles by address. Handles point at
// incomplete C types, so reflection sees every two of them as equal.
func assertHandle[H comparable](t *testing.T, want, got H, msgAndArgs ...interface{}) bool {
	t.Helper()
	return assert.True(t, want == got, msgAndArgs...)
}

func assertHandles[H comparable](t *testing.T, want, got []H) {
	t.Helper()
	if assert.Len(t, got, len(want)) {
		for i := range want {
			assertHandle(t, want[i], got[i], "handle %d", i)
		}
	}
}

func TestHandlesAreDistinctAndPrintable(t *testing.T) {
	driver := newFakeDriver()
	a, b := vk.Buffer(driver.handle()), vk.Buffer(driver.handle())
	assert.True(t, a != b)
	assert.NotPanics(t, func() {
		_ = fmt.Sprintf("%v %p", a, b)
		assert.ObjectsAreEqual(a, b)
	})
}
