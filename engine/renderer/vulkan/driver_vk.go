package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"
)

type vkDriver struct {
	physical  vk.PhysicalDevice
	device    vk.Device
	allocator *vk.AllocationCallbacks
}

// NewVkDriver forwards every Driver call to the loaded Vulkan implementation.
func NewVkDriver(physical vk.PhysicalDevice, device vk.Device, allocator *vk.AllocationCallbacks) Driver {
	return &vkDriver{physical: physical, device: device, allocator: allocator}
}

func (d *vkDriver) DeviceWaitIdle() error {
	return ResultError("vkDeviceWaitIdle", vk.DeviceWaitIdle(d.device))
}

func (d *vkDriver) QueueWaitIdle(queue vk.Queue) error {
	return ResultError("vkQueueWaitIdle", vk.QueueWaitIdle(queue))
}

func (d *vkDriver) AllocateMemory(info *vk.MemoryAllocateInfo) (vk.DeviceMemory, error) {
	var memory vk.DeviceMemory
	if err := ResultError("vkAllocateMemory", vk.AllocateMemory(d.device, info, d.allocator, &memory)); err != nil {
		return vk.NullDeviceMemory, err
	}
	return memory, nil
}

func (d *vkDriver) FreeMemory(memory vk.DeviceMemory) {
	vk.FreeMemory(d.device, memory, d.allocator)
}

func (d *vkDriver) MapMemory(memory vk.DeviceMemory, offset, size vk.DeviceSize) ([]byte, error) {
	var data unsafe.Pointer
	if err := ResultError("vkMapMemory", vk.MapMemory(d.device, memory, offset, size, 0, &data)); err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(data), int(size)), nil
}

func (d *vkDriver) UnmapMemory(memory vk.DeviceMemory) {
	vk.UnmapMemory(d.device, memory)
}

func (d *vkDriver) FlushMappedMemoryRanges(ranges []vk.MappedMemoryRange) error {
	return ResultError("vkFlushMappedMemoryRanges", vk.FlushMappedMemoryRanges(d.device, uint32(len(ranges)), ranges))
}

func (d *vkDriver) InvalidateMappedMemoryRanges(ranges []vk.MappedMemoryRange) error {
	return ResultError("vkInvalidateMappedMemoryRanges", vk.InvalidateMappedMemoryRanges(d.device, uint32(len(ranges)), ranges))
}

func (d *vkDriver) CreateBuffer(info *vk.BufferCreateInfo) (vk.Buffer, error) {
	var buffer vk.Buffer
	if err := ResultError("vkCreateBuffer", vk.CreateBuffer(d.device, info, d.allocator, &buffer)); err != nil {
		return vk.NullBuffer, err
	}
	return buffer, nil
}

func (d *vkDriver) DestroyBuffer(buffer vk.Buffer) {
	vk.DestroyBuffer(d.device, buffer, d.allocator)
}

func (d *vkDriver) BufferMemoryRequirements(buffer vk.Buffer) vk.MemoryRequirements {
	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.device, buffer, &reqs)
	reqs.Deref()
	return reqs
}

func (d *vkDriver) BindBufferMemory(buffer vk.Buffer, memory vk.DeviceMemory, offset vk.DeviceSize) error {
	return ResultError("vkBindBufferMemory", vk.BindBufferMemory(d.device, buffer, memory, offset))
}

func (d *vkDriver) CreateImage(info *vk.ImageCreateInfo) (vk.Image, error) {
	var image vk.Image
	if err := ResultError("vkCreateImage", vk.CreateImage(d.device, info, d.allocator, &image)); err != nil {
		return vk.NullImage, err
	}
	return image, nil
}

func (d *vkDriver) DestroyImage(image vk.Image) {
	vk.DestroyImage(d.device, image, d.allocator)
}

func (d *vkDriver) ImageMemoryRequirements(image vk.Image) vk.MemoryRequirements {
	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.device, image, &reqs)
	reqs.Deref()
	return reqs
}

func (d *vkDriver) BindImageMemory(image vk.Image, memory vk.DeviceMemory, offset vk.DeviceSize) error {
	return ResultError("vkBindImageMemory", vk.BindImageMemory(d.device, image, memory, offset))
}

func (d *vkDriver) CreateImageView(info *vk.ImageViewCreateInfo) (vk.ImageView, error) {
	var view vk.ImageView
	if err := ResultError("vkCreateImageView", vk.CreateImageView(d.device, info, d.allocator, &view)); err != nil {
		return vk.NullImageView, err
	}
	return view, nil
}

func (d *vkDriver) DestroyImageView(view vk.ImageView) {
	vk.DestroyImageView(d.device, view, d.allocator)
}

func (d *vkDriver) CreateSampler(info *vk.SamplerCreateInfo) (vk.Sampler, error) {
	var sampler vk.Sampler
	if err := ResultError("vkCreateSampler", vk.CreateSampler(d.device, info, d.allocator, &sampler)); err != nil {
		return vk.NullSampler, err
	}
	return sampler, nil
}

func (d *vkDriver) DestroySampler(sampler vk.Sampler) {
	vk.DestroySampler(d.device, sampler, d.allocator)
}

func (d *vkDriver) FormatProperties(format vk.Format) vk.FormatProperties {
	var props vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(d.physical, format, &props)
	props.Deref()
	return props
}

func (d *vkDriver) CreateSemaphore() (vk.Semaphore, error) {
	info := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
	var semaphore vk.Semaphore
	if err := ResultError("vkCreateSemaphore", vk.CreateSemaphore(d.device, &info, d.allocator, &semaphore)); err != nil {
		return vk.NullSemaphore, err
	}
	return semaphore, nil
}

func (d *vkDriver) DestroySemaphore(semaphore vk.Semaphore) {
	vk.DestroySemaphore(d.device, semaphore, d.allocator)
}

func (d *vkDriver) CreateFence(signaled bool) (vk.Fence, error) {
	info := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	if err := ResultError("vkCreateFence", vk.CreateFence(d.device, &info, d.allocator, &fence)); err != nil {
		return vk.NullFence, err
	}
	return fence, nil
}

func (d *vkDriver) DestroyFence(fence vk.Fence) {
	vk.DestroyFence(d.device, fence, d.allocator)
}

func (d *vkDriver) WaitForFences(fences []vk.Fence, waitAll bool, timeout uint64) vk.Result {
	all := vk.Bool32(vk.False)
	if waitAll {
		all = vk.True
	}
	return vk.WaitForFences(d.device, uint32(len(fences)), fences, all, timeout)
}

func (d *vkDriver) ResetFences(fences []vk.Fence) error {
	return ResultError("vkResetFences", vk.ResetFences(d.device, uint32(len(fences)), fences))
}

func (d *vkDriver) SurfaceCapabilities(surface vk.Surface) (vk.SurfaceCapabilities, error) {
	var caps vk.SurfaceCapabilities
	if err := ResultError("vkGetPhysicalDeviceSurfaceCapabilitiesKHR", vk.GetPhysicalDeviceSurfaceCapabilities(d.physical, surface, &caps)); err != nil {
		return caps, err
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()
	return caps, nil
}

func (d *vkDriver) CreateSwapchain(info *vk.SwapchainCreateInfo) (vk.Swapchain, error) {
	var swapchain vk.Swapchain
	if err := ResultError("vkCreateSwapchainKHR", vk.CreateSwapchain(d.device, info, d.allocator, &swapchain)); err != nil {
		return vk.NullSwapchain, err
	}
	return swapchain, nil
}

func (d *vkDriver) DestroySwapchain(swapchain vk.Swapchain) {
	vk.DestroySwapchain(d.device, swapchain, d.allocator)
}

func (d *vkDriver) SwapchainImages(swapchain vk.Swapchain) ([]vk.Image, error) {
	var count uint32
	if err := ResultError("vkGetSwapchainImagesKHR", vk.GetSwapchainImages(d.device, swapchain, &count, nil)); err != nil {
		return nil, err
	}
	images := make([]vk.Image, count)
	if err := ResultError("vkGetSwapchainImagesKHR", vk.GetSwapchainImages(d.device, swapchain, &count, images)); err != nil {
		return nil, err
	}
	return images[:count], nil
}

func (d *vkDriver) AcquireNextImage(swapchain vk.Swapchain, timeout uint64, semaphore vk.Semaphore, fence vk.Fence) (uint32, vk.Result) {
	var index uint32
	res := vk.AcquireNextImage(d.device, swapchain, timeout, semaphore, fence, &index)
	return index, res
}

func (d *vkDriver) QueueSubmit(queue vk.Queue, submits []vk.SubmitInfo, fence vk.Fence) error {
	return ResultError("vkQueueSubmit", vk.QueueSubmit(queue, uint32(len(submits)), submits, fence))
}

func (d *vkDriver) QueuePresent(queue vk.Queue, info *vk.PresentInfo) vk.Result {
	return vk.QueuePresent(queue, info)
}

func (d *vkDriver) CreateRenderPass(info *vk.RenderPassCreateInfo) (vk.RenderPass, error) {
	var renderPass vk.RenderPass
	if err := ResultError("vkCreateRenderPass", vk.CreateRenderPass(d.device, info, d.allocator, &renderPass)); err != nil {
		return vk.NullRenderPass, err
	}
	return renderPass, nil
}

func (d *vkDriver) DestroyRenderPass(renderPass vk.RenderPass) {
	vk.DestroyRenderPass(d.device, renderPass, d.allocator)
}

func (d *vkDriver) CreateFramebuffer(info *vk.FramebufferCreateInfo) (vk.Framebuffer, error) {
	var framebuffer vk.Framebuffer
	if err := ResultError("vkCreateFramebuffer", vk.CreateFramebuffer(d.device, info, d.allocator, &framebuffer)); err != nil {
		return vk.NullFramebuffer, err
	}
	return framebuffer, nil
}

func (d *vkDriver) DestroyFramebuffer(framebuffer vk.Framebuffer) {
	vk.DestroyFramebuffer(d.device, framebuffer, d.allocator)
}

func (d *vkDriver) AllocateCommandBuffers(pool vk.CommandPool, level vk.CommandBufferLevel, count uint32) ([]vk.CommandBuffer, error) {
	info := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              level,
		CommandBufferCount: count,
	}
	buffers := make([]vk.CommandBuffer, count)
	if err := ResultError("vkAllocateCommandBuffers", vk.AllocateCommandBuffers(d.device, &info, buffers)); err != nil {
		return nil, err
	}
	return buffers, nil
}

func (d *vkDriver) FreeCommandBuffers(pool vk.CommandPool, buffers []vk.CommandBuffer) {
	vk.FreeCommandBuffers(d.device, pool, uint32(len(buffers)), buffers)
}

func (d *vkDriver) BeginCommandBuffer(buffer vk.CommandBuffer, flags vk.CommandBufferUsageFlags) error {
	info := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: flags,
	}
	return ResultError("vkBeginCommandBuffer", vk.BeginCommandBuffer(buffer, &info))
}

func (d *vkDriver) EndCommandBuffer(buffer vk.CommandBuffer) error {
	return ResultError("vkEndCommandBuffer", vk.EndCommandBuffer(buffer))
}

func (d *vkDriver) ResetCommandBuffer(buffer vk.CommandBuffer) error {
	return ResultError("vkResetCommandBuffer", vk.ResetCommandBuffer(buffer, 0))
}

func (d *vkDriver) CmdBeginRenderPass(buffer vk.CommandBuffer, info *vk.RenderPassBeginInfo) {
	vk.CmdBeginRenderPass(buffer, info, vk.SubpassContentsInline)
}

func (d *vkDriver) CmdEndRenderPass(buffer vk.CommandBuffer) {
	vk.CmdEndRenderPass(buffer)
}

func (d *vkDriver) CmdSetViewport(buffer vk.CommandBuffer, viewports []vk.Viewport) {
	vk.CmdSetViewport(buffer, 0, uint32(len(viewports)), viewports)
}

func (d *vkDriver) CmdSetScissor(buffer vk.CommandBuffer, scissors []vk.Rect2D) {
	vk.CmdSetScissor(buffer, 0, uint32(len(scissors)), scissors)
}

func (d *vkDriver) CmdBindPipeline(buffer vk.CommandBuffer, bindPoint vk.PipelineBindPoint, pipeline vk.Pipeline) {
	vk.CmdBindPipeline(buffer, bindPoint, pipeline)
}

func (d *vkDriver) CmdBindDescriptorSets(buffer vk.CommandBuffer, bindPoint vk.PipelineBindPoint, layout vk.PipelineLayout, firstSet uint32, sets []vk.DescriptorSet) {
	vk.CmdBindDescriptorSets(buffer, bindPoint, layout, firstSet, uint32(len(sets)), sets, 0, nil)
}

func (d *vkDriver) CmdPushConstants(buffer vk.CommandBuffer, layout vk.PipelineLayout, stages vk.ShaderStageFlags, offset uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	vk.CmdPushConstants(buffer, layout, stages, offset, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (d *vkDriver) CmdBindVertexBuffers(buffer vk.CommandBuffer, firstBinding uint32, buffers []vk.Buffer, offsets []vk.DeviceSize) {
	vk.CmdBindVertexBuffers(buffer, firstBinding, uint32(len(buffers)), buffers, offsets)
}

func (d *vkDriver) CmdBindIndexBuffer(buffer vk.CommandBuffer, index vk.Buffer, offset vk.DeviceSize, indexType vk.IndexType) {
	vk.CmdBindIndexBuffer(buffer, index, offset, indexType)
}

func (d *vkDriver) CmdDraw(buffer vk.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(buffer, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (d *vkDriver) CmdDrawIndexed(buffer vk.CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(buffer, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

func (d *vkDriver) CmdPipelineBarrier(buffer vk.CommandBuffer, srcStage, dstStage vk.PipelineStageFlags, barriers []vk.ImageMemoryBarrier) {
	vk.CmdPipelineBarrier(buffer, srcStage, dstStage, 0, 0, nil, 0, nil, uint32(len(barriers)), barriers)
}

func (d *vkDriver) CmdCopyBuffer(buffer vk.CommandBuffer, src, dst vk.Buffer, regions []vk.BufferCopy) {
	vk.CmdCopyBuffer(buffer, src, dst, uint32(len(regions)), regions)
}

func (d *vkDriver) CmdCopyBufferToImage(buffer vk.CommandBuffer, src vk.Buffer, dst vk.Image, layout vk.ImageLayout, regions []vk.BufferImageCopy) {
	vk.CmdCopyBufferToImage(buffer, src, dst, layout, uint32(len(regions)), regions)
}

func (d *vkDriver) CmdBlitImage(buffer vk.CommandBuffer, src vk.Image, srcLayout vk.ImageLayout, dst vk.Image, dstLayout vk.ImageLayout, regions []vk.ImageBlit, filter vk.Filter) {
	vk.CmdBlitImage(buffer, src, srcLayout, dst, dstLayout, uint32(len(regions)), regions, filter)
}

func (d *vkDriver) CreateShaderModule(code []uint32) (vk.ShaderModule, error) {
	info := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code) * 4),
		PCode:    code,
	}
	var module vk.ShaderModule
	if err := ResultError("vkCreateShaderModule", vk.CreateShaderModule(d.device, &info, d.allocator, &module)); err != nil {
		return vk.NullShaderModule, err
	}
	return module, nil
}

func (d *vkDriver) DestroyShaderModule(module vk.ShaderModule) {
	vk.DestroyShaderModule(d.device, module, d.allocator)
}

func (d *vkDriver) CreatePipelineLayout(info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error) {
	var layout vk.PipelineLayout
	if err := ResultError("vkCreatePipelineLayout", vk.CreatePipelineLayout(d.device, info, d.allocator, &layout)); err != nil {
		return vk.NullPipelineLayout, err
	}
	return layout, nil
}

func (d *vkDriver) DestroyPipelineLayout(layout vk.PipelineLayout) {
	vk.DestroyPipelineLayout(d.device, layout, d.allocator)
}

func (d *vkDriver) CreateGraphicsPipeline(info *vk.GraphicsPipelineCreateInfo) (vk.Pipeline, error) {
	pipelines := make([]vk.Pipeline, 1)
	res := vk.CreateGraphicsPipelines(d.device, vk.NullPipelineCache, 1, []vk.GraphicsPipelineCreateInfo{*info}, d.allocator, pipelines)
	if err := ResultError("vkCreateGraphicsPipelines", res); err != nil {
		return vk.NullPipeline, err
	}
	return pipelines[0], nil
}

func (d *vkDriver) DestroyPipeline(pipeline vk.Pipeline) {
	vk.DestroyPipeline(d.device, pipeline, d.allocator)
}

func (d *vkDriver) CreateDescriptorSetLayout(info *vk.DescriptorSetLayoutCreateInfo) (vk.DescriptorSetLayout, error) {
	var layout vk.DescriptorSetLayout
	if err := ResultError("vkCreateDescriptorSetLayout", vk.CreateDescriptorSetLayout(d.device, info, d.allocator, &layout)); err != nil {
		return nil, err
	}
	return layout, nil
}

func (d *vkDriver) DestroyDescriptorSetLayout(layout vk.DescriptorSetLayout) {
	vk.DestroyDescriptorSetLayout(d.device, layout, d.allocator)
}

func (d *vkDriver) CreateDescriptorPool(info *vk.DescriptorPoolCreateInfo) (vk.DescriptorPool, error) {
	var pool vk.DescriptorPool
	if err := ResultError("vkCreateDescriptorPool", vk.CreateDescriptorPool(d.device, info, d.allocator, &pool)); err != nil {
		return nil, err
	}
	return pool, nil
}

func (d *vkDriver) DestroyDescriptorPool(pool vk.DescriptorPool) {
	vk.DestroyDescriptorPool(d.device, pool, d.allocator)
}

func (d *vkDriver) ResetDescriptorPool(pool vk.DescriptorPool) error {
	return ResultError("vkResetDescriptorPool", vk.ResetDescriptorPool(d.device, pool, 0))
}

func (d *vkDriver) AllocateDescriptorSets(pool vk.DescriptorPool, layouts []vk.DescriptorSetLayout) ([]vk.DescriptorSet, error) {
	info := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: uint32(len(layouts)),
		PSetLayouts:        layouts,
	}
	sets := make([]vk.DescriptorSet, len(layouts))
	if err := ResultError("vkAllocateDescriptorSets", vk.AllocateDescriptorSets(d.device, &info, &sets[0])); err != nil {
		return nil, err
	}
	return sets, nil
}

func (d *vkDriver) FreeDescriptorSets(pool vk.DescriptorPool, sets []vk.DescriptorSet) error {
	if len(sets) == 0 {
		return nil
	}
	return ResultError("vkFreeDescriptorSets", vk.FreeDescriptorSets(d.device, pool, uint32(len(sets)), &sets[0]))
}

func (d *vkDriver) UpdateDescriptorSets(writes []vk.WriteDescriptorSet) {
	vk.UpdateDescriptorSets(d.device, uint32(len(writes)), writes, 0, nil)
}
