package vulkan

import (
	vk "github.com/goki/vulkan"
)

// Driver is every device-level call the renderer makes after the logical
// device exists. The production implementation forwards to goki/vulkan; tests
// substitute an in-memory fake.
type Driver interface {
	DeviceWaitIdle() error
	QueueWaitIdle(queue vk.Queue) error

	// Memory
	AllocateMemory(info *vk.MemoryAllocateInfo) (vk.DeviceMemory, error)
	FreeMemory(memory vk.DeviceMemory)
	MapMemory(memory vk.DeviceMemory, offset, size vk.DeviceSize) ([]byte, error)
	UnmapMemory(memory vk.DeviceMemory)
	FlushMappedMemoryRanges(ranges []vk.MappedMemoryRange) error
	InvalidateMappedMemoryRanges(ranges []vk.MappedMemoryRange) error

	// Buffers and images
	CreateBuffer(info *vk.BufferCreateInfo) (vk.Buffer, error)
	DestroyBuffer(buffer vk.Buffer)
	BufferMemoryRequirements(buffer vk.Buffer) vk.MemoryRequirements
	BindBufferMemory(buffer vk.Buffer, memory vk.DeviceMemory, offset vk.DeviceSize) error
	CreateImage(info *vk.ImageCreateInfo) (vk.Image, error)
	DestroyImage(image vk.Image)
	ImageMemoryRequirements(image vk.Image) vk.MemoryRequirements
	BindImageMemory(image vk.Image, memory vk.DeviceMemory, offset vk.DeviceSize) error
	CreateImageView(info *vk.ImageViewCreateInfo) (vk.ImageView, error)
	DestroyImageView(view vk.ImageView)
	CreateSampler(info *vk.SamplerCreateInfo) (vk.Sampler, error)
	DestroySampler(sampler vk.Sampler)
	FormatProperties(format vk.Format) vk.FormatProperties

	// Synchronization
	CreateSemaphore() (vk.Semaphore, error)
	DestroySemaphore(semaphore vk.Semaphore)
	CreateFence(signaled bool) (vk.Fence, error)
	DestroyFence(fence vk.Fence)
	WaitForFences(fences []vk.Fence, waitAll bool, timeout uint64) vk.Result
	ResetFences(fences []vk.Fence) error

	// Presentation
	SurfaceCapabilities(surface vk.Surface) (vk.SurfaceCapabilities, error)
	CreateSwapchain(info *vk.SwapchainCreateInfo) (vk.Swapchain, error)
	DestroySwapchain(swapchain vk.Swapchain)
	SwapchainImages(swapchain vk.Swapchain) ([]vk.Image, error)
	AcquireNextImage(swapchain vk.Swapchain, timeout uint64, semaphore vk.Semaphore, fence vk.Fence) (uint32, vk.Result)
	QueueSubmit(queue vk.Queue, submits []vk.SubmitInfo, fence vk.Fence) error
	QueuePresent(queue vk.Queue, info *vk.PresentInfo) vk.Result

	// Render passes
	CreateRenderPass(info *vk.RenderPassCreateInfo) (vk.RenderPass, error)
	DestroyRenderPass(renderPass vk.RenderPass)
	CreateFramebuffer(info *vk.FramebufferCreateInfo) (vk.Framebuffer, error)
	DestroyFramebuffer(framebuffer vk.Framebuffer)

	// Command buffers
	AllocateCommandBuffers(pool vk.CommandPool, level vk.CommandBufferLevel, count uint32) ([]vk.CommandBuffer, error)
	FreeCommandBuffers(pool vk.CommandPool, buffers []vk.CommandBuffer)
	BeginCommandBuffer(buffer vk.CommandBuffer, flags vk.CommandBufferUsageFlags) error
	EndCommandBuffer(buffer vk.CommandBuffer) error
	ResetCommandBuffer(buffer vk.CommandBuffer) error

	// Recording
	CmdBeginRenderPass(buffer vk.CommandBuffer, info *vk.RenderPassBeginInfo)
	CmdEndRenderPass(buffer vk.CommandBuffer)
	CmdSetViewport(buffer vk.CommandBuffer, viewports []vk.Viewport)
	CmdSetScissor(buffer vk.CommandBuffer, scissors []vk.Rect2D)
	CmdBindPipeline(buffer vk.CommandBuffer, bindPoint vk.PipelineBindPoint, pipeline vk.Pipeline)
	CmdBindDescriptorSets(buffer vk.CommandBuffer, bindPoint vk.PipelineBindPoint, layout vk.PipelineLayout, firstSet uint32, sets []vk.DescriptorSet)
	CmdPushConstants(buffer vk.CommandBuffer, layout vk.PipelineLayout, stages vk.ShaderStageFlags, offset uint32, data []byte)
	CmdBindVertexBuffers(buffer vk.CommandBuffer, firstBinding uint32, buffers []vk.Buffer, offsets []vk.DeviceSize)
	CmdBindIndexBuffer(buffer vk.CommandBuffer, index vk.Buffer, offset vk.DeviceSize, indexType vk.IndexType)
	CmdDraw(buffer vk.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32)
	CmdDrawIndexed(buffer vk.CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
	CmdPipelineBarrier(buffer vk.CommandBuffer, srcStage, dstStage vk.PipelineStageFlags, barriers []vk.ImageMemoryBarrier)
	CmdCopyBuffer(buffer vk.CommandBuffer, src, dst vk.Buffer, regions []vk.BufferCopy)
	CmdCopyBufferToImage(buffer vk.CommandBuffer, src vk.Buffer, dst vk.Image, layout vk.ImageLayout, regions []vk.BufferImageCopy)
	CmdBlitImage(buffer vk.CommandBuffer, src vk.Image, srcLayout vk.ImageLayout, dst vk.Image, dstLayout vk.ImageLayout, regions []vk.ImageBlit, filter vk.Filter)

	// Pipelines
	CreateShaderModule(code []uint32) (vk.ShaderModule, error)
	DestroyShaderModule(module vk.ShaderModule)
	CreatePipelineLayout(info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error)
	DestroyPipelineLayout(layout vk.PipelineLayout)
	CreateGraphicsPipeline(info *vk.GraphicsPipelineCreateInfo) (vk.Pipeline, error)
	DestroyPipeline(pipeline vk.Pipeline)

	// Descriptors
	CreateDescriptorSetLayout(info *vk.DescriptorSetLayoutCreateInfo) (vk.DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(layout vk.DescriptorSetLayout)
	CreateDescriptorPool(info *vk.DescriptorPoolCreateInfo) (vk.DescriptorPool, error)
	DestroyDescriptorPool(pool vk.DescriptorPool)
	ResetDescriptorPool(pool vk.DescriptorPool) error
	AllocateDescriptorSets(pool vk.DescriptorPool, layouts []vk.DescriptorSetLayout) ([]vk.DescriptorSet, error)
	FreeDescriptorSets(pool vk.DescriptorPool, sets []vk.DescriptorSet) error
	UpdateDescriptorSets(writes []vk.WriteDescriptorSet)
}
