package systems

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/voxel/engine/core"
	"github.com/spaghettifunk/voxel/engine/renderer/vulkan"
)

// SampledTexture is anything that can be bound as a combined image sampler.
type SampledTexture interface {
	DescriptorInfo() vk.DescriptorImageInfo
}

const (
	globalUboBinding     uint32 = 0
	globalSamplerBinding uint32 = 1
)

// GlobalResources owns set 0: one uniform buffer and one descriptor set per
// frame in flight, all sampling the same texture.
type GlobalResources struct {
	Layout *vulkan.DescriptorSetLayout

	ctx        *vulkan.VulkanContext
	pool       *vulkan.DescriptorPool
	uboBuffers [vulkan.MaxFramesInFlight]*vulkan.Buffer
	sets       [vulkan.MaxFramesInFlight]*vulkan.DescriptorSet
}

func NewGlobalResources(ctx *vulkan.VulkanContext, texture SampledTexture) (*GlobalResources, error) {
	if texture == nil {
		return nil, errors.AssertionFailedf("global resources need a texture")
	}
	g := &GlobalResources{ctx: ctx}

	pool, err := vulkan.NewDescriptorPoolBuilder(ctx).
		SetMaxSets(vulkan.MaxFramesInFlight).
		AddPoolSize(vk.DescriptorTypeUniformBuffer, vulkan.MaxFramesInFlight).
		AddPoolSize(vk.DescriptorTypeCombinedImageSampler, vulkan.MaxFramesInFlight).
		Build()
	if err != nil {
		return nil, errors.Wrap(err, "creating global descriptor pool")
	}
	g.pool = pool

	layout, err := vulkan.NewDescriptorSetLayoutBuilder(ctx).
		AddBinding(globalUboBinding, vk.DescriptorTypeUniformBuffer,
			vk.ShaderStageFlags(vk.ShaderStageVertexBit|vk.ShaderStageFragmentBit)).
		AddBinding(globalSamplerBinding, vk.DescriptorTypeCombinedImageSampler,
			vk.ShaderStageFlags(vk.ShaderStageFragmentBit)).
		Build()
	if err != nil {
		g.Destroy()
		return nil, errors.Wrap(err, "creating global set layout")
	}
	g.Layout = layout

	for i := range g.uboBuffers {
		buffer, err := vulkan.NewBuffer(ctx, globalUboSize, 1,
			vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit),
			vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit), 0)
		if err != nil {
			g.Destroy()
			return nil, errors.Wrapf(err, "creating global uniform buffer %d", i)
		}
		g.uboBuffers[i] = buffer
		if err := buffer.Map(); err != nil {
			g.Destroy()
			return nil, err
		}

		set, err := vulkan.NewDescriptorWriter(layout, pool).
			WriteBuffer(globalUboBinding, buffer.DescriptorInfo(0, globalUboSize)).
			WriteImage(globalSamplerBinding, texture.DescriptorInfo()).
			Build()
		if err != nil {
			g.Destroy()
			return nil, errors.Wrapf(err, "writing global descriptor set %d", i)
		}
		g.sets[i] = set
	}
	core.LogDebug("Global descriptor sets created for %d frames.", vulkan.MaxFramesInFlight)
	return g, nil
}

// Update writes ubo into the uniform buffer of frameIndex and flushes it.
func (g *GlobalResources) Update(frameIndex int, ubo GlobalUbo) error {
	if frameIndex < 0 || frameIndex >= vulkan.MaxFramesInFlight {
		return errors.AssertionFailedf("frame index %d out of range", frameIndex)
	}
	data, err := vulkan.EncodeData(ubo)
	if err != nil {
		return err
	}
	return g.uboBuffers[frameIndex].Update(data)
}

// SetTexture points every frame's sampler binding at texture. The device
// must be idle.
func (g *GlobalResources) SetTexture(texture SampledTexture) error {
	for i, set := range g.sets {
		err := vulkan.NewDescriptorWriter(g.Layout, g.pool).
			WriteBuffer(globalUboBinding, g.uboBuffers[i].DescriptorInfo(0, globalUboSize)).
			WriteImage(globalSamplerBinding, texture.DescriptorInfo()).
			Overwrite(set)
		if err != nil {
			return errors.Wrapf(err, "rewriting global descriptor set %d", i)
		}
	}
	return nil
}

func (g *GlobalResources) DescriptorSet(frameIndex int) *vulkan.DescriptorSet {
	return g.sets[frameIndex]
}

func (g *GlobalResources) Destroy() {
	for i, buffer := range g.uboBuffers {
		if buffer != nil {
			buffer.Destroy()
			g.uboBuffers[i] = nil
		}
	}
	g.sets = [vulkan.MaxFramesInFlight]*vulkan.DescriptorSet{}
	if g.pool != nil {
		g.pool.Destroy()
		g.pool = nil
	}
	if g.Layout != nil {
		g.Layout.Destroy()
		g.Layout = nil
	}
}
