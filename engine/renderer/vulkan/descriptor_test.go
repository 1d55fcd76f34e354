package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/voxel/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	vertexStage   = vk.ShaderStageFlags(vk.ShaderStageVertexBit)
	fragmentStage = vk.ShaderStageFlags(vk.ShaderStageFragmentBit)
)

func globalLayout(t *testing.T, ctx *VulkanContext) *DescriptorSetLayout {
	t.Helper()
	layout, err := NewDescriptorSetLayoutBuilder(ctx).
		AddBinding(0, vk.DescriptorTypeUniformBuffer, vertexStage|fragmentStage).
		AddBinding(1, vk.DescriptorTypeCombinedImageSampler, fragmentStage).
		Build()
	require.NoError(t, err)
	return layout
}

func TestLayoutBindingsAreOrdered(t *testing.T) {
	ctx, _ := newTestContext(t)

	layout, err := NewDescriptorSetLayoutBuilder(ctx).
		AddBinding(3, vk.DescriptorTypeUniformBuffer, vertexStage).
		AddBinding(0, vk.DescriptorTypeStorageBuffer, vertexStage).
		AddBinding(1, vk.DescriptorTypeCombinedImageSampler, fragmentStage, 4).
		Build()
	require.NoError(t, err)
	defer layout.Destroy()

	assert.Equal(t, []uint32{0, 1, 3}, layout.Bindings())
	b, ok := layout.Binding(1)
	require.True(t, ok)
	assert.Equal(t, uint32(4), b.DescriptorCount)
	_, ok = layout.Binding(2)
	assert.False(t, ok)
}

func TestLayoutRejectsDuplicateBinding(t *testing.T) {
	ctx, driver := newTestContext(t)

	_, err := NewDescriptorSetLayoutBuilder(ctx).
		AddBinding(0, vk.DescriptorTypeUniformBuffer, vertexStage).
		AddBinding(0, vk.DescriptorTypeCombinedImageSampler, fragmentStage).
		Build()
	assert.True(t, core.IsPreconditionViolation(err))
	assert.Empty(t, driver.leaks())
}

func TestPoolExhaustion(t *testing.T) {
	ctx, _ := newTestContext(t)
	layout := globalLayout(t, ctx)
	defer layout.Destroy()

	pool, err := NewDescriptorPoolBuilder(ctx).
		SetMaxSets(2).
		AddPoolSize(vk.DescriptorTypeUniformBuffer, 2).
		AddPoolSize(vk.DescriptorTypeCombinedImageSampler, 2).
		Build()
	require.NoError(t, err)
	defer pool.Destroy()

	for i := 0; i < 2; i++ {
		_, err := pool.Allocate(layout)
		require.NoError(t, err)
	}
	_, err = pool.Allocate(layout)
	assert.ErrorIs(t, err, core.ErrPoolExhausted)
	assert.True(t, core.IsResourceExhausted(err))
	assert.Equal(t, uint32(2), pool.Allocated())
}

func TestPoolExhaustedByDescriptorType(t *testing.T) {
	ctx, driver := newTestContext(t)
	layout := globalLayout(t, ctx)
	defer layout.Destroy()

	pool, err := NewDescriptorPoolBuilder(ctx).
		SetMaxSets(10).
		AddPoolSize(vk.DescriptorTypeUniformBuffer, 10).
		AddPoolSize(vk.DescriptorTypeCombinedImageSampler, 1).
		Build()
	require.NoError(t, err)
	defer pool.Destroy()

	_, err = pool.Allocate(layout)
	require.NoError(t, err)
	_, err = pool.Allocate(layout)
	assert.ErrorIs(t, err, core.ErrPoolExhausted)
	assert.Equal(t, 1, driver.allocatedSets, "the driver is not asked once the host sees exhaustion")
}

func TestPoolResetInvalidatesSets(t *testing.T) {
	ctx, driver := newTestContext(t)
	layout := globalLayout(t, ctx)
	defer layout.Destroy()

	pool, err := NewDescriptorPoolBuilder(ctx).
		SetMaxSets(1).
		AddPoolSize(vk.DescriptorTypeUniformBuffer, 1).
		AddPoolSize(vk.DescriptorTypeCombinedImageSampler, 1).
		Build()
	require.NoError(t, err)
	defer pool.Destroy()

	set, err := pool.Allocate(layout)
	require.NoError(t, err)
	assert.True(t, set.Valid())

	require.NoError(t, pool.Reset())
	assert.False(t, set.Valid())
	assert.Zero(t, pool.Allocated())

	cbs, err := NewVulkanCommandBuffers(ctx, ctx.Device.GraphicsCommandPool, true, 1)
	require.NoError(t, err)
	defer cbs[0].Free()
	err = set.Bind(cbs[0], vk.PipelineLayout(driver.handle()), 0)
	assert.True(t, core.IsPreconditionViolation(err))
	assert.Empty(t, driver.boundSets)

	// Capacity is available again.
	again, err := pool.Allocate(layout)
	require.NoError(t, err)
	assert.True(t, again.Valid())
}

func TestFreeSetsRequiresFlag(t *testing.T) {
	ctx, _ := newTestContext(t)
	layout := globalLayout(t, ctx)
	defer layout.Destroy()

	plain, err := NewDescriptorPoolBuilder(ctx).
		AddPoolSize(vk.DescriptorTypeUniformBuffer, 4).
		AddPoolSize(vk.DescriptorTypeCombinedImageSampler, 4).
		Build()
	require.NoError(t, err)
	defer plain.Destroy()
	set, err := plain.Allocate(layout)
	require.NoError(t, err)
	assert.True(t, core.IsPreconditionViolation(plain.FreeSets(set)))

	freeable, err := NewDescriptorPoolBuilder(ctx).
		SetMaxSets(1).
		SetPoolFlags(vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit)).
		AddPoolSize(vk.DescriptorTypeUniformBuffer, 1).
		AddPoolSize(vk.DescriptorTypeCombinedImageSampler, 1).
		Build()
	require.NoError(t, err)
	defer freeable.Destroy()

	set, err = freeable.Allocate(layout)
	require.NoError(t, err)
	require.NoError(t, freeable.FreeSets(set))
	assert.False(t, set.Valid())
	assert.True(t, core.IsPreconditionViolation(freeable.FreeSets(set)), "double free")

	_, err = freeable.Allocate(layout)
	assert.NoError(t, err)
}

func TestFreeSetsRejectsDuplicates(t *testing.T) {
	ctx, driver := newTestContext(t)
	layout := globalLayout(t, ctx)
	defer layout.Destroy()

	pool, err := NewDescriptorPoolBuilder(ctx).
		SetMaxSets(1).
		SetPoolFlags(vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit)).
		AddPoolSize(vk.DescriptorTypeUniformBuffer, 1).
		AddPoolSize(vk.DescriptorTypeCombinedImageSampler, 1).
		Build()
	require.NoError(t, err)
	defer pool.Destroy()

	set, err := pool.Allocate(layout)
	require.NoError(t, err)

	err = pool.FreeSets(set, set)
	assert.True(t, core.IsPreconditionViolation(err))
	assert.True(t, set.Valid(), "a rejected call frees nothing")
	assert.Equal(t, uint32(1), pool.Allocated())
	assert.Equal(t, 1, driver.allocatedSets)

	_, err = pool.Allocate(layout)
	assert.ErrorIs(t, err, core.ErrPoolExhausted, "the cap still holds")

	require.NoError(t, pool.FreeSets(set))
	assert.Equal(t, uint32(0), pool.Allocated())
	require.NoError(t, pool.FreeSets())
}

func TestVkDriverFreesNothingForEmptySlice(t *testing.T) {
	// No device is needed when there is nothing to free.
	d := NewVkDriver(nil, nil, nil)
	assert.NoError(t, d.FreeDescriptorSets(nil, nil))
}

func TestWriterRequiresEveryBinding(t *testing.T) {
	ctx, driver := newTestContext(t)
	layout := globalLayout(t, ctx)
	defer layout.Destroy()

	pool, err := NewDescriptorPoolBuilder(ctx).
		AddPoolSize(vk.DescriptorTypeUniformBuffer, 4).
		AddPoolSize(vk.DescriptorTypeCombinedImageSampler, 4).
		Build()
	require.NoError(t, err)
	defer pool.Destroy()

	ubo, err := NewBuffer(ctx, 64, 1, uniformUsage, hostCoherent, 256)
	require.NoError(t, err)
	defer ubo.Destroy()

	_, err = NewDescriptorWriter(layout, pool).
		WriteBuffer(0, ubo.DescriptorInfo(0, wholeSize)).
		Build()
	assert.ErrorIs(t, err, core.ErrUnwrittenBinding)
	assert.True(t, core.IsPreconditionViolation(err))
	assert.Zero(t, driver.allocatedSets, "no set is allocated for an incomplete writer")
	assert.Empty(t, driver.descriptorWrites)
}

func TestWriterBuildsCompleteSet(t *testing.T) {
	ctx, driver := newTestContext(t)
	layout := globalLayout(t, ctx)
	defer layout.Destroy()

	pool, err := NewDescriptorPoolBuilder(ctx).
		AddPoolSize(vk.DescriptorTypeUniformBuffer, 4).
		AddPoolSize(vk.DescriptorTypeCombinedImageSampler, 4).
		Build()
	require.NoError(t, err)
	defer pool.Destroy()

	ubo, err := NewBuffer(ctx, 64, 1, uniformUsage, hostCoherent, 256)
	require.NoError(t, err)
	defer ubo.Destroy()

	image := vk.DescriptorImageInfo{
		Sampler:     vk.Sampler(driver.handle()),
		ImageView:   vk.ImageView(driver.handle()),
		ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
	}
	set, err := NewDescriptorWriter(layout, pool).
		WriteImage(1, image).
		WriteBuffer(0, ubo.DescriptorInfo(0, wholeSize)).
		Build()
	require.NoError(t, err)
	assert.Same(t, layout, set.Layout())

	require.Len(t, driver.descriptorWrites, 2)
	for _, w := range driver.descriptorWrites {
		assertHandle(t, set.Handle, w.DstSet)
	}
	assert.Equal(t, vk.DescriptorTypeCombinedImageSampler, driver.descriptorWrites[0].DescriptorType)
	assert.Equal(t, vk.DescriptorTypeUniformBuffer, driver.descriptorWrites[1].DescriptorType)

	// A second writer may overwrite the same set in place.
	err = NewDescriptorWriter(layout, pool).
		WriteBuffer(0, ubo.DescriptorInfo(0, 64)).
		WriteImage(1, image).
		Overwrite(set)
	require.NoError(t, err)
	assert.Len(t, driver.descriptorWrites, 4)
	assert.Equal(t, 1, driver.allocatedSets)
}

func TestWriterRejectsMisuse(t *testing.T) {
	ctx, driver := newTestContext(t)
	layout := globalLayout(t, ctx)
	defer layout.Destroy()

	pool, err := NewDescriptorPoolBuilder(ctx).
		AddPoolSize(vk.DescriptorTypeUniformBuffer, 4).
		AddPoolSize(vk.DescriptorTypeCombinedImageSampler, 4).
		Build()
	require.NoError(t, err)
	defer pool.Destroy()

	info := vk.DescriptorBufferInfo{Buffer: vk.Buffer(driver.handle()), Range: 64}

	tests := []struct {
		name  string
		write func(w *DescriptorWriter) *DescriptorWriter
	}{
		{"unknown binding", func(w *DescriptorWriter) *DescriptorWriter { return w.WriteBuffer(7, info) }},
		{"buffer into image binding", func(w *DescriptorWriter) *DescriptorWriter { return w.WriteBuffer(1, info) }},
		{"image into buffer binding", func(w *DescriptorWriter) *DescriptorWriter {
			return w.WriteImage(0, vk.DescriptorImageInfo{})
		}},
		{"binding written twice", func(w *DescriptorWriter) *DescriptorWriter {
			return w.WriteBuffer(0, info).WriteBuffer(0, info)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.write(NewDescriptorWriter(layout, pool)).Build()
			assert.True(t, core.IsPreconditionViolation(err), "%v", err)
		})
	}
	assert.Zero(t, driver.allocatedSets)
}
