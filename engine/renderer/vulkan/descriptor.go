package vulkan

import (
	"sort"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
)

// DescriptorSetLayoutBuilder collects bindings for one set layout.
type DescriptorSetLayoutBuilder struct {
	ctx      *VulkanContext
	bindings map[uint32]vk.DescriptorSetLayoutBinding
	err      error
}

func NewDescriptorSetLayoutBuilder(ctx *VulkanContext) *DescriptorSetLayoutBuilder {
	return &DescriptorSetLayoutBuilder{
		ctx:      ctx,
		bindings: make(map[uint32]vk.DescriptorSetLayoutBinding),
	}
}

// AddBinding declares binding with one descriptor, or count descriptors
// when count is given.
func (b *DescriptorSetLayoutBuilder) AddBinding(binding uint32, descriptorType vk.DescriptorType, stages vk.ShaderStageFlags, count ...uint32) *DescriptorSetLayoutBuilder {
	if _, ok := b.bindings[binding]; ok {
		if b.err == nil {
			b.err = errors.AssertionFailedf("binding %d already in use", binding)
		}
		return b
	}
	n := uint32(1)
	if len(count) > 0 {
		n = count[0]
	}
	b.bindings[binding] = vk.DescriptorSetLayoutBinding{
		Binding:         binding,
		DescriptorType:  descriptorType,
		DescriptorCount: n,
		StageFlags:      stages,
	}
	return b
}

func (b *DescriptorSetLayoutBuilder) Build() (*DescriptorSetLayout, error) {
	if b.err != nil {
		return nil, b.err
	}
	return NewDescriptorSetLayout(b.ctx, b.bindings)
}

// DescriptorSetLayout is immutable once built. Pipelines and writers hold it
// by pointer.
type DescriptorSetLayout struct {
	Handle vk.DescriptorSetLayout

	ctx      *VulkanContext
	bindings map[uint32]vk.DescriptorSetLayoutBinding
	order    []uint32
}

func NewDescriptorSetLayout(ctx *VulkanContext, bindings map[uint32]vk.DescriptorSetLayoutBinding) (*DescriptorSetLayout, error) {
	l := &DescriptorSetLayout{
		ctx:      ctx,
		bindings: make(map[uint32]vk.DescriptorSetLayoutBinding, len(bindings)),
	}
	for k, v := range bindings {
		l.bindings[k] = v
		l.order = append(l.order, k)
	}
	sort.Slice(l.order, func(i, j int) bool { return l.order[i] < l.order[j] })

	layoutBindings := make([]vk.DescriptorSetLayoutBinding, 0, len(l.order))
	for _, k := range l.order {
		layoutBindings = append(layoutBindings, l.bindings[k])
	}
	handle, err := ctx.Driver.CreateDescriptorSetLayout(&vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(layoutBindings)),
		PBindings:    layoutBindings,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating descriptor set layout")
	}
	l.Handle = handle
	return l, nil
}

// Binding returns the declaration for binding, if any.
func (l *DescriptorSetLayout) Binding(binding uint32) (vk.DescriptorSetLayoutBinding, bool) {
	b, ok := l.bindings[binding]
	return b, ok
}

// Bindings lists the declared binding indices in ascending order.
func (l *DescriptorSetLayout) Bindings() []uint32 {
	out := make([]uint32, len(l.order))
	copy(out, l.order)
	return out
}

// descriptorCounts is how many descriptors of each type one set needs.
func (l *DescriptorSetLayout) descriptorCounts() map[vk.DescriptorType]uint32 {
	counts := make(map[vk.DescriptorType]uint32)
	for _, b := range l.bindings {
		counts[b.DescriptorType] += b.DescriptorCount
	}
	return counts
}

func (l *DescriptorSetLayout) Destroy() {
	if l.Handle != nil {
		l.ctx.Driver.DestroyDescriptorSetLayout(l.Handle)
		l.Handle = nil
	}
}

func isBufferDescriptor(t vk.DescriptorType) bool {
	switch t {
	case vk.DescriptorTypeUniformBuffer, vk.DescriptorTypeStorageBuffer,
		vk.DescriptorTypeUniformBufferDynamic, vk.DescriptorTypeStorageBufferDynamic:
		return true
	}
	return false
}

func isImageDescriptor(t vk.DescriptorType) bool {
	switch t {
	case vk.DescriptorTypeCombinedImageSampler, vk.DescriptorTypeSampledImage,
		vk.DescriptorTypeStorageImage, vk.DescriptorTypeSampler, vk.DescriptorTypeInputAttachment:
		return true
	}
	return false
}
