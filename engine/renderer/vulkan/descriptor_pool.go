package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/voxel/engine/core"
)

type DescriptorPoolBuilder struct {
	ctx       *VulkanContext
	poolSizes []vk.DescriptorPoolSize
	maxSets   uint32
	flags     vk.DescriptorPoolCreateFlags
}

func NewDescriptorPoolBuilder(ctx *VulkanContext) *DescriptorPoolBuilder {
	return &DescriptorPoolBuilder{ctx: ctx, maxSets: 1000}
}

func (b *DescriptorPoolBuilder) AddPoolSize(descriptorType vk.DescriptorType, count uint32) *DescriptorPoolBuilder {
	b.poolSizes = append(b.poolSizes, vk.DescriptorPoolSize{
		Type:            descriptorType,
		DescriptorCount: count,
	})
	return b
}

func (b *DescriptorPoolBuilder) SetMaxSets(count uint32) *DescriptorPoolBuilder {
	b.maxSets = count
	return b
}

func (b *DescriptorPoolBuilder) SetPoolFlags(flags vk.DescriptorPoolCreateFlags) *DescriptorPoolBuilder {
	b.flags = flags
	return b
}

func (b *DescriptorPoolBuilder) Build() (*DescriptorPool, error) {
	return NewDescriptorPool(b.ctx, b.maxSets, b.flags, b.poolSizes)
}

// DescriptorPool hands out descriptor sets up to fixed per-type capacities.
// Capacity is tracked on the host so exhaustion is reported before the
// driver is asked.
type DescriptorPool struct {
	Handle vk.DescriptorPool

	ctx        *VulkanContext
	flags      vk.DescriptorPoolCreateFlags
	maxSets    uint32
	capacity   map[vk.DescriptorType]uint32
	used       map[vk.DescriptorType]uint32
	allocated  uint32
	generation uint64
}

func NewDescriptorPool(ctx *VulkanContext, maxSets uint32, flags vk.DescriptorPoolCreateFlags, poolSizes []vk.DescriptorPoolSize) (*DescriptorPool, error) {
	if maxSets == 0 || len(poolSizes) == 0 {
		return nil, errors.AssertionFailedf("descriptor pool needs at least one set and one pool size")
	}
	p := &DescriptorPool{
		ctx:      ctx,
		flags:    flags,
		maxSets:  maxSets,
		capacity: make(map[vk.DescriptorType]uint32),
		used:     make(map[vk.DescriptorType]uint32),
	}
	for _, size := range poolSizes {
		p.capacity[size.Type] += size.DescriptorCount
	}
	handle, err := ctx.Driver.CreateDescriptorPool(&vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         flags,
		MaxSets:       maxSets,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating descriptor pool")
	}
	p.Handle = handle
	return p, nil
}

// Allocate returns a set for layout, or an error marked ErrPoolExhausted
// when the pool has no room left for it.
func (p *DescriptorPool) Allocate(layout *DescriptorSetLayout) (*DescriptorSet, error) {
	if p.Handle == nil {
		return nil, errors.AssertionFailedf("allocating from a destroyed descriptor pool")
	}
	if p.allocated+1 > p.maxSets {
		return nil, core.WithKind(errors.Newf("descriptor pool holds at most %d sets", p.maxSets), core.ErrPoolExhausted)
	}
	counts := layout.descriptorCounts()
	for t, n := range counts {
		if p.used[t]+n > p.capacity[t] {
			return nil, core.WithKind(
				errors.Newf("descriptor pool has %d of %d descriptors of type %d in use, %d more requested", p.used[t], p.capacity[t], t, n),
				core.ErrPoolExhausted)
		}
	}

	var handles []vk.DescriptorSet
	err := p.ctx.Locks.SafeCall(DescriptorManagement, func() error {
		var err error
		handles, err = p.ctx.Driver.AllocateDescriptorSets(p.Handle, []vk.DescriptorSetLayout{layout.Handle})
		return err
	})
	if err != nil {
		return nil, err
	}
	p.allocated++
	for t, n := range counts {
		p.used[t] += n
	}
	return &DescriptorSet{
		Handle:     handles[0],
		layout:     layout,
		pool:       p,
		generation: p.generation,
	}, nil
}

// FreeSets returns individual sets. Only legal for pools created with the
// free-descriptor-set flag.
func (p *DescriptorPool) FreeSets(sets ...*DescriptorSet) error {
	if p.flags&vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit) == 0 {
		return errors.AssertionFailedf("descriptor pool was not created with the free-descriptor-set flag")
	}
	if len(sets) == 0 {
		return nil
	}
	handles := make([]vk.DescriptorSet, 0, len(sets))
	seen := make(map[*DescriptorSet]struct{}, len(sets))
	for _, s := range sets {
		if !s.Valid() || s.pool != p {
			return errors.AssertionFailedf("freeing a descriptor set that is not live in this pool")
		}
		if _, dup := seen[s]; dup {
			return errors.AssertionFailedf("descriptor set listed twice in one FreeSets call")
		}
		seen[s] = struct{}{}
		handles = append(handles, s.Handle)
	}
	err := p.ctx.Locks.SafeCall(DescriptorManagement, func() error {
		return p.ctx.Driver.FreeDescriptorSets(p.Handle, handles)
	})
	if err != nil {
		return err
	}
	for _, s := range sets {
		for t, n := range s.layout.descriptorCounts() {
			p.used[t] -= n
		}
		p.allocated--
		s.freed = true
	}
	return nil
}

// Reset reclaims every set at once. Sets handed out earlier become invalid.
func (p *DescriptorPool) Reset() error {
	err := p.ctx.Locks.SafeCall(DescriptorManagement, func() error {
		return p.ctx.Driver.ResetDescriptorPool(p.Handle)
	})
	if err != nil {
		return err
	}
	p.invalidate()
	return nil
}

func (p *DescriptorPool) Allocated() uint32 {
	return p.allocated
}

func (p *DescriptorPool) Destroy() {
	if p.Handle != nil {
		p.ctx.Driver.DestroyDescriptorPool(p.Handle)
		p.Handle = nil
	}
	p.invalidate()
}

func (p *DescriptorPool) invalidate() {
	p.generation++
	p.allocated = 0
	for t := range p.used {
		p.used[t] = 0
	}
}

// DescriptorSet is valid until its pool is reset or destroyed, or the set is
// freed.
type DescriptorSet struct {
	Handle vk.DescriptorSet

	layout     *DescriptorSetLayout
	pool       *DescriptorPool
	generation uint64
	freed      bool
}

func (s *DescriptorSet) Valid() bool {
	return s != nil && !s.freed && s.pool != nil && s.pool.Handle != nil && s.generation == s.pool.generation
}

func (s *DescriptorSet) Layout() *DescriptorSetLayout {
	return s.layout
}

// Bind binds the set at index firstSet for the graphics bind point.
func (s *DescriptorSet) Bind(cb *VulkanCommandBuffer, pipelineLayout vk.PipelineLayout, firstSet uint32) error {
	if !s.Valid() {
		return errors.AssertionFailedf("binding an invalidated descriptor set")
	}
	s.pool.ctx.Driver.CmdBindDescriptorSets(cb.Handle, vk.PipelineBindPointGraphics, pipelineLayout, firstSet, []vk.DescriptorSet{s.Handle})
	return nil
}
