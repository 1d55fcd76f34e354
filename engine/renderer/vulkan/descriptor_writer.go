package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/voxel/engine/core"
)

// DescriptorWriter gathers one write per binding of a layout and commits
// them together. Nothing is allocated until every binding is written.
type DescriptorWriter struct {
	layout  *DescriptorSetLayout
	pool    *DescriptorPool
	writes  []vk.WriteDescriptorSet
	written map[uint32]bool
	err     error
}

func NewDescriptorWriter(layout *DescriptorSetLayout, pool *DescriptorPool) *DescriptorWriter {
	return &DescriptorWriter{
		layout:  layout,
		pool:    pool,
		written: make(map[uint32]bool),
	}
}

func (w *DescriptorWriter) WriteBuffer(binding uint32, info vk.DescriptorBufferInfo) *DescriptorWriter {
	desc, ok := w.check(binding)
	if !ok {
		return w
	}
	if !isBufferDescriptor(desc.DescriptorType) {
		w.fail(errors.AssertionFailedf("binding %d has descriptor type %d, not a buffer", binding, desc.DescriptorType))
		return w
	}
	w.writes = append(w.writes, vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstBinding:      binding,
		DescriptorType:  desc.DescriptorType,
		DescriptorCount: 1,
		PBufferInfo:     []vk.DescriptorBufferInfo{info},
	})
	return w
}

func (w *DescriptorWriter) WriteImage(binding uint32, info vk.DescriptorImageInfo) *DescriptorWriter {
	desc, ok := w.check(binding)
	if !ok {
		return w
	}
	if !isImageDescriptor(desc.DescriptorType) {
		w.fail(errors.AssertionFailedf("binding %d has descriptor type %d, not an image", binding, desc.DescriptorType))
		return w
	}
	w.writes = append(w.writes, vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstBinding:      binding,
		DescriptorType:  desc.DescriptorType,
		DescriptorCount: 1,
		PImageInfo:      []vk.DescriptorImageInfo{info},
	})
	return w
}

func (w *DescriptorWriter) check(binding uint32) (vk.DescriptorSetLayoutBinding, bool) {
	desc, ok := w.layout.Binding(binding)
	switch {
	case !ok:
		w.fail(errors.AssertionFailedf("layout does not contain binding %d", binding))
		return desc, false
	case desc.DescriptorCount != 1:
		w.fail(errors.AssertionFailedf("binding %d expects %d descriptors, writer supports one", binding, desc.DescriptorCount))
		return desc, false
	case w.written[binding]:
		w.fail(errors.AssertionFailedf("binding %d written twice", binding))
		return desc, false
	}
	w.written[binding] = true
	return desc, true
}

func (w *DescriptorWriter) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

func (w *DescriptorWriter) validate() error {
	if w.err != nil {
		return w.err
	}
	for _, binding := range w.layout.Bindings() {
		if !w.written[binding] {
			return core.WithKind(errors.Newf("binding %d of the set layout was never written", binding), core.ErrUnwrittenBinding)
		}
	}
	return nil
}

// Build allocates a set from the pool and writes every binding into it.
func (w *DescriptorWriter) Build() (*DescriptorSet, error) {
	if err := w.validate(); err != nil {
		return nil, err
	}
	set, err := w.pool.Allocate(w.layout)
	if err != nil {
		return nil, err
	}
	w.commit(set)
	return set, nil
}

// Overwrite rewrites an existing set of the same layout.
func (w *DescriptorWriter) Overwrite(set *DescriptorSet) error {
	if !set.Valid() {
		return errors.AssertionFailedf("overwriting an invalidated descriptor set")
	}
	if set.layout != w.layout {
		return errors.AssertionFailedf("descriptor set was allocated for a different layout")
	}
	if err := w.validate(); err != nil {
		return err
	}
	w.commit(set)
	return nil
}

func (w *DescriptorWriter) commit(set *DescriptorSet) {
	writes := make([]vk.WriteDescriptorSet, len(w.writes))
	copy(writes, w.writes)
	for i := range writes {
		writes[i].DstSet = set.Handle
	}
	w.pool.ctx.Driver.UpdateDescriptorSets(writes)
}
