package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	// Command buffer state.
	State VulkanCommandBufferState

	driver Driver
	locks  *VulkanLockPool
	pool   vk.CommandPool
}

// NewVulkanCommandBuffers allocates count buffers from pool in one call.
func NewVulkanCommandBuffers(context *VulkanContext, pool vk.CommandPool, isPrimary bool, count uint32) ([]*VulkanCommandBuffer, error) {
	level := vk.CommandBufferLevelSecondary
	if isPrimary {
		level = vk.CommandBufferLevelPrimary
	}
	var handles []vk.CommandBuffer
	err := context.Locks.SafeCall(CommandPoolManagement, func() error {
		var err error
		handles, err = context.Driver.AllocateCommandBuffers(pool, level, count)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "allocating command buffers")
	}
	buffers := make([]*VulkanCommandBuffer, len(handles))
	for i, handle := range handles {
		buffers[i] = &VulkanCommandBuffer{
			Handle: handle,
			State:  COMMAND_BUFFER_STATE_READY,
			driver: context.Driver,
			locks:  context.Locks,
			pool:   pool,
		}
	}
	return buffers, nil
}

func (v *VulkanCommandBuffer) Free() {
	if v.State == COMMAND_BUFFER_STATE_NOT_ALLOCATED {
		return
	}
	_ = v.locks.SafeCall(CommandPoolManagement, func() error {
		v.driver.FreeCommandBuffers(v.pool, []vk.CommandBuffer{v.Handle})
		return nil
	})
	v.Handle = nil
	v.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}

func (v *VulkanCommandBuffer) Begin(isSingleUse, isRenderpassContinue, isSimultaneousUse bool) error {
	if v.State != COMMAND_BUFFER_STATE_READY {
		return errors.AssertionFailedf("begin on command buffer in state %d", v.State)
	}
	var flags vk.CommandBufferUsageFlags
	if isSingleUse {
		flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if isRenderpassContinue {
		flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageRenderPassContinueBit)
	}
	if isSimultaneousUse {
		flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit)
	}
	if err := v.driver.BeginCommandBuffer(v.Handle, flags); err != nil {
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

func (v *VulkanCommandBuffer) End() error {
	if v.State != COMMAND_BUFFER_STATE_RECORDING {
		return errors.AssertionFailedf("end on command buffer in state %d", v.State)
	}
	if err := v.driver.EndCommandBuffer(v.Handle); err != nil {
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (v *VulkanCommandBuffer) UpdateSubmitted() {
	v.State = COMMAND_BUFFER_STATE_SUBMITTED
}

// Reset discards recorded commands. The caller must know the last submission
// has completed.
func (v *VulkanCommandBuffer) Reset() error {
	if err := v.driver.ResetCommandBuffer(v.Handle); err != nil {
		return err
	}
	v.State = COMMAND_BUFFER_STATE_READY
	return nil
}

// BeginSingleTimeCommands allocates a primary buffer from the graphics pool and
// starts recording it for one submission.
func (vc *VulkanContext) BeginSingleTimeCommands() (*VulkanCommandBuffer, error) {
	buffers, err := NewVulkanCommandBuffers(vc, vc.Device.GraphicsCommandPool, true, 1)
	if err != nil {
		return nil, err
	}
	cb := buffers[0]
	if err := cb.Begin(true, false, false); err != nil {
		cb.Free()
		return nil, err
	}
	return cb, nil
}

// EndSingleTimeCommands submits cb, waits for the graphics queue to drain and
// frees cb.
func (vc *VulkanContext) EndSingleTimeCommands(cb *VulkanCommandBuffer) error {
	defer cb.Free()

	if err := cb.End(); err != nil {
		return err
	}
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cb.Handle},
	}
	return vc.Locks.SafeQueueCall(vc.Device.GraphicsQueueIndex, func() error {
		if err := vc.Driver.QueueSubmit(vc.Device.GraphicsQueue, []vk.SubmitInfo{submitInfo}, vk.NullFence); err != nil {
			return err
		}
		cb.UpdateSubmitted()
		return vc.Driver.QueueWaitIdle(vc.Device.GraphicsQueue)
	})
}
