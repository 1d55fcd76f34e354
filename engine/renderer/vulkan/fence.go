package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/voxel/engine/core"
)

type VulkanFence struct {
	Handle     vk.Fence
	IsSignaled bool

	driver Driver
}

func NewFence(context *VulkanContext, createSignaled bool) (*VulkanFence, error) {
	handle, err := context.Driver.CreateFence(createSignaled)
	if err != nil {
		return nil, errors.Wrap(err, "creating fence")
	}
	return &VulkanFence{
		Handle:     handle,
		IsSignaled: createSignaled,
		driver:     context.Driver,
	}, nil
}

func (vf *VulkanFence) Destroy() {
	if vf.Handle != vk.NullFence {
		vf.driver.DestroyFence(vf.Handle)
		vf.Handle = vk.NullFence
	}
	vf.IsSignaled = false
}

// Wait blocks until the fence is signaled or timeoutNs elapses. A fence already
// known to be signaled returns immediately.
func (vf *VulkanFence) Wait(timeoutNs uint64) error {
	if vf.IsSignaled {
		return nil
	}
	result := vf.driver.WaitForFences([]vk.Fence{vf.Handle}, true, timeoutNs)
	switch result {
	case vk.Success:
		vf.IsSignaled = true
		return nil
	case vk.Timeout:
		core.LogWarn("fence wait timed out after %dns", timeoutNs)
	case vk.ErrorDeviceLost:
		core.LogError("fence wait: VK_ERROR_DEVICE_LOST.")
	}
	return ResultError("vkWaitForFences", result)
}

// Reset returns the fence to the unsignaled state so it can be handed to a
// submission.
func (vf *VulkanFence) Reset() error {
	if !vf.IsSignaled {
		return errors.AssertionFailedf("resetting a fence that has not been observed signaled")
	}
	if err := vf.driver.ResetFences([]vk.Fence{vf.Handle}); err != nil {
		return err
	}
	vf.IsSignaled = false
	return nil
}
