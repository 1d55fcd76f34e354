package vulkan

import vk "github.com/goki/vulkan"

// MaxFramesInFlight is how many frames the CPU may record ahead of the GPU.
const MaxFramesInFlight = 2

// deferredDeletionCapacity bounds resources queued for destruction before the
// renderer forces a device-idle flush.
const deferredDeletionCapacity = 256

const (
	defaultFenceTimeoutNS   uint64 = 5_000_000_000
	defaultAcquireTimeoutNS uint64 = 5_000_000_000
)

const (
	validationLayerName        = "VK_LAYER_KHRONOS_validation"
	portabilitySubsetExtension = "VK_KHR_portability_subset"
)

const wholeSize = vk.DeviceSize(vk.WholeSize)
