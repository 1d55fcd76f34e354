package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/voxel/engine/core"
)

// SurfaceProvider is the window side of context creation.
type SurfaceProvider interface {
	InstanceProcAddr() unsafe.Pointer
	GetRequiredExtensionNames() []string
	CreateSurface(instance interface{}) (uintptr, error)
}

type VulkanContext struct {
	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	debugCallback vk.DebugReportCallback

	Device *VulkanDevice
	Driver Driver
	Locks  *VulkanLockPool

	Config core.RendererSettings
}

// NewVulkanContext brings up the instance, surface, logical device and driver.
// Anything created before a failure is torn down again.
func NewVulkanContext(p SurfaceProvider, cfg core.RendererSettings, appName string) (*VulkanContext, error) {
	ctx := &VulkanContext{Config: cfg, Locks: NewVulkanLockPool()}

	instance, callback, err := createInstance(p, appName, cfg.Validation, ctx.Allocator)
	if err != nil {
		return nil, err
	}
	ctx.Instance = instance
	ctx.debugCallback = callback

	core.LogDebug("Creating Vulkan surface...")
	surface, err := p.CreateSurface(ctx.Instance)
	if err != nil {
		ctx.Destroy()
		return nil, err
	}
	ctx.Surface = vk.SurfaceFromPointer(surface)
	core.LogDebug("Vulkan surface created.")

	device, err := DeviceCreate(ctx.Instance, ctx.Surface, ctx.Allocator)
	if err != nil {
		ctx.Destroy()
		return nil, err
	}
	ctx.Device = device
	ctx.Driver = NewVkDriver(device.PhysicalDevice, device.LogicalDevice, ctx.Allocator)

	return ctx, nil
}

func (vc *VulkanContext) Destroy() {
	if vc.Device != nil {
		vc.Device.Destroy(vc.Allocator)
		vc.Device = nil
	}
	vc.Driver = nil

	if vc.Surface != vk.NullSurface {
		core.LogDebug("Destroying Vulkan surface...")
		vk.DestroySurface(vc.Instance, vc.Surface, vc.Allocator)
		vc.Surface = vk.NullSurface
	}
	if vc.debugCallback != vk.NullDebugReportCallback {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(vc.Instance, vc.debugCallback, vc.Allocator)
		vc.debugCallback = vk.NullDebugReportCallback
	}
	if vc.Instance != nil {
		core.LogDebug("Destroying Vulkan instance...")
		vk.DestroyInstance(vc.Instance, vc.Allocator)
		vc.Instance = nil
	}
}

// WaitIdle blocks until the device has finished all submitted work.
func (vc *VulkanContext) WaitIdle() error {
	return vc.Driver.DeviceWaitIdle()
}

func (vc *VulkanContext) FindMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlags) (uint32, error) {
	memory := vc.Device.Memory
	for i := uint32(0); i < memory.MemoryTypeCount; i++ {
		// Check each memory type to see if its bit is set to 1.
		if typeFilter&(1<<i) != 0 && memory.MemoryTypes[i].PropertyFlags&propertyFlags == propertyFlags {
			return i, nil
		}
	}
	return 0, core.WithKind(
		errors.Newf("no memory type matches filter %#x with properties %#x", typeFilter, uint32(propertyFlags)),
		core.ErrOutOfMemory)
}

func (vc *VulkanContext) fenceTimeout() uint64 {
	if vc.Config.FenceTimeoutMS == 0 {
		return defaultFenceTimeoutNS
	}
	return vc.Config.FenceTimeoutMS * 1_000_000
}

func (vc *VulkanContext) acquireTimeout() uint64 {
	if vc.Config.AcquireTimeoutMS == 0 {
		return defaultAcquireTimeoutNS
	}
	return vc.Config.AcquireTimeoutMS * 1_000_000
}
