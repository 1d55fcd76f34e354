package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/voxel/engine/core"
)

// VulkanSwapchainSupportInfo is queried once at device selection. Capabilities
// change with the window and are re-read on every swap chain build.
type VulkanSwapchainSupportInfo struct {
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

type VulkanDevice struct {
	PhysicalDevice   vk.PhysicalDevice
	LogicalDevice    vk.Device
	SwapchainSupport VulkanSwapchainSupportInfo

	GraphicsQueueIndex uint32
	PresentQueueIndex  uint32

	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue

	GraphicsCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	Memory     vk.PhysicalDeviceMemoryProperties

	DepthFormat vk.Format
}

type VulkanPhysicalDeviceRequirements struct {
	Graphics             bool
	Present              bool
	DeviceExtensionNames []string
	SamplerAnisotropy    bool
}

type VulkanPhysicalDeviceQueueFamilyInfo struct {
	GraphicsFamilyIndex int32
	PresentFamilyIndex  int32
}

// DeviceCreate selects a physical device and builds the logical device,
// its queues and the graphics command pool.
func DeviceCreate(instance vk.Instance, surface vk.Surface, allocator *vk.AllocationCallbacks) (*VulkanDevice, error) {
	device, err := SelectPhysicalDevice(instance, surface)
	if err != nil {
		return nil, err
	}

	core.LogInfo("Creating logical device...")

	indices := []uint32{device.GraphicsQueueIndex}
	if device.PresentQueueIndex != device.GraphicsQueueIndex {
		indices = append(indices, device.PresentQueueIndex)
	}
	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i, index := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: index,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	deviceFeatures := vk.PhysicalDeviceFeatures{
		SamplerAnisotropy: device.Features.SamplerAnisotropy,
	}

	extensionNames := []string{vk.KhrSwapchainExtensionName}
	available, err := deviceExtensions(device.PhysicalDevice)
	if err != nil {
		return nil, err
	}
	if contains(available, portabilitySubsetExtension) {
		core.LogInfo("Adding required extension '%s'.", portabilitySubsetExtension)
		extensionNames = append(extensionNames, portabilitySubsetExtension)
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{deviceFeatures},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
	}

	var logical vk.Device
	if err := ResultError("vkCreateDevice", vk.CreateDevice(device.PhysicalDevice, &deviceCreateInfo, allocator, &logical)); err != nil {
		return nil, core.WithKind(err, core.ErrInitialization)
	}
	device.LogicalDevice = logical
	core.LogInfo("Logical device created.")

	var graphicsQueue, presentQueue vk.Queue
	vk.GetDeviceQueue(logical, device.GraphicsQueueIndex, 0, &graphicsQueue)
	vk.GetDeviceQueue(logical, device.PresentQueueIndex, 0, &presentQueue)
	device.GraphicsQueue = graphicsQueue
	device.PresentQueue = presentQueue
	core.LogInfo("Queues obtained.")

	// Create command pool for graphics queue.
	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: device.GraphicsQueueIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit | vk.CommandPoolCreateTransientBit),
	}
	var pool vk.CommandPool
	if err := ResultError("vkCreateCommandPool", vk.CreateCommandPool(logical, &poolCreateInfo, allocator, &pool)); err != nil {
		vk.DestroyDevice(logical, allocator)
		return nil, core.WithKind(err, core.ErrInitialization)
	}
	device.GraphicsCommandPool = pool
	core.LogInfo("Graphics command pool created.")

	if !DeviceDetectDepthFormat(device) {
		device.Destroy(allocator)
		return nil, core.WithKind(errors.New("no supported depth format"), core.ErrUnsupportedFormat)
	}

	return device, nil
}

func (d *VulkanDevice) Destroy(allocator *vk.AllocationCallbacks) {
	d.GraphicsQueue = nil
	d.PresentQueue = nil

	if d.GraphicsCommandPool != vk.NullCommandPool {
		core.LogInfo("Destroying command pools...")
		vk.DestroyCommandPool(d.LogicalDevice, d.GraphicsCommandPool, allocator)
		d.GraphicsCommandPool = vk.NullCommandPool
	}

	if d.LogicalDevice != nil {
		core.LogInfo("Destroying logical device...")
		vk.DestroyDevice(d.LogicalDevice, allocator)
		d.LogicalDevice = nil
	}

	// Physical devices are not destroyed.
	d.PhysicalDevice = nil
	d.SwapchainSupport = VulkanSwapchainSupportInfo{}
}

// DeviceQuerySwapchainSupport reads the surface formats and present modes.
func DeviceQuerySwapchainSupport(physicalDevice vk.PhysicalDevice, surface vk.Surface) (VulkanSwapchainSupportInfo, error) {
	var info VulkanSwapchainSupportInfo

	var formatCount uint32
	if err := ResultError("vkGetPhysicalDeviceSurfaceFormatsKHR", vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, nil)); err != nil {
		return info, err
	}
	if formatCount != 0 {
		info.Formats = make([]vk.SurfaceFormat, formatCount)
		if err := ResultError("vkGetPhysicalDeviceSurfaceFormatsKHR", vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, info.Formats)); err != nil {
			return info, err
		}
		for i := range info.Formats {
			info.Formats[i].Deref()
		}
	}

	var presentModeCount uint32
	if err := ResultError("vkGetPhysicalDeviceSurfacePresentModesKHR", vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &presentModeCount, nil)); err != nil {
		return info, err
	}
	if presentModeCount != 0 {
		info.PresentModes = make([]vk.PresentMode, presentModeCount)
		if err := ResultError("vkGetPhysicalDeviceSurfacePresentModesKHR", vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &presentModeCount, info.PresentModes)); err != nil {
			return info, err
		}
	}
	return info, nil
}

// DeviceDetectDepthFormat picks the first depth format usable as an optimally
// tiled depth attachment.
func DeviceDetectDepthFormat(device *VulkanDevice) bool {
	candidates := []vk.Format{
		vk.FormatD32Sfloat,
		vk.FormatD32SfloatS8Uint,
		vk.FormatD24UnormS8Uint,
	}
	flags := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	for _, candidate := range candidates {
		var properties vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(device.PhysicalDevice, candidate, &properties)
		properties.Deref()
		if properties.OptimalTilingFeatures&flags == flags {
			device.DepthFormat = candidate
			return true
		}
	}
	return false
}

// SelectPhysicalDevice returns the first suitable discrete GPU, or the first
// suitable device of any kind if there is no discrete one.
func SelectPhysicalDevice(instance vk.Instance, surface vk.Surface) (*VulkanDevice, error) {
	var physicalDeviceCount uint32
	if err := ResultError("vkEnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(instance, &physicalDeviceCount, nil)); err != nil {
		return nil, core.WithKind(err, core.ErrInitialization)
	}
	if physicalDeviceCount == 0 {
		return nil, core.WithKind(errors.New("no devices which support Vulkan were found"), core.ErrInitialization)
	}
	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if err := ResultError("vkEnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(instance, &physicalDeviceCount, physicalDevices)); err != nil {
		return nil, core.WithKind(err, core.ErrInitialization)
	}

	requirements := VulkanPhysicalDeviceRequirements{
		Graphics:             true,
		Present:              true,
		SamplerAnisotropy:    false,
		DeviceExtensionNames: []string{vk.KhrSwapchainExtensionName},
	}

	var selected *VulkanDevice
	for _, physicalDevice := range physicalDevices {
		candidate := &VulkanDevice{PhysicalDevice: physicalDevice}
		vk.GetPhysicalDeviceProperties(physicalDevice, &candidate.Properties)
		candidate.Properties.Deref()
		candidate.Properties.Limits.Deref()
		vk.GetPhysicalDeviceFeatures(physicalDevice, &candidate.Features)
		candidate.Features.Deref()
		vk.GetPhysicalDeviceMemoryProperties(physicalDevice, &candidate.Memory)
		candidate.Memory.Deref()
		for i := uint32(0); i < candidate.Memory.MemoryTypeCount; i++ {
			candidate.Memory.MemoryTypes[i].Deref()
		}
		for i := uint32(0); i < candidate.Memory.MemoryHeapCount; i++ {
			candidate.Memory.MemoryHeaps[i].Deref()
		}

		queueInfo, support, ok := PhysicalDeviceMeetsRequirements(physicalDevice, surface, candidate, &requirements)
		if !ok {
			continue
		}
		candidate.GraphicsQueueIndex = uint32(queueInfo.GraphicsFamilyIndex)
		candidate.PresentQueueIndex = uint32(queueInfo.PresentFamilyIndex)
		candidate.SwapchainSupport = support

		if selected == nil {
			selected = candidate
		}
		if candidate.Properties.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu {
			selected = candidate
			break
		}
	}

	if selected == nil {
		return nil, core.WithKind(errors.New("no physical devices were found which meet the requirements"), core.ErrInitialization)
	}
	logDevice(selected)
	return selected, nil
}

func PhysicalDeviceMeetsRequirements(device vk.PhysicalDevice, surface vk.Surface, candidate *VulkanDevice, requirements *VulkanPhysicalDeviceRequirements) (VulkanPhysicalDeviceQueueFamilyInfo, VulkanSwapchainSupportInfo, bool) {
	queueInfo := VulkanPhysicalDeviceQueueFamilyInfo{GraphicsFamilyIndex: -1, PresentFamilyIndex: -1}
	name := vk.ToString(candidate.Properties.DeviceName[:])

	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)

	for i := range queueFamilies {
		queueFamilies[i].Deref()
		if queueInfo.GraphicsFamilyIndex < 0 && queueFamilies[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			queueInfo.GraphicsFamilyIndex = int32(i)
		}
		var supportsPresent vk.Bool32
		if res := vk.GetPhysicalDeviceSurfaceSupport(device, uint32(i), surface, &supportsPresent); res != vk.Success {
			return queueInfo, VulkanSwapchainSupportInfo{}, false
		}
		// Prefer a family that does both.
		if supportsPresent == vk.True && (queueInfo.PresentFamilyIndex < 0 || int32(i) == queueInfo.GraphicsFamilyIndex) {
			queueInfo.PresentFamilyIndex = int32(i)
		}
	}

	core.LogDebug("Device '%s' graphics family %d, present family %d", name, queueInfo.GraphicsFamilyIndex, queueInfo.PresentFamilyIndex)
	if requirements.Graphics && queueInfo.GraphicsFamilyIndex < 0 {
		core.LogInfo("Device '%s' has no graphics queue, skipping.", name)
		return queueInfo, VulkanSwapchainSupportInfo{}, false
	}
	if requirements.Present && queueInfo.PresentFamilyIndex < 0 {
		core.LogInfo("Device '%s' cannot present to the surface, skipping.", name)
		return queueInfo, VulkanSwapchainSupportInfo{}, false
	}

	available, err := deviceExtensions(device)
	if err != nil {
		return queueInfo, VulkanSwapchainSupportInfo{}, false
	}
	for _, required := range requirements.DeviceExtensionNames {
		if !contains(available, required) {
			core.LogInfo("Required extension not found: '%s', skipping device.", required)
			return queueInfo, VulkanSwapchainSupportInfo{}, false
		}
	}

	support, err := DeviceQuerySwapchainSupport(device, surface)
	if err != nil || len(support.Formats) == 0 || len(support.PresentModes) == 0 {
		core.LogInfo("Required swapchain support not present, skipping device.")
		return queueInfo, VulkanSwapchainSupportInfo{}, false
	}

	if requirements.SamplerAnisotropy && candidate.Features.SamplerAnisotropy == vk.False {
		core.LogInfo("Device does not support samplerAnisotropy, skipping.")
		return queueInfo, VulkanSwapchainSupportInfo{}, false
	}
	return queueInfo, support, true
}

func deviceExtensions(device vk.PhysicalDevice) ([]string, error) {
	var count uint32
	if err := ResultError("vkEnumerateDeviceExtensionProperties", vk.EnumerateDeviceExtensionProperties(device, "", &count, nil)); err != nil {
		return nil, err
	}
	list := make([]vk.ExtensionProperties, count)
	if err := ResultError("vkEnumerateDeviceExtensionProperties", vk.EnumerateDeviceExtensionProperties(device, "", &count, list)); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for _, ext := range list[:count] {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, nil
}

func logDevice(device *VulkanDevice) {
	properties := device.Properties
	core.LogInfo("Selected device: '%s'.", vk.ToString(properties.DeviceName[:]))
	switch properties.DeviceType {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		core.LogInfo("GPU type is Integrated.")
	case vk.PhysicalDeviceTypeDiscreteGpu:
		core.LogInfo("GPU type is Discrete.")
	case vk.PhysicalDeviceTypeVirtualGpu:
		core.LogInfo("GPU type is Virtual.")
	case vk.PhysicalDeviceTypeCpu:
		core.LogInfo("GPU type is CPU.")
	default:
		core.LogInfo("GPU type is Unknown.")
	}

	core.LogInfo(
		"GPU Driver version: %d.%d.%d",
		vk.Version(properties.DriverVersion).Major(),
		vk.Version(properties.DriverVersion).Minor(),
		vk.Version(properties.DriverVersion).Patch(),
	)
	core.LogInfo(
		"Vulkan API version: %d.%d.%d",
		vk.Version(properties.ApiVersion).Major(),
		vk.Version(properties.ApiVersion).Minor(),
		vk.Version(properties.ApiVersion).Patch(),
	)

	for i := uint32(0); i < device.Memory.MemoryHeapCount; i++ {
		heap := device.Memory.MemoryHeaps[i]
		sizeGiB := float64(heap.Size) / 1024.0 / 1024.0 / 1024.0
		if heap.Flags&vk.MemoryHeapFlags(vk.MemoryHeapDeviceLocalBit) != 0 {
			core.LogInfo("Local GPU memory: %.2f GiB", sizeGiB)
		} else {
			core.LogInfo("Shared System memory: %.2f GiB", sizeGiB)
		}
	}
}
