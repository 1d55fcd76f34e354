package vulkan

import (
	"runtime"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/voxel/engine/core"
)

func createInstance(p SurfaceProvider, appName string, validation bool, allocator *vk.AllocationCallbacks) (vk.Instance, vk.DebugReportCallback, error) {
	procAddr := p.InstanceProcAddr()
	if procAddr == nil {
		return nil, vk.NullDebugReportCallback, core.WithKind(errors.New("GetInstanceProcAddress is nil"), core.ErrInitialization)
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return nil, vk.NullDebugReportCallback, core.WithKind(errors.Wrap(err, "vk.Init"), core.ErrInitialization)
	}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("Voxel Engine"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	// Obtain a list of required extensions
	requiredExtensions := []string{"VK_KHR_surface"}
	requiredExtensions = append(requiredExtensions, p.GetRequiredExtensionNames()...)
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}
	if validation {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
	}
	requiredExtensions = dedupe(requiredExtensions)
	for _, ext := range requiredExtensions {
		core.LogDebug("Required extension: %s", ext)
	}

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)

	var layers []string
	if validation {
		core.LogInfo("Validation layers enabled. Enumerating...")
		available, err := instanceLayers()
		if err != nil {
			return nil, vk.NullDebugReportCallback, err
		}
		if !contains(available, validationLayerName) {
			return nil, vk.NullDebugReportCallback, core.WithKind(
				errors.Newf("required validation layer is missing: %s", validationLayerName),
				core.ErrInitialization)
		}
		layers = []string{validationLayerName}
		core.LogInfo("All required validation layers are present.")
	}
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	var instance vk.Instance
	if err := ResultError("vkCreateInstance", vk.CreateInstance(&createInfo, allocator, &instance)); err != nil {
		return nil, vk.NullDebugReportCallback, core.WithKind(err, core.ErrInitialization)
	}
	if err := vk.InitInstance(instance); err != nil {
		vk.DestroyInstance(instance, allocator)
		return nil, vk.NullDebugReportCallback, core.WithKind(errors.Wrap(err, "vk.InitInstance"), core.ErrInitialization)
	}
	core.LogInfo("Vulkan Instance created.")

	if !validation {
		return instance, vk.NullDebugReportCallback, nil
	}

	core.LogDebug("Creating Vulkan debugger...")
	debugCreateInfo := vk.DebugReportCallbackCreateInfo{
		SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
		PfnCallback: debugReportCallback,
	}
	var callback vk.DebugReportCallback
	if err := ResultError("vkCreateDebugReportCallbackEXT", vk.CreateDebugReportCallback(instance, &debugCreateInfo, allocator, &callback)); err != nil {
		// Validation output is best effort.
		core.LogWarn("debug report callback unavailable: %v", err)
		return instance, vk.NullDebugReportCallback, nil
	}
	core.LogDebug("Vulkan debugger created.")
	return instance, callback, nil
}

func instanceLayers() ([]string, error) {
	var count uint32
	if err := ResultError("vkEnumerateInstanceLayerProperties", vk.EnumerateInstanceLayerProperties(&count, nil)); err != nil {
		return nil, err
	}
	list := make([]vk.LayerProperties, count)
	if err := ResultError("vkEnumerateInstanceLayerProperties", vk.EnumerateInstanceLayerProperties(&count, list)); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for _, layer := range list[:count] {
		layer.Deref()
		names = append(names, vk.ToString(layer.LayerName[:]))
	}
	return names, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func dedupe(list []string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if !contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func debugReportCallback(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
