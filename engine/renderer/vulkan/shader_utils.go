package vulkan

import (
	"os"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/voxel/engine/assets/loaders"
)

// ReadShaderFile loads a compiled SPIR-V module from path.
func ReadShaderFile(path string) ([]uint32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading shader %s", path)
	}
	code, err := loaders.DecodeSPIRV(data)
	if err != nil {
		return nil, errors.Wrapf(err, "shader %s", path)
	}
	return code, nil
}

func NewShaderModule(ctx *VulkanContext, code []uint32) (vk.ShaderModule, error) {
	if len(code) == 0 {
		return vk.NullShaderModule, errors.AssertionFailedf("empty shader code")
	}
	module, err := ctx.Driver.CreateShaderModule(code)
	if err != nil {
		return vk.NullShaderModule, errors.Wrap(err, "creating shader module")
	}
	return module, nil
}

// ShaderStageCreateInfo describes module as the given stage with entry point main.
func ShaderStageCreateInfo(stage vk.ShaderStageFlagBits, module vk.ShaderModule) vk.PipelineShaderStageCreateInfo {
	return vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  stage,
		Module: module,
		PName:  VulkanSafeString("main"),
	}
}
