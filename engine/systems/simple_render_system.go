package systems

import (
	"path/filepath"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/voxel/engine/core"
	"github.com/spaghettifunk/voxel/engine/renderer/components"
	"github.com/spaghettifunk/voxel/engine/renderer/vulkan"
)

const (
	simpleVertexShader   = "shaders/simple_shader.vert.spv"
	simpleFragmentShader = "shaders/simple_shader.frag.spv"
)

// SimpleShaderAssets names the compiled stages the system reads, relative to
// the asset directory.
func SimpleShaderAssets() []string {
	return []string{simpleVertexShader, simpleFragmentShader}
}

var pushConstantStages = vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit)

// SimpleRenderSystem draws lit, textured game objects with one pipeline.
// Per-object transforms go through push constants.
type SimpleRenderSystem struct {
	ctx            *vulkan.VulkanContext
	assetDir       string
	pipelineLayout vk.PipelineLayout
	pipeline       *vulkan.Pipeline
}

// NewSimpleRenderSystem builds the pipeline for renderPass. globalLayout may
// be nil for objects drawn without set 0. Shaders are read from assetDir.
func NewSimpleRenderSystem(ctx *vulkan.VulkanContext, renderPass *vulkan.VulkanRenderpass, globalLayout *vulkan.DescriptorSetLayout, assetDir string) (*SimpleRenderSystem, error) {
	s := &SimpleRenderSystem{ctx: ctx, assetDir: assetDir}

	var setLayouts []*vulkan.DescriptorSetLayout
	if globalLayout != nil {
		setLayouts = append(setLayouts, globalLayout)
	}
	layout, err := vulkan.NewPipelineLayout(ctx, setLayouts, []vk.PushConstantRange{{
		StageFlags: pushConstantStages,
		Offset:     0,
		Size:       simplePushConstantSize,
	}})
	if err != nil {
		return nil, err
	}
	s.pipelineLayout = layout

	if err := s.RebuildPipeline(renderPass); err != nil {
		s.Destroy()
		return nil, err
	}
	return s, nil
}

// RebuildPipeline replaces the pipeline with one compatible with renderPass.
// The old pipeline is destroyed only once the new one exists.
func (s *SimpleRenderSystem) RebuildPipeline(renderPass *vulkan.VulkanRenderpass) error {
	if renderPass == nil {
		return errors.AssertionFailedf("cannot create pipeline before the render pass")
	}
	var cfg vulkan.PipelineConfigInfo
	vulkan.DefaultPipelineConfigInfo(&cfg)
	cfg.RenderPass = renderPass.Handle
	cfg.PipelineLayout = s.pipelineLayout

	pipeline, err := vulkan.NewPipelineFromFiles(s.ctx,
		filepath.Join(s.assetDir, simpleVertexShader),
		filepath.Join(s.assetDir, simpleFragmentShader),
		&cfg)
	if err != nil {
		return errors.Wrap(err, "creating simple render pipeline")
	}
	if s.pipeline != nil {
		s.pipeline.Destroy()
	}
	s.pipeline = pipeline
	return nil
}

// OnSwapChainRecreated is registered with the renderer.
func (s *SimpleRenderSystem) OnSwapChainRecreated(sc *vulkan.SwapChain) error {
	core.LogDebug("Rebuilding simple render pipeline for new swapchain.")
	return s.RebuildPipeline(sc.RenderPass())
}

// RenderGameObjects records draws for every object that has a model, in
// slice order. Must be called inside the swapchain render pass.
func (s *SimpleRenderSystem) RenderGameObjects(frame *FrameInfo, objects []*components.GameObject) error {
	if frame == nil || frame.CommandBuffer == nil {
		return errors.AssertionFailedf("rendering without a command buffer")
	}
	cb := frame.CommandBuffer
	s.pipeline.Bind(cb)

	if frame.GlobalDescriptorSet != nil {
		if err := frame.GlobalDescriptorSet.Bind(cb, s.pipelineLayout, 0); err != nil {
			return err
		}
	}

	for _, obj := range objects {
		if obj.Model == nil {
			continue
		}
		push := SimplePushConstantData{
			ModelMatrix:  obj.Transform.Mat4(),
			NormalMatrix: obj.Transform.NormalMatrix(),
		}
		data, err := vulkan.EncodeData(push)
		if err != nil {
			return err
		}
		s.ctx.Driver.CmdPushConstants(cb.Handle, s.pipelineLayout, pushConstantStages, 0, data)
		obj.Model.Bind(cb)
		obj.Model.Draw(cb)
	}
	return nil
}

func (s *SimpleRenderSystem) PipelineLayout() vk.PipelineLayout {
	return s.pipelineLayout
}

func (s *SimpleRenderSystem) Destroy() {
	if s.pipeline != nil {
		s.pipeline.Destroy()
		s.pipeline = nil
	}
	if s.pipelineLayout != vk.NullPipelineLayout {
		s.ctx.Driver.DestroyPipelineLayout(s.pipelineLayout)
		s.pipelineLayout = vk.NullPipelineLayout
	}
}
