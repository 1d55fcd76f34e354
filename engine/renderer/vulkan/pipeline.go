package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/voxel/engine/core"
)

// PipelineConfigInfo holds every fixed-function setting of a graphics
// pipeline. Start from DefaultPipelineConfigInfo and override fields.
type PipelineConfigInfo struct {
	BindingDescriptions   []vk.VertexInputBindingDescription
	AttributeDescriptions []vk.VertexInputAttributeDescription

	ViewportInfo         vk.PipelineViewportStateCreateInfo
	InputAssemblyInfo    vk.PipelineInputAssemblyStateCreateInfo
	RasterizationInfo    vk.PipelineRasterizationStateCreateInfo
	MultisampleInfo      vk.PipelineMultisampleStateCreateInfo
	ColorBlendAttachment vk.PipelineColorBlendAttachmentState
	ColorBlendInfo       vk.PipelineColorBlendStateCreateInfo
	DepthStencilInfo     vk.PipelineDepthStencilStateCreateInfo
	DynamicStateEnables  []vk.DynamicState

	PipelineLayout vk.PipelineLayout
	RenderPass     vk.RenderPass
	Subpass        uint32
}

// DefaultPipelineConfigInfo fills cfg with opaque triangle-list rendering:
// back-face culling, counter-clockwise front faces, depth test and write
// with LESS, no blending, dynamic viewport and scissor.
func DefaultPipelineConfigInfo(cfg *PipelineConfigInfo) {
	cfg.InputAssemblyInfo = vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}

	// Viewport and scissor are dynamic; only the counts matter here.
	cfg.ViewportInfo = vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	cfg.RasterizationInfo = vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		LineWidth:               1.0,
		CullMode:                vk.CullModeFlags(vk.CullModeBackBit),
		FrontFace:               vk.FrontFaceCounterClockwise,
		DepthBiasEnable:         vk.False,
		DepthBiasConstantFactor: 0.0,
		DepthBiasClamp:          0.0,
		DepthBiasSlopeFactor:    0.0,
	}

	cfg.MultisampleInfo = vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:   vk.False,
		RasterizationSamples:  vk.SampleCount1Bit,
		MinSampleShading:      1.0,
		AlphaToCoverageEnable: vk.False,
		AlphaToOneEnable:      vk.False,
	}

	cfg.ColorBlendAttachment = vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vk.False,
		SrcColorBlendFactor: vk.BlendFactorOne,
		DstColorBlendFactor: vk.BlendFactorZero,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorOne,
		DstAlphaBlendFactor: vk.BlendFactorZero,
		AlphaBlendOp:        vk.BlendOpAdd,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit |
			vk.ColorComponentBBit | vk.ColorComponentABit),
	}

	cfg.ColorBlendInfo = vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		BlendConstants:  [4]float32{0, 0, 0, 0},
	}

	cfg.DepthStencilInfo = vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       vk.True,
		DepthWriteEnable:      vk.True,
		DepthCompareOp:        vk.CompareOpLess,
		DepthBoundsTestEnable: vk.False,
		MinDepthBounds:        0.0,
		MaxDepthBounds:        1.0,
		StencilTestEnable:     vk.False,
	}

	cfg.DynamicStateEnables = []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}

	cfg.BindingDescriptions = VertexBindingDescriptions()
	cfg.AttributeDescriptions = VertexAttributeDescriptions()
}

// EnableAlphaBlending switches the color attachment to straight alpha blending.
func EnableAlphaBlending(cfg *PipelineConfigInfo) {
	cfg.ColorBlendAttachment.BlendEnable = vk.True
	cfg.ColorBlendAttachment.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
	cfg.ColorBlendAttachment.DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
	cfg.ColorBlendAttachment.ColorBlendOp = vk.BlendOpAdd
	cfg.ColorBlendAttachment.SrcAlphaBlendFactor = vk.BlendFactorOne
	cfg.ColorBlendAttachment.DstAlphaBlendFactor = vk.BlendFactorZero
	cfg.ColorBlendAttachment.AlphaBlendOp = vk.BlendOpAdd
}

// Pipeline is an immutable graphics pipeline. Rebuild it to change any state.
type Pipeline struct {
	Handle vk.Pipeline
	Layout vk.PipelineLayout

	ctx *VulkanContext
}

// NewPipelineFromFiles loads SPIR-V from disk and builds the pipeline.
func NewPipelineFromFiles(ctx *VulkanContext, vertPath, fragPath string, cfg *PipelineConfigInfo) (*Pipeline, error) {
	vertCode, err := ReadShaderFile(vertPath)
	if err != nil {
		return nil, err
	}
	fragCode, err := ReadShaderFile(fragPath)
	if err != nil {
		return nil, err
	}
	return NewPipeline(ctx, vertCode, fragCode, cfg)
}

func NewPipeline(ctx *VulkanContext, vertCode, fragCode []uint32, cfg *PipelineConfigInfo) (*Pipeline, error) {
	if cfg.PipelineLayout == vk.NullPipelineLayout {
		return nil, errors.AssertionFailedf("cannot create graphics pipeline: no pipeline layout provided in config")
	}
	if cfg.RenderPass == vk.NullRenderPass {
		return nil, errors.AssertionFailedf("cannot create graphics pipeline: no render pass provided in config")
	}

	vertModule, err := NewShaderModule(ctx, vertCode)
	if err != nil {
		return nil, err
	}
	defer ctx.Driver.DestroyShaderModule(vertModule)
	fragModule, err := NewShaderModule(ctx, fragCode)
	if err != nil {
		return nil, err
	}
	defer ctx.Driver.DestroyShaderModule(fragModule)

	stages := []vk.PipelineShaderStageCreateInfo{
		ShaderStageCreateInfo(vk.ShaderStageVertexBit, vertModule),
		ShaderStageCreateInfo(vk.ShaderStageFragmentBit, fragModule),
	}

	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(cfg.BindingDescriptions)),
		PVertexBindingDescriptions:      cfg.BindingDescriptions,
		VertexAttributeDescriptionCount: uint32(len(cfg.AttributeDescriptions)),
		PVertexAttributeDescriptions:    cfg.AttributeDescriptions,
	}

	colorBlendInfo := cfg.ColorBlendInfo
	colorBlendInfo.AttachmentCount = 1
	colorBlendInfo.PAttachments = []vk.PipelineColorBlendAttachmentState{cfg.ColorBlendAttachment}

	dynamicStateInfo := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(cfg.DynamicStateEnables)),
		PDynamicStates:    cfg.DynamicStateEnables,
	}

	viewportInfo := cfg.ViewportInfo
	inputAssemblyInfo := cfg.InputAssemblyInfo
	rasterizationInfo := cfg.RasterizationInfo
	multisampleInfo := cfg.MultisampleInfo
	depthStencilInfo := cfg.DepthStencilInfo

	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssemblyInfo,
		PViewportState:      &viewportInfo,
		PRasterizationState: &rasterizationInfo,
		PMultisampleState:   &multisampleInfo,
		PColorBlendState:    &colorBlendInfo,
		PDepthStencilState:  &depthStencilInfo,
		PDynamicState:       &dynamicStateInfo,
		Layout:              cfg.PipelineLayout,
		RenderPass:          cfg.RenderPass,
		Subpass:             cfg.Subpass,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	var handle vk.Pipeline
	err = ctx.Locks.SafeCall(PipelineManagement, func() error {
		var err error
		handle, err = ctx.Driver.CreateGraphicsPipeline(&pipelineCreateInfo)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating graphics pipeline")
	}

	core.LogDebug("Graphics pipeline created!")
	return &Pipeline{
		Handle: handle,
		Layout: cfg.PipelineLayout,
		ctx:    ctx,
	}, nil
}

func (p *Pipeline) Bind(cb *VulkanCommandBuffer) {
	p.ctx.Driver.CmdBindPipeline(cb.Handle, vk.PipelineBindPointGraphics, p.Handle)
}

func (p *Pipeline) Destroy() {
	if p.Handle != vk.NullPipeline {
		p.ctx.Driver.DestroyPipeline(p.Handle)
		p.Handle = vk.NullPipeline
	}
}

// NewPipelineLayout creates a layout over the given set layouts (set index =
// slice index) and push constant ranges.
func NewPipelineLayout(ctx *VulkanContext, setLayouts []*DescriptorSetLayout, pushConstantRanges []vk.PushConstantRange) (vk.PipelineLayout, error) {
	handles := make([]vk.DescriptorSetLayout, len(setLayouts))
	for i, l := range setLayouts {
		if l == nil || l.Handle == nil {
			return vk.NullPipelineLayout, errors.AssertionFailedf("set layout %d is not built", i)
		}
		handles[i] = l.Handle
	}
	var total uint32
	for _, r := range pushConstantRanges {
		if r.Offset+r.Size > total {
			total = r.Offset + r.Size
		}
	}
	// 128 bytes is the guaranteed minimum maxPushConstantsSize.
	if limit := ctx.Device.Properties.Limits.MaxPushConstantsSize; total > 128 && total > limit {
		return vk.NullPipelineLayout, errors.AssertionFailedf("push constants need %d bytes, device allows %d", total, limit)
	}

	layout, err := ctx.Driver.CreatePipelineLayout(&vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(handles)),
		PSetLayouts:            handles,
		PushConstantRangeCount: uint32(len(pushConstantRanges)),
		PPushConstantRanges:    pushConstantRanges,
	})
	if err != nil {
		return vk.NullPipelineLayout, errors.Wrap(err, "creating pipeline layout")
	}
	return layout, nil
}
