package render

import (
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

// RenderPassOptions configures CreateRenderPass.
type RenderPassOptions struct {
	Format core1_0.Format
}

// DescriptorSetLayoutBindingOptions describes one binding of a descriptor set
// layout.
type DescriptorSetLayoutBindingOptions struct {
	Binding    int
	Type       core1_0.DescriptorType
	StageFlags core1_0.ShaderStageFlags
}

// DescriptorSetLayoutOptions configures CreateDescriptorSetLayout.
type DescriptorSetLayoutOptions struct {
	Bindings []DescriptorSetLayoutBindingOptions
}

// PipelineLayoutOptions configures CreatePipelineLayout.
type PipelineLayoutOptions struct {
	DescriptorSetLayout core1_0.DescriptorSetLayout
}

// GraphicsPipelineOptions configures CreateGraphicsPipeline. Viewport and
// scissor are dynamic states, so pipelines stay valid across swapchain
// recreations.
type GraphicsPipelineOptions struct {
	VertexShader   core1_0.ShaderModule
	FragmentShader core1_0.ShaderModule
	PipelineLayout core1_0.PipelineLayout
	RenderPass     core1_0.RenderPass
	Topology       core1_0.PrimitiveTopology
	PolygonMode    core1_0.PolygonMode
}

func bytesToBytecode(b []byte) []uint32 {
	byteCode := make([]uint32, len(b)/4)
	for i := 0; i < len(byteCode); i++ {
		byteIndex := i * 4
		byteCode[i] = 0
		byteCode[i] |= uint32(b[byteIndex])
		byteCode[i] |= uint32(b[byteIndex+1]) << 8
		byteCode[i] |= uint32(b[byteIndex+2]) << 16
		byteCode[i] |= uint32(b[byteIndex+3]) << 24
	}

	return byteCode
}

// CreateShaderModule creates a shader module from SPIR-V bytecode.
func (c *Context) CreateShaderModule(code []byte) (core1_0.ShaderModule, error) {
	module, _, err := c.deviceDriver.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
		Code: bytesToBytecode(code),
	})
	if err != nil {
		return core1_0.ShaderModule{}, err
	}

	c.shaderModules = append(c.shaderModules, module)
	return module, nil
}

// CreateRenderPass creates a single subpass render pass with one color
// attachment that is cleared on load and presented after rendering.
func (c *Context) CreateRenderPass(options RenderPassOptions) (core1_0.RenderPass, error) {
	renderPass, _, err := c.deviceDriver.CreateRenderPass(nil, core1_0.RenderPassCreateInfo{
		Attachments: []core1_0.AttachmentDescription{
			{
				Format:         options.Format,
				Samples:        core1_0.Samples1,
				LoadOp:         core1_0.AttachmentLoadOpClear,
				StoreOp:        core1_0.AttachmentStoreOpStore,
				StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
				StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
				InitialLayout:  core1_0.ImageLayoutUndefined,
				FinalLayout:    khr_swapchain.ImageLayoutPresentSrc,
			},
		},
		Subpasses: []core1_0.SubpassDescription{
			{
				PipelineBindPoint: core1_0.PipelineBindPointGraphics,
				ColorAttachments: []core1_0.AttachmentReference{
					{
						Attachment: 0,
						Layout:     core1_0.ImageLayoutColorAttachmentOptimal,
					},
				},
			},
		},
		SubpassDependencies: []core1_0.SubpassDependency{
			{
				SrcSubpass: core1_0.SubpassExternal,
				DstSubpass: 0,

				SrcStageMask:  core1_0.PipelineStageColorAttachmentOutput,
				SrcAccessMask: 0,

				DstStageMask:  core1_0.PipelineStageColorAttachmentOutput,
				DstAccessMask: core1_0.AccessColorAttachmentWrite,
			},
		},
	})
	if err != nil {
		return core1_0.RenderPass{}, err
	}

	c.renderPasses = append(c.renderPasses, renderPass)
	return renderPass, nil
}

// CreateDescriptorSetLayout creates a descriptor set layout from the given
// bindings.
func (c *Context) CreateDescriptorSetLayout(options DescriptorSetLayoutOptions) (core1_0.DescriptorSetLayout, error) {
	var bindings []core1_0.DescriptorSetLayoutBinding
	for _, bindingOptions := range options.Bindings {
		bindings = append(bindings, core1_0.DescriptorSetLayoutBinding{
			Binding:         bindingOptions.Binding,
			DescriptorType:  bindingOptions.Type,
			DescriptorCount: 1,

			StageFlags: bindingOptions.StageFlags,
		})
	}

	layout, _, err := c.deviceDriver.CreateDescriptorSetLayout(nil, core1_0.DescriptorSetLayoutCreateInfo{
		Bindings: bindings,
	})
	if err != nil {
		return core1_0.DescriptorSetLayout{}, err
	}

	c.descriptorSetLayouts = append(c.descriptorSetLayouts, layout)
	return layout, nil
}

// CreatePipelineLayout creates a pipeline layout with a single descriptor set
// layout and no push constants.
func (c *Context) CreatePipelineLayout(options PipelineLayoutOptions) (core1_0.PipelineLayout, error) {
	layout, _, err := c.deviceDriver.CreatePipelineLayout(nil, core1_0.PipelineLayoutCreateInfo{
		SetLayouts: []core1_0.DescriptorSetLayout{
			options.DescriptorSetLayout,
		},
	})
	if err != nil {
		return core1_0.PipelineLayout{}, err
	}

	c.pipelineLayouts = append(c.pipelineLayouts, layout)
	return layout, nil
}

// CreateGraphicsPipeline builds a graphics pipeline for the fixed vertex
// layout with alpha blending enabled.
func (c *Context) CreateGraphicsPipeline(options GraphicsPipelineOptions) (core1_0.Pipeline, error) {
	vertStage := core1_0.PipelineShaderStageCreateInfo{
		Stage:  core1_0.StageVertex,
		Module: options.VertexShader,
		Name:   "main",
	}

	fragStage := core1_0.PipelineShaderStageCreateInfo{
		Stage:  core1_0.StageFragment,
		Module: options.FragmentShader,
		Name:   "main",
	}

	vertexInput := &core1_0.PipelineVertexInputStateCreateInfo{
		VertexBindingDescriptions:   getVertexBindingDescription(),
		VertexAttributeDescriptions: getVertexAttributeDescriptions(),
	}

	inputAssembly := &core1_0.PipelineInputAssemblyStateCreateInfo{
		Topology:               options.Topology,
		PrimitiveRestartEnable: false,
	}

	// Viewport and scissor values come from CmdSetViewport/CmdSetScissor at
	// record time; only the counts matter here.
	viewport := &core1_0.PipelineViewportStateCreateInfo{
		Viewports: []core1_0.Viewport{
			{},
		},
		Scissors: []core1_0.Rect2D{
			{},
		},
	}

	dynamicState := &core1_0.PipelineDynamicStateCreateInfo{
		DynamicStates: []core1_0.DynamicState{
			core1_0.DynamicStateViewport,
			core1_0.DynamicStateScissor,
		},
	}

	rasterization := &core1_0.PipelineRasterizationStateCreateInfo{
		DepthClampEnable:        false,
		RasterizerDiscardEnable: false,

		PolygonMode: options.PolygonMode,
		CullMode:    core1_0.CullModeBack,
		FrontFace:   core1_0.FrontFaceCounterClockwise,

		DepthBiasEnable: false,

		LineWidth: 1.0,
	}

	multisample := &core1_0.PipelineMultisampleStateCreateInfo{
		SampleShadingEnable:  false,
		RasterizationSamples: core1_0.Samples1,
		MinSampleShading:     1.0,
	}

	colorBlend := &core1_0.PipelineColorBlendStateCreateInfo{
		LogicOpEnabled: false,
		LogicOp:        core1_0.LogicOpCopy,

		BlendConstants: [4]float32{0, 0, 0, 0},
		Attachments: []core1_0.PipelineColorBlendAttachmentState{
			{
				BlendEnabled:        true,
				SrcColorBlendFactor: core1_0.BlendFactorSrcAlpha,
				DstColorBlendFactor: core1_0.BlendFactorOneMinusSrcAlpha,
				ColorBlendOp:        core1_0.BlendOpAdd,
				SrcAlphaBlendFactor: core1_0.BlendFactorOne,
				DstAlphaBlendFactor: core1_0.BlendFactorZero,
				AlphaBlendOp:        core1_0.BlendOpAdd,
				ColorWriteMask:      core1_0.ColorComponentRed | core1_0.ColorComponentGreen | core1_0.ColorComponentBlue | core1_0.ColorComponentAlpha,
			},
		},
	}

	var pipelineCache *core1_0.PipelineCache
	if c.pipelineCacheCreated {
		pipelineCache = &c.pipelineCache
	}

	pipelines, _, err := c.deviceDriver.CreateGraphicsPipelines(pipelineCache, nil,
		core1_0.GraphicsPipelineCreateInfo{
			Stages: []core1_0.PipelineShaderStageCreateInfo{
				vertStage,
				fragStage,
			},
			VertexInputState:   vertexInput,
			InputAssemblyState: inputAssembly,
			ViewportState:      viewport,
			RasterizationState: rasterization,
			MultisampleState:   multisample,
			ColorBlendState:    colorBlend,
			DynamicState:       dynamicState,
			Layout:             options.PipelineLayout,
			RenderPass:         options.RenderPass,
			Subpass:            0,
			BasePipelineIndex:  -1,
		},
	)
	if err != nil {
		return core1_0.Pipeline{}, err
	}

	pipeline := pipelines[0]
	c.pipelines = append(c.pipelines, pipeline)
	return pipeline, nil
}
