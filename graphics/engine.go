package graphics

import (
	"log/slog"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/Andrcraft9/Vulkan-Project/render"
)

// EngineOptions configures NewEngine. Zero values fall back to the rendering
// context defaults.
type EngineOptions struct {
	Title                  string
	Width                  int
	Height                 int
	EnableValidationLayers bool
	PipelineCachePath      string
	Logger                 *slog.Logger
}

// Engine is a component based renderer on top of render.Context. Components
// describe what to draw; Add methods upload their GPU resources immediately
// and hand back dense ids assigned in registration order.
//
// Nodes drawn in the same frame must not share a program: a program owns one
// uniform buffer per frame slot, so the transforms of nodes sharing it would
// overwrite each other. Give each independently placed node its own program.
type Engine struct {
	logger  *slog.Logger
	context *render.Context

	components components
	resources  resources

	renderPass     core1_0.RenderPass
	commandPool    core1_0.CommandPool
	commandBuffers [render.MaxFramesInFlight]core1_0.CommandBuffer
	bufferID       int
}

// NewEngine creates an engine. Call Initialize before adding components.
func NewEngine(options EngineOptions) *Engine {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	context := render.NewContext(render.ContextOptions{
		Title:                  options.Title,
		Width:                  options.Width,
		Height:                 options.Height,
		EnableValidationLayers: options.EnableValidationLayers,
		PipelineCachePath:      options.PipelineCachePath,
		Logger:                 options.Logger,
	})

	return &Engine{
		logger:     logger,
		context:    context,
		components: newComponents(),
		resources:  newResources(),
	}
}

// Initialize brings up the rendering context, the render pass with its
// swapchain framebuffers and one command buffer per frame slot.
func (e *Engine) Initialize() error {
	e.logger.Info("initializing the engine")
	err := e.context.Initialize()
	if err != nil {
		return err
	}

	e.logger.Info("creating a render pass")
	renderPass, err := e.context.CreateRenderPass(render.RenderPassOptions{
		Format: e.context.GetSwapchainImageFormat(),
	})
	if err != nil {
		return err
	}
	e.renderPass = renderPass

	err = e.context.CreateSwapchainFramebuffers(renderPass)
	if err != nil {
		return err
	}

	e.logger.Info("creating a command pool")
	commandPool, err := e.context.CreateCommandPool(render.CommandPoolOptions{})
	if err != nil {
		return err
	}
	e.commandPool = commandPool

	e.logger.Info("creating command buffers")
	for i := 0; i < render.MaxFramesInFlight; i++ {
		commandBuffer, err := e.context.CreateCommandBuffer(render.CommandBufferOptions{
			CommandPool: commandPool,
		})
		if err != nil {
			return err
		}
		e.commandBuffers[i] = commandBuffer
	}

	e.bufferID = 0
	return nil
}

// Deinitialize waits for the device to go idle and releases everything the
// engine created.
func (e *Engine) Deinitialize() {
	e.logger.Info("deinitializing the engine")
	err := e.context.WaitIdle()
	if err != nil {
		e.logger.Warn("failed to wait for the device before cleanup", "error", err)
	}
	e.context.Cleanup()
}

// AddVertexShader loads SPIR-V bytecode from the shader path and compiles it
// into a shader module.
func (e *Engine) AddVertexShader(shader VertexShader) (VertexShaderID, error) {
	e.logger.Info("loading a vertex shader", "path", shader.ShaderPath)

	code, err := os.ReadFile(shader.ShaderPath)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to read the vertex shader %s", shader.ShaderPath)
	}

	module, err := e.context.CreateShaderModule(code)
	if err != nil {
		return 0, err
	}

	id := VertexShaderID(len(e.components.vertexShaders))
	e.components.vertexShaders[id] = shader
	e.resources.vertexShaders[id] = module
	return id, nil
}

// AddFragmentShader loads SPIR-V bytecode from the shader path and compiles
// it into a shader module.
func (e *Engine) AddFragmentShader(shader FragmentShader) (FragmentShaderID, error) {
	e.logger.Info("loading a fragment shader", "path", shader.ShaderPath)

	code, err := os.ReadFile(shader.ShaderPath)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to read the fragment shader %s", shader.ShaderPath)
	}

	module, err := e.context.CreateShaderModule(code)
	if err != nil {
		return 0, err
	}

	id := FragmentShaderID(len(e.components.fragmentShaders))
	e.components.fragmentShaders[id] = shader
	e.resources.fragmentShaders[id] = module
	return id, nil
}

// AddProgram builds the graphics pipeline for the shader pair together with
// its descriptor sets and one uniform buffer per frame slot. The descriptor
// layout is fixed: a uniform buffer at binding 0 for the vertex stage and a
// combined image sampler at binding 1 for the fragment stage.
func (e *Engine) AddProgram(program Program) (ProgramID, error) {
	e.logger.Info("loading a program")

	if _, ok := e.components.vertexShaders[program.VertexShader]; !ok {
		return 0, errors.New("failed to find the vertex shader!")
	}
	if _, ok := e.components.fragmentShaders[program.FragmentShader]; !ok {
		return 0, errors.New("failed to find the fragment shader!")
	}

	e.logger.Info("creating a descriptor set layout")
	descriptorSetLayout, err := e.context.CreateDescriptorSetLayout(render.DescriptorSetLayoutOptions{
		Bindings: []render.DescriptorSetLayoutBindingOptions{
			{Binding: 0, Type: core1_0.DescriptorTypeUniformBuffer, StageFlags: core1_0.StageVertex},
			{Binding: 1, Type: core1_0.DescriptorTypeCombinedImageSampler, StageFlags: core1_0.StageFragment},
		},
	})
	if err != nil {
		return 0, err
	}

	e.logger.Info("creating a pipeline layout")
	pipelineLayout, err := e.context.CreatePipelineLayout(render.PipelineLayoutOptions{
		DescriptorSetLayout: descriptorSetLayout,
	})
	if err != nil {
		return 0, err
	}

	e.logger.Info("creating a graphics pipeline")
	pipeline, err := e.context.CreateGraphicsPipeline(render.GraphicsPipelineOptions{
		VertexShader:   e.resources.vertexShaders[program.VertexShader],
		FragmentShader: e.resources.fragmentShaders[program.FragmentShader],
		PipelineLayout: pipelineLayout,
		RenderPass:     e.renderPass,
		Topology:       program.Topology,
		PolygonMode:    program.PolygonMode,
	})
	if err != nil {
		return 0, err
	}

	e.logger.Info("creating a descriptor pool")
	descriptorPool, err := e.context.CreateDescriptorPool(render.DescriptorPoolOptions{
		PoolSizes: []render.DescriptorPoolSizeOptions{
			{Type: core1_0.DescriptorTypeUniformBuffer, DescriptorCount: render.MaxFramesInFlight},
			{Type: core1_0.DescriptorTypeCombinedImageSampler, DescriptorCount: render.MaxFramesInFlight},
		},
		MaxSets: render.MaxFramesInFlight,
	})
	if err != nil {
		return 0, err
	}

	var descriptorSets [render.MaxFramesInFlight]core1_0.DescriptorSet
	for i := 0; i < render.MaxFramesInFlight; i++ {
		e.logger.Info("creating a descriptor set")
		descriptorSet, err := e.context.CreateDescriptorSet(render.DescriptorSetOptions{
			DescriptorPool:      descriptorPool,
			DescriptorSetLayout: descriptorSetLayout,
		})
		if err != nil {
			return 0, err
		}
		descriptorSets[i] = descriptorSet
	}

	var uniformBuffers [render.MaxFramesInFlight]render.UniformBuffer
	for i := 0; i < render.MaxFramesInFlight; i++ {
		e.logger.Info("creating a uniform buffer")
		uniformBuffer, err := e.context.CreateUniformBuffer()
		if err != nil {
			return 0, err
		}
		uniformBuffers[i] = uniformBuffer
	}

	id := ProgramID(len(e.components.programs))
	e.components.programs[id] = program
	e.resources.programs[id] = programRes{
		descriptorSetLayout: descriptorSetLayout,
		pipelineLayout:      pipelineLayout,
		pipeline:            pipeline,
		descriptorPool:      descriptorPool,
		descriptorSets:      descriptorSets,
		uniformBuffers:      uniformBuffers,
	}
	return id, nil
}

// AddMesh uploads the geometry into device local vertex and index buffers.
func (e *Engine) AddMesh(mesh Mesh) (MeshID, error) {
	e.logger.Info("loading a mesh")

	e.logger.Info("creating a vertex buffer")
	vertexBuffer, err := e.context.CreateVertexBuffer(render.VertexBufferOptions{
		CommandPool: e.commandPool,
		Vertices:    mesh.Vertices,
	})
	if err != nil {
		return 0, err
	}

	e.logger.Info("creating an index buffer")
	indexBuffer, err := e.context.CreateIndexBuffer(render.IndexBufferOptions{
		CommandPool: e.commandPool,
		Indices:     mesh.Indices,
	})
	if err != nil {
		return 0, err
	}

	id := MeshID(len(e.components.meshes))
	e.components.meshes[id] = mesh
	e.resources.meshes[id] = meshRes{vertexBuffer: vertexBuffer, indexBuffer: indexBuffer}
	return id, nil
}

// AddTexture uploads the image into a device local sampled image and creates
// its view and sampler.
func (e *Engine) AddTexture(texture Texture) (TextureID, error) {
	e.logger.Info("loading a texture")

	if texture.Image == nil {
		return 0, errors.New("failed to load the texture: no image data!")
	}

	format, err := render.TextureImageFormat(texture.Image.Channels)
	if err != nil {
		return 0, err
	}

	e.logger.Info("creating a texture image")
	image, err := e.context.CreateTextureImage(render.TextureImageOptions{
		CommandPool: e.commandPool,
		ImageData:   texture.Image,
	})
	if err != nil {
		return 0, err
	}

	e.logger.Info("creating a texture image view")
	imageView, err := e.context.CreateImageView(render.ImageViewOptions{
		Image:  image,
		Format: format,
	})
	if err != nil {
		return 0, err
	}

	e.logger.Info("creating a texture sampler")
	sampler, err := e.context.CreateTextureSampler(render.DefaultTextureSamplerOptions())
	if err != nil {
		return 0, err
	}

	id := TextureID(len(e.components.textures))
	e.components.textures[id] = texture
	e.resources.textures[id] = textureRes{image: image, imageView: imageView, sampler: sampler}
	return id, nil
}

// AddMaterial registers a material. The texture must already be registered.
func (e *Engine) AddMaterial(material Material) (MaterialID, error) {
	e.logger.Info("loading a material")

	if _, ok := e.components.textures[material.Texture]; !ok {
		return 0, errors.New("failed to find the texture!")
	}

	id := MaterialID(len(e.components.materials))
	e.components.materials[id] = material
	return id, nil
}

// AddSurface registers a drawable and points the program's descriptor sets at
// the program's uniform buffers and the material's texture.
func (e *Engine) AddSurface(surface Surface) (SurfaceID, error) {
	e.logger.Info("loading a surface")

	if _, ok := e.components.programs[surface.Program]; !ok {
		return 0, errors.New("failed to find the program!")
	}
	if _, ok := e.components.meshes[surface.Mesh]; !ok {
		return 0, errors.New("failed to find the mesh!")
	}
	material, ok := e.components.materials[surface.Material]
	if !ok {
		return 0, errors.New("failed to find the material!")
	}

	program := e.resources.programs[surface.Program]
	texture := e.resources.textures[material.Texture]
	for i := 0; i < render.MaxFramesInFlight; i++ {
		e.logger.Info("updating a descriptor set")
		err := e.context.UpdateDescriptorSet(render.UpdateDescriptorSetOptions{
			DescriptorSet: program.descriptorSets[i],
			UniformBuffers: []render.DescriptorUniformBufferInfo{
				{Buffer: program.uniformBuffers[i].Buffer, Binding: 0},
			},
			Images: []render.DescriptorImageInfo{
				{ImageView: texture.imageView, Sampler: texture.sampler, Binding: 1},
			},
		})
		if err != nil {
			return 0, err
		}
	}

	id := SurfaceID(len(e.components.surfaces))
	e.components.surfaces[id] = surface
	return id, nil
}

// AddNode registers a node. The surface must already be registered.
func (e *Engine) AddNode(node Node) (NodeID, error) {
	e.logger.Info("loading a node")

	if _, ok := e.components.surfaces[node.Surface]; !ok {
		return 0, errors.New("failed to find the surface!")
	}

	id := NodeID(len(e.components.nodes))
	e.components.nodes[id] = node
	return id, nil
}

// AddCamera registers a camera.
func (e *Engine) AddCamera(camera Camera) (CameraID, error) {
	e.logger.Info("loading a camera")

	id := CameraID(len(e.components.cameras))
	e.components.cameras[id] = camera
	return id, nil
}

// AddScene registers a scene. The camera and every node must already be
// registered.
func (e *Engine) AddScene(scene Scene) (SceneID, error) {
	e.logger.Info("loading a scene")

	if _, ok := e.components.cameras[scene.Camera]; !ok {
		return 0, errors.New("failed to find the camera!")
	}

	for _, nodeID := range scene.Nodes {
		if _, ok := e.components.nodes[nodeID]; !ok {
			return 0, errors.New("failed to find the node!")
		}
	}

	id := SceneID(len(e.components.scenes))
	e.components.scenes[id] = scene
	return id, nil
}

// UpdateNodeTransform replaces the model transform of a node.
func (e *Engine) UpdateNodeTransform(nodeID NodeID, transform mgl32.Mat4) error {
	node, ok := e.components.nodes[nodeID]
	if !ok {
		return errors.New("failed to find the node!")
	}

	node.Transform = transform
	e.components.nodes[nodeID] = node
	return nil
}

// UpdateCameraTransform replaces the view transform of a camera.
func (e *Engine) UpdateCameraTransform(cameraID CameraID, transform mgl32.Mat4) error {
	camera, ok := e.components.cameras[cameraID]
	if !ok {
		return errors.New("failed to find the camera!")
	}

	camera.Transform = transform
	e.components.cameras[cameraID] = camera
	return nil
}

// UpdateCameraProjection replaces the projection of a camera.
func (e *Engine) UpdateCameraProjection(cameraID CameraID, projection mgl32.Mat4) error {
	camera, ok := e.components.cameras[cameraID]
	if !ok {
		return errors.New("failed to find the camera!")
	}

	camera.Projection = projection
	e.components.cameras[cameraID] = camera
	return nil
}

// Render draws every scene into the next swapchain image and presents it.
// Scenes are drawn in id order into one render pass on the current frame's
// command buffer; the clear color of the first scene wins. Before recording,
// every node writes its transform together with its scene's camera into the
// current frame slot of its program's uniform buffer.
func (e *Engine) Render() error {
	_, err := e.context.BeginFrame()
	if err != nil {
		return err
	}

	clearColor := core1_0.ClearValueFloat{0, 0, 0, 1}
	var draws []render.Draw
	for sceneID := SceneID(0); sceneID < SceneID(len(e.components.scenes)); sceneID++ {
		scene := e.components.scenes[sceneID]
		if sceneID == 0 {
			clearColor = scene.ClearColor
		}

		camera, ok := e.components.cameras[scene.Camera]
		if !ok {
			return errors.New("failed to find the camera!")
		}

		for _, nodeID := range scene.Nodes {
			node, ok := e.components.nodes[nodeID]
			if !ok {
				return errors.New("failed to find the node!")
			}
			surface, ok := e.components.surfaces[node.Surface]
			if !ok {
				return errors.New("failed to find the surface!")
			}
			mesh, ok := e.components.meshes[surface.Mesh]
			if !ok {
				return errors.New("failed to find the mesh!")
			}
			program, ok := e.resources.programs[surface.Program]
			if !ok {
				return errors.New("failed to find the program!")
			}
			meshRes := e.resources.meshes[surface.Mesh]

			err = e.context.UpdateUniformBuffer(render.UpdateUniformBufferOptions{
				UniformBuffer: program.uniformBuffers[e.bufferID],
				Data: render.UniformBufferObject{
					Model: node.Transform,
					View:  camera.Transform,
					Proj:  camera.Projection,
				},
			})
			if err != nil {
				return err
			}

			draws = append(draws, render.Draw{
				Pipeline:       program.pipeline,
				PipelineLayout: program.pipelineLayout,
				DescriptorSet:  program.descriptorSets[e.bufferID],
				VertexBuffer:   meshRes.vertexBuffer,
				IndexBuffer:    meshRes.indexBuffer,
				IndexCount:     len(mesh.Indices),
			})
		}
	}

	commandBuffer := e.commandBuffers[e.bufferID]
	err = e.context.RecordCommandBuffer(render.RecordCommandBufferOptions{
		CommandBuffer: commandBuffer,
		RenderPass:    e.renderPass,
		ClearColor:    clearColor,
		Draws:         draws,
	})
	if err != nil {
		return err
	}

	err = e.context.EndFrame(render.EndFrameOptions{CommandBuffer: commandBuffer})
	if err != nil {
		return err
	}

	e.bufferID = (e.bufferID + 1) % render.MaxFramesInFlight
	return nil
}

// Window returns the window the engine renders to.
func (e *Engine) Window() render.Window {
	return e.context.GetWindow()
}

// Extent returns the current swapchain extent.
func (e *Engine) Extent() core1_0.Extent2D {
	return e.context.GetSwapchainExtent()
}

// NotifyFramebufferResized tells the engine the window size changed. The
// swapchain is recreated on the next frame boundary.
func (e *Engine) NotifyFramebufferResized() {
	e.context.NotifyFramebufferResized()
}
