package graphics

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/Andrcraft9/Vulkan-Project/render"
)

// Component ids. Ids are dense and assigned in registration order; components
// are never removed.
type (
	VertexShaderID   uint32
	FragmentShaderID uint32
	ProgramID        uint32
	MeshID           uint32
	TextureID        uint32
	MaterialID       uint32
	SurfaceID        uint32
	NodeID           uint32
	CameraID         uint32
	SceneID          uint32
)

// VertexShader is SPIR-V vertex shader bytecode on disk.
type VertexShader struct {
	ShaderPath string
}

// FragmentShader is SPIR-V fragment shader bytecode on disk.
type FragmentShader struct {
	ShaderPath string
}

// Program pairs shaders with the fixed function state that completes a
// graphics pipeline.
type Program struct {
	VertexShader   VertexShaderID
	FragmentShader FragmentShaderID
	Topology       core1_0.PrimitiveTopology
	PolygonMode    core1_0.PolygonMode
}

// Mesh is indexed triangle geometry.
type Mesh struct {
	Vertices []render.Vertex
	Indices  []uint16
}

// Texture is decoded image data to sample in fragment shaders.
type Texture struct {
	Image *render.ImageData
}

// Material selects the texture a surface is drawn with.
type Material struct {
	Texture TextureID
}

// Surface is a drawable: a mesh rendered by a program with a material.
type Surface struct {
	Program  ProgramID
	Mesh     MeshID
	Material MaterialID
}

// Node places a surface in the world.
type Node struct {
	Transform mgl32.Mat4
	Surface   SurfaceID
}

// Camera holds the view and projection transforms applied to every node of a
// scene.
type Camera struct {
	Transform  mgl32.Mat4
	Projection mgl32.Mat4
}

// Scene is an ordered list of nodes drawn with one camera.
type Scene struct {
	Nodes      []NodeID
	Camera     CameraID
	ClearColor core1_0.ClearValueFloat
}

type components struct {
	vertexShaders   map[VertexShaderID]VertexShader
	fragmentShaders map[FragmentShaderID]FragmentShader
	programs        map[ProgramID]Program
	meshes          map[MeshID]Mesh
	textures        map[TextureID]Texture
	materials       map[MaterialID]Material
	surfaces        map[SurfaceID]Surface
	nodes           map[NodeID]Node
	cameras         map[CameraID]Camera
	scenes          map[SceneID]Scene
}

func newComponents() components {
	return components{
		vertexShaders:   make(map[VertexShaderID]VertexShader),
		fragmentShaders: make(map[FragmentShaderID]FragmentShader),
		programs:        make(map[ProgramID]Program),
		meshes:          make(map[MeshID]Mesh),
		textures:        make(map[TextureID]Texture),
		materials:       make(map[MaterialID]Material),
		surfaces:        make(map[SurfaceID]Surface),
		nodes:           make(map[NodeID]Node),
		cameras:         make(map[CameraID]Camera),
		scenes:          make(map[SceneID]Scene),
	}
}

// programRes is the GPU side of a program: the pipeline bundle plus one
// descriptor set and uniform buffer per frame slot.
type programRes struct {
	descriptorSetLayout core1_0.DescriptorSetLayout
	pipelineLayout      core1_0.PipelineLayout
	pipeline            core1_0.Pipeline
	descriptorPool      core1_0.DescriptorPool
	descriptorSets      [render.MaxFramesInFlight]core1_0.DescriptorSet
	uniformBuffers      [render.MaxFramesInFlight]render.UniformBuffer
}

type meshRes struct {
	vertexBuffer core1_0.Buffer
	indexBuffer  core1_0.Buffer
}

type textureRes struct {
	image     core1_0.Image
	imageView core1_0.ImageView
	sampler   core1_0.Sampler
}

type resources struct {
	vertexShaders   map[VertexShaderID]core1_0.ShaderModule
	fragmentShaders map[FragmentShaderID]core1_0.ShaderModule
	programs        map[ProgramID]programRes
	meshes          map[MeshID]meshRes
	textures        map[TextureID]textureRes
}

func newResources() resources {
	return resources{
		vertexShaders:   make(map[VertexShaderID]core1_0.ShaderModule),
		fragmentShaders: make(map[FragmentShaderID]core1_0.ShaderModule),
		programs:        make(map[ProgramID]programRes),
		meshes:          make(map[MeshID]meshRes),
		textures:        make(map[TextureID]textureRes),
	}
}
