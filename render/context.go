package render

import (
	"log/slog"
	"unsafe"

	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

// MaxFramesInFlight is the size of the frame slot ring. It caps how many
// frames the CPU may record ahead of the GPU.
const MaxFramesInFlight = 2

var validationLayers = []string{"VK_LAYER_KHRONOS_validation"}
var deviceExtensions = []string{khr_swapchain.ExtensionName}

// Window is the part of the SDL window surface the context drives. The
// concrete window is created by Initialize and destroyed by Cleanup.
type Window interface {
	VulkanGetDrawableSize() (int32, int32)
	GetSize() (int32, int32)
	Destroy() error
}

// ContextOptions configures Initialize.
type ContextOptions struct {
	Title                  string
	Width                  int
	Height                 int
	EnableValidationLayers bool

	// PipelineCachePath seeds the pipeline cache from disk at startup and
	// persists it during Cleanup. Empty disables on-disk caching.
	PipelineCachePath string

	Logger *slog.Logger
}

// Context provides render interfaces based on the Vulkan API. It owns the
// device connection, the swapchain and every GPU resource created through
// it; created handles stay valid until Cleanup. All calls must come from a
// single thread.
type Context struct {
	logger *slog.Logger
	opts   ContextOptions

	window Window

	globalDriver   core1_0.GlobalDriver
	instanceDriver core1_0.CoreInstanceDriver
	deviceDriver   core1_0.CoreDeviceDriver

	debugDriver    ext_debug_utils.ExtensionDriver
	debugMessenger ext_debug_utils.DebugUtilsMessenger

	surfaceExtension khr_surface.ExtensionDriver
	surface          khr_surface.Surface
	surfaceCreated   bool

	physicalDevice core1_0.PhysicalDevice
	graphicsQueue  core1_0.Queue
	presentQueue   core1_0.Queue

	swapchainExtension   khr_swapchain.ExtensionDriver
	swapchain            khr_swapchain.Swapchain
	swapchainCreated     bool
	swapchainGeneration  uint64
	swapchainImages      []core1_0.Image
	swapchainImageFormat core1_0.Format
	swapchainExtent      core1_0.Extent2D
	swapchainImageViews  []core1_0.ImageView

	swapchainFramebuffers []core1_0.Framebuffer
	framebufferRenderPass core1_0.RenderPass
	framebuffersCreated   bool

	pipelineCache        core1_0.PipelineCache
	pipelineCacheCreated bool

	// Per-kind resource registries. Creation calls append here; Cleanup
	// destroys everything in reverse dependency order. Handles are never
	// freed individually.
	imageViews            []core1_0.ImageView
	shaderModules         []core1_0.ShaderModule
	renderPasses          []core1_0.RenderPass
	framebuffers          []core1_0.Framebuffer
	descriptorSetLayouts  []core1_0.DescriptorSetLayout
	pipelineLayouts       []core1_0.PipelineLayout
	pipelines             []core1_0.Pipeline
	commandPools          []core1_0.CommandPool
	commandBuffers        []core1_0.CommandBuffer
	vertexBuffers         []core1_0.Buffer
	vertexBufferMemories  []core1_0.DeviceMemory
	indexBuffers          []core1_0.Buffer
	indexBufferMemories   []core1_0.DeviceMemory
	uniformBuffers        []core1_0.Buffer
	uniformBufferMemories []core1_0.DeviceMemory
	uniformBufferMapped   []unsafe.Pointer
	textureImages         []core1_0.Image
	textureImageMemories  []core1_0.DeviceMemory
	samplers              []core1_0.Sampler
	descriptorPools       []core1_0.DescriptorPool
	descriptorSets        []core1_0.DescriptorSet

	// Frame slot ring (size MaxFramesInFlight) plus per-image present sync.
	imageAvailableSemaphores []core1_0.Semaphore
	renderFinishedSemaphores []core1_0.Semaphore
	inFlightFences           []core1_0.Fence
	imagesInFlight           []core1_0.Fence

	currentFrame       int
	currentImageIndex  int
	framebufferResized bool
}

// NewContext prepares a context. Initialize must be called before any other
// method.
func NewContext(options ContextOptions) *Context {
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.Title == "" {
		options.Title = "Vulkan Project Engine"
	}
	if options.Width == 0 {
		options.Width = 1600
	}
	if options.Height == 0 {
		options.Height = 1200
	}

	return &Context{
		logger: options.Logger,
		opts:   options,
	}
}

// Initialize opens a window and brings up the Vulkan stack: instance,
// surface, physical device selection, logical device with graphics and
// present queues, pipeline cache, the initial swapchain and the frame
// synchronization objects. Any failure is fatal; the caller must abort
// startup and may call Cleanup to release whatever was created.
func (c *Context) Initialize() error {
	window, err := c.initWindow()
	if err != nil {
		return err
	}

	err = c.createInstance(window)
	if err != nil {
		return err
	}

	err = c.setupDebugMessenger()
	if err != nil {
		return err
	}

	err = c.createSurface(window)
	if err != nil {
		return err
	}

	err = c.pickPhysicalDevice()
	if err != nil {
		return err
	}

	err = c.createLogicalDevice()
	if err != nil {
		return err
	}

	err = c.createPipelineCache()
	if err != nil {
		return err
	}

	err = c.createSwapchain()
	if err != nil {
		return err
	}

	err = c.createSwapchainImageViews()
	if err != nil {
		return err
	}

	err = c.createPresentSync()
	if err != nil {
		return err
	}

	return c.createSyncObjects()
}

func (c *Context) initWindow() (*sdl.Window, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, err
	}

	window, err := sdl.CreateWindow(c.opts.Title,
		sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		int32(c.opts.Width), int32(c.opts.Height),
		sdl.WINDOW_SHOWN|sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		return nil, err
	}
	c.window = window

	return window, nil
}

// Cleanup destroys every resource the context owns, in reverse dependency
// order, then tears down the device, instance and window. The device must be
// fully idle first (WaitIdle); calling Cleanup with work still in flight is
// undefined behavior.
func (c *Context) Cleanup() {
	if c.deviceDriver != nil {
		// Descriptor sets are returned to their pools when the pools are
		// destroyed.
		c.descriptorSets = nil

		for _, pool := range c.descriptorPools {
			c.deviceDriver.DestroyDescriptorPool(pool, nil)
		}
		c.descriptorPools = nil

		for _, layout := range c.descriptorSetLayouts {
			c.deviceDriver.DestroyDescriptorSetLayout(layout, nil)
		}
		c.descriptorSetLayouts = nil

		for _, pipeline := range c.pipelines {
			c.deviceDriver.DestroyPipeline(pipeline, nil)
		}
		c.pipelines = nil

		if c.pipelineCacheCreated {
			c.savePipelineCache()
			c.deviceDriver.DestroyPipelineCache(c.pipelineCache, nil)
			c.pipelineCacheCreated = false
		}

		for _, layout := range c.pipelineLayouts {
			c.deviceDriver.DestroyPipelineLayout(layout, nil)
		}
		c.pipelineLayouts = nil

		for _, framebuffer := range c.swapchainFramebuffers {
			c.deviceDriver.DestroyFramebuffer(framebuffer, nil)
		}
		c.swapchainFramebuffers = nil
		c.framebuffersCreated = false

		for _, framebuffer := range c.framebuffers {
			c.deviceDriver.DestroyFramebuffer(framebuffer, nil)
		}
		c.framebuffers = nil

		for _, renderPass := range c.renderPasses {
			c.deviceDriver.DestroyRenderPass(renderPass, nil)
		}
		c.renderPasses = nil

		for _, module := range c.shaderModules {
			c.deviceDriver.DestroyShaderModule(module, nil)
		}
		c.shaderModules = nil

		for _, view := range c.imageViews {
			c.deviceDriver.DestroyImageView(view, nil)
		}
		c.imageViews = nil

		for _, image := range c.textureImages {
			c.deviceDriver.DestroyImage(image, nil)
		}
		c.textureImages = nil

		for _, memory := range c.textureImageMemories {
			c.deviceDriver.FreeMemory(memory, nil)
		}
		c.textureImageMemories = nil

		for _, sampler := range c.samplers {
			c.deviceDriver.DestroySampler(sampler, nil)
		}
		c.samplers = nil

		for _, fence := range c.inFlightFences {
			c.deviceDriver.DestroyFence(fence, nil)
		}
		c.inFlightFences = nil
		c.imagesInFlight = nil

		for _, semaphore := range c.renderFinishedSemaphores {
			c.deviceDriver.DestroySemaphore(semaphore, nil)
		}
		c.renderFinishedSemaphores = nil

		for _, semaphore := range c.imageAvailableSemaphores {
			c.deviceDriver.DestroySemaphore(semaphore, nil)
		}
		c.imageAvailableSemaphores = nil

		if len(c.commandBuffers) > 0 {
			c.deviceDriver.FreeCommandBuffers(c.commandBuffers...)
			c.commandBuffers = nil
		}

		for _, pool := range c.commandPools {
			c.deviceDriver.DestroyCommandPool(pool, nil)
		}
		c.commandPools = nil

		for _, buffer := range c.uniformBuffers {
			c.deviceDriver.DestroyBuffer(buffer, nil)
		}
		c.uniformBuffers = nil

		for _, memory := range c.uniformBufferMemories {
			c.deviceDriver.UnmapMemory(memory)
			c.deviceDriver.FreeMemory(memory, nil)
		}
		c.uniformBufferMemories = nil
		c.uniformBufferMapped = nil

		for _, buffer := range c.indexBuffers {
			c.deviceDriver.DestroyBuffer(buffer, nil)
		}
		c.indexBuffers = nil

		for _, memory := range c.indexBufferMemories {
			c.deviceDriver.FreeMemory(memory, nil)
		}
		c.indexBufferMemories = nil

		for _, buffer := range c.vertexBuffers {
			c.deviceDriver.DestroyBuffer(buffer, nil)
		}
		c.vertexBuffers = nil

		for _, memory := range c.vertexBufferMemories {
			c.deviceDriver.FreeMemory(memory, nil)
		}
		c.vertexBufferMemories = nil

		for _, view := range c.swapchainImageViews {
			c.deviceDriver.DestroyImageView(view, nil)
		}
		c.swapchainImageViews = nil
	}

	if c.swapchainExtension != nil && c.swapchainCreated {
		c.swapchainExtension.DestroySwapchain(c.swapchain, nil)
		c.swapchain = khr_swapchain.Swapchain{}
		c.swapchainCreated = false
	}

	if c.surfaceExtension != nil && c.surfaceCreated {
		c.surfaceExtension.DestroySurface(c.surface, nil)
		c.surface = khr_surface.Surface{}
		c.surfaceCreated = false
	}

	if c.deviceDriver != nil {
		c.deviceDriver.DestroyDevice(nil)
		c.deviceDriver = nil
	}

	if c.debugDriver != nil && c.debugMessenger.Initialized() {
		c.debugDriver.DestroyDebugUtilsMessenger(c.debugMessenger, nil)
		c.debugMessenger = ext_debug_utils.DebugUtilsMessenger{}
	}

	if c.instanceDriver != nil {
		c.instanceDriver.DestroyInstance(nil)
		c.instanceDriver = nil
	}

	if c.window != nil {
		c.window.Destroy()
		c.window = nil
		sdl.Quit()
	}
}

// GetSwapchainImageFormat returns the pixel format of the swapchain images.
func (c *Context) GetSwapchainImageFormat() core1_0.Format {
	return c.swapchainImageFormat
}

// GetSwapchainExtent returns the current swapchain extent. It changes when
// the swapchain is recreated, so callers must not cache it across frames.
func (c *Context) GetSwapchainExtent() core1_0.Extent2D {
	return c.swapchainExtent
}

// GetSwapchainGeneration returns a counter incremented on every swapchain
// build.
func (c *Context) GetSwapchainGeneration() uint64 {
	return c.swapchainGeneration
}

// GetWindow returns the native window handle.
func (c *Context) GetWindow() Window {
	return c.window
}

// NotifyFramebufferResized marks the swapchain for recreation. The flag is
// consumed by the next EndFrame.
func (c *Context) NotifyFramebufferResized() {
	c.framebufferResized = true
}

// WaitIdle blocks until the device has finished all in-flight work.
func (c *Context) WaitIdle() error {
	_, err := c.deviceDriver.DeviceWaitIdle()
	return err
}
