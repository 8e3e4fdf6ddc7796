package render

import (
	"io"
	"log/slog"
	"time"
	"unsafe"

	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/core/v3/loader"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

// callTrace records driver calls in order so tests can assert on the driver
// work an operation performs.
type callTrace struct {
	calls []string
}

func (t *callTrace) record(call string) {
	t.calls = append(t.calls, call)
}

func (t *callTrace) count(call string) int {
	n := 0
	for _, c := range t.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (t *callTrace) reset() {
	t.calls = nil
}

type fakeWindow struct {
	width     int32
	height    int32
	destroyed bool
}

func (w *fakeWindow) VulkanGetDrawableSize() (int32, int32) {
	return w.width, w.height
}

func (w *fakeWindow) GetSize() (int32, int32) {
	return w.width, w.height
}

func (w *fakeWindow) Destroy() error {
	w.destroyed = true
	return nil
}

// fakeDeviceDriver overrides the device calls the tests exercise and records
// them in the shared trace. Everything else panics through the nil embedded
// interface, so a test reaching an unexpected driver call fails loudly.
type fakeDeviceDriver struct {
	core1_0.CoreDeviceDriver

	trace *callTrace

	memoryRequirements core1_0.MemoryRequirements
	mapped             unsafe.Pointer
	pipelineCacheData  []byte

	bufferCreateInfos      []core1_0.BufferCreateInfo
	allocateInfos          []core1_0.MemoryAllocateInfo
	fenceCreateInfos       []core1_0.FenceCreateInfo
	samplerCreateInfos     []core1_0.SamplerCreateInfo
	poolCreateInfos        []core1_0.CommandPoolCreateInfo
	commandBufferAllocs    []core1_0.CommandBufferAllocateInfo
	cacheCreateInfos       []core1_0.PipelineCacheCreateInfo
	framebufferCreateInfos []core1_0.FramebufferCreateInfo
	imageViewCreateInfos   []core1_0.ImageViewCreateInfo
	shaderModuleCode       [][]uint32
	renderPassCreateInfos  []core1_0.RenderPassCreateInfo
	pipelineCreateInfos    []core1_0.GraphicsPipelineCreateInfo
	pipelineCaches         []*core1_0.PipelineCache
	descriptorPoolInfos    []core1_0.DescriptorPoolCreateInfo
	descriptorSetInfos     []core1_0.DescriptorSetAllocateInfo
	submitInfos            []core1_0.SubmitInfo
}

func (d *fakeDeviceDriver) WaitForFences(waitForAll bool, timeout time.Duration, fences ...core1_0.Fence) (common.VkResult, error) {
	d.trace.record("WaitForFences")
	return core1_0.VKSuccess, nil
}

func (d *fakeDeviceDriver) ResetFences(fences ...core1_0.Fence) (common.VkResult, error) {
	d.trace.record("ResetFences")
	return core1_0.VKSuccess, nil
}

func (d *fakeDeviceDriver) DeviceWaitIdle() (common.VkResult, error) {
	d.trace.record("DeviceWaitIdle")
	return core1_0.VKSuccess, nil
}

func (d *fakeDeviceDriver) QueueWaitIdle(queue core1_0.Queue) (common.VkResult, error) {
	d.trace.record("QueueWaitIdle")
	return core1_0.VKSuccess, nil
}

func (d *fakeDeviceDriver) QueueSubmit(queue core1_0.Queue, fence *core1_0.Fence, submits ...core1_0.SubmitInfo) (common.VkResult, error) {
	d.trace.record("QueueSubmit")
	d.submitInfos = append(d.submitInfos, submits...)
	return core1_0.VKSuccess, nil
}

func (d *fakeDeviceDriver) CreateSemaphore(allocationCallbacks *loader.AllocationCallbacks, o core1_0.SemaphoreCreateInfo) (core1_0.Semaphore, common.VkResult, error) {
	d.trace.record("CreateSemaphore")
	return core1_0.Semaphore{}, core1_0.VKSuccess, nil
}

func (d *fakeDeviceDriver) CreateFence(allocationCallbacks *loader.AllocationCallbacks, o core1_0.FenceCreateInfo) (core1_0.Fence, common.VkResult, error) {
	d.trace.record("CreateFence")
	d.fenceCreateInfos = append(d.fenceCreateInfos, o)
	return core1_0.Fence{}, core1_0.VKSuccess, nil
}

func (d *fakeDeviceDriver) CreateImageView(allocationCallbacks *loader.AllocationCallbacks, o core1_0.ImageViewCreateInfo) (core1_0.ImageView, common.VkResult, error) {
	d.trace.record("CreateImageView")
	d.imageViewCreateInfos = append(d.imageViewCreateInfos, o)
	return core1_0.ImageView{}, core1_0.VKSuccess, nil
}

func (d *fakeDeviceDriver) CreateFramebuffer(allocationCallbacks *loader.AllocationCallbacks, o core1_0.FramebufferCreateInfo) (core1_0.Framebuffer, common.VkResult, error) {
	d.trace.record("CreateFramebuffer")
	d.framebufferCreateInfos = append(d.framebufferCreateInfos, o)
	return core1_0.Framebuffer{}, core1_0.VKSuccess, nil
}

func (d *fakeDeviceDriver) CreateBuffer(allocationCallbacks *loader.AllocationCallbacks, o core1_0.BufferCreateInfo) (core1_0.Buffer, common.VkResult, error) {
	d.trace.record("CreateBuffer")
	d.bufferCreateInfos = append(d.bufferCreateInfos, o)
	return core1_0.Buffer{}, core1_0.VKSuccess, nil
}

func (d *fakeDeviceDriver) GetBufferMemoryRequirements(buffer core1_0.Buffer) *core1_0.MemoryRequirements {
	d.trace.record("GetBufferMemoryRequirements")
	requirements := d.memoryRequirements
	return &requirements
}

func (d *fakeDeviceDriver) AllocateMemory(allocationCallbacks *loader.AllocationCallbacks, o core1_0.MemoryAllocateInfo) (core1_0.DeviceMemory, common.VkResult, error) {
	d.trace.record("AllocateMemory")
	d.allocateInfos = append(d.allocateInfos, o)
	return core1_0.DeviceMemory{}, core1_0.VKSuccess, nil
}

func (d *fakeDeviceDriver) BindBufferMemory(buffer core1_0.Buffer, memory core1_0.DeviceMemory, offset int) (common.VkResult, error) {
	d.trace.record("BindBufferMemory")
	return core1_0.VKSuccess, nil
}

func (d *fakeDeviceDriver) MapMemory(memory core1_0.DeviceMemory, offset int, size int, flags core1_0.MemoryMapFlags) (unsafe.Pointer, common.VkResult, error) {
	d.trace.record("MapMemory")
	return d.mapped, core1_0.VKSuccess, nil
}

func (d *fakeDeviceDriver) CreatePipelineCache(allocationCallbacks *loader.AllocationCallbacks, o core1_0.PipelineCacheCreateInfo) (core1_0.PipelineCache, common.VkResult, error) {
	d.trace.record("CreatePipelineCache")
	d.cacheCreateInfos = append(d.cacheCreateInfos, o)
	return core1_0.PipelineCache{}, core1_0.VKSuccess, nil
}

func (d *fakeDeviceDriver) GetPipelineCacheData(pipelineCache core1_0.PipelineCache) ([]byte, common.VkResult, error) {
	d.trace.record("GetPipelineCacheData")
	return d.pipelineCacheData, core1_0.VKSuccess, nil
}

func (d *fakeDeviceDriver) CreateSampler(allocationCallbacks *loader.AllocationCallbacks, o core1_0.SamplerCreateInfo) (core1_0.Sampler, common.VkResult, error) {
	d.trace.record("CreateSampler")
	d.samplerCreateInfos = append(d.samplerCreateInfos, o)
	return core1_0.Sampler{}, core1_0.VKSuccess, nil
}

func (d *fakeDeviceDriver) CreateCommandPool(allocationCallbacks *loader.AllocationCallbacks, o core1_0.CommandPoolCreateInfo) (core1_0.CommandPool, common.VkResult, error) {
	d.trace.record("CreateCommandPool")
	d.poolCreateInfos = append(d.poolCreateInfos, o)
	return core1_0.CommandPool{}, core1_0.VKSuccess, nil
}

func (d *fakeDeviceDriver) AllocateCommandBuffers(o core1_0.CommandBufferAllocateInfo) ([]core1_0.CommandBuffer, common.VkResult, error) {
	d.trace.record("AllocateCommandBuffers")
	d.commandBufferAllocs = append(d.commandBufferAllocs, o)
	buffers := make([]core1_0.CommandBuffer, o.CommandBufferCount)
	return buffers, core1_0.VKSuccess, nil
}

func (d *fakeDeviceDriver) CreateShaderModule(allocationCallbacks *loader.AllocationCallbacks, o core1_0.ShaderModuleCreateInfo) (core1_0.ShaderModule, common.VkResult, error) {
	d.trace.record("CreateShaderModule")
	d.shaderModuleCode = append(d.shaderModuleCode, o.Code)
	return core1_0.ShaderModule{}, core1_0.VKSuccess, nil
}

func (d *fakeDeviceDriver) CreateRenderPass(allocationCallbacks *loader.AllocationCallbacks, o core1_0.RenderPassCreateInfo) (core1_0.RenderPass, common.VkResult, error) {
	d.trace.record("CreateRenderPass")
	d.renderPassCreateInfos = append(d.renderPassCreateInfos, o)
	return core1_0.RenderPass{}, core1_0.VKSuccess, nil
}

func (d *fakeDeviceDriver) CreateDescriptorSetLayout(allocationCallbacks *loader.AllocationCallbacks, o core1_0.DescriptorSetLayoutCreateInfo) (core1_0.DescriptorSetLayout, common.VkResult, error) {
	d.trace.record("CreateDescriptorSetLayout")
	return core1_0.DescriptorSetLayout{}, core1_0.VKSuccess, nil
}

func (d *fakeDeviceDriver) CreatePipelineLayout(allocationCallbacks *loader.AllocationCallbacks, o core1_0.PipelineLayoutCreateInfo) (core1_0.PipelineLayout, common.VkResult, error) {
	d.trace.record("CreatePipelineLayout")
	return core1_0.PipelineLayout{}, core1_0.VKSuccess, nil
}

func (d *fakeDeviceDriver) CreateGraphicsPipelines(pipelineCache *core1_0.PipelineCache, allocationCallbacks *loader.AllocationCallbacks, o ...core1_0.GraphicsPipelineCreateInfo) ([]core1_0.Pipeline, common.VkResult, error) {
	d.trace.record("CreateGraphicsPipelines")
	d.pipelineCaches = append(d.pipelineCaches, pipelineCache)
	d.pipelineCreateInfos = append(d.pipelineCreateInfos, o...)
	return make([]core1_0.Pipeline, len(o)), core1_0.VKSuccess, nil
}

func (d *fakeDeviceDriver) CreateDescriptorPool(allocationCallbacks *loader.AllocationCallbacks, o core1_0.DescriptorPoolCreateInfo) (core1_0.DescriptorPool, common.VkResult, error) {
	d.trace.record("CreateDescriptorPool")
	d.descriptorPoolInfos = append(d.descriptorPoolInfos, o)
	return core1_0.DescriptorPool{}, core1_0.VKSuccess, nil
}

func (d *fakeDeviceDriver) AllocateDescriptorSets(o core1_0.DescriptorSetAllocateInfo) ([]core1_0.DescriptorSet, common.VkResult, error) {
	d.trace.record("AllocateDescriptorSets")
	d.descriptorSetInfos = append(d.descriptorSetInfos, o)
	return make([]core1_0.DescriptorSet, len(o.SetLayouts)), core1_0.VKSuccess, nil
}

type fakeInstanceDriver struct {
	core1_0.CoreInstanceDriver

	trace *callTrace

	properties       core1_0.PhysicalDeviceProperties
	memoryProperties core1_0.PhysicalDeviceMemoryProperties
	queueFamilies    []*core1_0.QueueFamilyProperties
}

func (d *fakeInstanceDriver) GetPhysicalDeviceProperties(device core1_0.PhysicalDevice) (*core1_0.PhysicalDeviceProperties, error) {
	d.trace.record("GetPhysicalDeviceProperties")
	properties := d.properties
	return &properties, nil
}

func (d *fakeInstanceDriver) GetPhysicalDeviceMemoryProperties(device core1_0.PhysicalDevice) *core1_0.PhysicalDeviceMemoryProperties {
	d.trace.record("GetPhysicalDeviceMemoryProperties")
	memoryProperties := d.memoryProperties
	return &memoryProperties
}

func (d *fakeInstanceDriver) GetPhysicalDeviceQueueFamilyProperties(device core1_0.PhysicalDevice) []*core1_0.QueueFamilyProperties {
	d.trace.record("GetPhysicalDeviceQueueFamilyProperties")
	return d.queueFamilies
}

type fakeSurfaceDriver struct {
	khr_surface.ExtensionDriver

	trace *callTrace

	capabilities khr_surface.SurfaceCapabilities
	formats      []khr_surface.SurfaceFormat
	presentModes []khr_surface.PresentMode

	// supportedFamilies scripts GetPhysicalDeviceSurfaceSupport per queue
	// family index. Empty means every family can present.
	supportedFamilies []bool
}

func (d *fakeSurfaceDriver) GetPhysicalDeviceSurfaceCapabilities(surface khr_surface.Surface, device core1_0.PhysicalDevice) (*khr_surface.SurfaceCapabilities, common.VkResult, error) {
	d.trace.record("GetPhysicalDeviceSurfaceCapabilities")
	capabilities := d.capabilities
	return &capabilities, core1_0.VKSuccess, nil
}

func (d *fakeSurfaceDriver) GetPhysicalDeviceSurfaceFormats(surface khr_surface.Surface, device core1_0.PhysicalDevice) ([]khr_surface.SurfaceFormat, common.VkResult, error) {
	d.trace.record("GetPhysicalDeviceSurfaceFormats")
	return d.formats, core1_0.VKSuccess, nil
}

func (d *fakeSurfaceDriver) GetPhysicalDeviceSurfacePresentModes(surface khr_surface.Surface, device core1_0.PhysicalDevice) ([]khr_surface.PresentMode, common.VkResult, error) {
	d.trace.record("GetPhysicalDeviceSurfacePresentModes")
	return d.presentModes, core1_0.VKSuccess, nil
}

func (d *fakeSurfaceDriver) GetPhysicalDeviceSurfaceSupport(surface khr_surface.Surface, device core1_0.PhysicalDevice, queueFamilyIndex int) (bool, common.VkResult, error) {
	d.trace.record("GetPhysicalDeviceSurfaceSupport")
	if len(d.supportedFamilies) == 0 {
		return true, core1_0.VKSuccess, nil
	}
	if queueFamilyIndex < len(d.supportedFamilies) {
		return d.supportedFamilies[queueFamilyIndex], core1_0.VKSuccess, nil
	}
	return false, core1_0.VKSuccess, nil
}

// acquireResult scripts one AcquireNextImage call.
type acquireResult struct {
	index int
	res   common.VkResult
}

type fakeSwapchainDriver struct {
	khr_swapchain.ExtensionDriver

	trace *callTrace

	imageCount int
	acquire    []acquireResult

	swapchainCreateInfos []khr_swapchain.SwapchainCreateInfo
	presentInfos         []khr_swapchain.PresentInfo
}

func (d *fakeSwapchainDriver) CreateSwapchain(allocationCallbacks *loader.AllocationCallbacks, o khr_swapchain.SwapchainCreateInfo) (khr_swapchain.Swapchain, common.VkResult, error) {
	d.trace.record("CreateSwapchain")
	d.swapchainCreateInfos = append(d.swapchainCreateInfos, o)
	return khr_swapchain.Swapchain{}, core1_0.VKSuccess, nil
}

func (d *fakeSwapchainDriver) GetSwapchainImages(swapchain khr_swapchain.Swapchain) ([]core1_0.Image, common.VkResult, error) {
	d.trace.record("GetSwapchainImages")
	return make([]core1_0.Image, d.imageCount), core1_0.VKSuccess, nil
}

func (d *fakeSwapchainDriver) AcquireNextImage(swapchain khr_swapchain.Swapchain, timeout time.Duration, semaphore *core1_0.Semaphore, fence *core1_0.Fence) (int, common.VkResult, error) {
	d.trace.record("AcquireNextImage")
	if len(d.acquire) == 0 {
		return 0, core1_0.VKSuccess, nil
	}

	next := d.acquire[0]
	d.acquire = d.acquire[1:]
	return next.index, next.res, nil
}

func (d *fakeSwapchainDriver) QueuePresent(queue core1_0.Queue, o khr_swapchain.PresentInfo) (common.VkResult, error) {
	d.trace.record("QueuePresent")
	d.presentInfos = append(d.presentInfos, o)
	return core1_0.VKSuccess, nil
}

// testDrivers bundles the fakes behind a context under test.
type testDrivers struct {
	trace     *callTrace
	window    *fakeWindow
	device    *fakeDeviceDriver
	instance  *fakeInstanceDriver
	surface   *fakeSurfaceDriver
	swapchain *fakeSwapchainDriver
}

// newTestContext builds a context wired to fake drivers: one graphics queue
// family that can present, a surface with a fixed 800x600 extent and three
// swapchain images, and host visible coherent memory at type index 0.
func newTestContext() (*Context, *testDrivers) {
	trace := &callTrace{}

	drivers := &testDrivers{
		trace:  trace,
		window: &fakeWindow{width: 800, height: 600},
		device: &fakeDeviceDriver{
			trace: trace,
			memoryRequirements: core1_0.MemoryRequirements{
				Size:           1024,
				MemoryTypeBits: 0b1,
			},
		},
		instance: &fakeInstanceDriver{
			trace: trace,
			memoryProperties: core1_0.PhysicalDeviceMemoryProperties{
				MemoryTypes: []core1_0.MemoryType{
					{PropertyFlags: core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent},
				},
			},
			queueFamilies: []*core1_0.QueueFamilyProperties{
				{QueueFlags: core1_0.QueueGraphics},
			},
		},
		surface: &fakeSurfaceDriver{
			trace: trace,
			capabilities: khr_surface.SurfaceCapabilities{
				MinImageCount: 2,
				CurrentExtent: core1_0.Extent2D{Width: 800, Height: 600},
			},
			formats: []khr_surface.SurfaceFormat{
				{Format: core1_0.FormatB8G8R8A8SRGB, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
			},
			presentModes: []khr_surface.PresentMode{khr_surface.PresentModeFIFO},
		},
		swapchain: &fakeSwapchainDriver{
			trace:      trace,
			imageCount: 3,
		},
	}

	c := &Context{
		logger:             slog.New(slog.NewTextHandler(io.Discard, nil)),
		window:             drivers.window,
		instanceDriver:     drivers.instance,
		deviceDriver:       drivers.device,
		surfaceExtension:   drivers.surface,
		swapchainExtension: drivers.swapchain,
	}
	return c, drivers
}

// prepareFrameSync fills the sync registries the way Initialize would for a
// three image swapchain, with zero valued handles.
func prepareFrameSync(c *Context) {
	c.imageAvailableSemaphores = make([]core1_0.Semaphore, MaxFramesInFlight)
	c.inFlightFences = make([]core1_0.Fence, MaxFramesInFlight)
	c.renderFinishedSemaphores = make([]core1_0.Semaphore, 3)
	c.imagesInFlight = make([]core1_0.Fence, 3)
}
