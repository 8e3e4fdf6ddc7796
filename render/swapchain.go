package render

import (
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

// SwapchainSupportDetails describes what the surface can do on a given
// physical device.
type SwapchainSupportDetails struct {
	Capabilities *khr_surface.SurfaceCapabilities
	Formats      []khr_surface.SurfaceFormat
	PresentModes []khr_surface.PresentMode
}

// ImageViewOptions configures CreateImageView.
type ImageViewOptions struct {
	Image  core1_0.Image
	Format core1_0.Format
}

// FramebufferOptions configures CreateFramebuffer.
type FramebufferOptions struct {
	RenderPass      core1_0.RenderPass
	ImageAttachment core1_0.ImageView
	Extent          core1_0.Extent2D
}

func (c *Context) querySwapchainSupport(device core1_0.PhysicalDevice) (SwapchainSupportDetails, error) {
	var details SwapchainSupportDetails
	var err error

	details.Capabilities, _, err = c.surfaceExtension.GetPhysicalDeviceSurfaceCapabilities(c.surface, device)
	if err != nil {
		return details, err
	}

	details.Formats, _, err = c.surfaceExtension.GetPhysicalDeviceSurfaceFormats(c.surface, device)
	if err != nil {
		return details, err
	}

	details.PresentModes, _, err = c.surfaceExtension.GetPhysicalDeviceSurfacePresentModes(c.surface, device)
	return details, err
}

func chooseSwapchainSurfaceFormat(availableFormats []khr_surface.SurfaceFormat) khr_surface.SurfaceFormat {
	for _, format := range availableFormats {
		srgb := format.Format == core1_0.FormatB8G8R8A8SRGB || format.Format == core1_0.FormatR8G8B8A8SRGB
		if srgb && format.ColorSpace == khr_surface.ColorSpaceSRGBNonlinear {
			return format
		}
	}

	return availableFormats[0]
}

func chooseSwapchainPresentMode(availablePresentModes []khr_surface.PresentMode) khr_surface.PresentMode {
	for _, presentMode := range availablePresentModes {
		if presentMode == khr_surface.PresentModeMailbox {
			return presentMode
		}
	}

	return khr_surface.PresentModeFIFO
}

func chooseSwapchainExtent(capabilities *khr_surface.SurfaceCapabilities, drawableWidth, drawableHeight int) core1_0.Extent2D {
	if capabilities.CurrentExtent.Width != -1 {
		return capabilities.CurrentExtent
	}

	width := drawableWidth
	height := drawableHeight

	if width < capabilities.MinImageExtent.Width {
		width = capabilities.MinImageExtent.Width
	}
	if width > capabilities.MaxImageExtent.Width {
		width = capabilities.MaxImageExtent.Width
	}
	if height < capabilities.MinImageExtent.Height {
		height = capabilities.MinImageExtent.Height
	}
	if height > capabilities.MaxImageExtent.Height {
		height = capabilities.MaxImageExtent.Height
	}

	return core1_0.Extent2D{Width: width, Height: height}
}

func chooseSwapchainImageCount(capabilities *khr_surface.SurfaceCapabilities) int {
	imageCount := capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 && capabilities.MaxImageCount < imageCount {
		imageCount = capabilities.MaxImageCount
	}
	return imageCount
}

func (c *Context) createSwapchain() error {
	if c.swapchainExtension == nil {
		c.swapchainExtension = khr_swapchain.CreateExtensionDriverFromCoreDriver(c.deviceDriver)
	}

	swapchainSupport, err := c.querySwapchainSupport(c.physicalDevice)
	if err != nil {
		return err
	}

	surfaceFormat := chooseSwapchainSurfaceFormat(swapchainSupport.Formats)
	presentMode := chooseSwapchainPresentMode(swapchainSupport.PresentModes)

	drawableWidth, drawableHeight := c.window.VulkanGetDrawableSize()
	extent := chooseSwapchainExtent(swapchainSupport.Capabilities, int(drawableWidth), int(drawableHeight))

	imageCount := chooseSwapchainImageCount(swapchainSupport.Capabilities)

	sharingMode := core1_0.SharingModeExclusive
	var queueFamilyIndices []int

	indices, err := c.findQueueFamilies(c.physicalDevice)
	if err != nil {
		return err
	}

	if *indices.GraphicsFamily != *indices.PresentFamily {
		sharingMode = core1_0.SharingModeConcurrent
		queueFamilyIndices = append(queueFamilyIndices, *indices.GraphicsFamily, *indices.PresentFamily)
	}

	swapchain, _, err := c.swapchainExtension.CreateSwapchain(nil, khr_swapchain.SwapchainCreateInfo{
		Surface: c.surface,

		MinImageCount:    imageCount,
		ImageFormat:      surfaceFormat.Format,
		ImageColorSpace:  surfaceFormat.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       core1_0.ImageUsageColorAttachment,

		ImageSharingMode:   sharingMode,
		QueueFamilyIndices: queueFamilyIndices,

		PreTransform:   swapchainSupport.Capabilities.CurrentTransform,
		CompositeAlpha: khr_surface.CompositeAlphaOpaque,
		PresentMode:    presentMode,
		Clipped:        true,
	})
	if err != nil {
		return err
	}

	c.swapchain = swapchain
	c.swapchainCreated = true
	c.swapchainExtent = extent
	c.swapchainImageFormat = surfaceFormat.Format
	c.swapchainGeneration++

	c.logger.Debug("swapchain created",
		"width", extent.Width, "height", extent.Height,
		"imageCount", imageCount, "generation", c.swapchainGeneration)

	return nil
}

func (c *Context) createSwapchainImageViews() error {
	images, _, err := c.swapchainExtension.GetSwapchainImages(c.swapchain)
	if err != nil {
		return err
	}
	c.swapchainImages = images

	var imageViews []core1_0.ImageView
	for _, image := range images {
		view, err := c.createImageView(image, c.swapchainImageFormat)
		if err != nil {
			return err
		}

		imageViews = append(imageViews, view)
	}
	c.swapchainImageViews = imageViews

	return nil
}

// createPresentSync builds one render finished semaphore per swapchain image.
// The presentation engine may still be reading an image after its frame slot
// has been reused, so present synchronization must follow the image, not the
// slot. Rebuilt together with the swapchain since the image count can change.
func (c *Context) createPresentSync() error {
	for i := 0; i < len(c.swapchainImages); i++ {
		semaphore, _, err := c.deviceDriver.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
		if err != nil {
			return err
		}

		c.renderFinishedSemaphores = append(c.renderFinishedSemaphores, semaphore)
		c.imagesInFlight = append(c.imagesInFlight, core1_0.Fence{})
	}

	return nil
}

// CreateSwapchainFramebuffers builds one framebuffer per swapchain image view
// for the given render pass. The render pass is remembered so the
// framebuffers can be rebuilt whenever the swapchain is recreated.
func (c *Context) CreateSwapchainFramebuffers(renderPass core1_0.RenderPass) error {
	err := c.createSwapchainFramebuffers(renderPass)
	if err != nil {
		return err
	}

	c.framebufferRenderPass = renderPass
	c.framebuffersCreated = true
	return nil
}

func (c *Context) createSwapchainFramebuffers(renderPass core1_0.RenderPass) error {
	for _, imageView := range c.swapchainImageViews {
		framebuffer, _, err := c.deviceDriver.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
			RenderPass:  renderPass,
			Layers:      1,
			Attachments: []core1_0.ImageView{imageView},
			Width:       c.swapchainExtent.Width,
			Height:      c.swapchainExtent.Height,
		})
		if err != nil {
			return err
		}

		c.swapchainFramebuffers = append(c.swapchainFramebuffers, framebuffer)
	}

	return nil
}

// CreateFramebuffer creates a framebuffer with a single color attachment.
func (c *Context) CreateFramebuffer(options FramebufferOptions) (core1_0.Framebuffer, error) {
	framebuffer, _, err := c.deviceDriver.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
		RenderPass:  options.RenderPass,
		Layers:      1,
		Attachments: []core1_0.ImageView{options.ImageAttachment},
		Width:       options.Extent.Width,
		Height:      options.Extent.Height,
	})
	if err != nil {
		return core1_0.Framebuffer{}, err
	}

	c.framebuffers = append(c.framebuffers, framebuffer)
	return framebuffer, nil
}

// CreateImageView creates a 2D color image view.
func (c *Context) CreateImageView(options ImageViewOptions) (core1_0.ImageView, error) {
	view, err := c.createImageView(options.Image, options.Format)
	if err != nil {
		return core1_0.ImageView{}, err
	}

	c.imageViews = append(c.imageViews, view)
	return view, nil
}

func (c *Context) createImageView(image core1_0.Image, format core1_0.Format) (core1_0.ImageView, error) {
	imageView, _, err := c.deviceDriver.CreateImageView(nil, core1_0.ImageViewCreateInfo{
		Image:    image,
		ViewType: core1_0.ImageViewType2D,
		Format:   format,
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     core1_0.ImageAspectColor,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	})
	return imageView, err
}

// cleanupSwapchain destroys everything tied to the current swapchain as one
// group: framebuffers, per image present sync, image views and the swapchain
// handle itself. Never called with work still in flight.
func (c *Context) cleanupSwapchain() {
	for _, framebuffer := range c.swapchainFramebuffers {
		c.deviceDriver.DestroyFramebuffer(framebuffer, nil)
	}
	c.swapchainFramebuffers = nil

	for _, semaphore := range c.renderFinishedSemaphores {
		c.deviceDriver.DestroySemaphore(semaphore, nil)
	}
	c.renderFinishedSemaphores = nil
	c.imagesInFlight = nil

	for _, view := range c.swapchainImageViews {
		c.deviceDriver.DestroyImageView(view, nil)
	}
	c.swapchainImageViews = nil

	if c.swapchainCreated {
		c.swapchainExtension.DestroySwapchain(c.swapchain, nil)
		c.swapchain = khr_swapchain.Swapchain{}
		c.swapchainCreated = false
	}
	c.swapchainImages = nil
}

// recreateSwapchain tears down the swapchain group and builds it again at the
// current drawable size. While the window is minimized (zero drawable size)
// it blocks on window events until a real size comes back. The device is
// drained first so no in-flight work can reference the old swapchain.
func (c *Context) recreateSwapchain() error {
	w, h := c.window.VulkanGetDrawableSize()
	for w == 0 || h == 0 {
		sdl.WaitEvent()
		w, h = c.window.VulkanGetDrawableSize()
	}

	_, err := c.deviceDriver.DeviceWaitIdle()
	if err != nil {
		return err
	}

	c.cleanupSwapchain()

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

	if c.framebuffersCreated {
		return c.createSwapchainFramebuffers(c.framebufferRenderPass)
	}

	return nil
}
