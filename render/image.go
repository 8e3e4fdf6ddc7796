package render

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// TextureImageOptions configures CreateTextureImage.
type TextureImageOptions struct {
	CommandPool core1_0.CommandPool
	ImageData   *ImageData
}

// TextureSamplerOptions configures CreateTextureSampler. Use
// DefaultTextureSamplerOptions for linear filtering with repeat addressing.
type TextureSamplerOptions struct {
	MagFilter        core1_0.Filter
	MinFilter        core1_0.Filter
	AddressMode      core1_0.SamplerAddressMode
	AnisotropyEnable bool
	BorderColor      core1_0.BorderColor
}

// DefaultTextureSamplerOptions returns the sampler configuration most
// textures want.
func DefaultTextureSamplerOptions() TextureSamplerOptions {
	return TextureSamplerOptions{
		MagFilter:        core1_0.FilterLinear,
		MinFilter:        core1_0.FilterLinear,
		AddressMode:      core1_0.SamplerAddressModeRepeat,
		AnisotropyEnable: false,
		BorderColor:      core1_0.BorderColorIntOpaqueBlack,
	}
}

// TextureImageFormat reports the format CreateTextureImage picks for pixel
// data with the given channel count. Use it to create matching image views.
func TextureImageFormat(channels int) (core1_0.Format, error) {
	return textureFormat(channels)
}

func textureFormat(channels int) (core1_0.Format, error) {
	switch channels {
	case 1:
		return core1_0.FormatR8SRGB, nil
	case 3:
		return core1_0.FormatR8G8B8SRGB, nil
	case 4:
		return core1_0.FormatR8G8B8A8SRGB, nil
	}

	return 0, errors.Errorf("unsupported texture image format: %d channels!", channels)
}

// CreateTextureImage uploads the pixels into a device local sampled image
// through a staging buffer and leaves it in the shader read only layout.
// The image format follows the channel count: R8, R8G8B8 or R8G8B8A8, all
// sRGB.
func (c *Context) CreateTextureImage(options TextureImageOptions) (core1_0.Image, error) {
	imageData := options.ImageData

	format, err := textureFormat(imageData.Channels)
	if err != nil {
		return core1_0.Image{}, err
	}

	stagingBuffer, stagingMemory, err := c.createBuffer(len(imageData.Pixels), core1_0.BufferUsageTransferSrc, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
	if err != nil {
		return core1_0.Image{}, err
	}

	defer c.deviceDriver.DestroyBuffer(stagingBuffer, nil)
	defer c.deviceDriver.FreeMemory(stagingMemory, nil)

	err = writeData(c.deviceDriver, stagingMemory, 0, imageData.Pixels)
	if err != nil {
		return core1_0.Image{}, err
	}

	image, imageMemory, err := c.createImage(imageData.Width,
		imageData.Height,
		format,
		core1_0.ImageTilingOptimal,
		core1_0.ImageUsageTransferDst|core1_0.ImageUsageSampled,
		core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		return core1_0.Image{}, err
	}

	c.textureImages = append(c.textureImages, image)
	c.textureImageMemories = append(c.textureImageMemories, imageMemory)

	err = c.transitionImageLayout(options.CommandPool, image, core1_0.ImageLayoutUndefined, core1_0.ImageLayoutTransferDstOptimal)
	if err != nil {
		return core1_0.Image{}, err
	}

	err = c.copyBufferToImage(options.CommandPool, stagingBuffer, image, imageData.Width, imageData.Height)
	if err != nil {
		return core1_0.Image{}, err
	}

	err = c.transitionImageLayout(options.CommandPool, image, core1_0.ImageLayoutTransferDstOptimal, core1_0.ImageLayoutShaderReadOnlyOptimal)
	if err != nil {
		return core1_0.Image{}, err
	}

	return image, nil
}

// CreateTextureSampler creates a sampler for shader texture reads.
func (c *Context) CreateTextureSampler(options TextureSamplerOptions) (core1_0.Sampler, error) {
	maxAnisotropy := float32(1)
	if options.AnisotropyEnable {
		properties, err := c.instanceDriver.GetPhysicalDeviceProperties(c.physicalDevice)
		if err != nil {
			return core1_0.Sampler{}, err
		}
		maxAnisotropy = properties.Limits.MaxSamplerAnisotropy
	}

	sampler, _, err := c.deviceDriver.CreateSampler(nil, core1_0.SamplerCreateInfo{
		MagFilter:    options.MagFilter,
		MinFilter:    options.MinFilter,
		AddressModeU: options.AddressMode,
		AddressModeV: options.AddressMode,
		AddressModeW: options.AddressMode,

		AnisotropyEnable: options.AnisotropyEnable,
		MaxAnisotropy:    maxAnisotropy,

		BorderColor: options.BorderColor,

		MipmapMode: core1_0.SamplerMipmapModeLinear,
		MinLod:     0,
		MaxLod:     0,
	})
	if err != nil {
		return core1_0.Sampler{}, err
	}

	c.samplers = append(c.samplers, sampler)
	return sampler, nil
}

func (c *Context) createImage(width, height int, format core1_0.Format, tiling core1_0.ImageTiling, usage core1_0.ImageUsageFlags, memoryProperties core1_0.MemoryPropertyFlags) (core1_0.Image, core1_0.DeviceMemory, error) {
	image, _, err := c.deviceDriver.CreateImage(nil, core1_0.ImageCreateInfo{
		ImageType: core1_0.ImageType2D,
		Extent: core1_0.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        tiling,
		InitialLayout: core1_0.ImageLayoutUndefined,
		Usage:         usage,
		SharingMode:   core1_0.SharingModeExclusive,
		Samples:       core1_0.Samples1,
	})
	if err != nil {
		return core1_0.Image{}, core1_0.DeviceMemory{}, err
	}

	memReqs := c.deviceDriver.GetImageMemoryRequirements(image)
	memoryIndex, err := c.findMemoryType(memReqs.MemoryTypeBits, memoryProperties)
	if err != nil {
		return core1_0.Image{}, core1_0.DeviceMemory{}, err
	}

	imageMemory, _, err := c.deviceDriver.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: memoryIndex,
	})
	if err != nil {
		return core1_0.Image{}, core1_0.DeviceMemory{}, err
	}

	_, err = c.deviceDriver.BindImageMemory(image, imageMemory, 0)
	if err != nil {
		return core1_0.Image{}, core1_0.DeviceMemory{}, err
	}

	return image, imageMemory, nil
}

func (c *Context) transitionImageLayout(commandPool core1_0.CommandPool, image core1_0.Image, oldLayout core1_0.ImageLayout, newLayout core1_0.ImageLayout) error {
	buffer, err := c.beginSingleTimeCommands(commandPool)
	if err != nil {
		return err
	}

	var sourceStage, destStage core1_0.PipelineStageFlags
	var sourceAccess, destAccess core1_0.AccessFlags

	if oldLayout == core1_0.ImageLayoutUndefined && newLayout == core1_0.ImageLayoutTransferDstOptimal {
		sourceAccess = 0
		destAccess = core1_0.AccessTransferWrite
		sourceStage = core1_0.PipelineStageTopOfPipe
		destStage = core1_0.PipelineStageTransfer
	} else if oldLayout == core1_0.ImageLayoutTransferDstOptimal && newLayout == core1_0.ImageLayoutShaderReadOnlyOptimal {
		sourceAccess = core1_0.AccessTransferWrite
		destAccess = core1_0.AccessShaderRead
		sourceStage = core1_0.PipelineStageTransfer
		destStage = core1_0.PipelineStageFragmentShader
	} else {
		return errors.Errorf("unexpected layout transition: %s -> %s", oldLayout, newLayout)
	}

	err = c.deviceDriver.CmdPipelineBarrier(buffer, sourceStage, destStage, 0, nil, nil, []core1_0.ImageMemoryBarrier{
		{
			OldLayout:           oldLayout,
			NewLayout:           newLayout,
			SrcQueueFamilyIndex: -1,
			DstQueueFamilyIndex: -1,
			Image:               image,
			SubresourceRange: core1_0.ImageSubresourceRange{
				AspectMask:     core1_0.ImageAspectColor,
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
			SrcAccessMask: sourceAccess,
			DstAccessMask: destAccess,
		},
	})
	if err != nil {
		return err
	}

	return c.endSingleTimeCommands(buffer)
}

func (c *Context) copyBufferToImage(commandPool core1_0.CommandPool, buffer core1_0.Buffer, image core1_0.Image, width, height int) error {
	cmdBuffer, err := c.beginSingleTimeCommands(commandPool)
	if err != nil {
		return err
	}

	err = c.deviceDriver.CmdCopyBufferToImage(cmdBuffer, buffer, image, core1_0.ImageLayoutTransferDstOptimal,
		core1_0.BufferImageCopy{
			BufferOffset:      0,
			BufferRowLength:   0,
			BufferImageHeight: 0,

			ImageSubresource: core1_0.ImageSubresourceLayers{
				AspectMask:     core1_0.ImageAspectColor,
				MipLevel:       0,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
			ImageOffset: core1_0.Offset3D{X: 0, Y: 0, Z: 0},
			ImageExtent: core1_0.Extent3D{Width: width, Height: height, Depth: 1},
		},
	)
	if err != nil {
		return err
	}

	return c.endSingleTimeCommands(cmdBuffer)
}
