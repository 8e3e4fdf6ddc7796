package render

import (
	"github.com/vkngwrapper/core/v3/core1_0"
)

// CommandPoolOptions configures CreateCommandPool.
type CommandPoolOptions struct {
}

// CommandBufferOptions configures CreateCommandBuffer.
type CommandBufferOptions struct {
	CommandPool core1_0.CommandPool
}

// Draw is one indexed draw recorded by RecordCommandBuffer.
type Draw struct {
	Pipeline       core1_0.Pipeline
	PipelineLayout core1_0.PipelineLayout
	DescriptorSet  core1_0.DescriptorSet
	VertexBuffer   core1_0.Buffer
	IndexBuffer    core1_0.Buffer
	IndexCount     int
}

// RecordCommandBufferOptions configures RecordCommandBuffer.
type RecordCommandBufferOptions struct {
	CommandBuffer core1_0.CommandBuffer
	RenderPass    core1_0.RenderPass
	ClearColor    core1_0.ClearValueFloat
	Draws         []Draw
}

// CreateCommandPool creates a command pool on the graphics queue family.
// Buffers allocated from it can be reset individually, which RecordCommandBuffer
// relies on.
func (c *Context) CreateCommandPool(options CommandPoolOptions) (core1_0.CommandPool, error) {
	indices, err := c.findQueueFamilies(c.physicalDevice)
	if err != nil {
		return core1_0.CommandPool{}, err
	}

	commandPool, _, err := c.deviceDriver.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		Flags:            core1_0.CommandPoolCreateResetBuffer,
		QueueFamilyIndex: *indices.GraphicsFamily,
	})
	if err != nil {
		return core1_0.CommandPool{}, err
	}

	c.commandPools = append(c.commandPools, commandPool)
	return commandPool, nil
}

// CreateCommandBuffer allocates one primary command buffer from the pool.
func (c *Context) CreateCommandBuffer(options CommandBufferOptions) (core1_0.CommandBuffer, error) {
	buffers, _, err := c.deviceDriver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        options.CommandPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return core1_0.CommandBuffer{}, err
	}

	buffer := buffers[0]
	c.commandBuffers = append(c.commandBuffers, buffer)
	return buffer, nil
}

func (c *Context) beginSingleTimeCommands(commandPool core1_0.CommandPool) (core1_0.CommandBuffer, error) {
	buffers, _, err := c.deviceDriver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        commandPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return core1_0.CommandBuffer{}, err
	}

	buffer := buffers[0]
	_, err = c.deviceDriver.BeginCommandBuffer(buffer, core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	})
	return buffer, err
}

func (c *Context) endSingleTimeCommands(buffer core1_0.CommandBuffer) error {
	_, err := c.deviceDriver.EndCommandBuffer(buffer)
	if err != nil {
		return err
	}

	_, err = c.deviceDriver.QueueSubmit(c.graphicsQueue, nil,
		core1_0.SubmitInfo{
			CommandBuffers: []core1_0.CommandBuffer{buffer},
		},
	)

	if err != nil {
		return err
	}

	_, err = c.deviceDriver.QueueWaitIdle(c.graphicsQueue)
	if err != nil {
		return err
	}

	c.deviceDriver.FreeCommandBuffers(buffer)
	return nil
}

// RecordCommandBuffer resets the command buffer and records one render pass
// over the framebuffer of the image acquired by BeginFrame, with every draw
// inside that pass. Viewport and scissor follow the current swapchain
// extent.
func (c *Context) RecordCommandBuffer(options RecordCommandBufferOptions) error {
	_, err := c.deviceDriver.ResetCommandBuffer(options.CommandBuffer, 0)
	if err != nil {
		return err
	}

	_, err = c.deviceDriver.BeginCommandBuffer(options.CommandBuffer, core1_0.CommandBufferBeginInfo{})
	if err != nil {
		return err
	}

	err = c.deviceDriver.CmdBeginRenderPass(options.CommandBuffer, core1_0.SubpassContentsInline,
		core1_0.RenderPassBeginInfo{
			RenderPass:  options.RenderPass,
			Framebuffer: c.swapchainFramebuffers[c.currentImageIndex],
			RenderArea: core1_0.Rect2D{
				Offset: core1_0.Offset2D{X: 0, Y: 0},
				Extent: c.swapchainExtent,
			},
			ClearValues: []core1_0.ClearValue{
				options.ClearColor,
			},
		})
	if err != nil {
		return err
	}

	c.deviceDriver.CmdSetViewport(options.CommandBuffer, 0, []core1_0.Viewport{
		{
			X:        0,
			Y:        0,
			Width:    float32(c.swapchainExtent.Width),
			Height:   float32(c.swapchainExtent.Height),
			MinDepth: 0,
			MaxDepth: 1,
		},
	})
	c.deviceDriver.CmdSetScissor(options.CommandBuffer, 0, []core1_0.Rect2D{
		{
			Offset: core1_0.Offset2D{X: 0, Y: 0},
			Extent: c.swapchainExtent,
		},
	})

	for _, draw := range options.Draws {
		c.deviceDriver.CmdBindPipeline(options.CommandBuffer, core1_0.PipelineBindPointGraphics, draw.Pipeline)
		c.deviceDriver.CmdBindVertexBuffers(options.CommandBuffer, 0, []core1_0.Buffer{draw.VertexBuffer}, []int{0})
		c.deviceDriver.CmdBindIndexBuffer(options.CommandBuffer, draw.IndexBuffer, 0, core1_0.IndexTypeUInt16)
		c.deviceDriver.CmdBindDescriptorSets(options.CommandBuffer, core1_0.PipelineBindPointGraphics, draw.PipelineLayout, 0, []core1_0.DescriptorSet{
			draw.DescriptorSet,
		}, nil)
		c.deviceDriver.CmdDrawIndexed(options.CommandBuffer, draw.IndexCount, 1, 0, 0, 0)
	}

	c.deviceDriver.CmdEndRenderPass(options.CommandBuffer)

	_, err = c.deviceDriver.EndCommandBuffer(options.CommandBuffer)
	return err
}
