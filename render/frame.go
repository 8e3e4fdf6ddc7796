package render

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

// BeginFrameInfo reports what BeginFrame acquired.
type BeginFrameInfo struct {
	// ImageIndex is the swapchain image the frame will render into.
	ImageIndex int

	// SwapchainRecreated is set when acquisition found the swapchain stale
	// and rebuilt it. Cached framebuffer extents are invalid in that case.
	SwapchainRecreated bool
}

// EndFrameOptions configures EndFrame.
type EndFrameOptions struct {
	CommandBuffer core1_0.CommandBuffer
}

func (c *Context) createSyncObjects() error {
	for i := 0; i < MaxFramesInFlight; i++ {
		semaphore, _, err := c.deviceDriver.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
		if err != nil {
			return err
		}

		c.imageAvailableSemaphores = append(c.imageAvailableSemaphores, semaphore)

		// Created signaled so the first wait on each slot passes.
		fence, _, err := c.deviceDriver.CreateFence(nil, core1_0.FenceCreateInfo{
			Flags: core1_0.FenceCreateSignaled,
		})
		if err != nil {
			return err
		}

		c.inFlightFences = append(c.inFlightFences, fence)
	}

	return nil
}

// BeginFrame starts a new frame on the active slot: it waits for the slot's
// previous submission to finish, then acquires a swapchain image. A stale
// swapchain is rebuilt and acquisition retried once; a second failure is
// fatal. A suboptimal acquire still succeeds, presentation deals with it at
// EndFrame.
func (c *Context) BeginFrame() (BeginFrameInfo, error) {
	info := BeginFrameInfo{}

	fences := []core1_0.Fence{c.inFlightFences[c.currentFrame]}
	_, err := c.deviceDriver.WaitForFences(true, common.NoTimeout, fences...)
	if err != nil {
		return info, err
	}

	imageIndex, res, err := c.swapchainExtension.AcquireNextImage(c.swapchain, common.NoTimeout, &c.imageAvailableSemaphores[c.currentFrame], nil)
	if res == khr_swapchain.VKErrorOutOfDate {
		err = c.recreateSwapchain()
		if err != nil {
			return info, err
		}
		info.SwapchainRecreated = true

		imageIndex, res, err = c.swapchainExtension.AcquireNextImage(c.swapchain, common.NoTimeout, &c.imageAvailableSemaphores[c.currentFrame], nil)
		if res == khr_swapchain.VKErrorOutOfDate {
			return info, errors.Errorf("failed to acquire a swapchain image after recreation!")
		}
	}
	if err != nil {
		return info, err
	}

	// An earlier frame may still be rendering into this image.
	if c.imagesInFlight[imageIndex].Initialized() {
		_, err = c.deviceDriver.WaitForFences(true, common.NoTimeout, c.imagesInFlight[imageIndex])
		if err != nil {
			return info, err
		}
	}
	c.imagesInFlight[imageIndex] = c.inFlightFences[c.currentFrame]

	// Reset only once work is certain to be submitted for this slot.
	_, err = c.deviceDriver.ResetFences(fences...)
	if err != nil {
		return info, err
	}

	c.currentImageIndex = imageIndex
	info.ImageIndex = imageIndex
	return info, nil
}

// EndFrame submits the recorded command buffer for the active slot and
// presents the acquired image. Submission waits for the acquire semaphore at
// the color output stage and signals the image's render finished semaphore
// plus the slot's fence. A stale or suboptimal present, or a pending resize
// notification, triggers swapchain recreation. The active slot advances
// unconditionally.
func (c *Context) EndFrame(options EndFrameOptions) error {
	imageIndex := c.currentImageIndex

	_, err := c.deviceDriver.QueueSubmit(c.graphicsQueue, &c.inFlightFences[c.currentFrame],
		core1_0.SubmitInfo{
			WaitSemaphores:   []core1_0.Semaphore{c.imageAvailableSemaphores[c.currentFrame]},
			WaitDstStageMask: []core1_0.PipelineStageFlags{core1_0.PipelineStageColorAttachmentOutput},
			CommandBuffers:   []core1_0.CommandBuffer{options.CommandBuffer},
			SignalSemaphores: []core1_0.Semaphore{c.renderFinishedSemaphores[imageIndex]},
		},
	)
	if err != nil {
		return err
	}

	res, err := c.swapchainExtension.QueuePresent(c.presentQueue, khr_swapchain.PresentInfo{
		WaitSemaphores: []core1_0.Semaphore{c.renderFinishedSemaphores[imageIndex]},
		Swapchains:     []khr_swapchain.Swapchain{c.swapchain},
		ImageIndices:   []int{imageIndex},
	})
	if res == khr_swapchain.VKErrorOutOfDate || res == khr_swapchain.VKSuboptimal || c.framebufferResized {
		c.framebufferResized = false
		err = c.recreateSwapchain()
		if err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	c.currentFrame = (c.currentFrame + 1) % MaxFramesInFlight

	return nil
}
