package render

import (
	"bytes"
	"encoding/binary"
	"os"

	"github.com/google/uuid"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
)

const pipelineCacheHeaderVersionOne = 1

// createPipelineCache creates the device pipeline cache, seeded from
// PipelineCachePath when the file exists and was produced by this device.
func (c *Context) createPipelineCache() error {
	var initialData []byte

	if c.opts.PipelineCachePath != "" {
		data, err := os.ReadFile(c.opts.PipelineCachePath)
		if os.IsNotExist(err) {
			c.logger.Debug("pipeline cache miss", "path", c.opts.PipelineCachePath)
		} else if err != nil {
			c.logger.Warn("failed to read the pipeline cache", "path", c.opts.PipelineCachePath, "error", err)
		} else if c.validatePipelineCacheData(data) {
			initialData = data
		} else {
			// A stale cache is repopulated on the next save.
			_ = os.Remove(c.opts.PipelineCachePath)
		}
	}

	pipelineCache, _, err := c.deviceDriver.CreatePipelineCache(nil, core1_0.PipelineCacheCreateInfo{
		InitialData: initialData,
	})
	if err != nil {
		return err
	}

	c.pipelineCache = pipelineCache
	c.pipelineCacheCreated = true
	return nil
}

// savePipelineCache writes the populated cache back to PipelineCachePath.
func (c *Context) savePipelineCache() {
	if c.opts.PipelineCachePath == "" {
		return
	}

	data, _, err := c.deviceDriver.GetPipelineCacheData(c.pipelineCache)
	if err != nil {
		c.logger.Warn("failed to retrieve the pipeline cache data", "error", err)
		return
	}

	err = os.WriteFile(c.opts.PipelineCachePath, data, 0666)
	if err != nil {
		c.logger.Warn("failed to write the pipeline cache", "path", c.opts.PipelineCachePath, "error", err)
		return
	}

	c.logger.Debug("saved the pipeline cache", "path", c.opts.PipelineCachePath, "size", len(data))
}

// validatePipelineCacheData checks the cache header against the selected
// physical device. The header layout is:
//
//	Offset  Size  Meaning
//	     0     4  length in bytes of the entire header
//	     4     4  pipeline cache header version
//	     8     4  vendor ID of the device that wrote the cache
//	    12     4  device ID of the device that wrote the cache
//	    16    16  pipeline cache UUID of the device that wrote the cache
//
// Integers are streams of bytes, least significant byte first.
func (c *Context) validatePipelineCacheData(data []byte) bool {
	properties, err := c.instanceDriver.GetPhysicalDeviceProperties(c.physicalDevice)
	if err != nil {
		return false
	}

	var headerLength, headerVersion, vendorID, deviceID uint32
	var cacheUUID uuid.UUID

	reader := bytes.NewReader(data)
	err = binary.Read(reader, common.ByteOrder, &headerLength)
	if err == nil {
		err = binary.Read(reader, common.ByteOrder, &headerVersion)
	}
	if err == nil {
		err = binary.Read(reader, common.ByteOrder, &vendorID)
	}
	if err == nil {
		err = binary.Read(reader, common.ByteOrder, &deviceID)
	}
	if err == nil {
		err = binary.Read(reader, common.ByteOrder, &cacheUUID)
	}
	if err != nil {
		c.logger.Warn("pipeline cache header is truncated", "path", c.opts.PipelineCachePath)
		return false
	}

	if headerLength == 0 {
		c.logger.Warn("bad pipeline cache header length", "headerLength", headerLength)
		return false
	}

	if headerVersion != pipelineCacheHeaderVersionOne {
		c.logger.Warn("unsupported pipeline cache header version", "headerVersion", headerVersion)
		return false
	}

	if vendorID != properties.VendorID {
		c.logger.Warn("pipeline cache vendor ID mismatch",
			"cache", vendorID, "device", properties.VendorID)
		return false
	}

	if deviceID != properties.DeviceID {
		c.logger.Warn("pipeline cache device ID mismatch",
			"cache", deviceID, "device", properties.DeviceID)
		return false
	}

	if cacheUUID != properties.PipelineCacheUUID {
		c.logger.Warn("pipeline cache UUID mismatch",
			"cache", cacheUUID.String(), "device", properties.PipelineCacheUUID.String())
		return false
	}

	return true
}
