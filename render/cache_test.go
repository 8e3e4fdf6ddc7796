package render

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
)

var testCacheUUID = uuid.MustParse("8c3a1b2e-4d5f-4a6b-8c7d-9e0f1a2b3c4d")

func pipelineCacheHeader(length, version, vendorID, deviceID uint32, cacheUUID uuid.UUID) []byte {
	buf := &bytes.Buffer{}
	binary.Write(buf, common.ByteOrder, length)
	binary.Write(buf, common.ByteOrder, version)
	binary.Write(buf, common.ByteOrder, vendorID)
	binary.Write(buf, common.ByteOrder, deviceID)
	binary.Write(buf, common.ByteOrder, cacheUUID)
	return buf.Bytes()
}

func newCacheTestContext() (*Context, *testDrivers) {
	c, drivers := newTestContext()
	drivers.instance.properties = core1_0.PhysicalDeviceProperties{
		VendorID:          0x10DE,
		DeviceID:          0x2204,
		PipelineCacheUUID: testCacheUUID,
	}
	return c, drivers
}

func TestValidatePipelineCacheData(t *testing.T) {
	tests := []struct {
		name  string
		data  []byte
		valid bool
	}{
		{
			name:  "valid",
			data:  pipelineCacheHeader(32, pipelineCacheHeaderVersionOne, 0x10DE, 0x2204, testCacheUUID),
			valid: true,
		},
		{
			name:  "truncated",
			data:  []byte{1, 2, 3, 4, 5},
			valid: false,
		},
		{
			name:  "empty",
			data:  nil,
			valid: false,
		},
		{
			name:  "zero header length",
			data:  pipelineCacheHeader(0, pipelineCacheHeaderVersionOne, 0x10DE, 0x2204, testCacheUUID),
			valid: false,
		},
		{
			name:  "unknown header version",
			data:  pipelineCacheHeader(32, 2, 0x10DE, 0x2204, testCacheUUID),
			valid: false,
		},
		{
			name:  "vendor mismatch",
			data:  pipelineCacheHeader(32, pipelineCacheHeaderVersionOne, 0x1002, 0x2204, testCacheUUID),
			valid: false,
		},
		{
			name:  "device mismatch",
			data:  pipelineCacheHeader(32, pipelineCacheHeaderVersionOne, 0x10DE, 0x1111, testCacheUUID),
			valid: false,
		},
		{
			name:  "uuid mismatch",
			data:  pipelineCacheHeader(32, pipelineCacheHeaderVersionOne, 0x10DE, 0x2204, uuid.Nil),
			valid: false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c, _ := newCacheTestContext()
			assert.Equal(t, test.valid, c.validatePipelineCacheData(test.data))
		})
	}
}

func TestCreatePipelineCacheSeedsFromFile(t *testing.T) {
	c, drivers := newCacheTestContext()

	header := pipelineCacheHeader(32, pipelineCacheHeaderVersionOne, 0x10DE, 0x2204, testCacheUUID)
	path := filepath.Join(t.TempDir(), "pipeline.cache")
	require.NoError(t, os.WriteFile(path, header, 0666))
	c.opts.PipelineCachePath = path

	err := c.createPipelineCache()
	require.NoError(t, err)

	assert.True(t, c.pipelineCacheCreated)
	require.Len(t, drivers.device.cacheCreateInfos, 1)
	assert.Equal(t, header, drivers.device.cacheCreateInfos[0].InitialData)
}

func TestCreatePipelineCacheRemovesStaleFile(t *testing.T) {
	c, drivers := newCacheTestContext()

	// Written by a different device.
	header := pipelineCacheHeader(32, pipelineCacheHeaderVersionOne, 0x1002, 0x2204, testCacheUUID)
	path := filepath.Join(t.TempDir(), "pipeline.cache")
	require.NoError(t, os.WriteFile(path, header, 0666))
	c.opts.PipelineCachePath = path

	err := c.createPipelineCache()
	require.NoError(t, err)

	assert.True(t, c.pipelineCacheCreated)
	require.Len(t, drivers.device.cacheCreateInfos, 1)
	assert.Empty(t, drivers.device.cacheCreateInfos[0].InitialData)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestCreatePipelineCacheMissingFile(t *testing.T) {
	c, drivers := newCacheTestContext()
	c.opts.PipelineCachePath = filepath.Join(t.TempDir(), "missing.cache")

	err := c.createPipelineCache()
	require.NoError(t, err)

	assert.True(t, c.pipelineCacheCreated)
	require.Len(t, drivers.device.cacheCreateInfos, 1)
	assert.Empty(t, drivers.device.cacheCreateInfos[0].InitialData)
}

func TestCreatePipelineCacheWithoutPath(t *testing.T) {
	c, drivers := newCacheTestContext()

	err := c.createPipelineCache()
	require.NoError(t, err)

	assert.True(t, c.pipelineCacheCreated)
	require.Len(t, drivers.device.cacheCreateInfos, 1)
	assert.Empty(t, drivers.device.cacheCreateInfos[0].InitialData)
}

func TestSavePipelineCache(t *testing.T) {
	c, drivers := newCacheTestContext()
	drivers.device.pipelineCacheData = []byte("populated cache blob")

	path := filepath.Join(t.TempDir(), "pipeline.cache")
	c.opts.PipelineCachePath = path

	c.savePipelineCache()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("populated cache blob"), data)
}

func TestSavePipelineCacheWithoutPath(t *testing.T) {
	c, drivers := newCacheTestContext()

	c.savePipelineCache()

	assert.Equal(t, 0, drivers.trace.count("GetPipelineCacheData"))
}
