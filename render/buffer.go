package render

import (
	"bytes"
	"encoding/binary"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// VertexBufferOptions configures CreateVertexBuffer.
type VertexBufferOptions struct {
	CommandPool core1_0.CommandPool
	Vertices    []Vertex
}

// IndexBufferOptions configures CreateIndexBuffer.
type IndexBufferOptions struct {
	CommandPool core1_0.CommandPool
	Indices     []uint16
}

// UniformBuffer identifies a uniform buffer created by CreateUniformBuffer.
// Index addresses the persistent mapping held by the context.
type UniformBuffer struct {
	Buffer core1_0.Buffer
	Index  int
}

// UpdateUniformBufferOptions configures UpdateUniformBuffer.
type UpdateUniformBufferOptions struct {
	UniformBuffer UniformBuffer
	Data          UniformBufferObject
}

func writeData(driver core1_0.DeviceDriver, memory core1_0.DeviceMemory, offset int, data any) error {
	bufferSize := binary.Size(data)

	memoryPtr, _, err := driver.MapMemory(memory, offset, bufferSize, 0)
	if err != nil {
		return err
	}
	defer driver.UnmapMemory(memory)

	dataBuffer := unsafe.Slice((*byte)(memoryPtr), bufferSize)

	buf := &bytes.Buffer{}
	err = binary.Write(buf, common.ByteOrder, data)
	if err != nil {
		return err
	}

	copy(dataBuffer, buf.Bytes())
	return nil
}

func (c *Context) createBuffer(size int, usage core1_0.BufferUsageFlags, properties core1_0.MemoryPropertyFlags) (core1_0.Buffer, core1_0.DeviceMemory, error) {
	buffer, _, err := c.deviceDriver.CreateBuffer(nil, core1_0.BufferCreateInfo{
		Size:        size,
		Usage:       usage,
		SharingMode: core1_0.SharingModeExclusive,
	})
	if err != nil {
		return core1_0.Buffer{}, core1_0.DeviceMemory{}, err
	}

	memRequirements := c.deviceDriver.GetBufferMemoryRequirements(buffer)
	memoryTypeIndex, err := c.findMemoryType(memRequirements.MemoryTypeBits, properties)
	if err != nil {
		return buffer, core1_0.DeviceMemory{}, err
	}

	memory, _, err := c.deviceDriver.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  memRequirements.Size,
		MemoryTypeIndex: memoryTypeIndex,
	})
	if err != nil {
		return buffer, core1_0.DeviceMemory{}, err
	}

	_, err = c.deviceDriver.BindBufferMemory(buffer, memory, 0)
	return buffer, memory, err
}

func (c *Context) findMemoryType(typeFilter uint32, properties core1_0.MemoryPropertyFlags) (int, error) {
	memProperties := c.instanceDriver.GetPhysicalDeviceMemoryProperties(c.physicalDevice)
	for i, memoryType := range memProperties.MemoryTypes {
		typeBit := uint32(1 << i)

		if (typeFilter&typeBit) != 0 && (memoryType.PropertyFlags&properties) == properties {
			return i, nil
		}
	}

	return 0, errors.Errorf("failed to find any suitable memory type!")
}

func (c *Context) copyBuffer(commandPool core1_0.CommandPool, srcBuffer core1_0.Buffer, dstBuffer core1_0.Buffer, size int) error {
	buffer, err := c.beginSingleTimeCommands(commandPool)
	if err != nil {
		return err
	}

	err = c.deviceDriver.CmdCopyBuffer(buffer, srcBuffer, dstBuffer,
		core1_0.BufferCopy{
			SrcOffset: 0,
			DstOffset: 0,
			Size:      size,
		},
	)
	if err != nil {
		return err
	}

	return c.endSingleTimeCommands(buffer)
}

// CreateVertexBuffer uploads the vertices into a device local buffer through
// a host visible staging buffer.
func (c *Context) CreateVertexBuffer(options VertexBufferOptions) (core1_0.Buffer, error) {
	if len(options.Vertices) == 0 {
		return core1_0.Buffer{}, errors.Errorf("failed to create a vertex buffer: no vertices!")
	}

	bufferSize := binary.Size(options.Vertices)

	stagingBuffer, stagingBufferMemory, err := c.createBuffer(bufferSize, core1_0.BufferUsageTransferSrc, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
	if stagingBuffer.Initialized() {
		defer c.deviceDriver.DestroyBuffer(stagingBuffer, nil)
	}
	if stagingBufferMemory.Initialized() {
		defer c.deviceDriver.FreeMemory(stagingBufferMemory, nil)
	}

	if err != nil {
		return core1_0.Buffer{}, err
	}

	err = writeData(c.deviceDriver, stagingBufferMemory, 0, options.Vertices)
	if err != nil {
		return core1_0.Buffer{}, err
	}

	vertexBuffer, vertexBufferMemory, err := c.createBuffer(bufferSize, core1_0.BufferUsageTransferDst|core1_0.BufferUsageVertexBuffer, core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		return core1_0.Buffer{}, err
	}

	c.vertexBuffers = append(c.vertexBuffers, vertexBuffer)
	c.vertexBufferMemories = append(c.vertexBufferMemories, vertexBufferMemory)

	err = c.copyBuffer(options.CommandPool, stagingBuffer, vertexBuffer, bufferSize)
	if err != nil {
		return core1_0.Buffer{}, err
	}

	return vertexBuffer, nil
}

// CreateIndexBuffer uploads the indices into a device local buffer through a
// host visible staging buffer.
func (c *Context) CreateIndexBuffer(options IndexBufferOptions) (core1_0.Buffer, error) {
	if len(options.Indices) == 0 {
		return core1_0.Buffer{}, errors.Errorf("failed to create an index buffer: no indices!")
	}

	bufferSize := binary.Size(options.Indices)

	stagingBuffer, stagingBufferMemory, err := c.createBuffer(bufferSize, core1_0.BufferUsageTransferSrc, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
	if stagingBuffer.Initialized() {
		defer c.deviceDriver.DestroyBuffer(stagingBuffer, nil)
	}
	if stagingBufferMemory.Initialized() {
		defer c.deviceDriver.FreeMemory(stagingBufferMemory, nil)
	}

	if err != nil {
		return core1_0.Buffer{}, err
	}

	err = writeData(c.deviceDriver, stagingBufferMemory, 0, options.Indices)
	if err != nil {
		return core1_0.Buffer{}, err
	}

	indexBuffer, indexBufferMemory, err := c.createBuffer(bufferSize, core1_0.BufferUsageTransferDst|core1_0.BufferUsageIndexBuffer, core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		return core1_0.Buffer{}, err
	}

	c.indexBuffers = append(c.indexBuffers, indexBuffer)
	c.indexBufferMemories = append(c.indexBufferMemories, indexBufferMemory)

	err = c.copyBuffer(options.CommandPool, stagingBuffer, indexBuffer, bufferSize)
	if err != nil {
		return core1_0.Buffer{}, err
	}

	return indexBuffer, nil
}

// CreateUniformBuffer creates a host visible buffer sized for one
// UniformBufferObject and maps it for the lifetime of the context.
func (c *Context) CreateUniformBuffer() (UniformBuffer, error) {
	bufferSize := int(unsafe.Sizeof(UniformBufferObject{}))

	buffer, memory, err := c.createBuffer(bufferSize, core1_0.BufferUsageUniformBuffer, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
	if err != nil {
		return UniformBuffer{}, err
	}

	memoryPtr, _, err := c.deviceDriver.MapMemory(memory, 0, bufferSize, 0)
	if err != nil {
		return UniformBuffer{}, err
	}

	index := len(c.uniformBuffers)
	c.uniformBuffers = append(c.uniformBuffers, buffer)
	c.uniformBufferMemories = append(c.uniformBufferMemories, memory)
	c.uniformBufferMapped = append(c.uniformBufferMapped, memoryPtr)

	return UniformBuffer{Buffer: buffer, Index: index}, nil
}

// UpdateUniformBuffer writes the transform block into the persistent mapping
// of the given uniform buffer. Host coherent memory makes the write visible
// without an explicit flush.
func (c *Context) UpdateUniformBuffer(options UpdateUniformBufferOptions) error {
	index := options.UniformBuffer.Index
	if index < 0 || index >= len(c.uniformBufferMapped) {
		return errors.Errorf("failed to find the uniform buffer %d!", index)
	}

	bufferSize := binary.Size(options.Data)
	dataBuffer := unsafe.Slice((*byte)(c.uniformBufferMapped[index]), bufferSize)

	buf := &bytes.Buffer{}
	err := binary.Write(buf, common.ByteOrder, options.Data)
	if err != nil {
		return err
	}

	copy(dataBuffer, buf.Bytes())
	return nil
}
