package render

import (
	"unsafe"

	"github.com/vkngwrapper/core/v3/core1_0"
)

// DescriptorPoolSizeOptions sizes one descriptor type within a pool.
type DescriptorPoolSizeOptions struct {
	Type            core1_0.DescriptorType
	DescriptorCount int
}

// DescriptorPoolOptions configures CreateDescriptorPool.
type DescriptorPoolOptions struct {
	PoolSizes []DescriptorPoolSizeOptions
	MaxSets   int
}

// DescriptorSetOptions configures CreateDescriptorSet.
type DescriptorSetOptions struct {
	DescriptorPool      core1_0.DescriptorPool
	DescriptorSetLayout core1_0.DescriptorSetLayout
}

// DescriptorUniformBufferInfo points a uniform buffer binding at a buffer.
type DescriptorUniformBufferInfo struct {
	Buffer  core1_0.Buffer
	Binding int
}

// DescriptorImageInfo points a combined image sampler binding at a sampled
// texture.
type DescriptorImageInfo struct {
	ImageView core1_0.ImageView
	Sampler   core1_0.Sampler
	Binding   int
}

// UpdateDescriptorSetOptions configures UpdateDescriptorSet.
type UpdateDescriptorSetOptions struct {
	DescriptorSet  core1_0.DescriptorSet
	UniformBuffers []DescriptorUniformBufferInfo
	Images         []DescriptorImageInfo
}

// CreateDescriptorPool creates a descriptor pool. Sets allocated from it are
// returned to the device when the pool is destroyed, never individually.
func (c *Context) CreateDescriptorPool(options DescriptorPoolOptions) (core1_0.DescriptorPool, error) {
	var poolSizes []core1_0.DescriptorPoolSize
	for _, sizeOptions := range options.PoolSizes {
		poolSizes = append(poolSizes, core1_0.DescriptorPoolSize{
			Type:            sizeOptions.Type,
			DescriptorCount: sizeOptions.DescriptorCount,
		})
	}

	descriptorPool, _, err := c.deviceDriver.CreateDescriptorPool(nil, core1_0.DescriptorPoolCreateInfo{
		MaxSets:   options.MaxSets,
		PoolSizes: poolSizes,
	})
	if err != nil {
		return core1_0.DescriptorPool{}, err
	}

	c.descriptorPools = append(c.descriptorPools, descriptorPool)
	return descriptorPool, nil
}

// CreateDescriptorSet allocates one descriptor set with the given layout.
func (c *Context) CreateDescriptorSet(options DescriptorSetOptions) (core1_0.DescriptorSet, error) {
	sets, _, err := c.deviceDriver.AllocateDescriptorSets(core1_0.DescriptorSetAllocateInfo{
		DescriptorPool: options.DescriptorPool,
		SetLayouts: []core1_0.DescriptorSetLayout{
			options.DescriptorSetLayout,
		},
	})
	if err != nil {
		return core1_0.DescriptorSet{}, err
	}

	descriptorSet := sets[0]
	c.descriptorSets = append(c.descriptorSets, descriptorSet)
	return descriptorSet, nil
}

// UpdateDescriptorSet writes the uniform buffer and sampled image bindings
// of a descriptor set.
func (c *Context) UpdateDescriptorSet(options UpdateDescriptorSetOptions) error {
	var writes []core1_0.WriteDescriptorSet

	for _, bufferInfo := range options.UniformBuffers {
		writes = append(writes, core1_0.WriteDescriptorSet{
			DstSet:          options.DescriptorSet,
			DstBinding:      bufferInfo.Binding,
			DstArrayElement: 0,
			DescriptorType:  core1_0.DescriptorTypeUniformBuffer,

			BufferInfo: []core1_0.DescriptorBufferInfo{
				{
					Buffer: bufferInfo.Buffer,
					Offset: 0,
					Range:  int(unsafe.Sizeof(UniformBufferObject{})),
				},
			},
		})
	}

	for _, imageInfo := range options.Images {
		writes = append(writes, core1_0.WriteDescriptorSet{
			DstSet:          options.DescriptorSet,
			DstBinding:      imageInfo.Binding,
			DstArrayElement: 0,
			DescriptorType:  core1_0.DescriptorTypeCombinedImageSampler,

			ImageInfo: []core1_0.DescriptorImageInfo{
				{
					ImageView:   imageInfo.ImageView,
					Sampler:     imageInfo.Sampler,
					ImageLayout: core1_0.ImageLayoutShaderReadOnlyOptimal,
				},
			},
		})
	}

	return c.deviceDriver.UpdateDescriptorSets(writes, nil)
}
