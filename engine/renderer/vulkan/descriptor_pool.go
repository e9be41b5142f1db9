package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/aurora/engine/core"
	"github.com/spaghettifunk/aurora/engine/renderer/descriptors"
)

// VulkanDescriptorPool implements descriptors.Pool on top of a single
// vk.DescriptorPool sized from configuration. Sets are individually freeable
// so the cache can return evicted sets.
type VulkanDescriptorPool struct {
	Handle vk.DescriptorPool

	context   *VulkanContext
	destroyed bool
}

func NewVulkanDescriptorPool(context *VulkanContext, maxSets, descriptorsPerType uint32) (*VulkanDescriptorPool, error) {
	poolSizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: descriptorsPerType},
		{Type: vk.DescriptorTypeUniformBufferDynamic, DescriptorCount: descriptorsPerType},
		{Type: vk.DescriptorTypeStorageBuffer, DescriptorCount: descriptorsPerType},
		{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: descriptorsPerType},
		{Type: vk.DescriptorTypeInputAttachment, DescriptorCount: descriptorsPerType},
	}

	createInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		MaxSets:       maxSets,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}

	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(context.Device.LogicalDevice, &createInfo, context.Allocator, &pool); res != vk.Success {
		err := fmt.Errorf("failed to create descriptor pool: %s", VulkanResultString(res))
		core.LogError(err.Error())
		return nil, err
	}

	return &VulkanDescriptorPool{
		Handle:  pool,
		context: context,
	}, nil
}

func (p *VulkanDescriptorPool) Allocate(layout descriptors.Layout) (vk.DescriptorSet, error) {
	setLayout, ok := layout.(*VulkanDescriptorSetLayout)
	if !ok {
		return vk.NullDescriptorSet, fmt.Errorf("descriptor pool needs a *VulkanDescriptorSetLayout, got %T", layout)
	}

	allocateInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     p.Handle,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{setLayout.Handle},
	}

	var dset vk.DescriptorSet
	res := vk.AllocateDescriptorSets(p.context.Device.LogicalDevice, &allocateInfo, &dset)
	switch res {
	case vk.Success:
		return dset, nil
	case vk.ErrorOutOfPoolMemory, vk.ErrorFragmentedPool:
		return vk.NullDescriptorSet, core.ErrPoolExhausted
	default:
		err := fmt.Errorf("failed to allocate descriptor set: %s", VulkanResultString(res))
		core.LogError(err.Error())
		return vk.NullDescriptorSet, err
	}
}

// WriteBindings updates every binding of the set in one batched call. The
// binding's position in the slice is its binding index within the layout.
func (p *VulkanDescriptorPool) WriteBindings(set vk.DescriptorSet, bindings []descriptors.Binding) error {
	writes := make([]vk.WriteDescriptorSet, 0, len(bindings))

	for index, binding := range bindings {
		write := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      uint32(index),
			DescriptorCount: 1,
		}

		switch binding.Kind {
		case descriptors.BINDING_UNIFORM_BUFFER, descriptors.BINDING_DYNAMIC_UNIFORM_BUFFER, descriptors.BINDING_STORAGE_BUFFER:
			buffer, ok := binding.Buffer.(*VulkanBuffer)
			if !ok {
				return fmt.Errorf("binding %d references a non-Vulkan buffer %T", index, binding.Buffer)
			}
			switch binding.Kind {
			case descriptors.BINDING_UNIFORM_BUFFER:
				write.DescriptorType = vk.DescriptorTypeUniformBuffer
			case descriptors.BINDING_DYNAMIC_UNIFORM_BUFFER:
				write.DescriptorType = vk.DescriptorTypeUniformBufferDynamic
			case descriptors.BINDING_STORAGE_BUFFER:
				write.DescriptorType = vk.DescriptorTypeStorageBuffer
			}
			write.PBufferInfo = []vk.DescriptorBufferInfo{{
				Buffer: buffer.Handle,
				Offset: vk.DeviceSize(binding.Offset),
				Range:  vk.DeviceSize(binding.Range),
			}}

		case descriptors.BINDING_IMAGE_SAMPLER:
			image, ok := binding.Image.(*VulkanImage)
			if !ok {
				return fmt.Errorf("binding %d references a non-Vulkan image %T", index, binding.Image)
			}
			sampler, ok := binding.Sampler.(*VulkanSampler)
			if !ok {
				return fmt.Errorf("binding %d references a non-Vulkan sampler %T", index, binding.Sampler)
			}
			write.DescriptorType = vk.DescriptorTypeCombinedImageSampler
			write.PImageInfo = []vk.DescriptorImageInfo{{
				Sampler:     sampler.Handle,
				ImageView:   image.View,
				ImageLayout: vk.ImageLayout(binding.Layout),
			}}

		case descriptors.BINDING_INPUT_ATTACHMENT:
			image, ok := binding.Image.(*VulkanImage)
			if !ok {
				return fmt.Errorf("binding %d references a non-Vulkan image %T", index, binding.Image)
			}
			write.DescriptorType = vk.DescriptorTypeInputAttachment
			write.PImageInfo = []vk.DescriptorImageInfo{{
				ImageView:   image.View,
				ImageLayout: vk.ImageLayout(binding.Layout),
			}}

		default:
			return fmt.Errorf("unknown binding kind %d at index %d", binding.Kind, index)
		}

		writes = append(writes, write)
	}

	vk.UpdateDescriptorSets(p.context.Device.LogicalDevice, uint32(len(writes)), writes, 0, nil)
	return nil
}

func (p *VulkanDescriptorPool) Release(set vk.DescriptorSet) error {
	if res := vk.FreeDescriptorSets(p.context.Device.LogicalDevice, p.Handle, 1, &set); res != vk.Success {
		err := fmt.Errorf("failed to free descriptor set: %s", VulkanResultString(res))
		core.LogError(err.Error())
		return err
	}
	return nil
}

func (p *VulkanDescriptorPool) Destroy() error {
	if p.destroyed {
		return nil
	}
	p.destroyed = true
	vk.DestroyDescriptorPool(p.context.Device.LogicalDevice, p.Handle, p.context.Allocator)
	p.Handle = vk.NullDescriptorPool
	return nil
}
