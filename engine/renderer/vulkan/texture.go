package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/aurora/engine/core"
)

// NewVulkanTexture creates a GPU-only RGBA image with a view, ready to be
// filled through the uploader and sampled from shaders.
func NewVulkanTexture(context *VulkanContext, width, height uint32) (*VulkanImage, error) {
	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    vk.FormatR8g8b8a8Unorm,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(vk.ImageUsageTransferDstBit | vk.ImageUsageSampledBit),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}

	var pImage vk.Image
	if res := vk.CreateImage(context.Device.LogicalDevice, &imageCreateInfo, context.Allocator, &pImage); res != vk.Success {
		err := fmt.Errorf("failed to create image with result `%s`", VulkanResultString(res))
		core.LogError(err.Error())
		return nil, err
	}

	var memoryRequirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(context.Device.LogicalDevice, pImage, &memoryRequirements)
	memoryRequirements.Deref()

	memoryIndex := context.FindMemoryIndex(memoryRequirements.MemoryTypeBits, uint32(vk.MemoryPropertyDeviceLocalBit))
	if memoryIndex < 0 {
		vk.DestroyImage(context.Device.LogicalDevice, pImage, context.Allocator)
		err := fmt.Errorf("no suitable memory type for %dx%d image", width, height)
		core.LogError(err.Error())
		return nil, err
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memoryRequirements.Size,
		MemoryTypeIndex: uint32(memoryIndex),
	}

	var pMemory vk.DeviceMemory
	if res := vk.AllocateMemory(context.Device.LogicalDevice, &allocateInfo, context.Allocator, &pMemory); res != vk.Success {
		vk.DestroyImage(context.Device.LogicalDevice, pImage, context.Allocator)
		err := fmt.Errorf("failed to allocate image memory with result `%s`", VulkanResultString(res))
		core.LogError(err.Error())
		return nil, err
	}

	if res := vk.BindImageMemory(context.Device.LogicalDevice, pImage, pMemory, 0); res != vk.Success {
		vk.FreeMemory(context.Device.LogicalDevice, pMemory, context.Allocator)
		vk.DestroyImage(context.Device.LogicalDevice, pImage, context.Allocator)
		err := fmt.Errorf("failed to bind image memory with result `%s`", VulkanResultString(res))
		core.LogError(err.Error())
		return nil, err
	}

	viewCreateInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    pImage,
		ViewType: vk.ImageViewType2d,
		Format:   vk.FormatR8g8b8a8Unorm,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}

	var pView vk.ImageView
	if res := vk.CreateImageView(context.Device.LogicalDevice, &viewCreateInfo, context.Allocator, &pView); res != vk.Success {
		vk.FreeMemory(context.Device.LogicalDevice, pMemory, context.Allocator)
		vk.DestroyImage(context.Device.LogicalDevice, pImage, context.Allocator)
		err := fmt.Errorf("failed to create image view with result `%s`", VulkanResultString(res))
		core.LogError(err.Error())
		return nil, err
	}

	image := WrapImage(pImage, pView, pMemory, width, height)
	return image, nil
}

// DestroyTexture releases an image created through NewVulkanTexture.
func DestroyTexture(context *VulkanContext, image *VulkanImage) {
	if image.View != vk.NullImageView {
		vk.DestroyImageView(context.Device.LogicalDevice, image.View, context.Allocator)
		image.View = vk.NullImageView
	}
	if image.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(context.Device.LogicalDevice, image.Memory, context.Allocator)
		image.Memory = vk.NullDeviceMemory
	}
	if image.Handle != vk.NullImage {
		vk.DestroyImage(context.Device.LogicalDevice, image.Handle, context.Allocator)
		image.Handle = vk.NullImage
	}
}

// NewVulkanSampler creates a linear-filtering repeat sampler.
func NewVulkanSampler(context *VulkanContext) (*VulkanSampler, error) {
	samplerCreateInfo := vk.SamplerCreateInfo{
		SType:            vk.StructureTypeSamplerCreateInfo,
		MagFilter:        vk.FilterLinear,
		MinFilter:        vk.FilterLinear,
		MipmapMode:       vk.SamplerMipmapModeLinear,
		AddressModeU:     vk.SamplerAddressModeRepeat,
		AddressModeV:     vk.SamplerAddressModeRepeat,
		AddressModeW:     vk.SamplerAddressModeRepeat,
		AnisotropyEnable: vk.True,
		MaxAnisotropy:    16,
	}

	var pSampler vk.Sampler
	if res := vk.CreateSampler(context.Device.LogicalDevice, &samplerCreateInfo, context.Allocator, &pSampler); res != vk.Success {
		err := fmt.Errorf("failed to create sampler with result `%s`", VulkanResultString(res))
		core.LogError(err.Error())
		return nil, err
	}
	return WrapSampler(pSampler), nil
}

// DestroySampler releases a sampler created through NewVulkanSampler.
func DestroySampler(context *VulkanContext, sampler *VulkanSampler) {
	if sampler.Handle != vk.NullSampler {
		vk.DestroySampler(context.Device.LogicalDevice, sampler.Handle, context.Allocator)
		sampler.Handle = vk.NullSampler
	}
}

// VulkanLayoutBinding describes one binding slot of a set layout.
type VulkanLayoutBinding struct {
	DescriptorType vk.DescriptorType
	StageFlags     vk.ShaderStageFlagBits
}

// NewVulkanDescriptorSetLayout creates a set layout with one descriptor per
// binding slot, in slice order.
func NewVulkanDescriptorSetLayout(context *VulkanContext, bindings []VulkanLayoutBinding) (*VulkanDescriptorSetLayout, error) {
	layoutBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, binding := range bindings {
		layoutBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         uint32(i),
			DescriptorType:  binding.DescriptorType,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(binding.StageFlags),
		}
	}

	layoutCreateInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(layoutBindings)),
		PBindings:    layoutBindings,
	}

	var pLayout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(context.Device.LogicalDevice, &layoutCreateInfo, context.Allocator, &pLayout); res != vk.Success {
		err := fmt.Errorf("failed to create descriptor set layout with result `%s`", VulkanResultString(res))
		core.LogError(err.Error())
		return nil, err
	}
	return WrapDescriptorSetLayout(pLayout), nil
}

// DestroyDescriptorSetLayout releases a layout created through
// NewVulkanDescriptorSetLayout.
func DestroyDescriptorSetLayout(context *VulkanContext, layout *VulkanDescriptorSetLayout) {
	if layout.Handle != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(context.Device.LogicalDevice, layout.Handle, context.Allocator)
		layout.Handle = vk.NullDescriptorSetLayout
	}
}
