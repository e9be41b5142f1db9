package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/aurora/engine/core"
)

// Every bindable Vulkan object carries a process-unique identity so that the
// descriptor cache can content-hash binding sets without looking at raw API
// handles. The identity is assigned at creation and never reused.

type VulkanImage struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	Width  uint32
	Height uint32

	id uint64
}

func (vi *VulkanImage) ResourceID() uint64 {
	return vi.id
}

type VulkanSampler struct {
	Handle vk.Sampler

	id uint64
}

func (vs *VulkanSampler) ResourceID() uint64 {
	return vs.id
}

type VulkanDescriptorSetLayout struct {
	Handle vk.DescriptorSetLayout

	id uint64
}

func (vl *VulkanDescriptorSetLayout) LayoutID() uint64 {
	return vl.id
}

// WrapImage adopts an externally created image so it can appear in bindings.
func WrapImage(handle vk.Image, view vk.ImageView, memory vk.DeviceMemory, width, height uint32) *VulkanImage {
	return &VulkanImage{
		Handle: handle,
		Memory: memory,
		View:   view,
		Width:  width,
		Height: height,
		id:     core.IdentifierAcquireNewID(),
	}
}

// WrapSampler adopts an externally created sampler.
func WrapSampler(handle vk.Sampler) *VulkanSampler {
	return &VulkanSampler{
		Handle: handle,
		id:     core.IdentifierAcquireNewID(),
	}
}

// WrapDescriptorSetLayout adopts an externally created set layout.
func WrapDescriptorSetLayout(handle vk.DescriptorSetLayout) *VulkanDescriptorSetLayout {
	return &VulkanDescriptorSetLayout{
		Handle: handle,
		id:     core.IdentifierAcquireNewID(),
	}
}
