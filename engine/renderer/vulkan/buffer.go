package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/aurora/engine/core"
)

type VulkanBuffer struct {
	Handle    vk.Buffer
	Memory    vk.DeviceMemory
	TotalSize uint64

	context *VulkanContext
	id      uint64
}

func (vb *VulkanBuffer) ResourceID() uint64 {
	return vb.id
}

// NewVulkanBuffer creates a buffer and binds freshly allocated memory to it.
func NewVulkanBuffer(context *VulkanContext, size uint64, usage vk.BufferUsageFlagBits, memoryFlags vk.MemoryPropertyFlagBits) (*VulkanBuffer, error) {
	bufferCreateInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}

	var pBuffer vk.Buffer
	if res := vk.CreateBuffer(context.Device.LogicalDevice, &bufferCreateInfo, context.Allocator, &pBuffer); res != vk.Success {
		err := fmt.Errorf("failed to create buffer with result `%s`", VulkanResultString(res))
		core.LogError(err.Error())
		return nil, err
	}

	var memoryRequirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(context.Device.LogicalDevice, pBuffer, &memoryRequirements)
	memoryRequirements.Deref()

	memoryIndex := context.FindMemoryIndex(memoryRequirements.MemoryTypeBits, uint32(memoryFlags))
	if memoryIndex < 0 {
		vk.DestroyBuffer(context.Device.LogicalDevice, pBuffer, context.Allocator)
		err := fmt.Errorf("no suitable memory type for buffer of %d bytes", size)
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
		vk.DestroyBuffer(context.Device.LogicalDevice, pBuffer, context.Allocator)
		err := fmt.Errorf("failed to allocate buffer memory with result `%s`", VulkanResultString(res))
		core.LogError(err.Error())
		return nil, err
	}

	if res := vk.BindBufferMemory(context.Device.LogicalDevice, pBuffer, pMemory, 0); res != vk.Success {
		vk.FreeMemory(context.Device.LogicalDevice, pMemory, context.Allocator)
		vk.DestroyBuffer(context.Device.LogicalDevice, pBuffer, context.Allocator)
		err := fmt.Errorf("failed to bind buffer memory with result `%s`", VulkanResultString(res))
		core.LogError(err.Error())
		return nil, err
	}

	return &VulkanBuffer{
		Handle:    pBuffer,
		Memory:    pMemory,
		TotalSize: size,
		context:   context,
		id:        core.IdentifierAcquireNewID(),
	}, nil
}

// NewVulkanDeviceBuffer creates a GPU-only buffer usable as an upload target.
func NewVulkanDeviceBuffer(context *VulkanContext, size uint64, usage vk.BufferUsageFlagBits) (*VulkanBuffer, error) {
	return NewVulkanBuffer(context, size, usage|vk.BufferUsageTransferDstBit, vk.MemoryPropertyDeviceLocalBit)
}

func (vb *VulkanBuffer) Destroy() {
	if vb.Handle != vk.NullBuffer {
		vk.FreeMemory(vb.context.Device.LogicalDevice, vb.Memory, vb.context.Allocator)
		vk.DestroyBuffer(vb.context.Device.LogicalDevice, vb.Handle, vb.context.Allocator)
		vb.Handle = vk.NullBuffer
		vb.Memory = vk.NullDeviceMemory
	}
}

// VulkanStagingBuffer is a host-visible buffer kept mapped for its whole
// lifetime. It implements staging.Memory.
type VulkanStagingBuffer struct {
	Buffer *VulkanBuffer

	mapped unsafe.Pointer
}

func NewVulkanStagingBuffer(context *VulkanContext, size uint64) (*VulkanStagingBuffer, error) {
	buffer, err := NewVulkanBuffer(context, size, vk.BufferUsageTransferSrcBit,
		vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	if err != nil {
		return nil, err
	}

	var pData unsafe.Pointer
	if res := vk.MapMemory(context.Device.LogicalDevice, buffer.Memory, 0, vk.DeviceSize(size), 0, &pData); res != vk.Success {
		buffer.Destroy()
		err := fmt.Errorf("failed to map staging memory with result `%s`", VulkanResultString(res))
		core.LogError(err.Error())
		return nil, err
	}

	return &VulkanStagingBuffer{
		Buffer: buffer,
		mapped: pData,
	}, nil
}

func (sb *VulkanStagingBuffer) Write(offset uint64, data []byte) {
	dst := unsafe.Pointer(uintptr(sb.mapped) + uintptr(offset))
	vk.Memcopy(dst, data)
}

func (sb *VulkanStagingBuffer) Destroy() {
	if sb.mapped != nil {
		vk.UnmapMemory(sb.Buffer.context.Device.LogicalDevice, sb.Buffer.Memory)
		sb.mapped = nil
	}
	sb.Buffer.Destroy()
}
