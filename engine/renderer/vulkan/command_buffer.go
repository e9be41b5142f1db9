package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/aurora/engine/core"
	"github.com/spaghettifunk/aurora/engine/renderer/staging"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

// VulkanTransferRecorder owns one primary command buffer and records the
// upload copies of a single ring slot. It implements staging.Recorder.
type VulkanTransferRecorder struct {
	Handle vk.CommandBuffer
	State  VulkanCommandBufferState

	context *VulkanContext
	pool    vk.CommandPool
}

func NewVulkanTransferRecorder(context *VulkanContext, pool vk.CommandPool) (*VulkanTransferRecorder, error) {
	recorder := &VulkanTransferRecorder{
		State:   COMMAND_BUFFER_STATE_NOT_ALLOCATED,
		context: context,
		pool:    pool,
	}

	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		CommandBufferCount: 1,
		Level:              vk.CommandBufferLevelPrimary,
	}

	commandBuffers := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(context.Device.LogicalDevice, &allocateInfo, commandBuffers); res != vk.Success {
		err := fmt.Errorf("failed to allocate transfer command buffer")
		core.LogError(err.Error())
		return nil, err
	}
	recorder.Handle = commandBuffers[0]
	recorder.State = COMMAND_BUFFER_STATE_READY

	return recorder, nil
}

func (v *VulkanTransferRecorder) Begin() error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}

	if res := vk.BeginCommandBuffer(v.Handle, &beginInfo); res != vk.Success {
		err := fmt.Errorf("failed to begin transfer command buffer")
		core.LogError(err.Error())
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING

	return nil
}

// CopyBuffer records a buffer-to-buffer copy out of staging memory.
func (v *VulkanTransferRecorder) CopyBuffer(src staging.Memory, srcOffset uint64, dst interface{}, dstOffset, size uint64) {
	source, ok := src.(*VulkanStagingBuffer)
	if !ok {
		core.LogError("transfer recorder received foreign staging memory %T", src)
		return
	}
	destination, ok := dst.(*VulkanBuffer)
	if !ok {
		core.LogError("buffer upload destination must be a *VulkanBuffer, got %T", dst)
		return
	}

	regions := []vk.BufferCopy{{
		SrcOffset: vk.DeviceSize(srcOffset),
		DstOffset: vk.DeviceSize(dstOffset),
		Size:      vk.DeviceSize(size),
	}}
	vk.CmdCopyBuffer(v.Handle, source.Buffer.Handle, destination.Handle, 1, regions)
}

// CopyImage records a buffer-to-image copy out of staging memory. Previous
// image contents are discarded; after the copy the image is left in
// shader-read-only layout.
func (v *VulkanTransferRecorder) CopyImage(src staging.Memory, srcOffset uint64, dst interface{}, width, height uint32) {
	source, ok := src.(*VulkanStagingBuffer)
	if !ok {
		core.LogError("transfer recorder received foreign staging memory %T", src)
		return
	}
	destination, ok := dst.(*VulkanImage)
	if !ok {
		core.LogError("image upload destination must be a *VulkanImage, got %T", dst)
		return
	}

	subresourceRange := vk.ImageSubresourceRange{
		AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
		BaseMipLevel:   0,
		LevelCount:     1,
		BaseArrayLayer: 0,
		LayerCount:     1,
	}

	toTransferDst := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       0,
		DstAccessMask:       vk.AccessFlags(vk.AccessTransferWriteBit),
		OldLayout:           vk.ImageLayoutUndefined,
		NewLayout:           vk.ImageLayoutTransferDstOptimal,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               destination.Handle,
		SubresourceRange:    subresourceRange,
	}
	vk.CmdPipelineBarrier(v.Handle,
		vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		vk.DependencyFlags(0),
		0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{toTransferDst})

	regions := []vk.BufferImageCopy{{
		BufferOffset:      vk.DeviceSize(srcOffset),
		BufferRowLength:   0,
		BufferImageHeight: 0,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		ImageOffset: vk.Offset3D{X: 0, Y: 0, Z: 0},
		ImageExtent: vk.Extent3D{Width: width, Height: height, Depth: 1},
	}}
	vk.CmdCopyBufferToImage(v.Handle, source.Buffer.Handle, destination.Handle,
		vk.ImageLayoutTransferDstOptimal, 1, regions)

	toShaderRead := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       vk.AccessFlags(vk.AccessTransferWriteBit),
		DstAccessMask:       vk.AccessFlags(vk.AccessShaderReadBit),
		OldLayout:           vk.ImageLayoutTransferDstOptimal,
		NewLayout:           vk.ImageLayoutShaderReadOnlyOptimal,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               destination.Handle,
		SubresourceRange:    subresourceRange,
	}
	vk.CmdPipelineBarrier(v.Handle,
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
		vk.DependencyFlags(0),
		0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{toShaderRead})
}

// End makes the recorded transfer writes visible to later stages and closes
// the command buffer.
func (v *VulkanTransferRecorder) End() error {
	memoryBarrier := vk.MemoryBarrier{
		SType:         vk.StructureTypeMemoryBarrier,
		SrcAccessMask: vk.AccessFlags(vk.AccessTransferWriteBit),
		DstAccessMask: vk.AccessFlags(vk.AccessMemoryReadBit),
	}
	vk.CmdPipelineBarrier(v.Handle,
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
		vk.DependencyFlags(0),
		1, []vk.MemoryBarrier{memoryBarrier}, 0, nil, 0, nil)

	if res := vk.EndCommandBuffer(v.Handle); res != vk.Success {
		err := fmt.Errorf("failed to end transfer command buffer")
		core.LogError(err.Error())
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (v *VulkanTransferRecorder) UpdateSubmitted() {
	v.State = COMMAND_BUFFER_STATE_SUBMITTED
}

func (v *VulkanTransferRecorder) Free() {
	vk.FreeCommandBuffers(v.context.Device.LogicalDevice, v.pool, 1, []vk.CommandBuffer{v.Handle})
	v.Handle = nil
	v.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}
