package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/aurora/engine/core"
	"github.com/spaghettifunk/aurora/engine/renderer/staging"
)

// VulkanQueue wraps a device queue for upload submissions. It implements
// staging.Queue.
type VulkanQueue struct {
	Handle      vk.Queue
	FamilyIndex uint32
}

func (q *VulkanQueue) Submit(recorder staging.Recorder, signal staging.Fence) error {
	transfer, ok := recorder.(*VulkanTransferRecorder)
	if !ok {
		return fmt.Errorf("queue received a foreign recorder %T", recorder)
	}
	fence, ok := signal.(*VulkanFence)
	if !ok {
		return fmt.Errorf("queue received a foreign fence %T", signal)
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{transfer.Handle},
	}

	if res := vk.QueueSubmit(q.Handle, 1, []vk.SubmitInfo{submitInfo}, fence.Handle); res != vk.Success {
		err := fmt.Errorf("queue submission failed: %s", VulkanResultString(res))
		core.LogError(err.Error())
		return err
	}
	transfer.UpdateSubmitted()

	return nil
}
