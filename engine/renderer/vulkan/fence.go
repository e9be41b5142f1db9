package vulkan

import (
	"fmt"
	"math"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/aurora/engine/core"
)

type VulkanFence struct {
	Handle     vk.Fence
	IsSignaled bool

	context *VulkanContext
}

func NewVulkanFence(context *VulkanContext, createSignaled bool) (*VulkanFence, error) {
	fence := &VulkanFence{
		// Make sure to signal the fence if required.
		IsSignaled: createSignaled,
		context:    context,
	}

	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if fence.IsSignaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var pFence vk.Fence
	if res := vk.CreateFence(context.Device.LogicalDevice, &fenceCreateInfo, context.Allocator, &pFence); res != vk.Success {
		err := fmt.Errorf("failed to create fence")
		core.LogError(err.Error())
		return nil, err
	}
	fence.Handle = pFence
	return fence, nil
}

// Wait blocks until the fence signals. A timeoutNs of zero waits forever.
// A timeout or a lost device is fatal for the frame ring and reported as such.
func (vf *VulkanFence) Wait(timeoutNs uint64) error {
	if vf.IsSignaled {
		// If already signaled, do not wait.
		return nil
	}
	if timeoutNs == 0 {
		timeoutNs = math.MaxUint64
	}

	result := vk.WaitForFences(vf.context.Device.LogicalDevice, 1, []vk.Fence{vf.Handle}, vk.True, timeoutNs)
	switch result {
	case vk.Success:
		vf.IsSignaled = true
		return nil
	case vk.Timeout:
		core.LogWarn("vk_fence_wait - Timed out")
		return core.ErrFenceTimeout
	case vk.ErrorDeviceLost:
		core.LogError("vk_fence_wait - VK_ERROR_DEVICE_LOST.")
		return core.ErrDeviceLost
	default:
		err := fmt.Errorf("vk_fence_wait failed with result `%s`", VulkanResultString(result))
		core.LogError(err.Error())
		return err
	}
}

func (vf *VulkanFence) Reset() error {
	if vf.IsSignaled {
		if res := vk.ResetFences(vf.context.Device.LogicalDevice, 1, []vk.Fence{vf.Handle}); res != vk.Success {
			err := fmt.Errorf("failed to reset fence")
			core.LogError(err.Error())
			return err
		}
		vf.IsSignaled = false
	}
	return nil
}

func (vf *VulkanFence) Destroy() {
	if vf.Handle != vk.NullFence {
		vk.DestroyFence(vf.context.Device.LogicalDevice, vf.Handle, vf.context.Allocator)
		vf.Handle = vk.NullFence
	}
	vf.IsSignaled = false
}
