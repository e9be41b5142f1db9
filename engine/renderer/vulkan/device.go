package vulkan

import (
	"fmt"
	"runtime"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/aurora/engine/core"
)

type VulkanDevice struct {
	PhysicalDevice     vk.PhysicalDevice
	LogicalDevice      vk.Device
	GraphicsQueueIndex int32
	TransferQueueIndex int32

	GraphicsQueue vk.Queue
	TransferQueue vk.Queue

	TransferCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	Memory     vk.PhysicalDeviceMemoryProperties
}

type VulkanPhysicalDeviceRequirements struct {
	Graphics             bool
	Transfer             bool
	DeviceExtensionNames []string
	SamplerAnisotropy    bool
	DiscreteGPU          bool
}

type VulkanPhysicalDeviceQueueFamilyInfo struct {
	GraphicsFamilyIndex uint32
	TransferFamilyIndex uint32
}

func DeviceCreate(context *VulkanContext) error {
	if err := SelectPhysicalDevice(context); err != nil {
		return err
	}

	core.LogInfo("Creating logical device...")

	// NOTE: Do not create additional queues for shared indices.
	transferSharesGraphicsQueue := context.Device.GraphicsQueueIndex == context.Device.TransferQueueIndex
	indexCount := 1
	if !transferSharesGraphicsQueue {
		indexCount++
	}
	indices := make([]uint32, indexCount)
	indices[0] = uint32(context.Device.GraphicsQueueIndex)
	if !transferSharesGraphicsQueue {
		indices[1] = uint32(context.Device.TransferQueueIndex)
	}

	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, indexCount)
	for i := 0; i < indexCount; i++ {
		queueCreateInfos[i].SType = vk.StructureTypeDeviceQueueCreateInfo
		queueCreateInfos[i].QueueFamilyIndex = indices[i]
		queueCreateInfos[i].QueueCount = 1
		queueCreateInfos[i].Flags = 0
		queueCreateInfos[i].PNext = nil
		var queuePriority float32 = 1.0
		queueCreateInfos[i].PQueuePriorities = []float32{queuePriority}
	}

	deviceFeatures := vk.PhysicalDeviceFeatures{}
	deviceFeatures.SamplerAnisotropy = vk.True

	// VK_KHR_portability_subset must be enabled when the implementation
	// advertises it (MoltenVK).
	portabilityRequired := false
	var availableExtensionCount uint32 = 0
	if res := vk.EnumerateDeviceExtensionProperties(context.Device.PhysicalDevice, "", &availableExtensionCount, nil); res != vk.Success {
		err := fmt.Errorf("error in EnumerateDeviceExtensionProperties")
		core.LogError(err.Error())
		return err
	}
	if availableExtensionCount != 0 {
		availableExtensions := make([]vk.ExtensionProperties, availableExtensionCount)
		if res := vk.EnumerateDeviceExtensionProperties(context.Device.PhysicalDevice, "", &availableExtensionCount, availableExtensions); res != vk.Success {
			err := fmt.Errorf("error in EnumerateDeviceExtensionProperties")
			core.LogError(err.Error())
			return err
		}
		for i := 0; i < int(availableExtensionCount); i++ {
			availableExtensions[i].Deref()
			if VulkanTrimString(availableExtensions[i].ExtensionName[:]) == "VK_KHR_portability_subset" {
				core.LogInfo("Adding required extension 'VK_KHR_portability_subset'.")
				portabilityRequired = true
				break
			}
		}
	}

	extensionNames := []string{}
	if portabilityRequired {
		extensionNames = append(extensionNames, "VK_KHR_portability_subset")
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(indexCount),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{deviceFeatures},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
		// Deprecated and ignored, so pass nothing.
		EnabledLayerCount:   0,
		PpEnabledLayerNames: nil,
	}

	if res := vk.CreateDevice(
		context.Device.PhysicalDevice,
		&deviceCreateInfo,
		context.Allocator,
		&context.Device.LogicalDevice); res != vk.Success {
		err := fmt.Errorf("failed to create logical device: %s", VulkanResultString(res))
		core.LogError(err.Error())
		return err
	}
	core.LogInfo("Logical device created.")

	vk.GetDeviceQueue(
		context.Device.LogicalDevice,
		uint32(context.Device.GraphicsQueueIndex),
		0,
		&context.Device.GraphicsQueue)

	vk.GetDeviceQueue(
		context.Device.LogicalDevice,
		uint32(context.Device.TransferQueueIndex),
		0,
		&context.Device.TransferQueue)
	core.LogInfo("Queues obtained.")

	// Upload recorders re-begin their command buffers every ring rotation, so
	// the pool must allow individual resets.
	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(context.Device.TransferQueueIndex),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	if res := vk.CreateCommandPool(
		context.Device.LogicalDevice,
		&poolCreateInfo,
		context.Allocator,
		&context.Device.TransferCommandPool); res != vk.Success {
		err := fmt.Errorf("failed to create transfer command pool: %s", VulkanResultString(res))
		core.LogError(err.Error())
		return err
	}
	core.LogInfo("Transfer command pool created.")

	return nil
}

func DeviceDestroy(context *VulkanContext) {
	context.Device.GraphicsQueue = nil
	context.Device.TransferQueue = nil

	core.LogInfo("Destroying command pools...")
	vk.DestroyCommandPool(
		context.Device.LogicalDevice,
		context.Device.TransferCommandPool,
		context.Allocator)

	core.LogInfo("Destroying logical device...")
	if context.Device.LogicalDevice != nil {
		vk.DestroyDevice(context.Device.LogicalDevice, context.Allocator)
		context.Device.LogicalDevice = nil
	}

	// Physical devices are not destroyed.
	core.LogInfo("Releasing physical device resources...")
	context.Device.PhysicalDevice = nil
	context.Device.GraphicsQueueIndex = -1
	context.Device.TransferQueueIndex = -1
}

func SelectPhysicalDevice(context *VulkanContext) error {
	var physicalDeviceCount uint32 = 0
	if res := vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, nil); res != vk.Success {
		return fmt.Errorf("failed to enumerate physical devices: %s", VulkanResultString(res))
	}
	if physicalDeviceCount == 0 {
		err := fmt.Errorf("no devices which support Vulkan were found")
		core.LogError(err.Error())
		return err
	}

	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if res := vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, physicalDevices); res != vk.Success {
		return fmt.Errorf("failed to enumerate physical devices: %s", VulkanResultString(res))
	}

	for i := 0; i < int(physicalDeviceCount); i++ {
		properties := vk.PhysicalDeviceProperties{}
		vk.GetPhysicalDeviceProperties(physicalDevices[i], &properties)
		properties.Deref()

		features := vk.PhysicalDeviceFeatures{}
		vk.GetPhysicalDeviceFeatures(physicalDevices[i], &features)
		features.Deref()

		memory := vk.PhysicalDeviceMemoryProperties{}
		vk.GetPhysicalDeviceMemoryProperties(physicalDevices[i], &memory)
		memory.Deref()

		requirements := VulkanPhysicalDeviceRequirements{
			Graphics:          true,
			Transfer:          true,
			SamplerAnisotropy: true,
			DiscreteGPU:       true,
		}
		if runtime.GOOS == "darwin" {
			requirements.DiscreteGPU = false
		}

		queueInfo := VulkanPhysicalDeviceQueueFamilyInfo{}
		if !PhysicalDeviceMeetsRequirements(physicalDevices[i], &properties, &features, &requirements, &queueInfo) {
			continue
		}

		core.LogInfo("Selected device: '%s'.", VulkanTrimString(properties.DeviceName[:]))
		switch properties.DeviceType {
		default:
			fallthrough
		case vk.PhysicalDeviceTypeOther:
			core.LogInfo("GPU type is Unknown.")
		case vk.PhysicalDeviceTypeIntegratedGpu:
			core.LogInfo("GPU type is Integrated.")
		case vk.PhysicalDeviceTypeDiscreteGpu:
			core.LogInfo("GPU type is Discrete.")
		case vk.PhysicalDeviceTypeVirtualGpu:
			core.LogInfo("GPU type is Virtual.")
		case vk.PhysicalDeviceTypeCpu:
			core.LogInfo("GPU type is CPU.")
		}

		core.LogInfo(
			"GPU Driver version: %d.%d.%d",
			vk.Version.Major(vk.Version(properties.DriverVersion)),
			vk.Version.Minor(vk.Version(properties.DriverVersion)),
			vk.Version.Patch(vk.Version(properties.DriverVersion)),
		)
		core.LogInfo(
			"Vulkan API version: %d.%d.%d",
			vk.Version.Major(vk.Version(properties.ApiVersion)),
			vk.Version.Minor(vk.Version(properties.ApiVersion)),
			vk.Version.Patch(vk.Version(properties.ApiVersion)),
		)

		for j := 0; j < int(memory.MemoryHeapCount); j++ {
			memory.MemoryHeaps[j].Deref()
			memorySizeGib := memory.MemoryHeaps[j].Size / 1024.0 / 1024.0 / 1024.0
			if vk.MemoryHeapFlagBits(memory.MemoryHeaps[j].Flags)&vk.MemoryHeapDeviceLocalBit > 0 {
				core.LogInfo("Local GPU memory: %d GiB", memorySizeGib)
			} else {
				core.LogInfo("Shared System memory: %d GiB", memorySizeGib)
			}
		}

		context.Device.PhysicalDevice = physicalDevices[i]
		context.Device.GraphicsQueueIndex = int32(queueInfo.GraphicsFamilyIndex)
		context.Device.TransferQueueIndex = int32(queueInfo.TransferFamilyIndex)

		// Keep a copy of properties, features and memory info for later use.
		context.Device.Properties = properties
		context.Device.Features = features
		context.Device.Memory = memory
		break
	}

	if context.Device.PhysicalDevice == nil {
		err := fmt.Errorf("no physical devices were found which meet the requirements")
		core.LogError(err.Error())
		return err
	}

	core.LogInfo("Physical device selected.")
	return nil
}

func PhysicalDeviceMeetsRequirements(device vk.PhysicalDevice, properties *vk.PhysicalDeviceProperties, features *vk.PhysicalDeviceFeatures, requirements *VulkanPhysicalDeviceRequirements, outQueueInfo *VulkanPhysicalDeviceQueueFamilyInfo) bool {
	graphicsFound := false
	transferFound := false

	if requirements.DiscreteGPU {
		if properties.DeviceType != vk.PhysicalDeviceTypeDiscreteGpu {
			core.LogInfo("Device is not a discrete GPU, and one is required. Skipping.")
			return false
		}
	}

	var queueFamilyCount uint32 = 0
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)

	// Prefer a dedicated transfer family: the fewer capabilities a family
	// advertises, the better the score.
	core.LogInfo("Graphics | Transfer | Name")
	minTransferScore := 255
	for i := 0; i < int(queueFamilyCount); i++ {
		queueFamilies[i].Deref()
		currentTransferScore := 0

		if vk.QueueFlagBits(queueFamilies[i].QueueFlags)&vk.QueueGraphicsBit > 0 {
			outQueueInfo.GraphicsFamilyIndex = uint32(i)
			graphicsFound = true
			currentTransferScore++
		}

		if queueFamilies[i].QueueFlags&vk.QueueFlags(vk.QueueComputeBit) > 0 {
			currentTransferScore++
		}

		if vk.QueueFlagBits(queueFamilies[i].QueueFlags)&vk.QueueTransferBit > 0 {
			if currentTransferScore <= minTransferScore {
				minTransferScore = currentTransferScore
				outQueueInfo.TransferFamilyIndex = uint32(i)
				transferFound = true
			}
		}
	}

	core.LogInfo("       %t |        %t | %s",
		graphicsFound,
		transferFound,
		VulkanTrimString(properties.DeviceName[:]))

	if (requirements.Graphics && !graphicsFound) || (requirements.Transfer && !transferFound) {
		return false
	}
	core.LogInfo("Device meets queue requirements.")
	core.LogDebug("Graphics Family Index: %d", outQueueInfo.GraphicsFamilyIndex)
	core.LogDebug("Transfer Family Index: %d", outQueueInfo.TransferFamilyIndex)

	if requirements.DeviceExtensionNames != nil {
		var availableExtensionCount uint32 = 0
		if res := vk.EnumerateDeviceExtensionProperties(device, "", &availableExtensionCount, nil); res != vk.Success {
			return false
		}
		if availableExtensionCount != 0 {
			availableExtensions := make([]vk.ExtensionProperties, availableExtensionCount)
			if res := vk.EnumerateDeviceExtensionProperties(device, "", &availableExtensionCount, availableExtensions); res != vk.Success {
				return false
			}
			for _, required := range requirements.DeviceExtensionNames {
				found := false
				for j := 0; j < int(availableExtensionCount); j++ {
					availableExtensions[j].Deref()
					if required == VulkanTrimString(availableExtensions[j].ExtensionName[:]) {
						found = true
						break
					}
				}
				if !found {
					core.LogInfo("Required extension not found: '%s', skipping device.", required)
					return false
				}
			}
		}
	}

	if requirements.SamplerAnisotropy && features.SamplerAnisotropy == vk.False {
		core.LogInfo("Device does not support samplerAnisotropy, skipping.")
		return false
	}
	return true
}
