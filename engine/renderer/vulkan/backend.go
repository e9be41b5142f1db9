package vulkan

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/aurora/engine/core"
	"github.com/spaghettifunk/aurora/engine/renderer/staging"
)

// VulkanBackend owns the instance and device and hands out the primitives the
// resource managers are built from. It implements staging.Device. No surface
// or swapchain is created; only the upload and descriptor paths need a GPU.
type VulkanBackend struct {
	context *VulkanContext

	debug bool
}

func New(debug bool) *VulkanBackend {
	return &VulkanBackend{
		context: &VulkanContext{
			Allocator: nil,
			Device:    &VulkanDevice{},
		},
		debug: debug,
	}
}

func (vb *VulkanBackend) Initialize(appName string) error {
	// GLFW carries the Vulkan loader lookup; no window is created.
	if err := glfw.Init(); err != nil {
		core.LogError("failed to initialize GLFW: %s", err)
		return err
	}

	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		core.LogFatal("GetInstanceProcAddress is nil")
		return fmt.Errorf("GetInstanceProcAddress is nil")
	}
	vk.SetGetInstanceProcAddr(procAddr)

	if err := vk.Init(); err != nil {
		core.LogFatal("failed to initialize vk: %s", err)
		return err
	}

	// TODO: custom allocator.
	vb.context.Allocator = nil

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("Aurora Engine"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	requiredExtensions := []string{}
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
	}

	if vb.debug {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugUtilsExtensionName, vk.ExtDebugReportExtensionName)
		core.LogInfo("Required extensions:")
		for i := 0; i < len(requiredExtensions); i++ {
			core.LogInfo(requiredExtensions[i])
		}
	}

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)

	// Validation layers. Only enabled on debug builds.
	requiredValidationLayerNames := []string{}
	if vb.debug {
		core.LogInfo("Validation layers enabled. Enumerating...")
		requiredValidationLayerNames = []string{"VK_LAYER_KHRONOS_validation"}

		if runtime.GOOS == "darwin" {
			createInfo.Flags |= 1
		}

		var availableLayerCount uint32
		if res := vk.EnumerateInstanceLayerProperties(&availableLayerCount, nil); res != vk.Success {
			return fmt.Errorf("failed to enumerate instance layers: %s", VulkanResultString(res))
		}
		availableLayers := make([]vk.LayerProperties, availableLayerCount)
		if res := vk.EnumerateInstanceLayerProperties(&availableLayerCount, availableLayers); res != vk.Success {
			return fmt.Errorf("failed to enumerate instance layers: %s", VulkanResultString(res))
		}

		for i := range requiredValidationLayerNames {
			core.LogInfo("Searching for layer: %s...", requiredValidationLayerNames[i])
			found := false
			for j := range availableLayers {
				availableLayers[j].Deref()
				if requiredValidationLayerNames[i] == VulkanTrimString(availableLayers[j].LayerName[:]) {
					found = true
					core.LogInfo("Found.")
					break
				}
			}
			if !found {
				err := fmt.Errorf("required validation layer is missing: %s", requiredValidationLayerNames[i])
				core.LogFatal(err.Error())
				return err
			}
		}
		core.LogInfo("All required validation layers are present.")
	}

	createInfo.EnabledLayerCount = uint32(len(requiredValidationLayerNames))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(requiredValidationLayerNames)

	if res := vk.CreateInstance(&createInfo, vb.context.Allocator, &vb.context.Instance); res != vk.Success {
		err := fmt.Errorf("failed in creating the Vulkan Instance with error `%s`", VulkanResultString(res))
		core.LogError(err.Error())
		return err
	}
	if err := vk.InitInstance(vb.context.Instance); err != nil {
		core.LogError(err.Error())
		return err
	}
	core.LogInfo("Vulkan Instance created.")

	if vb.debug {
		core.LogDebug("Creating Vulkan debugger...")
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit),
			PfnCallback: dbgCallbackFunc,
			PNext:       nil,
		}

		var dbg vk.DebugReportCallback
		if err := vk.Error(vk.CreateDebugReportCallback(vb.context.Instance, &debugCreateInfo, nil, &dbg)); err != nil {
			core.LogError("vk.CreateDebugReportCallback failed with %s", err)
			return err
		}
		vb.context.debugMessenger = dbg
		core.LogDebug("Vulkan debugger created.")
	}

	if err := DeviceCreate(vb.context); err != nil {
		core.LogError("Failed to create device!")
		return err
	}

	return nil
}

// Context exposes the underlying context for resource constructors.
func (vb *VulkanBackend) Context() *VulkanContext {
	return vb.context
}

// TransferQueue returns the queue upload submissions go to.
func (vb *VulkanBackend) TransferQueue() *VulkanQueue {
	return &VulkanQueue{
		Handle:      vb.context.Device.TransferQueue,
		FamilyIndex: uint32(vb.context.Device.TransferQueueIndex),
	}
}

func (vb *VulkanBackend) CreateStagingBuffer(size uint64) (staging.Memory, error) {
	return NewVulkanStagingBuffer(vb.context, size)
}

func (vb *VulkanBackend) NewRecorder() (staging.Recorder, error) {
	return NewVulkanTransferRecorder(vb.context, vb.context.Device.TransferCommandPool)
}

func (vb *VulkanBackend) NewFence(signaled bool) (staging.Fence, error) {
	return NewVulkanFence(vb.context, signaled)
}

// WaitIdle blocks until the GPU has finished all submitted work.
func (vb *VulkanBackend) WaitIdle() {
	if vb.context.Device.LogicalDevice != nil {
		vk.DeviceWaitIdle(vb.context.Device.LogicalDevice)
	}
}

// Shutdown destroys everything in the opposite order of creation. Resource
// managers built on top of the backend must be destroyed first.
func (vb *VulkanBackend) Shutdown() error {
	vb.WaitIdle()

	DeviceDestroy(vb.context)

	if vb.debug && vb.context.debugMessenger != vk.NullDebugReportCallback {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(vb.context.Instance, vb.context.debugMessenger, vb.context.Allocator)
		vb.context.debugMessenger = vk.NullDebugReportCallback
	}

	core.LogDebug("Destroying Vulkan instance...")
	vk.DestroyInstance(vb.context.Instance, vb.context.Allocator)
	vb.context.Instance = nil

	glfw.Terminate()

	return nil
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportInformationBit) != 0:
		core.LogInfo("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportDebugBit) != 0:
		core.LogInfo("DEBUG: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogInfo("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
