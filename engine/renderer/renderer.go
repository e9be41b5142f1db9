package renderer

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/aurora/engine/config"
	"github.com/spaghettifunk/aurora/engine/core"
	"github.com/spaghettifunk/aurora/engine/renderer/descriptors"
	"github.com/spaghettifunk/aurora/engine/renderer/staging"
	"github.com/spaghettifunk/aurora/engine/renderer/vulkan"
)

// Renderer wires the descriptor cache and the staging uploader to the Vulkan
// backend and drives both through the per-frame lifecycle. The cache history
// size and the uploader's frames-ahead bound are the same number, so an entry
// evicted by the cache is already past the GPU's reach.
type Renderer struct {
	backend       *vulkan.VulkanBackend
	pool          *vulkan.VulkanDescriptorPool
	cache         *descriptors.Cache[vk.DescriptorSet]
	uploader      *staging.Uploader
	transferQueue *vulkan.VulkanQueue

	cfg   config.RendererConfig
	debug bool
}

func New(cfg config.RendererConfig, debug bool) *Renderer {
	return &Renderer{
		backend: vulkan.New(debug),
		cfg:     cfg,
		debug:   debug,
	}
}

func (r *Renderer) Initialize(appName string) error {
	if err := r.backend.Initialize(appName); err != nil {
		return err
	}

	pool, err := vulkan.NewVulkanDescriptorPool(r.backend.Context(), r.cfg.MaxDescriptorSets, r.cfg.DescriptorsPerType)
	if err != nil {
		return err
	}
	r.pool = pool

	cacheOptions := []descriptors.CacheOption[vk.DescriptorSet]{}
	if r.cfg.DebugChecks {
		cacheOptions = append(cacheOptions, descriptors.WithDebugChecks[vk.DescriptorSet]())
	}
	cache, err := descriptors.NewCache[vk.DescriptorSet](pool, r.cfg.FramesInFlight, cacheOptions...)
	if err != nil {
		return err
	}
	r.cache = cache

	uploader, err := staging.NewUploader(r.backend, staging.UploaderConfig{
		MaxFramesAhead:    uint64(r.cfg.FramesInFlight),
		DefaultBufferSize: r.cfg.DefaultStagingBufferSize,
		Alignment:         r.cfg.StagingAlignment,
		FenceTimeoutNs:    r.cfg.UploadFenceTimeoutMS * 1_000_000,
	})
	if err != nil {
		return err
	}
	r.uploader = uploader
	r.transferQueue = r.backend.TransferQueue()

	core.LogInfo("Renderer initialized with %d frames in flight.", r.cfg.FramesInFlight)
	return nil
}

// GetOrCreateDescriptorSet returns the set for the given bindings, building
// and writing it only when the contents were not seen recently.
func (r *Renderer) GetOrCreateDescriptorSet(layout descriptors.Layout, bindings []descriptors.Binding) (vk.DescriptorSet, error) {
	return r.cache.GetOrCreate(layout, bindings)
}

// UploadToBuffer stages data for a GPU-only buffer. The copy lands when the
// frame ends.
func (r *Renderer) UploadToBuffer(dst *vulkan.VulkanBuffer, dstOffset uint64, data []byte) error {
	return r.uploader.EnqueueBufferUpload(dst, dstOffset, data)
}

// UploadToTexture stages tightly-packed RGBA pixels for a GPU-only image.
func (r *Renderer) UploadToTexture(dst *vulkan.VulkanImage, pixels []byte) error {
	return r.uploader.EnqueueImageUpload(dst, dst.Width, dst.Height, pixels)
}

// EndFrame submits the frame's uploads and rotates both rings. Blocks until
// the GPU has finished the frame that last used the newly selected slot.
func (r *Renderer) EndFrame() error {
	if err := r.uploader.SubmitAndAdvance(r.transferQueue); err != nil {
		return fmt.Errorf("frame submission failed: %w", err)
	}
	r.cache.NextFrame()
	return nil
}

func (r *Renderer) CreateDeviceBuffer(size uint64, usage vk.BufferUsageFlagBits) (*vulkan.VulkanBuffer, error) {
	return vulkan.NewVulkanDeviceBuffer(r.backend.Context(), size, usage)
}

func (r *Renderer) CreateTexture(width, height uint32) (*vulkan.VulkanImage, error) {
	return vulkan.NewVulkanTexture(r.backend.Context(), width, height)
}

func (r *Renderer) CreateSampler() (*vulkan.VulkanSampler, error) {
	return vulkan.NewVulkanSampler(r.backend.Context())
}

func (r *Renderer) CreateDescriptorSetLayout(bindings []vulkan.VulkanLayoutBinding) (*vulkan.VulkanDescriptorSetLayout, error) {
	return vulkan.NewVulkanDescriptorSetLayout(r.backend.Context(), bindings)
}

func (r *Renderer) DestroyBuffer(buffer *vulkan.VulkanBuffer) {
	buffer.Destroy()
}

func (r *Renderer) DestroyTexture(image *vulkan.VulkanImage) {
	vulkan.DestroyTexture(r.backend.Context(), image)
}

func (r *Renderer) DestroySampler(sampler *vulkan.VulkanSampler) {
	vulkan.DestroySampler(r.backend.Context(), sampler)
}

func (r *Renderer) DestroyDescriptorSetLayout(layout *vulkan.VulkanDescriptorSetLayout) {
	vulkan.DestroyDescriptorSetLayout(r.backend.Context(), layout)
}

// CacheStats returns the descriptor cache counters.
func (r *Renderer) CacheStats() descriptors.CacheStats {
	return r.cache.Stats()
}

// UploadStats returns the uploader counters.
func (r *Renderer) UploadStats() staging.UploadStats {
	return r.uploader.Stats()
}

// Shutdown tears everything down in reverse creation order. The device is
// idled first so no ring slot is still in flight.
func (r *Renderer) Shutdown() error {
	r.backend.WaitIdle()

	if r.uploader != nil {
		r.uploader.Destroy()
		r.uploader = nil
	}
	if r.cache != nil {
		r.cache.Destroy()
		r.cache = nil
	}
	r.pool = nil

	return r.backend.Shutdown()
}
