package testbed

import (
	"encoding/binary"
	"image"
	"math"

	vk "github.com/goki/vulkan"
	"golang.org/x/image/draw"

	"github.com/spaghettifunk/aurora/engine"
	"github.com/spaghettifunk/aurora/engine/containers"
	"github.com/spaghettifunk/aurora/engine/core"
	"github.com/spaghettifunk/aurora/engine/renderer"
	"github.com/spaghettifunk/aurora/engine/renderer/descriptors"
	"github.com/spaghettifunk/aurora/engine/renderer/vulkan"
)

const (
	textureSize     = 256
	meshBufferSize  = 4 * 1024 * 1024
	uniformSlotSize = 256
	uploadsPerFrame = 4
)

type TestGame struct {
	*engine.Game
}

// meshJob is a pending geometry upload. Jobs are drained a few per frame so
// the staging ring sees a steady stream of differently sized requests.
type meshJob struct {
	offset uint64
	data   []byte
}

type gameState struct {
	layout  *vulkan.VulkanDescriptorSetLayout
	sampler *vulkan.VulkanSampler
	texture *vulkan.VulkanImage

	uniformBuffer *vulkan.VulkanBuffer
	meshBuffer    *vulkan.VulkanBuffer

	pendingMeshes *containers.RingQueue[meshJob]

	frame uint64
}

func NewTestGame() *engine.Game {
	tg := &TestGame{
		Game: &engine.Game{
			ConfigPath: "config.toml",
			State:      &gameState{},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnShutdown = tg.Shutdown

	return tg.Game
}

func (g *TestGame) Initialize(r *renderer.Renderer) error {
	core.LogInfo("initializing testbed...")
	state := g.State.(*gameState)

	layout, err := r.CreateDescriptorSetLayout([]vulkan.VulkanLayoutBinding{
		{DescriptorType: vk.DescriptorTypeUniformBuffer, StageFlags: vk.ShaderStageVertexBit},
		{DescriptorType: vk.DescriptorTypeCombinedImageSampler, StageFlags: vk.ShaderStageFragmentBit},
	})
	if err != nil {
		return err
	}
	state.layout = layout

	uniformBuffer, err := r.CreateDeviceBuffer(16*uniformSlotSize, vk.BufferUsageUniformBufferBit)
	if err != nil {
		return err
	}
	state.uniformBuffer = uniformBuffer

	meshBuffer, err := r.CreateDeviceBuffer(meshBufferSize, vk.BufferUsageVertexBufferBit)
	if err != nil {
		return err
	}
	state.meshBuffer = meshBuffer

	texture, err := r.CreateTexture(textureSize, textureSize)
	if err != nil {
		return err
	}
	state.texture = texture

	sampler, err := r.CreateSampler()
	if err != nil {
		return err
	}
	state.sampler = sampler

	if err := r.UploadToTexture(texture, checkerboardRGBA(textureSize)); err != nil {
		return err
	}

	// Queue up geometry of growing sizes; a few of the later ones exceed the
	// default staging buffer and force the ring to grow.
	state.pendingMeshes = containers.NewRingQueue[meshJob](64)
	offset := uint64(0)
	for i := 0; i < 24; i++ {
		size := 1024 << uint(i%6)
		if offset+uint64(size) > meshBufferSize {
			break
		}
		if err := state.pendingMeshes.Enqueue(meshJob{
			offset: offset,
			data:   proceduralVertices(size, i),
		}); err != nil {
			return err
		}
		offset += uint64(size)
	}

	return nil
}

func (g *TestGame) Update(r *renderer.Renderer, deltaTime float64) error {
	state := g.State.(*gameState)
	state.frame++

	// Drain a few pending geometry uploads.
	for i := 0; i < uploadsPerFrame && !state.pendingMeshes.IsEmpty(); i++ {
		job, err := state.pendingMeshes.Dequeue()
		if err != nil {
			break
		}
		if err := r.UploadToBuffer(state.meshBuffer, job.offset, job.data); err != nil {
			return err
		}
	}

	// Refresh one uniform slot per frame. The slot index cycles, so descriptor
	// sets for slots not touched recently age out of the cache while the hot
	// ones stay resident.
	slot := state.frame % 16
	if err := r.UploadToBuffer(state.uniformBuffer, slot*uniformSlotSize, uniformData(state.frame, deltaTime)); err != nil {
		return err
	}

	bindings := []descriptors.Binding{
		descriptors.UniformBuffer(state.uniformBuffer, slot*uniformSlotSize, uniformSlotSize),
		descriptors.ImageSampler(state.texture, descriptors.ImageLayout(vk.ImageLayoutShaderReadOnlyOptimal), state.sampler),
	}
	if _, err := r.GetOrCreateDescriptorSet(state.layout, bindings); err != nil {
		return err
	}

	if state.frame%240 == 0 {
		cacheStats := r.CacheStats()
		uploadStats := r.UploadStats()
		core.LogInfo("frame %d: cache hits=%d misses=%d evictions=%d | uploaded=%d KiB buffers=%d retired=%d | fps=%.1f",
			state.frame,
			cacheStats.Hits, cacheStats.Misses, cacheStats.Evictions,
			uploadStats.BytesUploaded/1024, uploadStats.BuffersCreated, uploadStats.BuffersRetired,
			core.MetricsFPS())
	}

	return nil
}

func (g *TestGame) Shutdown(r *renderer.Renderer) error {
	core.LogInfo("shutting down testbed...")
	state := g.State.(*gameState)

	if state.sampler != nil {
		r.DestroySampler(state.sampler)
	}
	if state.texture != nil {
		r.DestroyTexture(state.texture)
	}
	if state.meshBuffer != nil {
		r.DestroyBuffer(state.meshBuffer)
	}
	if state.uniformBuffer != nil {
		r.DestroyBuffer(state.uniformBuffer)
	}
	if state.layout != nil {
		r.DestroyDescriptorSetLayout(state.layout)
	}
	return nil
}

// checkerboardRGBA renders a checkerboard into an NRGBA image and converts it
// to the tightly-packed RGBA layout image uploads expect.
func checkerboardRGBA(size int) []byte {
	src := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			i := src.PixOffset(x, y)
			if (x/32+y/32)%2 == 0 {
				src.Pix[i+0] = 230
				src.Pix[i+1] = 230
				src.Pix[i+2] = 230
			} else {
				src.Pix[i+0] = 40
				src.Pix[i+1] = 40
				src.Pix[i+2] = 160
			}
			src.Pix[i+3] = 255
		}
	}

	dst := image.NewRGBA(src.Bounds())
	draw.Draw(dst, dst.Bounds(), src, image.Point{}, draw.Src)
	return dst.Pix
}

// proceduralVertices fills size bytes with a deterministic pattern standing in
// for real geometry.
func proceduralVertices(size, seed int) []byte {
	data := make([]byte, size)
	for i := 0; i < size; i += 4 {
		binary.LittleEndian.PutUint32(data[i:], uint32(i*31+seed*7919))
	}
	return data
}

// uniformData packs a small per-frame uniform block.
func uniformData(frame uint64, deltaTime float64) []byte {
	data := make([]byte, uniformSlotSize)
	binary.LittleEndian.PutUint64(data[0:], frame)
	binary.LittleEndian.PutUint64(data[8:], math.Float64bits(deltaTime))
	return data
}
