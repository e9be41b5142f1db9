package staging

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spaghettifunk/aurora/engine/core"
)

// UploadStats counts uploader activity since construction.
type UploadStats struct {
	BytesUploaded  uint64
	BuffersCreated uint64
	BuffersRetired uint64
}

type stagingBuffer struct {
	id            uuid.UUID
	memory        Memory
	pos           uint64
	size          uint64
	lastUsedFrame uint64
}

// Uploader manages a pool of staging buffers used to move data into GPU-only
// buffers and images. Allocation is a bump within a buffer; a whole buffer is
// recycled once no frame that might still be in flight has touched it.
//
// A single thread drives the uploader. SubmitAndAdvance must be called exactly
// once per frame, after all of that frame's enqueues.
type Uploader struct {
	device         Device
	buffers        []*stagingBuffer
	frameCounter   uint64
	maxFramesAhead uint64
	defaultSize    uint64
	alignment      uint64
	fenceTimeoutNs uint64

	recorders []Recorder
	fences    []Fence
	// retired[slot] holds buffers replaced during that slot's frame; they are
	// destroyed once the slot's fence has been waited on.
	retired [][]Memory

	stats     UploadStats
	destroyed bool
}

// UploaderConfig carries the configuration subset the uploader needs.
type UploaderConfig struct {
	// MaxFramesAhead is how many frames the CPU may run ahead of the GPU. Must
	// match the engine's frames-in-flight count.
	MaxFramesAhead uint64
	// DefaultBufferSize is the lower bound for newly created staging buffers.
	DefaultBufferSize uint64
	// Alignment is applied to every allocation offset. Power of two.
	Alignment uint64
	// FenceTimeoutNs bounds the per-frame fence wait. Zero means no bound.
	FenceTimeoutNs uint64
}

// NewUploader creates an Uploader with one recorder and one fence per ring
// slot. Fences start signaled so the first rotation through the ring does not
// wait on work that was never submitted; slot 0 is reset and begun immediately,
// mirroring the frame loop's steady state.
func NewUploader(device Device, cfg UploaderConfig) (*Uploader, error) {
	if cfg.MaxFramesAhead == 0 {
		return nil, fmt.Errorf("uploader max frames ahead must be positive")
	}
	if cfg.DefaultBufferSize == 0 {
		return nil, fmt.Errorf("uploader default buffer size must be positive")
	}
	if cfg.Alignment == 0 {
		cfg.Alignment = 1
	}

	u := &Uploader{
		device:         device,
		maxFramesAhead: cfg.MaxFramesAhead,
		defaultSize:    cfg.DefaultBufferSize,
		alignment:      cfg.Alignment,
		fenceTimeoutNs: cfg.FenceTimeoutNs,
		recorders:      make([]Recorder, cfg.MaxFramesAhead),
		fences:         make([]Fence, cfg.MaxFramesAhead),
		retired:        make([][]Memory, cfg.MaxFramesAhead),
	}

	for i := uint64(0); i < cfg.MaxFramesAhead; i++ {
		recorder, err := device.NewRecorder()
		if err != nil {
			u.teardown()
			return nil, fmt.Errorf("failed to create upload recorder: %w", err)
		}
		u.recorders[i] = recorder

		fence, err := device.NewFence(true)
		if err != nil {
			u.teardown()
			return nil, fmt.Errorf("failed to create upload fence: %w", err)
		}
		u.fences[i] = fence
	}

	if err := u.fences[0].Reset(); err != nil {
		u.teardown()
		return nil, err
	}
	if err := u.recorders[0].Begin(); err != nil {
		u.teardown()
		return nil, err
	}

	return u, nil
}

func (u *Uploader) slot() uint64 {
	return u.frameCounter % u.maxFramesAhead
}

// findStagingBuffer returns the index of a buffer with size free bytes after
// cursor alignment, creating one when none qualifies. A buffer untouched for a
// full ring rotation can no longer be read by in-flight GPU work, so its cursor
// resets before the capacity check.
func (u *Uploader) findStagingBuffer(size uint64) (int, error) {
	for i, sb := range u.buffers {
		if u.frameCounter-sb.lastUsedFrame >= u.maxFramesAhead {
			sb.pos = 0
		}

		pos := core.Align(sb.pos, u.alignment)
		if sb.size >= pos && sb.size-pos >= size {
			sb.pos = pos
			return i, nil
		}
	}

	// No staging buffer with enough capacity; create a new one.
	newSize := max(size, u.defaultSize)
	memory, err := u.device.CreateStagingBuffer(newSize)
	if err != nil {
		return 0, fmt.Errorf("failed to create staging buffer of %d bytes: %w", newSize, err)
	}

	sb := &stagingBuffer{
		id:     uuid.New(),
		memory: memory,
		size:   newSize,
	}
	u.buffers = append(u.buffers, sb)
	u.stats.BuffersCreated++
	core.LogDebug("created staging buffer %s (%d bytes)", sb.id.String(), newSize)

	// Growing past the default size makes fully-reclaimed smaller buffers dead
	// weight; retire them into the current slot so they are destroyed once the
	// GPU is provably done with them.
	if newSize > u.defaultSize {
		u.retireSmallerThan(newSize)
	}

	return len(u.buffers) - 1, nil
}

func (u *Uploader) retireSmallerThan(size uint64) {
	slot := u.slot()
	kept := u.buffers[:0]
	for _, sb := range u.buffers {
		if sb.size < size && u.frameCounter-sb.lastUsedFrame >= u.maxFramesAhead {
			u.retired[slot] = append(u.retired[slot], sb.memory)
			u.stats.BuffersRetired++
			core.LogDebug("retired staging buffer %s (%d bytes)", sb.id.String(), sb.size)
			continue
		}
		kept = append(kept, sb)
	}
	u.buffers = kept
}

// allocate reserves size bytes and returns the owning buffer and byte offset.
func (u *Uploader) allocate(size uint64) (*stagingBuffer, uint64, error) {
	index, err := u.findStagingBuffer(size)
	if err != nil {
		return nil, 0, err
	}

	sb := u.buffers[index]
	offset := core.Align(sb.pos, u.alignment)
	sb.pos = offset + size
	sb.lastUsedFrame = u.frameCounter
	return sb, offset, nil
}

// EnqueueBufferUpload copies data into staging memory and records a copy into
// dst at dstOffset. The copy executes when this frame's commands are submitted.
func (u *Uploader) EnqueueBufferUpload(dst interface{}, dstOffset uint64, data []byte) error {
	if u.destroyed {
		return core.ErrUploaderDestroyed
	}
	if len(data) == 0 {
		return nil
	}

	size := uint64(len(data))
	sb, offset, err := u.allocate(size)
	if err != nil {
		return err
	}

	sb.memory.Write(offset, data)
	u.recorders[u.slot()].CopyBuffer(sb.memory, offset, dst, dstOffset, size)
	u.stats.BytesUploaded += size
	return nil
}

// EnqueueImageUpload copies tightly-packed RGBA pixels into staging memory and
// records an image copy. Any previous contents of the image are discarded.
func (u *Uploader) EnqueueImageUpload(dst interface{}, width, height uint32, pixels []byte) error {
	if u.destroyed {
		return core.ErrUploaderDestroyed
	}

	size := uint64(width) * uint64(height) * 4
	if uint64(len(pixels)) < size {
		return fmt.Errorf("image upload needs %d bytes, got %d", size, len(pixels))
	}

	sb, offset, err := u.allocate(size)
	if err != nil {
		return err
	}

	sb.memory.Write(offset, pixels[:size])
	u.recorders[u.slot()].CopyImage(sb.memory, offset, dst, width, height)
	u.stats.BytesUploaded += size
	return nil
}

// SubmitAndAdvance submits this frame's copy commands, then advances to the
// next ring slot and blocks until that slot's previous submission has finished
// on the GPU. The wait is deliberate backpressure: it caps how far the CPU can
// run ahead, and it is the only blocking call in the subsystem.
func (u *Uploader) SubmitAndAdvance(queue Queue) error {
	if u.destroyed {
		return core.ErrUploaderDestroyed
	}

	slot := u.slot()
	if err := u.recorders[slot].End(); err != nil {
		return fmt.Errorf("failed to end upload recording: %w", err)
	}
	if err := queue.Submit(u.recorders[slot], u.fences[slot]); err != nil {
		return fmt.Errorf("%w: upload submission failed: %s", core.ErrDeviceLost, err.Error())
	}

	u.frameCounter++
	slot = u.slot()

	if err := u.fences[slot].Wait(u.fenceTimeoutNs); err != nil {
		return fmt.Errorf("upload fence wait for slot %d: %w", slot, err)
	}
	if err := u.fences[slot].Reset(); err != nil {
		return err
	}
	if err := u.recorders[slot].Begin(); err != nil {
		return fmt.Errorf("failed to begin upload recording: %w", err)
	}

	// The fence proves the GPU is done with everything retired in this slot.
	for _, memory := range u.retired[slot] {
		memory.Destroy()
	}
	u.retired[slot] = u.retired[slot][:0]

	return nil
}

// Stats returns a snapshot of the uploader counters.
func (u *Uploader) Stats() UploadStats {
	return u.stats
}

// Destroy releases every staging buffer, recorder and fence. The caller must
// guarantee the GPU is idle. Safe to call more than once.
func (u *Uploader) Destroy() {
	if u.destroyed {
		return
	}
	u.destroyed = true
	u.teardown()
}

func (u *Uploader) teardown() {
	for _, fence := range u.fences {
		if fence != nil {
			fence.Destroy()
		}
	}
	u.fences = nil
	u.recorders = nil

	for slot := range u.retired {
		for _, memory := range u.retired[slot] {
			memory.Destroy()
		}
		u.retired[slot] = nil
	}

	for _, sb := range u.buffers {
		sb.memory.Destroy()
	}
	u.buffers = nil
}
