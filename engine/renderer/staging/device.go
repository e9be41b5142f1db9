package staging

// Device is the slice of the GPU abstraction the uploader needs: creating
// mapped staging memory and the per-slot recording/synchronization objects.
// The Vulkan backend implements it; tests supply an in-memory fake.
type Device interface {
	// CreateStagingBuffer creates a CPU-writable, GPU-readable buffer of the
	// given size, mapped for the lifetime of the returned Memory.
	CreateStagingBuffer(size uint64) (Memory, error)
	// NewRecorder creates a transfer command recorder for one ring slot.
	NewRecorder() (Recorder, error)
	// NewFence creates a fence, optionally created in the signaled state.
	NewFence(signaled bool) (Fence, error)
}

// Memory is one mapped staging buffer.
type Memory interface {
	// Write copies data into the mapped region at offset. The caller
	// guarantees offset+len(data) fits the buffer.
	Write(offset uint64, data []byte)
	Destroy()
}

// Recorder records the copy commands of one ring slot. Begin and End bracket a
// frame's worth of copies; the recorder may be re-recorded once the fence of a
// submission using it has been waited on.
type Recorder interface {
	Begin() error
	CopyBuffer(src Memory, srcOffset uint64, dst interface{}, dstOffset, size uint64)
	CopyImage(src Memory, srcOffset uint64, dst interface{}, width, height uint32)
	End() error
}

// Queue submits one recorder's commands, signaling fence on completion.
type Queue interface {
	Submit(recorder Recorder, signal Fence) error
}

// Fence is a GPU→CPU completion signal.
type Fence interface {
	// Wait blocks until the fence signals or timeoutNs elapses. A timeout is
	// an error; the uploader treats it as fatal.
	Wait(timeoutNs uint64) error
	Reset() error
	Destroy()
}
