package staging_test

import (
	"testing"

	"github.com/spaghettifunk/aurora/engine/core"
	"github.com/spaghettifunk/aurora/engine/renderer/staging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMemory struct {
	size      uint64
	data      []byte
	destroyed bool
}

func (m *fakeMemory) Write(offset uint64, data []byte) {
	copy(m.data[offset:], data)
}

func (m *fakeMemory) Destroy() { m.destroyed = true }

type copyCommand struct {
	src       staging.Memory
	srcOffset uint64
	dst       interface{}
	size      uint64
}

type fakeRecorder struct {
	recording bool
	begins    int
	ends      int
	copies    []copyCommand
}

func (r *fakeRecorder) Begin() error {
	r.recording = true
	r.begins++
	r.copies = nil
	return nil
}

func (r *fakeRecorder) CopyBuffer(src staging.Memory, srcOffset uint64, dst interface{}, dstOffset, size uint64) {
	r.copies = append(r.copies, copyCommand{src: src, srcOffset: srcOffset, dst: dst, size: size})
}

func (r *fakeRecorder) CopyImage(src staging.Memory, srcOffset uint64, dst interface{}, width, height uint32) {
	r.copies = append(r.copies, copyCommand{src: src, srcOffset: srcOffset, dst: dst, size: uint64(width) * uint64(height) * 4})
}

func (r *fakeRecorder) End() error {
	r.recording = false
	r.ends++
	return nil
}

type fakeFence struct {
	signaled bool
	waits    int
	waitErr  error
}

func (f *fakeFence) Wait(timeoutNs uint64) error {
	f.waits++
	if f.waitErr != nil {
		return f.waitErr
	}
	f.signaled = true
	return nil
}

func (f *fakeFence) Reset() error {
	f.signaled = false
	return nil
}

func (f *fakeFence) Destroy() {}

type fakeDevice struct {
	memories  []*fakeMemory
	recorders []*fakeRecorder
	fences    []*fakeFence
}

func (d *fakeDevice) CreateStagingBuffer(size uint64) (staging.Memory, error) {
	m := &fakeMemory{size: size, data: make([]byte, size)}
	d.memories = append(d.memories, m)
	return m, nil
}

func (d *fakeDevice) NewRecorder() (staging.Recorder, error) {
	r := &fakeRecorder{}
	d.recorders = append(d.recorders, r)
	return r, nil
}

func (d *fakeDevice) NewFence(signaled bool) (staging.Fence, error) {
	f := &fakeFence{signaled: signaled}
	d.fences = append(d.fences, f)
	return f, nil
}

type fakeQueue struct {
	submissions []staging.Recorder
}

func (q *fakeQueue) Submit(recorder staging.Recorder, signal staging.Fence) error {
	q.submissions = append(q.submissions, recorder)
	return nil
}

func newTestUploader(t *testing.T, defaultSize uint64) (*staging.Uploader, *fakeDevice, *fakeQueue) {
	t.Helper()
	device := &fakeDevice{}
	uploader, err := staging.NewUploader(device, staging.UploaderConfig{
		MaxFramesAhead:    3,
		DefaultBufferSize: defaultSize,
		Alignment:         4,
	})
	require.NoError(t, err)
	return uploader, device, &fakeQueue{}
}

func TestUploadsShareOneBufferWithinCapacity(t *testing.T) {
	uploader, device, _ := newTestUploader(t, 1024)

	dst := "vertex-buffer"
	require.NoError(t, uploader.EnqueueBufferUpload(dst, 0, make([]byte, 100)))
	require.NoError(t, uploader.EnqueueBufferUpload(dst, 100, make([]byte, 100)))

	require.Len(t, device.memories, 1)

	recorder := device.recorders[0]
	require.Len(t, recorder.copies, 2)
	assert.Equal(t, uint64(0), recorder.copies[0].srcOffset)
	// Cursor is aligned, so the second range starts exactly after the first.
	assert.Equal(t, uint64(100), recorder.copies[1].srcOffset)
}

func TestOversizedRequestCreatesLargerBuffer(t *testing.T) {
	uploader, device, _ := newTestUploader(t, 256)

	require.NoError(t, uploader.EnqueueBufferUpload("dst", 0, make([]byte, 100)))
	require.NoError(t, uploader.EnqueueBufferUpload("dst", 0, make([]byte, 4096)))

	require.Len(t, device.memories, 2)
	assert.Equal(t, uint64(256), device.memories[0].size)
	assert.Equal(t, uint64(4096), device.memories[1].size)

	stats := uploader.Stats()
	assert.Equal(t, uint64(2), stats.BuffersCreated)
}

func TestSmallRequestsStillFitOlderBuffer(t *testing.T) {
	uploader, device, _ := newTestUploader(t, 256)

	require.NoError(t, uploader.EnqueueBufferUpload("dst", 0, make([]byte, 100)))
	require.NoError(t, uploader.EnqueueBufferUpload("dst", 0, make([]byte, 4096)))

	// 152 bytes remain in the first buffer (100 used, aligned to 104).
	require.NoError(t, uploader.EnqueueBufferUpload("dst", 0, make([]byte, 64)))
	require.Len(t, device.memories, 2, "smaller request must reuse the first buffer")
}

func TestCursorResetsAfterMaxFramesAhead(t *testing.T) {
	uploader, device, queue := newTestUploader(t, 256)

	require.NoError(t, uploader.EnqueueBufferUpload("dst", 0, make([]byte, 200)))

	// Rotate the full ring; afterwards the GPU can no longer read the staged
	// bytes and the cursor must reset rather than forcing a second buffer.
	for i := 0; i < 3; i++ {
		require.NoError(t, uploader.SubmitAndAdvance(queue))
	}

	require.NoError(t, uploader.EnqueueBufferUpload("dst", 0, make([]byte, 200)))
	require.Len(t, device.memories, 1)

	// The reclaimed range is reused from the start.
	lastRecorder := device.recorders[0]
	require.NotEmpty(t, lastRecorder.copies)
	assert.Equal(t, uint64(0), lastRecorder.copies[len(lastRecorder.copies)-1].srcOffset)
}

func TestCursorDoesNotResetWhileFramesInFlight(t *testing.T) {
	uploader, device, queue := newTestUploader(t, 256)

	require.NoError(t, uploader.EnqueueBufferUpload("dst", 0, make([]byte, 200)))
	require.NoError(t, uploader.SubmitAndAdvance(queue))

	// Only one frame has passed; the first buffer may still be read by the
	// GPU, so this request needs a second buffer.
	require.NoError(t, uploader.EnqueueBufferUpload("dst", 0, make([]byte, 200)))
	require.Len(t, device.memories, 2)
}

func TestSubmitAndAdvanceWaitsOnNextSlotFence(t *testing.T) {
	uploader, device, queue := newTestUploader(t, 256)

	require.NoError(t, uploader.EnqueueBufferUpload("dst", 0, make([]byte, 16)))
	require.NoError(t, uploader.SubmitAndAdvance(queue))

	require.Len(t, queue.submissions, 1)
	assert.Same(t, device.recorders[0], queue.submissions[0].(*fakeRecorder))

	// The newly selected slot's fence is waited on, and its recorder re-begun.
	assert.Equal(t, 1, device.fences[1].waits)
	assert.Equal(t, 1, device.recorders[1].begins)
	assert.True(t, device.recorders[1].recording)
}

func TestFenceTimeoutIsFatal(t *testing.T) {
	device := &fakeDevice{}
	uploader, err := staging.NewUploader(device, staging.UploaderConfig{
		MaxFramesAhead:    2,
		DefaultBufferSize: 256,
	})
	require.NoError(t, err)

	device.fences[1].waitErr = core.ErrFenceTimeout

	err = uploader.SubmitAndAdvance(&fakeQueue{})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrFenceTimeout)
}

func TestRetiredBuffersDestroyedAfterSafeDelay(t *testing.T) {
	uploader, device, queue := newTestUploader(t, 256)

	require.NoError(t, uploader.EnqueueBufferUpload("dst", 0, make([]byte, 200)))

	// Rotate until the first buffer is fully reclaimed, then grow: the small
	// buffer is retired, not destroyed immediately.
	for i := 0; i < 3; i++ {
		require.NoError(t, uploader.SubmitAndAdvance(queue))
	}
	require.NoError(t, uploader.EnqueueBufferUpload("dst", 0, make([]byte, 4096)))

	first := device.memories[0]
	assert.False(t, first.destroyed, "retired buffer must outlive in-flight frames")
	assert.Equal(t, uint64(1), uploader.Stats().BuffersRetired)

	for i := 0; i < 3; i++ {
		require.NoError(t, uploader.SubmitAndAdvance(queue))
	}
	assert.True(t, first.destroyed)
}

func TestDestroyReleasesEverythingOnce(t *testing.T) {
	uploader, device, _ := newTestUploader(t, 256)

	require.NoError(t, uploader.EnqueueBufferUpload("dst", 0, make([]byte, 16)))

	uploader.Destroy()
	uploader.Destroy()

	for _, m := range device.memories {
		assert.True(t, m.destroyed)
	}
	assert.ErrorIs(t, uploader.EnqueueBufferUpload("dst", 0, make([]byte, 1)), core.ErrUploaderDestroyed)
}

func TestImageUploadValidatesPixelCount(t *testing.T) {
	uploader, _, _ := newTestUploader(t, 1024)

	err := uploader.EnqueueImageUpload("image", 4, 4, make([]byte, 10))
	require.Error(t, err)

	require.NoError(t, uploader.EnqueueImageUpload("image", 4, 4, make([]byte, 64)))
	assert.Equal(t, uint64(64), uploader.Stats().BytesUploaded)
}
