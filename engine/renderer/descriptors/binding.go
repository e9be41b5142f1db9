package descriptors

import (
	"encoding/binary"
	"hash/fnv"
)

// BindingKind discriminates the Binding union. The set of kinds is closed; the
// pool implementation switches over it when building descriptor writes.
type BindingKind uint8

const (
	BINDING_UNIFORM_BUFFER BindingKind = iota
	BINDING_DYNAMIC_UNIFORM_BUFFER
	BINDING_STORAGE_BUFFER
	BINDING_IMAGE_SAMPLER
	BINDING_INPUT_ATTACHMENT
)

// Resource is any GPU object that can appear in a binding. The ID must be
// stable for the object's lifetime and never reused for another object, so
// that two binding sets referencing the same object always hash equal and two
// referencing different objects never do.
type Resource interface {
	ResourceID() uint64
}

// ImageLayout is the numeric image layout the image is expected to be in at
// bind time. Opaque to the cache, meaningful to the pool.
type ImageLayout uint32

// Binding describes one bound resource slot. Slot index is positional: the
// i-th Binding in a set binds at slot i.
type Binding struct {
	Kind BindingKind

	// Buffer kinds.
	Buffer Resource
	Offset uint64
	Range  uint64

	// Image kinds.
	Image   Resource
	Layout  ImageLayout
	Sampler Resource
}

func UniformBuffer(buffer Resource, offset, size uint64) Binding {
	return Binding{Kind: BINDING_UNIFORM_BUFFER, Buffer: buffer, Offset: offset, Range: size}
}

func DynamicUniformBuffer(buffer Resource, offset, size uint64) Binding {
	return Binding{Kind: BINDING_DYNAMIC_UNIFORM_BUFFER, Buffer: buffer, Offset: offset, Range: size}
}

func StorageBuffer(buffer Resource, offset, size uint64) Binding {
	return Binding{Kind: BINDING_STORAGE_BUFFER, Buffer: buffer, Offset: offset, Range: size}
}

func ImageSampler(image Resource, layout ImageLayout, sampler Resource) Binding {
	return Binding{Kind: BINDING_IMAGE_SAMPLER, Image: image, Layout: layout, Sampler: sampler}
}

func InputAttachment(image Resource, layout ImageLayout) Binding {
	return Binding{Kind: BINDING_INPUT_ATTACHMENT, Image: image, Layout: layout}
}

// HashBindings folds every field of every binding, in order, through FNV-1a.
// Order is significant: the same bindings in a different slot order are a
// different set.
func HashBindings(bindings []Binding) uint64 {
	hasher := fnv.New64a()
	var buf [8]byte

	writeU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		hasher.Write(buf[:])
	}
	writeResource := func(r Resource) {
		if r == nil {
			writeU64(0)
			return
		}
		writeU64(r.ResourceID())
	}

	for _, b := range bindings {
		hasher.Write([]byte{byte(b.Kind)})
		switch b.Kind {
		case BINDING_UNIFORM_BUFFER, BINDING_DYNAMIC_UNIFORM_BUFFER, BINDING_STORAGE_BUFFER:
			writeResource(b.Buffer)
			writeU64(b.Offset)
			writeU64(b.Range)
		case BINDING_IMAGE_SAMPLER:
			writeResource(b.Image)
			writeU64(uint64(b.Layout))
			writeResource(b.Sampler)
		case BINDING_INPUT_ATTACHMENT:
			writeResource(b.Image)
			writeU64(uint64(b.Layout))
		}
	}
	return hasher.Sum64()
}
