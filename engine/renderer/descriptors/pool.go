package descriptors

// Layout identifies the descriptor-set layout a binding set conforms to. It is
// supplied by the caller and opaque to the cache; the pool implementation knows
// how to resolve it back to an API object.
type Layout interface {
	LayoutID() uint64
}

// Pool is the backing allocator for built descriptor sets. S is the handle type
// of a ready-to-bind set; for the Vulkan backend it is vk.DescriptorSet, tests
// use plain integers.
//
// Allocate must return core.ErrPoolExhausted (possibly wrapped) when the pool
// is out of capacity. WriteBindings writes one descriptor per binding, batched
// into a single flush where the API allows it. Release returns a set to the
// pool for reuse. Destroy tears the whole pool down and must be idempotent.
type Pool[S comparable] interface {
	Allocate(layout Layout) (S, error)
	WriteBindings(set S, bindings []Binding) error
	Release(set S) error
	Destroy() error
}
