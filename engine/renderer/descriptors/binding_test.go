package descriptors_test

import (
	"math/rand"
	"testing"

	"github.com/spaghettifunk/aurora/engine/renderer/descriptors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashIsOrderSensitive(t *testing.T) {
	a := descriptors.UniformBuffer(fakeResource(1), 0, 64)
	b := descriptors.StorageBuffer(fakeResource(2), 0, 128)

	h1 := descriptors.HashBindings([]descriptors.Binding{a, b})
	h2 := descriptors.HashBindings([]descriptors.Binding{b, a})
	assert.NotEqual(t, h1, h2)
}

func TestHashDistinguishesKinds(t *testing.T) {
	uniform := descriptors.UniformBuffer(fakeResource(1), 0, 64)
	dynamic := descriptors.DynamicUniformBuffer(fakeResource(1), 0, 64)
	storage := descriptors.StorageBuffer(fakeResource(1), 0, 64)

	h1 := descriptors.HashBindings([]descriptors.Binding{uniform})
	h2 := descriptors.HashBindings([]descriptors.Binding{dynamic})
	h3 := descriptors.HashBindings([]descriptors.Binding{storage})
	assert.NotEqual(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.NotEqual(t, h2, h3)
}

func TestHashDistinguishesImageBindings(t *testing.T) {
	sampler := descriptors.ImageSampler(fakeResource(5), 2, fakeResource(6))
	attachment := descriptors.InputAttachment(fakeResource(5), 2)

	assert.NotEqual(t,
		descriptors.HashBindings([]descriptors.Binding{sampler}),
		descriptors.HashBindings([]descriptors.Binding{attachment}))

	otherSampler := descriptors.ImageSampler(fakeResource(5), 2, fakeResource(7))
	assert.NotEqual(t,
		descriptors.HashBindings([]descriptors.Binding{sampler}),
		descriptors.HashBindings([]descriptors.Binding{otherSampler}))
}

func TestHashIsStable(t *testing.T) {
	bindings := []descriptors.Binding{
		descriptors.UniformBuffer(fakeResource(1), 64, 256),
		descriptors.ImageSampler(fakeResource(2), 5, fakeResource(3)),
		descriptors.InputAttachment(fakeResource(4), 2),
	}
	require.Equal(t, descriptors.HashBindings(bindings), descriptors.HashBindings(bindings))
}

// randomBinding draws field values from a small domain so that the collision
// test actually generates duplicates of contents, which must then agree on the
// hash, while distinct contents must not collide.
func randomBinding(rng *rand.Rand) descriptors.Binding {
	switch rng.Intn(5) {
	case 0:
		return descriptors.UniformBuffer(fakeResource(rng.Uint64()), uint64(rng.Intn(1<<20)), uint64(rng.Intn(1<<16)))
	case 1:
		return descriptors.DynamicUniformBuffer(fakeResource(rng.Uint64()), uint64(rng.Intn(1<<20)), uint64(rng.Intn(1<<16)))
	case 2:
		return descriptors.StorageBuffer(fakeResource(rng.Uint64()), uint64(rng.Intn(1<<20)), uint64(rng.Intn(1<<16)))
	case 3:
		return descriptors.ImageSampler(fakeResource(rng.Uint64()), descriptors.ImageLayout(rng.Intn(8)), fakeResource(rng.Uint64()))
	default:
		return descriptors.InputAttachment(fakeResource(rng.Uint64()), descriptors.ImageLayout(rng.Intn(8)))
	}
}

func canonical(bindings []descriptors.Binding) string {
	out := make([]byte, 0, len(bindings)*64)
	for _, b := range bindings {
		out = append(out, byte(b.Kind))
		for _, v := range []uint64{
			resourceID(b.Buffer), b.Offset, b.Range,
			resourceID(b.Image), uint64(b.Layout), resourceID(b.Sampler),
		} {
			for i := 0; i < 8; i++ {
				out = append(out, byte(v>>(8*i)))
			}
		}
	}
	return string(out)
}

func resourceID(r descriptors.Resource) uint64 {
	if r == nil {
		return 0
	}
	return r.ResourceID()
}

func TestHashCollisionsOverRandomizedBindingSets(t *testing.T) {
	const samples = 100000

	rng := rand.New(rand.NewSource(1))
	seen := make(map[uint64]string, samples)

	for i := 0; i < samples; i++ {
		bindings := make([]descriptors.Binding, 1+rng.Intn(4))
		for j := range bindings {
			bindings[j] = randomBinding(rng)
		}

		key := canonical(bindings)
		hash := descriptors.HashBindings(bindings)
		if prev, ok := seen[hash]; ok {
			require.Equal(t, prev, key, "hash collision between distinct binding sets")
			continue
		}
		seen[hash] = key
	}
}
