package engine

import (
	"github.com/spaghettifunk/aurora/engine/renderer"
)

// Game is the application hook set the engine drives. The renderer handed to
// every callback is fully initialized by the time FnInitialize runs.
type Game struct {
	ConfigPath string
	State      interface{}

	FnInitialize Initialize
	FnUpdate     Update
	FnShutdown   Shutdown
}

type Initialize func(r *renderer.Renderer) error
type Update func(r *renderer.Renderer, deltaTime float64) error
type Shutdown func(r *renderer.Renderer) error
