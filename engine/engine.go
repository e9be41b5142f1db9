package engine

import (
	"fmt"

	"github.com/spaghettifunk/aurora/engine/config"
	"github.com/spaghettifunk/aurora/engine/core"
	"github.com/spaghettifunk/aurora/engine/renderer"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

type Engine struct {
	currentStage Stage
	gameInstance *Game
	isRunning    bool
	renderer     *renderer.Renderer
	cfg          *config.Config
	watcher      *config.Watcher
	clock        *core.Clock
	lastTime     float64
}

func New(g *Game) (*Engine, error) {
	if g == nil {
		return nil, fmt.Errorf("engine needs a game instance")
	}

	cfg, err := config.Load(g.ConfigPath)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		cfg:          cfg,
		clock:        core.NewClock(),
		renderer:     renderer.New(cfg.Renderer, cfg.Renderer.DebugChecks),
		isRunning:    true,
		lastTime:     0,
	}, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing

	if err := core.MetricsInitialize(); err != nil {
		return err
	}

	if e.gameInstance.ConfigPath != "" {
		watcher, err := config.Watch(e.gameInstance.ConfigPath)
		if err != nil {
			// The watcher is a convenience; losing it is not fatal.
			core.LogWarn("config watcher unavailable: %s", err.Error())
		} else {
			e.watcher = watcher
		}
	}

	if err := e.renderer.Initialize(e.cfg.AppName); err != nil {
		return err
	}

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(e.renderer); err != nil {
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.isRunning {
		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := (currentTime - e.lastTime) / 1e9

		if err := e.gameInstance.FnUpdate(e.renderer, delta); err != nil {
			core.LogFatal("Game update failed, shutting down.")
			e.isRunning = false
			break
		}

		// Submit this frame's uploads and rotate the frame rings. This is
		// where the engine blocks if the CPU runs too far ahead.
		if err := e.renderer.EndFrame(); err != nil {
			core.LogError("frame failed: %s", err.Error())
			e.isRunning = false
			return err
		}

		core.MetricsUpdate(delta)
		e.lastTime = currentTime
	}

	return nil
}

// Stop asks the frame loop to exit after the current frame. Safe to call from
// another goroutine; teardown itself happens in Shutdown once Run returns.
func (e *Engine) Stop() {
	e.isRunning = false
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	e.isRunning = false

	if e.gameInstance.FnShutdown != nil {
		if err := e.gameInstance.FnShutdown(e.renderer); err != nil {
			core.LogError("game shutdown failed: %s", err.Error())
		}
	}

	if e.watcher != nil {
		if err := e.watcher.Close(); err != nil {
			core.LogError("config watcher close failed: %s", err.Error())
		}
		e.watcher = nil
	}

	return e.renderer.Shutdown()
}
