// Package engine provides the exploration simulation and the fixed-rate tick
// loop that drives it.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInterval is the base tick period (~60 ticks per second).
const DefaultInterval = 16 * time.Millisecond

// pausePoll is how often a paused engine checks for a speed change.
const pausePoll = 100 * time.Millisecond

// Engine drives the simulation forward on its own goroutine.
type Engine struct {
	Interval time.Duration // Base tick interval

	// OnTick runs every tick with the engine's tick counter (monotonic,
	// never resets, independent of simulation resets).
	OnTick func(tick uint64)

	tick    atomic.Uint64
	running atomic.Bool

	speedMu sync.Mutex
	speed   float64 // Multiplier: 1.0 = real-time, 0 = paused

	stopOnce sync.Once
	stop     chan struct{}
}

// NewEngine creates an engine ticking at interval (DefaultInterval if zero).
func NewEngine(interval time.Duration) *Engine {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Engine{
		Interval: interval,
		speed:    1.0,
		stop:     make(chan struct{}),
	}
}

// Run starts the tick loop. Blocks until ctx is done or Stop is called.
func (e *Engine) Run(ctx context.Context) {
	e.running.Store(true)
	defer e.running.Store(false)
	slog.Info("simulation engine started", "tick", e.Ticks(), "interval", e.Interval, "speed", e.Speed())

	for {
		speed := e.Speed()
		if speed <= 0 {
			// Paused; sleep briefly and check again.
			if !e.wait(ctx, pausePoll) {
				break
			}
			continue
		}

		start := time.Now()
		e.step()

		// Sleep for the remainder of the tick interval, adjusted for speed.
		target := time.Duration(float64(e.Interval) / speed)
		remaining := target - time.Since(start)
		if remaining < 0 {
			remaining = 0
		}
		if !e.wait(ctx, remaining) {
			break
		}
	}

	slog.Info("simulation engine stopped", "tick", e.Ticks())
}

// Stop halts the tick loop. Safe to call more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stop) })
}

// Ticks returns the number of ticks executed so far.
func (e *Engine) Ticks() uint64 {
	return e.tick.Load()
}

// Running reports whether Run is active.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 {
	e.speedMu.Lock()
	defer e.speedMu.Unlock()
	return e.speed
}

// SetSpeed changes the speed multiplier; 0 or less pauses the engine.
func (e *Engine) SetSpeed(speed float64) {
	e.speedMu.Lock()
	e.speed = speed
	e.speedMu.Unlock()
	slog.Info("engine speed changed", "speed", speed)
}

// wait sleeps for d and reports whether the loop should continue.
func (e *Engine) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-e.stop:
		return false
	case <-timer.C:
		return true
	}
}

// step advances the simulation by one tick.
func (e *Engine) step() {
	t := e.tick.Add(1)
	if e.OnTick != nil {
		e.OnTick(t)
	}
}
