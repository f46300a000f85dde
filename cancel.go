package smashtest

import "sync/atomic"

// CancelToken is the cooperative stop/pause signal consulted at every
// suspension point named in spec §5: awaiting a code block, awaiting
// a hook, and at branch/step boundaries. Pause is resumable; stop is
// terminal (spec GLOSSARY).
type CancelToken struct {
	stopped atomic.Bool
	paused  atomic.Bool
}

// Stop sets the terminal cancellation signal.
func (c *CancelToken) Stop() { c.stopped.Store(true) }

// IsStopped reports whether Stop has been called.
func (c *CancelToken) IsStopped() bool { return c.stopped.Load() }

// Pause sets the resumable suspension signal.
func (c *CancelToken) Pause() { c.paused.Store(true) }

// Resume clears the suspension signal.
func (c *CancelToken) Resume() { c.paused.Store(false) }

// IsPaused reports whether the token is currently paused.
func (c *CancelToken) IsPaused() bool { return c.paused.Load() }
