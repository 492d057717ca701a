// Package geometry resolves where an image is actually drawn inside its
// container. Labels are laid out in percent of that rectangle, so every
// downstream stage waits for a frame before it runs.
package geometry

import (
	"sync"

	"github.com/menta2k/image-annotator/pkg/types"
)

// FrameProvider exposes the current image frame. The boolean is false while
// no frame is known yet.
type FrameProvider interface {
	Frame() (types.Frame, bool)
}

// Listener is called with the new frame after every change
type Listener func(frame types.Frame)

// Tracker keeps the latest container and natural image sizes and derives the
// rendered frame from them. It is safe for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	fit       Fit
	container types.Size
	natural   types.Size
	frame     types.Frame
	ready     bool
	listeners []Listener
}

// NewTracker creates a tracker using the given fit mode
func NewTracker(fit Fit) *Tracker {
	return &Tracker{fit: fit}
}

// OnChange registers a listener for frame changes
func (t *Tracker) OnChange(fn Listener) {
	t.mu.Lock()
	t.listeners = append(t.listeners, fn)
	t.mu.Unlock()
}

// ImageLoaded records the natural size of a decoded image
func (t *Tracker) ImageLoaded(natural types.Size) bool {
	t.mu.Lock()
	t.natural = natural
	return t.recomputeLocked()
}

// Resize records a new container size
func (t *Tracker) Resize(container types.Size) bool {
	t.mu.Lock()
	t.container = container
	return t.recomputeLocked()
}

// SetFit switches the fit mode
func (t *Tracker) SetFit(fit Fit) bool {
	t.mu.Lock()
	t.fit = fit
	return t.recomputeLocked()
}

// Reset forgets the image, e.g. when a new photo is about to load
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.natural = types.Size{}
	t.frame = types.Frame{}
	t.ready = false
	t.mu.Unlock()
}

// Frame implements FrameProvider
func (t *Tracker) Frame() (types.Frame, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frame, t.ready
}

// Container returns the last known container size
func (t *Tracker) Container() types.Size {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.container
}

// recomputeLocked must be called with t.mu held; it releases the lock before
// notifying listeners. It reports whether the frame changed.
func (t *Tracker) recomputeLocked() bool {
	frame, ok := Compute(t.container, t.natural, t.fit)
	changed := ok != t.ready || (ok && !sameFrame(frame, t.frame))
	t.frame, t.ready = frame, ok
	listeners := append([]Listener(nil), t.listeners...)
	t.mu.Unlock()

	if changed && ok {
		for _, fn := range listeners {
			fn(frame)
		}
	}
	return changed
}
