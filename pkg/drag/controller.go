// Package drag moves one label at a time with the pointer.
//
// The controller is a two-phase state machine, Idle and Dragging. It does not
// register pointer listeners itself; an adapter calls Begin, Move and End (or
// Cancel) from platform events and may use OnBegin/OnEnd to attach global
// move/release listeners only for the lifetime of a drag.
package drag

import (
	"math"
	"time"

	"github.com/menta2k/image-annotator/internal/clock"
	"github.com/menta2k/image-annotator/pkg/layout"
	"github.com/menta2k/image-annotator/pkg/types"
)

// Phase is the controller state
type Phase int

const (
	Idle Phase = iota
	Dragging
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	default:
		return "unknown"
	}
}

// Config holds the gesture thresholds
type Config struct {
	DeadZonePx   float64       `json:"dead_zone_px" toml:"dead_zone_px"`
	ClickMaxHold time.Duration `json:"click_max_hold" toml:"click_max_hold"`
}

// DefaultConfig returns the production thresholds
func DefaultConfig() Config {
	return Config{
		DeadZonePx:   4,
		ClickMaxHold: 200 * time.Millisecond,
	}
}

// Release describes a finished press
type Release struct {
	Index    int
	Moved    bool
	Held     time.Duration
	Canceled bool
}

// IsClick reports whether the press should count as an activation. Anything
// that turned into a drag, was held too long, or was canceled is not a click.
func (r Release) IsClick(cfg Config) bool {
	return !r.Canceled && !r.Moved && r.Held < cfg.ClickMaxHold
}

type session struct {
	index       int
	startOffset types.Point
	startPos    types.LabelPosition
	pressedAt   time.Time
	moved       bool
}

// Controller converts pointer movement into position updates on a State
type Controller struct {
	state  *layout.State
	clock  clock.Clock
	config Config
	active *session

	onBegin func(index int)
	onEnd   func(r Release)
}

// New creates a controller with default thresholds
func New(state *layout.State, clk clock.Clock) *Controller {
	return NewWithConfig(state, clk, DefaultConfig())
}

// NewWithConfig creates a controller with custom thresholds
func NewWithConfig(state *layout.State, clk clock.Clock, config Config) *Controller {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Controller{state: state, clock: clk, config: config}
}

// Config returns the gesture thresholds
func (c *Controller) Config() Config {
	return c.config
}

// OnBegin registers a hook called when a drag starts
func (c *Controller) OnBegin(fn func(index int)) { c.onBegin = fn }

// OnEnd registers a hook called when a drag is released or canceled
func (c *Controller) OnEnd(fn func(r Release)) { c.onEnd = fn }

// Phase returns the current phase
func (c *Controller) Phase() Phase {
	if c.active == nil {
		return Idle
	}
	return Dragging
}

// Active returns the index of the label being dragged
func (c *Controller) Active() (int, bool) {
	if c.active == nil {
		return 0, false
	}
	return c.active.index, true
}

// Begin starts dragging label index. The pointer is in container
// coordinates. A label without a position, or a second concurrent drag, is
// refused with layout.ErrNoPosition or layout.ErrDragActive.
func (c *Controller) Begin(index int, pointer types.Point, frame types.Frame) error {
	if c.active != nil {
		return layout.ErrDragActive
	}
	pos, ok := c.state.Position(index)
	if !ok {
		return layout.ErrNoPosition
	}
	if err := c.state.BeginDrag(index); err != nil {
		return err
	}

	c.active = &session{
		index:       index,
		startOffset: pointer.Sub(frame.Origin()),
		startPos:    pos,
		pressedAt:   c.clock.Now(),
	}
	if c.onBegin != nil {
		c.onBegin(index)
	}
	return nil
}

// Move follows the pointer. The offset relative to the frame is used so a
// frame that moved during the drag does not make the label jump. It returns
// the new position and false when no drag is active.
func (c *Controller) Move(pointer types.Point, frame types.Frame, bounds layout.Bounds) (types.LabelPosition, bool) {
	s := c.active
	if s == nil || frame.IsZero() {
		return types.LabelPosition{}, false
	}
	size, ok := c.state.Size(s.index)
	if !ok {
		return types.LabelPosition{}, false
	}

	delta := pointer.Sub(frame.Origin()).Sub(s.startOffset)
	if math.Hypot(delta.X, delta.Y) > c.config.DeadZonePx {
		s.moved = true
	}

	pos := bounds.ClampDrag(types.LabelPosition{
		Left: s.startPos.Left + delta.X/frame.Width*100,
		Top:  s.startPos.Top + delta.Y/frame.Height*100,
	}, size)
	if err := c.state.Move(s.index, pos); err != nil {
		return types.LabelPosition{}, false
	}
	return pos, true
}

// End releases the drag. The label keeps its last position.
func (c *Controller) End() (Release, bool) {
	return c.finish(false)
}

// Cancel resolves a drag whose pointer went away, e.g. when the surface
// lost the pointer capture. It always returns the controller to Idle.
func (c *Controller) Cancel() (Release, bool) {
	return c.finish(true)
}

func (c *Controller) finish(canceled bool) (Release, bool) {
	s := c.active
	if s == nil {
		return Release{}, false
	}
	c.active = nil
	c.state.EndDrag()

	r := Release{
		Index:    s.index,
		Moved:    s.moved,
		Held:     c.clock.Now().Sub(s.pressedAt),
		Canceled: canceled,
	}
	if c.onEnd != nil {
		c.onEnd(r)
	}
	return r, true
}

// Sync drops the session if the state no longer considers its label dragged,
// which happens when a relayout removed the label.
func (c *Controller) Sync() bool {
	if c.active == nil {
		return false
	}
	if i, ok := c.state.Dragging(); ok && i == c.active.index {
		return false
	}
	c.active = nil
	return true
}
