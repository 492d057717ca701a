package layout

import (
	"errors"

	"github.com/menta2k/image-annotator/pkg/types"
)

var (
	// ErrNoPosition is returned when a label without an initial position is dragged
	ErrNoPosition = errors.New("label has no position")
	// ErrDragActive is returned when another label is already being dragged
	ErrDragActive = errors.New("another label is being dragged")
	// ErrNotOwner is returned when a write comes from a stage that does not own the label
	ErrNotOwner = errors.New("label is not owned by the caller")
	// ErrUnknownLabel is returned for indices without a measured size
	ErrUnknownLabel = errors.New("unknown label")
)

const noDrag = -1

// State holds label sizes and positions. Write access is tagged: while idle
// the layout stages may place any label; while a label is dragged only the
// drag owner may move it, and layout writes to that index are refused.
type State struct {
	sizes     map[int]types.LabelSize
	positions map[int]types.LabelPosition
	dragging  int
}

// NewState creates an empty, idle state
func NewState() *State {
	return &State{
		sizes:     make(map[int]types.LabelSize),
		positions: make(map[int]types.LabelPosition),
		dragging:  noDrag,
	}
}

// Reset replaces all sizes and drops every position except that of the label
// being dragged, which stays under the drag owner's control.
func (s *State) Reset(sizes map[int]types.LabelSize) {
	kept, keep := s.positions[s.dragging]

	s.sizes = make(map[int]types.LabelSize, len(sizes))
	for i, sz := range sizes {
		s.sizes[i] = sz
	}
	s.positions = make(map[int]types.LabelPosition, len(sizes))
	if s.dragging != noDrag {
		if _, ok := s.sizes[s.dragging]; ok && keep {
			s.positions[s.dragging] = kept
		} else {
			s.dragging = noDrag
		}
	}
}

// Size returns the measured size of a label
func (s *State) Size(i int) (types.LabelSize, bool) {
	sz, ok := s.sizes[i]
	return sz, ok
}

// Position returns the position of a label
func (s *State) Position(i int) (types.LabelPosition, bool) {
	p, ok := s.positions[i]
	return p, ok
}

// Rect returns the box a positioned label occupies
func (s *State) Rect(i int) (types.Rect, bool) {
	sz, ok := s.sizes[i]
	if !ok {
		return types.Rect{}, false
	}
	p, ok := s.positions[i]
	if !ok {
		return types.Rect{}, false
	}
	return p.Rect(sz), true
}

// Len returns the number of measured labels
func (s *State) Len() int {
	return len(s.sizes)
}

// Place sets the initial position of a label. It refuses labels without a
// size and the label currently being dragged.
func (s *State) Place(i int, pos types.LabelPosition) error {
	if _, ok := s.sizes[i]; !ok {
		return ErrUnknownLabel
	}
	if i == s.dragging {
		return ErrNotOwner
	}
	s.positions[i] = pos
	return nil
}

// BeginDrag makes i the single dragging label
func (s *State) BeginDrag(i int) error {
	if s.dragging != noDrag {
		return ErrDragActive
	}
	if _, ok := s.Rect(i); !ok {
		return ErrNoPosition
	}
	s.dragging = i
	return nil
}

// Move updates the position of the dragging label
func (s *State) Move(i int, pos types.LabelPosition) error {
	if s.dragging == noDrag || i != s.dragging {
		return ErrNotOwner
	}
	s.positions[i] = pos
	return nil
}

// EndDrag returns the state to idle
func (s *State) EndDrag() {
	s.dragging = noDrag
}

// Dragging returns the index of the dragging label, if any
func (s *State) Dragging() (int, bool) {
	return s.dragging, s.dragging != noDrag
}

// Positions returns a copy of all positions
func (s *State) Positions() map[int]types.LabelPosition {
	out := make(map[int]types.LabelPosition, len(s.positions))
	for i, p := range s.positions {
		out[i] = p
	}
	return out
}

// Sizes returns a copy of all sizes
func (s *State) Sizes() map[int]types.LabelSize {
	out := make(map[int]types.LabelSize, len(s.sizes))
	for i, sz := range s.sizes {
		out[i] = sz
	}
	return out
}
