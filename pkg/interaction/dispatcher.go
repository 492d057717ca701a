// Package interaction interprets activations on labels.
//
// A single activation flips a label to its translation for a short dwell
// time; a second activation inside the double-click window cancels the
// pending flip and asks the speech collaborator to read the label aloud.
// Translation and speech are external and may answer from any goroutine;
// answers that belong to a previous label set are dropped.
package interaction

import (
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/menta2k/image-annotator/internal/clock"
	"github.com/menta2k/image-annotator/pkg/types"
)

// Translator looks up the translated form of a keyword
type Translator interface {
	Lookup(keyword string) (string, bool)
}

// TranslatorFunc adapts a function to Translator
type TranslatorFunc func(keyword string) (string, bool)

// Lookup implements Translator
func (f TranslatorFunc) Lookup(keyword string) (string, bool) { return f(keyword) }

// Speaker plays text aloud. It must not block; onStart and onEnd report
// playback progress and may be called from any goroutine.
type Speaker interface {
	Speak(text string, onStart, onEnd func())
}

// SpeakerFunc adapts a function to Speaker
type SpeakerFunc func(text string, onStart, onEnd func())

// Speak implements Speaker
func (f SpeakerFunc) Speak(text string, onStart, onEnd func()) { f(text, onStart, onEnd) }

// Config holds the interaction timings
type Config struct {
	DoubleClickWindow time.Duration `json:"double_click_window" toml:"double_click_window"`
	FlipDwell         time.Duration `json:"flip_dwell" toml:"flip_dwell"`
}

// DefaultConfig returns the production timings
func DefaultConfig() Config {
	return Config{
		DoubleClickWindow: 200 * time.Millisecond,
		FlipDwell:         1500 * time.Millisecond,
	}
}

// Face is what a label shows
type Face struct {
	Front   string
	Back    string
	Flipped bool
	Reading bool
}

// Shown returns the text currently visible
func (f Face) Shown() string {
	if f.Flipped {
		return f.Back
	}
	return f.Front
}

type labelState struct {
	text    string
	flipped bool
	reading bool
	pending clock.Timer // single activation waiting for a possible second one
	revert  clock.Timer
	tapSeq  int
	flipSeq int
	speakID int
}

// Dispatcher owns the per-label interaction state. It is safe for
// concurrent use; timer and speech callbacks re-enter from other goroutines.
type Dispatcher struct {
	mu         sync.Mutex
	clock      clock.Clock
	config     Config
	translator Translator
	speaker    Speaker
	logger     *log.Logger

	generation int
	labels     []*labelState
	onChange   func(index int)
}

// New creates a dispatcher with default timings. Nil collaborators are
// allowed: without a translator both faces show the original text, without
// a speaker double activations do nothing.
func New(clk clock.Clock, translator Translator, speaker Speaker) *Dispatcher {
	return NewWithConfig(clk, translator, speaker, DefaultConfig())
}

// NewWithConfig creates a dispatcher with custom timings
func NewWithConfig(clk clock.Clock, translator Translator, speaker Speaker, config Config) *Dispatcher {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Dispatcher{
		clock:      clk,
		config:     config,
		translator: translator,
		speaker:    speaker,
		logger:     log.New(io.Discard),
	}
}

// SetLogger replaces the logger used for debug events
func (d *Dispatcher) SetLogger(l *log.Logger) {
	d.mu.Lock()
	d.logger = l
	d.mu.Unlock()
}

// OnChange registers a callback fired after a label's state changed. It is
// called without the dispatcher lock held.
func (d *Dispatcher) OnChange(fn func(index int)) {
	d.mu.Lock()
	d.onChange = fn
	d.mu.Unlock()
}

// Reset installs a new label set. Timers of the old set are stopped and any
// callback still in flight for it is ignored.
func (d *Dispatcher) Reset(texts []string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
	d.generation++
	d.labels = make([]*labelState, len(texts))
	for i, text := range texts {
		d.labels[i] = &labelState{text: text}
	}
}

// Stop cancels every timer. The dispatcher keeps its label set.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	d.stopLocked()
	d.mu.Unlock()
}

func (d *Dispatcher) stopLocked() {
	for _, l := range d.labels {
		if l.pending != nil {
			l.pending.Stop()
			l.pending = nil
		}
		if l.revert != nil {
			l.revert.Stop()
			l.revert = nil
		}
	}
}

// Activate handles one click or tap on label index
func (d *Dispatcher) Activate(index int) {
	d.mu.Lock()
	l := d.labelLocked(index)
	if l == nil {
		d.mu.Unlock()
		return
	}

	if l.pending != nil {
		// Second activation inside the window: read aloud instead of flipping
		l.pending.Stop()
		l.pending = nil
		d.mu.Unlock()
		d.speak(index)
		return
	}

	gen := d.generation
	if l.flipped {
		// Another activation while flipped restarts the dwell right away, so
		// the old revert cannot land inside the double click window
		d.armRevertLocked(gen, index, l)
	}
	l.tapSeq++
	tap := l.tapSeq
	l.pending = d.clock.AfterFunc(d.config.DoubleClickWindow, func() {
		d.flip(gen, index, tap)
	})
	d.mu.Unlock()
}

// flip turns the label to its back face and (re)arms the revert timer
func (d *Dispatcher) flip(gen, index, tap int) {
	d.mu.Lock()
	l := d.currentLocked(gen, index)
	if l == nil || l.pending == nil || l.tapSeq != tap {
		// Canceled by a second activation
		d.mu.Unlock()
		return
	}
	l.pending = nil
	l.flipped = true
	d.armRevertLocked(gen, index, l)
	fn := d.onChange
	d.mu.Unlock()

	if fn != nil {
		fn(index)
	}
}

// armRevertLocked replaces the revert timer of a flipped label
func (d *Dispatcher) armRevertLocked(gen, index int, l *labelState) {
	if l.revert != nil {
		l.revert.Stop()
	}
	l.flipSeq++
	seq := l.flipSeq
	l.revert = d.clock.AfterFunc(d.config.FlipDwell, func() {
		d.unflip(gen, index, seq)
	})
}

func (d *Dispatcher) unflip(gen, index, seq int) {
	d.mu.Lock()
	l := d.currentLocked(gen, index)
	if l == nil || l.flipSeq != seq {
		// A newer flip replaced this timer
		d.mu.Unlock()
		return
	}
	l.flipped = false
	l.revert = nil
	fn := d.onChange
	d.mu.Unlock()

	if fn != nil {
		fn(index)
	}
}

func (d *Dispatcher) speak(index int) {
	d.mu.Lock()
	l := d.labelLocked(index)
	if l == nil || d.speaker == nil {
		d.mu.Unlock()
		return
	}
	l.speakID++
	gen, id, text := d.generation, l.speakID, l.text
	d.logger.Debug("speak", "index", index, "text", text)
	d.mu.Unlock()

	d.speaker.Speak(text,
		func() { d.setReading(gen, index, id, true) },
		func() { d.setReading(gen, index, id, false) },
	)
}

func (d *Dispatcher) setReading(gen, index, id int, reading bool) {
	d.mu.Lock()
	l := d.currentLocked(gen, index)
	if l == nil || l.speakID != id {
		d.logger.Debug("dropping stale speech event", "index", index)
		d.mu.Unlock()
		return
	}
	l.reading = reading
	fn := d.onChange
	d.mu.Unlock()

	if fn != nil {
		fn(index)
	}
}

// State returns the interaction state of a label
func (d *Dispatcher) State(index int) types.InteractionState {
	d.mu.Lock()
	defer d.mu.Unlock()
	l := d.labelLocked(index)
	if l == nil {
		return types.InteractionState{}
	}
	return types.InteractionState{Flipped: l.flipped, Reading: l.reading}
}

// Face returns both faces of a label. The back face falls back to the
// original text until a translation is available.
func (d *Dispatcher) Face(index int) Face {
	d.mu.Lock()
	l := d.labelLocked(index)
	if l == nil {
		d.mu.Unlock()
		return Face{}
	}
	f := Face{Front: l.text, Back: l.text, Flipped: l.flipped, Reading: l.reading}
	tr := d.translator
	d.mu.Unlock()

	if tr != nil {
		if t, ok := tr.Lookup(f.Front); ok && strings.TrimSpace(t) != "" {
			f.Back = t
		}
	}
	return f
}

func (d *Dispatcher) labelLocked(index int) *labelState {
	if index < 0 || index >= len(d.labels) {
		return nil
	}
	return d.labels[index]
}

func (d *Dispatcher) currentLocked(gen, index int) *labelState {
	if gen != d.generation {
		return nil
	}
	return d.labelLocked(index)
}
