// Package imageannotator lays out vocabulary labels over a photo.
//
// An Engine receives detections (keyword plus bounding box) and free
// keywords from a vision collaborator and turns them into positioned labels
// once the image's rendered frame is known. Labels can then be dragged,
// flipped to their translation with a single activation and read aloud with
// a double activation.
//
// Basic usage:
//
//	engine := imageannotator.New()
//	defer engine.Stop()
//
//	engine.SetAnalysis(analysis.Detections, analysis.Keywords)
//	engine.ImageLoaded(types.Size{Width: 1600, Height: 1200})
//	engine.Resize(types.Size{Width: 800, Height: 800})
//
//	for _, l := range engine.Labels() {
//		fmt.Printf("%s at %.1f%%,%.1f%%\n", l.Shown, l.Rect.Left, l.Rect.Top)
//	}
//
// The engine consists of these components:
//
// 1. Geometry (pkg/geometry): resolves the rendered image frame
// 2. Measure (pkg/measure): converts label text into percent footprints
// 3. Layout (pkg/layout): anchored solver and free sampler
// 4. Drag (pkg/drag): pointer driven moves of one label at a time
// 5. Interaction (pkg/interaction): flip and read-aloud gestures
//
// Vision backends (pkg/ollama, pkg/llamacpp), translations
// (pkg/translation) and preview rendering (pkg/render) live outside the
// engine and are wired by the CLI.
package imageannotator

import (
	"io"
	"math"
	"slices"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/menta2k/image-annotator/internal/clock"
	"github.com/menta2k/image-annotator/pkg/drag"
	"github.com/menta2k/image-annotator/pkg/geometry"
	"github.com/menta2k/image-annotator/pkg/interaction"
	"github.com/menta2k/image-annotator/pkg/layout"
	"github.com/menta2k/image-annotator/pkg/measure"
	"github.com/menta2k/image-annotator/pkg/types"
)

// Version of the image annotator library
const Version = "1.0.0"

// sizeEpsilon is the percent difference below which two measurements are
// considered equal
const sizeEpsilon = 1e-6

// Config groups the tunables of every engine stage
type Config struct {
	Fit         geometry.Fit
	Layout      layout.Config
	Style       measure.Style
	Interaction interaction.Config
	Drag        drag.Config
}

// DefaultConfig returns the production configuration
func DefaultConfig() Config {
	return Config{
		Fit:         geometry.FitContain,
		Layout:      layout.DefaultConfig(),
		Style:       measure.DefaultStyle(),
		Interaction: interaction.DefaultConfig(),
		Drag:        drag.DefaultConfig(),
	}
}

type options struct {
	text       measure.TextMeasurer
	translator interaction.Translator
	speaker    interaction.Speaker
	clock      clock.Clock
	rng        layout.RandomSource
	logger     *log.Logger
}

// Option customizes an Engine
type Option func(*options)

// WithTextMeasurer sets the pixel measurer. Without it labels are measured
// with a fixed advance per rune.
func WithTextMeasurer(m measure.TextMeasurer) Option {
	return func(o *options) { o.text = m }
}

// WithTranslator sets the translation lookup for flipped labels
func WithTranslator(t interaction.Translator) Option {
	return func(o *options) { o.translator = t }
}

// WithSpeaker sets the read-aloud collaborator
func WithSpeaker(s interaction.Speaker) Option {
	return func(o *options) { o.speaker = s }
}

// WithClock replaces the wall clock, mostly for tests
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithRandom sets the random source of the free sampler
func WithRandom(r layout.RandomSource) Option {
	return func(o *options) { o.rng = r }
}

// WithLogger sets the logger for debug events. A nil logger discards them.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Engine is the annotation label layout engine. It is safe for concurrent
// use; timer and speech callbacks arrive on other goroutines.
type Engine struct {
	mu     sync.Mutex
	config Config
	logger *log.Logger

	tracker    *geometry.Tracker
	measurer   *measure.Measurer
	pipeline   *layout.Pipeline
	state      *layout.State
	drag       *drag.Controller
	dispatcher *interaction.Dispatcher

	natural    types.Size
	detections []types.Detection
	keywords   []string

	onChange func()
}

// New creates an engine with default configuration
func New(opts ...Option) *Engine {
	return NewWithConfig(DefaultConfig(), opts...)
}

// NewWithConfig creates an engine with custom configuration
func NewWithConfig(config Config, opts ...Option) *Engine {
	o := options{
		text:   measure.Fixed{},
		clock:  clock.Real{},
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.New(io.Discard)
	}

	state := layout.NewState()
	e := &Engine{
		config:     config,
		logger:     o.logger,
		tracker:    geometry.NewTracker(config.Fit),
		measurer:   measure.NewWithStyle(o.text, config.Style),
		pipeline:   layout.NewWithConfig(config.Layout, o.rng),
		state:      state,
		drag:       drag.NewWithConfig(state, o.clock, config.Drag),
		dispatcher: interaction.NewWithConfig(o.clock, o.translator, o.speaker, config.Interaction),
	}
	e.dispatcher.SetLogger(o.logger)

	// The tracker is only driven from engine methods, so its listener runs
	// with e.mu held.
	e.tracker.OnChange(e.frameChangedLocked)

	e.drag.OnBegin(func(index int) {
		e.logger.Debug("drag begin", "index", index)
	})
	e.drag.OnEnd(func(r drag.Release) {
		e.logger.Debug("drag end", "index", r.Index, "moved", r.Moved, "held", r.Held, "canceled", r.Canceled)
	})
	e.dispatcher.OnChange(func(int) {
		e.mu.Lock()
		fn := e.onChange
		e.mu.Unlock()
		if fn != nil {
			fn()
		}
	})
	return e
}

// Config returns the engine configuration
func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.config
}

// OnChange registers a callback fired when label faces change outside of an
// engine call, i.e. on flip timers and speech events. It runs without the
// engine lock and may call Labels.
func (e *Engine) OnChange(fn func()) {
	e.mu.Lock()
	e.onChange = fn
	e.mu.Unlock()
}

// Stop cancels pending interaction timers
func (e *Engine) Stop() {
	e.dispatcher.Stop()
}

// SetAnalysis installs a new analysis result. Detection labels take indices
// 0..len(detections)-1 and free keywords follow them.
func (e *Engine) SetAnalysis(detections []types.Detection, keywords []string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.detections = slices.Clone(detections)
	e.keywords = slices.Clone(keywords)
	e.dispatcher.Reset(e.textsLocked())
	e.logger.Debug("analysis set", "detections", len(detections), "keywords", len(keywords))
	e.relayoutLocked(true)
}

// ImageLoaded records the natural size of the decoded image
func (e *Engine) ImageLoaded(natural types.Size) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if natural != e.natural {
		e.natural = natural
		e.measurer.Reset()
	}
	return e.frameUpdatedLocked(e.tracker.ImageLoaded(natural))
}

// ImageUnloaded forgets the image, e.g. when a new photo starts loading.
// Labels lose their positions until the next frame is known.
func (e *Engine) ImageUnloaded() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tracker.Reset()
	e.natural = types.Size{}
	e.measurer.Reset()
	e.relayoutLocked(true)
}

// Resize records a new container size
func (e *Engine) Resize(container types.Size) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frameUpdatedLocked(e.tracker.Resize(container))
}

// SetFit switches the image fit mode
func (e *Engine) SetFit(fit geometry.Fit) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.config.Fit = fit
	return e.frameUpdatedLocked(e.tracker.SetFit(fit))
}

// Relayout discards the current positions and places every label again
func (e *Engine) Relayout() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.relayoutLocked(true)
}

// Style returns the label style in effect. Renderers draw with
// Style().ForFrame(frame) so pixels match the measured footprints.
func (e *Engine) Style() measure.Style {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.measurer.Style()
}

// Frame returns the rendered image frame, false while unknown
func (e *Engine) Frame() (types.Frame, bool) {
	return e.tracker.Frame()
}

// Container returns the last container size
func (e *Engine) Container() types.Size {
	return e.tracker.Container()
}

// frameUpdatedLocked drops the positions when the frame went away. A new
// frame has already been handled by the tracker listener.
func (e *Engine) frameUpdatedLocked(changed bool) bool {
	if _, ok := e.tracker.Frame(); changed && !ok {
		e.logger.Debug("frame lost")
		e.relayoutLocked(true)
	}
	return changed
}

func (e *Engine) frameChangedLocked(frame types.Frame) {
	e.logger.Debug("frame changed", "width", frame.Width, "height", frame.Height, "left", frame.Left, "top", frame.Top)
	e.relayoutLocked(false)
}

// relayoutLocked measures every label and places them. Unless forced, a
// frame change that keeps every percent size keeps the positions too, only
// clamped to the new bounds.
func (e *Engine) relayoutLocked(force bool) {
	frame, ok := e.tracker.Frame()
	if !ok {
		e.state.Reset(nil)
		e.syncDragLocked()
		return
	}

	sizes := e.measurer.Measure(frame, e.textsLocked())
	bounds := e.pipeline.Bounds(frame, e.tracker.Container())

	if !force && e.sameSizesLocked(sizes) {
		for i, pos := range e.state.Positions() {
			size, _ := e.state.Size(i)
			_ = e.state.Place(i, bounds.Clamp(pos, size))
		}
		e.logger.Debug("frame changed, kept positions", "labels", len(sizes))
		return
	}

	e.state.Reset(sizes)
	e.syncDragLocked()
	e.pipeline.Layout(e.state, e.detections, e.keywords, bounds)
	e.logger.Debug("relayout", "labels", len(sizes), "forced", force)
}

func (e *Engine) syncDragLocked() {
	if e.drag.Sync() {
		e.logger.Debug("drag canceled, label removed")
	}
}

// sameSizesLocked reports whether sizes match the current state and every
// label is still positioned
func (e *Engine) sameSizesLocked(sizes map[int]types.LabelSize) bool {
	current := e.state.Sizes()
	if len(current) != len(sizes) || len(e.state.Positions()) != len(sizes) {
		return false
	}
	for i, s := range sizes {
		c, ok := current[i]
		if !ok || math.Abs(c.Width-s.Width) > sizeEpsilon || math.Abs(c.Height-s.Height) > sizeEpsilon {
			return false
		}
	}
	return true
}

func (e *Engine) textsLocked() []string {
	texts := make([]string, 0, len(e.detections)+len(e.keywords))
	for _, d := range e.detections {
		texts = append(texts, d.Keyword)
	}
	return append(texts, e.keywords...)
}

// PointerDown starts a press on label index at pointer p in container
// coordinates. It fails with layout.ErrNoPosition while the label has no
// position and with layout.ErrDragActive during another drag.
func (e *Engine) PointerDown(index int, p types.Point) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	frame, ok := e.tracker.Frame()
	if !ok {
		return layout.ErrNoPosition
	}
	return e.drag.Begin(index, p, frame)
}

// PointerMove follows the pointer during a press. It returns the new
// position of the pressed label.
func (e *Engine) PointerMove(p types.Point) (types.LabelPosition, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.moveLocked(p)
}

func (e *Engine) moveLocked(p types.Point) (types.LabelPosition, bool) {
	frame, ok := e.tracker.Frame()
	if !ok {
		return types.LabelPosition{}, false
	}
	return e.drag.Move(p, frame, e.pipeline.Bounds(frame, e.tracker.Container()))
}

// PointerUp ends the press at p. A press that neither moved nor was held
// too long counts as an activation of the label.
func (e *Engine) PointerUp(p types.Point) (drag.Release, bool) {
	e.mu.Lock()
	if _, ok := e.drag.Active(); !ok {
		e.mu.Unlock()
		return drag.Release{}, false
	}
	e.moveLocked(p)
	r, ok := e.drag.End()
	click := ok && r.IsClick(e.drag.Config())
	e.mu.Unlock()

	// Speakers may report playback synchronously, and those events re-enter
	// the engine through OnChange.
	if click {
		e.dispatcher.Activate(r.Index)
	}
	return r, ok
}

// PointerCancel resolves a press whose pointer went away. It never counts as
// an activation.
func (e *Engine) PointerCancel() (drag.Release, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.drag.Cancel()
}

// Activate interprets a click or tap on label index that did not come
// through the pointer API, e.g. keyboard activation
func (e *Engine) Activate(index int) {
	e.mu.Lock()
	_, dragging := e.drag.Active()
	e.mu.Unlock()
	if !dragging {
		e.dispatcher.Activate(index)
	}
}

// Labels returns every positioned label in index order
func (e *Engine) Labels() []types.Label {
	e.mu.Lock()
	defer e.mu.Unlock()

	dragging, isDragging := e.state.Dragging()
	texts := e.textsLocked()
	labels := make([]types.Label, 0, len(texts))
	for i, text := range texts {
		rect, ok := e.state.Rect(i)
		if !ok {
			continue
		}
		kind := types.KindFree
		if i < len(e.detections) {
			kind = types.KindAnchored
		}
		face := e.dispatcher.Face(i)
		labels = append(labels, types.Label{
			Index:    i,
			Kind:     kind,
			Text:     text,
			Shown:    face.Shown(),
			Rect:     rect,
			Flipped:  face.Flipped,
			Reading:  face.Reading,
			Dragging: isDragging && dragging == i,
		})
	}
	return labels
}

// Detections returns the current detections
func (e *Engine) Detections() []types.Detection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.detections)
}
