package interaction

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/menta2k/image-annotator/internal/clock"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder is a Speaker that keeps the requests and lets the test drive
// the playback callbacks
type recorder struct {
	mu     sync.Mutex
	texts  []string
	starts []func()
	ends   []func()
}

func (r *recorder) Speak(text string, onStart, onEnd func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	r.starts = append(r.starts, onStart)
	r.ends = append(r.ends, onEnd)
}

func translations(m map[string]string) Translator {
	return TranslatorFunc(func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	})
}

func setup(t *testing.T) (*Dispatcher, *clock.Manual, *recorder) {
	t.Helper()
	clk := clock.NewManual(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	sp := &recorder{}
	d := New(clk, translations(map[string]string{"Dog": "狗"}), sp)
	d.Reset([]string{"Dog", "Bark"})
	t.Cleanup(d.Stop)
	return d, clk, sp
}

func TestSingleActivationFlipsAndReverts(t *testing.T) {
	d, clk, sp := setup(t)

	d.Activate(0)
	assert.False(t, d.State(0).Flipped, "waits for a possible second activation")

	clk.Advance(200 * time.Millisecond)
	assert.True(t, d.State(0).Flipped)
	assert.Equal(t, "狗", d.Face(0).Shown())

	clk.Advance(1499 * time.Millisecond)
	assert.True(t, d.State(0).Flipped)

	clk.Advance(time.Millisecond)
	assert.False(t, d.State(0).Flipped)
	assert.Equal(t, "Dog", d.Face(0).Shown())
	assert.Empty(t, sp.texts)
}

func TestReactivationResetsDwell(t *testing.T) {
	d, clk, _ := setup(t)

	d.Activate(0)
	clk.Advance(200 * time.Millisecond) // flipped at t=200ms

	clk.Advance(1000 * time.Millisecond)
	d.Activate(0)
	clk.Advance(200 * time.Millisecond) // flipped again at t=1400ms

	clk.Advance(500 * time.Millisecond) // t=1900ms, past the first dwell
	assert.True(t, d.State(0).Flipped, "the first timer was replaced, not stacked")

	clk.Advance(1000 * time.Millisecond) // t=2900ms, past the second dwell
	assert.False(t, d.State(0).Flipped)
	assert.Equal(t, 0, clk.Pending())
}

func TestReactivationLateInDwellNeverReverts(t *testing.T) {
	d, clk, _ := setup(t)

	changes := 0
	d.OnChange(func(int) { changes++ })

	d.Activate(0)
	clk.Advance(200 * time.Millisecond)  // flipped at t=200ms
	clk.Advance(1400 * time.Millisecond) // t=1600ms, 100ms before the revert
	d.Activate(0)

	clk.Advance(150 * time.Millisecond) // t=1750ms, the old revert time has passed
	assert.True(t, d.State(0).Flipped)
	assert.Equal(t, 1, changes, "no revert and re-flip in between")

	clk.Advance(50 * time.Millisecond) // pending fires at t=1800ms, dwell until 3300ms
	clk.Advance(1499 * time.Millisecond)
	assert.True(t, d.State(0).Flipped)
	clk.Advance(time.Millisecond)
	assert.False(t, d.State(0).Flipped)
	assert.Zero(t, clk.Pending())
}

func TestDoubleActivationWhileFlippedKeepsDwell(t *testing.T) {
	d, clk, sp := setup(t)

	d.Activate(0)
	clk.Advance(1500 * time.Millisecond) // flipped at 200ms, revert due at 1700ms
	d.Activate(0)
	clk.Advance(50 * time.Millisecond)
	d.Activate(0)
	assert.Equal(t, []string{"Dog"}, sp.texts)

	clk.Advance(300 * time.Millisecond) // t=1850ms
	assert.True(t, d.State(0).Flipped, "the dwell restarted at the first of the two activations")
	clk.Advance(1200 * time.Millisecond) // t=3050ms
	assert.False(t, d.State(0).Flipped)
}

func TestDoubleActivationSpeaksOnce(t *testing.T) {
	d, clk, sp := setup(t)

	d.Activate(1)
	clk.Advance(120 * time.Millisecond)
	d.Activate(1)

	clk.Advance(2 * time.Second)
	assert.Equal(t, []string{"Bark"}, sp.texts)
	assert.False(t, d.State(1).Flipped, "a double activation never flips")
}

func TestSlowSecondActivationIsTwoFlips(t *testing.T) {
	d, clk, sp := setup(t)

	d.Activate(0)
	clk.Advance(250 * time.Millisecond)
	d.Activate(0)
	clk.Advance(250 * time.Millisecond)

	assert.Empty(t, sp.texts)
	assert.True(t, d.State(0).Flipped)
}

func TestReadingFollowsPlayback(t *testing.T) {
	d, clk, sp := setup(t)
	var changed []int
	d.OnChange(func(i int) { changed = append(changed, i) })

	d.Activate(0)
	d.Activate(0)
	require.Len(t, sp.starts, 1)

	sp.starts[0]()
	assert.True(t, d.State(0).Reading)
	assert.True(t, d.Face(0).Reading)
	sp.ends[0]()
	assert.False(t, d.State(0).Reading)
	assert.Equal(t, []int{0, 0}, changed)

	clk.Advance(time.Second)
	assert.False(t, d.State(0).Flipped)
}

func TestStaleCallbacksAreIgnored(t *testing.T) {
	d, clk, sp := setup(t)

	d.Activate(0)
	d.Activate(0)
	d.Activate(1) // pending flip for the old label set

	d.Reset([]string{"Car"})
	sp.starts[0]()
	clk.Advance(time.Second)

	assert.Equal(t, "Car", d.Face(0).Front)
	assert.False(t, d.State(0).Reading)
	assert.False(t, d.State(0).Flipped)
	assert.Equal(t, Face{}, d.Face(1), "index 1 no longer exists")
}

func TestMissingTranslationShowsOriginal(t *testing.T) {
	d, clk, _ := setup(t)

	d.Activate(1)
	clk.Advance(200 * time.Millisecond)

	f := d.Face(1)
	assert.True(t, f.Flipped)
	assert.Equal(t, "Bark", f.Front)
	assert.Equal(t, "Bark", f.Back)
}

func TestOutOfRangeIsIgnored(t *testing.T) {
	d, clk, sp := setup(t)
	d.Activate(-1)
	d.Activate(7)
	d.Activate(7)
	clk.Advance(time.Second)
	assert.Empty(t, sp.texts)
	assert.Equal(t, 0, clk.Pending())
}

func TestNilCollaborators(t *testing.T) {
	clk := clock.NewManual(time.Time{})
	d := New(clk, nil, nil)
	d.Reset([]string{"Tree"})

	d.Activate(0)
	d.Activate(0)
	d.Activate(0)
	clk.Advance(200 * time.Millisecond)
	assert.Equal(t, "Tree", d.Face(0).Back)
	assert.True(t, d.State(0).Flipped)
	d.Stop()
}

func TestRealClockStopsCleanly(t *testing.T) {
	d := NewWithConfig(clock.Real{}, nil, nil, Config{
		DoubleClickWindow: 10 * time.Millisecond,
		FlipDwell:         time.Hour,
	})
	d.Reset([]string{"Sun"})

	flipped := make(chan struct{}, 1)
	d.OnChange(func(int) { flipped <- struct{}{} })
	d.Activate(0)

	select {
	case <-flipped:
	case <-time.After(2 * time.Second):
		t.Fatal("flip timer never fired")
	}
	assert.True(t, d.State(0).Flipped)
	d.Stop()
}
