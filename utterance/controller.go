// Package utterance holds the form's selection state and turns it into
// speak, pause and resume commands for a speech engine.
package utterance

import (
	"math"
	"sync"

	"github.com/d1nch8g/speechform/tts"
	"github.com/d1nch8g/speechform/voices"
)

const (
	RateMin      = 0.1
	RateMax      = 10.0
	PitchMin     = 0.0
	PitchMax     = 2.0
	Step         = 0.1
	DefaultRate  = 1.0
	DefaultPitch = 1.0

	stepsPerUnit = 1 / Step
)

// Engine is the speech capability the controller drives. Commands are fire
// and forget; the controller never learns whether audio is playing.
type Engine interface {
	ListVoices() []tts.Voice
	Speak(req tts.Request)
	Pause()
	Resume()
}

// State is the user-editable selection. Voice is nil and Language empty
// until something is selected.
type State struct {
	Phrase   string
	Voice    *tts.Voice
	Language string
	Rate     float64
	Pitch    float64
}

// Controller is shared by every request that touches the form, so all
// methods are safe for concurrent use.
type Controller struct {
	mu        sync.Mutex
	engine    Engine
	directory voices.Directory
	state     State
	// explicit is set once the user picks a voice or language; defaults
	// never override it afterwards.
	explicit bool
}

func NewController(engine Engine) *Controller {
	return &Controller{
		engine: engine,
		directory: voices.Directory{
			Voices:    []tts.Voice{},
			Languages: []string{},
		},
		state: State{
			Rate:  DefaultRate,
			Pitch: DefaultPitch,
		},
	}
}

// RefreshDirectory re-queries the engine, keeps the result and applies
// defaults. A selected voice that vanished stays selected.
func (c *Controller) RefreshDirectory() voices.Directory {
	dir := voices.Discover(c.engine)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.directory = dir
	c.applyDefaults(dir)
	return dir
}

// ApplyDefaults selects the first voice and language of dir unless the user
// already chose one. An empty dir changes nothing.
func (c *Controller) ApplyDefaults(dir voices.Directory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applyDefaults(dir)
}

func (c *Controller) applyDefaults(dir voices.Directory) {
	if c.explicit || dir.Empty() {
		return
	}
	v := dir.Voices[0]
	c.state.Voice = &v
	if len(dir.Languages) > 0 {
		c.state.Language = dir.Languages[0]
	}
}

func (c *Controller) SetPhrase(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Phrase = text
}

// SetRate stores n clamped to [RateMin, RateMax] on a Step grid. NaN is
// ignored.
func (c *Controller) SetRate(n float64) {
	if math.IsNaN(n) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Rate = snap(n, RateMin, RateMax)
}

// SetPitch stores n clamped to [PitchMin, PitchMax] on a Step grid. NaN is
// ignored.
func (c *Controller) SetPitch(n float64) {
	if math.IsNaN(n) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Pitch = snap(n, PitchMin, PitchMax)
}

// SetLanguage selects tag. Once voices are known, a tag outside the
// Language Set is rejected and SetLanguage reports false. Resubmitting the
// current language is not a user choice and keeps defaults live.
func (c *Controller) SetLanguage(tag string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.directory.Languages) > 0 && !c.directory.HasLanguage(tag) {
		return false
	}
	if tag == c.state.Language {
		return true
	}
	c.state.Language = tag
	c.explicit = true
	return true
}

// SetVoice selects the directory voice with identifier id. It reports false
// and leaves the selection alone when there is no such voice. Picking the
// voice already selected does not count as a choice.
func (c *Controller) SetVoice(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.directory.Voice(id)
	if !ok {
		return false
	}
	if c.state.Voice != nil && *c.state.Voice == v {
		return true
	}
	c.state.Voice = &v
	c.explicit = true
	return true
}

// Speak hands the current selection to the engine. An empty phrase is
// passed through; the engine decides what to do with it.
func (c *Controller) Speak() {
	req := c.Request()
	c.engine.Speak(req)
}

// Request builds the utterance Speak would send. Pitch is left out when it
// is zero.
func (c *Controller) Request() tts.Request {
	c.mu.Lock()
	defer c.mu.Unlock()

	req := tts.Request{
		Text:     c.state.Phrase,
		Language: c.state.Language,
		Rate:     c.state.Rate,
	}
	if c.state.Voice != nil {
		v := *c.state.Voice
		req.Voice = &v
	}
	if c.state.Pitch > 0 {
		p := c.state.Pitch
		req.Pitch = &p
	}
	return req
}

func (c *Controller) Pause() {
	c.engine.Pause()
}

func (c *Controller) Resume() {
	c.engine.Resume()
}

// State returns a copy of the selection.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.state
	if s.Voice != nil {
		v := *s.Voice
		s.Voice = &v
	}
	return s
}

func (c *Controller) Directory() voices.Directory {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.directory
}

func snap(n, lo, hi float64) float64 {
	n = math.Round(n*stepsPerUnit) / stepsPerUnit
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
