package utterance

import (
	"math"
	"reflect"
	"sync"
	"testing"

	"github.com/d1nch8g/speechform/tts"
	"github.com/d1nch8g/speechform/voices"
)

type fakeEngine struct {
	mu       sync.Mutex
	voices   []tts.Voice
	requests []tts.Request
	pauses   int
	resumes  int
}

func (f *fakeEngine) ListVoices() []tts.Voice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.voices
}

func (f *fakeEngine) Speak(req tts.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
}

func (f *fakeEngine) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses++
}

func (f *fakeEngine) Resume() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumes++
}

func (f *fakeEngine) lastRequest(t *testing.T) tts.Request {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		t.Fatal("engine received no request")
	}
	return f.requests[len(f.requests)-1]
}

func twoVoices() []tts.Voice {
	return []tts.Voice{
		{ID: "v1", Name: "Ava", Language: "en-US"},
		{ID: "v2", Name: "Milena", Language: "ru-RU"},
	}
}

func TestController_EmptyDirectory(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{}
	c := NewController(engine)
	dir := c.RefreshDirectory()

	if len(dir.Voices) != 0 || len(dir.Languages) != 0 {
		t.Fatalf("expected empty directory, got %+v", dir)
	}

	c.Speak()
	req := engine.lastRequest(t)
	if req.Voice != nil {
		t.Errorf("expected no voice, got %+v", req.Voice)
	}
	if req.Language != "" {
		t.Errorf("expected undefined language, got %q", req.Language)
	}
}

func TestController_DefaultsFromDirectory(t *testing.T) {
	t.Parallel()

	c := NewController(&fakeEngine{voices: twoVoices()})
	dir := c.RefreshDirectory()

	if want := []string{"en-US", "ru-RU"}; !reflect.DeepEqual(dir.Languages, want) {
		t.Errorf("expected languages %v, got %v", want, dir.Languages)
	}

	state := c.State()
	if state.Voice == nil || state.Voice.ID != "v1" {
		t.Errorf("expected default voice v1, got %+v", state.Voice)
	}
	if state.Language != "en-US" {
		t.Errorf("expected default language en-US, got %q", state.Language)
	}
	if state.Rate != DefaultRate || state.Pitch != DefaultPitch {
		t.Errorf("expected default rate and pitch 1.0, got %v and %v", state.Rate, state.Pitch)
	}
}

func TestController_SpeakSelection(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{voices: twoVoices()}
	c := NewController(engine)
	c.RefreshDirectory()

	if !c.SetVoice("v2") {
		t.Fatal("SetVoice(v2) reported no match")
	}
	c.SetLanguage("ru-RU")
	c.SetPhrase("Привет")
	c.Speak()

	req := engine.lastRequest(t)
	if req.Text != "Привет" {
		t.Errorf("expected text Привет, got %q", req.Text)
	}
	if req.Voice == nil || req.Voice.ID != "v2" {
		t.Errorf("expected voice v2, got %+v", req.Voice)
	}
	if req.Language != "ru-RU" {
		t.Errorf("expected language ru-RU, got %q", req.Language)
	}
	if req.Rate != 1.0 {
		t.Errorf("expected rate 1.0, got %v", req.Rate)
	}
	if req.Pitch == nil || *req.Pitch != 1.0 {
		t.Errorf("expected pitch 1.0, got %v", req.Pitch)
	}
}

func TestController_PauseBeforeSpeak(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{}
	c := NewController(engine)

	c.Pause()
	c.Resume()
	c.Resume()

	if engine.pauses != 1 || engine.resumes != 2 {
		t.Errorf("expected 1 pause and 2 resumes, got %d and %d", engine.pauses, engine.resumes)
	}
	if len(engine.requests) != 0 {
		t.Errorf("expected no speak requests, got %d", len(engine.requests))
	}
}

func TestController_SetVoiceUnknownKeepsSelection(t *testing.T) {
	t.Parallel()

	c := NewController(&fakeEngine{voices: twoVoices()})
	c.RefreshDirectory()
	c.SetVoice("v2")

	if c.SetVoice("nope") {
		t.Error("SetVoice reported a match for an unknown id")
	}
	if got := c.State().Voice; got == nil || got.ID != "v2" {
		t.Errorf("expected selection to stay v2, got %+v", got)
	}
}

func TestController_SetVoiceBeforeDiscovery(t *testing.T) {
	t.Parallel()

	c := NewController(&fakeEngine{voices: twoVoices()})
	if c.SetVoice("v1") {
		t.Error("expected no match before discovery")
	}
	if c.State().Voice != nil {
		t.Error("expected no voice before discovery")
	}
}

func TestController_ApplyDefaultsAfterExplicitSelection(t *testing.T) {
	t.Parallel()

	c := NewController(&fakeEngine{voices: twoVoices()})
	dir := c.RefreshDirectory()

	c.SetVoice("v2")
	c.ApplyDefaults(dir)
	c.ApplyDefaults(dir)
	if got := c.State().Voice; got.ID != "v2" {
		t.Errorf("defaults overrode explicit voice, got %s", got.ID)
	}

	c2 := NewController(&fakeEngine{voices: twoVoices()})
	c2.SetLanguage("ru-RU")
	c2.RefreshDirectory()
	state := c2.State()
	if state.Language != "ru-RU" {
		t.Errorf("defaults overrode explicit language, got %q", state.Language)
	}
	if state.Voice != nil {
		t.Errorf("expected no default voice after explicit language, got %+v", state.Voice)
	}
}

func TestController_ApplyDefaultsEmptyIsNoop(t *testing.T) {
	t.Parallel()

	c := NewController(&fakeEngine{})
	c.ApplyDefaults(voices.Directory{})
	state := c.State()
	if state.Voice != nil || state.Language != "" {
		t.Errorf("expected nothing selected, got %+v", state)
	}
}

func TestController_RefreshKeepsStaleSelection(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{voices: twoVoices()}
	c := NewController(engine)
	c.RefreshDirectory()
	c.SetVoice("v2")

	engine.mu.Lock()
	engine.voices = []tts.Voice{{ID: "v3", Name: "Anna", Language: "de-DE"}}
	engine.mu.Unlock()

	dir := c.RefreshDirectory()
	if len(dir.Voices) != 1 || dir.Voices[0].ID != "v3" {
		t.Fatalf("unexpected refreshed directory %+v", dir)
	}
	if got := c.State().Voice; got == nil || got.ID != "v2" {
		t.Errorf("expected stale selection v2 to survive, got %+v", got)
	}
	if c.SetVoice("v2") {
		t.Error("v2 should no longer resolve")
	}
}

func TestController_RefreshAppliesDefaultsWhenVoicesAppear(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{}
	c := NewController(engine)
	c.RefreshDirectory()

	engine.mu.Lock()
	engine.voices = twoVoices()
	engine.mu.Unlock()

	c.RefreshDirectory()
	if got := c.State().Voice; got == nil || got.ID != "v1" {
		t.Errorf("expected default v1 once voices appear, got %+v", got)
	}
}

func TestController_RateAndPitchBounds(t *testing.T) {
	t.Parallel()

	c := NewController(&fakeEngine{})

	rates := map[float64]float64{
		-5:          RateMin,
		0:           RateMin,
		0.1:         0.1,
		0.34:        0.3,
		2.25:        2.3,
		10:          10,
		11:          RateMax,
		math.Inf(1): RateMax,
	}
	for in, want := range rates {
		c.SetRate(in)
		if got := c.State().Rate; got != want {
			t.Errorf("SetRate(%v) stored %v, want %v", in, got, want)
		}
	}

	pitches := map[float64]float64{
		-1:   PitchMin,
		0:    0,
		0.7:  0.7,
		1.96: 2.0,
		3:    PitchMax,
	}
	for in, want := range pitches {
		c.SetPitch(in)
		if got := c.State().Pitch; got != want {
			t.Errorf("SetPitch(%v) stored %v, want %v", in, got, want)
		}
	}

	c.SetRate(2)
	c.SetRate(math.NaN())
	if got := c.State().Rate; got != 2 {
		t.Errorf("NaN rate changed state to %v", got)
	}
}

func TestController_ZeroPitchOmitted(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{}
	c := NewController(engine)
	c.SetPitch(0)
	c.Speak()

	if req := engine.lastRequest(t); req.Pitch != nil {
		t.Errorf("expected no pitch field, got %v", *req.Pitch)
	}
}

func TestController_StateIsCopy(t *testing.T) {
	t.Parallel()

	c := NewController(&fakeEngine{voices: twoVoices()})
	c.RefreshDirectory()

	state := c.State()
	state.Voice.ID = "mutated"
	if c.State().Voice.ID != "v1" {
		t.Error("State exposed internal voice")
	}
}

func TestController_ConcurrentUse(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{voices: twoVoices()}
	c := NewController(engine)
	c.RefreshDirectory()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.SetPhrase("hello")
			c.SetRate(float64(i))
			c.SetVoice("v2")
			c.Speak()
			_ = c.State()
		}(i)
	}
	wg.Wait()

	engine.mu.Lock()
	defer engine.mu.Unlock()
	if len(engine.requests) != 8 {
		t.Errorf("expected 8 requests, got %d", len(engine.requests))
	}
}

func TestController_SetLanguageOutsideSet(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{voices: twoVoices()}
	c := NewController(engine)
	c.RefreshDirectory()

	if c.SetLanguage("xx-BOGUS") {
		t.Error("SetLanguage accepted a tag outside the language set")
	}
	if got := c.State().Language; got != "en-US" {
		t.Errorf("expected language to stay en-US, got %q", got)
	}

	c.Speak()
	if req := engine.lastRequest(t); req.Language != "en-US" {
		t.Errorf("expected request language en-US, got %q", req.Language)
	}
}

func TestController_ResubmittedDefaultsStayLive(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{voices: twoVoices()}
	c := NewController(engine)
	c.RefreshDirectory()

	// Re-selecting what is already selected is not a choice.
	if !c.SetLanguage("en-US") || !c.SetVoice("v1") {
		t.Fatal("current selection was rejected")
	}

	engine.mu.Lock()
	engine.voices = []tts.Voice{{ID: "v3", Name: "Anna", Language: "de-DE"}}
	engine.mu.Unlock()

	dir := c.RefreshDirectory()
	state := c.State()
	if state.Voice == nil || state.Voice.ID != "v3" {
		t.Errorf("expected default voice v3 after refresh, got %+v", state.Voice)
	}
	if !dir.HasLanguage(state.Language) {
		t.Errorf("language %q is not in %v", state.Language, dir.Languages)
	}
}
