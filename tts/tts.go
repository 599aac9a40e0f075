package tts

import "context"

// Synthesizer defines the interface for text-to-speech synthesis
type Synthesizer interface {
	// Voices lists the voices the backend can speak with right now.
	// An empty list is valid.
	Voices(ctx context.Context) ([]Voice, error)

	// SynthesizeToStreamWithContext writes container audio (WAV or MP3) to
	// audioData. The caller owns audioData and closes it after return.
	SynthesizeToStreamWithContext(ctx context.Context, text string, options SynthesisOptions, audioData chan<- []byte) error

	Close() error
}

// Voice is a synthetic speaking persona tagged with a language.
type Voice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language"`
}

// Request is a single utterance handed to a speech engine.
type Request struct {
	Text     string
	Voice    *Voice
	Language string
	Rate     float64
	// Pitch is nil when the engine should use its own default.
	Pitch *float64
}

// SynthesisOptions represents the configuration for speech synthesis
type SynthesisOptions struct {
	Voice    string
	Language string
	Speed    float64
	Pitch    *float64
}

// OptionsFromRequest maps an utterance request onto backend options.
func OptionsFromRequest(req Request) SynthesisOptions {
	opts := SynthesisOptions{
		Language: req.Language,
		Speed:    req.Rate,
		Pitch:    req.Pitch,
	}
	if req.Voice != nil {
		opts.Voice = req.Voice.ID
	}
	if opts.Speed <= 0 {
		opts.Speed = 1.0
	}
	return opts
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
