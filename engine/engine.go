package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/unicode/norm"

	"github.com/d1nch8g/speechform/sound"
	"github.com/d1nch8g/speechform/tts"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// EngineConfig holds the configuration for the speech engine
type EngineConfig struct {
	QueueSize        int
	VoiceListTimeout time.Duration
	SynthesisTimeout time.Duration
}

type job struct {
	id      string
	request tts.Request
}

// Engine is the speech engine the form talks to. Utterances are queued and
// played one at a time by Start.
type Engine struct {
	config      EngineConfig
	ttsClient   tts.Synthesizer
	soundPlayer sound.Player

	queue chan job

	isRunning    bool
	runningMutex sync.RWMutex
}

// NewEngine creates a new speech engine instance
func NewEngine(config EngineConfig, ttsClient tts.Synthesizer, soundPlayer sound.Player) *Engine {
	if config.QueueSize == 0 {
		config.QueueSize = 16
	}
	if config.VoiceListTimeout == 0 {
		config.VoiceListTimeout = 5 * time.Second
	}
	if config.SynthesisTimeout == 0 {
		config.SynthesisTimeout = 30 * time.Second
	}

	return &Engine{
		config:      config,
		ttsClient:   ttsClient,
		soundPlayer: soundPlayer,
		queue:       make(chan job, config.QueueSize),
	}
}

// Start initializes the player and plays queued utterances until ctx ends.
func (e *Engine) Start(ctx context.Context) error {
	e.runningMutex.Lock()
	if e.isRunning {
		e.runningMutex.Unlock()
		return fmt.Errorf("engine is already running")
	}
	e.isRunning = true
	e.runningMutex.Unlock()

	defer func() {
		e.runningMutex.Lock()
		e.isRunning = false
		e.runningMutex.Unlock()
	}()

	if err := e.soundPlayer.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize sound player: %w", err)
	}
	defer e.soundPlayer.Terminate()

	log.Info().Msg("Speech engine started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Speech engine stopping due to context cancellation")
			return ctx.Err()
		case j := <-e.queue:
			if err := e.speakRequest(ctx, j); err != nil {
				log.Error().Err(err).Str("utterance", j.id).Msg("Error speaking utterance")
				if ctx.Err() != nil {
					return ctx.Err()
				}
			}
		}
	}
}

// ListVoices queries the backend synchronously. Failures are logged and
// reported as no voices.
func (e *Engine) ListVoices() []tts.Voice {
	ctx, cancel := context.WithTimeout(context.Background(), e.config.VoiceListTimeout)
	defer cancel()

	voices, err := e.ttsClient.Voices(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Voice listing failed")
		return []tts.Voice{}
	}
	if voices == nil {
		return []tts.Voice{}
	}
	return voices
}

// Speak queues req and returns at once.
func (e *Engine) Speak(req tts.Request) {
	j := job{id: xid.New().String(), request: req}

	select {
	case e.queue <- j:
		log.Debug().Str("utterance", j.id).Int("queued", len(e.queue)).Msg("Utterance queued")
	default:
		log.Warn().Str("utterance", j.id).Msg("Utterance queue full, dropping")
	}
}

func (e *Engine) Pause() {
	e.soundPlayer.Pause()
}

func (e *Engine) Resume() {
	e.soundPlayer.Resume()
}

// speakRequest synthesizes one utterance and plays it
func (e *Engine) speakRequest(ctx context.Context, j job) error {
	text := normalizeText(j.request.Text)
	if text == "" {
		log.Debug().Str("utterance", j.id).Msg("Empty utterance, nothing to speak")
		return nil
	}

	options := tts.OptionsFromRequest(j.request)

	logger := log.With().Str("utterance", j.id).Logger()
	logger.Info().
		Str("voice", options.Voice).
		Str("language", options.Language).
		Float64("speed", options.Speed).
		Int("chars", len([]rune(text))).
		Msg("Speaking")

	startTime := time.Now()
	data, err := e.synthesize(ctx, text, options)
	if err != nil {
		return err
	}

	pcm, err := sound.Decode(data)
	if err != nil {
		return fmt.Errorf("failed to decode synthesized audio: %w", err)
	}

	logger.Debug().
		Dur("elapsed", time.Since(startTime)).
		Int("sample_rate", pcm.Format.SampleRate).
		Int("bytes", len(pcm.Data)).
		Msg("Audio synthesized")

	if err := e.soundPlayer.Play(ctx, pcm); err != nil {
		return fmt.Errorf("failed to play audio: %w", err)
	}

	logger.Info().Dur("elapsed", time.Since(startTime)).Msg("Utterance finished")
	return nil
}

func (e *Engine) synthesize(ctx context.Context, text string, options tts.SynthesisOptions) ([]byte, error) {
	ttsCtx, ttsCancel := context.WithTimeout(ctx, e.config.SynthesisTimeout)
	defer ttsCancel()

	audioData := make(chan []byte, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(audioData)
		errCh <- e.ttsClient.SynthesizeToStreamWithContext(ttsCtx, text, options, audioData)
	}()

	var buf bytes.Buffer
	for chunk := range audioData {
		buf.Write(chunk)
	}

	if err := <-errCh; err != nil {
		return nil, fmt.Errorf("tts synthesis: %w", err)
	}
	if buf.Len() == 0 {
		return nil, errors.New("tts synthesis returned no audio")
	}

	return buf.Bytes(), nil
}

func normalizeText(text string) string {
	text = norm.NFC.String(text)
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// IsRunning returns whether the engine is currently running
func (e *Engine) IsRunning() bool {
	e.runningMutex.RLock()
	defer e.runningMutex.RUnlock()
	return e.isRunning
}

// Stop releases the synthesizer
func (e *Engine) Stop() error {
	if err := e.ttsClient.Close(); err != nil {
		return fmt.Errorf("failed to close TTS client: %w", err)
	}
	return nil
}
