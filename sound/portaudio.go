package sound

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog/log"
)

type PlayerConfig struct {
	FramesPerBuffer int
}

type PortaudioPlayer struct {
	config PlayerConfig
	gate   Gate
}

var _ Player = (*PortaudioPlayer)(nil)

func NewPortaudioPlayer(config PlayerConfig) *PortaudioPlayer {
	if config.FramesPerBuffer <= 0 {
		config.FramesPerBuffer = GetDefaultConfig().FramesPerBuffer
	}
	return &PortaudioPlayer{config: config}
}

func GetDefaultConfig() PlayerConfig {
	return PlayerConfig{
		FramesPerBuffer: 1024,
	}
}

func (p *PortaudioPlayer) Initialize() error {
	return portaudio.Initialize()
}

// Play opens a default output stream shaped after pcm.Format for the
// duration of one utterance.
func (p *PortaudioPlayer) Play(ctx context.Context, pcm PCM) error {
	channels := pcm.Format.Channels
	if channels <= 0 {
		channels = 1
	}

	buffer := make([]int16, p.config.FramesPerBuffer*channels)
	stream, err := portaudio.OpenDefaultStream(0, channels, float64(pcm.Format.SampleRate), p.config.FramesPerBuffer, buffer)
	if err != nil {
		return fmt.Errorf("failed to open output stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("failed to start output stream: %w", err)
	}
	defer stream.Stop()

	samples := convertBytesToSamples(pcm.Data)
	for offset := 0; offset < len(samples); offset += len(buffer) {
		if err := p.gate.Wait(ctx); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		n := copy(buffer, samples[offset:])
		// Zero-fill the tail of the last buffer
		for i := n; i < len(buffer); i++ {
			buffer[i] = 0
		}

		if err := stream.Write(); err != nil {
			log.Warn().Err(err).Msg("Error writing audio")
			continue
		}
	}

	return nil
}

func (p *PortaudioPlayer) Pause() {
	p.gate.Pause()
}

func (p *PortaudioPlayer) Resume() {
	p.gate.Resume()
}

func convertBytesToSamples(audioBytes []byte) []int16 {
	samples := make([]int16, len(audioBytes)/2)
	for i := 0; i < len(samples); i++ {
		// Convert little-endian bytes to int16
		samples[i] = int16(binary.LittleEndian.Uint16(audioBytes[i*2 : i*2+2]))
	}
	return samples
}

func (p *PortaudioPlayer) Terminate() {
	portaudio.Terminate()
}
