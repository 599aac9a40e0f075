package sound

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

var (
	ErrUnknownContainer = errors.New("unknown audio container")
	ErrUnsupportedWAV   = errors.New("unsupported wav encoding")
)

// Decode turns WAV or MP3 container bytes into PCM.
func Decode(data []byte) (PCM, error) {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return decodeWAV(data)
	case isMP3(data):
		return decodeMP3(data)
	default:
		return PCM{}, ErrUnknownContainer
	}
}

func isMP3(data []byte) bool {
	if len(data) >= 3 && string(data[0:3]) == "ID3" {
		return true
	}
	// MPEG frame sync: 11 set bits.
	return len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0
}

// decodeWAV walks RIFF chunks. Streamed WAVs (espeak --stdout) carry
// placeholder sizes, so the data chunk is cut at the end of the input.
// Sizes are kept in uint64 so a bogus chunk length cannot wrap an int.
func decodeWAV(data []byte) (PCM, error) {
	var (
		format    Format
		haveFmt   bool
		offset    = 12
		chunkHead = 8
	)

	for offset+chunkHead <= len(data) {
		id := string(data[offset : offset+4])
		size := uint64(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + chunkHead
		remaining := uint64(len(data) - body)

		switch id {
		case "fmt ":
			if size < 16 || remaining < 16 {
				return PCM{}, fmt.Errorf("truncated fmt chunk: %w", ErrUnsupportedWAV)
			}
			audioFormat := binary.LittleEndian.Uint16(data[body : body+2])
			channels := binary.LittleEndian.Uint16(data[body+2 : body+4])
			sampleRate := binary.LittleEndian.Uint32(data[body+4 : body+8])
			bits := binary.LittleEndian.Uint16(data[body+14 : body+16])
			if audioFormat != 1 || bits != 16 {
				return PCM{}, fmt.Errorf("format %d, %d bits: %w", audioFormat, bits, ErrUnsupportedWAV)
			}
			format = Format{SampleRate: int(sampleRate), Channels: int(channels)}
			haveFmt = true
		case "data":
			if !haveFmt {
				return PCM{}, fmt.Errorf("data before fmt chunk: %w", ErrUnsupportedWAV)
			}
			end := len(data)
			if size > 0 && size <= remaining {
				end = body + int(size)
			}
			// Drop a trailing odd byte so frames stay whole.
			pcm := data[body:end]
			frame := 2 * format.Channels
			if frame > 0 {
				pcm = pcm[:len(pcm)-len(pcm)%frame]
			}
			return PCM{Format: format, Data: pcm}, nil
		}

		next := size + size%2
		if next > remaining {
			break
		}
		offset = body + int(next)
	}

	return PCM{}, fmt.Errorf("no data chunk: %w", ErrUnsupportedWAV)
}

func decodeMP3(data []byte) (PCM, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return PCM{}, fmt.Errorf("failed to open mp3: %w", err)
	}

	pcm, err := io.ReadAll(dec)
	if err != nil {
		return PCM{}, fmt.Errorf("failed to decode mp3: %w", err)
	}

	// go-mp3 always yields 16-bit stereo.
	return PCM{
		Format: Format{SampleRate: dec.SampleRate(), Channels: 2},
		Data:   pcm,
	}, nil
}
