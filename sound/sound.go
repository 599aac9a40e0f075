package sound

import "context"

// Format describes interleaved signed 16-bit little-endian PCM.
type Format struct {
	SampleRate int
	Channels   int
}

// PCM is decoded audio ready for playback.
type PCM struct {
	Format Format
	Data   []byte
}

// Player defines the interface for audio playback
type Player interface {
	// Initialize initializes the audio playback system
	Initialize() error

	// Terminate terminates the audio playback system
	Terminate()

	// Play blocks until pcm has been played or ctx is done.
	Play(ctx context.Context, pcm PCM) error

	// Pause suspends output between buffers. Safe to call when idle.
	Pause()

	// Resume releases a paused player. Safe to call when not paused.
	Resume()
}
