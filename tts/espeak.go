package tts

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"
)

const (
	espeakBaseWPM  = 175
	espeakMinWPM   = 80
	espeakMaxWPM   = 450
	espeakMaxPitch = 99
	espeakChunk    = 4096
)

var espeakBinaries = []string{"espeak-ng", "espeak"}

func init() {
	Register("espeak", func(cfg Config) (Synthesizer, error) {
		return NewEspeakClient(cfg.EspeakBinary), nil
	})
}

// EspeakClient drives a local espeak-ng (or espeak) binary.
type EspeakClient struct {
	binary string
}

var _ Synthesizer = (*EspeakClient)(nil)

// NewEspeakClient returns a client for binary. An empty binary means the
// first of espeak-ng or espeak found on PATH, resolved on every call so a
// later install is picked up.
func NewEspeakClient(binary string) *EspeakClient {
	return &EspeakClient{binary: binary}
}

func (c *EspeakClient) lookPath() (string, error) {
	if c.binary != "" {
		return exec.LookPath(c.binary)
	}
	for _, bin := range espeakBinaries {
		if path, err := exec.LookPath(bin); err == nil {
			return path, nil
		}
	}
	return "", errors.New("speech not available: install espeak-ng or espeak")
}

func (c *EspeakClient) Voices(ctx context.Context) ([]Voice, error) {
	path, err := c.lookPath()
	if err != nil {
		return nil, err
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, "--voices")
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("espeak voices: %w: %s", err, stderr.String())
	}

	return parseEspeakVoices(out), nil
}

// parseEspeakVoices reads the table printed by `espeak-ng --voices`:
//
//	Pty Language       Age/Gender VoiceName          File                 Other Languages
//	 5  en-us           --/M      English_(America)  gmw/en-US            (en 3)
func parseEspeakVoices(out []byte) []Voice {
	voices := make([]Voice, 0)
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 || fields[0] == "Pty" {
			continue
		}
		if _, err := strconv.Atoi(fields[0]); err != nil {
			continue
		}

		id := fields[4]
		if seen[id] {
			continue
		}
		seen[id] = true

		voices = append(voices, Voice{
			ID:       id,
			Name:     strings.ReplaceAll(fields[3], "_", " "),
			Language: canonicalTag(fields[1]),
		})
	}

	return voices
}

// canonicalTag rewrites espeak's lower-case codes ("en-us") as BCP 47
// ("en-US"). Codes x/text cannot parse are kept as they are.
func canonicalTag(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	return tag.String()
}

func (c *EspeakClient) SynthesizeToStreamWithContext(ctx context.Context, text string, options SynthesisOptions, audioData chan<- []byte) error {
	path, err := c.lookPath()
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, path, buildEspeakArgs(options)...)
	cmd.Stdin = strings.NewReader(text)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("espeak stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start espeak: %w", err)
	}

	log.Debug().Str("voice", options.Voice).Str("language", options.Language).Msg("espeak started")

	readErr := pumpChunks(ctx, stdout, audioData)
	waitErr := cmd.Wait()
	if readErr != nil {
		return readErr
	}
	if waitErr != nil {
		return fmt.Errorf("espeak failed: %w: %s", waitErr, stderr.String())
	}

	return nil
}

func pumpChunks(ctx context.Context, r io.Reader, audioData chan<- []byte) error {
	for {
		buf := make([]byte, espeakChunk)
		n, err := r.Read(buf)
		if n > 0 {
			select {
			case audioData <- buf[:n]:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read espeak output: %w", err)
		}
	}
}

func buildEspeakArgs(options SynthesisOptions) []string {
	args := []string{"--stdout"}

	switch {
	case options.Voice != "":
		args = append(args, "-v", options.Voice)
	case options.Language != "":
		args = append(args, "-v", strings.ToLower(options.Language))
	}

	speed := options.Speed
	if speed <= 0 {
		speed = 1.0
	}
	wpm := clamp(espeakBaseWPM*speed, espeakMinWPM, espeakMaxWPM)
	args = append(args, "-s", strconv.Itoa(int(wpm+0.5)))

	if options.Pitch != nil {
		pitch := clamp(*options.Pitch*50, 0, espeakMaxPitch)
		args = append(args, "-p", strconv.Itoa(int(pitch+0.5)))
	}

	return args
}

func (c *EspeakClient) Close() error {
	return nil
}
