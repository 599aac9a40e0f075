package tts

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"

	ytts "github.com/yandex-cloud/go-genproto/yandex/cloud/ai/tts/v3"
)

const (
	YandexTTSEndpoint = "tts.api.cloud.yandex.net:443"

	yandexDefaultVoice = "marina"
	yandexDefaultModel = "general"
	yandexMinSpeed     = 0.1
	yandexMaxSpeed     = 3.0
	// Hz of pitch shift per unit of pitch away from 1.0.
	yandexPitchShiftScale = 500
	yandexMaxPitchShift   = 1000
)

// YandexVoices is the SpeechKit v3 voice catalog. The API has no listing
// call, so the catalog is static.
var YandexVoices = []Voice{
	{ID: "marina", Name: "Marina", Language: "ru-RU"},
	{ID: "alena", Name: "Alena", Language: "ru-RU"},
	{ID: "filipp", Name: "Filipp", Language: "ru-RU"},
	{ID: "ermil", Name: "Ermil", Language: "ru-RU"},
	{ID: "jane", Name: "Jane", Language: "ru-RU"},
	{ID: "omazh", Name: "Omazh", Language: "ru-RU"},
	{ID: "zahar", Name: "Zahar", Language: "ru-RU"},
	{ID: "dasha", Name: "Dasha", Language: "ru-RU"},
	{ID: "julia", Name: "Julia", Language: "ru-RU"},
	{ID: "lera", Name: "Lera", Language: "ru-RU"},
	{ID: "masha", Name: "Masha", Language: "ru-RU"},
	{ID: "alexander", Name: "Alexander", Language: "ru-RU"},
	{ID: "kirill", Name: "Kirill", Language: "ru-RU"},
	{ID: "anton", Name: "Anton", Language: "ru-RU"},
	{ID: "john", Name: "John", Language: "en-US"},
	{ID: "lea", Name: "Lea", Language: "de-DE"},
	{ID: "naomi", Name: "Naomi", Language: "he-IL"},
	{ID: "amira", Name: "Amira", Language: "kk-KK"},
	{ID: "madi", Name: "Madi", Language: "kk-KK"},
	{ID: "nigora", Name: "Nigora", Language: "uz-UZ"},
}

func init() {
	Register("yandex", func(cfg Config) (Synthesizer, error) {
		return NewYandexTTSClient(YandexConfig{
			ApiKey:   cfg.YandexAPIKey,
			FolderID: cfg.YandexFolderID,
			Model:    cfg.YandexModel,
			Format:   cfg.YandexFormat,
		})
	})
}

type YandexConfig struct {
	ApiKey   string
	FolderID string
	Model    string
	// Format is "wav" or "mp3".
	Format string
}

type YandexTTSClient struct {
	client   ytts.SynthesizerClient
	conn     *grpc.ClientConn
	apiKey   string
	folderID string
	model    string
	format   ytts.ContainerAudio_ContainerAudioType
}

// Ensure YandexTTSClient implements Synthesizer interface
var _ Synthesizer = (*YandexTTSClient)(nil)

func NewYandexTTSClient(config YandexConfig) (*YandexTTSClient, error) {
	if config.ApiKey == "" {
		return nil, errors.New("yandex: api key is required")
	}

	format, err := parseYandexFormat(config.Format)
	if err != nil {
		return nil, err
	}

	model := config.Model
	if model == "" {
		model = yandexDefaultModel
	}

	creds := credentials.NewTLS(&tls.Config{})

	conn, err := grpc.NewClient(YandexTTSEndpoint, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to TTS service: %w", err)
	}

	return &YandexTTSClient{
		client:   ytts.NewSynthesizerClient(conn),
		conn:     conn,
		apiKey:   config.ApiKey,
		folderID: config.FolderID,
		model:    model,
		format:   format,
	}, nil
}

func parseYandexFormat(format string) (ytts.ContainerAudio_ContainerAudioType, error) {
	switch strings.ToLower(format) {
	case "", "wav":
		return ytts.ContainerAudio_WAV, nil
	case "mp3":
		return ytts.ContainerAudio_MP3, nil
	default:
		return 0, fmt.Errorf("yandex: unsupported audio format %q", format)
	}
}

func (c *YandexTTSClient) Voices(_ context.Context) ([]Voice, error) {
	voices := make([]Voice, len(YandexVoices))
	copy(voices, YandexVoices)
	return voices, nil
}

func (c *YandexTTSClient) SynthesizeToStreamWithContext(ctx context.Context, text string, options SynthesisOptions, audioData chan<- []byte) error {
	ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Api-Key "+c.apiKey)
	if c.folderID != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "x-folder-id", c.folderID)
	}

	req := c.buildRequest(text, options)

	stream, err := c.client.UtteranceSynthesis(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to start synthesis: %w", err)
	}

	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to receive audio data: %w", err)
		}

		if audioChunk := resp.GetAudioChunk(); audioChunk != nil {
			select {
			case audioData <- audioChunk.GetData():
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return nil
}

// resolveYandexVoice picks the requested voice, else the first catalog voice
// for the language, else the service default.
func resolveYandexVoice(options SynthesisOptions) string {
	if options.Voice != "" {
		return options.Voice
	}
	if options.Language != "" {
		for _, v := range YandexVoices {
			if strings.EqualFold(v.Language, options.Language) {
				return v.ID
			}
		}
	}
	return yandexDefaultVoice
}

func (c *YandexTTSClient) buildRequest(text string, options SynthesisOptions) *ytts.UtteranceSynthesisRequest {
	req := &ytts.UtteranceSynthesisRequest{}
	req.SetModel(c.model)
	req.SetText(text)

	voiceHint := &ytts.Hints{}
	voiceHint.SetVoice(resolveYandexVoice(options))

	speed := options.Speed
	if speed <= 0 {
		speed = 1.0
	}
	speedHint := &ytts.Hints{}
	speedHint.SetSpeed(clamp(speed, yandexMinSpeed, yandexMaxSpeed))

	hints := []*ytts.Hints{voiceHint, speedHint}

	if options.Pitch != nil && *options.Pitch != 1.0 {
		shift := clamp((*options.Pitch-1.0)*yandexPitchShiftScale, -yandexMaxPitchShift, yandexMaxPitchShift)
		pitchHint := &ytts.Hints{}
		pitchHint.SetPitchShift(shift)
		hints = append(hints, pitchHint)
	}

	req.SetHints(hints)

	containerAudio := &ytts.ContainerAudio{}
	containerAudio.SetContainerAudioType(c.format)
	audioSpec := &ytts.AudioFormatOptions{}
	audioSpec.SetContainerAudio(containerAudio)
	req.SetOutputAudioSpec(audioSpec)

	req.SetLoudnessNormalizationType(ytts.UtteranceSynthesisRequest_LUFS)

	return req
}

func (c *YandexTTSClient) Close() error {
	return c.conn.Close()
}
