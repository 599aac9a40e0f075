package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/d1nch8g/speechform/tts"
)

type Config struct {
	ListenAddr string `mapstructure:"listen_addr"`
	Backend    string `mapstructure:"backend"`

	EspeakBinary string `mapstructure:"espeak_binary"`

	YandexAPIKey   string `mapstructure:"yandex_api_key"`
	YandexFolderID string `mapstructure:"yandex_folder_id"`
	YandexModel    string `mapstructure:"yandex_model"`
	YandexFormat   string `mapstructure:"yandex_format"`

	FramesPerBuffer  int           `mapstructure:"frames_per_buffer"`
	QueueSize        int           `mapstructure:"queue_size"`
	SynthesisTimeout time.Duration `mapstructure:"synthesis_timeout"`

	// WatchVoicesDir, when set, re-discovers voices whenever files in it
	// change.
	WatchVoicesDir string `mapstructure:"watch_voices_dir"`

	LogLevel   string `mapstructure:"log_level"`
	LogFile    string `mapstructure:"log_file"`
	ListVoices bool   `mapstructure:"list_voices"`
}

// LoadConfig reads settings from, in rising priority: defaults, an optional
// .env file, SPEECHFORM_* environment variables and command line flags.
func LoadConfig(args []string) (*Config, error) {
	flagSet := pflag.NewFlagSet("speechform", pflag.ContinueOnError)
	envFile := flagSet.String("env-file", ".env", "Path to a .env file (optional)")
	flagSet.StringP("listen", "a", "", "HTTP listen address")
	flagSet.StringP("backend", "b", "", "TTS backend (espeak, yandex)")
	flagSet.String("espeak-binary", "", "espeak binary (default: espeak-ng, then espeak)")
	flagSet.String("yandex-format", "", "Yandex audio container (wav, mp3)")
	flagSet.String("watch-voices", "", "Directory to watch for voice changes")
	flagSet.StringP("log-level", "l", "", "Log level (debug, info, warn, error)")
	flagSet.String("log-file", "", "Log file path")
	flagSet.Bool("list-voices", false, "List available voices and exit")

	if err := flagSet.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", *envFile, err)
	}

	v := viper.New()
	v.SetDefault("listen_addr", "127.0.0.1:8080")
	v.SetDefault("backend", "espeak")
	v.SetDefault("espeak_binary", "")
	v.SetDefault("yandex_api_key", "")
	v.SetDefault("yandex_folder_id", "")
	v.SetDefault("yandex_model", "general")
	v.SetDefault("yandex_format", "wav")
	v.SetDefault("frames_per_buffer", 1024)
	v.SetDefault("queue_size", 16)
	v.SetDefault("synthesis_timeout", 30*time.Second)
	v.SetDefault("watch_voices_dir", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("list_voices", false)

	bindings := map[string]string{
		"listen_addr":      "listen",
		"backend":          "backend",
		"espeak_binary":    "espeak-binary",
		"yandex_format":    "yandex-format",
		"watch_voices_dir": "watch-voices",
		"log_level":        "log-level",
		"log_file":         "log-file",
		"list_voices":      "list-voices",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, flagSet.Lookup(flag)); err != nil {
			return nil, err
		}
	}

	v.SetEnvPrefix("SPEECHFORM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("listen address is required")
	}
	if !tts.IsRegistered(c.Backend) {
		return fmt.Errorf("unknown backend %q, available: %s", c.Backend, strings.Join(tts.ListBackends(), ", "))
	}
	if c.Backend == "yandex" && c.YandexAPIKey == "" {
		return errors.New("SPEECHFORM_YANDEX_API_KEY must be set for the yandex backend")
	}
	if c.FramesPerBuffer <= 0 {
		return fmt.Errorf("frames per buffer must be positive, got %d", c.FramesPerBuffer)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue size must be positive, got %d", c.QueueSize)
	}
	return nil
}
