package tts

import (
	"reflect"
	"testing"
)

const espeakVoicesOutput = `Pty Language       Age/Gender VoiceName          File                 Other Languages
 5  af              --/M      Afrikaans          gmw/af
 2  en-gb           --/M      English_(Great_Britain) gmw/en            (en 2)
 5  en-us           --/M      English_(America)  gmw/en-US            (en 3)
 5  ru              --/M      Russian            zle/ru
 5  en-us           --/M      English_(America)  gmw/en-US            (en 3)
`

func TestParseEspeakVoices(t *testing.T) {
	t.Parallel()

	voices := parseEspeakVoices([]byte(espeakVoicesOutput))

	want := []Voice{
		{ID: "gmw/af", Name: "Afrikaans", Language: "af"},
		{ID: "gmw/en", Name: "English (Great Britain)", Language: "en-GB"},
		{ID: "gmw/en-US", Name: "English (America)", Language: "en-US"},
		{ID: "zle/ru", Name: "Russian", Language: "ru"},
	}
	if !reflect.DeepEqual(voices, want) {
		t.Fatalf("unexpected voices:\n got %+v\nwant %+v", voices, want)
	}
}

func TestParseEspeakVoices_Empty(t *testing.T) {
	t.Parallel()

	voices := parseEspeakVoices(nil)
	if voices == nil {
		t.Fatal("expected empty non-nil slice")
	}
	if len(voices) != 0 {
		t.Errorf("expected no voices, got %d", len(voices))
	}
}

func TestCanonicalTag(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"en-us": "en-US",
		"ru":    "ru",
		"pt-br": "pt-BR",
		"!!":    "!!",
	}
	for in, want := range cases {
		if got := canonicalTag(in); got != want {
			t.Errorf("canonicalTag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildEspeakArgs(t *testing.T) {
	t.Parallel()

	pitch := 1.0
	high := 2.0

	tests := []struct {
		name    string
		options SynthesisOptions
		want    []string
	}{
		{
			name:    "voice with defaults",
			options: SynthesisOptions{Voice: "gmw/en-US", Speed: 1.0, Pitch: &pitch},
			want:    []string{"--stdout", "-v", "gmw/en-US", "-s", "175", "-p", "50"},
		},
		{
			name:    "language fallback without pitch",
			options: SynthesisOptions{Language: "ru-RU", Speed: 2.0},
			want:    []string{"--stdout", "-v", "ru-ru", "-s", "350"},
		},
		{
			name:    "clamped rate and pitch",
			options: SynthesisOptions{Speed: 10.0, Pitch: &high},
			want:    []string{"--stdout", "-s", "450", "-p", "99"},
		},
		{
			name:    "slow rate floor",
			options: SynthesisOptions{Speed: 0.1},
			want:    []string{"--stdout", "-s", "80"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := buildEspeakArgs(tt.options)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("buildEspeakArgs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEspeakClient_MissingBinary(t *testing.T) {
	t.Parallel()

	client := NewEspeakClient("speechform-no-such-espeak")
	if _, err := client.Voices(testContext(t)); err == nil {
		t.Error("expected error for missing binary")
	}
}
