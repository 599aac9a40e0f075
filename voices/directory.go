// Package voices discovers the voices a speech engine offers and the
// distinct languages they cover.
package voices

import "github.com/d1nch8g/speechform/tts"

// Lister is the part of a speech engine discovery needs.
type Lister interface {
	ListVoices() []tts.Voice
}

// Directory is a snapshot of available voices and their languages. An empty
// directory is a legitimate state, not an error.
type Directory struct {
	Voices    []tts.Voice `json:"voices"`
	Languages []string    `json:"languages"`
}

// Discover queries lister once. It never retries: an engine that has not
// loaded its voices yet yields an empty directory.
func Discover(lister Lister) Directory {
	found := lister.ListVoices()

	voices := make([]tts.Voice, len(found))
	copy(voices, found)

	return Directory{
		Voices:    voices,
		Languages: Languages(voices),
	}
}

// Languages returns the distinct language tags of voices in first-seen
// order. Voices without a tag contribute nothing.
func Languages(voices []tts.Voice) []string {
	langs := make([]string, 0, len(voices))
	seen := make(map[string]bool, len(voices))
	for _, v := range voices {
		if v.Language == "" || seen[v.Language] {
			continue
		}
		seen[v.Language] = true
		langs = append(langs, v.Language)
	}
	return langs
}

func (d Directory) Empty() bool {
	return len(d.Voices) == 0
}

// Voice looks up a voice by identifier.
func (d Directory) Voice(id string) (tts.Voice, bool) {
	for _, v := range d.Voices {
		if v.ID == id {
			return v, true
		}
	}
	return tts.Voice{}, false
}

func (d Directory) HasLanguage(tag string) bool {
	for _, l := range d.Languages {
		if l == tag {
			return true
		}
	}
	return false
}
