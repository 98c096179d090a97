package translate

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/text/language"

	"NewsBoard/internal/ports"
)

// ErrNoTranslation is returned when a translator has nothing for the text.
var ErrNoTranslation = errors.New("no translation available")

// Glossary is a static per-language dictionary of headline translations. A
// lookup tries the requested language, then its base language.
type Glossary struct {
	target  language.Tag
	entries map[language.Tag]map[string]string
}

var _ ports.Translator = (*Glossary)(nil)

// NewGlossary parses the language keys of raw; unparsable keys are skipped.
func NewGlossary(raw map[string]map[string]string, target language.Tag) *Glossary {
	entries := make(map[language.Tag]map[string]string, len(raw))
	for key, pairs := range raw {
		tag, err := language.Parse(key)
		if err != nil {
			continue
		}
		dict := make(map[string]string, len(pairs))
		for source, translated := range pairs {
			dict[normalize(source)] = translated
		}
		entries[tag] = dict
	}
	return &Glossary{target: target, entries: entries}
}

// Translate looks text up for the target language.
func (g *Glossary) Translate(_ context.Context, text string) (string, error) {
	key := normalize(text)
	for _, tag := range g.candidates() {
		if translated, ok := g.entries[tag][key]; ok && translated != "" {
			return translated, nil
		}
	}
	return "", ErrNoTranslation
}

// Languages lists the tags the glossary has entries for.
func (g *Glossary) Languages() []language.Tag {
	tags := make([]language.Tag, 0, len(g.entries))
	for tag := range g.entries {
		tags = append(tags, tag)
	}
	return tags
}

func (g *Glossary) candidates() []language.Tag {
	tags := []language.Tag{g.target}
	if base, conf := g.target.Base(); conf != language.No {
		if tag, err := language.Compose(base); err == nil && tag != g.target {
			tags = append(tags, tag)
		}
	}
	return tags
}

func normalize(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}
