package fastpath

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/kljensen/snowball"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var DefaultLanguages = []string{"russian", "english"}

// BannedStemSet holds the stems of every banned term under every configured
// language. It is built once and only read afterwards.
type BannedStemSet map[string]struct{}

func (s BannedStemSet) Contains(stem string) bool {
	_, ok := s[stem]
	return ok
}

// Matcher tests texts for banned terms by stem equality. Banned terms and
// input tokens go through the same normalisation and the same languages.
// A multi-word term matches only when all of its words appear consecutively
// in the text, each word compared by stem.
type Matcher struct {
	languages []string
	banned    BannedStemSet
	phrases   [][]map[string]struct{}
}

func NewMatcher(languages []string, bannedTerms []string) (*Matcher, error) {
	if len(languages) == 0 {
		return nil, fmt.Errorf("at least one stemming language is required")
	}
	langs := make([]string, 0, len(languages))
	for _, lang := range languages {
		lang = strings.ToLower(strings.TrimSpace(lang))
		if _, err := snowball.Stem("test", lang, true); err != nil {
			return nil, fmt.Errorf("unsupported stemming language %q: %w", lang, err)
		}
		langs = append(langs, lang)
	}

	m := &Matcher{languages: langs, banned: make(BannedStemSet)}
	for _, term := range bannedTerms {
		words := m.wordStems(term)
		switch len(words) {
		case 0:
		case 1:
			for stem := range words[0] {
				m.banned[stem] = struct{}{}
			}
		default:
			m.phrases = append(m.phrases, words)
		}
	}
	return m, nil
}

func (m *Matcher) BannedStems() BannedStemSet {
	return m.banned
}

// StemsOf returns the union of the stems of every word in text across all
// configured languages.
func (m *Matcher) StemsOf(text string) map[string]struct{} {
	stems := make(map[string]struct{})
	for _, word := range m.wordStems(text) {
		for stem := range word {
			stems[stem] = struct{}{}
		}
	}
	return stems
}

// wordStems keeps word order: one stem set per token.
func (m *Matcher) wordStems(text string) []map[string]struct{} {
	words := tokenize(text)
	out := make([]map[string]struct{}, 0, len(words))
	for _, word := range words {
		stems := make(map[string]struct{}, len(m.languages))
		for _, lang := range m.languages {
			stem, err := snowball.Stem(word, lang, true)
			if err != nil || stem == "" {
				continue
			}
			stems[stem] = struct{}{}
		}
		if len(stems) > 0 {
			out = append(out, stems)
		}
	}
	return out
}

func (m *Matcher) Matches(text string) bool {
	if len(m.banned) == 0 && len(m.phrases) == 0 {
		return false
	}
	words := m.wordStems(text)
	for _, word := range words {
		for stem := range word {
			if m.banned.Contains(stem) {
				return true
			}
		}
	}
	for _, phrase := range m.phrases {
		if containsPhrase(words, phrase) {
			return true
		}
	}
	return false
}

// MatchesSet checks text against single-word stems only.
func (m *Matcher) MatchesSet(text string, banned BannedStemSet) bool {
	if len(banned) == 0 {
		return false
	}
	for stem := range m.StemsOf(text) {
		if banned.Contains(stem) {
			return true
		}
	}
	return false
}

func containsPhrase(words, phrase []map[string]struct{}) bool {
	for start := 0; start+len(phrase) <= len(words); start++ {
		matched := true
		for i, want := range phrase {
			if !sharesStem(words[start+i], want) {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

func sharesStem(a, b map[string]struct{}) bool {
	for stem := range a {
		if _, ok := b[stem]; ok {
			return true
		}
	}
	return false
}

func tokenize(text string) []string {
	// cases.Caser keeps state, one per call.
	lower := cases.Lower(language.Und).String(text)
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '_'
	})
}
