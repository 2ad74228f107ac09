// Package i18n provides localised user-facing strings.
//
// The clinic operates in Turkish; Turkish is the default catalogue and English
// is the fallback for deployments abroad. Only client-visible text goes through
// this package; log messages stay in English.
package i18n

import (
	"fmt"
	"strings"
)

// Supported languages.
const (
	LangTR = "tr"
	LangEN = "en"
)

// Catalog resolves message keys for one configured language.
// It is immutable after construction and safe for concurrent use.
type Catalog struct {
	lang string
}

// New creates a catalogue for the given language code.
// Unrecognised codes fall back to Turkish, the clinic default.
func New(lang string) *Catalog {
	switch normalize(lang) {
	case LangEN:
		return &Catalog{lang: LangEN}
	default:
		return &Catalog{lang: LangTR}
	}
}

// normalize maps common language code variations to a canonical code.
func normalize(lang string) string {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "en", "en-us", "en-gb", "english":
		return LangEN
	case "tr", "tr-tr", "turkish", "türkçe":
		return LangTR
	default:
		return ""
	}
}

// Language returns the canonical language code of the catalogue.
func (c *Catalog) Language() string {
	return c.lang
}

// T returns the translated message for the given key.
// Falls back to Turkish, then to the key itself.
func (c *Catalog) T(key string) string {
	if msg, ok := messages[c.lang][key]; ok {
		return msg
	}
	if msg, ok := messages[LangTR][key]; ok {
		return msg
	}
	return key
}

// Sprintf returns the translated and formatted message.
func (c *Catalog) Sprintf(key string, args ...any) string {
	return fmt.Sprintf(c.T(key), args...)
}

// messages stores all translations, keyed by language then message key.
var messages = map[string]map[string]string{
	LangTR: messagesTR,
	LangEN: messagesEN,
}
