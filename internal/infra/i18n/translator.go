package i18n

import (
	"embed"
	"fmt"
	"html"
	"io/fs"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed locales
var LocalesFS embed.FS

// Translator holds flat key -> template maps per language. Templates use {name}
// placeholders which T substitutes from vars.
type Translator struct {
	langs    map[string]map[string]string
	fallback string
}

// NewTranslator loads locales/<lang>.yaml for every lang. The first one is the fallback.
func NewTranslator(fsys fs.FS, langs ...string) (*Translator, error) {
	if len(langs) == 0 {
		return nil, fmt.Errorf("at least one language is required")
	}
	t := &Translator{langs: make(map[string]map[string]string, len(langs)), fallback: langs[0]}
	for _, lang := range langs {
		filePath := path.Join("locales", lang+".yaml")
		data, err := fs.ReadFile(fsys, filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read translation file %s: %w", filePath, err)
		}
		m, err := parse(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse translation file %s: %w", filePath, err)
		}
		t.langs[lang] = m
	}
	return t, nil
}

func newTranslatorFromBytes(lang string, b []byte) (*Translator, error) {
	m, err := parse(b)
	if err != nil {
		return nil, err
	}
	return &Translator{langs: map[string]map[string]string{lang: m}, fallback: lang}, nil
}

func parse(b []byte) (map[string]string, error) {
	var m map[string]string
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// T renders key in lang, falling back to the default language and then to the key itself.
func (t *Translator) T(lang, key string, vars map[string]string) string {
	tpl, ok := t.langs[lang][key]
	if !ok {
		if tpl, ok = t.langs[t.fallback][key]; !ok {
			return key
		}
	}
	if len(vars) == 0 {
		return tpl
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}

// HTML is T for markup templates: every substituted value is HTML-escaped.
func (t *Translator) HTML(lang, key string, vars map[string]string) string {
	escaped := make(map[string]string, len(vars))
	for k, v := range vars {
		escaped[k] = html.EscapeString(v)
	}
	return t.T(lang, key, escaped)
}

// Has reports whether key exists for lang or the fallback.
func (t *Translator) Has(lang, key string) bool {
	if _, ok := t.langs[lang][key]; ok {
		return true
	}
	_, ok := t.langs[t.fallback][key]
	return ok
}
