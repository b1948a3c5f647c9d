// Package i18n provides localized display strings loaded from YAML locale files.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/smokyabdulrahman/prayerd/internal/prayer"
)

//go:embed locales/*.yaml
var builtin embed.FS

// Translator loads YAML locale files and provides lookup with fallback.
type Translator struct {
	locales     map[string]map[string]string
	defaultLang string
}

// Default returns a translator over the embedded en and ar locales.
func Default() *Translator {
	sub, err := fs.Sub(builtin, "locales")
	if err != nil {
		panic(err)
	}
	t, err := NewTranslator(sub, "en")
	if err != nil {
		panic(err)
	}
	return t
}

// NewTranslator loads all *.yaml locale files from the root of fsys.
// Each file should be named like en.yaml, ar.yaml and contain flat key/value pairs.
func NewTranslator(fsys fs.FS, defaultLang string) (*Translator, error) {
	t := &Translator{
		locales:     make(map[string]map[string]string),
		defaultLang: defaultLang,
	}
	if err := t.load(fsys); err != nil {
		return nil, err
	}

	// Ensure default exists
	if _, ok := t.locales[defaultLang]; !ok {
		t.locales[defaultLang] = make(map[string]string)
	}
	return t, nil
}

// LoadDir merges locale files from dir over the loaded ones, so users can
// override single keys or add languages.
func (t *Translator) LoadDir(dir string) error {
	return t.load(os.DirFS(dir))
}

func (t *Translator) load(fsys fs.FS) error {
	return fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".yaml") {
			return nil
		}
		lang := strings.TrimSuffix(path.Base(p), ".yaml")
		data, readErr := fs.ReadFile(fsys, p)
		if readErr != nil {
			return fmt.Errorf("read locale %s: %w", p, readErr)
		}
		kv := make(map[string]string)
		if unmarshalErr := yaml.Unmarshal(data, &kv); unmarshalErr != nil {
			return fmt.Errorf("parse locale %s: %w", p, unmarshalErr)
		}
		if t.locales[lang] == nil {
			t.locales[lang] = make(map[string]string, len(kv))
		}
		for k, v := range kv {
			t.locales[lang][k] = v
		}
		return nil
	})
}

// T returns translation for key with fallback to default and then the key itself.
func (t *Translator) T(lang, key string) string {
	if lang != "" {
		if val, ok := t.locales[lang][key]; ok {
			return val
		}
	}
	if val, ok := t.locales[t.defaultLang][key]; ok {
		return val
	}
	return key
}

// Format translates key and substitutes {name} style placeholders from args,
// given as alternating name/value pairs.
func (t *Translator) Format(lang, key string, args ...string) string {
	s := t.T(lang, key)
	if len(args) < 2 {
		return s
	}
	pairs := make([]string, 0, len(args))
	for i := 0; i+1 < len(args); i += 2 {
		pairs = append(pairs, "{"+args[i]+"}", args[i+1])
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

// Available returns loaded language codes, sorted.
func (t *Translator) Available() []string {
	keys := make([]string, 0, len(t.locales))
	for k := range t.locales {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Has reports whether a language is loaded.
func (t *Translator) Has(lang string) bool {
	_, ok := t.locales[lang]
	return ok
}

// Locale binds a translator to one language as a prayer.Localizer.
type Locale struct {
	tr   *Translator
	lang string
}

// For returns the Locale for lang.
func (t *Translator) For(lang string) Locale {
	return Locale{tr: t, lang: lang}
}

// Lang returns the bound language code.
func (l Locale) Lang() string { return l.lang }

// DisplayName returns the prayer's localized name, or the canonical name when
// no translation exists.
func (l Locale) DisplayName(n prayer.Name) string {
	key := "prayer." + string(n)
	if v := l.tr.T(l.lang, key); v != key {
		return v
	}
	return string(n)
}

// Format is Translator.Format in the bound language.
func (l Locale) Format(key string, args ...string) string {
	return l.tr.Format(l.lang, key, args...)
}
