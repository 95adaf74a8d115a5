// Package localization holds the officer bot strings, one JSON file per language code.
package localization

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

const DefaultLanguage = "en"

//go:embed locales/*.json
var embedded embed.FS

type catalog map[string]string

// Localizer is read-only after construction and safe for concurrent use.
type Localizer struct {
	catalogs map[string]catalog
}

// Default returns the translations compiled into the binary.
func Default() *Localizer {
	l, err := NewLocalizer(embedded, "locales")
	if err != nil {
		panic(err)
	}
	return l
}

// NewLocalizer loads every <lang>.json in dir. Other files are ignored.
func NewLocalizer(fsys fs.FS, dir string) (*Localizer, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read locales %s", dir)
	}

	l := &Localizer{catalogs: make(map[string]catalog, len(entries))}
	for _, e := range entries {
		lang, ok := strings.CutSuffix(e.Name(), ".json")
		if e.IsDir() || !ok {
			continue
		}
		raw, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, errors.Wrapf(err, "read locale %s", lang)
		}
		var c catalog
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, errors.Wrapf(err, "parse locale %s", lang)
		}
		l.catalogs[strings.ToLower(lang)] = c
	}
	return l, nil
}

// Languages lists the loaded language codes in order.
func (l *Localizer) Languages() []string {
	langs := make([]string, 0, len(l.catalogs))
	for lang := range l.catalogs {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// Match maps a client language tag such as "ta-IN" to a loaded language, or DefaultLanguage.
func (l *Localizer) Match(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if _, ok := l.catalogs[tag]; ok {
		return tag
	}
	if base, _, found := strings.Cut(tag, "-"); found {
		if _, ok := l.catalogs[base]; ok {
			return base
		}
	}
	return DefaultLanguage
}

// GetString looks key up in lang, then in DefaultLanguage, and finally returns key itself.
func (l *Localizer) GetString(lang, key string) string {
	for _, candidate := range []string{lang, DefaultLanguage} {
		if v, ok := l.catalogs[candidate][key]; ok {
			return v
		}
	}
	return key
}

func (l *Localizer) Format(lang, key string, args ...any) string {
	return fmt.Sprintf(l.GetString(lang, key), args...)
}
