// Package i18n отдаёт локализованные строки из встроенных YAML-каталогов.
// Шаблоны содержат подстановки вида {name}.
package i18n

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"serotonyl.ru/escrow-bot/internal/common"
)

//go:embed locales/*.yaml
var locales embed.FS

// P: параметры шаблона.
type P = map[string]any

// Catalog: набор строк по языкам.
type Catalog struct {
	fallback string
	langs    []string
	matcher  language.Matcher
	messages map[string]map[string]string
}

// Load читает встроенные каталоги. fallback: язык, на который откатываемся
// при отсутствии строки или неизвестном языке.
func Load(fallback string) (*Catalog, error) {
	entries, err := locales.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("чтение каталогов: %w", err)
	}

	files := make(map[string][]byte, len(entries))
	for _, e := range entries {
		data, err := locales.ReadFile(path.Join("locales", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("чтение %s: %w", e.Name(), err)
		}
		files[strings.TrimSuffix(e.Name(), path.Ext(e.Name()))] = data
	}
	return Parse(files, fallback)
}

// Parse собирает каталог из YAML-файлов (язык → содержимое).
func Parse(files map[string][]byte, fallback string) (*Catalog, error) {
	messages := make(map[string]map[string]string, len(files))
	for lang, data := range files {
		m := make(map[string]string)
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("каталог %s: %w", lang, err)
		}
		messages[lang] = m
	}
	if _, ok := messages[fallback]; !ok {
		return nil, fmt.Errorf("нет каталога для языка по умолчанию %q", fallback)
	}

	langs := make([]string, 0, len(messages))
	for lang := range messages {
		if lang != fallback {
			langs = append(langs, lang)
		}
	}
	sort.Strings(langs)
	// первый тег: язык по умолчанию для matcher
	langs = append([]string{fallback}, langs...)

	tags := make([]language.Tag, 0, len(langs))
	for _, l := range langs {
		tag, err := language.Parse(l)
		if err != nil {
			return nil, fmt.Errorf("некорректный язык %q: %w", l, err)
		}
		tags = append(tags, tag)
	}

	return &Catalog{
		fallback: fallback,
		langs:    langs,
		matcher:  language.NewMatcher(tags),
		messages: messages,
	}, nil
}

// Languages возвращает поддерживаемые языки, язык по умолчанию первым.
func (c *Catalog) Languages() []string {
	out := make([]string, len(c.langs))
	copy(out, c.langs)
	return out
}

// Supports сообщает, есть ли каталог для lang.
func (c *Catalog) Supports(lang string) bool {
	_, ok := c.messages[lang]
	return ok
}

// Match приводит произвольный тег ("en-US", "ru-RU") к поддерживаемому языку.
func (c *Catalog) Match(lang string) string {
	if c.Supports(lang) {
		return lang
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return c.fallback
	}
	_, idx, conf := c.matcher.Match(tag)
	if conf == language.No {
		return c.fallback
	}
	return c.langs[idx]
}

// Render подставляет params в шаблон key. Неизвестный ключ возвращается как есть.
func (c *Catalog) Render(lang, key string, params map[string]any) string {
	tmpl, ok := c.messages[c.Match(lang)][key]
	if !ok {
		tmpl, ok = c.messages[c.fallback][key]
	}
	if !ok {
		return key
	}
	if len(params) == 0 {
		return tmpl
	}

	pairs := make([]string, 0, len(params)*2)
	for k, v := range params {
		pairs = append(pairs, "{"+k+"}", fmt.Sprint(v))
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// DealsWord: слово «сделка» в нужной форме для числа n.
func (c *Catalog) DealsWord(lang string, n int64) string {
	if c.Match(lang) == "ru" {
		return common.PluralizeDeals(n)
	}
	return common.PluralizeDealsEn(n)
}
