package i18n

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Translator retrieves localized messages for Issue codes.
// data provides optional metadata to embed in the message (for example,
// "column" or "limit").
type Translator interface {
	Message(code string, data map[string]string) string
}

// dictTranslator is the built-in dictionary-based Translator. Templates use
// {name} placeholders filled from data.
type dictTranslator struct{ lang string }

var dictionaries = map[string]map[string]string{
	"en": {
		"parse_error":      "parse error",
		"duplicate_key":    "duplicate key",
		"truncated":        "input truncated at {limit} bytes",
		"max_depth":        "nesting deeper than {limit}",
		"invalid_policy":   "invalid setting {field}",
		"column_collision": "column {column} of relation {relation} written twice",
	},
	"ja": {
		"parse_error":      "解析エラー",
		"duplicate_key":    "キーが重複しています",
		"truncated":        "{limit} バイトで打ち切られました",
		"max_depth":        "ネストが上限 {limit} を超えています",
		"invalid_policy":   "設定 {field} が不正です",
		"column_collision": "リレーション {relation} の列 {column} が二重に書き込まれました",
	},
}

func (t dictTranslator) Message(code string, data map[string]string) string {
	tmpl, ok := dictionaries[t.lang][code]
	if !ok {
		return code
	}
	if len(data) == 0 || !strings.Contains(tmpl, "{") {
		return trimPlaceholders(tmpl)
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{"+k+"}", data[k])
	}
	return trimPlaceholders(strings.NewReplacer(pairs...).Replace(tmpl))
}

// trimPlaceholders drops unfilled {name} placeholders.
func trimPlaceholders(s string) string {
	for {
		i := strings.IndexByte(s, '{')
		if i < 0 {
			return s
		}
		j := strings.IndexByte(s[i:], '}')
		if j < 0 {
			return s
		}
		s = strings.Join(strings.Fields(s[:i]+s[i+j+1:]), " ")
	}
}

var (
	mu                sync.RWMutex
	currentTranslator Translator = dictTranslator{lang: "en"}
)

// SetLanguage switches the built-in Translator language ("en"/"ja").
func SetLanguage(lang string) {
	if _, ok := dictionaries[lang]; !ok {
		lang = "en"
	}
	mu.Lock()
	currentTranslator = dictTranslator{lang: lang}
	mu.Unlock()
}

// SetTranslator replaces the Translator implementation (not limited to the
// dictionary version).
func SetTranslator(tr Translator) {
	if tr == nil {
		tr = dictTranslator{lang: "en"}
	}
	mu.Lock()
	currentTranslator = tr
	mu.Unlock()
}

// T fetches a message for the given code using the current Translator.
func T(code string, data map[string]string) string {
	mu.RLock()
	tr := currentTranslator
	mu.RUnlock()
	return tr.Message(code, data)
}

// Params stringifies structured issue parameters for T.
func Params(params map[string]any) map[string]string {
	if len(params) == 0 {
		return nil
	}
	out := make(map[string]string, len(params))
	for k, v := range params {
		out[k] = fmt.Sprint(v)
	}
	return out
}
