package i18n

import (
	"fmt"
	"sync"
)

// Translator retrieves localized messages for Issue codes.
// data provides optional metadata to embed in the message (for example,
// "expected" or "key").
type Translator interface {
	Message(code string, data map[string]string) string
}

// dictTranslator is the built-in dictionary-based Translator.
type dictTranslator struct{ lang string }

var dict = map[string]map[string]string{
	"en": {
		"invalid_type":   "invalid type",
		"required":       "this value should not be null",
		"blank":          "this value should not be blank",
		"unknown_key":    "unexpected field",
		"too_long":       "too long",
		"invalid_format": "invalid format",
		"parse_error":    "parse error",
	},
	"ja": {
		"invalid_type":   "型が不正です",
		"required":       "必須の値が指定されていません",
		"blank":          "空にできません",
		"unknown_key":    "未定義のフィールドです",
		"too_long":       "長すぎます",
		"invalid_format": "形式が不正です",
		"parse_error":    "解析エラー",
	},
}

var suffixes = map[string]map[string]string{
	"en": {"expected": " (expected %s)", "key": ": %s"},
	"ja": {"expected": "（期待値: %s）", "key": ": %s"},
}

func (t dictTranslator) Message(code string, data map[string]string) string {
	msg, ok := dict[t.lang][code]
	if !ok {
		return code
	}
	for _, k := range []string{"key", "expected"} {
		if v, ok := data[k]; ok && v != "" {
			msg += fmt.Sprintf(suffixes[t.lang][k], v)
		}
	}
	return msg
}

var (
	mu                           = sync.RWMutex{}
	currentTranslator Translator = dictTranslator{lang: "en"}
)

// SetLanguage switches the built-in Translator language ("en"/"ja").
func SetLanguage(lang string) {
	if lang != "ja" {
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
