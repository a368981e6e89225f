package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSON is returned when a model response carries no decodable JSON value.
var ErrNoJSON = errors.New("no JSON value found in model response")

var fencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)```")

// ExtractJSON returns the first JSON object or array found in free text. Fenced code
// blocks are tried before the surrounding prose.
func ExtractJSON(text string) (json.RawMessage, error) {
	return firstValue(text, "{[")
}

// FirstJSONObject is ExtractJSON restricted to objects.
func FirstJSONObject(text string) (json.RawMessage, error) {
	return firstValue(text, "{")
}

// FirstJSONArray is ExtractJSON restricted to arrays.
func FirstJSONArray(text string) (json.RawMessage, error) {
	return firstValue(text, "[")
}

func firstValue(text, openers string) (json.RawMessage, error) {
	candidates := make([]string, 0, 2)
	for _, m := range fencePattern.FindAllStringSubmatch(text, -1) {
		candidates = append(candidates, m[1])
	}
	candidates = append(candidates, text)

	for _, c := range candidates {
		if raw, ok := scan(c, openers); ok {
			return raw, nil
		}
	}
	return nil, ErrNoJSON
}

// scan tries every opener position in order and keeps the first one that decodes as a
// complete value. Trailing prose after the value is ignored.
func scan(text, openers string) (json.RawMessage, bool) {
	for i := 0; i < len(text); i++ {
		if !strings.ContainsRune(openers, rune(text[i])) {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(text[i:]))
		var raw json.RawMessage
		if err := dec.Decode(&raw); err == nil {
			return raw, true
		}
	}
	return nil, false
}
