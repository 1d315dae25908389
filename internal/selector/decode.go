package selector

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"IntelDigest/internal/domain"
)

var fencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)```")

// DecodeArray extracts a JSON array of objects from raw model output. It tries, in
// order: the first fenced code block, the first well-formed [...] span, the raw text.
func DecodeArray(raw string) ([]map[string]any, error) {
	strategies := []func(string) (string, bool){
		fencedBlock,
		bracketSpan,
		func(s string) (string, bool) { return strings.TrimSpace(s), true },
	}

	var lastErr error
	for _, strategy := range strategies {
		text, ok := strategy(raw)
		if !ok {
			continue
		}
		objects, err := parseObjects(text)
		if err == nil {
			return objects, nil
		}
		lastErr = err
	}

	if lastErr == nil {
		lastErr = errors.New("empty response")
	}
	return nil, fmt.Errorf("%w: %w", domain.ErrParse, lastErr)
}

func fencedBlock(raw string) (string, bool) {
	m := fencePattern.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	inner := strings.TrimSpace(m[1])
	if span, ok := bracketSpan(inner); ok {
		return span, true
	}
	return inner, true
}

// bracketSpan returns the first balanced [...] span that parses as JSON, scanning
// past brackets inside string literals.
func bracketSpan(raw string) (string, bool) {
	for start := strings.IndexByte(raw, '['); start >= 0; {
		if end, ok := matchBracket(raw, start); ok {
			candidate := raw[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, true
			}
		}
		next := strings.IndexByte(raw[start+1:], '[')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

func matchBracket(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

func parseObjects(text string) ([]map[string]any, error) {
	if text == "" {
		return nil, errors.New("empty response")
	}
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil, fmt.Errorf("decode json array: %w", err)
	}

	objects := make([]map[string]any, 0, len(items))
	for _, item := range items {
		var obj map[string]any
		if err := json.Unmarshal(item, &obj); err != nil || obj == nil {
			continue
		}
		objects = append(objects, obj)
	}
	return objects, nil
}
