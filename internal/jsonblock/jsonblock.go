// Package jsonblock pulls a JSON object out of free-form model output.
//
// Language-model replies often wrap the object in prose or markdown fences.
// Only the first balanced {...} block is considered; everything around it is
// discarded.
package jsonblock

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoObject indicates the text contains no balanced JSON object.
	ErrNoObject = errors.New("no JSON object found")
	// ErrInvalidObject indicates the first balanced block is not valid JSON.
	ErrInvalidObject = errors.New("invalid JSON object")
)

// MaxStarts bounds how many opening braces Extract tries before giving up.
const MaxStarts = 8

// Extract returns the first balanced {...} block in s. Braces inside JSON
// string literals, including escaped quotes, do not affect nesting. When an
// opening brace never closes, scanning restarts at the next one.
func Extract(s string) (string, error) {
	offset := 0
	for attempt := 0; attempt < MaxStarts; attempt++ {
		i := strings.IndexByte(s[offset:], '{')
		if i == -1 {
			return "", ErrNoObject
		}
		start := offset + i
		if end, ok := balancedEnd(s, start); ok {
			return s[start : end+1], nil
		}
		offset = start + 1
	}
	return "", ErrNoObject
}

// balancedEnd returns the index of the brace closing the one at start.
func balancedEnd(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// Decode extracts the first balanced block from raw and unmarshals it into v.
func Decode(raw string, v any) error {
	block, err := Extract(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(block), v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidObject, err)
	}
	return nil
}
