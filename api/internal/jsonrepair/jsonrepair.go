// Package jsonrepair turns free-form model output into a parsed JSON value,
// tolerating the defects models systematically produce: Markdown code
// fences, prose around the object, trailing commas, unterminated strings
// and unbalanced brackets. The transformation is pure; callers get either
// a value or a typed error carrying a diagnostic excerpt.
package jsonrepair

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSONStructure means the input contains no JSON object or array at all.
var ErrNoJSONStructure = errors.New("no JSON structure found in response")

// excerptLen bounds the raw text attached to repair failures.
const excerptLen = 1000

// RepairError reports that both parse attempts (original and repaired)
// failed. Err is the original parse error; Excerpt is the offending text,
// truncated for diagnostics.
type RepairError struct {
	Err     error
	Excerpt string
}

func (e *RepairError) Error() string {
	return fmt.Sprintf("JSON repair failed: %v; text: %s", e.Err, e.Excerpt)
}

func (e *RepairError) Unwrap() error { return e.Err }

// Extract locates, repairs and validates the first top-level JSON value in
// raw, returning its text. The steps run in a fixed order: strip code
// fences, cut from the first opening brace to the matching last closer,
// drop trailing commas, parse; on failure balance quotes and brackets and
// parse once more.
func Extract(raw string) (json.RawMessage, error) {
	s := StripCodeFences(raw)

	s, ok := outerStructure(s)
	if !ok {
		return nil, ErrNoJSONStructure
	}

	s = removeTrailingCommas(s)

	firstErr := parseCheck(s)
	if firstErr == nil {
		return json.RawMessage(s), nil
	}

	repaired := balanceBrackets(balanceQuotes(s))
	if err := parseCheck(repaired); err == nil {
		return json.RawMessage(repaired), nil
	}

	excerpt := raw
	if len(excerpt) > excerptLen {
		excerpt = excerpt[:excerptLen]
	}
	return nil, &RepairError{Err: firstErr, Excerpt: excerpt}
}

// ExtractInto runs Extract and unmarshals the result into v.
func ExtractInto(raw string, v any) error {
	data, err := Extract(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// StripCodeFences removes a Markdown code-fence wrapper (```json ... ```)
// if one is present.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "```json")
			s = strings.TrimPrefix(s, "```")
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// outerStructure cuts from the first '{' or '[' to the matching last '}'
// or ']'. When the last closer does not balance the opener (truncated
// output), the whole tail is kept so bracket balancing can finish the job.
func outerStructure(s string) (string, bool) {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", false
	}
	end := strings.LastIndexAny(s, "}]")
	if end < start {
		return s[start:], true
	}
	if cut := s[start : end+1]; bracketsBalanced(cut) {
		return cut, true
	}
	return s[start:], true
}

// bracketsBalanced reports whether every brace/bracket outside string
// literals is closed.
func bracketsBalanced(s string) bool {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return false
			}
			stack = stack[:len(stack)-1]
		}
	}
	return len(stack) == 0 && !inString
}

// removeTrailingCommas drops commas that directly precede a closing brace
// or bracket, outside string literals.
func removeTrailingCommas(s string) string {
	var out strings.Builder
	out.Grow(len(s))
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			out.WriteByte(c)
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			out.WriteByte(c)
			continue
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && (s[j] == ' ' || s[j] == '\t' || s[j] == '\n' || s[j] == '\r') {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue // drop the comma
			}
		}
		out.WriteByte(c)
	}
	return out.String()
}

// balanceQuotes appends a closing quote when the count of unescaped quotes
// is odd (a string the model never terminated).
func balanceQuotes(s string) string {
	count := 0
	escaped := false
	for i := 0; i < len(s); i++ {
		if escaped {
			escaped = false
			continue
		}
		switch s[i] {
		case '\\':
			escaped = true
		case '"':
			count++
		}
	}
	if count%2 == 1 {
		return s + `"`
	}
	return s
}

// balanceBrackets appends missing closing braces/brackets in LIFO order.
func balanceBrackets(s string) string {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		}
	}
	for i := len(stack) - 1; i >= 0; i-- {
		s += string(stack[i])
	}
	return s
}

func parseCheck(s string) error {
	var v any
	return json.Unmarshal([]byte(s), &v)
}
