package jsonrepair

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func mustParse(t *testing.T, s string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("bad fixture %q: %v", s, err)
	}
	return v
}

func extractValue(t *testing.T, raw string) any {
	t.Helper()
	data, err := Extract(raw)
	if err != nil {
		t.Fatalf("Extract(%q): %v", raw, err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("Extract returned invalid JSON %q: %v", data, err)
	}
	return v
}

func TestExtract_ValidJSONUnchanged(t *testing.T) {
	cases := []string{
		`{"a":1,"b":[true,null,"x"]}`,
		`[1,2,3]`,
		`{"nested":{"deep":{"s":"a \"quoted\" value, with commas"}}}`,
	}
	for _, c := range cases {
		if got := extractValue(t, c); !reflect.DeepEqual(got, mustParse(t, c)) {
			t.Errorf("valid JSON changed: %q -> %v", c, got)
		}
	}
}

func TestExtract_CodeFences(t *testing.T) {
	raw := "```json\n{\"exercises\": [{\"exerciseNumber\":\"1\",},]}\n```"
	got := extractValue(t, raw)
	want := mustParse(t, `{"exercises":[{"exerciseNumber":"1"}]}`)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("fence + trailing commas: got %v, want %v", got, want)
	}
}

func TestExtract_ProseAroundObject(t *testing.T) {
	raw := "Here is the result you asked for:\n{\"subject\": \"math\"}\nLet me know!"
	got := extractValue(t, raw)
	want := mustParse(t, `{"subject":"math"}`)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExtract_TrailingCommas(t *testing.T) {
	cases := map[string]string{
		`{"a":1,}`:           `{"a":1}`,
		`[1,2,]`:             `[1,2]`,
		`{"a":[1,],"b":2,}`:  `{"a":[1],"b":2}`,
		`{"s":"keep,}this"}`: `{"s":"keep,}this"}`, // commas inside strings survive
	}
	for raw, want := range cases {
		if got := extractValue(t, raw); !reflect.DeepEqual(got, mustParse(t, want)) {
			t.Errorf("%q: got %v, want %v", raw, got, mustParse(t, want))
		}
	}
}

func TestExtract_UnterminatedString(t *testing.T) {
	got := extractValue(t, `{"topic": "fractions`)
	want := mustParse(t, `{"topic":"fractions"}`)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExtract_UnbalancedBrackets(t *testing.T) {
	cases := map[string]string{
		`{"a":[1,2`:          `{"a":[1,2]}`,
		`{"a":{"b":1}`:       `{"a":{"b":1}}`,
		`[{"n":"1"},{"n":"2"`: `[{"n":"1"},{"n":"2"}]`,
	}
	for raw, want := range cases {
		if got := extractValue(t, raw); !reflect.DeepEqual(got, mustParse(t, want)) {
			t.Errorf("%q: got %v, want %v", raw, got, mustParse(t, want))
		}
	}
}

func TestExtract_NoStructure(t *testing.T) {
	_, err := Extract("I could not read anything on this page, sorry.")
	if !errors.Is(err, ErrNoJSONStructure) {
		t.Errorf("expected ErrNoJSONStructure, got %v", err)
	}
}

func TestExtract_UnrepairableCarriesExcerpt(t *testing.T) {
	raw := `{"a": }` + strings.Repeat("x", 2000)
	_, err := Extract(raw)
	var re *RepairError
	if !errors.As(err, &re) {
		t.Fatalf("expected RepairError, got %v", err)
	}
	if len(re.Excerpt) != 1000 {
		t.Errorf("excerpt must truncate to 1000 chars, got %d", len(re.Excerpt))
	}
	if re.Err == nil {
		t.Error("RepairError must carry the original parse error")
	}
}

func TestExtractInto(t *testing.T) {
	var out struct {
		Subject string `json:"subject"`
		Grade   int    `json:"gradeLevel"`
	}
	raw := "```json\n{\"subject\":\"science\",\"gradeLevel\":7,}\n```"
	if err := ExtractInto(raw, &out); err != nil {
		t.Fatal(err)
	}
	if out.Subject != "science" || out.Grade != 7 {
		t.Errorf("unexpected decode: %+v", out)
	}
}

func TestStripCodeFences(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n[1]\n```":           `[1]`,
		`{"a":1}`:                 `{"a":1}`,
		"```json{\"a\":1}```":     `{"a":1}`,
	}
	for in, want := range cases {
		if got := StripCodeFences(in); got != want {
			t.Errorf("StripCodeFences(%q) = %q, want %q", in, got, want)
		}
	}
}
