package jsonblock

import (
	"errors"
	"strings"
	"testing"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"prose around", `Here you go: {"severity":"moderate","suggestedFlow":"breathing","reasoning":"ok"} thanks`, `{"severity":"moderate","suggestedFlow":"breathing","reasoning":"ok"}`},
		{"markdown fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"nested", `x {"a":{"b":{"c":1}}} y`, `{"a":{"b":{"c":1}}}`},
		{"first of many", `{"a":1} and also {"b":2}`, `{"a":1}`},
		{"brace in string", `{"reasoning":"use } carefully {"}`, `{"reasoning":"use } carefully {"}`},
		{"escaped quote in string", `{"r":"she said \"}\" loudly"} tail`, `{"r":"she said \"}\" loudly"}`},
		{"escaped backslash before quote", `{"r":"path\\"} tail`, `{"r":"path\\"}`},
		{"unclosed brace before object", `Note: {unclosed. Answer: {"severity":"mild"}`, `{"severity":"mild"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(tt.in)
			if err != nil {
				t.Fatalf("Extract(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Extract(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExtract_NoObject(t *testing.T) {
	for _, in := range []string{"", "no json here", "} backwards {", `{"unterminated": 1`, `["array"]`} {
		if _, err := Extract(in); !errors.Is(err, ErrNoObject) {
			t.Errorf("Extract(%q) error = %v, want ErrNoObject", in, err)
		}
	}
}

func TestExtract_GivesUpAfterMaxStarts(t *testing.T) {
	in := strings.Repeat("{ ", MaxStarts) + `{"a":1}`
	if _, err := Extract(in); !errors.Is(err, ErrNoObject) {
		t.Errorf("expected ErrNoObject after %d unclosed braces, got %v", MaxStarts, err)
	}
	in = strings.Repeat("{ ", MaxStarts-1) + `{"a":1}`
	if got, err := Extract(in); err != nil || got != `{"a":1}` {
		t.Errorf("Extract = %q, %v; want the trailing object", got, err)
	}
}

func TestDecode(t *testing.T) {
	var out struct {
		Insight    string `json:"insight"`
		Experiment string `json:"experiment"`
	}
	err := Decode("Sure! {\"insight\":\"Nice week\",\"experiment\":\"Try a walk\"}", &out)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if out.Insight != "Nice week" || out.Experiment != "Try a walk" {
		t.Errorf("unexpected decode result: %+v", out)
	}
}

func TestDecode_Invalid(t *testing.T) {
	var out map[string]any
	if err := Decode(`{severity: mild}`, &out); !errors.Is(err, ErrInvalidObject) {
		t.Errorf("expected ErrInvalidObject, got %v", err)
	}
	if err := Decode(`nothing`, &out); !errors.Is(err, ErrNoObject) {
		t.Errorf("expected ErrNoObject, got %v", err)
	}
}
