package util

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"", true, true},
		{"true", false, true},
		{"YES", false, true},
		{"0", true, false},
		{"off", true, false},
		{"maybe", true, true},
	}
	for _, tt := range tests {
		t.Setenv("CALMPIPE_TEST_BOOL", tt.value)
		if got := ParseBoolEnv("CALMPIPE_TEST_BOOL", tt.def); got != tt.want {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.value, tt.def, got, tt.want)
		}
	}
}

func TestParseDurationEnv(t *testing.T) {
	def := 8 * time.Second
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", def},
		{"3s", 3 * time.Second},
		{" 1m30s ", 90 * time.Second},
		{"soon", def},
		{"-2s", def},
		{"0s", def},
	}
	for _, tt := range tests {
		t.Setenv("CALMPIPE_TEST_DURATION", tt.value)
		if got := ParseDurationEnv("CALMPIPE_TEST_DURATION", def); got != tt.want {
			t.Errorf("ParseDurationEnv(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestNewID(t *testing.T) {
	id := NewID(EpisodePrefix)
	if !strings.HasPrefix(id, EpisodePrefix) {
		t.Fatalf("NewID() = %q, want prefix %q", id, EpisodePrefix)
	}
	if _, err := uuid.Parse(strings.TrimPrefix(id, EpisodePrefix)); err != nil {
		t.Errorf("NewID() suffix is not a UUID: %v", err)
	}
	if NewID(EpisodePrefix) == id {
		t.Error("NewID() returned a duplicate")
	}
}
