package remote

import (
	"context"
	"errors"
	"testing"
	"time"
)

type reply struct {
	Text *string `json:"text"`
}

func validateReply(r *reply) error {
	return RequireString("text", r.Text)
}

func TestDo_Success(t *testing.T) {
	out, err := Do(context.Background(), time.Second, func(ctx context.Context) (string, error) {
		return `prefix {"text":"hello"} suffix`, nil
	}, validateReply)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Text == nil || *out.Text != "hello" {
		t.Errorf("unexpected output: %+v", out)
	}
}

func TestDo_Errors(t *testing.T) {
	tests := []struct {
		name string
		call CallFunc
		want error
	}{
		{"transport", func(ctx context.Context) (string, error) { return "", errors.New("connection refused") }, ErrUnavailable},
		{"already malformed", func(ctx context.Context) (string, error) { return "", ErrMalformed }, ErrMalformed},
		{"no json", func(ctx context.Context) (string, error) { return "sorry, I can't help", nil }, ErrMalformed},
		{"bad json", func(ctx context.Context) (string, error) { return `{"text":}`, nil }, ErrMalformed},
		{"wrong type", func(ctx context.Context) (string, error) { return `{"text":42}`, nil }, ErrMalformed},
		{"missing field", func(ctx context.Context) (string, error) { return `{"other":"x"}`, nil }, ErrMalformed},
		{"blank field", func(ctx context.Context) (string, error) { return `{"text":"  "}`, nil }, ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Do(context.Background(), time.Second, tt.call, validateReply)
			if !errors.Is(err, tt.want) {
				t.Errorf("Do() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDo_Timeout(t *testing.T) {
	start := time.Now()
	_, err := Do(context.Background(), 20*time.Millisecond, func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}, validateReply)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on timeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout not honoured, took %v", elapsed)
	}
}

func TestDo_TimeoutWhenCallIgnoresContext(t *testing.T) {
	start := time.Now()
	_, err := Do(context.Background(), 20*time.Millisecond, func(ctx context.Context) (string, error) {
		time.Sleep(500 * time.Millisecond)
		return `{"text":"late"}`, nil
	}, validateReply)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for a late reply, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 250*time.Millisecond {
		t.Errorf("Do waited for the call past its deadline, took %v", elapsed)
	}
}

func TestKind(t *testing.T) {
	if Kind(nil) != "ok" || Kind(ErrMalformed) != "malformed" || Kind(ErrUnavailable) != "unavailable" || Kind(errors.New("x")) != "unknown" {
		t.Error("unexpected Kind labels")
	}
}
