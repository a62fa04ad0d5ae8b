// Package testutil provides common test utilities and helpers for CalmPipe tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BTreeMap/CalmPipe/internal/models"
)

// ErrStubFailure is returned by a StubRemote configured to fail.
var ErrStubFailure = errors.New("stub remote failure")

// StubRemote is a scriptable remote classifier. It implements the triage,
// insight and reframe remote interfaces and counts every call.
type StubRemote struct {
	// Reply is returned verbatim when Err is nil.
	Reply string
	// Err is returned instead of Reply when set.
	Err error
	// Delay blocks each call until it elapses or the context ends.
	Delay time.Duration

	calls atomic.Int64

	mu          sync.Mutex
	lastTriage  *models.TriageInput
	lastInsight *models.InsightRequest
	lastReframe *models.ReframeRequest
}

// NewReplyingRemote returns a stub that answers every call with reply.
func NewReplyingRemote(reply string) *StubRemote {
	return &StubRemote{Reply: reply}
}

// NewFailingRemote returns a stub that fails every call.
func NewFailingRemote() *StubRemote {
	return &StubRemote{Err: ErrStubFailure}
}

func (s *StubRemote) respond(ctx context.Context) (string, error) {
	s.calls.Add(1)
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if s.Err != nil {
		return "", s.Err
	}
	return s.Reply, nil
}

// ClassifyTriage implements triage.Remote.
func (s *StubRemote) ClassifyTriage(ctx context.Context, in models.TriageInput) (string, error) {
	s.mu.Lock()
	s.lastTriage = &in
	s.mu.Unlock()
	return s.respond(ctx)
}

// SummarizeWeek implements insight.Remote.
func (s *StubRemote) SummarizeWeek(ctx context.Context, req models.InsightRequest) (string, error) {
	s.mu.Lock()
	s.lastInsight = &req
	s.mu.Unlock()
	return s.respond(ctx)
}

// Reframe implements reframe.Remote.
func (s *StubRemote) Reframe(ctx context.Context, req models.ReframeRequest) (string, error) {
	s.mu.Lock()
	s.lastReframe = &req
	s.mu.Unlock()
	return s.respond(ctx)
}

// Calls returns how many remote calls were made.
func (s *StubRemote) Calls() int {
	return int(s.calls.Load())
}

// LastTriage returns the most recent triage input, or nil.
func (s *StubRemote) LastTriage() *models.TriageInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTriage
}

// LastInsight returns the most recent insight request, or nil.
func (s *StubRemote) LastInsight() *models.InsightRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastInsight
}

// LastReframe returns the most recent reframe request, or nil.
func (s *StubRemote) LastReframe() *models.ReframeRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReframe
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes an APIResponse envelope and validates the status field.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}

	return response
}

// DecodeJSON decodes a recorder body into v.
func DecodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode JSON response %q: %v", rr.Body.String(), err)
	}
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	switch b := body.(type) {
	case nil:
		reqBody = bytes.NewBuffer(nil)
	case string:
		reqBody = bytes.NewBufferString(b)
	default:
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
