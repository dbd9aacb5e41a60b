package api

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/commy-mesh/commy/pkg/auth"
)

func TestEventHandler_MissingTokenIsUnauthorized(t *testing.T) {
	mgr, _ := newTestManager(t)
	h := NewEventHandler(mgr)

	w := httptest.NewRecorder()
	h.Stream(w, httptest.NewRequest(http.MethodGet, "/api/v1/events", nil))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a missing bearer token, got %d", w.Code)
	}
}

func TestEventHandler_StreamsPublishedEvents(t *testing.T) {
	mgr, _ := newTestManager(t)
	h := NewEventHandler(mgr)

	// Pre-register the subscriber's queue and publish an event onto it
	// before the handler starts reading, so Stream's first Next call has
	// something waiting instead of racing a background publisher.
	sub, err := mgr.SubscribeEvents(validToken(string(auth.PermissionSubscribe)), "sub-1")
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	_ = sub

	createBody := `{"identifier":"alpha","max_size":4096,"client_id":"client-1","token":"` + validToken(string(auth.PermissionCreateFile)) + `"}`
	fh := NewFileHandler(mgr)
	cw := httptest.NewRecorder()
	fh.Create(cw, httptest.NewRequest(http.MethodPost, "/api/v1/files", strings.NewReader(createBody)))
	if cw.Code != http.StatusCreated {
		t.Fatalf("seed create failed: %d: %s", cw.Code, cw.Body.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events?subscriber_id=sub-1", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+validToken(string(auth.PermissionSubscribe)))

	w := httptest.NewRecorder()
	h.Stream(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-Subscriber-Id") != "sub-1" {
		t.Errorf("expected the subscriber id header to echo the query param, got %q", w.Header().Get("X-Subscriber-Id"))
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected an event-stream content type, got %q", ct)
	}

	scanner := bufio.NewScanner(strings.NewReader(w.Body.String()))
	var sawEvent, sawData bool
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: file_created") {
			sawEvent = true
		}
		if strings.HasPrefix(line, "data: ") {
			sawData = true
		}
	}
	if !sawEvent || !sawData {
		t.Errorf("expected an SSE file_created event in the body, got:\n%s", w.Body.String())
	}
}
