package observability

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/titpd/internal/processor"
	"github.com/danmuck/titpd/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
)

type fakeStatus struct {
	ready    bool
	sessions int64
}

func (f fakeStatus) Ready() bool           { return f.ready }
func (f fakeStatus) ActiveSessions() int64 { return f.sessions }

type fakeLister []processor.Entry

func (f fakeLister) Entries() []processor.Entry { return f }

func newTestAdmin(status StatusSource) *AdminServer {
	gin.SetMode(gin.TestMode)
	return NewAdminServer(AdminConfig{}, status, fakeLister{
		{MTI: "0100", Name: "authorization"},
		{MTI: "0800", Name: "network_management"},
	})
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthAndReady(t *testing.T) {
	testlog.Start(t)
	admin := newTestAdmin(fakeStatus{ready: true, sessions: 3})

	if rec := get(t, admin.Handler(), "/health"); rec.Code != http.StatusOK {
		t.Fatalf("health: status %d", rec.Code)
	}

	rec := get(t, admin.Handler(), "/ready")
	if rec.Code != http.StatusOK {
		t.Fatalf("ready: status %d", rec.Code)
	}
	var body struct {
		Ready          bool  `json:"ready"`
		ActiveSessions int64 `json:"active_sessions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode ready: %v", err)
	}
	if !body.Ready || body.ActiveSessions != 3 {
		t.Fatalf("unexpected ready body: %+v", body)
	}
}

func TestReadyReportsUnavailable(t *testing.T) {
	testlog.Start(t)
	admin := newTestAdmin(fakeStatus{ready: false})
	if rec := get(t, admin.Handler(), "/ready"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestProcessorsAndMetrics(t *testing.T) {
	testlog.Start(t)
	admin := newTestAdmin(fakeStatus{ready: true})

	rec := get(t, admin.Handler(), "/processors")
	var body struct {
		Processors []processor.Entry `json:"processors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode processors: %v", err)
	}
	if len(body.Processors) != 2 || body.Processors[0].MTI != "0100" {
		t.Fatalf("unexpected processors: %+v", body.Processors)
	}

	RecordMessage("0800", "00", time.Millisecond)
	rec = get(t, admin.Handler(), "/metrics")
	if !strings.Contains(rec.Body.String(), "titpd_pipeline_messages_total") {
		t.Fatalf("metrics output missing pipeline counter")
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	testlog.Start(t)
	admin := newTestAdmin(fakeStatus{ready: true})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- admin.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	_ = resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("admin server did not stop")
	}
}

func TestTokenGuardsMetricsAndProcessors(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	admin := NewAdminServer(AdminConfig{Token: "s3cret"}, fakeStatus{ready: true}, fakeLister{})

	for _, path := range []string{"/metrics", "/processors"} {
		if rec := get(t, admin.Handler(), path); rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s without token: expected 401, got %d", path, rec.Code)
		}
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer s3cret")
		rec := httptest.NewRecorder()
		admin.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s with token: expected 200, got %d", path, rec.Code)
		}
	}
	if rec := get(t, admin.Handler(), "/health"); rec.Code != http.StatusOK {
		t.Fatalf("health must stay open, got %d", rec.Code)
	}
}
