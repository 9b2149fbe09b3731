package runtime

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/dropcart/session-record-service/internal/config"
	"github.com/dropcart/session-record-service/internal/core/ports"
	"github.com/dropcart/session-record-service/internal/storage/memory"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{Port: 0, RequestTimeout: "5s"},
		Storage:   config.StorageConfig{Type: "memory"},
		Recording: config.RecordingConfig{ListSize: 10, MaxBatchEvents: 100},
	}
}

func startService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	svc, err := New(append([]Option{WithLogger(quietLogger())}, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		svc.Shutdown(ctx)
	})
	return svc
}

func serve(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, reader))
	return rec
}

func TestService_New_RequiresConfig(t *testing.T) {
	_, err := New()
	if err == nil {
		t.Fatal("Expected error without config provider")
	}
	if err.Error() != "config provider required (use WithFileConfig or WithConfig)" {
		t.Errorf("Unexpected error: %v", err)
	}

	if _, err := New(WithConfig(nil)); err == nil {
		t.Error("WithConfig(nil) should fail")
	}
	if _, err := New(WithFileConfig("")); err == nil {
		t.Error("WithFileConfig(\"\") should fail")
	}
}

func TestService_ServesSessions(t *testing.T) {
	svc := startService(t, WithConfig(testConfig()))

	h := svc.Handler()
	if h == nil {
		t.Fatal("Handler() is nil after Start")
	}

	rec := serve(t, h, http.MethodPost, "/v1/sessions", `{"sessionId":"s1","url":"https://shop.example","timestamp":100,"events":[{"type":2,"timestamp":100}]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("start status = %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("server middleware should set X-Request-ID")
	}

	rec = serve(t, h, http.MethodPost, "/v1/sessions/s1/events", `{"events":[{"type":3,"timestamp":350}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("record status = %d: %s", rec.Code, rec.Body.String())
	}

	meta, err := svc.Repository().GetMetadata(context.Background(), "s1")
	if err != nil || meta == nil {
		t.Fatalf("GetMetadata() = %v, %v", meta, err)
	}
	if meta.EventCount != 2 || meta.Duration != 250 {
		t.Errorf("metadata = %+v", meta)
	}

	if err := svc.Start(context.Background()); err == nil {
		t.Error("second Start() should fail")
	}
}

func TestService_ListSizeFromConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Recording.ListSize = 2
	svc := startService(t, WithConfig(cfg))

	for _, id := range []string{"a", "b", "c"} {
		rec := serve(t, svc.Handler(), http.MethodPost, "/v1/sessions", `{"sessionId":"`+id+`","url":"https://shop.example"}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("start %s status = %d", id, rec.Code)
		}
	}

	list, err := svc.Repository().ListMetadata(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("ListMetadata() error = %v", err)
	}
	if len(list) != 2 || list[0].SessionID != "c" || list[1].SessionID != "b" {
		t.Errorf("list = %+v", list)
	}
}

func TestService_BodyLimitFromConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Server.MaxBodyBytes = 128
	svc := startService(t, WithConfig(cfg))

	body := `{"sessionId":"big","url":"https://shop.example/` + strings.Repeat("a", 256) + `"}`
	rec := serve(t, svc.Handler(), http.MethodPost, "/v1/sessions", body)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413: %s", rec.Code, rec.Body.String())
	}
}

func TestService_WithTracing(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer tp.Shutdown(context.Background())

	svc := startService(t, WithConfig(testConfig()), WithTracing(tp.Tracer("test")))

	rec := serve(t, svc.Handler(), http.MethodGet, "/v1/sessions/ghost", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	found := false
	for _, span := range sr.Ended() {
		if span.Name() == "SessionRepository.GetMetadata" {
			found = true
		}
	}
	if !found {
		t.Error("expected a SessionRepository.GetMetadata span")
	}
}

type closeCounter struct {
	*memory.Store
	closed int
}

func (c *closeCounter) Close() error {
	c.closed++
	return c.Store.Close()
}

var _ ports.BucketProvider = (*closeCounter)(nil)

func TestService_ShutdownClosesStorage(t *testing.T) {
	store := &closeCounter{Store: memory.New()}

	svc, err := New(WithLogger(quietLogger()), WithConfig(testConfig()), WithBucketProvider(store))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := svc.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if store.closed != 1 {
		t.Errorf("storage closed %d times, want 1", store.closed)
	}
}

func TestService_SQLiteFromConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Storage = config.StorageConfig{Type: "sqlite", SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "db", "sessions.db")}}
	svc := startService(t, WithConfig(cfg))

	rec := serve(t, svc.Handler(), http.MethodPost, "/v1/sessions", `{"sessionId":"s1","url":"https://shop.example"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("start status = %d: %s", rec.Code, rec.Body.String())
	}
	if _, err := os.Stat(cfg.Storage.SQLite.Path); err != nil {
		t.Errorf("sqlite file not created: %v", err)
	}
}

func TestService_UnsupportedStorage(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.Type = "s3"

	svc, err := New(WithLogger(quietLogger()), WithConfig(cfg))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := svc.Start(context.Background()); err == nil {
		t.Fatal("Start() should fail for unsupported storage")
	}
}

func TestService_HotReloadsBatchLimit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	write := func(limit string) {
		body := "server:\n  port: 0\nstorage:\n  type: memory\nrecording:\n  max_batch_events: " + limit + "\n"
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
	}
	write("50")

	svc := startService(t, WithLogger(quietLogger()), WithFileConfig(path))
	if got := svc.Recording().MaxBatchEvents(); got != 50 {
		t.Fatalf("MaxBatchEvents() = %d, want 50", got)
	}

	// The watcher starts in the background.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		write("3")
		time.Sleep(50 * time.Millisecond)
		if svc.Recording().MaxBatchEvents() == 3 {
			if svc.Config().Recording.MaxBatchEvents != 3 {
				t.Errorf("Config() max_batch_events = %d, want 3", svc.Config().Recording.MaxBatchEvents)
			}
			return
		}
	}
	t.Fatalf("MaxBatchEvents() = %d after reload, want 3", svc.Recording().MaxBatchEvents())
}
