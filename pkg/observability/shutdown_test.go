package observability

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewShutdownManager(t *testing.T) {
	tests := []struct {
		name            string
		timeout         time.Duration
		expectedTimeout time.Duration
	}{
		{"with custom timeout", 10 * time.Second, 10 * time.Second},
		{"with zero timeout uses default", 0, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := &http.Server{}
			sm := NewShutdownManager(NewNopLogger(), tt.timeout, server)

			if sm.shutdownTimeout != tt.expectedTimeout {
				t.Errorf("Expected timeout %v, got %v", tt.expectedTimeout, sm.shutdownTimeout)
			}
			if len(sm.servers) != 1 || sm.servers[0] != server {
				t.Error("Server not set correctly")
			}
			if len(sm.shutdownFuncs) != 0 {
				t.Error("Expected empty shutdown functions slice")
			}
		})
	}
}

func TestShutdown_RunsFunctions(t *testing.T) {
	sm := NewShutdownManager(NewNopLogger(), time.Second)

	var calls int32
	for i := 0; i < 3; i++ {
		sm.RegisterShutdownFunc(func(ctx context.Context) error {
			atomic.AddInt32(&calls, 1)
			return nil
		})
	}

	if err := sm.Shutdown(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("Expected 3 shutdown calls, got %d", got)
	}
}

func TestShutdown_CollectsErrors(t *testing.T) {
	var buf bytes.Buffer
	sm := NewShutdownManager(NewLogger(InfoLevel, &buf), time.Second)

	sm.RegisterShutdownFunc(func(ctx context.Context) error { return errors.New("db close failed") })
	sm.RegisterShutdownFunc(func(ctx context.Context) error { return nil })
	sm.RegisterShutdownFunc(func(ctx context.Context) error { return errors.New("redis close failed") })

	err := sm.Shutdown(context.Background())
	if err == nil {
		t.Fatal("Expected an error")
	}
	if msg := err.Error(); !bytes.Contains([]byte(msg), []byte("2 errors")) {
		t.Errorf("Expected error count in %q", msg)
	}
}

func TestShutdown_Timeout(t *testing.T) {
	sm := NewShutdownManager(NewNopLogger(), time.Second)
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		time.Sleep(time.Second)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := sm.Shutdown(ctx)
	if err == nil || err.Error() != "shutdown timeout reached" {
		t.Errorf("Expected timeout error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Shutdown waited %v for a slow function", elapsed)
	}
}

func TestShutdown_StopsServers(t *testing.T) {
	ts := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Start()
	defer ts.Close()

	var ran int32
	sm := NewShutdownManager(NewNopLogger(), time.Second, ts.Config, nil)
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		atomic.StoreInt32(&ran, 1)
		return nil
	})

	if err := sm.Shutdown(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if atomic.LoadInt32(&ran) != 1 {
		t.Error("Shutdown function did not run after servers stopped")
	}
	if _, err := http.Get(ts.URL); err == nil {
		t.Error("Expected server to refuse connections after shutdown")
	}
}

func TestWaitForShutdown_ContextCancel(t *testing.T) {
	var ran int32
	sm := NewShutdownManager(NewNopLogger(), time.Second)
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		atomic.StoreInt32(&ran, 1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sm.WaitForShutdown(ctx) }()

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForShutdown did not return after cancel")
	}
	if atomic.LoadInt32(&ran) != 1 {
		t.Error("Expected shutdown function to run")
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	var buf bytes.Buffer
	handler := RecoveryMiddleware(NewLogger(InfoLevel, &buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/admin/users", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", rr.Code)
	}
	if !bytes.Contains(buf.Bytes(), []byte("PANIC recovered in HTTP handler")) {
		t.Errorf("Expected panic to be logged, got %s", buf.String())
	}
}

func TestRecoverPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	func() {
		defer RecoverPanic(logger, "worker")
		panic("worker failed")
	}()

	if !bytes.Contains(buf.Bytes(), []byte(`"context":"worker"`)) {
		t.Errorf("Expected context field, got %s", buf.String())
	}
}
