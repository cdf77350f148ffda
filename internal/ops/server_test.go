package ops

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestHealthEndpoint(t *testing.T) {
	tests := []struct {
		name      string
		checker   Checker
		wantCode   int
		wantStatus string
		wantStore  string
		wantRPC    string
	}{
		{
			name: "all_ok",
			checker: Checker{
				StorePing: func(ctx context.Context) error { return nil },
				RPCPing:   func(ctx context.Context) error { return nil },
			},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
			wantStore:  "ok",
			wantRPC:    "ok",
		},
		{
			name: "store_fail",
			checker: Checker{
				StorePing: func(ctx context.Context) error { return context.DeadlineExceeded },
				RPCPing:   func(ctx context.Context) error { return nil },
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "degraded",
			wantStore:  "fail",
			wantRPC:    "ok",
		},
		{
			name: "rpc_fail",
			checker: Checker{
				StorePing: func(ctx context.Context) error { return nil },
				RPCPing:   func(ctx context.Context) error { return context.DeadlineExceeded },
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "degraded",
			wantStore:  "ok",
			wantRPC:    "fail",
		},
		{
			name:       "no_checkers",
			checker:    Checker{},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Router(tt.checker)

			req := httptest.NewRequest(http.MethodGet, "http://localhost/healthz", nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", w.Code, tt.wantCode)
			}

			var resp map[string]string
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp["status"] != tt.wantStatus {
				t.Errorf("status = %q, want %q", resp["status"], tt.wantStatus)
			}
			if tt.wantStore != "" && resp["store"] != tt.wantStore {
				t.Errorf("store = %q, want %q", resp["store"], tt.wantStore)
			}
			if tt.wantRPC != "" && resp["rpc"] != tt.wantRPC {
				t.Errorf("rpc = %q, want %q", resp["rpc"], tt.wantRPC)
			}
		})
	}
}

func TestServeReportsBindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	var buf safeBuffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	srv := Serve(ln.Addr().String(), Checker{}, log)
	defer srv.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(buf.String(), "ops server failed") {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("bind failure was not logged, log = %q", buf.String())
}

// safeBuffer guards the log buffer against the server goroutine.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestMetricsEndpointMounted(t *testing.T) {
	handler := Router(Checker{})

	req := httptest.NewRequest(http.MethodGet, "http://localhost/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", w.Code)
	}
}
