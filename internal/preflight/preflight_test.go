package preflight

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wbwatch/internal/config"
	"wbwatch/internal/orders"
)

type fakeStore struct {
	pingErr    error
	warehouses []orders.Warehouse
	listErr    error
}

func (f fakeStore) Ping(context.Context) error { return f.pingErr }

func (f fakeStore) Warehouses(context.Context) ([]orders.Warehouse, error) {
	return f.warehouses, f.listErr
}

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckStore(t *testing.T) {
	if r := CheckStore(context.Background(), nil); r.Passed {
		t.Fatal("expected failure for nil store")
	}
	if r := CheckStore(context.Background(), fakeStore{pingErr: errors.New("disk gone")}); r.Passed || r.Detail != "disk gone" {
		t.Fatalf("unexpected result %+v", r)
	}
	if r := CheckStore(context.Background(), fakeStore{}); !r.Passed {
		t.Fatalf("expected pass, got %+v", r)
	}
}

func TestCheckWarehouses(t *testing.T) {
	tests := []struct {
		name   string
		store  fakeStore
		passed bool
		detail string
	}{
		{"empty", fakeStore{}, false, "no usable warehouses"},
		{"missing keys", fakeStore{warehouses: []orders.Warehouse{{Name: "A"}}}, false, "1 rows"},
		{"one usable", fakeStore{warehouses: []orders.Warehouse{{Name: "A", APIKey: "k"}, {Name: "B"}}}, true, "1 usable, 1 skipped"},
		{"read error", fakeStore{listErr: errors.New("locked")}, false, "locked"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := CheckWarehouses(context.Background(), tt.store)
			if r.Passed != tt.passed {
				t.Fatalf("passed = %v, want %v (%s)", r.Passed, tt.passed, r.Detail)
			}
			if !strings.Contains(r.Detail, tt.detail) {
				t.Fatalf("detail %q does not contain %q", r.Detail, tt.detail)
			}
		})
	}
}

func TestCheckTelegram_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botgood-token/getMe" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"username":"orders_bot"}}`))
	}))
	defer srv.Close()

	result := CheckTelegram(context.Background(), config.Telegram{APIURL: srv.URL, BotToken: "good-token"})
	if !result.Passed || result.Detail != "@orders_bot" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestCheckTelegram_RejectedToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	result := CheckTelegram(context.Background(), config.Telegram{APIURL: srv.URL, BotToken: "bad-token"})
	if result.Passed || result.Advisory {
		t.Fatalf("expected blocking failure, got %+v", result)
	}
	if strings.Contains(result.Detail, "bad-token") {
		t.Fatalf("detail leaks token: %q", result.Detail)
	}
}

func TestCheckTelegram_UnreachableIsAdvisory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	result := CheckTelegram(context.Background(), config.Telegram{APIURL: url, BotToken: "secret-token"})
	if result.Passed || !result.Advisory {
		t.Fatalf("expected advisory failure, got %+v", result)
	}
	if strings.Contains(result.Detail, "secret-token") {
		t.Fatalf("detail leaks token: %q", result.Detail)
	}
}

func TestCheckTelegram_MissingTokenAndDryRun(t *testing.T) {
	if r := CheckTelegram(context.Background(), config.Telegram{}); r.Passed || r.Advisory {
		t.Fatalf("expected blocking failure for missing token, got %+v", r)
	}
	if r := CheckTelegram(context.Background(), config.Telegram{DryRun: true}); !r.Passed {
		t.Fatalf("expected dry run to pass, got %+v", r)
	}
}

func TestRunAllAndFailed(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "missing")
	cfg.Telegram.DryRun = true

	results := RunAll(context.Background(), &cfg, fakeStore{warehouses: []orders.Warehouse{{Name: "A", APIKey: "k"}}})
	if len(results) != 6 {
		t.Fatalf("expected 6 results, got %d", len(results))
	}
	failed := Failed(results)
	if len(failed) != 1 || failed[0].Name != "Log directory" {
		t.Fatalf("expected only the log directory to block, got %+v", failed)
	}
	if got := Names(failed); got != "Log directory" {
		t.Fatalf("Names = %q", got)
	}
}
