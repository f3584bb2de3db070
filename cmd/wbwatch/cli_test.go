package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wbwatch/internal/testsupport"
)

type cliTestEnv struct {
	configPath string
	dataDir    string
}

func fakeWildberries(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/orders/new", func(w http.ResponseWriter, r *http.Request) {
		testsupport.WriteJSON(t, w, http.StatusOK, map[string]any{
			"orders": []map[string]any{{"id": 7001, "article": "MUG-1"}},
		})
	})
	mux.HandleFunc("/api/v3/orders/stickers", func(w http.ResponseWriter, r *http.Request) {
		testsupport.WriteJSON(t, w, http.StatusOK, map[string]any{"stickers": []any{}})
	})
	mux.HandleFunc("/content/v2/get/cards/list", func(w http.ResponseWriter, r *http.Request) {
		testsupport.WriteJSON(t, w, http.StatusOK, map[string]any{
			"cards": []map[string]any{{
				"vendorCode": "MUG-1", "title": "Кружка",
				"photos": []map[string]any{{"square": "https://img/mug.jpg"}},
			}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	srv := fakeWildberries(t)

	dataDir := filepath.Join(base, "data")
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q

[wildberries]
marketplace_url = %q
content_url = %q
retry_base_delay_ms = 1
retry_max_delay_ms = 5
jitter = false

[telegram]
dry_run = true

[logging]
level = "error"

[[warehouses]]
city = "Казань"
name = "Склад Казань"
api_key = "kazan-key"

[[access]]
warehouse = "Склад Казань"
recipient_id = 1001
`, dataDir, filepath.Join(base, "logs"), srv.URL, srv.URL)

	configPath := filepath.Join(base, "wbwatch.toml")
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &cliTestEnv{configPath: configPath, dataDir: dataDir}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "Warehouse seeds: 1, access seeds: 1")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
}

func TestOnceRecordsAndLedgerCommandsReport(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"once"}, env.configPath)
	if err != nil {
		t.Fatalf("once: %v", err)
	}
	requireContains(t, out, "Склад Казань")
	requireContains(t, out, "TOTAL")

	out, _, err = runCLI(t, []string{"ledger", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("ledger list: %v", err)
	}
	requireContains(t, out, "7001")

	out, _, err = runCLI(t, []string{"ledger", "check", "Склад Казань", "7001"}, env.configPath)
	if err != nil {
		t.Fatalf("ledger check: %v", err)
	}
	requireContains(t, out, ": processed")

	out, _, err = runCLI(t, []string{"ledger", "check", "Другой склад", "7001"}, env.configPath)
	if err != nil {
		t.Fatalf("ledger check: %v", err)
	}
	requireContains(t, out, "not processed")

	out, _, err = runCLI(t, []string{"tasks", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("tasks list: %v", err)
	}
	requireContains(t, out, "incomplete_sticker")
	requireContains(t, out, "Кружка")

	out, _, err = runCLI(t, []string{"warehouses"}, env.configPath)
	if err != nil {
		t.Fatalf("warehouses: %v", err)
	}
	requireContains(t, out, "1001")
	requireContains(t, out, "kazan-key")

	// The order is in the ledger now; a second cycle records nothing new.
	if _, _, err := runCLI(t, []string{"once"}, env.configPath); err != nil {
		t.Fatalf("second once: %v", err)
	}
	out, _, err = runCLI(t, []string{"status", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var report statusReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode status: %v\n%s", err, out)
	}
	if report.Running || report.Tasks != 1 || report.Processed != 1 || report.Warehouses != 1 {
		t.Fatalf("unexpected status %+v", report)
	}
}

func TestTasksCompleteUpdatesStatus(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"once"}, env.configPath); err != nil {
		t.Fatalf("once: %v", err)
	}

	out, _, err := runCLI(t, []string{"tasks", "complete", "Склад Казань", "7001"}, env.configPath)
	if err != nil {
		t.Fatalf("tasks complete: %v", err)
	}
	requireContains(t, out, "marked completed")

	out, _, err = runCLI(t, []string{"tasks", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("tasks list: %v", err)
	}
	requireContains(t, out, "completed")
	if strings.Contains(out, "incomplete_sticker") {
		t.Fatalf("expected status to be replaced:\n%s", out)
	}

	if _, _, err := runCLI(t, []string{"tasks", "complete", "Другой склад", "7001"}, env.configPath); err == nil {
		t.Fatal("expected error for an order recorded under another warehouse")
	}
}

func TestWarehouseAndAccessManagement(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"warehouses", "add", "Тула", "Склад Тула", "tula-secret-key"}, env.configPath)
	if err != nil {
		t.Fatalf("warehouses add: %v", err)
	}
	requireContains(t, out, "Warehouse Склад Тула saved")

	out, _, err = runCLI(t, []string{"access", "grant", "Склад Тула", "2002"}, env.configPath)
	if err != nil {
		t.Fatalf("access grant: %v", err)
	}
	requireContains(t, out, "Chat 2002 receives orders of Склад Тула")

	out, _, err = runCLI(t, []string{"warehouses"}, env.configPath)
	if err != nil {
		t.Fatalf("warehouses: %v", err)
	}
	requireContains(t, out, "Склад Тула")
	requireContains(t, out, "2002")

	out, _, err = runCLI(t, []string{"access", "revoke", "Склад Тула", "2002"}, env.configPath)
	if err != nil {
		t.Fatalf("access revoke: %v", err)
	}
	requireContains(t, out, "no longer receives")

	out, _, err = runCLI(t, []string{"access", "revoke", "Склад Тула", "2002"}, env.configPath)
	if err != nil {
		t.Fatalf("second access revoke: %v", err)
	}
	requireContains(t, out, "had no access")

	if _, _, err := runCLI(t, []string{"access", "grant", "Склад Тула", "@manager"}, env.configPath); err == nil {
		t.Fatal("expected non-numeric chat id to be rejected")
	}
	if _, _, err := runCLI(t, []string{"warehouses", "add", "Тула", "Склад Тула", " "}, env.configPath); err == nil {
		t.Fatal("expected empty api key to be rejected")
	}
}

func TestStatusRendersChecks(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Poller ==")
	requireContains(t, out, "[WARN] not running")
	requireContains(t, out, "[OK] dry run")
	requireContains(t, out, "[WARN] disabled (no ntfy topic)")
	if strings.Contains(out, ansiReset) {
		t.Fatal("expected no colour codes when writing to a buffer")
	}
}

func TestTestNotifyWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"test-notify", "--recipient", "1001"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "ntfy topic not configured")
	requireContains(t, out, "dry run")
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable([]string{"A", "B", "C"}, [][]string{{"1"}, {"2", "", "x"}}, []columnAlignment{alignRight})
	for _, want := range []string{"1", "2", "x", emptyCell} {
		requireContains(t, out, want)
	}
	if renderTable(nil, nil, nil) != "" {
		t.Fatal("expected empty output without headers")
	}
}

func TestRenderStatusLine(t *testing.T) {
	plain := renderStatusLine("Telegram", statusError, "bot token rejected", false)
	if !strings.HasPrefix(plain, statusIndent+"Telegram:") || !strings.HasSuffix(plain, "[ERROR] bot token rejected") {
		t.Fatalf("unexpected line %q", plain)
	}
	colored := renderStatusLine("Telegram", statusOK, "", true)
	if !strings.HasPrefix(colored, ansiGreen) || !strings.HasSuffix(colored, "[OK]"+ansiReset) {
		t.Fatalf("unexpected coloured line %q", colored)
	}
}
