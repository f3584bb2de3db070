package preflight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"wbwatch/internal/config"
)

const telegramCheckTimeout = 10 * time.Second

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckStore pings the sheets database.
func CheckStore(ctx context.Context, store Store) Result {
	const name = "Sheets store"
	if store == nil {
		return Result{Name: name, Detail: "not opened"}
	}
	if err := store.Ping(ctx); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: "reachable"}
}

// CheckWarehouses requires at least one WB row with a name and an API key.
func CheckWarehouses(ctx context.Context, store Store) Result {
	const name = "Warehouses"
	if store == nil {
		return Result{Name: name, Detail: "store unavailable"}
	}
	rows, err := store.Warehouses(ctx)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	usable := 0
	for _, wh := range rows {
		if wh.Usable() {
			usable++
		}
	}
	if usable == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("no usable warehouses (%d rows without name or api key)", len(rows))}
	}
	detail := fmt.Sprintf("%d usable", usable)
	if skipped := len(rows) - usable; skipped > 0 {
		detail += fmt.Sprintf(", %d skipped", skipped)
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckTelegram calls getMe to verify the bot token. A rejected token fails
// the check; an unreachable API is reported as advisory.
func CheckTelegram(ctx context.Context, cfg config.Telegram) Result {
	const name = "Telegram"
	if cfg.DryRun {
		return Result{Name: name, Passed: true, Detail: "dry run (messages are logged)"}
	}
	token := strings.TrimSpace(cfg.BotToken)
	if token == "" {
		return Result{Name: name, Detail: "bot token missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, telegramCheckTimeout)
	defer cancel()

	endpoint := strings.TrimRight(cfg.APIURL, "/") + "/bot" + token + "/getMe"
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{Name: name, Detail: "invalid api url"}
	}
	client := &http.Client{Timeout: telegramCheckTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Advisory: true, Detail: summarizeTransportError(err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var me struct {
			Result struct {
				Username string `json:"username"`
			} `json:"result"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&me); err != nil || me.Result.Username == "" {
			return Result{Name: name, Passed: true, Detail: "token accepted"}
		}
		return Result{Name: name, Passed: true, Detail: "@" + me.Result.Username}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusNotFound:
		return Result{Name: name, Detail: "bot token rejected"}
	default:
		return Result{Name: name, Advisory: true, Detail: fmt.Sprintf("getMe failed (%d)", resp.StatusCode)}
	}
}

// CheckNtfy reports whether operator alerts are configured.
func CheckNtfy(cfg config.Notifications) Result {
	const name = "Operator alerts"
	if strings.TrimSpace(cfg.NtfyTopic) == "" {
		return Result{Name: name, Advisory: true, Detail: "disabled (no ntfy topic)"}
	}
	return Result{Name: name, Passed: true, Detail: cfg.NtfyTopic}
}

// summarizeTransportError avoids echoing the request URL, which carries the token.
func summarizeTransportError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "unreachable (timed out)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "unreachable (timed out)"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Sprintf("unreachable (%s)", opErr.Op)
	}
	return "unreachable"
}
