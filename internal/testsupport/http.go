package testsupport

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"
)

// WriteJSON encodes v as the response body of a fake API handler.
func WriteJSON(t testing.TB, w http.ResponseWriter, status int, v any) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

// DecodeJSON reads a request body into a generic map for assertions.
func DecodeJSON(t testing.TB, r io.Reader) map[string]any {
	t.Helper()

	var payload map[string]any
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		t.Errorf("decode request: %v", err)
		return nil
	}
	return payload
}
