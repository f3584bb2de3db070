package wb_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"wbwatch/internal/orders"
	"wbwatch/internal/services"
	"wbwatch/internal/testsupport"
	"wbwatch/internal/wb"
)

var warehouse = orders.Warehouse{City: "Moscow", Name: "W1", APIKey: "key-1"}

func newClient(t *testing.T, handler http.Handler, opts ...wb.Option) (*wb.Client, *[]time.Duration) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := testsupport.NewConfig(t, testsupport.WithWildberriesURL(srv.URL))
	var sleeps []time.Duration
	opts = append([]wb.Option{wb.WithSleeper(func(d time.Duration) { sleeps = append(sleeps, d) })}, opts...)
	return wb.New(cfg, opts...), &sleeps
}

func TestFetchNewOrders(t *testing.T) {
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/orders/new" || r.Method != http.MethodGet {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "key-1" {
			t.Fatalf("unexpected authorization header %q", got)
		}
		testsupport.WriteJSON(t, w, http.StatusOK, map[string]any{
			"orders": []map[string]any{
				{"id": 123, "article": "A1", "skus": []string{"200001"}, "createdAt": "2026-05-01T10:00:00Z"},
				{"id": 124, "article": "", "skus": []string{"200002"}},
				{"article": "no-id"},
			},
		})
	}))

	got, err := client.FetchNewOrders(context.Background(), warehouse)
	if err != nil {
		t.Fatalf("FetchNewOrders failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(got))
	}
	first := got[0]
	if first.OrderID != "123" || first.ArticleID != "A1" || first.WarehouseName != "W1" || first.APIKey != "key-1" {
		t.Fatalf("unexpected order: %+v", first)
	}
	if !first.CreatedAt.Equal(time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected created time: %v", first.CreatedAt)
	}
	if got[1].Article() != "200002" {
		t.Fatalf("expected sku fallback, got %q", got[1].Article())
	}
}

func TestRateLimitedThenSuccessBacksOff(t *testing.T) {
	var calls atomic.Int32
	client, sleeps := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		testsupport.WriteJSON(t, w, http.StatusOK, map[string]any{"orders": []map[string]any{{"id": 1}}})
	}))

	got, err := client.FetchNewOrders(context.Background(), warehouse)
	if err != nil {
		t.Fatalf("FetchNewOrders failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 order, got %d", len(got))
	}
	if calls.Load() != 4 {
		t.Fatalf("expected 4 calls, got %d", calls.Load())
	}
	if len(*sleeps) != 3 {
		t.Fatalf("expected 3 sleeps, got %v", *sleeps)
	}
	for i := 1; i < len(*sleeps); i++ {
		if (*sleeps)[i] <= (*sleeps)[i-1] {
			t.Fatalf("expected strictly increasing delays, got %v", *sleeps)
		}
	}
}

func TestRateLimitBudgetExhausted(t *testing.T) {
	var calls atomic.Int32
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := client.FetchNewOrders(context.Background(), warehouse)
	if !errors.Is(err, services.ErrRateLimited) {
		t.Fatalf("expected rate limited error, got %v", err)
	}
	if calls.Load() != 4 {
		t.Fatalf("expected default budget of 4 attempts, got %d", calls.Load())
	}
}

func TestRetryAfterHeaderRaisesDelay(t *testing.T) {
	var calls atomic.Int32
	client, sleeps := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		testsupport.WriteJSON(t, w, http.StatusOK, map[string]any{"orders": []any{}})
	}))

	if _, err := client.FetchNewOrders(context.Background(), warehouse); err != nil {
		t.Fatalf("FetchNewOrders failed: %v", err)
	}
	// The test config caps delays at 10ms.
	if len(*sleeps) != 1 || (*sleeps)[0] != 10*time.Millisecond {
		t.Fatalf("expected capped retry-after delay, got %v", *sleeps)
	}
}

func TestAuthFailureIsNotRetried(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		t.Run(fmt.Sprint(status), func(t *testing.T) {
			var calls atomic.Int32
			client, sleeps := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				http.Error(w, "token expired", status)
			}))
			_, err := client.FetchNewOrders(context.Background(), warehouse)
			if !errors.Is(err, services.ErrAuth) {
				t.Fatalf("expected auth error, got %v", err)
			}
			if calls.Load() != 1 || len(*sleeps) != 0 {
				t.Fatalf("auth errors must not retry: calls=%d sleeps=%v", calls.Load(), *sleeps)
			}
		})
	}
}

func TestServerErrorsAreNetworkErrors(t *testing.T) {
	var calls atomic.Int32
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	_, err := client.FetchNewOrders(context.Background(), warehouse)
	if !errors.Is(err, services.ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected default network budget of 3 attempts, got %d", calls.Load())
	}
}

func TestBadRequestIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	_, err := client.FetchNewOrders(context.Background(), warehouse)
	if !errors.Is(err, services.ErrNetwork) || calls.Load() != 1 {
		t.Fatalf("expected single network failure, got err=%v calls=%d", err, calls.Load())
	}
}

func TestFetchSticker(t *testing.T) {
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/orders/stickers" || r.URL.Query().Get("type") != "svg" {
			t.Fatalf("unexpected request %s", r.URL)
		}
		body := testsupport.DecodeJSON(t, r.Body)
		ids, _ := body["orders"].([]any)
		if len(ids) != 1 {
			t.Fatalf("unexpected body: %v", body)
		}
		switch ids[0] {
		case float64(123):
			testsupport.WriteJSON(t, w, http.StatusOK, map[string]any{
				"stickers": []map[string]any{{"orderId": 123, "partA": "231648", "partB": 9753}},
			})
		default:
			testsupport.WriteJSON(t, w, http.StatusOK, map[string]any{"stickers": []any{}})
		}
	}))

	sticker, err := client.FetchSticker(context.Background(), "123", warehouse)
	if err != nil {
		t.Fatalf("FetchSticker failed: %v", err)
	}
	if string(sticker) != "231648 9753" {
		t.Fatalf("unexpected sticker %q", sticker)
	}

	sticker, err = client.FetchSticker(context.Background(), "124", warehouse)
	if err != nil {
		t.Fatalf("FetchSticker failed: %v", err)
	}
	if sticker != nil {
		t.Fatalf("expected absent sticker, got %q", sticker)
	}
}

func TestFetchPhotoMatchesArticleCaseInsensitively(t *testing.T) {
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := testsupport.DecodeJSON(t, r.Body)
		settings := body["settings"].(map[string]any)
		filter := settings["filter"].(map[string]any)
		if filter["textSearch"] != "a1" {
			t.Fatalf("expected text search, got %v", filter)
		}
		testsupport.WriteJSON(t, w, http.StatusOK, map[string]any{
			"cards": []map[string]any{
				{"vendorCode": "A10", "photos": []map[string]string{{"big": "http://x/10.jpg"}}},
				{"vendorCode": "A1", "photos": []map[string]string{{"c246x328": "http://x/small.jpg", "square": "http://x/sq.jpg"}}},
			},
		})
	}))

	photo, err := client.FetchPhoto(context.Background(), "a1", warehouse)
	if err != nil {
		t.Fatalf("FetchPhoto failed: %v", err)
	}
	if photo != "http://x/small.jpg" {
		t.Fatalf("unexpected photo %q", photo)
	}
}

func TestFetchPhotoEmptyArticleSkipsRequest(t *testing.T) {
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected request %s", r.URL)
	}))
	photo, err := client.FetchPhoto(context.Background(), "  ", warehouse)
	if err != nil || photo != "" {
		t.Fatalf("expected empty result, got %q, %v", photo, err)
	}
}

func TestFetchProductListPaginates(t *testing.T) {
	var pages atomic.Int32
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := testsupport.DecodeJSON(t, r.Body)
		cursor := body["settings"].(map[string]any)["cursor"].(map[string]any)
		switch pages.Add(1) {
		case 1:
			if _, ok := cursor["nmID"]; ok {
				t.Fatalf("first page must not carry a cursor: %v", cursor)
			}
			cards := make([]map[string]any, 100)
			for i := range cards {
				cards[i] = map[string]any{"vendorCode": fmt.Sprintf("P%d", i), "title": "Item"}
			}
			cards[0]["photos"] = []map[string]string{{"big": "http://x/p0.jpg"}}
			testsupport.WriteJSON(t, w, http.StatusOK, map[string]any{
				"cards":  cards,
				"cursor": map[string]any{"updatedAt": "2026-05-01T00:00:00Z", "nmID": 77, "total": 100},
			})
		case 2:
			if cursor["nmID"] != float64(77) || cursor["updatedAt"] != "2026-05-01T00:00:00Z" {
				t.Fatalf("expected continuation cursor, got %v", cursor)
			}
			testsupport.WriteJSON(t, w, http.StatusOK, map[string]any{
				"cards":  []map[string]any{{"vendorCode": "A1", "title": "Widget", "photos": []map[string]string{{"big": "http://x/1.jpg"}}}},
				"cursor": map[string]any{"updatedAt": "2026-05-02T00:00:00Z", "nmID": 78, "total": 1},
			})
		default:
			t.Fatalf("unexpected extra page")
		}
	}))

	products, err := client.FetchProductList(context.Background(), warehouse)
	if err != nil {
		t.Fatalf("FetchProductList failed: %v", err)
	}
	if len(products) != 101 {
		t.Fatalf("expected 101 products, got %d", len(products))
	}
	if products[0].PhotoURL != "http://x/p0.jpg" {
		t.Fatalf("unexpected first product: %+v", products[0])
	}
	last := products[100]
	if last.ArticleID != "A1" || last.ProductName != "Widget" || last.PhotoURL != "http://x/1.jpg" {
		t.Fatalf("unexpected last product: %+v", last)
	}
}

func TestFetchProductListStopsAtPageLimit(t *testing.T) {
	var pages atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := pages.Add(1)
		cards := make([]map[string]any, 100)
		for i := range cards {
			cards[i] = map[string]any{"vendorCode": fmt.Sprintf("P%d-%d", n, i)}
		}
		testsupport.WriteJSON(t, w, http.StatusOK, map[string]any{
			"cards":  cards,
			"cursor": map[string]any{"updatedAt": fmt.Sprint(n), "nmID": n},
		})
	}))
	defer srv.Close()
	cfg := testsupport.NewConfig(t, testsupport.WithWildberriesURL(srv.URL))
	cfg.Wildberries.MaxProductPages = 2

	products, err := wb.New(cfg).FetchProductList(context.Background(), warehouse)
	if err != nil {
		t.Fatalf("FetchProductList failed: %v", err)
	}
	if pages.Load() != 2 || len(products) != 200 {
		t.Fatalf("expected 2 pages and 200 products, got %d pages and %d products", pages.Load(), len(products))
	}
}

func TestFetchRespectsCancelledContext(t *testing.T) {
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.FetchNewOrders(ctx, warehouse); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestRequestTimeoutIsRetriedAsNetworkError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(10 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)
	cfg := testsupport.NewConfig(t, testsupport.WithWildberriesURL(srv.URL))
	cfg.Wildberries.RequestTimeout = 1
	cfg.Wildberries.NetworkAttempts = 2
	client := wb.New(cfg, wb.WithSleeper(func(time.Duration) {}))

	start := time.Now()
	_, err := client.FetchNewOrders(context.Background(), warehouse)
	if !errors.Is(err, services.ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded in chain, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected %d attempts, got %d", 2, calls.Load())
	}
	if elapsed := time.Since(start); elapsed > 8*time.Second {
		t.Fatalf("per-call timeout not applied, took %s", elapsed)
	}
}

func TestSameArticle(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"A1", "a1", true},
		{" A1 ", "A1", true},
		{"Ärtikel-7", "äRTIKEL-7", true},
		{"A1", "A10", false},
		{"", "", false},
	}
	for _, tc := range cases {
		if got := wb.SameArticle(tc.a, tc.b); got != tc.want {
			t.Fatalf("SameArticle(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}
