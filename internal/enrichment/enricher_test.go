package enrichment_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"wbwatch/internal/enrichment"
	"wbwatch/internal/logging"
	"wbwatch/internal/orders"
	"wbwatch/internal/services"
)

type fakeSource struct {
	sticker    []byte
	stickerErr error
	direct     orders.Product
	directOK   bool
	directErr  error
	list       []orders.Product
	listErr    error
	listCalls  atomic.Int32
	gate       chan struct{}
}

func (f *fakeSource) FetchSticker(context.Context, string, orders.Warehouse) ([]byte, error) {
	return f.sticker, f.stickerErr
}

func (f *fakeSource) LookupProduct(context.Context, string, orders.Warehouse) (orders.Product, bool, error) {
	return f.direct, f.directOK, f.directErr
}

func (f *fakeSource) FetchProductList(context.Context, orders.Warehouse) ([]orders.Product, error) {
	f.listCalls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	return f.list, f.listErr
}

func newOrder() orders.Order {
	return orders.Order{OrderID: "123", WarehouseName: "W", APIKey: "k", ArticleID: "A1"}
}

func TestEnrichPhotoFallbackUsesProductList(t *testing.T) {
	src := &fakeSource{
		sticker:   []byte("231648 9753"),
		directErr: services.Wrap(services.ErrNetwork, "wb.content", "lookup", "boom", nil),
		list: []orders.Product{
			{ArticleID: "B2", PhotoURL: "http://x/2.jpg", ProductName: "Other"},
			{ArticleID: "a1", PhotoURL: "http://x/1.jpg", ProductName: "Widget"},
			{ArticleID: "A1", PhotoURL: "http://x/dup.jpg", ProductName: "Duplicate"},
		},
	}
	got := enrichment.New(src, logging.NewNop()).Enrich(context.Background(), newOrder())

	if got.PhotoURL != "http://x/1.jpg" || got.ProductName != "Widget" {
		t.Fatalf("expected first matching list entry, got photo=%q name=%q", got.PhotoURL, got.ProductName)
	}
	if got.Status != orders.Complete {
		t.Fatalf("expected complete status, got %s", got.Status)
	}
	if string(got.Sticker) != "231648 9753" {
		t.Fatalf("unexpected sticker %q", got.Sticker)
	}
}

func TestEnrichDirectHitSkipsProductList(t *testing.T) {
	src := &fakeSource{
		sticker:  []byte("s"),
		direct:   orders.Product{ArticleID: "A1", PhotoURL: "http://x/direct.jpg", ProductName: "Direct"},
		directOK: true,
	}
	got := enrichment.New(src, nil).Enrich(context.Background(), newOrder())
	if got.PhotoURL != "http://x/direct.jpg" || got.ProductName != "Direct" {
		t.Fatalf("unexpected enrichment: %+v", got)
	}
	if src.listCalls.Load() != 0 {
		t.Fatalf("product list should not be fetched on a direct hit")
	}
}

func TestEnrichDirectMatchWithoutPhotoFallsBack(t *testing.T) {
	src := &fakeSource{
		direct:   orders.Product{ArticleID: "A1", ProductName: "Named"},
		directOK: true,
		list:     []orders.Product{{ArticleID: "A1", PhotoURL: "http://x/1.jpg"}},
	}
	got := enrichment.New(src, nil).Enrich(context.Background(), newOrder())
	if got.PhotoURL != "http://x/1.jpg" || got.ProductName != "Named" {
		t.Fatalf("unexpected enrichment: %+v", got)
	}
	if got.Status != orders.IncompleteSticker {
		t.Fatalf("expected incomplete_sticker, got %s", got.Status)
	}
}

func TestEnrichIsTotal(t *testing.T) {
	failure := errors.Join(services.ErrAuth, errors.New("rejected"))
	cases := []struct {
		name  string
		src   *fakeSource
		order orders.Order
		want  orders.Status
	}{
		{
			name:  "everything fails",
			src:   &fakeSource{stickerErr: failure, directErr: failure, listErr: failure},
			order: newOrder(),
			want:  orders.IncompleteBoth,
		},
		{
			name:  "nothing found",
			src:   &fakeSource{},
			order: newOrder(),
			want:  orders.IncompleteBoth,
		},
		{
			name:  "sticker only",
			src:   &fakeSource{sticker: []byte("s")},
			order: newOrder(),
			want:  orders.IncompletePhoto,
		},
		{
			name:  "empty article",
			src:   &fakeSource{sticker: []byte("s"), list: []orders.Product{{ArticleID: "", PhotoURL: "http://x/empty.jpg"}}},
			order: orders.Order{OrderID: "1", WarehouseName: "W"},
			want:  orders.IncompletePhoto,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := enrichment.New(tc.src, nil).Enrich(context.Background(), tc.order)
			if got.Status != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got.Status)
			}
			if got.OrderID != tc.order.OrderID || got.WarehouseName != tc.order.WarehouseName {
				t.Fatalf("identity changed: %+v", got)
			}
		})
	}
}

func TestEnrichUsesSkuWhenArticleMissing(t *testing.T) {
	src := &fakeSource{list: []orders.Product{{ArticleID: "200001", PhotoURL: "http://x/sku.jpg"}}}
	order := orders.Order{OrderID: "1", WarehouseName: "W", SKU: "200001"}
	got := enrichment.New(src, nil).Enrich(context.Background(), order)
	if got.PhotoURL != "http://x/sku.jpg" {
		t.Fatalf("expected sku match, got %+v", got)
	}
}

func TestCycleFetchesProductListOnce(t *testing.T) {
	src := &fakeSource{
		list: []orders.Product{{ArticleID: "A1", PhotoURL: "http://x/1.jpg"}},
		gate: make(chan struct{}),
	}
	cycle := enrichment.New(src, nil).NewCycle()

	const n = 8
	var wg sync.WaitGroup
	results := make([]orders.Order, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = cycle.Enrich(context.Background(), newOrder())
		}()
	}
	close(src.gate)
	wg.Wait()

	for _, got := range results {
		if got.PhotoURL != "http://x/1.jpg" {
			t.Fatalf("unexpected photo %q", got.PhotoURL)
		}
	}
	if calls := src.listCalls.Load(); calls != 1 {
		t.Fatalf("expected one product list fetch per cycle, got %d", calls)
	}

	enrichment.New(src, nil).NewCycle().Enrich(context.Background(), newOrder())
	if calls := src.listCalls.Load(); calls != 2 {
		t.Fatalf("expected a new cycle to refetch, got %d calls", calls)
	}
}

func TestCycleCachesProductListFailure(t *testing.T) {
	src := &fakeSource{listErr: services.Wrap(services.ErrNetwork, "wb.content", "list", "down", nil)}
	cycle := enrichment.New(src, nil).NewCycle()
	for range 3 {
		if got := cycle.Enrich(context.Background(), newOrder()); got.Status != orders.IncompleteBoth {
			t.Fatalf("unexpected status %s", got.Status)
		}
	}
	if calls := src.listCalls.Load(); calls != 1 {
		t.Fatalf("expected failed list to be cached for the cycle, got %d calls", calls)
	}
}
