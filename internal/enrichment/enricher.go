package enrichment

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"wbwatch/internal/logging"
	"wbwatch/internal/orders"
	"wbwatch/internal/services"
	"wbwatch/internal/wb"
)

// Source is the subset of the Wildberries client enrichment needs.
type Source interface {
	FetchSticker(ctx context.Context, orderID string, wh orders.Warehouse) ([]byte, error)
	LookupProduct(ctx context.Context, articleID string, wh orders.Warehouse) (orders.Product, bool, error)
	FetchProductList(ctx context.Context, wh orders.Warehouse) ([]orders.Product, error)
}

// Enricher resolves stickers, photos and names for new orders.
type Enricher struct {
	source Source
	logger *slog.Logger
}

// New constructs an enricher backed by source.
func New(source Source, logger *slog.Logger) *Enricher {
	return &Enricher{
		source: source,
		logger: logging.NewComponentLogger(logger, "enrichment"),
	}
}

// Cycle scopes the product-list cache to one poll cycle. Concurrent orders of
// the same warehouse share a single product-list fetch.
type Cycle struct {
	enricher *Enricher
	group    singleflight.Group

	mu       sync.Mutex
	products map[string]productList
}

type productList struct {
	items []orders.Product
	err   error
}

// NewCycle starts an empty product-list cache.
func (e *Enricher) NewCycle() *Cycle {
	return &Cycle{enricher: e, products: make(map[string]productList)}
}

// Enrich returns order with sticker, photo, name and status filled in. It
// never fails: lookups that error or come back empty set the matching
// incomplete flag and the order is still returned.
func (e *Enricher) Enrich(ctx context.Context, order orders.Order) orders.Order {
	return e.NewCycle().Enrich(ctx, order)
}

// Enrich is Enricher.Enrich with the cycle's product-list cache.
func (c *Cycle) Enrich(ctx context.Context, order orders.Order) orders.Order {
	e := c.enricher
	ctx = services.WithOrderID(services.WithWarehouse(ctx, order.WarehouseName), order.OrderID)
	logger := logging.WithContext(ctx, e.logger)
	wh := orders.Warehouse{Name: order.WarehouseName, APIKey: order.APIKey}

	order.Status = orders.Complete

	sticker, err := e.source.FetchSticker(ctx, order.OrderID, wh)
	switch {
	case err != nil:
		degrade(logger, "sticker lookup failed", "sticker_unavailable", err)
		order.Sticker = nil
	case len(sticker) > 0:
		order.Sticker = sticker
	}
	if !order.HasSticker() {
		order.Status |= orders.IncompleteSticker
	}

	article := order.Article()
	if article != "" {
		c.resolvePhoto(ctx, logger, &order, wh, article)
	}
	if order.PhotoURL == "" {
		order.Status |= orders.IncompletePhoto
	}

	logger.Debug("order enriched",
		logging.String("status", order.Status.String()),
		logging.Bool("has_photo", order.PhotoURL != ""),
		logging.Bool("has_sticker", order.HasSticker()),
	)
	return order
}

func (c *Cycle) resolvePhoto(ctx context.Context, logger *slog.Logger, order *orders.Order, wh orders.Warehouse, article string) {
	product, found, err := c.enricher.source.LookupProduct(ctx, article, wh)
	if err != nil {
		degrade(logger, "direct photo lookup failed", "photo_direct_failed", err)
	}
	if found {
		if product.ProductName != "" {
			order.ProductName = product.ProductName
		}
		if product.PhotoURL != "" {
			order.PhotoURL = product.PhotoURL
			return
		}
	}

	match, ok := c.scanProductList(ctx, logger, wh, article)
	if !ok {
		return
	}
	order.PhotoURL = match.PhotoURL
	if match.ProductName != "" {
		order.ProductName = match.ProductName
	}
}

// scanProductList returns the first product whose article matches. Later
// duplicates in the list are ignored.
func (c *Cycle) scanProductList(ctx context.Context, logger *slog.Logger, wh orders.Warehouse, article string) (orders.Product, bool) {
	list := c.productList(ctx, wh)
	if list.err != nil {
		degrade(logger, "product list unavailable", "product_list_failed", list.err)
		return orders.Product{}, false
	}
	for _, product := range list.items {
		if wb.SameArticle(product.ArticleID, article) {
			return product, true
		}
	}
	return orders.Product{}, false
}

func (c *Cycle) productList(ctx context.Context, wh orders.Warehouse) productList {
	c.mu.Lock()
	cached, ok := c.products[wh.Name]
	c.mu.Unlock()
	if ok {
		return cached
	}

	v, _, _ := c.group.Do(wh.Name, func() (any, error) {
		c.mu.Lock()
		cached, ok := c.products[wh.Name]
		c.mu.Unlock()
		if ok {
			return cached, nil
		}
		items, err := c.enricher.source.FetchProductList(ctx, wh)
		result := productList{items: items, err: err}
		// A cancelled fetch is not cached so the next order can retry it.
		if ctx.Err() == nil {
			c.mu.Lock()
			c.products[wh.Name] = result
			c.mu.Unlock()
		}
		return result, nil
	})
	return v.(productList)
}

func degrade(logger *slog.Logger, msg, eventType string, err error) {
	attrs := append(logging.ErrorAttrs(err),
		logging.Hint("order is recorded with incomplete data"),
	)
	logging.WarnWithContext(logger, msg, eventType, attrs...)
}
