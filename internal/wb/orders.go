package wb

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"wbwatch/internal/logging"
	"wbwatch/internal/orders"
)

const (
	stageOrders   = "wb.orders"
	stageStickers = "wb.stickers"
)

// flexString accepts a JSON string or number. The marketplace sends IDs as
// numbers and sticker parts as either.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type newOrdersResponse struct {
	Orders []struct {
		ID        flexString   `json:"id"`
		Article   string       `json:"article"`
		SKUs      []flexString `json:"skus"`
		CreatedAt string       `json:"createdAt"`
	} `json:"orders"`
}

// FetchNewOrders lists the warehouse's new fulfillment tasks. Entries without
// an ID are dropped.
func (c *Client) FetchNewOrders(ctx context.Context, wh orders.Warehouse) ([]orders.Order, error) {
	ctx = annotate(ctx, wh)
	endpoint := c.marketplaceURL + "/api/v3/orders/new"

	var payload newOrdersResponse
	if err := c.call(ctx, stageOrders, http.MethodGet, endpoint, wh.APIKey, nil, decodeJSON(&payload)); err != nil {
		return nil, err
	}

	result := make([]orders.Order, 0, len(payload.Orders))
	for _, raw := range payload.Orders {
		id := strings.TrimSpace(string(raw.ID))
		if id == "" {
			continue
		}
		order := orders.Order{
			OrderID:       id,
			WarehouseName: wh.Name,
			APIKey:        wh.APIKey,
			ArticleID:     strings.TrimSpace(raw.Article),
		}
		if len(raw.SKUs) > 0 {
			order.SKU = strings.TrimSpace(string(raw.SKUs[0]))
		}
		if created, err := time.Parse(time.RFC3339, raw.CreatedAt); err == nil {
			order.CreatedAt = created.UTC()
		}
		result = append(result, order)
	}

	logging.WithContext(ctx, c.logger).Debug("fetched new orders", logging.Int("count", len(result)))
	return result, nil
}

type stickersResponse struct {
	Stickers []struct {
		OrderID flexString `json:"orderId"`
		PartA   flexString `json:"partA"`
		PartB   flexString `json:"partB"`
	} `json:"stickers"`
}

// FetchSticker returns the sticker text for one order, or nil when the
// marketplace has none yet.
func (c *Client) FetchSticker(ctx context.Context, orderID string, wh orders.Warehouse) ([]byte, error) {
	ctx = annotate(ctx, wh)
	params := url.Values{}
	params.Set("type", "svg")
	params.Set("width", "58")
	params.Set("height", "40")
	endpoint := withQuery(c.marketplaceURL+"/api/v3/orders/stickers", params)

	request := map[string]any{"orders": []any{orderIDValue(orderID)}}
	var payload stickersResponse
	if err := c.call(ctx, stageStickers, http.MethodPost, endpoint, wh.APIKey, request, decodeJSON(&payload)); err != nil {
		return nil, err
	}

	for _, sticker := range payload.Stickers {
		if id := strings.TrimSpace(string(sticker.OrderID)); id != "" && id != orderID {
			continue
		}
		text := strings.TrimSpace(string(sticker.PartA) + " " + string(sticker.PartB))
		if text == "" {
			return nil, nil
		}
		return []byte(text), nil
	}
	return nil, nil
}

// orderIDValue sends numeric IDs as JSON numbers, which the marketplace expects.
func orderIDValue(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}
