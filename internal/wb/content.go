package wb

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/text/cases"

	"wbwatch/internal/logging"
	"wbwatch/internal/orders"
)

const stageContent = "wb.content"

type cardsCursor struct {
	UpdatedAt string `json:"updatedAt,omitempty"`
	NmID      int64  `json:"nmID,omitempty"`
	Total     int    `json:"total,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

type cardsRequest struct {
	Settings struct {
		Cursor cardsCursor `json:"cursor"`
		Filter struct {
			WithPhoto  int    `json:"withPhoto"`
			TextSearch string `json:"textSearch,omitempty"`
		} `json:"filter"`
	} `json:"settings"`
}

type cardPhoto struct {
	Big    string `json:"big"`
	C516   string `json:"c516x688"`
	C246   string `json:"c246x328"`
	Square string `json:"square"`
}

type card struct {
	NmID       int64       `json:"nmID"`
	VendorCode string      `json:"vendorCode"`
	Title      string      `json:"title"`
	Photos     []cardPhoto `json:"photos"`
}

type cardsResponse struct {
	Cards  []card       `json:"cards"`
	Cursor *cardsCursor `json:"cursor"`
}

func newCardsRequest(cursor cardsCursor, textSearch string) cardsRequest {
	var req cardsRequest
	cursor.Limit = cardsPageLimit
	cursor.Total = 0
	req.Settings.Cursor = cursor
	req.Settings.Filter.WithPhoto = -1
	req.Settings.Filter.TextSearch = textSearch
	return req
}

func (c *Client) cardsPage(ctx context.Context, wh orders.Warehouse, cursor cardsCursor, textSearch string) (cardsResponse, error) {
	var payload cardsResponse
	endpoint := c.contentURL + "/content/v2/get/cards/list"
	err := c.call(ctx, stageContent, http.MethodPost, endpoint, wh.APIKey, newCardsRequest(cursor, textSearch), decodeJSON(&payload))
	return payload, err
}

// FetchPhoto looks up one article directly and returns its photo URL, or ""
// when no card matches or the card has no photo.
func (c *Client) FetchPhoto(ctx context.Context, articleID string, wh orders.Warehouse) (string, error) {
	product, _, err := c.LookupProduct(ctx, articleID, wh)
	return product.PhotoURL, err
}

// LookupProduct searches the content API for one article and returns the
// first card whose vendor code matches it.
func (c *Client) LookupProduct(ctx context.Context, articleID string, wh orders.Warehouse) (orders.Product, bool, error) {
	articleID = strings.TrimSpace(articleID)
	if articleID == "" {
		return orders.Product{}, false, nil
	}
	ctx = annotate(ctx, wh)
	page, err := c.cardsPage(ctx, wh, cardsCursor{}, articleID)
	if err != nil {
		return orders.Product{}, false, err
	}
	for _, cd := range page.Cards {
		if SameArticle(cd.VendorCode, articleID) {
			return productFromCard(cd), true, nil
		}
	}
	return orders.Product{}, false, nil
}

// FetchProductList pages through the warehouse's product cards, stopping at
// an empty page, a missing cursor, a short page, or the page limit.
func (c *Client) FetchProductList(ctx context.Context, wh orders.Warehouse) ([]orders.Product, error) {
	ctx = annotate(ctx, wh)
	logger := logging.WithContext(ctx, c.logger)

	var (
		products []orders.Product
		cursor   cardsCursor
	)
	for page := 1; page <= c.maxProductPages; page++ {
		resp, err := c.cardsPage(ctx, wh, cursor, "")
		if err != nil {
			if len(products) > 0 {
				logging.WarnWithContext(logger, "product list truncated", "product_list_partial",
					logging.Int("page", page),
					logging.Int("products", len(products)),
					logging.Error(err),
					logging.Impact("photo fallback uses the pages fetched so far"),
				)
				return products, nil
			}
			return nil, err
		}
		if len(resp.Cards) == 0 {
			break
		}
		for _, cd := range resp.Cards {
			products = append(products, productFromCard(cd))
		}
		if resp.Cursor == nil || len(resp.Cards) < cardsPageLimit {
			break
		}
		if resp.Cursor.NmID == cursor.NmID && resp.Cursor.UpdatedAt == cursor.UpdatedAt {
			break
		}
		cursor = cardsCursor{UpdatedAt: resp.Cursor.UpdatedAt, NmID: resp.Cursor.NmID}
	}

	logger.Debug("fetched product list", logging.Int("products", len(products)))
	return products, nil
}

func productFromCard(cd card) orders.Product {
	return orders.Product{
		ArticleID:   strings.TrimSpace(cd.VendorCode),
		PhotoURL:    photoURL(cd.Photos),
		ProductName: strings.TrimSpace(cd.Title),
	}
}

// photoURL picks the first photo in size order big, c516x688, c246x328, square.
func photoURL(photos []cardPhoto) string {
	if len(photos) == 0 {
		return ""
	}
	p := photos[0]
	for _, candidate := range []string{p.Big, p.C516, p.C246, p.Square} {
		if candidate = strings.TrimSpace(candidate); candidate != "" {
			return candidate
		}
	}
	return ""
}

// SameArticle compares seller articles case-insensitively, ignoring
// surrounding whitespace.
func SameArticle(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	fold := cases.Fold()
	return fold.String(a) == fold.String(b)
}
