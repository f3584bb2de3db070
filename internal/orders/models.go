package orders

import (
	"strings"
	"time"
)

// Status is the enrichment outcome of an order expressed as a flag set.
type Status uint8

const (
	// IncompleteSticker is set when no shipping sticker could be fetched.
	IncompleteSticker Status = 1 << iota
	// IncompletePhoto is set when neither the direct lookup nor the product
	// list produced a photo.
	IncompletePhoto
)

const (
	// Complete means no flag is set.
	Complete Status = 0
	// IncompleteBoth is the union of both flags.
	IncompleteBoth = IncompleteSticker | IncompletePhoto
)

// Has reports whether every flag in flag is set.
func (s Status) Has(flag Status) bool {
	return flag != 0 && s&flag == flag
}

// IsComplete reports whether no incomplete flag is set.
func (s Status) IsComplete() bool {
	return s == Complete
}

func (s Status) String() string {
	switch s {
	case Complete:
		return "complete"
	case IncompleteSticker:
		return "incomplete_sticker"
	case IncompletePhoto:
		return "incomplete_photo"
	case IncompleteBoth:
		return "incomplete_both"
	default:
		return "unknown"
	}
}

// ParseStatus is the inverse of Status.String.
func ParseStatus(value string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "complete":
		return Complete, true
	case "incomplete_sticker":
		return IncompleteSticker, true
	case "incomplete_photo":
		return IncompletePhoto, true
	case "incomplete_both":
		return IncompleteBoth, true
	default:
		return Complete, false
	}
}

// Warehouse is one row of the WB sheet.
type Warehouse struct {
	City   string
	Name   string
	APIKey string
}

// Usable reports whether the row carries enough data to poll.
func (w Warehouse) Usable() bool {
	return strings.TrimSpace(w.Name) != "" && strings.TrimSpace(w.APIKey) != ""
}

// AccessEntry is one row of the Access sheet.
type AccessEntry struct {
	WarehouseName string
	RecipientID   int64
	// Recipient is the raw cell text; kept so unusable rows can be reported.
	Recipient string
}

// Valid reports whether the row names a warehouse and a numeric chat id.
func (e AccessEntry) Valid() bool {
	return e.WarehouseName != "" && e.RecipientID != 0
}

// Key identifies an order for deduplication. Order IDs are scoped to their
// warehouse; the same ID under two warehouses is two orders.
type Key struct {
	OrderID   string
	Warehouse string
}

func (k Key) String() string {
	return k.Warehouse + "|" + k.OrderID
}

// Order is a new fulfillment task as fetched from the marketplace and
// progressively filled in by enrichment.
type Order struct {
	OrderID       string
	WarehouseName string
	APIKey        string
	ArticleID     string
	SKU           string
	ProductName   string
	Sticker       []byte
	PhotoURL      string
	Status        Status
	CreatedAt     time.Time
}

// Key returns the dedup key of the order.
func (o Order) Key() Key {
	return Key{OrderID: o.OrderID, Warehouse: o.WarehouseName}
}

// Article returns the seller article, falling back to the first SKU.
func (o Order) Article() string {
	if a := strings.TrimSpace(o.ArticleID); a != "" {
		return a
	}
	return strings.TrimSpace(o.SKU)
}

// HasSticker reports whether sticker data was resolved.
func (o Order) HasSticker() bool {
	return len(o.Sticker) > 0
}

// Product is one entry of a warehouse's product list.
type Product struct {
	ArticleID   string
	PhotoURL    string
	ProductName string
}

// LedgerEntry records that an order was recorded and notified.
type LedgerEntry struct {
	OrderID       string
	WarehouseName string
	APIKey        string
	ProcessedAt   time.Time
}

// MaskAPIKey shortens a credential for storage next to processed orders.
func MaskAPIKey(key string) string {
	const visible = 20
	key = strings.TrimSpace(key)
	if len(key) <= visible {
		return key
	}
	return key[:visible] + "..."
}
