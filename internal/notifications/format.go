package notifications

import (
	"strings"

	"wbwatch/internal/orders"
)

const (
	placeholderUnset      = "Не указано"
	placeholderNoSticker  = "Не получен"
	captionLimit          = 1024
	messageHeader         = "🆕 НОВОЕ ЗАДАНИЕ!"
	missingStickerWarning = "⚠️ Статус: Нужно собрать!"
)

// Message is one Telegram notification. PhotoURL is optional.
type Message struct {
	Text     string
	PhotoURL string
}

// FormatOrder renders the recipient-facing text for an enriched order.
func FormatOrder(order orders.Order) string {
	article := valueOr(order.Article(), placeholderUnset)
	name := valueOr(order.ProductName, placeholderUnset)

	var b strings.Builder
	b.WriteString(messageHeader + "\n")
	b.WriteString("Артикул продавца: " + article + "\n")
	if order.HasSticker() {
		b.WriteString("Стикер: " + valueOr(string(order.Sticker), placeholderNoSticker) + "\n")
	} else {
		b.WriteString(missingStickerWarning + "\n")
	}
	b.WriteString("Наименование: " + name + "\n")
	b.WriteString("№ задания: " + order.OrderID + "\n")
	b.WriteString("Склад : " + order.WarehouseName + "\n")
	return b.String()
}

// OrderMessage pairs FormatOrder with the order's photo.
func OrderMessage(order orders.Order) Message {
	return Message{Text: FormatOrder(order), PhotoURL: strings.TrimSpace(order.PhotoURL)}
}

func valueOr(value, fallback string) string {
	if value = strings.TrimSpace(value); value != "" {
		return value
	}
	return fallback
}
