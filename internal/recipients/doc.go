// Package recipients resolves which Telegram chats receive a warehouse's
// orders, based on the Access sheet.
package recipients
