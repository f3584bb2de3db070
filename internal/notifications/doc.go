// Package notifications delivers order notifications and operator alerts.
//
// Sender posts formatted order messages to Telegram chats through the Bot API,
// attaching the product photo when one is known and falling back to plain text
// when Telegram rejects it. With telegram.dry_run set, messages are only
// logged.
//
// Service publishes operator alerts (startup, blocked cycles, fatal exit) to
// ntfy using the topic configured in config.toml and degrades to a no-op when
// no topic is set.
package notifications
