// Package notifications delivers daemon events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Migration lifecycle, prediction, and error events each have their
// own config gate; progress updates are rate-limited per object so a long
// transfer does not flood the topic.
//
// Extend this package if you need alternative transports; all daemon code
// depends only on the simple Service interface.
package notifications
