// Package infra holds the adapters behind the core interfaces: the MQTT
// decision publisher, metrics sinks, Sentry monitoring and logging.
package infra
