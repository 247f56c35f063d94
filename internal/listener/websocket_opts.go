package listener

import "net/http"

type WebsocketListenerOpt func(*WebsocketListener)

// WithMetricsHandler exposes h at /metrics.
func WithMetricsHandler(h http.Handler) WebsocketListenerOpt {
	return func(l *WebsocketListener) {
		l.metrics = h
	}
}

// WithSendBuffer sets how many frames may queue for a connection before it
// is dropped as a slow consumer.
func WithSendBuffer(n int) WebsocketListenerOpt {
	return func(l *WebsocketListener) {
		l.sendBuffer = n
	}
}

// WithReady delays listening until ready is closed.
func WithReady(ready <-chan struct{}) WebsocketListenerOpt {
	return func(l *WebsocketListener) {
		l.ready = ready
	}
}
