package httpclient

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// sharedTransport is reused by every pooled client so that the model,
// reranker and weather endpoints keep warm connections.
var sharedTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        32,
	MaxIdleConnsPerHost: 8,
	IdleConnTimeout:     120 * time.Second,
	DisableKeepAlives:   false,
}

// NewPooledClient creates an http.Client on the shared connection pool. Outbound
// requests carry the caller's trace context.
func NewPooledClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(sharedTransport),
	}
}

// NewStreamingClient is NewPooledClient without an overall deadline, for
// long-lived streamed responses bounded by the request context instead.
func NewStreamingClient() *http.Client {
	return NewPooledClient(0)
}
