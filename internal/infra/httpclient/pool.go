package httpclient

import (
	"net/http"
	"time"
)

// sharedTransport backs every pooled client, so repeated calls to the model
// servers and the reranker reuse connections instead of re-handshaking.
var sharedTransport = &http.Transport{
	MaxIdleConns:        32,
	MaxIdleConnsPerHost: 8,
	IdleConnTimeout:     90 * time.Second,
}

// NewPooledClient returns an http.Client on the shared transport. The
// timeout bounds the whole exchange including streaming reads, so callers
// streaming long generations should pass a generous value.
func NewPooledClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: sharedTransport,
	}
}
