// Package httpclient builds the outbound HTTP client shared by the model, Telegram
// and API clients.
package httpclient

import (
	"context"
	"net"
	"net/http"
	"time"
)

const defaultTimeout = 180 * time.Second

type Options struct {
	PreferIPv4 bool
	// Timeout bounds a whole request. Image generation is slow, so the default is generous.
	Timeout time.Duration
	// UserAgent is set on requests that do not carry one.
	UserAgent string
}

func New(opts Options) *http.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	dialer := &net.Dialer{
		Timeout:   15 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, dialNetwork(network, opts.PreferIPv4), addr)
		},
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   15 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	var rt http.RoundTripper = transport
	if opts.UserAgent != "" {
		rt = &userAgentTransport{next: transport, userAgent: opts.UserAgent}
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: rt,
	}
}

func dialNetwork(network string, preferIPv4 bool) string {
	if preferIPv4 && (network == "tcp" || network == "tcp6") {
		return "tcp4"
	}
	return network
}

type userAgentTransport struct {
	next      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.next.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.userAgent)
	return t.next.RoundTrip(clone)
}
