package session

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"time"

	utls "github.com/refraction-networking/utls"
)

// newChromeTransport returns a transport whose TLS client hello matches a
// desktop Chrome. HTTP/1.1 is forced via ALPN: the boards that fingerprint
// hellos serve HTML either way, and it keeps the uTLS conn compatible with
// net/http's connection handling.
func newChromeTransport(proxy *url.URL) *http.Transport {
	dialer := &net.Dialer{Timeout: defaultTimeout, KeepAlive: 30 * time.Second}

	t := &http.Transport{
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     30 * time.Second,
		ForceAttemptHTTP2:   false,
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, _, err := net.SplitHostPort(addr)
			if err != nil {
				host = addr
			}
			raw, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			cfg := &utls.Config{
				ServerName: host,
				NextProtos: []string{"http/1.1"},
			}
			conn := utls.UClient(raw, cfg, utls.HelloChrome_120)
			if err := conn.HandshakeContext(ctx); err != nil {
				raw.Close()
				return nil, err
			}
			return conn, nil
		},
	}
	if proxy != nil {
		t.Proxy = http.ProxyURL(proxy)
	}
	return t
}
