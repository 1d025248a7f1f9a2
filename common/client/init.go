package client

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/Laisky/zap"

	"github.com/relayforge/gateway/common/config"
	"github.com/relayforge/gateway/common/logger"
)

// HTTPClient is the default outbound client used for upstream backend calls,
// proxied through config.RelayProxy when set.
var HTTPClient *http.Client

// ImpatientHTTPClient is a short-timeout client for quick health checks or metadata requests.
var ImpatientHTTPClient *http.Client

// Init builds the shared HTTP clients with proxy and timeout settings derived from configuration.
// Call once at boot, before any backend.Client is constructed with NewTransport.
func Init() {
	var proxyURL *url.URL
	if config.RelayProxy != "" {
		logger.Logger.Info("using api relay proxy", zap.String("proxy", config.RelayProxy))
		var err error
		proxyURL, err = url.Parse(config.RelayProxy)
		if err != nil {
			logger.Logger.Fatal(fmt.Sprintf("RELAY_PROXY set but invalid: %s", config.RelayProxy))
		}
	}

	transport := NewTransport(proxyURL, 0)

	if config.RelayTimeout == 0 {
		HTTPClient = &http.Client{Transport: transport}
	} else {
		HTTPClient = &http.Client{
			Timeout:   time.Duration(config.RelayTimeout) * time.Second,
			Transport: transport,
		}
	}

	ImpatientHTTPClient = &http.Client{
		Timeout:   5 * time.Second,
		Transport: transport,
	}
}

// NewTransport builds an http.Transport honoring the gateway's proxy
// configuration, with HTTP/2 disabled (a workaround for stream errors seen
// against some upstreams) and an optional dedicated connect timeout distinct
// from the client's overall request timeout — used by backend.Client
// constructors that need a per-model connect deadline (§5).
func NewTransport(proxyURL *url.URL, connectTimeout time.Duration) *http.Transport {
	transport := &http.Transport{
		TLSNextProto: make(map[string]func(authority string, c *tls.Conn) http.RoundTripper),
	}
	if proxyURL != nil {
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	if connectTimeout > 0 {
		dialer := &net.Dialer{Timeout: connectTimeout}
		transport.DialContext = dialer.DialContext
	}
	return transport
}
