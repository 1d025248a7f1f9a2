package client

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	Init()

	require.NotNil(t, HTTPClient)
	require.NotNil(t, HTTPClient.Transport)
	require.NotNil(t, ImpatientHTTPClient)

	if transport, ok := HTTPClient.Transport.(*http.Transport); ok {
		require.NotNil(t, transport.TLSNextProto)
		require.Empty(t, transport.TLSNextProto)
	}
}

func TestNewTransport_AppliesProxy(t *testing.T) {
	proxyURL, err := url.Parse("http://127.0.0.1:8080")
	require.NoError(t, err)

	transport := NewTransport(proxyURL, 0)
	require.NotNil(t, transport.Proxy)

	req, err := http.NewRequest(http.MethodGet, "http://example.com", nil)
	require.NoError(t, err)
	resolved, err := transport.Proxy(req)
	require.NoError(t, err)
	require.Equal(t, proxyURL, resolved)
}

func TestNewTransport_NoProxyByDefault(t *testing.T) {
	transport := NewTransport(nil, 0)
	require.Nil(t, transport.Proxy)
}

func TestNewTransport_AppliesConnectTimeout(t *testing.T) {
	transport := NewTransport(nil, 5*time.Second)
	require.NotNil(t, transport.DialContext)
}
