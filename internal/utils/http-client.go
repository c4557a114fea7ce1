package utils

import (
	"net"
	"net/http"
	"net/url"
	"time"
)

type HTTPClientConfig struct {
	Timeout       time.Duration
	KATimeout     time.Duration
	ProxyURL      string
	ProxyUsername string
	ProxyPassword string
	UserAgent     string
	Headers       map[string]string
}

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// userAgentTransport stamps every outgoing request with the configured user agent
// and, for API clients, the custom headers.
type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
	headers   map[string]string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	} else {
		req.Header.Set("User-Agent", ToolUserAgent)
	}
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}

// NewHTTPClient builds the client used for part destinations. Custom headers are not
// applied here since presigned destinations reject unexpected authorization headers.
// There is no whole-request deadline: a body upload runs as long as it keeps moving
// and the job context cancels it. cfg.Timeout bounds the wait for response headers.
func NewHTTPClient(cfg HTTPClientConfig) *http.Client {
	client := newClient(cfg, nil)
	client.Timeout = 0
	return client
}

// NewAPIClient builds the client used for the authorization service; cfg.Timeout
// bounds each whole request.
func NewAPIClient(cfg HTTPClientConfig) *http.Client {
	return newClient(cfg, cfg.Headers)
}

func newClient(cfg HTTPClientConfig, headers map[string]string) *http.Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultRequestTimeout
	}
	if cfg.KATimeout == 0 {
		cfg.KATimeout = DefaultKeepAlive
	}
	dialer := &net.Dialer{
		Timeout:   DefaultDialTimeout,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   DefaultTLSTimeout,
		ResponseHeaderTimeout: cfg.Timeout,
		IdleConnTimeout:       cfg.KATimeout,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		DisableCompression:    true,
		MaxConnsPerHost:       0,
		Proxy:                 http.ProxyFromEnvironment,
	}
	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err == nil {
			if cfg.ProxyUsername != "" {
				if cfg.ProxyPassword != "" {
					proxyURL.User = url.UserPassword(cfg.ProxyUsername, cfg.ProxyPassword)
				} else {
					proxyURL.User = url.User(cfg.ProxyUsername)
				}
			}
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}
	return &http.Client{
		Timeout: cfg.Timeout,
		Transport: &userAgentTransport{
			base:      transport,
			userAgent: cfg.UserAgent,
			headers:   headers,
		},
	}
}
