// Package httputil builds the HTTP clients used to talk to hosting control panels.
package httputil

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"
)

// Default HTTP client configuration values.
const (
	// DefaultTimeout is the default HTTP client timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent is used when no custom user agent is specified.
	DefaultUserAgent = "mchostdns/1.0"
)

// ClientConfig contains configuration for creating an HTTP client.
type ClientConfig struct {
	// Timeout bounds the whole request, including reading the body.
	// Defaults to 30 seconds.
	Timeout time.Duration

	// TLSSkipVerify disables certificate verification. Testing only.
	TLSSkipVerify bool

	// UserAgent is the User-Agent header to set on requests.
	UserAgent string

	// Headers are added to every request that does not already carry them.
	Headers map[string]string

	// CookieJar attaches a fresh in-memory cookie jar so that the client
	// carries a login session across requests.
	CookieJar bool

	// Logger enables debug logging for HTTP requests.
	// If nil, no debug logging is performed.
	Logger *slog.Logger
}

// headerTransport sets default headers and debug-logs each round trip.
type headerTransport struct {
	base      http.RoundTripper
	userAgent string
	headers   map[string]string
	logger    *slog.Logger
}

// RoundTrip implements http.RoundTripper.
func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not modify the caller's request.
	if len(t.headers) > 0 || (req.Header.Get("User-Agent") == "" && t.userAgent != "") {
		req = req.Clone(req.Context())
	}
	if req.Header.Get("User-Agent") == "" && t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	for k, v := range t.headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}

	start := time.Now()
	resp, err := t.base.RoundTrip(req)

	if t.logger != nil {
		attrs := []any{
			slog.String("method", req.Method),
			slog.String("url", req.URL.Redacted()),
			slog.Duration("elapsed", time.Since(start)),
		}
		switch {
		case err != nil:
			t.logger.Debug("HTTP request failed", append(attrs, slog.String("error", err.Error()))...)
		case resp != nil:
			t.logger.Debug("HTTP response", append(attrs, slog.Int("status", resp.StatusCode))...)
		}
	}

	return resp, err
}

// NewClient creates an HTTP client with the specified configuration.
// If cfg is nil, defaults are used (30s timeout, TLS verification enabled, no jar).
func NewClient(cfg *ClientConfig) (*http.Client, error) {
	if cfg == nil {
		cfg = &ClientConfig{}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	baseTransport := http.DefaultTransport
	if cfg.TLSSkipVerify {
		baseTransport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, //nolint:gosec // Intentional: user explicitly requested skip
			},
		}
	}

	client := &http.Client{
		Timeout: timeout,
		Transport: &headerTransport{
			base:      baseTransport,
			userAgent: userAgent,
			headers:   cfg.Headers,
			logger:    cfg.Logger,
		},
	}

	if cfg.CookieJar {
		jar, err := NewCookieJar()
		if err != nil {
			return nil, err
		}
		client.Jar = jar
	}

	return client, nil
}

// NewCookieJar returns an empty jar scoped by the public suffix list.
func NewCookieJar() (http.CookieJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	return jar, nil
}

// NewSessionClient returns a client with a cookie jar and otherwise default settings.
func NewSessionClient(logger *slog.Logger) (*http.Client, error) {
	return NewClient(&ClientConfig{CookieJar: true, Logger: logger})
}
