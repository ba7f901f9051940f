// Package mchost implements a DNS-01 challenge provider for the McHost
// hosting control panel (my.mchost.ru).
//
// McHost has no public DNS API. The client drives the same web endpoints the
// browser UI uses: it logs in with a session cookie, scrapes the account's
// domain orders from HTML, resolves each order to its DNS zone id, and edits
// TXT records through the panel's JSON endpoints.
package mchost

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"gitlab.bluewillows.net/root/mchostdns/pkg/provider"
)

// DefaultBaseURL is the McHost control panel.
const DefaultBaseURL = "https://my.mchost.ru"

// Control panel endpoints, relative to the base URL.
const (
	sessionPath       = "/login/auth"
	loginPath         = "/j_spring_security_check?ajax=true"
	ordersPath        = "/"
	zoneFromOrderPath = "/dnsOrder/administration"
	zoneRecordsPath   = "/dnsZone/records"
	createRecordPath  = "/dnsZone/createRecord"
	deleteRecordPath  = "/dnsZone/deleteRecord"
)

// Config holds McHost-specific configuration.
type Config struct {
	// BaseURL of the control panel. Defaults to DefaultBaseURL.
	BaseURL string

	// Account credentials. Checked lazily on first use, not by Validate.
	User string
	Pass string

	// HTTP settings.
	Timeout       time.Duration
	UserAgent     string
	TLSSkipVerify bool

	// CacheZoneIDs keeps resolved zone ids for the lifetime of a Client.
	// When false every domain operation resolves its zone id again.
	CacheZoneIDs bool

	// Reauthenticate logs in once more when a request comes back
	// unauthenticated, then replays the request.
	Reauthenticate bool
}

// DefaultConfig returns a Config with defaults applied and no credentials.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:        DefaultBaseURL,
		Reauthenticate: true,
	}
}

// Validate checks that configured values are well formed.
func (c *Config) Validate() error {
	var errs []string

	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, provider.ErrConfigInvalid("base_url", c.BaseURL, "must be an absolute http(s) URL").Error())
		}
	}

	if c.Timeout < 0 {
		errs = append(errs, provider.ErrConfigInvalid("timeout", c.Timeout.String(), "must not be negative").Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: mchost config validation failed: %s", provider.ErrConfig, strings.Join(errs, "; "))
	}

	return nil
}

// HasCredentials reports whether both user and password are set.
func (c *Config) HasCredentials() bool {
	return c.User != "" && c.Pass != ""
}

// baseURL returns the configured base URL without a trailing slash.
func (c *Config) baseURL() string {
	if c.BaseURL == "" {
		return DefaultBaseURL
	}
	return strings.TrimSuffix(c.BaseURL, "/")
}

// referer is sent on every POST; the panel rejects POSTs without it.
func (c *Config) referer() string {
	return c.baseURL() + "/"
}
