package mchost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gitlab.bluewillows.net/root/mchostdns/internal/metrics"
	"gitlab.bluewillows.net/root/mchostdns/pkg/httputil"
	"gitlab.bluewillows.net/root/mchostdns/pkg/provider"
)

// ProviderType identifies this provider in errors and logs.
const ProviderType = "mchost"

// maxBodySize caps how much of a panel response is read.
const maxBodySize = 10 << 20

// Client owns one authenticated session against the McHost control panel.
//
// A Client is not safe for concurrent use: the session cookie jar is
// replaced on re-authentication. Callers serialize access (see Provider).
type Client struct {
	baseURL    string
	referer    string
	user       string
	pass       string
	reauth     bool
	httpClient *http.Client
	parser     PageParser
	zones      *zoneCache // nil when caching is disabled
	domains    Registry
	logger     *slog.Logger
	userJar    bool // jar supplied by the caller, kept on re-authentication
	loggedIn   bool
}

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*Client)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient sets the underlying HTTP client. A client without a cookie
// jar is copied and given one, since the panel session lives in cookies.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithParser replaces the page parser.
func WithParser(parser PageParser) ClientOption {
	return func(c *Client) {
		if parser != nil {
			c.parser = parser
		}
	}
}

// NewClient logs in and loads the account's domain registry.
func NewClient(ctx context.Context, cfg *Config, opts ...ClientOption) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.User == "" {
		return nil, provider.NewError(ProviderType, "setup", provider.ErrConfig, provider.ErrConfigMissing("user"))
	}
	if cfg.Pass == "" {
		return nil, provider.NewError(ProviderType, "setup", provider.ErrConfig, provider.ErrConfigMissing("pass"))
	}

	c := &Client{
		baseURL: cfg.baseURL(),
		referer: cfg.referer(),
		user:    cfg.User,
		pass:    cfg.Pass,
		reauth:  cfg.Reauthenticate,
		parser:  HTMLParser{},
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		httpClient, err := httputil.NewClient(&httputil.ClientConfig{
			Timeout:       cfg.Timeout,
			TLSSkipVerify: cfg.TLSSkipVerify,
			UserAgent:     cfg.UserAgent,
			Logger:        c.logger,
		})
		if err != nil {
			return nil, err
		}
		c.httpClient = httpClient
	} else {
		copied := *c.httpClient
		c.httpClient = &copied
		c.userJar = c.httpClient.Jar != nil
	}

	if cfg.CacheZoneIDs {
		c.zones = newZoneCache()
	}

	if err := c.Login(ctx); err != nil {
		return nil, err
	}

	if err := c.LoadDomains(ctx); err != nil {
		return nil, err
	}

	return c, nil
}

// request describes one panel call. It is rebuilt on every attempt so the
// body can be replayed after re-authentication.
type request struct {
	op     string
	method string
	path   string
	query  url.Values
	form   url.Values
}

// response is a fully read panel response.
type response struct {
	status   int
	body     []byte
	finalURL *url.URL
}

// roundTrip performs a single HTTP exchange.
func (c *Client) roundTrip(ctx context.Context, r request) (*response, error) {
	target := c.baseURL + r.path
	if len(r.query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + r.query.Encode()
	}

	var body io.Reader
	if r.form != nil {
		body = strings.NewReader(r.form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return nil, provider.NewError(ProviderType, r.op, provider.ErrConfig, fmt.Errorf("creating request: %w", err))
	}
	if r.form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if r.method == http.MethodPost {
		req.Header.Set("Referer", c.referer)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveRequest(r.op, time.Since(start).Seconds(), err)
		return nil, provider.NewError(ProviderType, r.op, provider.ErrTransient, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	metrics.ObserveRequest(r.op, time.Since(start).Seconds(), err)
	if err != nil {
		return nil, provider.NewError(ProviderType, r.op, provider.ErrTransient, fmt.Errorf("reading response: %w", err))
	}

	return &response{
		status:   resp.StatusCode,
		body:     data,
		finalURL: resp.Request.URL,
	}, nil
}

// unauthenticated reports whether the panel treated the request as anonymous.
// Expired sessions are redirected to the login page.
func (r *response) unauthenticated() bool {
	if r.status == http.StatusUnauthorized || r.status == http.StatusForbidden {
		return true
	}
	return r.finalURL != nil && r.finalURL.Path == sessionPath
}

// do performs an authenticated request, logging in once more if the
// session turned out to be gone.
func (c *Client) do(ctx context.Context, r request) (*response, error) {
	resp, err := c.roundTrip(ctx, r)
	if err != nil {
		return nil, err
	}
	if !c.reauth || !resp.unauthenticated() {
		return resp, nil
	}

	c.logger.Warn("McHost session lost, logging in again",
		slog.String("operation", r.op),
		slog.Int("status", resp.status),
	)
	metrics.ReauthenticationsTotal.Inc()

	if err := c.Login(ctx); err != nil {
		return nil, err
	}

	resp, err = c.roundTrip(ctx, r)
	if err != nil {
		return nil, err
	}
	if resp.unauthenticated() {
		return nil, provider.NewError(ProviderType, r.op, provider.ErrAuth,
			fmt.Errorf("session rejected after re-authentication (status %d)", resp.status))
	}

	return resp, nil
}

// Login acquires a fresh anonymous session and authenticates it.
func (c *Client) Login(ctx context.Context) error {
	// A new login starts from an empty jar unless the caller owns it.
	if c.httpClient.Jar == nil || (c.loggedIn && !c.userJar) {
		jar, err := httputil.NewCookieJar()
		if err != nil {
			return provider.NewError(ProviderType, "login", provider.ErrAuth, err)
		}
		c.httpClient.Jar = jar
	}

	resp, err := c.roundTrip(ctx, request{op: "session", method: http.MethodGet, path: sessionPath})
	if err != nil {
		return err
	}
	if resp.status != http.StatusOK {
		return provider.NewError(ProviderType, "login", provider.ErrAuth,
			fmt.Errorf("unable to retrieve a new session (status %d)", resp.status))
	}

	resp, err = c.roundTrip(ctx, request{
		op:     "login",
		method: http.MethodPost,
		path:   loginPath,
		form: url.Values{
			"j_username": {c.user},
			"j_password": {c.pass},
		},
	})
	if err != nil {
		return err
	}
	if resp.status != http.StatusOK || bytes.Contains(resp.body, []byte("error")) {
		return provider.NewError(ProviderType, "login", provider.ErrAuth,
			fmt.Errorf("unable to authenticate (status %d)", resp.status))
	}

	c.loggedIn = true
	c.logger.Debug("authenticated with McHost", slog.String("user", c.user))

	return nil
}

// LoadDomains scrapes the account landing page and replaces the registry.
func (c *Client) LoadDomains(ctx context.Context) error {
	resp, err := c.do(ctx, request{op: "list_domains", method: http.MethodGet, path: ordersPath})
	if err != nil {
		return err
	}
	if len(resp.body) == 0 {
		return provider.NewError(ProviderType, "list_domains", provider.ErrDiscovery,
			fmt.Errorf("no content returned for domains"))
	}

	registry, err := c.parser.ParseDomains(resp.body)
	if err != nil {
		return provider.NewError(ProviderType, "list_domains", provider.ErrDiscovery, err)
	}

	c.domains = registry
	c.logger.Debug("loaded McHost domains", slog.Int("count", len(registry)))

	return nil
}

// Domains returns a copy of the domain registry loaded at construction.
func (c *Client) Domains() Registry {
	out := make(Registry, len(c.domains))
	for d, id := range c.domains {
		out[d] = id
	}
	return out
}

// ZoneIDForOrder resolves an order id to its DNS zone id via the order
// administration page. Failures point at a panel markup change and are
// not retriable.
func (c *Client) ZoneIDForOrder(ctx context.Context, orderID string) (int, error) {
	if c.zones != nil {
		if id, ok := c.zones.get(orderID); ok {
			metrics.ZoneCacheHitsTotal.Inc()
			return id, nil
		}
	}

	resp, err := c.do(ctx, request{
		op:     "zone_from_order",
		method: http.MethodPost,
		path:   zoneFromOrderPath,
		form:   url.Values{"id": {orderID}},
	})
	if err != nil {
		return 0, err
	}
	if len(resp.body) == 0 {
		return 0, provider.NewError(ProviderType, "zone_from_order", provider.ErrDiscovery,
			fmt.Errorf("unable to get zone administration panel for order %s", orderID))
	}

	zoneID, err := c.parser.ParseZoneID(resp.body)
	if err != nil {
		return 0, provider.NewError(ProviderType, "zone_from_order", provider.ErrDiscovery,
			fmt.Errorf("order %s: %w", orderID, err))
	}

	if c.zones != nil {
		c.zones.put(orderID, zoneID)
	}

	return zoneID, nil
}

// InvalidateZone drops a cached zone id. It is a no-op without a cache.
func (c *Client) InvalidateZone(orderID string) {
	if c.zones != nil {
		c.zones.invalidate(orderID)
	}
}

// ResetZoneCache drops all cached zone ids.
func (c *Client) ResetZoneCache() {
	if c.zones != nil {
		c.zones.reset()
	}
}

// ResolveDomain finds the registered domain owning name and its zone id.
func (c *Client) ResolveDomain(ctx context.Context, name string) (string, int, error) {
	domain, orderID, ok := c.domains.Match(name)
	if !ok {
		return "", 0, provider.NewError(ProviderType, "resolve", provider.ErrNotFound,
			fmt.Errorf("no such domain found for the account: %s", name))
	}

	zoneID, err := c.ZoneIDForOrder(ctx, orderID)
	if err != nil {
		return "", 0, err
	}

	return domain, zoneID, nil
}

// RecordKey identifies a TXT record within a zone.
type RecordKey struct {
	Name    string
	Content string
}

// parseRecordID accepts ids encoded as JSON numbers or strings.
// It reports false for a missing, null or non-integer id.
func parseRecordID(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	v, err := strconv.ParseInt(strings.Trim(string(raw), `"`), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// panelRecord keeps the id raw so rows of other types never fail decoding.
type panelRecord struct {
	ID      json.RawMessage `json:"id"`
	Name    string          `json:"name"`
	Content string          `json:"content"`
	Type    string          `json:"type"`
}

type recordsResponse struct {
	Data *struct {
		Records []panelRecord `json:"records"`
	} `json:"data"`
}

// TXTRecords lists the zone's TXT records keyed by (name, content).
// Later duplicates overwrite earlier ones.
func (c *Client) TXTRecords(ctx context.Context, zoneID int) (map[RecordKey]int64, error) {
	resp, err := c.do(ctx, request{
		op:     "list_records",
		method: http.MethodPost,
		path:   zoneRecordsPath,
		query:  url.Values{"id": {strconv.Itoa(zoneID)}},
	})
	if err != nil {
		return nil, err
	}

	var parsed recordsResponse
	if err := json.Unmarshal(resp.body, &parsed); err != nil {
		return nil, provider.NewError(ProviderType, "list_records", provider.ErrDiscovery,
			fmt.Errorf("parsing records of zone %d: %w", zoneID, err))
	}
	if parsed.Data == nil {
		return nil, provider.NewError(ProviderType, "list_records", provider.ErrDiscovery,
			fmt.Errorf("no content returned from server for zone %d", zoneID))
	}
	if len(parsed.Data.Records) == 0 {
		return nil, provider.NewError(ProviderType, "list_records", provider.ErrDiscovery,
			fmt.Errorf("no records returned for zone %d", zoneID))
	}

	result := make(map[RecordKey]int64)
	for _, r := range parsed.Data.Records {
		if r.Type != provider.RecordTypeTXT {
			continue
		}
		id, ok := parseRecordID(r.ID)
		if !ok {
			c.logger.Debug("skipping TXT record without a usable id",
				slog.Int("zone_id", zoneID),
				slog.String("name", r.Name),
				slog.String("id", string(r.ID)),
			)
			continue
		}
		result[RecordKey{Name: r.Name, Content: r.Content}] = id
	}

	return result, nil
}

// CreateTXTRecord adds a TXT record. Success is judged on HTTP status only;
// the record is not read back.
func (c *Client) CreateTXTRecord(ctx context.Context, zoneID int, name, content string) error {
	resp, err := c.do(ctx, request{
		op:     "create_record",
		method: http.MethodPost,
		path:   createRecordPath,
		form: url.Values{
			"name":    {name},
			"type":    {provider.RecordTypeTXT},
			"content": {content},
			"id":      {strconv.Itoa(zoneID)},
		},
	})
	if err != nil {
		return err
	}
	if resp.status != http.StatusOK {
		c.logger.Error("McHost returned an error while creating a record",
			slog.Int("status", resp.status),
			slog.String("body", snippet(resp.body)),
		)
		return provider.NewError(ProviderType, "create_record", provider.ErrCreate,
			fmt.Errorf("unable to create record %s (status %d)", name, resp.status))
	}

	metrics.RecordsCreatedTotal.Inc()
	c.logger.Debug("created TXT record",
		slog.Int("zone_id", zoneID),
		slog.String("name", name),
	)

	return nil
}

// DeleteTXTRecord removes the TXT record matching (name, content).
// A missing record is logged and treated as success.
func (c *Client) DeleteTXTRecord(ctx context.Context, zoneID int, name, content string) error {
	records, err := c.TXTRecords(ctx, zoneID)
	if err != nil {
		return err
	}

	recordID, ok := records[RecordKey{Name: name, Content: content}]
	if !ok {
		metrics.RecordsMissingTotal.Inc()
		c.logger.Warn("tried to delete non-existing TXT record",
			slog.Int("zone_id", zoneID),
			slog.String("name", name),
		)
		return nil
	}

	resp, err := c.do(ctx, request{
		op:     "delete_record",
		method: http.MethodPost,
		path:   deleteRecordPath,
		query: url.Values{
			"id":       {strconv.Itoa(zoneID)},
			"recordId": {strconv.FormatInt(recordID, 10)},
		},
	})
	if err != nil {
		return err
	}
	if resp.status != http.StatusOK {
		c.logger.Error("McHost returned an error while deleting a record",
			slog.Int("status", resp.status),
			slog.String("body", snippet(resp.body)),
		)
		return provider.NewError(ProviderType, "delete_record", provider.ErrDelete,
			fmt.Errorf("unable to delete record %s (status %d)", name, resp.status))
	}

	metrics.RecordsDeletedTotal.Inc()
	c.logger.Debug("deleted TXT record",
		slog.Int("zone_id", zoneID),
		slog.String("name", name),
		slog.Int64("record_id", recordID),
	)

	return nil
}

// AddTXTRecord creates recordName in the zone owning domain.
func (c *Client) AddTXTRecord(ctx context.Context, domain, recordName, content string) error {
	zoneID, relative, err := c.locate(ctx, domain, recordName)
	if err != nil {
		return err
	}
	return c.CreateTXTRecord(ctx, zoneID, relative, content)
}

// RemoveTXTRecord deletes recordName from the zone owning domain.
func (c *Client) RemoveTXTRecord(ctx context.Context, domain, recordName, content string) error {
	zoneID, relative, err := c.locate(ctx, domain, recordName)
	if err != nil {
		return err
	}
	return c.DeleteTXTRecord(ctx, zoneID, relative, content)
}

// locate resolves domain and converts recordName to a zone-relative name.
func (c *Client) locate(ctx context.Context, domain, recordName string) (int, string, error) {
	base, zoneID, err := c.ResolveDomain(ctx, domain)
	if err != nil {
		return 0, "", err
	}

	relative, ok := RelativeName(recordName, base)
	if !ok {
		return 0, "", provider.NewError(ProviderType, "resolve", provider.ErrNotFound,
			fmt.Errorf("record %s is not inside domain %s", recordName, base))
	}

	return zoneID, relative, nil
}

// snippet shortens a response body for logging.
func snippet(body []byte) string {
	const limit = 512
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
