// Package propagation waits for DNS-01 challenge records to become visible
// on a set of nameservers.
package propagation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"

	"gitlab.bluewillows.net/root/mchostdns/internal/metrics"
	"gitlab.bluewillows.net/root/mchostdns/pkg/provider"
)

const (
	// DefaultTimeout bounds the whole wait.
	DefaultTimeout = 2 * time.Minute

	// DefaultInterval is the pause between polling rounds.
	DefaultInterval = 5 * time.Second

	// DefaultResolvConf is read when no nameservers are configured.
	DefaultResolvConf = "/etc/resolv.conf"

	queryTimeout = 5 * time.Second
)

// Checker polls nameservers for a TXT value.
type Checker struct {
	nameservers []string
	timeout     time.Duration
	interval    time.Duration
	logger      *slog.Logger
	dnsClient   *dns.Client
}

// Option is a functional option for configuring the Checker.
type Option func(*Checker)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithNameservers sets the servers to query. Entries without a port get :53.
func WithNameservers(servers ...string) Option {
	return func(c *Checker) {
		c.nameservers = nil
		for _, s := range servers {
			if s = strings.TrimSpace(s); s != "" {
				c.nameservers = append(c.nameservers, withPort(s))
			}
		}
	}
}

// WithTimeout bounds the whole wait.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithInterval sets the pause between polling rounds.
func WithInterval(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.interval = d
		}
	}
}

// NewChecker creates a Checker. Without WithNameservers the resolvers from
// /etc/resolv.conf are used.
func NewChecker(opts ...Option) (*Checker, error) {
	c := &Checker{
		timeout:  DefaultTimeout,
		interval: DefaultInterval,
		logger:   slog.Default(),
		dnsClient: &dns.Client{
			Net:     "udp",
			Timeout: queryTimeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	if len(c.nameservers) == 0 {
		servers, err := SystemNameservers(DefaultResolvConf)
		if err != nil {
			return nil, err
		}
		c.nameservers = servers
	}

	return c, nil
}

// SystemNameservers returns the resolvers listed in a resolv.conf file.
func SystemNameservers(path string) ([]string, error) {
	conf, err := dns.ClientConfigFromFile(path)
	if err != nil {
		return nil, provider.ErrConfigInvalid("propagation.nameservers", path, err.Error())
	}
	if len(conf.Servers) == 0 {
		return nil, provider.ErrConfigInvalid("propagation.nameservers", path, "no nameservers found")
	}

	servers := make([]string, 0, len(conf.Servers))
	for _, s := range conf.Servers {
		servers = append(servers, net.JoinHostPort(s, conf.Port))
	}
	return servers, nil
}

// Nameservers returns the servers this Checker queries.
func (c *Checker) Nameservers() []string {
	return append([]string(nil), c.nameservers...)
}

// Wait blocks until every nameserver answers a TXT query for fqdn that
// contains value. It returns an ErrTransient error when the timeout passes
// first, and the context error when ctx is cancelled.
func (c *Checker) Wait(ctx context.Context, fqdn, value string) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	pending := make(map[string]bool, len(c.nameservers))
	for _, ns := range c.nameservers {
		pending[ns] = true
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		for ns := range pending {
			found, err := c.hasTXT(ctx, ns, fqdn, value)
			if err != nil {
				c.logger.Debug("TXT lookup failed",
					slog.String("nameserver", ns),
					slog.String("name", fqdn),
					slog.String("error", err.Error()),
				)
				continue
			}
			if found {
				delete(pending, ns)
			}
		}

		if len(pending) == 0 {
			elapsed := time.Since(start)
			metrics.PropagationDuration.Observe(elapsed.Seconds())
			c.logger.Info("TXT record propagated",
				slog.String("name", fqdn),
				slog.Int("nameservers", len(c.nameservers)),
				slog.Duration("elapsed", elapsed),
			)
			return nil
		}

		c.logger.Debug("waiting for TXT propagation",
			slog.String("name", fqdn),
			slog.Int("pending", len(pending)),
		)

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return provider.NewError("propagation", "wait", provider.ErrTransient,
					fmt.Errorf("TXT %s not visible on %d of %d nameservers after %s",
						fqdn, len(pending), len(c.nameservers), c.timeout))
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// hasTXT reports whether ns serves a TXT record for fqdn with value.
func (c *Checker) hasTXT(ctx context.Context, ns, fqdn, value string) (bool, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(fqdn), dns.TypeTXT)
	msg.RecursionDesired = true

	resp, err := c.exchangeWithContext(ctx, msg, ns)
	if err != nil {
		return false, err
	}

	if resp.Truncated {
		tcp := &dns.Client{Net: "tcp", Timeout: c.dnsClient.Timeout}
		if resp, _, err = tcp.ExchangeContext(ctx, msg, ns); err != nil {
			return false, err
		}
	}

	if resp.Rcode != dns.RcodeSuccess && resp.Rcode != dns.RcodeNameError {
		return false, fmt.Errorf("server returned %s", dns.RcodeToString[resp.Rcode])
	}

	for _, rr := range resp.Answer {
		txt, ok := rr.(*dns.TXT)
		if !ok {
			continue
		}
		if strings.Join(txt.Txt, "") == value {
			return true, nil
		}
	}
	return false, nil
}

// exchangeWithContext performs a DNS exchange that respects context cancellation.
func (c *Checker) exchangeWithContext(ctx context.Context, msg *dns.Msg, ns string) (*dns.Msg, error) {
	type result struct {
		resp *dns.Msg
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		resp, _, err := c.dnsClient.Exchange(msg, ns)
		ch <- result{resp, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.resp, r.err
	}
}

func withPort(server string) string {
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}
	return net.JoinHostPort(strings.Trim(server, "[]"), "53")
}
