package mchost

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"gitlab.bluewillows.net/root/mchostdns/pkg/provider"
)

// ClientFactory builds a logged-in Client. Replaced in tests.
type ClientFactory func(ctx context.Context, cfg *Config, opts ...ClientOption) (*Client, error)

// Provider implements provider.Provider for McHost.
//
// The Client is built lazily on the first Perform or Cleanup and reused for
// the lifetime of the Provider. A failed build leaves the Provider
// uninitialized so the next call tries again.
type Provider struct {
	name       string
	config     *Config
	logger     *slog.Logger
	factory    ClientFactory
	clientOpts []ClientOption

	mu     sync.Mutex
	client *Client
}

// Ensure Provider implements provider.Provider.
var _ provider.Provider = (*Provider)(nil)

// ProviderOption is a functional option for configuring the Provider.
type ProviderOption func(*Provider)

// WithProviderLogger sets a custom logger for the provider and its client.
func WithProviderLogger(logger *slog.Logger) ProviderOption {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClientFactory replaces how the Client is built.
func WithClientFactory(factory ClientFactory) ProviderOption {
	return func(p *Provider) {
		if factory != nil {
			p.factory = factory
		}
	}
}

// WithClientOptions passes options through to the Client.
func WithClientOptions(opts ...ClientOption) ProviderOption {
	return func(p *Provider) {
		p.clientOpts = append(p.clientOpts, opts...)
	}
}

// New creates a McHost provider. Credentials are not checked until first use.
func New(name string, config *Config, opts ...ProviderOption) (*Provider, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	p := &Provider{
		name:    name,
		config:  config,
		logger:  slog.Default(),
		factory: NewClient,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Name returns the provider instance name.
func (p *Provider) Name() string {
	return p.name
}

// Type returns "mchost".
func (p *Provider) Type() string {
	return ProviderType
}

// Client returns the session client, logging in on first use.
func (p *Provider) Client(ctx context.Context) (*Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clientLocked(ctx)
}

func (p *Provider) clientLocked(ctx context.Context) (*Client, error) {
	if p.client != nil {
		return p.client, nil
	}

	if !p.config.HasCredentials() {
		return nil, provider.NewError(p.name, "setup", provider.ErrConfig,
			fmt.Errorf("missing McHost credentials"))
	}

	opts := append([]ClientOption{WithLogger(p.logger)}, p.clientOpts...)
	client, err := p.factory(ctx, p.config, opts...)
	if err != nil {
		return nil, err
	}

	p.client = client
	p.logger.Info("logged in to McHost",
		slog.String("provider", p.name),
		slog.Int("domains", len(client.Domains())),
	)

	return client, nil
}

// Perform publishes the validation record for domain.
func (p *Provider) Perform(ctx context.Context, domain, recordName, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	client, err := p.clientLocked(ctx)
	if err != nil {
		return err
	}

	if err := client.AddTXTRecord(ctx, domain, recordName, value); err != nil {
		return err
	}

	p.logger.Info("placed TXT record",
		slog.String("provider", p.name),
		slog.String("domain", domain),
		slog.String("record", recordName),
	)

	return nil
}

// Cleanup removes the validation record for domain. A record that is
// already gone is not an error.
func (p *Provider) Cleanup(ctx context.Context, domain, recordName, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	client, err := p.clientLocked(ctx)
	if err != nil {
		return err
	}

	if err := client.RemoveTXTRecord(ctx, domain, recordName, value); err != nil {
		return err
	}

	p.logger.Info("removed TXT record",
		slog.String("provider", p.name),
		slog.String("domain", domain),
		slog.String("record", recordName),
	)

	return nil
}
