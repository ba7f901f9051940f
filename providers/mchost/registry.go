package mchost

import (
	"sort"
	"strings"

	"gitlab.bluewillows.net/root/mchostdns/pkg/provider"
)

// Registry maps a registered domain name to the id of the order it belongs to.
type Registry map[string]string

// Match returns the registry entry owning name: either an exact key or the
// longest key of which name is a subdomain.
func (r Registry) Match(name string) (domain, orderID string, ok bool) {
	name = provider.NormalizeName(name)
	for d, id := range r {
		if name != d && !strings.HasSuffix(name, "."+d) {
			continue
		}
		if len(d) > len(domain) {
			domain, orderID, ok = d, id, true
		}
	}
	return domain, orderID, ok
}

// Domains returns the registered domain names in sorted order.
func (r Registry) Domains() []string {
	domains := make([]string, 0, len(r))
	for d := range r {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	return domains
}

// RelativeName strips ".<base>" from the end of a fully qualified record name.
// It reports false when fqdn is not a strict subdomain of base.
// Example: ("_acme-challenge.example.com", "example.com") -> "_acme-challenge".
// The comparison ignores case but the returned label keeps the caller's case.
func RelativeName(fqdn, base string) (string, bool) {
	fqdn = strings.TrimSuffix(strings.TrimSpace(fqdn), ".")
	base = provider.NormalizeName(base)
	if !strings.HasSuffix(strings.ToLower(fqdn), "."+base) || len(fqdn) <= len(base)+1 {
		return "", false
	}
	return fqdn[:len(fqdn)-len(base)-1], true
}
