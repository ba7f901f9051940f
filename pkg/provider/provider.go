// Package provider defines the contract between a certificate host and a
// DNS-01 challenge provider.
package provider

import (
	"context"
	"strings"
)

// RecordTypeTXT is the only record type a DNS-01 provider manages.
const RecordTypeTXT = "TXT"

// ChallengeLabel is the label prepended to a domain to form its DNS-01 record name.
const ChallengeLabel = "_acme-challenge"

// Provider places and removes DNS-01 validation records.
// Both operations take fully qualified names without a trailing dot
// (e.g. "example.com", "_acme-challenge.example.com").
type Provider interface {
	// Name returns the provider instance name.
	Name() string

	// Perform publishes a TXT record named recordName with the given value
	// in the zone that owns domain.
	Perform(ctx context.Context, domain, recordName, value string) error

	// Cleanup removes the record published by Perform. Removing a record
	// that does not exist is not an error.
	Cleanup(ctx context.Context, domain, recordName, value string) error
}

// ChallengeRecordName returns the validation record name for domain.
// A wildcard prefix is dropped: "*.example.com" -> "_acme-challenge.example.com".
func ChallengeRecordName(domain string) string {
	domain = strings.TrimPrefix(NormalizeName(domain), "*.")
	return ChallengeLabel + "." + domain
}

// NormalizeName lowercases a DNS name and strips a trailing root dot.
func NormalizeName(name string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), ".")
}
