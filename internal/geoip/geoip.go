// Package geoip resolves source IPs to ISO country codes using a local
// MaxMind database. Enrichment is optional; events usually carry their own
// geographical context.
package geoip

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// Resolver wraps a MaxMind country database.
type Resolver struct {
	reader *geoip2.Reader
}

// Open opens the database at the given path.
func Open(dbPath string) (*Resolver, error) {
	reader, err := geoip2.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open geoip database: %w", err)
	}
	return &Resolver{reader: reader}, nil
}

// Country returns the ISO country code for the IP, or an empty string when
// the database has no entry for it.
func (r *Resolver) Country(ip string) (string, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "", fmt.Errorf("invalid ip address: %s", ip)
	}

	record, err := r.reader.Country(parsed)
	if err != nil {
		return "", err
	}
	return record.Country.IsoCode, nil
}

// Close closes the underlying database.
func (r *Resolver) Close() error {
	return r.reader.Close()
}
