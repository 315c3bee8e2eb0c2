package geoip

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// Resolver implements ports.GeoResolver backed by a MaxMind GeoLite2
// country database file.
type Resolver struct {
	db *geoip2.Reader
}

// NewResolver opens the database at the given path.
func NewResolver(path string) (*Resolver, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database: %w", err)
	}
	return &Resolver{db: db}, nil
}

// CountryForIP resolves an IP address to its ISO country code. An IP the
// database does not know resolves to the empty string, not an error.
func (r *Resolver) CountryForIP(ip string) (string, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "", fmt.Errorf("invalid ip address: %q", ip)
	}
	record, err := r.db.Country(parsed)
	if err != nil {
		return "", fmt.Errorf("geoip lookup: %w", err)
	}
	return record.Country.IsoCode, nil
}

// Close releases the underlying database reader.
func (r *Resolver) Close() error {
	return r.db.Close()
}
