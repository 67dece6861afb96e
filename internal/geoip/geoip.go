// Package geoip resolves probed server addresses to ISO country codes
// using a local MaxMind GeoLite2 database, and keeps that database fresh.
package geoip

import (
	"net"

	"github.com/oschwald/geoip2-golang"
)

// Provider answers country lookups against a GeoLite2 database file.
type Provider struct {
	db *geoip2.Reader
}

// Open loads the database at path.
func Open(path string) (*Provider, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}

	return &Provider{db: db}, nil
}

// Close releases the underlying database reader.
func (p *Provider) Close() error {
	return p.db.Close()
}

// Country returns the ISO country code ("US", "DE") for an IP address in
// string form. Unparseable or unknown addresses come back as an empty
// string rather than an error; enrichment is best-effort.
func (p *Provider) Country(addr string) string {
	ip := net.ParseIP(addr)
	if ip == nil {
		return ""
	}

	record, err := p.db.Country(ip)
	if err != nil {
		return ""
	}

	return record.Country.IsoCode
}
