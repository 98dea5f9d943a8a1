// Package geo resolves client addresses against a MaxMind City database.
package geo

import (
	"errors"
	"fmt"
	"net"

	"github.com/gateguard/gateguard-api/internal/auditlog/model"
	"github.com/oschwald/geoip2-golang"
)

// ErrInvalidIP is returned for strings that are not IP addresses.
var ErrInvalidIP = errors.New("invalid ip address")

// ErrNoLocation is returned when the database has no country for an address,
// e.g. private ranges.
var ErrNoLocation = errors.New("no location for address")

// Locator looks up addresses in an open .mmdb file.
type Locator struct {
	reader *geoip2.Reader
}

// Open loads the City database at path.
func Open(path string) (*Locator, error) {
	r, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database %s: %w", path, err)
	}
	return &Locator{reader: r}, nil
}

// Close releases the database.
func (l *Locator) Close() error {
	return l.reader.Close()
}

// Lookup returns the registered location of ip.
func (l *Locator) Lookup(ip string) (*model.GeoLocation, error) {
	addr := net.ParseIP(ip)
	if addr == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIP, ip)
	}
	rec, err := l.reader.City(addr)
	if err != nil {
		return nil, fmt.Errorf("city lookup: %w", err)
	}
	if rec.Country.IsoCode == "" {
		return nil, ErrNoLocation
	}
	return &model.GeoLocation{
		CountryCode: rec.Country.IsoCode,
		City:        rec.City.Names["en"],
		Latitude:    rec.Location.Latitude,
		Longitude:   rec.Location.Longitude,
	}, nil
}
