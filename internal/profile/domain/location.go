package domain

import (
	"strings"
	"sync"
	"time"
)

var locations sync.Map

// LoadLocation resolves an IANA zone name, caching successful lookups.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidTimezone
	}
	if cached, ok := locations.Load(name); ok {
		return cached.(*time.Location), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, ErrInvalidTimezone
	}
	locations.Store(name, loc)
	return loc, nil
}

// Location returns the profile zone, or fallback when the stored name no longer resolves.
func (p Profile) Location(fallback *time.Location) *time.Location {
	loc, err := LoadLocation(p.Timezone)
	if err != nil {
		if fallback != nil {
			return fallback
		}
		return time.UTC
	}
	return loc
}
