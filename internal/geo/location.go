package geo

import (
	"strings"
	"unicode"
)

// Location is the postal location of a service request.
type Location struct {
	Zip   string `json:"zip,omitempty"`
	State string `json:"state,omitempty"`
}

// Known reports whether any part of the location was resolved.
func (l Location) Known() bool {
	return l.Zip != "" || l.State != ""
}

// ResolveLocation derives a Location from an explicit ZIP code, falling back
// to parsing the free-form property address. The state is taken from the
// address when present, otherwise from the ZIP prefix.
func ResolveLocation(zip, address string) Location {
	loc := ParseLocation(address)
	if z := NormalizeZip(zip); z != "" {
		loc.Zip = z
	}
	if loc.State == "" && loc.Zip != "" {
		loc.State, _ = StateForZip(loc.Zip)
	}
	return loc
}

// ParseLocation extracts the last ZIP code and the last upper-case state code
// from an address like "1500 Market St, Philadelphia, PA 19103".
func ParseLocation(address string) Location {
	fields := strings.FieldsFunc(address, func(r rune) bool {
		return r != '-' && !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var loc Location
	for i := len(fields) - 1; i >= 0; i-- {
		f := fields[i]
		if loc.Zip == "" {
			if z := NormalizeZip(f); z != "" {
				loc.Zip = z
				continue
			}
		}
		// Only upper-case codes count so words like "in" or "me" are skipped.
		if loc.State == "" && len(f) == 2 && f == strings.ToUpper(f) && IsState(f) {
			loc.State = f
		}
		if loc.Zip != "" && loc.State != "" {
			break
		}
	}
	return loc
}
