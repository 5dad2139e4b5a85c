package matching

import (
	"fmt"
	"strings"

	"github.com/sells-group/vendor-match/internal/geo"
)

// AreaKind is the kind of a vendor service-area entry. Lower values take
// precedence when several entries match a location.
type AreaKind int

const (
	AreaExact AreaKind = iota + 1
	AreaPrefix
	AreaState
)

func (k AreaKind) String() string {
	switch k {
	case AreaExact:
		return "exact"
	case AreaPrefix:
		return "prefix"
	case AreaState:
		return "state"
	default:
		return "unknown"
	}
}

// ServiceArea is one parsed service-area entry: an exact ZIP code
// ("19103"), a ZIP prefix ("prefix:191") or a whole state ("state:PA").
type ServiceArea struct {
	Kind  AreaKind
	Value string
}

// ParseServiceArea parses a stored service-area entry. ok is false for
// entries that are none of the three supported forms.
func ParseServiceArea(raw string) (area ServiceArea, ok bool) {
	raw = strings.TrimSpace(raw)
	tag, value, tagged := strings.Cut(raw, ":")
	if !tagged {
		if z := geo.NormalizeZip(raw); z != "" {
			return ServiceArea{Kind: AreaExact, Value: z}, true
		}
		return ServiceArea{}, false
	}

	value = strings.TrimSpace(value)
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "prefix":
		if len(value) == 0 || len(value) > 5 || !isDigits(value) {
			return ServiceArea{}, false
		}
		if len(value) == 5 {
			return ServiceArea{Kind: AreaExact, Value: value}, true
		}
		return ServiceArea{Kind: AreaPrefix, Value: value}, true
	case "state":
		value = strings.ToUpper(value)
		if len(value) != 2 || !geo.IsState(value) {
			return ServiceArea{}, false
		}
		return ServiceArea{Kind: AreaState, Value: value}, true
	case "zip":
		if z := geo.NormalizeZip(value); z != "" {
			return ServiceArea{Kind: AreaExact, Value: z}, true
		}
	}
	return ServiceArea{}, false
}

// ParseServiceAreas parses every entry, dropping the ones that do not parse.
func ParseServiceAreas(raw []string) []ServiceArea {
	out := make([]ServiceArea, 0, len(raw))
	for _, r := range raw {
		if a, ok := ParseServiceArea(r); ok {
			out = append(out, a)
		}
	}
	return out
}

// Matches reports whether the area covers loc.
func (a ServiceArea) Matches(loc geo.Location) bool {
	switch a.Kind {
	case AreaExact:
		return loc.Zip != "" && loc.Zip == a.Value
	case AreaPrefix:
		return loc.Zip != "" && strings.HasPrefix(loc.Zip, a.Value)
	case AreaState:
		return loc.State != "" && loc.State == a.Value
	default:
		return false
	}
}

// Label returns a human-readable description of the area.
func (a ServiceArea) Label() string {
	switch a.Kind {
	case AreaExact:
		return a.Value
	case AreaPrefix:
		label := "ZIP " + a.Value + strings.Repeat("x", 5-len(a.Value))
		if state, ok := geo.StateForZip(a.Value); ok {
			label += fmt.Sprintf(" (%s)", state)
		}
		return label
	case AreaState:
		return "All of " + a.Value
	default:
		return ""
	}
}

// BestArea returns the highest-precedence area covering loc. Exact beats
// prefix, prefix beats state; among prefixes the longest wins.
func BestArea(areas []ServiceArea, loc geo.Location) (ServiceArea, bool) {
	var best ServiceArea
	found := false
	for _, a := range areas {
		if !a.Matches(loc) {
			continue
		}
		if !found || a.Kind < best.Kind || (a.Kind == best.Kind && len(a.Value) > len(best.Value)) {
			best = a
			found = true
		}
	}
	return best, found
}

// AreaLabels returns the labels of the parseable entries in raw.
func AreaLabels(raw []string) []string {
	areas := ParseServiceAreas(raw)
	labels := make([]string, 0, len(areas))
	for _, a := range areas {
		labels = append(labels, a.Label())
	}
	return labels
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
