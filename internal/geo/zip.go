// Package geo provides read-only US postal geography lookups: ZIP3 prefix to
// state resolution and location parsing for service-area matching.
package geo

import (
	"strings"
)

// zip3Range assigns the ZIP3 prefixes lo..hi (inclusive) to a state or
// territory code.
type zip3Range struct {
	lo, hi int
	state  string
}

// zip3Ranges follows the USPS ZIP3 allocation. Gaps are unassigned prefixes.
var zip3Ranges = []zip3Range{
	{5, 5, "NY"},
	{6, 7, "PR"},
	{8, 8, "VI"},
	{9, 9, "PR"},
	{10, 27, "MA"},
	{28, 29, "RI"},
	{30, 38, "NH"},
	{39, 49, "ME"},
	{50, 54, "VT"},
	{55, 55, "MA"},
	{56, 59, "VT"},
	{60, 69, "CT"},
	{70, 89, "NJ"},
	{90, 99, "AE"},
	{100, 149, "NY"},
	{150, 196, "PA"},
	{197, 199, "DE"},
	{200, 200, "DC"},
	{201, 201, "VA"},
	{202, 205, "DC"},
	{206, 219, "MD"},
	{220, 246, "VA"},
	{247, 268, "WV"},
	{270, 289, "NC"},
	{290, 299, "SC"},
	{300, 319, "GA"},
	{320, 339, "FL"},
	{340, 340, "AA"},
	{341, 349, "FL"},
	{350, 369, "AL"},
	{370, 385, "TN"},
	{386, 397, "MS"},
	{398, 399, "GA"},
	{400, 427, "KY"},
	{430, 459, "OH"},
	{460, 479, "IN"},
	{480, 499, "MI"},
	{500, 528, "IA"},
	{530, 549, "WI"},
	{550, 567, "MN"},
	{569, 569, "DC"},
	{570, 577, "SD"},
	{580, 588, "ND"},
	{590, 599, "MT"},
	{600, 629, "IL"},
	{630, 658, "MO"},
	{660, 679, "KS"},
	{680, 693, "NE"},
	{700, 714, "LA"},
	{716, 729, "AR"},
	{730, 749, "OK"},
	{750, 799, "TX"},
	{800, 816, "CO"},
	{820, 831, "WY"},
	{832, 838, "ID"},
	{840, 847, "UT"},
	{850, 865, "AZ"},
	{870, 884, "NM"},
	{885, 885, "TX"},
	{889, 898, "NV"},
	{900, 961, "CA"},
	{962, 966, "AP"},
	{967, 968, "HI"},
	{969, 969, "GU"},
	{970, 979, "OR"},
	{980, 994, "WA"},
	{995, 999, "AK"},
}

// stateNames maps state and territory codes to display names.
var stateNames = map[string]string{
	"AL": "Alabama", "AK": "Alaska", "AZ": "Arizona", "AR": "Arkansas",
	"CA": "California", "CO": "Colorado", "CT": "Connecticut", "DE": "Delaware",
	"DC": "District of Columbia", "FL": "Florida", "GA": "Georgia", "HI": "Hawaii",
	"ID": "Idaho", "IL": "Illinois", "IN": "Indiana", "IA": "Iowa",
	"KS": "Kansas", "KY": "Kentucky", "LA": "Louisiana", "ME": "Maine",
	"MD": "Maryland", "MA": "Massachusetts", "MI": "Michigan", "MN": "Minnesota",
	"MS": "Mississippi", "MO": "Missouri", "MT": "Montana", "NE": "Nebraska",
	"NV": "Nevada", "NH": "New Hampshire", "NJ": "New Jersey", "NM": "New Mexico",
	"NY": "New York", "NC": "North Carolina", "ND": "North Dakota", "OH": "Ohio",
	"OK": "Oklahoma", "OR": "Oregon", "PA": "Pennsylvania", "RI": "Rhode Island",
	"SC": "South Carolina", "SD": "South Dakota", "TN": "Tennessee", "TX": "Texas",
	"UT": "Utah", "VT": "Vermont", "VA": "Virginia", "WA": "Washington",
	"WV": "West Virginia", "WI": "Wisconsin", "WY": "Wyoming",
	"PR": "Puerto Rico", "VI": "U.S. Virgin Islands", "GU": "Guam",
	"AA": "Armed Forces Americas", "AE": "Armed Forces Europe", "AP": "Armed Forces Pacific",
}

// byZip3 is indexed by the numeric ZIP3 prefix. Built once at init and never
// written afterwards.
var byZip3 [1000]string

func init() {
	for _, r := range zip3Ranges {
		for p := r.lo; p <= r.hi; p++ {
			byZip3[p] = r.state
		}
	}
}

// StateForZip returns the state code for a ZIP code or ZIP prefix of at least
// three digits. ok is false for malformed input or unassigned prefixes.
func StateForZip(zip string) (state string, ok bool) {
	zip = strings.TrimSpace(zip)
	if len(zip) < 3 {
		return "", false
	}
	p := 0
	for i := 0; i < 3; i++ {
		c := zip[i]
		if c < '0' || c > '9' {
			return "", false
		}
		p = p*10 + int(c-'0')
	}
	state = byZip3[p]
	return state, state != ""
}

// IsState reports whether code is a known state or territory code.
func IsState(code string) bool {
	_, ok := stateNames[strings.ToUpper(code)]
	return ok
}

// StateName returns the display name for a state code, or the code itself
// when unknown.
func StateName(code string) string {
	code = strings.ToUpper(code)
	if name, ok := stateNames[code]; ok {
		return name
	}
	return code
}

// NormalizeZip returns the 5-digit form of a ZIP or ZIP+4 code, or "" when zip
// is not a valid US postal code.
func NormalizeZip(zip string) string {
	zip = strings.TrimSpace(zip)
	if i := strings.IndexByte(zip, '-'); i >= 0 {
		if !allDigits(zip[i+1:]) || len(zip[i+1:]) != 4 {
			return ""
		}
		zip = zip[:i]
	}
	if len(zip) != 5 || !allDigits(zip) {
		return ""
	}
	return zip
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
