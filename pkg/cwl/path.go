package cwl

import (
	"net/url"
	"strings"
)

// DecodeLocation URL-decodes a CWL file location for display.
// CWL allows locations to contain URL-encoded characters (e.g., %23 for #).
//
// Examples:
//   - "item %231.txt" → "item #1.txt"
//   - "file:///data/reads%20r1.fq" → "file:///data/reads r1.fq"
//   - "https://example.org/a%20b" → unchanged
func DecodeLocation(loc string) string {
	if loc == "" {
		return loc
	}

	if strings.HasPrefix(loc, "file://") {
		if decoded, err := url.PathUnescape(loc[7:]); err == nil {
			return "file://" + decoded
		}
		return loc
	}

	if !strings.Contains(loc, "://") {
		if decoded, err := url.PathUnescape(loc); err == nil {
			return decoded
		}
	}
	return loc
}

// TrimFragment strips the leading "#" that packed documents put on ids.
func TrimFragment(id string) string {
	return strings.TrimPrefix(id, "#")
}
