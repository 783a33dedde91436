package core

import (
	"errors"
	"net/url"
	"strings"
)

func joinErrors(errs []error) error {
	return errors.Join(errs...)
}

func methodEqual(a, b string) bool {
	return strings.EqualFold(a, b)
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}

// parseQuery flattens a raw query string to its first value per name.
// Malformed pairs are skipped, matching net/url's lenient behaviour.
func parseQuery(raw string) map[string]string {
	values, err := url.ParseQuery(raw)
	if err != nil && len(values) == 0 {
		return map[string]string{}
	}
	flat := make(map[string]string, len(values))
	for name, vals := range values {
		if len(vals) > 0 {
			flat[name] = vals[0]
		}
	}
	return flat
}
