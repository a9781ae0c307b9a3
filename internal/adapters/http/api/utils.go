// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// stringParam returns the named query parameter, or def when absent.
func stringParam(r *http.Request, name, def string) string {
	if v := strings.TrimSpace(r.URL.Query().Get(name)); v != "" {
		return v
	}
	return def
}

// intParam parses a positive integer query parameter, using def when absent.
func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return v, nil
}

// boolParam reads a lenient boolean query parameter. Only an explicit
// negative turns the flag off; anything else reads as true.
func boolParam(r *http.Request, name string, def bool) bool {
	raw := strings.ToLower(strings.TrimSpace(r.URL.Query().Get(name)))
	if raw == "" {
		return def
	}
	return raw != "false" && raw != "0" && raw != "no"
}
