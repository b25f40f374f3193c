// Package waf handles the anti-bot barrier in front of the console: merging
// barrier cookies into account session material and acquiring them once per
// run through a real browser.
package waf

import (
	"sort"
	"strings"
)

// CookieSet maps cookie names to values
type CookieSet map[string]string

// RequiredCookies are the barrier cookies minted by the challenge page
var RequiredCookies = []string{"acw_tc", "cdn_sec_tc", "acw_sc__v2"}

// Merge overlays extra onto the original cookie string. Names from extra win
// on collision. Original pair order is preserved; names new to the string
// are appended sorted so merged output is stable across runs. An empty extra
// set returns original unchanged.
func Merge(original string, extra CookieSet) string {
	if len(extra) == 0 {
		return original
	}

	var order []string
	values := map[string]string{}
	for _, part := range strings.Split(original, ";") {
		part = strings.TrimSpace(part)
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if _, seen := values[name]; !seen {
			order = append(order, name)
		}
		values[name] = strings.TrimSpace(value)
	}

	var added []string
	for name, value := range extra {
		if _, seen := values[name]; !seen {
			added = append(added, name)
		}
		values[name] = value
	}
	sort.Strings(added)
	order = append(order, added...)

	pairs := make([]string, 0, len(order))
	for _, name := range order {
		pairs = append(pairs, name+"="+values[name])
	}
	return strings.Join(pairs, "; ")
}
