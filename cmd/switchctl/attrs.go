package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// parseAttrs turns repeated k=v flags into context attributes. Values that
// parse as numbers or booleans are typed accordingly unless asStrings is
// set. Only canonically written numbers become numbers ("2.10" stays a
// string); wrap a value in single quotes to force a string ('30').
func parseAttrs(pairs []string, asStrings bool) (map[string]any, error) {
	attrs := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid attribute %q: expected key=value", p)
		}
		if _, dup := attrs[k]; dup {
			return nil, fmt.Errorf("attribute %q given twice", k)
		}
		attrs[k] = typedValue(v, asStrings)
	}
	return attrs, nil
}

func typedValue(v string, asStrings bool) any {
	if len(v) >= 2 && v[0] == '\'' && v[len(v)-1] == '\'' {
		return v[1 : len(v)-1]
	}
	if asStrings {
		return v
	}
	if b, err := strconv.ParseBool(v); err == nil && (v == "true" || v == "false") {
		return b
	}
	if f, ok := canonicalNumber(v); ok {
		return f
	}
	return v
}

// canonicalNumber accepts only numbers written the way they print, so
// "2.10" or "007" keep their text and bucket like the server would.
func canonicalNumber(v string) (float64, bool) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, strconv.FormatFloat(f, 'f', -1, 64) == v
}
