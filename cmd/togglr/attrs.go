package main

import (
	"fmt"
	"strconv"
	"strings"

	togglr "github.com/rafaeljc/togglr-sdk-go"
)

// parseAttrs builds a context from key=value pairs. Values are typed by shape:
// true/false are booleans, integers and floats are numbers, everything else is a
// string. Double quotes force a string ("42").
func parseAttrs(pairs []string) (*togglr.RequestContext, error) {
	rc := togglr.NewContext()
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid attribute %q: expected key=value", pair)
		}
		rc.Set(key, parseValue(raw))
	}
	return rc, nil
}

func parseValue(raw string) any {
	if len(raw) >= 2 && strings.HasPrefix(raw, `"`) && strings.HasSuffix(raw, `"`) {
		return raw[1 : len(raw)-1]
	}
	if b, err := strconv.ParseBool(raw); err == nil && (raw == "true" || raw == "false") {
		return b
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}
