package api

import (
	"strconv"
	"strings"
)

// PathParts are the optional segments appended after an endpoint.
// An empty string means the segment is absent; "0" is a present identifier.
type PathParts struct {
	Identifier string
	Method     string
	Custom     []string
}

// BuildPath joins endpoint, identifier, method and custom segments with "/".
// Segments are neither escaped nor validated.
func BuildPath(endpoint string, parts PathParts) string {
	segs := make([]string, 0, 3+len(parts.Custom))
	segs = append(segs, endpoint)
	if parts.Identifier != "" {
		segs = append(segs, parts.Identifier)
	}
	if parts.Method != "" {
		segs = append(segs, parts.Method)
	}
	for _, c := range parts.Custom {
		if c != "" {
			segs = append(segs, c)
		}
	}
	return strings.Join(segs, "/")
}

// ID renders a numeric identifier as a path segment.
func ID(n int64) string {
	return strconv.FormatInt(n, 10)
}
