// Package match implements the two request-path matching modes of the
// host: {name} variable extraction for expectation paths and
// ant-style glob prefixes for relay rules.
package match

import "strings"

// PathVariables matches a request path against an expectation
// pattern. Pattern and path are split on "/" and compared segment by
// segment; a pattern segment of the form {name} binds the aligned
// path segment to name. A segment-count mismatch means no match and
// no variables.
func PathVariables(pattern, path string) (map[string]string, bool) {
	patSegs := strings.Split(pattern, "/")
	pathSegs := strings.Split(path, "/")
	if len(patSegs) != len(pathSegs) {
		return nil, false
	}

	vars := map[string]string{}
	for i, seg := range patSegs {
		if isVariable(seg) {
			vars[seg[1:len(seg)-1]] = pathSegs[i]
			continue
		}
		if seg != pathSegs[i] {
			return nil, false
		}
	}
	return vars, true
}

func isVariable(seg string) bool {
	return len(seg) > 2 && seg[0] == '{' && seg[len(seg)-1] == '}'
}
