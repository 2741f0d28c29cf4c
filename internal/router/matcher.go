// Package router provides the route table and dispatcher gating every
// request before business handlers run.
package router

import (
	"regexp"
	"strings"
)

// patternMatcher matches a path template against request paths.
// Templates contain literal segments and {name} placeholders, each
// matching exactly one non-separator segment. There are no
// multi-segment wildcards.
type patternMatcher struct {
	pattern string
	regex   *regexp.Regexp
}

// newPatternMatcher compiles a path template into an anchored regexp.
func newPatternMatcher(pattern string) (*patternMatcher, error) {
	var b strings.Builder
	b.WriteString("^")

	for _, part := range strings.Split(strings.TrimPrefix(pattern, "/"), "/") {
		b.WriteString("/")
		if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") && len(part) > 2 {
			b.WriteString("(?P<")
			b.WriteString(part[1 : len(part)-1])
			b.WriteString(">[^/]+)")
		} else {
			b.WriteString(regexp.QuoteMeta(part))
		}
	}
	b.WriteString("$")

	regex, err := regexp.Compile(b.String())
	if err != nil {
		return nil, err
	}

	return &patternMatcher{pattern: pattern, regex: regex}, nil
}

// match checks the path and extracts named parameters in declaration
// order. Params is nil for templates without placeholders.
func (m *patternMatcher) match(path string) (matched bool, params map[string]string) {
	matches := m.regex.FindStringSubmatch(path)
	if matches == nil {
		return false, nil
	}

	for i, name := range m.regex.SubexpNames() {
		if i > 0 && name != "" && i < len(matches) {
			if params == nil {
				params = make(map[string]string)
			}
			params[name] = matches[i]
		}
	}

	return true, params
}
