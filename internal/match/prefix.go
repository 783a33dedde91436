package match

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// Prefix is one compiled ant-style glob: ? matches a single
// non-separator character, * any run of non-separator characters and
// ** any run including separators.
type Prefix struct {
	pattern string
	g       glob.Glob
	literal int
}

// CompilePrefix compiles an ant-style glob with "/" as the separator.
func CompilePrefix(pattern string) (Prefix, error) {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return Prefix{}, fmt.Errorf("compile prefix %q: %w", pattern, err)
	}
	return Prefix{
		pattern: pattern,
		g:       g,
		literal: literalPrefixLen(pattern),
	}, nil
}

// Pattern returns the source pattern.
func (p Prefix) Pattern() string { return p.pattern }

// Match reports whether the glob matches the whole path.
func (p Prefix) Match(path string) bool {
	return p.g != nil && p.g.Match(path)
}

// Specificity is the length of the pattern's matched prefix: the
// literal run before the first wildcard, or the whole pattern when it
// has none. Longer is more specific.
func (p Prefix) Specificity() int { return p.literal }

func literalPrefixLen(pattern string) int {
	if i := strings.IndexAny(pattern, "*?[{"); i >= 0 {
		return i
	}
	return len(pattern)
}

// PrefixSet is an ordered collection of compiled prefixes.
type PrefixSet struct {
	prefixes []Prefix
}

// CompilePrefixes compiles all patterns, preserving order.
func CompilePrefixes(patterns []string) (*PrefixSet, error) {
	set := &PrefixSet{prefixes: make([]Prefix, 0, len(patterns))}
	for _, p := range patterns {
		compiled, err := CompilePrefix(p)
		if err != nil {
			return nil, err
		}
		set.prefixes = append(set.prefixes, compiled)
	}
	return set, nil
}

// Best returns the most specific matching prefix for the path:
// greatest Specificity wins, insertion order breaks ties.
func (s *PrefixSet) Best(path string) (Prefix, bool) {
	var (
		best  Prefix
		found bool
	)
	for _, p := range s.prefixes {
		if !p.Match(path) {
			continue
		}
		if !found || p.Specificity() > best.Specificity() {
			best = p
			found = true
		}
	}
	return best, found
}
